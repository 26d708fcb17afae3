package audit

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/BradenHooton/authwatch/internal/models"
)

// FileSink appends one line per event to a flat log file. Appends are serialized
// so concurrent callers never interleave partial lines.
type FileSink struct {
	path string
	mu   sync.Mutex
}

// NewFileSink creates a sink for path. Nothing touches the filesystem until the first Append.
func NewFileSink(path string) *FileSink {
	return &FileSink{path: path}
}

// Path returns the log file location
func (s *FileSink) Path() string {
	return s.path
}

// Append writes the formatted event line, creating the parent directory if needed
func (s *FileSink) Append(ctx context.Context, event *models.FailureEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	line := FormatLine(event) + "\n"

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return fmt.Errorf("%w: failed to create log directory: %v", models.ErrSinkUnavailable, err)
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o640)
	if err != nil {
		return fmt.Errorf("%w: failed to open audit log: %v", models.ErrSinkUnavailable, err)
	}

	if _, err := f.WriteString(line); err != nil {
		_ = f.Close()
		return fmt.Errorf("%w: failed to write audit log: %v", models.ErrSinkUnavailable, err)
	}

	return f.Close()
}
