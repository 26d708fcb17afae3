package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/BradenHooton/authwatch/internal/auth"
	pkghttp "github.com/BradenHooton/authwatch/pkg/http"
)

const maxRequestBodyBytes = 4 << 10

// FailureRecorder records one failed login attempt
type FailureRecorder interface {
	RecordFailure(identity, origin string)
}

// FailureHandler accepts failed-login reports from other services
type FailureHandler struct {
	recorder FailureRecorder
	ipConfig *pkghttp.IPConfig
	logger   *slog.Logger
}

// NewFailureHandler creates a new FailureHandler
func NewFailureHandler(recorder FailureRecorder, ipConfig *pkghttp.IPConfig, logger *slog.Logger) *FailureHandler {
	return &FailureHandler{
		recorder: recorder,
		ipConfig: ipConfig,
		logger:   logger,
	}
}

// RecordFailureRequest represents the request body for reporting a failed login
type RecordFailureRequest struct {
	Identity string `json:"identity" validate:"required,max=256"`
	Origin   string `json:"origin" validate:"omitempty,max=256"`
}

// RecordFailureResponse is returned once the failure has been counted
type RecordFailureResponse struct {
	Status string `json:"status"`
}

// Record handles a failed-login report
// @Summary Report a failed login attempt
// @Accept json
// @Param request body RecordFailureRequest true "Failure report"
// @Produce json
// @Success 202 {object} RecordFailureResponse
// @Failure 400 {object} pkghttp.ErrorResponse
// @Failure 401 {object} pkghttp.ErrorResponse
// @Failure 429 {object} pkghttp.ErrorResponse
// @Router /v1/auth/failures [post]
func (h *FailureHandler) Record(w http.ResponseWriter, r *http.Request) {
	var req RecordFailureRequest

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	// Identity and origin are tracked byte-for-byte; no normalisation
	if err := ValidateRequest(req); err != nil {
		var fe *FieldError
		if errors.As(err, &fe) {
			pkghttp.WriteErrorWithDetails(w, http.StatusBadRequest, "bad_request", "Validation failed", fe.Error())
			return
		}
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	// Without an explicit origin the reporting client's own address is used
	if req.Origin == "" {
		req.Origin = pkghttp.ExtractClientIP(r, h.ipConfig)
	}

	h.recorder.RecordFailure(req.Identity, req.Origin)

	h.logger.Debug("failure report accepted",
		slog.String("reporter", auth.GetReporterFromContext(r.Context())),
		slog.String("identity", req.Identity),
		slog.String("ip_address", req.Origin))

	pkghttp.WriteJSON(w, http.StatusAccepted, RecordFailureResponse{Status: "recorded"})
}
