package database

import (
	"errors"

	"github.com/BradenHooton/authwatch/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// MapPostgresError translates driver errors into model sentinels
func MapPostgresError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23502", "22001": // not_null_violation, string_data_right_truncation
			return models.ErrBadRequest
		case "42P01": // undefined_table
			return models.ErrSinkUnavailable
		}
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return models.ErrSinkUnavailable
	}

	return err
}
