package repository

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	domainerrors "github.com/davidleathers/commission-protection-backend/internal/domain/errors"
)

// Common repository errors
var (
	ErrNotFound     = errors.New("entity not found")
	ErrDuplicateKey = errors.New("duplicate key violation")
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// IsDuplicateKeyViolation checks if the error is a unique constraint violation
func IsDuplicateKeyViolation(err error) bool {
	return err != nil && pgCode(err) == pgUniqueViolation
}

// IsNotFound checks if the error indicates a record was not found
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, pgx.ErrNoRows)
}

// notFound returns a NotFound AppError that still matches ErrNotFound
func notFound(resource string) error {
	return domainerrors.NewNotFoundError(resource).WithCause(ErrNotFound)
}

// wrapError maps driver errors to domain errors. Constraint violations on
// input become validation errors; anything else is a persistence error whose
// cause stays out of the client-facing message.
func wrapError(err error, operation string) error {
	if err == nil {
		return nil
	}

	var appErr *domainerrors.AppError
	if errors.As(err, &appErr) {
		return err
	}

	switch pgCode(err) {
	case pgUniqueViolation:
		return domainerrors.NewValidationError("DUPLICATE", "record already exists").WithCause(ErrDuplicateKey)
	case pgForeignKeyViolation:
		return domainerrors.NewValidationError("INVALID_REFERENCE", "referenced record does not exist").WithCause(err)
	case pgCheckViolation:
		return domainerrors.NewValidationError("CONSTRAINT_VIOLATION", "record violates a data constraint").WithCause(err)
	}
	return domainerrors.NewPersistenceError(operation, err)
}
