package domain

import (
	"context"
	"errors"
)

// EmailResolver maps an account to its billing email. An empty email with a
// nil error means the account has none on file.
type EmailResolver interface {
	ResolveEmail(ctx context.Context, accountID string) (string, error)
}

type UpsertAccountRequest struct {
	ID    string
	Email string
}

type Service interface {
	EmailResolver
	Upsert(context.Context, UpsertAccountRequest) (Account, error)
}

var (
	ErrInvalidID    = errors.New("invalid_id")
	ErrInvalidEmail = errors.New("invalid_email")
)
