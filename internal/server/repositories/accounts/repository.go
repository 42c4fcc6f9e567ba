// Package accounts adapts an external document store to the operations the
// credential service needs.
package accounts

import (
	"context"

	"github.com/dzaytsev/credkeeper/internal/server/models"
)

// UpdateFields is a partial update: nil fields are left untouched.
type UpdateFields struct {
	Username     *string
	Role         *string
	PasswordHash *string
}

// Repository is the contract the document store must satisfy.
// Implementations return common.ErrorNotFound for missing records and
// common.ErrorAlreadyExists when an insert violates the username index.
type Repository interface {
	FindByUsername(ctx context.Context, username string) (*models.Account, error)
	FindByID(ctx context.Context, id string) (*models.Account, error)
	List(ctx context.Context) ([]*models.Account, error)
	Insert(ctx context.Context, account *models.Account) (*models.Account, error)
	UpdateByID(ctx context.Context, id string, fields UpdateFields) error
	DeleteByID(ctx context.Context, id string) error
	EnsureIndexes(ctx context.Context) error
}
