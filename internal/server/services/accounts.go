// Package services contains server-side business logic. AccountService
// handles registration, credential verification, token issuance, and the
// admin-side account mutations.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dzaytsev/credkeeper/internal/common"
	"github.com/dzaytsev/credkeeper/internal/server/auth"
	"github.com/dzaytsev/credkeeper/internal/server/cache"
	"github.com/dzaytsev/credkeeper/internal/server/config"
	"github.com/dzaytsev/credkeeper/internal/server/models"
	"github.com/dzaytsev/credkeeper/internal/server/password"
	"github.com/dzaytsev/credkeeper/internal/server/repositories/accounts"
)

// AccountService provides the credential operations behind the HTTP surface:
//   - Register: create accounts with hashed secrets
//   - Login: verify credentials and mint a session token
//   - List / Update / Delete: admin maintenance
type AccountService struct {
	repo       accounts.Repository
	cache      *cache.Accounts
	jwtSecret  []byte
	sessionTTL time.Duration
}

// NewAccountService constructs an AccountService from the store adapter, the
// worker-local cache, and server config.
func NewAccountService(repo accounts.Repository, c *cache.Accounts, cfg *config.Config) *AccountService {
	return &AccountService{
		repo:       repo,
		cache:      c,
		jwtSecret:  []byte(cfg.SecretKey),
		sessionTTL: cfg.SessionTTL,
	}
}

// Register creates a new account with a hashed secret. The pre-insert
// existence check is a fast path only; the unique username index is the
// authoritative guard, so a concurrent duplicate surfaces as
// common.ErrorAlreadyExists from Insert.
func (s *AccountService) Register(ctx context.Context, username, secret, role string) (*models.Account, error) {
	if username == "" || secret == "" || role == "" {
		return nil, fmt.Errorf("%w: username, password and role are required", common.ErrorValidation)
	}
	if !models.ValidRole(role) {
		return nil, fmt.Errorf("%w: unknown role %q", common.ErrorValidation, role)
	}

	// fast path: observe latest store state, never the cache
	_, err := s.repo.FindByUsername(ctx, username)
	if err == nil {
		return nil, common.ErrorAlreadyExists
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return nil, fmt.Errorf("checking username: %w", err)
	}

	digest, err := password.Hash(secret)
	if err != nil {
		if errors.Is(err, common.ErrorValidation) {
			return nil, err
		}
		return nil, common.ErrorInternal
	}

	account, err := s.repo.Insert(ctx, &models.Account{
		Username:     username,
		PasswordHash: digest,
		Role:         role,
	})
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("creating account: %w", err)
	}
	return account, nil
}

// Login verifies the credentials and returns a signed session token together
// with the account. A missing account yields common.ErrorNotFound; a wrong
// secret yields common.ErrorUnauthorized.
func (s *AccountService) Login(ctx context.Context, username, secret string) (string, *models.Account, error) {
	if username == "" || secret == "" {
		return "", nil, fmt.Errorf("%w: username and password are required", common.ErrorValidation)
	}

	account, err := s.Lookup(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", nil, common.ErrorNotFound
		}
		return "", nil, common.ErrorInternal
	}

	ok, err := password.Verify(secret, account.PasswordHash)
	if err != nil {
		return "", nil, common.ErrorInternal
	}
	if !ok {
		return "", nil, common.ErrorUnauthorized
	}

	token, err := auth.GenerateToken(account, s.jwtSecret, s.sessionTTL)
	if err != nil {
		return "", nil, common.ErrorInternal
	}
	return token, account, nil
}

// Lookup resolves a username through the worker-local cache, fetching from
// the store and populating the cache on a miss.
func (s *AccountService) Lookup(ctx context.Context, username string) (*models.Account, error) {
	if account, ok := s.cache.Get(username); ok {
		return account, nil
	}

	account, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	s.cache.Put(username, account, 0)
	return account, nil
}

// List returns all accounts in username order.
func (s *AccountService) List(ctx context.Context) ([]*models.Account, error) {
	list, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}
	return list, nil
}

// Update applies a partial update to the account. A secret change is
// re-hashed before storage. The cache entry for the pre-update username is
// invalidated before returning; a renamed account is simply absent from the
// cache until its next lookup.
func (s *AccountService) Update(ctx context.Context, id string, username, role, secret *string) error {
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}

	if role != nil && !models.ValidRole(*role) {
		return fmt.Errorf("%w: unknown role %q", common.ErrorValidation, *role)
	}

	fields := accounts.UpdateFields{Username: username, Role: role}
	if secret != nil {
		digest, err := password.Hash(*secret)
		if err != nil {
			if errors.Is(err, common.ErrorValidation) {
				return err
			}
			return common.ErrorInternal
		}
		fields.PasswordHash = &digest
	}

	if err := s.repo.UpdateByID(ctx, id, fields); err != nil {
		return err
	}

	s.cache.Invalidate(existing.Username)
	return nil
}

// Delete removes the account and invalidates its cache entry before
// returning.
func (s *AccountService) Delete(ctx context.Context, id string) error {
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.DeleteByID(ctx, id); err != nil {
		return err
	}

	s.cache.Invalidate(existing.Username)
	return nil
}
