package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/nsgates/gateway/internal/auth"
	"github.com/nsgates/gateway/internal/model"
)

// TokenService implements the admin token integration: password login issuing
// a JWT pair, refresh, and logout. One token_integrations row per user,
// upserted on login and refresh.
type TokenService struct {
	db     DB
	signer *auth.TokenSigner
}

func NewTokenService(db DB, signer *auth.TokenSigner) *TokenService {
	return &TokenService{db: db, signer: signer}
}

// TokenPair is the login/refresh result.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// Login authenticates a username/password pair against the local account
// store and issues a fresh token pair. Inactive, deleted, and unknown
// accounts all fail identically.
func (s *TokenService) Login(ctx context.Context, users *UserService, username, password string) (*TokenPair, error) {
	user, err := users.GetByUsername(ctx, username)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}

	access, err := s.signer.SignAccess(username)
	if err != nil {
		return nil, err
	}
	refresh, err := s.signer.SignRefresh(username)
	if err != nil {
		return nil, err
	}

	expiresAt := time.Now().Add(s.signer.AccessExpiration())
	_, err = s.db.Exec(ctx,
		`INSERT INTO token_integrations (id, user_id, access_token, refresh_token, expires_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, now(), now())
		 ON CONFLICT (user_id) DO UPDATE
		 SET access_token = EXCLUDED.access_token, refresh_token = EXCLUDED.refresh_token,
		     expires_at = EXCLUDED.expires_at, updated_at = now()`,
		model.NewID(), user.ID, access, refresh, expiresAt,
	)
	if err != nil {
		return nil, fmt.Errorf("store token integration: %w", err)
	}

	if err := users.TouchLastLogin(ctx, user.ID); err != nil {
		return nil, err
	}

	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Refresh issues a new access token for a caller holding a valid refresh
// JWT (verified upstream). The stored integration row must still exist.
func (s *TokenService) Refresh(ctx context.Context, users *UserService, username string) (*TokenPair, error) {
	user, err := users.GetByUsername(ctx, username)
	if errors.Is(err, ErrNotFound) {
		return nil, auth.ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}

	var existing string
	err = s.db.QueryRow(ctx,
		`SELECT id FROM token_integrations WHERE user_id = $1`, user.ID,
	).Scan(&existing)
	if err != nil {
		return nil, auth.ErrInvalidToken
	}

	access, err := s.signer.SignAccess(username)
	if err != nil {
		return nil, err
	}

	expiresAt := time.Now().Add(s.signer.AccessExpiration())
	_, err = s.db.Exec(ctx,
		`UPDATE token_integrations SET access_token = $1, expires_at = $2, updated_at = now() WHERE user_id = $3`,
		access, expiresAt, user.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("refresh token integration: %w", err)
	}

	return &TokenPair{AccessToken: access}, nil
}

// Logout removes the caller's token integration row.
func (s *TokenService) Logout(ctx context.Context, users *UserService, username string) error {
	user, err := users.GetByUsername(ctx, username)
	if errors.Is(err, ErrNotFound) {
		return auth.ErrInvalidToken
	}
	if err != nil {
		return err
	}

	tag, err := s.db.Exec(ctx, `DELETE FROM token_integrations WHERE user_id = $1`, user.ID)
	if err != nil {
		return fmt.Errorf("delete token integration: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
