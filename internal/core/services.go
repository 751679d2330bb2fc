package core

import (
	"context"

	"github.com/nsgates/gateway/internal/auth"
)

// Services bundles the gateway's domain services, wired once at startup.
type Services struct {
	User   *UserService
	APIKey *APIKeyService
	Token  *TokenService
}

func NewServices(db DB, signer *auth.TokenSigner) *Services {
	return &Services{
		User:   NewUserService(db),
		APIKey: NewAPIKeyService(db),
		Token:  NewTokenService(db, signer),
	}
}

// identityStore adapts the services to the verifier's lookup interface.
type identityStore struct {
	users *UserService
	keys  *APIKeyService
}

func (s identityStore) ResolveUser(ctx context.Context, username string) (string, []string, error) {
	return s.users.ResolveUser(ctx, username)
}

func (s identityStore) ResolveAPIKey(ctx context.Context, rawKey string) (string, error) {
	return s.keys.ResolveAPIKey(ctx, rawKey)
}

// IdentityStore exposes the services as the verifier's read-only lookup.
func (s *Services) IdentityStore() auth.IdentityStore {
	return identityStore{users: s.User, keys: s.APIKey}
}
