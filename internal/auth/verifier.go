package auth

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/singleflight"
)

// IdentityStore is the read-only local lookup the Verifier needs. The core
// services implement it; verification never mutates credential or principal
// state.
type IdentityStore interface {
	// ResolveUser maps a username to a live local account and its effective
	// permission codes. A miss is reported with a nil userID.
	ResolveUser(ctx context.Context, username string) (userID string, permissions []string, err error)

	// ResolveAPIKey maps a raw key to its name iff the key is active
	// (not revoked, not expired, not soft-deleted) in a single check.
	ResolveAPIKey(ctx context.Context, rawKey string) (name string, err error)
}

// Verifier turns a credential into a Principal or a typed failure. Each call
// is independent; the Verifier holds no per-request state and is safe for
// concurrent use.
type Verifier struct {
	introspector *IntrospectionClient
	store        IdentityStore

	// collapses concurrent introspections of the same token into one
	// round-trip to the provider
	group singleflight.Group
}

func NewVerifier(introspector *IntrospectionClient, store IdentityStore) *Verifier {
	return &Verifier{introspector: introspector, store: store}
}

// VerifyToken validates an opaque bearer token remotely, then resolves the
// subject locally. Both steps must succeed: introspection proves the token,
// the local lookup supplies identity and permissions. Remote permission
// claims are never trusted.
func (v *Verifier) VerifyToken(ctx context.Context, token string) (*Principal, error) {
	res, err, _ := v.group.Do(token, func() (any, error) {
		// The shared call outlives whichever request happens to lead it.
		// If the leader's context were used and that request got canceled,
		// every coalesced caller would inherit the failure. The HTTP
		// client's timeout still bounds the detached call.
		return v.introspector.Introspect(context.WithoutCancel(ctx), token)
	})
	if err != nil {
		return nil, err
	}
	result := res.(*IntrospectionResult)

	userID, permissions, err := v.store.ResolveUser(ctx, result.Username)
	if err != nil {
		return nil, fmt.Errorf("resolve user %s: %w", result.Username, err)
	}
	if userID == "" {
		return nil, fmt.Errorf("%w: %s", ErrPrincipalNotFound, result.Username)
	}

	return NewUserPrincipal(userID, result.Username, permissions), nil
}

// VerifyAPIKey validates a raw API key against the local store.
func (v *Verifier) VerifyAPIKey(ctx context.Context, rawKey string) (*Principal, error) {
	if rawKey == "" {
		return nil, ErrInvalidAPIKey
	}
	name, err := v.store.ResolveAPIKey(ctx, rawKey)
	if err != nil {
		if errors.Is(err, ErrInvalidAPIKey) {
			return nil, err
		}
		return nil, fmt.Errorf("resolve api key: %w", err)
	}
	return NewAPIKeyPrincipal(name), nil
}
