package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// resolveHistoryUser maps the acting principal to a history_user_id inside
// the mutation's transaction. API-key principals (empty username) yield NULL.
// A user principal whose account no longer resolves (deleted between
// verification and the write) fails the whole mutation: the entity write and
// the revision write are one logical transaction, and a revision must never
// be attributed to a ghost.
func resolveHistoryUser(ctx context.Context, tx Tx, m Mutation) (*string, error) {
	if m.Username == "" {
		return nil, nil
	}
	var id string
	err := tx.QueryRow(ctx,
		`SELECT id FROM users WHERE username = $1 AND deleted_at IS NULL`, m.Username,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &PrincipalResolutionError{Username: m.Username}
	}
	if err != nil {
		return nil, fmt.Errorf("resolve history user %s: %w", m.Username, err)
	}
	return &id, nil
}
