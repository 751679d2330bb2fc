package core

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/nsgates/gateway/internal/auth"
	"github.com/nsgates/gateway/internal/model"
)

// APIKeyService manages API keys. Keys follow the same soft-delete and audit
// discipline as every other entity; additionally a key is the credential
// behind the direct authorization scheme, resolved in a single validity check.
type APIKeyService struct {
	db DB
}

func NewAPIKeyService(db DB) *APIKeyService {
	return &APIKeyService{db: db}
}

const apiKeyColumns = `id, name, key, expires_at, revoked, created_at, updated_at, deleted_at`

func scanAPIKey(row interface{ Scan(dest ...any) error }) (model.APIKey, error) {
	var k model.APIKey
	err := row.Scan(&k.ID, &k.Name, &k.Key, &k.ExpiresAt, &k.Revoked, &k.CreatedAt, &k.UpdatedAt, &k.DeletedAt)
	return k, err
}

// generateRawKey returns a 64-character URL-safe secret. Generated once per
// key, never regenerated.
func generateRawKey() (string, error) {
	raw := make([]byte, 48)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate api key: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// Create mints a new key and writes its "created" revision in one
// transaction. The raw key is returned exactly once; it is never serialized
// again. A name collision with a soft-deleted key is a ConflictError.
func (s *APIKeyService) Create(ctx context.Context, name string, expiresAt *time.Time, m Mutation) (*model.APIKey, string, error) {
	rawKey, err := generateRawKey()
	if err != nil {
		return nil, "", err
	}

	var existingID string
	err = s.db.QueryRow(ctx,
		`SELECT id FROM api_keys WHERE name = $1 AND deleted_at IS NOT NULL`, name,
	).Scan(&existingID)
	if err == nil {
		return nil, "", &ConflictError{Field: "name", Value: name, ExistingID: existingID}
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, "", fmt.Errorf("check soft-deleted api key name %s: %w", name, err)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("begin create api key: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now()
	key := &model.APIKey{
		ID:        model.NewID(),
		Name:      name,
		Key:       rawKey,
		ExpiresAt: expiresAt,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO api_keys (id, name, key, expires_at, revoked, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, false, $5, $6)`,
		key.ID, key.Name, key.Key, key.ExpiresAt, key.CreatedAt, key.UpdatedAt,
	)
	if err != nil {
		return nil, "", fmt.Errorf("insert api key: %w", err)
	}

	if err := s.insertRevision(ctx, tx, key, model.HistoryCreated, m); err != nil {
		return nil, "", err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, "", fmt.Errorf("commit create api key: %w", err)
	}
	return key, rawKey, nil
}

// ResolveAPIKey is the verifier's lookup: exact key match where not revoked,
// not expired, not soft-deleted, in one atomic predicate.
func (s *APIKeyService) ResolveAPIKey(ctx context.Context, rawKey string) (string, error) {
	var name string
	err := s.db.QueryRow(ctx,
		`SELECT name FROM api_keys
		 WHERE key = $1 AND revoked = false AND (expires_at IS NULL OR expires_at >= now()) AND deleted_at IS NULL`,
		rawKey,
	).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", auth.ErrInvalidAPIKey
	}
	if err != nil {
		return "", fmt.Errorf("resolve api key: %w", err)
	}
	return name, nil
}

func (s *APIKeyService) Get(ctx context.Context, id string, scope Scope) (any, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE id = $1`+scopePredicate(scope), id,
	)
	k, err := scanAPIKey(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get api key %s: %w", id, err)
	}
	return &k, nil
}

func (s *APIKeyService) List(ctx context.Context, scope Scope, limit int, cursor string) (any, bool, error) {
	query := `SELECT ` + apiKeyColumns + ` FROM api_keys WHERE 1=1` + scopePredicate(scope)
	args := []any{}
	argIdx := 1

	if cursor != "" {
		query += fmt.Sprintf(` AND id > $%d`, argIdx)
		args = append(args, cursor)
		argIdx++
	}

	query += ` ORDER BY id`
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit+1)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	var keys []model.APIKey
	for rows.Next() {
		k, err := scanAPIKey(rows)
		if err != nil {
			return nil, false, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate api keys: %w", err)
	}

	hasMore := len(keys) > limit
	if hasMore {
		keys = keys[:limit]
	}
	return keys, hasMore, nil
}

var apiKeyPatchFields = []string{"name", "expires_at", "revoked"}

func (s *APIKeyService) Fields() []string {
	return apiKeyPatchFields
}

// Patch updates name, expiry, or revocation. The key value itself is not
// patchable: it is generated once and never changes.
func (s *APIKeyService) Patch(ctx context.Context, id string, fields map[string]any, m Mutation) (any, error) {
	set := ""
	args := []any{}
	argIdx := 1
	for _, f := range apiKeyPatchFields {
		v, ok := fields[f]
		if !ok {
			continue
		}
		switch f {
		case "revoked":
			b, ok := v.(bool)
			if !ok {
				return nil, &ValidationError{Field: f, Reason: "expected a boolean"}
			}
			v = b
		case "expires_at":
			if v == nil {
				v = (*time.Time)(nil)
				break
			}
			str, ok := v.(string)
			if !ok {
				return nil, &ValidationError{Field: f, Reason: "expected an RFC3339 timestamp or null"}
			}
			ts, err := time.Parse(time.RFC3339, str)
			if err != nil {
				return nil, &ValidationError{Field: f, Reason: "expected an RFC3339 timestamp or null"}
			}
			v = ts
		default:
			str, ok := v.(string)
			if !ok {
				return nil, &ValidationError{Field: f, Reason: "expected a string"}
			}
			v = str
		}
		set += fmt.Sprintf("%s = $%d, ", f, argIdx)
		args = append(args, v)
		argIdx++
	}
	if set == "" {
		return nil, &ValidationError{Reason: "no patchable fields in payload"}
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin patch api key: %w", err)
	}
	defer tx.Rollback(ctx)

	query := fmt.Sprintf(`UPDATE api_keys SET %supdated_at = now() WHERE id = $%d AND deleted_at IS NULL`, set, argIdx)
	args = append(args, id)
	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		// api_keys_name_live_idx: name taken by another live key
		if isUniqueViolation(err) {
			v, _ := fields["name"].(string)
			return nil, &DuplicateError{Field: "name", Value: v}
		}
		return nil, fmt.Errorf("patch api key %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}

	row := tx.QueryRow(ctx, `SELECT `+apiKeyColumns+` FROM api_keys WHERE id = $1`, id)
	k, err := scanAPIKey(row)
	if err != nil {
		return nil, fmt.Errorf("reload api key %s: %w", id, err)
	}

	if err := s.insertRevision(ctx, tx, &k, model.HistoryChanged, m); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit patch api key: %w", err)
	}
	return &k, nil
}

func (s *APIKeyService) SoftDelete(ctx context.Context, id string, m Mutation) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin delete api key: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE api_keys SET deleted_at = now(), updated_at = now() WHERE id = $1 AND deleted_at IS NULL`, id,
	)
	if err != nil {
		return fmt.Errorf("soft-delete api key %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	row := tx.QueryRow(ctx, `SELECT `+apiKeyColumns+` FROM api_keys WHERE id = $1`, id)
	k, err := scanAPIKey(row)
	if err != nil {
		return fmt.Errorf("reload api key %s: %w", id, err)
	}

	if err := s.insertRevision(ctx, tx, &k, model.HistoryDeleted, m); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit delete api key: %w", err)
	}
	return nil
}

func (s *APIKeyService) Restore(ctx context.Context, id string, m Mutation) (any, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin restore api key: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE api_keys SET deleted_at = NULL, updated_at = now() WHERE id = $1 AND deleted_at IS NOT NULL`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("restore api key %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}

	row := tx.QueryRow(ctx, `SELECT `+apiKeyColumns+` FROM api_keys WHERE id = $1`, id)
	k, err := scanAPIKey(row)
	if err != nil {
		return nil, fmt.Errorf("reload api key %s: %w", id, err)
	}

	if err := s.insertRevision(ctx, tx, &k, model.HistoryChanged, m); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit restore api key: %w", err)
	}
	return &k, nil
}

func (s *APIKeyService) History(ctx context.Context, id string) (any, error) {
	rows, err := s.db.Query(ctx,
		`SELECT history_id, id, name, expires_at, revoked, deleted_at,
		        history_date, history_type, history_change_reason, history_user_id
		 FROM api_keys_history WHERE id = $1 ORDER BY history_date, history_id`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("api key history %s: %w", id, err)
	}
	defer rows.Close()

	var revisions []model.APIKeyRevision
	for rows.Next() {
		var rev model.APIKeyRevision
		if err := rows.Scan(&rev.HistoryID, &rev.ID, &rev.Name, &rev.ExpiresAt, &rev.Revoked, &rev.DeletedAt,
			&rev.HistoryDate, &rev.HistoryType, &rev.HistoryChangeReason, &rev.HistoryUserID); err != nil {
			return nil, fmt.Errorf("scan api key revision: %w", err)
		}
		revisions = append(revisions, rev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate api key history %s: %w", id, err)
	}
	return revisions, nil
}

func (s *APIKeyService) insertRevision(ctx context.Context, tx Tx, k *model.APIKey, historyType string, m Mutation) error {
	historyUser, err := resolveHistoryUser(ctx, tx, m)
	if err != nil {
		return err
	}
	// The raw key value never enters history snapshots.
	_, err = tx.Exec(ctx,
		`INSERT INTO api_keys_history (id, name, expires_at, revoked, deleted_at,
		                               history_date, history_type, history_change_reason, history_user_id)
		 VALUES ($1, $2, $3, $4, $5, now(), $6, $7, $8)`,
		k.ID, k.Name, k.ExpiresAt, k.Revoked, k.DeletedAt,
		historyType, m.Reason, historyUser,
	)
	if err != nil {
		return fmt.Errorf("insert api key revision: %w", err)
	}
	return nil
}
