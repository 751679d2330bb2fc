package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/nsgates/gateway/internal/model"
)

// UserService manages local accounts: CRUD with soft delete, per-mutation
// audit revisions, and the permission resolution behind bearer-token
// principals. It implements both the generic Store contract and the
// verifier's identity lookup.
type UserService struct {
	db DB
}

func NewUserService(db DB) *UserService {
	return &UserService{db: db}
}

const userColumns = `id, username, email, first_name, last_name, password_hash, is_active, is_staff, is_superuser, last_login, created_at, updated_at, deleted_at`

func scanUser(row interface{ Scan(dest ...any) error }) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.FirstName, &u.LastName, &u.PasswordHash,
		&u.IsActive, &u.IsStaff, &u.IsSuperuser, &u.LastLogin, &u.CreatedAt, &u.UpdatedAt, &u.DeletedAt)
	return u, err
}

func scopePredicate(scope Scope) string {
	if scope == ScopeAll {
		return ""
	}
	return ` AND deleted_at IS NULL`
}

// Create inserts a new user and its "created" revision in one transaction.
// A username collision with a soft-deleted account is a ConflictError: the
// caller restores the existing row explicitly rather than shadowing an
// invisible one and tripping the unique constraint.
func (s *UserService) Create(ctx context.Context, u *model.User, password string, m Mutation) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	u.PasswordHash = string(hash)

	var existingID string
	err = s.db.QueryRow(ctx,
		`SELECT id FROM users WHERE username = $1 AND deleted_at IS NOT NULL`, u.Username,
	).Scan(&existingID)
	if err == nil {
		return &ConflictError{Field: "username", Value: u.Username, ExistingID: existingID}
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("check soft-deleted username %s: %w", u.Username, err)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin create user: %w", err)
	}
	defer tx.Rollback(ctx)

	if u.ID == "" {
		u.ID = model.NewID()
	}
	now := time.Now()
	u.CreatedAt = now
	u.UpdatedAt = now
	_, err = tx.Exec(ctx,
		`INSERT INTO users (id, username, email, first_name, last_name, password_hash, is_active, is_staff, is_superuser, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		u.ID, u.Username, u.Email, u.FirstName, u.LastName, u.PasswordHash,
		u.IsActive, u.IsStaff, u.IsSuperuser, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}

	if err := s.insertRevision(ctx, tx, u, model.HistoryCreated, m); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit create user: %w", err)
	}
	return nil
}

func (s *UserService) GetByID(ctx context.Context, id string, scope Scope) (*model.User, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`+scopePredicate(scope), id,
	)
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}
	return &u, nil
}

// Get adapts GetByID to the generic Store contract.
func (s *UserService) Get(ctx context.Context, id string, scope Scope) (any, error) {
	u, err := s.GetByID(ctx, id, scope)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// GetByUsername reads a live account, password hash included; login uses it.
func (s *UserService) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1 AND deleted_at IS NULL`, username,
	)
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user by username %s: %w", username, err)
	}
	return &u, nil
}

func (s *UserService) List(ctx context.Context, scope Scope, limit int, cursor string) (any, bool, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE 1=1` + scopePredicate(scope)
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
		return nil, false, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, false, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate users: %w", err)
	}

	hasMore := len(users) > limit
	if hasMore {
		users = users[:limit]
	}
	return users, hasMore, nil
}

// userPatchFields maps the patchable payload names to their columns. Keeping
// this a closed list is what prevents a generic PATCH from reaching
// credential or privilege columns.
var userPatchFields = []string{"username", "email", "first_name", "last_name", "is_active"}

func (s *UserService) Fields() []string {
	return userPatchFields
}

// Patch applies a whitelisted field map and writes the "changed" revision in
// the same transaction.
func (s *UserService) Patch(ctx context.Context, id string, fields map[string]any, m Mutation) (any, error) {
	set := ""
	args := []any{}
	argIdx := 1
	for _, f := range userPatchFields {
		v, ok := fields[f]
		if !ok {
			continue
		}
		switch f {
		case "is_active":
			b, ok := v.(bool)
			if !ok {
				return nil, &ValidationError{Field: f, Reason: "expected a boolean"}
			}
			v = b
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
		return nil, fmt.Errorf("begin patch user: %w", err)
	}
	defer tx.Rollback(ctx)

	query := fmt.Sprintf(`UPDATE users SET %supdated_at = now() WHERE id = $%d AND deleted_at IS NULL`, set, argIdx)
	args = append(args, id)
	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		// users_username_live_idx: username taken by another live row
		if isUniqueViolation(err) {
			v, _ := fields["username"].(string)
			return nil, &DuplicateError{Field: "username", Value: v}
		}
		return nil, fmt.Errorf("patch user %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}

	row := tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("reload user %s: %w", id, err)
	}

	if err := s.insertRevision(ctx, tx, &u, model.HistoryChanged, m); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit patch user: %w", err)
	}
	return &u, nil
}

// SoftDelete marks the user deleted and writes the "deleted" revision. The
// row stays; default-scope reads stop seeing it.
func (s *UserService) SoftDelete(ctx context.Context, id string, m Mutation) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin delete user: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE users SET deleted_at = now(), updated_at = now() WHERE id = $1 AND deleted_at IS NULL`, id,
	)
	if err != nil {
		return fmt.Errorf("soft-delete user %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	row := tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	if err != nil {
		return fmt.Errorf("reload user %s: %w", id, err)
	}

	if err := s.insertRevision(ctx, tx, &u, model.HistoryDeleted, m); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit delete user: %w", err)
	}
	return nil
}

// Restore clears deleted_at; the user reappears in default-scope reads.
func (s *UserService) Restore(ctx context.Context, id string, m Mutation) (any, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin restore user: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE users SET deleted_at = NULL, updated_at = now() WHERE id = $1 AND deleted_at IS NOT NULL`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("restore user %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}

	row := tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("reload user %s: %w", id, err)
	}

	if err := s.insertRevision(ctx, tx, &u, model.HistoryChanged, m); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit restore user: %w", err)
	}
	return &u, nil
}

// History returns the user's revisions oldest first.
func (s *UserService) History(ctx context.Context, id string) (any, error) {
	rows, err := s.db.Query(ctx,
		`SELECT history_id, id, username, email, first_name, last_name, is_active, is_staff, is_superuser, deleted_at,
		        history_date, history_type, history_change_reason, history_user_id
		 FROM users_history WHERE id = $1 ORDER BY history_date, history_id`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("user history %s: %w", id, err)
	}
	defer rows.Close()

	var revisions []model.UserRevision
	for rows.Next() {
		var rev model.UserRevision
		if err := rows.Scan(&rev.HistoryID, &rev.ID, &rev.Username, &rev.Email, &rev.FirstName, &rev.LastName,
			&rev.IsActive, &rev.IsStaff, &rev.IsSuperuser, &rev.DeletedAt,
			&rev.HistoryDate, &rev.HistoryType, &rev.HistoryChangeReason, &rev.HistoryUserID); err != nil {
			return nil, fmt.Errorf("scan user revision: %w", err)
		}
		revisions = append(revisions, rev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user history %s: %w", id, err)
	}
	return revisions, nil
}

func (s *UserService) insertRevision(ctx context.Context, tx Tx, u *model.User, historyType string, m Mutation) error {
	historyUser, err := resolveHistoryUser(ctx, tx, m)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO users_history (id, username, email, first_name, last_name, is_active, is_staff, is_superuser, deleted_at,
		                            history_date, history_type, history_change_reason, history_user_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), $10, $11, $12)`,
		u.ID, u.Username, u.Email, u.FirstName, u.LastName, u.IsActive, u.IsStaff, u.IsSuperuser, u.DeletedAt,
		historyType, m.Reason, historyUser,
	)
	if err != nil {
		return fmt.Errorf("insert user revision: %w", err)
	}
	return nil
}

// ResolveUser is the verifier's local identity lookup: live, active account
// plus its effective permission set (direct grants unioned with group
// grants). A miss is a nil-id result, not an error.
func (s *UserService) ResolveUser(ctx context.Context, username string) (string, []string, error) {
	var id string
	err := s.db.QueryRow(ctx,
		`SELECT id FROM users WHERE username = $1 AND deleted_at IS NULL AND is_active`, username,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil, nil
	}
	if err != nil {
		return "", nil, fmt.Errorf("resolve user %s: %w", username, err)
	}

	permissions, err := s.permissions(ctx, id)
	if err != nil {
		return "", nil, err
	}
	return id, permissions, nil
}

func (s *UserService) permissions(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.Query(ctx,
		`SELECT p.codename FROM permissions p
		 JOIN user_permissions up ON up.permission_id = p.id
		 WHERE up.user_id = $1
		 UNION
		 SELECT p.codename FROM permissions p
		 JOIN group_permissions gp ON gp.permission_id = p.id
		 JOIN user_groups ug ON ug.group_id = gp.group_id
		 WHERE ug.user_id = $1`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("permissions for user %s: %w", userID, err)
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("scan permission: %w", err)
		}
		codes = append(codes, code)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate permissions: %w", err)
	}
	return codes, nil
}

// TouchLastLogin records a successful login.
func (s *UserService) TouchLastLogin(ctx context.Context, id string) error {
	_, err := s.db.Exec(ctx, `UPDATE users SET last_login = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("touch last_login for %s: %w", id, err)
	}
	return nil
}
