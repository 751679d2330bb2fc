package core

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nsgates/gateway/internal/model"
)

func sqlContaining(fragment string) any {
	return mock.MatchedBy(func(sql string) bool {
		return strings.Contains(sql, fragment)
	})
}

func userScanFunc(u model.User) func(dest ...any) error {
	return func(dest ...any) error {
		*(dest[0].(*string)) = u.ID
		*(dest[1].(*string)) = u.Username
		*(dest[2].(*string)) = u.Email
		*(dest[3].(*string)) = u.FirstName
		*(dest[4].(*string)) = u.LastName
		*(dest[5].(*string)) = u.PasswordHash
		*(dest[6].(*bool)) = u.IsActive
		*(dest[7].(*bool)) = u.IsStaff
		*(dest[8].(*bool)) = u.IsSuperuser
		*(dest[9].(**time.Time)) = u.LastLogin
		*(dest[10].(*time.Time)) = u.CreatedAt
		*(dest[11].(*time.Time)) = u.UpdatedAt
		*(dest[12].(**time.Time)) = u.DeletedAt
		return nil
	}
}

func testUser() model.User {
	now := time.Now().Truncate(time.Microsecond)
	return model.User{
		ID:        "u-1",
		Username:  "alice",
		Email:     "alice@example.com",
		FirstName: "Alice",
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ---------- GetByID ----------

func TestUserService_GetByID_Success(t *testing.T) {
	db := &mockDB{}
	svc := NewUserService(db)
	ctx := context.Background()

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanFunc: userScanFunc(testUser())})

	u, err := svc.GetByID(ctx, "u-1", ScopeDefault)
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)
	db.AssertExpectations(t)
}

func TestUserService_GetByID_NotFound(t *testing.T) {
	db := &mockDB{}
	svc := NewUserService(db)
	ctx := context.Background()

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanFunc: func(dest ...any) error { return pgx.ErrNoRows }})

	_, err := svc.GetByID(ctx, "missing", ScopeDefault)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserService_GetByID_ScopePredicate(t *testing.T) {
	db := &mockDB{}
	svc := NewUserService(db)
	ctx := context.Background()

	db.On("QueryRow", ctx, sqlContaining("deleted_at IS NULL"), mock.Anything).
		Return(&mockRow{scanFunc: userScanFunc(testUser())}).Once()

	_, err := svc.GetByID(ctx, "u-1", ScopeDefault)
	require.NoError(t, err)

	// ScopeAll must not filter on deleted_at.
	db.On("QueryRow", ctx, mock.MatchedBy(func(sql string) bool {
		return !strings.Contains(sql, "deleted_at IS NULL")
	}), mock.Anything).
		Return(&mockRow{scanFunc: userScanFunc(testUser())}).Once()

	_, err = svc.GetByID(ctx, "u-1", ScopeAll)
	require.NoError(t, err)
	db.AssertExpectations(t)
}

// ---------- Create ----------

func TestUserService_Create_SoftDeletedConflict(t *testing.T) {
	db := &mockDB{}
	svc := NewUserService(db)
	ctx := context.Background()

	db.On("QueryRow", ctx, sqlContaining("deleted_at IS NOT NULL"), mock.Anything).
		Return(&mockRow{scanFunc: func(dest ...any) error {
			*(dest[0].(*string)) = "u-old"
			return nil
		}})

	u := testUser()
	err := svc.Create(ctx, &u, "secret", Mutation{Reason: "Created by admin", Username: "admin"})
	require.Error(t, err)

	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "u-old", conflict.ExistingID)
	assert.Equal(t, "username", conflict.Field)
	assert.Contains(t, err.Error(), "restore it")
}

func TestUserService_Create_Success(t *testing.T) {
	db := &mockDB{}
	tx := &mockTx{}
	svc := NewUserService(db)
	ctx := context.Background()

	db.On("QueryRow", ctx, sqlContaining("deleted_at IS NOT NULL"), mock.Anything).
		Return(&mockRow{scanFunc: func(dest ...any) error { return pgx.ErrNoRows }})
	db.On("Begin", ctx).Return(tx, nil)

	tx.On("Exec", ctx, sqlContaining("INSERT INTO users "), mock.Anything).
		Return(pgconn.NewCommandTag("INSERT 0 1"), nil)
	tx.On("QueryRow", ctx, sqlContaining("SELECT id FROM users WHERE username"), mock.Anything).
		Return(&mockRow{scanFunc: func(dest ...any) error {
			*(dest[0].(*string)) = "u-admin"
			return nil
		}})
	tx.On("Exec", ctx, sqlContaining("INSERT INTO users_history"), mock.Anything).
		Return(pgconn.NewCommandTag("INSERT 0 1"), nil)
	tx.On("Commit", ctx).Return(nil)

	u := testUser()
	err := svc.Create(ctx, &u, "secret", Mutation{Reason: "Created by admin", Username: "admin"})
	require.NoError(t, err)
	assert.NotEmpty(t, u.PasswordHash)
	assert.True(t, tx.committed)
	tx.AssertExpectations(t)
}

// ---------- Patch ----------

func TestUserService_Patch_RejectsWrongType(t *testing.T) {
	svc := NewUserService(&mockDB{})

	_, err := svc.Patch(context.Background(), "u-1", map[string]any{"is_active": "yes"}, Mutation{})
	var v *ValidationError
	require.ErrorAs(t, err, &v)
	assert.Equal(t, "is_active", v.Field)
}

func TestUserService_Patch_RejectsEmptyPayload(t *testing.T) {
	svc := NewUserService(&mockDB{})

	_, err := svc.Patch(context.Background(), "u-1", map[string]any{}, Mutation{})
	var v *ValidationError
	require.ErrorAs(t, err, &v)
}

func TestUserService_Patch_Success(t *testing.T) {
	db := &mockDB{}
	tx := &mockTx{}
	svc := NewUserService(db)
	ctx := context.Background()

	db.On("Begin", ctx).Return(tx, nil)
	tx.On("Exec", ctx, sqlContaining("UPDATE users SET"), mock.Anything).
		Return(pgconn.NewCommandTag("UPDATE 1"), nil)

	updated := testUser()
	updated.FirstName = "Alice2"
	tx.On("QueryRow", ctx, sqlContaining("FROM users WHERE id"), mock.Anything).
		Return(&mockRow{scanFunc: userScanFunc(updated)})
	tx.On("QueryRow", ctx, sqlContaining("SELECT id FROM users WHERE username"), mock.Anything).
		Return(&mockRow{scanFunc: func(dest ...any) error {
			*(dest[0].(*string)) = "u-alice"
			return nil
		}})
	tx.On("Exec", ctx, sqlContaining("INSERT INTO users_history"), mock.Anything).
		Return(pgconn.NewCommandTag("INSERT 0 1"), nil)
	tx.On("Commit", ctx).Return(nil)

	result, err := svc.Patch(ctx, "u-1", map[string]any{"first_name": "Alice2"}, Mutation{Reason: "Modified by alice", Username: "alice"})
	require.NoError(t, err)
	assert.Equal(t, "Alice2", result.(*model.User).FirstName)
	assert.True(t, tx.committed)
	tx.AssertExpectations(t)
}

func TestUserService_Patch_NotFound(t *testing.T) {
	db := &mockDB{}
	tx := &mockTx{}
	svc := NewUserService(db)
	ctx := context.Background()

	db.On("Begin", ctx).Return(tx, nil)
	tx.On("Exec", ctx, sqlContaining("UPDATE users SET"), mock.Anything).
		Return(pgconn.NewCommandTag("UPDATE 0"), nil)

	_, err := svc.Patch(ctx, "missing", map[string]any{"email": "x@example.com"}, Mutation{})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.True(t, tx.rolledBack)
}

func TestUserService_Patch_UsernameTakenByLiveRow(t *testing.T) {
	db := &mockDB{}
	tx := &mockTx{}
	svc := NewUserService(db)
	ctx := context.Background()

	db.On("Begin", ctx).Return(tx, nil)
	tx.On("Exec", ctx, sqlContaining("UPDATE users SET"), mock.Anything).
		Return(pgconn.NewCommandTag(""), &pgconn.PgError{Code: "23505", ConstraintName: "users_username_live_idx"})

	_, err := svc.Patch(ctx, "u-1", map[string]any{"username": "bob"}, Mutation{Reason: "Modified by alice", Username: "alice"})

	var dup *DuplicateError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "username", dup.Field)
	assert.Equal(t, "bob", dup.Value)
	assert.True(t, tx.rolledBack)
	assert.False(t, tx.committed)
}

// ---------- SoftDelete ----------

func TestUserService_SoftDelete_NotFound(t *testing.T) {
	db := &mockDB{}
	tx := &mockTx{}
	svc := NewUserService(db)
	ctx := context.Background()

	db.On("Begin", ctx).Return(tx, nil)
	tx.On("Exec", ctx, sqlContaining("SET deleted_at = now()"), mock.Anything).
		Return(pgconn.NewCommandTag("UPDATE 0"), nil)

	err := svc.SoftDelete(ctx, "missing", Mutation{})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.True(t, tx.rolledBack)
}

func TestUserService_SoftDelete_PrincipalGoneRollsBack(t *testing.T) {
	db := &mockDB{}
	tx := &mockTx{}
	svc := NewUserService(db)
	ctx := context.Background()

	db.On("Begin", ctx).Return(tx, nil)
	tx.On("Exec", ctx, sqlContaining("SET deleted_at = now()"), mock.Anything).
		Return(pgconn.NewCommandTag("UPDATE 1"), nil)

	deleted := testUser()
	now := time.Now()
	deleted.DeletedAt = &now
	tx.On("QueryRow", ctx, sqlContaining("FROM users WHERE id"), mock.Anything).
		Return(&mockRow{scanFunc: userScanFunc(deleted)})

	// The acting principal was deleted mid-request: the revision cannot be
	// attributed, so the whole mutation rolls back.
	tx.On("QueryRow", ctx, sqlContaining("SELECT id FROM users WHERE username"), mock.Anything).
		Return(&mockRow{scanFunc: func(dest ...any) error { return pgx.ErrNoRows }})

	err := svc.SoftDelete(ctx, "u-1", Mutation{Reason: "Deleted by bob", Username: "bob"})
	var resolution *PrincipalResolutionError
	require.ErrorAs(t, err, &resolution)
	assert.Equal(t, "bob", resolution.Username)
	assert.False(t, tx.committed)
	assert.True(t, tx.rolledBack)
}

func TestUserService_SoftDelete_APIKeyPrincipalSkipsResolution(t *testing.T) {
	db := &mockDB{}
	tx := &mockTx{}
	svc := NewUserService(db)
	ctx := context.Background()

	db.On("Begin", ctx).Return(tx, nil)
	tx.On("Exec", ctx, sqlContaining("SET deleted_at = now()"), mock.Anything).
		Return(pgconn.NewCommandTag("UPDATE 1"), nil)

	deleted := testUser()
	now := time.Now()
	deleted.DeletedAt = &now
	tx.On("QueryRow", ctx, sqlContaining("FROM users WHERE id"), mock.Anything).
		Return(&mockRow{scanFunc: userScanFunc(deleted)})
	tx.On("Exec", ctx, sqlContaining("INSERT INTO users_history"), mock.Anything).
		Return(pgconn.NewCommandTag("INSERT 0 1"), nil)
	tx.On("Commit", ctx).Return(nil)

	// Empty Username = API-key principal; history_user_id stays NULL and no
	// account lookup happens.
	err := svc.SoftDelete(ctx, "u-1", Mutation{Reason: "Deleted via API Key reporting"})
	require.NoError(t, err)
	assert.True(t, tx.committed)
	tx.AssertExpectations(t)
}

// ---------- ResolveUser ----------

func TestUserService_ResolveUser_Success(t *testing.T) {
	db := &mockDB{}
	svc := NewUserService(db)
	ctx := context.Background()

	db.On("QueryRow", ctx, sqlContaining("is_active"), mock.Anything).
		Return(&mockRow{scanFunc: func(dest ...any) error {
			*(dest[0].(*string)) = "u-1"
			return nil
		}})
	db.On("Query", ctx, sqlContaining("UNION"), mock.Anything).
		Return(newMockRows(
			func(dest ...any) error { *(dest[0].(*string)) = "view_customuser"; return nil },
			func(dest ...any) error { *(dest[0].(*string)) = "change_customuser"; return nil },
		), nil)

	id, perms, err := svc.ResolveUser(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "u-1", id)
	assert.ElementsMatch(t, []string{"view_customuser", "change_customuser"}, perms)
}

func TestUserService_ResolveUser_Miss(t *testing.T) {
	db := &mockDB{}
	svc := NewUserService(db)
	ctx := context.Background()

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanFunc: func(dest ...any) error { return pgx.ErrNoRows }})

	id, perms, err := svc.ResolveUser(ctx, "ghost")
	require.NoError(t, err)
	assert.Empty(t, id)
	assert.Nil(t, perms)
}

func TestUserService_Fields(t *testing.T) {
	svc := NewUserService(&mockDB{})
	fields := svc.Fields()

	assert.Contains(t, fields, "first_name")
	assert.Contains(t, fields, "is_active")
	// Credential and privilege columns must never be patchable.
	assert.NotContains(t, fields, "password_hash")
	assert.NotContains(t, fields, "is_superuser")
	assert.NotContains(t, fields, "is_staff")
}
