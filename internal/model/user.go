package model

import "time"

// User is the local account record behind a bearer-token principal.
// PasswordHash is bcrypt and never leaves the process.
type User struct {
	ID           string     `json:"id" db:"id"`
	Username     string     `json:"username" db:"username"`
	Email        string     `json:"email" db:"email"`
	FirstName    string     `json:"first_name" db:"first_name"`
	LastName     string     `json:"last_name" db:"last_name"`
	PasswordHash string     `json:"-" db:"password_hash"`
	IsActive     bool       `json:"is_active" db:"is_active"`
	IsStaff      bool       `json:"is_staff" db:"is_staff"`
	IsSuperuser  bool       `json:"is_superuser" db:"is_superuser"`
	LastLogin    *time.Time `json:"last_login,omitempty" db:"last_login"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

// IsDeleted reports whether the user has been soft-deleted.
func (u *User) IsDeleted() bool {
	return u.DeletedAt != nil
}

// UserRevision is one audit snapshot of a User.
type UserRevision struct {
	HistoryID           int64     `json:"history_id" db:"history_id"`
	ID                  string    `json:"id" db:"id"`
	Username            string    `json:"username" db:"username"`
	Email               string    `json:"email" db:"email"`
	FirstName           string    `json:"first_name" db:"first_name"`
	LastName            string    `json:"last_name" db:"last_name"`
	IsActive            bool      `json:"is_active" db:"is_active"`
	IsStaff             bool      `json:"is_staff" db:"is_staff"`
	IsSuperuser         bool      `json:"is_superuser" db:"is_superuser"`
	DeletedAt           *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
	HistoryDate         time.Time `json:"history_date" db:"history_date"`
	HistoryType         string    `json:"history_type" db:"history_type"`
	HistoryChangeReason string    `json:"history_change_reason" db:"history_change_reason"`
	HistoryUserID       *string   `json:"history_user_id,omitempty" db:"history_user_id"`
}
