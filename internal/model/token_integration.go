package model

import "time"

// TokenIntegration stores the JWT pair issued to a user through the admin
// token integration. One row per user, upserted on login and refresh.
type TokenIntegration struct {
	ID           string    `json:"id" db:"id"`
	UserID       string    `json:"user_id" db:"user_id"`
	AccessToken  string    `json:"access_token" db:"access_token"`
	RefreshToken string    `json:"refresh_token" db:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Expired reports whether the stored access token has passed its expiry.
func (t *TokenIntegration) Expired(now time.Time) bool {
	return t.ExpiresAt.Before(now)
}
