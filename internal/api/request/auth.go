package request

import "time"

// Login holds the credentials for the admin token integration.
type Login struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Refresh carries the refresh JWT.
type Refresh struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// CreateAPIKey holds the request body for minting an API key.
type CreateAPIKey struct {
	Name      string     `json:"name" validate:"required,min=1,max=255"`
	ExpiresAt *time.Time `json:"expires_at"`
}
