package request

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = validator.New()

func Decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	return nil
}

// RequireID validates a path id before it reaches a query. IDs are UUIDs;
// anything else is rejected here so a malformed value never turns into a
// database type error downstream.
func RequireID(s string) (string, error) {
	if s == "" {
		return "", fmt.Errorf("missing required ID")
	}
	if _, err := uuid.Parse(s); err != nil {
		return "", fmt.Errorf("invalid ID %q: must be a UUID", s)
	}
	return s, nil
}

// DecodeFields reads a PATCH body as a raw field map; per-field validation
// happens against the entity's patchable-field whitelist downstream.
func DecodeFields(r *http.Request) (map[string]any, error) {
	fields := map[string]any{}
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return fields, nil
}
