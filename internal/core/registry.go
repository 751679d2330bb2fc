package core

import (
	"context"
	"fmt"
)

// Scope selects which rows a read sees.
type Scope int

const (
	// ScopeDefault excludes soft-deleted entities.
	ScopeDefault Scope = iota
	// ScopeAll includes soft-deleted entities; used by restore workflows.
	ScopeAll
)

// Mutation carries audit attribution for one write. Username is empty when
// the acting principal is an API key; the key's name is then encoded in the
// change reason and the revision's history_user_id stays NULL.
type Mutation struct {
	Reason   string
	Username string
}

// Store is the persistence contract a registered entity type provides.
// Mutating operations write the entity state and its audit revision in one
// transaction; a reader never sees one without the other.
type Store interface {
	List(ctx context.Context, scope Scope, limit int, cursor string) (items any, hasMore bool, err error)
	Get(ctx context.Context, id string, scope Scope) (any, error)
	Patch(ctx context.Context, id string, fields map[string]any, m Mutation) (any, error)
	SoftDelete(ctx context.Context, id string, m Mutation) error
	Restore(ctx context.Context, id string, m Mutation) (any, error)
	History(ctx context.Context, id string) (any, error)

	// Fields lists the names a PATCH payload may set. Anything else is
	// rejected before any write happens.
	Fields() []string
}

// EntityType describes one registered entity: Name feeds the permission-code
// derivation ("customuser" → view_customuser), Slug is the URL path segment
// ("users" → /o/users, /k/users).
type EntityType struct {
	Name  string
	Slug  string
	Store Store
}

// Registry is the startup-time mapping from entity types to their stores.
// Routes are synthesized from it exactly once when the server is built;
// nothing is registered at request time.
type Registry struct {
	types  []EntityType
	bySlug map[string]EntityType
}

func NewRegistry() *Registry {
	return &Registry{bySlug: make(map[string]EntityType)}
}

func (r *Registry) Register(et EntityType) error {
	if et.Name == "" || et.Slug == "" || et.Store == nil {
		return fmt.Errorf("register entity: name, slug, and store are all required")
	}
	if _, dup := r.bySlug[et.Slug]; dup {
		return fmt.Errorf("register entity: slug %q already registered", et.Slug)
	}
	r.bySlug[et.Slug] = et
	r.types = append(r.types, et)
	return nil
}

// Types returns entity types in registration order.
func (r *Registry) Types() []EntityType {
	return r.types
}
