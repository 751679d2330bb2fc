package auth

import "strings"

// Permission codes follow the {verb}_{typename} convention, derived purely
// from the entity type name so that gates compose automatically when new
// entity types are registered.

func PermissionCode(verb, typeName string) string {
	return verb + "_" + strings.ToLower(typeName)
}

func ViewCode(typeName string) string   { return PermissionCode("view", typeName) }
func ChangeCode(typeName string) string { return PermissionCode("change", typeName) }
func DeleteCode(typeName string) string { return PermissionCode("delete", typeName) }

// Guard accepts or rejects a principal for one permission code.
type Guard func(p *Principal) error

// Require returns a Guard for the given permission code. API-key principals
// pass unconditionally; user principals pass iff they hold the code.
func Require(code string) Guard {
	return func(p *Principal) error {
		if p.HasPermission(code) {
			return nil
		}
		return &ForbiddenError{Code: code}
	}
}
