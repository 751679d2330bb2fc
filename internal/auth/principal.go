package auth

// PrincipalKind discriminates the two credential schemes.
type PrincipalKind string

const (
	KindUser   PrincipalKind = "user"
	KindAPIKey PrincipalKind = "api_key"
)

// Principal is the authenticated identity attached to a request. It is built
// once by the Verifier and immutable for the request's lifetime; it is never
// persisted.
type Principal struct {
	Kind PrincipalKind

	// User principal fields (Kind == KindUser).
	UserID      string
	Username    string
	permissions map[string]struct{}

	// API key principal fields (Kind == KindAPIKey).
	KeyName string
}

// NewUserPrincipal builds a principal from a locally resolved account and its
// effective permission codes.
func NewUserPrincipal(userID, username string, permissions []string) *Principal {
	set := make(map[string]struct{}, len(permissions))
	for _, p := range permissions {
		set[p] = struct{}{}
	}
	return &Principal{
		Kind:        KindUser,
		UserID:      userID,
		Username:    username,
		permissions: set,
	}
}

// NewAPIKeyPrincipal builds an unrestricted principal for a valid API key.
// API keys are trusted service-to-service credentials and pass every
// permission check.
func NewAPIKeyPrincipal(keyName string) *Principal {
	return &Principal{Kind: KindAPIKey, KeyName: keyName}
}

// HasPermission reports whether the principal holds the permission code.
// API-key principals always do.
func (p *Principal) HasPermission(code string) bool {
	if p == nil {
		return false
	}
	if p.Kind == KindAPIKey {
		return true
	}
	_, ok := p.permissions[code]
	return ok
}

// Label names the principal for audit change reasons.
func (p *Principal) Label() string {
	if p.Kind == KindAPIKey {
		return "API Key " + p.KeyName
	}
	return p.Username
}
