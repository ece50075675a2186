package auth

// Mode selects which credential kinds a route accepts.
type Mode string

const (
	// ModeStrict runs the full decision procedure: bearer token first,
	// then raw init data with structured cross-checking, then a
	// structured-only credential. The default.
	ModeStrict Mode = "strict"
	// ModeToken accepts only a bearer token.
	ModeToken Mode = "jwtOnly"
	// ModePlatform accepts only platform init data.
	ModePlatform Mode = "platformOnly"
	// ModeFlexible accepts a bearer token or a signed raw payload, without
	// the structured-body path or cross-checks. For read-only routes; must
	// not guard state-mutating routes that accept structured credentials.
	ModeFlexible Mode = "flexible"
)

// Requirement is the declarative auth metadata attached to a route at
// registration time. The guard inspects it instead of per-route guard
// implementations.
type Requirement struct {
	// Mode selects the accepted credential kinds (default ModeStrict).
	Mode Mode
	// Roles, when non-empty, is the set of roles allowed on the route.
	Roles []Role
	// SkipLinkageCheck disables the token-path requirement that the
	// account has a linked Telegram identity.
	SkipLinkageCheck bool
}

// mode returns the effective mode, defaulting to ModeStrict.
func (r Requirement) mode() Mode {
	if r.Mode == "" {
		return ModeStrict
	}
	return r.Mode
}
