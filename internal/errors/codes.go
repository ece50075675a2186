package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Authentication error kinds. These are the stable identifiers logged and
// returned for every authentication decision; clients may branch on them
// but the accompanying message is always generic.
const (
	// ErrCodeMissingCredential: no bearer token, raw init data, or
	// structured credential present on the request.
	ErrCodeMissingCredential ErrorCode = "missing_credential"
	// ErrCodeInvalidPlatformSignature: init-data HMAC did not verify.
	ErrCodeInvalidPlatformSignature ErrorCode = "invalid_platform_signature"
	// ErrCodeStalePayload: auth_date older than the freshness window.
	ErrCodeStalePayload ErrorCode = "stale_payload"
	// ErrCodePayloadMismatch: raw and structured credentials in the same
	// request resolved to different identity, timestamp, or signature.
	ErrCodePayloadMismatch ErrorCode = "payload_mismatch"
	// ErrCodeInvalidOrExpiredToken: bearer token rejected by the issuer.
	ErrCodeInvalidOrExpiredToken ErrorCode = "invalid_or_expired_token"
	// ErrCodeAccountInactive: token subject not found or deactivated.
	ErrCodeAccountInactive ErrorCode = "account_inactive"
	// ErrCodeMissingPlatformLinkage: token-authenticated account has no
	// linked Telegram identity and the route did not opt out of the check.
	ErrCodeMissingPlatformLinkage ErrorCode = "missing_platform_linkage"
	// ErrCodeInsufficientRole: authenticated but role not in the route's
	// required set. The only authorization (403) kind.
	ErrCodeInsufficientRole ErrorCode = "insufficient_role"
)

// Resource errors
const (
	// ErrCodeNotFound indicates the requested resource was not found.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeConflict indicates a conflict with the current state of the resource.
	ErrCodeConflict ErrorCode = "CONFLICT"
	// ErrCodeRateLimited indicates the caller exceeded a request rate limit.
	ErrCodeRateLimited ErrorCode = "RATE_LIMITED"
)

// Validation errors
const (
	// ErrCodeInvalidInput indicates the input is invalid.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
)

// Internal errors
const (
	// ErrCodeInternal indicates an internal server error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
	// ErrCodeDatabaseError indicates a database error.
	ErrCodeDatabaseError ErrorCode = "DATABASE_ERROR"
)

var authKinds = map[ErrorCode]bool{
	ErrCodeMissingCredential:        true,
	ErrCodeInvalidPlatformSignature: true,
	ErrCodeStalePayload:             true,
	ErrCodePayloadMismatch:          true,
	ErrCodeInvalidOrExpiredToken:    true,
	ErrCodeAccountInactive:          true,
	ErrCodeMissingPlatformLinkage:   true,
	ErrCodeInsufficientRole:         true,
}

// IsAuthKind returns true if the code belongs to the authentication /
// authorization taxonomy.
func IsAuthKind(code ErrorCode) bool {
	return authKinds[code]
}
