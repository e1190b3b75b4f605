package server

// Route path constants
const (
	// Credential lifecycle
	RouteAuthToken   = "/auth/token"
	RouteAuthRefresh = "/auth/refresh"
	RouteAuthRevoke  = "/auth/revoke"

	// Access credential verification
	RouteOAuth2Introspect = "/oauth2/introspect"
	RouteWellKnownJWKS    = "/.well-known/jwks.json"

	// Identity administration
	RouteAdminUser              = "/admin/users/{id}"
	RouteAdminUserSecurityStamp = "/admin/users/{id}/security-stamp"

	// Operations
	RouteHealth  = "/healthz"
	RouteMetrics = "/metrics"
)

// HeaderInternalAPIKey authenticates trusted callers of the issue route
const HeaderInternalAPIKey = "X-Internal-Api-Key"
