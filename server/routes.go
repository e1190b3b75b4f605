package server

import (
	"net/http"
)

func (s *Server) initRoutes() {
	// Credential lifecycle
	s.RegisterRouteHandler("POST "+RouteAuthToken, ChainMiddleware(s.IssueToken(), s.APIMiddleware(s.RequireInternalAPIKey)...))
	s.RegisterRouteHandler("POST "+RouteAuthRefresh, ChainMiddleware(s.RefreshToken(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAuthRevoke, ChainMiddleware(s.RevokeToken(), s.APIMiddleware()...))

	// Access credential verification
	s.RegisterRouteHandler("POST "+RouteOAuth2Introspect, ChainMiddleware(s.Introspect(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteWellKnownJWKS, ChainMiddleware(s.JWKS(), s.APIMiddleware()...))

	// Identity administration
	if s.admin != nil {
		internal := s.APIMiddleware(s.RequireInternalAPIKey)
		s.RegisterRouteHandler("GET "+RouteAdminUser, ChainMiddleware(s.AdminGetUser(), internal...))
		s.RegisterRouteHandler("PUT "+RouteAdminUser, ChainMiddleware(s.AdminPutUser(), internal...))
		s.RegisterRouteHandler("DELETE "+RouteAdminUser, ChainMiddleware(s.AdminDeleteUser(), internal...))
		s.RegisterRouteHandler("POST "+RouteAdminUserSecurityStamp, ChainMiddleware(s.AdminResetSecurityStamp(), internal...))
	}

	// CORS preflight for every route
	s.RegisterRouteHandler("OPTIONS /", ChainMiddleware(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}, s.APIMiddleware()...))

	s.RegisterRouteFunc("GET "+RouteHealth, s.Health())
	if s.metrics != nil {
		s.RegisterRouteHandler("GET "+RouteMetrics, s.metrics)
	}
}
