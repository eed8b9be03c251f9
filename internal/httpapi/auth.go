package httpapi

import (
	"context"
	"net/http"
	"strings"

	"memorykeep/internal/registry"
)

const bearerPrefix = "Bearer "

type tenantContextKey struct{}

// TenantFrom returns the tenant bound to a request context by the access gate.
func TenantFrom(ctx context.Context) (registry.Tenant, bool) {
	tenant, ok := ctx.Value(tenantContextKey{}).(registry.Tenant)
	return tenant, ok
}

// requireCredential is the access gate: it validates the bearer credential
// against the registry and binds the resolved tenant to the request context.
//
// Rejections happen before any store access. The binding is request-scoped;
// concurrent requests from different tenants stay independent.
func (s *Server) requireCredential(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, bearerPrefix) {
			s.respondError(w, http.StatusUnauthorized, "Missing or invalid Authorization header")
			return
		}

		credential := strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
		tenant, ok := s.registry.Lookup(credential)
		if !ok {
			s.respondError(w, http.StatusForbidden, "Unauthorized")
			return
		}

		ctx := context.WithValue(r.Context(), tenantContextKey{}, tenant)
		next(w, r.WithContext(ctx))
	}
}
