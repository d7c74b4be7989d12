package auth

import (
	"net/http"
	"slices"
)

type Permission string

const (
	PermQuery    Permission = "news:query"
	PermIngest   Permission = "news:ingest"
	PermWildcard Permission = "*"
)

type Role string

const (
	RoleReader Role = "reader"
	RoleEditor Role = "editor"
	RoleAdmin  Role = "admin"
)

var rolePermissions = map[Role][]Permission{
	RoleReader: {PermQuery},
	RoleEditor: {PermQuery, PermIngest},
	RoleAdmin:  {PermWildcard},
}

func (r Role) Can(perm Permission) bool {
	perms := rolePermissions[r]
	return slices.Contains(perms, PermWildcard) || slices.Contains(perms, perm)
}

// RequirePermission must run after JWTMiddleware.Authenticate.
func RequirePermission(perm Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFromContext(r.Context())
			if claims == nil {
				writeError(w, http.StatusForbidden, "no claims in context")
				return
			}
			if !Role(claims.Role).Can(perm) {
				writeError(w, http.StatusForbidden, "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
