// internal/auth/middleware/attach_role.go
package auth

import (
	"database/sql"
	"net/http"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/mind-engage/mindengage-grades/internal/rbac"
)

// AttachRoleFromDB replaces the token's role with the one stored for the
// subject, so a demoted user loses access before the token expires.
// Subjects without a row keep an admin claim; other claims are kept only
// when allowClaimFallback is set (dev/offline).
func AttachRoleFromDB(users *UserStore, allowClaimFallback bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			sub := SubjectFromContext(ctx)
			claimRole := rbac.RoleFromContext(ctx) // set by JWTMiddleware

			role, err := users.Role(ctx, sub)
			switch {
			case err == nil && role != "":
				next.ServeHTTP(w, r.WithContext(rbac.WithRole(ctx, role)))
			case errors.Is(err, sql.ErrNoRows):
				if claimRole == rbac.RoleAdmin || (allowClaimFallback && claimRole != "") {
					next.ServeHTTP(w, r)
					return
				}
				http.Error(w, "forbidden", http.StatusForbidden)
			default:
				glog.Warningf("attach role for %q: %v", sub, err)
				if allowClaimFallback && claimRole != "" {
					next.ServeHTTP(w, r)
					return
				}
				http.Error(w, "forbidden", http.StatusForbidden)
			}
		})
	}
}
