package auth

import (
	"encoding/json"
	"net/http"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

// Admin is the bootstrap account configured outside the users table.
type Admin struct {
	Username string
	PassHash string // bcrypt
}

// POST /auth/login  { "username": "...", "password": "..." }
func LoginHandler(a *AuthService, admin Admin, users *UserStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}

		sub, role := "", ""
		if admin.Username != "" && req.Username == admin.Username {
			if bcrypt.CompareHashAndPassword([]byte(admin.PassHash), []byte(req.Password)) == nil {
				sub, role = admin.Username, "admin"
			}
		} else if users != nil {
			u, err := users.Authenticate(r.Context(), req.Username, req.Password)
			switch {
			case err == nil:
				sub, role = u.ID, u.Role
			case !errors.Is(err, ErrInvalidCredentials):
				glog.Errorf("login %q: %v", req.Username, err)
				http.Error(w, "login failed", http.StatusInternalServerError)
				return
			}
		}
		if sub == "" {
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		tok, err := a.IssueJWT(sub, role)
		if err != nil {
			http.Error(w, "issue token", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": tok, "role": role, "sub": sub})
	}
}
