package httpapi

import (
	"net/http"
	"strings"
	"time"

	"citypulse.org/internal/identity"
	"citypulse.org/internal/sanitize"
)

type tokenRequest struct {
	Subject    string `json:"subject"`
	Name       string `json:"name"`
	Role       string `json:"role"`
	Department string `json:"department"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

const tokenTTL = 15 * time.Minute

// handleAuthToken issues development tokens. It can provision credentials
// backed by whatever secret the environment carries, so it is hard-disabled
// in production regardless of identity; the path simply does not exist there.
func (a *API) handleAuthToken(w http.ResponseWriter, r *http.Request) {
	if a.production {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req tokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	subject := sanitize.ID(req.Subject, 0)
	if subject == "" {
		writeError(w, r, http.StatusBadRequest, "subject is required")
		return
	}
	role, err := identity.ParseRole(req.Role)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "unknown role")
		return
	}
	department := sanitize.ID(req.Department, 0)
	name := sanitize.Text(strings.TrimSpace(req.Name), 200)

	token, err := identity.GenerateToken(subject, name, role, department, tokenTTL)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "token generation failed")
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		Token:     token,
		ExpiresAt: time.Now().UTC().Add(tokenTTL),
	})
}
