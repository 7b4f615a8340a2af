package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"citypulse.org/internal/authz"
	"citypulse.org/internal/identity"
	"citypulse.org/internal/obs"
	"citypulse.org/internal/throttle"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

// Every path is statically public or protected; there is no per-request
// override. Probes and scrapes are also exempt from throttling.
var publicPaths = map[string]struct{}{
	"/healthz":       {},
	"/readyz":        {},
	"/metrics":       {},
	"/v1/info":       {},
	"/v1/auth/token": {},
}

var unthrottledPaths = map[string]struct{}{
	"/healthz": {},
	"/readyz":  {},
	"/metrics": {},
}

func isPublicPath(path string) bool {
	_, ok := publicPaths[path]
	return ok
}

// throttleClass maps a request to its endpoint class.
func throttleClass(r *http.Request) string {
	path := r.URL.Path
	switch {
	case path == "/v1/auth/token":
		return throttle.ClassAuth
	case path == "/v1/tickets" && r.Method == http.MethodPost:
		return throttle.ClassTicketCreate
	case strings.HasPrefix(path, "/v1/tickets/") && strings.HasSuffix(path, "/assessment"):
		return throttle.ClassAIAssessment
	default:
		return throttle.ClassDefault
	}
}

// withGate runs the fixed front half of the request state machine: verify
// identity, then throttle. Authorization and sanitization happen in the
// handlers, always in that order; no stage runs after an earlier one rejects.
func (a *API) withGate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		var subject string
		if !isPublicPath(r.URL.Path) {
			token, err := extractBearerToken(r.Header.Get(authHeader))
			if err != nil {
				obs.IncDenied(authz.ReasonUnauthenticated)
				writeError(w, r, http.StatusUnauthorized, "unauthenticated")
				return
			}
			id, err := a.verifier.Verify(r.Context(), token)
			if err != nil {
				if errors.Is(err, identity.ErrInvalidToken) {
					obs.IncDenied(authz.ReasonUnauthenticated)
					writeError(w, r, http.StatusUnauthorized, "unauthenticated")
				} else {
					writeError(w, r, http.StatusBadGateway, "identity provider unavailable")
				}
				return
			}
			subject = id.Subject
			r = r.WithContext(identity.ContextWithIdentity(r.Context(), id))
		}

		if _, exempt := unthrottledPaths[r.URL.Path]; !exempt {
			if !a.checkThrottle(w, r, subject) {
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

// checkThrottle consults the table and surfaces the remaining quota and the
// reset time as response metadata on every throttled endpoint. A denial
// carries Retry-After. Quota consumed by a later-cancelled request is not
// refunded; throttling is pessimistic.
func (a *API) checkThrottle(w http.ResponseWriter, r *http.Request, subject string) bool {
	if a.table == nil {
		return true
	}
	class := throttleClass(r)
	cfg := throttle.RuleFor(class)
	key := throttle.Key(clientIP(r), subject, class)
	res := a.table.Check(key, cfg)

	resetSeconds := int(res.ResetIn.Seconds() + 0.5)
	if resetSeconds < 1 {
		resetSeconds = 1
	}
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.Itoa(resetSeconds))

	if !res.Allowed {
		obs.IncRateLimited(class)
		w.Header().Set("Retry-After", strconv.Itoa(resetSeconds))
		writeError(w, r, http.StatusTooManyRequests, "rate limit exceeded")
		return false
	}
	return true
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}
