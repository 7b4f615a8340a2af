// Package httpapi is the request gate: every request passes identity
// verification, throttling, authorization and input sanitization, in that
// order, before any data access. Privileged mutations leave one audit entry.
package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"citypulse.org/internal/audit"
	"citypulse.org/internal/authz"
	"citypulse.org/internal/identity"
	"citypulse.org/internal/obs"
	"citypulse.org/internal/stream"
	"citypulse.org/internal/throttle"
	"citypulse.org/internal/tickets"
)

// ReadyProbe checks readiness (e.g. a DB ping).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Config wires the gate's collaborators.
type Config struct {
	ReadyProbe ReadyProbe
	Version    string
	Env        string // "production" hard-disables the dev token endpoint
	Verifier   identity.Verifier
	Throttle   *throttle.Table
	Audit      audit.Recorder
	Store      tickets.Store
	Stream     *stream.Stream
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string
	production bool

	verifier identity.Verifier
	table    *throttle.Table
	auditor  *audit.Sink
	store    tickets.Store
	stream   *stream.Stream
}

func New(cfg Config) *API {
	a := &API{
		mux:        http.NewServeMux(),
		readyProbe: cfg.ReadyProbe,
		version:    cfg.Version,
		production: strings.EqualFold(cfg.Env, "production"),
		verifier:   cfg.Verifier,
		table:      cfg.Throttle,
		auditor:    audit.NewSink(cfg.Audit),
		store:      cfg.Store,
		stream:     cfg.Stream,
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	// dev credential provisioning (absent in production)
	a.mux.HandleFunc("/v1/auth/token", a.handleAuthToken)

	// dashboard data
	a.mux.HandleFunc("/v1/teams", a.handleTeams)
	a.mux.HandleFunc("/v1/tickets", a.handleTicketsCollection)
	a.mux.HandleFunc("/v1/tickets/", a.handleTicketResource)
	a.mux.HandleFunc("/v1/audit", a.handleAuditList)
	a.mux.HandleFunc("/v1/stream", a.handleStream)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the fully wrapped http.Handler. Order matters: the gate
// (identity, throttle) sits innermost so that everything it rejects is still
// logged and measured.
func (a *API) Handler() http.Handler {
	h := a.withGate(a.mux)
	h = MaxBodyBytes(h, 1<<20)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

// --- basic handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "citypulse-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		obs.SetReady(false)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "citypulse-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// --- gate helpers ---

// requireAction authorizes the request. On denial it writes the coarse
// taxonomy response and returns ok=false; the handler must stop.
func (a *API) requireAction(w http.ResponseWriter, r *http.Request, action authz.Action, resourceDepartment string) (identity.Identity, authz.Decision, bool) {
	id, found := identity.FromContext(r.Context())
	var idp *identity.Identity
	if found {
		idp = &id
	}
	decision := authz.Authorize(idp, action, resourceDepartment)
	if !decision.Allowed {
		obs.IncDenied(decision.Reason)
		if decision.Reason == authz.ReasonUnauthenticated {
			writeError(w, r, http.StatusUnauthorized, "unauthenticated")
		} else {
			writeError(w, r, http.StatusForbidden, "forbidden")
		}
		return identity.Identity{}, decision, false
	}
	return id, decision, true
}

// scopeFrom translates an allow decision into a store scope. The label is
// translated back through the authorizer's bidirectional table; an unknown
// label stays an empty scope.
func scopeFrom(d authz.Decision) tickets.Scope {
	if !d.Scoped {
		return tickets.Scope{Unrestricted: true}
	}
	if d.Department == "" {
		return tickets.Scope{}
	}
	key, ok := authz.DepartmentKey(d.Department)
	if !ok {
		return tickets.Scope{}
	}
	return tickets.Scope{Department: key}
}

// audit records a privileged mutation after the primary persistence
// succeeded. Actor fields come from the verified identity only.
func (a *API) audit(r *http.Request, id identity.Identity, action, targetType, targetID string, oldValue, newValue any) {
	entry := audit.Entry{
		ActorID:    id.Subject,
		ActorName:  id.Name,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Origin:     clientIP(r),
	}
	if oldValue != nil {
		if data, err := json.Marshal(oldValue); err == nil {
			entry.OldValue = data
		}
	}
	if newValue != nil {
		if data, err := json.Marshal(newValue); err == nil {
			entry.NewValue = data
		}
	}
	a.auditor.Append(r.Context(), entry)
}

// --- shared helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError keeps the body minimal: the coarse taxonomy message and the
// request id, nothing about which internal check failed.
func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

func handleStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, tickets.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, tickets.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
