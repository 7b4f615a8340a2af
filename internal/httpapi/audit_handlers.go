package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"citypulse.org/internal/audit"
	"citypulse.org/internal/authz"
	"citypulse.org/internal/sanitize"
)

type auditListResponse struct {
	Items []audit.Entry `json:"items"`
	AsOf  time.Time     `json:"as_of"`
}

// handleAuditList serves the audit trail, newest first. Only super_admin can
// read it; everyone else gets the same 403 as any other forbidden action.
func (a *API) handleAuditList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if _, _, ok := a.requireAction(w, r, authz.ActionReadAudit, ""); !ok {
		return
	}

	// Action names carry dots ("ticket.create"), so these are not identifiers
	// in the sanitize.ID sense. They only ever hit parameterized equality
	// filters; trimming and bounding is enough.
	q := r.URL.Query()
	filter := audit.Filter{
		Action:     sanitize.Text(strings.TrimSpace(q.Get("action")), sanitize.MaxIDLength),
		TargetType: sanitize.Text(strings.TrimSpace(q.Get("target_type")), sanitize.MaxIDLength),
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "limit must be an integer")
			return
		}
		filter.Limit = n
	}

	items, err := a.auditor.List(r.Context(), filter)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	if items == nil {
		items = []audit.Entry{}
	}
	writeJSON(w, http.StatusOK, auditListResponse{Items: items, AsOf: time.Now().UTC()})
}
