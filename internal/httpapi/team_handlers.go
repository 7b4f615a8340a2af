package httpapi

import (
	"net/http"
	"time"

	"citypulse.org/internal/authz"
	"citypulse.org/internal/tickets"
)

type listTeamsResponse struct {
	Items []tickets.Team `json:"items"`
	AsOf  time.Time      `json:"as_of"`
}

func (a *API) handleTeams(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	_, decision, ok := a.requireAction(w, r, authz.ActionListTeams, "")
	if !ok {
		return
	}

	items, err := a.store.ListTeams(r.Context(), scopeFrom(decision))
	if err != nil {
		handleStoreError(w, r, err)
		return
	}
	if items == nil {
		items = []tickets.Team{}
	}
	writeJSON(w, http.StatusOK, listTeamsResponse{
		Items: items,
		AsOf:  time.Now().UTC(),
	})
}
