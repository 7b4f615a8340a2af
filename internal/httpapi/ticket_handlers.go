package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"citypulse.org/internal/authz"
	"citypulse.org/internal/sanitize"
	"citypulse.org/internal/stream"
	"citypulse.org/internal/tickets"
)

type coordinateRequest struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type createTicketRequest struct {
	Title         string             `json:"title"`
	Description   string             `json:"description"`
	Priority      string             `json:"priority"`
	Department    string             `json:"department"`
	Location      *coordinateRequest `json:"location"`
	ReporterEmail string             `json:"reporter_email"`
	Attachment    *sanitize.FileMeta `json:"attachment"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type listTicketsResponse struct {
	Items []tickets.Ticket `json:"items"`
	AsOf  time.Time        `json:"as_of"`
}

func (a *API) handleTicketsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listTickets(w, r)
	case http.MethodPost:
		a.createTicket(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleTicketResource(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/tickets/"), "/")
	if rest == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if rest == "summary" {
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		a.ticketSummary(w, r)
		return
	}

	parts := strings.Split(rest, "/")
	id := sanitize.ID(parts[0], 0)
	if id == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	switch {
	case len(parts) == 1:
		switch r.Method {
		case http.MethodGet:
			a.getTicket(w, r, id)
		case http.MethodPatch:
			a.updateTicket(w, r, id)
		default:
			methodNotAllowed(w, r, http.MethodGet, http.MethodPatch)
		}
	case len(parts) == 2 && parts[1] == "status":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.updateTicketStatus(w, r, id)
	case len(parts) == 2 && parts[1] == "assessment":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.assessTicket(w, r, id)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) listTickets(w http.ResponseWriter, r *http.Request) {
	_, decision, ok := a.requireAction(w, r, authz.ActionListTickets, "")
	if !ok {
		return
	}
	items, err := a.store.ListTickets(r.Context(), scopeFrom(decision))
	if err != nil {
		handleStoreError(w, r, err)
		return
	}
	if items == nil {
		items = []tickets.Ticket{}
	}
	writeJSON(w, http.StatusOK, listTicketsResponse{Items: items, AsOf: time.Now().UTC()})
}

func (a *API) createTicket(w http.ResponseWriter, r *http.Request) {
	var req createTicketRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	department := sanitize.ID(req.Department, 0)
	id, _, ok := a.requireAction(w, r, authz.ActionCreateTicket, department)
	if !ok {
		return
	}

	// Sanitization runs after authorization and before execution, always.
	ticket := tickets.Ticket{
		Title:       strings.TrimSpace(sanitize.Text(req.Title, 200)),
		Description: sanitize.Text(req.Description, 0),
		Department:  department,
	}
	if ticket.Title == "" {
		writeError(w, r, http.StatusBadRequest, "title is required")
		return
	}
	if req.Priority != "" {
		prio, err := tickets.ParsePriority(req.Priority)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "unknown priority")
			return
		}
		ticket.Priority = prio
	}
	if req.Location != nil {
		loc, valid := sanitize.Coordinate(req.Location.Lat, req.Location.Lng)
		if !valid {
			writeError(w, r, http.StatusBadRequest, "invalid coordinates")
			return
		}
		ticket.Location = &loc
	}
	if strings.TrimSpace(req.ReporterEmail) != "" {
		email, valid := sanitize.Email(req.ReporterEmail)
		if !valid {
			writeError(w, r, http.StatusBadRequest, "invalid reporter email")
			return
		}
		ticket.ReporterEmail = email
	}
	if req.Attachment != nil {
		if !sanitize.ValidateFileUpload(*req.Attachment) {
			writeError(w, r, http.StatusBadRequest, "invalid attachment")
			return
		}
		ticket.AttachmentName = req.Attachment.Name
	}

	created, err := a.store.CreateTicket(r.Context(), ticket)
	if err != nil {
		handleStoreError(w, r, err)
		return
	}

	a.audit(r, id, "ticket.create", "ticket", created.ID, nil, created)
	a.publish("ticket.create", created)

	w.Header().Set("Location", "/v1/tickets/"+created.ID)
	writeJSON(w, http.StatusCreated, created)
}

func (a *API) getTicket(w http.ResponseWriter, r *http.Request, ticketID string) {
	current, err := a.store.GetTicket(r.Context(), ticketID)
	if err != nil {
		handleStoreError(w, r, err)
		return
	}
	if _, _, ok := a.requireAction(w, r, authz.ActionReadTicket, current.Department); !ok {
		return
	}
	writeJSON(w, http.StatusOK, current)
}

// updateTicket accepts a partial document. Unlike the other handlers it
// decodes into a free-form object first: only allow-listed keys survive the
// projection, which also drops structural-pollution keys.
func (a *API) updateTicket(w http.ResponseWriter, r *http.Request, ticketID string) {
	var raw map[string]any
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&raw); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	fields := sanitize.Object(raw, []string{"title", "description", "priority", "department", "location"})
	if len(fields) == 0 {
		writeError(w, r, http.StatusBadRequest, "no updatable fields")
		return
	}

	current, err := a.store.GetTicket(r.Context(), ticketID)
	if err != nil {
		handleStoreError(w, r, err)
		return
	}
	id, _, ok := a.requireAction(w, r, authz.ActionUpdateTicket, current.Department)
	if !ok {
		return
	}

	var upd tickets.TicketUpdate
	if v, present := fields["title"]; present {
		s, isString := v.(string)
		title := strings.TrimSpace(sanitize.Text(s, 200))
		if !isString || title == "" {
			writeError(w, r, http.StatusBadRequest, "title is required")
			return
		}
		upd.Title = &title
	}
	if v, present := fields["description"]; present {
		s, isString := v.(string)
		if !isString {
			writeError(w, r, http.StatusBadRequest, "description must be a string")
			return
		}
		desc := sanitize.Text(s, 0)
		upd.Description = &desc
	}
	if v, present := fields["priority"]; present {
		s, isString := v.(string)
		if !isString {
			writeError(w, r, http.StatusBadRequest, "unknown priority")
			return
		}
		prio, err := tickets.ParsePriority(s)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "unknown priority")
			return
		}
		upd.Priority = &prio
	}
	if v, present := fields["department"]; present {
		s, isString := v.(string)
		dept := sanitize.ID(s, 0)
		if !isString || dept == "" {
			writeError(w, r, http.StatusBadRequest, "invalid department")
			return
		}
		// Moving a ticket between departments is itself a cross-department
		// action and is authorized against the destination too.
		if _, _, ok := a.requireAction(w, r, authz.ActionUpdateTicket, dept); !ok {
			return
		}
		upd.Department = &dept
	}
	if v, present := fields["location"]; present {
		obj, isObject := v.(map[string]any)
		if !isObject {
			writeError(w, r, http.StatusBadRequest, "invalid coordinates")
			return
		}
		lat, latOK := obj["lat"].(float64)
		lng, lngOK := obj["lng"].(float64)
		loc, valid := sanitize.Coordinate(lat, lng)
		if !latOK || !lngOK || !valid {
			writeError(w, r, http.StatusBadRequest, "invalid coordinates")
			return
		}
		upd.Location = &loc
	}

	updated, err := a.store.UpdateTicket(r.Context(), ticketID, upd)
	if err != nil {
		handleStoreError(w, r, err)
		return
	}

	a.audit(r, id, "ticket.update", "ticket", updated.ID, current, updated)
	a.publish("ticket.update", updated)
	writeJSON(w, http.StatusOK, updated)
}

func (a *API) updateTicketStatus(w http.ResponseWriter, r *http.Request, ticketID string) {
	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	current, err := a.store.GetTicket(r.Context(), ticketID)
	if err != nil {
		handleStoreError(w, r, err)
		return
	}
	id, _, ok := a.requireAction(w, r, authz.ActionUpdateStatus, current.Department)
	if !ok {
		return
	}

	status, err := tickets.ParseStatus(req.Status)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "unknown status")
		return
	}

	updated, err := a.store.UpdateStatus(r.Context(), ticketID, status)
	if err != nil {
		handleStoreError(w, r, err)
		return
	}

	a.audit(r, id, "ticket.status.update", "ticket", updated.ID,
		map[string]any{"status": current.Status},
		map[string]any{"status": updated.Status})
	a.publish("ticket.status.update", updated)
	writeJSON(w, http.StatusOK, updated)
}

type assessmentResponse struct {
	TicketID          string           `json:"ticket_id"`
	Score             int              `json:"score"`
	SuggestedPriority tickets.Priority `json:"suggested_priority"`
}

// assessTicket runs the keyword triage heuristic. Read-only, so it leaves no
// audit entry, but it carries the ai_assessment throttle class because it is
// the most expensive call the dashboard makes per click.
func (a *API) assessTicket(w http.ResponseWriter, r *http.Request, ticketID string) {
	current, err := a.store.GetTicket(r.Context(), ticketID)
	if err != nil {
		handleStoreError(w, r, err)
		return
	}
	if _, _, ok := a.requireAction(w, r, authz.ActionAssessTicket, current.Department); !ok {
		return
	}

	score := assessmentScore(current)
	writeJSON(w, http.StatusOK, assessmentResponse{
		TicketID:          current.ID,
		Score:             score,
		SuggestedPriority: priorityForScore(score),
	})
}

func (a *API) ticketSummary(w http.ResponseWriter, r *http.Request) {
	_, decision, ok := a.requireAction(w, r, authz.ActionReadSummary, "")
	if !ok {
		return
	}
	summary, err := a.store.Summary(r.Context(), scopeFrom(decision))
	if err != nil {
		handleStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (a *API) publish(action string, t tickets.Ticket) {
	if a.stream == nil {
		return
	}
	loc := a.stream.LocationFor(t.Department)
	if t.Location != nil {
		loc = stream.Location{Name: loc.Name, Lat: t.Location.Lat, Lng: t.Location.Lng}
	}
	a.stream.Publish(stream.TicketEvent{
		Action:     action,
		TicketID:   t.ID,
		Department: t.Department,
		Location:   loc,
		Timestamp:  time.Now().UTC(),
	})
}

var severityKeywords = []string{
	"flood", "gas", "collapse", "outage", "leak", "sinkhole", "injury", "downed",
}

func assessmentScore(t tickets.Ticket) int {
	text := strings.ToLower(t.Title + " " + t.Description)
	score := 10
	for _, kw := range severityKeywords {
		if strings.Contains(text, kw) {
			score += 25
		}
	}
	switch t.Priority {
	case tickets.PriorityCritical:
		score += 30
	case tickets.PriorityHigh:
		score += 15
	case tickets.PriorityMedium:
		score += 5
	}
	if score > 100 {
		score = 100
	}
	return score
}

func priorityForScore(score int) tickets.Priority {
	switch {
	case score >= 75:
		return tickets.PriorityCritical
	case score >= 50:
		return tickets.PriorityHigh
	case score >= 25:
		return tickets.PriorityMedium
	default:
		return tickets.PriorityLow
	}
}
