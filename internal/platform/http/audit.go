package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/farmaline-dev/farmaline/internal/platform/domain"
	"github.com/farmaline-dev/farmaline/internal/platform/store"
	"github.com/farmaline-dev/farmaline/pkg/httpx"
	"github.com/farmaline-dev/farmaline/pkg/slogx"
)

// AuditHandler serves GET /v1/audit for administrators.
type AuditHandler struct {
	Store store.Store
}

// AuditEntry is the wire shape of one audit record.
type AuditEntry struct {
	ID          string    `json:"id"`
	IdentityID  *int64    `json:"identity_id,omitempty"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Role        string    `json:"role"`
	Action      string    `json:"action"`
	Description string    `json:"description"`
	IP          string    `json:"ip"`
	CreatedAt   time.Time `json:"created_at"`
}

// HandleList handles GET /v1/audit. Optional query parameters: identity_id,
// from and to as RFC 3339 timestamps, and limit.
func (h *AuditHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var query domain.AuditQuery

	if raw := r.URL.Query().Get("identity_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			ErrInvalidRequest.WriteError(w)
			return
		}
		query.IdentityID = &id
	}

	if raw := r.URL.Query().Get("from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			ErrInvalidRequest.WriteError(w)
			return
		}
		query.From = from
	}

	if raw := r.URL.Query().Get("to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			ErrInvalidRequest.WriteError(w)
			return
		}
		query.To = to
	}

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			ErrInvalidRequest.WriteError(w)
			return
		}
		query.Limit = limit
	}

	records, err := h.Store.Audit().List(ctx, query)
	if err != nil {
		log.Error("failed to list audit records", "err", err)
		ErrServerError.WriteError(w)
		return
	}

	entries := make([]AuditEntry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, AuditEntry{
			ID:          rec.ID.String(),
			IdentityID:  rec.IdentityID,
			Name:        rec.Name,
			Email:       rec.Email,
			Role:        rec.Role,
			Action:      rec.Action,
			Description: rec.Description,
			IP:          rec.IP,
			CreatedAt:   rec.CreatedAt,
		})
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{"records": entries})
}
