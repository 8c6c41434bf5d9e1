package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/farmaline-dev/farmaline/internal/platform/store"
	"github.com/farmaline-dev/farmaline/pkg/httpx"
	"github.com/farmaline-dev/farmaline/pkg/slogx"
)

// AlertsHandler serves GET /v1/alerts for administrators.
type AlertsHandler struct {
	Store store.Store
}

// AlertEntry is the wire shape of one security alert.
type AlertEntry struct {
	ID         string    `json:"id"`
	Rule       string    `json:"rule"`
	IdentityID *int64    `json:"identity_id,omitempty"`
	IP         string    `json:"ip,omitempty"`
	Severity   string    `json:"severity"`
	Detail     string    `json:"detail"`
	CreatedAt  time.Time `json:"created_at"`
}

// HandleList handles GET /v1/alerts. Accepts an optional limit parameter.
func (h *AlertsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			ErrInvalidRequest.WriteError(w)
			return
		}
		limit = n
	}

	alerts, err := h.Store.Alerts().ListRecent(ctx, limit)
	if err != nil {
		log.Error("failed to list alerts", "err", err)
		ErrServerError.WriteError(w)
		return
	}

	entries := make([]AlertEntry, 0, len(alerts))
	for _, a := range alerts {
		entries = append(entries, AlertEntry{
			ID:         a.ID.String(),
			Rule:       a.Rule,
			IdentityID: a.IdentityID,
			IP:         a.IP,
			Severity:   a.Severity,
			Detail:     a.Detail,
			CreatedAt:  a.CreatedAt,
		})
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{"alerts": entries})
}
