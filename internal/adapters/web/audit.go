package web

import (
	"net/http"
	"strconv"
	"time"

	"inventory-tracker/internal/app"
	"inventory-tracker/internal/core"
)

// listAudit handles GET /api/audit?from=&to=&action=&user=&record_id=&table=&q= (admin).
func (h *Handler) listAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := core.AuditFilter{
		Action:    q.Get("action"),
		User:      q.Get("user"),
		TableName: q.Get("table"),
		Search:    q.Get("q"),
	}
	var ok bool
	if filter.From, filter.To, ok = dateWindow(w, r); !ok {
		return
	}
	if raw := q.Get("record_id"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, r, "record_id must be an integer", "BAD_REQUEST", http.StatusBadRequest)
			return
		}
		filter.RecordID = &id
	}
	res, err := h.svc.AuditLog(r.Context(), filter)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// auditStats handles GET /api/audit/stats?from=&to= (admin).
func (h *Handler) auditStats(w http.ResponseWriter, r *http.Request) {
	from, to, ok := dateWindow(w, r)
	if !ok {
		return
	}
	stats, err := h.svc.AuditStats(r.Context(), app.AuditStatsRequest{From: from, To: to})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, stats)
}

// purgeAudit handles DELETE /api/audit?older_than_days=N (admin).
func (h *Handler) purgeAudit(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "older_than_days", 0)
	if err != nil {
		writeError(w, r, "older_than_days must be an integer", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	n, err := h.svc.PurgeAuditLog(r.Context(), days)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, map[string]int64{"deleted": n})
}

func dateWindow(w http.ResponseWriter, r *http.Request) (from, to time.Time, ok bool) {
	f, ok := queryDate(w, r, "from")
	if !ok {
		return from, to, false
	}
	t, ok := queryDate(w, r, "to")
	if !ok {
		return from, to, false
	}
	if f != nil {
		from = f.Time
	}
	if t != nil {
		to = t.Time
	}
	return from, to, true
}
