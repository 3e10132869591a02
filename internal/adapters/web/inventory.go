package web

import (
	"net/http"
	"strconv"
	"strings"

	"inventory-tracker/internal/app"
	"inventory-tracker/internal/core"
)

// listInventory handles GET /api/inventory?patient=&drug=&type=&from=&to=&limit=.
func (h *Handler) listInventory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := core.InventoryFilter{
		PatientName:   q.Get("patient"),
		DrugItemName:  q.Get("drug"),
		InventoryType: q.Get("type"),
	}
	var ok bool
	if filter.DateFrom, ok = queryDate(w, r, "from"); !ok {
		return
	}
	if filter.DateTo, ok = queryDate(w, r, "to"); !ok {
		return
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil || limit < 0 {
		writeError(w, r, "limit must be a non-negative integer", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	filter.Limit = limit

	res, err := h.svc.ListInventory(r.Context(), filter)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// createInventory handles POST /api/inventory.
func (h *Handler) createInventory(w http.ResponseWriter, r *http.Request) {
	var input core.InventoryInput
	if !decodeJSON(w, r, &input) {
		return
	}
	res, err := h.svc.CreateInventory(r.Context(), app.InventoryRequest{Input: input, User: username(r)})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, res)
}

// getInventory handles GET /api/inventory/{id}.
func (h *Handler) getInventory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	res, err := h.svc.GetInventory(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// updateInventory handles PUT /api/inventory/{id}.
func (h *Handler) updateInventory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var input core.InventoryInput
	if !decodeJSON(w, r, &input) {
		return
	}
	res, err := h.svc.UpdateInventory(r.Context(), id, app.InventoryRequest{Input: input, User: username(r)})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// deleteInventory handles DELETE /api/inventory/{id} (admin).
func (h *Handler) deleteInventory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.DeleteInventory(r.Context(), id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// inventoryStats handles GET /api/inventory/stats.
func (h *Handler) inventoryStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.InventoryStats(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, stats)
}

// lookupBarcode handles GET /api/inventory/lookup?code=...&type=Inventory+Number.
// An unmatched code answers 200 with found=false; the scan is still logged.
func (h *Handler) lookupBarcode(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := h.svc.LookupBarcode(r.Context(), app.LookupRequest{
		Code:      q.Get("code"),
		CodeType:  core.CodeType(q.Get("type")),
		ScannedBy: username(r),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// searchInventory handles GET /api/inventory/search?q=...&field=Lot+Number.
func (h *Handler) searchInventory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := h.svc.SearchInventory(r.Context(), q.Get("q"), core.SearchField(q.Get("field")))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// scanHistory handles GET /api/inventory/scans?since=YYYY-MM-DD&user=&found=true.
func (h *Handler) scanHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := core.ScanFilter{ScannedBy: q.Get("user")}
	since, ok := queryDate(w, r, "since")
	if !ok {
		return
	}
	if since != nil {
		filter.Since = since.Time
	}
	if raw := q.Get("found"); raw != "" {
		found, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, r, "found must be true or false", "BAD_REQUEST", http.StatusBadRequest)
			return
		}
		filter.Found = &found
	}
	res, err := h.svc.ScanHistory(r.Context(), filter)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// recordScanAction handles POST /api/inventory/{id}/scan-action with {"action": "..."}.
func (h *Handler) recordScanAction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Action string `json:"action"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Action) == "" {
		writeError(w, r, "action is required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	if err := h.svc.RecordScanAction(r.Context(), id, username(r), strings.TrimSpace(req.Action)); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// queryDate parses an optional YYYY-MM-DD query parameter, writing a 400 on failure.
func queryDate(w http.ResponseWriter, r *http.Request, name string) (*core.Date, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, true
	}
	d, err := core.ParseDate(raw)
	if err != nil {
		writeError(w, r, name+": "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return nil, false
	}
	return &d, true
}
