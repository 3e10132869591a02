package web

import (
	"errors"
	"net/http"
	"strings"

	"inventory-tracker/internal/app"
	"inventory-tracker/internal/core"
)

// listAlerts handles GET /api/alerts?type=Expired&severity=Critical.
// type and severity may repeat or hold comma-separated values.
func (h *Handler) listAlerts(w http.ResponseWriter, r *http.Request) {
	var q app.AlertQuery
	for _, t := range queryList(r, "type") {
		q.Types = append(q.Types, core.AlertType(t))
	}
	for _, s := range queryList(r, "severity") {
		q.Severities = append(q.Severities, core.Severity(s))
	}
	res, err := h.svc.ListAlerts(r.Context(), q)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// alertSummary handles GET /api/alerts/summary.
func (h *Handler) alertSummary(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.AlertSummary(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// acknowledgeAlerts handles POST /api/alerts/acknowledge. A partial failure answers
// 207 with the per-id result so the caller can see what was applied.
func (h *Handler) acknowledgeAlerts(w http.ResponseWriter, r *http.Request) {
	var req app.AcknowledgeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.User = username(r)

	res, err := h.svc.AcknowledgeAlerts(r.Context(), req)
	switch {
	case errors.Is(err, core.ErrPartialAcknowledgment) && res != nil:
		writeJSONStatus(w, http.StatusMultiStatus, res)
	case err != nil:
		h.writeServiceError(w, r, err)
	default:
		writeJSON(w, res)
	}
}

// sendNotifications handles POST /api/alerts/notify.
func (h *Handler) sendNotifications(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.SendAlertNotifications(r.Context())
	h.writeDispatch(w, r, report, err)
}

// sendTestNotification handles POST /api/alerts/notify/test.
func (h *Handler) sendTestNotification(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.SendTestNotification(r.Context(), username(r))
	h.writeDispatch(w, r, report, err)
}

type dispatchResponse struct {
	Report    *core.DispatchReport `json:"report"`
	Error     string               `json:"error,omitempty"`
	Code      string               `json:"code,omitempty"`
	RequestID string               `json:"request_id,omitempty"`
}

// writeDispatch answers 502 with the partial report when some recipients failed.
func (h *Handler) writeDispatch(w http.ResponseWriter, r *http.Request, report *core.DispatchReport, err error) {
	var derr *core.DispatchError
	if errors.As(err, &derr) && report != nil {
		writeJSONStatus(w, http.StatusBadGateway, dispatchResponse{
			Report:    report,
			Error:     derr.Error(),
			Code:      "DISPATCH_FAILED",
			RequestID: requestIDFromContext(r.Context()),
		})
		return
	}
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, dispatchResponse{Report: report})
}

// getSettings handles GET /api/alerts/settings.
func (h *Handler) getSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.svc.GetAlertSettings(r.Context()))
}

// saveSettings handles PUT /api/alerts/settings (admin).
func (h *Handler) saveSettings(w http.ResponseWriter, r *http.Request) {
	var settings core.AlertSettings
	if !decodeJSON(w, r, &settings) {
		return
	}
	version, err := h.svc.SaveAlertSettings(r.Context(), app.SaveSettingsRequest{Settings: settings, UpdatedBy: username(r)})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, version)
}

// settingsHistory handles GET /api/alerts/settings/history?limit=N (admin).
func (h *Handler) settingsHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, r, "limit must be an integer", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	versions, err := h.svc.AlertSettingsHistory(r.Context(), limit)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if versions == nil {
		versions = []core.SettingsVersion{}
	}
	writeJSON(w, versions)
}

func queryList(r *http.Request, name string) []string {
	var out []string
	for _, v := range r.URL.Query()[name] {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
