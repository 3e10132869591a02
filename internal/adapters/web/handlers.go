package web

import (
	"net/http"
	"strconv"

	"inventory-tracker/internal/app"
	"inventory-tracker/internal/core"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Options configures NewHandler.
type Options struct {
	JWTSecret      string
	Issuer         string // when set, tokens must carry this iss claim
	AllowedOrigins string // comma-separated; empty disables CORS
}

// Handler holds the ApplicationService and the chi router.
type Handler struct {
	svc       app.ApplicationService
	router    chi.Router
	jwtSecret []byte
	issuer    string
	logger    *zap.Logger
}

const (
	jsonBodyLimit   = 1 << 20
	uploadBodyLimit = core.MaxDocumentSize + 1<<20
)

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc app.ApplicationService, opts Options, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{
		svc:       svc,
		jwtSecret: []byte(opts.JWTSecret),
		issuer:    opts.Issuer,
		logger:    logger.Named("web"),
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger(h.logger))
	r.Use(Recoverer(h.logger))
	r.Use(CORS(opts.AllowedOrigins))

	r.Get("/api/health", h.health)

	r.Group(func(r chi.Router) {
		r.Use(h.RequireAuth)

		// Multipart uploads carry their own, larger limit.
		r.With(RequestBodyLimit(uploadBodyLimit)).Post("/api/inventory/{id}/documents", h.uploadDocument)
		r.With(RequestBodyLimit(uploadBodyLimit)).Post("/api/documents", h.uploadDocument)

		r.Group(func(r chi.Router) {
			r.Use(RequestBodyLimit(jsonBodyLimit))

			r.Get("/api/auth/me", h.me)

			// ── Alerts ────────────────────────────────────────────────────────────
			r.Get("/api/alerts", h.listAlerts)
			r.Get("/api/alerts/summary", h.alertSummary)
			r.Post("/api/alerts/acknowledge", h.acknowledgeAlerts)
			r.Post("/api/alerts/notify", h.sendNotifications)
			r.Post("/api/alerts/notify/test", h.sendTestNotification)
			r.Get("/api/alerts/settings", h.getSettings)

			// ── Inventory ─────────────────────────────────────────────────────────
			r.Get("/api/inventory", h.listInventory)
			r.Post("/api/inventory", h.createInventory)
			r.Get("/api/inventory/stats", h.inventoryStats)
			r.Get("/api/inventory/lookup", h.lookupBarcode)
			r.Get("/api/inventory/search", h.searchInventory)
			r.Get("/api/inventory/scans", h.scanHistory)
			r.Get("/api/inventory/{id}", h.getInventory)
			r.Put("/api/inventory/{id}", h.updateInventory)
			r.Post("/api/inventory/{id}/scan-action", h.recordScanAction)
			r.Get("/api/inventory/{id}/documents", h.listDocuments)

			// ── Documents ─────────────────────────────────────────────────────────
			r.Get("/api/documents", h.listDocuments)
			r.Get("/api/documents/{docID}/content", h.downloadDocument)

			// ── Admin only ────────────────────────────────────────────────────────
			r.Group(func(r chi.Router) {
				r.Use(RequireRole(RoleAdmin))
				r.Put("/api/alerts/settings", h.saveSettings)
				r.Get("/api/alerts/settings/history", h.settingsHistory)
				r.Delete("/api/inventory/{id}", h.deleteInventory)
				r.Get("/api/audit", h.listAudit)
				r.Get("/api/audit/stats", h.auditStats)
				r.Delete("/api/audit", h.purgeAudit)
			})
		})
	})

	h.router = r
	return r
}

// health reports liveness. It does not touch the database.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// pathID parses a positive integer URL parameter, writing a 400 on failure.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || id <= 0 {
		writeError(w, r, "invalid "+name, "BAD_REQUEST", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// queryInt reads an optional integer query parameter. Absent yields def.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
