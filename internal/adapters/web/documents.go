package web

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"inventory-tracker/internal/core"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// uploadDocument handles multipart POST /api/inventory/{id}/documents and /api/documents.
// The form carries a "file" part and an optional "description".
func (h *Handler) uploadDocument(w http.ResponseWriter, r *http.Request) {
	var inventoryID *int
	if chi.URLParam(r, "id") != "" {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		inventoryID = &id
	}

	if err := r.ParseMultipartForm(8 << 20); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "file too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return
		}
		writeError(w, r, "invalid multipart form: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, "file is required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	defer file.Close()

	doc, err := h.svc.UploadDocument(r.Context(), core.DocumentUpload{
		Filename:    header.Filename,
		Content:     file,
		InventoryID: inventoryID,
		Description: r.FormValue("description"),
		UploadedBy:  username(r),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, doc)
}

// listDocuments handles GET /api/documents and GET /api/inventory/{id}/documents.
func (h *Handler) listDocuments(w http.ResponseWriter, r *http.Request) {
	var inventoryID *int
	if chi.URLParam(r, "id") != "" {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		inventoryID = &id
	}
	docs, err := h.svc.ListDocuments(r.Context(), inventoryID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, docs)
}

// downloadDocument handles GET /api/documents/{docID}/content.
func (h *Handler) downloadDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "docID")
	if !ok {
		return
	}
	doc, content, err := h.svc.OpenDocument(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	defer content.Close()

	contentType := doc.FileType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": doc.Filename}))
	if doc.FileSize > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(doc.FileSize, 10))
	}
	if _, err := io.Copy(w, content); err != nil {
		h.logger.Warn("document download interrupted", zap.Int("id", id), zap.Error(err))
	}
}
