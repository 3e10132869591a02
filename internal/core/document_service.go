package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MaxDocumentSize bounds a single upload.
const MaxDocumentSize = 20 << 20

var allowedDocumentExts = map[string]bool{
	".pdf": true, ".jpg": true, ".jpeg": true, ".png": true,
	".tiff": true, ".docx": true, ".doc": true,
}

// Document is the metadata row for an uploaded file.
type Document struct {
	ID           int       `json:"id"`
	Filename     string    `json:"filename"`
	FilePath     string    `json:"-"`
	FileSize     int64     `json:"file_size"`
	FileType     string    `json:"file_type"`
	SHA256       string    `json:"sha256"`
	InventoryID  *int      `json:"inventory_id,omitempty"`
	UploadedBy   string    `json:"uploaded_by"`
	UploadedAt   time.Time `json:"uploaded_at"`
	Description  string    `json:"description"`
	PatientName  string    `json:"patient_name,omitempty"`
	DrugItemName string    `json:"drug_item_name,omitempty"`
}

// DocumentUpload is one file to store.
type DocumentUpload struct {
	Filename    string
	Content     io.Reader
	InventoryID *int
	Description string
	UploadedBy  string
}

// DocumentService stores uploaded files on disk with their metadata in PostgreSQL.
type DocumentService interface {
	Save(ctx context.Context, upload DocumentUpload) (*Document, error)
	// List returns documents newest first, optionally only those attached to inventoryID.
	List(ctx context.Context, inventoryID *int) ([]Document, error)
	// Open returns the metadata and an open handle on the stored file. The caller closes it.
	Open(ctx context.Context, id int) (*Document, io.ReadCloser, error)
}

type documentService struct {
	pool      *pgxpool.Pool
	uploadDir string
}

func NewDocumentService(pool *pgxpool.Pool, uploadDir string) DocumentService {
	return &documentService{pool: pool, uploadDir: uploadDir}
}

func (s *documentService) Save(ctx context.Context, upload DocumentUpload) (*Document, error) {
	name := SanitizeFilename(filepath.Base(upload.Filename))
	if name == "" || name == "." {
		return nil, &ValidationError{Problems: []string{"filename is required"}}
	}
	if !allowedDocumentExts[strings.ToLower(filepath.Ext(name))] {
		return nil, &ValidationError{Problems: []string{fmt.Sprintf("file type %q is not allowed", filepath.Ext(name))}}
	}

	data, err := io.ReadAll(io.LimitReader(upload.Content, MaxDocumentSize+1))
	if err != nil {
		return nil, fmt.Errorf("read upload %q: %w", name, err)
	}
	if len(data) > MaxDocumentSize {
		return nil, &ValidationError{Problems: []string{fmt.Sprintf("file exceeds %d MB", MaxDocumentSize>>20)}}
	}

	stored, err := writeUpload(s.uploadDir, name, data)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(data)

	doc := &Document{
		Filename:    name,
		FilePath:    stored,
		FileSize:    int64(len(data)),
		FileType:    mimetype.Detect(data).String(),
		SHA256:      hex.EncodeToString(sum[:]),
		InventoryID: upload.InventoryID,
		UploadedBy:  upload.UploadedBy,
		Description: upload.Description,
	}
	err = s.pool.QueryRow(ctx, `
		INSERT INTO documents (filename, file_path, file_size, file_type, sha256,
		                       inventory_id, uploaded_by, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, uploaded_at`,
		doc.Filename, doc.FilePath, doc.FileSize, doc.FileType, doc.SHA256,
		doc.InventoryID, doc.UploadedBy, doc.Description,
	).Scan(&doc.ID, &doc.UploadedAt)
	if err != nil {
		_ = os.Remove(stored)
		return nil, fmt.Errorf("record document %q: %w", name, err)
	}
	return doc, nil
}

func (s *documentService) List(ctx context.Context, inventoryID *int) ([]Document, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT d.id, d.filename, COALESCE(d.file_path, ''), COALESCE(d.file_size, 0),
		       COALESCE(d.file_type, ''), COALESCE(d.sha256, ''), d.inventory_id,
		       COALESCE(d.uploaded_by, ''), d.uploaded_at, COALESCE(d.description, ''),
		       COALESCE(i.patient_name, ''), COALESCE(i.drug_item_name, '')
		FROM documents d
		LEFT JOIN inventory i ON d.inventory_id = i.id
		WHERE $1::int IS NULL OR d.inventory_id = $1
		ORDER BY d.uploaded_at DESC, d.id DESC`, inventoryID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *d)
	}
	return docs, rows.Err()
}

func (s *documentService) Open(ctx context.Context, id int) (*Document, io.ReadCloser, error) {
	doc, err := scanDocument(s.pool.QueryRow(ctx, `
		SELECT d.id, d.filename, COALESCE(d.file_path, ''), COALESCE(d.file_size, 0),
		       COALESCE(d.file_type, ''), COALESCE(d.sha256, ''), d.inventory_id,
		       COALESCE(d.uploaded_by, ''), d.uploaded_at, COALESCE(d.description, ''),
		       COALESCE(i.patient_name, ''), COALESCE(i.drug_item_name, '')
		FROM documents d
		LEFT JOIN inventory i ON d.inventory_id = i.id
		WHERE d.id = $1`, id))
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(doc.FilePath)
	if err != nil {
		return nil, nil, fmt.Errorf("open document %d: %w", id, err)
	}
	return doc, f, nil
}

func scanDocument(row pgx.Row) (*Document, error) {
	var d Document
	err := row.Scan(&d.ID, &d.Filename, &d.FilePath, &d.FileSize, &d.FileType, &d.SHA256,
		&d.InventoryID, &d.UploadedBy, &d.UploadedAt, &d.Description, &d.PatientName, &d.DrugItemName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}
	return &d, nil
}

// writeUpload stores data under dir as <uuid><ext>. The original name is kept only in the
// documents row, so its length never reaches the filesystem.
func writeUpload(dir, name string, data []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	stored := filepath.Join(dir, uuid.NewString()+strings.ToLower(filepath.Ext(name)))
	if err := os.WriteFile(stored, data, 0o640); err != nil {
		return "", fmt.Errorf("write upload %q: %w", name, err)
	}
	return stored, nil
}

var unsafeFilenameChars = regexp.MustCompile(`[<>:"/\\|?*]`)

const (
	maxFilenameBytes  = 255
	maxExtensionBytes = 16
)

// SanitizeFilename replaces characters unsafe on common filesystems and invalid UTF-8,
// then caps the length at 255 bytes on a character boundary, keeping a short extension.
func SanitizeFilename(name string) string {
	safe := strings.ToValidUTF8(strings.TrimSpace(name), "_")
	safe = unsafeFilenameChars.ReplaceAllString(safe, "_")
	if len(safe) <= maxFilenameBytes {
		return safe
	}
	ext := filepath.Ext(safe)
	if len(ext) > maxExtensionBytes {
		ext = ""
	}
	cut := maxFilenameBytes - len(ext)
	for cut > 0 && !utf8.RuneStart(safe[cut]) {
		cut--
	}
	return safe[:cut] + ext
}
