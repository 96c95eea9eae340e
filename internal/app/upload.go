package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"winzone/api/internal/pbclient"
)

const (
	// uploadsCollection is the generic dumping ground for standalone images.
	uploadsCollection = "uploads"
	// ebooksCollection is the one collection whose content field takes PDFs.
	ebooksCollection = "ebooks"

	pdfContentField     = "content"
	genericFileField    = "file"
	recordImageField    = "image"
	multipartFormMemory = 16 << 20
)

// UploadInput describes one relayed file after it has been spooled to disk.
type UploadInput struct {
	Collection string
	RecordID   string
	Filename   string
	MimeType   string
	Size       int64
	TempPath   string
}

// UploadResult carries the stored record and the rewritten public file URL.
type UploadResult struct {
	FileURL string
	Record  map[string]any
}

// handleUpload accepts a multipart file, spools it to a temp file, and hands
// it to the relay. The temp file is removed whatever the outcome.
func (s *HTTPServer) handleUpload(w http.ResponseWriter, r *http.Request) {
	maxBytes := s.service.cfg.MaxPDFBytes
	if s.service.cfg.MaxImageBytes > maxBytes {
		maxBytes = s.service.cfg.MaxImageBytes
	}
	// Slack for the multipart framing around the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartFormMemory)

	if err := r.ParseMultipartForm(multipartFormMemory); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "File exceeds the upload limit", nil)
			return
		}
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "Invalid multipart form", nil)
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "No image file provided", nil)
		return
	}
	defer file.Close()

	collection := r.FormValue("collection")
	if collection == "" {
		collection = uploadsCollection
	}

	input := UploadInput{
		Collection: collection,
		RecordID:   r.FormValue("recordId"),
		Filename:   filepath.Base(header.Filename),
		MimeType:   declaredMimeType(header.Header.Get("Content-Type"), header.Filename),
		Size:       header.Size,
	}
	if input.Filename == "" || input.Filename == "." {
		input.Filename = "upload_" + uuid.NewString()
	}

	tempPath, err := spoolTempFile(file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Could not buffer upload", nil)
		return
	}
	input.TempPath = tempPath
	defer removeTempFile(tempPath)

	client := s.service.NewClient()
	loadCookieSession(client, r)

	result, err := s.service.Upload(r.Context(), client, input)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"imageUrl": result.FileURL,
		"fileUrl":  result.FileURL,
		"result":   result.Record,
	})
}

// Upload validates the file, establishes administrator auth, resolves the
// target collection's stable id and stores the file, returning the rewritten
// public URL.
func (s *Service) Upload(ctx context.Context, client *pbclient.Client, in UploadInput) (UploadResult, error) {
	if err := validateUpload(in, s.cfg.MaxImageBytes, s.cfg.MaxPDFBytes); err != nil {
		return UploadResult{}, err
	}
	if err := s.ensureAdmin(ctx, client); err != nil {
		return UploadResult{}, err
	}

	collectionID, err := s.resolveCollectionID(ctx, client, in.Collection)
	if err != nil {
		if in.Collection == uploadsCollection && pbclient.IsStatus(err, http.StatusNotFound) {
			return UploadResult{}, uploadsMissingError()
		}
		return UploadResult{}, err
	}

	record, err := s.storeFile(ctx, client, in)
	if err != nil {
		return UploadResult{}, err
	}

	recordID, _ := record["id"].(string)
	field := pbclient.ResolveFileField(record, pdfContentField, genericFileField, recordImageField)
	fileURL := pbclient.PublicFileURL(s.cfg.FileDomain, collectionID, recordID, field)

	return UploadResult{FileURL: fileURL, Record: record}, nil
}

// ensureAdmin prefers the session already on the client; without one it falls
// back to the configured service credentials.
func (s *Service) ensureAdmin(ctx context.Context, client *pbclient.Client) error {
	if client.Auth.IsValid() {
		return nil
	}
	if s.cfg.AdminEmail == "" || s.cfg.AdminPassword == "" {
		return domainError(http.StatusUnauthorized, "UNAUTHORIZED",
			"Admin authentication required. Please log in first.", nil)
	}
	if _, err := client.AuthSuperuserWithPassword(ctx, s.cfg.AdminEmail, s.cfg.AdminPassword); err != nil {
		return authFailure(fmt.Errorf("service credential auth: %w", err))
	}
	return nil
}

func (s *Service) resolveCollectionID(ctx context.Context, client *pbclient.Client, name string) (string, error) {
	if s.colls != nil {
		if id, ok := s.colls.Get(ctx, name); ok {
			return id, nil
		}
	}
	collection, err := client.Collection(ctx, name)
	if err != nil {
		return "", fmt.Errorf("resolve collection %q: %w", name, err)
	}
	if s.colls != nil {
		s.colls.Put(ctx, name, collection.ID)
	}
	return collection.ID, nil
}

func (s *Service) storeFile(ctx context.Context, client *pbclient.Client, in UploadInput) (map[string]any, error) {
	reader, err := os.Open(in.TempPath)
	if err != nil {
		return nil, fmt.Errorf("reopen temp file: %w", err)
	}
	defer reader.Close()

	upload := pbclient.FileUpload{
		Name:        in.Filename,
		ContentType: in.MimeType,
		Reader:      reader,
	}

	// An explicit recordId on a real collection replaces that record's file;
	// everything else creates a new record.
	if in.RecordID != "" && in.Collection != uploadsCollection {
		upload.Field = recordImageField
		if in.Collection == ebooksCollection && in.MimeType == "application/pdf" {
			upload.Field = pdfContentField
		}
		return client.UpdateWithFile(ctx, in.Collection, in.RecordID, upload)
	}

	if in.Collection == ebooksCollection && in.MimeType == "application/pdf" {
		upload.Field = pdfContentField
		return client.CreateWithFile(ctx, in.Collection, nil, upload)
	}

	upload.Field = genericFileField
	record, err := client.CreateWithFile(ctx, in.Collection, map[string]string{"name": in.Filename}, upload)
	if err != nil {
		if in.Collection == uploadsCollection && pbclient.IsStatus(err, http.StatusNotFound) {
			return nil, uploadsMissingError()
		}
		return nil, err
	}
	return record, nil
}

func uploadsMissingError() *DomainError {
	return domainError(http.StatusBadRequest, "UPLOADS_COLLECTION_MISSING",
		`The "uploads" collection does not exist in the data service. Please create it first.`,
		map[string]any{
			"instructions": `Create a collection named "uploads" with fields: name (text) and file (file type, max 10MB, allowed: image/*)`,
		})
}

func validateUpload(in UploadInput, maxImageBytes, maxPDFBytes int64) error {
	switch {
	case in.MimeType == "application/pdf":
		if in.Collection != ebooksCollection {
			return domainError(http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE",
				fmt.Sprintf("PDF uploads are only accepted for the %q collection", ebooksCollection), nil)
		}
		if in.Size > maxPDFBytes {
			return domainError(http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE",
				fmt.Sprintf("PDF exceeds the %dMB limit", maxPDFBytes>>20), nil)
		}
	case strings.HasPrefix(in.MimeType, "image/"):
		if in.Size > maxImageBytes {
			return domainError(http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE",
				fmt.Sprintf("Image exceeds the %dMB limit", maxImageBytes>>20), nil)
		}
	default:
		return domainError(http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE",
			fmt.Sprintf("Unsupported file type %q", in.MimeType), nil)
	}
	return nil
}

func declaredMimeType(contentType, filename string) string {
	if contentType != "" && contentType != "application/octet-stream" {
		if parsed, _, err := mime.ParseMediaType(contentType); err == nil {
			return parsed
		}
	}
	if byExt := mime.TypeByExtension(filepath.Ext(filename)); byExt != "" {
		if parsed, _, err := mime.ParseMediaType(byExt); err == nil {
			return parsed
		}
	}
	return contentType
}

func spoolTempFile(file io.Reader) (string, error) {
	temp, err := os.CreateTemp("", "winzone-upload-"+uuid.NewString())
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer temp.Close()
	if _, err := io.Copy(temp, file); err != nil {
		_ = os.Remove(temp.Name())
		return "", fmt.Errorf("spool upload: %w", err)
	}
	return temp.Name(), nil
}

// removeTempFile is best-effort; a leftover temp file is worth a log line,
// not a failed upload.
func removeTempFile(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Printf("upload: temp file cleanup failed: %v", err)
	}
}
