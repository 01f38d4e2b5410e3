package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"collabdocs/internal/config"
	"collabdocs/internal/extract"
	"collabdocs/internal/model"
	"collabdocs/internal/storage"
)

// Package ingest is the document ingestion pipeline: validate, store,
// best-effort extract, assemble. It deliberately does not persist the
// resulting document and does not emit events; both belong to the caller so
// ingestion stays narrowly testable.

// ErrValidation rejects a request before any side effect: the declared
// media type is not allow-listed or the payload exceeds the ceiling.
var ErrValidation = errors.New("ingest: validation failed")

// UploadRequest is the transient input for one ingestion call.
type UploadRequest struct {
	// Data is the raw payload, already bounded by the HTTP layer's body
	// limit and re-checked here against the configured ceiling.
	Data      []byte
	MediaType string
	Filename  string
	// WorkspaceID is optional and its existence is not checked here;
	// workspace membership is an external concern.
	WorkspaceID *string
	// UploadedBy is an already-authenticated identity.
	UploadedBy string
}

// Service orchestrates ingestion against the active storage backend.
// The backend is injected once at startup; there is no global switch.
type Service struct {
	store     storage.Storage
	extractor *extract.Extractor
	maxBytes  int64
	allowed   map[string]struct{}
	metrics   *Metrics
}

// NewService constructs the ingestion pipeline. metrics may be nil.
func NewService(store storage.Storage, extractor *extract.Extractor, cfg config.UploadConfig, metrics *Metrics) *Service {
	allowed := make(map[string]struct{}, len(cfg.AllowedMediaTypes))
	for _, mt := range cfg.AllowedMediaTypes {
		allowed[strings.ToLower(mt)] = struct{}{}
	}
	return &Service{
		store:     store,
		extractor: extractor,
		maxBytes:  cfg.MaxBytes,
		allowed:   allowed,
		metrics:   metrics,
	}
}

// Ingest runs one store-then-best-effort-extract call.
//
// Guarantees:
//   - validation failures reject with ErrValidation before any storage write
//   - a storage write failure is fatal and leaves no stored object
//   - an extraction failure never fails the call and never rolls back the
//     stored object; it surfaces only as a metadata marker
func (s *Service) Ingest(ctx context.Context, req UploadRequest) (*model.Document, error) {
	if err := s.validate(req); err != nil {
		s.metrics.countIngest("validation_rejected")
		return nil, err
	}

	info, err := s.store.Put(ctx, req.Filename, bytes.NewReader(req.Data), storage.PutObjectOptions{
		Size:        int64(len(req.Data)),
		ContentType: req.MediaType,
		Metadata:    map[string]string{"original-filename": req.Filename},
	})
	if err != nil {
		s.metrics.countIngest("storage_error")
		return nil, fmt.Errorf("store payload: %w", err)
	}

	res := s.extractor.Extract(ctx, req.Data, req.MediaType, req.Filename)
	if !res.HasContent() {
		reason := res.Metadata[extract.MetaExtraction]
		s.metrics.countSoftFailure(reason)
		logJSON(map[string]any{
			"component": "ingest",
			"event":     "extraction_no_content",
			"reason":    reason,
			"filename":  req.Filename,
			"doc_type":  res.Metadata[extract.MetaType],
		})
	}

	s.metrics.countIngest("success")

	return &model.Document{
		ID:          uuid.New().String(),
		Name:        req.Filename,
		FileType:    fileTypeOf(req.Filename),
		Size:        info.Size,
		StorageKey:  info.Key,
		MediaType:   req.MediaType,
		Content:     res.Content,
		Metadata:    res.Metadata,
		UploadedBy:  req.UploadedBy,
		WorkspaceID: req.WorkspaceID,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

func (s *Service) validate(req UploadRequest) error {
	mt := strings.ToLower(strings.TrimSpace(req.MediaType))
	if i := strings.Index(mt, ";"); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	if _, ok := s.allowed[mt]; !ok {
		return fmt.Errorf("%w: media type %q not allowed", ErrValidation, req.MediaType)
	}
	if int64(len(req.Data)) > s.maxBytes {
		return fmt.Errorf("%w: payload of %d bytes exceeds ceiling of %d", ErrValidation, len(req.Data), s.maxBytes)
	}
	return nil
}

// fileTypeOf derives the declared document type from the filename extension.
func fileTypeOf(filename string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	if ext == "" {
		return "unknown"
	}
	return ext
}

func logJSON(data map[string]any) {
	data["ts"] = time.Now().UTC().Format(time.RFC3339Nano)
	if _, ok := data["level"]; !ok {
		data["level"] = "info"
	}
	b, err := json.Marshal(data)
	if err != nil {
		return
	}
	log.SetFlags(0)
	log.Println(string(b))
}
