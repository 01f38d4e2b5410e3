package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"collabdocs/internal/ingest"
	"collabdocs/internal/model"
	"collabdocs/internal/realtime"
	"collabdocs/internal/repository"
	"collabdocs/internal/storage"
)

var (
	ErrIDRequired = errors.New("id is required")
	ErrNotFound   = errors.New("document not found")
)

// presignTTL bounds how long a signed download URL stays valid.
const presignTTL = 15 * time.Minute

// Ingester runs the ingestion pipeline (validate, store, extract).
type Ingester interface {
	Ingest(ctx context.Context, req ingest.UploadRequest) (*model.Document, error)
}

// Broadcaster fans events out to room members. Satisfied by realtime.Hub.
type Broadcaster interface {
	Broadcast(room, event string, payload any) error
}

// DocumentListResult is the service-level DTO for paginated documents.
type DocumentListResult struct {
	Items []model.Document `json:"data"`
	Total int              `json:"total"`
}

// DownloadResult carries either a presigned URL or a direct stream,
// depending on what the active storage backend supports.
type DownloadResult struct {
	// URL is non-empty when the backend produced a signed download URL.
	URL string
	// Body streams the object when URL is empty. Caller closes it.
	Body     io.ReadCloser
	Document *model.Document
}

// DocumentService defines the use cases for handling documents. It owns
// what the ingestion pipeline deliberately does not: persistence and event
// emission after a successful commit.
type DocumentService interface {
	// Upload ingests the payload, persists the resulting document, and
	// announces it to the workspace room. The announcement is best-effort;
	// a delivery failure never fails the upload.
	Upload(ctx context.Context, req ingest.UploadRequest) (*model.Document, error)

	// List returns documents using limit/offset and a total count,
	// optionally scoped to one workspace.
	List(ctx context.Context, limit, offset int, workspaceID *string) (*DocumentListResult, error)

	// Get returns a single document by its ID.
	Get(ctx context.Context, id string) (*model.Document, error)

	// Delete removes a document from both storage and repository and
	// announces the removal to the workspace room.
	Delete(ctx context.Context, id, deletedBy string) error

	// Download resolves how to hand the stored bytes to a client.
	Download(ctx context.Context, id string) (*DownloadResult, error)
}

// documentService is a concrete implementation of DocumentService.
type documentService struct {
	ingester Ingester
	store    storage.Storage
	repo     repository.DocumentRepository
	hub      Broadcaster
}

// NewDocumentService constructs a new DocumentService.
func NewDocumentService(ingester Ingester, store storage.Storage, repo repository.DocumentRepository, hub Broadcaster) DocumentService {
	return &documentService{ingester: ingester, store: store, repo: repo, hub: hub}
}

func (s *documentService) Upload(ctx context.Context, req ingest.UploadRequest) (*model.Document, error) {
	doc, err := s.ingester.Ingest(ctx, req)
	if err != nil {
		return nil, err
	}

	stored, err := s.repo.Create(ctx, doc)
	if err != nil {
		// Rollback: delete the object from storage so no key outlives the
		// failed persistence attempt.
		if delErr := s.store.Delete(ctx, doc.StorageKey); delErr != nil {
			return nil, fmt.Errorf("db save failed: %v; rollback delete failed: %v", err, delErr)
		}
		return nil, fmt.Errorf("db save failed: %w", err)
	}

	// Announce only after the commit succeeded, and only within a workspace.
	if stored.WorkspaceID != nil {
		s.announce(realtime.WorkspaceRoom(*stored.WorkspaceID), realtime.EventDocumentUploaded, realtime.DocumentUploadedPayload{
			Document:   stored,
			UploadedBy: stored.UploadedBy,
		})
	}
	return stored, nil
}

// List returns paginated documents without exposing repository types.
func (s *documentService) List(ctx context.Context, limit, offset int, workspaceID *string) (*DocumentListResult, error) {
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}

	res, err := s.repo.List(ctx, repository.PageQuery{Limit: limit, Offset: offset, WorkspaceID: workspaceID})
	if err != nil {
		return nil, err
	}
	return &DocumentListResult{Items: res.Items, Total: res.Total}, nil
}

// Get returns a document by ID.
func (s *documentService) Get(ctx context.Context, id string) (*model.Document, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	doc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return doc, nil
}

// Delete removes a document from storage, then deletes its record.
func (s *documentService) Delete(ctx context.Context, id, deletedBy string) error {
	if id == "" {
		return ErrIDRequired
	}
	doc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	// Delete from storage first; if this fails, keep the DB row so the
	// storage reference is not lost.
	if err := s.store.Delete(ctx, doc.StorageKey); err != nil {
		return fmt.Errorf("delete storage: %w", err)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	if doc.WorkspaceID != nil {
		s.announce(realtime.WorkspaceRoom(*doc.WorkspaceID), realtime.EventDocumentDeleted, realtime.DocumentDeletedPayload{
			DocumentID: doc.ID,
			DeletedBy:  deletedBy,
		})
	}
	return nil
}

// Download prefers a presigned URL; backends without signing fall back to
// streaming the object directly.
func (s *documentService) Download(ctx context.Context, id string) (*DownloadResult, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	url, err := s.store.PresignGet(ctx, doc.StorageKey, presignTTL)
	if err == nil {
		return &DownloadResult{URL: url, Document: doc}, nil
	}
	if !errors.Is(err, storage.ErrPresignUnsupported) {
		return nil, fmt.Errorf("presign download: %w", err)
	}

	rc, _, err := s.store.Get(ctx, doc.StorageKey)
	if err != nil {
		return nil, err
	}
	return &DownloadResult{Body: rc, Document: doc}, nil
}

// announce is fire-and-forget: broadcast problems are logged, never returned.
func (s *documentService) announce(room, event string, payload any) {
	if s.hub == nil {
		return
	}
	if err := s.hub.Broadcast(room, event, payload); err != nil {
		b, _ := json.Marshal(map[string]any{
			"ts":        time.Now().UTC().Format(time.RFC3339Nano),
			"level":     "warn",
			"component": "service",
			"event":     "broadcast_failed",
			"room":      room,
			"error":     err.Error(),
		})
		log.SetFlags(0)
		log.Println(string(b))
	}
}
