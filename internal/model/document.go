package model

import "time"

// Document represents an ingested file in the system.
// This is a pure domain model with no database-specific dependencies or tags.
// It can be used across layers (HTTP, service, storage) without coupling to persistence.
//
// A Document is assembled once by the ingestion pipeline and handed to the
// persistence layer; it is never mutated afterwards.
type Document struct {
	ID string `json:"id"`
	// Name is the original filename as uploaded.
	Name string `json:"name"`
	// FileType is derived from the filename extension (e.g. "pdf", "csv").
	FileType string `json:"file_type"`
	Size     int64  `json:"size"`
	// StorageKey is the backend-specific key returned by the storage layer.
	// It is opaque: only the storage backend that produced it interprets it.
	StorageKey string `json:"storage_key"`
	MediaType  string `json:"media_type"`
	// Content is the extracted plain text. Nil means no content was
	// extracted, which is a valid outcome, not an error.
	Content  *string           `json:"content"`
	Metadata map[string]string `json:"metadata"`
	// UploadedBy is the already-authenticated uploader identity.
	UploadedBy string `json:"uploaded_by"`
	// WorkspaceID is optional; documents can live outside any workspace.
	WorkspaceID *string   `json:"workspace_id"`
	CreatedAt   time.Time `json:"created_at"`
}
