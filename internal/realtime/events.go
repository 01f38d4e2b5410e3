package realtime

import "collabdocs/internal/model"

// Event names carried on the wire. Consumers match on these exact strings.
const (
	EventDocumentUploaded = "document-uploaded"
	EventDocumentDeleted  = "document-deleted"
	EventUserPresence     = "user-presence"
)

// DocumentUploadedPayload announces a freshly persisted document to its
// workspace room.
type DocumentUploadedPayload struct {
	Document   *model.Document `json:"document"`
	UploadedBy string          `json:"uploadedBy"`
}

// DocumentDeletedPayload announces a removed document to its workspace room.
type DocumentDeletedPayload struct {
	DocumentID string `json:"documentId"`
	DeletedBy  string `json:"deletedBy"`
}

// PresencePayload is the transient "this user is active here" signal.
// It is never stored; a reconnecting client must announce itself again.
type PresencePayload struct {
	Type     string `json:"type"`
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}
