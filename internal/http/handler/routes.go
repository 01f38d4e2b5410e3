package handler

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"collabdocs/internal/ingest"
	"collabdocs/internal/realtime"
	"collabdocs/internal/service"
	"collabdocs/internal/storage"
)

// identityHeaders are set by the gateway in front of this service. Identity
// verification is an external concern; the values are trusted as-is.
const (
	userIDHeader   = "X-User-ID"
	userNameHeader = "X-User-Name"
)

// HealthCheck reports whether the database dependency is reachable.
func HealthCheck(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dependency unavailable")
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
	}
}

// LivenessProbe is a simple liveness probe with no dependency checks.
func LivenessProbe() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
}

// ListDocuments returns paginated documents, optionally scoped to one
// workspace via the workspaceId query parameter.
func ListDocuments(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, err := strconv.Atoi(c.Query("limit", "10"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_LIMIT", "invalid limit")
		}
		offset, err := strconv.Atoi(c.Query("offset", "0"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_OFFSET", "invalid offset")
		}

		var workspaceID *string
		if ws := c.Query("workspaceId"); ws != "" {
			workspaceID = &ws
		}

		res, err := docSvc.List(c.UserContext(), limit, offset, workspaceID)
		if err != nil {
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.JSON(res)
	}
}

// UploadDocument accepts a multipart upload (field name: file) and runs it
// through the ingestion pipeline. The optional workspaceId form field scopes
// the document to a workspace.
func UploadDocument(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fh, err := c.FormFile("file")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required")
		}

		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_READ_ERROR", "cannot read uploaded file")
		}

		ct := fh.Header.Get("Content-Type")
		if ct == "" {
			ct = "application/octet-stream"
		}

		var workspaceID *string
		if ws := c.FormValue("workspaceId", c.Query("workspaceId")); ws != "" {
			workspaceID = &ws
		}

		uploadedBy := c.Get(userIDHeader)
		if uploadedBy == "" {
			uploadedBy = "anonymous"
		}

		doc, err := docSvc.Upload(c.UserContext(), ingest.UploadRequest{
			Data:        data,
			MediaType:   ct,
			Filename:    fh.Filename,
			WorkspaceID: workspaceID,
			UploadedBy:  uploadedBy,
		})
		if err != nil {
			switch {
			case errors.Is(err, ingest.ErrValidation):
				return writeError(c, fiber.StatusBadRequest, "VALIDATION_FAILED", "upload rejected")
			case errors.Is(err, storage.ErrWrite):
				return writeError(c, fiber.StatusBadGateway, "STORAGE_UNAVAILABLE", "storage backend unavailable")
			default:
				return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
			}
		}
		return c.Status(fiber.StatusCreated).JSON(doc)
	}
}

// GetDocument returns a single document by ID.
func GetDocument(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		doc, err := docSvc.Get(c.UserContext(), id)
		if err != nil {
			if errors.Is(err, service.ErrNotFound) {
				return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "document not found")
			}
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.JSON(doc)
	}
}

// DeleteDocument removes a document by ID.
func DeleteDocument(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}

		deletedBy := c.Get(userIDHeader)
		if deletedBy == "" {
			deletedBy = "anonymous"
		}

		if err := docSvc.Delete(c.UserContext(), id, deletedBy); err != nil {
			if errors.Is(err, service.ErrNotFound) {
				return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "document not found")
			}
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// DownloadDocument resolves a download for the stored bytes. Backends that
// can sign URLs answer with a redirect; the local backend streams directly.
func DownloadDocument(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		res, err := docSvc.Download(c.UserContext(), id)
		if err != nil {
			if errors.Is(err, service.ErrNotFound) {
				return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "document not found")
			}
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}

		if res.URL != "" {
			return c.Redirect(res.URL, fiber.StatusFound)
		}

		c.Set(fiber.HeaderContentType, res.Document.MediaType)
		c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+res.Document.Name+`"`)
		return c.SendStream(res.Body)
	}
}

// RegisterRoutes attaches the document REST routes and health probes to the
// provided Fiber app. Handlers stay thin; business logic lives in the service.
func RegisterRoutes(app *fiber.App, db *sql.DB, docSvc service.DocumentService) {
	app.Get("/health", HealthCheck(db))
	app.Get("/healthz", LivenessProbe())

	app.Get("/documents", ListDocuments(docSvc))
	app.Post("/documents", UploadDocument(docSvc))
	app.Get("/documents/:id", GetDocument(docSvc))
	app.Get("/documents/:id/download", DownloadDocument(docSvc))
	app.Delete("/documents/:id", DeleteDocument(docSvc))
}

// RegisterRealtime mounts the websocket endpoint that feeds the broadcast hub.
func RegisterRealtime(app *fiber.App, hub *realtime.Hub, presence *realtime.Presence) {
	app.Use("/ws", realtime.Upgrade())
	app.Get("/ws", realtime.Handler(hub, presence))
}
