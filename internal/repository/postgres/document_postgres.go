package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"collabdocs/internal/model"
	"collabdocs/internal/repository"
)

// DocumentPostgres is a PostgreSQL implementation of repository.DocumentRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type DocumentPostgres struct {
	db *sql.DB
}

// NewDocumentPostgres creates a new DocumentPostgres repository.
func NewDocumentPostgres(db *sql.DB) *DocumentPostgres {
	return &DocumentPostgres{db: db}
}

var _ repository.DocumentRepository = (*DocumentPostgres)(nil)

const documentColumns = `id, name, file_type, size, storage_key, media_type, content, metadata, uploaded_by, workspace_id, created_at`

// Create inserts a new document row and returns the stored record.
func (r *DocumentPostgres) Create(ctx context.Context, doc *model.Document) (*model.Document, error) {
	const q = `
		INSERT INTO documents (id, name, file_type, size, storage_key, media_type, content, metadata, uploaded_by, workspace_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING ` + documentColumns

	meta, err := marshalMetadata(doc.Metadata)
	if err != nil {
		return nil, err
	}

	row := r.db.QueryRowContext(ctx, q,
		doc.ID,
		doc.Name,
		doc.FileType,
		doc.Size,
		doc.StorageKey,
		doc.MediaType,
		doc.Content,
		meta,
		doc.UploadedBy,
		doc.WorkspaceID,
		doc.CreatedAt,
	)
	return scanDocument(row)
}

// FindByID fetches a single document by its ID.
func (r *DocumentPostgres) FindByID(ctx context.Context, id string) (*model.Document, error) {
	const q = `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`
	return scanDocument(r.db.QueryRowContext(ctx, q, id))
}

// List returns documents using LIMIT/OFFSET pagination and a total count.
// With a workspace filter both queries are scoped to that workspace.
func (r *DocumentPostgres) List(ctx context.Context, pq repository.PageQuery) (*repository.PageResult[model.Document], error) {
	var total int
	if pq.WorkspaceID != nil {
		const qCount = `SELECT COUNT(*) FROM documents WHERE workspace_id = $1`
		if err := r.db.QueryRowContext(ctx, qCount, *pq.WorkspaceID).Scan(&total); err != nil {
			return nil, err
		}
	} else {
		const qCount = `SELECT COUNT(*) FROM documents`
		if err := r.db.QueryRowContext(ctx, qCount).Scan(&total); err != nil {
			return nil, err
		}
	}

	var (
		rows *sql.Rows
		err  error
	)
	if pq.WorkspaceID != nil {
		const qList = `
			SELECT ` + documentColumns + `
			FROM documents
			WHERE workspace_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2 OFFSET $3
		`
		rows, err = r.db.QueryContext(ctx, qList, *pq.WorkspaceID, pq.Limit, pq.Offset)
	} else {
		const qList = `
			SELECT ` + documentColumns + `
			FROM documents
			ORDER BY created_at DESC, id DESC
			LIMIT $1 OFFSET $2
		`
		rows, err = r.db.QueryContext(ctx, qList, pq.Limit, pq.Offset)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Document, 0)
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &repository.PageResult[model.Document]{
		Items: items,
		Total: total,
	}, nil
}

// Delete removes a document by ID. It does not return an error if the row does not exist.
func (r *DocumentPostgres) Delete(ctx context.Context, id string) error {
	const q = `DELETE FROM documents WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	_, _ = res.RowsAffected()
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*model.Document, error) {
	var (
		d    model.Document
		meta []byte
	)
	if err := row.Scan(
		&d.ID,
		&d.Name,
		&d.FileType,
		&d.Size,
		&d.StorageKey,
		&d.MediaType,
		&d.Content,
		&meta,
		&d.UploadedBy,
		&d.WorkspaceID,
		&d.CreatedAt,
	); err != nil {
		return nil, err
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &d.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return &d, nil
}

func marshalMetadata(meta map[string]string) ([]byte, error) {
	if meta == nil {
		meta = map[string]string{}
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	return b, nil
}
