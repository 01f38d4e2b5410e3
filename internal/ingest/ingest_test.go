package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"collabdocs/internal/config"
	"collabdocs/internal/extract"
	"collabdocs/internal/storage"
	storeMocks "collabdocs/internal/storage/mocks"
)

func newTestService(store storage.Storage) *Service {
	cfg := config.UploadConfig{
		MaxBytes: 1 << 20,
		AllowedMediaTypes: []string{
			"text/plain",
			"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		},
	}
	return NewService(store, extract.New(time.Second), cfg, nil)
}

func TestIngestPlainText(t *testing.T) {
	ctx := context.Background()
	mStore := new(storeMocks.MockStorage)
	svc := newTestService(mStore)

	mStore.On("Put", ctx, "notes.txt", mock.Anything, mock.MatchedBy(func(opt storage.PutObjectOptions) bool {
		return opt.Size == 10 && opt.ContentType == "text/plain"
	})).Return(storage.ObjectInfo{Key: "documents/uuid.txt", Size: 10}, nil)

	doc, err := svc.Ingest(ctx, UploadRequest{
		Data:       []byte("0123456789"),
		MediaType:  "text/plain",
		Filename:   "notes.txt",
		UploadedBy: "user-1",
	})

	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.NotEmpty(t, doc.ID)
	assert.Equal(t, "notes.txt", doc.Name)
	assert.Equal(t, "txt", doc.FileType)
	assert.Equal(t, "documents/uuid.txt", doc.StorageKey)
	assert.Equal(t, int64(10), doc.Size)
	require.NotNil(t, doc.Content)
	assert.Equal(t, "0123456789", *doc.Content)
	assert.Equal(t, "txt", doc.Metadata[extract.MetaType])
	assert.Equal(t, "user-1", doc.UploadedBy)
	assert.Nil(t, doc.WorkspaceID)

	mStore.AssertExpectations(t)
}

func TestIngestRejectsBeforeStorageWrite(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		req  UploadRequest
	}{
		{
			name: "disallowed media type",
			req: UploadRequest{
				Data:      []byte("PK..."),
				MediaType: "application/zip",
				Filename:  "bundle.zip",
			},
		},
		{
			name: "payload over ceiling",
			req: UploadRequest{
				Data:      make([]byte, (1<<20)+1),
				MediaType: "text/plain",
				Filename:  "big.txt",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mStore := new(storeMocks.MockStorage)
			svc := newTestService(mStore)

			doc, err := svc.Ingest(ctx, tt.req)

			assert.ErrorIs(t, err, ErrValidation)
			assert.Nil(t, doc)
			mStore.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestIngestStorageFailureIsFatal(t *testing.T) {
	ctx := context.Background()
	mStore := new(storeMocks.MockStorage)
	svc := newTestService(mStore)

	mStore.On("Put", ctx, mock.Anything, mock.Anything, mock.Anything).
		Return(storage.ObjectInfo{}, storage.ErrWrite)

	doc, err := svc.Ingest(ctx, UploadRequest{
		Data:      []byte("hello"),
		MediaType: "text/plain",
		Filename:  "notes.txt",
	})

	assert.ErrorIs(t, err, storage.ErrWrite)
	assert.Nil(t, doc)
	mStore.AssertExpectations(t)
}

func TestIngestExtractionFailureIsSoft(t *testing.T) {
	ctx := context.Background()
	mStore := new(storeMocks.MockStorage)
	svc := newTestService(mStore)

	mStore.On("Put", ctx, mock.Anything, mock.Anything, mock.Anything).
		Return(storage.ObjectInfo{Key: "documents/uuid.xlsx", Size: 12}, nil)

	doc, err := svc.Ingest(ctx, UploadRequest{
		Data:      []byte("not-a-workbook"),
		MediaType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		Filename:  "report.xlsx",
	})

	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Nil(t, doc.Content)
	assert.Equal(t, extract.FailureError, doc.Metadata[extract.MetaExtraction])
	assert.Equal(t, "documents/uuid.xlsx", doc.StorageKey)

	// The stored object must survive an extraction failure.
	mStore.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	mStore.AssertExpectations(t)
}

func TestFileTypeOf(t *testing.T) {
	assert.Equal(t, "pdf", fileTypeOf("Paper.PDF"))
	assert.Equal(t, "txt", fileTypeOf("notes.txt"))
	assert.Equal(t, "unknown", fileTypeOf("README"))
}
