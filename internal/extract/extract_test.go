package extract

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractPlainText(t *testing.T) {
	e := New(time.Second)

	res := e.Extract(context.Background(), []byte("0123456789"), "text/plain", "notes.txt")

	require.True(t, res.HasContent())
	assert.Equal(t, "0123456789", *res.Content)
	assert.Equal(t, "txt", res.Metadata[MetaType])
	assert.NotContains(t, res.Metadata, MetaExtraction)
}

func TestExtractNeverFailsTheCall(t *testing.T) {
	e := New(time.Second)
	ctx := context.Background()

	tests := []struct {
		name      string
		data      []byte
		mediaType string
		filename  string
		wantType  string
		wantKind  string
	}{
		{
			name:      "corrupt spreadsheet",
			data:      []byte("definitely not a zip archive"),
			mediaType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			filename:  "report.xlsx",
			wantType:  "xlsx",
			wantKind:  FailureError,
		},
		{
			name:      "corrupt pdf",
			data:      []byte("%PDF-but-not-really"),
			mediaType: "application/pdf",
			filename:  "paper.pdf",
			wantType:  "pdf",
			wantKind:  FailureError,
		},
		{
			name:      "binary declared as text",
			data:      []byte{0xff, 0xfe, 0x00, 0x80},
			mediaType: "text/plain",
			filename:  "weird.txt",
			wantType:  "txt",
			wantKind:  FailureError,
		},
		{
			name:      "invalid json",
			data:      []byte("{not json"),
			mediaType: "application/json",
			filename:  "data.json",
			wantType:  "json",
			wantKind:  FailureError,
		},
		{
			name:      "unrecognized type short-circuits",
			data:      []byte("anything"),
			mediaType: "application/x-tar",
			filename:  "archive.tar",
			wantType:  "unknown",
			wantKind:  FailureUnsupported,
		},
		{
			name:      "empty text payload",
			data:      []byte("   \n"),
			mediaType: "text/plain",
			filename:  "empty.txt",
			wantType:  "txt",
			wantKind:  FailureEmpty,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := e.Extract(ctx, tt.data, tt.mediaType, tt.filename)

			assert.False(t, res.HasContent())
			assert.Equal(t, tt.wantType, res.Metadata[MetaType])
			assert.Equal(t, tt.wantKind, res.Metadata[MetaExtraction])
		})
	}
}

func TestExtractCSV(t *testing.T) {
	e := New(time.Second)

	res := e.Extract(context.Background(), []byte("a,b,c\n1,2,3\n"), "text/csv", "table.csv")

	require.True(t, res.HasContent())
	assert.Equal(t, "a, b, c\n1, 2, 3\n", *res.Content)
	assert.Equal(t, "csv", res.Metadata[MetaType])
	assert.Equal(t, "2", res.Metadata["rows"])
}

func TestExtractJSON(t *testing.T) {
	e := New(time.Second)

	res := e.Extract(context.Background(), []byte(`{"b":1,"a":[true]}`), "application/json", "data.json")

	require.True(t, res.HasContent())
	assert.Contains(t, *res.Content, `"a"`)
	assert.Equal(t, "json", res.Metadata[MetaType])
}

func TestExtractImageHasDimensionsButNoContent(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 3))))

	e := New(time.Second)
	res := e.Extract(context.Background(), buf.Bytes(), "image/png", "chart.png")

	assert.False(t, res.HasContent())
	assert.Equal(t, "image", res.Metadata[MetaType])
	assert.Equal(t, "png", res.Metadata["format"])
	assert.Equal(t, "4", res.Metadata["width"])
	assert.Equal(t, "3", res.Metadata["height"])
}

func TestExtensionFallbackForGenericMediaType(t *testing.T) {
	e := New(time.Second)

	res := e.Extract(context.Background(), []byte("a,b\n"), "application/octet-stream", "export.csv")

	assert.Equal(t, "csv", res.Metadata[MetaType])
	require.True(t, res.HasContent())
}

func TestRunGuardsSlowStrategy(t *testing.T) {
	e := New(20 * time.Millisecond)

	slow := func(data []byte) (string, map[string]string, error) {
		time.Sleep(500 * time.Millisecond)
		return "late", nil, nil
	}

	_, _, failure := e.run(context.Background(), slow, nil)
	assert.Equal(t, FailureTimeout, failure)
}

func TestRunGuardsPanickingStrategy(t *testing.T) {
	e := New(time.Second)

	boom := func(data []byte) (string, map[string]string, error) {
		panic("malformed input")
	}

	_, _, failure := e.run(context.Background(), boom, nil)
	assert.Equal(t, FailureError, failure)
}

func TestResolveKind(t *testing.T) {
	tests := []struct {
		mediaType string
		filename  string
		want      kind
	}{
		{"application/pdf", "x.bin", kindPDF},
		{"text/csv; charset=utf-8", "x", kindCSV},
		{"application/vnd.ms-excel", "x", kindXLSX},
		{"image/jpeg", "x", kindImage},
		{"text/markdown", "x", kindText},
		{"application/octet-stream", "readme.md", kindText},
		{"application/octet-stream", "img.JPG", kindImage},
		{"application/octet-stream", "data.parquet", kindUnknown},
		{"", "", kindUnknown},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, resolveKind(tt.mediaType, tt.filename), "%s %s", tt.mediaType, tt.filename)
	}
}
