package extract

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

// Package extract turns uploaded bytes into plain text plus metadata. It is
// a soft-failure boundary: Extract never returns an error and never panics
// past its boundary. A strategy that fails, times out, or produces nothing
// degrades to the same no-content result, with the failure recorded in
// metadata. Ingestion proceeds either way.

// Metadata keys present on every result.
const (
	// MetaType is the normalized document type tag (e.g. "pdf", "txt").
	MetaType = "type"
	// MetaDetectedType is the sniffed media type of the raw bytes.
	MetaDetectedType = "detected_type"
	// MetaExtraction is present only when no content was extracted; its
	// value is one of the Failure* constants.
	MetaExtraction = "extraction"
)

// Failure kinds recorded under MetaExtraction.
const (
	FailureUnsupported = "unsupported"
	FailureError       = "error"
	FailureTimeout     = "timeout"
	FailureEmpty       = "empty"
)

// Result is the outcome of one extraction. Immutable once produced.
// Content is nil when no text was extracted; that is a valid outcome and
// carries a MetaExtraction marker, never an error.
type Result struct {
	Content  *string
	Metadata map[string]string
}

// HasContent reports whether any text was extracted.
func (r Result) HasContent() bool {
	return r.Content != nil
}

// kind identifies the extraction strategy for a document.
type kind string

const (
	kindPDF     kind = "pdf"
	kindCSV     kind = "csv"
	kindXLSX    kind = "xlsx"
	kindText    kind = "txt"
	kindJSON    kind = "json"
	kindImage   kind = "image"
	kindUnknown kind = "unknown"
)

// strategyFunc parses data into text plus strategy-specific metadata.
// Strategies run under the Extractor's timeout and panic guard; they are
// free to fail loudly.
type strategyFunc func(data []byte) (string, map[string]string, error)

// Extractor dispatches to a type-specific strategy by declared media type
// and filename extension. Safe for concurrent use; each call runs its
// strategy in its own goroutine so one slow or malformed file cannot stall
// unrelated ingestion calls.
type Extractor struct {
	timeout time.Duration
}

// New creates an Extractor whose strategies are bounded by timeout per call.
func New(timeout time.Duration) *Extractor {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Extractor{timeout: timeout}
}

// Extract produces text and metadata for the payload. Unrecognized types
// short-circuit to the no-content result without invoking any parser.
func (e *Extractor) Extract(ctx context.Context, data []byte, mediaType, filename string) Result {
	k := resolveKind(mediaType, filename)

	meta := map[string]string{
		MetaType:         string(k),
		MetaDetectedType: mimetype.Detect(data).String(),
	}

	strategy := strategies[k]
	if strategy == nil {
		meta[MetaExtraction] = FailureUnsupported
		return Result{Metadata: meta}
	}

	text, extra, failure := e.run(ctx, strategy, data)
	for key, v := range extra {
		meta[key] = v
	}
	if failure != "" {
		meta[MetaExtraction] = failure
		return Result{Metadata: meta}
	}
	return Result{Content: &text, Metadata: meta}
}

type strategyOutcome struct {
	text string
	meta map[string]string
	err  error
}

// run executes the strategy in a worker goroutine with panic recovery and a
// deadline. On timeout the goroutine is abandoned; its result is discarded.
func (e *Extractor) run(ctx context.Context, strategy strategyFunc, data []byte) (string, map[string]string, string) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	done := make(chan strategyOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- strategyOutcome{err: panicError{r}}
			}
		}()
		text, meta, err := strategy(data)
		done <- strategyOutcome{text: text, meta: meta, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", nil, FailureTimeout
	case out := <-done:
		if out.err != nil {
			return "", out.meta, FailureError
		}
		if strings.TrimSpace(out.text) == "" {
			return "", out.meta, FailureEmpty
		}
		return out.text, out.meta, ""
	}
}

type panicError struct{ v any }

func (p panicError) Error() string { return "strategy panicked" }

var strategies = map[kind]strategyFunc{
	kindPDF:   extractPDF,
	kindCSV:   extractCSV,
	kindXLSX:  extractXLSX,
	kindText:  extractText,
	kindJSON:  extractJSON,
	kindImage: extractImage,
}

// resolveKind maps declared media type and filename extension to a
// strategy. The declared type wins; the extension is the fallback for
// generic declarations like application/octet-stream.
func resolveKind(mediaType, filename string) kind {
	mt := strings.ToLower(strings.TrimSpace(mediaType))
	if i := strings.Index(mt, ";"); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}

	switch {
	case mt == "application/pdf":
		return kindPDF
	case mt == "text/csv":
		return kindCSV
	case mt == "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		mt == "application/vnd.ms-excel":
		return kindXLSX
	case mt == "application/json":
		return kindJSON
	case strings.HasPrefix(mt, "image/"):
		return kindImage
	case strings.HasPrefix(mt, "text/"):
		return kindText
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return kindPDF
	case ".csv":
		return kindCSV
	case ".xlsx", ".xls":
		return kindXLSX
	case ".json":
		return kindJSON
	case ".png", ".jpg", ".jpeg", ".gif":
		return kindImage
	case ".txt", ".md", ".log":
		return kindText
	}
	return kindUnknown
}
