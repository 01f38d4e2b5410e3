package extract

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"
)

// extractPDF pulls the plain text layer out of a PDF and records the page count.
func extractPDF(data []byte) (string, map[string]string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", nil, fmt.Errorf("open pdf: %w", err)
	}

	meta := map[string]string{"pages": strconv.Itoa(r.NumPage())}

	plain, err := r.GetPlainText()
	if err != nil {
		return "", meta, fmt.Errorf("pdf text layer: %w", err)
	}

	var buf strings.Builder
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", meta, fmt.Errorf("read pdf text: %w", err)
	}
	return buf.String(), meta, nil
}

// extractCSV flattens records into lines of comma-joined fields. Ragged rows
// are tolerated; a malformed quote still fails the whole strategy.
func extractCSV(data []byte) (string, map[string]string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return "", nil, fmt.Errorf("parse csv: %w", err)
	}

	var buf strings.Builder
	for _, rec := range records {
		buf.WriteString(strings.Join(rec, ", "))
		buf.WriteByte('\n')
	}

	meta := map[string]string{"rows": strconv.Itoa(len(records))}
	return buf.String(), meta, nil
}

// extractXLSX reads every sheet of a workbook, one comma-joined line per row.
func extractXLSX(data []byte) (string, map[string]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	meta := map[string]string{"sheets": strconv.Itoa(len(sheets))}

	var buf strings.Builder
	for _, sheet := range sheets {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", meta, fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		for _, row := range rows {
			buf.WriteString(strings.Join(row, ", "))
			buf.WriteByte('\n')
		}
	}
	return buf.String(), meta, nil
}

// extractText accepts the payload verbatim when it is valid UTF-8.
func extractText(data []byte) (string, map[string]string, error) {
	if !utf8.Valid(data) {
		return "", nil, fmt.Errorf("payload is not valid utf-8 text")
	}
	return string(data), nil, nil
}

// extractJSON validates the document and re-renders it with stable indentation.
func extractJSON(data []byte) (string, map[string]string, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return "", nil, fmt.Errorf("parse json: %w", err)
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", nil, err
	}
	return string(out), nil, nil
}

// extractImage has no text to extract; it probes the header for dimensions
// so the no-content result still carries useful metadata.
func extractImage(data []byte) (string, map[string]string, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", nil, fmt.Errorf("decode image header: %w", err)
	}
	meta := map[string]string{
		"format": format,
		"width":  strconv.Itoa(cfg.Width),
		"height": strconv.Itoa(cfg.Height),
	}
	return "", meta, nil
}
