// Package extract pulls plain text out of the document formats the ingest
// pipeline accepts: PDF, DOCX, XLSX, and anything that reads as UTF-8 text.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsupportedFormat marks file types the pipeline should skip rather than
// report.
type ErrUnsupportedFormat struct {
	Ext string
}

func (e *ErrUnsupportedFormat) Error() string {
	return fmt.Sprintf("unsupported file format %q", e.Ext)
}

var handlers = map[string]func([]byte) (string, error){
	".pdf":  fromPDF,
	".docx": fromDOCX,
	".xlsx": fromXLSX,
	".txt":  fromPlain,
	".md":   fromPlain,
	".rst":  fromPlain,
	".csv":  fromPlain,
	".json": fromPlain,
	".log":  fromPlain,
}

// Supported reports whether files with the given extension can be extracted.
// ext includes the leading dot and is matched case-insensitively.
func Supported(ext string) bool {
	_, ok := handlers[strings.ToLower(ext)]
	return ok
}

// Extract reads the file at path and returns its text content. Unsupported
// extensions return *ErrUnsupportedFormat.
func Extract(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	handler, ok := handlers[ext]
	if !ok {
		return "", &ErrUnsupportedFormat{Ext: ext}
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return handler(content)
}

// ExtractBytes extracts text from in-memory content. ext includes the leading
// dot, as from filepath.Ext.
func ExtractBytes(content []byte, ext string) (string, error) {
	handler, ok := handlers[strings.ToLower(ext)]
	if !ok {
		return "", &ErrUnsupportedFormat{Ext: ext}
	}
	return handler(content)
}
