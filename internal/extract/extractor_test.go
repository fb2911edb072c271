package extract

import (
	"archive/zip"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestSupported(t *testing.T) {
	for _, ext := range []string{".txt", ".md", ".pdf", ".docx", ".xlsx", ".PDF"} {
		if !Supported(ext) {
			t.Errorf("Supported(%q) = false", ext)
		}
	}
	for _, ext := range []string{".exe", ".png", ""} {
		if Supported(ext) {
			t.Errorf("Supported(%q) = true", ext)
		}
	}
}

func TestExtractPlainText(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note.md")
	if err := os.WriteFile(path, []byte("# Heading\n\nbody text"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := Extract(path)
	if err != nil {
		t.Fatal(err)
	}
	if got != "# Heading\n\nbody text" {
		t.Errorf("got %q", got)
	}
}

func TestExtractInvalidUTF8Replaced(t *testing.T) {
	got, err := ExtractBytes([]byte{'o', 'k', 0xff, 0xfe}, ".txt")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(got, "ok") || strings.Contains(got, "\xff") {
		t.Errorf("got %q, want invalid bytes replaced", got)
	}
}

func TestExtractUnsupportedFormat(t *testing.T) {
	_, err := ExtractBytes([]byte("binary"), ".exe")
	var unsupported *ErrUnsupportedFormat
	if !errors.As(err, &unsupported) {
		t.Fatalf("err = %v, want ErrUnsupportedFormat", err)
	}
	if unsupported.Ext != ".exe" {
		t.Errorf("ext = %q", unsupported.Ext)
	}
}

func makeDocx(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte(documentXML)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestExtractDocx(t *testing.T) {
	doc := `<w:document><w:body>` +
		`<w:p w:rsidR="00A"><w:r><w:t>Hello</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t xml:space="preserve">world &amp; friends</w:t></w:r></w:p>` +
		`</w:body></w:document>`
	got, err := ExtractBytes(makeDocx(t, doc), ".docx")
	if err != nil {
		t.Fatal(err)
	}
	if got != "Hello world & friends" {
		t.Errorf("got %q", got)
	}
}

func TestExtractDocxMissingDocument(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	if _, err := zw.Create("unrelated.xml"); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := ExtractBytes(buf.Bytes(), ".docx"); err == nil {
		t.Fatal("expected error for docx without word/document.xml")
	}
}

func TestExtractDocxNotAZip(t *testing.T) {
	if _, err := ExtractBytes([]byte("plain bytes"), ".docx"); err == nil {
		t.Fatal("expected error for non-zip docx")
	}
}

func TestExtractXlsx(t *testing.T) {
	f := excelize.NewFile()
	if err := f.SetCellValue("Sheet1", "A1", "name"); err != nil {
		t.Fatal(err)
	}
	if err := f.SetCellValue("Sheet1", "B1", "count"); err != nil {
		t.Fatal(err)
	}
	if err := f.SetCellValue("Sheet1", "A2", "widgets"); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatal(err)
	}

	got, err := ExtractBytes(buf.Bytes(), ".xlsx")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, "name\tcount") || !strings.Contains(got, "widgets") {
		t.Errorf("got %q", got)
	}
}
