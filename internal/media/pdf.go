package media

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/IshaanNene/rallybrief/internal/types"
)

// ErrNotPDF is returned for files that are not PDF documents.
var ErrNotPDF = errors.New("file is not a PDF")

var pdfMagic = []byte("%PDF-")

// IsPDF reports whether the file at path starts with the PDF header.
func IsPDF(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	head := make([]byte, len(pdfMagic))
	if _, err := io.ReadFull(f, head); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return false, nil
		}
		return false, err
	}
	return bytes.Equal(head, pdfMagic), nil
}

// RequirePDF is a Validator rejecting bodies without the PDF header.
func RequirePDF(path, contentType string) error {
	ok, err := IsPDF(path)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: got %s", ErrNotPDF, orUnknown(contentType))
	}
	return nil
}

func orUnknown(contentType string) string {
	if contentType == "" {
		return "unknown content type"
	}
	return contentType
}

// ExtractPDFText returns the plain text of every page, each followed by a
// newline, with surrounding whitespace trimmed.
func ExtractPDFText(path string) (text string, err error) {
	ok, err := IsPDF(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotPDF, path)
	}

	// the parser panics on some malformed files
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("parse pdf %s: %v", path, r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("parse pdf: %w", err)
	}
	defer f.Close()

	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}
		b.WriteString(pageText)
		b.WriteByte('\n')
	}

	text = strings.TrimSpace(b.String())
	if text == "" {
		return "", fmt.Errorf("pdf %s: %w", path, types.ErrEmptyResult)
	}
	return text, nil
}
