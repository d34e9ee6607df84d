package media

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrTooLarge is returned for uploads and downloads over the size limit.
var ErrTooLarge = errors.New("file too large")

// SaveUpload stores an uploaded PDF as dir/name with owner-only permissions.
// filename is the client-supplied name and must end in .pdf.
func SaveUpload(r io.Reader, filename, dir, name string, maxSize int64) (string, error) {
	if !strings.EqualFold(filepath.Ext(filename), ".pdf") {
		return "", fmt.Errorf("%w: %q", ErrNotPDF, filename)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	dest := filepath.Join(dir, filepath.Base(name))
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(name)+".upload-*")
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if maxSize > 0 {
		r = io.LimitReader(r, maxSize+1)
	}
	n, err := io.Copy(tmp, r)
	closeErr := tmp.Close()
	if err != nil {
		return "", fmt.Errorf("write upload: %w", err)
	}
	if closeErr != nil {
		return "", fmt.Errorf("close upload: %w", closeErr)
	}
	if maxSize > 0 && n > maxSize {
		return "", fmt.Errorf("%w: more than %d bytes", ErrTooLarge, maxSize)
	}

	if ok, err := IsPDF(tmpName); err != nil || !ok {
		return "", fmt.Errorf("%w: %q has no PDF header", ErrNotPDF, filename)
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return "", fmt.Errorf("chmod upload: %w", err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		return "", fmt.Errorf("move upload into place: %w", err)
	}
	return dest, nil
}
