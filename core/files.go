package core

import (
	"context"
	"io"
	"path/filepath"
	"strings"
)

// Extension allow-lists enforced at the upload boundary.
var (
	PDFOnlyExts  = []string{".pdf"}
	DocumentExts = []string{".pdf", ".docx"} // CVs and assignment submissions
	ImageExts    = []string{".jpg", ".jpeg", ".png"}
)

// FileStorage stores uploaded files and serves them back by reference.
// References are opaque, storage-relative paths.
type FileStorage interface {
	// Save stores the content of r under dir and returns the file reference.
	Save(ctx context.Context, dir, filename string, r io.Reader) (string, error)
	// Open returns a reader for a previously saved reference.
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
	// Remove deletes a previously saved reference. Missing files are not an error.
	Remove(ctx context.Context, ref string) error
}

// ValidateFileExt checks filename against an extension allow-list.
// It returns a ValidationError carrying errMsg on the given field when the
// extension is not allowed.
func ValidateFileExt(filename, field, errMsg string, allowed []string) error {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, ok := range allowed {
		if ext == ok {
			return nil
		}
	}
	return NewValidationError(nil, FieldError{Field: field, Error: errMsg})
}
