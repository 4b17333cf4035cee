package echoapi

import (
	"io"
	"mime/multipart"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
)

var errUploadTooLarge = echo.NewHTTPError(http.StatusRequestEntityTooLarge, "uploaded file is too large")

// formFile validates the multipart upload named field against the extension
// allow-list and the configured size cap, and returns its content.
func formFile(ctx echo.Context, conf *core.Config, field, extErrMsg string, allowedExts []string) (string, io.ReadCloser, error) {
	fh, err := ctx.FormFile(field)
	if err != nil {
		return "", nil, core.NewValidationError(nil, core.FieldError{Field: field, Error: "this field is required"})
	}
	if err = core.ValidateFileExt(fh.Filename, field, extErrMsg, allowedExts); err != nil {
		return "", nil, err
	}
	if fh.Size > conf.Media.MaxUploadSize {
		return "", nil, errUploadTooLarge
	}

	f, err := fh.Open()
	if err != nil {
		return "", nil, errors.Wrap(err, "opening uploaded file")
	}
	return fh.Filename, limitedReadCloser(f, conf.Media.MaxUploadSize), nil
}

// limitedReadCloser caps the stream too; the multipart header size is
// client-provided and cannot be trusted alone.
func limitedReadCloser(rc multipart.File, n int64) io.ReadCloser {
	return struct {
		io.Reader
		io.Closer
	}{io.LimitReader(rc, n), rc}
}
