package echoapi

import (
	"fmt"
	"io"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/notex/core"
)

const (
	uploadField = "file"

	// room for the multipart framing around the file
	multipartOverhead = 64 << 10
)

// Upload is a single file posted as multipart/form-data under the "file" field.
type Upload struct {
	Filename string
	Size     int64
	Content  io.ReadCloser
}

// bindUpload opens the posted file. Callers must close Upload.Content.
func bindUpload(ctx echo.Context, maxSize int64) (Upload, error) {
	fh, err := ctx.FormFile(uploadField)
	if errors.Is(err, echo.ErrStatusRequestEntityTooLarge) {
		return Upload{}, err
	}
	if err != nil {
		return Upload{}, core.NewFieldError(uploadField, "this field is required")
	}
	if maxSize > 0 && fh.Size > maxSize {
		return Upload{}, core.NewFieldError(uploadField, fmt.Sprintf("file cannot exceed %d bytes", maxSize))
	}
	f, err := fh.Open()
	if err != nil {
		return Upload{}, errors.Wrap(err, "opening uploaded file")
	}
	return Upload{Filename: fh.Filename, Size: fh.Size, Content: f}, nil
}

// uploadBodyLimit rejects upload requests whose body cannot fit a maxSize file,
// before the multipart form is parsed.
func uploadBodyLimit(maxSize int64) echo.MiddlewareFunc {
	if maxSize <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return middleware.BodyLimit(strconv.FormatInt(maxSize+multipartOverhead, 10))
}
