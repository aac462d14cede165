package utils

import (
	"fmt"
	"io"
	"mime/multipart"

	"github.com/mahirjain10/poster-formatter/internal/types"
)

// ReadImageBuffer reads an uploaded file fully into memory, refusing anything
// larger than limit bytes.
func ReadImageBuffer(fh *multipart.FileHeader, limit int64) ([]byte, error) {
	if fh.Size > limit {
		return nil, fmt.Errorf("%w: %d bytes", types.ErrTooLarge, fh.Size)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("error while opening upload: %w", err)
	}
	defer f.Close()

	buffer, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, fmt.Errorf("error while reading upload: %w", err)
	}
	if int64(len(buffer)) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", types.ErrTooLarge, limit)
	}
	return buffer, nil
}
