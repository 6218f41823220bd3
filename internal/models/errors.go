package models

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrNotFound       = errors.New("upload not found")
	ErrStorage        = errors.New("storage failure")
	ErrAssembly       = errors.New("assembly failure")
)

// MissingChunkError сообщает, что при сборке не нашлось части с указанным индексом.
type MissingChunkError struct {
	UploadID string
	Index    int
}

func (e *MissingChunkError) Error() string {
	return fmt.Sprintf("upload %s: chunk %d is missing", e.UploadID, e.Index)
}

// Is позволяет проверять MissingChunkError через errors.Is(err, ErrAssembly).
func (e *MissingChunkError) Is(target error) bool {
	return target == ErrAssembly
}

// Invalid оборачивает ErrInvalidRequest с пояснением для клиента.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}
