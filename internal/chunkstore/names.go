package chunkstore

import (
	"strings"

	"github.com/sir_venger/chunk_lite/internal/models"
)

// ValidateUploadID проверяет, что идентификатор — один безопасный сегмент пути.
func ValidateUploadID(uploadID string) error {
	if err := validSegment(uploadID); err != "" {
		return models.Invalid("upload id %s", err)
	}
	return nil
}

// ValidateFileName проверяет имя итогового файла. Имя каталога chunks занято.
func ValidateFileName(name string) error {
	if err := validSegment(name); err != "" {
		return models.Invalid("file name %s", err)
	}
	if name == chunksDirName {
		return models.Invalid("file name %q is reserved", name)
	}
	if strings.HasPrefix(name, ".") {
		return models.Invalid("file name must not start with a dot")
	}
	return nil
}

func validSegment(s string) string {
	switch {
	case strings.TrimSpace(s) == "":
		return "is required"
	case s == "." || s == "..":
		return "must not be a relative path"
	case strings.ContainsAny(s, "/\\\x00"):
		return "must not contain path separators"
	}
	return ""
}
