package httperrors

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/sir_venger/chunk_lite/internal/models"
	"github.com/sir_venger/chunk_lite/pkg/uploadproto"
)

// Status сопоставляет ошибку таксономии с HTTP-кодом.
func Status(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	default:
		// ErrAssembly, ErrStorage и всё неожиданное
		return http.StatusInternalServerError
	}
}

// Write пишет ошибку в JSON-формате протокола. Для 5xx клиент получает
// serverMsg, подробности остаются в логах.
func Write(w http.ResponseWriter, err error, serverMsg string) {
	code := Status(err)

	msg := serverMsg
	switch code {
	case http.StatusBadRequest:
		msg = strings.TrimPrefix(err.Error(), models.ErrInvalidRequest.Error()+": ")
	case http.StatusNotFound:
		msg = uploadproto.MsgUploadNotFound
	}

	WriteJSON(w, code, uploadproto.ErrorResponse{Success: false, Message: msg})
}

// WriteJSON пишет payload с нужным статусом.
func WriteJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
