// Package uploadproto описывает HTTP-протокол загрузки файлов частями.
package uploadproto

// Пути и параметры REST-протокола.
const (
	UploadChunkPath   = "/api/upload-chunk"
	UploadStatusPath  = "/api/upload-status/%s"
	UploadCombinePath = "/api/upload-combine/%s"

	QueryUploadID   = "uploadId"
	QueryChunkIndex = "chunkIndex"

	FormFileName    = "fileName"
	FormTotalChunks = "totalChunks"
	FormFile        = "file"
)

// Сообщения, которые клиент видит в поле message.
const (
	MsgChunkUploaded      = "Chunk uploaded successfully"
	MsgMissingParams      = "Missing required parameters"
	MsgUploadNotFound     = "Upload not found"
	MsgChunkServerError   = "Server error processing chunk"
	MsgStatusServerError  = "Server error checking upload status"
	MsgCombineServerError = "Server error combining chunks"
	MsgUploadCombined     = "Upload combined"
	MsgGCServerError      = "Server error sweeping uploads"
)

// ChunkResponse — ответ на загрузку части.
type ChunkResponse struct {
	Success    bool   `json:"success"`
	ChunkIndex int    `json:"chunkIndex"`
	IsComplete bool   `json:"isComplete"`
	Message    string `json:"message"`
}

// StatusResponse — ответ на запрос статуса.
type StatusResponse struct {
	Success        bool   `json:"success"`
	FileName       string `json:"fileName"`
	TotalChunks    int    `json:"totalChunks"`
	UploadedChunks int    `json:"uploadedChunks"`
	IsComplete     bool   `json:"isComplete"`
	UploadID       string `json:"uploadId"`
	MissingChunks  []int  `json:"missingChunks"`
	Combined       bool   `json:"combined"`
	State          string `json:"state"`
}

// CombineResponse — ответ на принудительную сборку.
type CombineResponse struct {
	Success  bool   `json:"success"`
	UploadID string `json:"uploadId"`
	FileName string `json:"fileName"`
	Size     int64  `json:"size"`
	Message  string `json:"message"`
}

// ErrorResponse — тело любой ошибки.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
