package models

import "time"

// Upload — метаданные загрузки, которые пишутся один раз в metadata.json.
type Upload struct {
	FileName    string    `json:"fileName"`
	TotalChunks int       `json:"totalChunks"`
	UploadID    string    `json:"uploadId"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ChunkUpload описывает одну пришедшую часть вместе с заявленной формой загрузки.
type ChunkUpload struct {
	UploadID    string `validate:"required"`
	ChunkIndex  int    `validate:"gte=0"`
	FileName    string `validate:"required"`
	TotalChunks int    `validate:"gte=1"`
}

// ChunkResult возвращается после сохранения части.
type ChunkResult struct {
	ChunkIndex     int
	UploadedChunks int
	IsComplete     bool
	OutputPath     string
}

// UploadStatus — снимок состояния загрузки, собранный только по данным на диске.
type UploadStatus struct {
	UploadID       string
	FileName       string
	TotalChunks    int
	UploadedChunks int
	IsComplete     bool
	MissingChunks  []int
	State          CombineState
	OutputPath     string
}

// CombineState — состояние сборки: pending -> running -> done.
type CombineState string

const (
	StatePending CombineState = "pending"
	StateRunning CombineState = "running"
	StateDone    CombineState = "done"
)

// CombineResult хранится в маркере завершённой сборки.
type CombineResult struct {
	UploadID    string    `json:"uploadId"`
	FileName    string    `json:"fileName"`
	OutputPath  string    `json:"outputPath"`
	Size        int64     `json:"size"`
	TotalChunks int       `json:"totalChunks"`
	CompletedAt time.Time `json:"completedAt"`
}
