package batch

import (
	"time"

	"github.com/applelectricals/microjpeg/internal/progress"
	"github.com/applelectricals/microjpeg/internal/queue"
)

type CreateResponse struct {
	BatchID      string `json:"batchId"`
	JobID        string `json:"jobId"`
	TotalFiles   int    `json:"totalFiles"`
	OutputFormat string `json:"outputFormat"`
	StatusURL    string `json:"statusUrl"`
}

// StatusResponse is the poll payload. Progress is present while the batch
// is queued or running; Results once it reached a terminal state.
type StatusResponse struct {
	BatchID     string                  `json:"batchId"`
	State       queue.State             `json:"state"`
	Progress    *progress.BatchProgress `json:"progress,omitempty"`
	Results     []progress.FileResult   `json:"results,omitempty"`
	TotalFiles  int                     `json:"totalFiles"`
	TotalTime   float64                 `json:"totalTime,omitempty"`
	CompletedAt *time.Time              `json:"completedAt,omitempty"`
}

type CancelResponse struct {
	BatchID string `json:"batchId"`
	Removed bool   `json:"removed"`
}
