// Package batch contains the batch job contracts, the sequential batch
// processor and the HTTP handlers for submitting and tracking batches.
package batch

import (
	"errors"

	"github.com/applelectricals/microjpeg/internal/progress"
)

// FileOptions are per-file encode overrides. Zero values fall back to the
// batch defaults (format) or the transcoder defaults (quality).
type FileOptions struct {
	Quality int    `json:"quality,omitempty"`
	Width   int    `json:"width,omitempty"`
	Height  int    `json:"height,omitempty"`
	Format  string `json:"format,omitempty"`
}

// FileTask is one file to process. The caller guarantees the file exists at
// FilePath when the batch is enqueued and stays readable until processed.
type FileTask struct {
	ID       string       `json:"id"`
	FilePath string       `json:"filePath"`
	FileName string       `json:"fileName"`
	FileSize int64        `json:"fileSize"`
	Options  *FileOptions `json:"options,omitempty"`
}

// Job is the unit of work submitted once per batch. Never mutated after
// enqueue; cancellation travels out of band (see queue.CancelFlag).
type Job struct {
	BatchID       string     `json:"batchId"`
	Files         []FileTask `json:"files"`
	SessionID     string     `json:"sessionId"`
	UserID        string     `json:"userId,omitempty"`
	UserTier      string     `json:"userTier"`
	OutputFormat  string     `json:"outputFormat"`
	OutputDirPath string     `json:"outputDirPath"`
	TotalFiles    int        `json:"totalFiles"`
}

func (j *Job) Validate() error {
	if j.BatchID == "" {
		return errors.New("missing batch id")
	}
	if len(j.Files) == 0 {
		return errors.New("batch has no files")
	}
	if j.TotalFiles != len(j.Files) {
		return errors.New("totalFiles does not match file count")
	}
	if j.OutputFormat == "" {
		return errors.New("missing output format")
	}
	if j.OutputDirPath == "" {
		return errors.New("missing output directory")
	}
	return nil
}

// Report is the consolidated outcome of one batch run. Success means no
// file failed; skipped files (cancellation) do not count as failures.
type Report struct {
	Success      bool                  `json:"success"`
	BatchID      string                `json:"batchId"`
	Results      []progress.FileResult `json:"results"`
	TotalTime    float64               `json:"totalTime"`
	SuccessCount int                   `json:"successCount"`
	FailureCount int                   `json:"failureCount"`
}
