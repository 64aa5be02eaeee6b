package batch

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/applelectricals/microjpeg/internal/database"
	"github.com/applelectricals/microjpeg/internal/progress"
)

const TaskTypeProcess = "batch:process"

// NewProcessTask serializes a batch job into an asynq task payload.
func NewProcessTask(job *Job) (*asynq.Task, error) {
	payload, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("marshal batch job: %w", err)
	}
	return asynq.NewTask(TaskTypeProcess, payload), nil
}

// TaskHandler is the worker-side entry point: it decodes the job, runs the
// processor and persists the outcome.
type TaskHandler struct {
	processor *Processor
	queries   *database.Queries
	logger    zerolog.Logger
}

func NewTaskHandler(processor *Processor, queries *database.Queries, logger zerolog.Logger) *TaskHandler {
	return &TaskHandler{
		processor: processor,
		queries:   queries,
		logger:    logger,
	}
}

// ProcessTask handles one batch:process task. A returned error makes asynq
// retry the task, so batch-fatal failures are persisted before returning and
// per-file failures never surface here at all.
func (h *TaskHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var job Job
	if err := json.Unmarshal(t.Payload(), &job); err != nil {
		// A payload that never unmarshals will not unmarshal on retry
		// either.
		h.logger.Error().Err(err).Msg("undecodable batch payload")
		return fmt.Errorf("unmarshal batch job: %v: %w", err, asynq.SkipRetry)
	}

	batchID, err := uuid.Parse(job.BatchID)
	if err != nil {
		h.logger.Error().Str("batch_id", job.BatchID).Err(err).Msg("invalid batch id in payload")
		return fmt.Errorf("parse batch id: %v: %w", err, asynq.SkipRetry)
	}

	if err := h.queries.UpdateBatchStatus(ctx, database.UpdateBatchStatusParams{
		ID:     batchID,
		Status: "processing",
	}); err != nil {
		h.logger.Warn().Str("batch_id", job.BatchID).Err(err).Msg("could not mark batch processing")
	}

	report, err := h.processor.Process(ctx, &job, func(percent int) {
		h.logger.Debug().Str("batch_id", job.BatchID).Int("percent", percent).Msg("batch progress")
	})
	if err != nil {
		var fatal *FatalError
		if errors.As(err, &fatal) {
			h.persistFailure(ctx, batchID, fatal)
		}
		return err
	}

	h.persistReport(ctx, batchID, report)
	h.cleanupLocal(&job)
	return nil
}

func (h *TaskHandler) persistReport(ctx context.Context, batchID uuid.UUID, report *Report) {
	status := "completed"
	if !report.Success {
		status = "completed_with_errors"
	}
	if err := h.queries.CompleteBatch(ctx, database.CompleteBatchParams{
		ID:           batchID,
		Status:       status,
		SuccessCount: int32(report.SuccessCount),
		FailureCount: int32(report.FailureCount),
		TotalTime:    sql.NullFloat64{Float64: report.TotalTime, Valid: true},
	}); err != nil {
		h.logger.Error().Str("batch_id", batchID.String()).Err(err).Msg("could not complete batch record")
	}
	h.persistResults(ctx, batchID, report.Results)
}

func (h *TaskHandler) persistFailure(ctx context.Context, batchID uuid.UUID, fatal *FatalError) {
	if err := h.queries.UpdateBatchStatus(ctx, database.UpdateBatchStatusParams{
		ID:     batchID,
		Status: "failed",
	}); err != nil {
		h.logger.Error().Str("batch_id", batchID.String()).Err(err).Msg("could not mark batch failed")
	}
	h.persistResults(ctx, batchID, fatal.Results)
}

func (h *TaskHandler) persistResults(ctx context.Context, batchID uuid.UUID, results []progress.FileResult) {
	for i, res := range results {
		if err := h.queries.CreateBatchFile(ctx, database.CreateBatchFileParams{
			ID:               uuid.New(),
			BatchID:          batchID,
			FileID:           res.FileID,
			FileName:         res.FileName,
			Status:           string(res.Status),
			OriginalSize:     sql.NullInt64{Int64: res.OriginalSize, Valid: res.OriginalSize > 0},
			CompressedSize:   sql.NullInt64{Int64: res.CompressedSize, Valid: res.CompressedSize > 0},
			CompressionRatio: sql.NullFloat64{Float64: res.CompressionRatio, Valid: res.Status == progress.StatusSuccess},
			ProcessingTime:   sql.NullFloat64{Float64: res.ProcessingTime, Valid: res.ProcessingTime > 0},
			DownloadUrl:      sql.NullString{String: res.DownloadURL, Valid: res.DownloadURL != ""},
			Error:            sql.NullString{String: res.Error, Valid: res.Error != ""},
			Position:         int32(i),
		}); err != nil {
			h.logger.Error().
				Str("batch_id", batchID.String()).
				Str("file", res.FileName).
				Err(err).
				Msg("could not persist file result")
		}
	}
}

// cleanupLocal removes the batch's uploaded sources and its output
// directory once everything that mattered was uploaded. Best effort.
func (h *TaskHandler) cleanupLocal(job *Job) {
	for _, f := range job.Files {
		_ = os.Remove(f.FilePath)
	}
	_ = os.RemoveAll(job.OutputDirPath)
}
