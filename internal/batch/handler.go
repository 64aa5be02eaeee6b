package batch

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	_ "github.com/lib/pq"

	"github.com/applelectricals/microjpeg/internal/database"
	"github.com/applelectricals/microjpeg/internal/progress"
	"github.com/applelectricals/microjpeg/internal/queue"
	"github.com/applelectricals/microjpeg/internal/transcode"
	"github.com/applelectricals/microjpeg/internal/utils"
)

const MaxBatchFiles = 50

const maxMultipartMemory = 32 << 20

type BatchHandler struct {
	validator *validator.Validate
	dbQueries *database.Queries
	queue     *queue.Client
	tracker   progress.Tracker
	cancel    *queue.CancelFlag
	config    *utils.Config
}

func NewHandler(validator *validator.Validate, dbQueries *database.Queries, q *queue.Client, tracker progress.Tracker, cancel *queue.CancelFlag, config *utils.Config) *BatchHandler {
	return &BatchHandler{
		validator: validator,
		dbQueries: dbQueries,
		queue:     q,
		tracker:   tracker,
		cancel:    cancel,
		config:    config,
	}
}

// Create godoc
// @Summary Submit a batch
// @Description Upload up to 50 images and enqueue them as one sequential compression job
// @Tags batches
// @Accept multipart/form-data
// @Produce json
// @Param files formData file true "Image files"
// @Param output_format formData string false "Output format (default jpeg)"
// @Param quality formData int false "Encode quality 1-100"
// @Param session_id formData string false "Anonymous session identifier"
// @Success 201 {object} utils.SuccessResponse{data=CreateResponse}
// @Failure 400 {object} utils.ErrorResponse
// @Failure 500 {object} utils.ErrorResponse
// @Security BearerAuth
// @Router /batches [post]
func (h *BatchHandler) Create(c echo.Context) error {
	userID := c.Get("userID").(uuid.UUID)
	tier, _ := c.Get("userTier").(string)

	outputFormat := c.FormValue("output_format")
	if outputFormat == "" {
		outputFormat = "jpeg"
	}
	format, err := transcode.ParseFormat(outputFormat)
	if err != nil {
		return utils.RespondError(c, http.StatusBadRequest, err.Error())
	}
	if !format.EncodeSupported() {
		return utils.RespondError(c, http.StatusBadRequest, fmt.Sprintf("output format %s is not supported", outputFormat))
	}

	quality := 0
	if q := c.FormValue("quality"); q != "" {
		quality, err = strconv.Atoi(q)
		if err != nil || quality < 1 || quality > 100 {
			return utils.RespondError(c, http.StatusBadRequest, "quality must be between 1 and 100")
		}
	}

	c.Request().ParseMultipartForm(int64(maxMultipartMemory))
	form, err := c.MultipartForm()
	if err != nil {
		return utils.RespondError(c, http.StatusBadRequest, err.Error())
	}
	files := form.File["files"]
	if len(files) == 0 {
		return utils.RespondError(c, http.StatusBadRequest, "no files uploaded")
	}
	if len(files) > MaxBatchFiles {
		return utils.RespondError(c, http.StatusBadRequest, fmt.Sprintf("too many files, max is %d", MaxBatchFiles))
	}

	batchID := uuid.New()
	uploadDir := filepath.Join(h.config.UploadDir, batchID.String())
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		return utils.RespondError(c, http.StatusInternalServerError, "internal server error")
	}

	tasks := make([]FileTask, 0, len(files))
	for _, file := range files {
		fileID := uuid.New().String()
		dstPath := filepath.Join(uploadDir, fileID+filepath.Ext(file.Filename))
		if err := saveUpload(file, dstPath); err != nil {
			os.RemoveAll(uploadDir)
			return utils.RespondError(c, http.StatusInternalServerError, "internal server error")
		}
		task := FileTask{
			ID:       fileID,
			FilePath: dstPath,
			FileName: file.Filename,
			FileSize: file.Size,
		}
		if quality > 0 {
			task.Options = &FileOptions{Quality: quality}
		}
		tasks = append(tasks, task)
	}

	sessionID := c.FormValue("session_id")
	_, err = h.dbQueries.CreateBatch(c.Request().Context(), database.CreateBatchParams{
		ID:           batchID,
		UserID:       uuid.NullUUID{UUID: userID, Valid: true},
		SessionID:    sql.NullString{String: sessionID, Valid: sessionID != ""},
		UserTier:     tier,
		OutputFormat: outputFormat,
		Status:       "queued",
		TotalFiles:   int32(len(tasks)),
	})
	if err != nil {
		os.RemoveAll(uploadDir)
		return utils.RespondError(c, http.StatusInternalServerError, "internal server error")
	}

	job := &Job{
		BatchID:       batchID.String(),
		Files:         tasks,
		SessionID:     sessionID,
		UserID:        userID.String(),
		UserTier:      tier,
		OutputFormat:  outputFormat,
		OutputDirPath: filepath.Join(h.config.OutputDir, batchID.String()),
		TotalFiles:    len(tasks),
	}
	task, err := NewProcessTask(job)
	if err != nil {
		return utils.RespondError(c, http.StatusInternalServerError, "internal server error")
	}
	handle, err := h.queue.Enqueue(c.Request().Context(), task, tier, batchID.String())
	if err != nil {
		return utils.RespondError(c, http.StatusInternalServerError, "internal server error")
	}

	return utils.RespondJSON(c, http.StatusCreated, "batch queued", CreateResponse{
		BatchID:      batchID.String(),
		JobID:        handle.ID(),
		TotalFiles:   len(tasks),
		OutputFormat: outputFormat,
		StatusURL:    fmt.Sprintf("/api/v1/batches/%s/status", batchID),
	})
}

// Status godoc
// @Summary Batch status
// @Description Live per-file progress while running, persisted results once finished
// @Tags batches
// @Produce json
// @Param batchID path string true "Batch ID"
// @Success 200 {object} utils.SuccessResponse{data=StatusResponse}
// @Failure 400 {object} utils.ErrorResponse
// @Failure 404 {object} utils.ErrorResponse
// @Security BearerAuth
// @Router /batches/{batchID}/status [get]
func (h *BatchHandler) Status(c echo.Context) error {
	batchID, err := uuid.Parse(c.Param("batchID"))
	if err != nil {
		return utils.RespondError(c, http.StatusBadRequest, "invalid batch id")
	}

	ctx := c.Request().Context()

	// Live batches: the tracker has per-file detail the queue does not.
	if bp, ok, err := h.tracker.Get(ctx, batchID.String()); err == nil && ok {
		return utils.RespondJSON(c, http.StatusOK, "batch status", StatusResponse{
			BatchID:    batchID.String(),
			State:      queue.StateActive,
			Progress:   &bp,
			TotalFiles: bp.TotalFiles,
		})
	}

	state := queue.StateWaiting
	if handle, err := h.queue.GetJob(batchID.String()); err == nil {
		if s, err := handle.State(); err == nil {
			state = s
		}
	} else if !errors.Is(err, queue.ErrJobNotFound) {
		return utils.RespondError(c, http.StatusInternalServerError, "internal server error")
	}

	record, err := h.dbQueries.GetBatch(ctx, batchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return utils.RespondError(c, http.StatusNotFound, "batch not found")
		}
		return utils.RespondError(c, http.StatusInternalServerError, "internal server error")
	}

	res := StatusResponse{
		BatchID:    batchID.String(),
		State:      stateFromRecord(record.Status, state),
		TotalFiles: int(record.TotalFiles),
	}
	if record.TotalTime.Valid {
		res.TotalTime = record.TotalTime.Float64
	}
	if record.CompletedAt.Valid {
		res.CompletedAt = &record.CompletedAt.Time
	}

	if res.State == queue.StateCompleted || res.State == queue.StateFailed {
		rows, err := h.dbQueries.ListBatchFiles(ctx, batchID)
		if err != nil {
			return utils.RespondError(c, http.StatusInternalServerError, "internal server error")
		}
		res.Results = fileResultsFromRows(rows)
	}

	return utils.RespondJSON(c, http.StatusOK, "batch status", res)
}

// Cancel godoc
// @Summary Cancel a batch
// @Description Stop after the file currently being processed; queued batches are removed outright
// @Tags batches
// @Produce json
// @Param batchID path string true "Batch ID"
// @Success 200 {object} utils.SuccessResponse{data=CancelResponse}
// @Failure 400 {object} utils.ErrorResponse
// @Failure 500 {object} utils.ErrorResponse
// @Security BearerAuth
// @Router /batches/{batchID}/cancel [post]
func (h *BatchHandler) Cancel(c echo.Context) error {
	batchID, err := uuid.Parse(c.Param("batchID"))
	if err != nil {
		return utils.RespondError(c, http.StatusBadRequest, "invalid batch id")
	}

	ctx := c.Request().Context()
	if err := h.cancel.Set(ctx, batchID.String()); err != nil {
		return utils.RespondError(c, http.StatusInternalServerError, "internal server error")
	}

	// A batch still waiting in the queue can be deleted before it ever runs.
	removed := false
	if handle, err := h.queue.GetJob(batchID.String()); err == nil {
		if state, err := handle.State(); err == nil && state == queue.StateWaiting {
			if err := handle.Remove(); err == nil {
				removed = true
				_ = h.dbQueries.UpdateBatchStatus(ctx, database.UpdateBatchStatusParams{
					ID:     batchID,
					Status: "cancelled",
				})
			}
		}
	}

	return utils.RespondJSON(c, http.StatusOK, "cancellation requested", CancelResponse{
		BatchID: batchID.String(),
		Removed: removed,
	})
}

// QueueStats godoc
// @Summary Queue statistics
// @Description Job counts across the priority queues
// @Tags batches
// @Produce json
// @Success 200 {object} utils.SuccessResponse{data=queue.Stats}
// @Failure 500 {object} utils.ErrorResponse
// @Security BearerAuth
// @Router /queue/stats [get]
func (h *BatchHandler) QueueStats(c echo.Context) error {
	stats, err := h.queue.Stats()
	if err != nil {
		return utils.RespondError(c, http.StatusInternalServerError, "internal server error")
	}
	return utils.RespondJSON(c, http.StatusOK, "queue stats", stats)
}

func saveUpload(file *multipart.FileHeader, dstPath string) error {
	src, err := file.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(dstPath)
	if err != nil {
		return err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return err
	}
	return dst.Close()
}

// stateFromRecord prefers the persisted terminal status over the queue
// view, which may have already expired past retention.
func stateFromRecord(status string, queueState queue.State) queue.State {
	switch status {
	case "completed", "completed_with_errors":
		return queue.StateCompleted
	case "failed", "cancelled":
		return queue.StateFailed
	case "processing":
		return queue.StateActive
	default:
		return queueState
	}
}

func fileResultsFromRows(rows []database.BatchFile) []progress.FileResult {
	results := make([]progress.FileResult, 0, len(rows))
	for _, row := range rows {
		res := progress.FileResult{
			FileID:   row.FileID,
			FileName: row.FileName,
			Status:   progress.FileStatus(row.Status),
		}
		if row.OriginalSize.Valid {
			res.OriginalSize = row.OriginalSize.Int64
		}
		if row.CompressedSize.Valid {
			res.CompressedSize = row.CompressedSize.Int64
		}
		if row.CompressionRatio.Valid {
			res.CompressionRatio = row.CompressionRatio.Float64
		}
		if row.ProcessingTime.Valid {
			res.ProcessingTime = row.ProcessingTime.Float64
		}
		if row.DownloadUrl.Valid {
			res.DownloadURL = row.DownloadUrl.String
		}
		if row.Error.Valid {
			res.Error = row.Error.String
		}
		results = append(results, res)
	}
	return results
}
