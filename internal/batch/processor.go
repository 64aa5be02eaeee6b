package batch

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/applelectricals/microjpeg/internal/progress"
	"github.com/applelectricals/microjpeg/internal/storage"
	"github.com/applelectricals/microjpeg/internal/transcode"
)

// ProgressSink receives the whole-batch percentage after each progress
// update, decoupling the processor from any particular job-queue API.
type ProgressSink func(percent int)

// CancelFlag reports whether cancellation was requested for a batch. The
// processor checks it between files only; a file already in flight runs to
// completion.
type CancelFlag interface {
	IsSet(ctx context.Context, batchID string) bool
}

// FatalError aborts a batch as a whole. It carries the synthesized results
// (processed files plus the remainder marked skipped) so the per-file view
// stays inspectable even though the job itself is recorded as failed.
type FatalError struct {
	BatchID string
	Results []progress.FileResult
	Err     error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("batch %s halted: %v", e.BatchID, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// Processor runs one batch at a time: files are transcoded and uploaded
// strictly in submission order, one file in flight, so memory stays bounded
// and "file N of M" progress means what it says. A single file's failure
// never aborts the batch.
type Processor struct {
	transcoder transcode.Transcoder
	uploader   storage.Uploader
	tracker    progress.Tracker
	cancel     CancelFlag
	logger     zerolog.Logger
}

type ProcessorOption func(*Processor)

func WithCancelFlag(flag CancelFlag) ProcessorOption {
	return func(p *Processor) {
		p.cancel = flag
	}
}

func WithLogger(logger zerolog.Logger) ProcessorOption {
	return func(p *Processor) {
		p.logger = logger
	}
}

func NewProcessor(transcoder transcode.Transcoder, uploader storage.Uploader, tracker progress.Tracker, opts ...ProcessorOption) *Processor {
	p := &Processor{
		transcoder: transcoder,
		uploader:   uploader,
		tracker:    tracker,
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process runs the batch and returns the consolidated report. Per-file
// errors are recorded in the results and processing continues; a batch-
// fatal error (output directory unusable, tracker initialization failure)
// returns a *FatalError instead. Either way the tracker entry is gone by
// the time Process returns.
func (p *Processor) Process(ctx context.Context, job *Job, sink ProgressSink) (*Report, error) {
	if err := job.Validate(); err != nil {
		return nil, fmt.Errorf("invalid batch job: %w", err)
	}

	start := time.Now()
	logger := p.logger.With().Str("batch_id", job.BatchID).Logger()
	logger.Info().Int("files", job.TotalFiles).Str("format", job.OutputFormat).Msg("batch started")

	if err := p.tracker.Initialize(ctx, job.BatchID, job.TotalFiles); err != nil {
		return nil, p.fatal(ctx, job, nil, fmt.Errorf("initialize tracker: %w", err))
	}
	defer func() {
		_ = p.tracker.Clear(ctx, job.BatchID)
	}()

	if err := os.MkdirAll(job.OutputDirPath, 0o755); err != nil {
		return nil, p.fatal(ctx, job, nil, fmt.Errorf("create output directory: %w", err))
	}

	results := make([]progress.FileResult, 0, len(job.Files))
	cancelled := false

	for i, task := range job.Files {
		if !cancelled && p.cancel != nil && p.cancel.IsSet(ctx, job.BatchID) {
			cancelled = true
			logger.Info().Int("remaining", len(job.Files)-i).Msg("batch cancelled by user")
		}

		var res progress.FileResult
		if cancelled {
			res = progress.FileResult{
				FileID:   task.ID,
				FileName: task.FileName,
				Status:   progress.StatusSkipped,
				Error:    "cancelled by user",
			}
		} else {
			res = p.processFile(ctx, job, i, task, sink, logger)
		}
		results = append(results, res)

		processed := i + 1
		p.updateTracker(ctx, job.BatchID, func(bp *progress.BatchProgress) {
			bp.ProcessedFiles = processed
			bp.Results = append(bp.Results, res)
			if res.Status == progress.StatusFailed {
				bp.FailedFiles = append(bp.FailedFiles, res.FileName)
			}
			bp.EstimatedTimeRemaining = progress.EstimateRemaining(bp.StartedAt, processed, bp.TotalFiles)
			bp.ProgressPercentage = progress.Percentage(processed, bp.TotalFiles)
		})
	}

	report := &Report{
		BatchID:   job.BatchID,
		Results:   results,
		TotalTime: roundSeconds(time.Since(start)),
	}
	for _, res := range results {
		switch res.Status {
		case progress.StatusSuccess:
			report.SuccessCount++
		case progress.StatusFailed:
			report.FailureCount++
		}
	}
	report.Success = report.FailureCount == 0

	logger.Info().
		Int("succeeded", report.SuccessCount).
		Int("failed", report.FailureCount).
		Float64("total_time", report.TotalTime).
		Bool("cancelled", cancelled).
		Msg("batch finished")
	return report, nil
}

// processFile runs steps for a single file: progress update, existence
// check, transcode, upload, cleanup. All errors are caught here and folded
// into the result; nothing per-file propagates.
func (p *Processor) processFile(ctx context.Context, job *Job, index int, task FileTask, sink ProgressSink, logger zerolog.Logger) progress.FileResult {
	fileStart := time.Now()

	// Percentage of files started, not finished. The post-file update
	// below recomputes from the completed count; this intermediate value
	// keeps the first (possibly slowest) file from sitting at 0%.
	started := progress.Percentage(index+1, job.TotalFiles)
	p.updateTracker(ctx, job.BatchID, func(bp *progress.BatchProgress) {
		bp.CurrentFileIndex = index
		bp.CurrentFileName = task.FileName
		bp.ProgressPercentage = started
	})
	if sink != nil {
		sink(started)
	}

	res := progress.FileResult{
		FileID:   task.ID,
		FileName: task.FileName,
		Status:   progress.StatusProcessing,
	}

	err := func() error {
		info, err := os.Stat(task.FilePath)
		if err != nil {
			return fmt.Errorf("source file not found: %s", task.FileName)
		}
		res.OriginalSize = info.Size()

		opts, err := effectiveOptions(job, task)
		if err != nil {
			return err
		}

		outName := outputFileName(task.FileName, opts.Format)
		outPath := filepath.Join(job.OutputDirPath, outName)
		written, err := p.transcoder.Transcode(task.FilePath, outPath, opts)
		if err != nil {
			return err
		}
		res.CompressedSize = written

		key := path.Join("processed", job.BatchID, outName)
		url, err := p.uploader.Upload(ctx, outPath, key)
		if err != nil {
			logger.Error().Str("file", task.FileName).Err(err).Msg("upload failed")
			return fmt.Errorf("upload failed: %s", task.FileName)
		}
		res.DownloadURL = url

		// Best-effort local cleanup once the upload landed.
		_ = os.Remove(outPath)
		return nil
	}()

	res.ProcessingTime = roundSeconds(time.Since(fileStart))
	if err != nil {
		res.Status = progress.StatusFailed
		res.Error = err.Error()
		logger.Warn().Str("file", task.FileName).Err(err).Msg("file failed")
		return res
	}

	res.Status = progress.StatusSuccess
	res.CompressionRatio = progress.CompressionRatio(res.OriginalSize, res.CompressedSize)
	logger.Debug().
		Str("file", task.FileName).
		Int64("original", res.OriginalSize).
		Int64("compressed", res.CompressedSize).
		Float64("ratio", res.CompressionRatio).
		Msg("file processed")
	return res
}

// fatal synthesizes skipped results for everything not yet processed,
// clears the tracker and wraps the cause so the job runner records the job
// itself as failed.
func (p *Processor) fatal(ctx context.Context, job *Job, done []progress.FileResult, cause error) error {
	results := append([]progress.FileResult(nil), done...)
	for _, task := range job.Files[len(done):] {
		results = append(results, progress.FileResult{
			FileID:   task.ID,
			FileName: task.FileName,
			Status:   progress.StatusSkipped,
			Error:    "batch halted",
		})
	}
	_ = p.tracker.Clear(ctx, job.BatchID)

	p.logger.Error().Str("batch_id", job.BatchID).Err(cause).Msg("batch halted")
	return &FatalError{BatchID: job.BatchID, Results: results, Err: cause}
}

// updateTracker applies the mutation and logs instead of failing: progress
// is advisory and a flaky tracker write must not take the batch down.
func (p *Processor) updateTracker(ctx context.Context, batchID string, fn func(*progress.BatchProgress)) {
	if err := p.tracker.Update(ctx, batchID, fn); err != nil {
		p.logger.Warn().Str("batch_id", batchID).Err(err).Msg("progress update failed")
	}
}

// effectiveOptions merges the file's overrides over the batch default
// format. Unknown formats and out-of-range values fail here, before any
// work is done on the file.
func effectiveOptions(job *Job, task FileTask) (transcode.Options, error) {
	formatName := job.OutputFormat
	var opts transcode.Options
	if task.Options != nil {
		if task.Options.Format != "" {
			formatName = task.Options.Format
		}
		opts.Quality = task.Options.Quality
		opts.Width = task.Options.Width
		opts.Height = task.Options.Height
	}

	format, err := transcode.ParseFormat(formatName)
	if err != nil {
		return transcode.Options{}, err
	}
	opts.Format = format

	if err := opts.Validate(); err != nil {
		return transcode.Options{}, err
	}
	return opts, nil
}

func outputFileName(fileName string, format transcode.Format) string {
	base := strings.TrimSuffix(fileName, filepath.Ext(fileName))
	if base == "" {
		base = fileName
	}
	return base + format.Ext()
}

func roundSeconds(d time.Duration) float64 {
	return float64(d.Milliseconds()) / 1000
}
