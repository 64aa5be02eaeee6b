// Package progress holds the live, in-flight state of batches being
// processed. The tracker is the single source of truth for "how far along
// is this batch" while a batch runs; entries are removed as soon as the
// batch finishes, so callers must fall back to the job queue (or the
// database) for terminal state.
package progress

import (
	"context"
	"math"
	"sync"
	"time"
)

type FileStatus string

const (
	StatusPending    FileStatus = "pending"
	StatusProcessing FileStatus = "processing"
	StatusSuccess    FileStatus = "success"
	StatusFailed     FileStatus = "failed"
	StatusSkipped    FileStatus = "skipped"
)

// FileResult is the outcome of processing a single file.
type FileResult struct {
	FileID           string     `json:"fileId"`
	FileName         string     `json:"fileName"`
	Status           FileStatus `json:"status"`
	OriginalSize     int64      `json:"originalSize,omitempty"`
	CompressedSize   int64      `json:"compressedSize,omitempty"`
	CompressionRatio float64    `json:"compressionRatio,omitempty"`
	ProcessingTime   float64    `json:"processingTime,omitempty"`
	DownloadURL      string     `json:"downloadUrl,omitempty"`
	Error            string     `json:"error,omitempty"`
}

// BatchProgress is the mutable state of one in-flight batch. There is a
// single writer (the processor) and many readers (status polls).
type BatchProgress struct {
	BatchID                string       `json:"batchId"`
	TotalFiles             int          `json:"totalFiles"`
	ProcessedFiles         int          `json:"processedFiles"`
	CurrentFileIndex       int          `json:"currentFileIndex"`
	CurrentFileName        string       `json:"currentFileName"`
	Results                []FileResult `json:"results"`
	FailedFiles            []string     `json:"failedFiles"`
	EstimatedTimeRemaining int          `json:"estimatedTimeRemaining"`
	ProgressPercentage     int          `json:"progressPercentage"`
	StartedAt              time.Time    `json:"startedAt"`
}

// Tracker is a keyed store of BatchProgress entries. Update applies the
// mutation as a single atomic merge; it is a no-op for unknown batch ids,
// which tolerates status races arriving after cleanup.
type Tracker interface {
	Initialize(ctx context.Context, batchID string, totalFiles int) error
	Update(ctx context.Context, batchID string, fn func(*BatchProgress)) error
	Get(ctx context.Context, batchID string) (BatchProgress, bool, error)
	Clear(ctx context.Context, batchID string) error
}

// MemoryTracker keeps progress in process memory. Used in tests and in
// single-binary deployments where the API and the worker share a process.
type MemoryTracker struct {
	mu      sync.RWMutex
	batches map[string]*BatchProgress
}

func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{
		batches: make(map[string]*BatchProgress),
	}
}

// Initialize creates a zeroed entry for the batch. Calling it again for the
// same id overwrites the previous entry; batch ids are caller-generated and
// assumed unique.
func (t *MemoryTracker) Initialize(_ context.Context, batchID string, totalFiles int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.batches[batchID] = &BatchProgress{
		BatchID:     batchID,
		TotalFiles:  totalFiles,
		Results:     []FileResult{},
		FailedFiles: []string{},
		StartedAt:   time.Now(),
	}
	return nil
}

func (t *MemoryTracker) Update(_ context.Context, batchID string, fn func(*BatchProgress)) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	bp, ok := t.batches[batchID]
	if !ok {
		return nil
	}
	fn(bp)
	return nil
}

// Get returns a snapshot of the batch progress. The bool is false when the
// batch is unknown, which callers must treat as "finished or never started",
// not as an error.
func (t *MemoryTracker) Get(_ context.Context, batchID string) (BatchProgress, bool, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	bp, ok := t.batches[batchID]
	if !ok {
		return BatchProgress{}, false, nil
	}

	snapshot := *bp
	snapshot.Results = append([]FileResult(nil), bp.Results...)
	snapshot.FailedFiles = append([]string(nil), bp.FailedFiles...)
	return snapshot, true, nil
}

func (t *MemoryTracker) Clear(_ context.Context, batchID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.batches, batchID)
	return nil
}

// EstimateRemaining projects the seconds left for a batch from the average
// time per completed file. Returns 0 before the first file completes.
func EstimateRemaining(startedAt time.Time, processed, total int) int {
	if processed <= 0 {
		return 0
	}
	elapsed := time.Since(startedAt)
	perFile := elapsed / time.Duration(processed)
	remaining := perFile * time.Duration(total-processed)
	return int(math.Round(remaining.Seconds()))
}

// Percentage returns done/total as a whole percentage, rounded to the
// nearest integer.
func Percentage(done, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(done) * 100 / float64(total)))
}

// CompressionRatio reports the space saved as a percentage of the original
// size, rounded to the nearest integer. Negative when the output is larger
// than the input; callers must handle negative savings.
func CompressionRatio(originalSize, compressedSize int64) float64 {
	if originalSize <= 0 {
		return 0
	}
	return math.Round(float64(originalSize-compressedSize) / float64(originalSize) * 100)
}
