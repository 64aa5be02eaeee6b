// Package queue wraps asynq: one job per batch, three priority queues, and
// inspector-backed job handles for state, progress and removal.
package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	"github.com/applelectricals/microjpeg/internal/progress"
)

const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// Retention keeps terminal task state queryable for a day after a job
// finishes, so status polls can still distinguish completed from unknown.
const taskRetention = 24 * time.Hour

const defaultTaskTimeout = 30 * time.Minute

var ErrJobNotFound = errors.New("job not found")

var queueNames = []string{QueueCritical, QueueDefault, QueueLow}

// Priorities returns the asynq queue weights. Paid tiers are served
// strictly before free ones.
func Priorities() map[string]int {
	return map[string]int{
		QueueCritical: 6,
		QueueDefault:  3,
		QueueLow:      1,
	}
}

// QueueForTier maps a subscription tier to a queue. Unknown and anonymous
// tiers land in the low-priority queue.
func QueueForTier(tier string) string {
	switch strings.ToLower(tier) {
	case "enterprise", "premium":
		return QueueCritical
	case "pro", "starter":
		return QueueDefault
	default:
		return QueueLow
	}
}

// State is the coarse job state exposed to callers, distinct from the
// fine-grained per-file progress kept by the tracker.
type State string

const (
	StateWaiting   State = "waiting"
	StateActive    State = "active"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

func stateOf(ts asynq.TaskState) State {
	switch ts {
	case asynq.TaskStateActive:
		return StateActive
	case asynq.TaskStateCompleted:
		return StateCompleted
	case asynq.TaskStateArchived:
		return StateFailed
	default:
		// pending, scheduled, retry, aggregating
		return StateWaiting
	}
}

// Client enqueues batch jobs and looks up their state.
type Client struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	tracker   progress.Tracker
}

func NewClient(redisAddr, redisPassword string, redisDB int, tracker progress.Tracker) *Client {
	opt := asynq.RedisClientOpt{
		Addr:     redisAddr,
		Password: redisPassword,
		DB:       redisDB,
	}
	return &Client{
		client:    asynq.NewClient(opt),
		inspector: asynq.NewInspector(opt),
		tracker:   tracker,
	}
}

func (c *Client) Close() error {
	if err := c.client.Close(); err != nil {
		return fmt.Errorf("close asynq client: %w", err)
	}
	return c.inspector.Close()
}

// Enqueue submits one task (one batch) on the queue matching the tier,
// keyed by jobID so it can be found again.
func (c *Client) Enqueue(ctx context.Context, task *asynq.Task, tier, jobID string) (*JobHandle, error) {
	info, err := c.client.EnqueueContext(ctx, task,
		asynq.Queue(QueueForTier(tier)),
		asynq.TaskID(jobID),
		asynq.MaxRetry(3),
		asynq.Timeout(defaultTaskTimeout),
		asynq.Retention(taskRetention),
	)
	if err != nil {
		return nil, fmt.Errorf("enqueue job: %w", err)
	}

	return &JobHandle{
		inspector: c.inspector,
		tracker:   c.tracker,
		queue:     info.Queue,
		id:        info.ID,
	}, nil
}

// GetJob finds a job by id across all queues. Returns ErrJobNotFound when
// no queue has a record of it (finished past retention, or never enqueued).
func (c *Client) GetJob(jobID string) (*JobHandle, error) {
	for _, q := range queueNames {
		_, err := c.inspector.GetTaskInfo(q, jobID)
		if err != nil {
			if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
				continue
			}
			return nil, fmt.Errorf("get task info: %w", err)
		}
		return &JobHandle{
			inspector: c.inspector,
			tracker:   c.tracker,
			queue:     q,
			id:        jobID,
		}, nil
	}
	return nil, ErrJobNotFound
}

// Stats aggregates job counts across the priority queues.
type Stats struct {
	Waiting   int `json:"waiting"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

func (c *Client) Stats() (*Stats, error) {
	var stats Stats
	for _, q := range queueNames {
		info, err := c.inspector.GetQueueInfo(q)
		if err != nil {
			if errors.Is(err, asynq.ErrQueueNotFound) {
				continue
			}
			return nil, fmt.Errorf("get queue info: %w", err)
		}
		stats.Waiting += info.Pending + info.Scheduled + info.Retry
		stats.Active += info.Active
		stats.Completed += info.Completed
		stats.Failed += info.Archived
	}
	return &stats, nil
}

// JobHandle is a reference to one enqueued batch job.
type JobHandle struct {
	inspector *asynq.Inspector
	tracker   progress.Tracker
	queue     string
	id        string
}

func (h *JobHandle) ID() string {
	return h.id
}

func (h *JobHandle) State() (State, error) {
	info, err := h.inspector.GetTaskInfo(h.queue, h.id)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskNotFound) {
			return "", ErrJobNotFound
		}
		return "", fmt.Errorf("get task info: %w", err)
	}
	return stateOf(info.State), nil
}

// Progress returns the whole-batch percentage. While the batch runs it
// comes from the tracker; once the tracker entry is cleared the job state
// decides (100 for completed, last known otherwise).
func (h *JobHandle) Progress(ctx context.Context) int {
	if h.tracker != nil {
		if bp, ok, err := h.tracker.Get(ctx, h.id); err == nil && ok {
			return bp.ProgressPercentage
		}
	}
	if state, err := h.State(); err == nil && state == StateCompleted {
		return 100
	}
	return 0
}

// Remove deletes the job from its queue. Only waiting jobs can be removed;
// asynq refuses to delete an active task.
func (h *JobHandle) Remove() error {
	if err := h.inspector.DeleteTask(h.queue, h.id); err != nil {
		if errors.Is(err, asynq.ErrTaskNotFound) {
			return ErrJobNotFound
		}
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}
