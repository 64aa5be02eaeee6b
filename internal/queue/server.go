package queue

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// Server wraps the asynq worker server with this service's queue layout:
// strict priority across critical/default/low and exponential retry backoff.
type Server struct {
	server *asynq.Server
}

func NewServer(redisAddr, redisPassword string, redisDB, concurrency int, logger zerolog.Logger) *Server {
	opt := asynq.RedisClientOpt{
		Addr:         redisAddr,
		Password:     redisPassword,
		DB:           redisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency:    concurrency,
		Queues:         Priorities(),
		StrictPriority: true,
		RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
			delay := time.Duration(1<<uint(n)) * time.Second
			if delay > time.Minute {
				delay = time.Minute
			}
			logger.Warn().
				Str("task", task.Type()).
				Int("retry", n).
				Dur("delay", delay).
				Err(err).
				Msg("task failed, retry scheduled")
			return delay
		},
		ErrorHandler: asynq.ErrorHandlerFunc(func(_ context.Context, task *asynq.Task, err error) {
			logger.Error().Str("task", task.Type()).Err(err).Msg("task error")
		}),
	})

	return &Server{server: srv}
}

// Run starts processing and blocks until shutdown (signal-driven).
func (s *Server) Run(mux *asynq.ServeMux) error {
	return s.server.Run(mux)
}

func (s *Server) Shutdown() {
	s.server.Shutdown()
}
