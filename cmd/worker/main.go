package main

import (
	"context"
	"database/sql"
	"os"
	"strconv"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/applelectricals/microjpeg/internal/batch"
	"github.com/applelectricals/microjpeg/internal/database"
	logx "github.com/applelectricals/microjpeg/internal/logs"
	"github.com/applelectricals/microjpeg/internal/progress"
	"github.com/applelectricals/microjpeg/internal/queue"
	"github.com/applelectricals/microjpeg/internal/storage"
	"github.com/applelectricals/microjpeg/internal/transcode"
)

func main() {
	_ = godotenv.Load()
	logger := logx.Setup(logx.FromEnv("worker"))

	postgresURL := os.Getenv("POSTGRES_URL")
	if postgresURL == "" {
		logger.Fatal().Msg("POSTGRES_URL is not set")
	}
	s3Bucket := os.Getenv("S3_BUCKET")
	if s3Bucket == "" {
		logger.Fatal().Msg("S3_BUCKET is not set")
	}
	s3CfDistribution := os.Getenv("S3_CF_DISTRIBUTION")
	if s3CfDistribution == "" {
		logger.Fatal().Msg("S3_CF_DISTRIBUTION is not set")
	}
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		logger.Fatal().Msg("REDIS_ADDR is not set")
	}
	redisPassword := os.Getenv("REDIS_PASSWORD")
	redisDB, _ := strconv.Atoi(os.Getenv("REDIS_DB"))
	awsRegion := os.Getenv("AWS_REGION")
	if awsRegion == "" {
		awsRegion = "us-east-1"
	}
	concurrency, _ := strconv.Atoi(os.Getenv("WORKER_CONCURRENCY"))
	if concurrency <= 0 {
		// One batch per worker process keeps file processing strictly
		// sequential; scale out with more processes.
		concurrency = 1
	}

	db, err := sql.Open("postgres", postgresURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect sql database")
	}
	dbQueries := database.New(db)

	uploader, err := storage.New(
		context.Background(),
		os.Getenv("AWS_ACCESS_KEY_ID"),
		os.Getenv("AWS_SECRET_ACCESS_KEY"),
		awsRegion,
		s3Bucket,
		s3CfDistribution,
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build s3 uploader")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: redisPassword,
		DB:       redisDB,
	})
	tracker := progress.NewRedisTracker(rdb)
	cancelFlag := queue.NewCancelFlag(rdb)

	processor := batch.NewProcessor(
		transcode.New(),
		uploader,
		tracker,
		batch.WithCancelFlag(cancelFlag),
		batch.WithLogger(logger),
	)
	handler := batch.NewTaskHandler(processor, dbQueries, logger)

	srv := queue.NewServer(redisAddr, redisPassword, redisDB, concurrency, logger)
	mux := asynq.NewServeMux()
	mux.HandleFunc(batch.TaskTypeProcess, handler.ProcessTask)

	logger.Info().Int("concurrency", concurrency).Msg("worker started")
	if err := srv.Run(mux); err != nil {
		logger.Fatal().Err(err).Msg("worker stopped")
	}
}
