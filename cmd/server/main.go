package main

import (
	"database/sql"
	"net/http"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	echoSwagger "github.com/swaggo/echo-swagger"

	"github.com/applelectricals/microjpeg/cmd/server/docs"
	"github.com/applelectricals/microjpeg/internal/auth"
	"github.com/applelectricals/microjpeg/internal/batch"
	"github.com/applelectricals/microjpeg/internal/database"
	logx "github.com/applelectricals/microjpeg/internal/logs"
	"github.com/applelectricals/microjpeg/internal/middleware"
	"github.com/applelectricals/microjpeg/internal/progress"
	"github.com/applelectricals/microjpeg/internal/queue"
	"github.com/applelectricals/microjpeg/internal/utils"
)

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	e := echo.New()

	_ = godotenv.Load()
	logger := logx.Setup(logx.FromEnv("server"))

	postgresURL := os.Getenv("POSTGRES_URL")
	if postgresURL == "" {
		logger.Fatal().Msg("POSTGRES_URL is not set")
	}
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		logger.Fatal().Msg("JWT_SECRET is not set")
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
	uploadDir := os.Getenv("UPLOAD_DIR")
	if uploadDir == "" {
		uploadDir = "/tmp/microjpeg/uploads"
	}
	outputDir := os.Getenv("OUTPUT_DIR")
	if outputDir == "" {
		outputDir = "/tmp/microjpeg/output"
	}

	docs.SwaggerInfo.Title = "MicroJPEG API"
	docs.SwaggerInfo.Description = "Batch image compression service."
	docs.SwaggerInfo.Version = "1.0"
	docs.SwaggerInfo.Host = "localhost:3000"
	docs.SwaggerInfo.BasePath = "/api/v1"
	docs.SwaggerInfo.Schemes = []string{"http", "https"}

	cfg := &utils.Config{
		JwtSecret:        jwtSecret,
		S3Bucket:         s3Bucket,
		S3CfDistribution: s3CfDistribution,
		RedisAddr:        redisAddr,
		RedisPassword:    redisPassword,
		RedisDB:          redisDB,
		UploadDir:        uploadDir,
		OutputDir:        outputDir,
	}

	db, err := sql.Open("postgres", postgresURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect sql database")
	}
	dbQueries := database.New(db)

	rdb := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: redisPassword,
		DB:       redisDB,
	})
	tracker := progress.NewRedisTracker(rdb)
	cancelFlag := queue.NewCancelFlag(rdb)

	queueClient := queue.NewClient(redisAddr, redisPassword, redisDB, tracker)
	defer queueClient.Close()

	validator := validator.New(validator.WithRequiredStructEnabled())

	authHandler := auth.NewHandler(validator, dbQueries, cfg)
	batchHandler := batch.NewHandler(validator, dbQueries, queueClient, tracker, cancelFlag, cfg)

	e.GET("/", func(c echo.Context) error {
		return c.String(http.StatusOK, "microjpeg")
	})
	e.GET("/swagger/*", echoSwagger.WrapHandler)
	apiV1 := e.Group("/api/v1")
	apiV1.POST("/login", authHandler.Login)
	apiV1.POST("/register", authHandler.Register)

	apiV1.Use(middleware.Authenticated(cfg))
	apiV1.POST("/batches", batchHandler.Create)
	apiV1.GET("/batches/:batchID/status", batchHandler.Status)
	apiV1.POST("/batches/:batchID/cancel", batchHandler.Cancel)
	apiV1.GET("/queue/stats", batchHandler.QueueStats)

	e.Logger.Fatal(e.Start(":3000"))
}
