package utils

type Config struct {
	JwtSecret        string
	S3Bucket         string
	S3CfDistribution string
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	UploadDir        string
	OutputDir        string
}
