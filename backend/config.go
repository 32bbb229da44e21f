package main

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type config struct {
	Port      string
	OutputDir string
	WorkDir   string
	LogLevel  slog.Level

	Workers    int
	QueueSize  int
	JobTimeout time.Duration
	Crossfade  time.Duration

	FFmpegPath string
	YTDLPPath  string

	LLMProvider   string
	OpenAIKey     string
	OpenAIModel   string
	OpenAIBaseURL string
	OllamaURL     string
	OllamaModel   string

	Resolver      string
	YouTubeAPIKey string

	JobStore      string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisJobTTL   time.Duration
	DatabaseURL   string

	PublishBackend string
	PublicURL      string
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioUseSSL    bool
	MinioRegion    string
	MinioBucket    string
	S3Endpoint     string
	S3Region       string
	S3AccessKey    string
	S3SecretKey    string
	S3Bucket       string
	ObjectPrefix   string
	PresignTTL     time.Duration

	CORSOrigins []string
}

func loadConfig() config {
	logLevel := slog.LevelInfo
	switch strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL"))) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn", "warning":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	workDir := os.Getenv("WORK_DIR")
	if workDir == "" {
		workDir = os.TempDir() + "/mashup"
	}

	return config{
		Port:      valueOrDefault(os.Getenv("PORT"), "8000"),
		OutputDir: valueOrDefault(os.Getenv("OUTPUT_DIR"), "output"),
		WorkDir:   workDir,
		LogLevel:  logLevel,

		Workers:    parseInt(os.Getenv("WORKERS"), 2),
		QueueSize:  parseInt(os.Getenv("QUEUE_SIZE"), 100),
		JobTimeout: parseDuration(os.Getenv("JOB_TIMEOUT"), 15*time.Minute),
		Crossfade:  time.Duration(parseInt(os.Getenv("CROSSFADE_MS"), 1500)) * time.Millisecond,

		FFmpegPath: valueOrDefault(os.Getenv("FFMPEG_PATH"), "ffmpeg"),
		YTDLPPath:  valueOrDefault(os.Getenv("YTDLP_PATH"), "yt-dlp"),

		LLMProvider:   strings.ToLower(valueOrDefault(os.Getenv("LLM_PROVIDER"), "openai")),
		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:   valueOrDefault(os.Getenv("OPENAI_MODEL"), "gpt-4-turbo"),
		OpenAIBaseURL: os.Getenv("OPENAI_BASE_URL"),
		OllamaURL:     valueOrDefault(os.Getenv("OLLAMA_URL"), "http://localhost:11434"),
		OllamaModel:   valueOrDefault(os.Getenv("OLLAMA_MODEL"), "llama3.1"),

		Resolver:      strings.ToLower(valueOrDefault(os.Getenv("RESOLVER"), "ytdlp")),
		YouTubeAPIKey: os.Getenv("YOUTUBE_API_KEY"),

		JobStore:      strings.ToLower(valueOrDefault(os.Getenv("JOB_STORE"), "memory")),
		RedisAddr:     valueOrDefault(os.Getenv("REDIS_ADDR"), "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       parseInt(os.Getenv("REDIS_DB"), 0),
		RedisJobTTL:   parseDuration(os.Getenv("REDIS_JOB_TTL"), 24*time.Hour),
		DatabaseURL:   os.Getenv("DATABASE_URL"),

		PublishBackend: strings.ToLower(valueOrDefault(os.Getenv("PUBLISH_BACKEND"), "local")),
		PublicURL:      valueOrDefault(os.Getenv("PUBLIC_OUTPUT_URL"), "/output"),
		MinioEndpoint:  valueOrDefault(os.Getenv("MINIO_ENDPOINT"), "localhost:9000"),
		MinioAccessKey: valueOrDefault(os.Getenv("MINIO_ACCESS_KEY"), "minio"),
		MinioSecretKey: valueOrDefault(os.Getenv("MINIO_SECRET_KEY"), "minio123"),
		MinioUseSSL:    strings.EqualFold(os.Getenv("MINIO_USE_SSL"), "true"),
		MinioRegion:    os.Getenv("MINIO_REGION"),
		MinioBucket:    valueOrDefault(os.Getenv("MINIO_BUCKET"), "mashups"),
		S3Endpoint:     os.Getenv("S3_ENDPOINT"),
		S3Region:       os.Getenv("S3_REGION"),
		S3AccessKey:    os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:    os.Getenv("S3_SECRET_KEY"),
		S3Bucket:       os.Getenv("S3_BUCKET"),
		ObjectPrefix:   os.Getenv("OBJECT_PREFIX"),
		PresignTTL:     parseDuration(os.Getenv("PRESIGN_TTL"), 24*time.Hour),

		CORSOrigins: splitList(valueOrDefault(os.Getenv("CORS_ORIGINS"), "http://localhost:3000,http://localhost:3003")),
	}
}

func parseInt(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
