package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/imalyk/go-audio-mashup/pkg/audio"
	"github.com/imalyk/go-audio-mashup/pkg/job"
	"github.com/imalyk/go-audio-mashup/pkg/pipeline"
	"github.com/imalyk/go-audio-mashup/pkg/prompt"
	"github.com/imalyk/go-audio-mashup/pkg/storage"
	"github.com/imalyk/go-audio-mashup/pkg/youtube"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := loadConfig()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	if err := run(ctx, cfg, logger); err != nil {
		log.Fatalf("server stopped with error: %v", err)
	}
}

func run(ctx context.Context, cfg config, logger *slog.Logger) error {
	store, closeStore, err := newStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init job store: %w", err)
	}
	defer closeStore()

	interpreter, err := newInterpreter(cfg, logger)
	if err != nil {
		return err
	}
	publisher, err := newPublisher(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init publisher: %w", err)
	}

	ytdlp := youtube.NewYTDLP(cfg.YTDLPPath, logger)
	var resolver youtube.Resolver = ytdlp
	if cfg.Resolver == "api" {
		resolver = youtube.NewAPIResolver(cfg.YouTubeAPIKey, logger)
	}

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	proc := pipeline.NewProcessor(pipeline.Deps{
		Store:       store,
		Interpreter: interpreter,
		Resolver:    resolver,
		Fetcher:     ytdlp,
		Codec:       audio.NewFFmpeg(cfg.FFmpegPath),
		Publisher:   publisher,
	}, pipeline.Config{
		OutputDir: cfg.OutputDir,
		WorkDir:   cfg.WorkDir,
		Crossfade: cfg.Crossfade,
		Timeout:   cfg.JobTimeout,
	}, logger)
	queue := pipeline.NewQueue(proc, cfg.Workers, cfg.QueueSize, logger)

	srv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: newRouter(&server{
			store:     store,
			queue:     queue,
			outputDir: cfg.OutputDir,
			logger:    logger,
		}, cfg.CORSOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting server", "addr", srv.Addr, "store", cfg.JobStore, "llm", cfg.LLMProvider, "resolver", cfg.Resolver, "publish", cfg.PublishBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := queue.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func newStore(ctx context.Context, cfg config) (job.Store, func(), error) {
	switch cfg.JobStore {
	case "memory", "":
		return job.NewMemoryStore(), func() {}, nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("redis ping: %w", err)
		}
		return job.NewRedisStore(client, cfg.RedisJobTTL), func() { client.Close() }, nil
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, nil, errors.New("missing DATABASE_URL")
		}
		s, err := job.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown JOB_STORE %q", cfg.JobStore)
	}
}

func newInterpreter(cfg config, logger *slog.Logger) (prompt.Interpreter, error) {
	switch cfg.LLMProvider {
	case "openai":
		return prompt.NewOpenAI(cfg.OpenAIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL, logger), nil
	case "ollama":
		return prompt.NewOllama(cfg.OllamaURL, cfg.OllamaModel, logger), nil
	default:
		return nil, fmt.Errorf("unknown LLM_PROVIDER %q", cfg.LLMProvider)
	}
}

func newPublisher(ctx context.Context, cfg config) (storage.Publisher, error) {
	switch cfg.PublishBackend {
	case "local", "":
		return storage.NewLocalPublisher(cfg.PublicURL), nil
	case "minio":
		return storage.NewMinioPublisher(ctx, storage.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			UseSSL:    cfg.MinioUseSSL,
			Region:    cfg.MinioRegion,
			Bucket:    cfg.MinioBucket,
			Prefix:    cfg.ObjectPrefix,
			URLTTL:    cfg.PresignTTL,
		})
	case "s3":
		return storage.NewS3Publisher(ctx, storage.S3Config{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			Prefix:    cfg.ObjectPrefix,
			URLTTL:    cfg.PresignTTL,
		})
	default:
		return nil, fmt.Errorf("unknown PUBLISH_BACKEND %q", cfg.PublishBackend)
	}
}
