package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"github.com/tasuboyz/Insta-Publish-Bot/config"
	"github.com/tasuboyz/Insta-Publish-Bot/internal/email"
	"github.com/tasuboyz/Insta-Publish-Bot/internal/health"
	"github.com/tasuboyz/Insta-Publish-Bot/internal/infrastructure/postgres"
	"github.com/tasuboyz/Insta-Publish-Bot/internal/infrastructure/redisstore"
	"github.com/tasuboyz/Insta-Publish-Bot/internal/instagram"
	ctxlog "github.com/tasuboyz/Insta-Publish-Bot/internal/log"
	"github.com/tasuboyz/Insta-Publish-Bot/internal/metrics"
	"github.com/tasuboyz/Insta-Publish-Bot/internal/scheduler"
	"github.com/tasuboyz/Insta-Publish-Bot/internal/token"
	httptransport "github.com/tasuboyz/Insta-Publish-Bot/internal/transport/http"
	"github.com/tasuboyz/Insta-Publish-Bot/internal/transport/http/handler"
	"github.com/tasuboyz/Insta-Publish-Bot/internal/uploader"
	"github.com/tasuboyz/Insta-Publish-Bot/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := newLogger(cfg.Env, cfg.SlogLevel())

	if cfg.Env != "local" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		stop()
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer func() { _ = rdb.Close() }()

	logger.Info("stores connected")

	metrics.Register()
	checker := health.NewChecker(map[string]health.Pinger{
		"postgres": pool,
		"redis": health.PingerFunc(func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}),
	}, logger, prometheus.DefaultRegisterer)

	// Posts and sessions
	postRepo := postgres.NewPostRepository(pool)
	sessionStore := redisstore.NewSessionStore(rdb)
	sched := usecase.NewScheduler(postRepo, logger)
	sessions := usecase.NewSessionUsecase(sessionStore, sched, logger)

	// Credential lifecycle
	graph := instagram.NewClient(cfg.GraphAPIVersion)
	alerts := email.NewSender(cfg.Env, cfg.ResendAPIKey, cfg.ResendFrom, logger)
	tokens := token.NewManager(graph, token.NewEnvFileStore(cfg.EnvFilePath), alerts, token.Config{
		AccessToken: cfg.InstagramAccessToken,
		AppID:       cfg.FacebookAppID,
		AppSecret:   cfg.FacebookAppSecret,
		AccountID:   cfg.InstagramAccountID,
		AlertTo:     cfg.AlertEmail,
	}, logger)

	// Publish pipeline
	publisher := instagram.NewPublisher(graph, tokens, cfg.InstagramAccountID, logger)
	poller := scheduler.NewPoller(sched, publisher, logger, cfg.PollInterval())
	pollerDone := make(chan struct{})
	go func() {
		defer close(pollerDone)
		poller.Start(ctx)
	}()

	var refresher *cron.Cron
	if cfg.AutoRefreshToken {
		refresher = cron.New()
		_, err := refresher.AddFunc(cfg.TokenRefreshSchedule, func() {
			if err := tokens.CheckAndRefresh(ctx, cfg.TokenThreshold()); err != nil {
				logger.Error("scheduled token refresh", "error", err)
			}
		})
		if err != nil {
			stop()
			log.Fatalf("token refresh schedule: %v", err)
		}
		refresher.Start()
		logger.Info("token refresh scheduled", "schedule", cfg.TokenRefreshSchedule)
	} else {
		logger.Info("token auto-refresh disabled")
	}

	// Upload collaborator (optional — publish still works with external URLs)
	var uploadBackend handler.Uploader
	if cfg.S3Bucket != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.S3Region))
		if err != nil {
			stop()
			log.Fatalf("aws config: %v", err)
		}
		uploadBackend = uploader.NewS3Uploader(s3.NewFromConfig(awsCfg), cfg.S3Bucket, cfg.S3BaseURL())
		logger.Info("s3 uploads enabled", "bucket", cfg.S3Bucket)
	}

	postHandler := handler.NewPostHandler(sched, logger)
	sessionHandler := handler.NewSessionHandler(sessions, logger)
	publishHandler := handler.NewPublishHandler(publisher, tokens, logger)
	uploadHandler := handler.NewUploadHandler(uploadBackend, logger)

	srv := http.Server{
		Addr: ":" + cfg.Port,
		Handler: httptransport.NewRouter(logger,
			postHandler, sessionHandler, publishHandler, uploadHandler,
			[]byte(cfg.JWTSecret)),
	}

	metricsSrv := metrics.NewServer(":"+cfg.MetricsPort, checker)

	go func() {
		logger.Info("server started", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	go func() {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	<-ctx.Done()
	stop()
	logger.Info("shutting down...")

	if refresher != nil {
		// Wait for an in-flight refresh rather than cutting it off.
		<-refresher.Stop().Done()
	}
	// Same for the poller: a publish that already started finishes and its
	// outcome lands in the store before the process exits.
	<-pollerDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "error", err)
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}

	logger.Info("publisher shut down")
}

func newLogger(env string, level slog.Level) *slog.Logger {
	var inner slog.Handler
	if env == "local" {
		inner = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	} else {
		inner = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}
	return slog.New(ctxlog.NewContextHandler(inner))
}
