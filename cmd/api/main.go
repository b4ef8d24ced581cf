package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pet-care-log/internal/adapters/auth/jwtverifier"
	"pet-care-log/internal/adapters/changefeed/redisfeed"
	"pet-care-log/internal/adapters/notify/redisstream"
	"pet-care-log/internal/adapters/objectstorage"
	pg "pet-care-log/internal/adapters/storage/postgres"
	"pet-care-log/internal/adapters/push"
	"pet-care-log/internal/live"
	"pet-care-log/internal/notify"
	"pet-care-log/internal/platform/config"
	"pet-care-log/internal/platform/httpclient"
	"pet-care-log/internal/platform/logger"
	"pet-care-log/internal/ports/blob"
	"pet-care-log/internal/router"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

func main() {
	log, err := logger.NewFromEnv()
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := router.Options{
		Logger:          log,
		DefaultLocation: cfg.DefaultTimezone,
		AppBaseURL:      cfg.AppBaseURL,
		Hub:             live.NewHub(log),
	}

	if cfg.DatabaseDSN != "" {
		db, err := pg.Open(cfg.DatabaseDSN)
		if err != nil {
			log.Fatal("open database", zap.Error(err))
		}
		defer db.Close()
		if err := pg.Migrate(ctx, db); err != nil {
			log.Fatal("migrate", zap.Error(err))
		}
		opts.DB = db
	} else {
		log.Warn("DB_DSN not set, using in-memory store")
	}

	if cfg.JWTSecret != "" {
		v, err := jwtverifier.New(cfg.JWTSecret)
		if err != nil {
			log.Fatal("jwt verifier", zap.Error(err))
		}
		opts.AuthVerifier = v
	} else {
		log.Warn("JWT_SECRET not set, dev mode with X-Debug-User-ID")
	}

	opts.Pusher = newPusher(cfg, log)
	opts.Uploader = newUploader(cfg, log)

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal("redis ping", zap.Error(err))
		}

		relay := redisfeed.New(rdb, cfg.ChangeChannel, log)
		opts.Hub.SetRelay(relay)
		go func() {
			if err := relay.Run(ctx, opts.Hub); err != nil {
				log.Error("change relay stopped", zap.Error(err))
			}
		}()

		// el envío de push lo hace cmd/dispatcher
		opts.Publisher = redisstream.NewPublisher(rdb, cfg.NotifyStream)
	}

	srv := &http.Server{
		Addr:        cfg.Addr(),
		Handler:     router.NewRouter(opts),
		ReadTimeout: 5 * time.Second,
		// sin WriteTimeout: los websockets son de larga duración
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("starting server", zap.String("addr", cfg.Addr()))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("server error", zap.Error(err))
	}
	log.Info("server stopped")
}

func newPusher(cfg config.Config, log *zap.Logger) notify.Pusher {
	if cfg.PushGatewayURL == "" {
		return nil
	}
	p, err := push.NewClient(httpclient.Options{BaseURL: cfg.PushGatewayURL, APIKey: cfg.PushAPIKey}, log)
	if err != nil {
		log.Fatal("push client", zap.Error(err))
	}
	return p
}

func newUploader(cfg config.Config, log *zap.Logger) blob.Uploader {
	if cfg.StorageBaseURL == "" {
		return nil
	}
	u, err := objectstorage.NewUploader(httpclient.Options{BaseURL: cfg.StorageBaseURL, APIKey: cfg.StorageAPIKey}, "pet-care")
	if err != nil {
		log.Fatal("object storage", zap.Error(err))
	}
	return u
}
