package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"pet-care-log/internal/adapters/notify/redisstream"
	"pet-care-log/internal/adapters/push"
	mem "pet-care-log/internal/adapters/storage/memory"
	pg "pet-care-log/internal/adapters/storage/postgres"
	"pet-care-log/internal/domain/users"
	"pet-care-log/internal/notify"
	"pet-care-log/internal/platform/config"
	"pet-care-log/internal/platform/httpclient"
	"pet-care-log/internal/platform/logger"
	es "pet-care-log/internal/ports/entitystore"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// dispatcher consume el stream de mensajes de chat y envía los push.
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
	if cfg.RedisAddr == "" {
		log.Fatal("REDIS_ADDR is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store es.Store
	if cfg.DatabaseDSN != "" {
		db, err := pg.Open(cfg.DatabaseDSN)
		if err != nil {
			log.Fatal("open database", zap.Error(err))
		}
		defer db.Close()
		store = pg.NewStore(db)
	} else {
		log.Warn("DB_DSN not set, dispatcher reads an empty in-memory store")
		store = mem.NewStore()
	}

	var pusher notify.Pusher = notify.LogPusher{Log: log}
	if cfg.PushGatewayURL != "" {
		p, err := push.NewClient(httpclient.Options{BaseURL: cfg.PushGatewayURL, APIKey: cfg.PushAPIKey}, log)
		if err != nil {
			log.Fatal("push client", zap.Error(err))
		}
		pusher = p
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rdb.Close()

	tokens := users.NewService(store, nil, log)
	d := notify.NewDispatcher(store, tokens, pusher, cfg.AppBaseURL, log)

	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "dispatcher-1"
	}
	consumer := redisstream.NewConsumer(rdb, redisstream.ConsumerOptions{
		Stream:   cfg.NotifyStream,
		Group:    "dispatcher",
		Consumer: hostname,
	}, d, log)

	log.Info("dispatcher started", zap.String("stream", cfg.NotifyStream))
	if err := consumer.Run(ctx); err != nil {
		log.Fatal("consumer", zap.Error(err))
	}
	log.Info("dispatcher stopped")
}
