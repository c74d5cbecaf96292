package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	aiprovider "codereviewsvc/internal/ai"
	"codereviewsvc/internal/analyzer"
	aidetect "codereviewsvc/internal/analyzer/detect/ai"
	"codereviewsvc/internal/cache"
	"codereviewsvc/internal/config"
	"codereviewsvc/internal/queue"
	"codereviewsvc/internal/store"
	"codereviewsvc/internal/telemetry"
	"codereviewsvc/internal/worker"
)

func main() {
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		<-ch
		cancel()
	}()

	st, err := store.New(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer st.Close()

	if err := st.RunMigrations(ctx); err != nil {
		log.Fatalf("migrations: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	q := queue.NewRedisQueue(redisClient, queue.Options{
		VisibilitySeconds: cfg.VisibilitySeconds,
		MaxReceiveCount:   cfg.MaxReceiveCount,
	})
	resultCache := cache.NewRedisCache(redisClient, cache.Options{TTL: time.Duration(cfg.CacheTTLSeconds) * time.Second})

	var aiDetector analyzer.AsyncDetector
	if cfg.AI.Enabled {
		provider, err := aiprovider.NewProvider(aiprovider.Config{
			Provider:  cfg.AI.Provider,
			Model:     cfg.AI.Model,
			BaseURL:   cfg.AI.BaseURL,
			APIKey:    cfg.AI.APIKey,
			TimeoutMs: int(cfg.AI.RequestTimeout / time.Millisecond),
		})
		if err != nil {
			log.Fatalf("init ai provider: %v", err)
		}
		aiDetector = aidetect.New(provider, true, cfg.AI.MinLinesForAI, cfg.AI.MaxLinesForAI)
	}

	a := analyzer.New(analyzer.Config{
		EnableAI:         cfg.AI.Enabled,
		AIMinLines:       cfg.AI.MinLinesForAI,
		AIMaxLines:       cfg.AI.MaxLinesForAI,
		AIRequestTimeout: cfg.AI.RequestTimeout,
		AllowForceFail:   cfg.AllowForceFail,
	}, aiDetector)

	processor := worker.NewProcessor(worker.Config{
		MaxReceiveCount: cfg.MaxReceiveCount,
		PollInterval:    cfg.WorkerPollInterval,
		LongPollWait:    cfg.WorkerLongPoll,
		SweepInterval:   cfg.SweepInterval,
	}, q, q, st, st, resultCache, a)

	go func() {
		if err := http.ListenAndServe(cfg.MetricsAddr, telemetry.Handler()); err != nil {
			log.Printf("metrics server stopped: %v", err)
		}
	}()

	log.Printf("worker started with visibility=%ds max_receive=%d", cfg.VisibilitySeconds, cfg.MaxReceiveCount)
	if err := processor.Run(ctx); err != nil {
		log.Printf("worker stopped: %v", err)
	}
}
