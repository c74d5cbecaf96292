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

	"codereviewsvc/internal/api"
	"codereviewsvc/internal/cache"
	"codereviewsvc/internal/config"
	"codereviewsvc/internal/dlq"
	"codereviewsvc/internal/queue"
	"codereviewsvc/internal/ratelimit"
	"codereviewsvc/internal/store"
	"codereviewsvc/internal/submission"
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
	dlqQueue := queue.NewDLQQueue(redisClient)
	resultCache := cache.NewRedisCache(redisClient, cache.Options{TTL: time.Duration(cfg.CacheTTLSeconds) * time.Second})
	limiter := ratelimit.NewTokenBucket(redisClient, cfg.RateLimitCapacity, cfg.RateLimitRefill, time.Hour)

	submissionSvc := submission.New(resultCache, st, q, submission.Options{MaxContentBytes: cfg.MaxContentBytes})
	dlqHandler := dlq.NewHandler(dlq.Config{}, dlqQueue, q, st, st)

	server := api.New(cfg, submissionSvc, dlqHandler, limiter, st)
	httpServer := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: server.Router(),
	}

	log.Printf("api listening on :%s", cfg.HTTPPort)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	_ = httpServer.Shutdown(shutdownCtx)
}
