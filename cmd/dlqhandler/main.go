package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"codereviewsvc/internal/config"
	"codereviewsvc/internal/dlq"
	"codereviewsvc/internal/queue"
	"codereviewsvc/internal/store"
	"codereviewsvc/internal/telemetry"
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

	mainQueue := queue.NewRedisQueue(redisClient, queue.Options{
		VisibilitySeconds: cfg.VisibilitySeconds,
		MaxReceiveCount:   cfg.MaxReceiveCount,
	})
	dlqQueue := queue.NewDLQQueue(redisClient)

	handler := dlq.NewHandler(dlq.Config{
		PollInterval: cfg.WorkerPollInterval,
		LongPollWait: cfg.WorkerLongPoll,
	}, dlqQueue, mainQueue, st, st)

	go func() {
		if err := http.ListenAndServe(cfg.MetricsAddr, telemetry.Handler()); err != nil {
			log.Printf("metrics server stopped: %v", err)
		}
	}()

	log.Println("dlq handler started")
	if err := handler.Run(ctx); err != nil {
		log.Printf("dlq handler stopped: %v", err)
	}
}
