package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nimasrn/expense-gateway/internal/config"
	"github.com/nimasrn/expense-gateway/internal/gateways"
	"github.com/nimasrn/expense-gateway/internal/processor"
	"github.com/nimasrn/expense-gateway/internal/queue"
	"github.com/nimasrn/expense-gateway/internal/repository"
	"github.com/nimasrn/expense-gateway/internal/services"
	"github.com/nimasrn/expense-gateway/pkg/logger"
	"github.com/nimasrn/expense-gateway/pkg/pg"
	"github.com/nimasrn/expense-gateway/pkg/prom"
	"github.com/nimasrn/expense-gateway/pkg/redis"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	err := config.Load(argContainsEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}
	cfg := config.Get()
	logger.Info("starting reindex processor", "version", version, "commit", commit, "date", date)

	readConf := pg.Config{
		User:     cfg.PostgresReadUser,
		Host:     cfg.PostgresReadHost,
		Port:     cfg.PostgresReadPort,
		Password: cfg.PostgresReadPassword,
		Database: cfg.PostgresReadDatabase,
	}
	writeConf := pg.Config{
		User:     cfg.PostgresWriteUser,
		Host:     cfg.PostgresWriteHost,
		Port:     cfg.PostgresWritePort,
		Password: cfg.PostgresWritePassword,
		Database: cfg.PostgresWriteDatabase,
	}
	db, err := pg.CreateReadWrite(readConf, writeConf, cfg.AppEnv == "dev")
	if err != nil {
		logger.Error("failed connecting to pg", "error", err)
		return
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	redisAdap, err := redis.New(ctx, cfg.RedisUniversalKeyPrefix, &redis.Options{
		Addrs:      []string{cfg.RedisAddr},
		ClientName: cfg.AppName + "-processor",
		DB:         cfg.RedisDatabase,
		Username:   cfg.RedisUsername,
		Password:   cfg.RedisPassword,
	})
	cancel()
	if err != nil {
		logger.Error("failed connecting to redis", "error", err)
		return
	}
	defer redisAdap.Close()

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	if err := prom.Create(hostname, cfg.AppEnv, cfg.PromNamespace); err != nil {
		logger.Error("failed to create prometheus metrics", "error", err)
		return
	}
	if cfg.AppDebugMetricsAddr != "" {
		go prom.ListenAndServer(cfg.AppDebugMetricsAddr, cfg.AppDebugMetricsURI)
	}

	search, err := gateway.NewSearchGateway(gateway.SearchConfig{
		URL:      cfg.SearchURL,
		Index:    cfg.SearchIndex,
		APIKey:   cfg.SearchAPIKey,
		Username: cfg.SearchUsername,
		Password: cfg.SearchPassword,
		Timeout:  cfg.SearchTimeout,
	}, nil)
	if err != nil {
		logger.Error("failed creating search client", "error", err)
		return
	}

	reindexService := services.NewReindexService(repository.NewExpenseRepository(db), search)
	idempotency := processor.NewIdempotencyService(redisAdap, processor.DefaultIdempotencyConfig())

	service, err := processor.NewProcessorService(redisAdap, processor.NewReindexProcessor(reindexService, idempotency), processor.Options{
		Queue: queue.QueueConfig{
			Name:              cfg.QueueName,
			ConsumerGroup:     cfg.QueueConsumerGroup,
			ConsumerName:      cfg.QueueConsumerName,
			MaxRetries:        cfg.QueueMaxRetries,
			VisibilityTimeout: cfg.QueueVisibilityTimeout,
			PollInterval:      cfg.QueuePollInterval,
			BatchSize:         cfg.QueueBatchSize,
			MaxLen:            cfg.QueueMaxLen,
			EnableDLQ:         cfg.QueueEnableDLQ,
		},
		Consumers: 2,
		Workers:   cfg.ProcessorWorkers,
	})
	if err != nil {
		logger.Error("failed to create the processor", "error", err)
		return
	}
	if err := service.Start(); err != nil {
		logger.Error("failed to start processor", "error", err)
		return
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
	service.Stop()
}

func argContainsEnvPath() string {
	for _, v := range os.Args {
		if strings.HasPrefix(v, "--env=") {
			path := strings.TrimPrefix(v, "--env=")
			if _, err := os.Stat(path); err != nil {
				logger.Error("failed to open the passed env file", "error", err)
				return ""
			}
			return path
		}
	}
	return ""
}
