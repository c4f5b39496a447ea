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
	"github.com/nimasrn/expense-gateway/internal/handlers"
	"github.com/nimasrn/expense-gateway/internal/queue"
	"github.com/nimasrn/expense-gateway/internal/repository"
	"github.com/nimasrn/expense-gateway/internal/services"
	xhttp "github.com/nimasrn/expense-gateway/pkg/http"
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
	logger.Info("starting expense gateway api", "version", version, "commit", commit, "date", date)

	s := xhttp.NewServer(xhttp.ServerOption{
		Name:         cfg.AppName,
		ReadTimeout:  cfg.HttpServerReadTimeout,
		WriteTimeout: cfg.HttpServerWriteTimeout,
	})
	s.Use(xhttp.RecoverMiddleware)
	s.Use(xhttp.RequestLoggerMiddleware)
	s.Use(xhttp.TimeoutMiddleware(cfg.HttpRequestTimeout))

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

	var publisher services.ReindexPublisher
	if cfg.RedisAddr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		redisAdap, err := redis.New(ctx, cfg.RedisUniversalKeyPrefix, &redis.Options{
			Addrs:      []string{cfg.RedisAddr},
			ClientName: cfg.AppName,
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

		q, err := queue.NewQueue(redisAdap, queue.QueueConfig{
			Name:          cfg.QueueName,
			ConsumerGroup: cfg.QueueConsumerGroup,
			MaxLen:        cfg.QueueMaxLen,
		})
		if err != nil {
			logger.Error("failed creating reindex queue", "error", err)
			return
		}
		publisher = queue.NewReindexPublisher(q)
	} else {
		logger.Warn("REDIS_ADDR is empty, located records are not re-indexed")
	}

	if cfg.AppDebugMetricsAddr != "" {
		hostname, _ := os.Hostname()
		if err := prom.Create(hostname, cfg.AppEnv, cfg.PromNamespace); err != nil {
			logger.Error("failed to create prometheus metrics", "error", err)
			return
		}
		go prom.ListenAndServer(cfg.AppDebugMetricsAddr, cfg.AppDebugMetricsURI)
	}

	// gateways
	directory := gateway.NewDirectoryGateway(gateway.DirectoryConfig{
		URL:         cfg.DirectoryURL,
		Username:    cfg.DirectoryUser,
		Password:    cfg.DirectoryPassword,
		Timeout:     cfg.DirectoryTimeout,
		MaxAttempts: cfg.DirectoryMaxAttempts,
		Backoff:     cfg.DirectoryBackoff,
	}, gateway.NewHTTPClient("directory", cfg.DirectoryTimeout), gateway.NewRosterCache(cfg.DirectoryCacheTTL, nil))
	erp := gateway.NewERPGateway(gateway.ERPConfig{
		URL:                   cfg.ErpURL,
		Timeout:               cfg.ErpTimeout,
		SupportsCorrelationID: cfg.ErpSupportsCorrelationID,
		PinTimeout:            cfg.ErpPinTimeout,
	}, gateway.NewHTTPClient("erp", cfg.ErpTimeout))
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
	tracking := gateway.NewTrackingGateway(gateway.TrackingConfig{
		URL:            cfg.TrackingURL,
		VehicleTimeout: cfg.VehicleTimeout,
		FixTimeout:     cfg.TrackingTimeout,
	}, gateway.NewHTTPClient("tracking", cfg.VehicleTimeout))
	bot := gateway.NewBotGateway(gateway.BotConfig{
		URL:     cfg.BotURL,
		Timeout: cfg.BotTimeout,
	}, gateway.NewHTTPClient("bot", cfg.BotTimeout))

	expenseRepo := repository.NewExpenseRepository(db)
	userRepo := repository.NewUserRepository(db)

	// services
	submissionService := services.NewSubmissionService(expenseRepo, erp, cfg.ErpCompanyID)
	intakeService := services.NewIntakeService(expenseRepo, tracking, search, bot)
	reconcileService := services.NewReconcileService(expenseRepo, directory, submissionService, publisher, cfg.ReconcileWindow)
	sweepService := services.NewSweepService(expenseRepo, directory, erp, cfg.SweepMaxAge, cfg.SweepBatchLimit).
		WithDeadline(sweepDeadline(cfg.SweepDeadline, cfg.HttpRequestTimeout))
	reindexService := services.NewReindexService(expenseRepo, search)
	employeeService := services.NewEmployeeService(directory)
	botService := services.NewBotService(bot)
	locationService := services.NewLocationService(tracking)
	pinSyncService := services.NewPinSyncService(userRepo, directory, erp)
	userService := services.NewUserService(userRepo)
	healthService := services.NewHealthService(db, directory, erp, search, tracking, bot)

	g := s.Router.Group("/api")
	handlers.RegisterExpenseRoutes(g, handlers.NewExpenseHandler(intakeService))
	handlers.RegisterCoordinatesRoutes(g, handlers.NewCoordinatesHandler(reconcileService))
	handlers.RegisterSyncRoutes(g, handlers.NewSyncHandler(sweepService, cfg.SyncSecretToken))
	handlers.RegisterEmployeeRoutes(g, handlers.NewEmployeeHandler(employeeService))
	handlers.RegisterPinSyncRoutes(g, handlers.NewPinSyncHandler(pinSyncService, cfg.SyncSecretToken))
	handlers.RegisterUserRoutes(g, handlers.NewUserHandler(userService))
	handlers.RegisterBotRoutes(g, handlers.NewBotHandler(botService))
	handlers.RegisterLocationRoutes(g, handlers.NewLocationHandler(locationService))
	handlers.RegisterIndexRoutes(g, handlers.NewIndexHandler(reindexService))
	handlers.RegisterHealthRoutes(g, handlers.NewHealthHandler(healthService))

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := s.ListenAndServe(cfg.HttpListenAddr); err != nil {
			logger.Error("error in running http-server", "error", err)
			c <- syscall.SIGTERM
		}
	}()

	<-c
	s.Shutdown()
}

// sweepDeadline keeps a manual sweep inside the request timeout.
func sweepDeadline(configured, requestTimeout time.Duration) time.Duration {
	if requestTimeout <= 0 {
		return configured
	}
	if configured <= 0 || configured >= requestTimeout {
		return requestTimeout * 3 / 4
	}
	return configured
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
