package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/elmanelman/sql-judge/api"
	"github.com/elmanelman/sql-judge/config"
	"github.com/elmanelman/sql-judge/engine"
	"github.com/elmanelman/sql-judge/judge"
)

const (
	connectTimeout  = 15 * time.Second
	shutdownTimeout = 15 * time.Second
	lockPrefix      = "sqljudge:namespace:"
)

func main() {
	cfg := config.JudgeConfig{}
	if err := cfg.LoadDefault(); err != nil {
		log.Fatal(err)
	}
	logger, err := cfg.BuildLogger()
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	db, err := judge.ConnectDB(ctx, cfg.MainDBConfig.Kind(), cfg.MainDBConfig.Params)
	if err != nil {
		logger.Fatal("failed to connect to main database", zap.Error(err))
	}
	defer db.Close()
	store := judge.NewSQLStore(db)
	if err := store.Migrate(ctx); err != nil {
		logger.Fatal("failed to migrate main database", zap.Error(err))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	executor := engine.NewExecutor(reg)

	targets := judge.Targets{}
	opts := judge.Options{
		Strategy:  cfg.RewriteStrategy(),
		Dedicated: map[engine.Engine]bool{},
	}
	for _, ec := range cfg.Engines {
		targets[ec.Kind()] = ec.Params
		opts.Dedicated[ec.Kind()] = ec.Dedicated
	}

	if cfg.Redis != nil {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Fatal("failed to connect to redis", zap.Error(err))
		}
		opts.Locker = judge.NewRedisLocker(
			logger, client, lockPrefix,
			time.Duration(cfg.Redis.LockTTL)*time.Millisecond,
			time.Duration(cfg.Redis.LockRetry)*time.Millisecond,
		)
	}

	j := judge.NewJudge(logger, store, executor, targets, opts)

	wg := new(sync.WaitGroup)

	var judges *judge.Judges
	if cfg.PollerConfig.ReviewerCount > 0 {
		judges = judge.NewJudges(logger, store, j, wg)
		if err := judges.Start(cfg.PollerConfig); err != nil {
			logger.Fatal("failed to start judges", zap.Error(err))
		}
	}

	server := &http.Server{
		Addr:        cfg.HTTPConfig.Addr(),
		Handler:     api.NewRouter(logger, j, reg),
		IdleTimeout: 120 * time.Second,
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info("server started", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", zap.Error(err))
		}
	}()

	setupSigtermHandler(logger, judges, server)

	wg.Wait()
	logger.Info("stopped")
}

func setupSigtermHandler(logger *zap.Logger, judges *judge.Judges, server *http.Server) {
	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		fmt.Print("\n")
		if judges != nil {
			judges.Stop()
		}
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Error("server shutdown failed", zap.Error(err))
		}
	}()
}
