package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"brokerboard/config"
	"brokerboard/internal/engine"
	"brokerboard/internal/metrics"
	"brokerboard/internal/server"
	"brokerboard/logger"
	"brokerboard/reader/gecko"
	"brokerboard/reader/orderly"
	"brokerboard/store"
	"brokerboard/writer"
)

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", config.DefaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	log.WithFields(logger.Fields{
		"service":     cfg.App.Name,
		"version":     cfg.App.Version,
		"environment": config.AppEnvironment(),
	}).Info("starting brokerboard")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Metrics.Enabled {
		metrics.Init()
	}
	if cw := cfg.Metrics.CloudWatch; cw.Enabled {
		logger.InitCloudWatch(ctx, logger.CloudWatchOptions{
			Region:          cw.Region,
			Namespace:       cw.Namespace,
			AccessKeyID:     cw.AccessKeyID,
			SecretAccessKey: cw.SecretAccessKey,
		})
		metrics.ForwardToLogger(log)
	}

	st, err := store.Open(cfg.Store)
	if err != nil {
		log.WithError(err).Error("failed to open broker store")
		os.Exit(1)
	}
	if cfg.Store.Driver == "sqlite" {
		if config.IsProductionLike(config.AppEnvironment()) {
			log.WithComponent("main").Warn("sqlite broker store in a production-like environment")
		}
		if err := st.Migrate(); err != nil {
			log.WithError(err).Error("failed to migrate broker store")
			os.Exit(1)
		}
	}

	var sink engine.SnapshotSink
	var snapshotWriter *writer.KafkaWriter
	if cfg.Snapshots.Enabled {
		snapshotWriter, err = writer.NewKafkaWriter(cfg.Snapshots)
		if err != nil {
			log.WithError(err).Error("failed to create snapshot writer")
			os.Exit(1)
		}
		if err := snapshotWriter.Start(ctx); err != nil {
			log.WithError(err).Error("snapshot writer failed to start")
			os.Exit(1)
		}
		sink = snapshotWriter
	} else {
		log.WithComponent("main").Info("snapshot events disabled; skipping kafka writer")
	}

	eng := engine.New(cfg.Engine, st, orderly.NewClient(cfg.Orderly), gecko.NewClient(cfg.Gecko), sink)
	if err := eng.Start(ctx); err != nil {
		log.WithError(err).Error("engine failed to start")
		os.Exit(1)
	}

	if strings.ToLower(cfg.Logging.Level) == "report" {
		logger.StartReport(ctx, log, cfg.Logging.ReportInterval, eng.ReportFields)
	}

	var respCache server.ResponseCache
	var redisCache *server.RedisCache
	if cfg.Server.Redis.Addr != "" {
		redisCache = server.NewRedisCache(cfg.Server.Redis)
		pingCtx, pingCancel := context.WithTimeout(ctx, 3*time.Second)
		if err := redisCache.Ping(pingCtx); err != nil {
			log.WithError(err).WithFields(logger.Fields{"addr": cfg.Server.Redis.Addr}).Warn("redis unavailable; using in-process response cache")
			redisCache.Close()
			redisCache = nil
		} else {
			respCache = redisCache
		}
		pingCancel()
	}

	srv, err := server.NewServer(cfg.Server, cfg.Metrics.Enabled, eng, respCache, log)
	if err != nil {
		log.WithError(err).Error("failed to create http server")
		os.Exit(1)
	}

	srvCtx, srvCancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	if srv != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Run(srvCtx); err != nil {
				log.WithError(err).Error("http server stopped with error")
			}
		}()
	}

	log.Info("all components started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown signal received")

	log.Info("starting graceful shutdown")

	log.Info("stopping http server")
	srvCancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(30 * time.Second):
		log.Warn("http server shutdown timeout exceeded")
	}

	log.Info("stopping engine")
	eng.Stop()

	if snapshotWriter != nil {
		log.Info("stopping snapshot writer")
		snapshotWriter.Stop()
	}
	if redisCache != nil {
		redisCache.Close()
	}

	cancel()
	log.Info("brokerboard stopped")
}
