// Command exchanged runs the currency exchange trading core: per-pair
// matching engines, the settlement command consumer, and the trade event
// pipeline.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/currexhq/exchange-core/internal/cache/redis"
	"github.com/currexhq/exchange-core/internal/config"
	"github.com/currexhq/exchange-core/internal/ledger"
	"github.com/currexhq/exchange-core/internal/match"
	"github.com/currexhq/exchange-core/internal/settle"
	"github.com/currexhq/exchange-core/internal/stream"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "path to TOML configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("exchanged exited", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)
	match.SetLogger(logger)
	settle.SetLogger(logger)
	stream.SetLogger(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := ledger.Connect(ctx, cfg.Postgres.BuildDSN())
	if err != nil {
		return fmt.Errorf("connect ledger: %w", err)
	}
	defer store.Close()

	tradeProducer := stream.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TradeTopic)
	defer tradeProducer.Close()
	commandProducer := stream.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.CommandTopic)
	defer commandProducer.Close()

	svcOpts := []settle.ServiceOption{}
	if cfg.Redis.Addr != "" {
		cache, err := redis.New(ctx, redis.ClientConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer cache.Close()
		svcOpts = append(svcOpts, settle.WithNotifier(cache))
	}

	service := settle.NewService(store, stream.NewKafkaEventPublisher(tradeProducer), svcOpts...)

	registry := match.NewRegistry(
		stream.NewTradeForwarder(commandProducer),
		match.WithRecentTradeCap(cfg.Engine.RecentTradeCap),
	)
	for _, pair := range cfg.Pairs {
		base, quote, err := config.ParsePair(pair)
		if err != nil {
			return err
		}
		if _, err := registry.CreatePair(base, quote); err != nil {
			return fmt.Errorf("create pair %s: %w", pair, err)
		}
	}

	source := stream.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.CommandTopic)
	defer source.Close()
	consumer := settle.NewConsumer(source, service)

	logger.Info("exchanged started",
		"pairs", cfg.Pairs,
		"trade_topic", cfg.Kafka.TradeTopic,
		"command_topic", cfg.Kafka.CommandTopic,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return consumer.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return registry.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logger.Info("exchanged stopped")
	return nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
