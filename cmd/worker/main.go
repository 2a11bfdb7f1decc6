// Worker consumes request telemetry events from Kafka and pushes them to Loki.
// Set KAFKA_BROKERS, TELEMETRY_KAFKA_TOPIC, KAFKA_GROUP_ID, and LOKI_URL.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"daily-trivia/internal/config"
	"daily-trivia/internal/logging"
	"daily-trivia/internal/telemetry/loki"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "worker:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Env, false)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	brokers := cfg.TelemetryKafkaBrokersList()
	if len(brokers) == 0 {
		return errors.New("KAFKA_BROKERS is required")
	}
	if cfg.LokiURL == "" {
		return errors.New("LOKI_URL is required")
	}
	client, err := loki.NewClient(cfg.LokiURL, nil)
	if err != nil {
		return err
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          cfg.TelemetryKafkaTopic,
		GroupID:        cfg.KafkaGroupID,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		CommitInterval: time.Second,
	})
	defer reader.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("worker: consuming",
		zap.String("topic", cfg.TelemetryKafkaTopic),
		zap.String("group", cfg.KafkaGroupID),
		zap.String("loki", cfg.LokiURL),
	)

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("worker: stopped")
				return nil
			}
			logger.Warn("worker: kafka read error", zap.Error(err))
			continue
		}

		pushCtx, pushCancel := context.WithTimeout(ctx, 10*time.Second)
		if err := client.Push(pushCtx, loki.EntryFromMessage(msg.Value, time.Now().UTC())); err != nil {
			logger.Warn("worker: loki push failed", zap.Int64("offset", msg.Offset), zap.Error(err))
		}
		pushCancel()
	}
}
