package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	challengehandler "daily-trivia/internal/challenge/handler"
	"daily-trivia/internal/challenge/service"
	"daily-trivia/internal/config"
	healthhandler "daily-trivia/internal/health/handler"
	"daily-trivia/internal/logging"
	"daily-trivia/internal/server"
	"daily-trivia/internal/store"
	"daily-trivia/internal/telemetry"
	telemetryotel "daily-trivia/internal/telemetry/otel"
	"daily-trivia/internal/telemetry/producer"
)

// shutdownTimeout bounds graceful shutdown of the HTTP server.
const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "server:", err)
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := telemetryotel.NewProviders(ctx, cfg.OTLPEndpoint, cfg.ServiceName, cfg.OTLPInsecure)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	providers.SetGlobal()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			logger.Warn("otel shutdown", zap.Error(err))
		}
	}()

	st, err := store.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			logger.Warn("store close", zap.Error(err))
		}
	}()
	logger.Info("store opened", zap.String("driver", st.Driver))

	accessor := service.NewAccessor(st.Repository,
		service.WithTimeout(cfg.StoreTimeoutDuration()),
		service.WithLocation(cfg.Location()),
		service.WithLogger(logger.Named("challenge")),
	)
	svc := service.New(accessor, service.Options{
		CacheTTL:      cfg.CacheTTL(),
		CacheErrorTTL: cfg.CacheErrorTTL(),
	})

	emitters := []telemetry.EventEmitter{telemetryotel.NewEventEmitter(providers.LoggerProvider)}
	if kp := producer.NewKafkaProducer(cfg.TelemetryKafkaBrokersList(), cfg.TelemetryKafkaTopic); kp != nil {
		defer func() { _ = kp.Close() }()
		emitters = append(emitters, kp)
		logger.Info("telemetry: kafka producer enabled", zap.String("topic", cfg.TelemetryKafkaTopic))
	}

	health := healthhandler.NewServer(st.Pinger, logger.Named("health"))
	httpHandler := server.NewHTTPHandler(server.Deps{
		Challenge: challengehandler.NewHandler(svc, cfg.SupportedLanguagesList(), cfg.CacheTTL(), logger.Named("http")),
		Health:    health,
		Emitter:   telemetry.Multi(emitters...),
		Logger:    logger.Named("http"),
	})
	httpServer := server.NewHTTPServer(cfg.HTTPAddr, httpHandler, cfg.StoreTimeoutDuration())
	grpcServer := server.NewGRPCServer(health, logger.Named("grpc"))

	grpcLis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.GRPCAddr, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		health.Run(gctx, healthhandler.DefaultCheckInterval)
		return nil
	})
	g.Go(func() error {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		logger.Info("gRPC health server listening", zap.String("addr", cfg.GRPCAddr))
		if err := grpcServer.Serve(grpcLis); err != nil {
			return fmt.Errorf("grpc serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down servers...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		grpcServer.GracefulStop()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	err = g.Wait()
	// Let in-flight async telemetry emits finish before providers and the producer shut down.
	time.Sleep(telemetry.ShutdownDrainDuration)
	logger.Info("servers stopped")
	return err
}
