package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"dataset-generator/internal/config"
	"dataset-generator/internal/kandinsky"
	"dataset-generator/internal/messaging"
	"dataset-generator/internal/metrics"
	"dataset-generator/pkg/logger"
)

const (
	maxConnectAttempts = 3
	connectRetryDelay  = 2 * time.Second
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "dataset-generator",
		Short: "Build a labelled image dataset with the Kandinsky (FusionBrain) API",
		Long: "Build a labelled image dataset with the Kandinsky (FusionBrain) API.\n\n" +
			"Configuration is read from the environment and an optional .env file:\n\n" + config.Usage(),
		SilenceUsage: true,
	}
	root.AddCommand(collectCmd(), pipelineCmd())
	return root
}

// app - общие зависимости команд.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
}

func bootstrap() (*app, error) {
	// --- 1. Загрузка конфигурации ---
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	// --- 2. Инициализация логгера ---
	appLogger, err := logger.New(cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	appLogger.Debug("Logger initialized", zap.String("level", cfg.Logger.Level), zap.String("env", cfg.AppEnv))
	return &app{cfg: cfg, logger: appLogger}, nil
}

func (a *app) newClient() (*kandinsky.Client, error) {
	var limiter *rate.Limiter
	if a.cfg.Kandinsky.SubmitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(a.cfg.Kandinsky.SubmitRPS), 1)
	}
	return kandinsky.NewClient(kandinsky.Options{
		BaseURL:       a.cfg.Kandinsky.BaseURL,
		APIKey:        a.cfg.Kandinsky.APIKey,
		SecretKey:     a.cfg.Kandinsky.SecretKey,
		Timeout:       a.cfg.Kandinsky.HTTPTimeout,
		SubmitLimiter: limiter,
		Metrics:       metrics.Default(),
		Logger:        a.logger,
	})
}

// connectPublisher подключается к RabbitMQ с несколькими попытками.
// Без RABBITMQ_URL события не публикуются.
func (a *app) connectPublisher(ctx context.Context) (messaging.Publisher, error) {
	mq := a.cfg.RabbitMQ
	if mq.URL == "" {
		a.logger.Info("RABBITMQ_URL is not set, run events are disabled")
		return messaging.NopPublisher{}, nil
	}

	var lastErr error
	for attempt := 1; attempt <= maxConnectAttempts; attempt++ {
		p, err := messaging.NewRabbitMQPublisher(mq.URL, mq.Exchange, mq.RoutingKey, mq.EventQueue, a.logger)
		if err == nil {
			a.logger.Info("RabbitMQ event publisher initialized")
			return p, nil
		}
		lastErr = err
		a.logger.Error("Failed to connect to RabbitMQ", zap.Int("attempt", attempt), zap.Error(err))

		if attempt == maxConnectAttempts {
			break
		}
		select {
		case <-time.After(connectRetryDelay):
			a.logger.Info("Retrying RabbitMQ connection...")
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("rabbitmq unavailable after %d attempts: %w", maxConnectAttempts, lastErr)
}
