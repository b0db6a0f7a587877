package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/dealflow/dealflow/pkg/cmd"
	"github.com/dealflow/dealflow/pkg/engine"
	"github.com/dealflow/dealflow/pkg/tracer"
	"github.com/dealflow/dealflow/pkg/variables"
	"github.com/dealflow/dealflow/pkg/web"
	"github.com/redis/go-redis/v9"
	cli "github.com/urfave/cli/v3"
)

func run(ctx context.Context, logger *slog.Logger, command *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	persist, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		return fmt.Errorf("failed to initialize persistence: %w", err)
	}

	defer func() {
		if err := persist.Close(context.Background()); err != nil {
			logger.Error("Failed to close persistence", "error", err)
		}
	}()

	eventBus, err := cmd.NewEventBus(
		command.String("event-bus"),
		command.StringSlice("kafka-brokers"),
		"dealflow-engine",
		logger,
	)
	if err != nil {
		return fmt.Errorf("failed to initialize event bus: %w", err)
	}

	defer func() {
		if err := eventBus.Close(); err != nil {
			logger.Error("Failed to close event bus", "error", err)
		}
	}()

	registry := cmd.NewRegistry(logger, cmd.Dependencies{})

	options := make([]engine.Option, 0, 2)

	if redisURL := command.String("redis-url"); redisURL != "" {
		redisOpts, err := redis.ParseURL(redisURL)
		if err != nil {
			return fmt.Errorf("failed to parse redis url: %w", err)
		}

		client := redis.NewClient(redisOpts)
		defer func() {
			if err := client.Close(); err != nil {
				logger.Error("Failed to close redis client", "error", err)
			}
		}()

		options = append(options, engine.WithGlobalStore(variables.NewRedisGlobalStore(client, "dealflow")))
	}

	if command.Bool("tracing") {
		trc, err := tracer.NewTracer(ctx, "dealflow-engine")
		if err != nil {
			return fmt.Errorf("failed to initialize tracer: %w", err)
		}

		options = append(options, engine.WithTracer(trc))
	}

	eng := engine.NewEngine(logger, registry, persist, options...)
	eng.Subscribe(engine.NewBusNotifier(eventBus))

	sweeper, err := eng.StartExpirySweeper(command.String("sweeper-schedule"))
	if err != nil {
		return fmt.Errorf("failed to start expiry sweeper: %w", err)
	}
	defer sweeper.Stop()

	app := web.NewApp(eng, persist, registry)

	go func() {
		<-ctx.Done()
		logger.Info("Shutting down API server")

		if err := app.Shutdown(); err != nil {
			logger.Error("Failed to shut down API server", "error", err)
		}
	}()

	return app.Listen(":" + strconv.Itoa(command.Int("port")))
}
