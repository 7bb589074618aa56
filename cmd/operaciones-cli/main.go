package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"

	"operaciones/internal/amqp"
	"operaciones/internal/api"
	"operaciones/internal/backend"
	"operaciones/internal/cli"
	"operaciones/internal/config"
	"operaciones/internal/log"
)

func main() {
	cli.LoadEnvFile()
	cfg := config.Load()
	if os.Getenv("LOG_LEVEL") == "" {
		cfg.LogLevel = "warn"
	}
	logger := cli.SetupLogger(cfg, os.Stderr, log.ComponentCLI)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps := cli.Deps{
		Open: func() (api.Repository, func() error, error) {
			backendCfg, err := backend.FromAppConfig(cfg)
			if err != nil {
				return nil, nil, err
			}
			result, err := backend.NewFactory(logger, nil).Create(backendCfg)
			if err != nil {
				return nil, nil, err
			}
			return result.Repository, result.Cleanup, nil
		},
		Logger: logger,
	}
	if cfg.AMQPURL != "" {
		deps.Watch = func(ctx context.Context, handle func(*amqp.OperationEvent) error) error {
			client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange)
			if err != nil {
				return fmt.Errorf("connect to broker: %w", err)
			}
			defer client.Close()
			return client.ConsumeEvents(ctx, amqp.BindAll, handle)
		}
	}

	if err := cli.Execute(ctx, deps, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("Error: %v", err))
		stop()
		os.Exit(1)
	}
}
