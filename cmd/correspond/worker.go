package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jbaxter/correspond/internal/outbox"
	"github.com/spf13/cobra"
)

func newWorkerCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Start the delivery worker",
		Long: `Consumes delivery tasks from the broker and sends messages through
the SMS provider. Also sweeps stale unlinked message parts on the
configured schedule.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorker(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "correspond.yaml", "path to config file")
	return cmd
}

func runWorker(cmd *cobra.Command, configPath string) error {
	cfg, gdb, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	if cfg.Broker.URL == "" {
		return fmt.Errorf("worker: broker.url is required")
	}
	log := newLogger(cmd.ErrOrStderr())

	queue, err := outbox.DialAMQP(cfg.Broker.URL, cfg.Broker.Exchange, cfg.Broker.Queue, log)
	if err != nil {
		return err
	}
	defer queue.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(cmd.OutOrStdout(), "\nReceived %s, shutting down...\n", sig)
		cancel()
	}()

	retention := time.Duration(cfg.Sweep.RetentionHrs) * time.Hour
	go func() {
		if err := outbox.RunSweeper(ctx, gdb, cfg.Sweep.Cron, retention, log); err != nil {
			log.Error("sweeper stopped", "error", err)
		}
	}()

	deliverer := &outbox.Deliverer{DB: gdb, Provider: newProvider(cfg), Log: log}
	return queue.Consume(ctx, deliverer.Deliver)
}
