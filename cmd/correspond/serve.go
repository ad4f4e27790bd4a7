package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jbaxter/correspond/internal/config"
	"github.com/jbaxter/correspond/internal/outbox"
	"github.com/jbaxter/correspond/internal/provider"
	"github.com/jbaxter/correspond/internal/web"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API and webhook server",
		Long:  "Serves the JSON API, the inbound SMS webhook and the automessage callback.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "correspond.yaml", "path to config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (overrides config)")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int) error {
	cfg, gdb, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	log := newLogger(cmd.ErrOrStderr())

	// With a broker configured the worker handles deliveries; without
	// one they run in-process.
	var queue outbox.Queue
	if cfg.Broker.URL != "" {
		amqpQueue, err := outbox.DialAMQP(cfg.Broker.URL, cfg.Broker.Exchange, cfg.Broker.Queue, log)
		if err != nil {
			return err
		}
		queue = amqpQueue
	} else {
		deliverer := &outbox.Deliverer{DB: gdb, Provider: newProvider(cfg), Log: log}
		memQueue := outbox.NewMemoryQueue(deliverer.Deliver)
		memQueue.Log = log
		queue = memQueue
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

	if port <= 0 {
		port = cfg.HTTP.Port
	}
	return web.Start(ctx, web.StartOpts{
		Server: &web.Server{
			DB:             gdb,
			Queue:          queue,
			DefaultCountry: cfg.DefaultCountry,
			Log:            log,
		},
		Port: port,
	})
}

func newProvider(cfg *config.Config) provider.Provider {
	if cfg.Provider.Backend == "nexmo" {
		return provider.NewNexmo(cfg.Provider.Account, cfg.Provider.Token)
	}
	return provider.Noop{}
}
