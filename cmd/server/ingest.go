package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"course-rag/internal/bootstrap"
)

func ingestCMD(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest [dir]",
		Short: "Ingest course documents from a folder and print a report",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return fmt.Errorf("load config failed: %w", err)
			}
			dir := cfg.RAG.DocsPath
			if len(args) == 1 {
				dir = args[0]
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := bootstrap.New(ctx, cfg, bootstrap.Options{})
			if err != nil {
				return fmt.Errorf("bootstrap failed: %w", err)
			}
			defer app.Close()

			report, err := app.Ingest.IngestFolder(ctx, dir)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return err
			}
			if len(report.Failures) > 0 {
				return fmt.Errorf("%d documents failed to ingest", len(report.Failures))
			}
			return nil
		},
	}
}

// workerCMD runs only the queue consumer, for deployments where the API
// publishes ingest jobs.
func workerCMD(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Consume queued ingest jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return fmt.Errorf("load config failed: %w", err)
			}
			if cfg.RabbitMQ.URL == "" {
				return fmt.Errorf("rabbitmq.url is required for the worker")
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := bootstrap.New(ctx, cfg, bootstrap.Options{StartWorker: true})
			if err != nil {
				return fmt.Errorf("bootstrap failed: %w", err)
			}
			defer app.Close()

			app.LogStartup(ctx)
			<-ctx.Done()
			return nil
		},
	}
}
