package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"course-rag/internal/bootstrap"
	"course-rag/internal/config"
	httptransport "course-rag/internal/transport/http"
)

type configLoader func() (*config.Config, error)

func serveCMD(load configLoader) *cobra.Command {
	var skipDocs bool
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return fmt.Errorf("load config failed: %w", err)
			}
			ctx := context.Background()

			app, err := bootstrap.New(ctx, cfg, bootstrap.Options{StartWorker: true})
			if err != nil {
				return fmt.Errorf("bootstrap failed: %w", err)
			}
			defer func() {
				if err := app.Close(); err != nil {
					log.Printf("close resources failed: %v", err)
				}
			}()

			if !skipDocs {
				loadDocs(ctx, app)
			}
			app.LogStartup(ctx)

			router := httptransport.NewRouter(app)
			server := &http.Server{
				Addr:              cfg.HTTPAddr(),
				Handler:           router,
				ReadHeaderTimeout: 5 * time.Second,
			}

			go func() {
				log.Printf("server starting on %s", server.Addr)
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatalf("server failed: %v", err)
				}
			}()

			waitForShutdown(server)
			return nil
		},
	}
	serve.Flags().BoolVar(&skipDocs, "skip-docs", false, "do not ingest rag.docs_path at startup")
	return serve
}

// loadDocs ingests the configured docs folder; courses already stored are
// skipped by title.
func loadDocs(ctx context.Context, app *bootstrap.App) {
	dir := app.Config.RAG.DocsPath
	if dir == "" {
		return
	}
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		log.Printf("docs folder %s not found, starting with stored courses only", dir)
		return
	}
	if _, err := app.Ingest.IngestFolder(ctx, dir); err != nil {
		log.Printf("load docs from %s failed: %v", dir, err)
	}
}

func waitForShutdown(server *http.Server) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown failed: %v", err)
	}
}
