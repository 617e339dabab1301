package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kbridge-ai/kbridge/internal/config"
	"github.com/kbridge-ai/kbridge/internal/ingest"
	"github.com/kbridge-ai/kbridge/internal/retrieval"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <directory>",
	Short: "Ingest documents into the local store",
	Long: `Ingest documents into the local store.

Walks the directory for .txt, .md and .pdf files. A sidecar file
<name>.metadata.json next to a document supplies its metadata.

Examples:
  kbridge ingest ./docs
  KBRIDGE_DATA_DIR=/var/lib/kbridge kbridge ingest ./articles`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIngest(args[0])
	},
}

func runIngest(dir string) error {
	// Ingest is local-only, so a missing knowledge base ID is fine.
	cfg, err := config.LoadLocal()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := retrieval.OpenLocal(cfg.Retrieval.DataDir)
	if err != nil {
		return fmt.Errorf("opening local store: %w", err)
	}
	defer store.Close()

	stats, err := ingest.New(store).Run(ctx, dir)
	if err != nil {
		return err
	}

	printSuccess("Ingested %d documents (%d skipped)", stats.Ingested, stats.Skipped)

	total, err := store.Count(ctx)
	if err == nil {
		printStatus("Store", "%d documents in %s", total, cfg.Retrieval.DataDir)
	}
	return nil
}
