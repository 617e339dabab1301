package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kbridge-ai/kbridge/internal/config"
)

var queryCmd = &cobra.Command{
	Use:   "query <question>",
	Short: "Answer a single question against the knowledge base",
	Long: `Answer a single question against the knowledge base.

Examples:
  kbridge query "What did John Smith write about machine learning?"
  kbridge query --metadata "articles from August 2025 about transformers"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		showMeta, _ := cmd.Flags().GetBool("metadata")
		return runQuery(strings.Join(args, " "), showMeta)
	},
}

func init() {
	queryCmd.Flags().Bool("metadata", false, "print pipeline metadata as JSON to stderr")
}

func runQuery(query string, showMeta bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	answer, meta, err := app.answerer.Answer(ctx, query, nil)
	if err != nil {
		return err
	}

	fmt.Println(answer)

	if showMeta {
		enc := json.NewEncoder(os.Stderr)
		enc.SetIndent("", "  ")
		if err := enc.Encode(meta); err != nil {
			return err
		}
	}
	return nil
}
