package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/kbridge-ai/kbridge/internal/api"
	"github.com/kbridge-ai/kbridge/internal/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the kbridge server (foreground)",
	Long: `Start the kbridge server in the foreground.

The HTTP API listens on the configured port. With --mcp the same
pipeline is additionally exposed as an MCP server over stdio.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		debug, _ := cmd.Flags().GetBool("debug")
		mcp, _ := cmd.Flags().GetBool("mcp")
		return runServer(debug, mcp)
	},
}

func init() {
	serveCmd.Flags().Bool("debug", false, "enable debug logging")
	serveCmd.Flags().Bool("mcp", false, "also serve MCP over stdio")
}

func runServer(debug, mcp bool) error {
	fmt.Fprintf(os.Stderr, "kbridge version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logLevel := slog.LevelInfo
	if debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing store: %v\n", err)
		}
	}()

	handler := api.NewHandler(app.answerer, cfg.Server.Token)
	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// MCP over stdio, when requested, shares the pipeline with HTTP.
	if mcp {
		stdioSrv := server.NewStdioServer(api.NewMCPServer(app.answerer))
		go func() {
			if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("MCP stdio server error", "error", err)
			}
		}()
		slog.Info("MCP server started (stdio transport)")
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "kbridge listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
