// Command stylextractd serves the style extractor over HTTP, or over MCP on
// stdio with -mcp.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"stylextract/internal/config"
	"stylextract/internal/mcptool"
	"stylextract/internal/server"
	"stylextract/pagestyle"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "stylextractd:", err)
		os.Exit(1)
	}
}

func run() error {
	cfgPath := flag.String("config", "", "optional YAML config file")
	addr := flag.String("addr", "", "listen address, e.g. :8081 or 0.0.0.0:8081")
	engine := flag.String("engine", "", "page engine: static or browser")
	mcpMode := flag.Bool("mcp", false, "serve the MCP tool on stdio instead of HTTP")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *engine != "" {
		cfg.Extractor.Engine = *engine
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// stdout carries the MCP stream, so logs always go to stderr.
	logger := cfg.Logger(os.Stderr)
	slog.SetDefault(logger)

	x := pagestyle.New(cfg.ExtractorOptions(logger))
	defer x.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *mcpMode {
		return runMCP(ctx, x)
	}
	return runHTTP(ctx, cfg, x, logger)
}

func runMCP(ctx context.Context, x *pagestyle.Extractor) error {
	srv := mcptool.NewServer(x, version)
	return srv.Run(ctx, &mcp.StdioTransport{})
}

func runHTTP(ctx context.Context, cfg config.Config, x *pagestyle.Extractor, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server.New(x, server.Config{Logger: logger}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       60 * time.Second,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}

	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Server.Addr, err)
	}
	logger.Info("listening", "addr", ln.Addr().String(), "engine", cfg.Extractor.Engine, "version", version)

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel()
	logger.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
