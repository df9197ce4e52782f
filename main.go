// Command sigil-guard serves the sigil enhancement pipeline over HTTP:
// preprocessing, structure scoring, compositing, and ControlNet generation.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"sigil-guard/internal/generate"
	"sigil-guard/internal/service"
	"sigil-guard/internal/style"
	"sigil-guard/internal/version"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	listen := flag.String("listen", "", "Listen address override")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg := service.DefaultConfig()
	if *configPath != "" {
		loaded, err := service.LoadConfig(*configPath)
		if err != nil {
			slog.Error("failed to load config", "path", *configPath, "error", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *listen != "" {
		cfg.Listen = *listen
	}
	if *debug {
		cfg.Debug = true
	}

	logger := setupLogger(cfg.Debug)
	logger.Info("sigil-guard starting", "version", version.Version)

	styles := style.Builtin()
	if cfg.StylesFile != "" {
		if err := styles.MergeFile(cfg.StylesFile); err != nil {
			logger.Error("failed to load styles file", "path", cfg.StylesFile, "error", err)
			os.Exit(1)
		}
		logger.Info("merged styles file", "path", cfg.StylesFile, "styles", styles.Names())
	}

	client := generate.NewClient(cfg.ReplicateToken)
	if !client.Configured() {
		logger.Warn("replicate token not set, enhancement requests will fail")
	}

	srv := service.New(cfg, logger, styles, client)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.ListenAndServe(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
	logger.Info("sigil-guard stopped cleanly")
}

func setupLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}
