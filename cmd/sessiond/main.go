package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/revlab/sessiond/internal/api"
	"github.com/revlab/sessiond/internal/assistant"
	"github.com/revlab/sessiond/internal/config"
	"github.com/revlab/sessiond/internal/scholar"
	"github.com/revlab/sessiond/internal/session"
	"github.com/revlab/sessiond/internal/store"
)

func main() {
	addr := flag.String("addr", ":8080", "HTTP listen address")
	cfgPath := flag.String("config", "configs/study.yaml", "Path to study YAML config")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// ── Load config ──────────────────────────────────────────────────────────
	loader, err := config.NewLoader(*cfgPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	cfg := loader.Config()
	if err := config.Validate(cfg); err != nil {
		slog.Error("config validation failed", "err", err)
		os.Exit(1)
	}
	slog.Info("study config loaded", "tasks", len(cfg.Tasks))

	// ── Stores ────────────────────────────────────────────────────────────────
	jsonl, err := store.NewJSONL(cfg.Logging.Dir)
	if err != nil {
		slog.Error("failed to open event log dir", "err", err)
		os.Exit(1)
	}
	archive, err := store.OpenArchive(cfg.Logging.ArchivePath)
	if err != nil {
		slog.Error("failed to open session archive", "err", err)
		os.Exit(1)
	}
	defer archive.Close()

	mgr := session.NewManager(jsonl)

	// ── External clients ──────────────────────────────────────────────────────
	// API keys are read from the environment and held in process memory only.
	// They are never written to config, logs, events, or the archive.
	var scholarClient *scholar.Client
	if key := os.Getenv("SEMANTIC_SCHOLAR_API_KEY"); key != "" {
		scholarClient = scholar.New(key)
		slog.Info("semantic scholar client configured", "authenticated", true)
	} else {
		scholarClient = scholar.New("")
		slog.Info("semantic scholar client configured", "authenticated", false)
	}

	var ai assistant.Generator
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		gemini, err := assistant.NewGemini(context.Background(), key, os.Getenv("GEMINI_MODEL"))
		if err != nil {
			slog.Error("failed to create gemini client", "err", err)
			os.Exit(1)
		}
		ai = gemini
		slog.Info("assistant configured", "model", assistant.DefaultModel)
	} else {
		slog.Warn("GEMINI_API_KEY not set, AI endpoints disabled")
	}

	// ── Hot-reload watcher ────────────────────────────────────────────────────
	// The loader only swaps configs that validate, so the callback fires for
	// accepted reloads.
	loader.OnChange(func(newCfg *config.StudyConfig) {
		slog.Info("study config hot-reloaded", "tasks", len(newCfg.Tasks))
	})
	stopWatch, err := loader.Watch()
	if err != nil {
		slog.Warn("config watcher unavailable (hot-reload disabled)", "err", err)
	} else {
		defer stopWatch()
	}

	// ── HTTP server ───────────────────────────────────────────────────────────
	handler := api.New(mgr, loader, archive, scholarClient, ai)
	srv := &http.Server{
		Addr:         *addr,
		Handler:      handler,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutMs) * time.Millisecond,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutMs) * time.Millisecond,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", *addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down…")

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutCancel()
	_ = srv.Shutdown(shutCtx)

	// Sessions left open when the application closes still get well-formed
	// records: finalize and archive them before exit.
	mgr.FinalizeAll()
	for _, s := range mgr.All() {
		if err := archive.ArchiveSession(shutCtx, s.Snapshot()); err != nil {
			slog.Warn("failed to archive session on shutdown", "participant", s.ID(), "err", err)
		}
	}
	slog.Info("goodbye")
}
