// Speechplan is a voice-driven task assistant gateway. It turns audio or
// text inputs into structured task operations by way of a remote speech
// recognizer and a language service held to a strict JSON reply protocol.
//
// Usage:
//
//	speechplan [flags]
//	speechplan --config /path/to/speechplan.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	_ "speechplan/docs"
	"speechplan/internal/assistant"
	geminiassist "speechplan/internal/assistant/gemini"
	openaiassist "speechplan/internal/assistant/openai"
	"speechplan/internal/calendar"
	"speechplan/internal/calendar/webhook"
	"speechplan/internal/config"
	"speechplan/internal/dates"
	"speechplan/internal/gateway"
	"speechplan/internal/health"
	"speechplan/internal/store/memory"
	httptransport "speechplan/internal/transport/http"
)

// version is set at build time via ldflags.
var version = "dev"

// @title       speechplan API
// @version     1.0
// @description Voice-driven task assistant gateway.
// @BasePath    /
func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configFile := flag.String("config", "", "path to config file (e.g. configs/speechplan.local.yaml)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("speechplan %s\n", version)
		os.Exit(0)
	}

	// A .env file is optional; real environments set variables directly.
	_ = godotenv.Load()

	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	config.SetupLogging(cfg.Logging)
	slog.Info("speechplan starting", "version", version)

	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize the assistant backend.
	var assist assistant.Assistant
	switch cfg.Assistant.Backend {
	case "openai":
		assist = openaiassist.New(cfg.Assistant.OpenAI)
		slog.Info("using OpenAI assistant",
			"transcription_model", cfg.Assistant.OpenAI.TranscriptionModel,
			"completion_model", cfg.Assistant.OpenAI.CompletionModel)
	case "gemini":
		assist = geminiassist.New(cfg.Assistant.Gemini)
		slog.Info("using Gemini assistant", "model", cfg.Assistant.Gemini.Model)
	default:
		slog.Error("unknown assistant backend", "backend", cfg.Assistant.Backend)
		os.Exit(1)
	}
	defer assist.Close()

	tasks := memory.New()
	defer tasks.Close()

	// Calendar scheduling is optional; a nil scheduler disables it.
	var sched calendar.Scheduler
	if cfg.Calendar.Enabled {
		sched = webhook.New(cfg.Calendar)
		defer sched.Close()
		slog.Info("calendar scheduling enabled", "endpoint", cfg.Calendar.Endpoint)
	}

	gw := gateway.New(assist, tasks, sched, dates.New(), cfg.Transcription.Async)

	healthServer := health.New(cfg.Server.HealthPort)
	go func() {
		if err := healthServer.ListenAndServe(ctx); err != nil {
			slog.Error("health server failed", "error", err)
		}
	}()

	server := httptransport.New(cfg.Server.Port, gw, tasks)
	errC := make(chan error, 1)
	go func() {
		errC <- server.ListenAndServe(ctx)
	}()

	healthServer.SetReady(true)
	slog.Info("speechplan ready",
		"port", cfg.Server.Port,
		"health_port", cfg.Server.HealthPort,
		"async_transcription", cfg.Transcription.Async)

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining...")
	case err := <-errC:
		if err != nil {
			slog.Error("http server failed", "error", err)
		}
		cancel()
	}

	if err := server.Close(); err != nil {
		slog.Error("server close error", "error", err)
	}

	// Give in-flight async jobs a moment to record their outcome.
	time.Sleep(100 * time.Millisecond)
	slog.Info("speechplan stopped")
}
