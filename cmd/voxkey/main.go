package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/chaz8081/voxkey/internal/config"
	"github.com/chaz8081/voxkey/internal/dictate"
	"github.com/chaz8081/voxkey/internal/hotkey"
	"github.com/chaz8081/voxkey/internal/inject"
	"github.com/chaz8081/voxkey/internal/postprocess"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default: ~/.config/voxkey/config.yaml)")
	flag.Parse()

	// API keys may live in a local .env instead of the config file.
	if err := godotenv.Load(); err == nil {
		slog.Debug("loaded .env")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("config validation", "error", err)
		os.Exit(1)
	}

	setupLogging(cfg.LogLevel)
	printBanner(cfg)

	coordinator, err := dictate.New(cfg.ASR)
	if err != nil {
		slog.Error("initializing capture", "error", err,
			"hint", "ensure microphone access is granted in System Settings > Privacy & Security > Microphone")
		os.Exit(1)
	}

	var processor *postprocess.Processor
	if cfg.PostProcess.Enabled {
		processor = postprocess.NewProcessor(cfg.PostProcess.APIKey)
		if cfg.PostProcess.Endpoint != "" {
			processor.URL = cfg.PostProcess.Endpoint
		}
		if cfg.PostProcess.Model != "" {
			processor.Model = cfg.PostProcess.Model
		}
		if cfg.PostProcess.SystemPrompt != "" {
			processor.SystemPrompt = cfg.PostProcess.SystemPrompt
		}
		slog.Info("transcript post-processing enabled", "model", processor.Model)
	}

	injector := inject.NewInjector(cfg.Inject.Method)
	slog.Info("text injector ready", "method", cfg.Inject.Method)

	listener := hotkey.NewListener(cfg.Hotkey.Keys, cfg.Hotkey.Mode)
	slog.Info("hotkey listener ready",
		"keys", strings.Join(cfg.Hotkey.Keys, "+"), "mode", cfg.Hotkey.Mode)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go listener.Start()

	slog.Info("ready", "hotkey", strings.Join(cfg.Hotkey.Keys, "+"))

	ctx := context.Background()
	events := listener.Events()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				slog.Info("hotkey listener stopped")
				if err := coordinator.Close(); err != nil {
					slog.Error("closing coordinator", "error", err)
				}
				return
			}

			switch ev.Type {
			case hotkey.EventStart:
				if err := coordinator.StartUtterance(ctx); err != nil {
					slog.Error("starting utterance", "error", err)
					continue
				}
				slog.Info("recording")

			case hotkey.EventStop:
				// Resolve off the event loop so a slow backend never
				// blocks the next hotkey press.
				go func() {
					start := time.Now()
					text, err := coordinator.StopUtterance(ctx)
					if err != nil {
						slog.Error("transcription failed", "error", err)
						return
					}
					elapsed := time.Since(start).Round(time.Millisecond)

					if text == "" {
						slog.Info("no speech detected", "elapsed", elapsed)
						return
					}
					slog.Info("transcribed", "elapsed", elapsed, "text", text)

					if processor != nil {
						polished, err := processor.Polish(ctx, text)
						if err != nil {
							// The raw transcript is still usable; insert it
							// rather than losing the utterance.
							slog.Warn("post-processing failed, inserting raw transcript", "error", err)
						} else if polished != "" {
							text = polished
						}
					}

					if err := injector.Inject(text); err != nil {
						slog.Error("text injection failed", "error", err)
						return
					}
					slog.Info("text injected")
				}()
			}

		case sig := <-sigCh:
			slog.Info("shutting down", "signal", sig.String())
			if coordinator.IsRunning() {
				if err := coordinator.Cancel(ctx); err != nil {
					slog.Error("cancelling utterance", "error", err)
				}
			}
			if err := coordinator.Close(); err != nil {
				slog.Error("closing coordinator", "error", err)
			}
			slog.Info("goodbye")
			// Exit directly to avoid gohook's C cleanup crash.
			// The OS reclaims the event hook on process exit.
			os.Exit(0)
		}
	}
}

// loadConfig loads the config from the specified path, or falls back to
// the default config path, or uses built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}

	defaultPath := config.DefaultConfigPath()
	if _, err := os.Stat(defaultPath); err == nil {
		cfg, err := config.Load(defaultPath)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", defaultPath, err)
		}
		slog.Info("config loaded", "path", defaultPath)
		return cfg, nil
	}

	slog.Info("no config file found, using defaults")
	cfg := config.Default()
	cfg.ApplyEnv()
	return cfg, nil
}

// setupLogging sets the process-wide slog level.
func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}

// printBanner displays the startup configuration summary.
func printBanner(cfg *config.Config) {
	mode := "batch"
	if cfg.ASR.UseRealtime {
		mode = "realtime"
	}
	fallback := "none"
	if cfg.ASR.SiliconFlowAPIKey != "" {
		fallback = "sensevoice"
	}
	fmt.Println("=== voxkey ===")
	fmt.Printf("  Mode:     %s\n", mode)
	fmt.Printf("  Language: %s\n", cfg.ASR.Language)
	fmt.Printf("  Fallback: %s\n", fallback)
	polish := "off"
	if cfg.PostProcess.Enabled {
		polish = cfg.PostProcess.Model
		if polish == "" {
			polish = "on"
		}
	}
	fmt.Printf("  Polish:   %s\n", polish)
	fmt.Printf("  Hotkey:   %s (%s mode)\n", strings.Join(cfg.Hotkey.Keys, "+"), cfg.Hotkey.Mode)
	fmt.Printf("  Inject:   %s\n", cfg.Inject.Method)
	fmt.Printf("  Log:      %s\n", cfg.LogLevel)
	fmt.Println("==============")
}
