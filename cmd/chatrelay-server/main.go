package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/codefionn/chatrelay/internal/admin"
	"github.com/codefionn/chatrelay/internal/auth"
	"github.com/codefionn/chatrelay/internal/config"
	"github.com/codefionn/chatrelay/internal/llm"
	"github.com/codefionn/chatrelay/internal/logger"
	"github.com/codefionn/chatrelay/internal/pidfile"
	"github.com/codefionn/chatrelay/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() (err error) {
	configPath := flag.String("config", "", "path to the config file")
	listenAddr := flag.String("listen", "", "listen address override, e.g. :8443")
	certFile := flag.String("cert", "", "TLS certificate file override")
	keyFile := flag.String("key", "", "TLS key file override")
	adminAddr := flag.String("admin", "", "admin endpoint address override, e.g. 127.0.0.1:8444")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}
	if *certFile != "" {
		cfg.CertFile = *certFile
	}
	if *keyFile != "" {
		cfg.KeyFile = *keyFile
	}
	if *adminAddr != "" {
		cfg.AdminAddr = *adminAddr
	}
	if envLevel := strings.TrimSpace(os.Getenv("CHATRELAY_LOG_LEVEL")); envLevel != "" {
		cfg.LogLevel = envLevel
	}
	if envPath := strings.TrimSpace(os.Getenv("CHATRELAY_LOG_PATH")); envPath != "" {
		cfg.LogPath = envPath
	}

	if err := logger.Init(logger.ParseLevel(cfg.LogLevel), cfg.LogPath); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		if err != nil {
			logger.Error("Fatal error: %v", err)
		}
		if closeErr := logger.Global().Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close logger: %v\n", closeErr)
		}
	}()

	if cfg.PidFile != "" {
		pf := pidfile.New(cfg.PidFile)
		if err := pf.Write(); err != nil {
			return err
		}
		defer pf.Remove()
	}

	creds, err := openCredentialStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to open credential store: %w", err)
	}

	ai, err := llm.New(cfg.AIProvider, cfg.AIModel, cfg.OllamaURL, cfg.OpenAIAPIKey, cfg.AnthropicAPIKey)
	if err != nil {
		// The server is useful without a working bot; AI rooms degrade to
		// silence.
		logger.Warn("AI backend unavailable: %v", err)
		ai = nil
	}

	srv, err := server.NewServer(cfg, creds, ai)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := srv.Start(ctx); err != nil {
		return err
	}

	var adm *admin.Admin
	if cfg.AdminAddr != "" {
		adm = admin.New(cfg.AdminAddr, srv, cfg.AdminProfiling)
		adm.Start()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("Received signal %v, shutting down", sig)

	if adm != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := adm.Stop(shutdownCtx); err != nil {
			logger.Warn("Admin endpoint shutdown failed: %v", err)
		}
	}

	return srv.Stop()
}

func openCredentialStore(cfg *config.Config) (auth.CredentialStore, error) {
	switch cfg.CredentialBackend {
	case "", "file":
		return auth.NewFileStore(cfg.UsersFile)
	case "sqlite":
		return auth.NewSQLiteStore(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown credential backend %q", cfg.CredentialBackend)
	}
}
