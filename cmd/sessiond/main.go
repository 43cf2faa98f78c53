// Package main runs sessiond, the persistent browser session service. It
// keeps per-(user, site) login sessions alive across restarts: users log in
// once through a visible browser, the profile directory is retained, and
// later automated actions reuse it without re-authenticating.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/entrhq/sessiond/pkg/action"
	"github.com/entrhq/sessiond/pkg/browser"
	"github.com/entrhq/sessiond/pkg/config"
	"github.com/entrhq/sessiond/pkg/crypto"
	"github.com/entrhq/sessiond/pkg/logging"
	"github.com/entrhq/sessiond/pkg/server"
	"github.com/entrhq/sessiond/pkg/session"
)

const version = "0.1.0"

// defaultFeedURL is where get_profile and post_message land when the caller
// supplies no target page.
const defaultFeedURL = "https://www.linkedin.com/feed/"

func main() {
	configPath := flag.String("config", "sessiond.yaml", "Path to the YAML configuration file")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("sessiond v%s\n", version)
		return
	}

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "sessiond: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, logErr := logging.NewLogger("main")
	if logErr != nil {
		fmt.Fprintf(os.Stderr, "Warning: file logging unavailable: %v\n", logErr)
	}
	defer logger.Close()

	// The key is loaded once and held for the process's lifetime. Losing
	// the key file invalidates every persisted session irrecoverably.
	key, err := crypto.LoadOrCreateKey(cfg.KeyFile)
	if err != nil {
		return fmt.Errorf("failed to load encryption key: %w", err)
	}

	codec, err := crypto.NewCodec(key)
	if err != nil {
		return err
	}

	store, err := session.NewStore(session.NewPaths(cfg.SessionsDir), codec)
	if err != nil {
		return err
	}

	engine := browser.NewPlaywrightEngine(cfg.Headless)
	if err := engine.Start(); err != nil {
		return err
	}
	defer engine.Stop()

	manager := session.NewManager(store, engine, session.ManagerOptions{
		TTL:               cfg.SessionTTL.Std(),
		Headless:          cfg.Headless,
		NavigationTimeout: cfg.NavigationTimeoutMs,
	})
	defer manager.Shutdown()

	registry := action.NewRegistry()
	registry.Register(action.NewGetProfileHandler(defaultFeedURL))
	registry.Register(action.NewPostMessageHandler(defaultFeedURL))
	registry.Register(action.NewScreenshotHandler(cfg.ScreenshotsDir))

	dispatcher := action.NewDispatcher(manager, registry, engine, action.DispatcherOptions{
		Headless: cfg.ActionHeadless,
	})

	srv := server.New(manager, dispatcher, nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run(cfg.ListenAddr)
	}()

	logger.Infof("sessiond v%s started on %s, sessions in %s", version, cfg.ListenAddr, cfg.SessionsDir)
	fmt.Printf("sessiond listening on %s (sessions: %s)\n", cfg.ListenAddr, cfg.SessionsDir)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Infof("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
