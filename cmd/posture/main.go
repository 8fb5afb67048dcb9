package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/ayusman/posturecheck/internal/app"
	"github.com/ayusman/posturecheck/internal/config"
	"github.com/ayusman/posturecheck/internal/detector"
	"github.com/ayusman/posturecheck/internal/plugin"
	"github.com/ayusman/posturecheck/internal/publish"
	"github.com/ayusman/posturecheck/internal/server"
	"github.com/ayusman/posturecheck/internal/store"
	"github.com/ayusman/posturecheck/internal/tray"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to config file (default "+config.DefaultConfigFile+" if present)")
		addr       = flag.String("addr", "", "HTTP listen address (overrides config)")
		noTray     = flag.Bool("no-tray", false, "Disable the system tray even if configured")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "posture: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *noTray {
		cfg.Tray = false
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("posture check failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPath, err := cfg.Store.ResolvePath()
	if err != nil {
		return err
	}
	st, err := store.New(dbPath)
	if err != nil {
		return fmt.Errorf("initialize store: %w", err)
	}
	defer st.Close()
	logger.Info("store opened", "path", dbPath)

	engine := app.NewEngine(app.EngineConfig{
		Collector: cfg.Recorder.Collector(),
		Smoother:  cfg.Smoothing.Smoother(),
		Training:  cfg.Training.Train(),
		ModelKey:  cfg.Model.Key,
		Store:     app.NewSQLiteStore(st),
		Logger:    logger,
	})
	switch err := engine.Load(ctx); {
	case err == nil:
		logger.Info("loaded saved model", "key", cfg.Model.Key)
	case errors.Is(err, app.ErrNoSavedModel) && errors.Is(err, store.ErrNotFound):
		logger.Info("no saved model, record samples and train", "key", cfg.Model.Key)
	default:
		logger.Warn("saved model not loaded", "error", err)
	}

	hub := server.NewStatusHub(logger)
	engine.OnStatus(hub.Publish)

	if cfg.MQTT.Enabled() {
		pub, err := publish.Connect(publish.Config{
			Broker:   cfg.MQTT.Broker,
			Topic:    cfg.MQTT.Topic,
			ClientID: cfg.MQTT.ClientID,
			Logger:   logger,
		})
		if err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
		defer pub.Close()
		engine.OnStatus(pub.Handle)
	}

	if cfg.Plugins.Dir != "" {
		manager := plugin.NewManager(cfg.Plugins.Dir)
		if err := manager.Discover(); err != nil {
			return fmt.Errorf("discover plugins: %w", err)
		}
		alerter := plugin.NewAlerter(plugin.AlerterConfig{
			Manager:  manager,
			Executor: plugin.NewExecutor(cfg.Plugins.TimeoutDuration()),
			Cooldown: cfg.Plugins.CooldownDuration(),
			Logger:   logger,
		})
		defer alerter.Wait()
		engine.OnStatus(alerter.Handle)
		logger.Info("alert plugins", "dir", cfg.Plugins.Dir, "count", len(manager.WithAction(plugin.ActionAlert)))
	}

	staticDir := cfg.Server.StaticDir
	if staticDir == "" {
		staticDir = findWebDir()
	}
	if staticDir != "" {
		logger.Info("serving static files", "dir", staticDir)
	}
	srv := server.New(server.Config{
		StaticDir: staticDir,
		Store:     st,
		Engine:    engine,
		Hub:       hub,
		Logger:    logger,
	})

	source, err := detector.Open(ctx, cfg.Detector.Source())
	if err != nil {
		return fmt.Errorf("open pose source: %w", err)
	}
	pipeline := app.New(app.Config{Engine: engine, Source: source, Logger: logger})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx, cfg.Server.Addr)
	})
	g.Go(func() error {
		if err := pipeline.Run(gctx); err != nil {
			return err
		}
		logger.Info("pose source finished", "frames", pipeline.Frames())
		return nil
	})

	if !cfg.Tray {
		return g.Wait()
	}

	// The tray owns the main goroutine until it quits.
	t := tray.New(engine, logger)
	t.OnSettings(func() { openBrowser(logger, "http://"+browserAddr(cfg.Server.Addr)) })
	t.OnQuit(cancel)
	engine.OnStatus(t.Update)
	go func() {
		<-gctx.Done()
		t.Quit()
	}()
	t.Run()
	cancel()
	return g.Wait()
}

// browserAddr turns a listen address such as ":8080" into one a browser can open.
func browserAddr(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "localhost" + addr
	}
	return addr
}

func openBrowser(logger *slog.Logger, url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		logger.Warn("open browser", "url", url, "error", err)
		return
	}
	go cmd.Wait()
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and ~/.posturecheck/web.
// Returns the first existing directory or empty string if none found.
func findWebDir() string {
	for _, p := range []string{"web", "../web", "../../web"} {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	homeWebDir := filepath.Join(homeDir, config.DataDirName, "web")
	if info, err := os.Stat(homeWebDir); err == nil && info.IsDir() {
		return homeWebDir
	}

	return ""
}
