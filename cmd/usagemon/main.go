// Package main is the entry point for the usage monitor. It runs the TUI on
// a terminal and a headless monitor otherwise.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/j-veylop/claude-usage-monitor/internal/app"
	"github.com/j-veylop/claude-usage-monitor/internal/config"
	"github.com/j-veylop/claude-usage-monitor/internal/daemon"
	"github.com/j-veylop/claude-usage-monitor/internal/logger"
	"github.com/j-veylop/claude-usage-monitor/internal/services"
	"github.com/j-veylop/claude-usage-monitor/internal/ui/tabs/dashboard"
	"github.com/j-veylop/claude-usage-monitor/internal/ui/tabs/history"
	"github.com/j-veylop/claude-usage-monitor/internal/ui/tabs/info"
	"github.com/j-veylop/claude-usage-monitor/internal/version"
)

func main() {
	args := os.Args[1:]

	var err error
	switch {
	case len(args) == 0:
		if term.IsTerminal(int(os.Stdout.Fd())) {
			err = runTUI()
		} else {
			err = runHeadless()
		}
	case args[0] == "-v" || args[0] == "--version":
		fmt.Println(version.Info())
	case args[0] == "-h" || args[0] == "--help":
		printUsage()
	case args[0] == "run":
		err = runHeadless()
	case args[0] == "service":
		err = runService(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q\n\n", args[0])
		printUsage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// newHeadlessManager builds a manager that reports every snapshot to the log.
func newHeadlessManager(cfg *config.Config) (daemon.Runner, error) {
	mgr, err := services.NewManager(cfg, services.Options{
		Renderers: []services.StatusRenderer{app.NewLogRenderer()},
	})
	if err != nil {
		return nil, err
	}
	return mgr, nil
}

// runHeadless runs the monitor in the foreground until interrupted, or under
// the service manager when started by it.
func runHeadless() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if _, err := logger.Setup(logger.Options{Level: cfg.LogLevel}); err != nil {
		return err
	}

	svc, err := daemon.New(daemon.NewProgram(cfg, newHeadlessManager))
	if err != nil {
		return err
	}
	return svc.Run()
}

func runService(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: usagemon service install|uninstall|start|stop|restart|status")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	svc, err := daemon.New(daemon.NewProgram(cfg, newHeadlessManager))
	if err != nil {
		return err
	}

	if args[0] == "status" {
		status, err := daemon.Status(svc)
		if err != nil {
			return err
		}
		fmt.Printf("Service status: %s\n", status)
		return nil
	}

	if err := daemon.Control(svc, args[0]); err != nil {
		return err
	}
	fmt.Printf("Service %s: done\n", args[0])
	return nil
}

func runTUI() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// The terminal belongs to the TUI, so logs go to a file.
	logCloser, err := logger.Setup(logger.Options{Level: cfg.LogLevel, FilePath: cfg.LogFile})
	if err != nil {
		return err
	}
	defer logCloser.Close()

	mgr, err := services.NewManager(cfg, services.Options{})
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	defer func() {
		if closeErr := mgr.Close(); closeErr != nil {
			logger.Warn("error closing services", "error", closeErr)
		}
	}()

	if err := mgr.Start(); err != nil {
		return fmt.Errorf("failed to start monitor: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if cfg.MetricsAddr != "" {
		go func() {
			if err := mgr.Metrics().Serve(ctx, cfg.MetricsAddr); err != nil {
				logger.Error("metrics server stopped", "error", err)
			}
		}()
	}

	model := app.NewModel(mgr)
	state := model.State()
	model.SetTabs([]app.Tab{
		dashboard.New(state),
		history.New(state, model.Commands(), cfg.WarningThreshold, cfg.CriticalThreshold),
		info.New(state, cfg, mgr),
	})

	p := tea.NewProgram(model, tea.WithAltScreen())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		if _, ok := <-sigChan; ok {
			p.Send(tea.Quit())
		}
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}

func printUsage() {
	fmt.Println(`usagemon - Claude token usage window monitor

Usage:
  usagemon                 Run the TUI (headless when stdout is not a terminal)
  usagemon run             Run headless in the foreground
  usagemon service ACTION  Manage the background service
                           (install, uninstall, start, stop, restart, status)

Flags:
  -h, --help      Show this help message
  -v, --version   Show version information

Keyboard Shortcuts:
  1-3             Switch between tabs (Dashboard, History, Info)
  Tab/Shift+Tab   Navigate between tabs
  r               Refresh now
  p               Switch plan (Pro, Max 5x, Max 20x)
  t               Send a test notification
  c               Reset alert cooldowns
  ?               Toggle help
  q, Ctrl+C       Quit

Environment Variables:
  USAGE_PLAN          Plan name (pro, max5x, max20x)
  TOKEN_LIMIT         Token limit override
  WINDOW_HOURS        Rolling window length in hours (default: 5)
  WARNING_THRESHOLD   Warning alert threshold in percent (default: 90)
  NOTIFY_COOLDOWN     Minimum time between alerts of one kind (default: 15m)
  NOTIFY_BURST        Desktop notification burst size (default: 2)
  REFRESH_INTERVAL    Scheduled refresh interval (default: 30s)
  DEBOUNCE_DELAY      File change debounce delay (default: 500ms)
  CLAUDE_LOG_DIR      Directory holding the usage logs
  DATABASE_PATH       SQLite database path
  SETTINGS_PATH       Settings file path
  LOG_FILE            TUI log file
  LOG_LEVEL           debug, info, warn or error
  METRICS_ADDR        Serve Prometheus metrics on this address

Configuration:
  .env files are read from the current directory, ~/.claude-monitor/.env and
  ~/.config/usagemon/.env. Settings live in ~/.claude-monitor/settings.yaml.`)
}
