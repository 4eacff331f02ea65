// Package daemon runs the monitor headless, in the foreground or under the
// platform service manager.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/kardianos/service"

	"github.com/j-veylop/claude-usage-monitor/internal/config"
	"github.com/j-veylop/claude-usage-monitor/internal/logger"
	"github.com/j-veylop/claude-usage-monitor/internal/metrics"
)

// ServiceName is the name registered with the service manager.
const ServiceName = "usagemon"

// Actions accepted by Control, in addition to "status".
var Actions = []string{"install", "uninstall", "start", "stop", "restart"}

// ErrUnknownAction is returned by Control for anything outside Actions.
var ErrUnknownAction = errors.New("unknown service action")

// Runner is the monitor lifecycle driven by the service.
type Runner interface {
	Start() error
	Close() error
	Metrics() *metrics.Metrics
}

// Factory builds a Runner from the configuration.
type Factory func(cfg *config.Config) (Runner, error)

// Program implements service.Interface.
type Program struct {
	cfg     *config.Config
	factory Factory

	mu      sync.Mutex
	runner  Runner
	cancel  context.CancelFunc
	serving sync.WaitGroup
}

// NewProgram returns a program that builds its runner with factory on Start.
func NewProgram(cfg *config.Config, factory Factory) *Program {
	return &Program{cfg: cfg, factory: factory}
}

// ServiceConfig describes the service. The installed command runs "run".
func ServiceConfig() *service.Config {
	return &service.Config{
		Name:        ServiceName,
		DisplayName: "Claude Usage Monitor",
		Description: "Watches Claude usage logs and alerts before the token limit is reached",
		Arguments:   []string{"run"},
	}
}

// New wraps p in a platform service.
func New(p *Program) (service.Service, error) {
	s, err := service.New(p, ServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create service: %w", err)
	}
	return s, nil
}

// Start implements service.Interface. It must not block.
func (p *Program) Start(_ service.Service) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.runner != nil {
		return nil
	}

	runner, err := p.factory(p.cfg)
	if err != nil {
		return fmt.Errorf("failed to build monitor: %w", err)
	}
	if err := runner.Start(); err != nil {
		_ = runner.Close()
		return fmt.Errorf("failed to start monitor: %w", err)
	}
	p.runner = runner

	if addr := p.cfg.MetricsAddr; addr != "" {
		ctx, cancel := context.WithCancel(context.Background())
		p.cancel = cancel
		p.serving.Add(1)
		go func() {
			defer p.serving.Done()
			if err := runner.Metrics().Serve(ctx, addr); err != nil {
				logger.Error("metrics server stopped", "addr", addr, "error", err)
			}
		}()
	}

	logger.Info("service started", "name", ServiceName)
	return nil
}

// Stop implements service.Interface.
func (p *Program) Stop(_ service.Service) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.runner == nil {
		return nil
	}
	if p.cancel != nil {
		p.cancel()
		p.serving.Wait()
		p.cancel = nil
	}

	err := p.runner.Close()
	p.runner = nil
	logger.Info("service stopped", "name", ServiceName)
	return err
}

// Control runs one of Actions against s.
func Control(s service.Service, action string) error {
	for _, a := range Actions {
		if a == action {
			if err := service.Control(s, action); err != nil {
				return fmt.Errorf("service %s: %w", action, err)
			}
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownAction, action)
}

// Status returns a readable service status.
func Status(s service.Service) (string, error) {
	st, err := s.Status()
	if errors.Is(err, service.ErrNotInstalled) {
		return "not installed", nil
	}
	if err != nil {
		return "", fmt.Errorf("service status: %w", err)
	}
	switch st {
	case service.StatusRunning:
		return "running", nil
	case service.StatusStopped:
		return "stopped", nil
	default:
		return "unknown", nil
	}
}
