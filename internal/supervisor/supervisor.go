package supervisor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/genricoloni/mediakeys/internal/domain"
	"go.uber.org/zap"
)

const healthPath = "/health_check"

// ErrNotReady is returned when a spawned backend never reported healthy
var ErrNotReady = errors.New("backend did not become ready")

// Supervisor keeps a single backend process alive for the whole daemon.
// Health checks run concurrently; only spawning is serialized.
type Supervisor struct {
	logger         *zap.Logger
	starter        Starter
	client         *http.Client
	healthURL      string
	path           string
	startupTimeout time.Duration

	mu     sync.Mutex
	proc   Process
	spawns int
}

// NewSupervisor creates the process-wide backend supervisor
func NewSupervisor(logger *zap.Logger, cfg domain.Config, starter Starter) *Supervisor {
	return &Supervisor{
		logger:         logger,
		starter:        starter,
		client:         &http.Client{Timeout: cfg.GetHealthTimeout()},
		healthURL:      cfg.GetBackendURL() + healthPath,
		path:           cfg.GetBackendPath(),
		startupTimeout: cfg.GetStartupTimeout(),
	}
}

// EnsureRunning returns nil when the backend answers its health check,
// spawning it at most once across concurrent callers
func (s *Supervisor) EnsureRunning(ctx context.Context) error {
	if s.healthy(ctx) {
		s.logger.Debug("Backend is already running")
		return nil
	}

	s.mu.Lock()
	if s.proc != nil {
		s.mu.Unlock()
		s.logger.Debug("Backend process already started, waiting for readiness")
		return s.waitReady(ctx)
	}

	proc, err := s.starter.Start(s.path)
	if err != nil {
		s.mu.Unlock()
		s.logger.Error("Failed to start backend", zap.String("path", s.path), zap.Error(err))
		return fmt.Errorf("spawn backend: %w", err)
	}
	s.proc = proc
	s.spawns++
	s.mu.Unlock()

	s.logger.Info("Backend started", zap.String("path", s.path), zap.Int("pid", proc.Pid()))
	go s.reap(proc)

	return s.waitReady(ctx)
}

// Stop kills the spawned backend, if any
func (s *Supervisor) Stop() error {
	s.mu.Lock()
	proc := s.proc
	s.proc = nil
	s.mu.Unlock()

	if proc == nil {
		return nil
	}

	if err := proc.Kill(); err != nil {
		s.logger.Warn("Failed to stop backend", zap.Int("pid", proc.Pid()), zap.Error(err))
		return fmt.Errorf("kill backend: %w", err)
	}
	s.logger.Info("Backend stopped", zap.Int("pid", proc.Pid()))
	return nil
}

// Spawns returns how many processes this supervisor has started
func (s *Supervisor) Spawns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spawns
}

// Running reports whether a spawned process handle is held
func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.proc != nil
}

// reap clears the handle once the process exits so a later call can respawn
func (s *Supervisor) reap(proc Process) {
	err := proc.Wait()

	s.mu.Lock()
	if s.proc == proc {
		s.proc = nil
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("Backend exited", zap.Int("pid", proc.Pid()), zap.Error(err))
		return
	}
	s.logger.Info("Backend exited", zap.Int("pid", proc.Pid()))
}

func (s *Supervisor) healthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.healthURL, nil)
	if err != nil {
		return false
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

func (s *Supervisor) waitReady(ctx context.Context) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 100 * time.Millisecond
	policy.MaxInterval = time.Second
	policy.MaxElapsedTime = s.startupTimeout

	err := backoff.Retry(func() error {
		if s.healthy(ctx) {
			return nil
		}
		return ErrNotReady
	}, backoff.WithContext(policy, ctx))
	if err != nil {
		s.logger.Warn("Backend not ready", zap.Duration("waited", s.startupTimeout), zap.Error(err))
		return fmt.Errorf("wait for backend: %w", err)
	}

	s.logger.Info("Backend is ready")
	return nil
}
