package supervisor

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/genricoloni/mediakeys/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeProcess struct {
	pid    int
	exited chan struct{}
	once   sync.Once
	killed atomic.Bool
}

func newFakeProcess(pid int) *fakeProcess {
	return &fakeProcess{pid: pid, exited: make(chan struct{})}
}

func (p *fakeProcess) Pid() int { return p.pid }

func (p *fakeProcess) Wait() error {
	<-p.exited
	return nil
}

func (p *fakeProcess) Kill() error {
	p.killed.Store(true)
	p.exit()
	return nil
}

func (p *fakeProcess) exit() {
	p.once.Do(func() { close(p.exited) })
}

type fakeStarter struct {
	mu      sync.Mutex
	started []*fakeProcess
	err     error
	onStart func()
}

func (s *fakeStarter) Start(path string) (Process, error) {
	if s.onStart != nil {
		s.onStart()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	p := newFakeProcess(1000 + len(s.started))
	s.started = append(s.started, p)
	return p, nil
}

func (s *fakeStarter) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.started)
}

func (s *fakeStarter) last() *fakeProcess {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started[len(s.started)-1]
}

// backend answers the health check with 200 once healthy is set
func backend(t *testing.T, healthy *atomic.Bool) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health_check" {
			http.NotFound(w, r)
			return
		}
		if healthy.Load() {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestSupervisor(t *testing.T, url string, starter Starter) *Supervisor {
	t.Helper()
	cfg, err := config.FromSettings(config.Settings{
		Backend: config.BackendSettings{
			URL:              url,
			Path:             "/opt/backend/media-info",
			HealthTimeoutMs:  200,
			StartupTimeoutMs: 150,
		},
	})
	require.NoError(t, err)
	return NewSupervisor(zap.NewNop(), cfg, starter)
}

func TestEnsureRunning_HealthyDoesNotSpawn(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	srv := backend(t, &healthy)
	starter := &fakeStarter{}

	sup := newTestSupervisor(t, srv.URL, starter)

	require.NoError(t, sup.EnsureRunning(context.Background()))
	require.NoError(t, sup.EnsureRunning(context.Background()))
	assert.Equal(t, 0, starter.count())
}

func TestEnsureRunning_SpawnsAndWaitsForReadiness(t *testing.T) {
	var healthy atomic.Bool
	srv := backend(t, &healthy)
	starter := &fakeStarter{onStart: func() {
		go func() {
			time.Sleep(20 * time.Millisecond)
			healthy.Store(true)
		}()
	}}

	sup := newTestSupervisor(t, srv.URL, starter)

	require.NoError(t, sup.EnsureRunning(context.Background()))
	assert.Equal(t, 1, starter.count())
	assert.True(t, sup.Running())
}

func TestEnsureRunning_ConcurrentCallersSpawnOnce(t *testing.T) {
	var healthy atomic.Bool
	srv := backend(t, &healthy)
	starter := &fakeStarter{}
	sup := newTestSupervisor(t, srv.URL, starter)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = sup.EnsureRunning(context.Background())
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, starter.count(), "exactly one spawn")
	assert.Equal(t, 1, sup.Spawns())
	for _, err := range errs {
		// Backend never turns healthy in this test
		assert.ErrorIs(t, err, ErrNotReady)
	}
}

func TestEnsureRunning_RespawnsAfterExit(t *testing.T) {
	var healthy atomic.Bool
	srv := backend(t, &healthy)
	starter := &fakeStarter{}
	sup := newTestSupervisor(t, srv.URL, starter)

	_ = sup.EnsureRunning(context.Background())
	require.Equal(t, 1, starter.count())

	starter.last().exit()
	require.Eventually(t, func() bool { return !sup.Running() }, time.Second, 5*time.Millisecond)

	_ = sup.EnsureRunning(context.Background())
	assert.Equal(t, 2, starter.count())
}

func TestEnsureRunning_SpawnFailureIsReturnedAndRetried(t *testing.T) {
	var healthy atomic.Bool
	srv := backend(t, &healthy)
	starter := &fakeStarter{err: errors.New("executable not found")}
	sup := newTestSupervisor(t, srv.URL, starter)

	err := sup.EnsureRunning(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "executable not found")
	assert.False(t, sup.Running())

	starter.mu.Lock()
	starter.err = nil
	starter.mu.Unlock()

	_ = sup.EnsureRunning(context.Background())
	assert.Equal(t, 1, starter.count())
}

func TestEnsureRunning_UnreachableBackend(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	starter := &fakeStarter{}
	sup := newTestSupervisor(t, url, starter)

	err := sup.EnsureRunning(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 1, starter.count())
}

func TestStop_Idempotent(t *testing.T) {
	var healthy atomic.Bool
	srv := backend(t, &healthy)
	starter := &fakeStarter{}
	sup := newTestSupervisor(t, srv.URL, starter)

	require.NoError(t, sup.Stop(), "stop before start is a no-op")

	_ = sup.EnsureRunning(context.Background())
	proc := starter.last()

	require.NoError(t, sup.Stop())
	require.NoError(t, sup.Stop())
	assert.True(t, proc.killed.Load())
	assert.False(t, sup.Running())
}
