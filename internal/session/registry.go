package session

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/genricoloni/mediakeys/internal/domain"
	"github.com/genricoloni/mediakeys/internal/engine"
	"go.uber.org/zap"
)

// ErrEmptyKeyID is returned by Appear for a blank key id
var ErrEmptyKeyID = errors.New("key id is required")

// Registry owns the live session of every visible key
type Registry struct {
	logger *zap.Logger
	deps   deps
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	sessions map[string]*Session
	wg       sync.WaitGroup
}

// NewRegistry wires the shared collaborators of every session
func NewRegistry(
	logger *zap.Logger,
	cfg domain.Config,
	supervisor domain.Supervisor,
	clients domain.ClientFactory,
	presenter domain.Presenter,
	scheduler domain.Scheduler,
	images domain.ImageProcessor,
) *Registry {
	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		logger: logger,
		deps: deps{
			supervisor: supervisor,
			clients:    clients,
			presenter:  presenter,
			scheduler:  scheduler,
			images:     images,
			options: engine.Options{
				VisibleChars: cfg.GetVisibleChars(),
				ScrollSpeed:  cfg.GetScrollSpeed(),
			},
			tickInterval: cfg.GetTickInterval(),
		},
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[string]*Session),
	}
}

// Appear starts a fresh session for keyID. A live session for the same key is
// torn down first. Start-up runs in the background.
func (r *Registry) Appear(keyID string, variant domain.Variant) error {
	if keyID == "" {
		return ErrEmptyKeyID
	}

	s := newSession(r.ctx, r.logger, r.deps, keyID, variant)

	r.mu.Lock()
	old := r.sessions[keyID]
	r.sessions[keyID] = s
	r.mu.Unlock()

	if old != nil {
		r.logger.Debug("Replacing live session", zap.String("key", keyID))
		old.teardown()
	}

	r.logger.Info("Key appeared", zap.String("key", keyID), zap.String("variant", string(variant)))

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		s.start()
	}()
	return nil
}

// Disappear tears down the key's session, reporting whether one existed
func (r *Registry) Disappear(keyID string) bool {
	r.mu.Lock()
	s, ok := r.sessions[keyID]
	delete(r.sessions, keyID)
	r.mu.Unlock()

	if !ok {
		return false
	}
	s.teardown()
	r.logger.Info("Key disappeared", zap.String("key", keyID))
	return true
}

// Close tears down every session and waits for pending start-ups
func (r *Registry) Close() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	r.cancel()
	for _, s := range sessions {
		s.teardown()
	}
	r.wg.Wait()

	r.logger.Info("All sessions closed", zap.Int("count", len(sessions)))
}

// Count returns the number of live sessions
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Keys returns the live key ids with their variants, sorted by id
func (r *Registry) Keys() []KeyInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := make([]KeyInfo, 0, len(r.sessions))
	for id, s := range r.sessions {
		keys = append(keys, KeyInfo{KeyID: id, Variant: s.Variant()})
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].KeyID < keys[j].KeyID })
	return keys
}

// Lookup returns the variant of a live key
func (r *Registry) Lookup(keyID string) (domain.Variant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[keyID]
	if !ok {
		return "", false
	}
	return s.Variant(), true
}

// KeyInfo describes a live key
type KeyInfo struct {
	KeyID   string         `json:"key_id"`
	Variant domain.Variant `json:"variant"`
}
