package session

import (
	"context"
	"sync"
	"time"

	"github.com/genricoloni/mediakeys/internal/domain"
	"github.com/genricoloni/mediakeys/internal/engine"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// deps are shared by every session of a registry
type deps struct {
	supervisor   domain.Supervisor
	clients      domain.ClientFactory
	presenter    domain.Presenter
	scheduler    domain.Scheduler
	images       domain.ImageProcessor
	options      engine.Options
	tickInterval time.Duration
}

// Session drives one visible key: one client subscription, one display engine
// and, for text variants, one tick job.
type Session struct {
	keyID   string
	variant domain.Variant
	logger  *zap.Logger
	deps    deps
	client  domain.MediaClient
	jobTag  string

	ctx    context.Context
	cancel context.CancelFunc

	// mu guards everything below; renders happen under it and only while live
	mu        sync.Mutex
	live      bool
	engine    *engine.Engine
	tracker   engine.ThumbnailTracker
	lastTitle string
	titled    bool
}

func newSession(parent context.Context, logger *zap.Logger, d deps, keyID string, variant domain.Variant) *Session {
	ctx, cancel := context.WithCancel(parent)
	return &Session{
		keyID:   keyID,
		variant: variant,
		logger:  logger.With(zap.String("key", keyID), zap.String("variant", string(variant))),
		deps:    d,
		client:  d.clients(keyID),
		jobTag:  "tick-" + uuid.NewString(),
		ctx:     ctx,
		cancel:  cancel,
		live:    true,
		engine:  engine.New(variant, d.options),
	}
}

// Variant returns the key's variant
func (s *Session) Variant() domain.Variant { return s.variant }

// State returns the display engine phase
func (s *Session) State() engine.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.State()
}

func (s *Session) isLive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live
}

// start runs the appear sequence: Loading, backend check, subscribe, initial
// fetch, then the tick job
func (s *Session) start() {
	s.mu.Lock()
	if !s.live {
		s.mu.Unlock()
		return
	}
	s.engine.Begin()
	s.renderTitle(s.engine.Frame())
	s.mu.Unlock()

	if err := s.deps.supervisor.EnsureRunning(s.ctx); err != nil {
		// The backend may still come up; fetches report their own errors
		s.logger.Warn("Backend not confirmed running", zap.Error(err))
	}

	if !s.isLive() {
		return
	}

	if !s.variant.IsText() {
		s.client.ConnectThumbnail(s.ctx, s.onThumbnail)
		s.onThumbnail(s.client.FetchThumbnail(s.ctx))
		return
	}

	s.client.Connect(s.ctx, s.onSnapshot)
	s.onSnapshot(s.client.FetchSnapshot(s.ctx))

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.live {
		return
	}
	if err := s.deps.scheduler.Every(s.jobTag, s.deps.tickInterval, s.tick); err != nil {
		s.logger.Error("Failed to schedule marquee", zap.Error(err))
	}
}

// teardown stops every activity of the session. Nothing renders once it returns.
func (s *Session) teardown() {
	s.mu.Lock()
	if !s.live {
		s.mu.Unlock()
		return
	}
	s.live = false
	s.mu.Unlock()

	s.deps.scheduler.Cancel(s.jobTag)
	s.cancel()
	// Outside the lock: a handler blocked on mu would never let the subscription exit
	s.client.Disconnect()

	s.logger.Debug("Session torn down")
}

func (s *Session) onSnapshot(snapshot domain.MediaSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.live {
		return
	}

	if snapshot.IsError() {
		s.logger.Warn("Snapshot error", zap.String("error", snapshot.Error))
	}
	s.engine.OnSnapshot(snapshot)
	s.renderTitle(s.engine.Frame())
}

func (s *Session) tick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.live {
		return
	}
	s.setTitle(s.engine.Tick())
}

func (s *Session) onThumbnail(thumb domain.Thumbnail, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.live {
		return
	}

	if err != nil {
		// The previous image stays on the key
		s.logger.Warn("Thumbnail fetch failed", zap.Error(err))
		s.renderTitle(domain.TextNoMedia)
		return
	}

	if s.tracker.Observe(thumb) {
		shown := thumb
		data, mimeType, perr := s.deps.images.Process(s.ctx, thumb.Data)
		if perr != nil {
			s.logger.Warn("Thumbnail processing failed, using original", zap.Error(perr))
		} else {
			shown = domain.Thumbnail{Data: data, MimeType: mimeType}
		}

		if err := s.deps.presenter.SetImage(s.ctx, s.keyID, shown.DataURI()); err != nil {
			s.logger.Error("Failed to set image", zap.Error(err))
			s.tracker.Reset()
			s.renderTitle(domain.TextError)
			return
		}
	}
	s.renderTitle("")
}

// renderTitle pushes text to the key, skipping repeats. Must hold mu.
func (s *Session) renderTitle(text string) {
	if s.titled && s.lastTitle == text {
		return
	}
	s.setTitle(text)
}

// setTitle pushes text unconditionally; ticks refresh the key even when the
// window did not move. Must hold mu.
func (s *Session) setTitle(text string) {
	if err := s.deps.presenter.SetTitle(s.ctx, s.keyID, text); err != nil {
		s.logger.Error("Failed to set title", zap.Error(err))
		s.titled = false
		if text != domain.TextError {
			if err := s.deps.presenter.SetTitle(s.ctx, s.keyID, domain.TextError); err == nil {
				s.lastTitle, s.titled = domain.TextError, true
			}
		}
		return
	}
	s.lastTitle, s.titled = text, true
}
