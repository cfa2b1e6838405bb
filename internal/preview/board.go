package preview

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"

	"github.com/genricoloni/mediakeys/internal/domain"
	"github.com/r3labs/sse/v2"
	"go.uber.org/zap"
)

// StreamFrames is the SSE stream carrying every key frame change
const StreamFrames = "frames"

// Board is an in-memory key surface. It keeps the latest frame of every key
// and broadcasts each change to SSE subscribers.
type Board struct {
	logger *zap.Logger
	events *sse.Server

	mu     sync.RWMutex
	frames map[string]domain.KeyFrame
}

// NewBoard creates an empty board with its frames stream
func NewBoard(logger *zap.Logger) *Board {
	events := sse.New()
	events.AutoReplay = false
	events.CreateStream(StreamFrames)

	return &Board{
		logger: logger,
		events: events,
		frames: make(map[string]domain.KeyFrame),
	}
}

// SetTitle replaces the key's text
func (b *Board) SetTitle(ctx context.Context, keyID, text string) error {
	return b.update(keyID, func(f *domain.KeyFrame) { f.Title = text })
}

// SetImage replaces the key's image
func (b *Board) SetImage(ctx context.Context, keyID, dataURI string) error {
	return b.update(keyID, func(f *domain.KeyFrame) { f.Image = dataURI })
}

func (b *Board) update(keyID string, apply func(*domain.KeyFrame)) error {
	b.mu.Lock()
	frame := b.frames[keyID]
	frame.KeyID = keyID
	apply(&frame)
	b.frames[keyID] = frame
	b.mu.Unlock()

	return b.publish(frame)
}

func (b *Board) publish(frame domain.KeyFrame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	b.events.Publish(StreamFrames, &sse.Event{Data: data})
	return nil
}

// Remove forgets a key's frame
func (b *Board) Remove(keyID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.frames, keyID)
}

// Frame returns the latest frame of a key
func (b *Board) Frame(keyID string) (domain.KeyFrame, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	f, ok := b.frames[keyID]
	return f, ok
}

// Frames returns every frame ordered by key id
func (b *Board) Frames() []domain.KeyFrame {
	b.mu.RLock()
	defer b.mu.RUnlock()

	frames := make([]domain.KeyFrame, 0, len(b.frames))
	for _, f := range b.frames {
		frames = append(frames, f)
	}
	sort.Slice(frames, func(i, j int) bool { return frames[i].KeyID < frames[j].KeyID })
	return frames
}

// ServeHTTP streams frame changes; clients pass ?stream=frames
func (b *Board) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.events.ServeHTTP(w, r)
}

// Close ends every open stream
func (b *Board) Close() {
	b.events.Close()
	b.logger.Debug("Preview board closed")
}
