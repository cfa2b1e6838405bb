package push

import (
	"context"
	"sync/atomic"

	"github.com/r3labs/sse/v2"
	"go.uber.org/zap"
)

const ssePath = "/events"

// SSE subscribes to a Server-Sent Events stream named after the update event
type SSE struct {
	logger *zap.Logger
	url    string
}

// NewSSE creates a subscriber for the backend at baseURL
func NewSSE(logger *zap.Logger, baseURL string) *SSE {
	return &SSE{logger: logger, url: baseURL + ssePath}
}

// Subscribe listens on the media_update stream until ctx is done
func (s *SSE) Subscribe(ctx context.Context, notify func()) error {
	return runWithReconnect(ctx, s.logger, "sse", func(ctx context.Context) (bool, error) {
		var received atomic.Bool
		client := sse.NewClient(s.url)

		err := client.SubscribeWithContext(ctx, EventMediaUpdate, func(msg *sse.Event) {
			received.Store(true)
			if isMediaUpdate(msg) {
				notify()
			}
		})
		return received.Load(), err
	})
}

// isMediaUpdate accepts unnamed events on the stream and explicitly named media_update events
func isMediaUpdate(msg *sse.Event) bool {
	if msg == nil {
		return false
	}
	name := string(msg.Event)
	return name == "" || name == "message" || name == EventMediaUpdate
}
