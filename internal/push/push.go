package push

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/genricoloni/mediakeys/internal/domain"
	"go.uber.org/zap"
)

// EventMediaUpdate is the only event the backend pushes
const EventMediaUpdate = "media_update"

// ErrPermanent wraps failures a reconnect cannot fix
var ErrPermanent = errors.New("permanent subscription failure")

// NewFactory returns a SubscriberFactory for the configured transport
func NewFactory(logger *zap.Logger, cfg domain.Config) (domain.SubscriberFactory, error) {
	url := cfg.GetBackendURL()

	switch cfg.GetPushTransport() {
	case "socketio":
		return func() domain.Subscriber { return NewSocketIO(logger, url) }, nil
	case "sse":
		return func() domain.Subscriber { return NewSSE(logger, url) }, nil
	case "mpris":
		return func() domain.Subscriber { return NewMpris(logger, DialSessionBus) }, nil
	case "none":
		return func() domain.Subscriber { return None{} }, nil
	default:
		return nil, fmt.Errorf("unsupported push transport %q", cfg.GetPushTransport())
	}
}

// None never delivers notifications
type None struct{}

// Subscribe blocks until ctx is done
func (None) Subscribe(ctx context.Context, notify func()) error {
	<-ctx.Done()
	return nil
}

// reconnectPolicy never gives up; the session's context ends the loop
func reconnectPolicy() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0
	return b
}

// runWithReconnect calls connect until ctx is done. connect reports whether it
// got far enough to count as a successful connection, which resets the backoff.
func runWithReconnect(ctx context.Context, logger *zap.Logger, name string, connect func(ctx context.Context) (bool, error)) error {
	policy := reconnectPolicy()

	for {
		established, err := connect(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, ErrPermanent) {
			return err
		}
		if established {
			policy.Reset()
		}

		wait := policy.NextBackOff()
		logger.Debug("Push channel disconnected, reconnecting",
			zap.String("transport", name),
			zap.Duration("in", wait),
			zap.Error(err))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}
