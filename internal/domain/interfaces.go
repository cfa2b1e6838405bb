package domain

import (
	"context"
	"time"
)

// Supervisor keeps exactly one backend process reachable.
// Implementations must be safe for concurrent use.
type Supervisor interface {
	// EnsureRunning returns once the backend is healthy, spawning it if needed.
	// An error means the backend could not be confirmed; callers continue anyway.
	EnsureRunning(ctx context.Context) error

	// Stop terminates a spawned backend. Idempotent.
	Stop() error
}

// Subscriber delivers "refetch now" signals from a push channel
type Subscriber interface {
	// Subscribe blocks until ctx is cancelled or the channel fails permanently,
	// calling notify once per received update
	Subscribe(ctx context.Context, notify func()) error
}

// SubscriberFactory creates one Subscriber per key session
type SubscriberFactory func() Subscriber

// MediaClient is the per-key network client for the backend
type MediaClient interface {
	// Connect subscribes to the push channel and delivers a fresh snapshot per notification
	Connect(ctx context.Context, handler func(MediaSnapshot))

	// ConnectThumbnail subscribes and delivers a fresh thumbnail per notification
	ConnectThumbnail(ctx context.Context, handler func(Thumbnail, error))

	// FetchSnapshot polls the snapshot endpoint. Failures become error snapshots.
	FetchSnapshot(ctx context.Context) MediaSnapshot

	// FetchThumbnail polls the image endpoint
	FetchThumbnail(ctx context.Context) (Thumbnail, error)

	// Disconnect closes the subscription. Safe to call at any time.
	Disconnect()
}

// ClientFactory creates one MediaClient per key session
type ClientFactory func(keyID string) MediaClient

// Presenter pushes rendered content to a physical key
type Presenter interface {
	// SetTitle replaces the key's text
	SetTitle(ctx context.Context, keyID, text string) error

	// SetImage replaces the key's image with a data URI
	SetImage(ctx context.Context, keyID, dataURI string) error
}

// Scheduler runs recurring jobs identified by tag
type Scheduler interface {
	// Every runs fn each interval until Cancel(tag) is called
	Every(tag string, interval time.Duration, fn func()) error

	// Cancel removes the job with the given tag. Unknown tags are ignored.
	Cancel(tag string)
}

// ImageProcessor prepares album art for a key
type ImageProcessor interface {
	// Process transforms image data, returning the new payload and its mime type
	Process(ctx context.Context, imageData []byte) ([]byte, string, error)
}

// KeyHost receives key lifecycle events from the host
type KeyHost interface {
	// Appear starts a session for the key
	Appear(keyID string, variant Variant) error

	// Disappear tears down the key's session
	Disappear(keyID string) bool
}

// Config defines the interface for application configuration
type Config interface {
	GetBackendURL() string
	GetBackendPath() string
	GetHealthTimeout() time.Duration
	GetStartupTimeout() time.Duration
	GetFetchTimeout() time.Duration
	GetPushTransport() string
	GetTickInterval() time.Duration
	GetVisibleChars() int
	GetScrollSpeed() int
	GetThumbnailSize() int
	GetPreviewAddr() string
	GetAutoKeys() []Variant
	GetLogLevel() string
}
