package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/genricoloni/mediakeys/internal/domain"
	"github.com/golobby/config/v3"
	"github.com/golobby/config/v3/pkg/feeder"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const (
	defaultBackendURL       = "http://localhost:27972"
	defaultBackendPath      = "StreamDeckMediaInfo.exe"
	defaultHealthTimeoutMs  = 2000
	defaultStartupTimeoutMs = 5000
	defaultFetchTimeoutMs   = 10000
	defaultPushTransport    = "socketio"
	defaultTickIntervalMs   = 1000
	defaultVisibleChars     = 8
	defaultScrollSpeed      = 2
	defaultThumbnailSize    = 144
	defaultPreviewAddr      = "localhost:27980"
	defaultLogLevel         = "info"
)

// PushTransports lists the accepted MEDIAKEYS_PUSH_TRANSPORT values
var PushTransports = []string{"socketio", "sse", "mpris", "none"}

// Settings is the raw environment-backed configuration
type Settings struct {
	Backend  BackendSettings
	Display  DisplaySettings
	Preview  PreviewSettings
	LogLevel string `env:"MEDIAKEYS_LOG_LEVEL"`
}

// BackendSettings locate the media backend and bound its network calls
type BackendSettings struct {
	URL              string `env:"MEDIAKEYS_BACKEND_URL"`
	Path             string `env:"MEDIAKEYS_BACKEND_PATH"`
	HealthTimeoutMs  int    `env:"MEDIAKEYS_HEALTH_TIMEOUT_MS"`
	StartupTimeoutMs int    `env:"MEDIAKEYS_STARTUP_TIMEOUT_MS"`
	FetchTimeoutMs   int    `env:"MEDIAKEYS_FETCH_TIMEOUT_MS"`
	PushTransport    string `env:"MEDIAKEYS_PUSH_TRANSPORT"`
}

// DisplaySettings tune the marquee and thumbnail size
type DisplaySettings struct {
	TickIntervalMs int `env:"MEDIAKEYS_TICK_INTERVAL_MS"`
	VisibleChars   int `env:"MEDIAKEYS_VISIBLE_CHARS"`
	ScrollSpeed    int `env:"MEDIAKEYS_SCROLL_SPEED"`
	ThumbnailSize  int `env:"MEDIAKEYS_THUMBNAIL_SIZE"`
}

// PreviewSettings configure the local preview host
type PreviewSettings struct {
	Addr     string `env:"MEDIAKEYS_PREVIEW_ADDR"`
	AutoKeys string `env:"MEDIAKEYS_AUTO_KEYS"`
}

// AppConfig holds application configuration
type AppConfig struct {
	settings Settings
	autoKeys []domain.Variant
}

// Load reads an optional .env file, then the process environment, and applies defaults
func Load() (*AppConfig, error) {
	// A missing .env is the normal case
	_ = godotenv.Load()

	var s Settings
	c := config.New()
	c.AddFeeder(feeder.Env{})
	c.AddStruct(&s)
	if err := c.Feed(); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	return FromSettings(s)
}

// FromSettings validates raw settings and fills in defaults for unset values
func FromSettings(s Settings) (*AppConfig, error) {
	orString(&s.Backend.URL, defaultBackendURL)
	orString(&s.Backend.Path, defaultBackendPath)
	orInt(&s.Backend.HealthTimeoutMs, defaultHealthTimeoutMs)
	orInt(&s.Backend.StartupTimeoutMs, defaultStartupTimeoutMs)
	orInt(&s.Backend.FetchTimeoutMs, defaultFetchTimeoutMs)
	orString(&s.Backend.PushTransport, defaultPushTransport)
	orInt(&s.Display.TickIntervalMs, defaultTickIntervalMs)
	orInt(&s.Display.VisibleChars, defaultVisibleChars)
	orInt(&s.Display.ScrollSpeed, defaultScrollSpeed)
	orInt(&s.Display.ThumbnailSize, defaultThumbnailSize)
	orString(&s.Preview.Addr, defaultPreviewAddr)
	orString(&s.LogLevel, defaultLogLevel)

	s.Backend.URL = strings.TrimRight(s.Backend.URL, "/")
	s.Backend.PushTransport = strings.ToLower(s.Backend.PushTransport)

	if !validTransport(s.Backend.PushTransport) {
		return nil, fmt.Errorf("unsupported push transport %q (want one of %s)",
			s.Backend.PushTransport, strings.Join(PushTransports, ", "))
	}

	var keys []domain.Variant
	for _, name := range strings.Split(s.Preview.AutoKeys, ",") {
		if strings.TrimSpace(name) == "" {
			continue
		}
		v, err := domain.ParseVariant(name)
		if err != nil {
			return nil, fmt.Errorf("invalid MEDIAKEYS_AUTO_KEYS: %w", err)
		}
		keys = append(keys, v)
	}

	return &AppConfig{settings: s, autoKeys: keys}, nil
}

// Log writes the effective configuration
func (c *AppConfig) Log(logger *zap.Logger) {
	logger.Info("Configuration loaded",
		zap.String("backendURL", c.settings.Backend.URL),
		zap.String("backendPath", c.settings.Backend.Path),
		zap.String("pushTransport", c.settings.Backend.PushTransport),
		zap.Duration("tickInterval", c.GetTickInterval()),
		zap.Int("visibleChars", c.settings.Display.VisibleChars),
		zap.Int("scrollSpeed", c.settings.Display.ScrollSpeed),
		zap.String("previewAddr", c.settings.Preview.Addr),
		zap.Int("autoKeys", len(c.autoKeys)))
}

func validTransport(name string) bool {
	for _, t := range PushTransports {
		if t == name {
			return true
		}
	}
	return false
}

func orString(v *string, def string) {
	if strings.TrimSpace(*v) == "" {
		*v = def
	}
}

func orInt(v *int, def int) {
	if *v <= 0 {
		*v = def
	}
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// GetBackendURL returns the backend base URL without a trailing slash
func (c *AppConfig) GetBackendURL() string { return c.settings.Backend.URL }

// GetBackendPath returns the backend executable to spawn
func (c *AppConfig) GetBackendPath() string { return c.settings.Backend.Path }

// GetHealthTimeout bounds a single health check
func (c *AppConfig) GetHealthTimeout() time.Duration {
	return millis(c.settings.Backend.HealthTimeoutMs)
}

// GetStartupTimeout bounds the wait for a freshly spawned backend
func (c *AppConfig) GetStartupTimeout() time.Duration {
	return millis(c.settings.Backend.StartupTimeoutMs)
}

// GetFetchTimeout bounds snapshot and thumbnail requests
func (c *AppConfig) GetFetchTimeout() time.Duration {
	return millis(c.settings.Backend.FetchTimeoutMs)
}

// GetPushTransport returns the push channel implementation name
func (c *AppConfig) GetPushTransport() string { return c.settings.Backend.PushTransport }

// GetTickInterval returns the marquee tick period
func (c *AppConfig) GetTickInterval() time.Duration {
	return millis(c.settings.Display.TickIntervalMs)
}

// GetVisibleChars returns the marquee window width
func (c *AppConfig) GetVisibleChars() int { return c.settings.Display.VisibleChars }

// GetScrollSpeed returns the marquee step per tick
func (c *AppConfig) GetScrollSpeed() int { return c.settings.Display.ScrollSpeed }

// GetThumbnailSize returns the square edge, in pixels, thumbnails are fitted to
func (c *AppConfig) GetThumbnailSize() int { return c.settings.Display.ThumbnailSize }

// GetPreviewAddr returns the listen address of the preview host
func (c *AppConfig) GetPreviewAddr() string { return c.settings.Preview.Addr }

// GetAutoKeys returns the variants to show at startup
func (c *AppConfig) GetAutoKeys() []domain.Variant { return c.autoKeys }

// GetLogLevel returns the configured zap level name
func (c *AppConfig) GetLogLevel() string { return c.settings.LogLevel }
