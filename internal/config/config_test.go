package config

import (
	"testing"
	"time"

	"github.com/genricoloni/mediakeys/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFromSettings_Defaults(t *testing.T) {
	cfg, err := FromSettings(Settings{})
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:27972", cfg.GetBackendURL())
	assert.Equal(t, "StreamDeckMediaInfo.exe", cfg.GetBackendPath())
	assert.Equal(t, 2*time.Second, cfg.GetHealthTimeout())
	assert.Equal(t, 5*time.Second, cfg.GetStartupTimeout())
	assert.Equal(t, 10*time.Second, cfg.GetFetchTimeout())
	assert.Equal(t, "socketio", cfg.GetPushTransport())
	assert.Equal(t, time.Second, cfg.GetTickInterval())
	assert.Equal(t, 8, cfg.GetVisibleChars())
	assert.Equal(t, 2, cfg.GetScrollSpeed())
	assert.Equal(t, 144, cfg.GetThumbnailSize())
	assert.Equal(t, "localhost:27980", cfg.GetPreviewAddr())
	assert.Empty(t, cfg.GetAutoKeys())
	assert.Equal(t, "info", cfg.GetLogLevel())
}

func TestFromSettings_Validation(t *testing.T) {
	tests := []struct {
		name          string
		settings      Settings
		expectedError string
		check         func(t *testing.T, cfg *AppConfig)
	}{
		{
			name: "Trailing slash trimmed",
			settings: Settings{Backend: BackendSettings{URL: "http://127.0.0.1:9000/"}},
			check: func(t *testing.T, cfg *AppConfig) {
				assert.Equal(t, "http://127.0.0.1:9000", cfg.GetBackendURL())
			},
		},
		{
			name:     "Transport case-insensitive",
			settings: Settings{Backend: BackendSettings{PushTransport: "SSE"}},
			check: func(t *testing.T, cfg *AppConfig) {
				assert.Equal(t, "sse", cfg.GetPushTransport())
			},
		},
		{
			name:          "Unknown transport",
			settings:      Settings{Backend: BackendSettings{PushTransport: "carrier-pigeon"}},
			expectedError: "unsupported push transport",
		},
		{
			name:     "Auto keys parsed",
			settings: Settings{Preview: PreviewSettings{AutoKeys: "song, com.daih.media-info.thumbnail,,artist"}},
			check: func(t *testing.T, cfg *AppConfig) {
				assert.Equal(t, []domain.Variant{domain.VariantSong, domain.VariantThumbnail, domain.VariantArtist}, cfg.GetAutoKeys())
			},
		},
		{
			name:          "Unknown auto key",
			settings:      Settings{Preview: PreviewSettings{AutoKeys: "song,lyrics"}},
			expectedError: "invalid MEDIAKEYS_AUTO_KEYS",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := FromSettings(tt.settings)
			if tt.expectedError != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectedError)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("MEDIAKEYS_BACKEND_URL", "http://backend.local:1234")
	t.Setenv("MEDIAKEYS_VISIBLE_CHARS", "12")
	t.Setenv("MEDIAKEYS_PUSH_TRANSPORT", "none")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://backend.local:1234", cfg.GetBackendURL())
	assert.Equal(t, 12, cfg.GetVisibleChars())
	assert.Equal(t, "none", cfg.GetPushTransport())
	assert.Equal(t, 2, cfg.GetScrollSpeed())

	// Should not panic
	cfg.Log(zap.NewNop())
}
