package push

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/genricoloni/mediakeys/internal/push/mocks"
	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
)

func propertiesChanged(iface string, props map[string]dbus.Variant) *dbus.Signal {
	return &dbus.Signal{
		Sender: ":1.45",
		Path:   mprisPath,
		Name:   signalPropertiesChanged,
		Body:   []interface{}{iface, props, []string{}},
	}
}

func nameOwnerChanged(name, oldOwner, newOwner string) *dbus.Signal {
	return &dbus.Signal{
		Name: signalNameOwnerChanged,
		Body: []interface{}{name, oldOwner, newOwner},
	}
}

func TestMprisRelevant(t *testing.T) {
	m := NewMpris(zap.NewNop(), nil)

	tests := []struct {
		name string
		sig  *dbus.Signal
		want bool
	}{
		{
			name: "Nil signal",
			sig:  nil,
			want: false,
		},
		{
			name: "Metadata changed",
			sig: propertiesChanged(mprisPlayerIface, map[string]dbus.Variant{
				"Metadata": dbus.MakeVariant(map[string]dbus.Variant{}),
			}),
			want: true,
		},
		{
			name: "PlaybackStatus changed",
			sig: propertiesChanged(mprisPlayerIface, map[string]dbus.Variant{
				"PlaybackStatus": dbus.MakeVariant("Paused"),
			}),
			want: true,
		},
		{
			name: "Volume only",
			sig: propertiesChanged(mprisPlayerIface, map[string]dbus.Variant{
				"Volume": dbus.MakeVariant(0.5),
			}),
			want: false,
		},
		{
			name: "Wrong interface",
			sig: propertiesChanged("org.mpris.MediaPlayer2", map[string]dbus.Variant{
				"Metadata": dbus.MakeVariant(map[string]dbus.Variant{}),
			}),
			want: false,
		},
		{
			name: "Malformed body",
			sig:  &dbus.Signal{Name: signalPropertiesChanged, Body: []interface{}{mprisPlayerIface}},
			want: false,
		},
		{
			name: "Player appeared",
			sig:  nameOwnerChanged("org.mpris.MediaPlayer2.spotify", "", ":1.50"),
			want: true,
		},
		{
			name: "Player exited",
			sig:  nameOwnerChanged("org.mpris.MediaPlayer2.vlc", ":1.50", ""),
			want: true,
		},
		{
			name: "Ownership transfer",
			sig:  nameOwnerChanged("org.mpris.MediaPlayer2.vlc", ":1.50", ":1.51"),
			want: false,
		},
		{
			name: "Unrelated name",
			sig:  nameOwnerChanged("org.freedesktop.Notifications", "", ":1.9"),
			want: false,
		},
		{
			name: "Unknown signal",
			sig:  &dbus.Signal{Name: "org.example.Ping"},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.relevant(tt.sig))
		})
	}
}

func TestMprisSubscribe_NotifiesOnPlayerChange(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockDBusClient(ctrl)

	client.EXPECT().AddMatchSignal(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	client.EXPECT().AddMatchSignal(gomock.Any(), gomock.Any()).Return(nil)
	client.EXPECT().Signal(gomock.Any()).Do(func(ch chan<- *dbus.Signal) {
		go func() {
			ch <- propertiesChanged(mprisPlayerIface, map[string]dbus.Variant{
				"Volume": dbus.MakeVariant(1.0),
			})
			ch <- propertiesChanged(mprisPlayerIface, map[string]dbus.Variant{
				"Metadata": dbus.MakeVariant(map[string]dbus.Variant{}),
			})
		}()
	})
	client.EXPECT().Close().Return(nil)

	m := NewMpris(zap.NewNop(), func() (DBusClient, error) { return client, nil })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	notified := 0
	err := m.Subscribe(ctx, func() {
		notified++
		cancel()
	})

	require.NoError(t, err)
	assert.Equal(t, 1, notified)
}

func TestMprisSubscribe_NameOwnerMatchFailureIsNonFatal(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockDBusClient(ctrl)

	client.EXPECT().AddMatchSignal(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	client.EXPECT().AddMatchSignal(gomock.Any(), gomock.Any()).Return(errors.New("access denied"))
	client.EXPECT().Signal(gomock.Any())
	client.EXPECT().Close().Return(nil)

	m := NewMpris(zap.NewNop(), func() (DBusClient, error) { return client, nil })

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	assert.NoError(t, m.Subscribe(ctx, func() {}))
}

func TestMprisSubscribe_PermanentFailures(t *testing.T) {
	tests := []struct {
		name      string
		setupMock func(*mocks.MockDBusClient)
		dialErr   error
	}{
		{
			name:    "Session bus unavailable",
			dialErr: errors.New("no DBUS_SESSION_BUS_ADDRESS"),
		},
		{
			name: "Match rule rejected",
			setupMock: func(m *mocks.MockDBusClient) {
				m.EXPECT().AddMatchSignal(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(errors.New("connection reset"))
				m.EXPECT().Close().Return(nil)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			client := mocks.NewMockDBusClient(ctrl)
			if tt.setupMock != nil {
				tt.setupMock(client)
			}

			m := NewMpris(zap.NewNop(), func() (DBusClient, error) {
				if tt.dialErr != nil {
					return nil, tt.dialErr
				}
				return client, nil
			})

			err := m.Subscribe(context.Background(), func() {})
			assert.ErrorIs(t, err, ErrPermanent)
		})
	}
}
