package push

import (
	"context"
	"fmt"
	"strings"

	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"
)

const (
	mprisPath        = "/org/mpris/MediaPlayer2"
	mprisPlayerIface = "org.mpris.MediaPlayer2.Player"
	mprisNamePrefix  = "org.mpris.MediaPlayer2."

	signalPropertiesChanged = "org.freedesktop.DBus.Properties.PropertiesChanged"
	signalNameOwnerChanged  = "org.freedesktop.DBus.NameOwnerChanged"
)

// Mpris turns local MPRIS player activity into update notifications.
// The backend still owns the snapshot; a signal only means "fetch again".
type Mpris struct {
	logger *zap.Logger
	dial   DBusDialer
}

// NewMpris creates a subscriber that connects with dial
func NewMpris(logger *zap.Logger, dial DBusDialer) *Mpris {
	return &Mpris{logger: logger, dial: dial}
}

// Subscribe watches the session bus until ctx is done
func (m *Mpris) Subscribe(ctx context.Context, notify func()) error {
	conn, err := m.dial()
	if err != nil {
		return fmt.Errorf("%w: session bus connection failed: %v", ErrPermanent, err)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			m.logger.Warn("Failed to close D-Bus connection", zap.Error(err))
		}
	}()

	if err := conn.AddMatchSignal(
		dbus.WithMatchObjectPath(mprisPath),
		dbus.WithMatchInterface("org.freedesktop.DBus.Properties"),
		dbus.WithMatchMember("PropertiesChanged"),
	); err != nil {
		return fmt.Errorf("%w: failed to add match signal: %v", ErrPermanent, err)
	}

	if err := conn.AddMatchSignal(
		dbus.WithMatchInterface("org.freedesktop.DBus"),
		dbus.WithMatchMember("NameOwnerChanged"),
	); err != nil {
		// Non-fatal, player start/exit just won't trigger a refresh
		m.logger.Warn("Failed to add NameOwnerChanged match signal", zap.Error(err))
	}

	signals := make(chan *dbus.Signal, 10)
	conn.Signal(signals)

	m.logger.Debug("MPRIS subscription started")

	for {
		select {
		case <-ctx.Done():
			return nil
		case sig, ok := <-signals:
			if !ok {
				return fmt.Errorf("%w: D-Bus signal channel closed", ErrPermanent)
			}
			if m.relevant(sig) {
				notify()
			}
		}
	}
}

// relevant reports whether sig can change what the backend reports
func (m *Mpris) relevant(sig *dbus.Signal) bool {
	if sig == nil {
		return false
	}

	switch sig.Name {
	case signalPropertiesChanged:
		// Body: interface name, changed properties, invalidated properties
		if len(sig.Body) < 2 {
			return false
		}
		iface, ok := sig.Body[0].(string)
		if !ok || iface != mprisPlayerIface {
			return false
		}
		changed, ok := sig.Body[1].(map[string]dbus.Variant)
		if !ok {
			return false
		}
		_, hasMetadata := changed["Metadata"]
		_, hasStatus := changed["PlaybackStatus"]
		if hasMetadata || hasStatus {
			m.logger.Debug("MPRIS player changed", zap.String("sender", sig.Sender))
			return true
		}
		return false

	case signalNameOwnerChanged:
		// Body: name, old owner, new owner
		if len(sig.Body) < 3 {
			return false
		}
		name, ok := sig.Body[0].(string)
		if !ok || !strings.HasPrefix(name, mprisNamePrefix) {
			return false
		}
		oldOwner, _ := sig.Body[1].(string)
		newOwner, _ := sig.Body[2].(string)
		if (oldOwner == "") != (newOwner == "") {
			m.logger.Debug("MPRIS player appeared or exited", zap.String("player", name))
			return true
		}
		return false
	}

	return false
}
