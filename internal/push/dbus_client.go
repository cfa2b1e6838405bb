package push

import (
	"github.com/godbus/dbus/v5"
)

// DBusClient defines the D-Bus operations the MPRIS watcher needs.
// This abstraction allows us to mock D-Bus interactions in tests.
//
//go:generate mockgen -destination=mocks/dbus_client_mock.go -package=mocks github.com/genricoloni/mediakeys/internal/push DBusClient
type DBusClient interface {
	// Close closes the D-Bus connection
	Close() error

	// AddMatchSignal adds a signal match rule
	AddMatchSignal(options ...dbus.MatchOption) error

	// Signal registers a channel to receive D-Bus signals
	Signal(ch chan<- *dbus.Signal)
}

// DBusDialer opens a D-Bus connection
type DBusDialer func() (DBusClient, error)

// DialSessionBus opens a private connection to the session bus, so closing it
// does not affect other users of the shared connection
func DialSessionBus() (DBusClient, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, err
	}
	return conn, nil
}
