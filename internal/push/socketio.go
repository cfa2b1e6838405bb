package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

// Engine.IO v4 packet types
const (
	eioOpen    = '0'
	eioClose   = '1'
	eioPing    = '2'
	eioPong    = '3'
	eioMessage = '4'
)

// Socket.IO packet types carried inside an Engine.IO message
const (
	sioConnect      = '0'
	sioDisconnect   = '1'
	sioEvent        = '2'
	sioConnectError = '4'
)

const (
	defaultPingInterval = 25 * time.Second
	defaultPingTimeout  = 20 * time.Second
)

type openPacket struct {
	SID          string `json:"sid"`
	PingInterval int    `json:"pingInterval"`
	PingTimeout  int    `json:"pingTimeout"`
}

// SocketIO subscribes to a Socket.IO server over a plain WebSocket transport
type SocketIO struct {
	logger *zap.Logger
	url    string
}

// NewSocketIO creates a subscriber for the backend at baseURL (http or https)
func NewSocketIO(logger *zap.Logger, baseURL string) *SocketIO {
	return &SocketIO{logger: logger, url: socketURL(baseURL)}
}

// socketURL maps http://host:port to ws://host:port/socket.io/?EIO=4&transport=websocket
func socketURL(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil {
		return baseURL
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/socket.io/"
	u.RawQuery = url.Values{"EIO": {"4"}, "transport": {"websocket"}}.Encode()
	return u.String()
}

// Subscribe keeps a connection open until ctx is done, reconnecting with backoff
func (s *SocketIO) Subscribe(ctx context.Context, notify func()) error {
	return runWithReconnect(ctx, s.logger, "socketio", func(ctx context.Context) (bool, error) {
		return s.session(ctx, notify)
	})
}

// session runs one connection; it reports true once the namespace was joined
func (s *SocketIO) session(ctx context.Context, notify func()) (bool, error) {
	conn, _, err := websocket.Dial(ctx, s.url, nil)
	if err != nil {
		return false, fmt.Errorf("dial %s: %w", s.url, err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	open, err := s.handshake(ctx, conn)
	if err != nil {
		return false, err
	}

	readTimeout := defaultPingInterval + defaultPingTimeout
	if open.PingInterval > 0 && open.PingTimeout > 0 {
		readTimeout = time.Duration(open.PingInterval+open.PingTimeout) * time.Millisecond
	}

	s.logger.Debug("Socket.IO connected", zap.String("sid", open.SID))
	joined := false

	for {
		readCtx, cancel := context.WithTimeout(ctx, readTimeout)
		_, data, err := conn.Read(readCtx)
		cancel()
		if err != nil {
			return joined, fmt.Errorf("read: %w", err)
		}
		if len(data) == 0 {
			continue
		}

		switch data[0] {
		case eioPing:
			if err := conn.Write(ctx, websocket.MessageText, []byte{eioPong}); err != nil {
				return joined, fmt.Errorf("pong: %w", err)
			}
		case eioClose:
			return joined, errors.New("server closed the session")
		case eioMessage:
			if len(data) < 2 {
				continue
			}
			switch data[1] {
			case sioConnect:
				joined = true
			case sioDisconnect:
				return joined, errors.New("server disconnected the namespace")
			case sioConnectError:
				return joined, fmt.Errorf("namespace connect refused: %s", data[2:])
			case sioEvent:
				name, err := eventName(data[2:])
				if err != nil {
					s.logger.Debug("Ignoring malformed Socket.IO event", zap.Error(err))
					continue
				}
				if name == EventMediaUpdate {
					notify()
				}
			}
		}
	}
}

// handshake reads the Engine.IO open packet and joins the default namespace
func (s *SocketIO) handshake(ctx context.Context, conn *websocket.Conn) (openPacket, error) {
	var open openPacket

	_, data, err := conn.Read(ctx)
	if err != nil {
		return open, fmt.Errorf("read open packet: %w", err)
	}
	if len(data) == 0 || data[0] != eioOpen {
		return open, fmt.Errorf("unexpected first packet %q", data)
	}
	if err := json.Unmarshal(data[1:], &open); err != nil {
		return open, fmt.Errorf("decode open packet: %w", err)
	}

	if err := conn.Write(ctx, websocket.MessageText, []byte{eioMessage, sioConnect}); err != nil {
		return open, fmt.Errorf("join namespace: %w", err)
	}
	return open, nil
}

// eventName extracts the event name from `[/nsp,][ackId]["name", ...args]`
func eventName(payload []byte) (string, error) {
	p := string(payload)
	if strings.HasPrefix(p, "/") {
		comma := strings.IndexByte(p, ',')
		if comma < 0 {
			return "", errors.New("namespace without payload")
		}
		p = p[comma+1:]
	}
	p = strings.TrimLeft(p, "0123456789")

	var args []json.RawMessage
	if err := json.Unmarshal([]byte(p), &args); err != nil {
		return "", fmt.Errorf("decode event: %w", err)
	}
	if len(args) == 0 {
		return "", errors.New("event without name")
	}

	var name string
	if err := json.Unmarshal(args[0], &name); err != nil {
		return "", fmt.Errorf("decode event name: %w", err)
	}
	return name, nil
}
