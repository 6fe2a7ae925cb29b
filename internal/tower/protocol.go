package tower

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/Iron-Ham/wheatley/internal/errors"
)

// Engine.IO packet types, the first byte of every websocket frame.
const (
	engineOpen    = '0'
	engineClose   = '1'
	enginePing    = '2'
	enginePong    = '3'
	engineMessage = '4'
)

// Socket.IO packet types, the second byte of an Engine.IO message.
const (
	socketConnect      = '0'
	socketDisconnect   = '1'
	socketEvent        = '2'
	socketConnectError = '4'
)

// Events the client emits.
const (
	emitJoin               = "c_join"
	emitRequestGlobalState = "c_request_global_state"
	emitBellRung           = "c_bell_rung"
)

// Events the server sends.
const (
	onBellRung    = "s_bell_rung"
	onGlobalState = "s_global_state"
	onSizeChange  = "s_size_change"
	onAssignUser  = "s_assign_user"
	onCall        = "s_call"
	onUserLeft    = "s_user_left"
)

// packet is one decoded websocket frame.
type packet struct {
	engine byte
	socket byte
	event  string
	data   json.RawMessage
}

// openPayload is sent by the server in the Engine.IO open packet.
type openPayload struct {
	SID          string `json:"sid"`
	PingInterval int    `json:"pingInterval"`
	PingTimeout  int    `json:"pingTimeout"`
}

// Payloads of the events the server sends.
type (
	bellRungPayload struct {
		GlobalBellState []bool `json:"global_bell_state"`
		WhoRang         int    `json:"who_rang"`
	}

	globalStatePayload struct {
		GlobalBellState []bool `json:"global_bell_state"`
	}

	sizeChangePayload struct {
		Size int `json:"size"`
	}

	assignUserPayload struct {
		Bell int    `json:"bell"`
		User string `json:"user"`
	}

	callPayload struct {
		Call string `json:"call"`
	}

	userLeftPayload struct {
		UserName string `json:"user_name"`
	}
)

// Payloads of the events the client emits.
type (
	joinPayload struct {
		TowerID       int  `json:"tower_id"`
		AnonymousUser bool `json:"anonymous_user"`
	}

	towerPayload struct {
		TowerID int `json:"tower_id"`
	}

	ringPayload struct {
		Bell    int  `json:"bell"`
		Stroke  bool `json:"stroke"`
		TowerID int  `json:"tower_id"`
	}
)

// socketURL turns the server address named by the tower page into the
// websocket endpoint of its Socket.IO server.
func socketURL(server string) (string, error) {
	u, err := url.Parse(server)
	if err != nil {
		return "", errors.Wrapf(err, "parsing server address %q", server)
	}
	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	case "http", "ws":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("unsupported scheme %q in %q: %w", u.Scheme, server, errors.ErrInvalidInput)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/socket.io/"
	u.RawQuery = url.Values{"EIO": {"4"}, "transport": {"websocket"}}.Encode()
	return u.String(), nil
}

// encodeEvent frames a Socket.IO event as "42[name,data]".
func encodeEvent(name string, data any) ([]byte, error) {
	body, err := json.Marshal([]any{name, data})
	if err != nil {
		return nil, errors.Wrapf(err, "encoding %s", name)
	}
	return append([]byte{engineMessage, socketEvent}, body...), nil
}

// decodePacket splits a websocket frame into its Engine.IO and Socket.IO
// parts. Event packets have their name and first argument unpacked.
func decodePacket(frame []byte) (packet, error) {
	if len(frame) == 0 {
		return packet{}, errors.Wrap(errors.ErrProtocol, "empty frame")
	}

	p := packet{engine: frame[0]}
	switch p.engine {
	case engineOpen:
		p.data = json.RawMessage(frame[1:])
		return p, nil
	case engineClose, enginePing, enginePong:
		return p, nil
	case engineMessage:
	default:
		return packet{}, fmt.Errorf("engine packet type %q: %w", p.engine, errors.ErrProtocol)
	}

	if len(frame) < 2 {
		return packet{}, errors.Wrap(errors.ErrProtocol, "message without socket packet type")
	}
	p.socket = frame[1]
	body := frame[2:]

	// A namespace prefix ends with a comma; only the default one is used.
	if len(body) > 0 && body[0] == '/' {
		if i := strings.IndexByte(string(body), ','); i >= 0 {
			body = body[i+1:]
		}
	}

	if p.socket != socketEvent {
		p.data = json.RawMessage(body)
		return p, nil
	}

	var args []json.RawMessage
	if err := json.Unmarshal(body, &args); err != nil {
		return packet{}, fmt.Errorf("decoding event: %v: %w", err, errors.ErrProtocol)
	}
	if len(args) == 0 {
		return packet{}, errors.Wrap(errors.ErrProtocol, "event without a name")
	}
	if err := json.Unmarshal(args[0], &p.event); err != nil {
		return packet{}, fmt.Errorf("decoding event name: %v: %w", err, errors.ErrProtocol)
	}
	if len(args) > 1 {
		p.data = args[1]
	}
	return p, nil
}
