package ws

import (
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pjtunstall/by-a-thread/internal/transport"
)

// ClientHandle implements transport.Handle over a single websocket
// connection, dialed once by Connect and then driven entirely through
// Poll/Send/Receive at the core loop's poll points.
type ClientHandle struct {
	conn *Conn

	stateMu   sync.Mutex
	connected bool

	eventsMu sync.Mutex
	events   []transport.Event

	receivedMu sync.Mutex
	received   map[transport.Channel][][]byte
}

// NewClientHandle constructs an unconnected handle.
func NewClientHandle() *ClientHandle {
	return &ClientHandle{
		received: make(map[transport.Channel][][]byte),
	}
}

// Connect dials endpoint, presenting token as a query parameter that the
// server's OnAccept hook can inspect once the websocket upgrade completes.
func (h *ClientHandle) Connect(endpoint, token string) error {
	u := url.URL{Scheme: "ws", Host: endpoint, Path: "/ws", RawQuery: url.Values{"token": {token}}.Encode()}

	conn, resp, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return fmt.Errorf("transport: dial %s: %w", endpoint, err)
	}
	if resp != nil {
		resp.Body.Close()
	}

	h.stateMu.Lock()
	h.connected = true
	h.stateMu.Unlock()

	h.pushEvent(transport.Event{Kind: transport.EventConnected})

	h.conn = NewConn(conn, func(reason string) {
		h.stateMu.Lock()
		h.connected = false
		h.stateMu.Unlock()
		h.pushEvent(transport.Event{Kind: transport.EventDisconnected, Reason: reason})
	})
	return nil
}

func (h *ClientHandle) pushEvent(e transport.Event) {
	h.eventsMu.Lock()
	defer h.eventsMu.Unlock()
	h.events = append(h.events, e)
}

// Poll drains connection-state events accumulated since the last call,
// and also moves any frames the read pump queued into the per-channel
// Receive buffers.
func (h *ClientHandle) Poll(now time.Time) []transport.Event {
	if h.conn != nil {
		for _, f := range h.conn.Drain() {
			h.receivedMu.Lock()
			h.received[f.Channel] = append(h.received[f.Channel], f.Payload)
			h.receivedMu.Unlock()
		}
	}

	h.eventsMu.Lock()
	defer h.eventsMu.Unlock()
	if len(h.events) == 0 {
		return nil
	}
	out := h.events
	h.events = nil
	return out
}

// Send encodes and enqueues payload for delivery on channel.
func (h *ClientHandle) Send(channel transport.Channel, payload []byte) error {
	if h.conn == nil {
		return fmt.Errorf("transport: not connected")
	}
	if !h.conn.Send(channel, transport.FormatJSON, payload) {
		return fmt.Errorf("transport: outbound queue full, dropped frame on %s", channel)
	}
	return nil
}

// SendBinary is Send's counterpart for the binary-framed Snapshot
// message; JSON messages never need it.
func (h *ClientHandle) SendBinary(channel transport.Channel, payload []byte) error {
	if h.conn == nil {
		return fmt.Errorf("transport: not connected")
	}
	if !h.conn.Send(channel, transport.FormatBinary, payload) {
		return fmt.Errorf("transport: outbound queue full, dropped frame on %s", channel)
	}
	return nil
}

// Receive pops the oldest queued payload for channel, if any.
func (h *ClientHandle) Receive(channel transport.Channel) ([]byte, bool) {
	h.receivedMu.Lock()
	defer h.receivedMu.Unlock()
	queue := h.received[channel]
	if len(queue) == 0 {
		return nil, false
	}
	payload := queue[0]
	h.received[channel] = queue[1:]
	return payload, true
}

// RTT reports the most recent ping/pong round trip observed on the
// underlying connection.
func (h *ClientHandle) RTT() float64 {
	if h.conn == nil {
		return 0
	}
	return h.conn.RTT()
}

// Disconnect closes the underlying connection with reason.
func (h *ClientHandle) Disconnect(reason string) error {
	if h.conn == nil {
		return nil
	}
	return h.conn.Close(reason)
}

// IsConnected reports whether the handle currently has a live connection.
func (h *ClientHandle) IsConnected() bool {
	h.stateMu.Lock()
	defer h.stateMu.Unlock()
	return h.connected
}

var _ transport.Handle = (*ClientHandle)(nil)
var _ http.Handler = (*Handler)(nil)
