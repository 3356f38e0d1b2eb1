// Package ws implements the websocket concrete transport: one connection
// per client multiplexes the reliable and unreliable logical channels
// using the envelope from internal/transport, with read and write pumps
// on their own goroutines (gorilla/websocket requires one goroutine per
// direction) that communicate with the core loop only by enqueueing onto
// mutex-guarded queues drained at poll points.
package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pjtunstall/by-a-thread/internal/transport"
)

const (
	pingInterval   = 30 * time.Second
	pongWait       = 60 * time.Second
	writeWait      = 5 * time.Second
	readLimitBytes = 8192
	inboundCapacity  = 256
	outboundCapacity = 256
)

// Frame is one decoded inbound message, handed to the core loop at a poll
// point.
type Frame struct {
	Channel transport.Channel
	Format  transport.Format
	Payload []byte
}

// Conn wraps one underlying websocket connection, running its own read
// and write pumps and exposing a drain-at-poll-point surface to the core.
type Conn struct {
	conn *websocket.Conn

	outbound chan []byte
	done     chan struct{}
	closedMu sync.Mutex
	closed   bool

	inboundMu sync.Mutex
	inbound   []Frame

	rttMu sync.Mutex
	rtt   float64

	pingSentAt time.Time

	onClose func(reason string)
}

// NewConn starts the read and write pumps for conn and returns the
// wrapper. onClose, if non-nil, is invoked exactly once, on the first
// shutdown (a read or write pump failure, or Close), with a human-readable
// reason.
func NewConn(conn *websocket.Conn, onClose func(reason string)) *Conn {
	c := &Conn{
		conn:     conn,
		outbound: make(chan []byte, outboundCapacity),
		done:     make(chan struct{}),
		onClose:  onClose,
	}
	conn.SetReadLimit(readLimitBytes)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		c.rttMu.Lock()
		if !c.pingSentAt.IsZero() {
			c.rtt = time.Since(c.pingSentAt).Seconds()
		}
		c.rttMu.Unlock()
		return nil
	})

	go c.writePump()
	go c.readPump()
	return c
}

func (c *Conn) readPump() {
	reason := "closed"
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			reason = err.Error()
			break
		}
		channel, format, payload, err := transport.DecodeFrame(data)
		if err != nil {
			// Malformed frame: drop it and keep reading, per the
			// decode-error policy (log and skip, don't disconnect).
			continue
		}
		c.pushInbound(Frame{Channel: channel, Format: format, Payload: append([]byte(nil), payload...)})
	}
	c.shutdown(reason)
}

func (c *Conn) pushInbound(f Frame) {
	c.inboundMu.Lock()
	defer c.inboundMu.Unlock()
	if len(c.inbound) >= inboundCapacity {
		// Drop the oldest queued frame rather than grow unbounded; a core
		// loop that is falling behind on draining needs backpressure, not
		// an ever-growing buffer.
		c.inbound = c.inbound[1:]
	}
	c.inbound = append(c.inbound, f)
}

// Drain returns and clears every frame queued since the last Drain call.
func (c *Conn) Drain() []Frame {
	c.inboundMu.Lock()
	defer c.inboundMu.Unlock()
	if len(c.inbound) == 0 {
		return nil
	}
	out := c.inbound
	c.inbound = nil
	return out
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case data, ok := <-c.outbound:
			if !ok {
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
				c.shutdown(err.Error())
				return
			}
		case <-ticker.C:
			c.rttMu.Lock()
			c.pingSentAt = time.Now()
			c.rttMu.Unlock()
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.shutdown(err.Error())
				return
			}
		case <-c.done:
			return
		}
	}
}

// Send encodes and queues one message for delivery. A full outbound queue
// indicates the connection is not draining fast enough; the frame is
// dropped rather than blocking the caller.
func (c *Conn) Send(channel transport.Channel, format transport.Format, payload []byte) bool {
	frame := transport.EncodeFrame(channel, format, payload)
	select {
	case c.outbound <- frame:
		return true
	default:
		return false
	}
}

// RTT returns the most recently observed ping/pong round trip, in seconds.
func (c *Conn) RTT() float64 {
	c.rttMu.Lock()
	defer c.rttMu.Unlock()
	return c.rtt
}

// Closed reports whether the read pump has already torn the connection
// down, so a caller iterating a connection table can notice a drop
// without a dedicated callback.
func (c *Conn) Closed() bool {
	c.closedMu.Lock()
	defer c.closedMu.Unlock()
	return c.closed
}

// RemoteAddr reports the underlying connection's peer address.
func (c *Conn) RemoteAddr() string {
	if c.conn == nil {
		return ""
	}
	return c.conn.RemoteAddr().String()
}

func (c *Conn) shutdown(reason string) {
	c.closedMu.Lock()
	if c.closed {
		c.closedMu.Unlock()
		return
	}
	c.closed = true
	c.closedMu.Unlock()

	close(c.done)
	c.conn.Close()
	if c.onClose != nil {
		c.onClose(reason)
	}
}

// Close closes the underlying connection with a close frame carrying
// reason, then shuts down both pumps.
func (c *Conn) Close(reason string) error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	c.shutdown(reason)
	return nil
}
