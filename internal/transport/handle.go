// Package transport defines the transport-handle abstraction the core
// client loop drives: connect, poll for connection-state events, send and
// receive payloads on one of two logical channels, and disconnect. The
// core never touches a socket directly, so it stays single-threaded even
// though the concrete implementation (internal/transport/ws) runs its
// read and write pumps on their own goroutines.
package transport

import (
	"fmt"
	"time"
)

// Channel identifies one of the two logical message channels multiplexed
// over a single underlying connection.
type Channel uint8

const (
	// ReliableOrdered carries messages that must arrive, in order: auth,
	// chat, bullet confirmations, roster changes.
	ReliableOrdered Channel = iota
	// Unreliable carries messages where staleness makes retransmission
	// pointless: input batches, snapshots, the clock-sync beacon.
	Unreliable
)

func (c Channel) String() string {
	switch c {
	case ReliableOrdered:
		return "reliable"
	case Unreliable:
		return "unreliable"
	default:
		return fmt.Sprintf("channel(%d)", uint8(c))
	}
}

// Format discriminates the payload's wire encoding within a channel. Most
// messages are JSON-framed tagged unions (see internal/protocol); the
// Snapshot message is instead a compact fixed-layout binary blob.
type Format uint8

const (
	FormatJSON   Format = 0
	FormatBinary Format = 1
)

// EventKind enumerates the connection-state transitions Poll can report.
type EventKind int

const (
	EventConnected EventKind = iota
	EventDisconnected
)

// Event is one connection-state transition drained from Poll.
type Event struct {
	Kind   EventKind
	Reason string
}

// Handle is the external transport abstraction required by §6: a
// connect/poll/send/receive/rtt/disconnect surface an external reliable-
// over-UDP (or, here, websocket) library is adapted to. The core loop
// calls Poll and Receive only at its own poll points; nothing in Handle
// may block.
type Handle interface {
	Connect(endpoint, token string) error
	Poll(now time.Time) []Event
	Send(channel Channel, payload []byte) error
	Receive(channel Channel) ([]byte, bool)
	RTT() float64
	Disconnect(reason string) error
	IsConnected() bool
}

// EncodeFrame prepends the two-byte envelope (channel, format) that lets a
// single connection multiplex both logical channels and both payload
// encodings without a second socket.
func EncodeFrame(channel Channel, format Format, payload []byte) []byte {
	frame := make([]byte, 2+len(payload))
	frame[0] = byte(channel)
	frame[1] = byte(format)
	copy(frame[2:], payload)
	return frame
}

// DecodeFrame strips the envelope added by EncodeFrame.
func DecodeFrame(frame []byte) (channel Channel, format Format, payload []byte, err error) {
	if len(frame) < 2 {
		return 0, 0, nil, fmt.Errorf("transport: frame too short: %d bytes", len(frame))
	}
	return Channel(frame[0]), Format(frame[1]), frame[2:], nil
}
