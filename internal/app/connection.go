package app

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/pjtunstall/by-a-thread/internal/netbuf"
	"github.com/pjtunstall/by-a-thread/internal/transport"
	"github.com/pjtunstall/by-a-thread/internal/transport/ws"
)

// connSender is the subset of *ws.Conn the server needs to push and pull
// frames and notice a drop, narrowed so connection logic can be exercised
// against a fake in tests without a real websocket.
type connSender interface {
	Send(channel transport.Channel, format transport.Format, payload []byte) bool
	Drain() []ws.Frame
	Closed() bool
	Close(reason string) error
}

// connection is one admitted-or-admitting client's server-side state: its
// transport handle, where it has gotten to in the admission handshake, and
// the per-connection bookkeeping the tick loop needs to turn its input
// batches into commands.
type connection struct {
	id         string
	remoteAddr string
	conn       connSender

	tokenVerified bool
	authenticated bool
	username      string
	isHost        bool

	attempts   int
	unwrap     netbuf.Unwrapper
	lastInput  netbuf.Tick
	haveInput  bool
	enteredAfterGameChat bool
}

func newConnection(remoteAddr string, conn connSender) *connection {
	return &connection{
		id:         randomID(),
		remoteAddr: remoteAddr,
		conn:       conn,
	}
}

func (c *connection) sendJSON(channel transport.Channel, payload []byte) bool {
	if c == nil || c.conn == nil {
		return false
	}
	return c.conn.Send(channel, transport.FormatJSON, payload)
}

func (c *connection) sendBinary(channel transport.Channel, payload []byte) bool {
	if c == nil || c.conn == nil {
		return false
	}
	return c.conn.Send(channel, transport.FormatBinary, payload)
}

// randomID returns a short hex identifier suitable for connection and
// bullet ids, drawing from a cryptographically secure source since ids are
// also used as roster/admission keys.
func randomID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "00000000000000"
	}
	return hex.EncodeToString(buf)
}
