package app

import (
	"testing"

	"github.com/pjtunstall/by-a-thread/internal/admission"
	"github.com/pjtunstall/by-a-thread/internal/config"
	"github.com/pjtunstall/by-a-thread/internal/protocol"
	"github.com/pjtunstall/by-a-thread/internal/sim"
	"github.com/pjtunstall/by-a-thread/internal/transport"
	"github.com/pjtunstall/by-a-thread/internal/transport/ws"
)

// fakeConn is a connSender that records what was sent to it and lets a
// test stage inbound frames without a real websocket.
type fakeConn struct {
	sent        [][]byte
	sentChannel []transport.Channel
	sentFormat  []transport.Format
	frames      []ws.Frame
	closed      bool
	closeReason string
}

func (f *fakeConn) Send(channel transport.Channel, format transport.Format, payload []byte) bool {
	f.sent = append(f.sent, payload)
	f.sentChannel = append(f.sentChannel, channel)
	f.sentFormat = append(f.sentFormat, format)
	return true
}

func (f *fakeConn) Drain() []ws.Frame {
	out := f.frames
	f.frames = nil
	return out
}

func (f *fakeConn) Closed() bool { return f.closed }

func (f *fakeConn) Close(reason string) error {
	f.closed = true
	f.closeReason = reason
	return nil
}

func (f *fakeConn) lastServerMessage(t *testing.T) any {
	t.Helper()
	if len(f.sent) == 0 {
		t.Fatalf("expected a message to have been sent")
	}
	return f.nthServerMessage(t, len(f.sent)-1)
}

func (f *fakeConn) nthServerMessage(t *testing.T, n int) any {
	t.Helper()
	if n < 0 || n >= len(f.sent) {
		t.Fatalf("expected at least %d sent messages, got %d", n+1, len(f.sent))
	}
	msg, err := protocol.DecodeServerMessage(f.sent[n])
	if err != nil {
		t.Fatalf("decode sent message: %v", err)
	}
	return msg
}

// wrongPasscode returns a guess guaranteed to differ from correct in every
// digit, so a test exercising the mismatch path never flakes against the
// cryptographically random passcode NewServer generated.
func wrongPasscode(correct string) string {
	out := make([]byte, len(correct))
	for i, c := range []byte(correct) {
		out[i] = '0' + (c-'0'+1)%10
	}
	return string(out)
}

func newTestServer(t *testing.T, maxPlayers int) *Server {
	t.Helper()
	cfg := config.DefaultServerConfig()
	cfg.MaxPlayers = maxPlayers
	cfg.PasscodeLength = 4
	srv, err := NewServer(Config{Server: cfg})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return srv
}

// register mirrors what onAccept does for a connection under test, without
// going through a real websocket upgrade.
func (s *Server) register(c *connection) {
	s.mu.Lock()
	s.conns[c.id] = c
	s.mu.Unlock()
	s.attempts.Register(c.id)
}

func TestHandlePasscodeAdmitsFirstConnectionAsHost(t *testing.T) {
	s := newTestServer(t, 2)
	conn := &fakeConn{}
	c := newConnection("127.0.0.1:1000", conn)
	s.register(c)

	s.handlePasscode(c, protocol.Passcode{Code: s.Passcode()})

	if !c.authenticated {
		t.Fatalf("expected connection to be authenticated")
	}
	if !c.isHost {
		t.Fatalf("expected first admitted connection to be host")
	}

	msg := conn.lastServerMessage(t)
	authOk, ok := msg.(protocol.AuthOk)
	if !ok {
		t.Fatalf("expected AuthOk, got %T", msg)
	}
	if !authOk.IsHost {
		t.Fatalf("expected AuthOk.IsHost to be true")
	}
	if authOk.ClientID != c.id {
		t.Fatalf("expected AuthOk.ClientID %q, got %q", c.id, authOk.ClientID)
	}
	if authOk.Token == "" {
		t.Fatalf("expected a non-empty connect token")
	}
}

func TestHandlePasscodeWrongGuessSendsTryAgain(t *testing.T) {
	s := newTestServer(t, 2)
	conn := &fakeConn{}
	c := newConnection("127.0.0.1:1000", conn)
	s.register(c)

	s.handlePasscode(c, protocol.Passcode{Code: wrongPasscode(s.Passcode())})

	if c.authenticated {
		t.Fatalf("expected connection to remain unauthenticated")
	}
	msg := conn.lastServerMessage(t)
	failed, ok := msg.(protocol.AuthFailed)
	if !ok {
		t.Fatalf("expected AuthFailed, got %T", msg)
	}
	if failed.Reason != "try_again" {
		t.Fatalf("expected reason %q, got %q", "try_again", failed.Reason)
	}
}

func TestHandlePasscodeTooManyAttemptsDisconnects(t *testing.T) {
	s := newTestServer(t, 2)
	conn := &fakeConn{}
	c := newConnection("127.0.0.1:1000", conn)
	s.register(c)

	wrong := wrongPasscode(s.Passcode())
	for i := 0; i < admission.MaxAuthAttempts; i++ {
		s.handlePasscode(c, protocol.Passcode{Code: wrong})
	}

	if !conn.closed {
		t.Fatalf("expected connection to be closed after %d wrong guesses", admission.MaxAuthAttempts)
	}
	if conn.closeReason != "too_many_attempts" {
		t.Fatalf("expected close reason %q, got %q", "too_many_attempts", conn.closeReason)
	}
}

func TestHandlePasscodeRejectsWhenRosterFull(t *testing.T) {
	s := newTestServer(t, 1)
	first := &fakeConn{}
	c1 := newConnection("127.0.0.1:1000", first)
	s.register(c1)
	s.handlePasscode(c1, protocol.Passcode{Code: s.Passcode()})
	if !c1.authenticated {
		t.Fatalf("expected first connection to be admitted")
	}

	second := &fakeConn{}
	c2 := newConnection("127.0.0.1:1001", second)
	s.register(c2)
	s.handlePasscode(c2, protocol.Passcode{Code: s.Passcode()})

	if c2.authenticated {
		t.Fatalf("expected second connection to be rejected once the roster is full")
	}
	if !second.closed {
		t.Fatalf("expected second connection to be closed")
	}
	msg := second.lastServerMessage(t)
	failed, ok := msg.(protocol.AuthFailed)
	if !ok {
		t.Fatalf("expected AuthFailed, got %T", msg)
	}
	if failed.Reason != string(admission.RejectFull) {
		t.Fatalf("expected reason %q, got %q", admission.RejectFull, failed.Reason)
	}
}

func TestHandleUsernameRequestAcksAndBroadcasts(t *testing.T) {
	s := newTestServer(t, 2)
	firstConn := &fakeConn{}
	c1 := newConnection("127.0.0.1:1000", firstConn)
	s.register(c1)
	s.handlePasscode(c1, protocol.Passcode{Code: s.Passcode()})

	secondConn := &fakeConn{}
	c2 := newConnection("127.0.0.1:1001", secondConn)
	s.register(c2)
	s.handlePasscode(c2, protocol.Passcode{Code: s.Passcode()})

	s.handleUsernameRequest(c1, protocol.UsernameRequest{Username: "alice"})

	if c1.username != "alice" {
		t.Fatalf("expected username to be recorded, got %q", c1.username)
	}
	// firstConn's messages so far: AuthOk, UsernameAck, then its own Roster.
	ack := firstConn.nthServerMessage(t, 1)
	if _, ok := ack.(protocol.UsernameAck); !ok {
		t.Fatalf("expected UsernameAck, got %T", ack)
	}

	joined := secondConn.lastServerMessage(t)
	userJoined, ok := joined.(protocol.UserJoined)
	if !ok {
		t.Fatalf("expected UserJoined broadcast to the other connection, got %T", joined)
	}
	if userJoined.Identity.Username != "alice" {
		t.Fatalf("expected broadcast identity username %q, got %q", "alice", userJoined.Identity.Username)
	}
}

func TestHandleUsernameRequestRejectsDuplicate(t *testing.T) {
	s := newTestServer(t, 2)
	firstConn := &fakeConn{}
	c1 := newConnection("127.0.0.1:1000", firstConn)
	s.register(c1)
	s.handlePasscode(c1, protocol.Passcode{Code: s.Passcode()})
	s.handleUsernameRequest(c1, protocol.UsernameRequest{Username: "alice"})

	secondConn := &fakeConn{}
	c2 := newConnection("127.0.0.1:1001", secondConn)
	s.register(c2)
	s.handlePasscode(c2, protocol.Passcode{Code: s.Passcode()})
	s.handleUsernameRequest(c2, protocol.UsernameRequest{Username: "alice"})

	if c2.username != "" {
		t.Fatalf("expected duplicate username to be rejected, got %q", c2.username)
	}
	msg := secondConn.lastServerMessage(t)
	reject, ok := msg.(protocol.UsernameReject)
	if !ok {
		t.Fatalf("expected UsernameReject, got %T", msg)
	}
	if reject.Reason != "taken" {
		t.Fatalf("expected reason %q, got %q", "taken", reject.Reason)
	}
}

func TestHandleInputBatchIgnoresUnauthenticatedConnection(t *testing.T) {
	s := newTestServer(t, 2)
	conn := &fakeConn{}
	c := newConnection("127.0.0.1:1000", conn)
	s.register(c)

	s.handleInputBatch(c, protocol.InputBatch{
		NewestTargetTick: 5,
		Inputs:           []protocol.WireInput{{Translate: 1}},
	})

	if c.haveInput {
		t.Fatalf("expected an unauthenticated connection's input batch to be dropped")
	}
}

func TestHandleInputBatchEnqueuesNewTicksOnly(t *testing.T) {
	s := newTestServer(t, 2)
	conn := &fakeConn{}
	c := newConnection("127.0.0.1:1000", conn)
	s.register(c)
	s.handlePasscode(c, protocol.Passcode{Code: s.Passcode()})

	s.handleInputBatch(c, protocol.InputBatch{
		NewestTargetTick: 3,
		Inputs: []protocol.WireInput{
			{Translate: 1},
			{Translate: 2},
			{Translate: 3},
		},
	})
	if !c.haveInput {
		t.Fatalf("expected haveInput to be set after the first batch")
	}

	// A batch whose newest tick regresses behind what was already seen
	// must be dropped outright (ahead=false from the unwrapper).
	s.handleInputBatch(c, protocol.InputBatch{
		NewestTargetTick: 1,
		Inputs:           []protocol.WireInput{{Translate: 9}},
	})
	if c.lastInput != 3 {
		t.Fatalf("expected lastInput to remain at 3 after a stale batch, got %d", c.lastInput)
	}
}

func TestHandleInputBatchEnqueuesEachTickWithItsOwnInput(t *testing.T) {
	s := newTestServer(t, 2)
	conn := &fakeConn{}
	c := newConnection("127.0.0.1:1000", conn)
	s.register(c)
	s.handlePasscode(c, protocol.Passcode{Code: s.Passcode()})

	s.handleInputBatch(c, protocol.InputBatch{
		NewestTargetTick: 107,
		Inputs: []protocol.WireInput{
			{Translate: uint8(sim.TranslateN)},
			{Translate: uint8(sim.TranslateE)},
			{Translate: uint8(sim.TranslateS)},
			{Translate: uint8(sim.TranslateW)},
		},
	})

	commands := s.loop.DrainCommands()
	if len(commands) != 4 {
		t.Fatalf("expected 4 distinct commands to be enqueued, got %d", len(commands))
	}
	wantTicks := []uint64{104, 105, 106, 107}
	wantTranslate := []sim.TranslateDirection{sim.TranslateN, sim.TranslateE, sim.TranslateS, sim.TranslateW}
	for i, cmd := range commands {
		if cmd.Input == nil || cmd.Input.TargetTick != wantTicks[i] {
			t.Fatalf("command %d: expected target tick %d, got %+v", i, wantTicks[i], cmd.Input)
		}
		if cmd.Input.Translate != wantTranslate[i] {
			t.Fatalf("command %d: expected translate %v for tick %d, got %v", i, wantTranslate[i], wantTicks[i], cmd.Input.Translate)
		}
	}
}

func TestHandleInputBatchDiscardsTicksBeforeServerClock(t *testing.T) {
	s := newTestServer(t, 2)
	conn := &fakeConn{}
	c := newConnection("127.0.0.1:1000", conn)
	s.register(c)
	s.handlePasscode(c, protocol.Passcode{Code: s.Passcode()})

	// Simulate that the server's own clock has already reached tick 106, as
	// if prior Advance calls had already stepped that far.
	s.currentTick = 106

	s.handleInputBatch(c, protocol.InputBatch{
		NewestTargetTick: 107,
		Inputs: []protocol.WireInput{
			{Translate: uint8(sim.TranslateN)},
			{Translate: uint8(sim.TranslateE)},
			{Translate: uint8(sim.TranslateS)},
			{Translate: uint8(sim.TranslateW)},
		},
	})

	commands := s.loop.DrainCommands()
	if len(commands) != 2 {
		t.Fatalf("expected only ticks >= server's current tick to be enqueued, got %d commands", len(commands))
	}
	for i, cmd := range commands {
		if cmd.Input == nil || cmd.Input.TargetTick < s.currentTick {
			t.Fatalf("command %d: expected target tick >= %d, got %+v", i, s.currentTick, cmd.Input)
		}
	}
	if commands[0].Input.TargetTick != 106 || commands[1].Input.TargetTick != 107 {
		t.Fatalf("expected surviving ticks 106 and 107, got %d and %d", commands[0].Input.TargetTick, commands[1].Input.TargetTick)
	}
}

func TestHandleDisconnectReassignsHost(t *testing.T) {
	s := newTestServer(t, 2)
	hostConn := &fakeConn{}
	host := newConnection("127.0.0.1:1000", hostConn)
	s.register(host)
	s.handlePasscode(host, protocol.Passcode{Code: s.Passcode()})

	otherConn := &fakeConn{}
	other := newConnection("127.0.0.1:1001", otherConn)
	s.register(other)
	s.handlePasscode(other, protocol.Passcode{Code: s.Passcode()})

	s.handleDisconnect(host)

	if !other.isHost {
		t.Fatalf("expected the remaining connection to become host")
	}
	if s.roster.Host() != other.id {
		t.Fatalf("expected roster host to be %q, got %q", other.id, s.roster.Host())
	}
	appointMsg := otherConn.lastServerMessage(t)
	appoint, ok := appointMsg.(protocol.AppointHost)
	if !ok {
		t.Fatalf("expected AppointHost, got %T", appointMsg)
	}
	if appoint.ClientID != other.id {
		t.Fatalf("expected AppointHost.ClientID %q, got %q", other.id, appoint.ClientID)
	}

	s.mu.Lock()
	_, stillTracked := s.conns[host.id]
	s.mu.Unlock()
	if stillTracked {
		t.Fatalf("expected disconnected connection to be removed from s.conns")
	}
}

func TestHandleStartGameRequiresHost(t *testing.T) {
	s := newTestServer(t, 2)
	conn := &fakeConn{}
	c := newConnection("127.0.0.1:1000", conn)
	s.register(c)
	s.handlePasscode(c, protocol.Passcode{Code: s.Passcode()})
	c.isHost = false

	s.handleStartGame(c)

	if len(conn.sent) != 1 {
		t.Fatalf("expected no broadcast for a non-host StartGame, got %d sent messages", len(conn.sent))
	}
}

func TestPasscodeNonEmpty(t *testing.T) {
	s := newTestServer(t, 2)
	if s.Passcode() == "" {
		t.Fatalf("expected a non-empty generated passcode")
	}
}
