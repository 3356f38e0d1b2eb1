// Package app wires the transport, admission, session, and simulation
// packages into one running game server: accept websocket connections,
// gate them through the passcode/token admission protocol, dispatch
// decoded client messages at tick-loop poll points, and broadcast
// authoritative snapshots and session events back out.
package app

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"strings"
	"sync"
	"time"

	"github.com/pjtunstall/by-a-thread/internal/admission"
	"github.com/pjtunstall/by-a-thread/internal/config"
	"github.com/pjtunstall/by-a-thread/internal/netbuf"
	"github.com/pjtunstall/by-a-thread/internal/observability"
	"github.com/pjtunstall/by-a-thread/internal/protocol"
	"github.com/pjtunstall/by-a-thread/internal/session"
	"github.com/pjtunstall/by-a-thread/internal/sim"
	"github.com/pjtunstall/by-a-thread/internal/telemetry"
	"github.com/pjtunstall/by-a-thread/internal/tickloop"
	"github.com/pjtunstall/by-a-thread/internal/transport"
	"github.com/pjtunstall/by-a-thread/internal/transport/ws"
	"github.com/pjtunstall/by-a-thread/logging"
	"github.com/pjtunstall/by-a-thread/logging/lifecycle"
	"github.com/pjtunstall/by-a-thread/logging/network"
	loggingsession "github.com/pjtunstall/by-a-thread/logging/session"
	"github.com/pjtunstall/by-a-thread/logging/simulation"
)

// countdownTicks is the fixed 3-second countdown between DifficultyChoice
// and Game, per the two-client race-free join example.
const countdownTicks = uint64(3 * protocol.TickRate)

// Config assembles everything Run needs to bring up one game server.
type Config struct {
	Logger    telemetry.Logger
	Publisher logging.Publisher
	Server    config.ServerConfig

	// Connectable is the client-routable address embedded in connect
	// tokens. Required whenever Server.IP is the unspecified address;
	// otherwise defaults to Server.IP:Server.Port.
	Connectable string

	Observability observability.Config
}

// Server is one running game: its admission state, its session/lobby
// phase machine, its authoritative world, and the connections currently
// attached to it.
type Server struct {
	cfg           config.ServerConfig
	connectable   string
	observability observability.Config

	logger telemetry.Logger
	pub    logging.Publisher
	clock  logging.Clock

	signer   *admission.Signer
	passcode admission.Passcode
	attempts *admission.AttemptTracker
	roster   *admission.Roster
	state    *session.ServerState

	world   *sim.World
	loop    *tickloop.ServerLoop
	bullets *bulletRegistry

	mu    sync.Mutex
	conns map[string]*connection
	kills map[string]int

	currentTick        uint64
	countdownStartTick uint64
	consecutiveOverruns uint64
	leaderboardSent     bool

	shutdownOnce sync.Once
	shutdownCh   chan struct{}
}

// NewServer constructs a Server ready to Run: generates the per-game
// signing key and passcode, and wires the tick loop's hooks to this
// Server's own handlers.
func NewServer(cfg Config) (*Server, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.WrapLogger(log.Default())
	}
	pub := cfg.Publisher
	if pub == nil {
		pub = logging.NopPublisher()
	}
	clock := logging.ClockFunc(time.Now)

	var key [32]byte
	if _, err := rand.Read(key[:]); err != nil {
		return nil, fmt.Errorf("app: generate signing key: %w", err)
	}

	passcode, err := admission.GeneratePasscode(cfg.Server.PasscodeLength)
	if err != nil {
		return nil, fmt.Errorf("app: generate passcode: %w", err)
	}

	connectable := cfg.Connectable
	if connectable == "" {
		connectable = fmt.Sprintf("%s:%d", cfg.Server.IP, cfg.Server.Port)
	}

	world := sim.NewWorld(sim.Deps{Logger: log.Default(), Clock: clock})

	s := &Server{
		cfg:           cfg.Server,
		connectable:   connectable,
		observability: cfg.Observability,
		logger:        logger,
		pub:         pub,
		clock:       clock,
		signer:      admission.NewSigner(key),
		passcode:    passcode,
		attempts:    admission.NewAttemptTracker(),
		roster:      admission.NewRoster(cfg.Server.MaxPlayers),
		state:       session.NewServerState(clock, cfg.Server.IdleShutdownAfter),
		world:       world,
		bullets:     newBulletRegistry(),
		conns:       make(map[string]*connection),
		kills:       make(map[string]int),
		shutdownCh:  make(chan struct{}),
	}

	s.loop = tickloop.NewServerLoop(world, sim.Deps{Logger: log.Default(), Clock: clock}, tickloop.ServerConfig{
		CatchupMaxTicks: s.cfg.Tick.CatchupMaxTicks,
		CommandCapacity: s.cfg.Tick.CommandQueueCapacity,
		PerActorLimit:   s.cfg.Tick.PerActorCommandLimit,
		WarningStep:     s.cfg.Tick.CommandQueueCapacity / 2,
	}, tickloop.Hooks{
		Prepare:        s.onPrepare,
		AfterStep:      s.onAfterStep,
		OnQueueWarning: s.onQueueWarning,
		OnCommandDrop:  s.onCommandDrop,
	})

	return s, nil
}

// Passcode reports the per-game passcode clients must submit, so the
// caller can print it out-of-band per C10 step 1.
func (s *Server) Passcode() string {
	return s.passcode.String
}

// Handler returns the HTTP mux serving the websocket endpoint and a
// minimal health probe.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)

	wsHandler := ws.NewHandler(ws.HandlerConfig{Logger: s.logger})
	wsHandler.OnAccept = s.onAccept
	mux.Handle("/ws", wsHandler)

	if s.observability.EnablePprofTrace {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	return mux
}

// Run starts the tick loop and the HTTP listener and blocks until ctx is
// canceled, the idle-shutdown timer fires, the debrief completes, or the
// listener fails.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.IP, s.cfg.Port)
	httpServer := &http.Server{Addr: addr, Handler: s.Handler()}

	s.logger.Printf("passcode for this game: %s", s.passcode.String)
	s.logger.Printf("listening on %s", addr)

	stop := make(chan struct{})
	go s.loop.Run(stop)

	serveErr := make(chan error, 1)
	go func() { serveErr <- httpServer.ListenAndServe() }()

	var exitErr error
	select {
	case <-ctx.Done():
		exitErr = ctx.Err()
	case <-s.shutdownCh:
		exitErr = nil
	case err := <-serveErr:
		close(stop)
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("app: http server failed: %w", err)
		}
		return nil
	}

	close(stop)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Printf("http shutdown error: %v", err)
	}
	return exitErr
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"phase":   s.state.Phase().String(),
		"players": s.roster.Len(),
	})
}

func (s *Server) triggerShutdown() {
	s.shutdownOnce.Do(func() { close(s.shutdownCh) })
}

// onAccept is the transport's OnAccept hook: it registers the connection
// unconditionally (admission itself happens on the first Passcode message)
// and, if the URL carries a previously-issued connect token, pre-verifies
// it so a reconnecting client can be recognized before it re-authenticates.
func (s *Server) onAccept(remoteAddr string, r *http.Request, conn *ws.Conn) {
	c := newConnection(remoteAddr, conn)

	s.mu.Lock()
	s.conns[c.id] = c
	s.mu.Unlock()
	s.attempts.Register(c.id)

	if token := r.URL.Query().Get("token"); token != "" {
		ip := stripPort(remoteAddr)
		if _, err := s.signer.Verify(token, ip, s.clock.Now()); err == nil {
			c.tokenVerified = true
		} else {
			s.logger.Printf("connect token rejected for %s: %v", remoteAddr, err)
		}
	}

	s.state.OnRosterNonEmpty()
	s.logger.Printf("accepted connection from %s (id=%s)", remoteAddr, c.id)
}

func (s *Server) connByID(id string) *connection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conns[id]
}

func (s *Server) snapshotConns() []*connection {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*connection, 0, len(s.conns))
	for _, c := range s.conns {
		out = append(out, c)
	}
	return out
}

func (s *Server) onlineIdentities() []protocol.SessionIdentitySnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]protocol.SessionIdentitySnapshot, 0, len(s.conns))
	for _, c := range s.conns {
		if c.username == "" {
			continue
		}
		out = append(out, protocol.SessionIdentitySnapshot{ClientID: c.id, Username: c.username})
	}
	return out
}

func (s *Server) broadcastReliable(data []byte) {
	for _, c := range s.snapshotConns() {
		c.sendJSON(transport.ReliableOrdered, data)
	}
}

func (s *Server) broadcastReliableExcept(except *connection, data []byte) {
	for _, c := range s.snapshotConns() {
		if c == except {
			continue
		}
		c.sendJSON(transport.ReliableOrdered, data)
	}
}

// onPrepare is the tick loop's per-tick poll point: drain every
// connection's inbound frames and dispatch them, notice drops, and check
// the idle-shutdown timer.
func (s *Server) onPrepare(ctx tickloop.TickContext) {
	s.currentTick = ctx.Tick

	for _, c := range s.snapshotConns() {
		if c.conn.Closed() {
			s.handleDisconnect(c)
			continue
		}
		for _, f := range c.conn.Drain() {
			s.handleFrame(c, f)
		}
	}

	if s.state.ShouldIdleShutdown() {
		loggingsession.IdleShutdown(context.Background(), s.pub, loggingsession.IdleShutdownPayload{
			IdleSeconds: s.cfg.IdleShutdownAfter.Seconds(),
		}, nil)
		s.triggerShutdown()
	}
}

func (s *Server) handleFrame(c *connection, f ws.Frame) {
	msg, err := protocol.DecodeClientMessage(f.Payload)
	if err != nil {
		s.logger.Printf("discarding malformed frame from %s: %v", c.remoteAddr, err)
		return
	}
	switch m := msg.(type) {
	case protocol.Passcode:
		s.handlePasscode(c, m)
	case protocol.UsernameRequest:
		s.handleUsernameRequest(c, m)
	case protocol.ChatSend:
		s.handleChatSend(c, m)
	case protocol.StartGame:
		s.handleStartGame(c)
	case protocol.DifficultyChoice:
		s.handleDifficultyChoice(c, m)
	case protocol.BulletFired:
		s.handleBulletFired(c, m)
	case protocol.EnterAfterGameChat:
		s.handleEnterAfterGameChat(c)
	case protocol.InputBatch:
		s.handleInputBatch(c, m)
	}
}

func (s *Server) sendAuthFailed(c *connection, reason string) {
	data, _ := protocol.EncodeAuthFailed(reason)
	c.sendJSON(transport.ReliableOrdered, data)
}

// handlePasscode evaluates one passcode guess (C10 step 2) and, on match,
// admits the connection and issues it a connect token for a later
// reconnect (C10 steps 3-5). Roster.Admit is never called before
// AttemptTracker.Evaluate has confirmed the guess, so a connection cannot
// provisionally hold the host slot while still authenticating.
func (s *Server) handlePasscode(c *connection, m protocol.Passcode) {
	if c.authenticated {
		return
	}
	guess, ok := admission.PasscodeFromString(m.Code)
	if !ok {
		s.sendAuthFailed(c, "malformed")
		return
	}

	outcome, _ := s.attempts.Evaluate(c.id, s.passcode, guess)
	switch outcome {
	case admission.AuthAuthenticated:
		admitted, reason := s.roster.Admit(c.id)
		if !admitted {
			s.sendAuthFailed(c, string(reason))
			loggingsession.AdmissionRejected(context.Background(), s.pub,
				logging.EntityRef{ID: c.id, Kind: logging.EntityKindPlayer},
				loggingsession.AdmissionRejectedPayload{Reason: string(reason)}, nil)
			c.conn.Close(string(reason))
			return
		}
		c.authenticated = true
		c.isHost = s.roster.IsHost(c.id)
		s.attempts.Remove(c.id)
		s.world.AddPlayer(c.id)

		token := s.signer.Issue(stripPort(c.remoteAddr), s.connectable, s.clock.Now())
		data, _ := protocol.EncodeAuthOk(c.id, c.isHost, token)
		c.sendJSON(transport.ReliableOrdered, data)

		lifecycle.ClientJoined(context.Background(), s.pub,
			logging.EntityRef{ID: c.id, Kind: logging.EntityKindPlayer},
			lifecycle.ClientJoinedPayload{IsHost: c.isHost}, nil)
		if c.isHost {
			loggingsession.HostReassigned(context.Background(), s.pub,
				loggingsession.HostReassignedPayload{NewHost: c.id}, nil)
		}
	case admission.AuthTryAgain:
		s.sendAuthFailed(c, "try_again")
	case admission.AuthDisconnect:
		s.sendAuthFailed(c, "too_many_attempts")
		loggingsession.AdmissionRejected(context.Background(), s.pub,
			logging.EntityRef{ID: c.id, Kind: logging.EntityKindPlayer},
			loggingsession.AdmissionRejectedPayload{Reason: "too_many_attempts"}, nil)
		c.conn.Close("too_many_attempts")
	}
}

func (s *Server) handleUsernameRequest(c *connection, m protocol.UsernameRequest) {
	if !c.authenticated || c.username != "" {
		return
	}
	name := strings.TrimSpace(m.Username)
	if name == "" || len(name) > 24 {
		data, _ := protocol.EncodeUsernameReject("invalid")
		c.sendJSON(transport.ReliableOrdered, data)
		return
	}

	s.mu.Lock()
	for id, other := range s.conns {
		if id != c.id && other.username == name {
			s.mu.Unlock()
			data, _ := protocol.EncodeUsernameReject("taken")
			c.sendJSON(transport.ReliableOrdered, data)
			return
		}
	}
	c.username = name
	s.mu.Unlock()

	data, _ := protocol.EncodeUsernameAck(name)
	c.sendJSON(transport.ReliableOrdered, data)

	joined, _ := protocol.EncodeUserJoined(protocol.SessionIdentitySnapshot{ClientID: c.id, Username: name})
	s.broadcastReliableExcept(c, joined)

	roster, _ := protocol.EncodeRoster(s.onlineIdentities())
	c.sendJSON(transport.ReliableOrdered, roster)
}

func (s *Server) handleChatSend(c *connection, m protocol.ChatSend) {
	if c.username == "" {
		return
	}
	data, _ := protocol.EncodeChatBroadcast(c.id, m.Text)
	s.broadcastReliable(data)
}

func (s *Server) handleStartGame(c *connection) {
	if !c.isHost {
		return
	}
	tr := s.state.RequestStartGame()
	if tr.NextPhase != session.PhaseChoosingDifficulty {
		return
	}
	data, _ := protocol.EncodeBeginDifficultySelection()
	s.broadcastReliable(data)
	loggingsession.ServerPhaseTransition(context.Background(), s.pub, s.currentTick,
		loggingsession.ServerPhaseTransitionPayload{From: session.PhaseLobby.String(), To: session.PhaseChoosingDifficulty.String()}, nil)
}

func (s *Server) handleDifficultyChoice(c *connection, m protocol.DifficultyChoice) {
	if !c.isHost {
		data, _ := protocol.EncodeDenyDifficultySelection("not_host")
		c.sendJSON(transport.ReliableOrdered, data)
		return
	}
	if s.state.Phase() != session.PhaseChoosingDifficulty {
		data, _ := protocol.EncodeDenyDifficultySelection("wrong_phase")
		c.sendJSON(transport.ReliableOrdered, data)
		return
	}

	algorithm := difficultyAlgorithm(m.Level)
	roster := s.roster.Members()
	payload := session.CountdownStartedPayload{
		StartServerTick: s.currentTick + countdownTicks,
		MazeSeed:        randomSeed(),
		Algorithm:       algorithm,
		PlayerRoster:    roster,
	}

	tr := s.state.DifficultyChosen(payload)
	if tr.NextPhase != session.PhaseCountdown {
		return
	}
	s.countdownStartTick = payload.StartServerTick

	countdown, _ := protocol.EncodeCountdownStarted(payload.StartServerTick)
	s.broadcastReliable(countdown)

	starting, _ := protocol.EncodeGameStarting(fmt.Sprintf("%d", payload.MazeSeed), algorithm, roster)
	s.broadcastReliable(starting)

	loggingsession.ServerPhaseTransition(context.Background(), s.pub, s.currentTick,
		loggingsession.ServerPhaseTransitionPayload{From: session.PhaseChoosingDifficulty.String(), To: session.PhaseCountdown.String()}, nil)
}

func (s *Server) handleBulletFired(c *connection, m protocol.BulletFired) {
	if !c.authenticated || s.state.Phase() != session.PhaseGame {
		return
	}
	spawned := s.bullets.Spawn(c.id, m.ClientBulletID, m.Origin, m.Direction)
	spawned.Tick = s.currentTick
	data, _ := protocol.EncodeBulletSpawned(spawned)
	s.broadcastReliable(data)
}

func (s *Server) handleEnterAfterGameChat(c *connection) {
	if s.state.Phase() != session.PhaseAfterGameChat {
		return
	}
	c.enteredAfterGameChat = true
	data, _ := protocol.EncodeAfterGameRoster(s.onlineIdentities())
	c.sendJSON(transport.ReliableOrdered, data)
}

func (s *Server) handleInputBatch(c *connection, batch protocol.InputBatch) {
	if !c.authenticated {
		return
	}
	newest, ahead := c.unwrap.Unwrap(batch.NewestTargetTick)
	if !ahead {
		return
	}

	n := len(batch.Inputs)
	for i := 0; i < n; i++ {
		offset := uint64(n - 1 - i)
		if uint64(newest) < offset {
			continue
		}
		targetTick := uint64(newest) - offset
		if c.haveInput && netbuf.Tick(targetTick) <= c.lastInput {
			continue
		}
		if targetTick < s.currentTick {
			// Already simulated this tick: the server is authoritative over
			// its own clock, so a client whose target-tick computation lags
			// (or lies) can't inject input into the past.
			continue
		}
		wire := batch.Inputs[i]
		input := sim.PlayerInput{
			TargetTick: targetTick,
			Translate:  sim.TranslateDirection(wire.Translate),
			Rotate:     sim.RotateDirection(wire.Rotate),
			Fire:       wire.Fire,
		}
		s.loop.Enqueue(sim.Command{
			OriginTick: targetTick,
			ActorID:    c.id,
			Type:       sim.CommandInput,
			IssuedAt:   time.Now(),
			Input:      &input,
		})
	}
	c.lastInput = newest
	c.haveInput = true
}

func (s *Server) handleDisconnect(c *connection) {
	s.mu.Lock()
	delete(s.conns, c.id)
	s.mu.Unlock()
	s.attempts.Remove(c.id)

	lifecycle.ClientDisconnected(context.Background(), s.pub,
		logging.EntityRef{ID: c.id, Kind: logging.EntityKindPlayer},
		lifecycle.ClientDisconnectedPayload{Reason: "connection_lost"}, nil)

	if c.authenticated {
		s.roster.Remove(c.id)
		s.world.RemovePlayer(c.id)

		if c.isHost {
			if newHost := s.roster.Host(); newHost != "" {
				if hc := s.connByID(newHost); hc != nil {
					hc.isHost = true
				}
				appoint, _ := protocol.EncodeAppointHost(newHost)
				s.broadcastReliable(appoint)
				loggingsession.HostReassigned(context.Background(), s.pub,
					loggingsession.HostReassignedPayload{PreviousHost: c.id, NewHost: newHost}, nil)
			}
		}
	}

	if s.roster.Len() == 0 {
		s.state.OnRosterEmpty()
	}
}

func (s *Server) onQueueWarning(length int) {
	s.logger.Printf("[queue] staged command buffer length=%d", length)
}

func (s *Server) onCommandDrop(reason string, cmd sim.Command, dropCount uint64) {
	network.CommandDropped(context.Background(), s.pub, s.currentTick,
		logging.EntityRef{ID: cmd.ActorID, Kind: logging.EntityKindPlayer},
		network.CommandDroppedPayload{Reason: reason, DropCount: dropCount}, nil)
}

// onAfterStep is the tick loop's post-step poll point: telemetry for
// budget overruns and catch-up clamps, bullet aging, removed-player
// cleanup, countdown/debrief phase advancement, and periodic snapshot
// broadcast.
func (s *Server) onAfterStep(result tickloop.StepResult) {
	if result.Duration > result.Budget {
		s.consecutiveOverruns++
		simulation.TickBudgetOverrun(context.Background(), s.pub, result.Tick, simulation.TickBudgetOverrunPayload{
			DurationMillis: float64(result.Duration.Microseconds()) / 1000,
			BudgetMillis:   float64(result.Budget.Microseconds()) / 1000,
		}, nil)
		if s.consecutiveOverruns%30 == 0 {
			simulation.TickBudgetAlarm(context.Background(), s.pub, result.Tick, simulation.TickBudgetAlarmPayload{
				ConsecutiveOverruns: s.consecutiveOverruns,
			}, nil)
		}
	} else {
		s.consecutiveOverruns = 0
	}

	if result.ClampedDelta {
		network.ServerCatchupClamp(context.Background(), s.pub, result.Tick, network.ServerCatchupClampPayload{
			RequestedDelta: result.RequestedDelta,
			ClampedDelta:   result.Delta,
		}, nil)
	}

	for _, id := range s.bullets.Advance(result.Delta) {
		data, _ := protocol.EncodeBulletExpired(id)
		s.broadcastReliable(data)
	}

	for _, id := range result.RemovedPlayers {
		s.roster.Remove(id)
		left, _ := protocol.EncodeUserLeft(id)
		s.broadcastReliable(left)
	}

	s.advancePhase(result.Tick)

	if result.Tick%protocol.BroadcastEveryNTicks == 0 {
		s.broadcastSnapshot(result.Snapshot)
	}
}

// advancePhase checks the phase-local completion conditions the tick loop
// is responsible for noticing: countdown elapsed, the round down to its
// last standing player, and every client having entered the debrief chat.
func (s *Server) advancePhase(tick uint64) {
	switch s.state.Phase() {
	case session.PhaseCountdown:
		if tick >= s.countdownStartTick {
			if tr := s.state.CountdownComplete(); tr.NextPhase == session.PhaseGame {
				s.roster.StartGame()
				loggingsession.ServerPhaseTransition(context.Background(), s.pub, tick,
					loggingsession.ServerPhaseTransitionPayload{From: session.PhaseCountdown.String(), To: session.PhaseGame.String()}, nil)
			}
		}
	case session.PhaseGame:
		if !s.leaderboardSent && s.roster.Len() <= 1 {
			entries := s.buildLeaderboard()
			if tr := s.state.LeaderboardDelivered(); tr.NextPhase == session.PhaseAfterGameChat {
				data, _ := protocol.EncodeLeaderboard(entries)
				s.broadcastReliable(data)
				s.leaderboardSent = true
				loggingsession.ServerPhaseTransition(context.Background(), s.pub, tick,
					loggingsession.ServerPhaseTransitionPayload{From: session.PhaseGame.String(), To: session.PhaseAfterGameChat.String()}, nil)
			}
		}
	case session.PhaseAfterGameChat:
		conns := s.snapshotConns()
		if len(conns) == 0 {
			return
		}
		for _, c := range conns {
			if !c.enteredAfterGameChat {
				return
			}
		}
		if tr := s.state.DebriefComplete(); tr.NextPhase == session.PhaseShutdown {
			s.triggerShutdown()
		}
	}
}

func (s *Server) buildLeaderboard() []protocol.LeaderboardEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := make([]protocol.LeaderboardEntry, 0, len(s.conns))
	for _, c := range s.conns {
		entries = append(entries, protocol.LeaderboardEntry{
			ClientID: c.id,
			Username: c.username,
			Kills:    s.kills[c.id],
		})
	}
	return entries
}

// broadcastSnapshot sends base to every authenticated connection, filling
// in the per-recipient local-player detail the Engine interface
// deliberately leaves out.
func (s *Server) broadcastSnapshot(base protocol.Snapshot) {
	for _, c := range s.snapshotConns() {
		if !c.authenticated {
			continue
		}
		snap := base
		snap.LocalSlot = -1
		if slot, ok := s.world.SlotFor(c.id); ok {
			if vx, vy, yaw, pitch, ok := s.world.ActorVelocity(c.id); ok {
				pose, _ := snap.SlotFor(slot)
				snap.LocalSlot = slot
				snap.Local = protocol.LocalPlayerState{
					PlayerState: pose,
					Yaw:         float32(yaw),
					VX:          float32(vx),
					VY:          float32(vy),
				}
				_ = pitch
			}
		}
		c.sendBinary(transport.Unreliable, protocol.EncodeSnapshot(&snap))
	}
}

var difficultyAlgorithms = []string{"recursive_backtracker", "wilson", "prim"}

func difficultyAlgorithm(level uint8) string {
	if int(level) < len(difficultyAlgorithms) {
		return difficultyAlgorithms[level]
	}
	return difficultyAlgorithms[0]
}

func randomSeed() uint64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0
	}
	return binary.BigEndian.Uint64(buf[:])
}

func stripPort(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

// Run constructs a Server from cfg and runs it until ctx is canceled.
func Run(ctx context.Context, cfg Config) error {
	srv, err := NewServer(cfg)
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}
