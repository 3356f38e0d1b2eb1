// Package session implements the client and server lobby/game state
// machines: typed states, a typed transition contract, and the
// idle-shutdown policy for when a server's roster drops to zero outside the
// Game phase.
package session

import (
	"sync"
	"time"

	"github.com/pjtunstall/by-a-thread/logging"
)

// ServerPhase enumerates the server's top-level states.
type ServerPhase int

const (
	PhaseLobby ServerPhase = iota
	PhaseChoosingDifficulty
	PhaseCountdown
	PhaseGame
	PhaseAfterGameChat
	PhaseShutdown
)

func (p ServerPhase) String() string {
	switch p {
	case PhaseLobby:
		return "lobby"
	case PhaseChoosingDifficulty:
		return "choosing_difficulty"
	case PhaseCountdown:
		return "countdown"
	case PhaseGame:
		return "game"
	case PhaseAfterGameChat:
		return "after_game_chat"
	case PhaseShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// Transition is the typed outcome of a state-machine step: the phase to
// move to, an optional payload for the entry handler of that phase, and an
// optional disconnect reason when the transition also evicts the caller.
// UI/broadcast side effects belong to the entry handler of NextPhase, never
// to the code producing the Transition.
type Transition struct {
	NextPhase        ServerPhase
	Payload          any
	DisconnectReason string
}

// CountdownStartedPayload is the Transition payload delivered when entering
// PhaseCountdown.
type CountdownStartedPayload struct {
	StartServerTick uint64
	MazeSeed        uint64
	Algorithm       string
	PlayerRoster    []string
}

// DefaultIdleShutdownAfter is the default grace period before an empty,
// non-Game server exits, per the decided idle-shutdown policy.
const DefaultIdleShutdownAfter = 2 * time.Minute

// ServerState owns the single per-game phase struct the main loop drives: a
// maximum of one ServerState exists per running server process, matching
// the specification's "per-game server state is a single struct owned by
// the main loop" invariant.
type ServerState struct {
	mu    sync.Mutex
	phase ServerPhase

	clock             logging.Clock
	idleShutdownAfter time.Duration
	idleSince         time.Time
	idleActive        bool
}

// NewServerState constructs a ServerState starting in PhaseLobby.
func NewServerState(clock logging.Clock, idleShutdownAfter time.Duration) *ServerState {
	if idleShutdownAfter <= 0 {
		idleShutdownAfter = DefaultIdleShutdownAfter
	}
	return &ServerState{
		phase:             PhaseLobby,
		clock:             clock,
		idleShutdownAfter: idleShutdownAfter,
	}
}

// Phase reports the current phase.
func (s *ServerState) Phase() ServerPhase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// RequestStartGame attempts the Lobby->ChoosingDifficulty transition; the
// caller must already have verified hostID is the roster's current host.
func (s *ServerState) RequestStartGame() Transition {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseLobby {
		return Transition{NextPhase: s.phase}
	}
	s.phase = PhaseChoosingDifficulty
	return Transition{NextPhase: PhaseChoosingDifficulty}
}

// DifficultyChosen performs the ChoosingDifficulty->Countdown transition,
// carrying the countdown-start payload broadcast as CountdownStarted.
func (s *ServerState) DifficultyChosen(payload CountdownStartedPayload) Transition {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseChoosingDifficulty {
		return Transition{NextPhase: s.phase}
	}
	s.phase = PhaseCountdown
	return Transition{NextPhase: PhaseCountdown, Payload: payload}
}

// CountdownComplete performs the Countdown->Game transition once
// start_server_tick has arrived.
func (s *ServerState) CountdownComplete() Transition {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseCountdown {
		return Transition{NextPhase: s.phase}
	}
	s.phase = PhaseGame
	return Transition{NextPhase: PhaseGame}
}

// LeaderboardDelivered performs the Game->AfterGameChat transition once the
// match has ended and the leaderboard payload is ready to broadcast.
func (s *ServerState) LeaderboardDelivered() Transition {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseGame {
		return Transition{NextPhase: s.phase}
	}
	s.phase = PhaseAfterGameChat
	return Transition{NextPhase: PhaseAfterGameChat}
}

// DebriefComplete performs the terminal AfterGameChat->Shutdown transition,
// once the leaderboard has been delivered to every remaining client and the
// server is ready to exit.
func (s *ServerState) DebriefComplete() Transition {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseAfterGameChat {
		return Transition{NextPhase: s.phase}
	}
	s.phase = PhaseShutdown
	return Transition{NextPhase: PhaseShutdown}
}

// OnRosterEmpty starts the idle-shutdown timer if the current phase is
// outside Game; a roster already empty when this is called a second time
// is a no-op (the timer does not restart on every poll).
func (s *ServerState) OnRosterEmpty() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == PhaseGame || s.idleActive {
		return
	}
	s.idleActive = true
	s.idleSince = s.clock.Now()
}

// OnRosterNonEmpty cancels a running idle-shutdown timer, e.g. when a new
// client joins.
func (s *ServerState) OnRosterNonEmpty() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.idleActive = false
}

// ShouldIdleShutdown reports whether the idle-shutdown grace period has
// elapsed since the roster last went empty outside Game.
func (s *ServerState) ShouldIdleShutdown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.idleActive {
		return false
	}
	return s.clock.Now().Sub(s.idleSince) >= s.idleShutdownAfter
}
