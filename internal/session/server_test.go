package session

import (
	"testing"
	"time"

	"github.com/pjtunstall/by-a-thread/logging"
)

func TestServerStateLobbyToGameHappyPath(t *testing.T) {
	s := NewServerState(logging.ClockFunc(time.Now), time.Minute)

	tr := s.RequestStartGame()
	if tr.NextPhase != PhaseChoosingDifficulty {
		t.Fatalf("RequestStartGame -> %v", tr.NextPhase)
	}

	tr = s.DifficultyChosen(CountdownStartedPayload{StartServerTick: 180})
	if tr.NextPhase != PhaseCountdown {
		t.Fatalf("DifficultyChosen -> %v", tr.NextPhase)
	}

	tr = s.CountdownComplete()
	if tr.NextPhase != PhaseGame {
		t.Fatalf("CountdownComplete -> %v", tr.NextPhase)
	}

	tr = s.LeaderboardDelivered()
	if tr.NextPhase != PhaseAfterGameChat {
		t.Fatalf("LeaderboardDelivered -> %v", tr.NextPhase)
	}

	tr = s.DebriefComplete()
	if tr.NextPhase != PhaseShutdown {
		t.Fatalf("DebriefComplete -> %v", tr.NextPhase)
	}
}

func TestServerStateRejectsOutOfOrderTransitions(t *testing.T) {
	s := NewServerState(logging.ClockFunc(time.Now), time.Minute)
	// CountdownComplete before DifficultyChosen should be a no-op.
	tr := s.CountdownComplete()
	if tr.NextPhase != PhaseLobby {
		t.Fatalf("expected no-op, got %v", tr.NextPhase)
	}
}

func TestIdleShutdownFiresAfterGraceElapsedOutsideGame(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	clock := logging.ClockFunc(func() time.Time { return now })
	s := NewServerState(clock, 10*time.Second)

	s.OnRosterEmpty()
	if s.ShouldIdleShutdown() {
		t.Fatalf("should not fire immediately")
	}

	now = now.Add(11 * time.Second)
	if !s.ShouldIdleShutdown() {
		t.Fatalf("expected idle shutdown to fire after grace period")
	}
}

func TestIdleShutdownCancelledByNewJoin(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	clock := logging.ClockFunc(func() time.Time { return now })
	s := NewServerState(clock, 10*time.Second)

	s.OnRosterEmpty()
	s.OnRosterNonEmpty()
	now = now.Add(20 * time.Second)
	if s.ShouldIdleShutdown() {
		t.Fatalf("expected cancelled idle timer to not fire")
	}
}

func TestIdleShutdownNeverArmsDuringGame(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	clock := logging.ClockFunc(func() time.Time { return now })
	s := NewServerState(clock, 10*time.Second)
	s.phase = PhaseGame

	s.OnRosterEmpty()
	now = now.Add(time.Hour)
	if s.ShouldIdleShutdown() {
		t.Fatalf("idle shutdown must never arm during Game")
	}
}
