package tickloop

import (
	"testing"

	"github.com/pjtunstall/by-a-thread/internal/clock"
	"github.com/pjtunstall/by-a-thread/internal/protocol"
)

func newSeededEstimator(t float64) *clock.Estimator {
	e := clock.NewEstimator()
	e.ObserveBeacon(t, t, 0.02)
	return e
}

func TestScheduleFrameRunsIntegerTicksAndReportsAlpha(t *testing.T) {
	est := newSeededEstimator(10.0)
	sched := NewClientScheduler(est)

	var stepped []uint64
	sched.StepSim = func(tick uint64, _ any) {
		stepped = append(stepped, tick)
	}

	result := sched.ScheduleFrame(protocol.TickDT * 2.5)

	if len(stepped) < 2 {
		t.Fatalf("expected at least 2 ticks stepped for a 2.5-tick frame, got %d", len(stepped))
	}
	if result.Alpha < 0 || result.Alpha >= 1 {
		t.Fatalf("alpha out of range: %v", result.Alpha)
	}

	seen := make(map[uint64]bool, len(stepped))
	for _, tick := range stepped {
		if seen[tick] {
			t.Fatalf("tick %d stepped more than once in a single frame: %v", tick, stepped)
		}
		seen[tick] = true
	}
}

func TestSeedTickAlignsCurrentTickAndSimulatedTime(t *testing.T) {
	// The estimator agrees with the server time of tick 500, so after
	// seeding the scheduler is within the nudge band rather than snapping.
	est := newSeededEstimator(500 * protocol.TickDT)
	sched := NewClientScheduler(est)

	sched.SeedTick(500)
	if sched.CurrentTick() != 500 {
		t.Fatalf("CurrentTick() = %d, want 500", sched.CurrentTick())
	}
	if got, want := sched.SimulatedTime(), 500*protocol.TickDT; got != want {
		t.Fatalf("SimulatedTime() = %v, want %v", got, want)
	}

	var stepped []uint64
	sched.StepSim = func(tick uint64, _ any) {
		stepped = append(stepped, tick)
	}
	sched.ScheduleFrame(protocol.TickDT)
	if len(stepped) != 1 || stepped[0] != 501 {
		t.Fatalf("expected the first post-seed tick to be 501, got %v", stepped)
	}
}

func TestScheduleFrameSpiralGuardCapsTicksPerFrame(t *testing.T) {
	est := newSeededEstimator(10.0)
	sched := NewClientScheduler(est)

	spiralFired := false
	sched.OnSpiral = func(ticksThisFrame int, remainder float64) {
		spiralFired = true
		if ticksThisFrame != maxTicksPerFrame {
			t.Fatalf("spiral guard fired with %d ticks, want %d", ticksThisFrame, maxTicksPerFrame)
		}
	}

	// A huge frame delta should run at most maxTicksPerFrame ticks this call.
	result := sched.ScheduleFrame(protocol.TickDT * 100)

	if len(result.TargetTicks) != maxTicksPerFrame {
		t.Fatalf("ran %d ticks, want %d", len(result.TargetTicks), maxTicksPerFrame)
	}
	if !spiralFired {
		t.Fatalf("expected spiral guard to fire")
	}
}

func TestScheduleFrameAdvancesSimulatedTime(t *testing.T) {
	est := newSeededEstimator(5.0)
	sched := NewClientScheduler(est)

	sched.ScheduleFrame(protocol.TickDT)
	if sched.SimulatedTime() <= 0 {
		t.Fatalf("expected simulated time to advance, got %v", sched.SimulatedTime())
	}
	if sched.CurrentTick() == 0 {
		t.Fatalf("expected current tick to advance past zero")
	}
}
