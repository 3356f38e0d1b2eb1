package tickloop

import (
	"github.com/pjtunstall/by-a-thread/internal/clock"
	"github.com/pjtunstall/by-a-thread/internal/protocol"
)

const (
	jitterSafetyMargin   = 0.050
	simHardSnapThreshold = 0.250
	simNudgeGain         = 0.10
	simNudgeClamp        = 0.002
	maxTicksPerFrame     = 8
)

// InputSampler returns whatever input the client considers "currently held"
// for the given target tick. The scheduler itself has no opinion on input
// devices; it only decides when to sample.
type InputSampler func(targetTick uint64) any

// SpiralGuardFunc is invoked when the per-frame tick cap fires, so the
// caller can surface a diagnostic without ScheduleFrame depending on any
// particular logger.
type SpiralGuardFunc func(ticksThisFrame int, accumulatorRemainder float64)

// ClientScheduler owns the fixed-timestep accumulator and current simulated
// tick on the client side, translating wall-clock frame deltas into a
// sequence of simulation ticks plus a render interpolation factor.
type ClientScheduler struct {
	estimator *clock.Estimator

	accumulator  float64
	simulatedTime float64
	currentTick  uint64

	Sample      InputSampler
	StepSim     func(targetTick uint64, input any)
	OnSpiral    SpiralGuardFunc
}

// NewClientScheduler constructs a scheduler bound to the given clock
// estimator, which the caller feeds clock-sync beacons via
// estimator.ObserveBeacon independently of ScheduleFrame.
func NewClientScheduler(estimator *clock.Estimator) *ClientScheduler {
	return &ClientScheduler{estimator: estimator}
}

// FrameResult reports what ScheduleFrame did so the caller can drive
// rendering (Alpha) and an outgoing input batch (TargetTicks).
type FrameResult struct {
	TargetTicks []uint64
	Alpha       float64
	Clamped     bool
}

// ScheduleFrame advances the accumulator by dt (the measured raw frame
// delta) and runs zero or more simulation ticks to catch the client's
// simulated time up to the server-time estimate, per the tick scheduler
// contract: a proportional nudge for small error, a hard snap for large
// error, and a spiral guard bounding how many ticks one frame can run.
func (s *ClientScheduler) ScheduleFrame(dt float64) FrameResult {
	if s == nil {
		return FrameResult{}
	}

	target := s.estimator.EstimatedServerTime() + s.estimator.SmoothedRTT()/2 + jitterSafetyMargin
	errVal := target - s.simulatedTime

	var adjustment float64
	clamped := false
	if abs(errVal) > simHardSnapThreshold {
		adjustment = errVal
		clamped = true
	} else {
		adjustment = clampf(errVal*simNudgeGain, -simNudgeClamp, simNudgeClamp)
	}

	s.accumulator += dt + adjustment

	var targets []uint64
	ticksThisFrame := 0
	for s.accumulator >= protocol.TickDT && ticksThisFrame < maxTicksPerFrame {
		s.currentTick++
		targetTick := s.currentTick

		var input any
		if s.Sample != nil {
			input = s.Sample(targetTick)
		}
		if s.StepSim != nil {
			s.StepSim(targetTick, input)
		}
		targets = append(targets, targetTick)

		s.accumulator -= protocol.TickDT
		s.simulatedTime += protocol.TickDT
		ticksThisFrame++
	}

	if ticksThisFrame == maxTicksPerFrame && s.accumulator >= protocol.TickDT {
		remainder := s.accumulator
		s.accumulator = 0
		if s.OnSpiral != nil {
			s.OnSpiral(ticksThisFrame, remainder)
		}
	}

	return FrameResult{
		TargetTicks: targets,
		Alpha:       s.accumulator / protocol.TickDT,
		Clamped:     clamped,
	}
}

// SeedTick aligns the scheduler's tick counter and simulated time to a known
// server tick, so that subsequent CurrentTick() calls are comparable to the
// server's absolute tick space (carried on the wire in, e.g., a snapshot's
// Tick field) rather than counting from zero since the scheduler was
// constructed. Callers seed once, at the moment the client's local
// simulation begins (the server-declared countdown completing), before the
// first ScheduleFrame call; seeding again later would discard the
// accumulator's fractional progress, so it isn't meant to be called
// repeatedly.
func (s *ClientScheduler) SeedTick(serverTick uint64) {
	if s == nil {
		return
	}
	s.currentTick = serverTick
	s.simulatedTime = float64(serverTick) * protocol.TickDT
	s.accumulator = 0
}

// CurrentTick reports the client's current simulated tick.
func (s *ClientScheduler) CurrentTick() uint64 {
	if s == nil {
		return 0
	}
	return s.currentTick
}

// SimulatedTime reports the client's current simulated time in seconds.
func (s *ClientScheduler) SimulatedTime() float64 {
	if s == nil {
		return 0
	}
	return s.simulatedTime
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func clampf(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
