// Package tickloop drives the fixed-rate server simulation loop and the
// client-side accumulator scheduler against a shared Command/Engine
// contract, independent of transport or session concerns.
package tickloop

import (
	"sync"
	"time"

	"github.com/pjtunstall/by-a-thread/internal/protocol"
	"github.com/pjtunstall/by-a-thread/internal/sim"
	"github.com/pjtunstall/by-a-thread/internal/telemetry"
	"github.com/pjtunstall/by-a-thread/logging"
)

const (
	// CommandRejectQueueLimit indicates a command was dropped due to per-actor
	// queue throttling.
	CommandRejectQueueLimit = "queue_limit"
	// CommandRejectQueueFull indicates the global intent queue is saturated.
	CommandRejectQueueFull = "queue_full"
)

// ServerConfig tunes the intent queue and tick loop orchestration. TickRate
// is fixed at protocol.TickRate by the specification; CatchupMaxTicks bounds
// how many ticks' worth of wall-clock delay a single Advance call will
// absorb before the server starts skipping rather than spiralling.
type ServerConfig struct {
	CatchupMaxTicks int
	CommandCapacity int
	PerActorLimit   int
	WarningStep     int
}

// TickContext carries the bookkeeping a single Advance call needs.
type TickContext struct {
	Tick  uint64
	Now   time.Time
	Delta float64
}

// StepResult reports what a single Advance call did, for callers (chiefly
// the broadcast/transport layer) that need to act on tick boundaries.
type StepResult struct {
	Tick           uint64
	Now            time.Time
	Delta          float64
	Duration       time.Duration
	Budget         time.Duration
	ClampedDelta   bool
	RequestedDelta float64
	MaxDelta       float64
	Snapshot       protocol.Snapshot
	Commands       []sim.Command
	RemovedPlayers []string
}

// Hooks lets the owner observe loop events without Loop depending on any
// particular transport or session package.
type Hooks struct {
	NextTick       func() uint64
	Prepare        func(TickContext)
	AfterStep      func(StepResult)
	OnQueueWarning func(queueLength int)
	OnCommandDrop  func(reason string, cmd sim.Command, dropCount uint64)
}

// ServerLoop coordinates command ingestion and the fixed-timestep
// authoritative simulation runner for one Engine.
type ServerLoop struct {
	engine  sim.Engine
	buffer  *sim.IntentQueue
	hooks   Hooks
	config  ServerConfig
	logger  telemetry.Logger
	clock   logging.Clock

	queueMu       sync.Mutex
	perActorCount map[string]int
	dropCounts    map[string]uint64
}

// NewServerLoop wraps engine with a ring-buffer command queue and fixed-step
// runner.
func NewServerLoop(engine sim.Engine, deps sim.Deps, cfg ServerConfig, hooks Hooks) *ServerLoop {
	if engine == nil {
		return nil
	}
	metrics := telemetry.WrapMetrics(deps.Metrics)
	buffer := sim.NewIntentQueue(cfg.CommandCapacity, metrics)
	clock := deps.Clock
	if clock == nil {
		clock = logging.ClockFunc(time.Now)
	}
	return &ServerLoop{
		engine:        engine,
		buffer:        buffer,
		hooks:         hooks,
		config:        cfg,
		logger:        telemetry.WrapLogger(deps.Logger),
		clock:         clock,
		perActorCount: make(map[string]int),
		dropCounts:    make(map[string]uint64),
	}
}

// Pending reports the number of staged commands.
func (l *ServerLoop) Pending() int {
	if l == nil {
		return 0
	}
	return l.buffer.Len()
}

// DrainCommands clears the staged command queue without advancing the engine.
func (l *ServerLoop) DrainCommands() []sim.Command {
	if l == nil {
		return nil
	}
	return l.drainCommands()
}

// Enqueue stages a command, enforcing per-actor throttling and capacity
// limits. Mirrors the donor's backpressure design: per-actor caps protect
// against one flooding connection starving the rest, and the global buffer
// cap protects against overall overload.
func (l *ServerLoop) Enqueue(cmd sim.Command) (bool, string) {
	if l == nil {
		return false, CommandRejectQueueFull
	}
	reason := ""
	var dropCount uint64
	l.queueMu.Lock()
	if l.config.PerActorLimit > 0 && cmd.ActorID != "" {
		count := l.perActorCount[cmd.ActorID]
		if count >= l.config.PerActorLimit {
			reason = CommandRejectQueueLimit
			dropCount = l.incrementDropLocked(cmd.ActorID)
		} else {
			l.perActorCount[cmd.ActorID] = count + 1
		}
	}
	if reason == "" {
		if !l.buffer.Push(cmd) {
			reason = CommandRejectQueueFull
			dropCount = l.incrementDropLocked(cmd.ActorID)
		} else if l.config.WarningStep > 0 {
			length := l.buffer.Len()
			if length >= l.config.WarningStep && length%l.config.WarningStep == 0 {
				l.queueMu.Unlock()
				l.warnQueue(length)
				return true, ""
			}
		}
	}
	l.queueMu.Unlock()
	if reason != "" {
		l.reportDrop(reason, cmd, dropCount)
		return false, reason
	}
	return true, ""
}

// Advance executes a single simulation step using the staged commands.
func (l *ServerLoop) Advance(ctx TickContext) StepResult {
	if l == nil {
		return StepResult{}
	}
	commands := l.drainCommands()
	if l.hooks.Prepare != nil {
		l.hooks.Prepare(ctx)
	}
	_ = l.engine.Apply(commands)
	l.engine.Step(ctx.Tick)
	return StepResult{
		Tick:           ctx.Tick,
		Now:            ctx.Now,
		Delta:          ctx.Delta,
		Snapshot:       l.engine.Snapshot(ctx.Tick),
		Commands:       commands,
		RemovedPlayers: l.engine.RemovedPlayers(),
	}
}

// Run drives the fixed-timestep loop at protocol.TickRate until stop closes.
func (l *ServerLoop) Run(stop <-chan struct{}) {
	if l == nil {
		return
	}
	ticker := time.NewTicker(time.Second / time.Duration(protocol.TickRate))
	defer ticker.Stop()

	last := l.clock.Now()
	budgetSeconds := protocol.TickDT
	maxDt := budgetSeconds
	if l.config.CatchupMaxTicks > 1 {
		maxDt = budgetSeconds * float64(l.config.CatchupMaxTicks)
	}
	budgetDuration := time.Second / time.Duration(protocol.TickRate)

	var tick uint64
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			now := l.clock.Now()
			dt := now.Sub(last).Seconds()
			requested := dt
			clamped := false
			if dt <= 0 {
				dt = budgetSeconds
				requested = dt
			} else if dt > maxDt {
				dt = maxDt
				clamped = true
			}
			last = now

			if l.hooks.NextTick != nil {
				tick = l.hooks.NextTick()
			} else {
				tick++
			}

			start := l.clock.Now()
			result := l.Advance(TickContext{Tick: tick, Now: now, Delta: dt})
			result.Duration = l.clock.Now().Sub(start)
			result.Budget = budgetDuration
			result.ClampedDelta = clamped
			result.RequestedDelta = requested
			result.MaxDelta = maxDt

			if l.hooks.AfterStep != nil {
				l.hooks.AfterStep(result)
			}
		}
	}
}

func (l *ServerLoop) drainCommands() []sim.Command {
	l.queueMu.Lock()
	defer l.queueMu.Unlock()
	commands := l.buffer.Drain()
	if len(l.perActorCount) > 0 {
		l.perActorCount = make(map[string]int)
	}
	return commands
}

func (l *ServerLoop) incrementDropLocked(actorID string) uint64 {
	if actorID == "" {
		return 0
	}
	count := l.dropCounts[actorID] + 1
	l.dropCounts[actorID] = count
	return count
}

func (l *ServerLoop) warnQueue(length int) {
	tickDT := protocol.TickDT
	tickBudget := time.Duration(tickDT * float64(time.Second))
	if age, ok := l.buffer.OldestPendingAge(l.clock.Now()); ok && age > tickBudget {
		l.logger.Printf("[backpressure] intent queue depth=%d oldest_pending=%s", length, age)
	}
	if l.hooks.OnQueueWarning != nil {
		l.hooks.OnQueueWarning(length)
	}
}

func (l *ServerLoop) reportDrop(reason string, cmd sim.Command, count uint64) {
	if l.hooks.OnCommandDrop != nil {
		l.hooks.OnCommandDrop(reason, cmd, count)
	}
	if reason == CommandRejectQueueLimit && count > 0 && count&(count-1) == 0 {
		l.logger.Printf(
			"[backpressure] dropping command actor=%s type=%s count=%d limit=%d",
			cmd.ActorID,
			cmd.Type,
			count,
			l.config.PerActorLimit,
		)
	}
}
