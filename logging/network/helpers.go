// Package network carries the netcode-specific event catalog: ring-buffer
// drops, clock hard snaps, and tick-scheduler spiral guards.
package network

import (
	"context"

	"github.com/pjtunstall/by-a-thread/logging"
)

const (
	// EventCommandDropped is emitted when an inbound command is discarded
	// because its actor's per-tick queue is full or the shared command
	// buffer has hit capacity.
	EventCommandDropped logging.EventType = "network.command_dropped"
	// EventClockHardSnap is emitted when the clock estimator's error
	// exceeds the hard-snap threshold and jumps its estimate instead of
	// nudging it.
	EventClockHardSnap logging.EventType = "network.clock_hard_snap"
	// EventTickSpiralGuard is emitted when the client tick scheduler hits
	// its max-ticks-per-frame cap and discards the remaining accumulator.
	EventTickSpiralGuard logging.EventType = "network.tick_spiral_guard"
	// EventServerCatchupClamp is emitted when the server loop clamps a
	// late frame's delta rather than simulating the full elapsed gap.
	EventServerCatchupClamp logging.EventType = "network.server_catchup_clamp"
)

// CommandDroppedPayload captures why and how often a given actor's
// commands are being discarded.
type CommandDroppedPayload struct {
	Reason    string `json:"reason"`
	DropCount uint64 `json:"dropCount"`
}

// CommandDropped publishes a warning event when an inbound command is
// discarded.
func CommandDropped(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload CommandDroppedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventCommandDropped,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Category: logging.CategorySystem,
		Payload:  payload,
		Extra:    extra,
	})
}

// ClockHardSnapPayload captures the jump the estimator made.
type ClockHardSnapPayload struct {
	PreviousEstimate float64 `json:"previousEstimate"`
	NewEstimate      float64 `json:"newEstimate"`
	ErrorSeconds     float64 `json:"errorSeconds"`
}

// ClockHardSnap publishes an info event whenever the clock estimator
// hard-snaps rather than nudges.
func ClockHardSnap(ctx context.Context, pub logging.Publisher, tick uint64, payload ClockHardSnapPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventClockHardSnap,
		Tick:     tick,
		Severity: logging.SeverityInfo,
		Category: logging.CategorySystem,
		Payload:  payload,
		Extra:    extra,
	})
}

// TickSpiralGuardPayload captures the state of the client scheduler's
// accumulator when the spiral guard fired.
type TickSpiralGuardPayload struct {
	TicksThisFrame       int     `json:"ticksThisFrame"`
	AccumulatorRemainder float64 `json:"accumulatorRemainder"`
}

// TickSpiralGuard publishes a warning event when the client tick
// scheduler's spiral guard discards accumulator backlog.
func TickSpiralGuard(ctx context.Context, pub logging.Publisher, tick uint64, payload TickSpiralGuardPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventTickSpiralGuard,
		Tick:     tick,
		Severity: logging.SeverityWarn,
		Category: logging.CategorySystem,
		Payload:  payload,
		Extra:    extra,
	})
}

// ServerCatchupClampPayload captures the clamp the server loop applied.
type ServerCatchupClampPayload struct {
	RequestedDelta float64 `json:"requestedDelta"`
	ClampedDelta   float64 `json:"clampedDelta"`
}

// ServerCatchupClamp publishes a warning event when the server loop
// clamps a frame's delta to avoid simulating an unbounded backlog.
func ServerCatchupClamp(ctx context.Context, pub logging.Publisher, tick uint64, payload ServerCatchupClampPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventServerCatchupClamp,
		Tick:     tick,
		Severity: logging.SeverityWarn,
		Category: logging.CategorySystem,
		Payload:  payload,
		Extra:    extra,
	})
}
