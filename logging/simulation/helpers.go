// Package simulation carries the server tick-loop's budget-overrun event
// catalog: a tick whose step duration exceeds its allotted budget, and
// the escalation when that keeps happening.
package simulation

import (
	"context"

	"github.com/pjtunstall/by-a-thread/logging"
)

const (
	// EventTickBudgetOverrun is emitted when one tick's Step/Advance call
	// takes longer than the fixed per-tick budget (1/60s).
	EventTickBudgetOverrun logging.EventType = "simulation.tick_budget_overrun"
	// EventTickBudgetAlarm is emitted when overruns persist long enough
	// that the server loop has had to clamp its catch-up delta repeatedly.
	EventTickBudgetAlarm logging.EventType = "simulation.tick_budget_alarm"
)

// TickBudgetOverrunPayload captures the one-tick timing breach.
type TickBudgetOverrunPayload struct {
	DurationMillis float64 `json:"durationMillis"`
	BudgetMillis   float64 `json:"budgetMillis"`
}

// TickBudgetOverrun publishes a warning event for a single over-budget
// tick.
func TickBudgetOverrun(ctx context.Context, pub logging.Publisher, tick uint64, payload TickBudgetOverrunPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventTickBudgetOverrun,
		Tick:     tick,
		Severity: logging.SeverityWarn,
		Category: logging.CategorySystem,
		Payload:  payload,
		Extra:    extra,
	})
}

// TickBudgetAlarmPayload captures a sustained-overrun streak.
type TickBudgetAlarmPayload struct {
	ConsecutiveOverruns uint64 `json:"consecutiveOverruns"`
}

// TickBudgetAlarm publishes an error event when overruns have persisted
// long enough to be a structural problem rather than a blip.
func TickBudgetAlarm(ctx context.Context, pub logging.Publisher, tick uint64, payload TickBudgetAlarmPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventTickBudgetAlarm,
		Tick:     tick,
		Severity: logging.SeverityError,
		Category: logging.CategorySystem,
		Payload:  payload,
		Extra:    extra,
	})
}
