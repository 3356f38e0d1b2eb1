// Package session carries the lobby/admission event catalog: state
// transitions, admission rejections, and host reassignment.
package session

import (
	"context"

	"github.com/pjtunstall/by-a-thread/logging"
)

const (
	// EventServerPhaseTransition is emitted whenever the server's lobby
	// state machine advances to a new phase.
	EventServerPhaseTransition logging.EventType = "session.server_phase_transition"
	// EventAdmissionRejected is emitted when a connecting client is
	// denied admission (full roster, game in progress, bad token).
	EventAdmissionRejected logging.EventType = "session.admission_rejected"
	// EventHostReassigned is emitted when the host role transfers,
	// whether on initial election or on the prior host's departure.
	EventHostReassigned logging.EventType = "session.host_reassigned"
	// EventIdleShutdown is emitted when the server shuts itself down
	// after its roster has sat empty past the idle-shutdown grace period.
	EventIdleShutdown logging.EventType = "session.idle_shutdown"
)

// ServerPhaseTransitionPayload captures the phase the server left and
// the phase it entered.
type ServerPhaseTransitionPayload struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// ServerPhaseTransition publishes an info event for a server phase change.
func ServerPhaseTransition(ctx context.Context, pub logging.Publisher, tick uint64, payload ServerPhaseTransitionPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventServerPhaseTransition,
		Tick:     tick,
		Severity: logging.SeverityInfo,
		Category: logging.CategorySystem,
		Payload:  payload,
		Extra:    extra,
	})
}

// AdmissionRejectedPayload captures why a connecting client was denied.
type AdmissionRejectedPayload struct {
	Reason string `json:"reason"`
}

// AdmissionRejected publishes a warning event when a client is denied
// admission.
func AdmissionRejected(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload AdmissionRejectedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventAdmissionRejected,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Category: logging.CategorySystem,
		Payload:  payload,
		Extra:    extra,
	})
}

// HostReassignedPayload names the new host and, if there was one, the
// previous host.
type HostReassignedPayload struct {
	PreviousHost string `json:"previousHost,omitempty"`
	NewHost      string `json:"newHost"`
}

// HostReassigned publishes an info event when the host role transfers.
func HostReassigned(ctx context.Context, pub logging.Publisher, payload HostReassignedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventHostReassigned,
		Severity: logging.SeverityInfo,
		Category: logging.CategorySystem,
		Payload:  payload,
		Extra:    extra,
	})
}

// IdleShutdownPayload captures how long the roster sat empty before the
// server shut itself down.
type IdleShutdownPayload struct {
	IdleSeconds float64 `json:"idleSeconds"`
}

// IdleShutdown publishes an info event when the idle-shutdown timer
// fires.
func IdleShutdown(ctx context.Context, pub logging.Publisher, payload IdleShutdownPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventIdleShutdown,
		Severity: logging.SeverityInfo,
		Category: logging.CategorySystem,
		Payload:  payload,
		Extra:    extra,
	})
}
