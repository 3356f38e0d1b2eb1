// Package lifecycle carries the per-connection join/leave event catalog,
// distinct from logging/session's phase-machine transitions: this is
// "a client connected/disconnected", not "the lobby moved to Countdown".
package lifecycle

import (
	"context"

	"github.com/pjtunstall/by-a-thread/logging"
)

const (
	// EventClientJoined is emitted once a connecting client clears
	// admission and is added to the roster.
	EventClientJoined logging.EventType = "lifecycle.client_joined"
	// EventClientDisconnected is emitted when a roster member's
	// connection is lost or closed.
	EventClientDisconnected logging.EventType = "lifecycle.client_disconnected"
)

// ClientJoinedPayload captures the admitted client's role.
type ClientJoinedPayload struct {
	IsHost bool `json:"isHost"`
}

// ClientJoined publishes an info event when a client is admitted.
func ClientJoined(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload ClientJoinedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventClientJoined,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategorySystem,
		Payload:  payload,
		Extra:    extra,
	})
}

// ClientDisconnectedPayload captures why the connection was lost.
type ClientDisconnectedPayload struct {
	Reason string `json:"reason"`
}

// ClientDisconnected publishes an info event when a client disconnects.
func ClientDisconnected(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload ClientDisconnectedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventClientDisconnected,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategorySystem,
		Payload:  payload,
		Extra:    extra,
	})
}
