package sim

import "github.com/pjtunstall/by-a-thread/internal/protocol"

// Engine defines the minimal surface area the tick loop drives: apply the
// commands staged for this tick, advance the world by one fixed step, and
// report the resulting authoritative snapshot for the given tick. Per-
// recipient local-player detail is layered on top by the transport layer,
// not by Engine.Snapshot itself.
type Engine interface {
	Apply([]Command) error
	// Step advances the world by one fixed tick, labeled tick, so held input
	// can be aged against the tick it was last refreshed on (the
	// zero-order-hold safety-cap decay) rather than only a local counter.
	Step(tick uint64)
	Snapshot(tick uint64) protocol.Snapshot
	RemovedPlayers() []string
}
