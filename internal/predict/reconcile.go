// Package predict implements client-side reconciliation and prediction for
// the local player: replaying held input history against the newest
// authoritative snapshot to keep the locally simulated avatar consistent
// with the server while staying locally responsive.
package predict

import (
	"github.com/pjtunstall/by-a-thread/internal/netbuf"
	"github.com/pjtunstall/by-a-thread/internal/protocol"
	"github.com/pjtunstall/by-a-thread/internal/sim"
)

// LocalState is the local player's simulated avatar state, carried at full
// precision (unlike the byte-quantized wire PlayerState).
type LocalState struct {
	X, Y, Yaw  float64
	VX, VY     float64
	Alive      bool
}

// FromSnapshot extracts the local player's authoritative state from a
// snapshot's local-player fields, which carry full-precision yaw and velocity.
func FromSnapshot(s protocol.Snapshot) LocalState {
	return LocalState{
		X:     float64(s.Local.X),
		Y:     float64(s.Local.Y),
		Yaw:   float64(s.Local.Yaw),
		VX:    float64(s.Local.VX),
		VY:    float64(s.Local.VY),
		Alive: true,
	}
}

// Reconciler owns the local player's input history and drives the
// reconcile-then-replay-then-apply-current-input sequence of §4.6.
type Reconciler struct {
	history *netbuf.NetworkBuffer[sim.PlayerInput]

	state             LocalState
	lastReconciled    netbuf.Tick
	haveReconciled    bool
	deathThisRound    bool
}

// NewReconciler constructs a Reconciler with a history buffer of the given
// capacity (a power of two) and safety margin.
func NewReconciler(historyCapacity int, safetyMargin netbuf.Tick) *Reconciler {
	return &Reconciler{
		history: netbuf.NewNetworkBuffer[sim.PlayerInput](historyCapacity, safetyMargin),
	}
}

// State returns the current local player state.
func (r *Reconciler) State() LocalState { return r.state }

// RecordInput stages the input sampled for tick in the history buffer, as
// required by the replay step to be able to reconstruct it later.
func (r *Reconciler) RecordInput(tick uint64, input sim.PlayerInput) {
	r.history.Insert(netbuf.Tick(tick), input)
}

// OnDeath marks the local player dead, suppressing reconciliation for this
// round per the ordering contract in §5 (a late death must not be
// overwritten by a stale snapshot processed afterward).
func (r *Reconciler) OnDeath() {
	r.state.Alive = false
	r.deathThisRound = true
}

// ResetRound clears the per-round death-suppression flag; callers invoke
// this once per frame before draining reliable messages.
func (r *Reconciler) ResetRound() {
	r.deathThisRound = false
}

// Reconcile performs steps 2-4 of §4.6: find the newest snapshot at or
// before currentTick, reconcile the local state to it if it's new, and
// replay held input from snapshot.tick+1 up to currentTick-1.
func (r *Reconciler) Reconcile(currentTick uint64, latestSnapshot protocol.Snapshot, haveSnapshot bool) {
	if r.deathThisRound {
		return
	}
	if !haveSnapshot {
		return
	}
	snapTick := netbuf.Tick(latestSnapshot.Tick)
	if snapTick > netbuf.Tick(currentTick) {
		return
	}
	if r.haveReconciled && snapTick == r.lastReconciled {
		return
	}

	r.state = FromSnapshot(latestSnapshot)
	r.lastReconciled = snapTick
	r.haveReconciled = true

	for t := snapTick + 1; t < netbuf.Tick(currentTick); t++ {
		input, ok := r.history.Get(t)
		if !ok {
			input = sim.PlayerInput{}
		}
		r.applyStep(input)
	}
}

// ApplyCurrentInput performs step 5 of §4.6: apply this tick's freshly
// gathered input and advance one step.
func (r *Reconciler) ApplyCurrentInput(input sim.PlayerInput) {
	if r.deathThisRound {
		return
	}
	r.applyStep(input)
}

func (r *Reconciler) applyStep(input sim.PlayerInput) {
	nx, ny, nyaw, vx, vy := sim.StepKinematics(r.state.X, r.state.Y, r.state.Yaw, input)
	r.state.X, r.state.Y, r.state.Yaw, r.state.VX, r.state.VY = nx, ny, nyaw, vx, vy
}
