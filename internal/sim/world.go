package sim

import (
	"math"
	"sync"

	"github.com/pjtunstall/by-a-thread/internal/netbuf"
	"github.com/pjtunstall/by-a-thread/internal/protocol"
)

// translateVectors maps each TranslateDirection to a unit-ish movement
// vector in the XY plane; the actual geometry/physics of movement and
// collision against maze walls is an external collaborator per §1 of the
// specification, so World.Step applies a minimal placeholder integration
// rather than colliding against any maze geometry.
var translateVectors = [9][2]float64{
	TranslateNone: {0, 0},
	TranslateN:    {0, 1},
	TranslateNE:   {0.70710678, 0.70710678},
	TranslateE:    {1, 0},
	TranslateSE:   {0.70710678, -0.70710678},
	TranslateS:    {0, -1},
	TranslateSW:   {-0.70710678, -0.70710678},
	TranslateW:    {-1, 0},
	TranslateNW:   {-0.70710678, 0.70710678},
}

// rotateRates maps each RotateDirection to a yaw delta in radians/tick.
var rotateRates = [9]float64{
	RotateNone: 0,
	RotateN:    0,
	RotateNE:   0.02,
	RotateE:    0.04,
	RotateSE:   0.02,
	RotateS:    0,
	RotateSW:   -0.02,
	RotateW:    -0.04,
	RotateNW:   -0.02,
}

// MoveSpeed is the placeholder linear speed in world units per second.
const MoveSpeed = 4.0

// inputHistoryCapacity is the per-player input history's ring size, 128
// ticks per §4.1: enough to cover the input-replay window reconciliation
// needs plus slack for jitter, a power of two as netbuf.Ring requires.
const inputHistoryCapacity = 128

// inputDecayTicks bounds how long the world continues zero-order-holding a
// player's last received input before decaying it to empty: 0.5s of silence
// at protocol.TickRate, per §4.5/§5's safety cap against a disconnected or
// stalled client's avatar drifting forever on stale intent.
const inputDecayTicks = protocol.TickRate / 2

// actor is the authoritative per-player state the World owns.
type actor struct {
	id      string
	x, y, z float64
	yaw     float64
	pitch   float64
	vx, vy  float64
	slot    int
	alive   bool

	inputs        *netbuf.NetworkBuffer[PlayerInput]
	lastHeld      PlayerInput
	lastInputTick netbuf.Tick
	haveInput     bool
}

// World is the authoritative simulation state: an opaque implementation of
// the external "simulation step" contract in §6, deterministic and
// timestep-independent aside from the fixed Δt it is called with.
type World struct {
	mu      sync.Mutex
	deps    Deps
	actors  map[string]*actor
	slots   [protocolMaxPlayers]string // slot -> actor id, "" if free
	removed []string
}

const protocolMaxPlayers = protocol.MaxPlayers

// NewWorld constructs an empty World.
func NewWorld(deps Deps) *World {
	return &World{
		deps:   deps,
		actors: make(map[string]*actor),
	}
}

// Deps returns the injected dependencies.
func (w *World) Deps() Deps {
	return w.deps
}

// AddPlayer admits a new player into the world at a free slot, returning
// false if the world is at MaxPlayers capacity.
func (w *World) AddPlayer(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, exists := w.actors[id]; exists {
		return true
	}
	slot := -1
	for i, occupant := range w.slots {
		if occupant == "" {
			slot = i
			break
		}
	}
	if slot < 0 {
		return false
	}
	w.slots[slot] = id
	w.actors[id] = &actor{
		id:     id,
		slot:   slot,
		alive:  true,
		inputs: netbuf.NewNetworkBuffer[PlayerInput](inputHistoryCapacity, 0),
	}
	return true
}

// RemovePlayer evicts id from the world, freeing its slot.
func (w *World) RemovePlayer(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	a, ok := w.actors[id]
	if !ok {
		return
	}
	w.slots[a.slot] = ""
	delete(w.actors, id)
	w.removed = append(w.removed, id)
}

// Apply stages input/heartbeat commands against their target actors. Per
// §6's determinism requirement, Apply itself performs no time-dependent
// work; it only inserts each input into the actor's 128-tick ring (§4.1) at
// the slot tagged with its own target tick. It never collapses several
// inputs from one batch into a single "latest" value — which tick's input
// gets consumed, and when, is entirely Step's decision.
func (w *World) Apply(cmds []Command) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, cmd := range cmds {
		a, ok := w.actors[cmd.ActorID]
		if !ok {
			continue
		}
		switch cmd.Type {
		case CommandInput:
			if cmd.Input != nil {
				a.inputs.Insert(netbuf.Tick(cmd.Input.TargetTick), *cmd.Input)
			}
		case CommandHeartbeat:
			// Heartbeat bookkeeping lives in the transport/session layer;
			// the world only needs to know the actor is still live, which
			// AddPlayer/RemovePlayer already encode.
		}
	}
	return nil
}

// Step advances every actor by one fixed tick labeled tick, per-tick
// applying whatever input is tagged for exactly tick (§4.5) and
// zero-order-holding the previous value otherwise, decaying it to empty
// once it has gone stale past inputDecayTicks — the safety cap of §5
// against a silent connection leaving an avatar coasting on ancient intent
// forever.
func (w *World) Step(tick uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, a := range w.actors {
		w.stepActor(a, netbuf.Tick(tick))
	}
}

func (w *World) stepActor(a *actor, tick netbuf.Tick) {
	if !a.alive {
		return
	}
	held := w.heldInput(a, tick)
	a.x, a.y, a.yaw, a.vx, a.vy = StepKinematics(a.x, a.y, a.yaw, held)
}

// heldInput implements §4.5's per-tick apply: it reads the ring slot tagged
// exactly with tick and, on a hit, consumes it — refreshing what's held and
// invalidating the slot so a later wraparound can never replay it. On a
// miss it zero-order-holds whatever was last consumed, decaying to empty
// once more than inputDecayTicks have elapsed since that last refresh.
func (w *World) heldInput(a *actor, tick netbuf.Tick) PlayerInput {
	if input, ok := a.inputs.Get(tick); ok {
		a.inputs.Invalidate(tick)
		a.lastHeld = input
		a.lastInputTick = tick
		a.haveInput = true
		return input
	}
	if !a.haveInput {
		return PlayerInput{}
	}
	if tick > a.lastInputTick && uint64(tick-a.lastInputTick) > inputDecayTicks {
		return PlayerInput{}
	}
	return a.lastHeld
}

// StepKinematics is the pure, deterministic per-tick movement integration
// shared by the authoritative World and the client-side predictor, so that
// client replay (§4.6) reproduces exactly what the server would have done.
// It has no side effects and depends only on its arguments, per §6's
// determinism requirement for the simulation step.
func StepKinematics(x, y, yaw float64, held PlayerInput) (nx, ny, nyaw, vx, vy float64) {
	dir := translateVectors[held.Translate]
	vx = dir[0] * MoveSpeed
	vy = dir[1] * MoveSpeed
	nx = x + vx*protocol.TickDT
	ny = y + vy*protocol.TickDT
	nyaw = yaw + rotateRates[held.Rotate]
	nyaw = math.Mod(nyaw, 2*math.Pi)
	if nyaw < 0 {
		nyaw += 2 * math.Pi
	}
	return nx, ny, nyaw, vx, vy
}

// SetAlive marks an actor dead or alive, used by the death-ordering contract
// in §5/§4.6: reconciliation for a dead local player is suppressed by the
// caller observing Alive()==false, not by World itself withholding state.
func (w *World) SetAlive(id string, alive bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if a, ok := w.actors[id]; ok {
		a.alive = alive
	}
}

// Snapshot copies the current authoritative state into a protocol.Snapshot
// tagged with tick. The per-recipient "local player" distinction (velocity
// and full-precision yaw for the receiving connection's own slot) is filled
// in by the transport layer per recipient, not here, since a World-level
// snapshot has no single "local" viewpoint.
func (w *World) Snapshot(tick uint64) protocol.Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	var s protocol.Snapshot
	s.Tick = tick
	s.LocalSlot = -1
	for _, a := range w.actors {
		ps := protocol.PlayerState{
			X:       float32(a.x),
			Y:       float32(a.y),
			Z:       float32(a.z),
			YawByte: protocol.EncodeYaw(a.yaw),
			Pitch:   float32(a.pitch),
		}
		s.SetSlot(a.slot, ps)
	}
	return s
}

// ActorVelocity returns the current velocity and full-precision yaw/pitch
// for id, used by the transport layer to populate Snapshot.Local for the
// recipient whose own player this is.
func (w *World) ActorVelocity(id string) (vx, vy, yaw, pitch float64, ok bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	a, exists := w.actors[id]
	if !exists {
		return 0, 0, 0, 0, false
	}
	return a.vx, a.vy, a.yaw, a.pitch, true
}

// InputAt returns the input id had staged for tick, if that slot of its
// 128-tick ring hasn't since been overwritten by a later write to the same
// modular index or invalidated by Step consuming it. Used by
// reconciliation diagnostics and tests to confirm the server retained what
// a client claims it sent, for ticks Step hasn't reached yet.
func (w *World) InputAt(id string, tick uint64) (PlayerInput, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	a, ok := w.actors[id]
	if !ok {
		return PlayerInput{}, false
	}
	return a.inputs.Get(netbuf.Tick(tick))
}

// SlotFor reports the slot assigned to id, if present.
func (w *World) SlotFor(id string) (int, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	a, ok := w.actors[id]
	if !ok {
		return 0, false
	}
	return a.slot, true
}

// RemovedPlayers returns and clears the list of player ids evicted since
// the last call, mirroring the donor's removed-players reporting hook that
// the tick loop surfaces to callers needing to know who dropped out.
func (w *World) RemovedPlayers() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.removed) == 0 {
		return nil
	}
	out := w.removed
	w.removed = nil
	return out
}

var _ Engine = (*World)(nil)
