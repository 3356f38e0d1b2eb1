// Package bullets implements client-side bullet extrapolation: provisional
// local bullets spawned optimistically on fire, promoted to authoritative
// state when the server confirms them, and a display position that lags
// the authoritative position by a fixed blend factor so promotions and
// collision snaps smooth out visually over a few ticks.
package bullets

import "github.com/pjtunstall/by-a-thread/internal/protocol"

// ConfirmationTimeout bounds how long an unconfirmed provisional bullet is
// kept before being cancelled.
const ConfirmationTimeout = 0.5 // seconds

// DisplayBlendFactor is the fraction of the remaining gap the displayed
// position closes toward the authoritative position each tick.
const DisplayBlendFactor = 0.25

// Vec3 is a plain 3D vector; bullets live in full floating precision on
// the client regardless of the byte-quantized wire format used elsewhere.
type Vec3 struct {
	X, Y, Z float64
}

func (v Vec3) add(o Vec3) Vec3 {
	return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

func (v Vec3) scale(s float64) Vec3 {
	return Vec3{v.X * s, v.Y * s, v.Z * s}
}

func (v Vec3) lerp(o Vec3, t float64) Vec3 {
	return Vec3{
		X: v.X + (o.X-v.X)*t,
		Y: v.Y + (o.Y-v.Y)*t,
		Z: v.Z + (o.Z-v.Z)*t,
	}
}

// Bullet is one client-tracked projectile, local or remote.
type Bullet struct {
	ID          string
	Owner       string
	Pos         Vec3
	Vel         Vec3
	SpawnTick   uint64
	DisplayedPos Vec3

	Provisional bool
	AgeSeconds  float64
}

// SpawnProvisional creates a locally-predicted bullet at fire time, before
// any server confirmation, using a client-chosen id.
func SpawnProvisional(id, owner string, pos, vel Vec3, spawnTick uint64) Bullet {
	return Bullet{
		ID:           id,
		Owner:        owner,
		Pos:          pos,
		Vel:          vel,
		SpawnTick:    spawnTick,
		DisplayedPos: pos,
		Provisional:  true,
	}
}

// SpawnRemote creates a bullet tracked purely from server confirmations,
// with its initial displayed position taken from the shooter's
// interpolated position rather than the bullet's own spawn point (per
// §4.8's remote-bullet rationale).
func SpawnRemote(id, owner string, shooterInterpolatedPos Vec3, pos, vel Vec3, spawnTick uint64) Bullet {
	return Bullet{
		ID:           id,
		Owner:        owner,
		Pos:          pos,
		Vel:          vel,
		SpawnTick:    spawnTick,
		DisplayedPos: shooterInterpolatedPos,
	}
}

// Promote replaces a provisional bullet's position/velocity with the
// server's authoritative BulletSpawned payload, on confirmation.
func (b *Bullet) Promote(authoritativePos, authoritativeVel Vec3) {
	b.Pos = authoritativePos
	b.Vel = authoritativeVel
	b.Provisional = false
}

// Bounce snaps authoritative state on a reliable BulletBounced message; the
// displayed position is left untouched so it continues blending toward the
// new trajectory rather than teleporting.
func (b *Bullet) Bounce(newPos, newVel Vec3) {
	b.Pos = newPos
	b.Vel = newVel
}

// Advance integrates pos by one tick and blends displayed position toward
// it, per §4.8's every-tick update.
func (b *Bullet) Advance() {
	b.Pos = b.Pos.add(b.Vel.scale(protocol.TickDT))
	b.DisplayedPos = b.DisplayedPos.lerp(b.Pos, DisplayBlendFactor)
	b.AgeSeconds += protocol.TickDT
}

// ShouldCancel reports whether an unconfirmed provisional bullet has
// exceeded ConfirmationTimeout and must be removed.
func (b *Bullet) ShouldCancel() bool {
	return b.Provisional && b.AgeSeconds >= ConfirmationTimeout
}

// Tracker owns the client's set of tracked bullets, keyed by id.
type Tracker struct {
	bullets map[string]*Bullet
}

// NewTracker constructs an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{bullets: make(map[string]*Bullet)}
}

// Add registers a bullet (provisional or remote) under its id.
func (t *Tracker) Add(b Bullet) {
	stored := b
	t.bullets[b.ID] = &stored
}

// Get returns the tracked bullet for id, if present.
func (t *Tracker) Get(id string) (*Bullet, bool) {
	b, ok := t.bullets[id]
	return b, ok
}

// Remove drops id from tracking, e.g. on expiry or cancellation.
func (t *Tracker) Remove(id string) {
	delete(t.bullets, id)
}

// Advance steps every tracked bullet by one tick and removes any
// provisional bullet whose confirmation window has elapsed.
func (t *Tracker) Advance() {
	for id, b := range t.bullets {
		b.Advance()
		if b.ShouldCancel() {
			delete(t.bullets, id)
		}
	}
}

// All returns a snapshot slice of currently tracked bullets.
func (t *Tracker) All() []Bullet {
	out := make([]Bullet, 0, len(t.bullets))
	for _, b := range t.bullets {
		out = append(out, *b)
	}
	return out
}
