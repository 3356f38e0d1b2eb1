package app

import (
	"math"

	"github.com/pjtunstall/by-a-thread/internal/protocol"
)

// BulletSpeed is the fixed muzzle velocity of every fired bullet, in world
// units per second. The maze/collision geometry a bullet bounces off is an
// external collaborator the specification excludes, so authoritative
// bullets here travel in a straight line until they expire.
const BulletSpeed = 20.0

// BulletLifetimeSeconds bounds how long an authoritative bullet survives
// before the server retires it with BulletExpired.
const BulletLifetimeSeconds = 3.0

type authoritativeBullet struct {
	id             uint32
	clientBulletID uint32
	shooterID      string
	pos, vel       [3]float32
	age            float64
}

// bulletRegistry tracks every in-flight authoritative bullet for one
// running game, assigning server-side ids and aging each bullet out after
// BulletLifetimeSeconds.
type bulletRegistry struct {
	nextID  uint32
	bullets map[uint32]*authoritativeBullet
}

func newBulletRegistry() *bulletRegistry {
	return &bulletRegistry{bullets: make(map[uint32]*authoritativeBullet)}
}

// Spawn assigns a new bullet id for a client-reported fire, normalizes the
// direction, and returns the authoritative BulletSpawned confirmation to
// broadcast.
func (r *bulletRegistry) Spawn(shooterID string, clientBulletID uint32, origin, direction [3]float32) protocol.BulletSpawned {
	r.nextID++
	dir := normalize(direction)
	vel := [3]float32{dir[0] * BulletSpeed, dir[1] * BulletSpeed, dir[2] * BulletSpeed}
	b := &authoritativeBullet{
		id:             r.nextID,
		clientBulletID: clientBulletID,
		shooterID:      shooterID,
		pos:            origin,
		vel:            vel,
	}
	r.bullets[b.id] = b
	return protocol.BulletSpawned{
		BulletID:       b.id,
		ClientBulletID: clientBulletID,
		ShooterID:      shooterID,
		Position:       b.pos,
		Velocity:       b.vel,
	}
}

// Advance integrates every tracked bullet by dt and reports the ids of any
// bullet that aged past BulletLifetimeSeconds this tick.
func (r *bulletRegistry) Advance(dt float64) (expired []uint32) {
	for id, b := range r.bullets {
		b.pos[0] += float32(float64(b.vel[0]) * dt)
		b.pos[1] += float32(float64(b.vel[1]) * dt)
		b.pos[2] += float32(float64(b.vel[2]) * dt)
		b.age += dt
		if b.age >= BulletLifetimeSeconds {
			expired = append(expired, id)
			delete(r.bullets, id)
		}
	}
	return expired
}

// Remove drops a bullet by id without reporting it as expired, used when a
// hit or a bounce event has already announced its fate.
func (r *bulletRegistry) Remove(id uint32) {
	delete(r.bullets, id)
}

func normalize(v [3]float32) [3]float32 {
	mag := math.Sqrt(float64(v[0])*float64(v[0]) + float64(v[1])*float64(v[1]) + float64(v[2])*float64(v[2]))
	if mag == 0 {
		return [3]float32{0, 0, 0}
	}
	inv := 1.0 / mag
	return [3]float32{
		float32(float64(v[0]) * inv),
		float32(float64(v[1]) * inv),
		float32(float64(v[2]) * inv),
	}
}
