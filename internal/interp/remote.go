// Package interp implements remote-player snapshot interpolation: render
// time trails the server-time estimate by a fixed delay, and remote
// players are rendered strictly between two bracketing snapshots, never
// extrapolated.
package interp

import "github.com/pjtunstall/by-a-thread/internal/protocol"

// InterpolationDelay is the fixed render-time offset behind the estimated
// server time, chosen so that two bracketing snapshots are almost always
// already available by the time a frame needs to render them.
const InterpolationDelay = 0.100 // seconds

// SnapshotSample pairs a Snapshot with the server time it corresponds to
// (tick * TICK_DT), since interpolation parameterizes on time, not tick
// count.
type SnapshotSample struct {
	Snapshot protocol.Snapshot
	Time     float64
}

// Bracket locates the two consecutive retained snapshots bracketing
// renderTime: S0.Time <= renderTime < S1.Time. samples must be sorted by
// Time ascending.
func Bracket(samples []SnapshotSample, renderTime float64) (s0, s1 SnapshotSample, have0, have1 bool) {
	for i := 0; i < len(samples); i++ {
		if samples[i].Time > renderTime {
			if i == 0 {
				return SnapshotSample{}, samples[0], false, true
			}
			return samples[i-1], samples[i], true, true
		}
	}
	if len(samples) > 0 {
		return samples[len(samples)-1], SnapshotSample{}, true, false
	}
	return SnapshotSample{}, SnapshotSample{}, false, false
}

// RemotePlayerState is the interpolated visual state for one remote player.
type RemotePlayerState struct {
	X, Y, Z float64
	Yaw     float64
	Active  bool
}

// InterpolateRemote computes the render state for slot at renderTime given
// the bracketing snapshots located by Bracket. Missing-bracket policy per
// §4.7: with only S0, freeze at S0 (no extrapolation, returned Active=true);
// with only S1 or with neither, withhold rendering (Active=false).
func InterpolateRemote(slot int, renderTime float64, s0, s1 SnapshotSample, have0, have1 bool) RemotePlayerState {
	if !have0 {
		return RemotePlayerState{}
	}
	p0, ok0 := s0.Snapshot.SlotFor(slot)
	if !ok0 {
		return RemotePlayerState{}
	}
	yaw0 := protocol.DecodeYaw(p0.YawByte)

	if !have1 {
		return RemotePlayerState{X: float64(p0.X), Y: float64(p0.Y), Z: float64(p0.Z), Yaw: yaw0, Active: true}
	}
	p1, ok1 := s1.Snapshot.SlotFor(slot)
	if !ok1 {
		// Active in S0 but not S1: freeze at S0 rather than fabricate a
		// destination, matching the "only S0 available" policy.
		return RemotePlayerState{X: float64(p0.X), Y: float64(p0.Y), Z: float64(p0.Z), Yaw: yaw0, Active: true}
	}

	span := s1.Time - s0.Time
	t := 0.0
	if span > 0 {
		t = (renderTime - s0.Time) / span
	}
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}

	yaw1 := protocol.DecodeYaw(p1.YawByte)
	return RemotePlayerState{
		X:      lerp(float64(p0.X), float64(p1.X), t),
		Y:      lerp(float64(p0.Y), float64(p1.Y), t),
		Z:      lerp(float64(p0.Z), float64(p1.Z), t),
		Yaw:    protocol.ShortestArcLerp(yaw0, yaw1, t),
		Active: true,
	}
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}
