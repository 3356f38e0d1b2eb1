// Package clock implements the client-side server-time estimator described
// in the tick/clock coordination subsystem: it turns a stream of jittery
// ServerTime beacon samples into a smoothly-corrected estimate of the
// server's wall-clock time, plus an asymmetrically-smoothed round-trip time.
package clock

import "math"

const (
	// AgePenalty weights how strongly a sample's age counts against it when
	// selecting the best retained sample.
	AgePenalty = 1.0

	// HardSnapThreshold is the estimate-vs-target error beyond which the
	// estimate snaps discontinuously instead of being nudged.
	HardSnapThreshold = 1.0 // seconds

	// NudgeGain is the fraction of the remaining error corrected per frame
	// when inside the hard-snap threshold.
	NudgeGain = 0.10

	// NudgeClamp bounds the magnitude of a single frame's proportional
	// correction.
	NudgeClamp = 0.002 // seconds (±2ms)

	// RTTSpikeAlpha blends a newly observed RTT into the smoothed RTT
	// quickly when the sample is worse than the current smoothed value.
	RTTSpikeAlpha = 0.1

	// RTTRecoverAlpha blends a newly observed RTT into the smoothed RTT
	// slowly when the sample is better than the current smoothed value.
	RTTRecoverAlpha = 0.01

	// RTTGarbageCap discards samples above this RTT outright.
	RTTGarbageCap = 1.0 // seconds

	// sampleRetention bounds how many recent samples are kept for best-of
	// selection.
	sampleRetention = 8
)

// Sample is one observation drawn from a ServerTime beacon.
type Sample struct {
	ServerTime   float64 // seconds, server's clock at send time
	LocalReceive float64 // seconds, local monotonic clock at receipt
	RTT          float64 // seconds
}

// Estimator maintains a client's best estimate of the server's current wall
// clock time and a smoothed round-trip time, per the clock-sync algorithm:
// best-sample selection by rtt+age penalty, hard-snap above a 1s error, and
// a clamped proportional nudge otherwise.
type Estimator struct {
	initialized bool
	estimate    float64 // seconds, current best guess of server time "now"
	localNow    float64 // seconds, local monotonic time of the last Advance
	smoothedRTT float64

	samples []Sample
}

// NewEstimator constructs an Estimator with no samples and an uninitialized
// estimate; the first ObserveBeacon call seeds it.
func NewEstimator() *Estimator {
	return &Estimator{}
}

// Advance moves the estimate forward by dt (the wall-clock duration of the
// last frame), before any beacon is applied this frame. Must be called once
// per client frame.
func (e *Estimator) Advance(dt float64) {
	if dt < 0 {
		dt = 0
	}
	e.estimate += dt
	e.localNow += dt
}

// EstimatedServerTime returns the current best estimate of server wall-clock
// time, in seconds.
func (e *Estimator) EstimatedServerTime() float64 {
	return e.estimate
}

// SmoothedRTT returns the current asymmetrically-smoothed round trip time,
// in seconds.
func (e *Estimator) SmoothedRTT() float64 {
	return e.smoothedRTT
}

// Initialized reports whether the estimator has ever ingested a beacon.
func (e *Estimator) Initialized() bool {
	return e.initialized
}

// ObserveBeacon records a ServerTime beacon sample, updates the smoothed RTT,
// selects the best retained sample, and applies the hard-snap/nudge
// correction to the running estimate.
func (e *Estimator) ObserveBeacon(serverTime, localReceive, rtt float64) {
	if rtt < 0 || rtt > RTTGarbageCap {
		return
	}

	e.updateSmoothedRTT(rtt)

	e.samples = append(e.samples, Sample{
		ServerTime:   serverTime,
		LocalReceive: localReceive,
		RTT:          rtt,
	})
	if len(e.samples) > sampleRetention {
		e.samples = e.samples[len(e.samples)-sampleRetention:]
	}

	best, bestAge := e.selectBest(localReceive)
	target := best.ServerTime + best.RTT/2 + bestAge

	if !e.initialized {
		e.estimate = target
		e.initialized = true
		return
	}

	errVal := target - e.estimate
	if math.Abs(errVal) > HardSnapThreshold {
		e.estimate = target
		return
	}

	const deadzone = 1e-4
	if math.Abs(errVal) < deadzone {
		return
	}
	correction := errVal * NudgeGain
	if correction > NudgeClamp {
		correction = NudgeClamp
	} else if correction < -NudgeClamp {
		correction = -NudgeClamp
	}
	e.estimate += correction
}

// selectBest picks the retained sample minimizing rtt + AgePenalty*age,
// where age is measured relative to now (the local monotonic receive time
// of the newest sample).
func (e *Estimator) selectBest(now float64) (Sample, float64) {
	var best Sample
	bestScore := math.Inf(1)
	var bestAge float64
	for _, s := range e.samples {
		age := now - s.LocalReceive
		if age < 0 {
			age = 0
		}
		score := s.RTT + AgePenalty*age
		if score < bestScore {
			bestScore = score
			best = s
			bestAge = age
		}
	}
	return best, bestAge
}

func (e *Estimator) updateSmoothedRTT(rtt float64) {
	if e.smoothedRTT == 0 {
		e.smoothedRTT = rtt
		return
	}
	if rtt > e.smoothedRTT {
		e.smoothedRTT += (rtt - e.smoothedRTT) * RTTSpikeAlpha
	} else {
		e.smoothedRTT += (rtt - e.smoothedRTT) * RTTRecoverAlpha
	}
}
