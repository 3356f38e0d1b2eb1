package clock

import (
	"math"
	"testing"
)

func TestObserveBeaconInitializesOnFirstSample(t *testing.T) {
	e := NewEstimator()
	if e.Initialized() {
		t.Fatalf("expected uninitialized before any beacon")
	}
	e.ObserveBeacon(100.0, 0.0, 0.04)
	if !e.Initialized() {
		t.Fatalf("expected initialized after first beacon")
	}
	want := 100.0 + 0.02
	if got := e.EstimatedServerTime(); math.Abs(got-want) > 1e-9 {
		t.Fatalf("estimate = %v, want %v", got, want)
	}
}

func TestHardSnapAboveOneSecondError(t *testing.T) {
	e := NewEstimator()
	e.ObserveBeacon(100.0, 0.0, 0.0)
	if got := e.EstimatedServerTime(); math.Abs(got-100.0) > 1e-9 {
		t.Fatalf("seed estimate = %v, want 100.0", got)
	}

	// Next beacon, received 0.1s later locally, outscores the aged first
	// sample and implies target ~101.52s (101.5 + 0.02 rtt/2); error > 1s => snap.
	e.ObserveBeacon(101.5, 0.1, 0.04)
	want := 101.52
	if got := e.EstimatedServerTime(); math.Abs(got-want) > 1e-6 {
		t.Fatalf("estimate after snap = %v, want %v", got, want)
	}
}

func TestNudgeIsClampedAndSigned(t *testing.T) {
	e := NewEstimator()
	e.ObserveBeacon(100.0, 0.0, 0.0)
	// A fresher beacon (0.1s later locally) with a small error well within
	// the hard-snap threshold.
	e.ObserveBeacon(100.5, 0.1, 0.0)
	got := e.EstimatedServerTime()
	if got <= 100.0 || got > 100.0+NudgeClamp+1e-9 {
		t.Fatalf("estimate = %v, want in (100.0, %v]", got, 100.0+NudgeClamp)
	}
}

func TestRTTGarbageCapRejectsOutliers(t *testing.T) {
	e := NewEstimator()
	e.ObserveBeacon(100.0, 0.0, 0.01)
	before := e.SmoothedRTT()
	e.ObserveBeacon(200.0, 10.0, 5.0) // garbage RTT, should be dropped
	if got := e.SmoothedRTT(); got != before {
		t.Fatalf("smoothed RTT changed from garbage sample: %v -> %v", before, got)
	}
}

func TestSmoothedRTTAsymmetricBlend(t *testing.T) {
	e := NewEstimator()
	e.ObserveBeacon(0, 0, 0.05)
	spikeRTT := e.SmoothedRTT()
	if spikeRTT != 0.05 {
		t.Fatalf("seed smoothed rtt = %v, want 0.05", spikeRTT)
	}

	e.ObserveBeacon(1, 1, 0.5) // spike up: fast reaction (alpha=0.1)
	up := e.SmoothedRTT()
	wantUp := 0.05 + (0.5-0.05)*RTTSpikeAlpha
	if math.Abs(up-wantUp) > 1e-9 {
		t.Fatalf("spike blend = %v, want %v", up, wantUp)
	}

	e.ObserveBeacon(2, 2, 0.01) // recover down: slow reaction (alpha=0.01)
	down := e.SmoothedRTT()
	wantDown := up + (0.01-up)*RTTRecoverAlpha
	if math.Abs(down-wantDown) > 1e-9 {
		t.Fatalf("recover blend = %v, want %v", down, wantDown)
	}
}

func TestAdvanceMovesEstimateForward(t *testing.T) {
	e := NewEstimator()
	e.ObserveBeacon(100.0, 0.0, 0.0)
	e.Advance(0.1)
	if got := e.EstimatedServerTime(); math.Abs(got-100.1) > 1e-9 {
		t.Fatalf("estimate after advance = %v, want 100.1", got)
	}
}
