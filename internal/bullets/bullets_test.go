package bullets

import (
	"math"
	"testing"
)

func TestSpawnProvisionalStartsDisplayedAtPos(t *testing.T) {
	b := SpawnProvisional("b1", "alice", Vec3{X: 1, Y: 2, Z: 3}, Vec3{X: 10}, 5)
	if !b.Provisional {
		t.Fatalf("expected provisional bullet")
	}
	if b.DisplayedPos != b.Pos {
		t.Fatalf("expected displayed position to start at spawn pos, got %+v vs %+v", b.DisplayedPos, b.Pos)
	}
}

func TestPromoteReplacesAuthoritativeStateButKeepsDisplayed(t *testing.T) {
	b := SpawnProvisional("b1", "alice", Vec3{X: 0}, Vec3{X: 10}, 5)
	b.Advance()
	displayedBefore := b.DisplayedPos

	b.Promote(Vec3{X: 50, Y: 1}, Vec3{X: 20})

	if b.Provisional {
		t.Fatalf("expected Provisional to be cleared after promotion")
	}
	if b.Pos.X != 50 || b.Vel.X != 20 {
		t.Fatalf("expected authoritative pos/vel to be applied, got pos=%+v vel=%+v", b.Pos, b.Vel)
	}
	if b.DisplayedPos != displayedBefore {
		t.Fatalf("expected displayed position to be left alone by promotion, got %+v want %+v", b.DisplayedPos, displayedBefore)
	}
}

func TestAdvanceBlendsDisplayedTowardAuthoritative(t *testing.T) {
	b := Bullet{Pos: Vec3{X: 0}, DisplayedPos: Vec3{X: 0}, Vel: Vec3{}}
	b.Promote(Vec3{X: 100}, Vec3{})

	b.Advance()
	if b.DisplayedPos.X <= 0 || b.DisplayedPos.X >= 100 {
		t.Fatalf("expected displayed position to move partway toward authoritative pos, got %v", b.DisplayedPos.X)
	}

	want := DisplayBlendFactor * 100
	if math.Abs(b.DisplayedPos.X-want) > 1e-9 {
		t.Fatalf("expected displayed X == %v after one blend step, got %v", want, b.DisplayedPos.X)
	}
}

func TestProvisionalBulletCancelledAfterTimeout(t *testing.T) {
	b := SpawnProvisional("b1", "alice", Vec3{}, Vec3{}, 0)
	ticksBeforeTimeout := int(ConfirmationTimeout/(1.0/60.0)) - 1
	for i := 0; i < ticksBeforeTimeout; i++ {
		if b.ShouldCancel() {
			t.Fatalf("should not cancel before confirmation timeout elapses, at i=%d age=%v", i, b.AgeSeconds)
		}
		b.Advance()
	}

	for b.AgeSeconds < ConfirmationTimeout {
		b.Advance()
	}
	if !b.ShouldCancel() {
		t.Fatalf("expected cancellation once age %v reaches timeout %v", b.AgeSeconds, ConfirmationTimeout)
	}
}

func TestTrackerAdvanceRemovesCancelledProvisional(t *testing.T) {
	tr := NewTracker()
	tr.Add(SpawnProvisional("b1", "alice", Vec3{}, Vec3{}, 0))

	ticksToTimeout := int(ConfirmationTimeout/ (1.0/60.0)) + 2
	for i := 0; i < ticksToTimeout; i++ {
		tr.Advance()
	}

	if _, ok := tr.Get("b1"); ok {
		t.Fatalf("expected unconfirmed provisional bullet to be removed after timeout")
	}
}

func TestTrackerAdvanceKeepsConfirmedBullet(t *testing.T) {
	tr := NewTracker()
	tr.Add(SpawnProvisional("b1", "alice", Vec3{}, Vec3{}, 0))
	b, _ := tr.Get("b1")
	b.Promote(Vec3{}, Vec3{})

	ticksToTimeout := int(ConfirmationTimeout/(1.0/60.0)) + 2
	for i := 0; i < ticksToTimeout; i++ {
		tr.Advance()
	}

	if _, ok := tr.Get("b1"); !ok {
		t.Fatalf("expected confirmed bullet to survive past the confirmation window")
	}
}

func TestSpawnRemoteSeedsDisplayedFromShooterPosition(t *testing.T) {
	shooterPos := Vec3{X: 7, Y: 8, Z: 9}
	b := SpawnRemote("b2", "bob", shooterPos, Vec3{X: 100}, Vec3{X: 1}, 5)

	if b.DisplayedPos != shooterPos {
		t.Fatalf("expected remote bullet's displayed position to start at the shooter's interpolated position, got %+v", b.DisplayedPos)
	}
	if b.Pos.X != 100 {
		t.Fatalf("expected remote bullet's authoritative pos to be the extrapolated trajectory start, got %+v", b.Pos)
	}
	if b.Provisional {
		t.Fatalf("remote bullets are never provisional")
	}
}

func TestBounceLeavesDisplayedPositionUnchanged(t *testing.T) {
	b := Bullet{Pos: Vec3{X: 10}, DisplayedPos: Vec3{X: 4}, Vel: Vec3{X: 1}}
	b.Bounce(Vec3{X: -10}, Vec3{X: -1})

	if b.Pos.X != -10 || b.Vel.X != -1 {
		t.Fatalf("expected bounce to snap authoritative pos/vel, got pos=%+v vel=%+v", b.Pos, b.Vel)
	}
	if b.DisplayedPos.X != 4 {
		t.Fatalf("expected displayed position to be untouched by bounce, got %v", b.DisplayedPos.X)
	}
}
