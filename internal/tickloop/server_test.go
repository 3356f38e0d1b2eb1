package tickloop

import (
	"testing"

	"github.com/pjtunstall/by-a-thread/internal/protocol"
	"github.com/pjtunstall/by-a-thread/internal/sim"
)

type fakeEngine struct {
	applied [][]sim.Command
	steps   int
	removed []string
}

func (f *fakeEngine) Apply(cmds []sim.Command) error {
	f.applied = append(f.applied, cmds)
	return nil
}

func (f *fakeEngine) Step(tick uint64) { f.steps++ }

func (f *fakeEngine) Snapshot(tick uint64) protocol.Snapshot {
	return protocol.Snapshot{Tick: tick}
}

func (f *fakeEngine) RemovedPlayers() []string {
	removed := f.removed
	f.removed = nil
	return removed
}

func TestServerLoopEnqueueRespectsPerActorLimit(t *testing.T) {
	engine := &fakeEngine{}
	loop := NewServerLoop(engine, sim.Deps{}, ServerConfig{
		CommandCapacity: 16,
		PerActorLimit:   2,
	}, Hooks{})

	ok, _ := loop.Enqueue(sim.Command{ActorID: "a"})
	if !ok {
		t.Fatalf("first enqueue should succeed")
	}
	ok, _ = loop.Enqueue(sim.Command{ActorID: "a"})
	if !ok {
		t.Fatalf("second enqueue should succeed")
	}
	ok, reason := loop.Enqueue(sim.Command{ActorID: "a"})
	if ok || reason != CommandRejectQueueLimit {
		t.Fatalf("third enqueue for same actor should be rejected with queue_limit, got ok=%v reason=%q", ok, reason)
	}
}

func TestServerLoopAdvanceAppliesDrainedCommandsAndSteps(t *testing.T) {
	engine := &fakeEngine{}
	loop := NewServerLoop(engine, sim.Deps{}, ServerConfig{CommandCapacity: 16}, Hooks{})

	loop.Enqueue(sim.Command{ActorID: "a"})
	loop.Enqueue(sim.Command{ActorID: "b"})

	result := loop.Advance(TickContext{Tick: 1})

	if engine.steps != 1 {
		t.Fatalf("expected one Step call, got %d", engine.steps)
	}
	if len(engine.applied) != 1 || len(engine.applied[0]) != 2 {
		t.Fatalf("expected one Apply call with 2 commands, got %+v", engine.applied)
	}
	if result.Snapshot.Tick != 1 {
		t.Fatalf("expected snapshot tick 1, got %d", result.Snapshot.Tick)
	}
	if loop.Pending() != 0 {
		t.Fatalf("expected buffer drained after Advance, got %d pending", loop.Pending())
	}
}

func TestServerLoopAdvanceReportsRemovedPlayers(t *testing.T) {
	engine := &fakeEngine{removed: []string{"gone"}}
	loop := NewServerLoop(engine, sim.Deps{}, ServerConfig{CommandCapacity: 4}, Hooks{})

	result := loop.Advance(TickContext{Tick: 1})
	if len(result.RemovedPlayers) != 1 || result.RemovedPlayers[0] != "gone" {
		t.Fatalf("expected removed players [gone], got %v", result.RemovedPlayers)
	}
}
