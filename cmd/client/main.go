// Command client is a headless reference driver for the client-side
// netcode stack: it runs the full admission handshake, clock sync,
// tick-scheduled prediction/reconciliation, remote-player interpolation,
// and bullet tracking against a real server, without any rendering or
// human input attached. It exists to exercise the wire protocol and the
// client packages end to end; a real game client drives the same
// packages from its input/render loop instead of this file's timers.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/pjtunstall/by-a-thread/internal/bullets"
	"github.com/pjtunstall/by-a-thread/internal/clock"
	"github.com/pjtunstall/by-a-thread/internal/interp"
	"github.com/pjtunstall/by-a-thread/internal/netbuf"
	"github.com/pjtunstall/by-a-thread/internal/predict"
	"github.com/pjtunstall/by-a-thread/internal/protocol"
	"github.com/pjtunstall/by-a-thread/internal/session"
	"github.com/pjtunstall/by-a-thread/internal/sim"
	"github.com/pjtunstall/by-a-thread/internal/tickloop"
	"github.com/pjtunstall/by-a-thread/internal/transport"
	"github.com/pjtunstall/by-a-thread/internal/transport/ws"
)

// frameInterval is the headless driver's own poll cadence, independent of
// the fixed TickDT the scheduler steps the simulation at.
const frameInterval = 10 * time.Millisecond

// reconcileHistoryCapacity must be a power of two per netbuf.Ring.
const reconcileHistoryCapacity = 256

// snapshotHistoryLimit bounds how many SnapshotSamples remote interpolation
// keeps around; older ones are no longer useful once render time has
// passed them.
const snapshotHistoryLimit = 16

func main() {
	addr := flag.String("addr", "", "server address, host:port")
	passcode := flag.String("passcode", "", "lobby passcode")
	username := flag.String("username", "bot", "display username to request")
	difficulty := flag.Uint("difficulty", 0, "difficulty level to choose if appointed host")
	autostart := flag.Duration("autostart", 2*time.Second, "delay before the host auto-starts the game once chat is reached; 0 disables")
	flag.Parse()

	if *addr == "" || *passcode == "" {
		fmt.Fprintln(os.Stderr, "usage: client -addr host:port -passcode CODE [-username NAME] [-difficulty N] [-autostart DURATION]")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b := newBot(*addr, *passcode, *username, uint8(*difficulty), *autostart)
	if err := b.run(ctx); err != nil {
		log.Fatalf("%v", err)
	}
}

// bot drives one client session through the full admission/lobby/game
// lifecycle, maintaining exactly the state a real client would: the
// session phase machine, the clock estimator, the tick scheduler, local
// prediction/reconciliation, remote interpolation samples, and tracked
// bullets.
type bot struct {
	addr       string
	passcode   string
	username   string
	difficulty uint8
	autostart  time.Duration

	logger *log.Logger

	handle    *ws.ClientHandle
	state     *session.ClientState
	estimator *clock.Estimator
	scheduler *tickloop.ClientScheduler

	reconciler   *predict.Reconciler
	snapUnwrap   netbuf.Unwrapper
	samples      []interp.SnapshotSample
	remoteStates [protocol.MaxPlayers]interp.RemotePlayerState
	bulletTrk    *bullets.Tracker

	clientID string
	isHost   bool
	token    string

	countdownStartTick uint64
	chatEnteredAt      time.Time

	started bool
}

func newBot(addr, passcode, username string, difficulty uint8, autostart time.Duration) *bot {
	b := &bot{
		addr:       addr,
		passcode:   passcode,
		username:   username,
		difficulty: difficulty,
		autostart:  autostart,
		logger:     log.New(os.Stdout, "[client] ", log.LstdFlags),
		handle:     ws.NewClientHandle(),
		state:      session.NewClientState(addr),
		estimator:  clock.NewEstimator(),
		bulletTrk:  bullets.NewTracker(),
	}
	b.scheduler = tickloop.NewClientScheduler(b.estimator)
	b.reconciler = predict.NewReconciler(reconcileHistoryCapacity, netbuf.Tick(3))
	b.scheduler.Sample = b.sampleInput
	b.scheduler.StepSim = b.stepSim
	b.scheduler.OnSpiral = func(ticks int, remainder float64) {
		b.logger.Printf("spiral guard: capped at %d ticks this frame, %.3fs remainder dropped", ticks, remainder)
	}
	return b
}

func (b *bot) run(ctx context.Context) error {
	if _, auto := b.state.EnterServerAddress(); !auto {
		return fmt.Errorf("client: no server address given")
	}
	b.state.SubmitPasscode()

	if err := b.handle.Connect(b.addr, ""); err != nil {
		return fmt.Errorf("client: connect: %w", err)
	}
	defer b.handle.Disconnect("client exit")

	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()

	last := time.Now()
	start := last
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			last = now
			b.estimator.Advance(dt)

			b.reconciler.ResetRound()

			for _, ev := range b.handle.Poll(now) {
				b.onTransportEvent(ev)
			}
			b.drainReliable()
			b.drainUnreliable(now.Sub(start).Seconds())

			if b.state.Top() == session.ClientLobby {
				b.tickLobby()
			}
			if b.state.Top() == session.ClientGame {
				result := b.scheduler.ScheduleFrame(dt)
				if result.Clamped {
					b.logger.Printf("hard snap: simulated time jumped to catch up with server estimate")
				}
				b.renderRemotes()
			}
			if b.state.Top() == session.ClientDisconnected {
				return nil
			}
		}
	}
}

func (b *bot) onTransportEvent(ev transport.Event) {
	switch ev.Kind {
	case transport.EventConnected:
		b.state.OnConnected()
		b.sendPasscode()
	case transport.EventDisconnected:
		t := b.state.OnDisconnected(ev.Reason)
		b.logger.Printf("disconnected: %s", t.DisconnectReason)
	}
}

func (b *bot) sendPasscode() {
	payload, err := protocol.EncodePasscode(b.passcode)
	if err != nil {
		b.logger.Printf("encode passcode: %v", err)
		return
	}
	if err := b.handle.Send(transport.ReliableOrdered, payload); err != nil {
		b.logger.Printf("send passcode: %v", err)
	}
}

func (b *bot) drainReliable() {
	for {
		payload, ok := b.handle.Receive(transport.ReliableOrdered)
		if !ok {
			return
		}
		msg, err := protocol.DecodeServerMessage(payload)
		if err != nil {
			b.logger.Printf("decode reliable message: %v", err)
			continue
		}
		b.onServerMessage(msg)
	}
}

func (b *bot) drainUnreliable(localClockSeconds float64) {
	for {
		payload, ok := b.handle.Receive(transport.Unreliable)
		if !ok {
			return
		}
		msg, err := protocol.DecodeServerMessage(payload)
		if err == nil {
			if st, ok := msg.(protocol.ServerTime); ok {
				b.estimator.ObserveBeacon(st.ServerSeconds, localClockSeconds, b.handle.RTT())
			}
			continue
		}
		b.onSnapshotFrame(payload)
	}
}

func (b *bot) onSnapshotFrame(payload []byte) {
	wireTick, snap, err := protocol.DecodeSnapshot(payload)
	if err != nil {
		b.logger.Printf("decode snapshot: %v", err)
		return
	}
	tick, _ := b.snapUnwrap.Unwrap(wireTick)
	snap.Tick = uint64(tick)

	b.samples = append(b.samples, interp.SnapshotSample{Snapshot: snap, Time: float64(snap.Tick) * protocol.TickDT})
	if len(b.samples) > snapshotHistoryLimit {
		b.samples = b.samples[len(b.samples)-snapshotHistoryLimit:]
	}

	if snap.LocalSlot >= 0 {
		b.reconciler.Reconcile(b.scheduler.CurrentTick(), snap, true)
	}
}

func (b *bot) onServerMessage(msg any) {
	switch m := msg.(type) {
	case protocol.AuthOk:
		b.clientID = m.ClientID
		b.isHost = m.IsHost
		b.token = m.Token
		b.logger.Printf("admitted as %s (host=%v), reconnect token issued", m.ClientID, m.IsHost)
		b.state.OnAuthOk()
		b.state.IsHost = m.IsHost
		b.sendUsername(b.username)
	case protocol.AuthFailed:
		b.state.OnAuthFailed()
		if m.Reason == "try_again" {
			b.state.SubmitPasscode()
			b.sendPasscode()
		} else {
			b.logger.Printf("admission rejected: %s", m.Reason)
		}
	case protocol.UsernameAck:
		b.state.OnUsernameAck()
		b.chatEnteredAt = time.Now()
	case protocol.UsernameReject:
		b.state.OnUsernameReject()
		retry := fmt.Sprintf("%s-%d", b.username, rand.Intn(1000))
		b.sendUsername(retry)
	case protocol.Roster:
		b.logger.Printf("roster: %d online", len(m.Online))
	case protocol.UserJoined:
		b.logger.Printf("joined: %s", m.Identity.Username)
	case protocol.UserLeft:
		b.logger.Printf("left: %s", m.ClientID)
	case protocol.AppointHost:
		if m.ClientID == b.clientID {
			b.isHost = true
			b.state.IsHost = true
		}
	case protocol.ChatBroadcast:
		b.logger.Printf("chat %s: %s", m.ClientID, m.Text)
	case protocol.SystemMessage:
		b.logger.Printf("system: %s", m.Text)
	case protocol.BeginDifficultySelection:
		b.state.OnBeginDifficultySelection()
		if b.isHost {
			b.sendDifficultyChoice()
		}
	case protocol.DenyDifficultySelection:
		b.logger.Printf("difficulty selection denied: %s", m.Reason)
	case protocol.CountdownStarted:
		b.countdownStartTick = m.StartTick
		b.state.OnCountdownStarted()
	case protocol.GameStarting:
		b.logger.Printf("game starting: maze=%s algorithm=%s roster=%v", m.MazeSeed, m.Algorithm, m.Roster)
	case protocol.BulletSpawned:
		b.onBulletSpawned(m)
	case protocol.BulletBounced:
		if bl, ok := b.bulletTrk.Get(strconv.FormatUint(uint64(m.BulletID), 10)); ok {
			bl.Bounce(toVec3(m.Position), toVec3(m.Velocity))
		}
	case protocol.BulletExpired:
		b.bulletTrk.Remove(strconv.FormatUint(uint64(m.BulletID), 10))
	case protocol.PlayerHit:
		b.logger.Printf("player hit: %s hp=%.1f", m.VictimID, m.HP)
	case protocol.PlayerDied:
		if m.VictimID == b.clientID {
			b.reconciler.OnDeath()
		}
		b.logger.Printf("player died: %s killer=%s", m.VictimID, m.KillerID)
	case protocol.Leaderboard:
		t := b.state.OnLeaderboard(m.Entries)
		b.logger.Printf("leaderboard delivered, next state %s", t.NextState)
	case protocol.AfterGameRoster:
		b.sendEnterAfterGameChat()
	case protocol.Kick:
		b.logger.Printf("kicked: %s", m.Reason)
		b.handle.Disconnect(m.Reason)
	default:
		b.logger.Printf("unhandled server message %T", m)
	}
}

func (b *bot) sendUsername(name string) {
	payload, err := protocol.EncodeUsernameRequest(name)
	if err != nil {
		b.logger.Printf("encode username request: %v", err)
		return
	}
	if err := b.handle.Send(transport.ReliableOrdered, payload); err != nil {
		b.logger.Printf("send username request: %v", err)
		return
	}
	b.state.SubmitUsername()
}

func (b *bot) sendDifficultyChoice() {
	payload, err := protocol.EncodeDifficultyChoice(b.difficulty)
	if err != nil {
		b.logger.Printf("encode difficulty choice: %v", err)
		return
	}
	if err := b.handle.Send(transport.ReliableOrdered, payload); err != nil {
		b.logger.Printf("send difficulty choice: %v", err)
	}
}

func (b *bot) sendEnterAfterGameChat() {
	payload, err := protocol.EncodeEnterAfterGameChat()
	if err != nil {
		b.logger.Printf("encode enter after-game chat: %v", err)
		return
	}
	if err := b.handle.Send(transport.ReliableOrdered, payload); err != nil {
		b.logger.Printf("send enter after-game chat: %v", err)
	}
}

func (b *bot) onBulletSpawned(m protocol.BulletSpawned) {
	id := strconv.FormatUint(uint64(m.BulletID), 10)
	if m.ShooterID == b.clientID {
		// Confirmation of our own fire: promote the provisional bullet if
		// we are still tracking it under its client-chosen id, otherwise
		// this is a late confirmation for a bullet we already gave up on.
		localID := strconv.FormatUint(uint64(m.ClientBulletID), 10)
		if bl, ok := b.bulletTrk.Get(localID); ok {
			bl.Promote(toVec3(m.Position), toVec3(m.Velocity))
			b.bulletTrk.Remove(localID)
			b.bulletTrk.Add(*bl)
			return
		}
	}

	shooterPos := bullets.Vec3{}
	if sample, have := b.latestSample(); have {
		if state, ok := sample.Snapshot.SlotFor(0); ok {
			shooterPos = bullets.Vec3{X: float64(state.X), Y: float64(state.Y), Z: float64(state.Z)}
		}
	}
	b.bulletTrk.Add(bullets.SpawnRemote(id, m.ShooterID, shooterPos, toVec3(m.Position), toVec3(m.Velocity), m.Tick))
}

func (b *bot) latestSample() (interp.SnapshotSample, bool) {
	if len(b.samples) == 0 {
		return interp.SnapshotSample{}, false
	}
	return b.samples[len(b.samples)-1], true
}

// renderRemotes computes every remote player's interpolated visual state
// for this frame's render time per §4.7. This headless driver has nowhere
// to draw the result, so it only keeps the latest state around (a real
// client feeds remoteStates straight to its renderer instead).
func (b *bot) renderRemotes() {
	if len(b.samples) == 0 {
		return
	}
	renderTime := b.estimator.EstimatedServerTime() - interp.InterpolationDelay
	s0, s1, have0, have1 := interp.Bracket(b.samples, renderTime)

	localSlot := b.samples[len(b.samples)-1].Snapshot.LocalSlot
	for slot := 0; slot < protocol.MaxPlayers; slot++ {
		if slot == localSlot {
			continue
		}
		b.remoteStates[slot] = interp.InterpolateRemote(slot, renderTime, s0, s1, have0, have1)
	}
}

// tickLobby drives the parts of the lobby flow that are not reactions to a
// single server message: the host's auto-start timer, and noticing the
// server-declared countdown has elapsed.
func (b *bot) tickLobby() {
	if b.isHost && b.autostart > 0 && b.state.Substate() == session.SubstateChat && !b.started {
		if time.Since(b.chatEnteredAt) >= b.autostart {
			b.started = true
			payload, err := protocol.EncodeStartGame()
			if err != nil {
				b.logger.Printf("encode start game: %v", err)
				return
			}
			if err := b.handle.Send(transport.ReliableOrdered, payload); err != nil {
				b.logger.Printf("send start game: %v", err)
			}
		}
	}

	if b.state.Substate() == session.SubstateCountdown {
		estimatedTick := uint64(b.estimator.EstimatedServerTime() / protocol.TickDT)
		if estimatedTick >= b.countdownStartTick {
			b.state.OnCountdownComplete()
			b.bulletTrk = bullets.NewTracker()
			// Align the scheduler to the server's tick space before it
			// starts stepping, so CurrentTick() is comparable to the
			// absolute tick carried on every snapshot and Reconcile isn't
			// comparing a since-countdown counter against a server-uptime
			// one.
			b.scheduler.SeedTick(b.countdownStartTick)
		}
	}
}

// sampleInput is the scheduler's InputSampler: this headless driver holds
// no input device, so it always reports the empty intent. A graphical
// client supplies the same hook backed by its keyboard/mouse state.
func (b *bot) sampleInput(targetTick uint64) any {
	return sim.PlayerInput{TargetTick: targetTick}
}

// stepSim is the scheduler's StepSim hook: record the sampled input for
// later replay and advance the locally predicted avatar by one tick, then
// flush the tracked bullets forward to stay in sync with the tick count.
func (b *bot) stepSim(targetTick uint64, rawInput any) {
	input, _ := rawInput.(sim.PlayerInput)
	b.reconciler.RecordInput(targetTick, input)
	b.reconciler.ApplyCurrentInput(input)
	b.bulletTrk.Advance()
	b.flushInputBatch(targetTick, input)
}

// flushInputBatch sends the single freshly-sampled input immediately
// rather than batching several ticks per datagram; a real client instead
// accumulates the last K ticks sampled since its last send per §4.5.
func (b *bot) flushInputBatch(targetTick uint64, input sim.PlayerInput) {
	wire := protocol.WireInput{
		Translate: uint8(input.Translate),
		Rotate:    uint8(input.Rotate),
		Fire:      input.Fire,
	}
	payload, err := protocol.EncodeInputBatch(wireSequence(targetTick), []protocol.WireInput{wire})
	if err != nil {
		b.logger.Printf("encode input batch: %v", err)
		return
	}
	if err := b.handle.Send(transport.Unreliable, payload); err != nil {
		b.logger.Printf("send input batch: %v", err)
	}
}

func wireSequence(tick uint64) uint16 {
	return netbuf.WireSequence(netbuf.Tick(tick))
}

func toVec3(v [3]float32) bullets.Vec3 {
	return bullets.Vec3{X: float64(v[0]), Y: float64(v[1]), Z: float64(v[2])}
}
