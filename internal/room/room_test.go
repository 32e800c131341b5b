package room

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/DoyleJ11/arena-backend/internal/config"
	"github.com/DoyleJ11/arena-backend/internal/engine"
	"github.com/DoyleJ11/arena-backend/internal/store"
	"github.com/DoyleJ11/arena-backend/internal/types"
	"github.com/DoyleJ11/arena-backend/internal/world"
)

const wait = 500 * time.Millisecond

func testConfig() Config {
	opts := engine.DefaultOptions()
	opts.ProjectileDamage = 100
	return Config{
		TickHz:         30,
		BroadcastEvery: 10,
		MinPlayers:     2,
		MaxPlayers:     4,
		Engine:         opts,
		Manual:         true,
	}
}

func newTestRoom(t *testing.T, cfg Config, rec store.Recorder) *Room {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return New(ctx, "Room1", cfg, Deps{Recorder: rec, Log: zaptest.NewLogger(t)})
}

// helper: join with a timeout so tests never hang
func join(t *testing.T, r *Room, name string, buf int) (engine.ParticipantID, chan Update) {
	t.Helper()
	out := make(chan Update, buf)
	reply := make(chan JoinResult, 1)
	require.NoError(t, r.Send(context.Background(), Join{Name: name, Outbox: out, Reply: reply}))
	select {
	case res := <-reply:
		require.NoError(t, res.Err)
		return res.Participant, out
	case <-time.After(wait):
		t.Fatalf("timed out joining %s", name)
		return "", nil // unreachable
	}
}

func recvUpdate(t *testing.T, ch <-chan Update) Update {
	t.Helper()
	select {
	case u, ok := <-ch:
		require.True(t, ok, "client outbox closed unexpectedly")
		return u
	case <-time.After(wait):
		t.Fatalf("timed out waiting for update")
		return Update{} // unreachable
	}
}

// drainEvents reads whatever is buffered and returns the event kinds.
func drainEvents(ch <-chan Update) []types.EventKind {
	var kinds []types.EventKind
	for {
		select {
		case u, ok := <-ch:
			if !ok {
				return kinds
			}
			if u.Event != nil {
				kinds = append(kinds, u.Event.Kind)
			}
		default:
			return kinds
		}
	}
}

func ticks(t *testing.T, r *Room, n int) {
	t.Helper()
	for range n {
		require.NoError(t, r.Send(context.Background(), Tick{}))
	}
}

func state(t *testing.T, r *Room) View {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()
	v, err := r.State(ctx)
	require.NoError(t, err)
	return v
}

func TestRoom_JoinSendsInitialSnapshot(t *testing.T) {
	r := newTestRoom(t, testConfig(), nil)

	id, out := join(t, r, "alice", 8)
	assert.Equal(t, engine.ParticipantID("p0001"), id)

	first := recvUpdate(t, out)
	require.NotNil(t, first.Snapshot)
	assert.Equal(t, types.PhaseWaiting, first.Snapshot.Phase)
	require.Len(t, first.Snapshot.Players, 1)
	assert.Equal(t, "alice", first.Snapshot.Players[0].Name)
	assert.Equal(t, 100.0, first.Snapshot.Players[0].Health)
	assert.True(t, first.Snapshot.Players[0].Alive)
}

func TestRoom_RejectsBadJoins(t *testing.T) {
	cfg := testConfig()
	cfg.MinPlayers = 1
	cfg.MaxPlayers = 1
	r := newTestRoom(t, cfg, nil)

	reply := make(chan JoinResult, 1)
	require.NoError(t, r.Send(context.Background(), Join{Name: "", Outbox: make(chan Update, 1), Reply: reply}))
	assert.ErrorIs(t, (<-reply).Err, ErrEmptyName)

	join(t, r, "alice", 8)
	require.NoError(t, r.Send(context.Background(), Join{Name: "bob", Outbox: make(chan Update, 1), Reply: reply}))
	assert.ErrorIs(t, (<-reply).Err, ErrRoomFull)
}

func TestRoom_CountdownThenRunning(t *testing.T) {
	cfg := testConfig()
	cfg.StartDelayTicks = 3
	r := newTestRoom(t, cfg, nil)

	join(t, r, "alice", 64)
	ticks(t, r, 2)
	assert.Equal(t, types.PhaseWaiting, state(t, r).Phase)

	_, out := join(t, r, "bob", 64)
	ticks(t, r, 1)
	assert.Equal(t, types.PhaseCountdown, state(t, r).Phase)

	ticks(t, r, 3)
	assert.Equal(t, types.PhaseRunning, state(t, r).Phase)
	assert.Contains(t, drainEvents(out), types.EventStarted)
}

func TestRoom_LeaveHandsWinToLastPlayer(t *testing.T) {
	rec := store.NewMemory()
	r := newTestRoom(t, testConfig(), rec)

	a, out := join(t, r, "alice", 64)
	b, _ := join(t, r, "bob", 64)
	ticks(t, r, 1)
	require.Equal(t, types.PhaseRunning, state(t, r).Phase)

	require.NoError(t, r.Send(context.Background(), Leave{Participant: b}))
	ticks(t, r, 1)

	v := state(t, r)
	assert.Equal(t, types.PhaseEnded, v.Phase)
	assert.Equal(t, engine.PlayerID(a), v.Winner)
	assert.Equal(t, 1, v.NumClients)

	kinds := drainEvents(out)
	assert.Contains(t, kinds, types.EventLeft)
	assert.Contains(t, kinds, types.EventGameOver)

	require.Eventually(t, func() bool {
		got, err := rec.ListMatches(context.Background(), "Room1", 10)
		return err == nil && len(got) == 1 && got[0].WinnerName == "alice"
	}, time.Second, 10*time.Millisecond)
}

func TestRoom_ShotKillsAndEndsMatch(t *testing.T) {
	rec := store.NewMemory()
	r := newTestRoom(t, testConfig(), rec)

	a, out := join(t, r, "alice", 256)
	b, _ := join(t, r, "bob", 256)
	ticks(t, r, 1)

	// alice spawns at (0,10) facing 180 and bob at 45 degrees round the ring;
	// ten ticks of full left turn point her at him.
	require.NoError(t, r.Send(context.Background(), Input{Participant: a, Input: world.Input{Turn: -1}}))
	ticks(t, r, 10)
	require.NoError(t, r.Send(context.Background(), Input{Participant: a, Input: world.Input{}}))
	require.NoError(t, r.Send(context.Background(), Shoot{Participant: a}))
	ticks(t, r, 60)

	v := state(t, r)
	assert.Equal(t, types.PhaseEnded, v.Phase)
	assert.Equal(t, engine.PlayerID(a), v.Winner)
	for _, p := range v.Players {
		if p.ID == string(b) {
			assert.False(t, p.Alive)
			assert.Zero(t, p.Health)
		}
	}

	kinds := drainEvents(out)
	assert.Contains(t, kinds, types.EventDied)
	assert.Contains(t, kinds, types.EventGameOver)

	require.Eventually(t, func() bool {
		got, err := rec.ListMatches(context.Background(), "Room1", 10)
		return err == nil && len(got) == 1 && got[0].Winner == string(a)
	}, time.Second, 10*time.Millisecond)
}

func TestRoom_NonFiniteInputKeepsSnapshotsEncodable(t *testing.T) {
	r := newTestRoom(t, testConfig(), nil)

	a, _ := join(t, r, "alice", 64)
	require.NoError(t, r.Send(context.Background(), Input{Participant: a, Input: world.Input{Forward: math.NaN(), Turn: math.Inf(1)}}))
	ticks(t, r, 2)

	v := state(t, r)
	require.Len(t, v.Players, 1)
	assert.False(t, math.IsNaN(v.Players[0].X))
	assert.False(t, math.IsNaN(v.Players[0].Y))
	assert.False(t, math.IsNaN(v.Players[0].Heading))

	_, err := types.Encode(types.JSON, types.MsgState, v.Players)
	assert.NoError(t, err)
}

func TestRoom_DropSlowClient(t *testing.T) {
	cfg := testConfig()
	cfg.BroadcastEvery = 1
	r := newTestRoom(t, cfg, nil)

	join(t, r, "alice", 64)
	_, slow := join(t, r, "bob", 1) // initial snapshot fills the buffer
	ticks(t, r, 1)

	v := state(t, r)
	assert.Equal(t, 1, v.NumClients)

	recvUpdate(t, slow)
	_, ok := <-slow
	assert.False(t, ok, "slow client outbox should be closed")
}

func TestRoom_JoinFailsWhenFirstSnapshotCannotBeDelivered(t *testing.T) {
	r := newTestRoom(t, testConfig(), nil)
	join(t, r, "alice", 8)

	reply := make(chan JoinResult, 1)
	require.NoError(t, r.Send(context.Background(), Join{Name: "bob", Outbox: make(chan Update), Reply: reply}))
	res := <-reply
	assert.ErrorIs(t, res.Err, ErrClosed)
	assert.Empty(t, res.Participant)
	assert.Equal(t, 1, state(t, r).NumClients)
}

func TestRoom_CascadingDropEmptiesRoomOnce(t *testing.T) {
	emptied := make(chan string, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := New(ctx, "ZED123", testConfig(), Deps{
		Log:     zaptest.NewLogger(t),
		OnEmpty: func(code string, _ *Room) { emptied <- code },
	})

	a, _ := join(t, r, "alice", 8)
	join(t, r, "bob", 1) // initial snapshot fills the buffer

	// The left event for alice overflows bob, who is dropped while alice is
	// still being removed.
	require.NoError(t, r.Send(context.Background(), Leave{Participant: a}))

	select {
	case <-r.Done():
	case <-time.After(wait):
		t.Fatal("room did not close")
	}
	assert.Never(t, func() bool { return len(emptied) > 1 }, 100*time.Millisecond, 10*time.Millisecond)
	assert.Len(t, emptied, 1)
}

func TestRoom_JoinAfterEndNeverRedeclares(t *testing.T) {
	r := newTestRoom(t, testConfig(), nil)

	a, _ := join(t, r, "alice", 64)
	b, _ := join(t, r, "bob", 64)
	ticks(t, r, 1)
	require.NoError(t, r.Send(context.Background(), Leave{Participant: b}))
	ticks(t, r, 1)
	require.Equal(t, types.PhaseEnded, state(t, r).Phase)

	_, out := join(t, r, "carol", 64)
	first := recvUpdate(t, out)
	require.NotNil(t, first.Snapshot)
	assert.Equal(t, types.PhaseEnded, first.Snapshot.Phase)
	assert.Equal(t, string(a), first.Snapshot.Winner)

	// carol inherits authority once alice is gone.
	require.NoError(t, r.Send(context.Background(), Leave{Participant: a}))
	ticks(t, r, 3)

	v := state(t, r)
	assert.Equal(t, engine.ParticipantID("p0003"), v.Authority)
	assert.Equal(t, engine.PlayerID(a), v.Winner)
	assert.NotContains(t, drainEvents(out), types.EventGameOver)
}

func TestRoom_LastLeaveClosesRoom(t *testing.T) {
	emptied := make(chan string, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := New(ctx, "ZED123", testConfig(), Deps{
		Log:     zaptest.NewLogger(t),
		OnEmpty: func(code string, _ *Room) { emptied <- code },
	})

	id, out := join(t, r, "alice", 8)
	require.NoError(t, r.Send(context.Background(), Leave{Participant: id}))

	select {
	case <-r.Done():
	case <-time.After(wait):
		t.Fatal("room did not close")
	}
	assert.Equal(t, "ZED123", <-emptied)

	recvUpdate(t, out)
	_, ok := <-out
	assert.False(t, ok)
	assert.ErrorIs(t, r.Send(context.Background(), Tick{}), ErrClosed)
}

func TestConfigFrom(t *testing.T) {
	c := ConfigFrom(config.Default())
	assert.Equal(t, 30, c.TickHz)
	assert.Equal(t, 3, c.BroadcastEvery)
	assert.Equal(t, 150, c.StartDelayTicks)
	assert.Equal(t, 5.0, c.Engine.ProjectileLifetime)
	assert.Equal(t, 20.0, c.Engine.ProjectileDamage)
	assert.False(t, c.Manual)
}
