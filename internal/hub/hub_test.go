package hub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/DoyleJ11/arena-backend/internal/room"
	"github.com/DoyleJ11/arena-backend/internal/store"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	cfg := room.Config{TickHz: 30, BroadcastEvery: 3, MinPlayers: 2, MaxPlayers: 4, Manual: true}
	return NewHub(ctx, cfg, store.NewMemory(), zaptest.NewLogger(t))
}

func TestHub_Create_Get_SamePointer(t *testing.T) {
	h := newTestHub(t)
	reply := make(chan *room.Room, 1)

	h.Inbox() <- CreateRoom{Code: "ZED123", Reply: reply}
	r1 := <-reply

	h.Inbox() <- GetRoom{Code: "ZED123", Reply: reply}
	r2 := <-reply

	require.NotNil(t, r1)
	assert.Same(t, r1, r2)
	assert.Equal(t, "ZED123", r1.Code())
}

func TestHub_CreateRefusesLiveCode(t *testing.T) {
	h := newTestHub(t)
	ctx := context.Background()

	r := h.Create(ctx, "ZED123")
	require.NotNil(t, r)
	assert.Nil(t, h.Create(ctx, "ZED123"))
	assert.Same(t, r, h.Ensure(ctx, "ZED123"))
}

func TestHub_GetMissingIsNil(t *testing.T) {
	h := newTestHub(t)
	assert.Nil(t, h.Get(context.Background(), "NOPE00"))
}

func TestHub_EmptyRoomIsRemovedAndRecreated(t *testing.T) {
	h := newTestHub(t)
	ctx := context.Background()

	r1 := h.Ensure(ctx, "Room1")
	require.NotNil(t, r1)

	out := make(chan room.Update, 8)
	reply := make(chan room.JoinResult, 1)
	require.NoError(t, r1.Send(ctx, room.Join{Name: "alice", Outbox: out, Reply: reply}))
	res := <-reply
	require.NoError(t, res.Err)
	require.NoError(t, r1.Send(ctx, room.Leave{Participant: res.Participant}))

	select {
	case <-r1.Done():
	case <-time.After(time.Second):
		t.Fatal("room did not close after last leave")
	}
	require.Eventually(t, func() bool {
		return len(h.List(ctx)) == 0
	}, time.Second, 10*time.Millisecond)

	r2 := h.Ensure(ctx, "Room1")
	require.NotNil(t, r2)
	assert.NotSame(t, r1, r2)
}

func TestHub_StaleRemoveKeepsNewRoom(t *testing.T) {
	h := newTestHub(t)
	ctx := context.Background()

	r := h.Ensure(ctx, "Room1")
	h.Inbox() <- RemoveRoom{Code: "Room1", Room: nil}
	assert.Same(t, r, h.Get(ctx, "Room1"))
}

func TestHub_ListSorted(t *testing.T) {
	h := newTestHub(t)
	ctx := context.Background()
	h.Ensure(ctx, "ZED123")
	h.Ensure(ctx, "ABC999")
	assert.Equal(t, []string{"ABC999", "ZED123"}, h.List(ctx))
}

func TestHub_ShutdownClosesRooms(t *testing.T) {
	h := newTestHub(t)
	r := h.Ensure(context.Background(), "Room1")

	h.Inbox() <- ShutdownHub{}
	select {
	case <-r.Done():
	case <-time.After(time.Second):
		t.Fatal("room still open after hub shutdown")
	}
	<-h.Done()
}
