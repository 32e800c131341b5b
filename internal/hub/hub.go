package hub

import (
	"context"
	"maps"
	"slices"

	"go.uber.org/zap"

	"github.com/DoyleJ11/arena-backend/internal/room"
	"github.com/DoyleJ11/arena-backend/internal/store"
)

type HubMsg interface{ isHubMsg() }

// CreateRoom opens a new room for Code. The reply is nil if a live room
// already holds the code.
type CreateRoom struct {
	Code  string
	Reply chan *room.Room
}

type GetRoom struct {
	Code  string
	Reply chan *room.Room
}

// EnsureRoom returns the live room for Code, creating it if needed.
type EnsureRoom struct {
	Code  string
	Reply chan *room.Room
}

// RemoveRoom forgets Code, but only while it still maps to Room.
type RemoveRoom struct {
	Code string
	Room *room.Room
}

type ListRooms struct {
	Reply chan []string
}

type ShutdownHub struct{}

func (CreateRoom) isHubMsg()  {}
func (GetRoom) isHubMsg()     {}
func (EnsureRoom) isHubMsg()  {}
func (RemoveRoom) isHubMsg()  {}
func (ListRooms) isHubMsg()   {}
func (ShutdownHub) isHubMsg() {}

type Hub struct {
	inbox    chan HubMsg
	rooms    map[string]*room.Room
	cfg      room.Config
	recorder store.Recorder
	log      *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
}

func NewHub(parent context.Context, cfg room.Config, recorder store.Recorder, log *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(parent)
	if log == nil {
		log = zap.NewNop()
	}
	h := &Hub{
		inbox:    make(chan HubMsg, 64),
		rooms:    make(map[string]*room.Room),
		cfg:      cfg,
		recorder: recorder,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }
func (h *Hub) Done() <-chan struct{} { return h.ctx.Done() }

// Ensure is the blocking form of EnsureRoom. It returns nil once the hub is
// shut down.
func (h *Hub) Ensure(ctx context.Context, code string) *room.Room {
	reply := make(chan *room.Room, 1)
	if !h.send(ctx, EnsureRoom{Code: code, Reply: reply}) {
		return nil
	}
	return h.await(ctx, reply)
}

// Create is the blocking form of CreateRoom.
func (h *Hub) Create(ctx context.Context, code string) *room.Room {
	reply := make(chan *room.Room, 1)
	if !h.send(ctx, CreateRoom{Code: code, Reply: reply}) {
		return nil
	}
	return h.await(ctx, reply)
}

func (h *Hub) Get(ctx context.Context, code string) *room.Room {
	reply := make(chan *room.Room, 1)
	if !h.send(ctx, GetRoom{Code: code, Reply: reply}) {
		return nil
	}
	return h.await(ctx, reply)
}

func (h *Hub) List(ctx context.Context) []string {
	reply := make(chan []string, 1)
	if !h.send(ctx, ListRooms{Reply: reply}) {
		return nil
	}
	select {
	case codes := <-reply:
		return codes
	case <-ctx.Done():
	case <-h.ctx.Done():
	}
	return nil
}

func (h *Hub) send(ctx context.Context, msg HubMsg) bool {
	select {
	case h.inbox <- msg:
		return true
	case <-ctx.Done():
	case <-h.ctx.Done():
	}
	return false
}

func (h *Hub) await(ctx context.Context, reply chan *room.Room) *room.Room {
	select {
	case r := <-reply:
		return r
	case <-ctx.Done():
	case <-h.ctx.Done():
	}
	return nil
}

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateRoom:
				if h.live(msg.Code) != nil {
					msg.Reply <- nil
					break
				}
				msg.Reply <- h.open(msg.Code)

			case GetRoom:
				msg.Reply <- h.live(msg.Code) // May be nil

			case EnsureRoom:
				if r := h.live(msg.Code); r != nil {
					msg.Reply <- r
					break
				}
				msg.Reply <- h.open(msg.Code)

			case RemoveRoom:
				if h.rooms[msg.Code] == msg.Room {
					delete(h.rooms, msg.Code)
					h.log.Info("room closed", zap.String("room", msg.Code))
				}

			case ListRooms:
				codes := make([]string, 0, len(h.rooms))
				for code := range h.rooms {
					if h.live(code) != nil {
						codes = append(codes, code)
					}
				}
				slices.Sort(codes)
				msg.Reply <- codes

			case ShutdownHub:
				h.shutdown()
				h.cancel()
				return
			}
		}
	}
}

// live returns the room for code unless it has already closed.
func (h *Hub) live(code string) *room.Room {
	r := h.rooms[code]
	if r == nil {
		return nil
	}
	select {
	case <-r.Done():
		delete(h.rooms, code)
		return nil
	default:
		return r
	}
}

func (h *Hub) open(code string) *room.Room {
	r := room.New(h.ctx, code, h.cfg, room.Deps{
		Recorder: h.recorder,
		Log:      h.log,
		OnEmpty: func(code string, r *room.Room) {
			// Runs on the room goroutine; never block it on the hub.
			go h.send(context.Background(), RemoveRoom{Code: code, Room: r})
		},
	})
	h.rooms[code] = r
	h.log.Info("room opened", zap.String("room", code))
	return r
}

func (h *Hub) shutdown() {
	for _, code := range slices.Sorted(maps.Keys(h.rooms)) {
		_ = h.rooms[code].Send(context.Background(), room.Shutdown{})
	}
	clear(h.rooms)
}
