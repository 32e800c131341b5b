package ws

import (
	"context"
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/arena-backend/internal/engine"
	"github.com/DoyleJ11/arena-backend/internal/hub"
	"github.com/DoyleJ11/arena-backend/internal/room"
	"github.com/DoyleJ11/arena-backend/internal/types"
	"github.com/DoyleJ11/arena-backend/internal/world"
)

var (
	HelloTimeout = 10 * time.Second
	ReadTimeout  = 30 * time.Second
	WriteTimeout = 3 * time.Second
)

var errNoHello = errors.New("first message must be hello")
var errNonFinite = errors.New("input must be finite")

func Handler(h *hub.Hub, defaultRoom string, log *zap.Logger) http.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var rm *room.Room
		if code := r.URL.Query().Get("code"); code != "" {
			rm = h.Get(r.Context(), code)
			if rm == nil {
				http.Error(w, "room not found", http.StatusNotFound)
				return
			}
		} else {
			rm = h.Ensure(r.Context(), defaultRoom)
			if rm == nil {
				http.Error(w, "server shutting down", http.StatusServiceUnavailable)
				return
			}
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols: []string{types.SubprotocolJSON, types.SubprotocolMsgpack},
			// In dev ONLY, you can loosen origin checks:
			// OriginPatterns: []string{"http://localhost:*", "http://127.0.0.1:*"},
		})
		if err != nil {
			return
		}
		defer conn.CloseNow()

		c := &client{
			conn:  conn,
			codec: types.CodecFor(conn.Subprotocol()),
			room:  rm,
			log:   log.With(zap.String("conn", uuid.NewString()), zap.String("room", rm.Code())),
		}
		c.serve(r.Context())
	}
}

type client struct {
	conn  *websocket.Conn
	codec types.Codec
	room  *room.Room
	log   *zap.Logger
	id    engine.ParticipantID
}

func (c *client) serve(ctx context.Context) {
	name, err := c.readHello(ctx)
	if err != nil {
		c.log.Debug("handshake failed", zap.Error(err))
		c.writeError(ctx, err.Error())
		c.conn.Close(websocket.StatusPolicyViolation, "hello required")
		return
	}

	out := make(chan room.Update, 32)
	reply := make(chan room.JoinResult, 1)
	if err := c.room.Send(ctx, room.Join{Name: name, Outbox: out, Reply: reply}); err != nil {
		c.writeError(ctx, err.Error())
		c.conn.Close(websocket.StatusTryAgainLater, "room closed")
		return
	}
	var res room.JoinResult
	select {
	case res = <-reply:
	case <-c.room.Done():
		res.Err = room.ErrClosed
	case <-ctx.Done():
		return
	}
	if res.Err != nil {
		c.writeError(ctx, res.Err.Error())
		c.conn.Close(websocket.StatusPolicyViolation, res.Err.Error())
		return
	}
	c.id = res.Participant
	c.log = c.log.With(zap.String("participant", string(c.id)))
	c.log.Info("client joined", zap.String("name", name), zap.String("codec", c.codec.Name()))

	defer func() {
		leaveCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = c.room.Send(leaveCtx, room.Leave{Participant: c.id})
	}()

	c.write(ctx, types.MsgWelcome, types.Welcome{
		ParticipantID: string(c.id),
		Room:          c.room.Code(),
		TickHz:        c.room.TickHz(),
		MaxHealth:     c.room.MaxHealth(),
	})

	// Writer goroutine
	writeCtx, writeCancel := context.WithCancel(ctx)
	defer writeCancel()
	go func() {
		for u := range out {
			switch {
			case u.Snapshot != nil:
				c.write(writeCtx, types.MsgState, u.Snapshot)
			case u.Event != nil:
				c.write(writeCtx, types.MsgEvent, u.Event)
			}
		}
		// Outbox closed: the room dropped us or shut down.
		c.conn.Close(websocket.StatusGoingAway, "room closed")
	}()

	c.readLoop(ctx)
}

func (c *client) readHello(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, HelloTimeout)
	defer cancel()
	_, data, err := c.conn.Read(ctx)
	if err != nil {
		return "", err
	}
	t, err := types.PeekType(c.codec, data)
	if err != nil {
		return "", err
	}
	if t != types.MsgHello {
		return "", errNoHello
	}
	hello, err := types.DecodePayload[types.Hello](c.codec, data)
	if err != nil {
		return "", err
	}
	if hello.Name == "" {
		return "", room.ErrEmptyName
	}
	return hello.Name, nil
}

// Reader loop. Only the writer goroutine writes once it is running, so bad
// messages are logged rather than answered.
func (c *client) readLoop(ctx context.Context) {
	for {
		readCtx, cancel := context.WithTimeout(ctx, ReadTimeout)
		_, data, err := c.conn.Read(readCtx)
		cancel()
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			default:
				c.log.Debug("read ended", zap.Error(err))
			}
			return
		}

		msg, err := c.decode(data)
		if err != nil {
			c.log.Debug("bad client message", zap.Error(err))
			continue
		}
		if err := c.room.Send(ctx, msg); err != nil {
			return
		}
	}
}

func (c *client) decode(data []byte) (room.Msg, error) {
	t, err := types.PeekType(c.codec, data)
	if err != nil {
		return nil, err
	}
	switch t {
	case types.MsgInput:
		in, err := types.DecodePayload[types.Input](c.codec, data)
		if err != nil {
			return nil, err
		}
		if !finite(in.Forward) || !finite(in.Turn) {
			return nil, errNonFinite
		}
		return room.Input{Participant: c.id, Input: world.Input{Forward: in.Forward, Turn: in.Turn}}, nil
	case types.MsgShoot:
		return room.Shoot{Participant: c.id}, nil
	default:
		return nil, errors.New("unknown message type " + t)
	}
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func (c *client) write(ctx context.Context, t string, payload any) {
	b, err := types.Encode(c.codec, t, payload)
	if err != nil {
		c.log.Error("encode", zap.String("type", t), zap.Error(err))
		return
	}
	typ := websocket.MessageText
	if c.codec.Binary() {
		typ = websocket.MessageBinary
	}
	wctx, cancel := context.WithTimeout(ctx, WriteTimeout)
	defer cancel()
	if err := c.conn.Write(wctx, typ, b); err != nil {
		c.log.Debug("write failed", zap.String("type", t), zap.Error(err))
	}
}

func (c *client) writeError(ctx context.Context, msg string) {
	c.write(ctx, types.MsgError, types.Error{Message: msg})
}
