package room

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/arena-backend/internal/bus"
	"github.com/DoyleJ11/arena-backend/internal/config"
	"github.com/DoyleJ11/arena-backend/internal/engine"
	"github.com/DoyleJ11/arena-backend/internal/store"
	"github.com/DoyleJ11/arena-backend/internal/types"
	"github.com/DoyleJ11/arena-backend/internal/world"
)

var ErrEmptyName = errors.New("player name is empty")
var ErrRoomFull = errors.New("room is full")
var ErrClosed = errors.New("room closed")

type Config struct {
	TickHz          int
	BroadcastEvery  int // ticks between snapshots
	StartDelayTicks int
	MinPlayers      int
	MaxPlayers      int
	Engine          engine.Options
	Manual          bool // no ticker, the owner sends Tick
}

func ConfigFrom(c config.Config) Config {
	every := c.TickHz / c.BroadcastHz
	if every <= 0 {
		every = 1
	}
	return Config{
		TickHz:          c.TickHz,
		BroadcastEvery:  every,
		StartDelayTicks: int(c.StartDelay.Seconds() * float64(c.TickHz)),
		MinPlayers:      c.MinPlayers,
		MaxPlayers:      c.MaxPlayers,
		Engine: engine.Options{
			MaxHealth:          c.MaxHealth,
			ProjectileDamage:   c.BulletDamage,
			ProjectileLifetime: c.BulletLifetime.Seconds(),
			ReplicateEvery:     every,
		},
	}
}

type Deps struct {
	Recorder store.Recorder
	Log      *zap.Logger
	OnEmpty  func(code string, r *Room) // called from the room goroutine when the last client leaves
}

type Room struct {
	code     string
	cfg      Config
	inbox    chan Msg
	recorder store.Recorder
	onEmpty  func(code string, r *Room)
	log      *zap.Logger

	world   *world.World
	bus     *bus.Bus
	nodes   map[engine.ParticipantID]*engine.Node
	names   map[engine.ParticipantID]string
	clients map[engine.ParticipantID]chan Update
	nextID  int

	phase     types.Phase
	countdown int
	version   int
	winner    engine.PlayerID
	emptied   bool

	ctx    context.Context
	cancel context.CancelFunc
}

func New(parent context.Context, code string, cfg Config, deps Deps) *Room {
	ctx, cancel := context.WithCancel(parent)
	if cfg.TickHz <= 0 {
		cfg.TickHz = 30
	}
	if cfg.BroadcastEvery <= 0 {
		cfg.BroadcastEvery = 1
	}
	if cfg.MinPlayers <= 0 {
		cfg.MinPlayers = 2
	}
	if cfg.Engine.MaxHealth <= 0 {
		cfg.Engine.MaxHealth = engine.DefaultOptions().MaxHealth
	}
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}

	r := &Room{
		code:     code,
		cfg:      cfg,
		inbox:    make(chan Msg, 256),
		recorder: deps.Recorder,
		onEmpty:  deps.OnEmpty,
		log:      log.With(zap.String("room", code)),
		world:    world.New(),
		bus:      bus.New(),
		nodes:    make(map[engine.ParticipantID]*engine.Node),
		names:    make(map[engine.ParticipantID]string),
		clients:  make(map[engine.ParticipantID]chan Update),
		phase:    types.PhaseWaiting,
		ctx:      ctx,
		cancel:   cancel,
	}

	r.bus.OnMessage(r.trace)

	go r.loop()
	return r
}

// Expose the inbox so tests or the WS layer can send messages.
func (r *Room) Inbox() chan<- Msg     { return r.inbox }
func (r *Room) Done() <-chan struct{} { return r.ctx.Done() }
func (r *Room) Code() string          { return r.code }
func (r *Room) TickHz() int           { return r.cfg.TickHz }
func (r *Room) MaxHealth() float64    { return r.cfg.Engine.MaxHealth }

// Send posts msg unless the room or ctx is already gone.
func (r *Room) Send(ctx context.Context, msg Msg) error {
	if r.ctx.Err() != nil {
		return ErrClosed
	}
	select {
	case r.inbox <- msg:
		return nil
	case <-r.ctx.Done():
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State asks the room for a View.
func (r *Room) State(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	if err := r.Send(ctx, GetState{Reply: reply}); err != nil {
		return View{}, err
	}
	select {
	case v := <-reply:
		return v, nil
	case <-r.ctx.Done():
		return View{}, ErrClosed
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
}

func (r *Room) loop() {
	var tick <-chan time.Time
	if !r.cfg.Manual {
		ticker := time.NewTicker(time.Second / time.Duration(r.cfg.TickHz))
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-r.ctx.Done():
			r.shutdown()
			return

		case <-tick:
			r.step()

		case m := <-r.inbox:
			switch msg := m.(type) {
			case Join:
				msg.Reply <- r.join(msg)

			case Leave:
				r.removeParticipant(msg.Participant)

			case Input:
				if _, ok := r.nodes[msg.Participant]; ok {
					r.world.SetInput(engine.PlayerID(msg.Participant), msg.Input)
				}

			case Shoot:
				r.shoot(msg.Participant)

			case Tick:
				r.step()

			case GetState:
				msg.Reply <- r.view()

			case Shutdown:
				r.shutdown()
				return
			}
		}
	}
}

func (r *Room) join(msg Join) JoinResult {
	if msg.Name == "" {
		return JoinResult{Err: ErrEmptyName}
	}
	if r.cfg.MaxPlayers > 0 && len(r.nodes) >= r.cfg.MaxPlayers {
		return JoinResult{Err: ErrRoomFull}
	}

	r.nextID++
	id := engine.ParticipantID(fmt.Sprintf("p%04d", r.nextID))

	node := engine.NewNode(id, r.bus.Endpoint(id), r.cfg.Engine, r.log)
	r.bus.Attach(id, node)
	if _, err := node.Spawn(msg.Name); err != nil {
		r.bus.Detach(id)
		return JoinResult{Err: err}
	}
	if r.phase == types.PhaseEnded {
		node.Conclude(r.winner)
	}
	if r.phase == types.PhaseRunning || r.phase == types.PhaseEnded {
		node.Start()
	}

	r.nodes[id] = node
	r.names[id] = msg.Name
	r.clients[id] = msg.Outbox
	r.world.AddPlayer(engine.PlayerID(id), r.nextID-1)

	r.log.Info("player joined", zap.String("participant", string(id)), zap.String("name", msg.Name))

	// Send the current snapshot immediately.
	snap := r.snapshotFor(id)
	r.deliver(id, Update{Snapshot: &snap})
	if _, ok := r.clients[id]; !ok {
		return JoinResult{Err: ErrClosed}
	}
	return JoinResult{Participant: id}
}

func (r *Room) shoot(id engine.ParticipantID) {
	node, ok := r.nodes[id]
	if !ok || r.phase == types.PhaseEnded {
		return
	}
	pid := engine.PlayerID(id)
	if err := r.world.CanFire(pid); err != nil {
		return
	}
	proj, err := node.Shoot()
	if err != nil {
		r.log.Debug("shot rejected", zap.String("participant", string(id)), zap.Error(err))
		return
	}
	if err := r.world.Fire(pid, proj); err != nil {
		r.log.Warn("projectile not placed", zap.String("projectile", string(proj)), zap.Error(err))
	}
}

func (r *Room) step() {
	dt := 1.0 / float64(r.cfg.TickHz)

	for _, hit := range r.world.Step(dt) {
		node, ok := r.nodes[engine.ParticipantID(hit.Owner)]
		if !ok {
			r.world.RemoveProjectile(hit.Projectile)
			continue
		}
		if _, err := node.OnCollision(hit.Projectile, hit.Player); err != nil {
			r.log.Debug("collision dropped", zap.String("projectile", string(hit.Projectile)), zap.Error(err))
		}
	}

	ids := r.participants()
	for _, id := range ids {
		r.nodes[id].OnTick(dt)
	}
	for _, id := range ids {
		// A slow client may have been dropped by an earlier event.
		node, ok := r.nodes[id]
		if !ok {
			continue
		}
		for _, e := range node.DrainEvents() {
			r.handleEvent(id, e)
		}
	}
	if r.ctx.Err() != nil {
		return
	}

	r.advancePhase()

	if r.world.Tick%r.cfg.BroadcastEvery == 0 {
		r.broadcastSnapshots()
	}
}

func (r *Room) handleEvent(from engine.ParticipantID, e engine.Event) {
	switch e.Type {
	case engine.EvtProjectileRemoved:
		r.world.RemoveProjectile(e.Projectile)

	case engine.EvtPlayerDied:
		// Only the owner's node fires this.
		r.world.MarkDead(e.Player)
		r.broadcastEvent(types.Event{Kind: types.EventDied, Player: string(e.Player)})

	case engine.EvtNoSurvivors:
		r.broadcastEvent(types.Event{Kind: types.EventNoWinner})

	case engine.EvtAuthorityChanged:
		if e.Participant == from {
			r.broadcastEvent(types.Event{Kind: types.EventAuthority, Player: string(from)})
		}

	case engine.EvtGameOver:
		if r.phase == types.PhaseEnded {
			return
		}
		r.phase = types.PhaseEnded
		r.winner = e.Winner
		r.log.Info("match over", zap.String("winner", string(e.Winner)), zap.String("decided_by", string(from)))
		r.broadcastEvent(types.Event{Kind: types.EventGameOver, Winner: string(e.Winner)})
		r.record()
	}
}

func (r *Room) advancePhase() {
	switch r.phase {
	case types.PhaseWaiting:
		if len(r.nodes) < r.cfg.MinPlayers {
			return
		}
		if r.cfg.StartDelayTicks <= 0 {
			r.start()
			return
		}
		r.phase = types.PhaseCountdown
		r.countdown = r.cfg.StartDelayTicks

	case types.PhaseCountdown:
		if len(r.nodes) < r.cfg.MinPlayers {
			r.phase = types.PhaseWaiting
			return
		}
		r.countdown--
		if r.countdown <= 0 {
			r.start()
		}
	}
}

func (r *Room) start() {
	r.phase = types.PhaseRunning
	for _, n := range r.nodes {
		n.Start()
	}
	r.log.Info("match started", zap.Int("players", len(r.nodes)))
	r.broadcastEvent(types.Event{Kind: types.EventStarted})
}

func (r *Room) record() {
	if r.recorder == nil {
		return
	}
	result := store.MatchResult{
		Room:       r.code,
		Winner:     string(r.winner),
		WinnerName: r.names[engine.ParticipantID(r.winner)],
		Players:    len(r.nodes),
		Ticks:      r.world.Tick,
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.recorder.RecordMatch(ctx, result); err != nil {
			r.log.Error("record match", zap.Error(err))
		}
	}()
}

func (r *Room) removeParticipant(id engine.ParticipantID) {
	if _, ok := r.nodes[id]; !ok {
		return
	}
	if ch, ok := r.clients[id]; ok {
		close(ch) // Tell client no more updates
		delete(r.clients, id)
	}
	r.bus.Detach(id)
	delete(r.nodes, id)
	delete(r.names, id)
	r.world.RemovePlayer(engine.PlayerID(id))

	r.log.Info("player left", zap.String("participant", string(id)))
	r.broadcastEvent(types.Event{Kind: types.EventLeft, Player: string(id)})

	if len(r.clients) == 0 && !r.emptied {
		r.emptied = true
		if r.onEmpty != nil {
			r.onEmpty(r.code, r)
		}
		r.cancel()
	}
}

func (r *Room) broadcastSnapshots() {
	r.version++
	for _, id := range r.participants() {
		snap := r.snapshotFor(id)
		r.deliver(id, Update{Snapshot: &snap})
	}
}

func (r *Room) broadcastEvent(e types.Event) {
	for _, id := range r.participants() {
		ev := e
		r.deliver(id, Update{Event: &ev})
	}
}

// deliver never blocks the room. A client whose outbox is full is dropped.
func (r *Room) deliver(id engine.ParticipantID, u Update) {
	ch, ok := r.clients[id]
	if !ok {
		return
	}
	select {
	case ch <- u:
		//ok
	default:
		r.log.Warn("dropping slow client", zap.String("participant", string(id)))
		r.removeParticipant(id)
	}
}

// snapshotFor builds what participant id sees: its own node's mirror of
// everyone's health plus the shared positions.
func (r *Room) snapshotFor(id engine.ParticipantID) types.Snapshot {
	snap := types.Snapshot{
		Version:     r.version,
		Tick:        r.world.Tick,
		Phase:       r.phase,
		Winner:      string(r.winner),
		Players:     []types.PlayerSnapshot{},
		Projectiles: []types.ProjectileSnapshot{},
	}
	node, ok := r.nodes[id]
	if !ok {
		return snap
	}
	snap.Authority = string(node.Authority())
	snap.Players = r.playerSnapshots(node)

	for _, pid := range slices.Sorted(maps.Keys(r.world.Projectiles)) {
		p := r.world.Projectiles[pid]
		snap.Projectiles = append(snap.Projectiles, types.ProjectileSnapshot{
			ID:    string(p.ID),
			Owner: string(p.Owner),
			X:     p.X,
			Y:     p.Y,
		})
	}
	return snap
}

func (r *Room) playerSnapshots(node *engine.Node) []types.PlayerSnapshot {
	out := []types.PlayerSnapshot{}
	for _, pv := range node.Players() {
		ps := types.PlayerSnapshot{
			ID:        string(pv.ID),
			Name:      pv.Name,
			Health:    pv.Health,
			MaxHealth: pv.MaxHealth,
			Alive:     pv.Alive,
		}
		if wp, ok := r.world.Players[pv.ID]; ok {
			ps.X, ps.Y, ps.Heading = wp.X, wp.Y, wp.Heading
		}
		out = append(out, ps)
	}
	return out
}

// view reflects the authority's node, test and API use only.
func (r *Room) view() View {
	v := View{
		Code:       r.code,
		Version:    r.version,
		Tick:       r.world.Tick,
		Phase:      r.phase,
		NumClients: len(r.clients),
		Winner:     r.winner,
		Players:    []types.PlayerSnapshot{},
	}
	for _, id := range r.participants() {
		n := r.nodes[id]
		if n.IsAuthority() || v.Authority == "" {
			v.Authority = n.Authority()
			v.Players = r.playerSnapshots(n)
		}
		if n.IsAuthority() {
			break
		}
	}
	return v
}

// trace logs the engine traffic that changes health or ends the match.
func (r *Room) trace(from, to engine.ParticipantID, msg engine.Message) {
	switch m := msg.(type) {
	case engine.DamageRequest:
		r.log.Debug("damage forwarded",
			zap.String("from", string(from)),
			zap.String("to", string(to)),
			zap.String("target", string(m.Target)),
			zap.Float64("amount", m.Amount))
	case engine.GameOver:
		r.log.Debug("game over sent",
			zap.String("from", string(from)),
			zap.String("to", string(to)),
			zap.Int("epoch", m.Epoch))
	}
}

func (r *Room) participants() []engine.ParticipantID {
	return slices.Sorted(maps.Keys(r.nodes))
}

func (r *Room) shutdown() {
	for id, ch := range r.clients {
		close(ch) // Tell client no more updates
		delete(r.clients, id)
	}
	for id := range r.nodes {
		r.bus.Detach(id)
	}
	clear(r.nodes)
	r.cancel()
}
