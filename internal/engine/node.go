package engine

import (
	"go.uber.org/zap"
)

// Node is one participant's view of the session. The host calls OnTick at a
// fixed rate and OnCollision when the physics layer sees a hit; the
// transport calls Deliver from whatever goroutine the network runs on.
type Node struct {
	self      ParticipantID
	opts      Options
	transport Transport
	log       *zap.Logger

	state       *State
	inbox       Inbox
	events      eventLog
	authority   *Coordinator
	replicas    *Replicator
	damage      *DamageProcessor
	win         *WinEvaluator
	projectiles *Projectiles

	formerAuthorities map[ParticipantID]bool
	started           bool
	tick              int
}

func NewNode(self ParticipantID, transport Transport, opts Options, log *zap.Logger) *Node {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("participant", string(self)))
	opts = opts.normalized()

	n := &Node{
		self:              self,
		opts:              opts,
		transport:         transport,
		log:               log,
		state:             NewState(),
		authority:         NewCoordinator(self),
		formerAuthorities: make(map[ParticipantID]bool),
	}
	n.replicas = NewReplicator(self, n.state, transport, log)
	n.damage = NewDamageProcessor(self, n.state, transport, n.replicas, &n.events, log)
	n.win = NewWinEvaluator(transport, &n.events, log)
	n.projectiles = NewProjectiles(self, n.damage, &n.events, log)
	return n
}

// Deliver queues a message for the next tick. Safe for concurrent use.
func (n *Node) Deliver(from ParticipantID, msg Message) {
	n.inbox.Push(Envelope{From: from, Msg: msg})
}

// Spawn creates this participant's player and announces it.
func (n *Node) Spawn(name string) (PlayerID, error) {
	id := PlayerID(n.self)
	p, err := n.state.Add(Player{
		ID:        id,
		Name:      name,
		Owner:     n.self,
		MaxHealth: n.opts.MaxHealth,
		Health:    n.opts.MaxHealth,
	})
	if err != nil {
		return "", err
	}
	n.events.emit(Event{Type: EvtPlayerSpawned, Player: id, Participant: n.self, Health: p.Health})
	if err := n.transport.Broadcast(spawnMessage(p)); err != nil {
		n.log.Warn("spawn broadcast failed", zap.Error(err))
	}
	return id, nil
}

// Start arms win evaluation. Before it the match is a warm-up.
func (n *Node) Start() { n.started = true }

// Conclude marks the match as already decided, for participants that join
// after the GameOver went out. It never broadcasts.
func (n *Node) Conclude(winner PlayerID) {
	n.win.Observe(GameOver{Winner: winner, Epoch: n.authority.Epoch()})
}

func (n *Node) OnTick(dt float64) {
	n.tick++

	// A gap opened on a previous tick is closed before anything else runs.
	if n.authority.Elect() {
		n.authorityChanged()
	}

	for _, env := range n.inbox.Drain() {
		n.handle(env)
	}

	n.syncMembership()

	n.projectiles.Advance(dt)
	n.projectiles.Reap()

	if n.opts.ReplicateEvery > 0 && n.tick%n.opts.ReplicateEvery == 0 {
		n.replicas.PublishOwned()
	}

	if n.started && n.authority.IsAuthority() {
		n.win.Evaluate(n.state, n.authority.Epoch())
	}
}

// OnCollision resolves projectile hitting player.
func (n *Node) OnCollision(projectile ProjectileID, player PlayerID) (bool, error) {
	return n.projectiles.Collide(projectile, player)
}

// Shoot spawns a projectile from this participant's player.
func (n *Node) Shoot() (ProjectileID, error) {
	id := PlayerID(n.self)
	p, ok := n.state.Get(id)
	if !ok {
		return "", ErrUnknownPlayer
	}
	if !p.Alive() {
		return "", ErrPlayerDead
	}
	return n.projectiles.Spawn(id, n.opts.ProjectileDamage, n.opts.ProjectileLifetime)
}

func (n *Node) ApplyDamage(target PlayerID, amount float64) (Outcome, error) {
	return n.damage.ApplyDamage(target, amount)
}

func (n *Node) handle(env Envelope) {
	switch msg := env.Msg.(type) {
	case PlayerSpawned:
		n.handleSpawn(env.From, msg)

	case DamageRequest:
		if _, err := n.damage.HandleRequest(env.From, msg); err != nil {
			n.log.Debug("damage request dropped", zap.String("from", string(env.From)), zap.Error(err))
		}

	case HealthUpdate:
		n.replicas.Receive(env.From, msg)

	case GameOver:
		if env.From != n.authority.Authority() && !n.formerAuthorities[env.From] {
			n.log.Warn("game over from non-authority", zap.String("from", string(env.From)))
			return
		}
		n.win.Observe(msg)

	default:
		n.log.Warn("unsupported message", zap.String("from", string(env.From)))
	}
}

func (n *Node) handleSpawn(from ParticipantID, msg PlayerSpawned) {
	if msg.Owner != from {
		n.log.Warn("spawn from non-owner", zap.String("from", string(from)), zap.String("owner", string(msg.Owner)))
		return
	}
	p, err := n.state.Add(Player{
		ID:        msg.Player,
		Name:      msg.Name,
		Owner:     msg.Owner,
		MaxHealth: msg.MaxHealth,
		Health:    msg.Health,
	})
	if err != nil {
		return
	}
	n.events.emit(Event{Type: EvtPlayerSpawned, Player: p.ID, Participant: p.Owner, Health: p.Health})

	// Catch the newcomer up on what we own.
	for _, id := range n.state.OwnedBy(n.self) {
		own, _ := n.state.Get(id)
		if err := n.transport.Send(from, spawnMessage(own)); err != nil {
			n.log.Warn("spawn reply failed", zap.String("to", string(from)), zap.Error(err))
		}
	}
}

func (n *Node) syncMembership() {
	epoch := n.authority.Epoch()
	departed := n.authority.Sync(n.transport.Participants())

	for _, gone := range departed {
		for _, id := range n.state.OwnedBy(gone) {
			n.state.Remove(id)
			n.events.emit(Event{Type: EvtPlayerLeft, Player: id, Participant: gone})
		}
	}

	if n.authority.Pending() {
		n.log.Info("authority left, election pending")
		return
	}
	if n.authority.Epoch() != epoch {
		n.authorityChanged()
	}
}

func (n *Node) authorityChanged() {
	a := n.authority.Authority()
	n.formerAuthorities[a] = true
	n.events.emit(Event{Type: EvtAuthorityChanged, Participant: a, Epoch: n.authority.Epoch()})
	n.log.Info("authority elected", zap.String("authority", string(a)), zap.Int("epoch", n.authority.Epoch()))
}

func spawnMessage(p *Player) PlayerSpawned {
	return PlayerSpawned{
		Player:    p.ID,
		Name:      p.Name,
		Owner:     p.Owner,
		MaxHealth: p.MaxHealth,
		Health:    p.Health,
	}
}

// DrainEvents returns the events produced since the previous call.
func (n *Node) DrainEvents() []Event { return n.events.drain() }

func (n *Node) Self() ParticipantID      { return n.self }
func (n *Node) Started() bool            { return n.started }
func (n *Node) Tick() int                { return n.tick }
func (n *Node) Authority() ParticipantID { return n.authority.Authority() }
func (n *Node) IsAuthority() bool        { return n.authority.IsAuthority() }
func (n *Node) Ended() bool              { return n.win.Phase() == MatchEnded }
func (n *Node) Players() []PlayerView    { return n.state.Views() }

func (n *Node) Winner() (PlayerID, bool) {
	if n.win.Phase() != MatchEnded {
		return "", false
	}
	return n.win.Winner(), true
}

func (n *Node) Health(id PlayerID) (float64, bool) {
	p, ok := n.state.Get(id)
	if !ok {
		return 0, false
	}
	return p.Health, true
}

func (n *Node) MaxHealth(id PlayerID) (float64, bool) {
	p, ok := n.state.Get(id)
	if !ok {
		return 0, false
	}
	return p.MaxHealth, true
}

func (n *Node) Projectile(id ProjectileID) (Projectile, bool) {
	return n.projectiles.Get(id)
}
