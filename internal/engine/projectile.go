package engine

import (
	"fmt"
	"slices"

	"go.uber.org/zap"
)

type ProjectilePhase string

const (
	ProjectileSpawned  ProjectilePhase = "spawned"
	ProjectileExpired  ProjectilePhase = "expired"
	ProjectileImpacted ProjectilePhase = "impacted"
	ProjectileRemoved  ProjectilePhase = "removed"
)

type Projectile struct {
	ID        ProjectileID
	Spawner   PlayerID
	Damage    float64
	Remaining float64 // seconds
	Phase     ProjectilePhase
}

// Projectiles tracks the projectiles a node spawned. Expiry and impact are
// both transitions out of ProjectileSpawned, so only one of them can win.
type Projectiles struct {
	prefix string
	seq    int
	live   map[ProjectileID]*Projectile
	damage *DamageProcessor
	events *eventLog
	log    *zap.Logger
}

func NewProjectiles(self ParticipantID, damage *DamageProcessor, events *eventLog, log *zap.Logger) *Projectiles {
	return &Projectiles{
		prefix: string(self),
		live:   make(map[ProjectileID]*Projectile),
		damage: damage,
		events: events,
		log:    log,
	}
}

func (ps *Projectiles) Spawn(spawner PlayerID, damage, lifetime float64) (ProjectileID, error) {
	if damage <= 0 || !validAmount(damage) {
		return "", ErrInvalidDamage
	}
	ps.seq++
	id := ProjectileID(fmt.Sprintf("%s-b%d", ps.prefix, ps.seq))
	ps.live[id] = &Projectile{
		ID:        id,
		Spawner:   spawner,
		Damage:    damage,
		Remaining: lifetime,
		Phase:     ProjectileSpawned,
	}
	ps.events.emit(Event{Type: EvtProjectileSpawned, Projectile: id, Player: spawner})
	return id, nil
}

// Advance counts every spawned projectile down by dt seconds.
func (ps *Projectiles) Advance(dt float64) {
	for _, id := range ps.ids() {
		p := ps.live[id]
		if p.Phase != ProjectileSpawned {
			continue
		}
		p.Remaining -= dt
		if p.Remaining <= 0 {
			p.Remaining = 0
			p.Phase = ProjectileExpired
			ps.events.emit(Event{Type: EvtProjectileExpired, Projectile: id, Player: p.Spawner})
		}
	}
}

// Collide resolves a hit. It reports whether damage was dispatched; hits on
// the spawner or on an already resolved projectile do nothing.
func (ps *Projectiles) Collide(id ProjectileID, victim PlayerID) (bool, error) {
	p, ok := ps.live[id]
	if !ok {
		return false, ErrUnknownProjectile
	}
	if p.Phase != ProjectileSpawned || victim == p.Spawner {
		return false, nil
	}

	p.Phase = ProjectileImpacted
	ps.events.emit(Event{Type: EvtProjectileImpacted, Projectile: id, Player: victim, Amount: p.Damage})

	outcome, err := ps.damage.ApplyDamage(victim, p.Damage)
	if err != nil {
		ps.log.Debug("impact damage dropped",
			zap.String("projectile", string(id)),
			zap.String("victim", string(victim)),
			zap.Error(err))
		return true, nil
	}
	ps.log.Debug("impact",
		zap.String("projectile", string(id)),
		zap.String("victim", string(victim)),
		zap.String("outcome", string(outcome)))
	return true, nil
}

// Reap removes resolved projectiles and returns their ids, each exactly once.
func (ps *Projectiles) Reap() []ProjectileID {
	var removed []ProjectileID
	for _, id := range ps.ids() {
		p := ps.live[id]
		if p.Phase != ProjectileExpired && p.Phase != ProjectileImpacted {
			continue
		}
		p.Phase = ProjectileRemoved
		delete(ps.live, id)
		removed = append(removed, id)
		ps.events.emit(Event{Type: EvtProjectileRemoved, Projectile: id, Player: p.Spawner})
	}
	return removed
}

func (ps *Projectiles) Get(id ProjectileID) (Projectile, bool) {
	p, ok := ps.live[id]
	if !ok {
		return Projectile{}, false
	}
	return *p, true
}

func (ps *Projectiles) Len() int { return len(ps.live) }

func (ps *Projectiles) ids() []ProjectileID {
	ids := make([]ProjectileID, 0, len(ps.live))
	for id := range ps.live {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
