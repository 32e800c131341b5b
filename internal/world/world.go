// Package world is the kinematic layer of a room: where players stand, where
// projectiles fly, and which projectile touched which player. It knows nothing
// about health or ownership rules.
package world

import (
	"errors"
	"math"
	"slices"

	"github.com/DoyleJ11/arena-backend/internal/engine"
)

var ErrUnknownPlayer = errors.New("unknown player")
var ErrCooldown = errors.New("weapon cooling down")
var ErrDead = errors.New("player is dead")

type Input struct {
	Forward float64 // -1..1
	Turn    float64 // -1..1, positive turns clockwise
}

type Player struct {
	ID       engine.PlayerID
	X, Y     float64
	Heading  float64 // degrees, 0 faces +Y
	Dead     bool
	cooldown float64
}

type Projectile struct {
	ID     engine.ProjectileID
	Owner  engine.PlayerID
	X, Y   float64
	VX, VY float64
}

type Hit struct {
	Projectile engine.ProjectileID
	Owner      engine.PlayerID
	Player     engine.PlayerID
}

type World struct {
	Tick        int
	Players     map[engine.PlayerID]*Player
	Projectiles map[engine.ProjectileID]*Projectile
	inputs      map[engine.PlayerID]Input
}

func New() *World {
	return &World{
		Players:     make(map[engine.PlayerID]*Player),
		Projectiles: make(map[engine.ProjectileID]*Projectile),
		inputs:      make(map[engine.PlayerID]Input),
	}
}

// AddPlayer places a player on the spawn ring, facing the centre.
func (w *World) AddPlayer(id engine.PlayerID, slot int) *Player {
	if p, ok := w.Players[id]; ok {
		return p
	}
	angle := float64(slot%SpawnRingSlots) * 360.0 / SpawnRingSlots
	rad := angle * math.Pi / 180
	p := &Player{
		ID:      id,
		X:       math.Sin(rad) * SpawnRingRadius,
		Y:       math.Cos(rad) * SpawnRingRadius,
		Heading: normalizeDegrees(angle + 180),
	}
	w.Players[id] = p
	w.inputs[id] = Input{}
	return p
}

// RemovePlayer drops the player and every projectile it owns. It returns the
// removed projectile ids.
func (w *World) RemovePlayer(id engine.PlayerID) []engine.ProjectileID {
	delete(w.Players, id)
	delete(w.inputs, id)

	var removed []engine.ProjectileID
	for _, pid := range w.projectileIDs() {
		if w.Projectiles[pid].Owner == id {
			delete(w.Projectiles, pid)
			removed = append(removed, pid)
		}
	}
	return removed
}

func (w *World) SetInput(id engine.PlayerID, in Input) {
	if _, ok := w.Players[id]; !ok {
		return
	}
	in.Forward = clamp(finite(in.Forward), -1, 1)
	in.Turn = clamp(finite(in.Turn), -1, 1)
	w.inputs[id] = in
}

func (w *World) MarkDead(id engine.PlayerID) {
	if p, ok := w.Players[id]; ok {
		p.Dead = true
		w.inputs[id] = Input{}
	}
}

func (w *World) CanFire(owner engine.PlayerID) error {
	p, ok := w.Players[owner]
	if !ok {
		return ErrUnknownPlayer
	}
	if p.Dead {
		return ErrDead
	}
	if p.cooldown > 0 {
		return ErrCooldown
	}
	return nil
}

// Fire launches projectile id from owner's muzzle along its heading.
func (w *World) Fire(owner engine.PlayerID, id engine.ProjectileID) error {
	if err := w.CanFire(owner); err != nil {
		return err
	}
	p := w.Players[owner]
	fx, fy := forward(p.Heading)
	w.Projectiles[id] = &Projectile{
		ID:    id,
		Owner: owner,
		X:     p.X + fx*MuzzleOffset,
		Y:     p.Y + fy*MuzzleOffset,
		VX:    fx * BulletSpeed,
		VY:    fy * BulletSpeed,
	}
	p.cooldown = ShootCooldown
	return nil
}

func (w *World) RemoveProjectile(id engine.ProjectileID) {
	delete(w.Projectiles, id)
}

// Step advances everything by dt seconds and reports projectile hits. A
// projectile hits at most one player per step; the owner and dead players
// are never hit. Hits do not remove projectiles, the caller does that.
func (w *World) Step(dt float64) []Hit {
	w.Tick++

	for _, id := range w.playerIDs() {
		p := w.Players[id]
		if p.cooldown > 0 {
			p.cooldown = math.Max(0, p.cooldown-dt)
		}
		if p.Dead {
			continue
		}
		in := w.inputs[id]
		p.Heading = normalizeDegrees(p.Heading + in.Turn*RotationSpeed*dt)
		fx, fy := forward(p.Heading)
		p.X = clamp(p.X+fx*in.Forward*MoveSpeed*dt, -ArenaHalfSize, ArenaHalfSize)
		p.Y = clamp(p.Y+fy*in.Forward*MoveSpeed*dt, -ArenaHalfSize, ArenaHalfSize)
	}

	var hits []Hit
	reach := PlayerRadius + ProjectileRadius
	players := w.playerIDs()
	for _, id := range w.projectileIDs() {
		pr := w.Projectiles[id]
		pr.X += pr.VX * dt
		pr.Y += pr.VY * dt

		for _, pid := range players {
			p := w.Players[pid]
			if pid == pr.Owner || p.Dead {
				continue
			}
			if math.Hypot(p.X-pr.X, p.Y-pr.Y) <= reach {
				hits = append(hits, Hit{Projectile: id, Owner: pr.Owner, Player: pid})
				break
			}
		}
	}
	return hits
}

func (w *World) playerIDs() []engine.PlayerID {
	ids := make([]engine.PlayerID, 0, len(w.Players))
	for id := range w.Players {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (w *World) projectileIDs() []engine.ProjectileID {
	ids := make([]engine.ProjectileID, 0, len(w.Projectiles))
	for id := range w.Projectiles {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func forward(headingDeg float64) (float64, float64) {
	rad := headingDeg * math.Pi / 180
	return math.Sin(rad), math.Cos(rad)
}

func normalizeDegrees(d float64) float64 {
	d = math.Mod(d, 360)
	if d < 0 {
		d += 360
	}
	return d
}

// finite maps NaN and ±Inf to 0.
func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
