package engine

import "errors"

var ErrUnknownPlayer = errors.New("unknown player")
var ErrInvalidDamage = errors.New("invalid damage amount")
var ErrNotOwner = errors.New("not the owner")
var ErrDuplicatePlayer = errors.New("player already exists")
var ErrPlayerDead = errors.New("player is dead")
var ErrUnknownProjectile = errors.New("unknown projectile")

// ParticipantID identifies a network participant (one connected client).
type ParticipantID string

// PlayerID identifies a Player inside the session.
type PlayerID string

// ProjectileID identifies a projectile spawned by one node.
type ProjectileID string

// Outcome describes what ApplyDamage did with a request.
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeKilled    Outcome = "killed"
	OutcomeForwarded Outcome = "forwarded"
	OutcomeIgnored   Outcome = "ignored"
)

type EventType string

const (
	EvtPlayerSpawned      EventType = "PlayerSpawned"
	EvtPlayerLeft         EventType = "PlayerLeft"
	EvtPlayerDamaged      EventType = "PlayerDamaged"
	EvtPlayerDied         EventType = "PlayerDied"
	EvtProjectileSpawned  EventType = "ProjectileSpawned"
	EvtProjectileExpired  EventType = "ProjectileExpired"
	EvtProjectileImpacted EventType = "ProjectileImpacted"
	EvtProjectileRemoved  EventType = "ProjectileRemoved"
	EvtAuthorityChanged   EventType = "AuthorityChanged"
	EvtNoSurvivors        EventType = "NoSurvivors"
	EvtGameOver           EventType = "GameOver"
)

/*
	Damage:     DamageRequest (forwarded) -> PlayerDamaged -> HealthUpdate broadcast -> PlayerDied (once)
	Projectile: ProjectileSpawned -> ProjectileExpired | ProjectileImpacted -> ProjectileRemoved
	Win:        (authority only) NoSurvivors | GameOver -> GameOver broadcast
*/

type Event struct {
	Type        EventType
	Player      PlayerID
	Participant ParticipantID
	Projectile  ProjectileID
	Amount      float64
	Health      float64
	Winner      PlayerID
	Epoch       int
}

// Options are the per-session tunables shared by every node in a room.
type Options struct {
	MaxHealth          float64
	ProjectileDamage   float64
	ProjectileLifetime float64 // seconds
	ReplicateEvery     int     // ticks between periodic health pushes
}

func DefaultOptions() Options {
	return Options{
		MaxHealth:          100,
		ProjectileDamage:   20,
		ProjectileLifetime: 5,
		ReplicateEvery:     6,
	}
}

func (o Options) normalized() Options {
	d := DefaultOptions()
	if o.MaxHealth <= 0 {
		o.MaxHealth = d.MaxHealth
	}
	if o.ProjectileDamage <= 0 {
		o.ProjectileDamage = d.ProjectileDamage
	}
	if o.ProjectileLifetime <= 0 {
		o.ProjectileLifetime = d.ProjectileLifetime
	}
	if o.ReplicateEvery < 0 {
		o.ReplicateEvery = 0
	}
	return o
}
