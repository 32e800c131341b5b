package world

const (
	ArenaHalfSize    = 25.0
	PlayerRadius     = 0.5
	ProjectileRadius = 0.1
	MoveSpeed        = 5.0   // units per second
	RotationSpeed    = 200.0 // degrees per second
	BulletSpeed      = 10.0  // units per second
	MuzzleOffset     = PlayerRadius + ProjectileRadius + 0.05
	ShootCooldown    = 0.25 // seconds
	SpawnRingRadius  = 10.0
	SpawnRingSlots   = 8
)
