package types

// Envelope types, client -> server.
const (
	MsgHello = "hello"
	MsgInput = "input"
	MsgShoot = "shoot"
)

// Envelope types, server -> client.
const (
	MsgWelcome = "welcome"
	MsgState   = "state"
	MsgEvent   = "event"
	MsgError   = "error"
)

type Hello struct {
	Name string `json:"name" msgpack:"name"`
}

type Input struct {
	Forward float64 `json:"forward" msgpack:"forward"` // -1..1
	Turn    float64 `json:"turn" msgpack:"turn"`       // -1..1
}

type Shoot struct{}

type Welcome struct {
	ParticipantID string  `json:"participant_id" msgpack:"participant_id"`
	Room          string  `json:"room" msgpack:"room"`
	TickHz        int     `json:"tick_hz" msgpack:"tick_hz"`
	MaxHealth     float64 `json:"max_health" msgpack:"max_health"`
}

type Phase string

const (
	PhaseWaiting   Phase = "waiting"
	PhaseCountdown Phase = "countdown"
	PhaseRunning   Phase = "running"
	PhaseEnded     Phase = "ended"
)

type Snapshot struct {
	Version     int                  `json:"version" msgpack:"version"`
	Tick        int                  `json:"tick" msgpack:"tick"`
	Phase       Phase                `json:"phase" msgpack:"phase"`
	Authority   string               `json:"authority,omitempty" msgpack:"authority,omitempty"`
	Winner      string               `json:"winner,omitempty" msgpack:"winner,omitempty"`
	Players     []PlayerSnapshot     `json:"players" msgpack:"players"`
	Projectiles []ProjectileSnapshot `json:"projectiles" msgpack:"projectiles"`
}

type PlayerSnapshot struct {
	ID        string  `json:"id" msgpack:"id"`
	Name      string  `json:"name" msgpack:"name"`
	X         float64 `json:"x" msgpack:"x"`
	Y         float64 `json:"y" msgpack:"y"`
	Heading   float64 `json:"heading" msgpack:"heading"`
	Health    float64 `json:"health" msgpack:"health"`
	MaxHealth float64 `json:"max_health" msgpack:"max_health"`
	Alive     bool    `json:"alive" msgpack:"alive"`
}

type ProjectileSnapshot struct {
	ID    string  `json:"id" msgpack:"id"`
	Owner string  `json:"owner" msgpack:"owner"`
	X     float64 `json:"x" msgpack:"x"`
	Y     float64 `json:"y" msgpack:"y"`
}

type EventKind string

const (
	EventStarted   EventKind = "started"
	EventDied      EventKind = "died"
	EventLeft      EventKind = "left"
	EventGameOver  EventKind = "game_over"
	EventNoWinner  EventKind = "no_survivors"
	EventAuthority EventKind = "authority"
)

type Event struct {
	Kind   EventKind `json:"kind" msgpack:"kind"`
	Player string    `json:"player,omitempty" msgpack:"player,omitempty"`
	Winner string    `json:"winner,omitempty" msgpack:"winner,omitempty"`
}

type Error struct {
	Message string `json:"message" msgpack:"message"`
}
