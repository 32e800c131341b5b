package engine

import (
	"sync"
)

// Message is anything one node sends another.
type Message interface{ isEngineMsg() }

// PlayerSpawned announces a player to the other nodes. Health carries the
// current value so late joiners see dead players as dead.
type PlayerSpawned struct {
	Player    PlayerID
	Name      string
	Owner     ParticipantID
	MaxHealth float64
	Health    float64
}

func (PlayerSpawned) isEngineMsg() {}

// DamageRequest asks the owner of Target to apply damage.
type DamageRequest struct {
	Target PlayerID
	Amount float64
}

func (DamageRequest) isEngineMsg() {}

// HealthUpdate is the owner pushing its player's health to the mirrors.
type HealthUpdate struct {
	Player PlayerID
	Health float64
}

func (HealthUpdate) isEngineMsg() {}

// GameOver is the terminal event broadcast by the authority.
type GameOver struct {
	Winner PlayerID
	Epoch  int
}

func (GameOver) isEngineMsg() {}

// Transport is what a node needs from the network. Delivery happens by the
// transport calling Deliver on the receiving node.
type Transport interface {
	Send(to ParticipantID, msg Message) error
	Broadcast(msg Message) error
	Participants() []ParticipantID
}

type Envelope struct {
	From ParticipantID
	Msg  Message
}

// Inbox hands messages from the network path to the simulation tick.
type Inbox struct {
	mu    sync.Mutex
	items []Envelope
}

func (in *Inbox) Push(env Envelope) {
	in.mu.Lock()
	in.items = append(in.items, env)
	in.mu.Unlock()
}

// Drain returns everything queued so far, in arrival order.
func (in *Inbox) Drain() []Envelope {
	in.mu.Lock()
	defer in.mu.Unlock()
	items := in.items
	in.items = nil
	return items
}

func (in *Inbox) Len() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return len(in.items)
}
