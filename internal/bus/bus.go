// Package bus is the in-process transport between the participant nodes of a
// room. Sends are delivered straight into the receiver's inbox; nothing is
// processed until the receiver's next tick.
package bus

import (
	"errors"
	"slices"
	"sync"

	"github.com/DoyleJ11/arena-backend/internal/engine"
)

var ErrUnknownParticipant = errors.New("unknown participant")
var ErrDetached = errors.New("endpoint detached")

type Receiver interface {
	Deliver(from engine.ParticipantID, msg engine.Message)
}

// Tap sees every message that goes over the bus. Used for metrics and tests.
type Tap func(from, to engine.ParticipantID, msg engine.Message)

type Bus struct {
	mu        sync.RWMutex
	receivers map[engine.ParticipantID]Receiver
	taps      []Tap
}

func New() *Bus {
	return &Bus{receivers: make(map[engine.ParticipantID]Receiver)}
}

// Endpoint returns the transport a node uses to talk as id.
func (b *Bus) Endpoint(id engine.ParticipantID) *Endpoint {
	return &Endpoint{bus: b, self: id}
}

// Attach makes id a participant: it shows up in Participants and receives.
func (b *Bus) Attach(id engine.ParticipantID, r Receiver) {
	b.mu.Lock()
	b.receivers[id] = r
	b.mu.Unlock()
}

func (b *Bus) Detach(id engine.ParticipantID) {
	b.mu.Lock()
	delete(b.receivers, id)
	b.mu.Unlock()
}

func (b *Bus) OnMessage(t Tap) {
	b.mu.Lock()
	b.taps = append(b.taps, t)
	b.mu.Unlock()
}

func (b *Bus) Participants() []engine.ParticipantID {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ids := make([]engine.ParticipantID, 0, len(b.receivers))
	for id := range b.receivers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (b *Bus) send(from, to engine.ParticipantID, msg engine.Message) error {
	b.mu.RLock()
	if _, ok := b.receivers[from]; !ok {
		b.mu.RUnlock()
		return ErrDetached
	}
	r, ok := b.receivers[to]
	taps := b.taps
	b.mu.RUnlock()
	if !ok {
		return ErrUnknownParticipant
	}
	for _, t := range taps {
		t(from, to, msg)
	}
	r.Deliver(from, msg)
	return nil
}

func (b *Bus) broadcast(from engine.ParticipantID, msg engine.Message) error {
	b.mu.RLock()
	if _, ok := b.receivers[from]; !ok {
		b.mu.RUnlock()
		return ErrDetached
	}
	ids := make([]engine.ParticipantID, 0, len(b.receivers))
	for id := range b.receivers {
		if id != from {
			ids = append(ids, id)
		}
	}
	taps := b.taps
	receivers := make([]Receiver, 0, len(ids))
	slices.Sort(ids)
	for _, id := range ids {
		receivers = append(receivers, b.receivers[id])
	}
	b.mu.RUnlock()

	for i, r := range receivers {
		for _, t := range taps {
			t(from, ids[i], msg)
		}
		r.Deliver(from, msg)
	}
	return nil
}

// Endpoint implements engine.Transport for one participant.
type Endpoint struct {
	bus  *Bus
	self engine.ParticipantID
}

func (e *Endpoint) Send(to engine.ParticipantID, msg engine.Message) error {
	return e.bus.send(e.self, to, msg)
}

// Broadcast delivers to every other participant.
func (e *Endpoint) Broadcast(msg engine.Message) error {
	return e.bus.broadcast(e.self, msg)
}

func (e *Endpoint) Participants() []engine.ParticipantID {
	return e.bus.Participants()
}
