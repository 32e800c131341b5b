package engine

import (
	"go.uber.org/zap"
)

// Replicator pushes owned health values out and overwrites mirrors with
// whatever the owner last sent. There is no version counter, so a late
// update can regress a mirror.
type Replicator struct {
	self      ParticipantID
	state     *State
	transport Transport
	log       *zap.Logger
}

func NewReplicator(self ParticipantID, state *State, transport Transport, log *zap.Logger) *Replicator {
	return &Replicator{self: self, state: state, transport: transport, log: log}
}

func (r *Replicator) Publish(id PlayerID) error {
	p, ok := r.state.Get(id)
	if !ok {
		return ErrUnknownPlayer
	}
	if p.Owner != r.self {
		return ErrNotOwner
	}
	return r.transport.Broadcast(HealthUpdate{Player: id, Health: p.Health})
}

// PublishOwned pushes every player this participant owns.
func (r *Replicator) PublishOwned() {
	for _, id := range r.state.OwnedBy(r.self) {
		if err := r.Publish(id); err != nil {
			r.log.Warn("periodic health push failed", zap.String("player", string(id)), zap.Error(err))
		}
	}
}

// Receive applies an update to the local mirror. Only the owner may write a
// player's health, so updates from anyone else are dropped.
func (r *Replicator) Receive(from ParticipantID, upd HealthUpdate) bool {
	p, ok := r.state.Get(upd.Player)
	if !ok {
		return false
	}
	if p.Owner == r.self || p.Owner != from {
		r.log.Debug("rejecting health update",
			zap.String("player", string(upd.Player)),
			zap.String("from", string(from)),
			zap.String("owner", string(p.Owner)))
		return false
	}
	p.setHealth(upd.Health)
	return true
}
