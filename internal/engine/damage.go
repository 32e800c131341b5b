package engine

import (
	"fmt"

	"go.uber.org/zap"
)

// DamageProcessor applies damage to players this participant owns and
// forwards everything else to the owner.
type DamageProcessor struct {
	self      ParticipantID
	state     *State
	transport Transport
	replicas  *Replicator
	events    *eventLog
	log       *zap.Logger
}

func NewDamageProcessor(self ParticipantID, state *State, transport Transport, replicas *Replicator, events *eventLog, log *zap.Logger) *DamageProcessor {
	return &DamageProcessor{
		self:      self,
		state:     state,
		transport: transport,
		replicas:  replicas,
		events:    events,
		log:       log,
	}
}

// ApplyDamage is the entry point for local callers (projectile impacts).
// Requests for players owned elsewhere are sent to the owner, never applied here.
func (d *DamageProcessor) ApplyDamage(target PlayerID, amount float64) (Outcome, error) {
	p, err := d.validate(target, amount)
	if err != nil {
		return OutcomeIgnored, err
	}

	if p.Owner != d.self {
		if err := d.transport.Send(p.Owner, DamageRequest{Target: target, Amount: amount}); err != nil {
			d.log.Warn("forward damage failed",
				zap.String("target", string(target)),
				zap.String("owner", string(p.Owner)),
				zap.Error(err))
			return OutcomeIgnored, fmt.Errorf("forward damage to %s: %w", p.Owner, err)
		}
		return OutcomeForwarded, nil
	}

	return d.apply(p, amount), nil
}

// HandleRequest applies a DamageRequest that arrived over the network. It is
// never forwarded again: a request for a player we do not own is dropped.
func (d *DamageProcessor) HandleRequest(from ParticipantID, req DamageRequest) (Outcome, error) {
	p, err := d.validate(req.Target, req.Amount)
	if err != nil {
		return OutcomeIgnored, err
	}
	if p.Owner != d.self {
		d.log.Warn("misrouted damage request",
			zap.String("from", string(from)),
			zap.String("target", string(req.Target)),
			zap.String("owner", string(p.Owner)))
		return OutcomeIgnored, ErrNotOwner
	}
	return d.apply(p, req.Amount), nil
}

func (d *DamageProcessor) validate(target PlayerID, amount float64) (*Player, error) {
	if !validAmount(amount) {
		d.log.Debug("dropping damage", zap.String("target", string(target)), zap.Float64("amount", amount))
		return nil, ErrInvalidDamage
	}
	p, ok := d.state.Get(target)
	if !ok {
		d.log.Debug("dropping damage for unknown player", zap.String("target", string(target)))
		return nil, ErrUnknownPlayer
	}
	return p, nil
}

func (d *DamageProcessor) apply(p *Player, amount float64) Outcome {
	if p.deathFired || !p.Alive() {
		return OutcomeIgnored
	}

	p.setHealth(p.Health - amount)
	d.events.emit(Event{Type: EvtPlayerDamaged, Player: p.ID, Amount: amount, Health: p.Health})

	if err := d.replicas.Publish(p.ID); err != nil {
		d.log.Warn("health broadcast failed", zap.String("player", string(p.ID)), zap.Error(err))
	}

	if p.Health > 0 {
		return OutcomeApplied
	}

	p.deathFired = true
	d.events.emit(Event{Type: EvtPlayerDied, Player: p.ID, Participant: p.Owner})
	d.log.Info("player died", zap.String("player", string(p.ID)), zap.String("name", p.Name))
	return OutcomeKilled
}
