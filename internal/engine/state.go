package engine

import (
	"slices"
)

type Player struct {
	ID        PlayerID
	Name      string
	Owner     ParticipantID
	MaxHealth float64
	Health    float64

	deathFired bool
}

func (p *Player) Alive() bool {
	return p.Health > 0
}

// setHealth clamps into [0, MaxHealth].
func (p *Player) setHealth(health float64) {
	if health < 0 {
		health = 0
	}
	if health > p.MaxHealth {
		health = p.MaxHealth
	}
	p.Health = health
}

// PlayerView is the read-only copy handed to hosts and UIs.
type PlayerView struct {
	ID        PlayerID
	Name      string
	Owner     ParticipantID
	MaxHealth float64
	Health    float64
	Alive     bool
}

// State is one node's record of every player in the session.
type State struct {
	players map[PlayerID]*Player
}

func NewState() *State {
	return &State{players: make(map[PlayerID]*Player)}
}

func (s *State) Add(p Player) (*Player, error) {
	if _, ok := s.players[p.ID]; ok {
		return nil, ErrDuplicatePlayer
	}
	if p.MaxHealth <= 0 {
		p.MaxHealth = DefaultOptions().MaxHealth
	}
	np := &Player{ID: p.ID, Name: p.Name, Owner: p.Owner, MaxHealth: p.MaxHealth}
	np.setHealth(p.Health)
	np.deathFired = !np.Alive()
	s.players[p.ID] = np
	return np, nil
}

func (s *State) Get(id PlayerID) (*Player, bool) {
	p, ok := s.players[id]
	return p, ok
}

func (s *State) Remove(id PlayerID) bool {
	if _, ok := s.players[id]; !ok {
		return false
	}
	delete(s.players, id)
	return true
}

func (s *State) Len() int { return len(s.players) }

// IDs returns player ids in sorted order so scans are deterministic.
func (s *State) IDs() []PlayerID {
	ids := make([]PlayerID, 0, len(s.players))
	for id := range s.players {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (s *State) Alive() []PlayerID {
	alive := []PlayerID{}
	for _, id := range s.IDs() {
		if s.players[id].Alive() {
			alive = append(alive, id)
		}
	}
	return alive
}

// OwnedBy returns the ids of players owned by participant.
func (s *State) OwnedBy(owner ParticipantID) []PlayerID {
	owned := []PlayerID{}
	for _, id := range s.IDs() {
		if s.players[id].Owner == owner {
			owned = append(owned, id)
		}
	}
	return owned
}

func (s *State) Views() []PlayerView {
	views := make([]PlayerView, 0, len(s.players))
	for _, id := range s.IDs() {
		views = append(views, s.players[id].View())
	}
	return views
}

func (p *Player) View() PlayerView {
	return PlayerView{
		ID:        p.ID,
		Name:      p.Name,
		Owner:     p.Owner,
		MaxHealth: p.MaxHealth,
		Health:    p.Health,
		Alive:     p.Alive(),
	}
}
