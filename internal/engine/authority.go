package engine

import (
	"slices"
)

// Coordinator decides which participant is the authority. Every node runs
// the same election over the same membership, so they agree without talking.
type Coordinator struct {
	self      ParticipantID
	members   []ParticipantID
	authority ParticipantID
	epoch     int
	pending   bool
}

func NewCoordinator(self ParticipantID) *Coordinator {
	return &Coordinator{self: self}
}

// Sync replaces the membership view. Losing the current authority opens a
// gap that only Elect closes. Returns the participants that left.
func (c *Coordinator) Sync(current []ParticipantID) []ParticipantID {
	next := slices.Clone(current)
	slices.Sort(next)
	next = slices.Compact(next)

	var departed []ParticipantID
	for _, id := range c.members {
		if !slices.Contains(next, id) {
			departed = append(departed, id)
		}
	}
	c.members = next

	switch {
	case c.authority == "" && !c.pending && len(next) > 0:
		c.elect()
	case c.authority != "" && !slices.Contains(next, c.authority):
		c.authority = ""
		c.pending = true
	}
	return departed
}

// Pending reports an open authority gap.
func (c *Coordinator) Pending() bool { return c.pending }

// Elect closes a gap. It reports whether an election actually happened.
func (c *Coordinator) Elect() bool {
	if !c.pending {
		return false
	}
	c.pending = false
	if len(c.members) == 0 {
		return false
	}
	c.elect()
	return true
}

func (c *Coordinator) elect() {
	c.authority = c.members[0]
	c.epoch++
}

func (c *Coordinator) Authority() ParticipantID { return c.authority }
func (c *Coordinator) Epoch() int               { return c.epoch }

func (c *Coordinator) IsAuthority() bool {
	return !c.pending && c.authority != "" && c.authority == c.self
}

func (c *Coordinator) Members() []ParticipantID { return slices.Clone(c.members) }
