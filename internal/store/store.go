// Package store keeps the results of finished matches. Session state itself
// is never persisted.
package store

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrEmptyRoom = errors.New("room code required")

type MatchResult struct {
	ID         uuid.UUID `json:"id"`
	Room       string    `json:"room"`
	Winner     string    `json:"winner,omitempty"`
	WinnerName string    `json:"winner_name,omitempty"`
	Players    int       `json:"players"`
	Ticks      int       `json:"ticks"`
	EndedAt    time.Time `json:"ended_at"`
}

type Recorder interface {
	RecordMatch(ctx context.Context, m MatchResult) error
	ListMatches(ctx context.Context, room string, limit int) ([]MatchResult, error)
}

// Memory is the Recorder used when no database is configured.
type Memory struct {
	mu      sync.Mutex
	matches []MatchResult
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) RecordMatch(ctx context.Context, r MatchResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.Room == "" {
		return ErrEmptyRoom
	}
	r = withDefaults(r)
	m.mu.Lock()
	m.matches = append(m.matches, r)
	m.mu.Unlock()
	return nil
}

// ListMatches returns the newest matches first.
func (m *Memory) ListMatches(ctx context.Context, room string, limit int) ([]MatchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []MatchResult{}
	for _, r := range slices.Backward(m.matches) {
		if room != "" && r.Room != room {
			continue
		}
		out = append(out, r)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func withDefaults(r MatchResult) MatchResult {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.EndedAt.IsZero() {
		r.EndedAt = time.Now().UTC()
	}
	return r
}
