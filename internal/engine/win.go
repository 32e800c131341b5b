package engine

import (
	"go.uber.org/zap"
)

type MatchPhase string

const (
	MatchRunning MatchPhase = "running"
	MatchEnded   MatchPhase = "ended"
)

// WinEvaluator ends the match when exactly one player is left alive.
// Ended is terminal.
type WinEvaluator struct {
	phase       MatchPhase
	winner      PlayerID
	noSurvivors bool
	transport   Transport
	events      *eventLog
	log         *zap.Logger
}

func NewWinEvaluator(transport Transport, events *eventLog, log *zap.Logger) *WinEvaluator {
	return &WinEvaluator{
		phase:     MatchRunning,
		transport: transport,
		events:    events,
		log:       log,
	}
}

// Evaluate scans the state. Callers must only invoke it on the authority.
func (w *WinEvaluator) Evaluate(s *State, epoch int) bool {
	if w.phase == MatchEnded {
		return false
	}

	alive := s.Alive()
	switch len(alive) {
	case 1:
		w.end(alive[0], epoch)
		if err := w.transport.Broadcast(GameOver{Winner: alive[0], Epoch: epoch}); err != nil {
			w.log.Warn("game over broadcast failed", zap.Error(err))
		}
		return true
	case 0:
		// Last players died in the same tick: nobody wins, keep running.
		if s.Len() > 0 && !w.noSurvivors {
			w.noSurvivors = true
			w.events.emit(Event{Type: EvtNoSurvivors, Epoch: epoch})
			w.log.Info("no survivors, no winner declared", zap.Int("players", s.Len()))
		}
	default:
		w.noSurvivors = false
	}
	return false
}

// Observe applies a GameOver received from the authority. Duplicates and
// replays are ignored.
func (w *WinEvaluator) Observe(msg GameOver) bool {
	if w.phase == MatchEnded {
		return false
	}
	w.end(msg.Winner, msg.Epoch)
	return true
}

func (w *WinEvaluator) end(winner PlayerID, epoch int) {
	w.phase = MatchEnded
	w.winner = winner
	w.events.emit(Event{Type: EvtGameOver, Winner: winner, Epoch: epoch})
	w.log.Info("game over", zap.String("winner", string(winner)), zap.Int("epoch", epoch))
}

func (w *WinEvaluator) Phase() MatchPhase { return w.phase }
func (w *WinEvaluator) Winner() PlayerID  { return w.winner }
