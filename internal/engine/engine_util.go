package engine

import "math"

func ContainsEvent(events []Event, eventType EventType) bool {
	for _, event := range events {
		if event.Type == eventType {
			return true
		}
	}
	return false
}

func CountEvents(events []Event, eventType EventType) int {
	n := 0
	for _, event := range events {
		if event.Type == eventType {
			n++
		}
	}
	return n
}

// eventLog collects events for the host between drains.
type eventLog struct {
	events []Event
}

func (l *eventLog) emit(e Event) {
	l.events = append(l.events, e)
}

func (l *eventLog) drain() []Event {
	out := l.events
	l.events = nil
	return out
}

func validAmount(amount float64) bool {
	return amount >= 0 && !math.IsNaN(amount) && !math.IsInf(amount, 0)
}
