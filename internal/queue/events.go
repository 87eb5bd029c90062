package queue

import (
	"go.uber.org/zap"
)

// EventKind classifies a store change.
type EventKind int

const (
	// EventQueueChanged means tracks were seeded, inserted, removed or cleared
	EventQueueChanged EventKind = iota
	// EventIndexChanged means the current position moved
	EventIndexChanged
	// EventModeChanged means shuffle, circular or source info changed
	EventModeChanged
	// EventMetadataChanged means hydrated metadata was applied
	EventMetadataChanged
	// EventPlaybackChanged means the device's now-playing, progress or playing flag changed
	EventPlaybackChanged
	// EventVolumeChanged means the device reported a different volume
	EventVolumeChanged
	// EventStatusChanged means the device status changed
	EventStatusChanged
)

// String returns the event kind name used in logs and metrics.
func (k EventKind) String() string {
	switch k {
	case EventQueueChanged:
		return "queue"
	case EventIndexChanged:
		return "index"
	case EventModeChanged:
		return "mode"
	case EventMetadataChanged:
		return "metadata"
	case EventPlaybackChanged:
		return "playback"
	case EventVolumeChanged:
		return "volume"
	case EventStatusChanged:
		return "status"
	default:
		return "unknown"
	}
}

// Persistent reports whether the change touches the persisted subset of the queue.
func (k EventKind) Persistent() bool {
	switch k {
	case EventPlaybackChanged, EventStatusChanged:
		return false
	default:
		return true
	}
}

// Event is delivered to subscribers after a mutation has been applied.
type Event struct {
	Kind         EventKind
	CurrentIndex int
	Length       int
}

// Subscribe registers handler for every change. Handlers run on the mutating goroutine
// after the store lock is released, so they may read the store.
func (s *Store) Subscribe(handler func(Event)) (unsubscribe func()) {
	s.subMu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = handler
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subscribers, id)
		s.subMu.Unlock()
	}
}

func (s *Store) notify(events ...Event) {
	if len(events) == 0 {
		return
	}

	s.subMu.RLock()
	handlers := make([]func(Event), 0, len(s.subscribers))
	for _, h := range s.subscribers {
		handlers = append(handlers, h)
	}
	s.subMu.RUnlock()

	for _, ev := range events {
		for _, h := range handlers {
			s.deliver(h, ev)
		}
	}
}

func (s *Store) deliver(handler func(Event), ev Event) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Queue subscriber panicked",
				zap.String("event", ev.Kind.String()),
				zap.Any("panic", r))
		}
	}()
	handler(ev)
}
