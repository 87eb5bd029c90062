package queue

import (
	"slices"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

// NextIndex resolves the position that should play after the current one, or -1 at the
// end of a non-circular queue. It does not move the queue; commit with UpdateCurrentIndex.
//
// Under shuffle, pending manual insertions win in FIFO order, then the nearest manually
// added track ahead that was not recently played, then a random pick among shuffle entries
// not recently played. When everything was recently played the shuffle order is followed
// strictly so playback never stalls.
func (s *Store) NextIndex() int {
	// Write lock because random picks advance rng.
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextIndexLocked()
}

func (s *Store) nextIndexLocked() int {
	n := len(s.tracks)
	if n == 0 || s.currentIndex < 0 {
		return -1
	}

	if !s.shuffle {
		switch {
		case s.currentIndex+1 < n:
			return s.currentIndex + 1
		case s.circular:
			return 0
		default:
			return -1
		}
	}

	if len(s.pending) > 0 {
		return s.pending[0]
	}

	for i := s.currentIndex + 1; i < n; i++ {
		if _, ok := s.manual[s.tracks[i]]; ok && !s.inRecentLocked(i) {
			return i
		}
	}

	candidates := lo.Filter(s.shuffleOrder, func(v int, _ int) bool {
		return v > s.currentIndex && !s.inRecentLocked(v)
	})
	if len(candidates) == 0 && s.circular {
		candidates = lo.Filter(s.shuffleOrder, func(v int, _ int) bool {
			return v < s.currentIndex && !s.inRecentLocked(v)
		})
	}
	if len(candidates) > 0 {
		return candidates[s.rng.Intn(len(candidates))]
	}

	if len(s.shuffleOrder) == 0 {
		return -1
	}
	pos := slices.Index(s.shuffleOrder, s.currentIndex)
	switch {
	case pos < 0:
		return s.shuffleOrder[0]
	case pos+1 < len(s.shuffleOrder):
		return s.shuffleOrder[pos+1]
	case s.circular:
		return s.shuffleOrder[0]
	default:
		return -1
	}
}

// PreviousIndex resolves the position a "back" action moves to, or -1 when there is none.
// Under shuffle the most recently played entry wins, then the previous shuffle slot.
func (s *Store) PreviousIndex() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.previousIndexLocked()
}

func (s *Store) previousIndexLocked() int {
	n := len(s.tracks)
	if n == 0 || s.currentIndex < 0 {
		return -1
	}

	if !s.shuffle {
		switch {
		case s.currentIndex > 0:
			return s.currentIndex - 1
		case s.circular:
			return n - 1
		default:
			return -1
		}
	}

	for i := len(s.recent) - 1; i >= 0; i-- {
		if r := s.recent[i]; r != s.currentIndex && r < n {
			return r
		}
	}

	if len(s.shuffleOrder) == 0 {
		return -1
	}
	pos := slices.Index(s.shuffleOrder, s.currentIndex)
	switch {
	case pos < 0:
		return s.shuffleOrder[len(s.shuffleOrder)-1]
	case pos > 0:
		return s.shuffleOrder[pos-1]
	case s.circular:
		return s.shuffleOrder[len(s.shuffleOrder)-1]
	default:
		return -1
	}
}

// UpdateCurrentIndex commits a forward move: the previous position becomes the most
// recently played entry and index leaves the pending priority list.
func (s *Store) UpdateCurrentIndex(index int) bool {
	s.mu.Lock()
	if index < 0 || index >= len(s.tracks) {
		s.mu.Unlock()
		return false
	}
	previous := s.currentIndex
	if index != previous {
		s.pushRecentLocked(previous)
	}
	s.removePendingLocked(index)
	s.currentIndex = index
	ev := s.eventLocked(EventIndexChanged)
	s.mu.Unlock()

	s.logger.Debug("Current index updated",
		zap.Int("from", previous),
		zap.Int("to", index))
	s.notify(ev)
	return true
}

// StepBack commits a backward move. The target is popped from the recency ring instead of
// pushing the old position, so repeated presses walk history.
func (s *Store) StepBack(index int) bool {
	s.mu.Lock()
	if index < 0 || index >= len(s.tracks) {
		s.mu.Unlock()
		return false
	}
	previous := s.currentIndex
	s.recent = slices.DeleteFunc(s.recent, func(v int) bool { return v == index })
	s.removePendingLocked(index)
	s.currentIndex = index
	ev := s.eventLocked(EventIndexChanged)
	s.mu.Unlock()

	s.logger.Debug("Stepped back",
		zap.Int("from", previous),
		zap.Int("to", index))
	s.notify(ev)
	return true
}
