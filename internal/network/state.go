package network

import "sync"

// State holds the process-wide current network override and fans out changes.
type State struct {
	mu      sync.RWMutex
	current Optional
	nextSub int
	subs    map[int]chan Optional
}

func NewState(initial Optional) *State {
	return &State{
		current: initial,
		subs:    make(map[int]chan Optional),
	}
}

func (s *State) Current() Optional {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Switch sets the override and notifies subscribers when the value changed.
func (s *State) Switch(id ID) {
	s.set(Some(id))
}

// Clear removes the override.
func (s *State) Clear() {
	s.set(None())
}

// Subscribe returns a channel receiving every subsequent change. A subscriber that
// falls behind by more than buffer changes drops the oldest pending value so the
// latest value is always delivered.
func (s *State) Subscribe(buffer int) (<-chan Optional, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Optional, buffer)
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (s *State) set(next Optional) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == next {
		return
	}
	s.current = next
	for _, ch := range s.subs {
		publish(ch, next)
	}
}

func publish(ch chan Optional, v Optional) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
