package station

import (
	"time"

	"github.com/nedpals/davi-tagauth/tagauth"
)

// subscriberBuffer bounds how far a slow subscriber may lag before
// snapshots are dropped for it.
const subscriberBuffer = 8

// Snapshot is the status of the most recent operation.
type Snapshot struct {
	State     tagauth.State
	Operation Operation
	UID       string
	Counter   tagauth.Counter
	MAC       string
	Outcome   string
	Message   string
	Error     string
	Time      time.Time
}

// State returns the state of the current or last operation. Each operation
// moves Idle to InProgress and ends in Succeeded or Failed; that terminal
// state lasts until the next operation starts or Reset returns it to Idle.
func (s *Station) State() tagauth.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot.State
}

// Snapshot returns the status of the current or last operation.
func (s *Station) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

// Reset returns a finished operation to Idle. It does nothing while an
// operation is in progress.
func (s *Station) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.snapshot.State == tagauth.StateInProgress {
		return
	}
	s.publishLocked(Snapshot{State: tagauth.StateIdle, Message: "Idle"})
}

// Subscribe returns a channel receiving every snapshot published after the
// call. The cancel func closes the channel and must be called once the
// caller stops reading.
func (s *Station) Subscribe() (<-chan Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSubID
	s.nextSubID++
	ch := make(chan Snapshot, subscriberBuffer)
	s.subscribers[id] = ch

	var once bool
	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if once {
			return
		}
		once = true
		delete(s.subscribers, id)
		close(ch)
	}
	return ch, cancel
}

func (s *Station) update(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publishLocked(snap)
}

func (s *Station) publishLocked(snap Snapshot) {
	snap.Time = s.now()
	s.snapshot = snap
	for _, ch := range s.subscribers {
		select {
		case ch <- snap:
		default:
			s.Logger.Printf("Dropping %s snapshot for slow subscriber", snap.State)
		}
	}
}
