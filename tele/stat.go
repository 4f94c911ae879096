package tele

import "sync"

// Stat counts publish outcomes since the last reset.
type Stat struct {
	sync.Mutex

	Sent    uint32
	Dropped uint32
	Errors  uint32
}

func (s *Stat) Locked_Reset() {
	s.Sent = 0
	s.Dropped = 0
	s.Errors = 0
}

func (s *Stat) Copy() Stat {
	s.Lock()
	defer s.Unlock()
	return Stat{Sent: s.Sent, Dropped: s.Dropped, Errors: s.Errors}
}
