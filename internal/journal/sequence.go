package journal

// sequencer numbers entries per session, starting at 1 for every new
// session id. Only the loop goroutine calls next.
type sequencer struct {
	session string
	seq     int64
}

func (s *sequencer) next(session string) int64 {
	if session != s.session {
		s.session = session
		s.seq = 0
	}
	s.seq++
	return s.seq
}
