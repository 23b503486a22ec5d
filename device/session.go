package device

// noSession is the cursor value while no program session is open.
const noSession uint32 = 0xFFFFFFFF

// session is the state of one PROGRAM_DEVICE run: the host byte address the
// next payload must start at, and the bytes staged for the block in progress.
type session struct {
	cursor uint32
	buf    []byte
	fill   int
}

func newSession(blockSize int) session {
	return session{cursor: noSession, buf: make([]byte, blockSize)}
}

func (s *session) open() bool {
	return s.cursor != noSession
}

func (s *session) close() {
	s.cursor = noSession
	s.fill = 0
}

// base returns the host byte address of the first staged byte.
func (s *session) base() uint32 {
	return s.cursor - uint32(s.fill)
}
