package nvm

// ConfigSpaceWords is the number of words implemented in config space
// (user IDs, device ID, revision and configuration words).
const ConfigSpaceWords = 16

type latchKey struct {
	space Space
	word  uint32
}

// Memory is a simulated flash controller with self-write semantics:
//
//   - programming can only clear bits, so a word must be erased before it
//     can take an arbitrary value (configuration words are the exception and
//     are replaced outright)
//   - a request only takes effect when Start follows the 0x55, 0xAA unlock
//     sequence; otherwise it is rejected and counted
//   - any register access within SettleCycles of a commit is counted as a
//     violation
//
// Memory is not safe for concurrent use; the bootloader owns it.
type Memory struct {
	geom    Geometry
	flash   []uint16
	config  [ConfigSpaceWords]uint16
	latches map[latchKey]uint16

	pending Request
	loaded  bool
	unlock  int
	settle  int

	commits    []Request
	rejected   int
	violations int
}

// NewMemory returns a fully erased memory for the geometry.
func NewMemory(geom Geometry) *Memory {
	m := &Memory{
		geom:    geom,
		flash:   make([]uint16, geom.FlashWords),
		latches: make(map[latchKey]uint16),
	}
	for i := range m.flash {
		m.flash[i] = geom.BlankWord
	}
	for i := range m.config {
		m.config[i] = geom.BlankWord
	}
	return m
}

// Read returns the word at the given address; unimplemented addresses read as zero.
func (m *Memory) Read(space Space, word uint32) uint16 {
	if p := m.cell(space, word); p != nil {
		return *p
	}
	return 0
}

// Load sets up the pending request and cancels any partial unlock sequence.
func (m *Memory) Load(req Request) {
	m.touch()
	m.pending = req
	m.loaded = true
	m.unlock = 0
}

// WriteControl advances the unlock sequence.
func (m *Memory) WriteControl(v byte) {
	m.touch()
	switch {
	case m.unlock == 0 && v == unlockKey1:
		m.unlock = 1
	case m.unlock == 1 && v == unlockKey2:
		m.unlock = 2
	default:
		m.unlock = 0
	}
}

// Start commits the pending request if it was correctly unlocked.
func (m *Memory) Start() {
	if m.unlock != 2 || !m.loaded {
		m.rejected++
		m.unlock = 0
		return
	}
	m.unlock = 0
	m.apply(m.pending)
	m.commits = append(m.commits, m.pending)
	m.settle = SettleCycles
}

// Settle idles for the given number of cycles.
func (m *Memory) Settle(cycles int) {
	m.settle -= cycles
	if m.settle < 0 {
		m.settle = 0
	}
}

func (m *Memory) touch() {
	if m.settle > 0 {
		m.violations++
		m.settle = 0
	}
}

func (m *Memory) apply(req Request) {
	switch req.Mode {
	case ModeErase:
		m.erase(req)
	case ModeLatch:
		m.latches[latchKey{req.Space, req.Word}] = req.Data & m.geom.BlankWord
	case ModeWrite:
		m.latches[latchKey{req.Space, req.Word}] = req.Data & m.geom.BlankWord
		for k, v := range m.latches {
			if k.space != req.Space {
				continue
			}
			m.program(k.space, k.word, v)
			delete(m.latches, k)
		}
	}
}

func (m *Memory) erase(req Request) {
	if req.Space == SpaceConfig {
		for w := m.geom.UserIDStart; w < m.geom.UserIDStart+m.geom.UserIDWords; w++ {
			if p := m.cell(SpaceConfig, w); p != nil {
				*p = m.geom.BlankWord
			}
		}
		return
	}

	base := req.Word &^ (m.geom.PageWords() - 1)
	for w := base; w < base+m.geom.PageWords(); w++ {
		if p := m.cell(SpaceProgram, w); p != nil {
			*p = m.geom.BlankWord
		}
	}
}

func (m *Memory) program(space Space, word uint32, v uint16) {
	p := m.cell(space, word)
	if p == nil {
		return
	}
	if space == SpaceConfig && word >= m.geom.ConfigStart {
		*p = v
		return
	}
	*p &= v
}

func (m *Memory) cell(space Space, word uint32) *uint16 {
	if space == SpaceConfig {
		if word < ConfigSpaceBase || word-ConfigSpaceBase >= ConfigSpaceWords {
			return nil
		}
		return &m.config[word-ConfigSpaceBase]
	}
	if word >= uint32(len(m.flash)) {
		return nil
	}
	return &m.flash[word]
}

// Poke stores a word directly, bypassing the write path. It is meant for
// seeding simulated contents such as the bootloader itself.
func (m *Memory) Poke(space Space, word uint32, v uint16) {
	if p := m.cell(space, word); p != nil {
		*p = v & m.geom.BlankWord
	}
}

// Commits returns the committed requests in order.
func (m *Memory) Commits() []Request {
	out := make([]Request, len(m.commits))
	copy(out, m.commits)
	return out
}

// ClearCommits forgets the commit trace.
func (m *Memory) ClearCommits() {
	m.commits = nil
}

// RejectedStarts returns how many commits were refused for a bad unlock sequence.
func (m *Memory) RejectedStarts() int {
	return m.rejected
}

// Violations returns how many register accesses ignored the settle time.
func (m *Memory) Violations() int {
	return m.violations
}

// Geometry returns the geometry the memory was built with.
func (m *Memory) Geometry() Geometry {
	return m.geom
}
