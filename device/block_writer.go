package device

import (
	"github.com/moffa90/go-hidboot/nvm"
	"github.com/moffa90/go-hidboot/protocol"
)

// blockWriter commits staged program data one aligned write block at a time.
type blockWriter struct {
	nvm  *nvm.Unlocker
	geom nvm.Geometry
	obs  Observer
}

// flush writes the staged bytes of s to the block containing their first
// byte. Words of the block before the first staged byte and after the last
// one are written as blank, so they keep whatever an erase left there.
//
// Staged bytes that do not land in the application range are discarded.
func (w *blockWriter) flush(s *session) error {
	if s.fill == 0 {
		return nil
	}

	word := nvm.WordAddress(s.base())
	if !w.geom.InApp(word) {
		w.obs.CommandDropped(protocol.OpProgramDevice, DropOutOfRange)
		s.fill = 0
		return nil
	}

	blockWords := w.geom.BlockWords()
	correction := word & (blockWords - 1)
	first := word - correction

	taken := 0
	for i := uint32(0); i < blockWords; i++ {
		data := w.geom.BlankWord
		if i >= correction && s.fill > 0 {
			lo := s.buf[taken]
			hi := byte(0xFF)
			taken++
			s.fill--
			if s.fill > 0 {
				hi = s.buf[taken]
				taken++
				s.fill--
			}
			data = uint16(hi)<<8 | uint16(lo)
		}

		mode := nvm.ModeLatch
		if i == blockWords-1 {
			mode = nvm.ModeWrite
		}
		req := nvm.Request{Space: nvm.SpaceProgram, Mode: mode, Word: first + i, Data: data}
		if err := w.nvm.Commit(nvm.UnlockToken, req); err != nil {
			return err
		}
	}

	// A block only takes what fits; anything left moves to the front.
	copy(s.buf, s.buf[taken:taken+s.fill])
	w.obs.BlockCommitted(first)
	return nil
}

// drain flushes until nothing is staged. A session that started part way
// into a block can hold more than the rest of that block.
func (w *blockWriter) drain(s *session) error {
	for s.fill > 0 {
		if err := w.flush(s); err != nil {
			return err
		}
	}
	return nil
}
