package device

import "github.com/moffa90/go-hidboot/nvm"

// signer writes the recovery signature, the marker the application checks
// to know a complete image was programmed.
type signer struct {
	nvm      *nvm.Unlocker
	geom     nvm.Geometry
	platform Platform
}

// sign rewrites the erase page holding the signature word with the
// signature patched in.
//
// The page is erased and rewritten one write block at a time. The block
// holding the signature is written last: if power fails part way, the page
// is left unsigned and the bootloader stays in charge on the next boot.
func (s *signer) sign() error {
	g := s.geom
	ctrl := s.nvm.Controller()

	pageWords := g.PageWords()
	page := g.SignatureWord &^ (pageWords - 1)

	scratch := make([]uint16, pageWords)
	for i := range scratch {
		scratch[i] = ctrl.Read(nvm.SpaceProgram, page+uint32(i))
	}
	offset := g.SignatureWord - page
	scratch[offset] = g.SignatureWordValue()

	s.platform.ClearWatchdog()
	if err := s.nvm.Commit(nvm.UnlockToken, nvm.Request{Space: nvm.SpaceProgram, Mode: nvm.ModeErase, Word: page}); err != nil {
		return err
	}

	blockWords := g.BlockWords()
	signed := offset / blockWords
	for blk := uint32(0); blk < pageWords/blockWords; blk++ {
		if blk == signed {
			continue
		}
		if err := s.writeBlock(page, blk, scratch); err != nil {
			return err
		}
	}
	return s.writeBlock(page, signed, scratch)
}

func (s *signer) writeBlock(page, blk uint32, scratch []uint16) error {
	blockWords := s.geom.BlockWords()
	for i := uint32(0); i < blockWords; i++ {
		idx := blk*blockWords + i
		mode := nvm.ModeLatch
		if i == blockWords-1 {
			mode = nvm.ModeWrite
		}
		req := nvm.Request{Space: nvm.SpaceProgram, Mode: mode, Word: page + idx, Data: scratch[idx]}
		if err := s.nvm.Commit(nvm.UnlockToken, req); err != nil {
			return err
		}
	}
	return nil
}
