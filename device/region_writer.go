package device

import (
	"github.com/moffa90/go-hidboot/nvm"
	"github.com/moffa90/go-hidboot/protocol"
)

// regionWriter writes user ID and configuration words straight from a
// PROGRAM_DEVICE payload, bypassing the staging buffer.
type regionWriter struct {
	nvm  *nvm.Unlocker
	geom nvm.Geometry
	obs  Observer
}

// write programs data as little-endian word pairs starting at the host
// byte address. An odd trailing byte is paired with 0xFF.
func (w *regionWriter) write(address uint32, data []byte) error {
	if len(data) == 0 {
		return nil
	}

	word := nvm.WordAddress(address)
	words := uint32(len(data)+1) / 2
	if !w.writable(word, words) {
		w.obs.CommandDropped(protocol.OpProgramDevice, DropOutOfRange)
		return nil
	}

	for i := 0; i < len(data); i += 2 {
		hi := byte(0xFF)
		if i+1 < len(data) {
			hi = data[i+1]
		}

		mode := nvm.ModeLatch
		if i+2 >= len(data) {
			mode = nvm.ModeWrite
		}
		req := nvm.Request{
			Space: nvm.SpaceConfig,
			Mode:  mode,
			Word:  word,
			Data:  uint16(hi)<<8 | uint16(data[i]),
		}
		if err := w.nvm.Commit(nvm.UnlockToken, req); err != nil {
			return err
		}
		word++
	}
	return nil
}

func (w *regionWriter) writable(word, count uint32) bool {
	g := w.geom
	last := word + count - 1
	if word >= g.UserIDStart && last < g.UserIDStart+g.UserIDWords {
		return true
	}
	return word >= g.ConfigStart && last < g.ConfigStart+g.ConfigWords
}
