package transport

import (
	"errors"
	"fmt"
	"io"

	"github.com/moffa90/go-hidboot/protocol"
)

// readFrame reads exactly one packet. A read that returns no data and no
// error is a timeout, as reported by serial ports with a read timeout set.
func readFrame(r io.Reader, pkt *protocol.Packet) error {
	n := 0
	for n < len(pkt) {
		nn, err := r.Read(pkt[n:])
		n += nn
		if n == len(pkt) {
			return nil
		}
		if err != nil {
			if n > 0 && errors.Is(err, io.EOF) {
				return fmt.Errorf("%w: got %d of %d bytes", ErrShortFrame, n, len(pkt))
			}
			return err
		}
		if nn == 0 {
			if n == 0 {
				return ErrTimeout
			}
			return fmt.Errorf("%w: got %d of %d bytes", ErrShortFrame, n, len(pkt))
		}
	}
	return nil
}

// writeFrame writes p zero padded to one packet.
func writeFrame(w io.Writer, p []byte) error {
	if len(p) > protocol.PacketSize {
		return fmt.Errorf("packet of %d bytes exceeds %d", len(p), protocol.PacketSize)
	}
	var pkt protocol.Packet
	copy(pkt[:], p)

	for off := 0; off < len(pkt); {
		n, err := w.Write(pkt[off:])
		if err != nil {
			return err
		}
		off += n
	}
	return nil
}
