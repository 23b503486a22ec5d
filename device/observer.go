package device

import "github.com/moffa90/go-hidboot/protocol"

// DropReason says why a command had no effect.
type DropReason string

const (
	// DropUnknownOpcode means the opcode is not part of the protocol
	DropUnknownOpcode DropReason = "unknown_opcode"

	// DropNonContiguous means PROGRAM_DEVICE data did not continue the open session
	DropNonContiguous DropReason = "non_contiguous"

	// DropOutOfRange means the address lies outside every writable or readable region
	DropOutOfRange DropReason = "out_of_range"

	// DropConfigLocked means a config word write arrived while writes were locked
	DropConfigLocked DropReason = "config_locked"
)

// Observer receives diagnostic events. It never changes what goes on the wire.
type Observer interface {
	CommandStarted(op protocol.Opcode)
	CommandDropped(op protocol.Opcode, reason DropReason)
	BlockCommitted(word uint32)
	Faulted(err error)
}

type nopObserver struct{}

func (nopObserver) CommandStarted(protocol.Opcode)             {}
func (nopObserver) CommandDropped(protocol.Opcode, DropReason) {}
func (nopObserver) BlockCommitted(uint32)                      {}
func (nopObserver) Faulted(error)                              {}
