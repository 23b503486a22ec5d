package device

import (
	"time"

	"github.com/moffa90/go-hidboot/nvm"
	"github.com/moffa90/go-hidboot/protocol"
)

// Transport is the packet interface of the USB stack.
type Transport interface {
	// Receive returns the next inbound packet if one has arrived
	Receive() (protocol.Packet, bool)

	// SendIfFree queues pkt for the host unless the IN endpoint is still busy
	SendIfFree(pkt *protocol.Packet) bool

	// LinkActive reports whether the device is configured and not suspended
	LinkActive() bool
}

// Detacher is implemented by transports that can drop off the bus before a
// reset. Hold is how long the device stays detached.
type Detacher interface {
	Detach(hold time.Duration)
}

// Platform is the processor support the bootloader needs beyond the transport.
type Platform interface {
	nvm.Platform

	// Reset restarts the processor
	Reset()
}
