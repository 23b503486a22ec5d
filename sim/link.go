package sim

import (
	"time"

	"github.com/moffa90/go-hidboot/protocol"
)

// Link is an in-memory USB HID link. The device side implements
// device.Transport and device.Detacher. Like a real IN endpoint, it holds a
// single outbound report until the host collects it.
type Link struct {
	inbox     []protocol.Packet
	out       protocol.Packet
	outFull   bool
	suspended bool
	detaches  []time.Duration
}

// NewLink returns an active, empty link.
func NewLink() *Link {
	return &Link{}
}

// Receive returns the oldest packet sent by the host.
func (l *Link) Receive() (protocol.Packet, bool) {
	if len(l.inbox) == 0 {
		return protocol.Packet{}, false
	}
	pkt := l.inbox[0]
	l.inbox = l.inbox[1:]
	return pkt, true
}

// SendIfFree queues pkt for the host unless the previous report is still
// waiting to be collected.
func (l *Link) SendIfFree(pkt *protocol.Packet) bool {
	if l.outFull {
		return false
	}
	l.out = *pkt
	l.outFull = true
	return true
}

// LinkActive reports whether the link is enumerated and not suspended.
func (l *Link) LinkActive() bool {
	return !l.suspended
}

// Detach simulates dropping off the bus. The simulated host re-enumerates
// immediately, so only the requested hold is recorded.
func (l *Link) Detach(hold time.Duration) {
	l.detaches = append(l.detaches, hold)
	l.inbox = nil
	l.outFull = false
}

// Deliver queues a packet from the host.
func (l *Link) Deliver(pkt protocol.Packet) {
	l.inbox = append(l.inbox, pkt)
}

// Collect takes the pending device report, if any.
func (l *Link) Collect() (protocol.Packet, bool) {
	if !l.outFull {
		return protocol.Packet{}, false
	}
	l.outFull = false
	return l.out, true
}

// Pending returns the number of host packets the device has not read yet.
func (l *Link) Pending() int {
	return len(l.inbox)
}

// SetSuspended simulates bus suspend and resume.
func (l *Link) SetSuspended(suspended bool) {
	l.suspended = suspended
}

// Detaches returns the hold times of every detach so far.
func (l *Link) Detaches() []time.Duration {
	return append([]time.Duration(nil), l.detaches...)
}
