package device

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/moffa90/go-hidboot/nvm"
	"github.com/moffa90/go-hidboot/protocol"
)

type fakeTransport struct {
	inbox    []protocol.Packet
	sent     []protocol.Packet
	refuse   int
	inactive bool
	detached []time.Duration
}

func (t *fakeTransport) Receive() (protocol.Packet, bool) {
	if len(t.inbox) == 0 {
		return protocol.Packet{}, false
	}
	pkt := t.inbox[0]
	t.inbox = t.inbox[1:]
	return pkt, true
}

func (t *fakeTransport) SendIfFree(pkt *protocol.Packet) bool {
	if t.refuse > 0 {
		t.refuse--
		return false
	}
	t.sent = append(t.sent, *pkt)
	return true
}

func (t *fakeTransport) LinkActive() bool           { return !t.inactive }
func (t *fakeTransport) Detach(hold time.Duration) { t.detached = append(t.detached, hold) }

type fakePlatform struct {
	supplyLow bool
	watchdog  int
	held      []error
	resets    int
}

func (p *fakePlatform) DisableInterrupts() {}
func (p *fakePlatform) EnableInterrupts()  {}
func (p *fakePlatform) SupplyOK() bool     { return !p.supplyLow }
func (p *fakePlatform) ClearWatchdog()     { p.watchdog++ }
func (p *fakePlatform) Hold(reason error)  { p.held = append(p.held, reason) }
func (p *fakePlatform) Reset()             { p.resets++ }

type dropEvent struct {
	op     protocol.Opcode
	reason DropReason
}

type recorder struct {
	started []protocol.Opcode
	dropped []dropEvent
	blocks  []uint32
	faults  []error
}

func (r *recorder) CommandStarted(op protocol.Opcode) { r.started = append(r.started, op) }
func (r *recorder) CommandDropped(op protocol.Opcode, reason DropReason) {
	r.dropped = append(r.dropped, dropEvent{op, reason})
}
func (r *recorder) BlockCommitted(word uint32) { r.blocks = append(r.blocks, word) }
func (r *recorder) Faulted(err error)          { r.faults = append(r.faults, err) }

type harness struct {
	t    *testing.T
	tr   *fakeTransport
	mem  *nvm.Memory
	plat *fakePlatform
	obs  *recorder
	bl   *Bootloader
}

func newHarness(t *testing.T, geom nvm.Geometry) *harness {
	t.Helper()
	h := &harness{
		t:    t,
		tr:   &fakeTransport{},
		mem:  nvm.NewMemory(geom),
		plat: &fakePlatform{},
		obs:  &recorder{},
	}
	bl, err := New(h.tr, h.mem, h.plat, geom, WithObserver(h.obs))
	require.NoError(t, err)
	h.bl = bl
	return h
}

// send queues pkt and polls until the dispatcher is idle again.
func (h *harness) send(pkt protocol.Packet) {
	h.t.Helper()
	h.tr.inbox = append(h.tr.inbox, pkt)
	require.NoError(h.t, h.bl.Poll())
	require.Equal(h.t, StateIdle, h.bl.State())
}

func (h *harness) program(address uint32, data []byte) {
	h.t.Helper()
	pkt, err := protocol.BuildProgramDeviceCmd(address, data)
	require.NoError(h.t, err)
	h.send(pkt)
}

func (h *harness) read(address uint32, n int) []byte {
	h.t.Helper()
	pkt, err := protocol.BuildGetDataCmd(address, n)
	require.NoError(h.t, err)
	h.send(pkt)
	require.NotEmpty(h.t, h.tr.sent)

	resp, err := protocol.ParseGetDataResponse(&h.tr.sent[len(h.tr.sent)-1])
	require.NoError(h.t, err)
	require.Equal(h.t, address, resp.Address)
	return resp.Data
}

func (h *harness) lastSent() protocol.Packet {
	h.t.Helper()
	require.NotEmpty(h.t, h.tr.sent)
	return h.tr.sent[len(h.tr.sent)-1]
}

// pattern returns n bytes that survive the 14-bit word mask.
func pattern(n int, seed byte) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = (seed + byte(i)) & 0x3F
	}
	return out
}
