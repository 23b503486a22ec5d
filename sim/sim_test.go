package sim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moffa90/go-hidboot/device"
	"github.com/moffa90/go-hidboot/nvm"
	"github.com/moffa90/go-hidboot/protocol"
)

func newDevice(t *testing.T) *Device {
	t.Helper()
	dev, err := New(nvm.PIC16F145x())
	require.NoError(t, err)
	return dev
}

func roundTrip(t *testing.T, conn *Conn, pkt protocol.Packet) protocol.Packet {
	t.Helper()
	_, err := conn.Write(pkt[:])
	require.NoError(t, err)

	var resp protocol.Packet
	n, err := conn.Read(resp[:])
	require.NoError(t, err)
	require.Equal(t, protocol.PacketSize, n)
	return resp
}

func TestConnQuery(t *testing.T) {
	dev := newDevice(t)

	resp := roundTrip(t, dev.Conn(), protocol.BuildQueryDeviceCmd())
	layout, err := protocol.ParseQueryDeviceResponse(&resp)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x1200), layout.Regions[0].Address)
}

func TestConnNoResponse(t *testing.T) {
	dev := newDevice(t)
	conn := dev.Conn()

	pkt := protocol.BuildEraseDeviceCmd()
	_, err := conn.Write(pkt[:])
	require.NoError(t, err)

	_, err = conn.Read(make([]byte, protocol.PacketSize))
	assert.ErrorIs(t, err, ErrNoResponse)
}

func TestConnShortWritePadded(t *testing.T) {
	dev := newDevice(t)
	conn := dev.Conn()

	n, err := conn.Write([]byte{byte(protocol.OpQueryExtendedInfo)})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var resp protocol.Packet
	_, err = conn.Read(resp[:])
	require.NoError(t, err)
	assert.Equal(t, protocol.OpQueryExtendedInfo, resp.Opcode())

	_, err = conn.Write(make([]byte, protocol.PacketSize+1))
	assert.Error(t, err)
}

func TestConnBackpressure(t *testing.T) {
	dev := newDevice(t)
	conn := dev.Conn()

	q := protocol.BuildQueryDeviceCmd()
	x := protocol.BuildQueryExtendedInfoCmd()
	_, err := conn.Write(q[:])
	require.NoError(t, err)
	_, err = conn.Write(x[:])
	require.NoError(t, err)
	assert.Equal(t, device.StateBusy, dev.Bootloader.State(), "second reply waits for the endpoint")

	var resp protocol.Packet
	_, err = conn.Read(resp[:])
	require.NoError(t, err)
	assert.Equal(t, protocol.OpQueryDevice, resp.Opcode())

	_, err = conn.Read(resp[:])
	require.NoError(t, err)
	assert.Equal(t, protocol.OpQueryExtendedInfo, resp.Opcode())
	assert.Equal(t, device.StateIdle, dev.Bootloader.State())
}

func TestConnProgramAndSign(t *testing.T) {
	dev := newDevice(t)
	conn := dev.Conn()
	assert.False(t, dev.Signed())

	prog, err := protocol.BuildProgramDeviceCmd(0x1200, []byte{0x00, 0x30, 0x01, 0x02})
	require.NoError(t, err)
	for _, pkt := range []protocol.Packet{
		protocol.BuildEraseDeviceCmd(),
		prog,
		protocol.BuildProgramCompleteCmd(),
		protocol.BuildSignFlashCmd(),
	} {
		_, err := conn.Write(pkt[:])
		require.NoError(t, err)
	}
	assert.True(t, dev.Signed())
	assert.Equal(t, uint16(0x0201), dev.Memory.Read(nvm.SpaceProgram, 0x901))
}

func TestConnFault(t *testing.T) {
	dev := newDevice(t)
	conn := dev.Conn()
	dev.Platform.SetSupplyOK(false)

	pkt := protocol.BuildEraseDeviceCmd()
	_, err := conn.Write(pkt[:])
	require.Error(t, err)
	assert.True(t, nvm.IsFault(err))
	assert.Len(t, dev.Platform.Held(), 1)
	assert.True(t, dev.Platform.InterruptsEnabled())

	_, err = conn.Write(pkt[:])
	assert.ErrorIs(t, err, device.ErrHalted)
}

func TestConnReset(t *testing.T) {
	dev := newDevice(t)
	conn := dev.Conn()

	pkt := protocol.BuildResetDeviceCmd()
	_, err := conn.Write(pkt[:])
	require.NoError(t, err)

	assert.Equal(t, 1, dev.Platform.Resets())
	assert.Equal(t, []time.Duration{100 * time.Millisecond}, dev.Link.Detaches())
}

func TestSuspendedLinkIgnoresHost(t *testing.T) {
	dev := newDevice(t)
	conn := dev.Conn()
	dev.Link.SetSuspended(true)

	pkt := protocol.BuildQueryDeviceCmd()
	_, err := conn.Write(pkt[:])
	require.NoError(t, err)
	assert.Equal(t, 1, dev.Link.Pending())

	dev.Link.SetSuspended(false)
	resp := protocol.Packet{}
	_, err = conn.Read(resp[:])
	require.NoError(t, err)
	assert.Equal(t, protocol.OpQueryDevice, resp.Opcode())
}

func TestLoadImage(t *testing.T) {
	dev := newDevice(t)

	dev.LoadImage(0x1200, []byte{0x6D, 0x34, 0x05})
	assert.True(t, dev.Signed())
	assert.Equal(t, uint16(0x3F05), dev.Memory.Read(nvm.SpaceProgram, 0x901))
}
