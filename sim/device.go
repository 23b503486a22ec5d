package sim

import (
	"errors"
	"fmt"

	"github.com/moffa90/go-hidboot/device"
	"github.com/moffa90/go-hidboot/nvm"
	"github.com/moffa90/go-hidboot/protocol"
)

// ErrNoResponse is returned by Conn.Read when the device has nothing to send.
var ErrNoResponse = errors.New("device sent no response")

// maxPolls bounds how long Conn drives the device for one host transfer.
const maxPolls = 8

// Device is a complete simulated bootloader target.
type Device struct {
	Memory     *nvm.Memory
	Platform   *Platform
	Link       *Link
	Bootloader *device.Bootloader
}

// New builds a blank device with the given geometry.
func New(geom nvm.Geometry, opts ...device.Option) (*Device, error) {
	d := &Device{
		Memory:   nvm.NewMemory(geom),
		Platform: NewPlatform(),
		Link:     NewLink(),
	}

	bl, err := device.New(d.Link, d.Memory, d.Platform, geom, opts...)
	if err != nil {
		return nil, fmt.Errorf("create bootloader: %w", err)
	}
	d.Bootloader = bl
	return d, nil
}

// Run polls the bootloader until it is idle with nothing queued, it is
// waiting on the host, or maxPolls is reached.
func (d *Device) Run() error {
	for i := 0; i < maxPolls; i++ {
		if err := d.Bootloader.Poll(); err != nil {
			return err
		}
		if d.Bootloader.State() == device.StateIdle && d.Link.Pending() == 0 {
			return nil
		}
		if !d.Link.LinkActive() {
			return nil
		}
	}
	return nil
}

// LoadImage writes data straight into simulated program memory. It bypasses
// the bootloader and is meant for seeding test fixtures.
func (d *Device) LoadImage(address uint32, data []byte) {
	Load(d.Memory, address, data)
}

// Load pokes data into program memory, two bytes per word starting at the
// host byte address. An odd trailing byte is paired with 0xFF.
func Load(mem *nvm.Memory, address uint32, data []byte) {
	word := nvm.WordAddress(address)
	for i := 0; i < len(data); i += 2 {
		hi := byte(0xFF)
		if i+1 < len(data) {
			hi = data[i+1]
		}
		mem.Poke(nvm.SpaceProgram, word, uint16(hi)<<8|uint16(data[i]))
		word++
	}
}

// Signed reports whether the recovery signature is present.
func (d *Device) Signed() bool {
	g := d.Memory.Geometry()
	return d.Memory.Read(nvm.SpaceProgram, g.SignatureWord) == g.SignatureWordValue()
}

// Conn returns a host-side connection to the device.
func (d *Device) Conn() *Conn {
	return &Conn{dev: d}
}

// Conn is the host end of the simulated link. Each Write delivers one
// report and runs the device; each Read returns one report.
type Conn struct {
	dev *Device
}

// Write sends one report. Short writes are zero padded to a full packet.
func (c *Conn) Write(p []byte) (int, error) {
	if len(p) > protocol.PacketSize {
		return 0, fmt.Errorf("report of %d bytes exceeds %d", len(p), protocol.PacketSize)
	}
	var pkt protocol.Packet
	copy(pkt[:], p)
	c.dev.Link.Deliver(pkt)

	if err := c.dev.Run(); err != nil {
		return 0, fmt.Errorf("device: %w", err)
	}
	return len(p), nil
}

// Read returns the next device report.
func (c *Conn) Read(p []byte) (int, error) {
	pkt, ok := c.dev.Link.Collect()
	if !ok {
		if err := c.dev.Run(); err != nil {
			return 0, fmt.Errorf("device: %w", err)
		}
		if pkt, ok = c.dev.Link.Collect(); !ok {
			return 0, ErrNoResponse
		}
	}
	return copy(p, pkt[:]), nil
}
