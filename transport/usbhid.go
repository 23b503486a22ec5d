package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/google/gousb"

	"github.com/moffa90/go-hidboot/protocol"
)

// USB identity of the Microchip HID bootloader.
const (
	VendorID  = 0x04D8
	ProductID = 0x003C
)

// hidEndpoint is the interrupt endpoint number used in both directions.
const hidEndpoint = 1

// USBHID is a host connection to a bootloader over its HID interrupt
// endpoints. Each Read and Write moves exactly one 64-byte report.
type USBHID struct {
	device  *gousb.Device
	config  *gousb.Config
	iface   *gousb.Interface
	epIn    *gousb.InEndpoint
	epOut   *gousb.OutEndpoint
	timeout time.Duration

	Serial  string
	Product string
}

// OpenUSBHID opens the first bootloader found, or the one with the given
// serial number if serial is not empty.
func OpenUSBHID(ctx *gousb.Context, serial string, timeout time.Duration) (*USBHID, error) {
	devices, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return desc.Vendor == gousb.ID(VendorID) && desc.Product == gousb.ID(ProductID)
	})
	if err != nil && len(devices) == 0 {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}

	var found *USBHID
	for _, dev := range devices {
		if found != nil {
			dev.Close()
			continue
		}
		sn, _ := dev.SerialNumber()
		if serial != "" && sn != serial {
			dev.Close()
			continue
		}
		h, err := wrapUSBHID(dev, timeout)
		if err != nil {
			dev.Close()
			continue
		}
		found = h
	}

	if found == nil {
		if serial != "" {
			return nil, fmt.Errorf("bootloader with serial %q not found", serial)
		}
		return nil, fmt.Errorf("no bootloader found (VID 0x%04X PID 0x%04X)", VendorID, ProductID)
	}
	return found, nil
}

func wrapUSBHID(dev *gousb.Device, timeout time.Duration) (*USBHID, error) {
	serial, _ := dev.SerialNumber()
	product, _ := dev.Product()

	// The kernel HID driver owns the interface until we detach it.
	if err := dev.SetAutoDetach(true); err != nil {
		return nil, fmt.Errorf("failed to enable auto detach: %w", err)
	}

	config, err := dev.Config(1)
	if err != nil {
		return nil, fmt.Errorf("failed to get configuration: %w", err)
	}

	iface, err := config.Interface(0, 0)
	if err != nil {
		config.Close()
		return nil, fmt.Errorf("failed to claim interface: %w", err)
	}

	epIn, err := iface.InEndpoint(hidEndpoint)
	if err != nil {
		iface.Close()
		config.Close()
		return nil, fmt.Errorf("failed to get IN endpoint: %w", err)
	}

	epOut, err := iface.OutEndpoint(hidEndpoint)
	if err != nil {
		iface.Close()
		config.Close()
		return nil, fmt.Errorf("failed to get OUT endpoint: %w", err)
	}

	return &USBHID{
		device:  dev,
		config:  config,
		iface:   iface,
		epIn:    epIn,
		epOut:   epOut,
		timeout: timeout,
		Serial:  serial,
		Product: product,
	}, nil
}

// Write sends one report, zero padded to 64 bytes.
func (d *USBHID) Write(p []byte) (int, error) {
	if len(p) > protocol.PacketSize {
		return 0, fmt.Errorf("report of %d bytes exceeds %d", len(p), protocol.PacketSize)
	}
	var pkt protocol.Packet
	copy(pkt[:], p)

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	if _, err := d.epOut.WriteContext(ctx, pkt[:]); err != nil {
		return 0, fmt.Errorf("usb write: %w", err)
	}
	return len(p), nil
}

// Read receives one report.
func (d *USBHID) Read(p []byte) (int, error) {
	var pkt protocol.Packet

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	n, err := d.epIn.ReadContext(ctx, pkt[:])
	if err != nil {
		if ctx.Err() != nil {
			return 0, ErrTimeout
		}
		return 0, fmt.Errorf("usb read: %w", err)
	}
	return copy(p, pkt[:n]), nil
}

// Close releases the interface and the device.
func (d *USBHID) Close() error {
	if d.iface != nil {
		d.iface.Close()
	}
	if d.config != nil {
		d.config.Close()
	}
	if d.device != nil {
		return d.device.Close()
	}
	return nil
}
