// Package transport carries bootloader packets over real links.
//
// USBHID talks to a device enumerated as the Microchip HID bootloader over
// its interrupt endpoints (libusb via gousb). SerialConn and SerialEndpoint
// carry the same 64-byte packets over a serial line, one frame per packet,
// which lets the host tools drive a simulated device on another machine or
// through a virtual null-modem pair.
//
// All host-side types implement io.ReadWriter and can be handed directly to
// bootloader.New.
package transport
