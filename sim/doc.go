// Package sim runs the device bootloader entirely in process.
//
// A Device couples a device.Bootloader to a simulated flash (nvm.Memory), a
// simulated processor (Platform) and an in-memory USB link (Link). Its Conn
// is an io.ReadWriter that behaves like a HID connection to real hardware,
// so the host programmer can be exercised without a board:
//
//	dev, _ := sim.New(nvm.PIC16F145x())
//	prog := bootloader.New(dev.Conn())
//	layout, err := prog.Query(ctx)
//
// Nothing in this package is safe for concurrent use.
package sim
