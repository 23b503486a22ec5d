// Package bootloader provides a high-level host API for updating firmware
// through the USB HID flash bootloader.
//
// # Overview
//
// This package orchestrates the complete update sequence:
//   - Querying the device memory layout and bootloader version
//   - Checking the image against the reported regions
//   - Erasing the application
//   - Writing program memory, user IDs and optionally config words
//   - Reading back and verifying
//   - Signing the image and resetting into the application
//
// # Basic Usage
//
//	// Any io.ReadWriter moving one 64-byte report per call
//	usb, err := transport.OpenUSBHID(gousb.NewContext(), "", time.Second)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer usb.Close()
//
//	img, err := hexfile.Parse("firmware.hex")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	prog := bootloader.New(usb)
//	if err := prog.Program(context.Background(), img); err != nil {
//	    log.Fatal(err)
//	}
//
// # Progress Tracking
//
//	prog := bootloader.New(device,
//	    bootloader.WithProgressCallback(func(p bootloader.Progress) {
//	        fmt.Printf("[%s] %.1f%%\n", p.Phase, p.Percentage)
//	    }),
//	)
//
// # Configuration Options
//
//	prog := bootloader.New(device,
//	    bootloader.WithLogger(logging.Programmer(zapLogger)),
//	    bootloader.WithTimeout(2*time.Minute),
//	    bootloader.WithChunkSize(32),
//	    bootloader.WithRetries(5),
//	    bootloader.WithCommandRate(500),
//	    bootloader.WithConfigWords(true),
//	)
//
// # Program Sessions
//
// The device only accepts PROGRAM_DEVICE data that continues exactly where
// the previous packet ended; anything else is dropped without a reply.
// Write therefore sends one contiguous run per session and always closes it
// with PROGRAM_COMPLETE. Program starts a new session for every segment.
//
// # Error Handling
//
// The package provides structured error types:
//   - RegionError: image data outside every device region
//   - VerificationError: readback mismatch
//   - NoProgramRegionError: the device reported no program memory
//   - protocol.ResponseError: malformed or unexpected response
//
// # Hardware Independence
//
// The programmer works over any io.ReadWriter: transport.USBHID for real
// hardware, transport.SerialConn for a serial bridge, or sim.Device.Conn for
// an in-process simulated device.
package bootloader
