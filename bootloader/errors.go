package bootloader

import (
	"fmt"
)

// RegionError indicates that image data falls outside every memory region
// the device reported.
type RegionError struct {
	Address uint32
	Length  int
}

func (e *RegionError) Error() string {
	return fmt.Sprintf("image data at 0x%X (%d bytes) is outside every device region",
		e.Address, e.Length)
}

// VerificationError indicates that a readback did not match the image.
type VerificationError struct {
	Address  uint32
	Expected byte
	Actual   byte
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("verification failed at 0x%X: expected 0x%02X, got 0x%02X",
		e.Address, e.Expected, e.Actual)
}

// NoProgramRegionError indicates that the device reported no program memory.
type NoProgramRegionError struct{}

func (e *NoProgramRegionError) Error() string {
	return "device reported no program memory region"
}
