package bootloader

import (
	"strings"
	"testing"
)

func TestRegionError(t *testing.T) {
	err := &RegionError{Address: 0x0100, Length: 16}
	errMsg := err.Error()

	if !strings.Contains(errMsg, "0x100") {
		t.Errorf("error message should contain address, got: %s", errMsg)
	}
	if !strings.Contains(errMsg, "16 bytes") {
		t.Errorf("error message should contain length, got: %s", errMsg)
	}
}

func TestVerificationError(t *testing.T) {
	err := &VerificationError{Address: 0x1202, Expected: 0x05, Actual: 0x04}
	errMsg := err.Error()

	if !strings.Contains(errMsg, "verification failed") {
		t.Errorf("error message should contain 'verification failed', got: %s", errMsg)
	}
	if !strings.Contains(errMsg, "0x05") || !strings.Contains(errMsg, "0x04") {
		t.Errorf("error message should contain both bytes, got: %s", errMsg)
	}
}

func TestNoProgramRegionError(t *testing.T) {
	err := &NoProgramRegionError{}
	if err.Error() == "" {
		t.Error("error message should not be empty")
	}
}
