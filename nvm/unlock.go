package nvm

import (
	"errors"
	"fmt"
)

// Space selects program flash or configuration space.
type Space uint8

const (
	// SpaceProgram is program flash
	SpaceProgram Space = iota

	// SpaceConfig holds the user IDs and configuration words from word 0x8000
	SpaceConfig
)

func (s Space) String() string {
	if s == SpaceConfig {
		return "config"
	}
	return "program"
}

// Mode selects what a committed request does.
type Mode uint8

const (
	// ModeLatch loads the word into the write latches only
	ModeLatch Mode = iota

	// ModeWrite loads the word and programs every latched word
	ModeWrite

	// ModeErase erases the page containing the word
	ModeErase
)

func (m Mode) String() string {
	switch m {
	case ModeLatch:
		return "latch"
	case ModeWrite:
		return "write"
	case ModeErase:
		return "erase"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// Request is one pending NVM operation, the equivalent of the address, data
// and mode registers loaded before an unlock sequence.
type Request struct {
	Space Space
	Mode  Mode
	Word  uint32
	Data  uint16
}

// Controller is the self-programming peripheral of the device.
//
// Only the Unlocker drives the write path (Load, WriteControl, Start,
// Settle). Reads are free for everyone.
type Controller interface {
	// Read returns the word at the given address
	Read(space Space, word uint32) uint16

	// Load sets up the pending operation
	Load(req Request)

	// WriteControl writes the unlock control register
	WriteControl(v byte)

	// Start asserts the commit request bit
	Start()

	// Settle idles for the given number of instruction cycles
	Settle(cycles int)
}

// Platform is the part of the processor the unlock primitive depends on.
type Platform interface {
	DisableInterrupts()
	EnableInterrupts()

	// SupplyOK reports whether VDD is high enough for self-programming
	SupplyOK() bool

	ClearWatchdog()

	// Hold parks the processor in a low-power loop. Real hardware never
	// returns from it; simulations record the reason and return.
	Hold(reason error)
}

// UnlockToken is the capability value callers must pass to Commit.
const UnlockToken byte = 0xB5

// Unlock sequence written to the control register before a commit.
const (
	unlockKey1 byte = 0x55
	unlockKey2 byte = 0xAA
)

// SettleCycles is the number of idle cycles required after a commit
// before any other register access.
const SettleCycles = 2

// FaultKind classifies a refused commit.
type FaultKind int

const (
	// FaultLowVoltage means the supply was below the self-write minimum
	FaultLowVoltage FaultKind = iota + 1

	// FaultBadToken means the caller did not pass UnlockToken
	FaultBadToken
)

func (k FaultKind) String() string {
	switch k {
	case FaultLowVoltage:
		return "low supply voltage"
	case FaultBadToken:
		return "capability token mismatch"
	default:
		return "unknown fault"
	}
}

// FaultError is returned when the unlock primitive refuses to commit. The
// platform has been put on hold; only an external reset recovers.
type FaultError struct {
	Kind    FaultKind
	Request Request
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("nvm fault: %s (%s %s word 0x%X)", e.Kind, e.Request.Mode, e.Request.Space, e.Request.Word)
}

// IsFault reports whether err is, or wraps, a FaultError.
func IsFault(err error) bool {
	var fe *FaultError
	return errors.As(err, &fe)
}

// Unlocker is the single choke point that commits erase and write requests.
type Unlocker struct {
	ctrl     Controller
	platform Platform
}

// NewUnlocker returns the unlock primitive for a controller.
func NewUnlocker(ctrl Controller, platform Platform) *Unlocker {
	return &Unlocker{ctrl: ctrl, platform: platform}
}

// Controller returns the controller behind the primitive, for reads.
func (u *Unlocker) Controller() Controller {
	return u.ctrl
}

// Commit performs req. The token must be UnlockToken; anything else is
// treated as errant execution. Interrupts are disabled for the duration and
// re-enabled on return.
func (u *Unlocker) Commit(token byte, req Request) error {
	u.platform.DisableInterrupts()
	defer u.platform.EnableInterrupts()

	if !u.platform.SupplyOK() {
		return u.fault(FaultLowVoltage, req)
	}
	if token != UnlockToken {
		return u.fault(FaultBadToken, req)
	}

	u.platform.ClearWatchdog()

	u.ctrl.Load(req)
	u.ctrl.WriteControl(unlockKey1)
	u.ctrl.WriteControl(unlockKey2)
	u.ctrl.Start()
	u.ctrl.Settle(SettleCycles)
	return nil
}

func (u *Unlocker) fault(kind FaultKind, req Request) error {
	err := &FaultError{Kind: kind, Request: req}
	u.platform.Hold(err)
	return err
}
