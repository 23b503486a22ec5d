package nvm

import "fmt"

// Geometry describes the non-volatile memory layout of a target device.
//
// Program and config addresses are word addresses. The host works in byte
// addresses, two per word (see ByteAddress).
type Geometry struct {
	// Name identifies the device family
	Name string

	// BlankWord is the value of an erased word; it doubles as the word mask
	BlankWord uint16

	// WriteBlockSize is the programming block size in bytes
	WriteBlockSize int

	// ErasePageSize is the erase page size in bytes
	ErasePageSize int

	// FlashWords is the size of program memory in words
	FlashWords uint32

	// AppStart is the first application word; it must be erase-page aligned
	AppStart uint32

	// UserEnd is the last application word
	UserEnd uint32

	// UserIDStart is the first user ID word in config space
	UserIDStart uint32

	// UserIDWords is the number of user ID words
	UserIDWords uint32

	// ConfigStart is the first configuration word in config space
	ConfigStart uint32

	// ConfigWords is the number of configuration words
	ConfigWords uint32

	// ConfigMasks are the host-writable bits of each config word half
	ConfigMasks [7][2]byte

	// EEPROMAddress and EEPROMLength describe an optional data EEPROM, in
	// host byte addresses. A zero length means the part has none.
	EEPROMAddress uint32
	EEPROMLength  uint32

	// SignatureWord is where the recovery signature is written
	SignatureWord uint32

	// SignatureValue is the low byte of the signature word
	SignatureValue byte

	// SignatureOpcode is the high byte of the signature word
	SignatureOpcode byte

	// AppVersionWord holds the application version (two words, one byte each)
	AppVersionWord uint32

	// VersionMajor and VersionMinor are the bootloader version
	VersionMajor byte
	VersionMinor byte
}

// ConfigSpaceBase is the word address at which config space starts.
const ConfigSpaceBase = 0x8000

// PIC16F145x returns the geometry of the PIC16(L)F1454/1455/1459 family.
func PIC16F145x() Geometry {
	g := Geometry{
		Name:            "PIC16F145x",
		BlankWord:       0x3FFF,
		WriteBlockSize:  64,
		ErasePageSize:   64,
		FlashWords:      0x2000,
		AppStart:        0x900,
		UserEnd:         0x1FFF,
		UserIDStart:     0x8000,
		UserIDWords:     3,
		ConfigStart:     0x8007,
		ConfigWords:     2,
		SignatureWord:   0x900,
		SignatureValue:  0x6D,
		SignatureOpcode: 0x34,
		AppVersionWord:  0x902,
		VersionMajor:    1,
		VersionMinor:    2,
	}
	for i := range g.ConfigMasks {
		g.ConfigMasks[i] = [2]byte{0xFF, 0xFF}
	}
	return g
}

// Validate checks the geometry for internal consistency.
func (g Geometry) Validate() error {
	if g.WriteBlockSize < 2 || g.WriteBlockSize&(g.WriteBlockSize-1) != 0 {
		return fmt.Errorf("write block size %d is not a power of two", g.WriteBlockSize)
	}
	if g.WriteBlockSize > 256 {
		return fmt.Errorf("write block size %d exceeds 256 bytes", g.WriteBlockSize)
	}
	if g.ErasePageSize < g.WriteBlockSize || g.ErasePageSize%g.WriteBlockSize != 0 {
		return fmt.Errorf("erase page size %d is not a multiple of write block size %d", g.ErasePageSize, g.WriteBlockSize)
	}
	if g.ErasePageSize&(g.ErasePageSize-1) != 0 {
		return fmt.Errorf("erase page size %d is not a power of two", g.ErasePageSize)
	}
	if g.AppStart%g.PageWords() != 0 {
		return fmt.Errorf("app start 0x%X is not erase-page aligned", g.AppStart)
	}
	if g.UserEnd < g.AppStart || g.UserEnd >= g.FlashWords {
		return fmt.Errorf("user end 0x%X outside 0x%X..0x%X", g.UserEnd, g.AppStart, g.FlashWords-1)
	}
	if g.SignatureWord < g.AppStart || g.SignatureWord > g.UserEnd {
		return fmt.Errorf("signature word 0x%X outside application range", g.SignatureWord)
	}
	if g.UserIDStart < ConfigSpaceBase || g.ConfigStart < g.UserIDStart+g.UserIDWords {
		return fmt.Errorf("config space layout overlaps: user ID 0x%X+%d, config 0x%X", g.UserIDStart, g.UserIDWords, g.ConfigStart)
	}
	return nil
}

// BlockWords returns the number of words in a write block.
func (g Geometry) BlockWords() uint32 {
	return uint32(g.WriteBlockSize / 2)
}

// PageWords returns the number of words in an erase page.
func (g Geometry) PageWords() uint32 {
	return uint32(g.ErasePageSize / 2)
}

// ByteAddress converts a word address to the host byte address.
func ByteAddress(word uint32) uint32 {
	return word * 2
}

// WordAddress converts a host byte address to a word address.
func WordAddress(addr uint32) uint32 {
	return addr >> 1
}

// AppByteStart returns the first application byte address.
func (g Geometry) AppByteStart() uint32 {
	return ByteAddress(g.AppStart)
}

// AppByteEnd returns the byte address just past the application range.
func (g Geometry) AppByteEnd() uint32 {
	return ByteAddress(g.UserEnd + 1)
}

// UserIDByteStart returns the byte address of the first user ID word.
// Host addresses at or above it are never routed to program memory.
func (g Geometry) UserIDByteStart() uint32 {
	return ByteAddress(g.UserIDStart)
}

// ConfigByteStart returns the byte address of the first config word.
func (g Geometry) ConfigByteStart() uint32 {
	return ByteAddress(g.ConfigStart)
}

// InApp reports whether word lies within the application range.
func (g Geometry) InApp(word uint32) bool {
	return word >= g.AppStart && word <= g.UserEnd
}

// SignatureWordValue returns the full signature word as stored in flash.
func (g Geometry) SignatureWordValue() uint16 {
	return uint16(g.SignatureOpcode)<<8 | uint16(g.SignatureValue)
}
