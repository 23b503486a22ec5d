package protocol

// ProtocolVersion is the HID bootloader protocol revision implemented by this library.
// Devices reporting VersionFlagExtended in their query response are at least this revision.
const ProtocolVersion = "1.01"

// Packet structure constants.
const (
	// PacketSize is the fixed size of every report in both directions
	PacketSize = 64

	// DataFieldSize is the maximum payload of a PROGRAM_DEVICE or GET_DATA packet.
	// Shorter payloads are right-justified within the field.
	DataFieldSize = 58

	// DataFieldOffset is the offset of the data field within a packet:
	// CMD(1) + ADDRESS(4) + SIZE(1)
	DataFieldOffset = 6

	// MaxRegions is the number of region entries a query response can carry
	MaxRegions = 6

	// regionEntrySize is TYPE(1) + ADDRESS(4) + LENGTH(4)
	regionEntrySize = 9

	// regionTableOffset is CMD(1) + DATA_FIELD_SIZE(1) + BYTES_PER_ADDRESS(1)
	regionTableOffset = 3

	// versionFlagOffset follows the last region entry
	versionFlagOffset = regionTableOffset + MaxRegions*regionEntrySize

	// ConfigMaskCount is the number of configuration words described by an
	// extended info response (each with a low and high byte mask)
	ConfigMaskCount = 7
)

// Opcode identifies a bootloader command. It is always the first byte of a packet.
type Opcode byte

// Command opcodes.
const (
	// OpQueryDevice asks for the programmable memory regions
	OpQueryDevice Opcode = 0x02

	// OpUnlockConfig locks or unlocks configuration word programming
	OpUnlockConfig Opcode = 0x03

	// OpEraseDevice erases the application range and the user ID words
	OpEraseDevice Opcode = 0x04

	// OpProgramDevice stages data for programming
	OpProgramDevice Opcode = 0x05

	// OpProgramComplete flushes staged data and closes the program session
	OpProgramComplete Opcode = 0x06

	// OpGetData reads memory back for verification
	OpGetData Opcode = 0x07

	// OpResetDevice detaches from the bus and resets the device
	OpResetDevice Opcode = 0x08

	// OpSignFlash writes the recovery signature after a verified update
	OpSignFlash Opcode = 0x09

	// OpQueryExtendedInfo asks for versions, signature location and config masks
	OpQueryExtendedInfo Opcode = 0x0C
)

var opcodeNames = map[Opcode]string{
	OpQueryDevice:       "QUERY_DEVICE",
	OpUnlockConfig:      "UNLOCK_CONFIG",
	OpEraseDevice:       "ERASE_DEVICE",
	OpProgramDevice:     "PROGRAM_DEVICE",
	OpProgramComplete:   "PROGRAM_COMPLETE",
	OpGetData:           "GET_DATA",
	OpResetDevice:       "RESET_DEVICE",
	OpSignFlash:         "SIGN_FLASH",
	OpQueryExtendedInfo: "QUERY_EXTENDED_INFO",
}

func (o Opcode) String() string {
	if name, ok := opcodeNames[o]; ok {
		return name
	}
	return "UNKNOWN"
}

// Known reports whether the opcode is part of the protocol.
func (o Opcode) Known() bool {
	_, ok := opcodeNames[o]
	return ok
}

// UNLOCK_CONFIG sub-values.
const (
	// LockValueUnlock enables configuration word writes
	LockValueUnlock = 0x00

	// LockValueLock disables configuration word writes
	LockValueLock = 0x01
)

// RegionType identifies a memory region in a query response.
type RegionType byte

// Memory region types.
const (
	RegionProgram RegionType = 0x01
	RegionEEPROM  RegionType = 0x02
	RegionConfig  RegionType = 0x03
	RegionUserID  RegionType = 0x04

	// RegionEnd terminates the region list
	RegionEnd RegionType = 0xFF
)

func (t RegionType) String() string {
	switch t {
	case RegionProgram:
		return "program"
	case RegionEEPROM:
		return "eeprom"
	case RegionConfig:
		return "config"
	case RegionUserID:
		return "userid"
	case RegionEnd:
		return "end"
	default:
		return "unknown"
	}
}

// VersionFlagExtended is set in the query response by bootloaders that
// implement QUERY_EXTENDED_INFO.
const VersionFlagExtended = 0xA5

// BytesPerAddress is the number of hex file bytes per device address.
const BytesPerAddress = 0x01
