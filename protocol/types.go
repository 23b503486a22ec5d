package protocol

// Packet is a single fixed-size report exchanged with the bootloader.
// Unused trailing bytes are zero.
type Packet [PacketSize]byte

// Opcode returns the command byte of the packet.
func (p *Packet) Opcode() Opcode {
	return Opcode(p[0])
}

// Command is a decoded host-to-device packet.
type Command struct {
	// Opcode is the command being requested
	Opcode Opcode

	// Address is the little-endian byte address (PROGRAM_DEVICE, GET_DATA)
	Address uint32

	// Size is the number of payload bytes requested or supplied, clamped to DataFieldSize
	Size byte

	// Data is the used part of the data field, already un-justified.
	// It aliases the packet it was decoded from.
	Data []byte

	// LockValue is the UNLOCK_CONFIG sub-value
	LockValue byte
}

// Region describes one programmable memory region of the device.
type Region struct {
	// Type is the kind of memory
	Type RegionType

	// Address is the first byte address of the region
	Address uint32

	// Length is the size of the region in bytes
	Length uint32
}

// End returns the first byte address past the region.
func (r Region) End() uint32 {
	return r.Address + r.Length
}

// Contains reports whether addr lies inside the region.
func (r Region) Contains(addr uint32) bool {
	return addr >= r.Address && addr < r.End()
}

// DeviceLayout is the QUERY_DEVICE response.
type DeviceLayout struct {
	// DataFieldSize is the largest payload the device accepts per packet
	DataFieldSize byte

	// BytesPerAddress is the hex file bytes per device address
	BytesPerAddress byte

	// Regions lists the memory regions in device order, without the end marker
	Regions []Region

	// VersionFlag is VersionFlagExtended on devices supporting QUERY_EXTENDED_INFO
	VersionFlag byte
}

// SupportsExtendedInfo reports whether QUERY_EXTENDED_INFO may be sent.
func (l *DeviceLayout) SupportsExtendedInfo() bool {
	return l.VersionFlag == VersionFlagExtended
}

// Region returns the first region of the given type.
func (l *DeviceLayout) Region(t RegionType) (Region, bool) {
	for _, r := range l.Regions {
		if r.Type == t {
			return r, true
		}
	}
	return Region{}, false
}

// ExtendedInfo is the QUERY_EXTENDED_INFO response.
type ExtendedInfo struct {
	// BootloaderVersion is major<<8 | minor
	BootloaderVersion uint16

	// ApplicationVersion is read from the firmware image, major<<8 | minor
	ApplicationVersion uint16

	// SignatureAddress is the byte address of the recovery signature word
	SignatureAddress uint32

	// SignatureValue is the word written by SIGN_FLASH
	SignatureValue uint16

	// ErasePageSize is the erase page size in bytes
	ErasePageSize uint32

	// ConfigMasks holds the writable-bit masks, low then high byte, per config word
	ConfigMasks [ConfigMaskCount][2]byte
}

// BootloaderMajor returns the major bootloader version.
func (e *ExtendedInfo) BootloaderMajor() byte {
	return byte(e.BootloaderVersion >> 8)
}

// BootloaderMinor returns the minor bootloader version.
func (e *ExtendedInfo) BootloaderMinor() byte {
	return byte(e.BootloaderVersion)
}

// ReadData is the GET_DATA response.
type ReadData struct {
	// Address echoes the requested address
	Address uint32

	// Data holds the bytes read
	Data []byte
}
