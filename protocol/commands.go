package protocol

import (
	"encoding/binary"
	"fmt"
)

// BuildQueryDeviceCmd constructs a QUERY_DEVICE packet.
//
// Packet structure:
//
//	[CMD][PAD(63)]
func BuildQueryDeviceCmd() Packet {
	return buildOpcodeOnly(OpQueryDevice)
}

// BuildQueryExtendedInfoCmd constructs a QUERY_EXTENDED_INFO packet.
func BuildQueryExtendedInfoCmd() Packet {
	return buildOpcodeOnly(OpQueryExtendedInfo)
}

// BuildEraseDeviceCmd constructs an ERASE_DEVICE packet.
func BuildEraseDeviceCmd() Packet {
	return buildOpcodeOnly(OpEraseDevice)
}

// BuildProgramCompleteCmd constructs a PROGRAM_COMPLETE packet.
func BuildProgramCompleteCmd() Packet {
	return buildOpcodeOnly(OpProgramComplete)
}

// BuildSignFlashCmd constructs a SIGN_FLASH packet.
func BuildSignFlashCmd() Packet {
	return buildOpcodeOnly(OpSignFlash)
}

// BuildResetDeviceCmd constructs a RESET_DEVICE packet.
func BuildResetDeviceCmd() Packet {
	return buildOpcodeOnly(OpResetDevice)
}

// BuildUnlockConfigCmd constructs an UNLOCK_CONFIG packet.
// Any value other than LockValueUnlock locks configuration writes.
//
// Packet structure:
//
//	[CMD][LOCK_VALUE][PAD(62)]
func BuildUnlockConfigCmd(unlock bool) Packet {
	pkt := buildOpcodeOnly(OpUnlockConfig)
	pkt[1] = LockValueLock
	if unlock {
		pkt[1] = LockValueUnlock
	}
	return pkt
}

// BuildProgramDeviceCmd constructs a PROGRAM_DEVICE packet carrying data for
// the given byte address. The data is right-justified within the data field.
//
// Packet structure:
//
//	[CMD][ADDR(4)][SIZE][PAD(58-SIZE)][DATA(SIZE)]
func BuildProgramDeviceCmd(address uint32, data []byte) (Packet, error) {
	if len(data) == 0 {
		return Packet{}, fmt.Errorf("data cannot be empty")
	}
	if len(data) > DataFieldSize {
		return Packet{}, fmt.Errorf("data length %d exceeds maximum %d bytes", len(data), DataFieldSize)
	}

	pkt := buildAddressed(OpProgramDevice, address, byte(len(data)))
	copy(pkt[PacketSize-len(data):], data)
	return pkt, nil
}

// BuildGetDataCmd constructs a GET_DATA packet requesting size bytes at address.
//
// Packet structure:
//
//	[CMD][ADDR(4)][SIZE][PAD(58)]
func BuildGetDataCmd(address uint32, size int) (Packet, error) {
	if size <= 0 {
		return Packet{}, fmt.Errorf("size must be positive, got %d", size)
	}
	if size > DataFieldSize {
		return Packet{}, fmt.Errorf("size %d exceeds maximum %d bytes", size, DataFieldSize)
	}

	return buildAddressed(OpGetData, address, byte(size)), nil
}

// ParseCommand decodes a host-to-device packet. It never fails: unknown
// opcodes decode with an empty payload, and oversized SIZE fields are
// clamped to DataFieldSize.
func ParseCommand(pkt *Packet) Command {
	cmd := Command{Opcode: pkt.Opcode()}

	switch cmd.Opcode {
	case OpUnlockConfig:
		cmd.LockValue = pkt[1]
	case OpProgramDevice, OpGetData:
		cmd.Address = binary.LittleEndian.Uint32(pkt[1:5])
		cmd.Size = pkt[5]
		if cmd.Size > DataFieldSize {
			cmd.Size = DataFieldSize
		}
		if cmd.Opcode == OpProgramDevice {
			cmd.Data = pkt[PacketSize-int(cmd.Size):]
		}
	}

	return cmd
}

func buildOpcodeOnly(op Opcode) Packet {
	var pkt Packet
	pkt[0] = byte(op)
	return pkt
}

func buildAddressed(op Opcode, address uint32, size byte) Packet {
	pkt := buildOpcodeOnly(op)
	binary.LittleEndian.PutUint32(pkt[1:5], address)
	pkt[5] = size
	return pkt
}
