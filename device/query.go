package device

import (
	"github.com/moffa90/go-hidboot/nvm"
	"github.com/moffa90/go-hidboot/protocol"
)

// Layout returns the memory regions reported by QUERY_DEVICE.
func (b *Bootloader) Layout() *protocol.DeviceLayout {
	g := b.geom
	layout := &protocol.DeviceLayout{
		DataFieldSize:   protocol.DataFieldSize,
		BytesPerAddress: protocol.BytesPerAddress,
		VersionFlag:     protocol.VersionFlagExtended,
		Regions: []protocol.Region{
			{Type: protocol.RegionProgram, Address: g.AppByteStart(), Length: g.AppByteEnd() - g.AppByteStart()},
			{Type: protocol.RegionConfig, Address: g.ConfigByteStart(), Length: nvm.ByteAddress(g.ConfigWords)},
			{Type: protocol.RegionUserID, Address: g.UserIDByteStart(), Length: nvm.ByteAddress(g.UserIDWords)},
		},
	}
	if g.EEPROMLength > 0 {
		layout.Regions = append(layout.Regions, protocol.Region{
			Type:    protocol.RegionEEPROM,
			Address: g.EEPROMAddress,
			Length:  g.EEPROMLength,
		})
	}
	return layout
}

func (b *Bootloader) queryDevice() protocol.Packet {
	// Layout never exceeds MaxRegions entries.
	pkt, _ := protocol.EncodeQueryDeviceResponse(b.Layout())
	return pkt
}

func (b *Bootloader) extendedInfo() protocol.Packet {
	g := b.geom
	lo := b.ctrl.Read(nvm.SpaceProgram, g.AppVersionWord)
	hi := b.ctrl.Read(nvm.SpaceProgram, g.AppVersionWord+1)

	info := &protocol.ExtendedInfo{
		BootloaderVersion:  uint16(g.VersionMajor)<<8 | uint16(g.VersionMinor),
		ApplicationVersion: uint16(byte(hi))<<8 | uint16(byte(lo)),
		SignatureAddress:   nvm.ByteAddress(g.SignatureWord),
		SignatureValue:     g.SignatureWordValue(),
		ErasePageSize:      uint32(g.ErasePageSize),
		ConfigMasks:        g.ConfigMasks,
	}
	return protocol.EncodeExtendedInfoResponse(info)
}

// readData answers GET_DATA. Words are returned low byte first; the high
// byte of a blank word reads as 0xFF so erased memory always reads as all
// ones. Reads outside every implemented region are still answered.
func (b *Bootloader) readData(cmd protocol.Command) protocol.Packet {
	size := int(cmd.Size)
	word := nvm.WordAddress(cmd.Address)

	space := nvm.SpaceProgram
	if word >= nvm.ConfigSpaceBase {
		space = nvm.SpaceConfig
	}
	if !b.readable(word, uint32(size+1)/2) {
		b.config.Observer.CommandDropped(cmd.Opcode, DropOutOfRange)
	}

	data := make([]byte, size)
	for i := 0; i < size; word++ {
		v := b.ctrl.Read(space, word)
		data[i] = byte(v)
		i++
		if i == size {
			break
		}
		if v == b.geom.BlankWord {
			data[i] = 0xFF
		} else {
			data[i] = byte(v >> 8)
		}
		i++
	}

	// size is clamped to the data field by ParseCommand.
	pkt, _ := protocol.EncodeGetDataResponse(cmd.Address, data)
	return pkt
}

func (b *Bootloader) readable(word, count uint32) bool {
	if count == 0 {
		return true
	}
	last := word + count - 1
	if last < b.geom.FlashWords {
		return true
	}
	return word >= nvm.ConfigSpaceBase && last < nvm.ConfigSpaceBase+nvm.ConfigSpaceWords
}
