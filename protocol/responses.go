package protocol

import (
	"encoding/binary"
	"fmt"
)

// EncodeQueryDeviceResponse builds the QUERY_DEVICE response for a layout.
// At most MaxRegions entries fit; when fewer are given the list is
// terminated with RegionEnd.
//
// Packet structure:
//
//	[CMD][DATA_FIELD_SIZE][BYTES_PER_ADDR]{[TYPE][ADDR(4)][LEN(4)]}x6[VERSION_FLAG][PAD(6)]
func EncodeQueryDeviceResponse(layout *DeviceLayout) (Packet, error) {
	if len(layout.Regions) > MaxRegions {
		return Packet{}, fmt.Errorf("layout has %d regions, maximum is %d", len(layout.Regions), MaxRegions)
	}

	pkt := buildOpcodeOnly(OpQueryDevice)
	pkt[1] = layout.DataFieldSize
	pkt[2] = layout.BytesPerAddress

	for i, r := range layout.Regions {
		off := regionTableOffset + i*regionEntrySize
		pkt[off] = byte(r.Type)
		binary.LittleEndian.PutUint32(pkt[off+1:off+5], r.Address)
		binary.LittleEndian.PutUint32(pkt[off+5:off+9], r.Length)
	}
	if len(layout.Regions) < MaxRegions {
		pkt[regionTableOffset+len(layout.Regions)*regionEntrySize] = byte(RegionEnd)
	}

	pkt[versionFlagOffset] = layout.VersionFlag
	return pkt, nil
}

// ParseQueryDeviceResponse parses a QUERY_DEVICE response.
// The region list stops at the first RegionEnd entry.
func ParseQueryDeviceResponse(pkt *Packet) (*DeviceLayout, error) {
	if err := expectOpcode("query device", pkt, OpQueryDevice); err != nil {
		return nil, err
	}

	layout := &DeviceLayout{
		DataFieldSize:   pkt[1],
		BytesPerAddress: pkt[2],
		VersionFlag:     pkt[versionFlagOffset],
	}

	for i := 0; i < MaxRegions; i++ {
		off := regionTableOffset + i*regionEntrySize
		t := RegionType(pkt[off])
		if t == RegionEnd {
			break
		}
		layout.Regions = append(layout.Regions, Region{
			Type:    t,
			Address: binary.LittleEndian.Uint32(pkt[off+1 : off+5]),
			Length:  binary.LittleEndian.Uint32(pkt[off+5 : off+9]),
		})
	}

	if layout.DataFieldSize == 0 || layout.DataFieldSize > DataFieldSize {
		return nil, &ResponseError{
			Operation: "query device",
			Opcode:    OpQueryDevice,
			Reason:    fmt.Sprintf("invalid data field size %d", layout.DataFieldSize),
		}
	}

	return layout, nil
}

// EncodeGetDataResponse builds a GET_DATA response echoing address and size,
// with data right-justified in the data field.
//
// Packet structure:
//
//	[CMD][ADDR(4)][SIZE][PAD(58-SIZE)][DATA(SIZE)]
func EncodeGetDataResponse(address uint32, data []byte) (Packet, error) {
	if len(data) > DataFieldSize {
		return Packet{}, fmt.Errorf("data length %d exceeds maximum %d bytes", len(data), DataFieldSize)
	}

	pkt := buildAddressed(OpGetData, address, byte(len(data)))
	copy(pkt[PacketSize-len(data):], data)
	return pkt, nil
}

// ParseGetDataResponse parses a GET_DATA response.
// The returned data is a copy and does not alias the packet.
func ParseGetDataResponse(pkt *Packet) (*ReadData, error) {
	if err := expectOpcode("get data", pkt, OpGetData); err != nil {
		return nil, err
	}

	size := int(pkt[5])
	if size > DataFieldSize {
		return nil, &ResponseError{
			Operation: "get data",
			Opcode:    OpGetData,
			Reason:    fmt.Sprintf("size %d exceeds data field", size),
		}
	}

	data := make([]byte, size)
	copy(data, pkt[PacketSize-size:])

	return &ReadData{
		Address: binary.LittleEndian.Uint32(pkt[1:5]),
		Data:    data,
	}, nil
}

// EncodeExtendedInfoResponse builds the QUERY_EXTENDED_INFO response.
//
// Packet structure:
//
//	[CMD][BL_VER(2)][APP_VER(2)][SIG_ADDR(4)][SIG_VAL(2)][PAGE_SIZE(4)][MASKS(14)][PAD(35)]
func EncodeExtendedInfoResponse(info *ExtendedInfo) Packet {
	pkt := buildOpcodeOnly(OpQueryExtendedInfo)
	binary.LittleEndian.PutUint16(pkt[1:3], info.BootloaderVersion)
	binary.LittleEndian.PutUint16(pkt[3:5], info.ApplicationVersion)
	binary.LittleEndian.PutUint32(pkt[5:9], info.SignatureAddress)
	binary.LittleEndian.PutUint16(pkt[9:11], info.SignatureValue)
	binary.LittleEndian.PutUint32(pkt[11:15], info.ErasePageSize)
	for i, m := range info.ConfigMasks {
		pkt[15+2*i] = m[0]
		pkt[16+2*i] = m[1]
	}
	return pkt
}

// ParseExtendedInfoResponse parses a QUERY_EXTENDED_INFO response.
func ParseExtendedInfoResponse(pkt *Packet) (*ExtendedInfo, error) {
	if err := expectOpcode("query extended info", pkt, OpQueryExtendedInfo); err != nil {
		return nil, err
	}

	info := &ExtendedInfo{
		BootloaderVersion:  binary.LittleEndian.Uint16(pkt[1:3]),
		ApplicationVersion: binary.LittleEndian.Uint16(pkt[3:5]),
		SignatureAddress:   binary.LittleEndian.Uint32(pkt[5:9]),
		SignatureValue:     binary.LittleEndian.Uint16(pkt[9:11]),
		ErasePageSize:      binary.LittleEndian.Uint32(pkt[11:15]),
	}
	for i := range info.ConfigMasks {
		info.ConfigMasks[i] = [2]byte{pkt[15+2*i], pkt[16+2*i]}
	}

	return info, nil
}

func expectOpcode(operation string, pkt *Packet, want Opcode) error {
	if got := pkt.Opcode(); got != want {
		return &ResponseError{
			Operation: operation,
			Opcode:    got,
			Reason:    fmt.Sprintf("expected %s response", want),
		}
	}
	return nil
}
