package protocol

import (
	"bytes"
	"testing"
)

func testLayout() *DeviceLayout {
	return &DeviceLayout{
		DataFieldSize:   DataFieldSize,
		BytesPerAddress: BytesPerAddress,
		Regions: []Region{
			{Type: RegionProgram, Address: 0x1200, Length: 0x2E00},
			{Type: RegionConfig, Address: 0x1000E, Length: 4},
			{Type: RegionUserID, Address: 0x10000, Length: 6},
		},
		VersionFlag: VersionFlagExtended,
	}
}

func TestEncodeQueryDeviceResponse(t *testing.T) {
	pkt, err := EncodeQueryDeviceResponse(testLayout())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if pkt.Opcode() != OpQueryDevice {
		t.Errorf("CMD = %s, want QUERY_DEVICE", pkt.Opcode())
	}
	if pkt[1] != DataFieldSize || pkt[2] != BytesPerAddress {
		t.Errorf("header = % X", pkt[:3])
	}
	// First entry: program region at 0x1200, length 0x2E00.
	wantFirst := []byte{0x01, 0x00, 0x12, 0x00, 0x00, 0x00, 0x2E, 0x00, 0x00}
	if !bytes.Equal(pkt[3:12], wantFirst) {
		t.Errorf("first entry = % X, want % X", pkt[3:12], wantFirst)
	}
	if pkt[3+3*9] != byte(RegionEnd) {
		t.Errorf("entry 4 type = 0x%02X, want end marker", pkt[3+3*9])
	}
	if pkt[57] != VersionFlagExtended {
		t.Errorf("version flag = 0x%02X, want 0x%02X", pkt[57], VersionFlagExtended)
	}
}

func TestEncodeQueryDeviceResponseTooManyRegions(t *testing.T) {
	layout := testLayout()
	for len(layout.Regions) <= MaxRegions {
		layout.Regions = append(layout.Regions, Region{Type: RegionEEPROM})
	}
	if _, err := EncodeQueryDeviceResponse(layout); err == nil {
		t.Fatal("expected error for seven regions")
	}
}

func TestParseQueryDeviceResponse(t *testing.T) {
	want := testLayout()
	pkt, err := EncodeQueryDeviceResponse(want)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := ParseQueryDeviceResponse(&pkt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(got.Regions) != len(want.Regions) {
		t.Fatalf("regions = %d, want %d", len(got.Regions), len(want.Regions))
	}
	for i := range want.Regions {
		if got.Regions[i] != want.Regions[i] {
			t.Errorf("region %d = %+v, want %+v", i, got.Regions[i], want.Regions[i])
		}
	}
	if !got.SupportsExtendedInfo() {
		t.Error("SupportsExtendedInfo() = false, want true")
	}
	if r, ok := got.Region(RegionUserID); !ok || r.Address != 0x10000 {
		t.Errorf("Region(userid) = %+v, %v", r, ok)
	}
}

func TestParseQueryDeviceResponseErrors(t *testing.T) {
	tests := []struct {
		name string
		pkt  func() Packet
	}{
		{
			name: "wrong opcode",
			pkt: func() Packet {
				p := BuildGetDataCmdMust(0, 1)
				return p
			},
		},
		{
			name: "zero data field size",
			pkt: func() Packet {
				p, _ := EncodeQueryDeviceResponse(&DeviceLayout{})
				return p
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pkt := tt.pkt()
			_, err := ParseQueryDeviceResponse(&pkt)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !IsResponseError(err) {
				t.Errorf("error %T is not a ResponseError", err)
			}
		})
	}
}

func TestGetDataResponse(t *testing.T) {
	data := []byte{0x11, 0x22, 0xFF, 0xFF}
	pkt, err := EncodeGetDataResponse(0x1204, data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(pkt[PacketSize-4:], data) {
		t.Errorf("data not right-justified: % X", pkt[DataFieldOffset:])
	}

	read, err := ParseGetDataResponse(&pkt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if read.Address != 0x1204 || !bytes.Equal(read.Data, data) {
		t.Errorf("read = %+v", read)
	}

	// The parsed data must not alias the packet.
	pkt[PacketSize-1] = 0
	if read.Data[3] != 0xFF {
		t.Error("parsed data aliases packet buffer")
	}

	if _, err := EncodeGetDataResponse(0, make([]byte, DataFieldSize+1)); err == nil {
		t.Error("expected error for oversized data")
	}
}

func TestExtendedInfoResponse(t *testing.T) {
	want := &ExtendedInfo{
		BootloaderVersion:  0x0102,
		ApplicationVersion: 0x0304,
		SignatureAddress:   0x1200,
		SignatureValue:     0x346D,
		ErasePageSize:      64,
	}
	for i := range want.ConfigMasks {
		want.ConfigMasks[i] = [2]byte{0xFF, byte(i)}
	}

	pkt := EncodeExtendedInfoResponse(want)
	if pkt[1] != 0x02 || pkt[2] != 0x01 {
		t.Errorf("bootloader version bytes = % X, want 02 01", pkt[1:3])
	}

	got, err := ParseExtendedInfoResponse(&pkt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *got != *want {
		t.Errorf("info = %+v, want %+v", got, want)
	}
	if got.BootloaderMajor() != 1 || got.BootloaderMinor() != 2 {
		t.Errorf("version = %d.%02d, want 1.02", got.BootloaderMajor(), got.BootloaderMinor())
	}
}

// BuildGetDataCmdMust is a test helper for packets known to be valid.
func BuildGetDataCmdMust(address uint32, size int) Packet {
	pkt, err := BuildGetDataCmd(address, size)
	if err != nil {
		panic(err)
	}
	return pkt
}
