package hexfile

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
)

// Record types.
const (
	RecordData                   = 0x00
	RecordEOF                    = 0x01
	RecordExtendedSegmentAddress = 0x02
	RecordStartSegmentAddress    = 0x03
	RecordExtendedLinearAddress  = 0x04
	RecordStartLinearAddress     = 0x05
)

// MinimumRecordLength is the shortest record in hex characters, after the
// start code: count(2) + address(4) + type(2) + checksum(2).
const MinimumRecordLength = 10

// Parse parses an Intel HEX file from the given path.
func Parse(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return ParseReader(f)
}

// ParseReader parses Intel HEX from any io.Reader.
//
// Example:
//
//	img, err := hexfile.ParseReader(strings.NewReader(":0400000001020304F2\n:00000001FF\n"))
func ParseReader(r io.Reader) (*Image, error) {
	scanner := bufio.NewScanner(r)
	img := &Image{}

	var base uint32
	lineNum := 0
	sawEOF := false
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if sawEOF {
			return nil, fmt.Errorf("line %d: data after end of file record", lineNum)
		}

		rec, err := parseRecord(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}

		switch rec.kind {
		case RecordData:
			img.Segments = append(img.Segments, Segment{Address: base + uint32(rec.offset), Data: rec.data})
		case RecordEOF:
			sawEOF = true
		case RecordExtendedSegmentAddress:
			if len(rec.data) != 2 {
				return nil, fmt.Errorf("line %d: segment address record needs 2 bytes, got %d", lineNum, len(rec.data))
			}
			base = (uint32(rec.data[0])<<8 | uint32(rec.data[1])) << 4
		case RecordExtendedLinearAddress:
			if len(rec.data) != 2 {
				return nil, fmt.Errorf("line %d: linear address record needs 2 bytes, got %d", lineNum, len(rec.data))
			}
			base = (uint32(rec.data[0])<<8 | uint32(rec.data[1])) << 16
		case RecordStartSegmentAddress, RecordStartLinearAddress:
			// Entry points mean nothing to the bootloader.
		default:
			return nil, fmt.Errorf("line %d: unsupported record type 0x%02X", lineNum, rec.kind)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if !sawEOF {
		return nil, fmt.Errorf("missing end of file record")
	}

	if addr, ok := img.normalize(); !ok {
		return nil, fmt.Errorf("overlapping data at 0x%X", addr)
	}
	return img, nil
}

type record struct {
	kind   byte
	offset uint16
	data   []byte
}

// parseRecord parses a single record line including the ':' start code.
func parseRecord(line string) (*record, error) {
	if line[0] != ':' {
		return nil, fmt.Errorf("missing start code")
	}
	body := line[1:]
	if len(body) < MinimumRecordLength {
		return nil, fmt.Errorf("record too short: got %d characters, minimum is %d", len(body), MinimumRecordLength)
	}

	raw, err := hex.DecodeString(body)
	if err != nil {
		return nil, fmt.Errorf("invalid hex data: %w", err)
	}

	count := int(raw[0])
	if len(raw) != count+5 {
		return nil, fmt.Errorf("data length mismatch: got %d bytes, expected %d", len(raw)-5, count)
	}

	checksum := raw[len(raw)-1]
	if calculated := recordChecksum(raw[:len(raw)-1]); checksum != calculated {
		return nil, fmt.Errorf("checksum mismatch: got 0x%02X, expected 0x%02X", checksum, calculated)
	}

	rec := &record{
		kind:   raw[3],
		offset: uint16(raw[1])<<8 | uint16(raw[2]),
		data:   make([]byte, count),
	}
	copy(rec.data, raw[4:4+count])
	return rec, nil
}
