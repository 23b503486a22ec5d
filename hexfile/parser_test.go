package hexfile

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// line encodes one record with a correct checksum.
func line(kind byte, offset uint16, data ...byte) string {
	raw := append([]byte{byte(len(data)), byte(offset >> 8), byte(offset), kind}, data...)
	raw = append(raw, recordChecksum(raw))
	return ":" + strings.ToUpper(hex.EncodeToString(raw))
}

const eof = ":00000001FF"

func TestParseReader(t *testing.T) {
	tests := []struct {
		name    string
		input   []string
		want    []Segment
		wantErr string
	}{
		{
			name:  "single data record",
			input: []string{":0400000001020304F2", eof},
			want:  []Segment{{Address: 0, Data: []byte{1, 2, 3, 4}}},
		},
		{
			name: "adjacent records merge",
			input: []string{
				line(RecordData, 0x1202, 3, 4),
				line(RecordData, 0x1200, 1, 2),
				eof,
			},
			want: []Segment{{Address: 0x1200, Data: []byte{1, 2, 3, 4}}},
		},
		{
			name: "gap keeps segments apart",
			input: []string{
				line(RecordData, 0x1200, 1, 2),
				line(RecordData, 0x1210, 3, 4),
				eof,
			},
			want: []Segment{
				{Address: 0x1200, Data: []byte{1, 2}},
				{Address: 0x1210, Data: []byte{3, 4}},
			},
		},
		{
			name: "extended linear address",
			input: []string{
				line(RecordExtendedLinearAddress, 0, 0x00, 0x01),
				line(RecordData, 0x000E, 0xA4, 0x09),
				eof,
			},
			want: []Segment{{Address: 0x1000E, Data: []byte{0xA4, 0x09}}},
		},
		{
			name: "extended segment address",
			input: []string{
				line(RecordExtendedSegmentAddress, 0, 0x10, 0x00),
				line(RecordData, 0x0004, 0xAA),
				eof,
			},
			want: []Segment{{Address: 0x10004, Data: []byte{0xAA}}},
		},
		{
			name: "start address ignored",
			input: []string{
				line(RecordStartLinearAddress, 0, 0, 0, 0x12, 0x00),
				line(RecordData, 0, 0x01),
				eof,
			},
			want: []Segment{{Address: 0, Data: []byte{0x01}}},
		},
		{
			name:  "blank lines and whitespace",
			input: []string{"", "  " + line(RecordData, 0x10, 0x05) + "\r", "", eof},
			want:  []Segment{{Address: 0x10, Data: []byte{0x05}}},
		},
		{
			name:    "bad checksum",
			input:   []string{":0400000001020304F3", eof},
			wantErr: "checksum mismatch",
		},
		{
			name:    "missing start code",
			input:   []string{"0400000001020304F2", eof},
			wantErr: "missing start code",
		},
		{
			name:    "length mismatch",
			input:   []string{":0500000001020304F1", eof},
			wantErr: "data length mismatch",
		},
		{
			name:    "too short",
			input:   []string{":0000", eof},
			wantErr: "record too short",
		},
		{
			name:    "invalid hex",
			input:   []string{":0400000001020304GG", eof},
			wantErr: "invalid hex data",
		},
		{
			name:    "unsupported type",
			input:   []string{line(0x07, 0), eof},
			wantErr: "unsupported record type",
		},
		{
			name:    "missing eof",
			input:   []string{line(RecordData, 0, 1)},
			wantErr: "missing end of file",
		},
		{
			name:    "data after eof",
			input:   []string{eof, line(RecordData, 0, 1)},
			wantErr: "after end of file",
		},
		{
			name: "overlap",
			input: []string{
				line(RecordData, 0x100, 1, 2, 3, 4),
				line(RecordData, 0x102, 9),
				eof,
			},
			wantErr: "overlapping data at 0x102",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := ParseReader(strings.NewReader(strings.Join(tt.input, "\n")))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, img.Segments)
		})
	}
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.hex")
	content := fmt.Sprintf("%s\n%s\n", line(RecordData, 0x1200, 0x6D, 0x34), eof)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	img, err := Parse(path)
	require.NoError(t, err)
	assert.Equal(t, 2, img.Size())

	_, err = Parse(filepath.Join(t.TempDir(), "missing.hex"))
	assert.Error(t, err)
}
