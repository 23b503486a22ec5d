package transport

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moffa90/go-hidboot/protocol"
)

// chunkReader returns its chunks one per Read; an empty chunk reads as a
// timeout.
type chunkReader struct {
	chunks [][]byte
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.chunks) == 0 {
		return 0, io.EOF
	}
	c := r.chunks[0]
	r.chunks = r.chunks[1:]
	return copy(p, c), nil
}

func TestReadFrame(t *testing.T) {
	full := bytes.Repeat([]byte{0xA5}, protocol.PacketSize)

	tests := []struct {
		name    string
		chunks  [][]byte
		wantErr error
	}{
		{name: "single read", chunks: [][]byte{full}},
		{name: "split reads", chunks: [][]byte{full[:10], full[10:40], full[40:]}},
		{name: "idle", chunks: [][]byte{{}}, wantErr: ErrTimeout},
		{name: "stalls mid frame", chunks: [][]byte{full[:20], {}}, wantErr: ErrShortFrame},
		{name: "closes mid frame", chunks: [][]byte{full[:20]}, wantErr: ErrShortFrame},
		{name: "closed", chunks: nil, wantErr: io.EOF},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var pkt protocol.Packet
			err := readFrame(&chunkReader{chunks: tt.chunks}, &pkt)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, full, pkt[:])
		})
	}
}

func TestWriteFramePads(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeFrame(&buf, []byte{0x02}))
	assert.Equal(t, protocol.PacketSize, buf.Len())
	assert.Equal(t, byte(0x02), buf.Bytes()[0])
	assert.Equal(t, make([]byte, protocol.PacketSize-1), buf.Bytes()[1:])

	assert.Error(t, writeFrame(&buf, make([]byte, protocol.PacketSize+1)))
}
