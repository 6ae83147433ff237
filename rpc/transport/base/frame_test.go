package base

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		shardID uint64
		reqID   uint64
		data    []byte
		buf     []byte
	}{
		{name: "payload fits buffer", shardID: 100, reqID: 7, data: []byte("GET key"), buf: make([]byte, 64)},
		{name: "payload larger than buffer", shardID: 1, reqID: 2, data: make([]byte, 1024), buf: make([]byte, 16)},
		{name: "no buffer", shardID: 3, reqID: 4, data: []byte{1, 2, 3}},
		{name: "empty payload", shardID: 5, reqID: 6, data: []byte{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, server := net.Pipe()
			defer client.Close()
			defer server.Close()

			errCh := make(chan error, 1)
			go func() { errCh <- writeFrame(client, tt.shardID, tt.reqID, tt.data) }()

			shardID, reqID, data, err := readFrame(server, tt.buf)
			require.NoError(t, err)
			require.NoError(t, <-errCh)
			assert.Equal(t, tt.shardID, shardID)
			assert.Equal(t, tt.reqID, reqID)
			assert.Equal(t, tt.data, data)
		})
	}
}

func TestReadFrameRejectsOversizedFrame(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	header := make([]byte, frameHeaderSize)
	frameHeader{shardID: 1, requestID: 1, length: maxFrameSize + 1}.encode(header)
	go func() { _, _ = client.Write(header) }()

	_, _, _, err := readFrame(server, nil)
	assert.Error(t, err)
}
