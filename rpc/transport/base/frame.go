package base

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
)

// frameHeaderSize is the size of a frame header: shard id (8), request id (8)
// and payload length (4), all big endian
const frameHeaderSize = 20

// maxFrameSize bounds the payload of a single frame
const maxFrameSize = 512 << 20

// frameHeader prefixes every request and response on a stream connection
type frameHeader struct {
	shardID   uint64
	requestID uint64
	length    uint32
}

func (h frameHeader) encode(b []byte) {
	binary.BigEndian.PutUint64(b[0:8], h.shardID)
	binary.BigEndian.PutUint64(b[8:16], h.requestID)
	binary.BigEndian.PutUint32(b[16:20], h.length)
}

func decodeFrameHeader(b []byte) frameHeader {
	return frameHeader{
		shardID:   binary.BigEndian.Uint64(b[0:8]),
		requestID: binary.BigEndian.Uint64(b[8:16]),
		length:    binary.BigEndian.Uint32(b[16:20]),
	}
}

// writeFrame writes header and payload with a single vectored write
func writeFrame(conn net.Conn, shardID, requestID uint64, data []byte) error {
	if len(data) > maxFrameSize {
		return fmt.Errorf("frame of %d bytes exceeds limit of %d bytes", len(data), maxFrameSize)
	}
	header := make([]byte, frameHeaderSize)
	frameHeader{shardID: shardID, requestID: requestID, length: uint32(len(data))}.encode(header)

	bufs := net.Buffers{header, data}
	_, err := bufs.WriteTo(conn)
	return err
}

// readFrame reads the next frame. buf is reused for the payload when it is
// large enough, so the returned data is only valid until the next call with
// the same buf.
func readFrame(conn net.Conn, buf []byte) (shardID, requestID uint64, data []byte, err error) {
	var header [frameHeaderSize]byte
	if _, err = io.ReadFull(conn, header[:]); err != nil {
		return 0, 0, nil, err
	}
	h := decodeFrameHeader(header[:])
	if h.length > maxFrameSize {
		return 0, 0, nil, fmt.Errorf("frame of %d bytes exceeds limit of %d bytes", h.length, maxFrameSize)
	}
	if h.length == 0 {
		return h.shardID, h.requestID, []byte{}, nil
	}

	if cap(buf) < int(h.length) {
		buf = make([]byte, h.length)
	}
	data = buf[:h.length]
	if _, err = io.ReadFull(conn, data); err != nil {
		return 0, 0, nil, err
	}
	return h.shardID, h.requestID, data, nil
}
