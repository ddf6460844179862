// Package wire implements the on-wire binary encoding shared by the
// imgcast server and client: ServerDiscovery, ImageMetadata,
// ChunkMetadata, ChunkData and ChunkRequest. Every record is encoded
// with unsigned LEB128 varints (encoding/binary's PutUvarint/Uvarint)
// for integer fields and a uvarint length prefix for byte slices, the
// same self-delimiting shape xnet's PROXY protocol parser hand-rolls
// for its own fixed layout, generalized here to variable-width
// integers since datagrams this small benefit from not spending a
// fixed 8 bytes on every offset and count.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrUnexpectedEnd is returned when a buffer doesn't yet contain a
// complete encoded value. Callers that read from a growable buffer
// (the request listener, the chunk receiver) drop the datagram and
// double the buffer size on this specific error, so later datagrams
// of that size fit; other decode errors only drop the datagram.
var ErrUnexpectedEnd = errors.New("wire: unexpected end of buffer")

// ErrDecode covers every other decode failure: overflowing varints,
// unknown address families, trailing bytes, or structurally invalid
// records. Truncated fields, fixed-size ones included, are
// ErrUnexpectedEnd.
var ErrDecode = errors.New("wire: decode error")

// MaxChunkRequestIDs is the capacity of a single ChunkRequest
// datagram, per spec.
const MaxChunkRequestIDs = 40

func decodeError(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrDecode}, args...)...)
}

// putUvarint appends v to buf as a uvarint and returns the new slice.
func putUvarint(buf []byte, v uint64) []byte {
	var scratch [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(scratch[:], v)
	return append(buf, scratch[:n]...)
}

// getUvarint reads a uvarint from the front of buf, returning the
// value, the number of bytes consumed, and an error. It returns
// ErrUnexpectedEnd when buf does not yet contain a complete varint.
func getUvarint(buf []byte) (uint64, int, error) {
	v, n := binary.Uvarint(buf)
	if n == 0 {
		return 0, 0, ErrUnexpectedEnd
	}
	if n < 0 {
		return 0, 0, decodeError("varint overflows 64 bits")
	}
	return v, n, nil
}

// putBytes appends a uvarint length prefix followed by data.
func putBytes(buf []byte, data []byte) []byte {
	buf = putUvarint(buf, uint64(len(data)))
	return append(buf, data...)
}

// getBytes reads a uvarint-length-prefixed byte slice from the front
// of buf. The returned slice aliases buf; callers that retain it
// beyond the lifetime of the receive buffer must copy it.
func getBytes(buf []byte) (data []byte, consumed int, err error) {
	n, hn, err := getUvarint(buf)
	if err != nil {
		return nil, 0, err
	}
	total := hn + int(n)
	if total > len(buf) {
		return nil, 0, ErrUnexpectedEnd
	}
	return buf[hn:total], total, nil
}
