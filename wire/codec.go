package wire

import "net"

// --- ChunkMetadata ---

func encodeChunkMetadata(buf []byte, c ChunkMetadata) []byte {
	buf = putUvarint(buf, c.Offset)
	buf = putUvarint(buf, uint64(c.Size))
	buf = putUvarint(buf, c.Hash)
	return buf
}

func decodeChunkMetadata(buf []byte) (ChunkMetadata, int, error) {
	var c ChunkMetadata
	total := 0

	offset, n, err := getUvarint(buf[total:])
	if err != nil {
		return c, 0, err
	}
	total += n
	c.Offset = offset

	size, n, err := getUvarint(buf[total:])
	if err != nil {
		return c, 0, err
	}
	total += n
	c.Size = uint32(size)

	hash, n, err := getUvarint(buf[total:])
	if err != nil {
		return c, 0, err
	}
	total += n
	c.Hash = hash

	return c, total, nil
}

// --- ImageMetadata ---

// EncodeImageMetadata serializes an ImageMetadata record.
func EncodeImageMetadata(m ImageMetadata) []byte {
	buf := putUvarint(nil, uint64(len(m.Chunks)))
	for _, c := range m.Chunks {
		buf = encodeChunkMetadata(buf, c)
	}
	return buf
}

// DecodeImageMetadata decodes an ImageMetadata record. The entire
// buffer must be consumed; trailing bytes are a decode error.
func DecodeImageMetadata(buf []byte) (ImageMetadata, error) {
	count, n, err := getUvarint(buf)
	if err != nil {
		return ImageMetadata{}, err
	}
	buf = buf[n:]

	chunks := make([]ChunkMetadata, 0, count)
	for i := uint64(0); i < count; i++ {
		c, consumed, err := decodeChunkMetadata(buf)
		if err != nil {
			return ImageMetadata{}, err
		}
		chunks = append(chunks, c)
		buf = buf[consumed:]
	}

	if len(buf) != 0 {
		return ImageMetadata{}, decodeError("trailing bytes after image metadata")
	}

	return ImageMetadata{Chunks: chunks}, nil
}

// --- SocketAddr / ServerDiscovery ---

func encodeSocketAddr(buf []byte, s SocketAddr, v6 bool) []byte {
	if v6 {
		ip := s.IP.To16()
		buf = append(buf, ip...)
	} else {
		ip := s.IP.To4()
		buf = append(buf, ip...)
	}
	buf = putUvarint(buf, uint64(s.Port))
	return buf
}

func decodeSocketAddr(buf []byte, v6 bool) (SocketAddr, int, error) {
	ipLen := 4
	if v6 {
		ipLen = 16
	}
	if len(buf) < ipLen {
		return SocketAddr{}, 0, ErrUnexpectedEnd
	}
	ip := make(net.IP, ipLen)
	copy(ip, buf[:ipLen])

	port, n, err := getUvarint(buf[ipLen:])
	if err != nil {
		return SocketAddr{}, 0, err
	}

	return SocketAddr{IP: ip, Port: int(port)}, ipLen + n, nil
}

const (
	familyIPv4 = 4
	familyIPv6 = 6
)

// EncodeServerDiscovery serializes a ServerDiscovery record. The
// caller must ensure d.SameFamily() holds.
func EncodeServerDiscovery(d ServerDiscovery) []byte {
	v6 := d.MetadataSocket.IsIPv6()

	family := byte(familyIPv4)
	if v6 {
		family = familyIPv6
	}

	buf := append([]byte{}, family)
	buf = encodeSocketAddr(buf, d.MetadataSocket, v6)
	buf = encodeSocketAddr(buf, d.RequestSocket, v6)
	buf = encodeSocketAddr(buf, d.TransferSocket, v6)
	return buf
}

// DecodeServerDiscovery decodes a ServerDiscovery record. The entire
// buffer must be consumed.
func DecodeServerDiscovery(buf []byte) (ServerDiscovery, error) {
	if len(buf) < 1 {
		return ServerDiscovery{}, ErrUnexpectedEnd
	}

	var v6 bool
	switch buf[0] {
	case familyIPv4:
		v6 = false
	case familyIPv6:
		v6 = true
	default:
		return ServerDiscovery{}, decodeError("unknown address family %d", buf[0])
	}
	buf = buf[1:]

	meta, n, err := decodeSocketAddr(buf, v6)
	if err != nil {
		return ServerDiscovery{}, err
	}
	buf = buf[n:]

	req, n, err := decodeSocketAddr(buf, v6)
	if err != nil {
		return ServerDiscovery{}, err
	}
	buf = buf[n:]

	transfer, n, err := decodeSocketAddr(buf, v6)
	if err != nil {
		return ServerDiscovery{}, err
	}
	buf = buf[n:]

	if len(buf) != 0 {
		return ServerDiscovery{}, decodeError("trailing bytes after server discovery")
	}

	return ServerDiscovery{
		MetadataSocket: meta,
		RequestSocket:  req,
		TransferSocket: transfer,
	}, nil
}

// --- ChunkData ---

// EncodeChunkData serializes a ChunkData fragment.
func EncodeChunkData(c ChunkData) []byte {
	buf := putUvarint(nil, uint64(c.Chunk))
	buf = putUvarint(buf, uint64(c.Offset))
	buf = putBytes(buf, c.Data)
	return buf
}

// DecodeChunkData decodes a ChunkData fragment. The entire buffer
// must be consumed. The returned Data aliases buf.
func DecodeChunkData(buf []byte) (ChunkData, error) {
	chunk, n, err := getUvarint(buf)
	if err != nil {
		return ChunkData{}, err
	}
	buf = buf[n:]

	offset, n, err := getUvarint(buf)
	if err != nil {
		return ChunkData{}, err
	}
	buf = buf[n:]

	data, n, err := getBytes(buf)
	if err != nil {
		return ChunkData{}, err
	}
	buf = buf[n:]

	if len(buf) != 0 {
		return ChunkData{}, decodeError("trailing bytes after chunk data")
	}

	return ChunkData{Chunk: uint32(chunk), Offset: uint32(offset), Data: data}, nil
}

// --- ChunkRequest ---

// EncodeChunkRequest serializes a ChunkRequest. It panics if len(r.IDs)
// exceeds MaxChunkRequestIDs: callers are expected to truncate before
// encoding, the way the receiver's missing-set walk already does.
func EncodeChunkRequest(r ChunkRequest) []byte {
	if len(r.IDs) > MaxChunkRequestIDs {
		panic("wire: chunk request exceeds capacity")
	}

	buf := putUvarint(nil, uint64(len(r.IDs)))
	for _, id := range r.IDs {
		buf = putUvarint(buf, uint64(id))
	}
	return buf
}

// DecodeChunkRequest decodes a ChunkRequest. The entire buffer must be
// consumed, and the encoded count must not exceed MaxChunkRequestIDs.
func DecodeChunkRequest(buf []byte) (ChunkRequest, error) {
	count, n, err := getUvarint(buf)
	if err != nil {
		return ChunkRequest{}, err
	}
	if count > MaxChunkRequestIDs {
		return ChunkRequest{}, decodeError("chunk request exceeds capacity: %d", count)
	}
	buf = buf[n:]

	ids := make([]uint32, 0, count)
	for i := uint64(0); i < count; i++ {
		id, n, err := getUvarint(buf)
		if err != nil {
			return ChunkRequest{}, err
		}
		ids = append(ids, uint32(id))
		buf = buf[n:]
	}

	if len(buf) != 0 {
		return ChunkRequest{}, decodeError("trailing bytes after chunk request")
	}

	return ChunkRequest{IDs: ids}, nil
}
