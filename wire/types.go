package wire

import (
	"fmt"
	"net"
)

// ChunkMetadata describes one chunk of the image: its byte position
// in the file, its length in bytes (the final chunk may be short),
// and a 64-bit non-cryptographic hash of its contents.
type ChunkMetadata struct {
	Offset uint64
	Size   uint32
	Hash   uint64
}

// ImageMetadata is the ordered, contiguous sequence of chunks covering
// an entire image. It is immutable once built.
type ImageMetadata struct {
	Chunks []ChunkMetadata
}

// Size returns the total image size: the offset of the last chunk
// plus its size, equivalently the sum of every chunk's size.
func (m ImageMetadata) Size() uint64 {
	if len(m.Chunks) == 0 {
		return 0
	}
	last := m.Chunks[len(m.Chunks)-1]
	return last.Offset + uint64(last.Size)
}

// SocketAddr is a minimal, family-explicit (IP, port) pair used for
// every socket address carried in a ServerDiscovery record.
type SocketAddr struct {
	IP   net.IP
	Port int
}

func (s SocketAddr) String() string {
	return net.JoinHostPort(s.IP.String(), fmt.Sprintf("%d", s.Port))
}

// IsIPv6 reports whether the address is an IPv6 address. IPv4-mapped
// IPv6 addresses count as IPv4, since To4 converts them.
func (s SocketAddr) IsIPv6() bool {
	return s.IP.To4() == nil
}

// ToUDPAddr converts s to a *net.UDPAddr, attaching zone as the scope
// id for link-local IPv6 addresses. A scope id never survives the
// wire, so callers reattach it based on the interface they received
// the record on.
func (s SocketAddr) ToUDPAddr(zone string) *net.UDPAddr {
	addr := &net.UDPAddr{IP: s.IP, Port: s.Port}
	if s.IsIPv6() && (s.IP.IsLinkLocalUnicast() || s.IP.IsLinkLocalMulticast()) {
		addr.Zone = zone
	}
	return addr
}

// ServerDiscovery is the record periodically multicast by the
// discovery beacon: the three endpoints a client needs to fetch
// metadata, send requests, and receive chunk fragments. All three
// must share the IP family of the discovery group.
type ServerDiscovery struct {
	MetadataSocket SocketAddr
	RequestSocket  SocketAddr
	TransferSocket SocketAddr
}

// SameFamily reports whether all three sockets share one IP family.
func (d ServerDiscovery) SameFamily() bool {
	v6 := d.MetadataSocket.IsIPv6()
	return d.RequestSocket.IsIPv6() == v6 && d.TransferSocket.IsIPv6() == v6
}

// ChunkData is one multicast fragment: a slice of chunk-local bytes
// starting at Offset within chunk Chunk.
type ChunkData struct {
	Chunk  uint32
	Offset uint32
	Data   []byte
}

// ChunkRequest is a client's NACK: up to MaxChunkRequestIDs missing
// chunk indices, sent as a single UDP datagram to the request socket.
type ChunkRequest struct {
	IDs []uint32
}
