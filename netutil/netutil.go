// Package netutil sets up the multicast sockets shared by the
// discovery beacon, the chunk dispatcher and their client-side
// counterparts. It wraps golang.org/x/net/ipv4 and ipv4/ipv6 packet
// connections, which expose the multicast interface, TTL/hop-limit
// and group-membership controls the stdlib net package does not.
package netutil

import (
	"fmt"
	"net"

	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

// TypicalMTUBudget is the starting size for receive buffers on the
// discovery listener and chunk receiver, an MTU-sized budget minus
// IPv6 and UDP headers: large enough for any fragment or discovery
// record sent over a typical network path. The chunk receiver grows
// its buffer further on ErrUnexpectedEnd; the discovery listener
// keeps this size.
const TypicalMTUBudget = 2500 - 40 - 8

// DefaultInterface returns the first interface that is up, not a
// loopback, and advertises multicast support. It mirrors the
// fallback the discovery beacon and listener use when no --interface
// flag is given.
func DefaultInterface() (*net.Interface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("netutil: list interfaces: %w", err)
	}

	for i := range ifaces {
		iface := &ifaces[i]
		if iface.Flags&net.FlagUp == 0 {
			continue
		}
		if iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if iface.Flags&net.FlagMulticast == 0 {
			continue
		}
		return iface, nil
	}

	return nil, fmt.Errorf("netutil: no multicast-capable interface found")
}

// InterfaceByName resolves an interface by its OS name, the way the
// --interface flag selects one.
func InterfaceByName(name string) (*net.Interface, error) {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return nil, fmt.Errorf("netutil: interface %q: %w", name, err)
	}
	return iface, nil
}

func isIPv6(addr *net.UDPAddr) bool {
	return addr.IP.To4() == nil
}

// NewSenderSocket binds a UDP socket for sending to a multicast
// group: it sets the outgoing multicast interface and hop limit. The
// socket is not connected; callers send with WriteTo and group as the
// destination.
func NewSenderSocket(group, bind *net.UDPAddr, iface *net.Interface, hops int) (net.PacketConn, error) {
	conn, err := net.ListenUDP("udp", bind)
	if err != nil {
		return nil, fmt.Errorf("netutil: bind sender socket: %w", err)
	}

	if isIPv6(group) {
		pc := ipv6.NewPacketConn(conn)
		if err := pc.SetMulticastInterface(iface); err != nil {
			conn.Close()
			return nil, fmt.Errorf("netutil: set multicast interface: %w", err)
		}
		if err := pc.SetMulticastHopLimit(hops); err != nil {
			conn.Close()
			return nil, fmt.Errorf("netutil: set hop limit: %w", err)
		}
	} else {
		pc := ipv4.NewPacketConn(conn)
		if err := pc.SetMulticastInterface(iface); err != nil {
			conn.Close()
			return nil, fmt.Errorf("netutil: set multicast interface: %w", err)
		}
		if err := pc.SetMulticastTTL(hops); err != nil {
			conn.Close()
			return nil, fmt.Errorf("netutil: set multicast ttl: %w", err)
		}
	}

	return conn, nil
}

// NewReceiverSocket binds a UDP socket to the multicast group's port
// and joins the group on the given interface, so subsequent Reads
// see traffic sent to the group.
func NewReceiverSocket(group *net.UDPAddr, iface *net.Interface) (net.PacketConn, error) {
	bind := &net.UDPAddr{IP: net.IPv4zero, Port: group.Port}
	if isIPv6(group) {
		bind = &net.UDPAddr{IP: net.IPv6unspecified, Port: group.Port}
	}

	conn, err := net.ListenUDP("udp", bind)
	if err != nil {
		return nil, fmt.Errorf("netutil: bind receiver socket: %w", err)
	}

	if isIPv6(group) {
		pc := ipv6.NewPacketConn(conn)
		if err := pc.JoinGroup(iface, &net.UDPAddr{IP: group.IP}); err != nil {
			conn.Close()
			return nil, fmt.Errorf("netutil: join multicast group: %w", err)
		}
	} else {
		pc := ipv4.NewPacketConn(conn)
		if err := pc.JoinGroup(iface, &net.UDPAddr{IP: group.IP}); err != nil {
			conn.Close()
			return nil, fmt.Errorf("netutil: join multicast group: %w", err)
		}
	}

	return conn, nil
}
