// Package discovery implements the multicast beacon a server uses to
// advertise its metadata, request and transfer sockets, and the
// listener a client uses to find a server on the network without any
// out-of-band configuration.
package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/vitalvas/imgcast/netutil"
	"github.com/vitalvas/imgcast/wire"
	"github.com/vitalvas/imgcast/xcmd"
)

// BeaconConfig configures a Beacon.
type BeaconConfig struct {
	Group     *net.UDPAddr
	Interface *net.Interface
	Hops      int
	Interval  time.Duration
}

// Beacon periodically multicasts a ServerDiscovery record describing
// where a client can reach the metadata, request and transfer
// services.
type Beacon struct {
	cfg    BeaconConfig
	logger *slog.Logger
}

// NewBeacon returns a Beacon for the given configuration.
func NewBeacon(cfg BeaconConfig, logger *slog.Logger) *Beacon {
	return &Beacon{cfg: cfg, logger: logger}
}

// Run sends a ServerDiscovery record every Interval until ctx is
// cancelled or record resolves to an error. record is read once, at
// startup, and is expected to be backed by an xcmd.OnceValue the
// caller fills in as soon as the metadata and request sockets are
// bound.
func (b *Beacon) Run(ctx context.Context, record func(ctx context.Context) (wire.ServerDiscovery, error)) error {
	d, err := record(ctx)
	if err != nil {
		return fmt.Errorf("discovery: resolve record: %w", err)
	}
	if !d.SameFamily() {
		return fmt.Errorf("discovery: server discovery sockets have mismatched address families")
	}
	payload := wire.EncodeServerDiscovery(d)

	bind := &net.UDPAddr{IP: net.IPv4zero, Port: 0}
	if b.cfg.Group.IP.To4() == nil {
		bind = &net.UDPAddr{IP: net.IPv6unspecified, Port: 0}
	}

	conn, err := netutil.NewSenderSocket(b.cfg.Group, bind, b.cfg.Interface, b.cfg.Hops)
	if err != nil {
		return fmt.Errorf("discovery: open beacon socket: %w", err)
	}
	defer conn.Close()

	b.logger.Info("starting discovery beacon",
		slog.Duration("interval", b.cfg.Interval),
		slog.String("interface", b.cfg.Interface.Name),
		slog.String("group", b.cfg.Group.String()),
	)

	return xcmd.PeriodicRun(ctx, func(ctx context.Context) error {
		_, err := conn.WriteTo(payload, b.cfg.Group)
		return err
	}, b.cfg.Interval)
}

// ListenerConfig configures a Listener.
type ListenerConfig struct {
	Group     *net.UDPAddr
	Interface *net.Interface
	// WantIPv6 restricts accepted records to the same address
	// family as the client's own unicast address.
	WantIPv6 bool
}

// Listener joins the discovery multicast group and waits for the
// first well-formed ServerDiscovery record whose sockets match the
// client's address family.
type Listener struct {
	cfg    ListenerConfig
	logger *slog.Logger
}

// NewListener returns a Listener for the given configuration.
func NewListener(cfg ListenerConfig, logger *slog.Logger) *Listener {
	return &Listener{cfg: cfg, logger: logger}
}

// Listen blocks until a matching ServerDiscovery record arrives, ctx
// is cancelled, or a fatal socket error occurs. The record's
// addresses carry no scope id: callers resolve one via
// SocketAddr.ToUDPAddr using the interface they listened on, since a
// scope id never survives the wire.
func (l *Listener) Listen(ctx context.Context) (wire.ServerDiscovery, error) {
	conn, err := netutil.NewReceiverSocket(l.cfg.Group, l.cfg.Interface)
	if err != nil {
		return wire.ServerDiscovery{}, fmt.Errorf("discovery: open listener socket: %w", err)
	}
	defer conn.Close()

	l.logger.Info("listening for server discovery",
		slog.String("interface", l.cfg.Interface.Name),
		slog.String("group", l.cfg.Group.String()),
	)

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()
	defer close(done)

	buf := make([]byte, netutil.TypicalMTUBudget)
	for {
		if err := ctx.Err(); err != nil {
			return wire.ServerDiscovery{}, err
		}

		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return wire.ServerDiscovery{}, ctx.Err()
			}
			return wire.ServerDiscovery{}, fmt.Errorf("discovery: read: %w", err)
		}

		d, err := wire.DecodeServerDiscovery(buf[:n])
		if err != nil {
			continue
		}
		if d.MetadataSocket.IsIPv6() != l.cfg.WantIPv6 ||
			d.RequestSocket.IsIPv6() != l.cfg.WantIPv6 ||
			d.TransferSocket.IsIPv6() != l.cfg.WantIPv6 {
			continue
		}

		l.logger.Info("discovered server", slog.String("transfer_socket", d.TransferSocket.String()))
		return d, nil
	}
}
