// Package session wires every component into the two top-level
// programs: the server, which advertises and serves one image file,
// and the client, which discovers a server and reconstructs the file.
// Both use xcmd.Group so any task's failure tears down every other
// task sharing the run.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/vitalvas/imgcast"
	"github.com/vitalvas/imgcast/discovery"
	"github.com/vitalvas/imgcast/dispatch"
	"github.com/vitalvas/imgcast/image"
	"github.com/vitalvas/imgcast/metasvc"
	"github.com/vitalvas/imgcast/netutil"
	"github.com/vitalvas/imgcast/wire"
	"github.com/vitalvas/imgcast/xcmd"
	"github.com/vitalvas/imgcast/xlogger"
)

// ServerConfig configures a Server run.
type ServerConfig struct {
	File              string
	DiscoveryGroup    *net.UDPAddr
	TransferGroup     *net.UDPAddr
	UnicastAddress    net.IP
	InterfaceName     string
	MaxHops           int
	DiscoveryInterval time.Duration
	ChunkSize         int
	MaxUDPPayloadSize int
	FloodSpeedBps     uint64
}

func (c ServerConfig) validate() (*net.Interface, net.IP, error) {
	if !c.DiscoveryGroup.IP.IsMulticast() || !c.TransferGroup.IP.IsMulticast() {
		return nil, nil, fmt.Errorf("session: discovery and transfer addresses must be multicast groups")
	}

	discoveryV6 := c.DiscoveryGroup.IP.To4() == nil
	transferV6 := c.TransferGroup.IP.To4() == nil
	if discoveryV6 != transferV6 {
		return nil, nil, fmt.Errorf("session: discovery and transfer sockets must be of the same family")
	}

	iface, err := resolveInterface(c.InterfaceName)
	if err != nil {
		return nil, nil, err
	}

	unicast, err := resolveUnicast(iface, c.UnicastAddress, discoveryV6)
	if err != nil {
		return nil, nil, err
	}

	return iface, unicast, nil
}

func resolveInterface(name string) (*net.Interface, error) {
	if name != "" {
		return netutil.InterfaceByName(name)
	}
	return netutil.DefaultInterface()
}

func resolveUnicast(iface *net.Interface, explicit net.IP, wantV6 bool) (net.IP, error) {
	if explicit != nil {
		if (explicit.To4() == nil) != wantV6 {
			return nil, fmt.Errorf("session: unicast address must be of the same family as the multicast groups")
		}
		return explicit, nil
	}

	addrs, err := iface.Addrs()
	if err != nil {
		return nil, fmt.Errorf("session: list addresses on %s: %w", iface.Name, err)
	}

	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		if (ipNet.IP.To4() == nil) == wantV6 {
			return ipNet.IP, nil
		}
	}

	return nil, fmt.Errorf("session: no suitable unicast address on interface %s", iface.Name)
}

func unicastBind(unicast net.IP, zone string) *net.UDPAddr {
	addr := &net.UDPAddr{IP: unicast, Port: 0}
	if unicast.IsLinkLocalUnicast() {
		addr.Zone = zone
	}
	return addr
}

// Server runs every server-side task: the discovery beacon, the
// metadata service, the chunk request listener and the chunk
// dispatcher.
type Server struct {
	cfg     ServerConfig
	logConf xlogger.Config
}

// NewServer returns a Server for the given configuration. logConf is
// used to build a per-component logger for each background task.
func NewServer(cfg ServerConfig, logConf xlogger.Config) *Server {
	return &Server{cfg: cfg, logConf: logConf}
}

// Run builds the image metadata and runs every server task until ctx
// is cancelled or one of them fails.
func (s *Server) Run(ctx context.Context) error {
	mainLogger := xlogger.NewComponent("server", s.logConf)

	if tag, err := imgcast.SessionTag(); err == nil {
		mainLogger = mainLogger.With(slog.String("session", tag))
	}

	iface, unicast, err := s.cfg.validate()
	if err != nil {
		return err
	}

	mainLogger.Info("server starting",
		slog.String("interface", iface.Name),
		slog.String("unicast", unicast.String()),
		slog.String("file", s.cfg.File),
	)

	meta, err := image.BuildMetadata(ctx, xlogger.NewComponent("image", s.logConf), s.cfg.File, s.cfg.ChunkSize)
	if err != nil {
		return err
	}

	metaAddr := xcmd.NewOnceValue[*net.TCPAddr]()
	reqAddr := xcmd.NewOnceValue[*net.UDPAddr]()

	group, ctx := xcmd.ErrGroup(ctx)

	group.Go(func(ctx context.Context) error {
		beacon := discovery.NewBeacon(discovery.BeaconConfig{
			Group:     s.cfg.DiscoveryGroup,
			Interface: iface,
			Hops:      s.cfg.MaxHops,
			Interval:  s.cfg.DiscoveryInterval,
		}, xlogger.NewComponent("discovery-beacon", s.logConf))

		return beacon.Run(ctx, func(ctx context.Context) (wire.ServerDiscovery, error) {
			ma, err := metaAddr.Wait(ctx)
			if err != nil {
				return wire.ServerDiscovery{}, err
			}
			ra, err := reqAddr.Wait(ctx)
			if err != nil {
				return wire.ServerDiscovery{}, err
			}

			return wire.ServerDiscovery{
				MetadataSocket: wire.SocketAddr{IP: ma.IP, Port: ma.Port},
				RequestSocket:  wire.SocketAddr{IP: ra.IP, Port: ra.Port},
				TransferSocket: wire.SocketAddr{IP: s.cfg.TransferGroup.IP, Port: s.cfg.TransferGroup.Port},
			}, nil
		})
	})

	group.Go(func(ctx context.Context) error {
		srv := metasvc.NewServer(xlogger.NewComponent("metadata-service", s.logConf), metaAddr)
		return srv.Run(ctx, &net.TCPAddr{IP: unicast, Port: 0}, meta)
	})

	group.Go(func(ctx context.Context) error {
		return s.runChunkTransfer(ctx, iface, unicast, meta, reqAddr)
	})

	return group.Wait()
}

func (s *Server) runChunkTransfer(ctx context.Context, iface *net.Interface, unicast net.IP, meta wire.ImageMetadata, reqAddr *xcmd.OnceValue[*net.UDPAddr]) error {
	reqConn, err := net.ListenUDP("udp", unicastBind(unicast, iface.Name))
	if err != nil {
		return fmt.Errorf("session: bind request socket: %w", err)
	}
	defer reqConn.Close()

	reqAddr.Set(reqConn.LocalAddr().(*net.UDPAddr))

	transferConn, err := netutil.NewSenderSocket(s.cfg.TransferGroup, unicastBind(unicast, iface.Name), iface, s.cfg.MaxHops)
	if err != nil {
		return fmt.Errorf("session: open transfer socket: %w", err)
	}
	defer transferConn.Close()

	dispatcher := dispatch.NewDispatcher(
		xlogger.NewComponent("dispatcher", s.logConf),
		s.cfg.File, meta, s.cfg.MaxUDPPayloadSize, s.cfg.FloodSpeedBps,
	)

	ids := make(chan uint32, 256)

	group, ctx := xcmd.ErrGroup(ctx)
	group.Go(func(ctx context.Context) error {
		return dispatch.ListenRequests(ctx, xlogger.NewComponent("request-listener", s.logConf), reqConn, len(meta.Chunks), ids)
	})
	group.Go(func(ctx context.Context) error {
		return dispatcher.Run(ctx, transferConn, s.cfg.TransferGroup, ids)
	})

	return group.Wait()
}
