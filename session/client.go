package session

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"

	"github.com/vitalvas/imgcast"
	"github.com/vitalvas/imgcast/discovery"
	"github.com/vitalvas/imgcast/diskio"
	"github.com/vitalvas/imgcast/metasvc"
	"github.com/vitalvas/imgcast/netutil"
	"github.com/vitalvas/imgcast/receiver"
	"github.com/vitalvas/imgcast/xcmd"
	"github.com/vitalvas/imgcast/xlogger"
)

// ClientConfig configures a Client run.
type ClientConfig struct {
	File           string
	DiscoveryGroup *net.UDPAddr
	UnicastAddress net.IP
	InterfaceName  string
	Hops           int
	Force          bool
}

// Client discovers a server, fetches its image metadata, and
// reconstructs the file by receiving multicast chunk fragments.
type Client struct {
	cfg     ClientConfig
	logConf xlogger.Config
}

// NewClient returns a Client for the given configuration.
func NewClient(cfg ClientConfig, logConf xlogger.Config) *Client {
	return &Client{cfg: cfg, logConf: logConf}
}

// Run discovers a server, fetches metadata, and writes the
// reconstructed file to cfg.File until complete or ctx is cancelled.
func (c *Client) Run(ctx context.Context) error {
	mainLogger := xlogger.NewComponent("client", c.logConf)

	if tag, err := imgcast.SessionTag(); err == nil {
		mainLogger = mainLogger.With(slog.String("session", tag))
	}

	if !c.cfg.DiscoveryGroup.IP.IsMulticast() {
		return fmt.Errorf("session: discovery address must be a multicast group")
	}

	if !c.cfg.Force {
		if _, err := os.Stat(c.cfg.File); err == nil {
			return fmt.Errorf("session: output file %s already exists (use --force to overwrite)", c.cfg.File)
		}
	}

	wantV6 := c.cfg.DiscoveryGroup.IP.To4() == nil

	iface, err := resolveInterface(c.cfg.InterfaceName)
	if err != nil {
		return err
	}

	unicast, err := resolveUnicast(iface, c.cfg.UnicastAddress, wantV6)
	if err != nil {
		return err
	}

	mainLogger.Info("client starting",
		slog.String("interface", iface.Name),
		slog.String("unicast", unicast.String()),
	)

	listener := discovery.NewListener(discovery.ListenerConfig{
		Group:     c.cfg.DiscoveryGroup,
		Interface: iface,
		WantIPv6:  wantV6,
	}, xlogger.NewComponent("discovery-listener", c.logConf))

	server, err := listener.Listen(ctx)
	if err != nil {
		return err
	}

	metaAddr := server.MetadataSocket.ToUDPAddr(iface.Name)
	meta, err := metasvc.Fetch(ctx, &net.TCPAddr{IP: metaAddr.IP, Port: metaAddr.Port, Zone: metaAddr.Zone})
	if err != nil {
		return err
	}

	mainLogger.Info("received image metadata", slog.Uint64("size_bytes", meta.Size()), slog.Int("chunks", len(meta.Chunks)))

	transferConn, err := netutil.NewReceiverSocket(server.TransferSocket.ToUDPAddr(iface.Name), iface)
	if err != nil {
		return fmt.Errorf("session: join transfer group: %w", err)
	}
	defer transferConn.Close()

	reqConn, err := net.DialUDP("udp", unicastBind(unicast, iface.Name), server.RequestSocket.ToUDPAddr(iface.Name))
	if err != nil {
		return fmt.Errorf("session: dial request socket: %w", err)
	}
	defer reqConn.Close()

	chunks := make(chan receiver.Chunk, 128)

	group, ctx := xcmd.ErrGroup(ctx)
	group.Go(func(ctx context.Context) error {
		defer close(chunks)
		return receiver.Run(ctx, xlogger.NewComponent("chunk-receiver", c.logConf), transferConn, reqConn, meta, chunks)
	})

	group.Go(func(ctx context.Context) error {
		writer := diskio.NewWriter(xlogger.NewComponent("disk-writer", c.logConf))
		in := make(chan diskio.ChunkSource)

		go func() {
			defer close(in)
			for ch := range chunks {
				select {
				case in <- diskio.ChunkSource(ch):
				case <-ctx.Done():
					return
				}
			}
		}()

		return writer.Run(ctx, c.cfg.File, meta.Size(), in)
	})

	return group.Wait()
}
