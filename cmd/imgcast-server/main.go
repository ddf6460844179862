// Command imgcast-server advertises and serves a single image file to
// any number of clients over IP multicast.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/vitalvas/imgcast/session"
	"github.com/vitalvas/imgcast/xcmd"
	"github.com/vitalvas/imgcast/xconfig"
	"github.com/vitalvas/imgcast/xlogger"
)

type fileConfig struct {
	DiscoveryGroup    string `yaml:"discovery_group" default:"[ff18::1]:7890"`
	TransferGroup     string `yaml:"transfer_group" default:"[ff18::2]:7891"`
	UnicastAddress    string `yaml:"unicast_address"`
	Interface         string `yaml:"interface"`
	MaxHops           int    `yaml:"max_hops" default:"1"`
	DiscoveryInterval int    `yaml:"discovery_interval_ms" default:"1000"`
	ChunkSize         int    `yaml:"chunk_size" default:"5242880"`
	MaxUDPPayloadSize int    `yaml:"max_udp_payload_size" default:"1452"`
	FloodSpeedBps     uint64 `yaml:"flood_speed_bps" default:"104857600"`
	LogLevel          string `yaml:"log_level" default:"info"`
	LogType           string `yaml:"log_type" default:"text"`
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath        string
		discoveryGroup    string
		transferGroup     string
		unicastAddress    string
		iface             string
		maxHops           int
		discoveryInterval int
		chunkSize         int
		maxUDPPayloadSize int
		floodSpeedBps     uint64
		logLevel          string
		logType           string
	)

	cmd := &cobra.Command{
		Use:   "imgcast-server <file>",
		Short: "Distribute a file to clients over IP multicast",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fc := fileConfig{
				DiscoveryGroup:    discoveryGroup,
				TransferGroup:     transferGroup,
				UnicastAddress:    unicastAddress,
				Interface:         iface,
				MaxHops:           maxHops,
				DiscoveryInterval: discoveryInterval,
				ChunkSize:         chunkSize,
				MaxUDPPayloadSize: maxUDPPayloadSize,
				FloodSpeedBps:     floodSpeedBps,
				LogLevel:          logLevel,
				LogType:           logType,
			}

			if configPath != "" {
				loaded := fileConfig{}
				if err := xconfig.Load(&loaded, xconfig.WithFiles(configPath), xconfig.WithDefault(fc)); err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				fc = loaded
			}

			discoveryAddr, err := net.ResolveUDPAddr("udp", fc.DiscoveryGroup)
			if err != nil {
				return fmt.Errorf("parse --discovery-group: %w", err)
			}
			transferAddr, err := net.ResolveUDPAddr("udp", fc.TransferGroup)
			if err != nil {
				return fmt.Errorf("parse --transfer-group: %w", err)
			}

			var unicastIP net.IP
			if fc.UnicastAddress != "" {
				unicastIP = net.ParseIP(fc.UnicastAddress)
				if unicastIP == nil {
					return fmt.Errorf("invalid --unicast-address %q", fc.UnicastAddress)
				}
			}

			logConf := xlogger.Config{Level: fc.LogLevel, LogType: fc.LogType}

			srv := session.NewServer(session.ServerConfig{
				File:              args[0],
				DiscoveryGroup:    discoveryAddr,
				TransferGroup:     transferAddr,
				UnicastAddress:    unicastIP,
				InterfaceName:     fc.Interface,
				MaxHops:           fc.MaxHops,
				DiscoveryInterval: time.Duration(fc.DiscoveryInterval) * time.Millisecond,
				ChunkSize:         fc.ChunkSize,
				MaxUDPPayloadSize: fc.MaxUDPPayloadSize,
				FloodSpeedBps:     fc.FloodSpeedBps,
			}, logConf)

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Run(ctx) }()

			select {
			case err := <-errCh:
				return err
			case err := <-waitInterrupted(ctx):
				cancel()
				<-errCh
				return err
			}
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&configPath, "config", "", "optional YAML config file")
	flags.StringVar(&discoveryGroup, "discovery-group", "[ff18::1]:7890", "multicast group:port clients discover the server on")
	flags.StringVar(&transferGroup, "transfer-group", "[ff18::2]:7891", "multicast group:port chunk fragments are sent on")
	flags.StringVar(&unicastAddress, "unicast-address", "", "unicast address to bind services to (default: first address on --interface)")
	flags.StringVar(&iface, "interface", "", "network interface to use (default: first multicast-capable interface)")
	flags.IntVar(&maxHops, "max-hops", 1, "multicast TTL / hop limit")
	flags.IntVar(&discoveryInterval, "discovery-interval", 1000, "milliseconds between discovery beacons")
	flags.IntVar(&chunkSize, "chunk-size", 5*1024*1024, "chunk size in bytes")
	flags.IntVar(&maxUDPPayloadSize, "max-udp-payload", 1452, "maximum UDP payload size in bytes")
	flags.Uint64Var(&floodSpeedBps, "flood-speed", 100*1024*1024, "target multicast send rate in bits per second")
	flags.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	flags.StringVar(&logType, "log-type", "text", "log format: text or json")

	return cmd
}

func waitInterrupted(ctx context.Context) <-chan error {
	ch := make(chan error, 1)
	go func() { ch <- xcmd.WaitInterrupted(ctx) }()
	return ch
}
