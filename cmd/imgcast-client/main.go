// Command imgcast-client discovers an imgcast-server on the network
// and reconstructs the file it is distributing.
package main

import (
	"context"
	"fmt"
	"net"
	"os"

	"github.com/spf13/cobra"
	"github.com/vitalvas/imgcast/session"
	"github.com/vitalvas/imgcast/xcmd"
	"github.com/vitalvas/imgcast/xconfig"
	"github.com/vitalvas/imgcast/xlogger"
)

type fileConfig struct {
	DiscoveryGroup string `yaml:"discovery_group" default:"[ff18::1]:7890"`
	UnicastAddress string `yaml:"unicast_address"`
	Interface      string `yaml:"interface"`
	Hops           int    `yaml:"hops" default:"1"`
	Force          bool   `yaml:"force"`
	LogLevel       string `yaml:"log_level" default:"info"`
	LogType        string `yaml:"log_type" default:"text"`
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath     string
		discoveryGroup string
		unicastAddress string
		iface          string
		hops           int
		force          bool
		logLevel       string
		logType        string
	)

	cmd := &cobra.Command{
		Use:   "imgcast-client <file>",
		Short: "Receive a file distributed by imgcast-server over IP multicast",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fc := fileConfig{
				DiscoveryGroup: discoveryGroup,
				UnicastAddress: unicastAddress,
				Interface:      iface,
				Hops:           hops,
				Force:          force,
				LogLevel:       logLevel,
				LogType:        logType,
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

			var unicastIP net.IP
			if fc.UnicastAddress != "" {
				unicastIP = net.ParseIP(fc.UnicastAddress)
				if unicastIP == nil {
					return fmt.Errorf("invalid --unicast-address %q", fc.UnicastAddress)
				}
			}

			logConf := xlogger.Config{Level: fc.LogLevel, LogType: fc.LogType}

			client := session.NewClient(session.ClientConfig{
				File:           args[0],
				DiscoveryGroup: discoveryAddr,
				UnicastAddress: unicastIP,
				InterfaceName:  fc.Interface,
				Hops:           fc.Hops,
				Force:          fc.Force,
			}, logConf)

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			errCh := make(chan error, 1)
			go func() { errCh <- client.Run(ctx) }()

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
	flags.StringVar(&discoveryGroup, "discovery-group", "[ff18::1]:7890", "multicast group:port to listen for server discovery on")
	flags.StringVar(&unicastAddress, "unicast-address", "", "unicast address to bind services to (default: first address on --interface)")
	flags.StringVar(&iface, "interface", "", "network interface to use (default: first multicast-capable interface)")
	flags.IntVar(&hops, "hops", 1, "multicast TTL / hop limit (accepted but not applied: the client sends no multicast traffic)")
	flags.BoolVarP(&force, "force", "f", false, "overwrite the output file if it already exists")
	flags.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	flags.StringVar(&logType, "log-type", "text", "log format: text or json")

	return cmd
}

func waitInterrupted(ctx context.Context) <-chan error {
	ch := make(chan error, 1)
	go func() { ch <- xcmd.WaitInterrupted(ctx) }()
	return ch
}
