package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/playerclient/internal/discovery"
	"github.com/muurk/playerclient/internal/logging"
	"github.com/muurk/playerclient/internal/relay"
	"github.com/muurk/playerclient/internal/ui"
	"github.com/muurk/playerclient/internal/version"
)

func init() {
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(relayCmd)
}

// Discover flags
var (
	scanTimeout time.Duration
	scanRelays  bool
)

// discoverCmd finds servers on the network
var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find Player servers on the local network",
	Long: `Browse mDNS for Player servers (` + discovery.ServiceType + `) and list every
instance seen before the timeout. With --relays, browse for player-cli relays
instead.`,
	Example: `  # Scan for 5 seconds (default)
  player-cli discover

  # Longer scan for relays
  player-cli discover --relays --timeout 15s`,
	Args: cobra.NoArgs,
	RunE: runDiscover,
}

func init() {
	discoverCmd.Flags().DurationVar(&scanTimeout, "timeout", discovery.DefaultScanTimeout, "Scan timeout")
	discoverCmd.Flags().BoolVar(&scanRelays, "relays", false, "Browse for relays instead of servers")
}

func runDiscover(cmd *cobra.Command, args []string) error {
	s := discovery.NewScanner()
	s.Timeout = scanTimeout
	if scanRelays {
		s.Service = discovery.RelayServiceType
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Scanning for %s (timeout: %s)...\n\n", s.Service, scanTimeout)

	servers, err := s.Scan(cmd.Context())
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}
	if len(servers) == 0 {
		fmt.Fprintln(out, "No servers found.")
		fmt.Fprintln(out, "\nTroubleshooting:")
		fmt.Fprintln(out, "  - Check that the server advertises itself with mDNS")
		fmt.Fprintln(out, "  - Make sure this machine is on the same network segment")
		fmt.Fprintln(out, "  - Try increasing --timeout")
		return nil
	}

	fmt.Fprintf(out, "Found %d server(s):\n\n", len(servers))
	for i, srv := range servers {
		fmt.Fprintf(out, "%d. %s\n", i+1, srv.Instance)
		fmt.Fprintf(out, "   Host:    %s\n", srv.Hostname)
		fmt.Fprintf(out, "   Address: %s\n", srv.Addr())
		if robot := srv.Robot(); robot != "" {
			fmt.Fprintf(out, "   Robot:   %s\n", robot)
		}
		fmt.Fprintln(out)
	}
	fmt.Fprintln(out, "Use 'player-cli devices --server <address>' to list a server's devices")
	return nil
}

// Relay flags
var (
	listenAddr string
	advertise  bool
	relayName  string
)

// relayCmd republishes device data over WebSocket
var relayCmd = &cobra.Command{
	Use:   "relay [device...]",
	Short: "Relay device data to WebSocket clients",
	Long: `Subscribe to devices and republish every frame as JSON over WebSocket.

Endpoints:
  /ws       WebSocket stream; filter with ?device=laser:0
  /devices  current subscriptions as JSON
  /metrics  Prometheus metrics for the connection`,
	Example: `  # Relay the base on port 8080
  player-cli relay position2d:0

  # Relay a profile's devices and advertise the relay with mDNS
  player-cli relay --profile pioneer --listen :9000 --advertise`,
	RunE: runRelay,
}

func init() {
	relayCmd.Flags().StringVar(&listenAddr, "listen", ":8080", "HTTP listen address")
	relayCmd.Flags().BoolVar(&advertise, "advertise", false, "Advertise the relay with mDNS")
	relayCmd.Flags().StringVar(&relayName, "name", "", "mDNS instance name (default player-relay-<hostname>)")
	relayCmd.Flags().StringVar(&accessMode, "access", "", "Access mode (r, w, a); default from profile or r")
}

func runRelay(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	log := logging.GetLogger()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	c, t, err := connect(ctx, reg)
	if err != nil {
		return err
	}
	defer c.Close()

	keys, access, err := t.deviceKeys(args, accessMode)
	if err != nil {
		return err
	}
	if err := subscribeAll(ctx, c, keys, access); err != nil {
		return err
	}

	rs, err := relay.New(c, relay.Options{Logger: log, Gatherer: reg})
	if err != nil {
		return err
	}
	defer rs.Close()

	ln, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", listenAddr, err)
	}
	httpSrv := &http.Server{Handler: rs.Handler(), ReadHeaderTimeout: 10 * time.Second}
	serveErr := make(chan error, 1)
	go func() { serveErr <- httpSrv.Serve(ln) }()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpSrv.Shutdown(shutdownCtx)
	}()

	if advertise {
		port := ln.Addr().(*net.TCPAddr).Port
		ad, err := discovery.Advertise(relayInstance(), discovery.RelayServiceType, port, map[string]string{
			"server":  t.String(),
			"version": version.Version,
		})
		if err != nil {
			return err
		}
		defer ad.Shutdown()
	}

	if err := c.RunStreaming(); err != nil {
		return err
	}

	p := ui.NewPrinter()
	p.PrintHeader(ui.HeaderConfig{
		Title:   "Relay",
		Command: "player-cli relay",
		Params: map[string]string{
			"Server":  t.String(),
			"Listen":  ln.Addr().String(),
			"Devices": strconv.Itoa(len(keys)),
		},
	})
	log.Info("Relay started", zap.String("listen", ln.Addr().String()), zap.String("server", t.String()))

	select {
	case <-ctx.Done():
		c.StopStreaming()
		return nil
	case <-c.Done():
		return c.Err()
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	}
}

func relayInstance() string {
	if relayName != "" {
		return relayName
	}
	host, err := os.Hostname()
	if err != nil {
		host = "localhost"
	}
	return "player-relay-" + host
}
