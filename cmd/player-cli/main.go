// Player-cli is a command line client for Player robot servers.
//
// It lists and inspects the devices a server offers, subscribes to them and
// shows their data live, polls servers running in pull mode, relays device
// data to WebSocket consumers and finds servers on the local network with
// mDNS.
//
// Usage:
//
//	player-cli [command] [flags]
//
// See 'player-cli --help' for available commands.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/muurk/playerclient/internal/config"
	"github.com/muurk/playerclient/internal/logging"
	"github.com/muurk/playerclient/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	logging.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Global flags
var (
	serverAddr  string
	profileName string
	configPath  string
	logLevel    string
	discoverID  string
	resyncLimit int
	strict      bool
	readTimeout int
)

var rootCmd = &cobra.Command{
	Use:   "player-cli",
	Short: "Player robot server client",
	Long: `A command line client for Player robot servers.

Connects to a server over TCP, subscribes to devices and decodes the data they
publish. The server is chosen with --server, a saved --profile, or an mDNS
instance name given with --discover. Without any of these it connects to
localhost:6665.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initLogging()
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&serverAddr, "server", "s", "", "Server address (host[:port])")
	pf.StringVarP(&profileName, "profile", "p", "", "Saved server profile name")
	pf.StringVar(&configPath, "config", "", "Config file path (default $"+config.PathEnvVar+" or the user config dir)")
	pf.StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); default $"+logging.LogLevelEnvVar)
	pf.StringVar(&discoverID, "discover", "", "Find the server by mDNS instance name")
	pf.IntVar(&resyncLimit, "resync-limit", 0, "Stray bytes tolerated before a frame marker (0 = default)")
	pf.BoolVar(&strict, "strict", false, "Treat any stray byte before a frame marker as fatal")
	pf.IntVar(&readTimeout, "read-timeout", 0, "Per-frame read timeout in seconds (0 = none)")

	rootCmd.AddCommand(versionCmd)
}

func initLogging() error {
	level := logLevel
	if level == "" && os.Getenv(logging.LogLevelEnvVar) == "" && profileName != "" {
		if f, err := loadConfig(); err == nil && f.Client != nil {
			if _, ok := f.Servers[profileName]; ok {
				level = f.Client.LogLevel
			}
		}
	}
	if err := logging.Initialize(level); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	return nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.String("player-cli"))
	},
}
