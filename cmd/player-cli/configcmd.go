package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/playerclient/internal/config"
	"github.com/muurk/playerclient/pkg/device"
	"github.com/muurk/playerclient/pkg/player"
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configAddCmd)
	configCmd.AddCommand(configRemoveCmd)
}

// configCmd manages saved server profiles
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage saved server profiles",
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file location",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if path == "" {
			p, err := config.GetConfigPath()
			if err != nil {
				return err
			}
			path = p
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved profiles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := loadConfig()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(f.Servers) == 0 {
			fmt.Fprintln(out, "No profiles saved. Add one with 'player-cli config add <name> <host[:port]>'")
			return nil
		}
		for _, name := range f.Names() {
			p, _ := f.Profile(name)
			host, port := p.Addr()
			fmt.Fprintf(out, "%s\t%s:%d", name, host, port)
			if len(p.Server.Devices) > 0 {
				fmt.Fprintf(out, "\t%s", strings.Join(p.Server.Devices, ","))
			}
			if !p.Server.LastSeen.IsZero() {
				fmt.Fprintf(out, "\tlast seen %s", p.Server.LastSeen.Format(time.RFC3339))
			}
			fmt.Fprintln(out)
		}
		return nil
	},
}

// Profile flags
var (
	profDevices   []string
	profAccess    string
	profDataMode  string
	profFrequency uint16
	profAuthKey   string
)

var configAddCmd = &cobra.Command{
	Use:   "add <name> <host[:port]>",
	Short: "Add or update a profile",
	Example: `  player-cli config add pioneer robot.local --devices position2d:0,laser:0
  player-cli config add sim localhost:6666 --data-mode pull_new`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		host, port, err := parseAddr(args[1])
		if err != nil {
			return err
		}
		for _, d := range profDevices {
			if _, err := device.ParseKey(d); err != nil {
				return err
			}
		}
		if profAccess != "" {
			a, err := device.ParseAccess(profAccess)
			if err != nil {
				return err
			}
			if !a.Requestable() || a == device.AccessClose {
				return fmt.Errorf("access %q cannot be used for a profile", profAccess)
			}
		}
		if profDataMode != "" {
			if _, err := player.ParseDataMode(profDataMode); err != nil {
				return err
			}
		}

		f, err := loadConfig()
		if err != nil {
			return err
		}
		if port == player.DefaultPort {
			port = 0
		}
		f.SetServer(name, host, port)
		s := f.EnsureServer(name)
		flags := cmd.Flags()
		if flags.Changed("devices") {
			s.Devices = profDevices
		}
		if flags.Changed("access") {
			s.Access = profAccess
		}
		if flags.Changed("data-mode") {
			s.DataMode = profDataMode
		}
		if flags.Changed("frequency") {
			s.Frequency = profFrequency
		}
		if flags.Changed("auth-key") {
			s.AuthKey = profAuthKey
		}
		if err := f.Validate(); err != nil {
			return err
		}
		if err := saveConfig(f); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved profile %s\n", name)
		return nil
	},
}

func init() {
	fl := configAddCmd.Flags()
	fl.StringSliceVar(&profDevices, "devices", nil, "Devices to subscribe, e.g. laser:0,position2d:0")
	fl.StringVar(&profAccess, "access", "", "Access mode for the devices (r, w, a)")
	fl.StringVar(&profDataMode, "data-mode", "", "Data delivery mode set after connecting")
	fl.Uint16Var(&profFrequency, "frequency", 0, "Data delivery frequency in Hz")
	fl.StringVar(&profAuthKey, "auth-key", "", "Authentication key sent after connecting")
}

var configRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := loadConfig()
		if err != nil {
			return err
		}
		if !f.RemoveServer(args[0]) {
			return fmt.Errorf("unknown server profile %q", args[0])
		}
		if err := saveConfig(f); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed profile %s\n", args[0])
		return nil
	},
}
