package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/playerclient/internal/events"
	"github.com/muurk/playerclient/internal/ui"
	"github.com/muurk/playerclient/pkg/device"
	"github.com/muurk/playerclient/pkg/player"
)

func init() {
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(driverCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(pullCmd)
}

// devicesCmd lists the devices a server offers
var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List the devices a server offers",
	Long: `Request the server's device list and the driver behind each device.`,
	Example: `  # List devices on a local server
  player-cli devices

  # List devices on a saved profile
  player-cli devices --profile pioneer`,
	Args: cobra.NoArgs,
	RunE: runDevices,
}

func runDevices(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	c, t, err := connect(ctx, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	ids, err := c.RequestDeviceList(ctx)
	if err != nil {
		return fmt.Errorf("device list: %w", err)
	}

	rows := make([]ui.DeviceRow, 0, len(ids))
	for _, id := range ids {
		row := ui.DeviceRow{Key: id.Key, Mode: "-"}
		info, err := c.RequestDriverName(ctx, id.Key.Code)
		if err != nil {
			row.Driver = "?"
		} else {
			row.Driver = info.Name
		}
		rows = append(rows, row)
	}

	p := ui.NewPrinter()
	p.PrintHeader(ui.HeaderConfig{
		Title:   "Device List",
		Command: "player-cli devices",
		Params:  map[string]string{"Server": t.String(), "Banner": c.Banner()},
	})
	p.PrintDevices(rows)
	return nil
}

// driverCmd prints the driver name of one device
var driverCmd = &cobra.Command{
	Use:     "driver <device>",
	Short:   "Show the driver behind a device",
	Example: `  player-cli driver laser:0`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := device.ParseKey(args[0])
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		c, _, err := connect(ctx, nil)
		if err != nil {
			return err
		}
		defer c.Close()

		info, err := c.RequestDriverName(ctx, key.Code)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", info.ID.Key, info.Name)
		return nil
	},
}

// resolveCmd looks up a named server through the name service
var resolveCmd = &cobra.Command{
	Use:     "resolve <name>",
	Short:   "Resolve a robot name to a server port",
	Example: `  player-cli resolve robot1`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c, _, err := connect(ctx, nil)
		if err != nil {
			return err
		}
		defer c.Close()

		port, err := c.ResolveNameService(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: port %d\n", args[0], port)
		return nil
	},
}

// Watch/pull flags
var (
	accessMode string
	plainOut   bool
	rounds     int
	interval   time.Duration

	watchDataMode string
	pullDataMode  string
)

// watchCmd streams device data
var watchCmd = &cobra.Command{
	Use:   "watch [device...]",
	Short: "Subscribe to devices and show their data live",
	Long: `Subscribe to devices and stream their data.

On a terminal this opens a live monitor with one row per device. With --plain,
or when stdout is not a terminal, every frame is printed as a line.`,
	Example: `  # Watch the first laser and the base
  player-cli watch laser:0 position2d:0

  # Watch the devices saved in a profile, printing lines
  player-cli watch --profile pioneer --plain`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&accessMode, "access", "", "Access mode (r, w, a); default from profile or r")
	watchCmd.Flags().BoolVar(&plainOut, "plain", false, "Print frames as lines instead of the live monitor")
	watchCmd.Flags().StringVar(&watchDataMode, "data-mode", "", "Data delivery mode (push_all, push_new, push_async)")

	pullCmd.Flags().StringVar(&accessMode, "access", "", "Access mode (r, w, a); default from profile or r")
	pullCmd.Flags().IntVarP(&rounds, "rounds", "n", 1, "Number of rounds to pull (0 = until interrupted)")
	pullCmd.Flags().DurationVar(&interval, "interval", time.Second, "Pause between rounds")
	pullCmd.Flags().StringVar(&pullDataMode, "data-mode", player.PullNew.String(), "Pull mode (pull_all, pull_new)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	c, t, err := connect(ctx, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	keys, access, err := t.deviceKeys(args, accessMode)
	if err != nil {
		return err
	}
	if watchDataMode != "" {
		m, err := player.ParseDataMode(watchDataMode)
		if err != nil {
			return err
		}
		if m.Pull() {
			return fmt.Errorf("%s is a pull mode; use the pull command", m)
		}
		if err := c.SetDataDeliveryMode(ctx, m); err != nil {
			return err
		}
	}
	if err := subscribeAll(ctx, c, keys, access); err != nil {
		return err
	}

	if !plainOut && ui.IsTerminal() {
		if err := c.RunStreaming(); err != nil {
			return err
		}
		return ui.RunMonitor(ctx, c, ui.MonitorConfig{Server: t.String(), Banner: c.Banner()})
	}

	p := ui.NewPrinter()
	stop, err := c.OnData(func(ev events.Data) {
		if ev.Snapshot != nil {
			p.PrintSnapshot(ev.Snapshot)
		}
	})
	if err != nil {
		return err
	}
	defer stop()

	if err := c.RunStreaming(); err != nil {
		return err
	}
	return waitClosed(ctx, c)
}

// waitClosed blocks until ctx ends or the connection closes. A cancelled
// ctx is a clean exit.
func waitClosed(ctx context.Context, c *player.Client) error {
	select {
	case <-ctx.Done():
		c.StopStreaming()
		return nil
	case <-c.Done():
		return c.Err()
	}
}

// pullCmd polls devices on a server in pull mode
var pullCmd = &cobra.Command{
	Use:   "pull [device...]",
	Short: "Poll devices in pull mode",
	Long: `Switch the server to a pull delivery mode, then request one round of data
at a time and print the latest frame of every subscribed device.`,
	Example: `  # One round from the base
  player-cli pull position2d:0

  # Ten rounds, half a second apart
  player-cli pull laser:0 -n 10 --interval 500ms`,
	RunE: runPull,
}

func runPull(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	c, t, err := connect(ctx, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	keys, access, err := t.deviceKeys(args, accessMode)
	if err != nil {
		return err
	}
	m, err := player.ParseDataMode(pullDataMode)
	if err != nil {
		return err
	}
	if !m.Pull() {
		return fmt.Errorf("%s is not a pull mode; use the watch command", m)
	}
	if err := c.SetDataDeliveryMode(ctx, m); err != nil {
		return err
	}
	if err := subscribeAll(ctx, c, keys, access); err != nil {
		return err
	}

	p := ui.NewPrinter()
	for i := 0; rounds == 0 || i < rounds; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(interval):
			}
		}
		if err := c.PullRound(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		for _, k := range keys {
			h, ok := c.Device(k)
			if !ok {
				continue
			}
			if s := h.Snapshot(); s != nil {
				p.PrintSnapshot(s)
			}
		}
	}
	p.PrintSuccess("pulled " + strconv.Itoa(rounds) + " round(s)")
	return nil
}
