package main

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/muurk/playerclient/internal/config"
	"github.com/muurk/playerclient/internal/discovery"
	"github.com/muurk/playerclient/internal/logging"
	"github.com/muurk/playerclient/pkg/device"
	"github.com/muurk/playerclient/pkg/player"
)

// target is a resolved server to connect to.
type target struct {
	host    string
	port    int
	profile *config.Profile // nil unless --profile was given
	file    *config.File
}

func (t *target) String() string {
	return net.JoinHostPort(t.host, strconv.Itoa(t.port))
}

func loadConfig() (*config.File, error) {
	if configPath != "" {
		return config.LoadFrom(configPath)
	}
	return config.Load()
}

func saveConfig(f *config.File) error {
	if configPath != "" {
		return f.SaveTo(configPath)
	}
	return f.Save()
}

// parseAddr splits host[:port], filling in the default port.
func parseAddr(addr string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return addr, player.DefaultPort, nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return "", 0, fmt.Errorf("invalid port in %q", addr)
	}
	return host, port, nil
}

// resolveTarget picks the server from --server, --profile or --discover, in
// that order of precedence. A profile is still loaded when --server
// overrides its address.
func resolveTarget(ctx context.Context) (*target, error) {
	t := &target{host: "localhost", port: player.DefaultPort}

	if profileName != "" {
		f, err := loadConfig()
		if err != nil {
			return nil, err
		}
		p, err := f.Profile(profileName)
		if err != nil {
			return nil, err
		}
		t.file = f
		t.profile = p
		t.host, t.port = p.Addr()
	}

	switch {
	case serverAddr != "":
		host, port, err := parseAddr(serverAddr)
		if err != nil {
			return nil, err
		}
		t.host, t.port = host, port
	case discoverID != "":
		s := discovery.NewScanner()
		srv, err := s.WaitFor(ctx, discoverID)
		if err != nil {
			return nil, err
		}
		t.host, t.port = srv.IP, srv.Port
	}
	return t, nil
}

// clientConfig merges the profile defaults with the global flags.
func (t *target) clientConfig(reg prometheus.Registerer) player.Config {
	var cfg player.Config
	if t.profile != nil {
		cfg = t.profile.ClientConfig()
	}
	if resyncLimit != 0 {
		cfg.ResyncLimit = resyncLimit
	}
	if strict {
		cfg.ResyncLimit = -1
	}
	if readTimeout > 0 {
		cfg.ReadTimeout = time.Duration(readTimeout) * time.Second
	}
	cfg.Logger = logging.GetLogger()
	cfg.Registerer = reg
	return cfg
}

// connect dials the target and applies the profile's session settings:
// authentication, data delivery mode and frequency.
func connect(ctx context.Context, reg prometheus.Registerer) (*player.Client, *target, error) {
	t, err := resolveTarget(ctx)
	if err != nil {
		return nil, nil, err
	}

	c, err := player.Dial(ctx, t.host, t.port, t.clientConfig(reg))
	if err != nil {
		return nil, nil, err
	}

	if err := t.setupSession(ctx, c); err != nil {
		c.Close()
		return nil, nil, err
	}
	return c, t, nil
}

func (t *target) setupSession(ctx context.Context, c *player.Client) error {
	if t.profile == nil {
		return nil
	}
	s := t.profile.Server
	if s.AuthKey != "" {
		if err := c.Authenticate(ctx, s.AuthKey); err != nil {
			return fmt.Errorf("authenticate: %w", err)
		}
	}
	mode, ok, err := t.profile.DataMode()
	if err != nil {
		return err
	}
	if ok {
		if err := c.SetDataDeliveryMode(ctx, mode); err != nil {
			return fmt.Errorf("set data mode: %w", err)
		}
	}
	if s.Frequency > 0 {
		if err := c.SetDataDeliveryFrequency(ctx, s.Frequency); err != nil {
			return fmt.Errorf("set frequency: %w", err)
		}
	}

	t.file.MarkSeen(t.profile.Name, time.Now())
	if err := saveConfig(t.file); err != nil {
		logging.Warn("Failed to update profile", zap.String("profile", t.profile.Name), zap.Error(err))
	}
	return nil
}

// deviceKeys parses device arguments, falling back to the profile's list.
func (t *target) deviceKeys(args []string, accessFlag string) ([]device.Key, device.Access, error) {
	var (
		keys   []device.Key
		access = device.AccessRead
	)
	if t.profile != nil {
		k, a, err := t.profile.Subscriptions()
		if err != nil {
			return nil, 0, err
		}
		keys, access = k, a
	}
	if len(args) > 0 {
		keys = keys[:0]
		for _, arg := range args {
			k, err := device.ParseKey(arg)
			if err != nil {
				return nil, 0, err
			}
			keys = append(keys, k)
		}
	}
	if accessFlag != "" {
		a, err := device.ParseAccess(accessFlag)
		if err != nil {
			return nil, 0, err
		}
		access = a
	}
	if access == device.AccessClose || !access.Requestable() {
		return nil, 0, fmt.Errorf("access mode %s cannot open a device; use r, w or a", access)
	}
	if len(keys) == 0 {
		return nil, 0, fmt.Errorf("no devices given; pass device keys such as laser:0 or set them in a profile")
	}
	return keys, access, nil
}

// subscribeAll subscribes to every key, stopping at the first failure.
func subscribeAll(ctx context.Context, c *player.Client, keys []device.Key, access device.Access) error {
	for _, k := range keys {
		h, err := c.Subscribe(ctx, k, access)
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", k, err)
		}
		if h == nil {
			continue
		}
		logging.Info("Subscribed",
			zap.String("device", k.String()),
			zap.String("mode", h.Mode().String()),
			zap.String("driver", h.Driver()))
	}
	return nil
}
