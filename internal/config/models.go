package config

import (
	"fmt"
	"sort"
	"time"

	"github.com/muurk/playerclient/pkg/device"
	"github.com/muurk/playerclient/pkg/player"
)

// CurrentVersion is the only file format version understood.
const CurrentVersion = 1

// File represents the entire user configuration file.
type File struct {
	Version int                `yaml:"version"`
	Servers map[string]*Server `yaml:"servers,omitempty"` // Keyed by profile name
	Client  *ClientDefaults    `yaml:"client,omitempty"`
}

// Server is a named Player server profile.
type Server struct {
	Host      string    `yaml:"host"`
	Port      int       `yaml:"port,omitempty"`      // Defaults to 6665
	AuthKey   string    `yaml:"auth_key,omitempty"`  // Sent with an AUTH request after connecting
	DataMode  string    `yaml:"data_mode,omitempty"` // e.g. "push_new", "pull_all"
	Frequency uint16    `yaml:"frequency,omitempty"` // Push rate in Hz; 0 leaves the server default
	Devices   []string  `yaml:"devices,omitempty"`   // Device keys to subscribe, e.g. "laser:0"
	Access    string    `yaml:"access,omitempty"`    // Access mode for Devices; defaults to "r"
	LastSeen  time.Time `yaml:"last_seen,omitempty"` // Last successful connection
}

// ClientDefaults are the protocol settings applied to every profile.
type ClientDefaults struct {
	ResyncLimit   int           `yaml:"resync_limit,omitempty"` // Negative for strict framing
	MaxPayload    int           `yaml:"max_payload,omitempty"`
	DialTimeout   time.Duration `yaml:"dial_timeout,omitempty"`
	ReadTimeout   time.Duration `yaml:"read_timeout,omitempty"`
	RoundInterval time.Duration `yaml:"round_interval,omitempty"`
	LogLevel      string        `yaml:"log_level,omitempty"`
}

// NewFile creates a new File with default values.
func NewFile() *File {
	return &File{
		Version: CurrentVersion,
		Servers: make(map[string]*Server),
		Client:  &ClientDefaults{LogLevel: "info"},
	}
}

// Names returns the profile names, sorted.
func (f *File) Names() []string {
	names := make([]string, 0, len(f.Servers))
	for name := range f.Servers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// EnsureServer returns the named profile, creating an empty one if needed.
func (f *File) EnsureServer(name string) *Server {
	if f.Servers == nil {
		f.Servers = make(map[string]*Server)
	}
	if s, ok := f.Servers[name]; ok {
		return s
	}
	s := &Server{}
	f.Servers[name] = s
	return s
}

// SetServer sets the address of a profile.
func (f *File) SetServer(name, host string, port int) {
	s := f.EnsureServer(name)
	s.Host = host
	s.Port = port
}

// RemoveServer deletes a profile. It reports whether the profile existed.
func (f *File) RemoveServer(name string) bool {
	if _, ok := f.Servers[name]; !ok {
		return false
	}
	delete(f.Servers, name)
	return true
}

// MarkSeen records a successful connection to a profile.
func (f *File) MarkSeen(name string, at time.Time) {
	if s, ok := f.Servers[name]; ok {
		s.LastSeen = at
	}
}

// Profile is a server profile combined with the client defaults.
type Profile struct {
	Name   string
	Server Server
	Client ClientDefaults
}

// Profile resolves the named server profile.
func (f *File) Profile(name string) (*Profile, error) {
	s, ok := f.Servers[name]
	if !ok {
		return nil, fmt.Errorf("unknown server profile %q", name)
	}
	p := &Profile{Name: name, Server: *s}
	if f.Client != nil {
		p.Client = *f.Client
	}
	return p, nil
}

// Addr returns the profile's host and port, with the default port filled in.
func (p *Profile) Addr() (string, int) {
	port := p.Server.Port
	if port == 0 {
		port = player.DefaultPort
	}
	return p.Server.Host, port
}

// ClientConfig converts the profile to client settings. Logger, Catalog and
// Registerer are left for the caller.
func (p *Profile) ClientConfig() player.Config {
	return player.Config{
		ResyncLimit:   p.Client.ResyncLimit,
		MaxPayload:    p.Client.MaxPayload,
		DialTimeout:   p.Client.DialTimeout,
		ReadTimeout:   p.Client.ReadTimeout,
		RoundInterval: p.Client.RoundInterval,
	}
}

// DataMode returns the configured data mode. ok is false when none is set.
func (p *Profile) DataMode() (mode player.DataMode, ok bool, err error) {
	if p.Server.DataMode == "" {
		return 0, false, nil
	}
	mode, err = player.ParseDataMode(p.Server.DataMode)
	if err != nil {
		return 0, false, err
	}
	return mode, true, nil
}

// Subscriptions returns the devices to subscribe and the access mode to use.
func (p *Profile) Subscriptions() ([]device.Key, device.Access, error) {
	access := device.AccessRead
	if p.Server.Access != "" {
		a, err := device.ParseAccess(p.Server.Access)
		if err != nil {
			return nil, 0, err
		}
		access = a
	}

	keys := make([]device.Key, 0, len(p.Server.Devices))
	for _, s := range p.Server.Devices {
		k, err := device.ParseKey(s)
		if err != nil {
			return nil, 0, fmt.Errorf("profile %s: %w", p.Name, err)
		}
		keys = append(keys, k)
	}
	return keys, access, nil
}

// Validate checks a file after loading.
func (f *File) Validate() error {
	if f.Version != CurrentVersion {
		return fmt.Errorf("unsupported config version: %d (expected %d)", f.Version, CurrentVersion)
	}
	for _, name := range f.Names() {
		s := f.Servers[name]
		if s == nil || s.Host == "" {
			return fmt.Errorf("server profile %q has no host", name)
		}
		if s.Port < 0 || s.Port > 65535 {
			return fmt.Errorf("server profile %q has invalid port %d", name, s.Port)
		}
		p := &Profile{Name: name, Server: *s}
		if _, _, err := p.DataMode(); err != nil {
			return fmt.Errorf("server profile %q: %w", name, err)
		}
		if _, _, err := p.Subscriptions(); err != nil {
			return err
		}
	}
	return nil
}
