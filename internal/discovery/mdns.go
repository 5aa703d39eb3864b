package discovery

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/muurk/playerclient/internal/logging"
	"github.com/muurk/playerclient/pkg/player"
)

const (
	// ServiceType is the mDNS service type Player servers advertise
	ServiceType = "_player._tcp"

	// RelayServiceType is advertised by player-cli relay
	RelayServiceType = "_player-relay._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."

	// DefaultScanTimeout is the default timeout for discovery
	DefaultScanTimeout = 5 * time.Second
)

// Scanner handles mDNS server discovery
type Scanner struct {
	// Timeout is the maximum time to wait for advertisements
	Timeout time.Duration

	// Service is the service type to browse, ServiceType by default
	Service string

	Logger *zap.Logger
}

// NewScanner creates a new mDNS scanner with default settings
func NewScanner() *Scanner {
	return &Scanner{
		Timeout: DefaultScanTimeout,
		Service: ServiceType,
		Logger:  logging.GetLogger(),
	}
}

// Scan browses until the timeout or ctx expires and returns every server
// seen, sorted by instance name.
func (s *Scanner) Scan(ctx context.Context) ([]*Server, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	entries, err := s.browse(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]*Server)
	for entry := range entries {
		if srv := s.parseServiceEntry(entry); srv != nil {
			seen[srv.Instance] = srv
		}
	}

	servers := make([]*Server, 0, len(seen))
	for _, srv := range seen {
		servers = append(servers, srv)
	}
	sort.Slice(servers, func(i, j int) bool { return servers[i].Instance < servers[j].Instance })
	return servers, nil
}

// WaitFor returns the first server advertising the given instance name.
func (s *Scanner) WaitFor(ctx context.Context, instance string) (*Server, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	entries, err := s.browse(ctx)
	if err != nil {
		return nil, err
	}

	var found *Server
	for entry := range entries {
		srv := s.parseServiceEntry(entry)
		if found == nil && srv != nil && srv.Instance == instance {
			found = srv
			cancel()
		}
	}
	if found == nil {
		return nil, fmt.Errorf("server %s not found within timeout", instance)
	}
	return found, nil
}

// browse starts a resolver. The returned channel is closed when ctx ends.
func (s *Scanner) browse(ctx context.Context) (<-chan *zeroconf.ServiceEntry, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	service := s.Service
	if service == "" {
		service = ServiceType
	}
	entries := make(chan *zeroconf.ServiceEntry)
	if err := resolver.Browse(ctx, service, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}
	return entries, nil
}

// parseServiceEntry converts a zeroconf service entry to a Server.
// Returns nil if the entry has no usable address.
func (s *Scanner) parseServiceEntry(entry *zeroconf.ServiceEntry) *Server {
	if entry == nil || entry.Instance == "" {
		return nil
	}

	var ip string
	if len(entry.AddrIPv4) > 0 {
		ip = entry.AddrIPv4[0].String()
	} else if len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}
	if ip == "" {
		if s.Logger != nil {
			s.Logger.Debug("Ignoring advertisement without address", zap.String("instance", entry.Instance))
		}
		return nil
	}

	port := entry.Port
	if port == 0 {
		port = player.DefaultPort
	}

	return &Server{
		Instance:     entry.Instance,
		Hostname:     entry.HostName,
		IP:           ip,
		Port:         port,
		Metadata:     parseTXT(entry.Text),
		DiscoveredAt: time.Now(),
	}
}

// parseTXT splits "key=value" records; a key without '=' maps to "".
func parseTXT(records []string) map[string]string {
	metadata := make(map[string]string, len(records))
	for _, txt := range records {
		k, v, _ := strings.Cut(txt, "=")
		metadata[k] = v
	}
	return metadata
}

// Advertisement is a registered mDNS service.
type Advertisement struct {
	server *zeroconf.Server
}

// Advertise announces a service on all interfaces until Shutdown is called.
func Advertise(instance, service string, port int, txt map[string]string) (*Advertisement, error) {
	records := make([]string, 0, len(txt))
	for k, v := range txt {
		records = append(records, k+"="+v)
	}
	sort.Strings(records)

	srv, err := zeroconf.Register(instance, service, ServiceDomain, port, records, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to register mDNS service: %w", err)
	}
	return &Advertisement{server: srv}, nil
}

// Shutdown withdraws the advertisement.
func (a *Advertisement) Shutdown() {
	a.server.Shutdown()
}
