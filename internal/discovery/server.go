package discovery

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Server represents a Player server found on the network
type Server struct {
	// Instance is the advertised service instance name (e.g., "pioneer-lab")
	Instance string

	// Hostname is the mDNS hostname (e.g., "robot1.local.")
	Hostname string

	// IP is the address to dial, IPv4 when one was advertised
	IP string

	// Port is the Player TCP port (typically 6665)
	Port int

	// Metadata contains the TXT record data
	// Common fields: "robot=pioneer2dx", "version=1.6.5"
	Metadata map[string]string

	// DiscoveredAt is when the server was discovered
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the server
func (s *Server) String() string {
	return fmt.Sprintf("Player server %s (%s) at %s", s.Instance, s.Hostname, s.Addr())
}

// Addr returns host:port for dialing.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.IP, strconv.Itoa(s.Port))
}

// Robot returns the advertised robot name, if any.
func (s *Server) Robot() string {
	return s.GetMetadata("robot")
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (s *Server) GetMetadata(key string) string {
	if s.Metadata == nil {
		return ""
	}
	return s.Metadata[key]
}
