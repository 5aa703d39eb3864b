package discovery

import (
	"net"
	"testing"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"
)

func TestScanner_parseServiceEntry(t *testing.T) {
	scanner := NewScanner()
	scanner.Logger = zap.NewNop()

	tests := []struct {
		name      string
		entry     *zeroconf.ServiceEntry
		wantNil   bool
		wantIP    string
		wantPort  int
		wantRobot string
	}{
		{
			name: "IPv4 server",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "lab"},
				HostName:      "robot1.local.",
				Port:          6665,
				AddrIPv4:      []net.IP{net.ParseIP("192.168.4.16")},
				Text:          []string{"robot=pioneer2dx", "version=1.6.5"},
			},
			wantIP:    "192.168.4.16",
			wantPort:  6665,
			wantRobot: "pioneer2dx",
		},
		{
			name: "IPv6 only",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "sim"},
				Port:          6666,
				AddrIPv6:      []net.IP{net.ParseIP("fe80::1")},
			},
			wantIP:   "fe80::1",
			wantPort: 6666,
		},
		{
			name: "default port",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "noport"},
				AddrIPv4:      []net.IP{net.ParseIP("10.0.0.5")},
			},
			wantIP:   "10.0.0.5",
			wantPort: 6665,
		},
		{
			name: "no address",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "ghost"},
				Port:          6665,
			},
			wantNil: true,
		},
		{
			name:    "no instance",
			entry:   &zeroconf.ServiceEntry{AddrIPv4: []net.IP{net.ParseIP("10.0.0.5")}},
			wantNil: true,
		},
		{
			name:    "nil entry",
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := scanner.parseServiceEntry(tt.entry)
			if tt.wantNil {
				if srv != nil {
					t.Errorf("parseServiceEntry() = %v, want nil", srv)
				}
				return
			}
			if srv == nil {
				t.Fatal("parseServiceEntry() = nil")
			}
			if srv.IP != tt.wantIP {
				t.Errorf("IP = %v, want %v", srv.IP, tt.wantIP)
			}
			if srv.Port != tt.wantPort {
				t.Errorf("Port = %v, want %v", srv.Port, tt.wantPort)
			}
			if srv.Robot() != tt.wantRobot {
				t.Errorf("Robot() = %v, want %v", srv.Robot(), tt.wantRobot)
			}
			if srv.DiscoveredAt.IsZero() {
				t.Error("DiscoveredAt not set")
			}
		})
	}
}

func TestParseTXT(t *testing.T) {
	got := parseTXT([]string{"robot=r2", "flag", "eq=a=b"})
	want := map[string]string{"robot": "r2", "flag": "", "eq": "a=b"}
	if len(got) != len(want) {
		t.Fatalf("parseTXT() = %v", got)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("parseTXT()[%q] = %q, want %q", k, got[k], v)
		}
	}
}

func TestServerAddr(t *testing.T) {
	tests := []struct {
		srv  Server
		want string
	}{
		{Server{IP: "10.0.0.1", Port: 6665}, "10.0.0.1:6665"},
		{Server{IP: "fe80::1", Port: 7000}, "[fe80::1]:7000"},
	}
	for _, tt := range tests {
		if got := tt.srv.Addr(); got != tt.want {
			t.Errorf("Addr() = %v, want %v", got, tt.want)
		}
	}

	var empty Server
	if empty.GetMetadata("robot") != "" {
		t.Error("GetMetadata on nil map should be empty")
	}
}

func TestNewScanner(t *testing.T) {
	s := NewScanner()
	if s.Timeout != DefaultScanTimeout {
		t.Errorf("Timeout = %v, want %v", s.Timeout, DefaultScanTimeout)
	}
	if s.Service != ServiceType {
		t.Errorf("Service = %v, want %v", s.Service, ServiceType)
	}
}
