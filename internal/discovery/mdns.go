// ABOUTME: mDNS advertisement of the monitor HTTP surface
// ABOUTME: Lets tools on the LAN find running producers and their tap, status and pin
package discovery

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/mdns"
	"go.uber.org/zap"
)

// ServiceType is the DNS-SD service advertised by each producer
const ServiceType = "_micfeed._tcp"

// Config holds discovery configuration
type Config struct {
	InstanceName string
	Port         int
	Pin          int
	Pipe         string
	SessionID    string
	Version      string
	Logger       *zap.Logger
}

// Instance describes a discovered producer
type Instance struct {
	Name      string
	Host      string
	Port      int
	Pin       int
	Pipe      string
	SessionID string
}

// Manager owns the mDNS responder
type Manager struct {
	config Config
	log    *zap.Logger

	mu     sync.Mutex
	server *mdns.Server
}

// NewManager creates a discovery manager
func NewManager(config Config) *Manager {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	return &Manager{config: config, log: config.Logger}
}

// TXT returns the TXT records advertised with the service
func (m *Manager) TXT() []string {
	return []string{
		"path=/tap",
		"status=/status",
		"pin=" + strconv.Itoa(m.config.Pin),
		"pipe=" + m.config.Pipe,
		"session=" + m.config.SessionID,
		"version=" + m.config.Version,
	}
}

// Advertise starts answering mDNS queries until Stop
func (m *Manager) Advertise() error {
	ips, err := getLocalIPs()
	if err != nil {
		return fmt.Errorf("failed to get local IPs: %w", err)
	}

	service, err := mdns.NewMDNSService(
		m.config.InstanceName,
		ServiceType,
		"",
		"",
		m.config.Port,
		ips,
		m.TXT(),
	)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return fmt.Errorf("failed to create mdns server: %w", err)
	}

	m.mu.Lock()
	m.server = server
	m.mu.Unlock()

	m.log.Info("advertising mDNS service",
		zap.String("name", m.config.InstanceName),
		zap.String("type", ServiceType),
		zap.Int("port", m.config.Port))
	return nil
}

// Stop shuts the responder down. Safe to call without Advertise.
func (m *Manager) Stop() {
	m.mu.Lock()
	server := m.server
	m.server = nil
	m.mu.Unlock()

	if server != nil {
		if err := server.Shutdown(); err != nil {
			m.log.Warn("mdns shutdown failed", zap.Error(err))
		}
	}
}

// Browse queries the LAN for producers, collecting answers for timeout
func Browse(timeout time.Duration) ([]Instance, error) {
	entries := make(chan *mdns.ServiceEntry, 16)
	var found []Instance
	done := make(chan struct{})

	go func() {
		defer close(done)
		for entry := range entries {
			found = append(found, instanceFromEntry(entry))
		}
	}()

	params := mdns.DefaultParams(ServiceType)
	params.Entries = entries
	params.Timeout = timeout
	params.DisableIPv6 = true

	err := mdns.Query(params)
	close(entries)
	<-done

	if err != nil {
		return found, fmt.Errorf("mdns query failed: %w", err)
	}
	return found, nil
}

func instanceFromEntry(entry *mdns.ServiceEntry) Instance {
	inst := Instance{
		Name: strings.TrimSuffix(entry.Name, "."+ServiceType+".local."),
		Port: entry.Port,
	}
	if entry.AddrV4 != nil {
		inst.Host = entry.AddrV4.String()
	} else {
		inst.Host = entry.Host
	}
	for _, field := range entry.InfoFields {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}
		switch key {
		case "pin":
			inst.Pin, _ = strconv.Atoi(value)
		case "pipe":
			inst.Pipe = value
		case "session":
			inst.SessionID = value
		}
	}
	return inst
}

// getLocalIPs returns non-loopback IPv4 addresses of interfaces that are up
func getLocalIPs() ([]net.IP, error) {
	var ips []net.IP

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
				if ipnet.IP.To4() != nil {
					ips = append(ips, ipnet.IP)
				}
			}
		}
	}

	return ips, nil
}
