package discovery

import (
	"fmt"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/enbility/zeroconf/v3"

	"github.com/VadymVolin/unde-library/pkg/version"
)

// AdvertiserConfig configures advertiser behavior.
type AdvertiserConfig struct {
	// Interface specifies which network interface to use.
	// Empty string means all interfaces.
	Interface string

	// TTL is the DNS record TTL (default 120s).
	TTL time.Duration
}

// DefaultAdvertiserConfig returns the default advertiser configuration.
func DefaultAdvertiserConfig() AdvertiserConfig {
	return AdvertiserConfig{TTL: DefaultTTL}
}

// ServiceInfo describes the advertised desktop tool.
type ServiceInfo struct {
	// Instance is the DNS-SD instance name, e.g. the machine name.
	Instance string

	// Port the tool listens on (default DefaultPort).
	Port int

	// Name is an optional display name put in the TXT record.
	Name string
}

// TXT returns the TXT record strings for the service, sorted by key.
func (i ServiceInfo) TXT() []string {
	txt := []string{TXTKeyVersion + "=" + version.CurrentMajor()}
	if i.Name != "" {
		txt = append(txt, TXTKeyName+"="+i.Name)
	}
	sort.Strings(txt)
	return txt
}

// Advertiser publishes the desktop tool on the local network.
type Advertiser struct {
	config AdvertiserConfig

	mu     sync.Mutex
	server *zeroconf.Server
}

// NewAdvertiser creates a new mDNS advertiser.
func NewAdvertiser(config AdvertiserConfig) *Advertiser {
	return &Advertiser{config: config}
}

// Advertise starts advertising info, replacing any previous advertisement.
func (a *Advertiser) Advertise(info ServiceInfo) error {
	if info.Instance == "" {
		return fmt.Errorf("%w: empty name", ErrInstanceNameTooLong)
	}
	if len(info.Instance) > MaxInstanceNameLen {
		info.Instance = info.Instance[:MaxInstanceNameLen]
	}
	port := info.Port
	if port == 0 {
		port = DefaultPort
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}

	var opts []zeroconf.ServerOption
	if a.config.TTL > 0 {
		opts = append(opts, zeroconf.TTL(uint32(a.config.TTL.Seconds())))
	}

	server, err := zeroconf.Register(
		info.Instance,
		ServiceType,
		Domain,
		port,
		info.TXT(),
		a.interfaces(),
		opts...,
	)
	if err != nil {
		return fmt.Errorf("failed to register service: %w", err)
	}

	a.server = server
	return nil
}

// Stop withdraws the advertisement.
func (a *Advertiser) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
}

// interfaces returns the network interfaces to use for advertising.
// Returns nil to use all interfaces.
func (a *Advertiser) interfaces() []net.Interface {
	if a.config.Interface == "" {
		return nil
	}
	iface, err := net.InterfaceByName(a.config.Interface)
	if err != nil {
		return nil
	}
	return []net.Interface{*iface}
}
