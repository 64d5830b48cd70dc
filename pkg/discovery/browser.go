package discovery

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/enbility/zeroconf/v3"

	"github.com/VadymVolin/unde-library/pkg/version"
)

// BrowserConfig configures mDNS lookups.
type BrowserConfig struct {
	// Timeout bounds a single Resolve call (default BrowseTimeout).
	Timeout time.Duration

	// Interface restricts browsing to one network interface.
	// Empty string means all interfaces.
	Interface string

	// Instance, when set, only accepts the service with this instance name.
	Instance string
}

// DefaultBrowserConfig returns the default browser configuration.
func DefaultBrowserConfig() BrowserConfig {
	return BrowserConfig{Timeout: BrowseTimeout}
}

// ServiceEntry is a discovered service, decoupled from the zeroconf types.
type ServiceEntry struct {
	Instance string
	Host     string
	Port     uint16
	Text     []string
	Addrs    []string
}

// TXT returns the parsed TXT records.
func (e *ServiceEntry) TXT() map[string]string {
	return ParseTXT(e.Text)
}

// ToEndpoint converts the entry to a dialable endpoint. IPv4 addresses are
// preferred, then any address, then the advertised host name.
func (e *ServiceEntry) ToEndpoint() (Endpoint, error) {
	if v, ok := e.TXT()[TXTKeyVersion]; ok && !version.CompatibleWithCurrent(v) {
		return Endpoint{}, fmt.Errorf("%w: %s", ErrVersionMismatch, v)
	}

	host := ""
	for _, addr := range e.Addrs {
		ip := net.ParseIP(addr)
		if ip == nil {
			continue
		}
		if ip.To4() != nil {
			host = addr
			break
		}
		if host == "" {
			host = addr
		}
	}
	if host == "" {
		host = strings.TrimSuffix(e.Host, ".")
	}

	ep := Endpoint{Host: host, Port: int(e.Port)}
	return ep, ep.Validate()
}

// MDNSResolver finds the desktop tool through DNS-SD. Each Resolve call
// browses until the first usable entry or the timeout.
type MDNSResolver struct {
	config BrowserConfig
}

// NewMDNSResolver creates an mDNS resolver.
func NewMDNSResolver(config BrowserConfig) *MDNSResolver {
	if config.Timeout <= 0 {
		config.Timeout = BrowseTimeout
	}
	return &MDNSResolver{config: config}
}

// Resolve implements Resolver.
func (r *MDNSResolver) Resolve(ctx context.Context) (Endpoint, error) {
	ctx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	entries, err := r.Browse(ctx)
	if err != nil {
		return Endpoint{}, err
	}

	for {
		select {
		case entry, ok := <-entries:
			if !ok {
				return Endpoint{}, ErrNotFound
			}
			if r.config.Instance != "" && entry.Instance != r.config.Instance {
				continue
			}
			ep, err := entry.ToEndpoint()
			if err != nil {
				continue
			}
			return ep, nil
		case <-ctx.Done():
			return Endpoint{}, fmt.Errorf("%w: %s", ErrNotFound, ServiceType)
		}
	}
}

// Browse streams discovered services until ctx ends. The channel is closed
// when browsing stops.
func (r *MDNSResolver) Browse(ctx context.Context) (<-chan *ServiceEntry, error) {
	out := make(chan *ServiceEntry)
	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)

	opts := r.browserOptions()

	go func() {
		defer close(out)
		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				select {
				case out <- fromZeroconf(entry):
				case <-ctx.Done():
					return
				}
			case <-removed:
				// Resolution is per attempt; removals need no tracking.
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		_ = zeroconf.Browse(ctx, ServiceType, Domain, entries, removed, opts...)
	}()

	return out, nil
}

// browserOptions returns zeroconf client options based on config.
func (r *MDNSResolver) browserOptions() []zeroconf.ClientOption {
	var opts []zeroconf.ClientOption
	if r.config.Interface != "" {
		iface, err := net.InterfaceByName(r.config.Interface)
		if err == nil {
			opts = append(opts, zeroconf.SelectIfaces([]net.Interface{*iface}))
		}
	}
	return opts
}

// fromZeroconf converts a zeroconf entry to a ServiceEntry.
func fromZeroconf(entry *zeroconf.ServiceEntry) *ServiceEntry {
	addrs := make([]string, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
	for _, ip := range entry.AddrIPv4 {
		addrs = append(addrs, ip.String())
	}
	for _, ip := range entry.AddrIPv6 {
		addrs = append(addrs, ip.String())
	}
	return &ServiceEntry{
		Instance: entry.Instance,
		Host:     entry.HostName,
		Port:     uint16(entry.Port),
		Text:     entry.Text,
		Addrs:    addrs,
	}
}

// ParseTXT parses "key=value" strings. A bare key maps to "".
func ParseTXT(strs []string) map[string]string {
	txt := make(map[string]string, len(strs))
	for _, s := range strs {
		k, v, _ := strings.Cut(s, "=")
		if k != "" {
			txt[k] = v
		}
	}
	return txt
}

var _ Resolver = (*MDNSResolver)(nil)
