package discovery

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"
)

// Service constants for mDNS.
const (
	// ServiceType is the DNS-SD service type the desktop tool advertises.
	ServiceType = "_unde._tcp"

	// Domain is the mDNS domain.
	Domain = "local."

	// DefaultPort is the port the desktop tool listens on.
	DefaultPort = 8081
)

// Well-known hosts.
const (
	// DeviceHost reaches the desktop tool through a port forward (adb reverse
	// or a local process).
	DeviceHost = "127.0.0.1"

	// EmulatorHost is the host loopback as seen from inside an emulator.
	EmulatorHost = "10.0.2.2"
)

// TXT record keys.
const (
	TXTKeyVersion = "v"    // Protocol version
	TXTKeyName    = "name" // Human-readable tool name (optional)
)

// Timing constants.
const (
	// BrowseTimeout is the default timeout for one mDNS lookup.
	BrowseTimeout = 3 * time.Second

	// DefaultTTL is the DNS record TTL used when advertising.
	DefaultTTL = 120 * time.Second
)

// MaxInstanceNameLen is the DNS label limit.
const MaxInstanceNameLen = 63

// Errors.
var (
	ErrNotFound            = errors.New("service not found")
	ErrInvalidEndpoint     = errors.New("invalid endpoint")
	ErrInvalidPort         = errors.New("invalid port")
	ErrInstanceNameTooLong = errors.New("instance name too long")
	ErrVersionMismatch     = errors.New("protocol version mismatch")
)

// Endpoint is a TCP destination for the relay connection.
type Endpoint struct {
	Host string
	Port int
}

// Address returns "host:port", bracketing IPv6 literals.
func (e Endpoint) Address() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// String implements fmt.Stringer.
func (e Endpoint) String() string {
	return e.Address()
}

// Validate checks that the endpoint can be dialed.
func (e Endpoint) Validate() error {
	if e.Host == "" {
		return fmt.Errorf("%w: empty host", ErrInvalidEndpoint)
	}
	if e.Port <= 0 || e.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, e.Port)
	}
	return nil
}

// ParseEndpoint parses "host:port". A missing port takes DefaultPort.
func ParseEndpoint(addr string) (Endpoint, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		// No port present.
		ep := Endpoint{Host: addr, Port: DefaultPort}
		return ep, ep.Validate()
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return Endpoint{}, fmt.Errorf("%w: %q", ErrInvalidPort, portStr)
	}
	ep := Endpoint{Host: host, Port: port}
	return ep, ep.Validate()
}
