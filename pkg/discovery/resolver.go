package discovery

import (
	"context"
	"os"
	"strconv"
)

// EmulatorEnv is the environment variable read by EmulatorFromEnv.
const EmulatorEnv = "UNDE_EMULATOR"

// Resolver produces the endpoint for a connection attempt. It is consulted
// once per attempt, so implementations may return different endpoints over
// time.
type Resolver interface {
	Resolve(ctx context.Context) (Endpoint, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context) (Endpoint, error)

// Resolve calls f(ctx).
func (f ResolverFunc) Resolve(ctx context.Context) (Endpoint, error) {
	return f(ctx)
}

// StaticResolver always returns the same endpoint.
type StaticResolver struct {
	Endpoint Endpoint
}

// NewStaticResolver creates a resolver for host:port.
func NewStaticResolver(host string, port int) *StaticResolver {
	return &StaticResolver{Endpoint: Endpoint{Host: host, Port: port}}
}

// Resolve returns the configured endpoint.
func (r *StaticResolver) Resolve(ctx context.Context) (Endpoint, error) {
	if err := ctx.Err(); err != nil {
		return Endpoint{}, err
	}
	if err := r.Endpoint.Validate(); err != nil {
		return Endpoint{}, err
	}
	return r.Endpoint, nil
}

// EnvironmentResolver picks the device or the emulator host depending on
// where the agent runs. The probe is evaluated on every attempt.
type EnvironmentResolver struct {
	// Port to connect to (default DefaultPort).
	Port int

	// DeviceHost is used on real hardware (default DeviceHost).
	DeviceHost string

	// EmulatorHost is used inside an emulator (default EmulatorHost).
	EmulatorHost string

	// IsEmulator reports whether the agent runs in an emulator. Nil means
	// never.
	IsEmulator func() bool
}

// Resolve returns the endpoint for the current environment.
func (r *EnvironmentResolver) Resolve(ctx context.Context) (Endpoint, error) {
	if err := ctx.Err(); err != nil {
		return Endpoint{}, err
	}

	ep := Endpoint{Host: r.DeviceHost, Port: r.Port}
	if ep.Host == "" {
		ep.Host = DeviceHost
	}
	if r.IsEmulator != nil && r.IsEmulator() {
		ep.Host = r.EmulatorHost
		if ep.Host == "" {
			ep.Host = EmulatorHost
		}
	}
	if ep.Port == 0 {
		ep.Port = DefaultPort
	}
	return ep, ep.Validate()
}

// EmulatorFromEnv reports whether EmulatorEnv is set to a true value.
func EmulatorFromEnv() bool {
	v, err := strconv.ParseBool(os.Getenv(EmulatorEnv))
	return err == nil && v
}

// FallbackResolver tries each resolver in order and returns the first
// endpoint found. The last error is returned if none succeed.
type FallbackResolver []Resolver

// Resolve implements Resolver.
func (f FallbackResolver) Resolve(ctx context.Context) (Endpoint, error) {
	lastErr := ErrNotFound
	for _, r := range f {
		ep, err := r.Resolve(ctx)
		if err == nil {
			return ep, nil
		}
		if ctx.Err() != nil {
			return Endpoint{}, ctx.Err()
		}
		lastErr = err
	}
	return Endpoint{}, lastErr
}

var (
	_ Resolver = (*StaticResolver)(nil)
	_ Resolver = (*EnvironmentResolver)(nil)
	_ Resolver = FallbackResolver(nil)
	_ Resolver = ResolverFunc(nil)
)
