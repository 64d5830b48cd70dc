// Package discovery resolves the endpoint of the desktop tool.
//
// The agent consults a Resolver once per connection attempt:
//
//   - StaticResolver returns a fixed host and port.
//   - EnvironmentResolver picks 127.0.0.1 on a device (reached through a
//     port forward) or 10.0.2.2 inside an emulator, on port 8081.
//   - MDNSResolver browses DNS-SD for the _unde._tcp service.
//   - FallbackResolver chains resolvers, e.g. mDNS then environment.
//
// # mDNS Service (_unde._tcp)
//
// The desktop tool advertises itself with an Advertiser. TXT records carry
// v (protocol version, currently "1") and optionally name. Entries with a
// different version are ignored.
package discovery
