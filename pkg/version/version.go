// Package version provides protocol version parsing and comparison.
package version

import (
	"fmt"
	"strconv"
	"strings"
)

// Current is the protocol version implemented by this library.
const Current = "1.0"

// ProtocolVersion represents a parsed "major.minor" protocol version.
type ProtocolVersion struct {
	Major uint16
	Minor uint16
}

// Parse parses a "major.minor" version string. A bare "major" is accepted
// as "major.0", which is how discovery records advertise it.
func Parse(s string) (ProtocolVersion, error) {
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return ProtocolVersion{}, fmt.Errorf("invalid version %q: expected major.minor", s)
	}

	major, err := strconv.ParseUint(parts[0], 10, 16)
	if err != nil || parts[0] == "" {
		return ProtocolVersion{}, fmt.Errorf("invalid version %q: bad major component", s)
	}

	var minor uint64
	if len(parts) == 2 {
		minor, err = strconv.ParseUint(parts[1], 10, 16)
		if err != nil || parts[1] == "" {
			return ProtocolVersion{}, fmt.Errorf("invalid version %q: bad minor component", s)
		}
	}

	return ProtocolVersion{Major: uint16(major), Minor: uint16(minor)}, nil
}

// MustParse is like Parse but panics on error.
func MustParse(s string) ProtocolVersion {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// String returns the version as "major.minor".
func (v ProtocolVersion) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Compatible returns true if the other version has the same major version.
func (v ProtocolVersion) Compatible(other ProtocolVersion) bool {
	return v.Major == other.Major
}

// Less reports whether v is older than other.
func (v ProtocolVersion) Less(other ProtocolVersion) bool {
	if v.Major != other.Major {
		return v.Major < other.Major
	}
	return v.Minor < other.Minor
}

// CurrentMajor returns the major component of Current as a string, the
// form put in discovery TXT records.
func CurrentMajor() string {
	return strconv.Itoa(int(MustParse(Current).Major))
}

// CompatibleWithCurrent reports whether s names a version this library can
// talk to.
func CompatibleWithCurrent(s string) bool {
	v, err := Parse(s)
	if err != nil {
		return false
	}
	return v.Compatible(MustParse(Current))
}
