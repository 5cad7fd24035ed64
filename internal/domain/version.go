package domain

import "fmt"

// Version identifies one of the two fleets. The core logic only ever
// deals in this enum; free-form strings are validated at the CLI edge.
type Version string

const (
	VersionBlue  Version = "blue"
	VersionGreen Version = "green"
)

// ParseVersion validates a caller-provided string against the enum.
func ParseVersion(s string) (Version, error) {
	switch Version(s) {
	case VersionBlue, VersionGreen:
		return Version(s), nil
	default:
		return "", fmt.Errorf("%w: version must be %q or %q, got %q", ErrInvalidArgument, VersionBlue, VersionGreen, s)
	}
}

// Versions returns both fleet versions in a stable order.
func Versions() []Version {
	return []Version{VersionBlue, VersionGreen}
}
