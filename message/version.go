// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package message

import "fmt"

// ProtocolVersion is an HTTP/1.x version number.
type ProtocolVersion struct {
	Major int
	Minor int
}

var (
	HTTP10 = ProtocolVersion{1, 0}
	HTTP11 = ProtocolVersion{1, 1}
)

func (v ProtocolVersion) String() string {
	return fmt.Sprintf("HTTP/%d.%d", v.Major, v.Minor)
}

// GreaterEqual reports whether v is at least as new as other.
func (v ProtocolVersion) GreaterEqual(other ProtocolVersion) bool {
	if v.Major != other.Major {
		return v.Major > other.Major
	}
	return v.Minor >= other.Minor
}

// ParseVersion parses strings of the form "HTTP/1.1".
func ParseVersion(s string) (ProtocolVersion, error) {
	var v ProtocolVersion
	n, err := fmt.Sscanf(s, "HTTP/%d.%d", &v.Major, &v.Minor)
	if err != nil || n != 2 {
		return ProtocolVersion{}, fmt.Errorf("message: malformed protocol version %q", s)
	}
	return v, nil
}
