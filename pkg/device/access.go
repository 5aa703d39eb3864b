package device

import "fmt"

// Access is a device access mode as sent on the wire (an ASCII byte).
type Access uint8

// Access modes
const (
	AccessRead  Access = 'r'
	AccessWrite Access = 'w'
	AccessAll   Access = 'a'
	AccessClose Access = 'c'
	AccessError Access = 'e' // only ever granted, never requested
)

// String returns the single-letter mode.
func (a Access) String() string {
	switch a {
	case AccessRead, AccessWrite, AccessAll, AccessClose, AccessError:
		return string(rune(a))
	default:
		return fmt.Sprintf("Access(%d)", uint8(a))
	}
}

// Requestable reports whether a may be sent in a subscription request.
func (a Access) Requestable() bool {
	return a == AccessRead || a == AccessWrite || a == AccessAll || a == AccessClose
}

// CanRead reports whether the mode delivers data.
func (a Access) CanRead() bool { return a == AccessRead || a == AccessAll }

// CanWrite reports whether the mode accepts commands.
func (a Access) CanWrite() bool { return a == AccessWrite || a == AccessAll }

// ParseAccess accepts "r", "w", "a", "c" or the long names read, write, all, close.
func ParseAccess(s string) (Access, error) {
	switch s {
	case "r", "read":
		return AccessRead, nil
	case "w", "write":
		return AccessWrite, nil
	case "a", "all":
		return AccessAll, nil
	case "c", "close":
		return AccessClose, nil
	}
	return 0, fmt.Errorf("invalid access mode %q", s)
}
