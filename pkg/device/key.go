package device

import (
	"fmt"
	"strconv"
	"strings"
)

// Key identifies one device instance on a connection.
type Key struct {
	Code  uint16
	Index uint16
}

// String returns "name:index", e.g. "laser:0".
func (k Key) String() string {
	return fmt.Sprintf("%s:%d", CodeName(k.Code), k.Index)
}

// ParseKey parses "name:index" or "code:index". A missing index means 0.
func ParseKey(s string) (Key, error) {
	name, idx := s, "0"
	if i := strings.LastIndexByte(s, ':'); i >= 0 {
		name, idx = s[:i], s[i+1:]
	}
	code, err := ParseCode(name)
	if err != nil {
		return Key{}, err
	}
	index, err := strconv.ParseUint(idx, 10, 16)
	if err != nil {
		return Key{}, fmt.Errorf("invalid device index %q", idx)
	}
	return Key{Code: code, Index: uint16(index)}, nil
}
