package player

import (
	"fmt"

	"github.com/muurk/playerclient/pkg/device"
	"github.com/muurk/playerclient/pkg/wire"
)

// Meta device request subtypes
const (
	MetaDevList     uint16 = 1
	MetaDriverInfo  uint16 = 2
	MetaDev         uint16 = 3
	MetaData        uint16 = 4
	MetaDataMode    uint16 = 5
	MetaDataFreq    uint16 = 6
	MetaAuth        uint16 = 7
	MetaNameService uint16 = 8
)

// Field widths of meta payloads
const (
	DriverNameSize = 64
	AuthKeySize    = 32
	NameSize       = 64
)

// DataMode is a server data delivery mode.
type DataMode uint8

// Data delivery modes
const (
	PushAll   DataMode = 0
	PullAll   DataMode = 1
	PushNew   DataMode = 2 // server default
	PullNew   DataMode = 3
	PushAsync DataMode = 4
)

func (m DataMode) String() string {
	switch m {
	case PushAll:
		return "push_all"
	case PullAll:
		return "pull_all"
	case PushNew:
		return "push_new"
	case PullNew:
		return "pull_new"
	case PushAsync:
		return "push_async"
	default:
		return fmt.Sprintf("DataMode(%d)", uint8(m))
	}
}

// Pull reports whether the server only sends data on request.
func (m DataMode) Pull() bool { return m == PullAll || m == PullNew }

// ParseDataMode parses the String form of a mode.
func ParseDataMode(s string) (DataMode, error) {
	for m := PushAll; m <= PushAsync; m++ {
		if m.String() == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown data mode %q", s)
}

// DeviceID is one entry of the server's device list.
type DeviceID struct {
	Key  device.Key
	Port uint16
}

// DriverInfo is the reply to a driver name request.
type DriverInfo struct {
	ID   DeviceID
	Name string
}

// Grant is the server's answer to a subscription request.
type Grant struct {
	Key    device.Key
	Mode   device.Access
	Driver string
}

func encodeSubscribe(key device.Key, mode device.Access) []byte {
	return wire.NewEncoder(7).
		PutUint16(MetaDev).
		PutUint16(key.Code).
		PutUint16(key.Index).
		PutUint8(uint8(mode)).
		Bytes()
}

func decodeGrant(payload []byte) (Grant, error) {
	d := wire.NewDecoder(payload)
	var g Grant
	if err := d.Skip(2); err != nil {
		return g, err
	}
	code, err := d.Uint16()
	if err != nil {
		return g, err
	}
	index, err := d.Uint16()
	if err != nil {
		return g, err
	}
	mode, err := d.Uint8()
	if err != nil {
		return g, err
	}
	g.Key = device.Key{Code: code, Index: index}
	g.Mode = device.Access(mode)

	// Some servers send a shorter name field; take what is there.
	n := d.Remaining()
	if n > DriverNameSize {
		n = DriverNameSize
	}
	g.Driver, err = d.String(n)
	return g, err
}

func encodeSubtype(subtype uint16) []byte {
	return wire.NewEncoder(2).PutUint16(subtype).Bytes()
}

func decodeDevList(payload []byte) ([]DeviceID, error) {
	d := wire.NewDecoder(payload)
	if err := d.Skip(2); err != nil {
		return nil, err
	}
	count, err := d.Uint16()
	if err != nil {
		return nil, err
	}
	ids := make([]DeviceID, 0, count)
	for i := 0; i < int(count); i++ {
		code, err := d.Uint16()
		if err != nil {
			return nil, err
		}
		index, err := d.Uint16()
		if err != nil {
			return nil, err
		}
		port, err := d.Uint16()
		if err != nil {
			return nil, err
		}
		ids = append(ids, DeviceID{Key: device.Key{Code: code, Index: index}, Port: port})
	}
	// The server pads the list to its maximum length.
	return ids, nil
}

func encodeDriverInfo(code uint16) []byte {
	return wire.NewEncoder(4).PutUint16(MetaDriverInfo).PutUint16(code).Bytes()
}

func decodeDriverInfo(payload []byte) (DriverInfo, error) {
	d := wire.NewDecoder(payload)
	var info DriverInfo
	if err := d.Skip(2); err != nil {
		return info, err
	}
	code, err := d.Uint16()
	if err != nil {
		return info, err
	}
	index, err := d.Uint16()
	if err != nil {
		return info, err
	}
	port, err := d.Uint16()
	if err != nil {
		return info, err
	}
	info.ID = DeviceID{Key: device.Key{Code: code, Index: index}, Port: port}
	info.Name = wire.TrimString(d.Rest())
	return info, nil
}

func encodeDataMode(m DataMode) []byte {
	return wire.NewEncoder(3).PutUint16(MetaDataMode).PutUint8(uint8(m)).Bytes()
}

func encodeDataFreq(hz uint16) []byte {
	return wire.NewEncoder(4).PutUint16(MetaDataFreq).PutUint16(hz).Bytes()
}

func encodeAuth(key string) []byte {
	return wire.NewEncoder(2+AuthKeySize).PutUint16(MetaAuth).PutPadded(key, AuthKeySize).Bytes()
}

func encodeNameService(name string) []byte {
	return wire.NewEncoder(2+NameSize).PutUint16(MetaNameService).PutPadded(name, NameSize).Bytes()
}

func decodeNameService(payload []byte) (uint16, error) {
	d := wire.NewDecoder(payload)
	if err := d.Skip(2); err != nil {
		return 0, err
	}
	return d.Uint16()
}

// metaSubtype returns the subtype of a meta reply, if the payload has one.
func metaSubtype(payload []byte) (uint16, bool) {
	if len(payload) < 2 {
		return 0, false
	}
	return uint16(payload[0])<<8 | uint16(payload[1]), true
}
