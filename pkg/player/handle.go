package player

import (
	"context"
	"time"

	"github.com/muurk/playerclient/internal/registry"
	"github.com/muurk/playerclient/pkg/device"
)

// DeviceHandle is a subscribed device. A handle follows its key: after a
// resubscription it reads the new handler, and after the device is closed
// its methods fail with ErrNotSubscribed.
type DeviceHandle struct {
	c     *Client
	key   device.Key
	entry *registry.Entry // as granted when the handle was made
}

// Key returns the device key.
func (d *DeviceHandle) Key() device.Key { return d.key }

func (d *DeviceHandle) current() (*registry.Entry, error) {
	ent, ok := d.c.e.reg.Get(d.key)
	if !ok {
		return nil, &Error{Kind: KindUsage, Op: "device", Key: keyPtr(d.key), Err: ErrNotSubscribed}
	}
	return ent, nil
}

func (d *DeviceHandle) live() *registry.Entry {
	if ent, err := d.current(); err == nil {
		return ent
	}
	return d.entry
}

// Mode returns the granted access mode.
func (d *DeviceHandle) Mode() device.Access { return d.live().Mode }

// Driver returns the name of the server driver behind the device.
func (d *DeviceHandle) Driver() string { return d.live().Driver }

// Since returns when the subscription was granted.
func (d *DeviceHandle) Since() time.Time { return d.live().Since }

// Handler returns the device's handler.
func (d *DeviceHandle) Handler() device.Handler { return d.live().Handler }

// Snapshot returns the latest decoded DATA frame, or nil before the first.
func (d *DeviceHandle) Snapshot() *device.Snapshot {
	ent, err := d.current()
	if err != nil {
		return nil
	}
	if s, ok := ent.Handler.(device.Snapshotter); ok {
		return s.Snapshot()
	}
	return nil
}

// Command encodes rec with the device's command layout and sends it.
func (d *DeviceHandle) Command(rec device.Record) error {
	ent, err := d.current()
	if err != nil {
		return err
	}
	enc, ok := ent.Handler.(device.CommandEncoder)
	if !ok {
		return &Error{Kind: KindUsage, Op: "command", Key: keyPtr(d.key), Err: device.ErrNoLayout}
	}
	payload, err := enc.EncodeCommand(rec)
	if err != nil {
		return &Error{Kind: KindUsage, Op: "command", Key: keyPtr(d.key), Err: err}
	}
	return d.c.Command(d.key, payload)
}

type responder interface {
	Response(subtype uint8) (*device.Response, bool)
}

// Request encodes rec as a request of the given subtype, sends it and
// returns the device's decoded reply.
func (d *DeviceHandle) Request(ctx context.Context, subtype uint8, rec device.Record) (*device.Response, error) {
	ent, err := d.current()
	if err != nil {
		return nil, err
	}
	enc, ok := ent.Handler.(device.RequestEncoder)
	if !ok {
		return nil, &Error{Kind: KindUsage, Op: "request", Key: keyPtr(d.key), Err: device.ErrNoLayout}
	}
	payload, err := enc.EncodeRequest(subtype, rec)
	if err != nil {
		return nil, &Error{Kind: KindUsage, Op: "request", Key: keyPtr(d.key), Err: err}
	}

	raw, err := d.c.Request(ctx, d.key, payload)
	if err != nil {
		return nil, err
	}
	if r, ok := ent.Handler.(responder); ok {
		if resp, ok := r.Response(subtype); ok {
			return resp, nil
		}
	}
	return &device.Response{Subtype: subtype, Raw: raw}, nil
}
