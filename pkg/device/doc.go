// Package device defines the per-device handler capability consumed by the
// player engine and a data-driven implementation of it.
//
// # Handlers
//
// A Handler receives the DATA and RESP_* frames addressed to one Key
// (interface code and index). The engine creates one handler per granted
// subscription through a Catalog and discards it when the subscription is
// closed or replaced.
//
// # Layouts
//
// Most Player interfaces carry fixed-width big-endian records. A Layout
// describes such a record as an ordered list of Fields: scalars, fixed
// arrays, count-prefixed lists and nested records. LayoutHandler decodes
// DATA payloads with a Spec's data layout, keeps RESP_ACK payloads per
// request subtype, and encodes CMD and REQ payloads from Records.
//
// Example:
//
//	spec := &device.Spec{
//		Code: device.CodePower,
//		Name: "power",
//		Data: device.NewLayout("power data", device.Scalar("charge", device.Uint16)),
//	}
//	cat := device.DefaultCatalog()
//	cat.Register(spec)
//
// # Concurrency
//
// LayoutHandler publishes every decoded frame as a new immutable Snapshot
// through an atomic pointer. Application goroutines may call Snapshot at any
// time and always see one complete frame.
package device
