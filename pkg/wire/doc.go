// Package wire implements the Player client/server wire format.
//
// Every message on a Player connection is a frame: a fixed 32-byte big-endian
// header followed by exactly Size payload bytes. There is no other message
// boundary, so a reader that misjudges one payload misreads everything after it.
//
// # Header Layout
//
//	offset  width  field
//	0       u16    marker (0x5878)
//	2       u16    message type (DATA=1 ... RESP_ERR=7)
//	4       u16    device (interface) code
//	6       u16    device index
//	8       i32    t_sec     time the data was sampled
//	12      i32    t_usec
//	16      i32    ts_sec    time the data was sent
//	20      i32    ts_usec
//	24      i32    reserved
//	28      i32    payload size
//
// Client-built headers always carry zero timestamps.
//
// # Stream and Payload Codecs
//
// Reader and Writer operate on the connection stream and expose width-exact
// scalar accessors. Decoder and Encoder operate on an in-memory payload:
// the engine reads each payload into a buffer of exactly Size bytes and hands
// the buffer to a Decoder, so a malformed device payload can never shift the
// stream position.
//
// # Marker Resynchronization
//
// ReadHeader scans byte by byte for the marker and tolerates at most
// Reader.ResyncLimit stray bytes before it. Exceeding the limit returns
// ErrDesync. At this level a limit of zero makes any stray byte fatal. The
// player package maps its own Config.ResyncLimit onto this field: zero there
// selects DefaultResyncLimit and a negative value selects strict mode.
//
// # Thread Safety
//
// Reader and Writer are not safe for concurrent use; the caller serializes
// access (the player engine holds one lock per direction).
package wire
