package wire

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestHeaderRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		typ    MsgType
		device uint16
		index  uint16
		size   int
	}{
		{name: "data empty", typ: MsgData, device: 48, index: 0, size: 0},
		{name: "request to meta device", typ: MsgReq, device: 1, index: 0, size: 7},
		{name: "command high index", typ: MsgCmd, device: 4, index: 0xFFFF, size: 26},
		{name: "synch", typ: MsgSynch, device: 0, index: 0, size: 0},
		{name: "error response large payload", typ: MsgRespErr, device: 0xFFFF, index: 3, size: 1 << 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			w := NewWriter(&buf)
			if err := w.WriteHeader(tt.typ, tt.device, tt.index, tt.size); err != nil {
				t.Fatalf("WriteHeader() error = %v", err)
			}
			if buf.Len() != 0 {
				t.Fatalf("header reached stream before Flush")
			}
			if err := w.Flush(); err != nil {
				t.Fatalf("Flush() error = %v", err)
			}
			if buf.Len() != HeaderSize {
				t.Fatalf("wrote %d bytes, want %d", buf.Len(), HeaderSize)
			}

			h, skipped, err := NewReader(&buf).ReadHeader()
			if err != nil {
				t.Fatalf("ReadHeader() error = %v", err)
			}
			if skipped != 0 {
				t.Errorf("skipped = %d, want 0", skipped)
			}
			want := NewHeader(tt.typ, tt.device, tt.index, tt.size)
			if h != want {
				t.Errorf("ReadHeader() = %v, want %v", h, want)
			}
			if h.TimeSec != 0 || h.TimeUsec != 0 || h.StampSec != 0 || h.StampUsec != 0 || h.Reserved != 0 {
				t.Errorf("client header carries nonzero timestamps: %+v", h)
			}
		})
	}
}

func TestHeaderFieldOrder(t *testing.T) {
	raw := []byte{
		0x58, 0x78, // marker
		0x00, 0x01, // DATA
		0x00, 0x30, // device 48
		0x00, 0x02, // index 2
		0x00, 0x00, 0x00, 0x0A, // t_sec
		0x00, 0x00, 0x00, 0x14, // t_usec
		0x00, 0x00, 0x00, 0x1E, // ts_sec
		0x00, 0x00, 0x00, 0x28, // ts_usec
		0xFF, 0xFF, 0xFF, 0xFF, // reserved
		0x00, 0x00, 0x00, 0x04, // size
	}
	h, _, err := NewReader(bytes.NewReader(raw)).ReadHeader()
	if err != nil {
		t.Fatalf("ReadHeader() error = %v", err)
	}
	want := Header{Type: MsgData, Device: 48, Index: 2, TimeSec: 10, TimeUsec: 20,
		StampSec: 30, StampUsec: 40, Reserved: -1, Size: 4}
	if h != want {
		t.Errorf("ReadHeader() = %+v, want %+v", h, want)
	}
	if h.FrameSize() != HeaderSize+4 {
		t.Errorf("FrameSize() = %d, want %d", h.FrameSize(), HeaderSize+4)
	}
	if got := h.Sampled().UnixMicro(); got != 10_000_020 {
		t.Errorf("Sampled() = %d us, want 10000020", got)
	}

	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.WriteRawHeader(h); err != nil {
		t.Fatal(err)
	}
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf.Bytes(), raw) {
		t.Errorf("WriteRawHeader() = % x, want % x", buf.Bytes(), raw)
	}
}

func frame(t MsgType, device, index uint16, payload []byte) []byte {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.WriteFrame(t, device, index, payload); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

func TestReadHeaderResync(t *testing.T) {
	tests := []struct {
		name        string
		garbage     []byte
		limit       int
		wantSkipped int
		wantErr     error
	}{
		{name: "no garbage", garbage: nil, limit: DefaultResyncLimit},
		{name: "three stray bytes", garbage: []byte{1, 2, 3}, limit: DefaultResyncLimit, wantSkipped: 3},
		{name: "half marker before marker", garbage: []byte{0x58, 0x58}, limit: DefaultResyncLimit, wantSkipped: 2},
		{name: "exactly at limit", garbage: bytes.Repeat([]byte{0xAA}, 16), limit: 16, wantSkipped: 16},
		{name: "over limit", garbage: bytes.Repeat([]byte{0xAA}, 17), limit: 16, wantErr: ErrDesync},
		{name: "strict rejects one byte", garbage: []byte{0}, limit: 0, wantErr: ErrDesync},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := append(append([]byte{}, tt.garbage...), frame(MsgData, 6, 1, []byte{9, 9})...)
			r := NewReader(bytes.NewReader(data))
			r.ResyncLimit = tt.limit

			h, skipped, err := r.ReadHeader()
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ReadHeader() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ReadHeader() error = %v", err)
			}
			if skipped != tt.wantSkipped {
				t.Errorf("skipped = %d, want %d", skipped, tt.wantSkipped)
			}
			if h.Device != 6 || h.Index != 1 || h.Size != 2 {
				t.Errorf("ReadHeader() = %v", h)
			}
			payload, err := r.ReadPayload(int(h.Size))
			if err != nil {
				t.Fatalf("ReadPayload() error = %v", err)
			}
			if !bytes.Equal(payload, []byte{9, 9}) {
				t.Errorf("payload = %v", payload)
			}
		})
	}
}

func TestReadHeaderErrors(t *testing.T) {
	full := frame(MsgData, 1, 0, nil)
	negative := append([]byte{}, full...)
	copy(negative[28:], []byte{0xFF, 0xFF, 0xFF, 0xFE})

	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{name: "empty stream", data: nil, wantErr: io.EOF},
		{name: "lone marker byte", data: []byte{0x58}, wantErr: ErrTruncated},
		{name: "truncated after marker", data: full[:10], wantErr: ErrTruncated},
		{name: "one byte short", data: full[:HeaderSize-1], wantErr: ErrTruncated},
		{name: "negative size", data: negative, wantErr: ErrMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := NewReader(bytes.NewReader(tt.data)).ReadHeader()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ReadHeader() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestReadPayloadTruncated(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte{1, 2}))
	if _, err := r.ReadPayload(4); !errors.Is(err, ErrTruncated) {
		t.Errorf("ReadPayload() error = %v, want ErrTruncated", err)
	}
	r = NewReader(bytes.NewReader(nil))
	if _, err := r.ReadPayload(1); !errors.Is(err, ErrTruncated) {
		t.Errorf("ReadPayload() on empty stream error = %v, want ErrTruncated", err)
	}
	if b, err := r.ReadPayload(0); err != nil || len(b) != 0 {
		t.Errorf("ReadPayload(0) = %v, %v", b, err)
	}
}

func TestReadBanner(t *testing.T) {
	banner := make([]byte, BannerSize)
	copy(banner, "Player v.1.6.5")
	r := NewReader(bytes.NewReader(append(banner, frame(MsgSynch, 1, 0, nil)...)))

	got, err := r.ReadBanner()
	if err != nil {
		t.Fatalf("ReadBanner() error = %v", err)
	}
	if got != "Player v.1.6.5" {
		t.Errorf("ReadBanner() = %q", got)
	}
	h, _, err := r.ReadHeader()
	if err != nil || h.Type != MsgSynch {
		t.Errorf("header after banner = %v, %v", h, err)
	}

	if _, err := NewReader(bytes.NewReader(banner[:10])).ReadBanner(); !errors.Is(err, ErrTruncated) {
		t.Errorf("short banner error = %v, want ErrTruncated", err)
	}
}

func TestStreamScalars(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	_ = w.WriteUint8(0xFE)
	_ = w.WriteInt8(-2)
	_ = w.WriteUint16(0xBEEF)
	_ = w.WriteInt16(-300)
	_ = w.WriteUint32(0xDEADBEEF)
	_ = w.WriteInt32(-70000)
	_ = w.WriteUint64(1 << 40)
	_ = w.WriteInt64(-1)
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}

	r := NewReader(&buf)
	if v, _ := r.ReadUint8(); v != 0xFE {
		t.Errorf("ReadUint8() = %d", v)
	}
	if v, _ := r.ReadInt8(); v != -2 {
		t.Errorf("ReadInt8() = %d", v)
	}
	if v, _ := r.ReadUint16(); v != 0xBEEF {
		t.Errorf("ReadUint16() = %#x", v)
	}
	if v, _ := r.ReadInt16(); v != -300 {
		t.Errorf("ReadInt16() = %d", v)
	}
	if v, _ := r.ReadUint32(); v != 0xDEADBEEF {
		t.Errorf("ReadUint32() = %#x", v)
	}
	if v, _ := r.ReadInt32(); v != -70000 {
		t.Errorf("ReadInt32() = %d", v)
	}
	if v, _ := r.ReadUint64(); v != 1<<40 {
		t.Errorf("ReadUint64() = %d", v)
	}
	if v, _ := r.ReadInt64(); v != -1 {
		t.Errorf("ReadInt64() = %d", v)
	}
	if _, err := r.ReadUint16(); !errors.Is(err, io.EOF) {
		t.Errorf("read past end error = %v, want io.EOF", err)
	}
}

func TestMsgType(t *testing.T) {
	if MsgRespAck.String() != "RESP_ACK" || MsgType(9).String() != "MsgType(9)" {
		t.Errorf("String() = %q, %q", MsgRespAck.String(), MsgType(9).String())
	}
	if !MsgRespNack.IsResponse() || MsgData.IsResponse() {
		t.Error("IsResponse() misclassifies")
	}
	if MsgType(0).Valid() || MsgType(8).Valid() || !MsgSynch.Valid() {
		t.Error("Valid() misclassifies")
	}
}
