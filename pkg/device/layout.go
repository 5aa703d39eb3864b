package device

import (
	"fmt"
	"math"

	"github.com/go-faster/errors"

	"github.com/muurk/playerclient/pkg/wire"
)

// Kind is the wire type of a layout field.
type Kind uint8

// Field kinds
const (
	Uint8 Kind = iota + 1
	Int8
	Uint16
	Int16
	Uint32
	Int32
	Uint64
	Int64
	String // fixed-width NUL-padded bytes
	Struct // nested record described by Elem
)

func (k Kind) String() string {
	switch k {
	case Uint8:
		return "u8"
	case Int8:
		return "i8"
	case Uint16:
		return "u16"
	case Int16:
		return "i16"
	case Uint32:
		return "u32"
	case Int32:
		return "i32"
	case Uint64:
		return "u64"
	case Int64:
		return "i64"
	case String:
		return "string"
	case Struct:
		return "struct"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

func (k Kind) width() int {
	switch k {
	case Uint8, Int8:
		return 1
	case Uint16, Int16:
		return 2
	case Uint32, Int32:
		return 4
	case Uint64, Int64:
		return 8
	}
	return 0
}

// Field describes one member of a fixed-layout payload.
//
// A field with Len > 0 is a fixed array of Len elements (for String, Len is
// the byte width). A field with CountFrom set is a variable list whose
// length is the value of an earlier scalar field of the same record, bounded
// by Max. Struct fields decode Elem once, Len times, or CountFrom times.
type Field struct {
	Name      string
	Kind      Kind
	Len       int
	CountFrom string
	Max       int
	Elem      []Field
}

// Scalar returns a single-value field.
func Scalar(name string, k Kind) Field { return Field{Name: name, Kind: k} }

// Array returns a fixed-length array field.
func Array(name string, k Kind, n int) Field { return Field{Name: name, Kind: k, Len: n} }

// Text returns a fixed-width string field.
func Text(name string, n int) Field { return Field{Name: name, Kind: String, Len: n} }

// List returns a variable-length scalar list counted by countFrom.
func List(name string, k Kind, countFrom string, max int) Field {
	return Field{Name: name, Kind: k, CountFrom: countFrom, Max: max}
}

// Records returns a variable-length list of nested records counted by countFrom.
func Records(name, countFrom string, max int, elem ...Field) Field {
	return Field{Name: name, Kind: Struct, CountFrom: countFrom, Max: max, Elem: elem}
}

// Layout is an ordered field-layout descriptor for one payload shape.
type Layout struct {
	Name   string
	Fields []Field
}

// NewLayout builds a layout from fields.
func NewLayout(name string, fields ...Field) *Layout {
	return &Layout{Name: name, Fields: fields}
}

// Size returns the encoded size of the layout and whether it is fixed.
func (l *Layout) Size() (int, bool) {
	return fieldsSize(l.Fields)
}

func fieldsSize(fields []Field) (int, bool) {
	total := 0
	for _, f := range fields {
		if f.CountFrom != "" {
			return 0, false
		}
		n := 1
		if f.Len > 0 {
			n = f.Len
		}
		switch f.Kind {
		case String:
			total += f.Len
		case Struct:
			sz, fixed := fieldsSize(f.Elem)
			if !fixed {
				return 0, false
			}
			total += n * sz
		default:
			total += n * f.Kind.width()
		}
	}
	return total, true
}

// ErrCount is returned when a list count is negative or exceeds its bound.
var ErrCount = errors.New("list count out of range")

// ErrRange is returned when a value does not fit its field width.
var ErrRange = errors.New("value out of range")

// TrailingBytesError reports payload bytes left over after a layout decoded.
// The decoded record is still valid.
type TrailingBytesError struct {
	Layout string
	Extra  int
}

func (e *TrailingBytesError) Error() string {
	return fmt.Sprintf("%s: %d trailing bytes not consumed", e.Layout, e.Extra)
}

// Decode decodes b into a Record. If the layout consumes less than len(b),
// the record is returned together with a *TrailingBytesError.
func (l *Layout) Decode(b []byte) (Record, error) {
	d := wire.NewDecoder(b)
	rec, err := decodeFields(d, l.Fields)
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", l.Name)
	}
	if d.Remaining() > 0 {
		return rec, &TrailingBytesError{Layout: l.Name, Extra: d.Remaining()}
	}
	return rec, nil
}

func decodeFields(d *wire.Decoder, fields []Field) (Record, error) {
	rec := make(Record, len(fields))
	for _, f := range fields {
		v, err := decodeField(d, f, rec)
		if err != nil {
			return nil, errors.Wrapf(err, "field %s", f.Name)
		}
		rec[f.Name] = v
	}
	return rec, nil
}

func decodeField(d *wire.Decoder, f Field, rec Record) (any, error) {
	if f.Kind == String {
		return d.String(f.Len)
	}

	n, list := 0, false
	switch {
	case f.CountFrom != "":
		c := rec.Int(f.CountFrom)
		if c < 0 || (f.Max > 0 && c > int64(f.Max)) {
			return nil, errors.Wrapf(ErrCount, "%s=%d, max %d", f.CountFrom, c, f.Max)
		}
		n, list = int(c), true
	case f.Len > 0:
		n, list = f.Len, true
	}

	if f.Kind == Struct {
		if !list {
			return decodeFields(d, f.Elem)
		}
		out := make([]Record, n)
		for i := range out {
			r, err := decodeFields(d, f.Elem)
			if err != nil {
				return nil, errors.Wrapf(err, "element %d", i)
			}
			out[i] = r
		}
		return out, nil
	}

	if !list {
		return decodeScalar(d, f.Kind)
	}
	out := make([]int64, n)
	for i := range out {
		v, err := decodeScalar(d, f.Kind)
		if err != nil {
			return nil, errors.Wrapf(err, "element %d", i)
		}
		out[i] = v
	}
	return out, nil
}

func decodeScalar(d *wire.Decoder, k Kind) (int64, error) {
	switch k {
	case Uint8:
		v, err := d.Uint8()
		return int64(v), err
	case Int8:
		v, err := d.Int8()
		return int64(v), err
	case Uint16:
		v, err := d.Uint16()
		return int64(v), err
	case Int16:
		v, err := d.Int16()
		return int64(v), err
	case Uint32:
		v, err := d.Uint32()
		return int64(v), err
	case Int32:
		v, err := d.Int32()
		return int64(v), err
	case Uint64:
		v, err := d.Uint64()
		return int64(v), err
	case Int64:
		return d.Int64()
	}
	return 0, errors.Errorf("unsupported kind %s", k)
}

// Encode encodes rec with the layout. Missing fields encode as zero. Count
// fields referenced by a list are derived from the list length when the
// list is present in rec.
func (l *Layout) Encode(rec Record) ([]byte, error) {
	sz, _ := l.Size()
	e := wire.NewEncoder(sz)
	if err := encodeFields(e, l.Fields, rec); err != nil {
		return nil, errors.Wrapf(err, "encode %s", l.Name)
	}
	return e.Bytes(), nil
}

func encodeFields(e *wire.Encoder, fields []Field, rec Record) error {
	counts := make(map[string]int)
	for _, f := range fields {
		if f.CountFrom == "" {
			continue
		}
		if v, ok := rec[f.Name]; ok {
			n, err := sliceLen(v)
			if err != nil {
				return errors.Wrapf(err, "field %s", f.Name)
			}
			counts[f.CountFrom] = n
		}
	}

	for _, f := range fields {
		if err := encodeField(e, f, rec, counts); err != nil {
			return errors.Wrapf(err, "field %s", f.Name)
		}
	}
	return nil
}

func encodeField(e *wire.Encoder, f Field, rec Record, counts map[string]int) error {
	v := rec[f.Name]
	if f.Kind == String {
		s, _ := v.(string)
		e.PutPadded(s, f.Len)
		return nil
	}

	n, list := 0, false
	switch {
	case f.CountFrom != "":
		n, list = int(rec.Int(f.CountFrom)), true
		if c, ok := counts[f.CountFrom]; ok {
			n = c
		}
		if n < 0 || (f.Max > 0 && n > f.Max) {
			return errors.Wrapf(ErrCount, "%d entries, max %d", n, f.Max)
		}
	case f.Len > 0:
		n, list = f.Len, true
	}

	if f.Kind == Struct {
		if !list {
			sub, _ := v.(Record)
			return encodeFields(e, f.Elem, sub)
		}
		elems, _ := v.([]Record)
		if len(elems) > n {
			return errors.Wrapf(ErrCount, "%d entries, room for %d", len(elems), n)
		}
		for i := 0; i < n; i++ {
			var sub Record
			if i < len(elems) {
				sub = elems[i]
			}
			if err := encodeFields(e, f.Elem, sub); err != nil {
				return errors.Wrapf(err, "element %d", i)
			}
		}
		return nil
	}

	if !list {
		if c, ok := counts[f.Name]; ok {
			v = c
		}
		x, err := toInt64(v)
		if err != nil {
			return err
		}
		return encodeScalar(e, f.Kind, x)
	}

	vals, err := toInt64s(v)
	if err != nil {
		return err
	}
	if len(vals) > n {
		return errors.Wrapf(ErrCount, "%d entries, room for %d", len(vals), n)
	}
	for i := 0; i < n; i++ {
		var x int64
		if i < len(vals) {
			x = vals[i]
		}
		if err := encodeScalar(e, f.Kind, x); err != nil {
			return errors.Wrapf(err, "element %d", i)
		}
	}
	return nil
}

func encodeScalar(e *wire.Encoder, k Kind, v int64) error {
	lo, hi := int64(0), int64(0)
	switch k {
	case Uint8:
		lo, hi = 0, math.MaxUint8
	case Int8:
		lo, hi = math.MinInt8, math.MaxInt8
	case Uint16:
		lo, hi = 0, math.MaxUint16
	case Int16:
		lo, hi = math.MinInt16, math.MaxInt16
	case Uint32:
		lo, hi = 0, math.MaxUint32
	case Int32:
		lo, hi = math.MinInt32, math.MaxInt32
	case Uint64, Int64:
		lo, hi = math.MinInt64, math.MaxInt64
	default:
		return errors.Errorf("unsupported kind %s", k)
	}
	if v < lo || v > hi {
		return errors.Wrapf(ErrRange, "%d does not fit %s", v, k)
	}
	switch k.width() {
	case 1:
		e.PutUint8(uint8(v))
	case 2:
		e.PutUint16(uint16(v))
	case 4:
		e.PutUint32(uint32(v))
	case 8:
		e.PutUint64(uint64(v))
	}
	return nil
}

func toInt64(v any) (int64, error) {
	switch x := v.(type) {
	case nil:
		return 0, nil
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case uint8:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint64:
		return int64(x), nil
	case uint:
		return int64(x), nil
	case float64:
		return int64(x), nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	}
	return 0, errors.Errorf("cannot encode %T as integer", v)
}

func toInt64s(v any) ([]int64, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case []int64:
		return x, nil
	case []int:
		out := make([]int64, len(x))
		for i, n := range x {
			out[i] = int64(n)
		}
		return out, nil
	case []byte:
		out := make([]int64, len(x))
		for i, n := range x {
			out[i] = int64(n)
		}
		return out, nil
	case []any:
		out := make([]int64, len(x))
		for i, n := range x {
			iv, err := toInt64(n)
			if err != nil {
				return nil, err
			}
			out[i] = iv
		}
		return out, nil
	}
	return nil, errors.Errorf("cannot encode %T as integer list", v)
}

func sliceLen(v any) (int, error) {
	switch x := v.(type) {
	case []Record:
		return len(x), nil
	case nil:
		return 0, nil
	}
	vals, err := toInt64s(v)
	return len(vals), err
}
