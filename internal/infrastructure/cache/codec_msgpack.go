package cache

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/GX-mob/gx-service-template/internal/core/ports"
	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"
)

// msgpackCodec writes a document as a positional msgpack array in field
// declaration order. Absent fields are encoded as nil and omitted on decode.
type msgpackCodec struct {
	fields []Field
}

func newMsgpackCodec(fields []Field) (*msgpackCodec, error) {
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if f.Name == "" {
			return nil, fmt.Errorf("field with empty name")
		}
		if _, dup := seen[f.Name]; dup {
			return nil, fmt.Errorf("duplicate field %q", f.Name)
		}
		if f.Type < String || f.Type > IntList {
			return nil, fmt.Errorf("field %q: unknown type %s", f.Name, f.Type)
		}
		seen[f.Name] = struct{}{}
	}
	return &msgpackCodec{fields: append([]Field(nil), fields...)}, nil
}

func (c *msgpackCodec) Encode(doc ports.Document) ([]byte, error) {
	row := make([]any, len(c.fields))
	for i, f := range c.fields {
		v, ok := doc[f.Name]
		if !ok || v == nil {
			continue
		}
		cv, err := coerce(f.Type, v)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
		row[i] = cv
	}
	return msgpack.Marshal(row)
}

func (c *msgpackCodec) Decode(b []byte) (ports.Document, error) {
	var row []msgpack.RawMessage
	if err := msgpack.Unmarshal(b, &row); err != nil {
		return nil, err
	}
	if len(row) != len(c.fields) {
		return nil, fmt.Errorf("expected %d fields, got %d", len(c.fields), len(row))
	}
	doc := make(ports.Document, len(c.fields))
	for i, f := range c.fields {
		raw := row[i]
		if len(raw) == 0 || (len(raw) == 1 && raw[0] == msgpcode.Nil) {
			continue
		}
		v, err := decodeField(f.Type, raw)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
		doc[f.Name] = v
	}
	return doc, nil
}

func decodeField(t FieldType, raw []byte) (any, error) {
	switch t {
	case String:
		return decodeAs[string](raw)
	case Bool:
		return decodeAs[bool](raw)
	case Int8:
		return decodeAs[int8](raw)
	case Int16:
		return decodeAs[int16](raw)
	case Int32:
		return decodeAs[int32](raw)
	case Int64:
		return decodeAs[int64](raw)
	case Uint8:
		return decodeAs[uint8](raw)
	case Uint16:
		return decodeAs[uint16](raw)
	case Uint32:
		return decodeAs[uint32](raw)
	case Uint64:
		return decodeAs[uint64](raw)
	case Float32:
		return decodeAs[float32](raw)
	case Float64:
		return decodeAs[float64](raw)
	case Time:
		s, err := decodeAs[string](raw)
		if err != nil {
			return nil, err
		}
		return time.Parse(time.RFC3339Nano, s)
	case Bytes:
		return decodeAs[[]byte](raw)
	case StringList:
		return decodeAs[[]string](raw)
	case IntList:
		return decodeAs[[]int64](raw)
	}
	return nil, fmt.Errorf("unknown type %s", t)
}

func decodeAs[V any](raw []byte) (V, error) {
	var v V
	err := msgpack.Unmarshal(raw, &v)
	return v, err
}

// coerce converts v into the Go type the codec writes for t, rejecting
// values that do not fit.
func coerce(t FieldType, v any) (any, error) {
	switch t {
	case String:
		switch s := v.(type) {
		case string:
			return s, nil
		case fmt.Stringer:
			return s.String(), nil
		}
	case Bool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case Int8, Int16, Int32, Int64:
		n, err := toInt64(v)
		if err != nil {
			return nil, err
		}
		return narrowInt(t, n)
	case Uint8, Uint16, Uint32, Uint64:
		n, err := toUint64(v)
		if err != nil {
			return nil, err
		}
		return narrowUint(t, n)
	case Float32, Float64:
		f, err := toFloat64(v)
		if err != nil {
			return nil, err
		}
		if t == Float32 {
			if math.Abs(f) > math.MaxFloat32 && !math.IsInf(f, 0) {
				return nil, fmt.Errorf("value %v out of range for float32", f)
			}
			return float32(f), nil
		}
		return f, nil
	case Time:
		switch tv := v.(type) {
		case time.Time:
			return tv.UTC().Format(time.RFC3339Nano), nil
		case *time.Time:
			if tv != nil {
				return tv.UTC().Format(time.RFC3339Nano), nil
			}
		case string:
			parsed, err := time.Parse(time.RFC3339Nano, tv)
			if err != nil {
				return nil, err
			}
			return parsed.UTC().Format(time.RFC3339Nano), nil
		}
	case Bytes:
		switch bv := v.(type) {
		case []byte:
			return bv, nil
		case string:
			// JSON form of []byte
			return base64.StdEncoding.DecodeString(bv)
		}
	case StringList:
		switch lv := v.(type) {
		case []string:
			return lv, nil
		case []any:
			out := make([]string, len(lv))
			for i, item := range lv {
				s, ok := item.(string)
				if !ok {
					return nil, fmt.Errorf("item %d: expected string, got %T", i, item)
				}
				out[i] = s
			}
			return out, nil
		}
	case IntList:
		switch lv := v.(type) {
		case []int64:
			return lv, nil
		case []int:
			out := make([]int64, len(lv))
			for i, n := range lv {
				out[i] = int64(n)
			}
			return out, nil
		case []any:
			out := make([]int64, len(lv))
			for i, item := range lv {
				n, err := toInt64(item)
				if err != nil {
					return nil, fmt.Errorf("item %d: %w", i, err)
				}
				out[i] = n
			}
			return out, nil
		}
	}
	return nil, fmt.Errorf("cannot encode %T as %s", v, t)
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint:
		return uintToInt(uint64(n))
	case uint8:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint64:
		return uintToInt(n)
	case float32:
		return floatToInt(float64(n))
	case float64:
		return floatToInt(n)
	case json.Number:
		return n.Int64()
	}
	return 0, fmt.Errorf("expected integer, got %T", v)
}

func toUint64(v any) (uint64, error) {
	switch n := v.(type) {
	case uint:
		return uint64(n), nil
	case uint8:
		return uint64(n), nil
	case uint16:
		return uint64(n), nil
	case uint32:
		return uint64(n), nil
	case uint64:
		return n, nil
	case float32, float64:
		f, _ := toFloat64(n)
		if f < 0 || f != math.Trunc(f) || f >= math.MaxUint64 {
			return 0, fmt.Errorf("value %v is not an unsigned integer", f)
		}
		return uint64(f), nil
	}
	i, err := toInt64(v)
	if err != nil {
		return 0, err
	}
	if i < 0 {
		return 0, fmt.Errorf("value %d is negative", i)
	}
	return uint64(i), nil
}

func toFloat64(v any) (float64, error) {
	switch n := v.(type) {
	case float32:
		return float64(n), nil
	case float64:
		return n, nil
	case json.Number:
		return n.Float64()
	}
	i, err := toInt64(v)
	if err != nil {
		return 0, fmt.Errorf("expected number, got %T", v)
	}
	return float64(i), nil
}

func uintToInt(n uint64) (int64, error) {
	if n > math.MaxInt64 {
		return 0, fmt.Errorf("value %d out of range for int64", n)
	}
	return int64(n), nil
}

func floatToInt(f float64) (int64, error) {
	if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, fmt.Errorf("value %v is not an integer", f)
	}
	return int64(f), nil
}

func narrowInt(t FieldType, n int64) (any, error) {
	switch t {
	case Int8:
		if n >= math.MinInt8 && n <= math.MaxInt8 {
			return int8(n), nil
		}
	case Int16:
		if n >= math.MinInt16 && n <= math.MaxInt16 {
			return int16(n), nil
		}
	case Int32:
		if n >= math.MinInt32 && n <= math.MaxInt32 {
			return int32(n), nil
		}
	case Int64:
		return n, nil
	}
	return nil, fmt.Errorf("value %d out of range for %s", n, t)
}

func narrowUint(t FieldType, n uint64) (any, error) {
	switch t {
	case Uint8:
		if n <= math.MaxUint8 {
			return uint8(n), nil
		}
	case Uint16:
		if n <= math.MaxUint16 {
			return uint16(n), nil
		}
	case Uint32:
		if n <= math.MaxUint32 {
			return uint32(n), nil
		}
	case Uint64:
		return n, nil
	}
	return nil, fmt.Errorf("value %d out of range for %s", n, t)
}
