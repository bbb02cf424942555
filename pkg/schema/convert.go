package schema

import (
	"encoding/base64"
	"fmt"
	"math"
	"time"
)

// Convert turns a value decoded from a JSON or MessagePack payload into
// the solid Go value matching the declared column type. Decoders hand us
// float64 for JSON numbers and int64/uint64 for MessagePack integers, so
// each case accepts the representations a well-formed client can produce.
func Convert(val interface{}, t DataType) (interface{}, error) {
	switch t {
	case Int:
		return toInt64(val)
	case Float:
		return toFloat32(val)
	case Double:
		return toFloat64(val)
	case Bool:
		b, ok := val.(bool)
		if !ok {
			return nil, fmt.Errorf("not possible to convert value to bool: %v", val)
		}
		return b, nil
	case String:
		s, ok := val.(string)
		if !ok {
			return nil, fmt.Errorf("not possible to convert value to string: %v", val)
		}
		return s, nil
	case Time:
		return toTime(val)
	case Binary:
		return toBinary(val)
	default:
		return nil, fmt.Errorf("unsupported data type %s", t)
	}
}

// toInt64 accepts every integer width. The MessagePack decoder hands
// back the narrowest type the wire value fits (int8 for 7, uint16 for
// 1000), while JSON always produces float64.
func toInt64(val interface{}) (int64, error) {
	switch v := val.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case uint:
		return int64(v), nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return 0, fmt.Errorf("integer value overflows int64: %d", v)
		}
		return int64(v), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("not possible to convert value to int64: %v", val)
		}
		return int64(v), nil
	default:
		return 0, fmt.Errorf("not possible to convert value to int64: %v", val)
	}
}

func toFloat64(val interface{}) (float64, error) {
	switch v := val.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	default:
		if n, err := toInt64(val); err == nil {
			return float64(n), nil
		}
		if u, ok := val.(uint64); ok {
			return float64(u), nil
		}
		return 0, fmt.Errorf("not possible to convert value to double: %v", val)
	}
}

func toFloat32(val interface{}) (float32, error) {
	f, err := toFloat64(val)
	if err != nil {
		return 0, fmt.Errorf("not possible to convert value to float: %v", val)
	}
	// The wire carries 64-bit floats. Only accept values that actually fit
	// a float32; data that close to the bounds belongs in a Double column.
	if f > math.MaxFloat32-float64(math.SmallestNonzeroFloat32) ||
		f < -math.MaxFloat32+float64(math.SmallestNonzeroFloat32) {
		return 0, fmt.Errorf("not possible to convert value to float (too big to fit): %v", val)
	}
	return float32(f), nil
}

func toTime(val interface{}) (time.Time, error) {
	switch v := val.(type) {
	case string:
		if ts, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return ts.UTC(), nil
		}
		if ts, err := time.Parse("2006-01-02T15:04:05", v); err == nil {
			return ts.UTC(), nil
		}
		return time.Time{}, fmt.Errorf("not possible to convert value to timestamp: %q", v)
	case time.Time:
		return v.UTC(), nil
	default:
		// Epoch milliseconds, in whatever integer width the decoder chose.
		if ms, err := toInt64(val); err == nil {
			return time.UnixMilli(ms).UTC(), nil
		}
		return time.Time{}, fmt.Errorf("not possible to convert value to timestamp: %v", val)
	}
}

func toBinary(val interface{}) ([]byte, error) {
	switch v := val.(type) {
	case []byte:
		return v, nil
	case string:
		data, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			return nil, fmt.Errorf("not possible to convert value to binary: %w", err)
		}
		return data, nil
	case []interface{}:
		// JSON clients send byte arrays as number lists.
		data := make([]byte, len(v))
		for i, elem := range v {
			n, err := toInt64(elem)
			if err != nil || n < 0 || n > 255 {
				return nil, fmt.Errorf("not possible to convert value to binary: element %d out of range", i)
			}
			data[i] = byte(n)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("not possible to convert value to binary: %v", val)
	}
}
