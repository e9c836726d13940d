package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"unicode/utf8"
)

// maxExactInteger is the largest integer magnitude that survives the
// canonical number form without rounding.
const maxExactInteger = 1 << 53

// Parameters is the generation context captured alongside a snapshot.
// Values are restricted to JSON scalars, lists and nested maps; after
// NormalizeParameters every integer is an int64, every other number a
// float64, every list a []any and every map a map[string]any.
type Parameters map[string]any

// NormalizeParameters validates in and returns a deep, normalized copy.
// A nil map normalizes to an empty one so it serializes as {}.
func NormalizeParameters(in map[string]any) (Parameters, error) {
	out := make(Parameters, len(in))
	for key, value := range in {
		if err := checkText(key, key); err != nil {
			return nil, err
		}
		normalized, err := normalizeValue(value, key)
		if err != nil {
			return nil, err
		}
		out[key] = normalized
	}
	return out, nil
}

func (p Parameters) Clone() Parameters {
	if p == nil {
		return nil
	}
	out := make(Parameters, len(p))
	for key, value := range p {
		out[key] = cloneValue(value)
	}
	return out
}

// Map returns p as a plain map so canonical encoders can walk it.
func (p Parameters) Map() map[string]any {
	if p == nil {
		return map[string]any{}
	}
	return map[string]any(p)
}

func normalizeValue(value any, path string) (any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case bool:
		return v, nil
	case string:
		if err := checkText(v, path); err != nil {
			return nil, err
		}
		return v, nil
	case int:
		return checkInteger(int64(v), path)
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return checkInteger(v, path)
	case uint:
		return checkUnsigned(uint64(v), path)
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		return checkUnsigned(v, path)
	case float32:
		return checkFloat(float64(v), path)
	case float64:
		return checkFloat(v, path)
	case json.Number:
		return normalizeNumber(v, path)
	case Parameters:
		return normalizeMap(v, path)
	case map[string]any:
		return normalizeMap(v, path)
	case map[string]string:
		out := make(map[string]any, len(v))
		for key, item := range v {
			if err := checkText(key, path+"."+key); err != nil {
				return nil, err
			}
			if err := checkText(item, path+"."+key); err != nil {
				return nil, err
			}
			out[key] = item
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			normalized, err := normalizeValue(item, path+"["+strconv.Itoa(i)+"]")
			if err != nil {
				return nil, err
			}
			out[i] = normalized
		}
		return out, nil
	case []string:
		out := make([]any, len(v))
		for i, item := range v {
			if err := checkText(item, path+"["+strconv.Itoa(i)+"]"); err != nil {
				return nil, err
			}
			out[i] = item
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %s has unsupported type %T", ErrInvalidParameters, path, value)
	}
}

func normalizeMap(in map[string]any, path string) (map[string]any, error) {
	out := make(map[string]any, len(in))
	for key, item := range in {
		if err := checkText(key, path+"."+key); err != nil {
			return nil, err
		}
		normalized, err := normalizeValue(item, path+"."+key)
		if err != nil {
			return nil, err
		}
		out[key] = normalized
	}
	return out, nil
}

// normalizeNumber keeps integer literals beyond the exact range when a
// float64 holds them exactly; that is the form the canonical encoder
// writes for such floats.
func normalizeNumber(n json.Number, path string) (any, error) {
	i, intErr := strconv.ParseInt(n.String(), 10, 64)
	if intErr == nil && i <= maxExactInteger && i >= -maxExactInteger {
		return i, nil
	}
	f, err := strconv.ParseFloat(n.String(), 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %s is not a number", ErrInvalidParameters, path)
	}
	if intErr == nil && (math.Abs(f) >= math.MaxInt64 || int64(f) != i) {
		return checkInteger(i, path)
	}
	return checkFloat(f, path)
}

func checkText(s, path string) error {
	if !utf8.ValidString(s) {
		return fmt.Errorf("%w: %s is not valid UTF-8", ErrInvalidParameters, path)
	}
	return nil
}

func checkInteger(v int64, path string) (any, error) {
	if v > maxExactInteger || v < -maxExactInteger {
		return nil, fmt.Errorf("%w: %s exceeds the exact integer range", ErrInvalidParameters, path)
	}
	return v, nil
}

func checkUnsigned(v uint64, path string) (any, error) {
	if v > maxExactInteger {
		return nil, fmt.Errorf("%w: %s exceeds the exact integer range", ErrInvalidParameters, path)
	}
	return int64(v), nil
}

func checkFloat(v float64, path string) (any, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("%w: %s is not a finite number", ErrInvalidParameters, path)
	}
	if v == math.Trunc(v) && math.Abs(v) <= maxExactInteger {
		return int64(v), nil
	}
	return v, nil
}

func cloneValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[key] = cloneValue(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}
