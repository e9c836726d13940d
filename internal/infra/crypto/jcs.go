package crypto

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"sealtrail/internal/domain"
)

var errTrailingData = errors.New("invalid JSON: trailing data")

// CanonicalizeJSON re-encodes a JSON document in RFC 8785 form: object keys
// sorted at every level, array order kept, no insignificant whitespace and
// numbers in their shortest round-trip form.
func CanonicalizeJSON(input []byte) ([]byte, error) {
	value, err := DecodeJSON(input)
	if err != nil {
		return nil, err
	}
	return appendValue(nil, value)
}

// DecodeJSON decodes exactly one JSON value, keeping numbers as json.Number.
func DecodeJSON(input []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(input))
	dec.UseNumber()
	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	switch _, err := dec.Token(); {
	case errors.Is(err, io.EOF):
		return value, nil
	case err != nil:
		return nil, fmt.Errorf("invalid JSON: %w", err)
	default:
		return nil, errTrailingData
	}
}

// CanonicalizeAny encodes v canonically. Raw JSON bytes are re-parsed;
// values the encoder does not know natively go through encoding/json first.
func CanonicalizeAny(v any) ([]byte, error) {
	switch raw := v.(type) {
	case json.RawMessage:
		return CanonicalizeJSON(raw)
	case []byte:
		return CanonicalizeJSON(raw)
	}
	out, err := appendValue(nil, v)
	if errors.Is(err, errUnsupported) {
		b, merr := json.Marshal(v)
		if merr != nil {
			return nil, merr
		}
		return CanonicalizeJSON(b)
	}
	return out, err
}

var errUnsupported = errors.New("unsupported JSON type")

func appendValue(dst []byte, value any) ([]byte, error) {
	switch v := value.(type) {
	case nil:
		return append(dst, "null"...), nil
	case bool:
		return strconv.AppendBool(dst, v), nil
	case string:
		return appendString(dst, v)
	case json.Number:
		f, err := strconv.ParseFloat(v.String(), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid JSON number: %w", err)
		}
		return appendNumber(dst, f)
	case domain.Parameters:
		return appendObject(dst, v.Map())
	case map[string]any:
		return appendObject(dst, v)
	case map[string]string:
		obj := make(map[string]any, len(v))
		for k, s := range v {
			obj[k] = s
		}
		return appendObject(dst, obj)
	case []any:
		return appendArray(dst, len(v), func(i int) any { return v[i] })
	case []string:
		return appendArray(dst, len(v), func(i int) any { return v[i] })
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return appendNumber(dst, float64(rv.Int()))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return appendNumber(dst, float64(rv.Uint()))
	case reflect.Float32, reflect.Float64:
		return appendNumber(dst, rv.Float())
	}
	return nil, fmt.Errorf("%w %T", errUnsupported, value)
}

func appendObject(dst []byte, obj map[string]any) ([]byte, error) {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	dst = append(dst, '{')
	var err error
	for i, k := range keys {
		if i > 0 {
			dst = append(dst, ',')
		}
		if dst, err = appendString(dst, k); err != nil {
			return nil, err
		}
		dst = append(dst, ':')
		if dst, err = appendValue(dst, obj[k]); err != nil {
			return nil, err
		}
	}
	return append(dst, '}'), nil
}

func appendArray(dst []byte, n int, at func(int) any) ([]byte, error) {
	dst = append(dst, '[')
	var err error
	for i := 0; i < n; i++ {
		if i > 0 {
			dst = append(dst, ',')
		}
		if dst, err = appendValue(dst, at(i)); err != nil {
			return nil, err
		}
	}
	return append(dst, ']'), nil
}

var shortEscapes = map[rune]string{
	'"':  `\"`,
	'\\': `\\`,
	'\b': `\b`,
	'\f': `\f`,
	'\n': `\n`,
	'\r': `\r`,
	'\t': `\t`,
}

// appendString escapes only what RFC 8785 requires; everything else,
// including non-ASCII, is written as UTF-8.
func appendString(dst []byte, s string) ([]byte, error) {
	if !utf8.ValidString(s) {
		return nil, errors.New("invalid UTF-8 in JSON string")
	}
	const hexDigits = "0123456789abcdef"
	dst = append(dst, '"')
	for _, r := range s {
		if esc, ok := shortEscapes[r]; ok {
			dst = append(dst, esc...)
			continue
		}
		if r < 0x20 {
			dst = append(dst, '\\', 'u', '0', '0', hexDigits[r>>4], hexDigits[r&0xf])
			continue
		}
		dst = utf8.AppendRune(dst, r)
	}
	return append(dst, '"'), nil
}

// appendNumber writes f the way ECMAScript's Number.prototype.toString
// does: plain notation when the decimal exponent is in [-7, 21), otherwise
// d.ddde±x.
func appendNumber(dst []byte, f float64) ([]byte, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, errors.New("invalid JSON number")
	}
	if f == 0 {
		return append(dst, '0'), nil
	}
	if f < 0 {
		dst = append(dst, '-')
		f = -f
	}

	sci := strconv.FormatFloat(f, 'e', -1, 64)
	mantissa, expText, _ := strings.Cut(sci, "e")
	exp, err := strconv.Atoi(expText)
	if err != nil {
		return nil, fmt.Errorf("float exponent %q: %w", expText, err)
	}
	digits := strings.Replace(mantissa, ".", "", 1)

	if exp < -6 || exp > 20 {
		dst = append(dst, digits[0])
		if len(digits) > 1 {
			dst = append(dst, '.')
			dst = append(dst, digits[1:]...)
		}
		dst = append(dst, 'e')
		if exp > 0 {
			dst = append(dst, '+')
		}
		return strconv.AppendInt(dst, int64(exp), 10), nil
	}

	point := exp + 1
	switch {
	case point <= 0:
		dst = append(dst, "0."...)
		dst = append(dst, strings.Repeat("0", -point)...)
		return append(dst, digits...), nil
	case point >= len(digits):
		dst = append(dst, digits...)
		return append(dst, strings.Repeat("0", point-len(digits))...), nil
	default:
		dst = append(dst, digits[:point]...)
		dst = append(dst, '.')
		return append(dst, digits[point:]...), nil
	}
}
