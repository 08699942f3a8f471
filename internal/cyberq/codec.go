package cyberq

import (
	"fmt"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

var timerPattern = regexp.MustCompile(`^\d{2}:\d{2}:\d{2}$`)

// codec holds the pure wire functions for one Kind.
// decode returns the typed value and, for enums, the option index.
type codec struct {
	decode func(d *Descriptor, raw string) (any, int, error)
	encode func(d *Descriptor, input any) (string, error)
}

var codecs = map[Kind]codec{
	KindBoolean:     {decode: decodeBoolean, encode: encodeBoolean},
	KindEnum:        {decode: decodeEnum, encode: encodeEnum},
	KindNumber:      {decode: decodeNumber, encode: encodeNumber},
	KindString:      {decode: decodeString, encode: encodePassThrough},
	KindTimer:       {decode: decodeTimer, encode: encodePassThrough},
	KindTemperature: {decode: decodeTemperature, encode: encodeTemperature},
}

// Decode converts a raw wire string into a Value owned by a private copy of d
func (d *Descriptor) Decode(raw string) (Value, error) {
	c, ok := codecs[d.Kind]
	if !ok {
		return Value{}, NewDecodeError(d.Name, fmt.Sprintf("no codec for kind %s", d.Kind), nil)
	}
	v, index, err := c.decode(d, raw)
	if err != nil {
		return Value{}, err
	}
	return Value{desc: d.Clone(), raw: raw, value: v, index: index}, nil
}

// Encode validates input and returns the wire string to POST.
// Read-only sensors and writable sensors without a page always fail.
func (d *Descriptor) Encode(input any) (string, error) {
	if d.ReadOnly {
		return "", NewEncodeError(d.Name, "cannot write a read-only sensor", ErrReadOnly)
	}
	if d.Page == PageNone {
		return "", NewEncodeError(d.Name, "sensor has no page to write to", ErrNoPage)
	}
	c, ok := codecs[d.Kind]
	if !ok {
		return "", NewEncodeError(d.Name, fmt.Sprintf("no codec for kind %s", d.Kind), nil)
	}
	return c.encode(d, input)
}

func parseWireInt(d *Descriptor, raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, NewDecodeError(d.Name, fmt.Sprintf("%q is not an integer", raw), ErrInvalidNumber)
	}
	return n, nil
}

func decodeBoolean(d *Descriptor, raw string) (any, int, error) {
	n, err := parseWireInt(d, raw)
	if err != nil {
		return nil, 0, err
	}
	return n != 0, 0, nil
}

// decodeEnum accepts index == len(Values); the controller reports it for
// transient states and the label is left empty.
func decodeEnum(d *Descriptor, raw string) (any, int, error) {
	n, err := parseWireInt(d, raw)
	if err != nil {
		return nil, 0, err
	}
	if n < 0 || n > len(d.Values) {
		return nil, 0, NewDecodeError(d.Name,
			fmt.Sprintf("option index %d outside 0..%d", n, len(d.Values)), ErrInvalidOption)
	}
	label := ""
	if n < len(d.Values) {
		label = d.Values[n]
	}
	return label, n, nil
}

func decodeNumber(d *Descriptor, raw string) (any, int, error) {
	n, err := parseWireInt(d, raw)
	if err != nil {
		return nil, 0, err
	}
	return n, 0, nil
}

func decodeString(_ *Descriptor, raw string) (any, int, error) {
	return raw, 0, nil
}

func decodeTimer(d *Descriptor, raw string) (any, int, error) {
	if !timerPattern.MatchString(raw) {
		return nil, 0, NewDecodeError(d.Name, fmt.Sprintf("%q is not HH:MM:SS", raw), ErrInvalidTimer)
	}
	return raw, 0, nil
}

// decodeTemperature converts tenths of a degree. Non-numeric values such as
// "OPEN" for an unplugged probe are kept as-is.
func decodeTemperature(_ *Descriptor, raw string) (any, int, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return raw, 0, nil
	}
	return f / 10.0, 0, nil
}

func encodeBoolean(d *Descriptor, input any) (string, error) {
	var b bool
	switch v := input.(type) {
	case bool:
		b = v
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return "", NewEncodeError(d.Name, fmt.Sprintf("%q is not a boolean", v), ErrInvalidOption)
		}
		b = parsed
	default:
		f, err := toFloat(input)
		if err != nil {
			return "", NewEncodeError(d.Name, err.Error(), ErrInvalidOption)
		}
		b = f != 0
	}
	if b {
		return "1", nil
	}
	return "0", nil
}

func encodeEnum(d *Descriptor, input any) (string, error) {
	label, ok := input.(string)
	if !ok {
		return "", NewEncodeError(d.Name, fmt.Sprintf("option must be a label, got %T", input), ErrInvalidOption)
	}
	i := slices.Index(d.Values, label)
	if i < 0 {
		return "", NewEncodeError(d.Name,
			fmt.Sprintf("%q is not one of %s", label, strings.Join(d.Values, ", ")), ErrInvalidOption)
	}
	return strconv.Itoa(i), nil
}

func encodeBounded(d *Descriptor, input any) (string, error) {
	f, err := toFloat(input)
	if err != nil {
		return "", NewEncodeError(d.Name, err.Error(), ErrInvalidNumber)
	}
	if f < d.Min || f > d.Max {
		return "", NewEncodeError(d.Name,
			fmt.Sprintf("%v outside %v..%v", f, d.Min, d.Max), ErrOutOfRange)
	}
	return strconv.Itoa(int(f)), nil
}

func encodeNumber(d *Descriptor, input any) (string, error) {
	return encodeBounded(d, input)
}

// encodeTemperature writes whole degrees; the controller takes setpoints
// unscaled even though it reports them in tenths.
func encodeTemperature(d *Descriptor, input any) (string, error) {
	return encodeBounded(d, input)
}

func encodePassThrough(_ *Descriptor, input any) (string, error) {
	if s, ok := input.(string); ok {
		return s, nil
	}
	return fmt.Sprint(input), nil
}

func toFloat(input any) (float64, error) {
	var f float64
	switch v := input.(type) {
	case int:
		f = float64(v)
	case int8:
		f = float64(v)
	case int16:
		f = float64(v)
	case int32:
		f = float64(v)
	case int64:
		f = float64(v)
	case uint:
		f = float64(v)
	case uint8:
		f = float64(v)
	case uint16:
		f = float64(v)
	case uint32:
		f = float64(v)
	case uint64:
		f = float64(v)
	case float32:
		f = float64(v)
	case float64:
		f = v
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not a number", v)
		}
		f = parsed
	default:
		return 0, fmt.Errorf("unsupported value type %T", input)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%v is not a finite number", f)
	}
	return f, nil
}
