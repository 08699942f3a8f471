package cyberq

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

var namePattern = regexp.MustCompile(`^[\w ]+$`)

// ValidateName checks a probe name as the controller's form accepts it:
// letters, digits, underscores and spaces.
func ValidateName(name string) error {
	return validateName("", name)
}

func validateName(sensor, name string) error {
	if !namePattern.MatchString(name) {
		return NewEncodeError(sensor, fmt.Sprintf("invalid name %q: use letters, digits, underscores and spaces", name), ErrInvalidOption)
	}
	return nil
}

// ValidateTemperature checks a setpoint given as text, in degrees Fahrenheit
func ValidateTemperature(s string) (float64, error) {
	return validateTemperature("", s)
}

func validateTemperature(sensor, s string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, NewEncodeError(sensor, fmt.Sprintf("%q is not a temperature", s), ErrInvalidNumber)
	}
	if f < TemperatureMin || f > TemperatureMax {
		return 0, NewEncodeError(sensor, fmt.Sprintf("%v°F outside %d..%d°F", f, TemperatureMin, TemperatureMax), ErrOutOfRange)
	}
	return f, nil
}

// Assignment is a parsed KEY=VALUE argument
type Assignment struct {
	Key   string
	Value string
}

// ParseAssignment splits "KEY=VALUE". The key is upper-cased; the value is
// kept verbatim so names may contain spaces.
func ParseAssignment(arg string) (Assignment, error) {
	key, value, ok := strings.Cut(arg, "=")
	key = strings.ToUpper(strings.TrimSpace(key))
	if !ok || key == "" {
		return Assignment{}, fmt.Errorf("expected KEY=VALUE, got %q", arg)
	}
	return Assignment{Key: key, Value: value}, nil
}

// NormalizeInput maps the shorthand accepted from users onto the forms the
// encoders take: on/off and yes/no for booleans, and an option index for
// enums. Anything else is returned unchanged.
func NormalizeInput(d Descriptor, input string) string {
	trimmed := strings.TrimSpace(input)
	switch d.Kind {
	case KindBoolean:
		switch strings.ToLower(trimmed) {
		case "on", "yes":
			return "1"
		case "off", "no":
			return "0"
		}
	case KindEnum:
		if slices.Contains(d.Values, trimmed) {
			return trimmed
		}
		if i, err := strconv.Atoi(trimmed); err == nil && i >= 0 && i < len(d.Values) {
			return d.Values[i]
		}
	}
	return input
}

// ValidateInput checks text input for a sensor before it is encoded, adding
// the name and temperature rules the controller's own form enforces.
// Input is normalized first; pass the result of NormalizeInput to Set.
func ValidateInput(d Descriptor, input string) error {
	input = NormalizeInput(d, input)
	if d.ReadOnly {
		return NewEncodeError(d.Name, "cannot write a read-only sensor", ErrReadOnly)
	}
	switch d.Kind {
	case KindString:
		if strings.HasSuffix(d.Name, "_NAME") {
			if err := validateName(d.Name, input); err != nil {
				return err
			}
		}
	case KindTemperature:
		if _, err := validateTemperature(d.Name, input); err != nil {
			return err
		}
	}
	_, err := d.Encode(input)
	return err
}
