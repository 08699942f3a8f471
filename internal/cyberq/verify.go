package cyberq

import (
	"context"
	"fmt"
)

// VerificationResult describes how the controller's echo compared to a write
type VerificationResult struct {
	Sensor   string
	Expected string // wire form of the requested value
	Actual   string // wire form of the echoed value
	Value    Value
	Success  bool
}

// SetAndVerify writes value and checks that the page the controller echoes
// back holds the same wire value. Temperatures therefore compare in whole
// degrees and enums by option. There is no retry; a mismatch is returned as
// a decode error alongside the result.
func (c *Client) SetAndVerify(ctx context.Context, key string, value any) (*VerificationResult, error) {
	if _, err := c.Set(ctx, key, value); err != nil {
		return nil, err
	}

	actual, err := c.sensors.Get(key)
	if err != nil {
		return nil, err
	}
	d := actual.Descriptor()

	// Encode succeeded inside Set, so the expected wire value is known to be valid.
	expected, _ := d.Encode(value)
	result := &VerificationResult{
		Sensor:   d.Name,
		Expected: expected,
		Value:    actual,
	}

	echoed, err := d.Encode(actual.Value())
	if err != nil {
		result.Actual = actual.Raw()
	} else {
		result.Actual = echoed
	}
	result.Success = err == nil && echoed == expected

	if !result.Success {
		return result, NewDecodeError(d.Name,
			fmt.Sprintf("controller reports %q after writing %q", result.Actual, result.Expected), nil)
	}
	return result, nil
}
