package cyberq

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"syscall"
)

// ErrorType represents the category of error that occurred
type ErrorType int

const (
	// ErrTypeNetwork indicates a network-level error (host unreachable, reset, etc.)
	ErrTypeNetwork ErrorType = iota
	// ErrTypeTimeout indicates a request or refresh timeout
	ErrTypeTimeout
	// ErrTypeConnectionRefused indicates the controller refused the connection
	ErrTypeConnectionRefused
	// ErrTypeDNS indicates a DNS resolution failure
	ErrTypeDNS
	// ErrTypeHTTP indicates a non-2xx HTTP status
	ErrTypeHTTP
	// ErrTypeParse indicates a malformed XML document or missing structure
	ErrTypeParse
	// ErrTypeDecode indicates a single wire value that could not be decoded
	ErrTypeDecode
	// ErrTypeEncode indicates a rejected write (read-only, bounds, unknown option)
	ErrTypeEncode
	// ErrTypeNotFound indicates a sensor absent from the current snapshot
	ErrTypeNotFound
	// ErrTypeUnknown indicates an unknown or unexpected error
	ErrTypeUnknown
)

// NetworkErrorSubtype provides more specific network error classification
type NetworkErrorSubtype int

const (
	NetworkErrorGeneral NetworkErrorSubtype = iota
	NetworkErrorTimeout
	NetworkErrorConnectionRefused
	NetworkErrorDNS
	NetworkErrorHostUnreachable
	NetworkErrorNetworkUnreachable
)

// Sentinel causes wrapped by DeviceError.Err.
var (
	ErrUnknownKey     = errors.New("unknown sensor key")
	ErrReadOnly       = errors.New("sensor is read only")
	ErrOutOfRange     = errors.New("value out of range")
	ErrInvalidOption  = errors.New("invalid option")
	ErrInvalidTimer   = errors.New("invalid timer value")
	ErrInvalidNumber  = errors.New("invalid number")
	ErrNoPage         = errors.New("no page defined for sensor")
	ErrSensorNotFound = errors.New("no such sensor")
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeNetwork:
		return "Network Error"
	case ErrTypeTimeout:
		return "Timeout"
	case ErrTypeConnectionRefused:
		return "Connection Refused"
	case ErrTypeDNS:
		return "DNS Error"
	case ErrTypeHTTP:
		return "HTTP Error"
	case ErrTypeParse:
		return "Parse Error"
	case ErrTypeDecode:
		return "Decode Error"
	case ErrTypeEncode:
		return "Encode Error"
	case ErrTypeNotFound:
		return "Not Found"
	case ErrTypeUnknown:
		return "Unknown Error"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// DeviceError represents an error raised while talking to, or decoding data from, a CyberQ
type DeviceError struct {
	Type           ErrorType           // Category of error
	Message        string              // Human-readable error message
	StatusCode     int                 // HTTP status code (if applicable)
	Err            error               // Underlying error (if any)
	NetworkSubtype NetworkErrorSubtype // More specific network error type
	Sensor         string              // Sensor wire key (decode/encode errors)
	Host           string              // Controller host (for context)
	Retryable      bool                // Whether the next poll may succeed
}

// Error implements the error interface
func (e *DeviceError) Error() string {
	msg := e.Message
	if e.Sensor != "" {
		msg = e.Sensor + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, msg)
}

// Unwrap returns the underlying error for error chain inspection
func (e *DeviceError) Unwrap() error {
	return e.Err
}

// ClassifyNetworkError analyzes an error and returns a more specific error type
func ClassifyNetworkError(err error, host string) *DeviceError {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
		return &DeviceError{
			Type:           ErrTypeTimeout,
			Message:        "Request timed out",
			Err:            err,
			NetworkSubtype: NetworkErrorTimeout,
			Host:           host,
			Retryable:      true,
		}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &DeviceError{
			Type:           ErrTypeDNS,
			Message:        fmt.Sprintf("DNS resolution failed for %s", dnsErr.Name),
			Err:            err,
			NetworkSubtype: NetworkErrorDNS,
			Host:           host,
			Retryable:      false,
		}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if errors.Is(opErr.Err, syscall.ECONNREFUSED) {
			return &DeviceError{
				Type:           ErrTypeConnectionRefused,
				Message:        "Controller refused connection",
				Err:            err,
				NetworkSubtype: NetworkErrorConnectionRefused,
				Host:           host,
				Retryable:      true,
			}
		}
		if errors.Is(opErr.Err, syscall.EHOSTUNREACH) {
			return &DeviceError{
				Type:           ErrTypeNetwork,
				Message:        "Host unreachable",
				Err:            err,
				NetworkSubtype: NetworkErrorHostUnreachable,
				Host:           host,
				Retryable:      true,
			}
		}
		if errors.Is(opErr.Err, syscall.ENETUNREACH) {
			return &DeviceError{
				Type:           ErrTypeNetwork,
				Message:        "Network unreachable",
				Err:            err,
				NetworkSubtype: NetworkErrorNetworkUnreachable,
				Host:           host,
				Retryable:      true,
			}
		}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		classified := ClassifyNetworkError(urlErr.Err, host)
		classified.Err = err
		return classified
	}

	return &DeviceError{
		Type:           ErrTypeNetwork,
		Message:        "Network error occurred",
		Err:            err,
		NetworkSubtype: NetworkErrorGeneral,
		Host:           host,
		Retryable:      true,
	}
}

// NewNetworkError creates a network-level error with automatic classification
func NewNetworkError(message string, err error) *DeviceError {
	classified := ClassifyNetworkError(err, "")
	if classified != nil {
		classified.Message = message
		return classified
	}
	return &DeviceError{
		Type:      ErrTypeNetwork,
		Message:   message,
		Err:       err,
		Retryable: true,
	}
}

// NewHTTPError creates an HTTP-level error
func NewHTTPError(statusCode int, message string) *DeviceError {
	return &DeviceError{
		Type:       ErrTypeHTTP,
		Message:    message,
		StatusCode: statusCode,
		Retryable:  statusCode >= 500,
	}
}

// NewParseError creates a document-level parsing error
func NewParseError(message string, err error) *DeviceError {
	return &DeviceError{
		Type:    ErrTypeParse,
		Message: message,
		Err:     err,
	}
}

// NewDecodeError creates an error for a single wire value
func NewDecodeError(sensor, message string, err error) *DeviceError {
	return &DeviceError{
		Type:    ErrTypeDecode,
		Message: message,
		Err:     err,
		Sensor:  sensor,
	}
}

// NewEncodeError creates an error for a rejected write
func NewEncodeError(sensor, message string, err error) *DeviceError {
	return &DeviceError{
		Type:    ErrTypeEncode,
		Message: message,
		Err:     err,
		Sensor:  sensor,
	}
}

// NewNotFoundError creates an error for a sensor missing from the snapshot
func NewNotFoundError(sensor string) *DeviceError {
	return &DeviceError{
		Type:    ErrTypeNotFound,
		Message: "sensor not present",
		Err:     ErrSensorNotFound,
		Sensor:  sensor,
	}
}

func asDeviceError(err error) (*DeviceError, bool) {
	var devErr *DeviceError
	if errors.As(err, &devErr) {
		return devErr, true
	}
	return nil, false
}

// IsTransportError reports connection, timeout, DNS and HTTP status failures
func IsTransportError(err error) bool {
	if devErr, ok := asDeviceError(err); ok {
		switch devErr.Type {
		case ErrTypeNetwork, ErrTypeTimeout, ErrTypeConnectionRefused, ErrTypeDNS, ErrTypeHTTP:
			return true
		}
	}
	return false
}

// IsNetworkError checks if an error is a network error (timeout, connection refused, DNS, ...)
func IsNetworkError(err error) bool {
	if devErr, ok := asDeviceError(err); ok {
		return devErr.Type == ErrTypeNetwork ||
			devErr.Type == ErrTypeTimeout ||
			devErr.Type == ErrTypeConnectionRefused ||
			devErr.Type == ErrTypeDNS
	}
	return false
}

// IsHTTPError checks if an error is an HTTP status error
func IsHTTPError(err error) bool {
	if devErr, ok := asDeviceError(err); ok {
		return devErr.Type == ErrTypeHTTP
	}
	return false
}

// IsDecodeError reports malformed documents and undecodable values
func IsDecodeError(err error) bool {
	if devErr, ok := asDeviceError(err); ok {
		return devErr.Type == ErrTypeDecode || devErr.Type == ErrTypeParse
	}
	return false
}

// IsEncodeError reports writes rejected before any network call
func IsEncodeError(err error) bool {
	if devErr, ok := asDeviceError(err); ok {
		return devErr.Type == ErrTypeEncode
	}
	return false
}

// IsNotFoundError reports lookups of sensors absent from the snapshot
func IsNotFoundError(err error) bool {
	if devErr, ok := asDeviceError(err); ok {
		return devErr.Type == ErrTypeNotFound
	}
	return false
}

// IsRetryable checks if the next scheduled poll may succeed
func IsRetryable(err error) bool {
	if devErr, ok := asDeviceError(err); ok {
		return devErr.Retryable
	}
	return false
}

// GetTroubleshootingHint returns user-friendly troubleshooting advice for an error
func GetTroubleshootingHint(err error) string {
	devErr, ok := asDeviceError(err)
	if !ok {
		return "An unexpected error occurred. Please try again."
	}

	switch devErr.Type {
	case ErrTypeTimeout:
		return strings.Join([]string{
			"The controller did not respond in time.",
			"Troubleshooting:",
			"  • Check that the CyberQ is powered on",
			"  • Verify the controller is joined to your WiFi network",
			"  • Cloud relays respond slowly, try again on the next poll",
		}, "\n")

	case ErrTypeConnectionRefused:
		return strings.Join([]string{
			"The controller refused the connection.",
			"Troubleshooting:",
			"  • Verify the port number (default is 80)",
			"  • The controller web server may be restarting, wait a few seconds",
		}, "\n")

	case ErrTypeDNS:
		return strings.Join([]string{
			"Could not resolve the controller hostname.",
			"Troubleshooting:",
			"  • Use the IP address instead of hostname",
			"  • Check your network DNS settings",
		}, "\n")

	case ErrTypeNetwork:
		hint := []string{"Network communication failed."}
		switch devErr.NetworkSubtype {
		case NetworkErrorHostUnreachable:
			hint = append(hint, "The controller is not reachable on the network.",
				"Troubleshooting:",
				"  • Verify the controller IP address is correct",
				"  • Check that you're on the same network as the controller",
				"  • Try pinging the controller: ping "+devErr.Host)
		case NetworkErrorNetworkUnreachable:
			hint = append(hint, "Your computer cannot reach the controller's network.",
				"Troubleshooting:",
				"  • Check your network adapter settings",
				"  • Verify WiFi is enabled on your computer")
		default:
			hint = append(hint, "Troubleshooting:",
				"  • Check your network connection",
				"  • Verify the controller is powered on")
		}
		return strings.Join(hint, "\n")

	case ErrTypeHTTP:
		if devErr.StatusCode >= 500 {
			return strings.Join([]string{
				fmt.Sprintf("The controller returned an error (HTTP %d).", devErr.StatusCode),
				"Troubleshooting:",
				"  • Power cycle the controller",
				"  • Check if a firmware update is available",
			}, "\n")
		}
		return fmt.Sprintf("The controller returned HTTP error %d. Check the host and port.", devErr.StatusCode)

	case ErrTypeParse, ErrTypeDecode:
		return strings.Join([]string{
			"Failed to decode the controller's response.",
			"This may indicate an unsupported firmware version.",
			"Troubleshooting:",
			"  • Run with CYBERQ_LOG_LEVEL=debug to capture the raw page",
			"  • Check the firmware version shown by 'cyberq show'",
		}, "\n")

	case ErrTypeEncode:
		return "The value was rejected before it was sent. Check the allowed range or options."

	case ErrTypeNotFound:
		return "The controller has not reported this sensor. It may not exist on this firmware or mode."

	default:
		return "An error occurred. Please check the error message for details."
	}
}

// GetShortErrorMessage returns a concise, user-friendly error message
func GetShortErrorMessage(err error) string {
	devErr, ok := asDeviceError(err)
	if !ok {
		return err.Error()
	}

	switch devErr.Type {
	case ErrTypeTimeout:
		return "Controller not responding (timeout)"
	case ErrTypeConnectionRefused:
		return "Controller refused connection"
	case ErrTypeDNS:
		return "Cannot resolve controller hostname"
	case ErrTypeNetwork:
		switch devErr.NetworkSubtype {
		case NetworkErrorHostUnreachable:
			return "Controller unreachable - check network connection"
		case NetworkErrorNetworkUnreachable:
			return "Network unreachable - check WiFi connection"
		default:
			return "Network error - check connection"
		}
	case ErrTypeHTTP:
		return fmt.Sprintf("Controller error (HTTP %d)", devErr.StatusCode)
	case ErrTypeParse, ErrTypeDecode:
		return "Failed to decode controller response"
	case ErrTypeEncode:
		return "Invalid value: " + devErr.Error()
	case ErrTypeNotFound:
		return fmt.Sprintf("No such sensor: %s", devErr.Sensor)
	default:
		return devErr.Message
	}
}
