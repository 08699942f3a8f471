package config

import (
	"strings"
	"time"
)

// Registry represents the entire user configuration file.
// This stores user-defined metadata for known controllers and application preferences.
type Registry struct {
	Version     int                `yaml:"version"`
	Devices     map[string]*Device `yaml:"devices,omitempty"` // Keyed by controller serial number
	Preferences *Preferences       `yaml:"preferences,omitempty"`
}

// Device represents user-defined metadata for a single CyberQ controller.
// This is keyed by the controller's serial number in the Registry.
type Device struct {
	Nickname string    `yaml:"nickname,omitempty"`  // User-friendly name
	Host     string    `yaml:"host,omitempty"`      // Last known host or IP address
	Port     int       `yaml:"port,omitempty"`      // HTTP port (0 means the default)
	Model    string    `yaml:"model,omitempty"`     // "CyberQ WiFi" or "CyberQ Cloud"
	Cloud    bool      `yaml:"cloud,omitempty"`     // Controller answered in cloud mode
	LastSeen time.Time `yaml:"last_seen,omitempty"` // Last discovery/connection time
}

// Preferences represents application-wide user preferences.
type Preferences struct {
	PollInterval    int `yaml:"poll_interval"`    // Seconds between status refreshes in watch mode
	DiscoverTimeout int `yaml:"discover_timeout"` // mDNS discovery timeout in seconds
	DefaultPort     int `yaml:"default_port"`     // Port used when a device entry has none
}

const (
	registryVersion = 1

	defaultPollInterval    = 5
	defaultDiscoverTimeout = 10
	defaultDevicePort      = 80
)

func defaultPreferences() *Preferences {
	return &Preferences{
		PollInterval:    defaultPollInterval,
		DiscoverTimeout: defaultDiscoverTimeout,
		DefaultPort:     defaultDevicePort,
	}
}

// NewRegistry creates a new Registry with default values.
func NewRegistry() *Registry {
	return &Registry{
		Version:     registryVersion,
		Devices:     make(map[string]*Device),
		Preferences: defaultPreferences(),
	}
}

// GetDevice retrieves device metadata by serial number.
// Returns nil if the device doesn't exist in the registry.
func (r *Registry) GetDevice(serial string) *Device {
	return r.Devices[serial]
}

// EnsureDevice ensures a device entry exists in the registry.
// Returns the device entry (existing or newly created).
func (r *Registry) EnsureDevice(serial string) *Device {
	if r.Devices == nil {
		r.Devices = make(map[string]*Device)
	}

	if device, exists := r.Devices[serial]; exists {
		return device
	}

	device := &Device{}
	r.Devices[serial] = device
	return device
}

// UpdateDeviceLastSeen records where a controller was last reached.
func (r *Registry) UpdateDeviceLastSeen(serial, host string, port int, model string, cloud bool) {
	device := r.EnsureDevice(serial)
	device.LastSeen = time.Now()
	device.Host = host
	device.Port = port
	device.Model = model
	device.Cloud = cloud
}

// SetDeviceNickname sets a user-friendly nickname for a device.
func (r *Registry) SetDeviceNickname(serial, nickname string) {
	device := r.EnsureDevice(serial)
	device.Nickname = nickname
}

// RemoveDevice deletes a device entry. It reports whether the entry existed.
func (r *Registry) RemoveDevice(serial string) bool {
	if _, ok := r.Devices[serial]; !ok {
		return false
	}
	delete(r.Devices, serial)
	return true
}

// LookupByNickname finds a device by nickname (case-insensitive).
// Returns the serial number and entry, or ok=false.
func (r *Registry) LookupByNickname(nickname string) (string, *Device, bool) {
	for serial, device := range r.Devices {
		if device.Nickname != "" && strings.EqualFold(device.Nickname, nickname) {
			return serial, device, true
		}
	}
	return "", nil, false
}

// Resolve maps a --device argument to a host and port. The argument may be a
// nickname, a serial number, or a literal host; literal hosts pass through.
func (r *Registry) Resolve(target string) (host string, port int) {
	port = r.Preferences.DefaultPort

	device := r.Devices[target]
	if device == nil {
		_, device, _ = r.LookupByNickname(target)
	}
	if device == nil || device.Host == "" {
		return target, port
	}
	if device.Port != 0 {
		port = device.Port
	}
	return device.Host, port
}
