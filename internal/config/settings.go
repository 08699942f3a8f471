package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Settings configures the long-running service (cyberq serve).
type Settings struct {
	LogLevel string         `mapstructure:"log_level"`
	Device   DeviceSettings `mapstructure:"device"`
	Poll     PollSettings   `mapstructure:"poll"`
	HTTP     HTTPSettings   `mapstructure:"http"`
	MQTT     MQTTSettings   `mapstructure:"mqtt"`
}

type DeviceSettings struct {
	Host string
	Port int
}

type PollSettings struct {
	IntervalSeconds int `mapstructure:"interval_seconds"`
	TimeoutSeconds  int `mapstructure:"timeout_seconds"`
}

type HTTPSettings struct {
	Listen   string
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
}

type MQTTSettings struct {
	Enable    bool
	Host      string
	Port      int
	Username  string
	Password  string
	BaseTopic string `mapstructure:"base_topic"`
}

// Interval returns the poll interval as a duration.
func (p PollSettings) Interval() time.Duration {
	return time.Duration(p.IntervalSeconds) * time.Second
}

// Timeout returns the per-refresh timeout as a duration.
func (p PollSettings) Timeout() time.Duration {
	return time.Duration(p.TimeoutSeconds) * time.Second
}

func setSettingsDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("device.host", "")
	v.SetDefault("device.port", defaultDevicePort)
	v.SetDefault("poll.interval_seconds", 5)
	v.SetDefault("poll.timeout_seconds", 20)
	v.SetDefault("http.listen", ":9120")
	v.SetDefault("http.cert_file", "")
	v.SetDefault("http.key_file", "")
	v.SetDefault("mqtt.enable", false)
	v.SetDefault("mqtt.host", "localhost")
	v.SetDefault("mqtt.port", 1883)
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.base_topic", "cyberq")
}

// LoadSettings builds Settings from defaults, an optional YAML file and
// CYBERQ_* environment variables (CYBERQ_MQTT_HOST overrides mqtt.host).
// When file is empty, CONFIG_FILE is consulted.
func LoadSettings(file string) (*Settings, error) {
	v := viper.New()
	setSettingsDefaults(v)

	v.SetEnvPrefix("cyberq")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file == "" {
		file = os.Getenv("CONFIG_FILE")
	}
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read settings file %s: %w", file, err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks bounds and normalizes the MQTT base topic.
func (s *Settings) Validate() error {
	if s.Poll.IntervalSeconds < 1 {
		return errors.New("poll.interval_seconds should be >= 1")
	}
	if s.Poll.TimeoutSeconds < 1 || s.Poll.TimeoutSeconds > 60 {
		return errors.New("poll.timeout_seconds should be between 1 and 60")
	}
	if s.Device.Port < 0 || s.Device.Port > 65535 {
		return fmt.Errorf("device.port %d out of range", s.Device.Port)
	}

	if (s.HTTP.CertFile == "") != (s.HTTP.KeyFile == "") {
		return errors.New("http.cert_file and http.key_file must be set together")
	}

	baseTopic, err := CheckMQTTTopic(s.MQTT.BaseTopic)
	if err != nil {
		return fmt.Errorf("invalid mqtt.base_topic: %w", err)
	}
	s.MQTT.BaseTopic = baseTopic

	if s.MQTT.Enable && s.MQTT.Host == "" {
		return errors.New("mqtt.host is required when mqtt.enable is set")
	}
	return nil
}

// Redacted returns a copy safe for logging.
func (s Settings) Redacted() Settings {
	if s.MQTT.Username != "" {
		s.MQTT.Username = "*redacted*"
	}
	if s.MQTT.Password != "" {
		s.MQTT.Password = "*redacted*"
	}
	return s
}

var topicPattern = regexp.MustCompile(`^[a-z0-9_]+$`)

// CheckMQTTTopic lower-cases a base topic and rejects anything but letters,
// numbers and underscores.
func CheckMQTTTopic(baseTopic string) (string, error) {
	lower := strings.ToLower(baseTopic)
	if !topicPattern.MatchString(lower) {
		return "", errors.New("topic can only contain letters, numbers and underscores")
	}
	return lower, nil
}
