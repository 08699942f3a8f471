package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadSettings_Defaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")

	s, err := LoadSettings("")
	if err != nil {
		t.Fatalf("LoadSettings() error = %v", err)
	}

	if s.LogLevel != "info" {
		t.Errorf("LogLevel = %v, want info", s.LogLevel)
	}
	if s.Device.Port != 80 {
		t.Errorf("Device.Port = %v, want 80", s.Device.Port)
	}
	if s.Poll.Interval() != 5*time.Second || s.Poll.Timeout() != 20*time.Second {
		t.Errorf("Poll = %v/%v, want 5s/20s", s.Poll.Interval(), s.Poll.Timeout())
	}
	if s.HTTP.Listen != ":9120" {
		t.Errorf("HTTP.Listen = %v, want :9120", s.HTTP.Listen)
	}
	if s.MQTT.Enable || s.MQTT.Port != 1883 || s.MQTT.BaseTopic != "cyberq" {
		t.Errorf("MQTT = %+v", s.MQTT)
	}
}

func TestLoadSettings_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cyberq.yaml")
	content := `
log_level: debug
device:
  host: 192.168.1.50
  port: 8080
poll:
  interval_seconds: 10
mqtt:
  enable: true
  host: broker.lan
  base_topic: BBQ
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CYBERQ_MQTT_HOST", "mosquitto")
	t.Setenv("CYBERQ_POLL_TIMEOUT_SECONDS", "15")

	s, err := LoadSettings(path)
	if err != nil {
		t.Fatalf("LoadSettings() error = %v", err)
	}

	if s.Device.Host != "192.168.1.50" || s.Device.Port != 8080 {
		t.Errorf("Device = %+v", s.Device)
	}
	if s.Poll.IntervalSeconds != 10 || s.Poll.TimeoutSeconds != 15 {
		t.Errorf("Poll = %+v", s.Poll)
	}
	if s.MQTT.Host != "mosquitto" {
		t.Errorf("MQTT.Host = %v, want env override mosquitto", s.MQTT.Host)
	}
	if s.MQTT.BaseTopic != "bbq" {
		t.Errorf("MQTT.BaseTopic = %v, want lower-cased bbq", s.MQTT.BaseTopic)
	}
}

func TestLoadSettings_MissingFile(t *testing.T) {
	if _, err := LoadSettings(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("LoadSettings() should fail for a missing file")
	}
}

func TestSettingsValidate(t *testing.T) {
	valid := func() Settings {
		return Settings{
			Device: DeviceSettings{Port: 80},
			Poll:   PollSettings{IntervalSeconds: 5, TimeoutSeconds: 20},
			MQTT:   MQTTSettings{Host: "localhost", BaseTopic: "cyberq"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantErr bool
	}{
		{"valid", func(*Settings) {}, false},
		{"interval zero", func(s *Settings) { s.Poll.IntervalSeconds = 0 }, true},
		{"timeout too long", func(s *Settings) { s.Poll.TimeoutSeconds = 61 }, true},
		{"bad port", func(s *Settings) { s.Device.Port = 70000 }, true},
		{"bad topic", func(s *Settings) { s.MQTT.BaseTopic = "cyber/q" }, true},
		{"cert without key", func(s *Settings) { s.HTTP.CertFile = "cert.pem" }, true},
		{"mqtt without host", func(s *Settings) { s.MQTT.Enable = true; s.MQTT.Host = "" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid()
			tt.mutate(&s)
			if err := s.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSettingsRedacted(t *testing.T) {
	s := Settings{MQTT: MQTTSettings{Username: "pit", Password: "secret"}}

	r := s.Redacted()
	if r.MQTT.Username != "*redacted*" || r.MQTT.Password != "*redacted*" {
		t.Errorf("Redacted() = %+v", r.MQTT)
	}
	if s.MQTT.Password != "secret" {
		t.Error("Redacted() modified the original settings")
	}
}

func TestCheckMQTTTopic(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"cyberq", "cyberq", false},
		{"Smoker_1", "smoker_1", false},
		{"", "", true},
		{"bbq/pit", "", true},
		{"bbq pit", "", true},
	}
	for _, tt := range tests {
		got, err := CheckMQTTTopic(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("CheckMQTTTopic(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("CheckMQTTTopic(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
