package mqtt

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/muurk/cyberq/internal/cyberq"
)

const (
	PayloadOnline  = "online"
	PayloadOffline = "offline"
	PayloadOn      = "on"
	PayloadOff     = "off"
)

// Topics builds the topic layout for one controller:
//
//	<base>/<device>/availability
//	<base>/<device>/<KEY>/state
//	<base>/<device>/<KEY>/set
type Topics struct {
	base     string
	device   string
	setRegex *regexp.Regexp
}

func NewTopics(baseTopic, deviceID string) Topics {
	return Topics{
		base:     baseTopic,
		device:   deviceID,
		setRegex: regexp.MustCompile("^" + regexp.QuoteMeta(baseTopic+"/"+deviceID) + "/([A-Za-z0-9_]+)/set$"),
	}
}

func (t Topics) Availability() string {
	return fmt.Sprintf("%s/%s/availability", t.base, t.device)
}

func (t Topics) State(key string) string {
	return fmt.Sprintf("%s/%s/%s/state", t.base, t.device, key)
}

// CommandFilter is the subscription filter matching every set topic
func (t Topics) CommandFilter() string {
	return fmt.Sprintf("%s/%s/+/set", t.base, t.device)
}

// ParseCommand extracts the sensor key and trimmed payload from a set topic.
// Payload shorthand such as on/off is resolved later against the sensor.
func (t Topics) ParseCommand(topic string, payload []byte) (cyberq.Assignment, error) {
	matches := t.setRegex.FindStringSubmatch(topic)
	if len(matches) != 2 {
		return cyberq.Assignment{}, fmt.Errorf("not a command topic: %s", topic)
	}

	value := strings.TrimSpace(string(payload))
	if value == "" {
		return cyberq.Assignment{}, errors.New("empty command payload")
	}
	return cyberq.Assignment{Key: strings.ToUpper(matches[1]), Value: value}, nil
}

var deviceIDSanitizer = regexp.MustCompile(`[^A-Za-z0-9_]+`)

// DeviceID picks the topic segment for a controller: its serial number, or
// the sanitized host when the serial is not known yet.
func DeviceID(id cyberq.Identity) string {
	if id.SerialNumber != "" {
		return strings.ToLower(id.SerialNumber)
	}
	return strings.Trim(deviceIDSanitizer.ReplaceAllString(strings.ToLower(id.Host), "_"), "_")
}

// StatePayload renders a value for a state topic
func StatePayload(v cyberq.Value) string {
	if b, ok := v.Bool(); ok {
		if b {
			return PayloadOn
		}
		return PayloadOff
	}
	return v.String()
}
