package cyberq

import (
	"regexp"
	"strings"
)

var (
	wifiMACPattern     = regexp.MustCompile(`\b(?P<mac>([A-Z0-9]{2}:){5}[A-Z0-9]{2})\b`)
	wifiVersionPattern = regexp.MustCompile(`FW Version<.*>(?P<sw_version>[0-9\.]+),\s*(?P<hw_version>[0-9\.]+)<`)
)

// WiFiIdentity is the identity shown on the controller's wifi.htm page
type WiFiIdentity struct {
	MAC             string
	SerialNumber    string
	SoftwareVersion string
	HardwareVersion string
}

// DecodeWiFiPage scans wifi.htm for the MAC address and the firmware
// version pair. Fields not found are left empty; later matches win.
func DecodeWiFiPage(body string) WiFiIdentity {
	var id WiFiIdentity
	for _, line := range strings.Split(body, "\r\n") {
		if m := wifiMACPattern.FindStringSubmatch(line); m != nil {
			id.MAC = m[wifiMACPattern.SubexpIndex("mac")]
			id.SerialNumber = serialFromMAC(id.MAC)
			continue
		}
		if m := wifiVersionPattern.FindStringSubmatch(line); m != nil {
			id.SoftwareVersion = m[wifiVersionPattern.SubexpIndex("sw_version")]
			id.HardwareVersion = m[wifiVersionPattern.SubexpIndex("hw_version")]
		}
	}
	return id
}
