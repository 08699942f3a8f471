package cyberq

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"
)

const (
	configRootElement = "nutcallstatus"
	statusRootElement = "nutcstatus"
	statusCommentKey  = "comment"
)

// probeGroups are the config.xml sections carrying a probe name and setpoint
var probeGroups = []string{"COOK", "FOOD1", "FOOD2", "FOOD3"}

type controlSection struct {
	TimeoutAction string `mapstructure:"TIMEOUT_ACTION"`
	CookHold      string `mapstructure:"COOKHOLD"`
	AlarmDev      string `mapstructure:"ALARMDEV"`
	OpenDetect    string `mapstructure:"OPENDETECT"`
}

func (c controlSection) assignments() [][2]string {
	return [][2]string{
		{"TIMEOUT_ACTION", c.TimeoutAction},
		{"COOKHOLD", c.CookHold},
		{"ALARMDEV", c.AlarmDev},
		{"OPENDETECT", c.OpenDetect},
	}
}

type systemSection struct {
	MenuScrolling string `mapstructure:"MENU_SCROLLING"`
	LCDBacklight  string `mapstructure:"LCD_BACKLIGHT"`
	LCDContrast   string `mapstructure:"LCD_CONTRAST"`
	AlarmBeeps    string `mapstructure:"ALARM_BEEPS"`
	KeyBeeps      string `mapstructure:"KEY_BEEPS"`
}

func (s systemSection) assignments() [][2]string {
	return [][2]string{
		{"MENU_SCROLLING", s.MenuScrolling},
		{"LCD_BACKLIGHT", s.LCDBacklight},
		{"LCD_CONTRAST", s.LCDContrast},
		{"ALARM_BEEPS", s.AlarmBeeps},
		{"KEY_BEEPS", s.KeyBeeps},
	}
}

type wifiSection struct {
	MAC string `mapstructure:"MAC"`
}

// ConfigIdentity is the device identity carried in config.xml
type ConfigIdentity struct {
	MAC             string
	SerialNumber    string
	SoftwareVersion string
}

// parseXMLTree reads a document into nested maps. Leaf elements become
// strings, elements with children become map[string]any; a repeated
// element name keeps the last occurrence.
func parseXMLTree(body []byte) (string, map[string]any, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))
	// The controller declares ISO-8859-1 but only ever sends ASCII.
	dec.CharsetReader = func(_ string, input io.Reader) (io.Reader, error) {
		return input, nil
	}

	type frame struct {
		name     string
		children map[string]any
		text     strings.Builder
	}
	var (
		stack    []*frame
		rootName string
		root     map[string]any
	)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", nil, NewParseError("malformed XML document", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if len(stack) == 0 && root != nil {
				return "", nil, NewParseError("multiple root elements", nil)
			}
			stack = append(stack, &frame{name: t.Name.Local, children: map[string]any{}})
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text.Write(t)
			}
		case xml.EndElement:
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				rootName, root = top.name, top.children
				continue
			}
			var v any = top.children
			if len(top.children) == 0 {
				v = strings.TrimSpace(top.text.String())
			}
			stack[len(stack)-1].children[top.name] = v
		}
	}
	if root == nil {
		return "", nil, NewParseError("empty XML document", nil)
	}
	return rootName, root, nil
}

func parseXMLRoot(body []byte, want string) (map[string]any, error) {
	name, root, err := parseXMLTree(body)
	if err != nil {
		return nil, err
	}
	if name != want {
		return nil, NewParseError(fmt.Sprintf("root element is <%s>, want <%s>", name, want), nil)
	}
	return root, nil
}

func decodeSection(name string, in any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnset:       true,
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return NewParseError("building section decoder", err)
	}
	if err := dec.Decode(in); err != nil {
		return NewParseError(fmt.Sprintf("section %s", name), err)
	}
	return nil
}

func acceptAll(store *Store, pairs [][2]string) error {
	for _, p := range pairs {
		if err := store.Accept(p[0], p[1]); err != nil {
			return err
		}
	}
	return nil
}

// DecodeConfigXML applies a config.xml document to store and returns the
// identity it carries. Any malformed section aborts the whole document.
func DecodeConfigXML(store *Store, body []byte) (ConfigIdentity, error) {
	var id ConfigIdentity
	root, err := parseXMLRoot(body, configRootElement)
	if err != nil {
		return id, err
	}

	for _, group := range probeGroups {
		section, ok := root[group]
		if !ok {
			continue
		}
		var fields map[string]string
		if err := decodeSection(group, section, &fields); err != nil {
			return id, err
		}
		for _, key := range []string{group + "_NAME", group + "_SET"} {
			raw, ok := fields[key]
			if !ok {
				return id, NewParseError(fmt.Sprintf("section %s has no %s", group, key), nil)
			}
			if err := store.Accept(key, raw); err != nil {
				return id, err
			}
		}
	}

	if section, ok := root["WIFI"]; ok {
		var wifi wifiSection
		if err := decodeSection("WIFI", section, &wifi); err != nil {
			return id, err
		}
		id.MAC = wifi.MAC
		id.SerialNumber = serialFromMAC(wifi.MAC)
	}

	if section, ok := root["FWVER"]; ok {
		version, isLeaf := section.(string)
		if !isLeaf {
			return id, NewParseError("FWVER is not a text element", nil)
		}
		id.SoftwareVersion = version
	}

	if section, ok := root["CONTROL"]; ok {
		var control controlSection
		if err := decodeSection("CONTROL", section, &control); err != nil {
			return id, err
		}
		if err := acceptAll(store, control.assignments()); err != nil {
			return id, err
		}
	}

	if section, ok := root["SYSTEM"]; ok {
		var system systemSection
		if err := decodeSection("SYSTEM", section, &system); err != nil {
			return id, err
		}
		if err := acceptAll(store, system.assignments()); err != nil {
			return id, err
		}
	}

	return id, nil
}

// DecodeStatusXML applies every element of a status.xml document except
// the comment to store.
func DecodeStatusXML(store *Store, body []byte) error {
	root, err := parseXMLRoot(body, statusRootElement)
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(root))
	for k := range root {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if key == statusCommentKey {
			continue
		}
		raw, ok := root[key].(string)
		if !ok {
			return NewParseError(fmt.Sprintf("status element %s has children", key), nil)
		}
		if err := store.Accept(key, raw); err != nil {
			return err
		}
	}
	return nil
}

// serialFromMAC joins the last two octets: "00:1E:C0:12:AB:CD" -> "ABCD"
func serialFromMAC(mac string) string {
	octets := strings.Split(mac, ":")
	if len(octets) < 6 {
		return ""
	}
	return strings.Join(octets[4:6], "")
}
