package cyberq

import (
	"fmt"
	"slices"
)

// Controller limits for writable values.
const (
	TemperatureMin = 32
	TemperatureMax = 475
	PropBandMin    = 5
	PropBandMax    = 100
	CycleTimeMin   = 1
	CycleTimeMax   = 30
	AlarmDevMin    = 10
	AlarmDevMax    = 100
	LCDMin         = 0
	LCDMax         = 100
)

// Kind identifies the codec used for a sensor's wire value
type Kind int

const (
	KindBoolean Kind = iota
	KindEnum
	KindNumber
	KindString
	KindTimer
	KindTemperature
)

// String returns the kind name
func (k Kind) String() string {
	switch k {
	case KindBoolean:
		return "Boolean"
	case KindEnum:
		return "Enum"
	case KindNumber:
		return "Number"
	case KindString:
		return "String"
	case KindTimer:
		return "Timer"
	case KindTemperature:
		return "Temperature"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Page is a controller web page that owns a set of form fields
type Page string

const (
	PageNone    Page = ""
	PageIndex   Page = "index.htm"
	PageControl Page = "control.htm"
	PageSystem  Page = "system.htm"
	PageWiFi    Page = "wifi.htm"
)

// Descriptor is the immutable metadata for one sensor wire key.
//
// Min and Max apply to Number and Temperature kinds; Values to Enum.
type Descriptor struct {
	Name     string
	Kind     Kind
	ReadOnly bool
	Alias    string
	Page     Page
	Min      float64
	Max      float64
	Values   []string
}

// Clone returns an independent copy of the descriptor
func (d Descriptor) Clone() Descriptor {
	d.Values = slices.Clone(d.Values)
	return d
}

// Writable reports whether the sensor accepts writes
func (d *Descriptor) Writable() bool {
	return !d.ReadOnly
}

// WireKey returns the form field name used for writes in the given mode.
// Sensors without an alias use their canonical name in cloud mode as well.
func (d *Descriptor) WireKey(cloud bool) string {
	if cloud && d.Alias != "" {
		return d.Alias
	}
	return d.Name
}

func (d Descriptor) String() string {
	return fmt.Sprintf("Name: %s Kind: %s ReadOnly: %v", d.Name, d.Kind, d.ReadOnly)
}

func boolean(name string, page Page, readOnly bool) Descriptor {
	return Descriptor{Name: name, Kind: KindBoolean, Page: page, ReadOnly: readOnly}
}

func enum(name string, page Page, readOnly bool, values ...string) Descriptor {
	return Descriptor{Name: name, Kind: KindEnum, Page: page, ReadOnly: readOnly, Values: values}
}

func number(name, alias string, page Page, readOnly bool, lo, hi float64) Descriptor {
	return Descriptor{Name: name, Kind: KindNumber, Alias: alias, Page: page, ReadOnly: readOnly, Min: lo, Max: hi}
}

func text(name string, page Page) Descriptor {
	return Descriptor{Name: name, Kind: KindString, Page: page}
}

func timer(name string, readOnly bool) Descriptor {
	return Descriptor{Name: name, Kind: KindTimer, ReadOnly: readOnly}
}

func temperature(name string, page Page, readOnly bool) Descriptor {
	return Descriptor{
		Name:     name,
		Kind:     KindTemperature,
		Page:     page,
		ReadOnly: readOnly,
		Min:      TemperatureMin,
		Max:      TemperatureMax,
	}
}

// StatusValues are the labels of the probe and timer status enums
var StatusValues = []string{"ok", "high", "low", "done", "error", "hold", "alarm", "shutdown"}

// TimeoutActionValues are the labels of TIMEOUT_ACTION
var TimeoutActionValues = []string{"No Action", "Hold", "Alarm", "Shutdown"}

// sensorTable is the descriptor table for all known CyberQ sensors
var sensorTable = []Descriptor{
	enum("ALARM_BEEPS", PageSystem, false, "0", "1", "2", "3", "4", "5"),
	number("ALARMDEV", "", PageControl, false, AlarmDevMin, AlarmDevMax),
	number("COOK_CYCTIME", "CYCTIME", PageIndex, false, CycleTimeMin, CycleTimeMax),
	text("COOK_NAME", PageIndex),
	number("COOK_PROPBAND", "PROPBAND", PageIndex, false, PropBandMin, PropBandMax),
	enum("COOK_RAMP", PageControl, false, "None", "Food 1", "Food 2", "Food 3"),
	temperature("COOK_SET", PageIndex, false),
	enum("COOK_STATUS", PageNone, true, StatusValues...),
	temperature("COOK_TEMP", PageNone, true),
	temperature("COOKHOLD", PageControl, false),
	enum("DEG_UNITS", PageSystem, false, "Celsius", "Fahrenheit"),
	boolean("FAN_SHORTED", PageNone, true),
	text("FOOD1_NAME", PageIndex),
	temperature("FOOD1_SET", PageIndex, false),
	enum("FOOD1_STATUS", PageNone, true, StatusValues...),
	temperature("FOOD1_TEMP", PageNone, true),
	text("FOOD2_NAME", PageIndex),
	temperature("FOOD2_SET", PageIndex, false),
	enum("FOOD2_STATUS", PageNone, true, StatusValues...),
	temperature("FOOD2_TEMP", PageNone, true),
	text("FOOD3_NAME", PageIndex),
	temperature("FOOD3_SET", PageIndex, false),
	enum("FOOD3_STATUS", PageNone, true, StatusValues...),
	temperature("FOOD3_TEMP", PageNone, true),
	boolean("KEY_BEEPS", PageSystem, false),
	number("LCD_BACKLIGHT", "", PageSystem, false, LCDMin, LCDMax),
	number("LCD_CONTRAST", "", PageSystem, false, LCDMin, LCDMax),
	boolean("MENU_SCROLLING", PageSystem, false),
	boolean("OPENDETECT", PageControl, false),
	number("OUTPUT_PERCENT", "", PageNone, true, 0, 100),
	enum("TIMEOUT_ACTION", PageControl, false, TimeoutActionValues...),
	timer("TIMER_CURR", true),
	enum("TIMER_STATUS", PageNone, true, StatusValues...),
}
