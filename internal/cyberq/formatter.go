package cyberq

import (
	"fmt"
	"strings"
)

// Summary returns a one-line summary of the controller
func (id Identity) Summary() string {
	return fmt.Sprintf("%s @ %s:%d (%s, FW: %s)", id.Name, id.Host, id.Port, id.Model, id.SoftwareVersion)
}

// FormatIdentity returns the identity block of the detailed view
func FormatIdentity(id Identity) string {
	var b strings.Builder

	b.WriteString("=== Controller ===\n")
	b.WriteString(fmt.Sprintf("Name:          %s\n", id.Name))
	b.WriteString(fmt.Sprintf("Model:         %s (%s)\n", id.Model, id.Manufacturer))
	b.WriteString(fmt.Sprintf("Address:       %s:%d\n", id.Host, id.Port))
	b.WriteString(fmt.Sprintf("MAC Address:   %s\n", id.MAC))
	b.WriteString(fmt.Sprintf("Firmware:      %s\n", id.SoftwareVersion))
	if id.HardwareVersion != "" {
		b.WriteString(fmt.Sprintf("Hardware:      %s\n", id.HardwareVersion))
	}

	return b.String()
}

// FormatProbes returns one line per probe: name, temperature, setpoint, status
func FormatProbes(store *Store) string {
	var b strings.Builder

	b.WriteString("=== Probes ===\n")
	for _, r := range ReadProbes(store) {
		b.WriteString(fmt.Sprintf("%-8s %-16s %8s  set %8s  %s\n",
			r.Probe.Label,
			r.DisplayName(),
			formatTemp(r.Temperature, r.HasTemp, store, r.Probe.TempKey()),
			formatTemp(r.Setpoint, r.HasSetpoint, store, r.Probe.SetKey()),
			r.Status))
	}

	return b.String()
}

// formatTemp shows raw text such as OPEN when the probe did not report a number
func formatTemp(f float64, ok bool, store *Store, key string) string {
	if ok {
		return fmt.Sprintf("%.1f°F", f)
	}
	if v, err := store.Get(key); err == nil && v.Raw() != "" {
		return v.Raw()
	}
	return "--"
}

// FormatControl returns the fan, timer and control settings block
func FormatControl(store *Store) string {
	var b strings.Builder

	b.WriteString("=== Control ===\n")
	for _, key := range []string{
		"OUTPUT_PERCENT", "FAN_SHORTED", "TIMER_CURR", "TIMER_STATUS",
		"COOK_RAMP", "COOKHOLD", "TIMEOUT_ACTION", "OPENDETECT", "ALARMDEV",
		"COOK_PROPBAND", "COOK_CYCTIME",
	} {
		v, err := store.Get(key)
		if err != nil {
			continue
		}
		b.WriteString(fmt.Sprintf("%-15s %s\n", key+":", FormatValue(v)))
	}

	return b.String()
}

// FormatValue renders a value for people: temperatures with units, enum labels, on/off
func FormatValue(v Value) string {
	switch v.Kind() {
	case KindTemperature:
		if f, ok := v.Float(); ok {
			return fmt.Sprintf("%.1f°F", f)
		}
		return v.Raw()
	case KindEnum:
		if label, ok := v.Label(); ok {
			return label
		}
		return fmt.Sprintf("(index %d)", v.index)
	case KindBoolean:
		if b, _ := v.Bool(); b {
			return "on"
		}
		return "off"
	default:
		return v.String()
	}
}

// FormatCompact returns a few lines suitable for a terminal
func FormatCompact(id Identity, store *Store) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("%s (%s, FW %s)\n", id.Name, id.Model, id.SoftwareVersion))
	parts := make([]string, 0, len(Probes))
	for _, r := range ReadProbes(store) {
		parts = append(parts, fmt.Sprintf("%s %s/%s",
			r.DisplayName(),
			formatTemp(r.Temperature, r.HasTemp, store, r.Probe.TempKey()),
			formatTemp(r.Setpoint, r.HasSetpoint, store, r.Probe.SetKey())))
	}
	b.WriteString(strings.Join(parts, " | "))
	b.WriteString("\n")
	if v, err := store.Get("OUTPUT_PERCENT"); err == nil {
		b.WriteString(fmt.Sprintf("Fan: %s%%", v.String()))
		if t, err := store.Get("TIMER_CURR"); err == nil {
			b.WriteString(fmt.Sprintf("  Timer: %s", t.String()))
		}
		b.WriteString("\n")
	}

	return b.String()
}

// FormatDetailed returns every section plus the full sensor dump
func FormatDetailed(id Identity, store *Store) string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString("╔════════════════════════════════════════════════════════════════╗\n")
	b.WriteString("║                    CYBERQ CONTROLLER STATE                     ║\n")
	b.WriteString("╚════════════════════════════════════════════════════════════════╝\n")
	b.WriteString("\n")

	b.WriteString(FormatIdentity(id))
	b.WriteString("\n")
	b.WriteString(FormatProbes(store))
	b.WriteString("\n")
	b.WriteString(FormatControl(store))
	b.WriteString("\n")
	b.WriteString("=== All Sensors ===\n\t")
	b.WriteString(store.String())
	b.WriteString("\n")

	return b.String()
}

// FormatDiff lists the sensors that changed between two snapshots
func FormatDiff(old, new *Store) string {
	var b strings.Builder

	b.WriteString("=== Changes ===\n")
	changed := new.ChangedSince(old)
	if len(changed) == 0 {
		b.WriteString("(no differences detected)\n")
		return b.String()
	}
	for _, k := range changed {
		before := "--"
		if old != nil {
			if v, err := old.Get(k); err == nil {
				before = FormatValue(v)
			}
		}
		after, _ := new.Get(k)
		b.WriteString(fmt.Sprintf("  %s: %s → %s\n", k, before, FormatValue(after)))
	}

	return b.String()
}
