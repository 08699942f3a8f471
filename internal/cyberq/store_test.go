package cyberq

import (
	"errors"
	"slices"
	"strings"
	"testing"
)

func TestDefaultRegistry(t *testing.T) {
	reg := DefaultRegistry()

	if reg.Len() != len(sensorTable) {
		t.Errorf("Len() = %d, want %d", reg.Len(), len(sensorTable))
	}
	if DefaultRegistry() != reg {
		t.Error("DefaultRegistry() returned a different instance")
	}

	for _, name := range reg.Names() {
		d, _ := reg.Lookup(name)
		if !d.ReadOnly && d.Page == PageNone {
			t.Errorf("%s is writable but has no page", name)
		}
	}

	if name, ok := reg.ResolveAlias("PROPBAND"); !ok || name != "COOK_PROPBAND" {
		t.Errorf("ResolveAlias(PROPBAND) = %q, %v", name, ok)
	}
	if _, ok := reg.ResolveAlias("COOK_SET"); ok {
		t.Error("ResolveAlias(COOK_SET) should not resolve a canonical key")
	}
}

func TestNewRegistry_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		table []Descriptor
	}{
		{"duplicate name", []Descriptor{text("A", PageIndex), text("A", PageIndex)}},
		{"duplicate alias", []Descriptor{
			number("A", "X", PageIndex, false, 0, 1),
			number("B", "X", PageIndex, false, 0, 1),
		}},
		{"alias shadows name", []Descriptor{
			number("A", "B", PageIndex, false, 0, 1),
			text("B", PageIndex),
		}},
		{"writable without page", []Descriptor{text("A", PageNone)}},
		{"enum without options", []Descriptor{enum("A", PageIndex, false)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewRegistry(tt.table); err == nil {
				t.Error("NewRegistry() error = nil, want error")
			}
		})
	}
}

func TestRegistry_LookupReturnsCopy(t *testing.T) {
	reg := DefaultRegistry()

	d, _ := reg.Lookup("COOK_RAMP")
	d.Values[0] = "mutated"

	again, _ := reg.Lookup("COOK_RAMP")
	if again.Values[0] != "None" {
		t.Errorf("registry was mutated through a looked-up descriptor: %q", again.Values[0])
	}
}

func TestStore_AcceptAlias(t *testing.T) {
	byAlias := NewStore(nil)
	if err := byAlias.Accept("CYCTIME", "5"); err != nil {
		t.Fatalf("Accept(CYCTIME) error = %v", err)
	}
	byName := NewStore(nil)
	if err := byName.Accept("COOK_CYCTIME", "5"); err != nil {
		t.Fatalf("Accept(COOK_CYCTIME) error = %v", err)
	}

	if !byAlias.Equal(byName) {
		t.Errorf("stores differ:\n%s\nvs\n%s", byAlias, byName)
	}
	if keys := byAlias.Keys(); !slices.Equal(keys, []string{"COOK_CYCTIME"}) {
		t.Errorf("Keys() = %v, want [COOK_CYCTIME]", keys)
	}

	v, err := byAlias.Get("CYCTIME")
	if err != nil {
		t.Fatalf("Get(CYCTIME) error = %v", err)
	}
	if v.Name() != "COOK_CYCTIME" || v.Value() != 5 {
		t.Errorf("Get(CYCTIME) = %s=%v", v.Name(), v.Value())
	}
}

func TestStore_AcceptUnknown(t *testing.T) {
	s := NewStore(nil)

	err := s.Accept("NOT_A_SENSOR", "1")
	if !errors.Is(err, ErrUnknownKey) {
		t.Errorf("Accept error = %v, want ErrUnknownKey", err)
	}
	if !IsDecodeError(err) {
		t.Error("unknown key should be a decode error")
	}
	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0", s.Len())
	}
}

func TestStore_AcceptDecodeFailureKeepsOld(t *testing.T) {
	s := NewStore(nil)
	if err := s.Accept("TIMER_CURR", "01:00:00"); err != nil {
		t.Fatal(err)
	}
	if err := s.Accept("TIMER_CURR", "bad"); err == nil {
		t.Fatal("Accept(bad timer) error = nil")
	}
	v, _ := s.Get("TIMER_CURR")
	if v.Value() != "01:00:00" {
		t.Errorf("TIMER_CURR = %v, want 01:00:00", v.Value())
	}
}

func TestStore_GetMissing(t *testing.T) {
	s := NewStore(nil)

	_, err := s.Get("FOOD3_TEMP")
	if !IsNotFoundError(err) {
		t.Errorf("Get error = %v, want not found", err)
	}
	if !errors.Is(err, ErrSensorNotFound) {
		t.Error("Get error should wrap ErrSensorNotFound")
	}
	if s.Has("FOOD3_TEMP") {
		t.Error("Has() = true for a missing sensor")
	}
}

func TestStore_EmptyValueIsPresent(t *testing.T) {
	s := NewStore(nil)
	if err := s.Accept("FOOD2_NAME", ""); err != nil {
		t.Fatal(err)
	}

	v, err := s.Get("FOOD2_NAME")
	if err != nil {
		t.Fatalf("Get error = %v, want present", err)
	}
	if v.Value() != "" {
		t.Errorf("Value() = %q, want empty", v.Value())
	}
}

func TestStore_CloneIsolation(t *testing.T) {
	orig := NewStore(nil)
	if err := orig.Accept("COOK_TEMP", "2500"); err != nil {
		t.Fatal(err)
	}

	clone := orig.Clone()
	if !clone.Equal(orig) {
		t.Fatal("clone is not equal to original")
	}

	if err := clone.Accept("COOK_TEMP", "2600"); err != nil {
		t.Fatal(err)
	}
	if err := clone.Accept("FOOD1_TEMP", "1000"); err != nil {
		t.Fatal(err)
	}

	v, _ := orig.Get("COOK_TEMP")
	if f, _ := v.Float(); f != 250.0 {
		t.Errorf("original COOK_TEMP = %v, want 250.0", f)
	}
	if orig.Has("FOOD1_TEMP") {
		t.Error("original gained FOOD1_TEMP from its clone")
	}
	if orig.Equal(clone) {
		t.Error("Equal() = true after the clone changed")
	}
}

func TestStore_String(t *testing.T) {
	s := NewStore(nil)
	_ = s.Accept("OUTPUT_PERCENT", "40")
	_ = s.Accept("COOK_TEMP", "2255")
	_ = s.Accept("COOK_STATUS", "0")

	want := strings.Join([]string{"COOK_STATUS=ok", "COOK_TEMP=225.5", "OUTPUT_PERCENT=40"}, "\n\t")
	if got := s.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestStore_ChangedSince(t *testing.T) {
	prev := NewStore(nil)
	_ = prev.Accept("COOK_TEMP", "2255")
	_ = prev.Accept("OUTPUT_PERCENT", "40")

	next := prev.Clone()
	_ = next.Accept("OUTPUT_PERCENT", "55")
	_ = next.Accept("FAN_SHORTED", "0")

	got := next.ChangedSince(prev)
	want := []string{"FAN_SHORTED", "OUTPUT_PERCENT"}
	if !slices.Equal(got, want) {
		t.Errorf("ChangedSince() = %v, want %v", got, want)
	}

	if all := next.ChangedSince(nil); len(all) != next.Len() {
		t.Errorf("ChangedSince(nil) = %v, want every key", all)
	}
}
