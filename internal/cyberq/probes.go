package cyberq

// Probe identifies one of the controller's four temperature channels
type Probe struct {
	Key   string // wire prefix: COOK, FOOD1..FOOD3
	Label string
}

// Probes lists the pit probe followed by the three food probes
var Probes = []Probe{
	{Key: "COOK", Label: "Pit"},
	{Key: "FOOD1", Label: "Food 1"},
	{Key: "FOOD2", Label: "Food 2"},
	{Key: "FOOD3", Label: "Food 3"},
}

func (p Probe) NameKey() string   { return p.Key + "_NAME" }
func (p Probe) TempKey() string   { return p.Key + "_TEMP" }
func (p Probe) SetKey() string    { return p.Key + "_SET" }
func (p Probe) StatusKey() string { return p.Key + "_STATUS" }

// ProbeReading is a probe's state as found in one snapshot
type ProbeReading struct {
	Probe       Probe
	Name        string
	Temperature float64
	HasTemp     bool // false when unplugged or not yet reported
	Setpoint    float64
	HasSetpoint bool
	Status      string
	StatusIndex int
	HasStatus   bool
}

// DisplayName prefers the name configured on the controller
func (r ProbeReading) DisplayName() string {
	if r.Name != "" {
		return r.Name
	}
	return r.Probe.Label
}

// ReadProbes collects the readings of every probe in the snapshot
func ReadProbes(store *Store) []ProbeReading {
	readings := make([]ProbeReading, 0, len(Probes))
	for _, p := range Probes {
		r := ProbeReading{Probe: p}
		if v, err := store.Get(p.NameKey()); err == nil {
			r.Name, _ = v.Value().(string)
		}
		if v, err := store.Get(p.TempKey()); err == nil {
			r.Temperature, r.HasTemp = v.Float()
		}
		if v, err := store.Get(p.SetKey()); err == nil {
			r.Setpoint, r.HasSetpoint = v.Float()
		}
		if v, err := store.Get(p.StatusKey()); err == nil {
			r.StatusIndex, r.HasStatus = v.Index()
			r.Status, _ = v.Label()
		}
		readings = append(readings, r)
	}
	return readings
}
