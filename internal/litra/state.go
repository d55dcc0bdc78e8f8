package litra

// Valid attribute ranges for the Litra hardware.
const (
	MinBrightness  = 0
	MaxBrightness  = 100
	MinTemperature = 2700
	MaxTemperature = 6500
)

// PowerState is the reported power of the light. Unknown is used when the
// status output could not be interpreted.
type PowerState int

const (
	PowerUnknown PowerState = iota
	PowerOff
	PowerOn
)

func (p PowerState) String() string {
	switch p {
	case PowerOn:
		return "on"
	case PowerOff:
		return "off"
	default:
		return "unknown"
	}
}

// DeviceState is a snapshot of the light as reported by the tool. It is
// stale the moment an external change occurs; never trust a cached copy.
type DeviceState struct {
	Name        string
	Power       PowerState
	Brightness  int
	Temperature int
}

// Preset is a named, fixed combination of brightness and color temperature.
type Preset struct {
	Label       string `json:"label"`
	Brightness  int    `json:"brightness"`
	Temperature int    `json:"temperature"`
}

// ClampBrightness bounds a brightness percentage to [0, 100].
func ClampBrightness(pct int) int {
	return clampInt(pct, MinBrightness, MaxBrightness)
}

// ClampTemperature bounds a color temperature to [2700, 6500] Kelvin.
func ClampTemperature(kelvin int) int {
	return clampInt(kelvin, MinTemperature, MaxTemperature)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
