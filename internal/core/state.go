package core

import (
	"sync"

	"litra-controller/internal/litra"
)

// State holds the last observed view of the tool and the light. It exists so
// newly connected panels can render something immediately; it is a display
// cache, never the ground truth for device writes. QueryState output is what
// refreshes it.
type State struct {
	mu             sync.RWMutex
	ToolAvailable  bool
	DeviceName     string
	Power          litra.PowerState
	Brightness     int
	Temperature    int
	RunningRoutine string
}

// NewState creates a new State instance with sensible display defaults.
func NewState() *State {
	return &State{
		Power:       litra.PowerUnknown,
		Brightness:  50,
		Temperature: 4500,
	}
}

// Clone returns a snapshot of the current state for safe reading.
func (s *State) Clone() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return State{
		ToolAvailable:  s.ToolAvailable,
		DeviceName:     s.DeviceName,
		Power:          s.Power,
		Brightness:     s.Brightness,
		Temperature:    s.Temperature,
		RunningRoutine: s.RunningRoutine,
	}
}

// SetToolAvailable updates the external tool availability flag.
func (s *State) SetToolAvailable(available bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ToolAvailable = available
}

// SetDeviceState replaces the device view with a freshly queried snapshot.
func (s *State) SetDeviceState(ds litra.DeviceState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ToolAvailable = true
	s.DeviceName = ds.Name
	s.Power = ds.Power
	s.Brightness = ds.Brightness
	s.Temperature = ds.Temperature
}

// SetPower updates the power state.
func (s *State) SetPower(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if on {
		s.Power = litra.PowerOn
	} else {
		s.Power = litra.PowerOff
	}
}

// SetPowerUnknown marks the power state as not interpretable, keeping the
// numeric values as display hints only.
func (s *State) SetPowerUnknown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Power = litra.PowerUnknown
}

// SetBrightness updates the brightness percentage.
func (s *State) SetBrightness(percent int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Brightness = percent
}

// SetTemperature updates the color temperature in Kelvin.
func (s *State) SetTemperature(kelvin int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Temperature = kelvin
}

// SetRunningRoutine updates the running routine name.
func (s *State) SetRunningRoutine(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.RunningRoutine = name
}
