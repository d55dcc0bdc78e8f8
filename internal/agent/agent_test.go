package agent

import (
	"context"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"litra-controller/internal/core"
	"litra-controller/internal/litra"
	"litra-controller/internal/lua"
	"litra-controller/internal/preset"
	"litra-controller/internal/scheduler"
)

// fakeDevice records calls and replays scripted results.
type fakeDevice struct {
	calls []string

	queryResult litra.DeviceState
	queryErr    error
	failWith    error
}

func (f *fakeDevice) QueryState(ctx context.Context) (litra.DeviceState, error) {
	f.calls = append(f.calls, "query")
	return f.queryResult, f.queryErr
}

func (f *fakeDevice) SetPower(ctx context.Context, on bool) error {
	if on {
		f.calls = append(f.calls, "power on")
	} else {
		f.calls = append(f.calls, "power off")
	}
	return f.failWith
}

func (f *fakeDevice) Toggle(ctx context.Context) error {
	f.calls = append(f.calls, "toggle")
	return f.failWith
}

func (f *fakeDevice) SetBrightness(ctx context.Context, percent int) error {
	f.calls = append(f.calls, "brightness "+strconv.Itoa(percent))
	return f.failWith
}

func (f *fakeDevice) SetTemperature(ctx context.Context, kelvin int) error {
	f.calls = append(f.calls, "temperature "+strconv.Itoa(kelvin))
	return f.failWith
}

func (f *fakeDevice) ApplyPreset(ctx context.Context, p litra.Preset) error {
	f.calls = append(f.calls, "preset "+p.Label)
	return f.failWith
}

func (f *fakeDevice) Version(ctx context.Context) (string, error) {
	f.calls = append(f.calls, "version")
	return "litra 0.1.0", f.failWith
}

// newTestAgent builds an agent wired to a fake device, with no server or
// MQTT client attached.
func newTestAgent(t *testing.T, dev *fakeDevice) *Agent {
	t.Helper()
	dir := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	a := &Agent{
		ctx:            ctx,
		cancel:         cancel,
		state:          core.NewState(),
		eventBus:       core.NewEventBus(),
		commandChannel: make(core.CommandChannel, 20),
		device:         dev,
	}
	a.presets = preset.NewManager(filepath.Join(dir, "presets.json"))
	a.luaEngine = lua.NewEngine(dev, filepath.Join(dir, "routines"), a.eventBus, func(label string) (litra.Preset, bool) {
		e, ok := a.presets.Get(label)
		return e.Preset, ok
	})
	a.scheduler = scheduler.NewScheduler(a.commandChannel, filepath.Join(dir, "schedules.json"))
	return a
}

func TestRoundTemperature(t *testing.T) {
	cases := []struct {
		in, want int
	}{
		{4500, 4500},
		{4449, 4400},
		{4450, 4500},
		{4551, 4600},
		{2700, 2700},
		{6500, 6500},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, roundTemperature(tc.in), "roundTemperature(%d)", tc.in)
	}
}

func TestSetPowerCommand(t *testing.T) {
	dev := &fakeDevice{}
	a := newTestAgent(t, dev)

	a.handleCommand(core.Command{Type: core.CmdSetPower, Payload: map[string]interface{}{"isOn": true}})

	require.Equal(t, []string{"power on"}, dev.calls)
	snap := a.state.Clone()
	assert.Equal(t, litra.PowerOn, snap.Power)
}

func TestSetBrightnessClampsBeforeInvoking(t *testing.T) {
	dev := &fakeDevice{}
	a := newTestAgent(t, dev)

	a.handleCommand(core.Command{Type: core.CmdSetBrightness, Payload: map[string]interface{}{"value": float64(150)}})

	require.Equal(t, []string{"brightness 100"}, dev.calls)
	assert.Equal(t, 100, a.state.Clone().Brightness)
}

func TestSetTemperatureRoundsThenClamps(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{4444, "temperature 4400"},
		{4450, "temperature 4500"},
		{9999, "temperature 6500"},
		{1000, "temperature 2700"},
	}
	for _, tc := range cases {
		dev := &fakeDevice{}
		a := newTestAgent(t, dev)
		a.handleCommand(core.Command{Type: core.CmdSetTemperature, Payload: map[string]interface{}{"value": tc.in}})
		require.Equal(t, []string{tc.want}, dev.calls, "input %v", tc.in)
	}
}

func TestValueCommandsWithoutValueAreDropped(t *testing.T) {
	dev := &fakeDevice{}
	a := newTestAgent(t, dev)
	a.state.SetBrightness(60)
	a.state.SetTemperature(5000)

	a.handleCommand(core.Command{Type: core.CmdSetBrightness, Payload: map[string]interface{}{}})
	a.handleCommand(core.Command{Type: core.CmdSetTemperature, Payload: map[string]interface{}{"value": "warm"}})

	// Neither frame reaches the device, and the cached values are not re-sent.
	assert.Empty(t, dev.calls)
	snap := a.state.Clone()
	assert.Equal(t, 60, snap.Brightness)
	assert.Equal(t, 5000, snap.Temperature)
}

func TestSetPowerFailureKeepsState(t *testing.T) {
	dev := &fakeDevice{failWith: litra.ErrToolUnavailable}
	a := newTestAgent(t, dev)
	a.state.SetToolAvailable(true)

	a.handleCommand(core.Command{Type: core.CmdSetPower, Payload: map[string]interface{}{"isOn": true}})

	snap := a.state.Clone()
	assert.Equal(t, litra.PowerUnknown, snap.Power)
	assert.False(t, snap.ToolAvailable)
}

func TestApplyPresetBuiltIn(t *testing.T) {
	dev := &fakeDevice{}
	a := newTestAgent(t, dev)

	a.handleCommand(core.Command{Type: core.CmdApplyPreset, Payload: map[string]interface{}{"preset": "Bright & Cool"}})

	require.Equal(t, []string{"preset Bright & Cool"}, dev.calls)
	snap := a.state.Clone()
	assert.Equal(t, litra.PowerOn, snap.Power)
	assert.Equal(t, 100, snap.Brightness)
	assert.Equal(t, 6500, snap.Temperature)
}

func TestApplyPresetUnknownDoesNotTouchDevice(t *testing.T) {
	dev := &fakeDevice{}
	a := newTestAgent(t, dev)

	a.handleCommand(core.Command{Type: core.CmdApplyPreset, Payload: map[string]interface{}{"preset": "nope"}})

	assert.Empty(t, dev.calls)
}

func TestQueryStateUpdatesView(t *testing.T) {
	dev := &fakeDevice{queryResult: litra.DeviceState{
		Name: "Litra Glow", Power: litra.PowerOn, Brightness: 70, Temperature: 5600,
	}}
	a := newTestAgent(t, dev)

	a.handleCommand(core.Command{Type: core.CmdQueryState})

	snap := a.state.Clone()
	assert.True(t, snap.ToolAvailable)
	assert.Equal(t, "Litra Glow", snap.DeviceName)
	assert.Equal(t, litra.PowerOn, snap.Power)
	assert.Equal(t, 70, snap.Brightness)
	assert.Equal(t, 5600, snap.Temperature)
}

func TestQueryStateToolUnavailable(t *testing.T) {
	dev := &fakeDevice{queryErr: litra.ErrToolUnavailable}
	a := newTestAgent(t, dev)
	a.state.SetToolAvailable(true)

	a.refreshState()

	assert.False(t, a.state.Clone().ToolAvailable)
}

func TestQueryStateParseErrorMarksPowerUnknown(t *testing.T) {
	dev := &fakeDevice{queryErr: &litra.ParseError{Output: "garbled"}}
	a := newTestAgent(t, dev)
	a.state.SetBrightness(60)
	a.state.SetTemperature(5000)
	a.state.SetPower(true)

	a.refreshState()

	snap := a.state.Clone()
	assert.Equal(t, litra.PowerUnknown, snap.Power)
	// Last known numbers survive as display hints.
	assert.Equal(t, 60, snap.Brightness)
	assert.Equal(t, 5000, snap.Temperature)
}

func TestSaveAndDeletePresetCommands(t *testing.T) {
	dev := &fakeDevice{}
	a := newTestAgent(t, dev)

	a.handleCommand(core.Command{Type: core.CmdSavePreset, Payload: map[string]interface{}{
		"label": "Desk", "brightness": float64(40), "temperature": float64(3500),
	}})

	entry, ok := a.presets.Get("Desk")
	require.True(t, ok)
	assert.Equal(t, 40, entry.Brightness)
	assert.Equal(t, 3500, entry.Temperature)

	a.handleCommand(core.Command{Type: core.CmdDeletePreset, Payload: map[string]interface{}{"id": entry.ID}})
	_, ok = a.presets.Get("Desk")
	assert.False(t, ok)
}

func TestRoutineCodeLifecycleCommands(t *testing.T) {
	dev := &fakeDevice{}
	a := newTestAgent(t, dev)

	a.handleCommand(core.Command{Type: core.CmdSaveRoutineCode, Payload: map[string]interface{}{
		"name": "blink", "code": "set_power(true)",
	}})

	code, err := a.luaEngine.RoutineCode("blink")
	require.NoError(t, err)
	assert.Equal(t, "set_power(true)", code)

	a.handleCommand(core.Command{Type: core.CmdDeleteRoutine, Payload: map[string]interface{}{"name": "blink"}})
	_, err = a.luaEngine.RoutineCode("blink")
	assert.Error(t, err)
}
