package lua

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"litra-controller/internal/core"
	"litra-controller/internal/litra"
)

// recordingController captures every device call a routine makes.
type recordingController struct {
	mu    sync.Mutex
	calls []string
}

func (c *recordingController) record(call string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, call)
}

func (c *recordingController) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

func (c *recordingController) SetPower(_ context.Context, on bool) error {
	if on {
		c.record("power on")
	} else {
		c.record("power off")
	}
	return nil
}

func (c *recordingController) SetBrightness(_ context.Context, percent int) error {
	c.record("brightness")
	return nil
}

func (c *recordingController) SetTemperature(_ context.Context, kelvin int) error {
	c.record("temperature")
	return nil
}

func (c *recordingController) ApplyPreset(_ context.Context, p litra.Preset) error {
	c.record("preset " + p.Label)
	return nil
}

func TestExecuteStringDrivesController(t *testing.T) {
	ctrl := &recordingController{}
	e := NewEngine(ctrl, t.TempDir(), core.NewEventBus(), nil)
	defer close(e.cmdChan)

	e.ExecuteString(`
		set_power(true)
		set_brightness(40)
		set_temperature(3400)
		set_power(false)
	`)

	assert.Eventually(t, func() bool {
		calls := ctrl.snapshot()
		return len(calls) == 4 && calls[0] == "power on" && calls[3] == "power off"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestApplyPresetLookup(t *testing.T) {
	ctrl := &recordingController{}
	lookup := func(label string) (litra.Preset, bool) {
		if label == "Warm & Dim" {
			return litra.Preset{Label: label, Brightness: 30, Temperature: 2700}, true
		}
		return litra.Preset{}, false
	}
	e := NewEngine(ctrl, t.TempDir(), core.NewEventBus(), lookup)
	defer close(e.cmdChan)

	e.ExecuteString(`
		apply_preset("Warm & Dim")
		apply_preset("nope")
	`)

	assert.Eventually(t, func() bool {
		calls := ctrl.snapshot()
		return len(calls) == 1 && calls[0] == "preset Warm & Dim"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStopCancelsRunningRoutine(t *testing.T) {
	ctrl := &recordingController{}
	e := NewEngine(ctrl, t.TempDir(), core.NewEventBus(), nil)
	defer close(e.cmdChan)

	e.ExecuteString(`
		while not should_stop() do
			set_brightness(50)
			sleep(20)
		end
	`)

	require.Eventually(t, func() bool {
		return len(ctrl.snapshot()) > 0
	}, 2*time.Second, 10*time.Millisecond)

	e.StopCurrentRoutine()

	// After the stop settles, no further device calls happen.
	var settled int
	require.Eventually(t, func() bool {
		n := len(ctrl.snapshot())
		if n == settled {
			return true
		}
		settled = n
		return false
	}, 3*time.Second, 100*time.Millisecond)
}

func TestRoutineChangedEventsPublished(t *testing.T) {
	ctrl := &recordingController{}
	eb := core.NewEventBus()
	sub := eb.Subscribe(core.RoutineChangedEvent)

	e := NewEngine(ctrl, t.TempDir(), eb, nil)
	defer close(e.cmdChan)

	e.ExecuteString(`set_power(true)`)

	var got []string
	require.Eventually(t, func() bool {
		for {
			select {
			case ev := <-sub:
				payload := ev.Payload.(map[string]interface{})
				got = append(got, payload["running"].(string))
			default:
				return len(got) >= 2
			}
		}
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, "inline routine", got[0])
	assert.Equal(t, "", got[1])
}

func TestSanitizeFilename(t *testing.T) {
	name, err := sanitizeFilename("sunrise.lua")
	require.NoError(t, err)
	assert.Equal(t, "sunrise.lua", name)

	// Bare names get the extension appended.
	name, err = sanitizeFilename("sunrise")
	require.NoError(t, err)
	assert.Equal(t, "sunrise.lua", name)

	for _, bad := range []string{"", ".lua", "../escape.lua", "a/b/../../x.lua"} {
		name, err := sanitizeFilename(bad)
		if err == nil {
			// Path components must have been stripped.
			assert.NotContains(t, name, "/")
			assert.NotContains(t, name, "..")
		}
	}
}

func TestRoutineFileLifecycle(t *testing.T) {
	e := NewEngine(&recordingController{}, t.TempDir(), nil, nil)
	defer close(e.cmdChan)

	require.NoError(t, e.SaveRoutineCode("evening.lua", `set_power(true)`))

	list, err := e.RoutineList()
	require.NoError(t, err)
	assert.Equal(t, []string{"evening.lua"}, list)

	code, err := e.RoutineCode("evening.lua")
	require.NoError(t, err)
	assert.Equal(t, `set_power(true)`, code)

	// A bare name addresses the same file.
	code, err = e.RoutineCode("evening")
	require.NoError(t, err)
	assert.Equal(t, `set_power(true)`, code)

	require.NoError(t, e.DeleteRoutine("evening.lua"))
	list, err = e.RoutineList()
	require.NoError(t, err)
	assert.Empty(t, list)
}
