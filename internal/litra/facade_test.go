package litra

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner records every invocation and replays canned results in order.
// A nil script entry means "exit 0, empty output".
type fakeRunner struct {
	calls  [][]string
	script []fakeStep
}

type fakeStep struct {
	res Result
	err error
}

func (r *fakeRunner) Run(_ context.Context, args ...string) (Result, error) {
	r.calls = append(r.calls, args)
	if len(r.script) == 0 {
		return Result{}, nil
	}
	step := r.script[0]
	r.script = r.script[1:]
	return step.res, step.err
}

func TestSetBrightnessClampsInput(t *testing.T) {
	tests := []struct {
		name  string
		input int
		want  string
	}{
		{"below range", -5, "0"},
		{"lower bound", 0, "0"},
		{"in range", 42, "42"},
		{"upper bound", 100, "100"},
		{"above range", 150, "100"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{}
			f := NewFacade(runner, 0, 0)

			require.NoError(t, f.SetBrightness(context.Background(), tt.input))
			require.Len(t, runner.calls, 1)
			assert.Equal(t, []string{"brightness", "--percentage", tt.want}, runner.calls[0])
		})
	}
}

func TestSetTemperatureClampsInput(t *testing.T) {
	tests := []struct {
		name  string
		input int
		want  string
	}{
		{"below range", 1000, "2700"},
		{"lower bound", 2700, "2700"},
		{"in range", 4500, "4500"},
		{"upper bound", 6500, "6500"},
		{"above range", 9000, "6500"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{}
			f := NewFacade(runner, 0, 0)

			require.NoError(t, f.SetTemperature(context.Background(), tt.input))
			require.Len(t, runner.calls, 1)
			assert.Equal(t, []string{"temperature", "--value", tt.want}, runner.calls[0])
		})
	}
}

func TestSetPowerAlwaysInvokes(t *testing.T) {
	runner := &fakeRunner{}
	f := NewFacade(runner, 0, 0)

	// Repeated identical calls must each reach the tool; the facade never
	// suppresses based on an assumed current state.
	require.NoError(t, f.SetPower(context.Background(), true))
	require.NoError(t, f.SetPower(context.Background(), true))
	require.NoError(t, f.SetPower(context.Background(), false))

	require.Len(t, runner.calls, 3)
	assert.Equal(t, []string{"on"}, runner.calls[0])
	assert.Equal(t, []string{"on"}, runner.calls[1])
	assert.Equal(t, []string{"off"}, runner.calls[2])
}

func TestApplyPresetIssuesStepsInOrder(t *testing.T) {
	runner := &fakeRunner{}
	f := NewFacade(runner, 0, 0)

	p := Preset{Label: "Medium & Neutral", Brightness: 50, Temperature: 4500}
	require.NoError(t, f.ApplyPreset(context.Background(), p))

	require.Len(t, runner.calls, 3)
	assert.Equal(t, []string{"on"}, runner.calls[0])
	assert.Equal(t, []string{"brightness", "--percentage", "50"}, runner.calls[1])
	assert.Equal(t, []string{"temperature", "--value", "4500"}, runner.calls[2])
}

func TestApplyPresetAbortsOnFirstFailure(t *testing.T) {
	runner := &fakeRunner{script: []fakeStep{
		{}, // power on succeeds
		{res: Result{ExitCode: 1, Stderr: "device write failed"}},
	}}
	f := NewFacade(runner, 0, 0)

	err := f.ApplyPreset(context.Background(), Preset{Label: "Warm & Dim", Brightness: 30, Temperature: 2700})

	// The failing step's error surfaces and the temperature step never runs.
	var invErr *InvocationError
	require.ErrorAs(t, err, &invErr)
	assert.Equal(t, 1, invErr.ExitCode)
	assert.Equal(t, []string{"brightness", "--percentage", "30"}, invErr.Args)
	require.Len(t, runner.calls, 2)
}

func TestApplyPresetAbortsWhenPowerOnFails(t *testing.T) {
	runner := &fakeRunner{script: []fakeStep{
		{err: ErrToolUnavailable},
	}}
	f := NewFacade(runner, 0, 0)

	err := f.ApplyPreset(context.Background(), Preset{Label: "Bright & Cool", Brightness: 100, Temperature: 6500})

	assert.ErrorIs(t, err, ErrToolUnavailable)
	assert.Len(t, runner.calls, 1)
}

func TestQueryStateToolUnavailable(t *testing.T) {
	runner := &fakeRunner{script: []fakeStep{{err: ErrToolUnavailable}}}
	f := NewFacade(runner, 0, 0)

	_, err := f.QueryState(context.Background())
	assert.ErrorIs(t, err, ErrToolUnavailable)
}

func TestQueryStateNoDevice(t *testing.T) {
	runner := &fakeRunner{script: []fakeStep{
		{res: Result{Stdout: "No devices found\n"}},
	}}
	f := NewFacade(runner, 0, 0)

	_, err := f.QueryState(context.Background())
	assert.ErrorIs(t, err, ErrNoDevice)
}

func TestQueryStateWellFormedOutput(t *testing.T) {
	runner := &fakeRunner{script: []fakeStep{
		{res: Result{Stdout: "Device: Litra Glow | Power: on | Brightness: 50% | Temp: 4500K\n"}},
	}}
	f := NewFacade(runner, 0, 0)

	st, err := f.QueryState(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DeviceState{Name: "Litra Glow", Power: PowerOn, Brightness: 50, Temperature: 4500}, st)
}

func TestInvocationFailureCarriesExitCode(t *testing.T) {
	runner := &fakeRunner{script: []fakeStep{
		{res: Result{ExitCode: 2, Stderr: "usb error"}},
	}}
	f := NewFacade(runner, 0, 0)

	err := f.SetPower(context.Background(), true)

	var invErr *InvocationError
	require.ErrorAs(t, err, &invErr)
	assert.Equal(t, 2, invErr.ExitCode)
	assert.Contains(t, invErr.Output, "usb error")
}

func TestNonZeroExitMentioningNoDeviceMapsToErrNoDevice(t *testing.T) {
	runner := &fakeRunner{script: []fakeStep{
		{res: Result{ExitCode: 1, Stderr: "Error: no device matching criteria\n"}},
	}}
	f := NewFacade(runner, 0, 0)

	err := f.SetBrightness(context.Background(), 50)
	assert.ErrorIs(t, err, ErrNoDevice)
}

func TestVersionTrimsOutput(t *testing.T) {
	runner := &fakeRunner{script: []fakeStep{
		{res: Result{Stdout: "litra 1.4.0\n"}},
	}}
	f := NewFacade(runner, 0, 0)

	v, err := f.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "litra 1.4.0", v)
	require.Len(t, runner.calls, 1)
	assert.Equal(t, []string{"--version"}, runner.calls[0])
}
