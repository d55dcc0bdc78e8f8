// Package litra translates lighting intents into invocations of the
// external litra command-line tool, and the tool's results into typed
// errors the rest of the agent can inspect.
package litra

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

// Facade owns all communication with the external tool. Invocations are
// serialized (one in flight per device) and rate limited; no retries are
// performed, one intent maps to one invocation per attribute.
type Facade struct {
	runner  Runner
	limiter *rate.Limiter
	mu      sync.Mutex
}

// NewFacade wraps a runner. invocationsPerSec/burst configure the rate
// limiter; a non-positive rate disables limiting.
func NewFacade(runner Runner, invocationsPerSec float64, burst int) *Facade {
	f := &Facade{runner: runner}
	if invocationsPerSec > 0 {
		if burst < 1 {
			burst = 1
		}
		f.limiter = rate.NewLimiter(rate.Limit(invocationsPerSec), burst)
	}
	return f
}

// invoke runs one tool invocation under the serialization lock and maps a
// non-zero exit to a typed error.
func (f *Facade) invoke(ctx context.Context, args ...string) (Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return Result{}, err
		}
	}

	res, err := f.runner.Run(ctx, args...)
	if err != nil {
		return res, err
	}
	if !res.Succeeded() {
		return res, classifyFailure(args, res)
	}
	return res, nil
}

// QueryState invokes the device listing subcommand and parses its output.
func (f *Facade) QueryState(ctx context.Context) (DeviceState, error) {
	res, err := f.invoke(ctx, "devices")
	if err != nil {
		return DeviceState{}, err
	}
	return ParseDeviceState(res.Stdout)
}

// SetPower turns the light on or off. The command is always issued; no
// locally cached power state is consulted.
func (f *Facade) SetPower(ctx context.Context, on bool) error {
	sub := "off"
	if on {
		sub = "on"
	}
	_, err := f.invoke(ctx, sub)
	return err
}

// Toggle flips the power state on the device itself.
func (f *Facade) Toggle(ctx context.Context) error {
	_, err := f.invoke(ctx, "toggle")
	return err
}

// SetBrightness clamps the percentage to [0, 100] and applies it.
func (f *Facade) SetBrightness(ctx context.Context, percent int) error {
	percent = ClampBrightness(percent)
	_, err := f.invoke(ctx, "brightness", "--percentage", strconv.Itoa(percent))
	return err
}

// SetTemperature clamps the temperature to [2700, 6500] K and applies it.
func (f *Facade) SetTemperature(ctx context.Context, kelvin int) error {
	kelvin = ClampTemperature(kelvin)
	_, err := f.invoke(ctx, "temperature", "--value", strconv.Itoa(kelvin))
	return err
}

// ApplyPreset issues power-on, brightness, temperature in that order. The
// first failing step aborts the rest and its error is returned; steps that
// already applied are not rolled back (the tool has no multi-set command).
func (f *Facade) ApplyPreset(ctx context.Context, p Preset) error {
	if err := f.SetPower(ctx, true); err != nil {
		return err
	}
	if err := f.SetBrightness(ctx, p.Brightness); err != nil {
		return err
	}
	return f.SetTemperature(ctx, p.Temperature)
}

// Version reports the tool's version string. Used as the startup probe for
// tool availability.
func (f *Facade) Version(ctx context.Context) (string, error) {
	res, err := f.invoke(ctx, "--version")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(res.Stdout), nil
}
