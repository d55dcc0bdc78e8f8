package lua

import (
	"context"
	"log"
	"math"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// session binds the registered Go functions to one script execution, so each
// routine sees its own cancellation context.
type session struct {
	engine *Engine
	ctx    context.Context
}

// register exposes the lighting API to the given Lua state.
func (s *session) register(L *lua.LState) {
	L.SetGlobal("set_power", L.NewFunction(s.luaSetPower))
	L.SetGlobal("set_brightness", L.NewFunction(s.luaSetBrightness))
	L.SetGlobal("set_temperature", L.NewFunction(s.luaSetTemperature))
	L.SetGlobal("apply_preset", L.NewFunction(s.luaApplyPreset))
	L.SetGlobal("sleep", L.NewFunction(s.luaSleep))
	L.SetGlobal("should_stop", L.NewFunction(s.luaShouldStop))
	L.SetGlobal("pulse", L.NewFunction(s.luaPulse))
	L.SetGlobal("fade_brightness", L.NewFunction(s.luaFadeBrightness))
	L.SetGlobal("fade_temperature", L.NewFunction(s.luaFadeTemperature))
	L.SetGlobal("print", L.NewFunction(luaPrint))
}

func luaPrint(L *lua.LState) int {
	log.Printf("[Lua] %s", L.ToString(1))
	return 0
}

func (s *session) luaSetPower(L *lua.LState) int {
	if err := s.engine.controller.SetPower(s.ctx, L.ToBool(1)); err != nil {
		log.Printf("[Lua] set_power failed: %v", err)
	}
	return 0
}

func (s *session) luaSetBrightness(L *lua.LState) int {
	if err := s.engine.controller.SetBrightness(s.ctx, L.ToInt(1)); err != nil {
		log.Printf("[Lua] set_brightness failed: %v", err)
	}
	return 0
}

func (s *session) luaSetTemperature(L *lua.LState) int {
	if err := s.engine.controller.SetTemperature(s.ctx, L.ToInt(1)); err != nil {
		log.Printf("[Lua] set_temperature failed: %v", err)
	}
	return 0
}

func (s *session) luaApplyPreset(L *lua.LState) int {
	label := L.ToString(1)
	if s.engine.lookupPreset == nil {
		log.Printf("[Lua] apply_preset(%q): no preset lookup configured", label)
		return 0
	}
	p, ok := s.engine.lookupPreset(label)
	if !ok {
		log.Printf("[Lua] apply_preset(%q): preset not found", label)
		return 0
	}
	if err := s.engine.controller.ApplyPreset(s.ctx, p); err != nil {
		log.Printf("[Lua] apply_preset(%q) failed: %v", label, err)
	}
	return 0
}

// cancellableSleep sleeps for a duration but wakes immediately if the
// routine is cancelled. Returns true if cancelled.
func cancellableSleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return false
	case <-ctx.Done():
		return true
	}
}

func (s *session) luaSleep(L *lua.LState) int {
	ms := L.ToInt(1)
	cancellableSleep(s.ctx, time.Duration(ms)*time.Millisecond)
	return 0
}

func (s *session) luaShouldStop(L *lua.LState) int {
	select {
	case <-s.ctx.Done():
		L.Push(lua.LBool(true))
	default:
		L.Push(lua.LBool(false))
	}
	return 1
}

// luaPulse performs one smooth brightness pulse from 1% to 100% and back
// over the specified duration.
func (s *session) luaPulse(L *lua.LState) int {
	durationMs := L.ToInt(1)
	duration := time.Duration(durationMs) * time.Millisecond

	steps := 50
	stepDuration := duration / time.Duration(2*steps)

	for i := 1; i <= steps; i++ {
		s.setBrightnessStep(i * 2)
		if cancellableSleep(s.ctx, stepDuration) {
			return 0
		}
	}
	for i := steps; i >= 1; i-- {
		s.setBrightnessStep(i * 2)
		if cancellableSleep(s.ctx, stepDuration) {
			return 0
		}
	}
	return 0
}

// luaFadeBrightness transitions brightness linearly between two percentages
// over a duration.
func (s *session) luaFadeBrightness(L *lua.LState) int {
	from := L.ToInt(1)
	to := L.ToInt(2)
	durationMs := L.ToInt(3)

	s.fade(from, to, durationMs, func(v int) {
		s.setBrightnessStep(v)
	})
	return 0
}

// luaFadeTemperature transitions color temperature linearly between two
// Kelvin values over a duration. Steps land on 100 K boundaries, which is
// what the hardware accepts.
func (s *session) luaFadeTemperature(L *lua.LState) int {
	from := L.ToInt(1)
	to := L.ToInt(2)
	durationMs := L.ToInt(3)

	s.fade(from, to, durationMs, func(v int) {
		rounded := int(math.Round(float64(v)/100)) * 100
		if err := s.engine.controller.SetTemperature(s.ctx, rounded); err != nil {
			log.Printf("[Lua] fade_temperature step failed: %v", err)
		}
	})
	return 0
}

func (s *session) setBrightnessStep(v int) {
	if err := s.engine.controller.SetBrightness(s.ctx, v); err != nil {
		log.Printf("[Lua] brightness step failed: %v", err)
	}
}

// fade runs a linear interpolation between from and to, invoking apply for
// each intermediate value. The final value is always applied exactly.
func (s *session) fade(from, to, durationMs int, apply func(int)) {
	duration := time.Duration(durationMs) * time.Millisecond

	steps := 20
	stepDuration := duration / time.Duration(steps)

	for i := 0; i < steps; i++ {
		progress := float64(i) / float64(steps)
		v := int(math.Round(float64(from) + progress*float64(to-from)))
		apply(v)
		if cancellableSleep(s.ctx, stepDuration) {
			return
		}
	}
	apply(to)
}
