package agent

import (
	"errors"
	"log"
	"math"
	"strconv"

	"litra-controller/internal/core"
	"litra-controller/internal/litra"
	"litra-controller/internal/server"
)

// roundTemperature snaps a Kelvin value to the 100 K steps the hardware
// accepts. Clamping to the valid range happens in the facade.
func roundTemperature(kelvin int) int {
	return int(math.Round(float64(kelvin)/100)) * 100
}

// handleCommand processes one command end to end. It runs on the agent's
// single loop, so device invocations from all sources are serialized here.
func (a *Agent) handleCommand(cmd core.Command) {
	log.Printf("[Agent] Handling command: %s with payload: %v", cmd.Type, cmd.Payload)

	switch cmd.Type {
	case core.CmdSetPower:
		isOn := false
		if b, ok := cmd.Payload["isOn"].(bool); ok {
			isOn = b
		}

		// A manual power change preempts whatever routine is animating.
		a.luaEngine.StopCurrentRoutine()

		if err := a.device.SetPower(a.ctx, isOn); err != nil {
			a.reportError("setPower", err)
			return
		}
		a.state.SetPower(isOn)
		a.broadcast(server.NewMessage("power_update", map[string]bool{"isOn": isOn}))
		power := "OFF"
		if isOn {
			power = "ON"
		}
		a.mqttClient.Publish("power/state", power, true)

	case core.CmdToggle:
		a.luaEngine.StopCurrentRoutine()
		if err := a.device.Toggle(a.ctx); err != nil {
			a.reportError("toggle", err)
			return
		}
		// The toggle subcommand doesn't report the resulting state; query it.
		a.refreshState()

	case core.CmdSetBrightness:
		v, ok := cmd.Payload["value"].(float64)
		if !ok {
			log.Printf("[Agent] Dropping setBrightness command without a value")
			return
		}
		val := litra.ClampBrightness(int(v))

		if err := a.device.SetBrightness(a.ctx, val); err != nil {
			a.reportError("setBrightness", err)
			return
		}
		a.state.SetBrightness(val)
		a.broadcast(server.NewMessage("brightness_update", map[string]int{"value": val}))
		a.mqttClient.Publish("brightness/state", val, true)

	case core.CmdSetTemperature:
		v, ok := cmd.Payload["value"].(float64)
		if !ok {
			log.Printf("[Agent] Dropping setTemperature command without a value")
			return
		}
		val := litra.ClampTemperature(roundTemperature(int(v)))

		if err := a.device.SetTemperature(a.ctx, val); err != nil {
			a.reportError("setTemperature", err)
			return
		}
		a.state.SetTemperature(val)
		a.broadcast(server.NewMessage("temperature_update", map[string]int{"value": val}))
		a.mqttClient.Publish("temperature/state", val, true)

	case core.CmdApplyPreset:
		idOrLabel, _ := cmd.Payload["preset"].(string)
		entry, ok := a.presets.Get(idOrLabel)
		if !ok {
			log.Printf("[Agent] Unknown preset: %q", idOrLabel)
			a.broadcast(server.NewMessage("command_error", map[string]string{
				"op": "applyPreset", "kind": "unknown_preset", "message": "preset not found: " + idOrLabel,
			}))
			return
		}

		a.luaEngine.StopCurrentRoutine()

		if err := a.device.ApplyPreset(a.ctx, entry.Preset); err != nil {
			// Partial application is possible; report the failing step and
			// resync so panels show whatever actually stuck.
			a.reportError("applyPreset", err)
			a.refreshState()
			return
		}
		a.state.SetPower(true)
		a.state.SetBrightness(entry.Brightness)
		a.state.SetTemperature(entry.Temperature)
		a.broadcast(server.NewMessage("preset_applied", entry))
		a.broadcastDeviceState()

	case core.CmdQueryState:
		a.refreshState()

	case core.CmdRunRoutine:
		if name, ok := cmd.Payload["name"].(string); ok {
			a.luaEngine.RunRoutine(name)
		}

	case core.CmdStopRoutine:
		a.luaEngine.StopCurrentRoutine()

	case core.CmdAddSchedule:
		spec, _ := cmd.Payload["spec"].(string)
		command, _ := cmd.Payload["command"].(string)
		a.scheduler.Add(spec, command)
		a.broadcast(server.NewMessage("schedule_list", a.scheduler.GetAll()))

	case core.CmdRemoveSchedule:
		switch id := cmd.Payload["id"].(type) {
		case float64:
			a.scheduler.Remove(int(id))
			a.broadcast(server.NewMessage("schedule_list", a.scheduler.GetAll()))
		case string:
			if n, err := strconv.Atoi(id); err == nil {
				a.scheduler.Remove(n)
				a.broadcast(server.NewMessage("schedule_list", a.scheduler.GetAll()))
			}
		}

	case core.CmdSavePreset:
		label, _ := cmd.Payload["label"].(string)
		brightness := 0
		temperature := 0
		if v, ok := cmd.Payload["brightness"].(float64); ok {
			brightness = int(v)
		}
		if v, ok := cmd.Payload["temperature"].(float64); ok {
			temperature = int(v)
		}
		if _, err := a.presets.Save(label, brightness, temperature); err != nil {
			log.Printf("[Agent] Error saving preset: %v", err)
			return
		}
		a.broadcast(server.NewMessage("preset_list", a.presets.List()))

	case core.CmdDeletePreset:
		if id, ok := cmd.Payload["id"].(string); ok {
			if err := a.presets.Delete(id); err != nil {
				log.Printf("[Agent] Error deleting preset: %v", err)
				return
			}
			a.broadcast(server.NewMessage("preset_list", a.presets.List()))
		}

	case core.CmdGetRoutineCode:
		if name, ok := cmd.Payload["name"].(string); ok {
			content, err := a.luaEngine.RoutineCode(name)
			if err != nil {
				log.Printf("[Agent] Error getting routine code: %v", err)
				return
			}
			a.broadcast(server.NewMessage("routine_code", map[string]string{"name": name, "code": content}))
		}

	case core.CmdSaveRoutineCode:
		name, nameOk := cmd.Payload["name"].(string)
		code, codeOk := cmd.Payload["code"].(string)
		if nameOk && codeOk {
			if err := a.luaEngine.SaveRoutineCode(name, code); err != nil {
				log.Printf("[Agent] Error saving routine: %v", err)
				return
			}
			routines, _ := a.luaEngine.RoutineList()
			a.broadcast(server.NewMessage("routine_list", routines))
		}

	case core.CmdDeleteRoutine:
		if name, ok := cmd.Payload["name"].(string); ok {
			if err := a.luaEngine.DeleteRoutine(name); err != nil {
				log.Printf("[Agent] Error deleting routine '%s': %v", name, err)
				return
			}
			routines, _ := a.luaEngine.RoutineList()
			a.broadcast(server.NewMessage("routine_list", routines))
		}

	default:
		log.Printf("[Agent] Unknown command type: %s", cmd.Type)
	}
}

// refreshState queries the device and updates the shared view. Failures
// degrade the display; they never crash the agent.
func (a *Agent) refreshState() {
	ds, err := a.device.QueryState(a.ctx)
	if err != nil {
		switch {
		case errors.Is(err, litra.ErrToolUnavailable):
			a.state.SetToolAvailable(false)
			a.broadcastToolStatus()
		case errors.Is(err, litra.ErrNoDevice):
			a.state.SetToolAvailable(true)
			a.state.SetPowerUnknown()
			a.broadcast(server.NewMessage("command_error", map[string]string{
				"op": "queryState", "kind": "no_device", "message": "no Litra device attached",
			}))
		default:
			var parseErr *litra.ParseError
			if errors.As(err, &parseErr) {
				// Unknown state: keep the numbers as hints, mark power unknown.
				a.state.SetPowerUnknown()
			}
			log.Printf("[Agent] State refresh failed: %v", err)
		}
		return
	}

	a.state.SetDeviceState(ds)
	a.broadcastDeviceState()
}

// reportError maps a facade error onto the taxonomy the panel renders.
func (a *Agent) reportError(op string, err error) {
	kind := "unknown"
	var invErr *litra.InvocationError
	var parseErr *litra.ParseError
	switch {
	case errors.Is(err, litra.ErrToolUnavailable):
		kind = "tool_unavailable"
		a.state.SetToolAvailable(false)
		a.broadcastToolStatus()
	case errors.Is(err, litra.ErrNoDevice):
		kind = "no_device"
	case errors.As(err, &invErr):
		kind = "invocation_failed"
	case errors.As(err, &parseErr):
		kind = "parse_error"
	}

	log.Printf("[Agent] %s failed (%s): %v", op, kind, err)
	a.broadcast(server.NewMessage("command_error", map[string]string{
		"op":      op,
		"kind":    kind,
		"message": err.Error(),
	}))
}
