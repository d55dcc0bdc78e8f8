package server

import (
	"encoding/json"
	"fmt"

	"litra-controller/internal/core"
)

// Command represents an incoming JSON command from a WebSocket client.
type Command struct {
	Type    string                 `json:"type"`
	Payload map[string]interface{} `json:"payload"`
}

// Message represents an outgoing JSON message sent to WebSocket clients.
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// NewMessage creates a new structured Message for broadcasting to clients.
func NewMessage(msgType string, payload interface{}) Message {
	return Message{Type: msgType, Payload: payload}
}

// knownCommands are the command types a panel may issue.
var knownCommands = map[core.CommandType]bool{
	core.CmdSetPower:        true,
	core.CmdToggle:          true,
	core.CmdSetBrightness:   true,
	core.CmdSetTemperature:  true,
	core.CmdApplyPreset:     true,
	core.CmdQueryState:      true,
	core.CmdRunRoutine:      true,
	core.CmdStopRoutine:     true,
	core.CmdAddSchedule:     true,
	core.CmdRemoveSchedule:  true,
	core.CmdSavePreset:      true,
	core.CmdDeletePreset:    true,
	core.CmdGetRoutineCode:  true,
	core.CmdSaveRoutineCode: true,
	core.CmdDeleteRoutine:   true,
}

// decodeCommand turns a raw client frame into a core command, rejecting
// unknown types so garbage frames never reach the agent loop.
func decodeCommand(raw []byte) (core.Command, error) {
	var cmd Command
	if err := json.Unmarshal(raw, &cmd); err != nil {
		return core.Command{}, fmt.Errorf("unmarshalling command: %w", err)
	}

	ct := core.CommandType(cmd.Type)
	if !knownCommands[ct] {
		return core.Command{}, fmt.Errorf("unknown command type %q", cmd.Type)
	}
	return core.Command{Type: ct, Payload: cmd.Payload}, nil
}
