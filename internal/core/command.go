package core

// CommandType defines the type of command being dispatched.
type CommandType string

const (
	CmdSetPower        CommandType = "setPower"
	CmdToggle          CommandType = "toggle"
	CmdSetBrightness   CommandType = "setBrightness"
	CmdSetTemperature  CommandType = "setTemperature"
	CmdApplyPreset     CommandType = "applyPreset"
	CmdQueryState      CommandType = "queryState"
	CmdRunRoutine      CommandType = "runRoutine"
	CmdStopRoutine     CommandType = "stopRoutine"
	CmdAddSchedule     CommandType = "addSchedule"
	CmdRemoveSchedule  CommandType = "removeSchedule"
	CmdSavePreset      CommandType = "savePreset"
	CmdDeletePreset    CommandType = "deletePreset"
	CmdGetRoutineCode  CommandType = "getRoutineCode"
	CmdSaveRoutineCode CommandType = "saveRoutineCode"
	CmdDeleteRoutine   CommandType = "deleteRoutine"
)

// Command is the envelope for incoming requests to change state or perform actions.
type Command struct {
	Type    CommandType
	Payload map[string]interface{}
}

// CommandChannel is the single channel that the core Agent listens to for
// commands. Every gesture source (WebSocket panel, MQTT, cron, Lua routine)
// feeds this channel, so device invocations are handled one at a time.
type CommandChannel chan Command
