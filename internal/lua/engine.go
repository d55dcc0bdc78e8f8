// Package lua provides a Lua scripting engine for lighting routines:
// long-running scripts (sunrise fades, pulses) that drive the litra facade.
package lua

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	lua "github.com/yuin/gopher-lua"

	"litra-controller/internal/core"
	"litra-controller/internal/litra"
)

// Controller is the device surface routines drive. The litra facade
// satisfies it; tests substitute a recorder.
type Controller interface {
	SetPower(ctx context.Context, on bool) error
	SetBrightness(ctx context.Context, percent int) error
	SetTemperature(ctx context.Context, kelvin int) error
	ApplyPreset(ctx context.Context, p litra.Preset) error
}

// PresetLookup resolves a preset label for the apply_preset global.
type PresetLookup func(label string) (litra.Preset, bool)

// cmdType defines the type of engine command.
type cmdType int

const (
	cmdRunFile cmdType = iota
	cmdRunString
	cmdStop
)

// engineCmd represents a command sent to the Lua engine.
type engineCmd struct {
	kind cmdType
	name string
	code string
}

// Engine manages the Lua scripting environment using a single worker
// goroutine to ensure only one routine runs at a time.
type Engine struct {
	controller   Controller
	routinesDir  string
	eventBus     *core.EventBus
	lookupPreset PresetLookup

	cmdChan chan engineCmd
}

// NewEngine creates a new Lua engine and starts its background worker.
func NewEngine(controller Controller, routinesDir string, eb *core.EventBus, lookup PresetLookup) *Engine {
	e := &Engine{
		controller:   controller,
		routinesDir:  routinesDir,
		eventBus:     eb,
		lookupPreset: lookup,
		cmdChan:      make(chan engineCmd, 10),
	}

	go e.runLoop()

	return e
}

// runLoop is the main worker loop that processes engine commands sequentially.
func (e *Engine) runLoop() {
	var currentCancel context.CancelFunc
	var scriptDone chan struct{}

	for cmd := range e.cmdChan {
		if currentCancel != nil {
			currentCancel()
			select {
			case <-scriptDone:
			case <-time.After(2 * time.Second):
				log.Println("[Lua] Timeout waiting for routine to stop")
			}
			currentCancel = nil
			scriptDone = nil
		}

		if cmd.kind == cmdStop {
			continue
		}

		ctx, cancel := context.WithCancel(context.Background())
		currentCancel = cancel
		scriptDone = make(chan struct{})

		go func(cmd engineCmd, ctx context.Context, done chan struct{}) {
			defer close(done)
			switch cmd.kind {
			case cmdRunFile:
				e.execute(cmd.name, func(L *lua.LState) error { return L.DoFile(cmd.code) }, ctx)
			case cmdRunString:
				e.execute(cmd.name, func(L *lua.LState) error { return L.DoString(cmd.code) }, ctx)
			}
		}(cmd, ctx, scriptDone)
	}
}

// StopCurrentRoutine stops the currently running routine if any.
func (e *Engine) StopCurrentRoutine() {
	select {
	case e.cmdChan <- engineCmd{kind: cmdStop}:
	default:
		log.Println("[Lua] Command channel full, could not send stop command")
	}
}

// RunRoutine prepares and sends a command to execute a Lua routine from a file.
func (e *Engine) RunRoutine(name string) {
	scriptPath, err := e.RoutinePath(name)
	if err != nil {
		log.Printf("[Lua] Could not get routine path for '%s': %v", name, err)
		return
	}

	e.cmdChan <- engineCmd{
		kind: cmdRunFile,
		name: name,
		code: scriptPath,
	}
}

// ExecuteString prepares and sends a command to execute a one-off Lua code string.
func (e *Engine) ExecuteString(code string) {
	e.cmdChan <- engineCmd{
		kind: cmdRunString,
		name: "inline routine",
		code: code,
	}
}

// sanitizeFilename checks for directory traversal and normalizes the .lua
// extension. MQTT and schedule entries refer to routines by bare name, so
// "pulse" and "pulse.lua" resolve to the same file.
func sanitizeFilename(name string) (string, error) {
	if !strings.HasSuffix(name, ".lua") {
		name += ".lua"
	}
	cleanName := filepath.Base(name)
	if cleanName == ".lua" || strings.Contains(cleanName, "..") {
		return "", fmt.Errorf("invalid filename")
	}
	return cleanName, nil
}

// RoutinePath returns the safe path to a routine file within the engine's
// configured directory, creating the directory if needed.
func (e *Engine) RoutinePath(name string) (string, error) {
	cleanName, err := sanitizeFilename(name)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(e.routinesDir); os.IsNotExist(err) {
		log.Printf("[Lua] Creating routines directory: %s", e.routinesDir)
		if err := os.MkdirAll(e.routinesDir, 0755); err != nil {
			return "", fmt.Errorf("failed to create routines directory: %w", err)
		}
	}
	return filepath.Join(e.routinesDir, cleanName), nil
}

// RoutineCode reads and returns the source code of a routine file.
func (e *Engine) RoutineCode(name string) (string, error) {
	path, err := e.RoutinePath(name)
	if err != nil {
		return "", err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(content), nil
}

// SaveRoutineCode writes the provided Lua source code to a routine file.
func (e *Engine) SaveRoutineCode(name, code string) error {
	path, err := e.RoutinePath(name)
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(code), 0644)
}

// DeleteRoutine removes a routine file by name.
func (e *Engine) DeleteRoutine(name string) error {
	path, err := e.RoutinePath(name)
	if err != nil {
		return err
	}
	return os.Remove(path)
}

// RoutineList scans the routines directory and returns the available .lua files.
func (e *Engine) RoutineList() ([]string, error) {
	var routines []string
	files, err := os.ReadDir(e.routinesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return routines, nil
		}
		return nil, err
	}
	for _, file := range files {
		if !file.IsDir() && filepath.Ext(file.Name()) == ".lua" {
			routines = append(routines, file.Name())
		}
	}
	return routines, nil
}

// execute runs Lua code in a fresh state bound to this execution's context.
func (e *Engine) execute(name string, executor func(*lua.LState) error, ctx context.Context) {
	log.Printf("[Lua] Starting routine '%s'...", name)
	if e.eventBus != nil {
		e.eventBus.Publish(core.Event{
			Type:    core.RoutineChangedEvent,
			Payload: map[string]interface{}{"running": name},
		})
	}

	defer func() {
		log.Printf("[Lua] Routine '%s' finished.", name)
		if e.eventBus != nil {
			e.eventBus.Publish(core.Event{
				Type:    core.RoutineChangedEvent,
				Payload: map[string]interface{}{"running": ""},
			})
		}
	}()

	L := lua.NewState()
	defer L.Close()
	L.SetContext(ctx)

	sess := &session{engine: e, ctx: ctx}
	sess.register(L)

	if err := executor(L); err != nil {
		if ctx.Err() == context.Canceled {
			log.Printf("[Lua] Routine '%s' execution was canceled.", name)
		} else {
			log.Printf("[Lua] Error executing routine '%s': %v", name, err)
		}
	}
}
