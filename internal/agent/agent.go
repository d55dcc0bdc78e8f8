package agent

import (
	"context"
	"log"
	"sync"
	"time"

	"litra-controller/internal/config"
	"litra-controller/internal/core"
	"litra-controller/internal/litra"
	"litra-controller/internal/lua"
	"litra-controller/internal/mqtt"
	"litra-controller/internal/preset"
	"litra-controller/internal/scheduler"
	"litra-controller/internal/server"
)

// device is the facade surface the agent drives. An interface so tests can
// substitute a recorder for the real exec-backed facade.
type device interface {
	QueryState(ctx context.Context) (litra.DeviceState, error)
	SetPower(ctx context.Context, on bool) error
	Toggle(ctx context.Context) error
	SetBrightness(ctx context.Context, percent int) error
	SetTemperature(ctx context.Context, kelvin int) error
	ApplyPreset(ctx context.Context, p litra.Preset) error
	Version(ctx context.Context) (string, error)
}

// Agent wires the facade to every gesture source and owns the single
// command loop through which all device writes pass.
type Agent struct {
	ctx    context.Context
	cancel context.CancelFunc
	config *config.Config
	wg     sync.WaitGroup

	state          *core.State
	eventBus       *core.EventBus
	commandChannel core.CommandChannel

	device     device
	presets    *preset.Manager
	luaEngine  *lua.Engine
	scheduler  *scheduler.Scheduler
	server     *server.Server
	mqttClient *mqtt.Client
}

// NewAgent builds the full agent from configuration.
func NewAgent(cfg *config.Config) (*Agent, error) {
	ctx, cancel := context.WithCancel(context.Background())

	a := &Agent{
		ctx:            ctx,
		cancel:         cancel,
		config:         cfg,
		state:          core.NewState(),
		eventBus:       core.NewEventBus(),
		commandChannel: make(core.CommandChannel, 20),
	}

	runner := litra.NewExecRunner(cfg.Litra.Binary, cfg.CommandTimeout())
	facade := litra.NewFacade(runner, cfg.Litra.RateLimit, cfg.Litra.RateBurst)
	a.device = facade

	a.presets = preset.NewManager(cfg.PresetsFile)

	a.luaEngine = lua.NewEngine(facade, cfg.RoutinesDir, a.eventBus, func(label string) (litra.Preset, bool) {
		e, ok := a.presets.Get(label)
		return e.Preset, ok
	})

	// Create Scheduler (before server so its entries are in the initial sync)
	a.scheduler = scheduler.NewScheduler(a.commandChannel, cfg.SchedulesFile)

	a.server = server.NewServer(
		a.commandChannel,
		a.initialSyncMessages,
		cfg.Server.Port,
		cfg.Server.WebFilesDir,
		cfg.Server.AllowedOrigins,
	)

	// Create MQTT Client (optional)
	a.mqttClient = mqtt.NewClient(cfg, a.commandChannel, a.luaEngine.RoutineList)

	return a, nil
}

// Run starts the agent orchestration loop.
func (a *Agent) Run() {
	go a.listenEvents()

	a.probeTool()

	if a.mqttClient != nil {
		go func() {
			if err := a.mqttClient.Connect(); err != nil {
				log.Printf("[Agent] MQTT Setup Error: %v", err)
			}
		}()
	}

	a.scheduler.Start()

	log.Printf("Agent running on http://localhost:%s", a.config.Server.Port)
	go func() {
		if err := a.server.ListenAndServe(); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	a.wg.Add(1)
	go a.refreshLoop()

	// Central command loop: one command, and therefore one device write
	// sequence, at a time.
	log.Println("Agent orchestrator ready.")
	for {
		select {
		case <-a.ctx.Done():
			log.Println("Agent orchestrator shutting down...")
			return
		case cmd := <-a.commandChannel:
			a.handleCommand(cmd)
		}
	}
}

// probeTool checks the external tool once at startup. A missing tool is
// fatal for device control but the control surface stays up so the panel
// can show why.
func (a *Agent) probeTool() {
	version, err := a.device.Version(a.ctx)
	if err != nil {
		log.Printf("[Agent] litra tool probe failed: %v", err)
		a.reportError("probe", err)
		return
	}
	log.Printf("[Agent] litra tool available: %s", version)
	a.state.SetToolAvailable(true)
	a.broadcastToolStatus()
	a.refreshState()
}

// refreshLoop polls the device state so panels track changes made outside
// the agent (physical buttons, other software).
func (a *Agent) refreshLoop() {
	defer a.wg.Done()

	interval := a.config.RefreshInterval()
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-a.ctx.Done():
			return
		case <-ticker.C:
			select {
			case a.commandChannel <- core.Command{Type: core.CmdQueryState}:
			default:
			}
		}
	}
}

func (a *Agent) listenEvents() {
	sub := a.eventBus.Subscribe(core.RoutineChangedEvent)

	for {
		select {
		case <-a.ctx.Done():
			return
		case event := <-sub:
			if event.Type != core.RoutineChangedEvent {
				continue
			}
			payload, ok := event.Payload.(map[string]interface{})
			if !ok {
				continue
			}
			routine, ok := payload["running"].(string)
			if !ok {
				continue
			}
			a.state.SetRunningRoutine(routine)
			a.broadcast(server.NewMessage("routine_status", map[string]string{"running": routine}))
			a.mqttClient.Publish("routine/state", routine, true)

			if routine == "" {
				log.Println("[Agent] Routine finished. Syncing device state.")
				select {
				case a.commandChannel <- core.Command{Type: core.CmdQueryState}:
				default:
				}
			}
		}
	}
}

// broadcast sends a message to all connected panels.
func (a *Agent) broadcast(msg server.Message) {
	if a.server != nil && a.server.Hub != nil {
		a.server.Hub.Broadcast(msg)
	}
}

func (a *Agent) broadcastToolStatus() {
	snap := a.state.Clone()
	a.broadcast(server.NewMessage("tool_status", map[string]interface{}{
		"available": snap.ToolAvailable,
	}))
	toolState := "unavailable"
	if snap.ToolAvailable {
		toolState = "available"
	}
	a.mqttClient.Publish("tool", toolState, true)
}

func (a *Agent) broadcastDeviceState() {
	snap := a.state.Clone()
	a.broadcast(server.NewMessage("device_state", map[string]interface{}{
		"name":        snap.DeviceName,
		"power":       snap.Power.String(),
		"brightness":  snap.Brightness,
		"temperature": snap.Temperature,
	}))

	if snap.Power != litra.PowerUnknown {
		power := "OFF"
		if snap.Power == litra.PowerOn {
			power = "ON"
		}
		a.mqttClient.Publish("power/state", power, true)
	}
	a.mqttClient.Publish("brightness/state", snap.Brightness, true)
	a.mqttClient.Publish("temperature/state", snap.Temperature, true)
}

// initialSyncMessages builds the snapshot a newly connected panel receives.
func (a *Agent) initialSyncMessages() []server.Message {
	snap := a.state.Clone()

	routines, err := a.luaEngine.RoutineList()
	if err != nil {
		log.Printf("[Agent] Could not list routines: %v", err)
	}

	return []server.Message{
		server.NewMessage("tool_status", map[string]interface{}{
			"available": snap.ToolAvailable,
		}),
		server.NewMessage("device_state", map[string]interface{}{
			"name":        snap.DeviceName,
			"power":       snap.Power.String(),
			"brightness":  snap.Brightness,
			"temperature": snap.Temperature,
		}),
		server.NewMessage("preset_list", a.presets.List()),
		server.NewMessage("routine_list", routines),
		server.NewMessage("routine_status", map[string]string{"running": snap.RunningRoutine}),
		server.NewMessage("schedule_list", a.scheduler.GetAll()),
	}
}

func (a *Agent) Shutdown() {
	a.scheduler.Stop()
	a.luaEngine.StopCurrentRoutine()
	_ = a.server.Shutdown(context.Background())
	if a.mqttClient != nil {
		a.mqttClient.Disconnect()
	}
	a.cancel()
	a.wg.Wait()
}
