// Package mqtt bridges the agent to an MQTT broker, including Home
// Assistant discovery for the light entity. The bridge never talks to the
// device directly: every inbound message becomes a core command.
package mqtt

import (
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"litra-controller/internal/config"
	"litra-controller/internal/core"
	"litra-controller/internal/litra"
)

// Client wraps the paho client with the agent's topics and HA discovery.
type Client struct {
	client   mqtt.Client
	cfg      *config.Config
	commands core.CommandChannel
	prefix   string

	// getRoutineList feeds the HA effect list at discovery time.
	getRoutineList func() ([]string, error)
}

// NewClient creates a client with connection retry and LWT configured.
// Returns nil when MQTT is disabled.
func NewClient(cfg *config.Config, commands core.CommandChannel, getRoutineList func() ([]string, error)) *Client {
	if !cfg.MQTT.Enabled {
		return nil
	}

	prefix := strings.TrimSuffix(cfg.MQTT.TopicPrefix, "/")

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.MQTT.Broker)
	opts.SetClientID(cfg.MQTT.ClientID)
	opts.SetUsername(cfg.MQTT.Username)
	opts.SetPassword(cfg.MQTT.Password)

	opts.SetKeepAlive(10 * time.Second)
	opts.SetPingTimeout(5 * time.Second)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(1 * time.Minute)

	// Keep trying at startup even if the broker isn't up yet.
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)

	opts.SetOrderMatters(false)

	// The broker announces us offline if the agent dies.
	opts.SetWill(prefix+"/availability", "offline", 1, true)

	c := &Client{
		cfg:            cfg,
		commands:       commands,
		prefix:         prefix,
		getRoutineList: getRoutineList,
	}

	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		log.Printf("[MQTT] Connection lost: %v. Retrying in background...", err)
	})
	opts.SetReconnectingHandler(func(client mqtt.Client, options *mqtt.ClientOptions) {
		log.Println("[MQTT] Attempting to reconnect...")
	})

	c.client = mqtt.NewClient(opts)

	return c
}

// Connect initiates the connection.
func (c *Client) Connect() error {
	if c.client == nil {
		return nil
	}
	log.Printf("[MQTT] Starting connection loop to %s...", c.cfg.MQTT.Broker)

	token := c.client.Connect()
	if token.Wait() && token.Error() != nil {
		log.Printf("[MQTT] Initial connection error: %v", token.Error())
		return token.Error()
	}
	return nil
}

// Disconnect publishes the offline status and closes the socket.
func (c *Client) Disconnect() {
	if c.client == nil || !c.client.IsConnected() {
		return
	}
	log.Println("[MQTT] Disconnecting...")

	token := c.client.Publish(c.prefix+"/availability", 0, true, "offline")
	if token.WaitTimeout(2 * time.Second) {
		if token.Error() != nil {
			log.Printf("[MQTT] Warning: failed to publish offline status: %v", token.Error())
		}
	} else {
		log.Println("[MQTT] Warning: timed out publishing offline status")
	}

	c.client.Disconnect(250)
	log.Println("[MQTT] Disconnected.")
}

// Publish sends a payload to a subtopic under the configured prefix.
func (c *Client) Publish(subtopic string, payload interface{}, retained bool) {
	if c == nil || c.client == nil || !c.client.IsConnected() {
		return
	}

	topic := fmt.Sprintf("%s/%s", c.prefix, subtopic)
	msg := fmt.Sprintf("%v", payload)

	token := c.client.Publish(topic, 0, retained, msg)

	go func() {
		if token.WaitTimeout(5 * time.Second) {
			if token.Error() != nil {
				log.Printf("[MQTT] Publish error to %s: %v", topic, token.Error())
			}
		} else {
			log.Printf("[MQTT] Timeout publishing to %s", topic)
		}
	}()
}

func (c *Client) onConnect(client mqtt.Client) {
	log.Println("[MQTT] Connected to broker.")

	topics := map[string]mqtt.MessageHandler{
		"power/set":       c.handlePower,
		"brightness/set":  c.handleBrightness,
		"temperature/set": c.handleTemperature,
		"preset/run":      c.handlePreset,
		"routine/run":     c.handleRoutineRun,
		"routine/stop":    c.handleRoutineStop,
	}

	for sub, handler := range topics {
		topic := fmt.Sprintf("%s/%s", c.prefix, sub)
		if token := client.Subscribe(topic, 1, handler); token.Wait() && token.Error() != nil {
			log.Printf("[MQTT] Error subscribing to %s: %v", topic, token.Error())
		} else {
			log.Printf("[MQTT] Subscribed to %s", topic)
		}
	}

	go func() {
		c.Publish("availability", "online", true)
		if c.cfg.MQTT.HADiscoveryEnabled {
			c.PublishHADiscovery()
		}
	}()
}

// PublishHADiscovery announces the light to Home Assistant.
func (c *Client) PublishHADiscovery() {
	// Let subscriptions settle before announcing.
	time.Sleep(1 * time.Second)

	routines := []string{}
	if c.getRoutineList != nil {
		if list, err := c.getRoutineList(); err == nil {
			routines = list
		} else {
			log.Printf("[MQTT] Warning: could not get routines for HA discovery: %v", err)
		}
	}

	safeID := strings.ReplaceAll(c.cfg.MQTT.ClientID, " ", "_")
	safeID = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			return r
		}
		return -1
	}, safeID)

	discoveryTopic := fmt.Sprintf("%s/light/%s/light/config", c.cfg.MQTT.HADiscoveryPrefix, safeID)

	payload := map[string]interface{}{
		"name":      "Litra",
		"unique_id": safeID + "_light",
		"object_id": safeID,
		"icon":      "mdi:lightbulb-variant",

		"command_topic": fmt.Sprintf("%s/power/set", c.prefix),
		"state_topic":   fmt.Sprintf("%s/power/state", c.prefix),

		"brightness_command_topic": fmt.Sprintf("%s/brightness/set", c.prefix),
		"brightness_state_topic":   fmt.Sprintf("%s/brightness/state", c.prefix),
		"brightness_scale":         100,

		"color_temp_command_topic": fmt.Sprintf("%s/temperature/set", c.prefix),
		"color_temp_state_topic":   fmt.Sprintf("%s/temperature/state", c.prefix),
		"color_temp_kelvin":        true,
		"min_kelvin":               litra.MinTemperature,
		"max_kelvin":               litra.MaxTemperature,

		"effect_command_topic": fmt.Sprintf("%s/routine/run", c.prefix),
		"effect_state_topic":   fmt.Sprintf("%s/routine/state", c.prefix),
		"effect_list":          routines,

		"availability_mode": "all",
		"availability": []map[string]string{
			{
				"topic":                 fmt.Sprintf("%s/availability", c.prefix),
				"payload_available":     "online",
				"payload_not_available": "offline",
			},
			{
				"topic":                 fmt.Sprintf("%s/tool", c.prefix),
				"payload_available":     "available",
				"payload_not_available": "unavailable",
			},
		},

		"device": map[string]interface{}{
			"identifiers":  []string{safeID},
			"name":         "Litra Controller",
			"manufacturer": "Logitech",
			"model":        "Litra Glow",
		},
	}

	jsonPayload, _ := json.Marshal(payload)
	c.client.Publish(discoveryTopic, 0, true, jsonPayload)
	log.Printf("[MQTT] HA Discovery sent to %s", discoveryTopic)
}

// --- Inbound handlers: translate broker messages into core commands ---

func (c *Client) dispatch(cmd core.Command) {
	select {
	case c.commands <- cmd:
	default:
		log.Printf("[MQTT] Command queue full, dropping %s", cmd.Type)
	}
}

func (c *Client) handlePower(client mqtt.Client, msg mqtt.Message) {
	payload := strings.ToLower(strings.TrimSpace(string(msg.Payload())))
	var isOn bool
	switch payload {
	case "on", "true", "1":
		isOn = true
	case "off", "false", "0":
		isOn = false
	default:
		return
	}
	c.dispatch(core.Command{Type: core.CmdSetPower, Payload: map[string]interface{}{"isOn": isOn}})
}

func (c *Client) handleBrightness(client mqtt.Client, msg mqtt.Message) {
	val, err := strconv.Atoi(strings.TrimSpace(string(msg.Payload())))
	if err != nil {
		return
	}
	c.dispatch(core.Command{Type: core.CmdSetBrightness, Payload: map[string]interface{}{"value": float64(val)}})
}

func (c *Client) handleTemperature(client mqtt.Client, msg mqtt.Message) {
	val, err := strconv.Atoi(strings.TrimSpace(string(msg.Payload())))
	if err != nil {
		return
	}
	c.dispatch(core.Command{Type: core.CmdSetTemperature, Payload: map[string]interface{}{"value": float64(val)}})
}

func (c *Client) handlePreset(client mqtt.Client, msg mqtt.Message) {
	label := strings.TrimSpace(string(msg.Payload()))
	if label == "" {
		return
	}
	c.dispatch(core.Command{Type: core.CmdApplyPreset, Payload: map[string]interface{}{"preset": label}})
}

func (c *Client) handleRoutineRun(client mqtt.Client, msg mqtt.Message) {
	name := strings.TrimSpace(string(msg.Payload()))
	if name == "" {
		return
	}
	c.dispatch(core.Command{Type: core.CmdRunRoutine, Payload: map[string]interface{}{"name": name}})
}

func (c *Client) handleRoutineStop(client mqtt.Client, msg mqtt.Message) {
	c.dispatch(core.Command{Type: core.CmdStopRoutine})
}
