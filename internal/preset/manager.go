// Package preset manages the fixed lighting presets offered by the panel:
// three immutable built-ins plus user-defined presets persisted to a JSON
// file.
package preset

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"litra-controller/internal/litra"
)

// Entry is a stored preset. Built-ins have stable IDs and cannot be changed
// or removed.
type Entry struct {
	ID      string `json:"id"`
	BuiltIn bool   `json:"-"`
	litra.Preset
}

// BuiltIns returns the three presets that ship with the agent.
func BuiltIns() []Entry {
	return []Entry{
		{ID: "builtin-bright-cool", BuiltIn: true, Preset: litra.Preset{Label: "Bright & Cool", Brightness: 100, Temperature: 6500}},
		{ID: "builtin-medium-neutral", BuiltIn: true, Preset: litra.Preset{Label: "Medium & Neutral", Brightness: 50, Temperature: 4500}},
		{ID: "builtin-warm-dim", BuiltIn: true, Preset: litra.Preset{Label: "Warm & Dim", Brightness: 30, Temperature: 2700}},
	}
}

// Manager holds built-in and user presets and persists the latter.
type Manager struct {
	mu          sync.RWMutex
	user        map[string]Entry
	presetsFile string
}

// NewManager creates a manager and loads any previously saved user presets.
func NewManager(presetsFile string) *Manager {
	m := &Manager{
		user:        make(map[string]Entry),
		presetsFile: presetsFile,
	}
	m.load()
	return m
}

// List returns built-ins first, then user presets sorted by label.
func (m *Manager) List() []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := BuiltIns()
	users := make([]Entry, 0, len(m.user))
	for _, e := range m.user {
		users = append(users, e)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Label < users[j].Label })
	return append(out, users...)
}

// Get looks a preset up by ID first, then by label (case-insensitive). The
// label form is what schedules and MQTT payloads use.
func (m *Manager) Get(idOrLabel string) (Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, e := range BuiltIns() {
		if e.ID == idOrLabel || strings.EqualFold(e.Label, idOrLabel) {
			return e, true
		}
	}
	if e, ok := m.user[idOrLabel]; ok {
		return e, true
	}
	for _, e := range m.user {
		if strings.EqualFold(e.Label, idOrLabel) {
			return e, true
		}
	}
	return Entry{}, false
}

// Save creates or replaces a user preset by label. Values are clamped to the
// hardware ranges before storing. Built-in labels cannot be shadowed.
func (m *Manager) Save(label string, brightness, temperature int) (Entry, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return Entry{}, fmt.Errorf("preset label must not be empty")
	}
	for _, b := range BuiltIns() {
		if strings.EqualFold(b.Label, label) {
			return Entry{}, fmt.Errorf("preset %q is built in and cannot be replaced", label)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	entry := Entry{
		ID: uuid.NewString(),
		Preset: litra.Preset{
			Label:       label,
			Brightness:  litra.ClampBrightness(brightness),
			Temperature: litra.ClampTemperature(temperature),
		},
	}
	// Replacing by label keeps the old ID so panel references stay valid.
	for id, e := range m.user {
		if strings.EqualFold(e.Label, label) {
			entry.ID = id
			break
		}
	}
	m.user[entry.ID] = entry
	m.save()
	return entry, nil
}

// Delete removes a user preset by ID. Built-ins are not deletable.
func (m *Manager) Delete(id string) error {
	for _, b := range BuiltIns() {
		if b.ID == id {
			return fmt.Errorf("preset %q is built in and cannot be deleted", b.Label)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.user[id]; !ok {
		return fmt.Errorf("preset %q not found", id)
	}
	delete(m.user, id)
	m.save()
	return nil
}

func (m *Manager) save() {
	entries := make([]Entry, 0, len(m.user))
	for _, e := range m.user {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Label < entries[j].Label })

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		log.Printf("[Preset] Error marshalling presets: %v", err)
		return
	}
	if err := os.WriteFile(m.presetsFile, data, 0644); err != nil {
		log.Printf("[Preset] Error writing presets file: %v", err)
	}
}

func (m *Manager) load() {
	data, err := os.ReadFile(m.presetsFile)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("[Preset] Error reading presets file: %v", err)
		}
		return
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		log.Printf("[Preset] Error unmarshalling presets file: %v", err)
		return
	}

	log.Printf("[Preset] Loading %d user presets from '%s'...", len(entries), m.presetsFile)
	for _, e := range entries {
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		e.Brightness = litra.ClampBrightness(e.Brightness)
		e.Temperature = litra.ClampTemperature(e.Temperature)
		m.user[e.ID] = e
	}
}
