package room

import (
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"kaiwa.live/metrics"
	"kaiwa.live/speech"
)

// RegistryConfig carries the dependencies every room shares.
type RegistryConfig struct {
	// NewTranscriber builds the transcription pipeline for a room once its
	// language pair is known.
	NewTranscriber speech.Factory

	// KeepAliveSolo keeps a room open when one of two participants leaves.
	// The default is to close the room.
	KeepAliveSolo bool

	Logger *log.Logger
}

// Registry is the process-wide directory of live rooms keyed by room id.
// It is the only piece of state shared across connections.
type Registry struct {
	cfg RegistryConfig
	log *log.Logger

	mu    sync.Mutex
	rooms map[string]*Room
}

func NewRegistry(cfg RegistryConfig) *Registry {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Registry{
		cfg:   cfg,
		log:   logger,
		rooms: make(map[string]*Room),
	}
}

// Create makes a room under a fresh identifier.
func (reg *Registry) Create() *Room {
	return reg.GetOrCreate(uuid.NewString())
}

// GetOrCreate returns the room for id, creating it if absent. Two
// concurrent calls for the same new id observe the same room.
func (reg *Registry) GetOrCreate(id string) *Room {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if r, ok := reg.rooms[id]; ok {
		return r
	}

	r := &Room{
		ID:             id,
		CreatedAt:      time.Now(),
		newTranscriber: reg.cfg.NewTranscriber,
		keepAliveSolo:  reg.cfg.KeepAliveSolo,
		onEmpty:        reg.Remove,
		log:            reg.log,
	}
	reg.rooms[id] = r
	metrics.ActiveRooms.Inc()
	reg.log.Info("room created", "room", id)
	return r
}

// Get returns the room for id, if it exists.
func (reg *Registry) Get(id string) (*Room, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	r, ok := reg.rooms[id]
	return r, ok
}

// Remove withdraws a room from the registry. Removing an absent id is a
// no-op.
func (reg *Registry) Remove(id string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if _, ok := reg.rooms[id]; !ok {
		return
	}
	delete(reg.rooms, id)
	metrics.ActiveRooms.Dec()
	reg.log.Info("room removed", "room", id)
}

// Rooms returns monitoring snapshots of every live room, oldest first.
func (reg *Registry) Rooms() []Info {
	reg.mu.Lock()
	rooms := make([]*Room, 0, len(reg.rooms))
	for _, r := range reg.rooms {
		rooms = append(rooms, r)
	}
	reg.mu.Unlock()

	infos := make([]Info, 0, len(rooms))
	for _, r := range rooms {
		infos = append(infos, r.Info())
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].CreatedAt.Before(infos[j].CreatedAt)
	})
	return infos
}
