package core

import (
	"fmt"
	"sort"
)

// State is the consumer-owned view of the stream: what is resident and what is still wanted.
// It is not safe for concurrent use; only the frame loop touches it.
type State struct {
	Window    Window
	Resident  *Cache[Mesh]
	Requested map[ChunkKey]ChunkCoord

	center  ChunkCoord
	planned bool
}

func NewState(w Window) *State {
	return &State{
		Window:    w,
		Resident:  NewCache[Mesh](),
		Requested: make(map[ChunkKey]ChunkCoord),
	}
}

// Center is the corner the window was last planned around.
func (s *State) Center() (ChunkCoord, bool) {
	return s.center, s.planned
}

// Replan recomputes the window around (x, z). Resident chunks inside the window are carried
// forward, missing ones are requested once, and everything else is dropped. The dropped meshes
// are returned sorted by key so the caller can release them.
func (s *State) Replan(x, z float64) []Mesh {
	center := SnapPosition(x, z, s.Window.Edge)
	wanted := s.Window.Wanted(center)

	next := NewCache[Mesh]()
	requested := make(map[ChunkKey]ChunkCoord, len(wanted))
	for _, corner := range wanted {
		key := corner.Key()
		if m, ok := s.Resident.Get(key); ok {
			next.Insert(key, m)
			continue
		}
		if pending, ok := s.Requested[key]; ok {
			requested[key] = pending
			continue
		}
		requested[key] = corner
	}

	dropped := s.Resident.Retain(next.Has)
	keys := make([]ChunkKey, 0, len(dropped))
	for k := range dropped {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	out := make([]Mesh, 0, len(keys))
	for _, k := range keys {
		out = append(out, dropped[k])
	}

	s.Resident = next
	s.Requested = requested
	s.center = center
	s.planned = true
	return out
}

// Wants reports whether key is requested and not yet resident.
func (s *State) Wants(key ChunkKey) bool {
	if s.Resident.Has(key) {
		return false
	}
	_, ok := s.Requested[key]
	return ok
}

// Ingest makes m resident under key and retires the request. It returns false and leaves the
// state untouched when key is not wanted.
func (s *State) Ingest(key ChunkKey, m Mesh) bool {
	if !s.Wants(key) {
		return false
	}
	s.Resident.Insert(key, m)
	delete(s.Requested, key)
	return true
}

// RequestedSnapshot copies the requested set for hand-off to the producer.
func (s *State) RequestedSnapshot() map[ChunkKey]ChunkCoord {
	out := make(map[ChunkKey]ChunkCoord, len(s.Requested))
	for k, v := range s.Requested {
		out[k] = v
	}
	return out
}

// RequestedKeys returns the requested keys sorted.
func (s *State) RequestedKeys() []ChunkKey {
	keys := make([]ChunkKey, 0, len(s.Requested))
	for k := range s.Requested {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Check verifies that no key is both requested and resident.
func (s *State) Check() error {
	for k := range s.Requested {
		if s.Resident.Has(k) {
			return fmt.Errorf("chunk %s is both requested and resident", k)
		}
	}
	return nil
}

// Release drops every resident mesh, e.g. at shutdown.
func (s *State) Release() {
	s.Resident.Range(func(_ ChunkKey, m Mesh) bool {
		if m != nil {
			m.Release()
		}
		return true
	})
	s.Resident = NewCache[Mesh]()
	s.Requested = make(map[ChunkKey]ChunkCoord)
}
