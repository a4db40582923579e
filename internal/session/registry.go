package session

import (
	"errors"
	"sort"

	"github.com/l1jgo/worldcore/internal/codec"
	"github.com/l1jgo/worldcore/internal/core/arena"
	"github.com/l1jgo/worldcore/internal/world"
	"github.com/l1jgo/worldcore/internal/zone"
)

// State is where a connection is in its lifecycle. Only StatePlaying
// sessions have a character in the world.
type State int

const (
	StateLogin State = iota
	StateMenu
	StatePlaying
	StateClosed
)

var ErrDuplicate = errors.New("session: name already connected")

// Session is one connected player. The network layer owns the socket; the
// registry only tracks what the world needs to know.
type Session struct {
	ID    uint64
	Name  string
	Host  string
	State State
	Char  arena.Handle
	Idle  int // pulses without input
}

// Registry holds the connected sessions. Accessed only from the world loop
// goroutine, no locks.
type Registry struct {
	w      *world.World
	byID   map[uint64]*Session
	byName map[string]*Session
}

func NewRegistry(w *world.World) *Registry {
	return &Registry{
		w:      w,
		byID:   make(map[uint64]*Session),
		byName: make(map[string]*Session),
	}
}

// Add registers s. Names are unique case-insensitively.
func (r *Registry) Add(s *Session) error {
	key := codec.FoldName(s.Name)
	if _, ok := r.byName[key]; ok {
		return ErrDuplicate
	}
	r.byID[s.ID] = s
	r.byName[key] = s
	return nil
}

// Remove drops a session and returns it, or nil if unknown.
func (r *Registry) Remove(id uint64) *Session {
	s, ok := r.byID[id]
	if !ok {
		return nil
	}
	delete(r.byID, id)
	delete(r.byName, codec.FoldName(s.Name))
	return s
}

func (r *Registry) Get(id uint64) *Session {
	return r.byID[id]
}

func (r *Registry) ByName(name string) *Session {
	return r.byName[codec.FoldName(name)]
}

func (r *Registry) Count() int {
	return len(r.byID)
}

// Each visits every session in ascending ID order.
func (r *Registry) Each(fn func(*Session)) {
	ids := make([]uint64, 0, len(r.byID))
	for id := range r.byID {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		fn(r.byID[id])
	}
}

// Playing visits the sessions whose character is in the world and still
// alive in the arena.
func (r *Registry) Playing(fn func(*Session, *world.Character)) {
	r.Each(func(s *Session) {
		if s.State != StatePlaying {
			return
		}
		ch, err := r.w.Char(s.Char)
		if err != nil {
			return
		}
		fn(s, ch)
	})
}

// Occupants reports where every connected player stands, for zone emptiness
// checks.
func (r *Registry) Occupants() []zone.Occupant {
	out := make([]zone.Occupant, 0, len(r.byID))
	r.Each(func(s *Session) {
		o := zone.Occupant{Playing: s.State == StatePlaying, Room: world.Nowhere}
		if ch, err := r.w.Char(s.Char); err == nil {
			o.Room = ch.InRoom
			o.Level = int(ch.Level)
		} else {
			o.Playing = false
		}
		out = append(out, o)
	})
	return out
}
