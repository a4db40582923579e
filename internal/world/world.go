package world

import (
	"math/rand/v2"
	"sort"

	"go.uber.org/zap"

	"github.com/l1jgo/worldcore/internal/core/arena"
	"github.com/l1jgo/worldcore/internal/data"
)

// Exit is a resolved room exit. ToRoom is a room slot or Nowhere.
type Exit struct {
	Description string
	Keyword     string
	Info        int
	Key         int32
	ToRoom      int
}

// Room is a live room. Rooms are loaded once and never leave the world.
type Room struct {
	Vnum        int32
	Zone        int
	Name        string
	Description string
	Flags       int64
	Sector      int
	Exits       [data.NumDirs]*Exit
	Extras      []data.ExtraDesc
	Behavior    string

	Contents []arena.Handle // objects
	People   []arena.Handle // characters
}

// Zone is a live zone. Cmd args hold runtime slots after boot.
type Zone struct {
	Vnum      int32
	Name      string
	Bot       int32
	Top       int32
	FirstRoom int
	LastRoom  int // inclusive, FirstRoom-1 when the zone has no rooms
	Lifespan  int
	ResetMode int
	Age       int
	Cmds      []data.ResetCmd
}

// IndexEntry tracks one prototype's vnum and live-instance count.
type IndexEntry struct {
	Vnum     int32
	Number   int
	Behavior string
}

// StartRooms are the room slots new arrivals are placed in.
type StartRooms struct {
	Mortal int
	Immort int
	Frozen int
}

// World owns the static tables and the live entity arenas. It is mutated only
// from the world loop.
type World struct {
	log *zap.Logger
	rng *rand.Rand

	Rooms []*Room
	Zones []*Zone
	Start StartRooms

	mobIndex  []IndexEntry
	mobProtos []*data.MobProto
	objIndex  []IndexEntry
	objProtos []*data.ObjProto

	Chars *arena.Arena[*Character]
	Objs  *arena.Arena[*Object]

	objSerial uint64
}

func newWorld(log *zap.Logger, rng *rand.Rand) *World {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &World{
		log:   log,
		rng:   rng,
		Chars: arena.New[*Character](1024),
		Objs:  arena.New[*Object](4096),
	}
}

// ResolveRoom maps a room vnum to its slot.
func (w *World) ResolveRoom(vnum int32) (int, bool) {
	i := sort.Search(len(w.Rooms), func(i int) bool { return w.Rooms[i].Vnum >= vnum })
	if i < len(w.Rooms) && w.Rooms[i].Vnum == vnum {
		return i, true
	}
	return Nothing, false
}

// ResolveMobile maps a mobile vnum to its prototype slot.
func (w *World) ResolveMobile(vnum int32) (int, bool) {
	return searchIndex(w.mobIndex, vnum)
}

// ResolveObject maps an object vnum to its prototype slot.
func (w *World) ResolveObject(vnum int32) (int, bool) {
	return searchIndex(w.objIndex, vnum)
}

func searchIndex(idx []IndexEntry, vnum int32) (int, bool) {
	i := sort.Search(len(idx), func(i int) bool { return idx[i].Vnum >= vnum })
	if i < len(idx) && idx[i].Vnum == vnum {
		return i, true
	}
	return Nothing, false
}

// Room returns the room at slot, or nil.
func (w *World) Room(slot int) *Room {
	if slot < 0 || slot >= len(w.Rooms) {
		return nil
	}
	return w.Rooms[slot]
}

// MobCount returns the live-instance count of a mobile prototype.
func (w *World) MobCount(slot int) int {
	if slot < 0 || slot >= len(w.mobIndex) {
		return 0
	}
	return w.mobIndex[slot].Number
}

// ObjCount returns the live-instance count of an object prototype.
func (w *World) ObjCount(slot int) int {
	if slot < 0 || slot >= len(w.objIndex) {
		return 0
	}
	return w.objIndex[slot].Number
}

// MobProto returns the prototype at slot, or nil.
func (w *World) MobProto(slot int) *data.MobProto {
	if slot < 0 || slot >= len(w.mobProtos) {
		return nil
	}
	return w.mobProtos[slot]
}

// ObjProto returns the prototype at slot, or nil.
func (w *World) ObjProto(slot int) *data.ObjProto {
	if slot < 0 || slot >= len(w.objProtos) {
		return nil
	}
	return w.objProtos[slot]
}

// MobBehavior returns the behaviour tag of a mobile prototype.
func (w *World) MobBehavior(slot int) string {
	if slot < 0 || slot >= len(w.mobIndex) {
		return ""
	}
	return w.mobIndex[slot].Behavior
}

// ObjBehavior returns the behaviour tag of an object prototype.
func (w *World) ObjBehavior(slot int) string {
	if slot < 0 || slot >= len(w.objIndex) {
		return ""
	}
	return w.objIndex[slot].Behavior
}

// Counts reports table sizes for the boot banner.
func (w *World) Counts() (rooms, zones, mobs, objs int) {
	return len(w.Rooms), len(w.Zones), len(w.mobProtos), len(w.objProtos)
}

// Char resolves a character handle.
func (w *World) Char(h arena.Handle) (*Character, error) { return w.Chars.Get(h) }

// Obj resolves an object handle.
func (w *World) Obj(h arena.Handle) (*Object, error) { return w.Objs.Get(h) }
