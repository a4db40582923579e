package world

import (
	"github.com/l1jgo/worldcore/internal/core/arena"
	"github.com/l1jgo/worldcore/internal/data"
)

// Nowhere is the room slot of an entity that is not in any room.
const Nowhere = -1

// Nothing is the prototype slot of an object or mobile with no prototype.
const Nothing = -1

// Affect is a temporary effect on a character, e.g. a spell.
type Affect struct {
	Type      int16
	Duration  int16
	Modifier  int8
	Location  byte
	Bitvector int64
}

// Object is a live item instance.
type Object struct {
	handle arena.Handle
	serial uint64 // creation order

	Proto       int // object slot, Nothing if unprototyped
	Vnum        int32
	Keywords    string
	ShortDescr  string
	Description string
	Text        string // written content of notes
	Type        int
	Extra       int64
	Wear        int64
	Values      [4]int32
	Weight      int32
	Cost        int32
	Rent        int32
	Timer       int32
	Bitvector   int64
	Affects     [data.MaxObjAffect]data.ObjAffect

	// Exactly one of these places the object, or none while in transit.
	InRoom    int
	CarriedBy arena.Handle
	WornBy    arena.Handle
	WornOn    int
	InObj     arena.Handle

	Contains []arena.Handle
}

func (o *Object) SetHandle(h arena.Handle) { o.handle = h }
func (o *Object) Handle() arena.Handle     { return o.handle }

func (o *Object) IsContainer() bool { return o.Type == data.ItemContainer }

// CanWear reports whether the object may be worn at position pos.
func (o *Object) CanWear(pos int) bool {
	p := data.ObjProto{Wear: o.Wear}
	return p.CanWear(pos)
}

// Unrentable reports whether the object must not go into a rent file.
func (o *Object) Unrentable() bool {
	return o.Extra&data.ItemNoRent != 0 || o.Rent < 0 || o.Proto == Nothing || o.Type == data.ItemKey
}

// Points are the pools and money of a character.
type Points struct {
	Mana    int16
	MaxMana int16
	Hit     int16
	MaxHit  int16
	Move    int16
	MaxMove int16
	Armor   int16 // internal -100..100
	Gold    int32
	Bank    int32
	Exp     int32
	Hitroll int8
	Damroll int8
}

// PlayerData holds the fields only player characters carry. Everything here
// is saved in the player record.
type PlayerData struct {
	PfilePos    int
	Password    string // bcrypt hash
	Host        string
	Birth       int64
	Played      int64
	LastLogon   int64
	Weight      byte
	Height      byte
	Skills      [MaxSkills]byte
	FreezeLevel int8
	InvisLevel  int16
	LoadRoom    int32 // room vnum
	Pref        int64
	BadPws      byte
	Conditions  [3]int8
}

// MaxSkills is the number of skill slots in a player record.
const MaxSkills = 200

// Character is a live mobile or player.
type Character struct {
	handle arena.Handle

	Proto       int // mobile slot, Nothing for players
	Name        string
	ShortDescr  string
	LongDescr   string
	Description string
	Title       string
	Sex         byte
	Class       byte
	Level       byte
	Abils       data.Abilities
	Points      Points
	Alignment   int32
	IDNum       int64
	Act         int64
	AffectedBy  int64
	Position    int
	DefaultPos  int

	Affects   []Affect
	Equipment [data.NumWears]arena.Handle
	Carrying  []arena.Handle
	InRoom    int

	Player *PlayerData // nil for mobiles
}

func (c *Character) SetHandle(h arena.Handle) { c.handle = h }
func (c *Character) Handle() arena.Handle     { return c.handle }

func (c *Character) IsNPC() bool { return c.Player == nil }
