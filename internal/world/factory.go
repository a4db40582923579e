package world

import (
	"errors"
	"fmt"
	"slices"

	"github.com/l1jgo/worldcore/internal/core/arena"
	"github.com/l1jgo/worldcore/internal/data"
)

var (
	ErrNoPrototype = errors.New("world: no such prototype slot")
	ErrNoRoom      = errors.New("world: no such room slot")
	ErrPlaced      = errors.New("world: object is already placed")
	ErrNotHere     = errors.New("world: entity is not there")
)

// Dice rolls num dice of the given size.
func (w *World) Dice(num, size int) int {
	if num <= 0 || size <= 0 {
		return 0
	}
	sum := 0
	for i := 0; i < num; i++ {
		sum += w.rng.IntN(size) + 1
	}
	return sum
}

// NewMobile copies mobile prototype slot into the arena. Max hit points are
// rolled here once from the prototype's hit dice.
func (w *World) NewMobile(slot int) (arena.Handle, error) {
	p := w.MobProto(slot)
	if p == nil {
		return 0, fmt.Errorf("%w: mobile %d", ErrNoPrototype, slot)
	}
	hp := w.Dice(p.HitDice.Num, p.HitDice.Size) + p.HitDice.Add
	ch := &Character{
		Proto:       slot,
		Name:        p.Keywords,
		ShortDescr:  p.ShortDescr,
		LongDescr:   p.LongDescr,
		Description: p.Description,
		Sex:         byte(p.Sex),
		Level:       byte(p.Level),
		Abils:       p.Abils,
		Points: Points{
			MaxHit:  int16(hp),
			Hit:     int16(hp),
			MaxMana: 10,
			Mana:    10,
			MaxMove: 50,
			Move:    50,
			Armor:   int16(p.AC),
			Gold:    p.Gold,
			Exp:     p.Exp,
			Hitroll: int8(p.Hitroll),
			Damroll: int8(p.DamDice.Add),
		},
		Alignment:  p.Alignment,
		IDNum:      -1,
		Act:        p.Act,
		AffectedBy: p.Affected,
		Position:   p.Position,
		DefaultPos: p.DefaultPos,
		InRoom:     Nowhere,
	}
	h := w.Chars.Push(ch)
	w.mobIndex[slot].Number++
	return h, nil
}

// NewObject copies object prototype slot into the arena.
func (w *World) NewObject(slot int) (arena.Handle, error) {
	p := w.ObjProto(slot)
	if p == nil {
		return 0, fmt.Errorf("%w: object %d", ErrNoPrototype, slot)
	}
	o := newObjectFrom(p)
	o.Proto = slot
	w.objSerial++
	o.serial = w.objSerial
	h := w.Objs.Push(o)
	w.objIndex[slot].Number++
	return h, nil
}

func newObjectFrom(p *data.ObjProto) *Object {
	return &Object{
		Proto:       Nothing,
		Vnum:        p.Vnum,
		Keywords:    p.Keywords,
		ShortDescr:  p.ShortDescr,
		Description: p.Description,
		Type:        p.Type,
		Extra:       p.Extra,
		Wear:        p.Wear,
		Values:      p.Values,
		Weight:      p.Weight,
		Cost:        p.Cost,
		Rent:        p.Rent,
		Affects:     p.Affects,
		InRoom:      Nowhere,
		WornOn:      -1,
	}
}

// NewNote creates an unprototyped note holding text. Notes have no vnum and
// are not counted against any prototype.
func (w *World) NewNote(keywords, short, long, text string) arena.Handle {
	o := &Object{
		Proto:       Nothing,
		Vnum:        -1,
		Keywords:    keywords,
		ShortDescr:  short,
		Description: long,
		Text:        text,
		Type:        data.ItemNote,
		Wear:        data.ItemWearTake | data.ItemWearHold,
		Weight:      1,
		Cost:        30,
		Rent:        10,
		InRoom:      Nowhere,
		WornOn:      -1,
	}
	w.objSerial++
	o.serial = w.objSerial
	return w.Objs.Push(o)
}

// NewPlayer puts a player character into the arena.
func (w *World) NewPlayer(ch *Character) arena.Handle {
	ch.Proto = Nothing
	if ch.Player == nil {
		ch.Player = &PlayerData{}
	}
	ch.InRoom = Nowhere
	return w.Chars.Push(ch)
}

// EntryRoom picks the room slot a player enters the game in. Frozen players
// always go to the frozen room; otherwise a requested load room wins over the
// start room for the player's level.
func (w *World) EntryRoom(ch *Character, immortalLevel int) int {
	if ch.Act&data.PlrFrozen != 0 {
		return w.Start.Frozen
	}
	if ch.Player != nil && ch.Act&data.PlrLoadRoom != 0 {
		if slot, ok := w.ResolveRoom(ch.Player.LoadRoom); ok {
			return slot
		}
	}
	if int(ch.Level) >= immortalLevel {
		return w.Start.Immort
	}
	return w.Start.Mortal
}

func placed(o *Object) bool {
	return o.InRoom != Nowhere || !o.CarriedBy.IsZero() || !o.WornBy.IsZero() || !o.InObj.IsZero()
}

// ObjToRoom puts an unplaced object on the floor of room slot.
func (w *World) ObjToRoom(h arena.Handle, room int) error {
	o, err := w.Objs.Get(h)
	if err != nil {
		return err
	}
	r := w.Room(room)
	if r == nil {
		return fmt.Errorf("%w: %d", ErrNoRoom, room)
	}
	if placed(o) {
		return ErrPlaced
	}
	r.Contents = append(r.Contents, h)
	o.InRoom = room
	return nil
}

// ObjFromRoom lifts an object off the floor.
func (w *World) ObjFromRoom(h arena.Handle) error {
	o, err := w.Objs.Get(h)
	if err != nil {
		return err
	}
	r := w.Room(o.InRoom)
	if r == nil {
		return ErrNotHere
	}
	r.Contents = removeHandle(r.Contents, h)
	o.InRoom = Nowhere
	return nil
}

// ObjToChar adds an unplaced object to the end of a character's inventory.
func (w *World) ObjToChar(obj, ch arena.Handle) error {
	o, err := w.Objs.Get(obj)
	if err != nil {
		return err
	}
	c, err := w.Chars.Get(ch)
	if err != nil {
		return err
	}
	if placed(o) {
		return ErrPlaced
	}
	c.Carrying = append(c.Carrying, obj)
	o.CarriedBy = ch
	markCrash(c)
	return nil
}

// ObjFromChar takes an object out of its carrier's inventory.
func (w *World) ObjFromChar(obj arena.Handle) error {
	o, err := w.Objs.Get(obj)
	if err != nil {
		return err
	}
	if o.CarriedBy.IsZero() {
		return ErrNotHere
	}
	c, err := w.Chars.Get(o.CarriedBy)
	if err != nil {
		return err
	}
	c.Carrying = removeHandle(c.Carrying, obj)
	o.CarriedBy = 0
	markCrash(c)
	return nil
}

// markCrash flags a player whose inventory changed so the next auto-save
// rewrites its crash file.
func markCrash(c *Character) {
	if !c.IsNPC() {
		c.Act |= data.PlrCrash
	}
}

// ObjToObj puts an unplaced object inside container.
func (w *World) ObjToObj(obj, container arena.Handle) error {
	o, err := w.Objs.Get(obj)
	if err != nil {
		return err
	}
	c, err := w.Objs.Get(container)
	if err != nil {
		return err
	}
	if placed(o) {
		return ErrPlaced
	}
	c.Contains = append(c.Contains, obj)
	o.InObj = container
	return nil
}

// ObjFromObj takes an object out of the container holding it.
func (w *World) ObjFromObj(obj arena.Handle) error {
	o, err := w.Objs.Get(obj)
	if err != nil {
		return err
	}
	if o.InObj.IsZero() {
		return ErrNotHere
	}
	c, err := w.Objs.Get(o.InObj)
	if err != nil {
		return err
	}
	c.Contains = removeHandle(c.Contains, obj)
	o.InObj = 0
	return nil
}

// Unplace detaches an object from wherever it is.
func (w *World) Unplace(obj arena.Handle) error {
	o, err := w.Objs.Get(obj)
	if err != nil {
		return err
	}
	switch {
	case o.InRoom != Nowhere:
		return w.ObjFromRoom(obj)
	case !o.CarriedBy.IsZero():
		return w.ObjFromChar(obj)
	case !o.WornBy.IsZero():
		_, err := w.Unequip(o.WornBy, o.WornOn)
		return err
	case !o.InObj.IsZero():
		return w.ObjFromObj(obj)
	}
	return nil
}

// CharToRoom puts a character in room slot, leaving its current room first.
func (w *World) CharToRoom(ch arena.Handle, room int) error {
	c, err := w.Chars.Get(ch)
	if err != nil {
		return err
	}
	r := w.Room(room)
	if r == nil {
		return fmt.Errorf("%w: %d", ErrNoRoom, room)
	}
	if c.InRoom != Nowhere {
		if err := w.CharFromRoom(ch); err != nil {
			return err
		}
	}
	r.People = append(r.People, ch)
	c.InRoom = room
	return nil
}

// CharFromRoom takes a character out of its room.
func (w *World) CharFromRoom(ch arena.Handle) error {
	c, err := w.Chars.Get(ch)
	if err != nil {
		return err
	}
	r := w.Room(c.InRoom)
	if r == nil {
		return ErrNotHere
	}
	r.People = removeHandle(r.People, ch)
	c.InRoom = Nowhere
	return nil
}

// ExtractObj removes an object and everything inside it from the world.
func (w *World) ExtractObj(h arena.Handle) error {
	o, err := w.Objs.Get(h)
	if err != nil {
		return err
	}
	for len(o.Contains) > 0 {
		if err := w.ExtractObj(o.Contains[0]); err != nil {
			return err
		}
	}
	if err := w.Unplace(h); err != nil {
		return err
	}
	if o.Proto != Nothing {
		w.objIndex[o.Proto].Number--
	}
	_, err = w.Objs.Remove(h)
	return err
}

// ExtractChar removes a character from the world together with everything
// it wears or carries.
func (w *World) ExtractChar(h arena.Handle) error {
	c, err := w.Chars.Get(h)
	if err != nil {
		return err
	}
	for pos := range c.Equipment {
		if c.Equipment[pos].IsZero() {
			continue
		}
		obj, err := w.Unequip(h, pos)
		if err != nil {
			return err
		}
		if err := w.ExtractObj(obj); err != nil {
			return err
		}
	}
	for len(c.Carrying) > 0 {
		if err := w.ExtractObj(c.Carrying[0]); err != nil {
			return err
		}
	}
	if c.InRoom != Nowhere {
		if err := w.CharFromRoom(h); err != nil {
			return err
		}
	}
	if c.Proto != Nothing {
		w.mobIndex[c.Proto].Number--
	}
	_, err = w.Chars.Remove(h)
	return err
}

// FindObjInRoom returns the first object of prototype slot lying in room.
func (w *World) FindObjInRoom(room, proto int) (arena.Handle, bool) {
	r := w.Room(room)
	if r == nil {
		return 0, false
	}
	for _, h := range r.Contents {
		if o, err := w.Objs.Get(h); err == nil && o.Proto == proto {
			return h, true
		}
	}
	return 0, false
}

// FindObjByProto returns the most recently created live instance of an
// object prototype.
func (w *World) FindObjByProto(proto int) (arena.Handle, bool) {
	var found arena.Handle
	var best uint64
	w.Objs.Each(func(h arena.Handle, o *Object) {
		if o.Proto == proto && o.serial > best {
			found, best = h, o.serial
		}
	})
	return found, !found.IsZero()
}

func removeHandle(list []arena.Handle, h arena.Handle) []arena.Handle {
	if i := slices.Index(list, h); i >= 0 {
		return slices.Delete(list, i, i+1)
	}
	return list
}
