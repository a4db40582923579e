package world

import (
	"errors"
	"fmt"

	"github.com/l1jgo/worldcore/internal/core/arena"
	"github.com/l1jgo/worldcore/internal/data"
)

var (
	ErrBadPosition = errors.New("world: invalid equipment position")
	ErrOccupied    = errors.New("world: equipment position already used")
)

// armorFactor weighs an armour item's value by where it is worn.
func armorFactor(pos int) int16 {
	switch pos {
	case data.WearBody:
		return 3
	case data.WearHead, data.WearLegs:
		return 2
	}
	return 1
}

func applyAC(o *Object, pos int) int16 {
	if o.Type != data.ItemArmor {
		return 0
	}
	return armorFactor(pos) * int16(o.Values[0])
}

// affectModify adds or removes one modifier on a character.
func affectModify(c *Character, loc int, mod int, bitv int64, add bool) {
	if add {
		c.AffectedBy |= bitv
	} else {
		c.AffectedBy &^= bitv
		mod = -mod
	}
	switch loc {
	case data.ApplyStr:
		c.Abils.Str += int8(mod)
	case data.ApplyDex:
		c.Abils.Dex += int8(mod)
	case data.ApplyInt:
		c.Abils.Intel += int8(mod)
	case data.ApplyWis:
		c.Abils.Wis += int8(mod)
	case data.ApplyCon:
		c.Abils.Con += int8(mod)
	case data.ApplyCha:
		c.Abils.Cha += int8(mod)
	case data.ApplyMana:
		c.Points.MaxMana += int16(mod)
	case data.ApplyHit:
		c.Points.MaxHit += int16(mod)
	case data.ApplyMove:
		c.Points.MaxMove += int16(mod)
	case data.ApplyAC:
		c.Points.Armor += int16(mod)
	case data.ApplyHitroll:
		c.Points.Hitroll += int8(mod)
	case data.ApplyDamroll:
		c.Points.Damroll += int8(mod)
	}
}

// Equip wears an unplaced object at pos and applies its modifiers.
func (w *World) Equip(ch arena.Handle, obj arena.Handle, pos int) error {
	if pos < 0 || pos >= data.NumWears {
		return fmt.Errorf("%w: %d", ErrBadPosition, pos)
	}
	c, err := w.Chars.Get(ch)
	if err != nil {
		return err
	}
	o, err := w.Objs.Get(obj)
	if err != nil {
		return err
	}
	if !c.Equipment[pos].IsZero() {
		return fmt.Errorf("%w: %d", ErrOccupied, pos)
	}
	if placed(o) {
		return ErrPlaced
	}
	c.Equipment[pos] = obj
	o.WornBy, o.WornOn = ch, pos

	c.Points.Armor -= applyAC(o, pos)
	for _, af := range o.Affects {
		affectModify(c, int(af.Location), int(af.Modifier), o.Bitvector, true)
	}
	return nil
}

// Unequip takes off whatever is worn at pos and reverses its modifiers. The
// object is left unplaced.
func (w *World) Unequip(ch arena.Handle, pos int) (arena.Handle, error) {
	if pos < 0 || pos >= data.NumWears {
		return 0, fmt.Errorf("%w: %d", ErrBadPosition, pos)
	}
	c, err := w.Chars.Get(ch)
	if err != nil {
		return 0, err
	}
	obj := c.Equipment[pos]
	if obj.IsZero() {
		return 0, ErrNotHere
	}
	o, err := w.Objs.Get(obj)
	if err != nil {
		return 0, err
	}
	c.Points.Armor += applyAC(o, pos)
	for _, af := range o.Affects {
		affectModify(c, int(af.Location), int(af.Modifier), o.Bitvector, false)
	}
	c.Equipment[pos] = 0
	o.WornBy, o.WornOn = 0, -1
	return obj, nil
}

// AddAffect applies a temporary effect and records it on the character.
func (w *World) AddAffect(ch arena.Handle, af Affect) error {
	c, err := w.Chars.Get(ch)
	if err != nil {
		return err
	}
	affectModify(c, int(af.Location), int(af.Modifier), af.Bitvector, true)
	c.Affects = append(c.Affects, af)
	return nil
}

// Detached is what Detach took off a character.
type Detached struct {
	Char    arena.Handle
	Worn    [data.NumWears]arena.Handle
	Affects []Affect
}

// Detach strips a character down to its durable fields: everything worn is
// taken off and every temporary effect reversed. Reattach undoes it.
func (w *World) Detach(ch arena.Handle) (*Detached, error) {
	c, err := w.Chars.Get(ch)
	if err != nil {
		return nil, err
	}
	d := &Detached{Char: ch}
	for pos := range c.Equipment {
		if c.Equipment[pos].IsZero() {
			continue
		}
		if d.Worn[pos], err = w.Unequip(ch, pos); err != nil {
			return nil, err
		}
	}
	d.Affects = c.Affects
	c.Affects = nil
	for _, af := range d.Affects {
		affectModify(c, int(af.Location), int(af.Modifier), af.Bitvector, false)
	}
	return d, nil
}

// Reattach restores what Detach took off.
func (w *World) Reattach(d *Detached) error {
	for _, af := range d.Affects {
		if err := w.AddAffect(d.Char, af); err != nil {
			return err
		}
	}
	for pos, obj := range d.Worn {
		if obj.IsZero() {
			continue
		}
		if err := w.Equip(d.Char, obj, pos); err != nil {
			return err
		}
	}
	return nil
}
