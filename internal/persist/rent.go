package persist

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/l1jgo/worldcore/internal/codec"
	"github.com/l1jgo/worldcore/internal/core/arena"
	"github.com/l1jgo/worldcore/internal/data"
	"github.com/l1jgo/worldcore/internal/world"
)

// Rent codes recorded in a rent file header.
const (
	RentUndefined = 0
	RentCrash     = 1
	RentRented    = 2
	RentCryo      = 3
	RentForced    = 4
	RentTimedOut  = 5
)

// MaxBagRows bounds how deep nesting is rebuilt on load. Items nested deeper
// come back loose in the inventory.
const MaxBagRows = 5

const (
	headerSize   = 60
	itemSize     = 58
	headerSpares = 8
)

// Header is the fixed block at the start of a rent file.
type Header struct {
	Time       int64
	Code       int32
	CostPerDay int32
	Gold       int32
	Bank       int32
	NItems     int32
}

// Item is one object of a rent file. Location is 0 for carried, pos+1 for
// worn at pos, and -d for nested d levels inside the nearest preceding item
// at depth d-1.
type Item struct {
	Vnum      int32
	Location  int16
	Values    [4]int32
	Extra     int64
	Weight    int32
	Timer     int32
	Bitvector int64
	Affects   [data.MaxObjAffect]data.ObjAffect
}

func (h *Header) encode() []byte {
	w := codec.NewWriter(headerSize)
	w.WriteQ(h.Time)
	w.WriteD(h.Code)
	w.WriteD(h.CostPerDay)
	w.WriteD(h.Gold)
	w.WriteD(h.Bank)
	w.WriteD(h.NItems)
	w.Pad(headerSpares * 4)
	return w.Bytes()
}

func decodeHeader(b []byte) (Header, error) {
	r := codec.NewReader(b)
	h := Header{
		Time:       r.ReadQ(),
		Code:       r.ReadD(),
		CostPerDay: r.ReadD(),
		Gold:       r.ReadD(),
		Bank:       r.ReadD(),
		NItems:     r.ReadD(),
	}
	r.Skip(headerSpares * 4)
	return h, r.Err()
}

func (it *Item) encode(w *codec.Writer) {
	w.WriteD(it.Vnum)
	w.WriteH(it.Location)
	for _, v := range it.Values {
		w.WriteD(v)
	}
	w.WriteQ(it.Extra)
	w.WriteD(it.Weight)
	w.WriteD(it.Timer)
	w.WriteQ(it.Bitvector)
	for _, af := range it.Affects {
		w.WriteI8(af.Location)
		w.WriteI8(af.Modifier)
	}
}

func decodeItem(r *codec.Reader) Item {
	var it Item
	it.Vnum = r.ReadD()
	it.Location = r.ReadH()
	for i := range it.Values {
		it.Values[i] = r.ReadD()
	}
	it.Extra = r.ReadQ()
	it.Weight = r.ReadD()
	it.Timer = r.ReadD()
	it.Bitvector = r.ReadQ()
	for i := range it.Affects {
		it.Affects[i] = data.ObjAffect{Location: r.ReadI8(), Modifier: r.ReadI8()}
	}
	return it
}

// EncodeRentFile lays out a header followed by items.
func EncodeRentFile(h Header, items []Item) []byte {
	h.NItems = int32(len(items))
	w := codec.NewWriter(headerSize + len(items)*itemSize)
	w.WriteBytes(h.encode())
	for i := range items {
		items[i].encode(w)
	}
	return w.Bytes()
}

// DecodeRentFile parses a whole rent file. A trailing partial item record is
// corruption.
func DecodeRentFile(b []byte) (Header, []Item, error) {
	if len(b) < headerSize {
		return Header{}, nil, fmt.Errorf("%w: header is %d bytes", ErrCorruptRent, len(b))
	}
	h, err := decodeHeader(b[:headerSize])
	if err != nil {
		return Header{}, nil, fmt.Errorf("%w: %v", ErrCorruptRent, err)
	}
	body := b[headerSize:]
	if len(body)%itemSize != 0 {
		return h, nil, fmt.Errorf("%w: %d trailing bytes", ErrCorruptRent, len(body)%itemSize)
	}
	r := codec.NewReader(body)
	items := make([]Item, 0, len(body)/itemSize)
	for r.Remaining() > 0 {
		items = append(items, decodeItem(r))
	}
	if err := r.Err(); err != nil {
		return h, nil, fmt.Errorf("%w: %v", ErrCorruptRent, err)
	}
	return h, items, nil
}

func itemFrom(o *world.Object, loc int) Item {
	return Item{
		Vnum:      o.Vnum,
		Location:  int16(loc),
		Values:    o.Values,
		Extra:     o.Extra,
		Weight:    o.Weight,
		Timer:     o.Timer,
		Bitvector: o.Bitvector,
		Affects:   o.Affects,
	}
}

// Flatten lists everything ch wears and carries: worn items by position,
// then carried items in carrying order, each followed by its contents one
// level deeper.
func Flatten(w *world.World, ch arena.Handle) ([]Item, error) {
	c, err := w.Char(ch)
	if err != nil {
		return nil, err
	}
	var items []Item
	var walk func(h arena.Handle, loc int) error
	walk = func(h arena.Handle, loc int) error {
		o, err := w.Obj(h)
		if err != nil {
			return err
		}
		items = append(items, itemFrom(o, loc))
		for _, in := range o.Contains {
			if err := walk(in, min(0, loc)-1); err != nil {
				return err
			}
		}
		return nil
	}
	for pos, h := range c.Equipment {
		if h.IsZero() {
			continue
		}
		if err := walk(h, pos+1); err != nil {
			return nil, err
		}
	}
	for _, h := range c.Carrying {
		if err := walk(h, 0); err != nil {
			return nil, err
		}
	}
	return items, nil
}

// Unflatten materialises items onto ch. A worn item that no longer fits its
// position, or whose position is taken, goes to the inventory. Nested items
// whose container vanished or is no longer a container spill into the
// inventory rather than being lost. Items with an unknown vnum are skipped.
// It returns the number of items created.
func Unflatten(w *world.World, ch arena.Handle, items []Item, log *zap.Logger) (int, error) {
	c, err := w.Char(ch)
	if err != nil {
		return 0, err
	}
	// open[d] is the last item read at depth d, the parent of anything at d+1.
	var open [MaxBagRows]arena.Handle
	mark := func(depth int, h arena.Handle) {
		if depth >= MaxBagRows {
			return
		}
		open[depth] = h
		for d := depth + 1; d < MaxBagRows; d++ {
			open[d] = 0
		}
	}
	made := 0
	for _, it := range items {
		depth := 0
		if it.Location < 0 {
			depth = -int(it.Location)
		}
		slot, ok := w.ResolveObject(it.Vnum)
		if !ok {
			log.Warn("租用物品原型不存在，略過", zap.String("name", c.Name), zap.Int32("vnum", it.Vnum))
			mark(depth, 0)
			continue
		}
		h, err := w.NewObject(slot)
		if err != nil {
			return made, err
		}
		made++
		o := w.Objs.MustGet(h)
		o.Values = it.Values
		o.Extra = it.Extra
		o.Weight = it.Weight
		o.Timer = it.Timer
		o.Bitvector = it.Bitvector
		o.Affects = it.Affects

		if it.Location > 0 {
			err = autoEquip(w, ch, h, int(it.Location)-1)
		} else {
			err = nest(w, ch, h, depth, &open)
		}
		if err != nil {
			return made, err
		}
		mark(depth, h)
	}
	return made, nil
}

func autoEquip(w *world.World, ch, h arena.Handle, pos int) error {
	c := w.Chars.MustGet(ch)
	o := w.Objs.MustGet(h)
	if pos >= 0 && pos < data.NumWears && c.Equipment[pos].IsZero() && o.CanWear(pos) {
		return w.Equip(ch, h, pos)
	}
	return w.ObjToChar(h, ch)
}

// nest puts h inside the open container one level up, or in the inventory
// when there is none.
func nest(w *world.World, ch, h arena.Handle, depth int, open *[MaxBagRows]arena.Handle) error {
	if depth > 0 && depth < MaxBagRows {
		if parent := open[depth-1]; !parent.IsZero() {
			if p, err := w.Obj(parent); err == nil && p.IsContainer() {
				return w.ObjToObj(h, parent)
			}
		}
	}
	return w.ObjToChar(h, ch)
}
