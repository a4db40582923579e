package persist

import (
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/l1jgo/worldcore/internal/config"
	"github.com/l1jgo/worldcore/internal/core/arena"
	"github.com/l1jgo/worldcore/internal/data"
	"github.com/l1jgo/worldcore/internal/data/datatest"
	"github.com/l1jgo/worldcore/internal/world"
)

// Object slots of the fixture world.
const (
	bag, sword, bread, key, helmet, box, ring = 0, 1, 2, 3, 4, 5, 6
)

const (
	vBag, vSword, vBread, vKey, vHelmet, vBox, vRing = 3020, 3021, 3022, 3023, 3024, 3025, 3026
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func bootWorld(t *testing.T) *world.World {
	t.Helper()
	w, err := world.Boot(datatest.World(), world.BootOptions{
		MortalStart: 3001,
		Rand:        rand.New(rand.NewPCG(3, 4)),
	}, zap.NewNop())
	require.NoError(t, err)
	return w
}

func newPlayer(w *world.World, name string) arena.Handle {
	return w.NewPlayer(&world.Character{
		Name:   name,
		Level:  10,
		Points: world.Points{Gold: 100, Armor: 100, MaxHit: 50, Hit: 50},
	})
}

func give(t *testing.T, w *world.World, ch arena.Handle, slot int) arena.Handle {
	t.Helper()
	h, err := w.NewObject(slot)
	require.NoError(t, err)
	require.NoError(t, w.ObjToChar(h, ch))
	return h
}

func put(t *testing.T, w *world.World, container arena.Handle, slot int) arena.Handle {
	t.Helper()
	h, err := w.NewObject(slot)
	require.NoError(t, err)
	require.NoError(t, w.ObjToObj(h, container))
	return h
}

func wear(t *testing.T, w *world.World, ch arena.Handle, slot, pos int) arena.Handle {
	t.Helper()
	h, err := w.NewObject(slot)
	require.NoError(t, err)
	require.NoError(t, w.Equip(ch, h, pos))
	return h
}

func newRentStore(t *testing.T) *RentStore {
	t.Helper()
	cfg := config.Default().Rent
	cfg.Dir = filepath.Join(t.TempDir(), "plrobjs")
	cfg.ArchiveDir = filepath.Join(t.TempDir(), "archive")
	s := NewRentStore(cfg, zap.NewNop())
	s.Now = func() time.Time { return epoch }
	return s
}

func TestUnflattenNestsAndEquips(t *testing.T) {
	w := bootWorld(t)
	ch := newPlayer(w, "alice")
	items := []Item{
		{Vnum: vSword, Location: 1},
		{Vnum: vBag, Location: 0},
		{Vnum: vBread, Location: -1},
		{Vnum: vBread, Location: -1},
		{Vnum: vRing, Location: 2},
	}
	n, err := Unflatten(w, ch, items, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	c := w.Chars.MustGet(ch)
	assert.Equal(t, sword, w.Objs.MustGet(c.Equipment[0]).Proto)
	assert.Equal(t, ring, w.Objs.MustGet(c.Equipment[1]).Proto)
	require.Len(t, c.Carrying, 1)
	b := w.Objs.MustGet(c.Carrying[0])
	assert.Equal(t, bag, b.Proto)
	require.Len(t, b.Contains, 2)
	for _, h := range b.Contains {
		assert.Equal(t, bread, w.Objs.MustGet(h).Proto)
	}
}

func TestFlattenRoundTrip(t *testing.T) {
	w := bootWorld(t)
	ch := newPlayer(w, "alice")
	wear(t, w, ch, ring, data.WearFingerR)
	wear(t, w, ch, sword, data.WearWield)
	b := give(t, w, ch, bag)
	bx := put(t, w, b, box)
	put(t, w, bx, bread)
	put(t, w, b, bread)
	give(t, w, ch, bread)

	items, err := Flatten(w, ch)
	require.NoError(t, err)
	var locs []int16
	for _, it := range items {
		locs = append(locs, it.Location)
	}
	assert.Equal(t, []int16{2, 17, 0, -1, -2, -1, 0}, locs)

	raw := EncodeRentFile(Header{Code: RentCrash}, items)
	assert.Len(t, raw, headerSize+len(items)*itemSize)
	h, decoded, err := DecodeRentFile(raw)
	require.NoError(t, err)
	assert.Equal(t, int32(len(items)), h.NItems)
	require.Equal(t, items, decoded)

	other := newPlayer(w, "bob")
	_, err = Unflatten(w, other, decoded, zap.NewNop())
	require.NoError(t, err)
	again, err := Flatten(w, other)
	require.NoError(t, err)
	assert.Equal(t, items, again)
}

func TestUnflattenSpillsDeepAndOrphanedItems(t *testing.T) {
	w := bootWorld(t)
	ch := newPlayer(w, "alice")
	items := []Item{
		{Vnum: vBag, Location: 0},
		{Vnum: vBox, Location: -1},
		{Vnum: vBag, Location: -2},
		{Vnum: vBox, Location: -3},
		{Vnum: vBag, Location: -4},
		{Vnum: vBread, Location: -5}, // past the deepest row
		{Vnum: vBread, Location: 0},
		{Vnum: vSword, Location: -1}, // bread is no container
		{Vnum: 9999, Location: 0},
		{Vnum: vBread, Location: -1}, // parent vanished from the world data
	}
	n, err := Unflatten(w, ch, items, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 9, n)

	c := w.Chars.MustGet(ch)
	var protos []int
	for _, h := range c.Carrying {
		protos = append(protos, w.Objs.MustGet(h).Proto)
	}
	assert.Equal(t, []int{bag, bread, bread, sword, bread}, protos)

	depth := 0
	for h := c.Carrying[0]; ; depth++ {
		o := w.Objs.MustGet(h)
		if len(o.Contains) == 0 {
			break
		}
		h = o.Contains[0]
	}
	assert.Equal(t, 4, depth)
}

func TestUnflattenFallsBackToInventory(t *testing.T) {
	w := bootWorld(t)
	ch := newPlayer(w, "alice")
	items := []Item{
		{Vnum: vBread, Location: data.WearHead + 1}, // cannot be worn there
		{Vnum: vRing, Location: data.WearFingerR + 1},
		{Vnum: vRing, Location: data.WearFingerR + 1}, // slot taken
	}
	_, err := Unflatten(w, ch, items, zap.NewNop())
	require.NoError(t, err)
	c := w.Chars.MustGet(ch)
	assert.False(t, c.Equipment[data.WearFingerR].IsZero())
	assert.True(t, c.Equipment[data.WearHead].IsZero())
	assert.Len(t, c.Carrying, 2)
}

func TestDecodeRentFileCorrupt(t *testing.T) {
	_, _, err := DecodeRentFile(make([]byte, headerSize-1))
	assert.ErrorIs(t, err, ErrCorruptRent)
	_, _, err = DecodeRentFile(make([]byte, headerSize+itemSize+3))
	assert.ErrorIs(t, err, ErrCorruptRent)
}

func TestCrashSaveAndLoad(t *testing.T) {
	w := bootWorld(t)
	s := newRentStore(t)
	ch := newPlayer(w, "Alice")
	wear(t, w, ch, sword, data.WearWield)
	give(t, w, ch, bread)
	require.NoError(t, s.CrashSave(w, ch))
	assert.FileExists(t, filepath.Join(s.cfg.Dir, "a", "alice.objs"))
	assert.Equal(t, 2, w.Objs.Len(), "crash saves leave the world alone")

	s.Now = func() time.Time { return epoch.Add(time.Hour) }
	back := newPlayer(w, "alice")
	res, err := s.Load(w, back)
	require.NoError(t, err)
	assert.Equal(t, LoadClean, res.Outcome)
	assert.Equal(t, int32(RentCrash), res.Code)
	assert.Equal(t, 2, res.Items)
	assert.True(t, res.UseStartRoom())

	c := w.Chars.MustGet(back)
	assert.False(t, c.Equipment[data.WearWield].IsZero())
	assert.Len(t, c.Carrying, 1)

	sum, err := ListRent(s.Path("alice"))
	require.NoError(t, err)
	assert.Equal(t, int32(RentCrash), sum.Header.Code)
	assert.Equal(t, epoch.Add(time.Hour).Unix(), sum.Header.Time)
}

func TestRentSaveChargesOnReturn(t *testing.T) {
	w := bootWorld(t)
	s := newRentStore(t)
	ch := newPlayer(w, "alice")
	wear(t, w, ch, sword, data.WearWield)
	wear(t, w, ch, helmet, data.WearHead)
	give(t, w, ch, key)
	give(t, w, ch, ring)

	require.NoError(t, s.RentSave(w, ch, 10))
	assert.Zero(t, w.Objs.Len(), "stored and unrentable objects leave the world")

	sum, err := ListRent(s.Path("alice"))
	require.NoError(t, err)
	assert.Equal(t, int32(RentRented), sum.Header.Code)
	assert.Equal(t, int32(10), sum.Header.CostPerDay)
	var vnums []int32
	for _, it := range sum.Items {
		vnums = append(vnums, it.Vnum)
	}
	assert.Equal(t, []int32{vSword, vRing}, vnums)

	s.Now = func() time.Time { return epoch.Add(3*24*time.Hour + time.Hour) }
	back := newPlayer(w, "alice")
	res, err := s.Load(w, back)
	require.NoError(t, err)
	assert.Equal(t, LoadClean, res.Outcome)
	assert.Equal(t, int32(30), res.Cost)
	assert.False(t, res.UseStartRoom())
	assert.Equal(t, int32(70), w.Chars.MustGet(back).Points.Gold)
	assert.Equal(t, 2, w.Objs.Len())
}

func TestRentExpired(t *testing.T) {
	w := bootWorld(t)
	s := newRentStore(t)
	ch := newPlayer(w, "alice")
	give(t, w, ch, ring)
	require.NoError(t, s.RentSave(w, ch, 10))

	s.Now = func() time.Time { return epoch.Add(30 * 24 * time.Hour) }
	back := newPlayer(w, "alice")
	c := w.Chars.MustGet(back)
	c.Points.Bank = 100
	res, err := s.Load(w, back)
	require.NoError(t, err)
	assert.Equal(t, LoadRentExpired, res.Outcome)
	assert.True(t, res.UseStartRoom())
	assert.Zero(t, w.Objs.Len())
	assert.Equal(t, int32(100), c.Points.Gold)

	sum, err := ListRent(s.Path("alice"))
	require.NoError(t, err)
	assert.Equal(t, int32(RentCrash), sum.Header.Code)
	assert.Empty(t, sum.Items)
}

func TestBankPaysFirst(t *testing.T) {
	w := bootWorld(t)
	s := newRentStore(t)
	ch := newPlayer(w, "alice")
	require.NoError(t, s.RentSave(w, ch, 50))

	s.Now = func() time.Time { return epoch.Add(3 * 24 * time.Hour) }
	back := newPlayer(w, "alice")
	c := w.Chars.MustGet(back)
	c.Points.Bank = 80
	_, err := s.Load(w, back)
	require.NoError(t, err)
	assert.Equal(t, int32(0), c.Points.Gold)
	assert.Equal(t, int32(30), c.Points.Bank)
}

func TestLoadWithoutUsableFile(t *testing.T) {
	w := bootWorld(t)
	s := newRentStore(t)
	ch := newPlayer(w, "alice")

	res, err := s.Load(w, ch)
	require.NoError(t, err)
	assert.Equal(t, LoadNoEquipment, res.Outcome)

	path := s.Path("alice")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	res, err = s.Load(w, ch)
	require.NoError(t, err)
	assert.Equal(t, LoadNoEquipment, res.Outcome)

	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o644))
	res, err = s.Load(w, ch)
	require.NoError(t, err)
	assert.Equal(t, LoadCorrupt, res.Outcome)
	assert.True(t, res.UseStartRoom())
}

func TestOffer(t *testing.T) {
	w := bootWorld(t)
	s := newRentStore(t)
	s.cfg.FreeRent = false
	ch := newPlayer(w, "alice")
	wear(t, w, ch, sword, data.WearWield)
	wear(t, w, ch, helmet, data.WearHead)
	b := give(t, w, ch, bag)
	put(t, w, b, ring)

	cost, err := s.Offer(w, ch, RentFactor)
	require.NoError(t, err)
	assert.Equal(t, int32(60+2+10+100), cost)

	cost, err = s.Offer(w, ch, CryoFactor)
	require.NoError(t, err)
	assert.Equal(t, int32(4*172), cost)

	s.cfg.MaxObjSave = 2
	_, err = s.Offer(w, ch, RentFactor)
	assert.ErrorIs(t, err, ErrTooMany)

	s.cfg.FreeRent = true
	s.cfg.MaxObjSave = 30
	cost, err = s.Offer(w, ch, RentFactor)
	require.NoError(t, err)
	assert.Zero(t, cost)
}

func TestCryoSaveTakesFee(t *testing.T) {
	w := bootWorld(t)
	s := newRentStore(t)
	ch := newPlayer(w, "alice")
	give(t, w, ch, ring)
	require.NoError(t, s.CryoSave(w, ch, 40))

	c := w.Chars.MustGet(ch)
	assert.Equal(t, int32(60), c.Points.Gold)
	assert.NotZero(t, c.Act&data.PlrCryo)

	sum, err := ListRent(s.Path("alice"))
	require.NoError(t, err)
	assert.Equal(t, "Cryo", CodeName(sum.Header.Code))
	assert.Zero(t, sum.Header.CostPerDay)
	assert.Equal(t, int32(60), sum.Header.Gold)
}

func TestIdleSave(t *testing.T) {
	w := bootWorld(t)
	s := newRentStore(t)
	s.cfg.FreeRent = false
	ch := newPlayer(w, "alice")
	give(t, w, ch, ring)
	give(t, w, ch, key)

	cost, err := s.IdleSave(w, ch)
	require.NoError(t, err)
	assert.Equal(t, int32(2*10), cost, "twice the item rent, no minimum fee")
	assert.Zero(t, w.Objs.Len())

	sum, err := ListRent(s.Path("alice"))
	require.NoError(t, err)
	assert.Equal(t, int32(RentTimedOut), sum.Header.Code)
	assert.Equal(t, "TimedOut", CodeName(sum.Header.Code))
	assert.Equal(t, int32(20), sum.Header.CostPerDay)
	assert.Len(t, sum.Items, 1)

	s.Now = func() time.Time { return epoch.Add(2 * 24 * time.Hour) }
	back := newPlayer(w, "alice")
	res, err := s.Load(w, back)
	require.NoError(t, err)
	assert.Equal(t, LoadClean, res.Outcome)
	assert.Equal(t, int32(40), res.Cost)
	assert.True(t, res.UseStartRoom())
	assert.Equal(t, int32(60), w.Chars.MustGet(back).Points.Gold)
}

func TestIdleSaveStripsDearestUntilAffordable(t *testing.T) {
	w := bootWorld(t)
	s := newRentStore(t)
	s.cfg.FreeRent = false
	ch := newPlayer(w, "alice")
	wear(t, w, ch, sword, data.WearWield)
	give(t, w, ch, ring)
	b := give(t, w, ch, bag)
	put(t, w, b, box)

	// 2 * (60 + 10 + 2 + 3) is more than the 100 gold on hand.
	cost, err := s.IdleSave(w, ch)
	require.NoError(t, err)
	assert.Equal(t, int32(2*(10+2+3)), cost)
	assert.Zero(t, w.Objs.Len())

	sum, err := ListRent(s.Path("alice"))
	require.NoError(t, err)
	var vnums []int32
	for _, it := range sum.Items {
		vnums = append(vnums, it.Vnum)
	}
	assert.ElementsMatch(t, []int32{vRing, vBag, vBox}, vnums)
	assert.Equal(t, int32(30), sum.Header.CostPerDay)
}

func TestIdleSaveWithNothingLeftRemovesFile(t *testing.T) {
	w := bootWorld(t)
	s := newRentStore(t)
	s.cfg.FreeRent = false
	ch := newPlayer(w, "alice")
	give(t, w, ch, sword)
	require.NoError(t, s.CrashSave(w, ch))
	require.FileExists(t, s.Path("alice"))

	w.Chars.MustGet(ch).Points.Gold = 0
	cost, err := s.IdleSave(w, ch)
	require.NoError(t, err)
	assert.Zero(t, cost)
	assert.Zero(t, w.Objs.Len())
	assert.NoFileExists(t, s.Path("alice"))
}

func TestIdleSaveUnderFreeRent(t *testing.T) {
	w := bootWorld(t)
	s := newRentStore(t)
	ch := newPlayer(w, "alice")
	w.Chars.MustGet(ch).Points.Gold = 0
	give(t, w, ch, sword)

	cost, err := s.IdleSave(w, ch)
	require.NoError(t, err)
	assert.Zero(t, cost)
	sum, err := ListRent(s.Path("alice"))
	require.NoError(t, err)
	assert.Equal(t, int32(RentTimedOut), sum.Header.Code)
	assert.Len(t, sum.Items, 1)
}

func TestClean(t *testing.T) {
	w := bootWorld(t)
	s := newRentStore(t)

	old := newPlayer(w, "old")
	give(t, w, old, ring)
	require.NoError(t, s.CrashSave(w, old))
	rented := newPlayer(w, "renter")
	require.NoError(t, s.RentSave(w, rented, 5))
	raw, err := os.ReadFile(s.Path("old"))
	require.NoError(t, err)

	s.Now = func() time.Time { return epoch.Add(11 * 24 * time.Hour) }
	fresh := newPlayer(w, "fresh")
	require.NoError(t, s.CrashSave(w, fresh))

	n, err := s.Clean()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoFileExists(t, s.Path("old"))
	assert.FileExists(t, s.Path("renter"))
	assert.FileExists(t, s.Path("fresh"))

	archived, err := ReadArchive(filepath.Join(s.cfg.ArchiveDir, "old.objs.zst"))
	require.NoError(t, err)
	assert.Equal(t, raw, archived)
}
