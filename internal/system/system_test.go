package system

import (
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/l1jgo/worldcore/internal/config"
	"github.com/l1jgo/worldcore/internal/core/arena"
	"github.com/l1jgo/worldcore/internal/core/event"
	"github.com/l1jgo/worldcore/internal/data"
	"github.com/l1jgo/worldcore/internal/data/datatest"
	"github.com/l1jgo/worldcore/internal/persist"
	"github.com/l1jgo/worldcore/internal/session"
	"github.com/l1jgo/worldcore/internal/world"
	"github.com/l1jgo/worldcore/internal/zone"
)

const sword = 1 // object slot of the fixture sword, rent 60

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	w        *world.World
	players  *persist.PlayerFile
	rent     *persist.RentStore
	sessions *session.Registry
	ledger   *Ledger
	bus      *event.Bus
	life     *Lifecycle
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	w, err := world.Boot(datatest.World(), world.BootOptions{
		MortalStart: 3001,
		Rand:        rand.New(rand.NewPCG(5, 6)),
	}, zap.NewNop())
	require.NoError(t, err)

	dir := t.TempDir()
	players, err := persist.OpenPlayerFile(filepath.Join(dir, "players"), zap.NewNop())
	require.NoError(t, err)
	players.Now = func() time.Time { return epoch }

	cfg := config.Default().Rent
	cfg.Dir = filepath.Join(dir, "plrobjs")
	cfg.FreeRent = false
	rent := persist.NewRentStore(cfg, zap.NewNop())
	rent.Now = func() time.Time { return epoch }

	f := &fixture{
		w:        w,
		players:  players,
		rent:     rent,
		sessions: session.NewRegistry(w),
		ledger:   &Ledger{},
		bus:      event.NewBus(),
	}
	f.life = NewLifecycle(w, players, rent, f.sessions, f.ledger, f.bus, 31, zap.NewNop())
	return f
}

// register writes a fresh player record for name and returns a session that
// has not entered yet.
func (f *fixture) register(t *testing.T, id uint64, name string) *session.Session {
	t.Helper()
	e, err := f.players.CreateEntry(name)
	require.NoError(t, err)
	h := f.w.NewPlayer(&world.Character{
		Name:   name,
		Level:  10,
		IDNum:  e.ID,
		Points: world.Points{Gold: 1000, Armor: 100, Hit: 50, MaxHit: 50, MaxMana: 100, MaxMove: 80},
		Player: &world.PlayerData{PfilePos: e.Pos, LastLogon: epoch.Unix()},
	})
	require.NoError(t, f.players.Save(f.w, h))
	require.NoError(t, f.w.ExtractChar(h))

	sess := &session.Session{ID: id, Name: name, Host: "127.0.0.1"}
	require.NoError(t, f.sessions.Add(sess))
	return sess
}

func (f *fixture) give(t *testing.T, ch arena.Handle, slot int) {
	t.Helper()
	h, err := f.w.NewObject(slot)
	require.NoError(t, err)
	require.NoError(t, f.w.ObjToChar(h, ch))
}

func (f *fixture) later(d time.Duration) {
	f.players.Now = func() time.Time { return epoch.Add(d) }
	f.rent.Now = func() time.Time { return epoch.Add(d) }
}

func TestEnterRentAndReturn(t *testing.T) {
	f := newFixture(t)
	sess := f.register(t, 1, "alice")

	var loaded []event.RentLoaded
	event.Subscribe(f.bus, func(e event.RentLoaded) { loaded = append(loaded, e) })

	res, err := f.life.Enter(sess)
	require.NoError(t, err)
	assert.Equal(t, persist.LoadNoEquipment, res.Outcome)
	assert.Equal(t, session.StatePlaying, sess.State)
	c := f.w.Chars.MustGet(sess.Char)
	assert.Equal(t, int32(3001), f.w.Room(c.InRoom).Vnum)
	assert.Equal(t, "127.0.0.1", c.Player.Host)
	assert.Equal(t, 1, f.ledger.Len())

	f.bus.SwapBuffers()
	f.bus.DispatchAll()
	require.Len(t, loaded, 1)
	assert.Equal(t, int(persist.LoadNoEquipment), loaded[0].Outcome)

	_, err = f.life.Enter(sess)
	assert.ErrorIs(t, err, ErrAlreadyPlaying)

	inn, ok := f.w.ResolveRoom(3002)
	require.True(t, ok)
	require.NoError(t, f.w.CharToRoom(sess.Char, inn))
	f.give(t, sess.Char, sword)

	cost, err := f.life.Rent(sess)
	require.NoError(t, err)
	assert.Equal(t, int32(160), cost)
	assert.Equal(t, session.StateMenu, sess.State)
	assert.Zero(t, f.w.Chars.Len())
	assert.Zero(t, f.w.Objs.Len())

	f.later(2 * 24 * time.Hour)
	res, err = f.life.Enter(sess)
	require.NoError(t, err)
	assert.Equal(t, persist.LoadClean, res.Outcome)
	assert.Equal(t, int32(persist.RentRented), res.Code)
	assert.Equal(t, int32(320), res.Cost)

	c = f.w.Chars.MustGet(sess.Char)
	assert.Equal(t, int32(3002), f.w.Room(c.InRoom).Vnum, "renters come back where they left")
	assert.Equal(t, int32(680), c.Points.Gold)
	require.Len(t, c.Carrying, 1)
	assert.Equal(t, int32(3021), f.w.Objs.MustGet(c.Carrying[0]).Vnum)
	assert.Equal(t, 3, f.ledger.Len())

	rec, _, err := f.players.Load("alice")
	require.NoError(t, err)
	assert.Equal(t, int32(680), rec.Points.Gold, "the charge is on disk before play starts")
}

func TestRentRefusedWhenTooPoor(t *testing.T) {
	f := newFixture(t)
	sess := f.register(t, 1, "bob")
	_, err := f.life.Enter(sess)
	require.NoError(t, err)
	c := f.w.Chars.MustGet(sess.Char)
	c.Points.Gold = 10
	f.give(t, sess.Char, sword)

	_, err = f.life.Rent(sess)
	assert.ErrorIs(t, err, ErrCannotAfford)
	assert.Equal(t, session.StatePlaying, sess.State)
	assert.Len(t, c.Carrying, 1)
}

func TestCryoChargesUpFront(t *testing.T) {
	f := newFixture(t)
	sess := f.register(t, 1, "carol")
	_, err := f.life.Enter(sess)
	require.NoError(t, err)
	f.give(t, sess.Char, sword)

	fee, err := f.life.Cryo(sess)
	require.NoError(t, err)
	assert.Equal(t, int32(640), fee)

	f.later(30 * 24 * time.Hour)
	res, err := f.life.Enter(sess)
	require.NoError(t, err)
	assert.Equal(t, int32(persist.RentCryo), res.Code)
	assert.Zero(t, res.Cost)
	c := f.w.Chars.MustGet(sess.Char)
	assert.Equal(t, int32(360), c.Points.Gold)
	assert.Zero(t, c.Act&data.PlrCryo)
}

func TestIdlePlayersAreRentedOut(t *testing.T) {
	f := newFixture(t)
	sess := f.register(t, 1, "dave")
	_, err := f.life.Enter(sess)
	require.NoError(t, err)
	f.give(t, sess.Char, sword)

	idle := NewIdleSystem(f.sessions, f.life, 3, zap.NewNop())
	idle.Tick(1)
	idle.Tick(2)
	assert.Equal(t, 1, f.sessions.Count())
	idle.Tick(3)
	assert.Zero(t, f.sessions.Count())
	assert.Equal(t, session.StateClosed, sess.State)
	assert.Zero(t, f.w.Chars.Len())

	sum, err := persist.ListRent(f.rent.Path("dave"))
	require.NoError(t, err)
	assert.Equal(t, int32(persist.RentTimedOut), sum.Header.Code)
	assert.Equal(t, int32(2*60), sum.Header.CostPerDay, "twice the item rent")
	assert.Len(t, sum.Items, 1)

	f.later(24 * time.Hour)
	back := &session.Session{ID: 2, Name: "dave"}
	require.NoError(t, f.sessions.Add(back))
	res, err := f.life.Enter(back)
	require.NoError(t, err)
	assert.Equal(t, int32(persist.RentTimedOut), res.Code)
	assert.Equal(t, int32(120), res.Cost)
	c := f.w.Chars.MustGet(back.Char)
	assert.Equal(t, int32(880), c.Points.Gold)
	assert.Equal(t, int32(3001), f.w.Room(c.InRoom).Vnum)
	assert.Len(t, c.Carrying, 1)
}

func TestFailedIdleOutWaitsForAnotherLimit(t *testing.T) {
	f := newFixture(t)
	sess := f.register(t, 1, "frank")
	_, err := f.life.Enter(sess)
	require.NoError(t, err)
	f.give(t, sess.Char, sword)

	// A plain file where the rent directory should be makes the save fail.
	dir := filepath.Dir(f.rent.Path("frank"))
	require.NoError(t, os.MkdirAll(filepath.Dir(dir), 0o755))
	require.NoError(t, os.WriteFile(dir, nil, 0o644))

	core, logs := observer.New(zapcore.ErrorLevel)
	idle := NewIdleSystem(f.sessions, f.life, 3, zap.New(core))
	for p := uint64(1); p <= 5; p++ {
		idle.Tick(p)
	}
	assert.Equal(t, 1, logs.FilterMessage("閒置玩家存檔失敗").Len())
	assert.Equal(t, 2, sess.Idle)
	assert.Equal(t, session.StatePlaying, sess.State)
	assert.Equal(t, 1, f.sessions.Count())
	assert.Len(t, f.w.Chars.MustGet(sess.Char).Carrying, 1)

	idle.Tick(6)
	assert.Equal(t, 2, logs.FilterMessage("閒置玩家存檔失敗").Len())

	require.NoError(t, os.Remove(dir))
	for p := uint64(7); p <= 9; p++ {
		idle.Tick(p)
	}
	assert.Zero(t, f.sessions.Count())
	assert.FileExists(t, f.rent.Path("frank"))
}

func TestPersistenceSavesChangedCrashFiles(t *testing.T) {
	f := newFixture(t)
	sess := f.register(t, 1, "erin")
	_, err := f.life.Enter(sess)
	require.NoError(t, err)
	f.give(t, sess.Char, sword)
	c := f.w.Chars.MustGet(sess.Char)
	require.NotZero(t, c.Act&data.PlrCrash)

	ps := NewPersistenceSystem(f.w, f.players, f.rent, f.sessions, f.ledger, nil, zap.NewNop(), 10)
	path := f.rent.Path("erin")
	ps.Tick(5)
	assert.NoFileExists(t, path, "not an auto-save pulse")

	ps.Tick(10)
	sum, err := persist.ListRent(path)
	require.NoError(t, err)
	assert.Equal(t, int32(persist.RentCrash), sum.Header.Code)
	assert.Len(t, sum.Items, 1)
	assert.Zero(t, c.Act&data.PlrCrash)
	assert.Zero(t, f.ledger.Len(), "ledger drained without a mirror")

	require.NoError(t, os.Remove(path))
	ps.Tick(20)
	assert.NoFileExists(t, path, "objects unchanged since the last save")

	assert.Equal(t, 1, ps.SaveAllPlayers())
	assert.FileExists(t, path)
}

func TestZoneSystemAgesAndResets(t *testing.T) {
	f := newFixture(t)
	e := zone.NewEngine(f.w, f.sessions, f.bus, 31, zap.NewNop())
	zs := NewZoneSystem(e, 1, 100)

	for p := uint64(1); p <= 15; p++ {
		zs.Tick(p)
	}
	assert.Equal(t, []int{0}, e.Queued())

	var resets []event.ZoneReset
	event.Subscribe(f.bus, func(ev event.ZoneReset) { resets = append(resets, ev) })
	zs.Tick(100)
	assert.Empty(t, e.Queued())

	d := NewDispatchSystem(f.bus)
	d.Tick(100)
	require.Len(t, resets, 1)
	assert.Equal(t, int32(30), resets[0].Vnum)
}
