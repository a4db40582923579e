package mail

import (
	"math/rand/v2"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/l1jgo/worldcore/internal/config"
	"github.com/l1jgo/worldcore/internal/core/arena"
	"github.com/l1jgo/worldcore/internal/core/event"
	"github.com/l1jgo/worldcore/internal/data"
	"github.com/l1jgo/worldcore/internal/data/datatest"
	"github.com/l1jgo/worldcore/internal/world"
)

type names map[int64]string

func (n names) IDByName(name string) int64 {
	for id, v := range n {
		if strings.EqualFold(v, name) {
			return id
		}
	}
	return -1
}

func (n names) NameByID(id int64) (string, bool) {
	v, ok := n[id]
	return v, ok
}

func postOffice(t *testing.T) (*world.World, *Postmaster, *event.Bus) {
	t.Helper()
	w, err := world.Boot(datatest.World(), world.BootOptions{
		MortalStart: 3001,
		Rand:        rand.New(rand.NewPCG(1, 2)),
	}, zap.NewNop())
	require.NoError(t, err)
	s := openStore(t, filepath.Join(t.TempDir(), "plrmail"))
	bus := event.NewBus()
	pm := NewPostmaster(s, names{1: "Alice", 2: "Bob"}, config.Default().Mail, bus, zap.NewNop())
	return w, pm, bus
}

func player(w *world.World, id int64, level byte, gold int32) arena.Handle {
	return w.NewPlayer(&world.Character{
		Name:   "p",
		IDNum:  id,
		Level:  level,
		Points: world.Points{Gold: gold},
	})
}

func TestPostChargesStamp(t *testing.T) {
	w, pm, bus := postOffice(t)
	alice := player(w, 1, 5, 200)
	bob := player(w, 2, 5, 0)

	var got []event.MailDelivered
	event.Subscribe(bus, func(e event.MailDelivered) { got = append(got, e) })

	require.NoError(t, pm.Post(w, alice, "bob", "meet me at the fountain"))
	assert.Equal(t, int32(50), w.Chars.MustGet(alice).Points.Gold)
	bus.SwapBuffers()
	bus.DispatchAll()
	assert.Equal(t, []event.MailDelivered{{To: 2, From: 1}}, got)

	ok, err := pm.Check(w, bob)
	require.NoError(t, err)
	assert.True(t, ok)

	n, err := pm.Collect(w, bob)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	c := w.Chars.MustGet(bob)
	require.Len(t, c.Carrying, 1)
	note := w.Objs.MustGet(c.Carrying[0])
	assert.Equal(t, data.ItemNote, note.Type)
	assert.Contains(t, note.Text, "  To: Bob\r\n")
	assert.Contains(t, note.Text, "From: Alice\r\n")
	assert.True(t, strings.HasSuffix(note.Text, "\r\n\r\nmeet me at the fountain"))

	ok, err = pm.Check(w, bob)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPostRules(t *testing.T) {
	w, pm, _ := postOffice(t)
	novice := player(w, 1, 1, 1000)
	poor := player(w, 1, 5, 149)
	rich := player(w, 1, 5, 1000)
	mob, err := w.NewMobile(0)
	require.NoError(t, err)

	assert.ErrorIs(t, pm.Post(w, novice, "bob", "hi"), ErrLevel)
	assert.ErrorIs(t, pm.Post(w, rich, "", "hi"), ErrNoAddressee)
	assert.ErrorIs(t, pm.Post(w, poor, "bob", "hi"), ErrPostage)
	assert.ErrorIs(t, pm.Post(w, rich, "carol", "hi"), ErrUnknownRecipient)
	assert.ErrorIs(t, pm.Post(w, mob, "bob", "hi"), ErrNotPlayer)
	assert.Equal(t, int32(1000), w.Chars.MustGet(rich).Points.Gold, "nothing charged")
}

func TestCollectWithoutMail(t *testing.T) {
	w, pm, _ := postOffice(t)
	bob := player(w, 2, 5, 0)
	n, err := pm.Collect(w, bob)
	assert.ErrorIs(t, err, ErrNoMail)
	assert.Zero(t, n)
	assert.Empty(t, w.Chars.MustGet(bob).Carrying)
}

func TestCollectTakesEverything(t *testing.T) {
	w, pm, _ := postOffice(t)
	alice := player(w, 1, 5, 1000)
	bob := player(w, 2, 5, 0)
	for i := 0; i < 3; i++ {
		require.NoError(t, pm.Post(w, alice, "Bob", strings.Repeat("x", 120)))
	}
	n, err := pm.Collect(w, bob)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Len(t, w.Chars.MustGet(bob).Carrying, 3)
}
