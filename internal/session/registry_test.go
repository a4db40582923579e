package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/l1jgo/worldcore/internal/data/datatest"
	"github.com/l1jgo/worldcore/internal/world"
)

func bootWorld(t *testing.T) *world.World {
	t.Helper()
	w, err := world.Boot(datatest.World(), world.BootOptions{MortalStart: 3001}, zap.NewNop())
	require.NoError(t, err)
	return w
}

func TestAddRejectsDuplicateNames(t *testing.T) {
	r := NewRegistry(bootWorld(t))
	require.NoError(t, r.Add(&Session{ID: 1, Name: "Alice"}))
	assert.ErrorIs(t, r.Add(&Session{ID: 2, Name: " alice"}), ErrDuplicate)
	assert.Equal(t, 1, r.Count())
	assert.Same(t, r.Get(1), r.ByName("ALICE"))

	require.NotNil(t, r.Remove(1))
	assert.Nil(t, r.Remove(1))
	assert.Nil(t, r.ByName("alice"))
}

func TestOccupants(t *testing.T) {
	w := bootWorld(t)
	r := NewRegistry(w)

	a := w.NewPlayer(&world.Character{Name: "alice", Level: 10})
	require.NoError(t, w.CharToRoom(a, 1))
	b := w.NewPlayer(&world.Character{Name: "bob", Level: 34})
	require.NoError(t, w.CharToRoom(b, 2))

	require.NoError(t, r.Add(&Session{ID: 2, Name: "bob", State: StatePlaying, Char: b}))
	require.NoError(t, r.Add(&Session{ID: 1, Name: "alice", State: StatePlaying, Char: a}))
	require.NoError(t, r.Add(&Session{ID: 3, Name: "carol", State: StateMenu}))

	occ := r.Occupants()
	require.Len(t, occ, 3)
	assert.Equal(t, 1, occ[0].Room)
	assert.Equal(t, 10, occ[0].Level)
	assert.True(t, occ[0].Playing)
	assert.Equal(t, 34, occ[1].Level)
	assert.False(t, occ[2].Playing)
	assert.Equal(t, world.Nowhere, occ[2].Room)

	require.NoError(t, w.ExtractChar(a))
	occ = r.Occupants()
	assert.False(t, occ[0].Playing, "stale character handle")

	var names []string
	r.Playing(func(s *Session, _ *world.Character) { names = append(names, s.Name) })
	assert.Equal(t, []string{"bob"}, names)
}
