package zone

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/l1jgo/worldcore/internal/data"
	"github.com/l1jgo/worldcore/internal/world"
)

func TestAgeQueuesExpiredZones(t *testing.T) {
	w, e, _ := setup(t, nil)
	for i := 0; i < 14; i++ {
		e.Age()
	}
	assert.Equal(t, 14, w.Zones[0].Age)
	assert.Empty(t, e.Queued())

	e.Age()
	assert.Equal(t, []int{0}, e.Queued())
	assert.Equal(t, Dead, w.Zones[0].Age)
	assert.Zero(t, w.Zones[1].Age, "reset mode 0 never ages")

	e.Age()
	assert.Equal(t, []int{0}, e.Queued(), "a queued zone is not queued twice")

	assert.Equal(t, 0, e.ProcessQueue())
	assert.Empty(t, e.Queued())
	assert.Zero(t, w.Zones[0].Age)
	assert.Equal(t, -1, e.ProcessQueue())
}

func TestOnlyWhenEmptyWaitsForMortals(t *testing.T) {
	occ := fakeOccupancy{{Playing: true, Room: 1, Level: 5}}
	w, e, _ := setup(t, occ)
	z := w.Zones[0]
	z.ResetMode = data.ResetIfEmpty
	z.Lifespan = 1

	e.Age()
	assert.Equal(t, []int{0}, e.Queued())
	assert.Equal(t, -1, e.ProcessQueue(), "a mortal is standing in the zone")
	assert.Zero(t, w.MobCount(fido))

	occ[0].Room = 4
	assert.Equal(t, 0, e.ProcessQueue(), "the mortal moved to another zone")
	assert.Equal(t, 1, w.MobCount(fido))
}

func TestIsEmptyIgnoresImmortalsAndIdleSessions(t *testing.T) {
	occ := fakeOccupancy{
		{Playing: true, Room: 1, Level: 31},
		{Playing: false, Room: 2, Level: 1},
		{Playing: true, Room: world.Nowhere, Level: 1},
	}
	_, e, _ := setup(t, occ)
	assert.True(t, e.IsEmpty(0))

	occ = append(occ, Occupant{Playing: true, Room: 3, Level: 30})
	e.occ = occ
	assert.False(t, e.IsEmpty(0))
	assert.True(t, e.IsEmpty(1))
}

func TestOneZonePerCheck(t *testing.T) {
	w, e, _ := setup(t, nil)
	w.Zones[1].ResetMode = data.ResetAlways
	w.Zones[0].Lifespan, w.Zones[1].Lifespan = 1, 1
	e.Age()
	assert.Equal(t, []int{0, 1}, e.Queued())
	assert.Equal(t, 0, e.ProcessQueue())
	assert.Equal(t, []int{1}, e.Queued())
	assert.Equal(t, 1, e.ProcessQueue())
}
