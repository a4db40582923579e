package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBusDeliversAfterSwap(t *testing.T) {
	b := NewBus()
	var got []int32
	Subscribe(b, func(e ZoneReset) { got = append(got, e.Vnum) })

	Emit(b, ZoneReset{Zone: 0, Vnum: 30})
	Emit(b, ZoneReset{Zone: 1, Vnum: 31})
	assert.Equal(t, 2, b.Pending())

	b.DispatchAll()
	assert.Empty(t, got, "nothing is delivered before the swap")

	b.SwapBuffers()
	b.DispatchAll()
	assert.Equal(t, []int32{30, 31}, got)
	assert.Zero(t, b.Pending())

	b.SwapBuffers()
	b.DispatchAll()
	assert.Len(t, got, 2, "front buffer is cleared by the next swap")
}

func TestBusTypesAreIsolated(t *testing.T) {
	b := NewBus()
	var mails, resets int
	Subscribe(b, func(MailDelivered) { mails++ })
	Subscribe(b, func(ZoneReset) { resets++ })

	Emit(b, MailDelivered{To: 1})
	b.SwapBuffers()
	b.DispatchAll()
	assert.Equal(t, 1, mails)
	assert.Equal(t, 0, resets)
}
