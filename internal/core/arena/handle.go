package arena

import "fmt"

// Handle encodes a 32-bit slot index in the lower bits and a 32-bit generation
// in the upper bits. A slot's generation advances every time it is vacated, so a
// handle kept past its entity's removal no longer matches the slot.
//
// Generation 0 is never issued, which keeps the zero Handle invalid.
type Handle uint64

func NewHandle(index uint32, generation uint32) Handle {
	return Handle(uint64(generation)<<32 | uint64(index))
}

func (h Handle) Index() uint32      { return uint32(h) }
func (h Handle) Generation() uint32 { return uint32(h >> 32) }
func (h Handle) IsZero() bool       { return h == 0 }

func (h Handle) String() string {
	return fmt.Sprintf("%d#%d", h.Index(), h.Generation())
}

// HandleSetter is implemented by values that keep a back-reference to their
// own handle. Push stamps the issued handle into such values.
type HandleSetter interface {
	SetHandle(Handle)
}
