package arena

import "container/heap"

type slot[T any] struct {
	value      T
	generation uint32
	free       bool
}

// Arena is a generational slot store. Push fills the lowest free slot before
// growing, Remove vacates a slot and advances its generation.
//
// Arena is not safe for concurrent use; the world loop owns it.
type Arena[T any] struct {
	slots []slot[T]
	free  freeHeap
	live  int
	// nextGen seeds the generation of fresh slots so that handles from
	// different slots never share a generation sequence start.
	nextGen uint32
}

func New[T any](capacity int) *Arena[T] {
	return &Arena[T]{
		slots:   make([]slot[T], 0, capacity),
		nextGen: 1,
	}
}

// Push stores value and returns its handle. When value implements
// HandleSetter the handle is stamped into it before Push returns.
func (a *Arena[T]) Push(value T) Handle {
	var idx uint32
	if a.free.Len() > 0 {
		idx = heap.Pop(&a.free).(uint32)
		s := &a.slots[idx]
		s.value = value
		s.free = false
	} else {
		idx = uint32(len(a.slots))
		a.slots = append(a.slots, slot[T]{value: value, generation: a.nextGen})
		a.nextGen++
		if a.nextGen == 0 {
			a.nextGen = 1
		}
	}
	a.live++

	h := NewHandle(idx, a.slots[idx].generation)
	if hs, ok := any(value).(HandleSetter); ok {
		hs.SetHandle(h)
	}
	return h
}

func (a *Arena[T]) check(h Handle) (*slot[T], error) {
	idx := h.Index()
	if int(idx) >= len(a.slots) {
		return nil, &HandleError{Handle: h, Err: ErrOutOfRange}
	}
	s := &a.slots[idx]
	if s.free || s.generation != h.Generation() {
		stored := s.generation
		if s.free {
			stored = 0
		}
		return nil, &HandleError{Handle: h, Stored: stored, Err: ErrStaleHandle}
	}
	return s, nil
}

// Get returns the value stored under h. A handle whose slot was vacated or
// reused fails with a *HandleError and never yields the new occupant.
func (a *Arena[T]) Get(h Handle) (T, error) {
	s, err := a.check(h)
	if err != nil {
		var zero T
		return zero, err
	}
	return s.value, nil
}

// Ptr returns a pointer into the slot for in-place mutation. The pointer is
// valid until the next Push.
func (a *Arena[T]) Ptr(h Handle) (*T, error) {
	s, err := a.check(h)
	if err != nil {
		return nil, err
	}
	return &s.value, nil
}

// MustGet is Get for call sites where a bad handle is a program bug.
func (a *Arena[T]) MustGet(h Handle) T {
	v, err := a.Get(h)
	if err != nil {
		panic(err)
	}
	return v
}

// Alive reports whether h still names a live value.
func (a *Arena[T]) Alive(h Handle) bool {
	_, err := a.check(h)
	return err == nil
}

// Remove vacates h's slot and hands the value back to the caller.
func (a *Arena[T]) Remove(h Handle) (T, error) {
	s, err := a.check(h)
	if err != nil {
		var zero T
		return zero, err
	}
	v := s.value
	var zero T
	s.value = zero
	s.free = true
	s.generation++
	if s.generation == 0 {
		s.generation = 1
	}
	heap.Push(&a.free, h.Index())
	a.live--
	return v, nil
}

// Len is the number of live values.
func (a *Arena[T]) Len() int { return a.live }

func (a *Arena[T]) IsEmpty() bool { return a.live == 0 }

// Handles returns the live handles in ascending slot order.
func (a *Arena[T]) Handles() []Handle {
	out := make([]Handle, 0, a.live)
	for i := range a.slots {
		if !a.slots[i].free {
			out = append(out, NewHandle(uint32(i), a.slots[i].generation))
		}
	}
	return out
}

// Each calls fn for every live value in slot order. fn must not Push or Remove.
func (a *Arena[T]) Each(fn func(Handle, T)) {
	for i := range a.slots {
		s := &a.slots[i]
		if !s.free {
			fn(NewHandle(uint32(i), s.generation), s.value)
		}
	}
}

// freeHeap keeps vacated slot indices so Push always reuses the lowest one.
type freeHeap []uint32

func (h freeHeap) Len() int           { return len(h) }
func (h freeHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h freeHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *freeHeap) Push(x any)        { *h = append(*h, x.(uint32)) }
func (h *freeHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
