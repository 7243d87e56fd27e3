// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package events

import "sync"

// Teardown collects unsubscribe handles so a whole wiring can be detached
// with one call. The zero value is ready to use.
type Teardown struct {
	mu  sync.Mutex
	fns []func()
}

// Add appends handles to the list. Nil handles are ignored.
func (t *Teardown) Add(fns ...Unsubscribe) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, fn := range fns {
		if fn != nil {
			t.fns = append(t.fns, fn)
		}
	}
}

// AddFunc appends a plain cleanup function.
func (t *Teardown) AddFunc(fn func()) {
	if fn == nil {
		return
	}
	t.Add(Unsubscribe(fn))
}

// Run detaches everything in reverse registration order and empties the
// list. Calling Run again is a no-op until new handles are added.
func (t *Teardown) Run() {
	t.mu.Lock()
	fns := t.fns
	t.fns = nil
	t.mu.Unlock()

	for i := len(fns) - 1; i >= 0; i-- {
		fns[i]()
	}
}

// Len reports the number of pending handles.
func (t *Teardown) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.fns)
}
