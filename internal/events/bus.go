// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package events provides a synchronous, typed publish/subscribe bus.
//
// Each event name is bound to a payload type through a Topic. Handlers run on
// the publisher's goroutine in subscription order, which mirrors the
// single-threaded event loop the player is modelled on: a Publish returns
// only after every handler has observed the payload.
package events

import (
	"sync"
	"sync/atomic"
)

// Topic binds an event name to its payload type.
type Topic[T any] struct {
	name string
}

// NewTopic declares a topic. Two topics with the same name share subscribers,
// so each name must be declared with exactly one payload type.
func NewTopic[T any](name string) Topic[T] {
	return Topic[T]{name: name}
}

// Name returns the wire name of the topic (e.g. "playback:play").
func (t Topic[T]) Name() string { return t.name }

// Unsubscribe detaches a handler. It is idempotent.
type Unsubscribe func()

type handler struct {
	id uint64
	fn func(any)
}

// Bus is an in-process pub/sub keyed by topic name.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string][]handler
	nextID atomic.Uint64
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string][]handler)}
}

// Subscribe registers fn for every payload published on t.
func Subscribe[T any](b *Bus, t Topic[T], fn func(T)) Unsubscribe {
	id := b.nextID.Add(1)
	h := handler{id: id, fn: func(v any) {
		payload, _ := v.(T)
		fn(payload)
	}}

	b.mu.Lock()
	b.subs[t.name] = append(b.subs[t.name], h)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(t.name, id) })
	}
}

// Publish delivers payload to every current subscriber of t. Handlers added or
// removed during delivery take effect on the next Publish.
func Publish[T any](b *Bus, t Topic[T], payload T) {
	b.mu.RLock()
	hs := append([]handler(nil), b.subs[t.name]...)
	b.mu.RUnlock()

	for _, h := range hs {
		h.fn(payload)
	}
}

// Subscribers reports how many handlers are attached to the named topic.
func (b *Bus) Subscribers(name string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[name])
}

// Len reports the total number of live subscriptions.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for _, hs := range b.subs {
		n += len(hs)
	}
	return n
}

func (b *Bus) remove(name string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	lst := b.subs[name]
	out := make([]handler, 0, len(lst))
	for _, h := range lst {
		if h.id != id {
			out = append(out, h)
		}
	}
	if len(out) == 0 {
		delete(b.subs, name)
	} else {
		b.subs[name] = out
	}
}
