// Package reader implements the reader registry: tracked subscriptions
// over the log store, their dump/tail delivery loop, and a
// channel-broadcast wakeup in place of the teacher's map+mutex
// registry.Store (internal/registry/store.go).
package reader

import (
	"sync"

	"github.com/google/uuid"

	"github.com/Lunaris-AOSP/system-logging/internal/logerr"
)

// Registry tracks active subscriptions and wakes them on every store
// write via a broadcast channel, the classic Go substitute for a
// condition variable that composes with select/context cancellation.
type Registry struct {
	mu      sync.Mutex
	subs    map[string]*Subscription
	notify  chan struct{}
	maxSubs int
}

// NewRegistry returns a Registry accepting at most maxSubs concurrent
// subscriptions.
func NewRegistry(maxSubs int) *Registry {
	if maxSubs <= 0 {
		maxSubs = 1024
	}
	return &Registry{
		subs:    make(map[string]*Subscription),
		notify:  make(chan struct{}),
		maxSubs: maxSubs,
	}
}

// Signal wakes every subscription waiting on the current notify
// channel. Implements store.Notifier.
func (r *Registry) Signal() {
	r.mu.Lock()
	ch := r.notify
	r.notify = make(chan struct{})
	r.mu.Unlock()
	close(ch)
}

// waitChan returns the channel that closes on the next Signal call.
func (r *Registry) waitChan() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.notify
}

// register adds sub to the registry under a fresh handle, enforcing the
// subscription cap.
func (r *Registry) register(sub *Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.subs) >= r.maxSubs {
		return logerr.New(logerr.Resource, "Registry.register", "subscription cap reached")
	}
	sub.handle = uuid.New().String()
	r.subs[sub.handle] = sub
	return nil
}

func (r *Registry) unregister(handle string) {
	r.mu.Lock()
	delete(r.subs, handle)
	r.mu.Unlock()
}

// Count returns the number of live subscriptions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

// List returns a snapshot of active subscription handles, for
// diagnostics.
func (r *Registry) List() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.subs))
	for h := range r.subs {
		out = append(out, h)
	}
	return out
}
