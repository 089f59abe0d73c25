// Package watch is the in-process change feed over user and pair records.
// Writers publish before/after snapshots after every completed write; the
// trigger pipeline and per-session trackers subscribe. Delivery is
// at-least-once from the consumer's point of view, so handlers are expected
// to be idempotent.
package watch

import (
	"sync"

	"pairsense-backend/internal/models"
)

// UserChange carries the before and after state of one user-record write.
// Before is nil for the creating write.
type UserChange struct {
	Before *models.User
	After  *models.User
}

// PairChange carries the before and after state of one pair-record write.
type PairChange struct {
	Before *models.Pair
	After  *models.Pair
}

// Feed fans out record changes to subscribers. Unsubscribe funcs must be
// called on teardown to release the entry.
type Feed struct {
	mu        sync.RWMutex
	nextID    int
	users     map[string]map[int]func(UserChange)
	pairs     map[string]map[int]func(PairChange)
	userGlobs map[int]func(UserChange)
}

// NewFeed creates an empty feed.
func NewFeed() *Feed {
	return &Feed{
		users:     make(map[string]map[int]func(UserChange)),
		pairs:     make(map[string]map[int]func(PairChange)),
		userGlobs: make(map[int]func(UserChange)),
	}
}

// SubscribeUser registers fn for changes to one user record.
func (f *Feed) SubscribeUser(uid string, fn func(UserChange)) (unsubscribe func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.nextID
	f.nextID++
	if f.users[uid] == nil {
		f.users[uid] = make(map[int]func(UserChange))
	}
	f.users[uid][id] = fn

	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.users[uid], id)
		if len(f.users[uid]) == 0 {
			delete(f.users, uid)
		}
	}
}

// SubscribeAllUsers registers fn for every user-record change. This is the
// server-side trigger entry point.
func (f *Feed) SubscribeAllUsers(fn func(UserChange)) (unsubscribe func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.nextID
	f.nextID++
	f.userGlobs[id] = fn

	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.userGlobs, id)
	}
}

// SubscribePair registers fn for changes to one pair record.
func (f *Feed) SubscribePair(code string, fn func(PairChange)) (unsubscribe func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.nextID
	f.nextID++
	if f.pairs[code] == nil {
		f.pairs[code] = make(map[int]func(PairChange))
	}
	f.pairs[code][id] = fn

	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.pairs[code], id)
		if len(f.pairs[code]) == 0 {
			delete(f.pairs, code)
		}
	}
}

// PublishUser delivers a user change to its subscribers. Callbacks run on
// the publisher's goroutine, outside the feed lock.
func (f *Feed) PublishUser(ch UserChange) {
	if ch.After == nil {
		return
	}

	f.mu.RLock()
	fns := make([]func(UserChange), 0, len(f.users[ch.After.ID])+len(f.userGlobs))
	for _, fn := range f.users[ch.After.ID] {
		fns = append(fns, fn)
	}
	for _, fn := range f.userGlobs {
		fns = append(fns, fn)
	}
	f.mu.RUnlock()

	for _, fn := range fns {
		fn(ch)
	}
}

// PublishPair delivers a pair change to its subscribers.
func (f *Feed) PublishPair(ch PairChange) {
	if ch.After == nil {
		return
	}

	f.mu.RLock()
	fns := make([]func(PairChange), 0, len(f.pairs[ch.After.Code]))
	for _, fn := range f.pairs[ch.After.Code] {
		fns = append(fns, fn)
	}
	f.mu.RUnlock()

	for _, fn := range fns {
		fn(ch)
	}
}
