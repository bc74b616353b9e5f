package event

import (
	"context"
	"fmt"
	"slices"
	"time"
)

// JoinHandler receives the payload of every joined event, keyed by event
// name, once all of them have been observed under correlationID.
type JoinHandler func(ctx context.Context, payloads map[string]any, correlationID string)

// joinGroup is an armed join over a canonical set of event names
type joinGroup struct {
	key     string
	names   []string
	handler JoinHandler
	owner   string
}

// correlationEntry collects payloads observed under one correlation ID.
// Entries are shared by every join group: a payload recorded for one group is
// visible to any other group that also names that event.
type correlationEntry struct {
	payloads map[string]any
	created  time.Time
}

// SubscribeJoin arms a join over names. For each correlation ID, handler
// fires once the most recent payload of every name has been observed under
// that ID, then the buffered payloads for the ID are discarded. Envelopes
// without a correlation ID are ignored.
//
// Names are deduplicated and order does not matter: {"a","b"} and {"b","a"}
// are the same join. Arming a join whose set is already armed replaces the
// previous handler, or fails with ErrJoinConflict when the bus was created
// with WithStrictJoins(true).
func (b *Bus) SubscribeJoin(ctx context.Context, names []string, handler JoinHandler) (Subscription, error) {
	if handler == nil {
		return nil, ErrNilHandler
	}
	set := canonicalNames(names)
	if len(set) == 0 {
		return nil, ErrEmptyJoin
	}
	if !b.Running() {
		return nil, ErrBusClosed
	}
	key := JoinKey(set)
	sub := newSubscription(NewID(), key)

	b.mu.Lock()
	if existing, ok := b.groups[key]; ok {
		if b.strictJoins {
			b.mu.Unlock()
			return nil, fmt.Errorf("%w: %q", ErrJoinConflict, key)
		}
		b.logger.Warn("replacing join handler", "join", key, "previous", existing.owner, "subscription", sub.id)
	}
	b.groups[key] = &joinGroup{key: key, names: set, handler: handler, owner: sub.id}
	b.mu.Unlock()

	sub.onClose(func() { b.dropGroup(key, sub.id) })

	for _, name := range set {
		if err := b.attach(ctx, sub, name, b.joinListener(key, name, sub.id), ""); err != nil {
			sub.Unsubscribe()
			return nil, err
		}
	}
	b.bindContext(ctx, sub)
	return sub, nil
}

// dropGroup removes a join group if owner still owns it
func (b *Bus) dropGroup(key, owner string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if g, ok := b.groups[key]; ok && g.owner == owner {
		delete(b.groups, key)
	}
}

// joinListener records payloads of name for the join identified by key and
// fires the group handler when the set is complete. Listeners of a replaced
// group stay installed until their subscription closes but no longer record.
func (b *Bus) joinListener(key, name, owner string) Handler {
	return func(ctx context.Context, data any, correlationID string) {
		if correlationID == "" {
			b.ignored.Do(func() {
				b.logger.Info("join ignored uncorrelated envelope", "join", key, "event", name)
			})
			return
		}

		b.mu.Lock()
		now := time.Now()
		if b.correlationTTL > 0 {
			b.sweeper.Do(func() { b.sweepLocked(now) })
		}
		group, ok := b.groups[key]
		if !ok || group.owner != owner {
			b.mu.Unlock()
			return
		}

		entry := b.buffer[correlationID]
		if entry == nil || b.expired(entry, now) {
			entry = &correlationEntry{payloads: make(map[string]any), created: now}
			b.buffer[correlationID] = entry
		}
		entry.payloads[name] = data

		for _, n := range group.names {
			if _, ok := entry.payloads[n]; !ok {
				b.mu.Unlock()
				return
			}
		}
		result := make(map[string]any, len(group.names))
		for _, n := range group.names {
			result[n] = entry.payloads[n]
		}
		delete(b.buffer, correlationID)
		handler := group.handler
		b.mu.Unlock()

		b.metrics.recordJoin(ctx, key)
		handler(ctx, result, correlationID)
	}
}

func (b *Bus) expired(entry *correlationEntry, now time.Time) bool {
	return b.correlationTTL > 0 && now.Sub(entry.created) > b.correlationTTL
}

// sweepLocked drops expired correlation entries. Caller holds b.mu.
func (b *Bus) sweepLocked(now time.Time) {
	for cid, entry := range b.buffer {
		if b.expired(entry, now) {
			delete(b.buffer, cid)
		}
	}
}

// PendingCorrelations returns the number of correlation IDs with buffered
// payloads awaiting join completion.
func (b *Bus) PendingCorrelations() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buffer)
}

// Pending returns the sorted event names buffered under correlationID,
// or nil if nothing is buffered.
func (b *Bus) Pending(correlationID string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	entry, ok := b.buffer[correlationID]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(entry.payloads))
	for n := range entry.payloads {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}
