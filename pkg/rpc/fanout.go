package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/kalutskii/etil-sterahstib/pkg/log"
)

// Listener handles notifications for one subscription. Calls for a given
// subscription are sequential and in receive order.
type Listener func(ctx context.Context, n Notification)

// Filter selects which changed objects reach a listener. The zero Filter
// matches everything. A filter learned from a call result matches only the
// ids that result carried, which may be none.
type Filter struct {
	ObjectIDs map[string]struct{}
	learned   bool
}

// NewFilter builds a filter matching the given object ids.
func NewFilter(ids ...string) Filter {
	f := Filter{ObjectIDs: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		f.ObjectIDs[id] = struct{}{}
	}
	return f
}

// learnedFilter builds the filter of a subscription created by a call.
func learnedFilter(result json.RawMessage) Filter {
	return Filter{ObjectIDs: collectObjectIDs(result), learned: true}
}

func (f Filter) matchesAll() bool {
	return !f.learned && len(f.ObjectIDs) == 0
}

func (f Filter) matches(id string) bool {
	if f.matchesAll() {
		return true
	}
	_, ok := f.ObjectIDs[id]
	return ok
}

// origin is the call that created a subscription, replayed after reconnect.
type origin struct {
	namespace string
	method    string
	params    []any
}

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	id       uint64
	filter   Filter
	listener Listener
	queue    chan Notification
	stop     chan struct{}
	done     chan struct{}
	origin   *origin
	fanout   *Fanout
}

func (s *Subscription) ID() uint64 { return s.id }

// Unsubscribe stops delivery. Notifications already queued are discarded;
// a listener call in progress is allowed to finish.
func (s *Subscription) Unsubscribe() { s.fanout.Unsubscribe(s) }

// Done is closed once the listener goroutine has exited.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Fanout routes notices to subscriptions. Each subscription has its own
// goroutine and bounded queue: a listener that blocks only fills its own
// queue, and a listener that panics only loses its own notification.
type Fanout struct {
	callbackID uint64
	queueSize  int
	lg         log.Logger
	metrics    *Metrics

	ctx context.Context

	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]*Subscription
}

// NewFanout creates a fan-out for notices tagged with callbackID, the value
// passed to set_subscribe_callback.
func NewFanout(callbackID uint64, queueSize int, lg log.Logger, metrics *Metrics) *Fanout {
	return &Fanout{
		callbackID: callbackID,
		queueSize:  max(queueSize, 1),
		lg:         lg,
		metrics:    metrics,
		ctx:        log.SetContextLogger(context.Background(), lg),
		subs:       make(map[uint64]*Subscription),
	}
}

func (f *Fanout) CallbackID() uint64 { return f.callbackID }

// Subscribe registers listener for objects matching filter.
func (f *Fanout) Subscribe(filter Filter, listener Listener) *Subscription {
	return f.subscribe(filter, listener, nil)
}

func (f *Fanout) subscribe(filter Filter, listener Listener, from *origin) *Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	sub := &Subscription{
		id:       f.nextID,
		filter:   filter,
		listener: listener,
		queue:    make(chan Notification, f.queueSize),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		origin:   from,
		fanout:   f,
	}
	f.subs[sub.id] = sub
	go f.runListener(sub)

	f.metrics.Subscriptions.Set(float64(len(f.subs)))
	return sub
}

// Unsubscribe removes sub. It is idempotent.
func (f *Fanout) Unsubscribe(sub *Subscription) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.subs[sub.id]; !ok {
		return
	}
	delete(f.subs, sub.id)
	close(sub.stop)
	close(sub.queue)
	f.metrics.Subscriptions.Set(float64(len(f.subs)))
}

func (f *Fanout) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return len(f.subs)
}

// replayable returns the subscriptions that were created by a call.
func (f *Fanout) replayable() []*Subscription {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]*Subscription, 0, len(f.subs))
	for _, sub := range f.subs {
		if sub.origin != nil {
			out = append(out, sub)
		}
	}
	return out
}

// setFilter replaces the id set of sub, used when its origin call is replayed.
func (f *Fanout) setFilter(sub *Subscription, filter Filter) {
	f.mu.Lock()
	defer f.mu.Unlock()

	sub.filter = filter
}

// Deliver routes a raw uncorrelated inbound frame to the listeners.
func (f *Fanout) Deliver(data []byte) error {
	env, err := parseEnvelope(data)
	if err != nil {
		f.drop("unrecognized", err)
		return err
	}
	return f.deliver(env)
}

// deliver routes an uncorrelated inbound message. Shapes other than a notice
// for this fan-out's callback are dropped and reported.
func (f *Fanout) deliver(env envelope) error {
	cb, payload, err := parseNotice(env)
	if err != nil {
		f.drop("unrecognized", err)
		return err
	}
	if cb != f.callbackID {
		err := fmt.Errorf("%w: unknown callback %d", ErrUnrecognizedNotification, cb)
		f.drop("unknown_callback", err)
		return err
	}

	objects := flattenObjects(payload)

	f.mu.RLock()
	defer f.mu.RUnlock()

	for _, sub := range f.subs {
		matched := matchObjects(sub.filter, objects)
		if len(matched) == 0 {
			continue
		}

		select {
		case sub.queue <- Notification{CallbackID: cb, Objects: matched}:
		default:
			f.metrics.Notifications.WithLabelValues("queue_full").Inc()
			f.lg.Warn("listener queue full, dropping notification", "subscription", sub.id)
		}
	}
	return nil
}

// Close removes every subscription and stops its listener.
func (f *Fanout) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	for id, sub := range f.subs {
		delete(f.subs, id)
		close(sub.stop)
		close(sub.queue)
	}
	f.metrics.Subscriptions.Set(0)
}

func (f *Fanout) drop(reason string, err error) {
	f.metrics.Notifications.WithLabelValues(reason).Inc()
	f.lg.Debug("dropping uncorrelated message", "reason", reason, "error", err)
}

func (f *Fanout) runListener(sub *Subscription) {
	defer close(sub.done)

	for n := range sub.queue {
		select {
		case <-sub.stop:
			f.metrics.Notifications.WithLabelValues("unsubscribed").Inc()
			continue
		default:
		}
		f.invoke(sub, n)
	}
}

func (f *Fanout) invoke(sub *Subscription, n Notification) {
	defer func() {
		if r := recover(); r != nil {
			f.metrics.Notifications.WithLabelValues("listener_panic").Inc()
			f.lg.Error("notification listener panicked", "subscription", sub.id, "panic", r)
		}
	}()

	sub.listener(f.ctx, n)
	f.metrics.Notifications.WithLabelValues("delivered").Inc()
}

func matchObjects(filter Filter, objects []json.RawMessage) []json.RawMessage {
	if filter.matchesAll() {
		return objects
	}

	var matched []json.RawMessage
	for _, obj := range objects {
		if id, ok := objectID(obj); ok && filter.matches(id) {
			matched = append(matched, obj)
		}
	}
	return matched
}
