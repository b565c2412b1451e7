package rpc

import (
	"context"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Binding maps a namespace to the numeric api id the node assigned it for the
// current login.
type Binding struct {
	Name  string
	APIID int
}

// resolveFunc asks the node for the api id of a namespace.
type resolveFunc func(ctx context.Context, name string) (int, error)

// Router caches namespace bindings for one connection. Concurrent lookups of
// the same unresolved namespace share one remote call. Invalidate drops every
// binding; ids are not stable across logins.
type Router struct {
	resolve resolveFunc
	timeout time.Duration

	mu         sync.RWMutex
	generation uint64
	bindings   map[string]Binding
	group      singleflight.Group
}

func NewRouter(resolve resolveFunc, timeout time.Duration) *Router {
	return &Router{
		resolve:  resolve,
		timeout:  timeout,
		bindings: make(map[string]Binding),
	}
}

// Resolve returns the api id of name, performing the remote lookup on first
// use. The lookup runs detached from ctx so that one caller giving up does
// not fail the others waiting on it.
func (r *Router) Resolve(ctx context.Context, name string) (int, error) {
	if name == LoginNamespace {
		return loginAPIID, nil
	}

	r.mu.RLock()
	b, ok := r.bindings[name]
	gen := r.generation
	r.mu.RUnlock()
	if ok {
		return b.APIID, nil
	}

	key := strconv.FormatUint(gen, 10) + "/" + name
	ch := r.group.DoChan(key, func() (any, error) {
		lookupCtx := context.WithoutCancel(ctx)
		if r.timeout > 0 {
			var cancel context.CancelFunc
			lookupCtx, cancel = context.WithTimeout(lookupCtx, r.timeout)
			defer cancel()
		}

		id, err := r.resolve(lookupCtx, name)
		if err != nil {
			return 0, err
		}

		r.mu.Lock()
		if r.generation == gen {
			r.bindings[name] = Binding{Name: name, APIID: id}
		}
		r.mu.Unlock()
		return id, nil
	})

	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return 0, res.Err
		}
		return res.Val.(int), nil
	}
}

// Lookup returns the cached binding without contacting the node.
func (r *Router) Lookup(name string) (Binding, bool) {
	if name == LoginNamespace {
		return Binding{Name: name, APIID: loginAPIID}, true
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.bindings[name]
	return b, ok
}

// Bindings returns a snapshot of the cache.
func (r *Router) Bindings() []Binding {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Binding, 0, len(r.bindings))
	for _, b := range r.bindings {
		out = append(out, b)
	}
	return out
}

// Invalidate drops all bindings. Lookups already in flight finish but their
// results are not cached.
func (r *Router) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.generation++
	r.bindings = make(map[string]Binding)
}
