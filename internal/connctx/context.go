// File: internal/connctx/context.go
// Package connctx
// Author: momentics <momentics@gmail.com>
//
// A single, consolidated api.Context implementation. Earlier revisions
// of this package split the same type across two files with drifting
// field names; this is the one definition.

package connctx

import "sync"

type entry struct {
	value      any
	propagated bool
}

// Context implements api.Context with a plain map guarded by a mutex.
// Connections in this server are handled by one goroutine at a time
// (reactor thread or worker), so contention is never more than the
// occasional handoff; a mutex is simpler to reason about than a
// lock-free structure here and does not show up in profiles.
type Context struct {
	mu      sync.Mutex
	entries map[string]entry
}

func NewContext() *Context {
	return &Context{entries: make(map[string]entry)}
}

func (c *Context) Set(key string, value any, propagated bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{value: value, propagated: propagated}
}

func (c *Context) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	return e.value, true
}

func (c *Context) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

func (c *Context) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	return keys
}

func (c *Context) ResetRequestScope() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.entries {
		if !e.propagated {
			delete(c.entries, k)
		}
	}
}
