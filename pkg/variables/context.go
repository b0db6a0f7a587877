// Package variables provides the layered variable store and expression
// resolver used by workflow executions. A Context carries five named scopes
// (global, workflow, execution, branch, ephemeral) plus derived node outputs
// and system variables.
package variables

import (
	"sync"
	"time"
)

// Scope names a variable layer.
type Scope string

const (
	ScopeGlobal    Scope = "global"
	ScopeWorkflow  Scope = "workflow"
	ScopeExecution Scope = "execution"
	ScopeBranch    Scope = "branch"
	ScopeEphemeral Scope = "ephemeral"
)

// ValidScope reports whether s is one of the five named scopes.
func ValidScope(s Scope) bool {
	switch s {
	case ScopeGlobal, ScopeWorkflow, ScopeExecution, ScopeBranch, ScopeEphemeral:
		return true
	default:
		return false
	}
}

type entry struct {
	value     any
	expiresAt *time.Time
}

// Context is the layered key/value store owned by exactly one execution.
// Concurrent reads happen during parallel splitter branches, so access is
// guarded. Expired entries become unreadable on the read path; there is no
// background sweeper.
type Context struct {
	mu          sync.RWMutex
	scopes      map[Scope]map[string]entry
	nodeOutputs map[string]map[string]any
	now         func() time.Time

	// sink, when set, receives write-through for global scope sets so that
	// globals survive the process. Failures are reported by the caller of
	// SetWithSink, not here.
	sink GlobalStore
}

// NewContext creates an empty variable context.
func NewContext() *Context {
	scopes := make(map[Scope]map[string]entry, 5)
	for _, s := range []Scope{ScopeGlobal, ScopeWorkflow, ScopeExecution, ScopeBranch, ScopeEphemeral} {
		scopes[s] = make(map[string]entry)
	}

	return &Context{
		scopes:      scopes,
		nodeOutputs: make(map[string]map[string]any),
		now:         time.Now,
	}
}

// WithClock overrides the clock, for tests.
func (c *Context) WithClock(now func() time.Time) *Context {
	c.now = now

	return c
}

// WithGlobalSink attaches a durable store receiving global-scope writes.
func (c *Context) WithGlobalSink(sink GlobalStore) *Context {
	c.sink = sink

	return c
}

// Get returns the value for key in the given scope. The second return is
// false when the key is absent or its TTL has elapsed. Read-after-expiry
// never returns the old value.
func (c *Context) Get(scope Scope, key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	values, ok := c.scopes[scope]
	if !ok {
		return nil, false
	}

	e, ok := values[key]
	if !ok {
		return nil, false
	}

	if e.expiresAt != nil && c.now().After(*e.expiresAt) {
		delete(values, key)

		return nil, false
	}

	return e.value, true
}

// Set stores a value in the given scope.
func (c *Context) Set(scope Scope, key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.setLocked(scope, key, value, nil)
}

// SetTTL stores a value that becomes unreadable once ttl elapses.
func (c *Context) SetTTL(scope Scope, key string, value any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ttl <= 0 {
		c.setLocked(scope, key, value, nil)

		return
	}

	expires := c.now().Add(ttl)
	c.setLocked(scope, key, value, &expires)
}

func (c *Context) setLocked(scope Scope, key string, value any, expiresAt *time.Time) {
	values, ok := c.scopes[scope]
	if !ok {
		return
	}

	values[key] = entry{value: value, expiresAt: expiresAt}

	if scope == ScopeGlobal && c.sink != nil {
		// Last-write-wins, atomic per key. Persist errors do not fail the
		// in-memory write.
		_ = c.sink.SetGlobal(key, value)
	}
}

// Delete removes a key from a scope.
func (c *Context) Delete(scope Scope, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if values, ok := c.scopes[scope]; ok {
		delete(values, key)
	}
}

// ClearScope drops every entry in a scope. Execution and branch scopes are
// cleared when a run (or one of its branches) ends.
func (c *Context) ClearScope(scope Scope) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.scopes[scope]; ok {
		c.scopes[scope] = make(map[string]entry)
	}
}

// SeedScope merges the given values into a scope.
func (c *Context) SeedScope(scope Scope, values map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for k, v := range values {
		c.setLocked(scope, k, v, nil)
	}
}

// SetNodeOutput records the merged output of a completed node.
func (c *Context) SetNodeOutput(nodeID string, output map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nodeOutputs[nodeID] = output
}

// NodeOutput returns the recorded output of a node.
func (c *Context) NodeOutput(nodeID string) (map[string]any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out, ok := c.nodeOutputs[nodeID]

	return out, ok
}

// ScopeValues returns a copy of all live (non-expired) entries in a scope.
func (c *Context) ScopeValues(scope Scope) map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()

	values, ok := c.scopes[scope]
	if !ok {
		return map[string]any{}
	}

	now := c.now()
	out := make(map[string]any, len(values))

	for k, e := range values {
		if e.expiresAt != nil && now.After(*e.expiresAt) {
			delete(values, k)

			continue
		}

		out[k] = e.value
	}

	return out
}

// Snapshot flattens the context for template rendering and condition
// evaluation: one map keyed by scope name, plus node outputs and system
// variables.
func (c *Context) Snapshot() map[string]any {
	snapshot := map[string]any{
		string(ScopeGlobal):    c.ScopeValues(ScopeGlobal),
		string(ScopeWorkflow):  c.ScopeValues(ScopeWorkflow),
		string(ScopeExecution): c.ScopeValues(ScopeExecution),
		string(ScopeBranch):    c.ScopeValues(ScopeBranch),
		string(ScopeEphemeral): c.ScopeValues(ScopeEphemeral),
	}

	c.mu.RLock()
	outputs := make(map[string]any, len(c.nodeOutputs))
	for id, out := range c.nodeOutputs {
		outputs[id] = out
	}
	c.mu.RUnlock()

	snapshot["nodeOutputs"] = outputs
	snapshot["system"] = systemVariables(c.now())

	return snapshot
}
