package module

import (
	"go/token"
	"sync"
	"time"

	"github.com/traefik/yaegi/interp"
)

// Unit is an immutable handle to one loaded container. It is created by
// Parse and never mutated; the resolver node it is attached to owns it.
type Unit struct {
	ID       string
	Origin   string
	Entries  []*Entry
	LoadedAt time.Time
}

// Entry is one lookup source inside a unit: one evaluated container section.
// The set of declared names is fixed at parse time; values are materialized
// on first lookup and cached. Entry satisfies the chain's Entry interface.
type Entry struct {
	owner   string
	section string
	names   map[string]bool

	mu       sync.Mutex // guards interp, which is not safe for concurrent eval
	interp   *interp.Interpreter
	resolved sync.Map // name -> any
}

// Owner returns the id of the unit this entry belongs to.
func (e *Entry) Owner() string { return e.owner }

// Section returns the container section the entry came from.
func (e *Entry) Section() string { return e.section }

// Names returns the exported names the entry defines, unordered.
func (e *Entry) Names() []string {
	out := make([]string, 0, len(e.names))
	for name := range e.names {
		if token.IsExported(name) {
			out = append(out, name)
		}
	}
	return out
}

// Lookup returns the value bound to name. Only exported names declared by
// this entry's section resolve; everything else is a miss.
func (e *Entry) Lookup(name string) (any, bool) {
	if !token.IsExported(name) || !e.names[name] {
		return nil, false
	}
	if v, ok := e.resolved.Load(name); ok {
		return v, true
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if v, ok := e.resolved.Load(name); ok {
		return v, true
	}
	rv, err := e.interp.Eval("main." + name)
	if err != nil || !rv.IsValid() {
		return nil, false
	}
	v := rv.Interface()
	e.resolved.Store(name, v)
	return v, true
}
