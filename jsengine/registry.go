package jsengine

import (
	"fmt"
	"sort"
	"sync"
)

var (
	backendsMu sync.Mutex
	backends   = map[string]Backend{}
)

// Register makes a backend available by name. It panics on duplicates as
// registration happens from init.
func Register(b Backend) {
	backendsMu.Lock()
	defer backendsMu.Unlock()

	if _, ok := backends[b.Name()]; ok {
		panic(fmt.Sprintf("jsengine: backend %q registered twice", b.Name()))
	}
	backends[b.Name()] = b
}

func Lookup(name string) (Backend, bool) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	b, ok := backends[name]
	return b, ok
}

// Backends returns the registered backend names, sorted.
func Backends() []string {
	backendsMu.Lock()
	defer backendsMu.Unlock()

	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultBackend prefers v8 when it was compiled in.
func DefaultBackend() string {
	if _, ok := Lookup("v8"); ok {
		return "v8"
	}
	return "goja"
}
