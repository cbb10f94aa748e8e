package jsengine

import (
	"context"
	"sync"

	"cdr.dev/slog"

	"oss.terrastruct.com/jshost/lib/log"
)

// LifecycleState is the process-wide engine state. It only moves forward:
// Uninitialized -> Initialized -> Disposed.
type LifecycleState int

const (
	Uninitialized LifecycleState = iota
	Initialized
	Disposed
)

func (s LifecycleState) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initialized:
		return "initialized"
	case Disposed:
		return "disposed"
	default:
		return "unknown"
	}
}

var (
	lifecycleMu sync.Mutex
	lifecycle   LifecycleState
)

// State reports the process-wide engine state.
func State() LifecycleState {
	lifecycleMu.Lock()
	defer lifecycleMu.Unlock()
	return lifecycle
}

// Engine is the process-wide singleton backing every isolate.
type Engine struct {
	mu       sync.Mutex
	backend  Backend
	platform *Platform
	live     int
	disposed bool
}

// Initialize sets up the named backend on platform p. It may succeed at most
// once per process.
func Initialize(ctx context.Context, backendName string, p Platform) (*Engine, error) {
	lifecycleMu.Lock()
	defer lifecycleMu.Unlock()

	if lifecycle != Uninitialized {
		return nil, Errorf(EngineLifecycleError, "cannot initialize engine: already %s", lifecycle)
	}

	b, ok := Lookup(backendName)
	if !ok {
		return nil, Errorf(EngineLifecycleError, "unknown engine %q (available: %v)", backendName, Backends())
	}

	if err := b.Initialize(p); err != nil {
		return nil, Wrap(EngineLifecycleError, err)
	}
	lifecycle = Initialized

	log.Debug(ctx, "engine initialized", slog.F("backend", b.Name()), slog.F("threads", p.ThreadPoolSize))
	return &Engine{
		backend:  b,
		platform: &p,
	}, nil
}

func (e *Engine) Backend() string {
	return e.backend.Name()
}

// NewIsolate creates the single live isolate. It must be disposed before
// another can be created or the engine disposed.
func (e *Engine) NewIsolate() (Isolate, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.disposed {
		return nil, Errorf(EngineLifecycleError, "cannot create isolate: engine disposed")
	}
	if e.live > 0 {
		return nil, Errorf(EngineLifecycleError, "cannot create isolate: another isolate is live")
	}

	iso, err := e.backend.NewIsolate()
	if err != nil {
		return nil, Wrap(EngineLifecycleError, err)
	}
	e.live++
	return &trackedIsolate{Isolate: iso, engine: e}, nil
}

// Dispose releases the backend and then the platform.
func (e *Engine) Dispose(ctx context.Context) error {
	lifecycleMu.Lock()
	defer lifecycleMu.Unlock()
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.disposed {
		return Errorf(EngineLifecycleError, "engine already disposed")
	}
	if e.live > 0 {
		return Errorf(EngineLifecycleError, "cannot dispose engine: %d isolate(s) still live", e.live)
	}

	e.disposed = true
	lifecycle = Disposed
	err := e.backend.Dispose()
	e.platform = nil

	log.Debug(ctx, "engine disposed", slog.F("backend", e.backend.Name()))
	return Wrap(EngineLifecycleError, err)
}

type trackedIsolate struct {
	Isolate
	engine *Engine
	once   sync.Once
}

func (i *trackedIsolate) NewContext(global *ObjectTemplate) (Context, error) {
	if global != nil {
		global.Seal()
	}
	return i.Isolate.NewContext(global)
}

func (i *trackedIsolate) Dispose() {
	i.once.Do(func() {
		i.Isolate.Dispose()

		i.engine.mu.Lock()
		i.engine.live--
		i.engine.mu.Unlock()
	})
}
