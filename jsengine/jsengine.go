// Package jsengine is the engine-agnostic embedding API of jshost.
//
// A Backend supplies isolates. An Isolate instantiates a Context from an
// ObjectTemplate, a Context compiles Scripts, and running a Script yields a
// Value that may be inspected as a Promise.
package jsengine

type Backend interface {
	Name() string
	Initialize(p Platform) error
	Dispose() error
	NewIsolate() (Isolate, error)
}

type Isolate interface {
	// NewContext instantiates the global scope described by global.
	// global may be nil.
	NewContext(global *ObjectTemplate) (Context, error)
	Dispose()
}

type Context interface {
	Compile(source, origin string) (Script, error)
	Close()
}

type Script interface {
	Run() (Value, error)
}

// Coercer is anything that can convert itself to text using the engine's
// standard string coercion.
type Coercer interface {
	ToString() (string, error)
}

type Value interface {
	Coercer

	IsFunction() bool
	// Integer converts the value with the engine's number coercion, truncated
	// towards zero. NaN is 0.
	Integer() (int64, error)
	AsPromise() (Promise, error)
}

type Promise interface {
	State() PromiseState
	// Result is the settled value. It is undefined while the promise is
	// pending.
	Result() Value
}

type PromiseState int

const (
	Pending PromiseState = iota
	Fulfilled
	Rejected
)

func (s PromiseState) String() string {
	switch s {
	case Pending:
		return "Pending"
	case Fulfilled:
		return "Fulfilled"
	case Rejected:
		return "Rejected"
	default:
		return "Unknown"
	}
}

// Arguments are the script-side arguments of a native call. Get returns
// undefined for indexes past Len.
type Arguments interface {
	Len() int
	Get(i int) Value
}

// FunctionCallback is a native function callable from script. A nil Value
// returns undefined. A non-nil error is thrown into the script.
type FunctionCallback func(args Arguments) (Value, error)
