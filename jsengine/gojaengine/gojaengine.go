// Package gojaengine is the pure Go jsengine backend built on goja.
package gojaengine

import (
	"errors"
	"fmt"

	"github.com/dop251/goja"

	"oss.terrastruct.com/jshost/jsengine"
)

const Name = "goja"

func init() {
	jsengine.Register(Backend{})
}

// Backend keeps no process-wide state: every goja.Runtime is independent.
type Backend struct{}

func (Backend) Name() string {
	return Name
}

func (Backend) Initialize(p jsengine.Platform) error {
	if p.ThreadPoolSize <= 0 {
		return fmt.Errorf("invalid thread pool size %d", p.ThreadPoolSize)
	}
	return nil
}

func (Backend) Dispose() error {
	return nil
}

func (Backend) NewIsolate() (jsengine.Isolate, error) {
	return &isolate{vm: goja.New()}, nil
}

// toStringSource converts with the ToString abstract operation. Unlike the
// global String function it rejects symbols.
const toStringSource = "(v => `${v}`)"

type isolate struct {
	vm      *goja.Runtime
	hasCtx  bool
	stringF goja.Callable
	numberF goja.Callable
}

// NewContext installs global on the runtime. goja has a single global scope
// per runtime so only one context may be created.
func (i *isolate) NewContext(global *jsengine.ObjectTemplate) (jsengine.Context, error) {
	if i.vm == nil {
		return nil, errors.New("isolate disposed")
	}
	if i.hasCtx {
		return nil, errors.New("goja isolates support a single context")
	}

	toString, err := i.vm.RunString(toStringSource)
	if err != nil {
		return nil, fmt.Errorf("failed to compile string conversion: %w", err)
	}
	var ok bool
	i.stringF, ok = goja.AssertFunction(toString)
	if !ok {
		return nil, errors.New("string conversion is not a function")
	}
	i.numberF, ok = goja.AssertFunction(i.vm.Get("Number"))
	if !ok {
		return nil, errors.New("global Number is not a function")
	}

	if global != nil {
		for _, e := range global.Entries() {
			v, err := i.materialize(e)
			if err != nil {
				return nil, err
			}
			if err := i.vm.Set(e.Name, v); err != nil {
				return nil, fmt.Errorf("failed to set global %q: %w", e.Name, err)
			}
		}
	}
	i.hasCtx = true
	return &jsContext{iso: i}, nil
}

func (i *isolate) materialize(e jsengine.TemplateEntry) (goja.Value, error) {
	if e.Function != nil {
		return i.vm.ToValue(i.wrap(e.Function)), nil
	}

	obj := i.vm.NewObject()
	for _, child := range e.Object.Entries() {
		v, err := i.materialize(child)
		if err != nil {
			return nil, err
		}
		if err := obj.Set(child.Name, v); err != nil {
			return nil, fmt.Errorf("failed to set %s.%s: %w", e.Name, child.Name, err)
		}
	}
	return obj, nil
}

func (i *isolate) wrap(fn jsengine.FunctionCallback) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		ret, err := fn(arguments{iso: i, call: call})
		if err != nil {
			var ex *goja.Exception
			if errors.As(err, &ex) {
				panic(ex.Value())
			}
			panic(i.vm.NewGoError(err))
		}
		if ret == nil {
			return goja.Undefined()
		}
		return ret.(*value).v
	}
}

func (i *isolate) Dispose() {
	if i.vm == nil {
		return
	}
	i.vm = nil
}

type jsContext struct {
	iso *isolate
}

func (c *jsContext) Compile(source, origin string) (jsengine.Script, error) {
	p, err := goja.Compile(origin, source, false)
	if err != nil {
		return nil, err
	}
	return &script{iso: c.iso, p: p}, nil
}

func (c *jsContext) Close() {}

type script struct {
	iso *isolate
	p   *goja.Program
}

func (s *script) Run() (jsengine.Value, error) {
	if s.iso.vm == nil {
		return nil, errors.New("isolate disposed")
	}
	v, err := s.iso.vm.RunProgram(s.p)
	if err != nil {
		return nil, err
	}
	return s.iso.wrapValue(v), nil
}

type arguments struct {
	iso  *isolate
	call goja.FunctionCall
}

func (a arguments) Len() int {
	return len(a.call.Arguments)
}

func (a arguments) Get(i int) jsengine.Value {
	return a.iso.wrapValue(a.call.Argument(i))
}

type value struct {
	iso *isolate
	v   goja.Value
}

func (i *isolate) wrapValue(v goja.Value) *value {
	if v == nil {
		v = goja.Undefined()
	}
	return &value{iso: i, v: v}
}

func (v *value) ToString() (string, error) {
	s, err := v.iso.stringF(goja.Undefined(), v.v)
	if err != nil {
		return "", err
	}
	return s.String(), nil
}

func (v *value) IsFunction() bool {
	_, ok := goja.AssertFunction(v.v)
	return ok
}

func (v *value) Integer() (int64, error) {
	n, err := v.iso.numberF(goja.Undefined(), v.v)
	if err != nil {
		return 0, err
	}
	return n.ToInteger(), nil
}

func (v *value) AsPromise() (jsengine.Promise, error) {
	p, ok := v.v.Export().(*goja.Promise)
	if !ok {
		if s, err := v.ToString(); err == nil {
			return nil, fmt.Errorf("value is not a promise: %s", s)
		}
		return nil, errors.New("value is not a promise")
	}
	return &promise{iso: v.iso, p: p}, nil
}

type promise struct {
	iso *isolate
	p   *goja.Promise
}

func (p *promise) State() jsengine.PromiseState {
	switch p.p.State() {
	case goja.PromiseStateFulfilled:
		return jsengine.Fulfilled
	case goja.PromiseStateRejected:
		return jsengine.Rejected
	default:
		return jsengine.Pending
	}
}

func (p *promise) Result() jsengine.Value {
	if p.p.State() == goja.PromiseStatePending {
		return p.iso.wrapValue(goja.Undefined())
	}
	return p.iso.wrapValue(p.p.Result())
}
