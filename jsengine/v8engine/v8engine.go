//go:build cgo

package v8engine

import (
	"errors"
	"fmt"

	v8 "rogchap.com/v8go"

	"oss.terrastruct.com/jshost/jsengine"
)

func init() {
	jsengine.Register(Backend{})
}

type Backend struct{}

func (Backend) Name() string {
	return Name
}

// Initialize applies platform flags. v8go creates the V8 platform itself on
// first use, so flags must be set before any isolate exists.
func (Backend) Initialize(p jsengine.Platform) error {
	if p.ThreadPoolSize <= 0 {
		return fmt.Errorf("invalid thread pool size %d", p.ThreadPoolSize)
	}
	flags := append([]string(nil), p.Flags...)
	if p.ThreadPoolSize == 1 {
		flags = append(flags, "--single-threaded")
	}
	if len(flags) > 0 {
		v8.SetFlags(flags...)
	}
	return nil
}

// Dispose is a no-op: v8go releases the V8 platform at process exit.
func (Backend) Dispose() error {
	return nil
}

func (Backend) NewIsolate() (jsengine.Isolate, error) {
	return &isolate{iso: v8.NewIsolate()}, nil
}

// Conversion helpers report script exceptions as values so the original
// exception survives the trip through Go.
const (
	toStringSource = "(v => { try { return { value: `${v}` } } catch (e) { return { thrown: e } } })"
	toNumberSource = "(v => { try { return { value: Number(v) } } catch (e) { return { thrown: e } } })"
)

type isolate struct {
	iso *v8.Isolate
	ctx *jsContext
}

// NewContext creates the isolate's only context. Host callbacks resolve their
// arguments against it.
func (i *isolate) NewContext(global *jsengine.ObjectTemplate) (jsengine.Context, error) {
	if i.iso == nil {
		return nil, errors.New("isolate disposed")
	}
	if i.ctx != nil {
		return nil, errors.New("v8 isolates support a single context")
	}

	var ctx *v8.Context
	if global == nil {
		ctx = v8.NewContext(i.iso)
	} else {
		tmpl, err := i.objectTemplate(global)
		if err != nil {
			return nil, err
		}
		ctx = v8.NewContext(i.iso, tmpl)
	}

	c := &jsContext{iso: i.iso, ctx: ctx}
	var err error
	c.toString, err = helper(ctx, toStringSource, "to-string.js")
	if err != nil {
		ctx.Close()
		return nil, err
	}
	c.toNumber, err = helper(ctx, toNumberSource, "to-number.js")
	if err != nil {
		ctx.Close()
		return nil, err
	}
	i.ctx = c
	return c, nil
}

func helper(ctx *v8.Context, source, origin string) (*v8.Function, error) {
	v, err := ctx.RunScript(source, origin)
	if err != nil {
		return nil, fmt.Errorf("failed to compile %s: %w", origin, err)
	}
	return v.AsFunction()
}

func (i *isolate) objectTemplate(t *jsengine.ObjectTemplate) (*v8.ObjectTemplate, error) {
	tmpl := v8.NewObjectTemplate(i.iso)
	for _, e := range t.Entries() {
		if e.Function != nil {
			fn := v8.NewFunctionTemplate(i.iso, i.wrap(e.Function))
			if err := tmpl.Set(e.Name, fn); err != nil {
				return nil, fmt.Errorf("failed to set function %q: %w", e.Name, err)
			}
			continue
		}
		child, err := i.objectTemplate(e.Object)
		if err != nil {
			return nil, err
		}
		if err := tmpl.Set(e.Name, child); err != nil {
			return nil, fmt.Errorf("failed to set object %q: %w", e.Name, err)
		}
	}
	return tmpl, nil
}

func (i *isolate) wrap(fn jsengine.FunctionCallback) v8.FunctionCallback {
	return func(info *v8.FunctionCallbackInfo) *v8.Value {
		ret, err := fn(arguments{c: i.ctx, args: info.Args()})
		if err != nil {
			var te *thrownError
			if errors.As(err, &te) {
				return i.iso.ThrowException(te.v)
			}
			return i.iso.ThrowException(errorValue(i.iso, info.Context(), err))
		}
		if ret == nil {
			return v8.Undefined(i.iso)
		}
		return ret.(*value).v
	}
}

// thrownError is a script exception raised while converting a value.
type thrownError struct {
	v *v8.Value
}

func (e *thrownError) Error() string {
	return e.v.String()
}

// errorValue builds a script Error carrying err's message, falling back to a
// plain string.
func errorValue(iso *v8.Isolate, ctx *v8.Context, err error) *v8.Value {
	msg, nerr := v8.NewValue(iso, err.Error())
	if nerr != nil {
		return v8.Undefined(iso)
	}
	ev, gerr := ctx.Global().Get("Error")
	if gerr != nil {
		return msg
	}
	ctor, ferr := ev.AsFunction()
	if ferr != nil {
		return msg
	}
	errObj, cerr := ctor.Call(v8.Undefined(iso), msg)
	if cerr != nil {
		return msg
	}
	return errObj
}

func (i *isolate) Dispose() {
	if i.iso == nil {
		return
	}
	i.iso.Dispose()
	i.iso = nil
	i.ctx = nil
}

type jsContext struct {
	iso      *v8.Isolate
	ctx      *v8.Context
	toString *v8.Function
	toNumber *v8.Function
}

func (c *jsContext) Compile(source, origin string) (jsengine.Script, error) {
	us, err := c.iso.CompileUnboundScript(source, origin, v8.CompileOptions{})
	if err != nil {
		return nil, err
	}
	return &script{c: c, us: us}, nil
}

func (c *jsContext) Close() {
	if c.ctx == nil {
		return
	}
	c.ctx.Close()
	c.ctx = nil
}

func (c *jsContext) wrapValue(v *v8.Value) *value {
	if v == nil {
		v = v8.Undefined(c.iso)
	}
	return &value{c: c, v: v}
}

// convert applies a helper and unpacks its { value } or { thrown } result.
func (c *jsContext) convert(fn *v8.Function, v *v8.Value) (*v8.Value, error) {
	if c.ctx == nil {
		return nil, errors.New("context closed")
	}
	res, err := fn.Call(v8.Undefined(c.iso), v)
	if err != nil {
		return nil, err
	}
	obj, err := res.AsObject()
	if err != nil {
		return nil, err
	}
	if obj.Has("thrown") {
		thrown, err := obj.Get("thrown")
		if err != nil {
			return nil, err
		}
		return nil, &thrownError{v: thrown}
	}
	return obj.Get("value")
}

type script struct {
	c  *jsContext
	us *v8.UnboundScript
}

func (s *script) Run() (jsengine.Value, error) {
	if s.c.ctx == nil {
		return nil, errors.New("context closed")
	}
	v, err := s.us.Run(s.c.ctx)
	if err != nil {
		return nil, err
	}
	return s.c.wrapValue(v), nil
}

type arguments struct {
	c    *jsContext
	args []*v8.Value
}

func (a arguments) Len() int {
	return len(a.args)
}

func (a arguments) Get(i int) jsengine.Value {
	if i < 0 || i >= len(a.args) {
		return a.c.wrapValue(nil)
	}
	return a.c.wrapValue(a.args[i])
}

type value struct {
	c *jsContext
	v *v8.Value
}

func (v *value) ToString() (string, error) {
	s, err := v.c.convert(v.c.toString, v.v)
	if err != nil {
		return "", err
	}
	return s.String(), nil
}

func (v *value) IsFunction() bool {
	return v.v.IsFunction()
}

func (v *value) Integer() (int64, error) {
	n, err := v.c.convert(v.c.toNumber, v.v)
	if err != nil {
		return 0, err
	}
	return n.Integer(), nil
}

func (v *value) AsPromise() (jsengine.Promise, error) {
	if !v.v.IsPromise() {
		if s, err := v.ToString(); err == nil {
			return nil, fmt.Errorf("value is not a promise: %s", s)
		}
		return nil, errors.New("value is not a promise")
	}
	p, err := v.v.AsPromise()
	if err != nil {
		return nil, err
	}
	return &promise{c: v.c, p: p}, nil
}

type promise struct {
	c *jsContext
	p *v8.Promise
}

func (p *promise) State() jsengine.PromiseState {
	switch p.p.State() {
	case v8.Fulfilled:
		return jsengine.Fulfilled
	case v8.Rejected:
		return jsengine.Rejected
	default:
		return jsengine.Pending
	}
}

// Result must not reach v8go while pending.
func (p *promise) Result() jsengine.Value {
	if p.p.State() == v8.Pending {
		return p.c.wrapValue(nil)
	}
	return p.c.wrapValue(p.p.Result())
}
