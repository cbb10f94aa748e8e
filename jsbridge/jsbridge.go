// Package jsbridge defines the native capabilities installed into every
// script's global scope: console2.log and setTimeout.
//
// setTimeout blocks the calling thread for the requested duration and never
// invokes its callback. There is no event loop for it to schedule on.
package jsbridge

import (
	"context"
	"fmt"
	"io"
	"math"
	"time"

	"cdr.dev/slog"

	"oss.terrastruct.com/xdefer"

	"oss.terrastruct.com/jshost/jsengine"
	"oss.terrastruct.com/jshost/lib/log"
)

const (
	ConsoleName = "console2"
	LogName     = "log"
	DelayName   = "setTimeout"
)

type Bridge struct {
	ctx   context.Context
	out   io.Writer
	sleep func(time.Duration)
}

type Option func(*Bridge)

// WithSleep replaces the blocking sleep used by setTimeout.
func WithSleep(sleep func(time.Duration)) Option {
	return func(b *Bridge) {
		b.sleep = sleep
	}
}

// New returns a bridge writing script output lines to out.
func New(ctx context.Context, out io.Writer, opts ...Option) *Bridge {
	b := &Bridge{
		ctx:   log.Named(ctx, "bridge"),
		out:   out,
		sleep: time.Sleep,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Template builds the Global Scope Template: log under the console2
// namespace and setTimeout at the top level.
func (b *Bridge) Template() (_ *jsengine.ObjectTemplate, err error) {
	defer xdefer.Errorf(&err, "failed to build global template")

	console := jsengine.NewObjectTemplate()
	if err := console.SetFunction(LogName, b.Log); err != nil {
		return nil, err
	}

	global := jsengine.NewObjectTemplate()
	if err := global.SetObject(ConsoleName, console); err != nil {
		return nil, err
	}
	if err := global.SetFunction(DelayName, b.Delay); err != nil {
		return nil, err
	}
	return global, nil
}

// Log writes "console.log: <text>" for its first argument. Extra arguments
// are ignored.
func (b *Bridge) Log(args jsengine.Arguments) (jsengine.Value, error) {
	text, err := Text(args.Get(0))
	if err != nil {
		return nil, err
	}
	log.Debug(b.ctx, "log", slog.F("args", args.Len()))
	_, err = fmt.Fprintf(b.out, "console.log: %s\n", text)
	return nil, err
}

// Delay blocks for the requested number of milliseconds and then writes
// "<N> ms have elapsed <callable>". The callback is not called.
func (b *Bridge) Delay(args jsengine.Arguments) (jsengine.Value, error) {
	callable := args.Get(0).IsFunction()
	ms, err := args.Get(1).Integer()
	if err != nil {
		return nil, err
	}

	log.Debug(b.ctx, "delay", slog.F("ms", ms), slog.F("callable", callable))
	if ms > 0 {
		b.sleep(millis(ms))
	}

	_, err = fmt.Fprintf(b.out, "%d ms have elapsed %t\n", ms, callable)
	return nil, err
}

func millis(ms int64) time.Duration {
	if ms > math.MaxInt64/int64(time.Millisecond) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(ms) * time.Millisecond
}

// Text coerces any value with a to-text conversion.
func Text(v jsengine.Coercer) (string, error) {
	return v.ToString()
}
