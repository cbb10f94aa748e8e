// Package jsexec runs one script to completion and inspects the promise it
// evaluates to.
package jsexec

import (
	"context"
	"fmt"
	"io"

	"cdr.dev/slog"

	"oss.terrastruct.com/xdefer"

	"oss.terrastruct.com/jshost/jsbridge"
	"oss.terrastruct.com/jshost/jsengine"
	"oss.terrastruct.com/jshost/lib/log"
)

// Stage is a step of a run. A run only moves forward through the stages.
type Stage int

const (
	Uninitialized Stage = iota
	IsolateCreated
	ContextInstalled
	ScriptCompiled
	ScriptExecuted
	ResultInspected
	IsolateDestroyed
)

func (s Stage) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case IsolateCreated:
		return "isolate created"
	case ContextInstalled:
		return "context installed"
	case ScriptCompiled:
		return "script compiled"
	case ScriptExecuted:
		return "script executed"
	case ResultInspected:
		return "result inspected"
	case IsolateDestroyed:
		return "isolate destroyed"
	default:
		return fmt.Sprintf("Stage(%d)", int(s))
	}
}

type Opts struct {
	// Origin names the script in error locations.
	Origin string
	// Bridge options, e.g. jsbridge.WithSleep.
	BridgeOpts []jsbridge.Option
}

// Report is the outcome of a successful run.
type Report struct {
	State  jsengine.PromiseState
	Result string
	// Stage is the last stage reached, IsolateDestroyed once Run returns.
	Stage Stage
}

type run struct {
	ctx   context.Context
	stage Stage
}

func (r *run) advance(s Stage) {
	log.Debug(r.ctx, "stage", slog.F("from", r.stage.String()), slog.F("to", s.String()))
	r.stage = s
}

// Run reads src, executes it on a fresh isolate of eng and writes the
// promise state and result text to out. Script output from the bridge goes to
// out as well. Every error is fatal for the run and carries a
// jsengine.ErrorKind.
func Run(ctx context.Context, eng *jsengine.Engine, src Source, out io.Writer, opts *Opts) (rep *Report, err error) {
	if opts == nil {
		opts = &Opts{}
	}
	origin := opts.Origin
	if origin == "" {
		origin = DefaultPath
	}
	ctx = log.Named(ctx, "jsexec")
	r := &run{ctx: ctx}

	text, err := read(src)
	if err != nil {
		return nil, err
	}

	iso, err := eng.NewIsolate()
	if err != nil {
		return nil, err
	}
	r.advance(IsolateCreated)
	defer func() {
		iso.Dispose()
		r.advance(IsolateDestroyed)
		if rep != nil {
			rep.Stage = r.stage
		}
	}()

	global, err := jsbridge.New(ctx, out, opts.BridgeOpts...).Template()
	if err != nil {
		return nil, jsengine.Wrap(jsengine.EngineLifecycleError, err)
	}
	jsctx, err := iso.NewContext(global)
	if err != nil {
		return nil, jsengine.Wrap(jsengine.EngineLifecycleError, err)
	}
	defer jsctx.Close()
	r.advance(ContextInstalled)

	script, err := compile(jsctx, text, origin)
	if err != nil {
		return nil, err
	}
	r.advance(ScriptCompiled)

	result, err := execute(script)
	if err != nil {
		return nil, err
	}
	r.advance(ScriptExecuted)

	rep, err = inspect(result, out)
	if err != nil {
		return nil, err
	}
	r.advance(ResultInspected)
	return rep, nil
}

func compile(jsctx jsengine.Context, text, origin string) (_ jsengine.Script, err error) {
	defer xdefer.Errorf(&err, "failed to compile %s", origin)
	script, err := jsctx.Compile(text, origin)
	return script, jsengine.Wrap(jsengine.CompileError, err)
}

func execute(script jsengine.Script) (_ jsengine.Value, err error) {
	defer xdefer.Errorf(&err, "failed to execute script")
	v, err := script.Run()
	return v, jsengine.Wrap(jsengine.ExecutionError, err)
}

// inspect reads the settlement state once. The result slot is printed
// whatever the state; a pending promise prints undefined.
func inspect(v jsengine.Value, out io.Writer) (rep *Report, err error) {
	defer xdefer.Errorf(&err, "failed to inspect result")

	p, err := v.AsPromise()
	if err != nil {
		return nil, jsengine.Wrap(jsengine.ResultShapeError, err)
	}

	rep = &Report{State: p.State()}
	rep.Result, err = jsbridge.Text(p.Result())
	if err != nil {
		return nil, jsengine.Wrap(jsengine.ExecutionError, err)
	}

	_, err = fmt.Fprintf(out, "promise state: %s\n%s\n", rep.State, rep.Result)
	if err != nil {
		return nil, err
	}
	return rep, nil
}
