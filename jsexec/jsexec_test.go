package jsexec_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"oss.terrastruct.com/diff"

	"oss.terrastruct.com/jshost/jsbridge"
	"oss.terrastruct.com/jshost/jsengine"
	"oss.terrastruct.com/jshost/jsexec"
	"oss.terrastruct.com/jshost/lib/log"
)

func source(s string) jsexec.Source {
	return jsexec.SourceFunc(func() (string, error) {
		return s, nil
	})
}

// Tests do not run in parallel: the engine allows a single live isolate.
func TestRun(t *testing.T) {
	testCases := []struct {
		name   string
		src    string
		state  jsengine.PromiseState
		result string
		exp    string
	}{
		{
			name:   "log_then_fulfilled",
			src:    `console2.log("hi"); Promise.resolve(42)`,
			state:  jsengine.Fulfilled,
			result: "42",
			exp: `console.log: hi
promise state: Fulfilled
42
`,
		},
		{
			name:   "rejected",
			src:    `Promise.reject("boom")`,
			state:  jsengine.Rejected,
			result: "boom",
			exp: `promise state: Rejected
boom
`,
		},
		{
			name: "log_coercion",
			src: `console2.log(1.5)
console2.log({})
console2.log([1, 2])
console2.log(null)
console2.log()
console2.log({ toString() { return "custom" } })
Promise.resolve("done")`,
			state:  jsengine.Fulfilled,
			result: "done",
			exp: `console.log: 1.5
console.log: [object Object]
console.log: 1,2
console.log: null
console.log: undefined
console.log: custom
promise state: Fulfilled
done
`,
		},
		{
			name: "delay_not_a_function",
			src: `setTimeout("nope", 0)
Promise.resolve(1)`,
			state:  jsengine.Fulfilled,
			result: "1",
			exp: `0 ms have elapsed false
promise state: Fulfilled
1
`,
		},
		{
			name:   "delay_returns_undefined",
			src:    `Promise.resolve(typeof setTimeout(() => {}, 0))`,
			state:  jsengine.Fulfilled,
			result: "undefined",
			exp: `0 ms have elapsed true
promise state: Fulfilled
undefined
`,
		},
		{
			name:   "resolved_object",
			src:    `Promise.resolve({ a: 1 })`,
			state:  jsengine.Fulfilled,
			result: "[object Object]",
			exp: `promise state: Fulfilled
[object Object]
`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := log.WithTB(context.Background(), t, nil)

			var out bytes.Buffer
			rep, err := jsexec.Run(ctx, eng, source(tc.src), &out, nil)
			if !assert.Nil(t, err) {
				return
			}
			assert.Equal(t, tc.state, rep.State)
			assert.Equal(t, tc.result, rep.Result)
			assert.Equal(t, jsexec.IsolateDestroyed, rep.Stage)
			diff.AssertStringEq(t, tc.exp, out.String())
		})
	}
}

func TestRunErrors(t *testing.T) {
	testCases := []struct {
		name string
		src  jsexec.Source
		kind jsengine.ErrorKind
		exp  string
	}{
		{
			name: "syntax_error",
			src:  source(`console2.log("hi"; Promise.resolve(1)`),
			kind: jsengine.CompileError,
		},
		{
			name: "uncaught_throw",
			src: source(`console2.log("before")
throw new Error("kaboom")`),
			kind: jsengine.ExecutionError,
			exp:  "console.log: before\n",
		},
		{
			name: "log_coercion_throws",
			src:  source(`console2.log({ toString() { throw new Error("no text") } }); Promise.resolve(1)`),
			kind: jsengine.ExecutionError,
		},
		{
			name: "log_symbol",
			src:  source(`console2.log(Symbol()); Promise.resolve(1)`),
			kind: jsengine.ExecutionError,
		},
		{
			name: "symbol_result",
			src:  source(`Promise.resolve(Symbol("r"))`),
			kind: jsengine.ExecutionError,
		},
		{
			name: "not_a_promise",
			src:  source(`42`),
			kind: jsengine.ResultShapeError,
		},
		{
			name: "undefined_result",
			src:  source(`var x = 1;`),
			kind: jsengine.ResultShapeError,
		},
		{
			name: "source_unavailable",
			src: jsexec.SourceFunc(func() (string, error) {
				return "", errors.New("disk on fire")
			}),
			kind: jsengine.SourceUnavailable,
		},
		{
			name: "invalid_utf8",
			src:  source("Promise.resolve(\xff)"),
			kind: jsengine.SourceUnavailable,
		},
		{
			name: "missing_file",
			src:  jsexec.File(filepath.Join(t.TempDir(), "missing.js")),
			kind: jsengine.SourceUnavailable,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := log.WithTB(context.Background(), t, nil)

			var out bytes.Buffer
			rep, err := jsexec.Run(ctx, eng, tc.src, &out, nil)
			assert.Nil(t, rep)
			assert.True(t, jsengine.IsKind(err, tc.kind), "expected %v, got %v", tc.kind, err)
			assert.NotContains(t, err.Error(), "Error: Error:")
			assert.NotContains(t, out.String(), "promise state:")
			diff.AssertStringEq(t, tc.exp, out.String())
		})
	}
}

func TestRunDelayBlocksWithoutCallingBack(t *testing.T) {
	ctx := log.WithTB(context.Background(), t, nil)

	src := `var called = false
setTimeout(() => { called = true }, 30)
Promise.resolve(called)`

	var out bytes.Buffer
	start := time.Now()
	rep, err := jsexec.Run(ctx, eng, source(src), &out, nil)
	if !assert.Nil(t, err) {
		return
	}
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	assert.Equal(t, "false", rep.Result)
	diff.AssertStringEq(t, `30 ms have elapsed true
promise state: Fulfilled
false
`, out.String())
}

func TestRunPendingPromise(t *testing.T) {
	ctx := log.WithTB(context.Background(), t, nil)

	var slept []time.Duration
	opts := &jsexec.Opts{
		BridgeOpts: []jsbridge.Option{jsbridge.WithSleep(func(d time.Duration) {
			slept = append(slept, d)
		})},
	}

	var out bytes.Buffer
	rep, err := jsexec.Run(ctx, eng, source(`new Promise(resolve => setTimeout(resolve, 1000))`), &out, opts)
	if !assert.Nil(t, err) {
		return
	}
	assert.Equal(t, jsengine.Pending, rep.State)
	assert.Equal(t, []time.Duration{time.Second}, slept)
	assert.True(t, strings.HasPrefix(out.String(), "1000 ms have elapsed true\npromise state: Pending\n"), out.String())
}

func TestRunFile(t *testing.T) {
	ctx := log.WithTB(context.Background(), t, nil)

	fp := filepath.Join(t.TempDir(), "code.js")
	err := os.WriteFile(fp, []byte(`console2.log("from file"); Promise.resolve("ok")`), 0644)
	if !assert.Nil(t, err) {
		return
	}

	var out bytes.Buffer
	rep, err := jsexec.Run(ctx, eng, jsexec.File(fp), &out, &jsexec.Opts{Origin: fp})
	if !assert.Nil(t, err) {
		return
	}
	assert.Equal(t, jsengine.Fulfilled, rep.State)
	diff.AssertStringEq(t, `console.log: from file
promise state: Fulfilled
ok
`, out.String())
}

func TestRunReader(t *testing.T) {
	ctx := log.WithTB(context.Background(), t, nil)

	var out bytes.Buffer
	rep, err := jsexec.Run(ctx, eng, jsexec.Reader(strings.NewReader(`Promise.resolve(7)`)), &out, nil)
	if !assert.Nil(t, err) {
		return
	}
	assert.Equal(t, "7", rep.Result)
}
