package jsbridge_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"oss.terrastruct.com/diff"

	"oss.terrastruct.com/jshost/jsbridge"
	"oss.terrastruct.com/jshost/jsengine"
	"oss.terrastruct.com/jshost/lib/log"
)

type fakeValue struct {
	text   string
	err    error
	fn     bool
	n      int64
	numErr error
}

func (v fakeValue) ToString() (string, error) { return v.text, v.err }
func (v fakeValue) IsFunction() bool          { return v.fn }
func (v fakeValue) Integer() (int64, error)   { return v.n, v.numErr }
func (v fakeValue) AsPromise() (jsengine.Promise, error) {
	return nil, errors.New("not a promise")
}

var undefined = fakeValue{text: "undefined"}

type fakeArgs []jsengine.Value

func (a fakeArgs) Len() int { return len(a) }

func (a fakeArgs) Get(i int) jsengine.Value {
	if i < 0 || i >= len(a) {
		return undefined
	}
	return a[i]
}

func newBridge(t *testing.T, out *bytes.Buffer, slept *[]time.Duration) *jsbridge.Bridge {
	ctx := log.WithTB(context.Background(), t, nil)
	return jsbridge.New(ctx, out, jsbridge.WithSleep(func(d time.Duration) {
		*slept = append(*slept, d)
	}))
}

func TestTemplate(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	var slept []time.Duration
	global, err := newBridge(t, &out, &slept).Template()
	if !assert.Nil(t, err) {
		return
	}

	entries := global.Entries()
	if !assert.Len(t, entries, 2) {
		return
	}
	assert.Equal(t, jsbridge.ConsoleName, entries[0].Name)
	if assert.NotNil(t, entries[0].Object) {
		console := entries[0].Object.Entries()
		if assert.Len(t, console, 1) {
			assert.Equal(t, jsbridge.LogName, console[0].Name)
			assert.NotNil(t, console[0].Function)
		}
	}
	assert.Equal(t, jsbridge.DelayName, entries[1].Name)
	assert.NotNil(t, entries[1].Function)
}

func TestLog(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		args fakeArgs
		exp  string
	}{
		{
			name: "string",
			args: fakeArgs{fakeValue{text: "hi"}},
			exp:  "console.log: hi\n",
		},
		{
			name: "object",
			args: fakeArgs{fakeValue{text: "[object Object]"}},
			exp:  "console.log: [object Object]\n",
		},
		{
			name: "extra_args_ignored",
			args: fakeArgs{fakeValue{text: "a"}, fakeValue{text: "b"}},
			exp:  "console.log: a\n",
		},
		{
			name: "no_args",
			args: fakeArgs{},
			exp:  "console.log: undefined\n",
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var out bytes.Buffer
			var slept []time.Duration
			ret, err := newBridge(t, &out, &slept).Log(tc.args)
			assert.Nil(t, err)
			assert.Nil(t, ret)
			diff.AssertStringEq(t, tc.exp, out.String())
		})
	}
}

func TestLogCoercionError(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	var slept []time.Duration
	_, err := newBridge(t, &out, &slept).Log(fakeArgs{fakeValue{err: errors.New("toString threw")}})
	assert.EqualError(t, err, "toString threw")
	assert.Equal(t, "", out.String())
}

func TestDelay(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		args  fakeArgs
		exp   string
		slept []time.Duration
	}{
		{
			name:  "function",
			args:  fakeArgs{fakeValue{fn: true}, fakeValue{n: 250}},
			exp:   "250 ms have elapsed true\n",
			slept: []time.Duration{250 * time.Millisecond},
		},
		{
			name:  "not_a_function",
			args:  fakeArgs{fakeValue{text: "nope"}, fakeValue{n: 10}},
			exp:   "10 ms have elapsed false\n",
			slept: []time.Duration{10 * time.Millisecond},
		},
		{
			name: "zero",
			args: fakeArgs{fakeValue{fn: true}, fakeValue{n: 0}},
			exp:  "0 ms have elapsed true\n",
		},
		{
			name: "negative",
			args: fakeArgs{fakeValue{fn: true}, fakeValue{n: -5}},
			exp:  "-5 ms have elapsed true\n",
		},
		{
			name: "missing_delay",
			args: fakeArgs{fakeValue{fn: true}},
			exp:  "0 ms have elapsed true\n",
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var out bytes.Buffer
			var slept []time.Duration
			ret, err := newBridge(t, &out, &slept).Delay(tc.args)
			assert.Nil(t, err)
			assert.Nil(t, ret)
			diff.AssertStringEq(t, tc.exp, out.String())
			assert.Equal(t, tc.slept, slept)
		})
	}
}

func TestDelayNumberError(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	var slept []time.Duration
	_, err := newBridge(t, &out, &slept).Delay(fakeArgs{fakeValue{fn: true}, fakeValue{numErr: errors.New("symbol")}})
	assert.EqualError(t, err, "symbol")
	assert.Equal(t, "", out.String())
	assert.Empty(t, slept)
}

func TestDelayBlocks(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	b := jsbridge.New(context.Background(), &out)

	start := time.Now()
	_, err := b.Delay(fakeArgs{fakeValue{fn: true}, fakeValue{n: 20}})
	assert.Nil(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}
