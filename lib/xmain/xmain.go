// Package xmain runs a script host command: it wires stdio, env options and
// signals, then maps the command's error to a message and an exit status.
package xmain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"oss.terrastruct.com/cmdlog"
	"oss.terrastruct.com/xos"

	"oss.terrastruct.com/jshost/jsengine"
	"oss.terrastruct.com/jshost/lib/log"
)

// Exit statuses, from sysexits(3).
const (
	ExitOK       = 0
	ExitFailure  = 1
	ExitUsage    = 64
	ExitDataErr  = 65
	ExitNoInput  = 66
	ExitSoftware = 70
)

// shutdownTimeout bounds how long run may take to return after a signal.
const shutdownTimeout = time.Minute

type RunFunc func(context.Context, *State) error

func Main(run RunFunc) {
	var args []string
	name := ""
	if len(os.Args) > 0 {
		name = os.Args[0]
		args = os.Args[1:]
	}

	env := xos.NewEnv(os.Environ())
	ms := &State{
		Name:   name,
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Env:    env,
		Log:    cmdlog.New(env, os.Stderr),
		Opts:   NewOpts(env, args),
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

	ctx := log.WithWriter(context.Background(), os.Stderr)
	if code := ms.Report(ms.Main(ctx, sigs, run)); code != ExitOK {
		os.Exit(code)
	}
}

type State struct {
	Name string

	Stdin  io.Reader
	Stdout io.Writer

	Log  *cmdlog.Logger
	Env  *xos.Env
	Opts *Opts
}

// Main runs run until it returns or a signal arrives. On SIGINT/SIGTERM the
// context is canceled and run gets shutdownTimeout to return.
func (ms *State) Main(ctx context.Context, sigs <-chan os.Signal, run RunFunc) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer close(done)
		done <- run(ctx, ms)
	}()

	select {
	case err := <-done:
		return err
	case sig := <-sigs:
		ms.Log.Warn.Printf("received signal %v: shutting down...", sig)
		cancel()
		select {
		case err := <-done:
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("failed to shutdown: %w", err)
			}
			if sig == syscall.SIGTERM {
				return nil
			}
			return ExitError{Code: ExitFailure}
		case <-time.After(shutdownTimeout):
			return ExitError{
				Code:    ExitFailure,
				Message: fmt.Sprintf("took longer than %v to shutdown: exiting forcefully", shutdownTimeout),
			}
		}
	}
}

// Report logs err and returns the exit status for it. A *jsengine.Error is
// reported with the pipeline stage that failed.
func (ms *State) Report(err error) int {
	if err == nil {
		return ExitOK
	}

	var eerr ExitError
	if errors.As(err, &eerr) {
		if eerr.Message != "" {
			ms.Log.Error.Print(eerr.Message)
		}
		return eerr.Code
	}

	var uerr UsageError
	if errors.As(err, &uerr) {
		ms.Log.Error.Printf("%v\nRun with --help to see usage.", err)
		return ExitUsage
	}

	var jerr *jsengine.Error
	if errors.As(err, &jerr) {
		ms.Log.Error.Printf("%s stage failed: %v", jerr.Kind.Stage(), err)
		return kindCode(jerr.Kind)
	}

	ms.Log.Error.Print(err.Error())
	return ExitFailure
}

// kindCode maps a script error kind to its exit status.
func kindCode(k jsengine.ErrorKind) int {
	switch k {
	case jsengine.SourceUnavailable:
		return ExitNoInput
	case jsengine.CompileError, jsengine.ResultShapeError:
		return ExitDataErr
	case jsengine.ExecutionError, jsengine.EngineLifecycleError:
		return ExitSoftware
	default:
		return ExitFailure
	}
}

// ExitError ends the process with Code, printing Message when set.
type ExitError struct {
	Code    int
	Message string
}

func (ee ExitError) Error() string {
	s := fmt.Sprintf("exiting with code %d", ee.Code)
	if ee.Message != "" {
		s += ": " + ee.Message
	}
	return s
}

// UsageError reports bad flags or arguments.
type UsageError struct {
	Message string
}

func UsageErrorf(msg string, v ...interface{}) UsageError {
	return UsageError{
		Message: fmt.Sprintf(msg, v...),
	}
}

func (ue UsageError) Error() string {
	return fmt.Sprintf("bad usage: %s", ue.Message)
}
