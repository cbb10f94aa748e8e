package jsengine

import (
	"errors"
	"fmt"
)

type ErrorKind int

const (
	SourceUnavailable ErrorKind = iota + 1
	CompileError
	ExecutionError
	ResultShapeError
	EngineLifecycleError
)

func (k ErrorKind) String() string {
	switch k {
	case SourceUnavailable:
		return "source unavailable"
	case CompileError:
		return "compile error"
	case ExecutionError:
		return "execution error"
	case ResultShapeError:
		return "result shape error"
	case EngineLifecycleError:
		return "engine lifecycle error"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Stage names the pipeline step that fails with this kind.
func (k ErrorKind) Stage() string {
	switch k {
	case SourceUnavailable:
		return "read"
	case CompileError:
		return "compile"
	case ExecutionError:
		return "execute"
	case ResultShapeError:
		return "inspect"
	case EngineLifecycleError:
		return "engine"
	default:
		return "unknown"
	}
}

// Error is a fatal error of one run, tagged with the stage that failed.
type Error struct {
	Kind ErrorKind
	Err  error
}

func Errorf(kind ErrorKind, format string, v ...interface{}) *Error {
	return &Error{
		Kind: kind,
		Err:  fmt.Errorf(format, v...),
	}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func IsKind(err error, kind ErrorKind) bool {
	var jerr *Error
	return errors.As(err, &jerr) && jerr.Kind == kind
}

// Wrap tags err with kind. Errors that already carry a kind keep it.
func Wrap(kind ErrorKind, err error) error {
	if err == nil {
		return nil
	}
	var jerr *Error
	if errors.As(err, &jerr) {
		return err
	}
	return &Error{
		Kind: kind,
		Err:  err,
	}
}
