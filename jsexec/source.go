package jsexec

import (
	"io"
	"os"
	"unicode/utf8"

	"oss.terrastruct.com/jshost/jsengine"
)

// DefaultPath is where the script is read from when none is given.
const DefaultPath = "src/code.js"

// Source supplies the full text of the script to run.
type Source interface {
	Read() (string, error)
}

type SourceFunc func() (string, error)

func (f SourceFunc) Read() (string, error) {
	return f()
}

// File reads the script from a path on disk.
type File string

func (f File) Read() (string, error) {
	b, err := os.ReadFile(string(f))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Reader reads the script from r until EOF.
func Reader(r io.Reader) Source {
	return SourceFunc(func() (string, error) {
		b, err := io.ReadAll(r)
		if err != nil {
			return "", err
		}
		return string(b), nil
	})
}

func read(src Source) (string, error) {
	text, err := src.Read()
	if err != nil {
		return "", jsengine.Wrap(jsengine.SourceUnavailable, err)
	}
	if !utf8.ValidString(text) {
		return "", jsengine.Errorf(jsengine.SourceUnavailable, "script is not valid UTF-8")
	}
	return text, nil
}
