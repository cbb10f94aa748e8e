package env

import (
	"os"
)

func Test() bool {
	return os.Getenv("TEST_MODE") != ""
}

func Debug() bool {
	return os.Getenv("DEBUG") != ""
}

// TestEngine is the backend the test suites initialize. Only one backend can
// be initialized per process.
func TestEngine() string {
	if s := os.Getenv("JSHOST_TEST_ENGINE"); s != "" {
		return s
	}
	return "goja"
}
