package jsengine

import "runtime"

const defaultThreadPoolSize = 4

// Platform is the process-wide configuration shared by every isolate.
type Platform struct {
	ThreadPoolSize int
	// Flags are passed through to backends that understand them.
	Flags []string
}

// NewDefaultPlatform sizes the platform to threadPoolSize workers. A
// non-positive size uses the number of available CPUs.
func NewDefaultPlatform(threadPoolSize int) Platform {
	if threadPoolSize <= 0 {
		threadPoolSize = runtime.NumCPU()
	}
	if threadPoolSize <= 0 {
		threadPoolSize = defaultThreadPoolSize
	}
	return Platform{
		ThreadPoolSize: threadPoolSize,
	}
}
