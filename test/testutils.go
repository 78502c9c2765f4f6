package test

import (
	"errors"
	"os"
	"runtime/pprof"
	"time"
)

var (
	// Timeout is the default timeout when tests wait for something to
	// happen.
	Timeout = time.Second * 5

	// ErrTimeout is returned on timeout.
	ErrTimeout = errors.New("test timeout")
)

// DumpGoroutines dumps all currently running goroutines.
func DumpGoroutines() {
	_ = pprof.Lookup("goroutine").WriteTo(os.Stdout, 1)
}
