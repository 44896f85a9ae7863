package app

import (
	"os"
	"sync"
	"sync/atomic"
)

// TestModeEnv set to "1" makes the binaries exit before touching PostgreSQL,
// Redis or the network.
const TestModeEnv = "CMS_TEST_MODE"

var testMode struct {
	once sync.Once
	on   atomic.Bool
}

func readTestMode() {
	testMode.on.Store(os.Getenv(TestModeEnv) == "1")
}

// InTestMode reports whether runtime side effects should be skipped.
func InTestMode() bool {
	testMode.once.Do(readTestMode)
	return testMode.on.Load()
}

// RefreshTestMode re-reads the environment after it changed.
func RefreshTestMode() {
	testMode.once.Do(func() {})
	readTestMode()
}
