// Package guard switches the binaries into test mode when imported by a test,
// so calling main does not open connections or bind ports.
package guard

import (
	"os"
	"sync"
)

// EnvVar is the variable read by app.InTestMode.
const EnvVar = "ITASSET_TEST_MODE"

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv(EnvVar) == "" {
			_ = os.Setenv(EnvVar, "1")
		}
	})
}
