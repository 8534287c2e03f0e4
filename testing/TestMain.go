// Package testing switches the process into test mode for packages that
// blank-import it.
package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv("COSTPLAN_TEST_MODE", "1")
		_ = os.Setenv("DB_MIGRATE_ON_START", "false")
	})
}

func init() {
	ensureTestMode()
}

// TestMain runs the suite with test mode enabled.
func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
