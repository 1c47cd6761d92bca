// Package guard switches binaries into test mode when imported by a test.
// Import it for side effects before calling a main function.
package guard

import (
	"os"
	"sync"

	"github.com/odyssey-erp/biztime/internal/app"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv(app.TestModeEnv) == "" {
			_ = os.Setenv(app.TestModeEnv, "1")
		}
		app.RefreshTestMode()
	})
}
