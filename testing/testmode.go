// Package testing switches the application into test mode. Test packages
// that build binaries or routers blank-import it.
package testing

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("CMS_TEST_MODE") == "" {
			_ = os.Setenv("CMS_TEST_MODE", "1")
		}
	})
}
