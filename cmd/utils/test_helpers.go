package utils

import (
	"os"
	"strings"
	"testing"
)

// ClearTestEnvironment blanks every environment variable for the duration of the test, so the config options are
// only read from the flags the test passes.
func ClearTestEnvironment(t *testing.T) {
	t.Helper()
	for _, env := range os.Environ() {
		if key, _, found := strings.Cut(env, "="); found && key != "" {
			t.Setenv(key, "")
		}
	}
}
