package dependencyinjection

import "testing"

// ClearInstancesTestHelper empties the registry now and once the test ends, so tests never share instances.
func ClearInstancesTestHelper(t *testing.T) {
	t.Helper()

	reset := func() {
		instances.mu.Lock()
		defer instances.mu.Unlock()
		clear(instances.instances)
	}
	reset()
	t.Cleanup(reset)
}
