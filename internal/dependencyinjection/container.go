package dependencyinjection

import (
	"context"
	"fmt"
	"io"
	"reflect"
	"sync"

	"github.com/stellar/go-stellar-sdk/support/log"
)

// registry holds the process-wide instances shared by the commands, keyed by instance name.
type registry struct {
	mu        sync.Mutex
	instances map[string]any
}

var instances = &registry{instances: map[string]any{}}

func SetInstance(instanceName string, instance any) {
	instances.mu.Lock()
	defer instances.mu.Unlock()
	instances.instances[instanceName] = instance
}

func GetInstance(instanceName string) (any, bool) {
	instances.mu.Lock()
	defer instances.mu.Unlock()
	instance, ok := instances.instances[instanceName]
	return instance, ok
}

// getOrCreate returns the instance stored under instanceName, building and storing it with newFn when missing. The
// registry stays locked while newFn runs, so an instance is never built twice. Failed builds aren't stored.
func getOrCreate[T any](instanceName string, newFn func() (T, error)) (T, error) {
	instances.mu.Lock()
	defer instances.mu.Unlock()

	if existing, found := instances.instances[instanceName]; found {
		typed, ok := existing.(T)
		if !ok {
			var zero T
			return zero, fmt.Errorf("instance %s has type %T, expected %v", instanceName, existing, reflect.TypeFor[T]())
		}
		return typed, nil
	}

	instance, err := newFn()
	if err != nil {
		return instance, err
	}
	instances.instances[instanceName] = instance
	return instance, nil
}

// DeleteAndCloseInstanceByKey drops an instance and closes it when it's an io.Closer. Close errors are only logged,
// this runs during shutdown.
func DeleteAndCloseInstanceByKey(ctx context.Context, instanceName string) {
	instances.mu.Lock()
	instance, found := instances.instances[instanceName]
	delete(instances.instances, instanceName)
	instances.mu.Unlock()

	closer, ok := instance.(io.Closer)
	if !found || !ok {
		return
	}
	if err := closer.Close(); err != nil {
		log.Ctx(ctx).Errorf("closing instance %s: %v", instanceName, err)
	}
}
