package tenant

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/stellar/stellar-tenant-control-plane/db"
	"github.com/stellar/stellar-tenant-control-plane/internal/monitor"
	"github.com/stellar/stellar-tenant-control-plane/internal/tenantcontext"
)

var (
	ErrNoRouteForTenant       = errors.New("no route for tenant")
	ErrBlankRealm             = errors.New("realm cannot be blank")
	ErrInvalidDataSource      = errors.New("data source cannot be nil")
	ErrNoDataSourcesAvailable = errors.New("no data sources are available")
)

// routingTable is never mutated once published. Writers build a new table and swap it in.
type routingTable struct {
	routes    map[string]db.DBConnectionPool
	tenantIDs map[string]uuid.UUID
}

func (t *routingTable) sortedRealms() []string {
	realms := make([]string, 0, len(t.routes))
	for realm := range t.routes {
		realms = append(realms, realm)
	}
	sort.Strings(realms)
	return realms
}

func (t *routingTable) clone() *routingTable {
	next := &routingTable{
		routes:    make(map[string]db.DBConnectionPool, len(t.routes)+1),
		tenantIDs: make(map[string]uuid.UUID, len(t.tenantIDs)+1),
	}
	for realm, pool := range t.routes {
		next.routes[realm] = pool
	}
	for realm, id := range t.tenantIDs {
		next.tenantIDs[realm] = id
	}
	return next
}

// ConnectionRouter maps the realm of the current operation to the connection pool of the tenant database. Reads load
// the current table without locking; writes are serialized and publish a whole new table.
type ConnectionRouter struct {
	table          atomic.Pointer[routingTable]
	writeMu        sync.Mutex
	defaultPool    db.DBConnectionPool
	monitorService monitor.MonitorServiceInterface
}

type RouterOption func(r *ConnectionRouter)

// WithDefaultDataSource sets the pool used for operations without a realm and for unknown realms.
func WithDefaultDataSource(pool db.DBConnectionPool) RouterOption {
	return func(r *ConnectionRouter) {
		if isNilPool(pool) {
			r.defaultPool = nil
			return
		}
		r.defaultPool = pool
	}
}

// isNilPool also catches an interface wrapping a nil pointer, which a plain nil comparison lets through.
func isNilPool(pool db.DBConnectionPool) bool {
	if pool == nil {
		return true
	}
	v := reflect.ValueOf(pool)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return v.IsNil()
	default:
		return false
	}
}

func WithRouterMonitor(monitorService monitor.MonitorServiceInterface) RouterOption {
	return func(r *ConnectionRouter) {
		r.monitorService = monitorService
	}
}

func NewConnectionRouter(opts ...RouterOption) *ConnectionRouter {
	r := &ConnectionRouter{monitorService: monitor.NoopMonitorService{}}
	for _, opt := range opts {
		opt(r)
	}
	r.table.Store(&routingTable{
		routes:    map[string]db.DBConnectionPool{},
		tenantIDs: map[string]uuid.UUID{},
	})
	return r
}

// Resolve returns the pool of the realm executing in ctx. Without a realm, or for a realm with no registered route,
// it returns the default pool. When the context knows the realm but not the tenant ID, the ID known by the router is
// filled into the context's tenant scope.
func (r *ConnectionRouter) Resolve(ctx context.Context) (db.DBConnectionPool, error) {
	realm, ok := tenantcontext.Realm(ctx)
	if !ok {
		return r.fallback(ctx, "")
	}

	table := r.table.Load()
	if id, found := table.tenantIDs[realm]; found {
		if tenantcontext.PopulateTenantID(ctx, realm, id) {
			log.Ctx(ctx).Debugf("populated tenant ID %s for realm %s", id, realm)
		}
	}

	pool, found := table.routes[realm]
	if !found {
		return r.fallback(ctx, realm)
	}

	r.record(monitor.RouteResolutionsCounterTag, monitor.RouteOutcomeTenant)
	return pool, nil
}

func (r *ConnectionRouter) fallback(ctx context.Context, realm string) (db.DBConnectionPool, error) {
	if r.defaultPool == nil {
		r.record(monitor.RouteResolutionsCounterTag, monitor.RouteOutcomeNoRoute)
		return nil, fmt.Errorf("resolving realm %q: %w", realm, ErrNoRouteForTenant)
	}
	if realm != "" {
		log.Ctx(ctx).Debugf("realm %s has no registered route, using the default data source", realm)
	}
	r.record(monitor.RouteResolutionsCounterTag, monitor.RouteOutcomeDefault)
	return r.defaultPool, nil
}

// Register inserts or replaces the route of realm. The replaced pool, if any, is returned so the caller can close
// it once in-flight operations are done with it.
func (r *ConnectionRouter) Register(realm string, pool db.DBConnectionPool) (replaced db.DBConnectionPool, err error) {
	realm = strings.TrimSpace(realm)
	if realm == "" {
		return nil, ErrBlankRealm
	}
	if isNilPool(pool) {
		return nil, fmt.Errorf("registering realm %s: %w", realm, ErrInvalidDataSource)
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	next := r.table.Load().clone()
	replaced = next.routes[realm]
	next.routes[realm] = pool
	r.table.Store(next)

	r.record(monitor.RouteRegistrationsCounterTag, monitor.RouteOutcomeRegister)
	r.recordRouted(len(next.routes))
	return replaced, nil
}

// Deregister removes the route of realm and its tenant mapping, and returns the removed pool. Removing a realm that
// isn't registered is not an error, the returned pool is nil.
func (r *ConnectionRouter) Deregister(realm string) (db.DBConnectionPool, error) {
	realm = strings.TrimSpace(realm)
	if realm == "" {
		return nil, ErrBlankRealm
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	current := r.table.Load()
	removed, found := current.routes[realm]
	_, mapped := current.tenantIDs[realm]
	if !found && !mapped {
		return nil, nil
	}

	next := current.clone()
	delete(next.routes, realm)
	delete(next.tenantIDs, realm)
	r.table.Store(next)

	r.record(monitor.RouteRegistrationsCounterTag, monitor.RouteOutcomeRemove)
	r.recordRouted(len(next.routes))
	return removed, nil
}

func (r *ConnectionRouter) Has(realm string) bool {
	_, ok := r.table.Load().routes[realm]
	return ok
}

// Realms returns the registered realms in lexical order.
func (r *ConnectionRouter) Realms() []string {
	return r.table.Load().sortedRealms()
}

// SetTenantMapping records the tenant ID of realm, used to complete contexts that only carry the realm.
func (r *ConnectionRouter) SetTenantMapping(realm string, tenantID uuid.UUID) error {
	realm = strings.TrimSpace(realm)
	if realm == "" {
		return ErrBlankRealm
	}
	if tenantID == uuid.Nil {
		return fmt.Errorf("mapping realm %s: tenant ID cannot be empty", realm)
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	next := r.table.Load().clone()
	next.tenantIDs[realm] = tenantID
	r.table.Store(next)
	return nil
}

func (r *ConnectionRouter) RemoveTenantMapping(realm string) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	current := r.table.Load()
	if _, ok := current.tenantIDs[realm]; !ok {
		return
	}
	next := current.clone()
	delete(next.tenantIDs, realm)
	r.table.Store(next)
}

// TenantIDForRealm returns the tenant ID mapped to realm.
func (r *ConnectionRouter) TenantIDForRealm(realm string) (uuid.UUID, bool) {
	id, ok := r.table.Load().tenantIDs[realm]
	return id, ok
}

func (r *ConnectionRouter) record(tag monitor.MetricTag, outcome string) {
	if err := r.monitorService.MonitorCounters(tag, monitor.RouteLabels{Outcome: outcome}.ToMap()); err != nil {
		log.Debugf("recording %s metric: %v", tag, err)
	}
}

func (r *ConnectionRouter) recordRouted(n int) {
	if err := r.monitorService.MonitorGauge(monitor.RoutedTenantsGaugeTag, map[string]string{}, float64(n)); err != nil {
		log.Debugf("recording %s metric: %v", monitor.RoutedTenantsGaugeTag, err)
	}
}

// GetDataSource implements db.DataSourceRouter.
func (r *ConnectionRouter) GetDataSource(ctx context.Context) (db.DBConnectionPool, error) {
	return r.Resolve(ctx)
}

// GetAllDataSources returns every registered pool plus the default one.
func (r *ConnectionRouter) GetAllDataSources() ([]db.DBConnectionPool, error) {
	table := r.table.Load()
	pools := make([]db.DBConnectionPool, 0, len(table.routes)+1)
	if r.defaultPool != nil {
		pools = append(pools, r.defaultPool)
	}
	for _, realm := range table.sortedRealms() {
		pools = append(pools, table.routes[realm])
	}
	return pools, nil
}

// AnyDataSource returns the default pool, or any registered pool when there's no default.
func (r *ConnectionRouter) AnyDataSource() (db.DBConnectionPool, error) {
	if r.defaultPool != nil {
		return r.defaultPool, nil
	}
	for _, pool := range r.table.Load().routes {
		return pool, nil
	}
	return nil, ErrNoDataSourcesAvailable
}

var _ db.DataSourceRouter = (*ConnectionRouter)(nil)
