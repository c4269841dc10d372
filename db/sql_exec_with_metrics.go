//nolint:wrapcheck // Wrapper structs, no extra context needed
package db

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/stellar/stellar-tenant-control-plane/internal/monitor"
	"github.com/stellar/stellar-tenant-control-plane/internal/tenantcontext"
)

type QueryType string

const (
	DeleteQueryType    QueryType = "DELETE"
	InsertQueryType    QueryType = "INSERT"
	SelectQueryType    QueryType = "SELECT"
	UpdateQueryType    QueryType = "UPDATE"
	UndefinedQueryType QueryType = "UNDEFINED"
)

// SQLExecuterWithMetrics records the duration of every query it runs, labeled with the realm of the calling context.
type SQLExecuterWithMetrics struct {
	SQLExecuter
	monitorService monitor.MonitorServiceInterface
}

var _ SQLExecuter = (*SQLExecuterWithMetrics)(nil)

func NewSQLExecuterWithMetrics(sqlExec SQLExecuter, monitorService monitor.MonitorServiceInterface) *SQLExecuterWithMetrics {
	return &SQLExecuterWithMetrics{SQLExecuter: sqlExec, monitorService: monitorService}
}

func (s *SQLExecuterWithMetrics) observe(ctx context.Context, then time.Time, query string, err error) {
	labels := monitor.DBQueryLabels{
		QueryType: string(getQueryType(query)),
		Status:    monitor.DBQueryStatusSuccess,
		Realm:     monitor.DBQueryUnscopedRealm,
	}
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		labels.Status = monitor.DBQueryStatusError
	}
	if tr, ok := tenantcontext.Get(ctx); ok && tr.Realm != "" {
		labels.Realm = tr.Realm
	}

	if metricErr := s.monitorService.MonitorDuration(time.Since(then), monitor.DBQueryDurationTag, labels.ToMap()); metricErr != nil {
		log.Ctx(ctx).Errorf("monitoring db query duration: %v", metricErr)
	}
}

func (s *SQLExecuterWithMetrics) GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	then := time.Now()
	err := s.SQLExecuter.GetContext(ctx, dest, query, args...)
	s.observe(ctx, then, query, err)
	return err
}

func (s *SQLExecuterWithMetrics) SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	then := time.Now()
	err := s.SQLExecuter.SelectContext(ctx, dest, query, args...)
	s.observe(ctx, then, query, err)
	return err
}

func (s *SQLExecuterWithMetrics) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	then := time.Now()
	result, err := s.SQLExecuter.ExecContext(ctx, query, args...)
	s.observe(ctx, then, query, err)
	return result, err
}

func (s *SQLExecuterWithMetrics) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	then := time.Now()
	rows, err := s.SQLExecuter.QueryContext(ctx, query, args...)
	s.observe(ctx, then, query, err)
	return rows, err
}

func (s *SQLExecuterWithMetrics) QueryxContext(ctx context.Context, query string, args ...interface{}) (*sqlx.Rows, error) {
	then := time.Now()
	rows, err := s.SQLExecuter.QueryxContext(ctx, query, args...)
	s.observe(ctx, then, query, err)
	return rows, err
}

func (s *SQLExecuterWithMetrics) QueryRowxContext(ctx context.Context, query string, args ...interface{}) *sqlx.Row {
	then := time.Now()
	row := s.SQLExecuter.QueryRowxContext(ctx, query, args...)
	s.observe(ctx, then, query, row.Err())
	return row
}

// getQueryType returns the statement type of query. CTEs and other statements are UNDEFINED.
func getQueryType(query string) QueryType {
	words := strings.Fields(query)
	if len(words) == 0 {
		return UndefinedQueryType
	}
	switch queryType := QueryType(strings.ToUpper(words[0])); queryType {
	case DeleteQueryType, InsertQueryType, SelectQueryType, UpdateQueryType:
		return queryType
	default:
		return UndefinedQueryType
	}
}
