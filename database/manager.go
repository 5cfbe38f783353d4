/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */


package database

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"
	"github.com/uptrace/bun/schema"
)

const (
	defaultConnectTimeout = 30 * time.Second
	healthPingTimeout     = 5 * time.Second
)

// AbstractDatabaseManager owns one bun.DB: it opens it, watches its health
// and creates the registered tables on it.
type AbstractDatabaseManager interface {
	Connect(ctx context.Context) error
	Disconnect() error
	Ping(ctx context.Context) error
	HealthCheck(ctx context.Context) *HealthStatus
	GetDB() *bun.DB
	EnsureSchema(ctx context.Context, cfg *SchemaConfig) error
	Stats() sql.DBStats
	SetLogger(logger Logger)
}

// HealthStatus is the outcome of one ping.
type HealthStatus struct {
	Healthy      bool          `json:"healthy"`
	ResponseTime time.Duration `json:"response_time"`
	OpenConns    int           `json:"open_conns"`
	InUse        int           `json:"in_use"`
	LastError    string        `json:"last_error,omitempty"`
	CheckedAt    time.Time     `json:"checked_at"`
}

type dialectOpener func(cfg *ConnectionConfig) (*sql.DB, schema.Dialect, error)

var dialects = map[string]dialectOpener{
	"mysql":      openMySQL,
	"postgres":   openPostgres,
	"postgresql": openPostgres,
	"sqlite":     openSQLite,
	"sqlite3":    openSQLite,
}

// SupportedTypes lists the accepted ConnectionConfig.Type values.
func SupportedTypes() []string {
	types := make([]string, 0, len(dialects))
	for name := range dialects {
		types = append(types, name)
	}
	sort.Strings(types)
	return types
}

func openMySQL(cfg *ConnectionConfig) (*sql.DB, schema.Dialect, error) {
	mc := mysql.NewConfig()
	mc.User = cfg.Username
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(portOr(cfg.Port, 3306)))
	mc.DBName = cfg.DBName
	mc.ParseTime = true
	mc.Loc = time.Local
	mc.Timeout = cfg.ConnectTimeout
	mc.ReadTimeout = cfg.ReadTimeout
	mc.WriteTimeout = cfg.WriteTimeout
	mc.Params = map[string]string{"charset": "utf8mb4"}

	connector, err := mysql.NewConnector(mc)
	if err != nil {
		return nil, nil, err
	}
	return sql.OpenDB(connector), mysqldialect.New(), nil
}

func openPostgres(cfg *ConnectionConfig) (*sql.DB, schema.Dialect, error) {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	query := url.Values{}
	query.Set("sslmode", sslMode)
	if secs := int(cfg.ConnectTimeout.Seconds()); secs > 0 {
		query.Set("connect_timeout", strconv.Itoa(secs))
	}
	dsn := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.Username, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(portOr(cfg.Port, 5432))),
		Path:     "/" + cfg.DBName,
		RawQuery: query.Encode(),
	}

	connector, err := pq.NewConnector(dsn.String())
	if err != nil {
		return nil, nil, err
	}
	return sql.OpenDB(connector), pgdialect.New(), nil
}

func openSQLite(cfg *ConnectionConfig) (*sql.DB, schema.Dialect, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, sqliteDSN(cfg))
	if err != nil {
		return nil, nil, err
	}
	return sqldb, sqlitedialect.New(), nil
}

// sqliteDSN names a shared-cache in-memory database when InMemory is set so
// every pooled connection sees the same tables.
func sqliteDSN(cfg *ConnectionConfig) string {
	if cfg.InMemory {
		return fmt.Sprintf("file:%s?mode=memory&cache=shared", cfg.DBName)
	}
	return cfg.DBName + ".db"
}

func portOr(port, fallback int) int {
	if port > 0 {
		return port
	}
	return fallback
}

type bunManager struct {
	cfg *ConnectionConfig

	mu        sync.RWMutex
	db        *bun.DB
	logger    Logger
	stopWatch context.CancelFunc
	watchDone chan struct{}

	// reconnects is only touched by the watch goroutine.
	reconnects int
}

// NewDatabaseManager returns a manager for cfg, or for the defaults when cfg
// is nil. Nothing is opened until Connect.
func NewDatabaseManager(cfg *ConnectionConfig) AbstractDatabaseManager {
	if cfg == nil {
		cfg = DefaultConnectionConfig()
	}
	return &bunManager{cfg: cfg, logger: GetLogger()}
}

func (m *bunManager) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.db != nil {
		return nil
	}

	db, err := m.open(ctx)
	if err != nil {
		return err
	}
	m.db = db
	if m.cfg.Health.Interval > 0 && m.stopWatch == nil {
		m.watch()
	}
	m.logger.Info("Database connected", "type", m.cfg.Type, "host", m.cfg.Host, "dbname", m.cfg.DBName)
	return nil
}

// open builds, tunes and pings a new bun.DB. The caller holds mu.
func (m *bunManager) open(ctx context.Context) (*bun.DB, error) {
	opener, ok := dialects[m.cfg.Type]
	if !ok {
		return nil, fmt.Errorf("unsupported database type: %s", m.cfg.Type)
	}
	sqldb, dialect, err := opener(m.cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection: %w", err)
	}
	m.tunePool(sqldb)

	db := bun.NewDB(sqldb, dialect)
	if err := m.installHooks(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	timeout := m.cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("database connection test failed: %w", err)
	}
	if m.cfg.isSQLite() {
		if _, err := db.ExecContext(pingCtx, "PRAGMA foreign_keys = ON"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable sqlite foreign keys: %w", err)
		}
	}
	return db, nil
}

func (m *bunManager) tunePool(sqldb *sql.DB) {
	if m.cfg.isSQLite() {
		// one writer; an in-memory database also dies with its last connection
		sqldb.SetMaxOpenConns(1)
		sqldb.SetMaxIdleConns(1)
		sqldb.SetConnMaxLifetime(0)
		sqldb.SetConnMaxIdleTime(0)
		return
	}
	pool := m.cfg.Pool
	sqldb.SetMaxOpenConns(pool.MaxOpenConns)
	sqldb.SetMaxIdleConns(pool.MaxIdleConns)
	sqldb.SetConnMaxLifetime(pool.ConnMaxLifetime)
	sqldb.SetConnMaxIdleTime(pool.ConnMaxIdleTime)
}

func (m *bunManager) installHooks(db *bun.DB) error {
	telemetry := m.cfg.Telemetry
	if telemetry.QueryLog {
		db.AddQueryHook(bundebug.NewQueryHook(
			bundebug.WithVerbose(true),
			bundebug.FromEnv("BUNDEBUG"),
		))
	}
	if telemetry.SlowQueryTime > 0 {
		db.AddQueryHook(NewSlowQueryHook(telemetry.SlowQueryTime, m.logger))
	}
	if telemetry.Metrics {
		hook, err := NewMetricsHook(prometheus.DefaultRegisterer, m.cfg.Type)
		if err != nil {
			return fmt.Errorf("failed to register query metrics: %w", err)
		}
		db.AddQueryHook(hook)
	}
	if telemetry.Tracing {
		db.AddQueryHook(NewTracingHook(m.cfg.Type, m.cfg.DBName))
	}
	return nil
}

// watch starts the health loop. The caller holds mu.
func (m *bunManager) watch() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	m.stopWatch, m.watchDone = cancel, done

	go func() {
		defer close(done)
		ticker := time.NewTicker(m.cfg.Health.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if status := m.HealthCheck(ctx); !status.Healthy && m.cfg.Health.Reconnect {
					m.reconnect(ctx)
				}
			}
		}
	}()
}

func (m *bunManager) stopWatching() {
	m.mu.Lock()
	cancel, done := m.stopWatch, m.watchDone
	m.stopWatch, m.watchDone = nil, nil
	m.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
}

func (m *bunManager) reconnect(ctx context.Context) {
	if m.reconnects >= m.cfg.Health.MaxReconnectTries {
		m.logger.Error("Max reconnect attempts reached, giving up", "tries", m.reconnects)
		return
	}
	m.reconnects++
	m.logger.Info("Reconnecting to the database", "try", m.reconnects)

	select {
	case <-ctx.Done():
		return
	case <-time.After(m.cfg.Health.ReconnectInterval):
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.db != nil {
		_ = m.db.Close()
		m.db = nil
	}
	db, err := m.open(ctx)
	if err != nil {
		m.logger.Error("Reconnect failed", "try", m.reconnects, "error", err)
		return
	}
	m.db = db
	m.reconnects = 0
	m.logger.Info("Reconnect succeeded")
}

func (m *bunManager) Disconnect() error {
	m.stopWatching()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.db == nil {
		return nil
	}
	err := m.db.Close()
	m.db = nil
	if err != nil {
		m.logger.Error("Failed to close database connection", "error", err)
		return fmt.Errorf("failed to close database: %w", err)
	}
	m.logger.Info("Database connection closed")
	return nil
}

func (m *bunManager) Ping(ctx context.Context) error {
	db := m.GetDB()
	if db == nil {
		return ErrNoDatabase
	}
	return db.PingContext(ctx)
}

func (m *bunManager) HealthCheck(ctx context.Context) *HealthStatus {
	start := time.Now()
	status := &HealthStatus{CheckedAt: start}
	db := m.GetDB()
	if db == nil {
		status.LastError = ErrNoDatabase.Error()
		return status
	}

	pingCtx, cancel := context.WithTimeout(ctx, healthPingTimeout)
	defer cancel()
	err := db.PingContext(pingCtx)
	status.ResponseTime = time.Since(start)
	if err != nil {
		status.LastError = err.Error()
		m.logger.Warn("Database health check failed", "error", err)
	} else {
		status.Healthy = true
	}

	stats := db.DB.Stats()
	status.OpenConns = stats.OpenConnections
	status.InUse = stats.InUse
	return status
}

func (m *bunManager) GetDB() *bun.DB {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.db
}

func (m *bunManager) Stats() sql.DBStats {
	db := m.GetDB()
	if db == nil {
		return sql.DBStats{}
	}
	return db.DB.Stats()
}

// EnsureSchema creates the registered model tables that do not exist yet.
func (m *bunManager) EnsureSchema(ctx context.Context, cfg *SchemaConfig) error {
	db := m.GetDB()
	if db == nil {
		return ErrNoDatabase
	}
	if cfg == nil {
		cfg = &SchemaConfig{EnableForeignKey: true}
	}
	return NewSchemaManager(db, m.logger, cfg).CreateTables(ctx)
}

func (m *bunManager) SetLogger(logger Logger) {
	if logger == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logger = logger
}
