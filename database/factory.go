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
	"os"
	"strconv"
	"time"

	"github.com/uptrace/bun"
)

// Factory builds the database manager from configuration, applying DB_*
// environment overrides first, and owns it afterwards.
type Factory struct {
	manager AbstractDatabaseManager
	logger  Logger
}

func NewDatabaseFactory() *Factory {
	return &Factory{logger: GetLogger()}
}

// CreateFromConfig applies the environment to cfg, validates it and creates
// the manager. It does not connect.
func (f *Factory) CreateFromConfig(cfg *ConnectionConfig) (AbstractDatabaseManager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database configuration cannot be empty")
	}
	f.applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	manager := NewDatabaseManager(cfg)
	manager.SetLogger(f.logger)
	f.manager = manager
	return manager, nil
}

// envBinding maps one environment variable onto a connection setting.
type envBinding struct {
	name  string
	apply func(cfg *ConnectionConfig, value string) error
}

var envBindings = []envBinding{
	{"DB_TYPE", setString(func(c *ConnectionConfig) *string { return &c.Type })},
	{"DB_HOST", setString(func(c *ConnectionConfig) *string { return &c.Host })},
	{"DB_PORT", setInt(func(c *ConnectionConfig) *int { return &c.Port })},
	{"DB_USERNAME", setString(func(c *ConnectionConfig) *string { return &c.Username })},
	{"DB_PASSWORD", setString(func(c *ConnectionConfig) *string { return &c.Password })},
	{"DB_NAME", setString(func(c *ConnectionConfig) *string { return &c.DBName })},
	{"DB_SSLMODE", setString(func(c *ConnectionConfig) *string { return &c.SSLMode })},
	{"DB_IN_MEMORY", setBool(func(c *ConnectionConfig) *bool { return &c.InMemory })},
	{"DB_MAX_IDLE_CONNS", setInt(func(c *ConnectionConfig) *int { return &c.Pool.MaxIdleConns })},
	{"DB_MAX_OPEN_CONNS", setInt(func(c *ConnectionConfig) *int { return &c.Pool.MaxOpenConns })},
	{"DB_CONN_MAX_LIFETIME", setDuration(time.Second, func(c *ConnectionConfig) *time.Duration { return &c.Pool.ConnMaxLifetime })},
	{"DB_ENABLE_RECONNECT", setBool(func(c *ConnectionConfig) *bool { return &c.Health.Reconnect })},
	{"DB_RECONNECT_INTERVAL", setDuration(time.Second, func(c *ConnectionConfig) *time.Duration { return &c.Health.ReconnectInterval })},
	{"DB_ENABLE_QUERY_LOG", setBool(func(c *ConnectionConfig) *bool { return &c.Telemetry.QueryLog })},
	{"DB_SLOW_QUERY_MS", setDuration(time.Millisecond, func(c *ConnectionConfig) *time.Duration { return &c.Telemetry.SlowQueryTime })},
	{"DB_ENABLE_METRICS", setBool(func(c *ConnectionConfig) *bool { return &c.Telemetry.Metrics })},
	{"DB_ENABLE_TRACING", setBool(func(c *ConnectionConfig) *bool { return &c.Telemetry.Tracing })},
}

func setString(field func(*ConnectionConfig) *string) func(*ConnectionConfig, string) error {
	return func(c *ConnectionConfig, v string) error {
		*field(c) = v
		return nil
	}
}

func setInt(field func(*ConnectionConfig) *int) func(*ConnectionConfig, string) error {
	return func(c *ConnectionConfig, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*field(c) = n
		return nil
	}
}

func setBool(field func(*ConnectionConfig) *bool) func(*ConnectionConfig, string) error {
	return func(c *ConnectionConfig, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*field(c) = b
		return nil
	}
}

// setDuration accepts a bare number of units or a Go duration such as "1m".
func setDuration(unit time.Duration, field func(*ConnectionConfig) *time.Duration) func(*ConnectionConfig, string) error {
	return func(c *ConnectionConfig, v string) error {
		if n, err := strconv.Atoi(v); err == nil {
			*field(c) = time.Duration(n) * unit
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*field(c) = d
		return nil
	}
}

// applyEnv overrides cfg from the environment. Unparsable values are
// reported and skipped.
func (f *Factory) applyEnv(cfg *ConnectionConfig) {
	for _, b := range envBindings {
		v, ok := os.LookupEnv(b.name)
		if !ok || v == "" {
			continue
		}
		if err := b.apply(cfg, v); err != nil {
			f.logger.Warn("Ignoring invalid environment override", "name", b.name, "value", v, "error", err)
		}
	}
}

// InitializeDatabase connects and, when schema asks for it, creates the
// missing tables.
func (f *Factory) InitializeDatabase(ctx context.Context, schema *SchemaConfig) error {
	if f.manager == nil {
		return fmt.Errorf("database manager not created")
	}
	if err := f.manager.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if schema != nil && schema.CreateOnStartup {
		if err := f.manager.EnsureSchema(ctx, schema); err != nil {
			return fmt.Errorf("failed to create tables: %w", err)
		}
	}
	f.logger.Info("Database initialization completed")
	return nil
}

func (f *Factory) GetManager() AbstractDatabaseManager {
	return f.manager
}

// GetDB returns nil until the manager has connected.
func (f *Factory) GetDB() *bun.DB {
	if f.manager == nil {
		return nil
	}
	return f.manager.GetDB()
}

func (f *Factory) SetLogger(logger Logger) {
	f.logger = logger
	if f.manager != nil {
		f.manager.SetLogger(logger)
	}
}

func (f *Factory) Close() error {
	if f.manager == nil {
		return nil
	}
	return f.manager.Disconnect()
}

func (f *Factory) HealthCheck(ctx context.Context) *HealthStatus {
	if f.manager == nil {
		return &HealthStatus{LastError: ErrNoDatabase.Error(), CheckedAt: time.Now()}
	}
	return f.manager.HealthCheck(ctx)
}

func (f *Factory) Stats() sql.DBStats {
	if f.manager == nil {
		return sql.DBStats{}
	}
	return f.manager.Stats()
}
