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
	"fmt"
	"slices"
	"time"
)

// ConnectionConfig describes one database and the pool kept around it.
type ConnectionConfig struct {
	Type     string `json:"type"` // mysql, postgres or sqlite
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
	// InMemory keeps a sqlite database in shared memory under DBName.
	InMemory bool `json:"in_memory"`

	ConnectTimeout time.Duration `json:"connect_timeout"`
	ReadTimeout    time.Duration `json:"read_timeout"`
	WriteTimeout   time.Duration `json:"write_timeout"`

	Pool      PoolConfig      `json:"pool"`
	Health    HealthConfig    `json:"health"`
	Telemetry TelemetryConfig `json:"telemetry"`
}

// PoolConfig is applied to database/sql. sqlite ignores it and always runs
// on a single connection.
type PoolConfig struct {
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time"`
}

// HealthConfig drives the background ping loop; a zero Interval disables it.
type HealthConfig struct {
	Interval          time.Duration `json:"interval"`
	Reconnect         bool          `json:"reconnect"`
	ReconnectInterval time.Duration `json:"reconnect_interval"`
	MaxReconnectTries int           `json:"max_reconnect_tries"`
}

// TelemetryConfig selects the query hooks installed on the bun.DB.
type TelemetryConfig struct {
	QueryLog      bool          `json:"query_log"`
	SlowQueryTime time.Duration `json:"slow_query_time"` // zero disables slow query warnings
	Metrics       bool          `json:"metrics"`
	Tracing       bool          `json:"tracing"`
}

// SchemaConfig controls table bootstrap. There is no migration support:
// tables are created from the registered models if they do not exist.
type SchemaConfig struct {
	CreateOnStartup  bool   `json:"create_on_startup"`
	EnableForeignKey bool   `json:"enable_foreign_key"`
	ForeignKeyFile   string `json:"foreign_key_file"`
}

// UnitOfWorkConfig tunes the per-transaction identity map.
type UnitOfWorkConfig struct {
	IdentityMapSize int `json:"identity_map_size"`
}

// Config aggregates connection, schema and unit of work settings.
type Config struct {
	ConnectionConfig ConnectionConfig `json:"connection_config"`
	SchemaConfig     SchemaConfig     `json:"schema_config"`
	UnitOfWorkConfig UnitOfWorkConfig `json:"unit_of_work_config"`
}

// AbstractDatabaseConfigProvider is implemented by application configs that
// can produce a database Config.
type AbstractDatabaseConfigProvider interface {
	ConfigLoader() *Config
}

// DefaultConnectionConfig returns the pool, health and telemetry defaults;
// the caller fills in the type and address.
func DefaultConnectionConfig() *ConnectionConfig {
	return &ConnectionConfig{
		ConnectTimeout: 10 * time.Second,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		Pool: PoolConfig{
			MaxOpenConns:    100,
			MaxIdleConns:    10,
			ConnMaxLifetime: time.Hour,
			ConnMaxIdleTime: 30 * time.Minute,
		},
		Health: HealthConfig{
			Interval:          5 * time.Minute,
			Reconnect:         true,
			ReconnectInterval: 5 * time.Second,
			MaxReconnectTries: 3,
		},
		Telemetry: TelemetryConfig{
			SlowQueryTime: 2 * time.Second,
		},
	}
}

func (c *ConnectionConfig) isSQLite() bool {
	return c.Type == "sqlite" || c.Type == "sqlite3"
}

// Validate checks that the type is supported and the target is named.
func (c *ConnectionConfig) Validate() error {
	if !slices.Contains(SupportedTypes(), c.Type) {
		return fmt.Errorf("unsupported database type: %q, supported types: %v", c.Type, SupportedTypes())
	}
	if c.DBName == "" {
		return fmt.Errorf("%s: database name is required", c.Type)
	}
	if !c.isSQLite() && c.Host == "" {
		return fmt.Errorf("%s: host is required", c.Type)
	}
	return nil
}
