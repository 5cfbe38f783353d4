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
	"sync"

	"github.com/uptrace/bun"
)

// global is the process-wide database used by the service layer.
var global struct {
	sync.RWMutex
	factory *Factory
	config  *Config
}

func current() (*Factory, *Config) {
	global.RLock()
	defer global.RUnlock()
	return global.factory, global.config
}

// GetDB returns the global database, or nil before InitDB.
func GetDB() *bun.DB {
	f, _ := current()
	if f == nil {
		return nil
	}
	return f.GetDB()
}

func InitDB(cfg *Config) (*bun.DB, error) {
	return InitDBContext(context.Background(), cfg)
}

// InitDBContext connects the global database, registers the models with bun
// and creates missing tables when cfg.SchemaConfig.CreateOnStartup is set.
// A previously initialized global database is closed first.
func InitDBContext(ctx context.Context, cfg *Config) (*bun.DB, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database configuration cannot be empty")
	}
	if err := CloseDB(); err != nil {
		GetLogger().Warn("Failed to close the previous database", "error", err)
	}

	factory := NewDatabaseFactory()
	if _, err := factory.CreateFromConfig(&cfg.ConnectionConfig); err != nil {
		return nil, fmt.Errorf("failed to create database manager: %w", err)
	}
	if err := factory.InitializeDatabase(ctx, &cfg.SchemaConfig); err != nil {
		_ = factory.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	db := factory.GetDB()
	db.RegisterModel(RegisteredModels()...)

	global.Lock()
	global.factory, global.config = factory, cfg
	global.Unlock()
	return db, nil
}

// CloseDB closes and forgets the global database.
func CloseDB() error {
	global.Lock()
	f := global.factory
	global.factory, global.config = nil, nil
	global.Unlock()
	if f == nil {
		return nil
	}
	return f.Close()
}

// HealthCheck pings the global database.
func HealthCheck(ctx context.Context) *HealthStatus {
	f, _ := current()
	if f == nil {
		return &HealthStatus{LastError: ErrNoDatabase.Error()}
	}
	return f.HealthCheck(ctx)
}

// Stats returns the connection pool statistics of the global database.
func Stats() sql.DBStats {
	f, _ := current()
	if f == nil {
		return sql.DBStats{}
	}
	return f.Stats()
}

// EnsureSchema creates the registered tables on the global database.
func EnsureSchema(ctx context.Context) error {
	f, cfg := current()
	if f == nil || f.GetManager() == nil {
		return ErrNoDatabase
	}
	schema := &SchemaConfig{EnableForeignKey: true}
	if cfg != nil {
		schema = &cfg.SchemaConfig
	}
	return f.GetManager().EnsureSchema(ctx, schema)
}

// UnitOfWorkOptions returns the unit of work options of the global config.
func UnitOfWorkOptions() []UnitOfWorkOption {
	_, cfg := current()
	if cfg == nil || cfg.UnitOfWorkConfig.IdentityMapSize <= 0 {
		return nil
	}
	return []UnitOfWorkOption{WithIdentityMapSize(cfg.UnitOfWorkConfig.IdentityMapSize)}
}
