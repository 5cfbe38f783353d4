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
	"errors"
	"fmt"
	"os"
	"reflect"

	"github.com/uptrace/bun"
)

// SchemaManager creates and drops the tables of the registered models.
type SchemaManager struct {
	db          *bun.DB
	logger      Logger
	foreignKeys *ForeignKeyManager
	enableFK    bool
}

func NewSchemaManager(db *bun.DB, logger Logger, cfg *SchemaConfig) *SchemaManager {
	if logger == nil {
		logger = GetLogger()
	}
	if cfg == nil {
		cfg = &SchemaConfig{}
	}
	constraints := RegisteredForeignKeys()
	if cfg.ForeignKeyFile != "" {
		loaded, err := LoadForeignKeys(cfg.ForeignKeyFile)
		if err != nil {
			logger.Warn("Foreign key file not loaded, using registered constraints", "path", cfg.ForeignKeyFile, "error", err)
		} else {
			constraints = loaded
		}
	}
	return &SchemaManager{
		db:          db,
		logger:      logger,
		foreignKeys: NewForeignKeyManager(constraints),
		enableFK:    cfg.EnableForeignKey,
	}
}

// CreateTables creates every registered model table that does not exist,
// in priority order.
func (sm *SchemaManager) CreateTables(ctx context.Context) error {
	if sm.db == nil {
		return ErrNoDatabase
	}
	if _, ok := os.LookupEnv("BUNDEBUG_SCHEMA"); !ok {
		EnableBunSqlSilent(true)
		defer EnableBunSqlSilent(false)
	}
	if sm.enableFK {
		if errs := sm.foreignKeys.ValidateConstraints(); len(errs) > 0 {
			return fmt.Errorf("invalid foreign key constraints: %w", errors.Join(errs...))
		}
	}

	instances := RegisteredModels()
	for _, instance := range instances {
		q := sm.db.NewCreateTable().Model(instance).IfNotExists()
		if sm.enableFK {
			for _, fk := range sm.foreignKeys.GetConstraintsByTable(sm.tableName(instance)) {
				query, args := fk.CreateTableClause()
				q = q.ForeignKey(query, args...)
			}
		}
		if _, err := q.Exec(ctx); err != nil {
			return fmt.Errorf("failed to create table %s: %w", sm.tableName(instance), err)
		}
		sm.logger.Debug("Table ready", "table", sm.tableName(instance))
	}
	sm.logger.Info("Schema bootstrap completed", "tables", len(instances))
	return nil
}

// DropTables drops the registered model tables in reverse priority order.
func (sm *SchemaManager) DropTables(ctx context.Context) error {
	if sm.db == nil {
		return ErrNoDatabase
	}
	instances := RegisteredModels()
	for i := len(instances) - 1; i >= 0; i-- {
		instance := instances[i]
		if _, err := sm.db.NewDropTable().Model(instance).IfExists().Exec(ctx); err != nil {
			return fmt.Errorf("failed to drop table %s: %w", sm.tableName(instance), err)
		}
	}
	return nil
}

func (sm *SchemaManager) tableName(instance interface{}) string {
	typ := reflect.TypeOf(instance)
	if typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	return sm.db.Table(typ).Name
}
