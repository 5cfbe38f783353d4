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
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/uptrace/bun"
	"gopkg.in/yaml.v3"
)

var referentialActions = map[string]struct{}{
	"":          {},
	"CASCADE":   {},
	"RESTRICT":  {},
	"SET NULL":  {},
	"NO ACTION": {},
}

// ForeignKeyConstraint is a foreign key added to the CREATE TABLE statement
// of Table during bootstrap.
type ForeignKeyConstraint struct {
	Table           string `yaml:"table"`
	Column          string `yaml:"column"`
	ReferenceTable  string `yaml:"reference_table"`
	ReferenceColumn string `yaml:"reference_column"`
	OnDelete        string `yaml:"on_delete,omitempty"`
	OnUpdate        string `yaml:"on_update,omitempty"`
	ConstraintName  string `yaml:"constraint_name,omitempty"`
}

// GenerateConstraintName returns the explicit name or fk_<table>_<column>.
func (fk *ForeignKeyConstraint) GenerateConstraintName() string {
	if fk.ConstraintName != "" {
		return fk.ConstraintName
	}
	return fmt.Sprintf("fk_%s_%s", fk.Table, fk.Column)
}

// CreateTableClause returns the text following FOREIGN KEY in a CREATE
// TABLE statement, with identifiers as bun.Ident arguments so each dialect
// quotes them.
func (fk *ForeignKeyConstraint) CreateTableClause() (string, []interface{}) {
	query := "(?) REFERENCES ? (?)"
	if fk.OnDelete != "" {
		query += " ON DELETE " + strings.ToUpper(fk.OnDelete)
	}
	if fk.OnUpdate != "" {
		query += " ON UPDATE " + strings.ToUpper(fk.OnUpdate)
	}
	return query, []interface{}{bun.Ident(fk.Column), bun.Ident(fk.ReferenceTable), bun.Ident(fk.ReferenceColumn)}
}

// Validate reports every problem with the constraint.
func (fk *ForeignKeyConstraint) Validate() []error {
	var errs []error
	name := fk.GenerateConstraintName()
	if fk.Table == "" {
		errs = append(errs, fmt.Errorf("%s: table name cannot be empty", name))
	}
	if fk.Column == "" {
		errs = append(errs, fmt.Errorf("%s: column name cannot be empty", name))
	}
	if fk.ReferenceTable == "" || fk.ReferenceColumn == "" {
		errs = append(errs, fmt.Errorf("%s: reference table and column are required", name))
	}
	if _, ok := referentialActions[strings.ToUpper(fk.OnDelete)]; !ok {
		errs = append(errs, fmt.Errorf("%s: invalid delete policy: %s", name, fk.OnDelete))
	}
	if _, ok := referentialActions[strings.ToUpper(fk.OnUpdate)]; !ok {
		errs = append(errs, fmt.Errorf("%s: invalid update policy: %s", name, fk.OnUpdate))
	}
	return errs
}

var registeredForeignKeys struct {
	sync.RWMutex
	list []ForeignKeyConstraint
}

// RegisterForeignKey declares a constraint in code, usually from a model
// package init. A second constraint on the same column is ignored.
func RegisterForeignKey(fk ForeignKeyConstraint) {
	registeredForeignKeys.Lock()
	defer registeredForeignKeys.Unlock()
	for _, existing := range registeredForeignKeys.list {
		if strings.EqualFold(existing.Table, fk.Table) && strings.EqualFold(existing.Column, fk.Column) {
			return
		}
	}
	registeredForeignKeys.list = append(registeredForeignKeys.list, fk)
}

// RegisteredForeignKeys returns a copy of the code-defined constraints.
func RegisteredForeignKeys() []ForeignKeyConstraint {
	registeredForeignKeys.RLock()
	defer registeredForeignKeys.RUnlock()
	return append([]ForeignKeyConstraint(nil), registeredForeignKeys.list...)
}

// foreignKeyFile is the YAML layout read by LoadForeignKeys.
type foreignKeyFile struct {
	ForeignKeys []ForeignKeyConstraint `yaml:"foreign_keys"`
}

// LoadForeignKeys reads the constraints listed in a YAML file. The file
// replaces the registered constraints; it is not merged with them.
func LoadForeignKeys(path string) ([]ForeignKeyConstraint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read foreign key file: %w", err)
	}
	var file foreignKeyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse foreign key file %s: %w", path, err)
	}
	return file.ForeignKeys, nil
}

// ExportForeignKeys writes constraints in the layout LoadForeignKeys reads,
// creating parent directories as needed.
func ExportForeignKeys(path string, constraints []ForeignKeyConstraint) error {
	data, err := yaml.Marshal(&foreignKeyFile{ForeignKeys: constraints})
	if err != nil {
		return fmt.Errorf("failed to serialize foreign keys: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ForeignKeyManager answers which constraints belong to a table.
type ForeignKeyManager struct {
	constraints []ForeignKeyConstraint
}

func NewForeignKeyManager(constraints []ForeignKeyConstraint) *ForeignKeyManager {
	return &ForeignKeyManager{constraints: constraints}
}

// GetConstraintsByTable matches table names case-insensitively.
func (fkm *ForeignKeyManager) GetConstraintsByTable(table string) []ForeignKeyConstraint {
	var out []ForeignKeyConstraint
	for _, c := range fkm.constraints {
		if strings.EqualFold(c.Table, table) {
			out = append(out, c)
		}
	}
	return out
}

func (fkm *ForeignKeyManager) ListAllConstraints() []ForeignKeyConstraint {
	return fkm.constraints
}

func (fkm *ForeignKeyManager) ValidateConstraints() []error {
	var errs []error
	for i := range fkm.constraints {
		errs = append(errs, fkm.constraints[i].Validate()...)
	}
	return errs
}
