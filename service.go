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

package dynaquery

import (
	"context"

	"github.com/tomoncle/dynaquery/database"
	"github.com/tomoncle/dynaquery/predicate"
	"github.com/tomoncle/dynaquery/repository"
	"github.com/tomoncle/dynaquery/types"
	"github.com/uptrace/bun"
)

// Service exposes transactional entity operations. Each call runs in its own
// unit of work unless ctx already carries one.
type Service[T any] interface {
	// Get returns a single entity by its identifier.
	Get(ctx context.Context, id any) (*T, error)

	// All returns all entities.
	All(ctx context.Context) ([]*T, error)

	// List returns entities that match the condition.
	List(ctx context.Context, cond predicate.Condition) ([]*T, error)

	// Count returns the number of entities that match the condition.
	Count(ctx context.Context, cond predicate.Condition) (int, error)

	// Page returns a paginated list of entities.
	Page(ctx context.Context, cond predicate.Condition, page *types.PageRequest) (*types.Pagination[*T], error)

	// Update modifies an existing entity.
	Update(ctx context.Context, model *T) error

	// Delete removes an entity by its identifier.
	Delete(ctx context.Context, id any) error

	// Save inserts one or more new entities.
	Save(ctx context.Context, model ...*T) error

	// SaveOrUpdate upserts entities based on fields and duplicate keys.
	SaveOrUpdate(ctx context.Context, fields []string, duplicateKeys []string, model ...*T) error
}

// dbProvider resolves the database at call time so a service can be built
// before the global connection is initialized.
type dbProvider func() *bun.DB

type baseServiceImpl[T any] struct {
	db   dbProvider
	repo repository.Repository[T]
}

// NewService returns a default Service implementation using the generic
// repository over the global database connection.
func NewService[T any]() Service[T] {
	return newBaseServiceImpl[T](database.GetDB)
}

// NewServiceWithDB returns a Service bound to db.
func NewServiceWithDB[T any](db *bun.DB) Service[T] {
	return newBaseServiceImpl[T](func() *bun.DB { return db })
}

func newBaseServiceImpl[T any](db dbProvider) *baseServiceImpl[T] {
	return &baseServiceImpl[T]{db: db, repo: repository.NewRepository[T]()}
}

// inTx runs fn in a unit of work on the service's database.
func inTx(ctx context.Context, db dbProvider, fn func(ctx context.Context) error) error {
	return database.RunInTx(ctx, db(), fn, database.UnitOfWorkOptions()...)
}

// query runs a read in a unit of work and returns its value.
func query[R any](ctx context.Context, db dbProvider, fn func(ctx context.Context) (R, error)) (R, error) {
	var result R
	err := inTx(ctx, db, func(ctx context.Context) error {
		var err error
		result, err = fn(ctx)
		return err
	})
	return result, err
}

func (s *baseServiceImpl[T]) Save(ctx context.Context, model ...*T) error {
	return inTx(ctx, s.db, func(ctx context.Context) error {
		return s.repo.Create(ctx, model...)
	})
}

func (s *baseServiceImpl[T]) SaveOrUpdate(ctx context.Context, fields []string, duplicateKeys []string, model ...*T) error {
	return inTx(ctx, s.db, func(ctx context.Context) error {
		return s.repo.Upsert(ctx, fields, duplicateKeys, model...)
	})
}

func (s *baseServiceImpl[T]) Get(ctx context.Context, id any) (*T, error) {
	return query(ctx, s.db, func(ctx context.Context) (*T, error) {
		return s.repo.GetOne(ctx, id)
	})
}

func (s *baseServiceImpl[T]) All(ctx context.Context) ([]*T, error) {
	return query(ctx, s.db, s.repo.GetAll)
}

func (s *baseServiceImpl[T]) List(ctx context.Context, cond predicate.Condition) ([]*T, error) {
	return query(ctx, s.db, func(ctx context.Context) ([]*T, error) {
		return s.repo.List(ctx, cond)
	})
}

func (s *baseServiceImpl[T]) Count(ctx context.Context, cond predicate.Condition) (int, error) {
	return query(ctx, s.db, func(ctx context.Context) (int, error) {
		return s.repo.Count(ctx, cond)
	})
}

func (s *baseServiceImpl[T]) Update(ctx context.Context, model *T) error {
	return inTx(ctx, s.db, func(ctx context.Context) error {
		return s.repo.Update(ctx, model)
	})
}

func (s *baseServiceImpl[T]) Delete(ctx context.Context, id any) error {
	return inTx(ctx, s.db, func(ctx context.Context) error {
		return s.repo.Delete(ctx, id)
	})
}

func (s *baseServiceImpl[T]) Page(ctx context.Context, cond predicate.Condition, page *types.PageRequest) (*types.Pagination[*T], error) {
	return query(ctx, s.db, func(ctx context.Context) (*types.Pagination[*T], error) {
		return s.repo.Page(ctx, cond, page)
	})
}
