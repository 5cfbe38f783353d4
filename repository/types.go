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

package repository

import (
	"context"

	"github.com/tomoncle/dynaquery/database"
	"github.com/tomoncle/dynaquery/predicate"
	"github.com/tomoncle/dynaquery/types"
)

// CrudRepository defines basic CRUD operations for a generic entity type.
// Every method runs on the unit of work carried by ctx.
type CrudRepository[T any] interface {
	GetOne(ctx context.Context, id any) (*T, error)

	GetAll(ctx context.Context) ([]*T, error)

	List(ctx context.Context, cond predicate.Condition) ([]*T, error)

	Count(ctx context.Context, cond predicate.Condition) (int, error)

	Create(ctx context.Context, entity ...*T) error

	Upsert(ctx context.Context, fields []string, duplicateKeys []string, entity ...*T) error

	Update(ctx context.Context, entity *T) error

	Delete(ctx context.Context, id any) error
}

// PageQueryRepository defines pagination functionality for listing entities.
type PageQueryRepository[T any] interface {
	Page(ctx context.Context, cond predicate.Condition, page *types.PageRequest) (*types.Pagination[*T], error)
}

// Repository combines CRUD and pagination.
type Repository[T any] interface {
	CrudRepository[T]
	PageQueryRepository[T]
}

// BulkResult reports a bulk update or delete. Bulk statements bypass the
// identity map of the unit of work, so entities read before the statement
// stay cached with their old state until Invalidate is called.
type BulkResult struct {
	RowsAffected int64

	uow *database.UnitOfWork
}

// Invalidate clears the identity map of the unit of work the statement ran
// in, so later reads observe the store.
func (b *BulkResult) Invalidate() {
	if b == nil || b.uow == nil {
		return
	}
	b.uow.Clear()
}
