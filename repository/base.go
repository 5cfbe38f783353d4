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
	"fmt"
	"regexp"
	"strings"

	"github.com/tomoncle/dynaquery/database"
	"github.com/tomoncle/dynaquery/predicate"
	"github.com/tomoncle/dynaquery/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/feature"
)

var identifierPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

type baseRepositoryImpl[T any] struct{}

// NewRepository returns a generic repository. It holds no connection: the
// store is reached through the unit of work in each call's context.
func NewRepository[T any]() Repository[T] {
	return &baseRepositoryImpl[T]{}
}

// session returns the query runner of the active unit of work.
func session(ctx context.Context) (bun.IDB, *database.UnitOfWork, error) {
	uow, err := database.CurrentUnitOfWork(ctx)
	if err != nil {
		return nil, nil, err
	}
	return uow.IDB(), uow, nil
}

func (r *baseRepositoryImpl[T]) ValsToSlice(entity ...*T) []*T {
	entities := make([]*T, len(entity))
	copy(entities, entity)
	return entities
}

func (r *baseRepositoryImpl[T]) GetOne(ctx context.Context, id any) (*T, error) {
	idb, _, err := session(ctx)
	if err != nil {
		return nil, err
	}
	var entity T
	err = idb.NewSelect().Model(&entity).Where("?TableAlias.id = ?", id).Scan(ctx)
	if err != nil {
		return nil, database.TranslateError(err)
	}
	return &entity, nil
}

func (r *baseRepositoryImpl[T]) GetAll(ctx context.Context) ([]*T, error) {
	return r.List(ctx, predicate.Condition{})
}

func (r *baseRepositoryImpl[T]) List(ctx context.Context, cond predicate.Condition) ([]*T, error) {
	idb, _, err := session(ctx)
	if err != nil {
		return nil, err
	}
	var entities []*T
	query := idb.NewSelect().Model(&entities)
	query = predicate.ApplyJoins(query, cond)
	query = predicate.ApplyWhere(query, cond)
	if err := query.OrderExpr("?TableAlias.id ASC").Scan(ctx); err != nil {
		return nil, database.TranslateError(err)
	}
	return entities, nil
}

func (r *baseRepositoryImpl[T]) Count(ctx context.Context, cond predicate.Condition) (int, error) {
	idb, _, err := session(ctx)
	if err != nil {
		return 0, err
	}
	query := idb.NewSelect().Model((*T)(nil))
	query = predicate.ApplyJoins(query, cond)
	query = predicate.ApplyWhere(query, cond)
	total, err := query.Count(ctx)
	return total, database.TranslateError(err)
}

// Page returns one page of entities. Order fields name columns of T and at
// least one is required; the primary key breaks ties.
func (r *baseRepositoryImpl[T]) Page(ctx context.Context, cond predicate.Condition, pageRequest *types.PageRequest) (*types.Pagination[*T], error) {
	if pageRequest == nil || len(pageRequest.GetOrders()) == 0 {
		return nil, database.ErrUnorderedPage
	}
	idb, _, err := session(ctx)
	if err != nil {
		return nil, err
	}
	orders := make([]string, 0, len(pageRequest.GetOrders())+1)
	for _, o := range pageRequest.GetOrders() {
		if !identifierPattern.MatchString(o.Field) {
			return nil, fmt.Errorf("%w: %q", database.ErrUnknownSortField, o.Field)
		}
		orders = append(orders, predicate.OrderExpr("?TableAlias."+o.Field, o))
	}
	orders = append(orders, "?TableAlias.id ASC")

	var entities []*T
	query := idb.NewSelect().Model(&entities)
	query = predicate.ApplyJoins(query, cond)
	query = predicate.ApplyWhere(query, cond)

	pagination := types.NewDefaultPagination[*T](pageRequest.GetOffset(), pageRequest.GetLimit())
	total, err := query.Count(ctx)
	if err != nil || total == 0 {
		return pagination, database.TranslateError(err)
	}
	err = query.
		OrderExpr(strings.Join(orders, ", ")).
		Offset(pageRequest.GetOffset()).
		Limit(pageRequest.GetLimit()).
		Scan(ctx)
	if err != nil {
		return nil, database.TranslateError(err)
	}
	pagination.Total = total
	pagination.Items = entities
	return pagination, nil
}

func (r *baseRepositoryImpl[T]) Create(ctx context.Context, entity ...*T) error {
	idb, _, err := session(ctx)
	if err != nil {
		return err
	}
	entities := r.ValsToSlice(entity...)
	_, err = idb.NewInsert().Model(&entities).Exec(ctx)
	return database.TranslateError(err)
}

func (r *baseRepositoryImpl[T]) Upsert(ctx context.Context, fields []string, duplicateKeys []string, entity ...*T) error {
	if len(fields) == 0 {
		return fmt.Errorf("fields cannot be empty")
	}
	idb, _, err := session(ctx)
	if err != nil {
		return err
	}
	entities := r.ValsToSlice(entity...)

	features := idb.Dialect().Features()
	switch {
	case features.Has(feature.InsertOnConflict):
		err = r.upsertWithPostgresqlOrSQLite(ctx, idb.NewInsert(), fields, duplicateKeys, entities)
	case features.Has(feature.InsertOnDuplicateKey):
		err = r.upsertWithMySQL(ctx, idb.NewInsert(), fields, entities)
	default:
		err = r.upsertFallback(ctx, idb, entities)
	}
	return database.TranslateError(err)
}

func (r *baseRepositoryImpl[T]) Update(ctx context.Context, entity *T) error {
	idb, _, err := session(ctx)
	if err != nil {
		return err
	}
	_, err = idb.NewUpdate().Model(entity).WherePK().Exec(ctx)
	return database.TranslateError(err)
}

func (r *baseRepositoryImpl[T]) Delete(ctx context.Context, id any) error {
	idb, _, err := session(ctx)
	if err != nil {
		return err
	}
	_, err = idb.NewDelete().Model((*T)(nil)).Where("?TableAlias.id = ?", id).Exec(ctx)
	return database.TranslateError(err)
}

func (r *baseRepositoryImpl[T]) upsertWithMySQL(ctx context.Context, insertQuery *bun.InsertQuery, fields []string, entities []*T) error {
	var queryArgs []string
	for _, field := range fields {
		queryArgs = append(queryArgs, fmt.Sprintf("%s = VALUES(%s)", bun.Ident(field), bun.Ident(field)))
	}
	_, err := insertQuery.
		Model(&entities).
		On("DUPLICATE KEY UPDATE " + strings.Join(queryArgs, ", ")).
		Exec(ctx)
	return err
}

func (r *baseRepositoryImpl[T]) upsertWithPostgresqlOrSQLite(ctx context.Context, insertQuery *bun.InsertQuery, fields []string, duplicateKeys []string, entities []*T) error {
	if len(duplicateKeys) == 0 {
		duplicateKeys = []string{"id"}
	}
	keyNames := strings.Join(duplicateKeys, ",")
	var queryArgs []string
	for _, field := range fields {
		queryArgs = append(queryArgs, fmt.Sprintf("%s = EXCLUDED.%s", bun.Ident(field), bun.Ident(field)))
	}
	_, err := insertQuery.
		Model(&entities).
		On("CONFLICT (" + keyNames + ") DO UPDATE").
		Set(strings.Join(queryArgs, ", ")).
		Exec(ctx)
	return err
}

func (r *baseRepositoryImpl[T]) upsertFallback(ctx context.Context, idb bun.IDB, entities []*T) error {
	for _, entity := range entities {
		_, err := idb.NewInsert().Model(entity).Exec(ctx)
		if err != nil {
			_, updateErr := idb.NewUpdate().Model(entity).WherePK().Exec(ctx)
			if updateErr != nil {
				return fmt.Errorf("upsert failed for entity: insert error: %v, update error: %v", err, updateErr)
			}
		}
	}
	return nil
}
