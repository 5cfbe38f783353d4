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
	"database/sql"
	"fmt"
	"slices"

	"github.com/tomoncle/dynaquery/database"
	"github.com/tomoncle/dynaquery/model"
	"github.com/tomoncle/dynaquery/predicate"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

// AssignableColumns are the member columns a bulk update may set.
var AssignableColumns = []string{"username", "age", "team_id"}

// bulkWhere restricts a bulk statement to cond. UPDATE and DELETE cannot
// carry a JOIN portably, so a condition that needs one selects the target
// ids in a derived table instead. MySQL would merge that derived table back
// into the outer statement and fail with error 1093, so there it is selected
// DISTINCT, which forces materialization.
func bulkWhere[Q predicate.WhereBuilder[Q]](idb bun.IDB, query Q, cond predicate.Condition) Q {
	if cond.IsUnconstrained() {
		return query.Where("1 = 1")
	}
	if len(cond.Joins()) == 0 {
		return predicate.ApplyWhere(query, cond)
	}
	targets := idb.NewSelect().
		TableExpr(model.MemberTable).
		ColumnExpr(predicate.ColMemberID + " AS id")
	targets = predicate.ApplyJoins(targets, cond)
	targets = predicate.ApplyWhere(targets, cond)
	if idb.Dialect().Name() == dialect.MySQL {
		targets = targets.Distinct()
	}
	return query.Where(predicate.ColMemberID+" IN (SELECT bulk_target.id FROM (?) AS bulk_target)", targets)
}

// UpdateWhere applies the assignments to every member matching cond in one
// statement. Managed instances are not refreshed; see BulkResult.
func (r *MemberRepository) UpdateWhere(ctx context.Context, cond predicate.Condition, assignments ...predicate.Assignment) (*BulkResult, error) {
	if len(assignments) == 0 {
		return nil, database.ErrNoAssignments
	}
	for _, a := range assignments {
		if !slices.Contains(AssignableColumns, a.Column()) {
			return nil, fmt.Errorf("%w: %q", database.ErrUnknownColumn, a.Column())
		}
	}
	idb, uow, err := session(ctx)
	if err != nil {
		return nil, err
	}
	if cond.IsUnconstrained() {
		r.logger.Warn("Bulk update without condition touches every member", "uow", uow.ID())
	}

	query := idb.NewUpdate().Model((*model.Member)(nil))
	for _, a := range assignments {
		query = query.Set(a.Query(), a.Args()...)
	}
	res, err := bulkWhere(idb, query, cond).Exec(ctx)
	if err != nil {
		return nil, database.TranslateError(err)
	}
	return r.bulkResult(uow, res, "update", cond)
}

// DeleteWhere deletes every member matching cond in one statement. Managed
// instances of deleted rows stay cached until BulkResult.Invalidate.
func (r *MemberRepository) DeleteWhere(ctx context.Context, cond predicate.Condition) (*BulkResult, error) {
	idb, uow, err := session(ctx)
	if err != nil {
		return nil, err
	}
	if cond.IsUnconstrained() {
		r.logger.Warn("Bulk delete without condition removes every member", "uow", uow.ID())
	}
	res, err := bulkWhere(idb, idb.NewDelete().Model((*model.Member)(nil)), cond).Exec(ctx)
	if err != nil {
		return nil, database.TranslateError(err)
	}
	return r.bulkResult(uow, res, "delete", cond)
}

func (r *MemberRepository) bulkResult(uow *database.UnitOfWork, res sql.Result, op string, cond predicate.Condition) (*BulkResult, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read affected rows of bulk %s: %w", op, err)
	}
	uow.MarkStale()
	r.logger.Debug("Bulk statement executed", "op", op, "condition", cond.String(), "rows", n, "uow", uow.ID())
	return &BulkResult{RowsAffected: n, uow: uow}, nil
}
