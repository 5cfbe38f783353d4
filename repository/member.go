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
	"slices"
	"strings"

	"github.com/tomoncle/dynaquery/database"
	"github.com/tomoncle/dynaquery/model"
	"github.com/tomoncle/dynaquery/predicate"
	"github.com/tomoncle/dynaquery/types"
	"github.com/uptrace/bun"
)

// defaultMemberOrder is used when the caller gives no ordering.
const defaultMemberOrder = predicate.ColMemberID + " ASC"

// MemberRepository queries members. Entity reads go through the identity map
// of the unit of work; projections return detached rows.
type MemberRepository struct {
	Repository[model.Member]
	logger database.Logger
}

func NewMemberRepository() *MemberRepository {
	return &MemberRepository{
		Repository: NewRepository[model.Member](),
		logger:     database.GetLogger(),
	}
}

func memberKey(id int64) string {
	return database.EntityKey(model.MemberTable, id)
}

// track returns the instance already managed by uow for m's id, or registers
// m as that instance.
func track(uow *database.UnitOfWork, m *model.Member) *model.Member {
	key := memberKey(m.ID)
	if cached, ok := uow.Lookup(key); ok {
		return cached.(*model.Member)
	}
	uow.Remember(key, m)
	return m
}

// FindByID returns the member with id. Repeated calls in one unit of work
// return the same instance without querying again.
func (r *MemberRepository) FindByID(ctx context.Context, id int64) (*model.Member, error) {
	idb, uow, err := session(ctx)
	if err != nil {
		return nil, err
	}
	if cached, ok := uow.Lookup(memberKey(id)); ok {
		return cached.(*model.Member), nil
	}
	member := new(model.Member)
	if err := idb.NewSelect().Model(member).Where(predicate.ColMemberID+" = ?", id).Scan(ctx); err != nil {
		return nil, database.TranslateError(err)
	}
	return track(uow, member), nil
}

// FindMembers returns the members matching cond, ordered by orders or by id.
func (r *MemberRepository) FindMembers(ctx context.Context, cond predicate.Condition, orders ...types.Order) ([]*model.Member, error) {
	idb, uow, err := session(ctx)
	if err != nil {
		return nil, err
	}
	var members []*model.Member
	query, err := r.entityQuery(idb, &members, cond, orders)
	if err != nil {
		return nil, err
	}
	if err := query.Scan(ctx); err != nil {
		return nil, database.TranslateError(err)
	}
	for i, m := range members {
		members[i] = track(uow, m)
	}
	return members, nil
}

// FindOne returns the single member matching cond. No match is ErrNotFound
// and more than one is ErrNonUniqueResult.
func (r *MemberRepository) FindOne(ctx context.Context, cond predicate.Condition) (*model.Member, error) {
	idb, uow, err := session(ctx)
	if err != nil {
		return nil, err
	}
	var members []*model.Member
	query, err := r.entityQuery(idb, &members, cond, nil)
	if err != nil {
		return nil, err
	}
	if err := query.Limit(2).Scan(ctx); err != nil {
		return nil, database.TranslateError(err)
	}
	switch len(members) {
	case 0:
		return nil, fmt.Errorf("%w: member where %s", database.ErrNotFound, cond)
	case 1:
		return track(uow, members[0]), nil
	default:
		return nil, fmt.Errorf("%w: member where %s", database.ErrNonUniqueResult, cond)
	}
}

// FindWithTeam returns the matching members with their team loaded in the
// same statement.
func (r *MemberRepository) FindWithTeam(ctx context.Context, cond predicate.Condition, orders ...types.Order) ([]*model.Member, error) {
	idb, uow, err := session(ctx)
	if err != nil {
		return nil, err
	}
	var members []*model.Member
	query, err := r.entityQuery(idb, &members, cond, orders)
	if err != nil {
		return nil, err
	}
	if err := query.Relation("Team").Scan(ctx); err != nil {
		return nil, database.TranslateError(err)
	}
	for i, m := range members {
		managed := track(uow, m)
		if managed.Team == nil {
			managed.Team = m.Team
		}
		members[i] = managed
	}
	return members, nil
}

// Delete removes the member and forgets its managed instance.
func (r *MemberRepository) Delete(ctx context.Context, id any) error {
	if err := r.Repository.Delete(ctx, id); err != nil {
		return err
	}
	uow, err := database.CurrentUnitOfWork(ctx)
	if err != nil {
		return err
	}
	uow.Forget(database.EntityKey(model.MemberTable, id))
	return nil
}

func (r *MemberRepository) entityQuery(idb bun.IDB, dest *[]*model.Member, cond predicate.Condition, orders []types.Order) (*bun.SelectQuery, error) {
	exprs, orderJoins, err := resolveOrders(orders)
	if err != nil {
		return nil, err
	}
	query := idb.NewSelect().Model(dest)
	query = predicate.ApplyJoins(query, cond)
	for _, j := range orderJoins {
		if !slices.Contains(cond.Joins(), j) {
			query = query.Join(j)
		}
	}
	query = predicate.ApplyWhere(query, cond)
	if len(exprs) == 0 {
		return query.OrderExpr(defaultMemberOrder), nil
	}
	return query.OrderExpr(strings.Join(exprs, ", ")), nil
}

// resolveOrders maps public sort fields to ORDER BY terms and the joins
// they need.
func resolveOrders(orders []types.Order) ([]string, []string, error) {
	var (
		exprs []string
		joins []string
	)
	for _, o := range orders {
		col, ok := predicate.MemberSortable.Resolve(o.Field)
		if !ok {
			return nil, nil, fmt.Errorf("%w: %q", database.ErrUnknownSortField, o.Field)
		}
		exprs = append(exprs, predicate.OrderExpr(col.Column, o))
		if col.Join != "" && !slices.Contains(joins, col.Join) {
			joins = append(joins, col.Join)
		}
	}
	return exprs, joins, nil
}
