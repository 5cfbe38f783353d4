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
	"strings"

	"github.com/tomoncle/dynaquery/database"
	"github.com/tomoncle/dynaquery/model"
	"github.com/tomoncle/dynaquery/predicate"
	"github.com/tomoncle/dynaquery/types"
	"github.com/uptrace/bun"
)

// memberTeamQuery selects the member/team join shape. The team join is always
// present, so fragments needing it are satisfied.
func memberTeamQuery(idb bun.IDB, cond predicate.Condition) *bun.SelectQuery {
	return memberTeamQueryOn(idb, types.None[predicate.Fragment](), cond)
}

// memberTeamQueryOn is memberTeamQuery with an optional extra team join
// condition.
func memberTeamQueryOn(idb bun.IDB, on types.Optional[predicate.Fragment], cond predicate.Condition) *bun.SelectQuery {
	join, args := predicate.JoinMemberTeamOn(on)
	query := idb.NewSelect().
		TableExpr(model.MemberTable).
		ColumnExpr(predicate.ColMemberID+" AS member_id").
		ColumnExpr(predicate.ColUsername+" AS username").
		ColumnExpr(predicate.ColAge+" AS age").
		ColumnExpr(predicate.ColTeamID+" AS team_id").
		ColumnExpr(predicate.ColTeamName+" AS team_name").
		Join(join, args...)
	query = predicate.ApplyJoins(query, cond, predicate.JoinMemberTeam)
	return predicate.ApplyWhere(query, cond)
}

// orderMemberTeam orders a member/team query. Without orders rows come by
// member id; with orders the member id is appended as a tie-break when
// tieBreak is set.
func orderMemberTeam(query *bun.SelectQuery, orders []types.Order, tieBreak bool) (*bun.SelectQuery, error) {
	exprs, _, err := resolveOrders(orders)
	if err != nil {
		return nil, err
	}
	if len(exprs) == 0 {
		return query.OrderExpr(defaultMemberOrder), nil
	}
	if tieBreak {
		exprs = append(exprs, defaultMemberOrder)
	}
	return query.OrderExpr(strings.Join(exprs, ", ")), nil
}

// Search returns one row per member matching criteria, ordered by member id.
// Absent criteria fields do not constrain; an empty criteria returns every
// member.
func (r *MemberRepository) Search(ctx context.Context, criteria model.MemberSearchCondition) ([]model.MemberTeamDto, error) {
	return r.SearchWhere(ctx, predicate.ForMember(criteria))
}

// SearchWhere is Search for an arbitrary condition.
func (r *MemberRepository) SearchWhere(ctx context.Context, cond predicate.Condition, orders ...types.Order) ([]model.MemberTeamDto, error) {
	idb, _, err := session(ctx)
	if err != nil {
		return nil, err
	}
	query, err := orderMemberTeam(memberTeamQuery(idb, cond), orders, false)
	if err != nil {
		return nil, err
	}
	var rows []model.MemberTeamDto
	if err := query.Scan(ctx, &rows); err != nil {
		return nil, database.TranslateError(err)
	}
	r.logger.Debug("Member search", "condition", cond.String(), "rows", len(rows))
	return rows, nil
}

// SearchJoinOn returns every member matching cond, with team columns filled
// only for the teams satisfying on. Fragments of cond on team columns see
// those filtered columns.
func (r *MemberRepository) SearchJoinOn(ctx context.Context, on types.Optional[predicate.Fragment], cond predicate.Condition, orders ...types.Order) ([]model.MemberTeamDto, error) {
	idb, _, err := session(ctx)
	if err != nil {
		return nil, err
	}
	query, err := orderMemberTeam(memberTeamQueryOn(idb, on, cond), orders, false)
	if err != nil {
		return nil, err
	}
	var rows []model.MemberTeamDto
	if err := query.Scan(ctx, &rows); err != nil {
		return nil, database.TranslateError(err)
	}
	return rows, nil
}

// SearchPaged returns the rows of one page. The page request must carry at
// least one order; member id is appended so equal sort keys page stably.
func (r *MemberRepository) SearchPaged(ctx context.Context, criteria model.MemberSearchCondition, page *types.PageRequest) ([]model.MemberTeamDto, error) {
	return r.SearchWherePaged(ctx, predicate.ForMember(criteria), page)
}

// SearchWherePaged is SearchPaged for an arbitrary condition.
func (r *MemberRepository) SearchWherePaged(ctx context.Context, cond predicate.Condition, page *types.PageRequest) ([]model.MemberTeamDto, error) {
	query, err := r.pagedQuery(ctx, cond, page)
	if err != nil {
		return nil, err
	}
	var rows []model.MemberTeamDto
	if err := query.Offset(page.GetOffset()).Limit(page.GetLimit()).Scan(ctx, &rows); err != nil {
		return nil, database.TranslateError(err)
	}
	return rows, nil
}

// SearchPage is SearchPaged plus the total number of matching rows.
func (r *MemberRepository) SearchPage(ctx context.Context, criteria model.MemberSearchCondition, page *types.PageRequest) (*types.Pagination[model.MemberTeamDto], error) {
	cond := predicate.ForMember(criteria)
	query, err := r.pagedQuery(ctx, cond, page)
	if err != nil {
		return nil, err
	}
	pagination := types.NewDefaultPagination[model.MemberTeamDto](page.GetOffset(), page.GetLimit())
	total, err := query.Count(ctx)
	if err != nil || total == 0 {
		return pagination, database.TranslateError(err)
	}
	var rows []model.MemberTeamDto
	if err := query.Offset(page.GetOffset()).Limit(page.GetLimit()).Scan(ctx, &rows); err != nil {
		return nil, database.TranslateError(err)
	}
	pagination.Total = total
	pagination.Items = rows
	return pagination, nil
}

func (r *MemberRepository) pagedQuery(ctx context.Context, cond predicate.Condition, page *types.PageRequest) (*bun.SelectQuery, error) {
	if page == nil || len(page.GetOrders()) == 0 {
		return nil, database.ErrUnorderedPage
	}
	idb, _, err := session(ctx)
	if err != nil {
		return nil, err
	}
	return orderMemberTeam(memberTeamQuery(idb, cond), page.GetOrders(), true)
}

// SearchMembers projects the matching members onto username and age.
func (r *MemberRepository) SearchMembers(ctx context.Context, criteria model.MemberSearchCondition) ([]model.MemberDto, error) {
	idb, _, err := session(ctx)
	if err != nil {
		return nil, err
	}
	cond := predicate.ForMember(criteria)
	query := idb.NewSelect().
		TableExpr(model.MemberTable).
		ColumnExpr(predicate.ColUsername + " AS username").
		ColumnExpr(predicate.ColAge + " AS age")
	query = predicate.ApplyJoins(query, cond)
	query = predicate.ApplyWhere(query, cond)

	var rows []model.MemberDto
	if err := query.OrderExpr(defaultMemberOrder).Scan(ctx, &rows); err != nil {
		return nil, database.TranslateError(err)
	}
	return rows, nil
}

// AgeBands labels each matching member with its age band.
func (r *MemberRepository) AgeBands(ctx context.Context, cond predicate.Condition) ([]model.MemberAgeBand, error) {
	idb, _, err := session(ctx)
	if err != nil {
		return nil, err
	}
	query := idb.NewSelect().
		TableExpr(model.MemberTable).
		ColumnExpr(predicate.ColMemberID+" AS member_id").
		ColumnExpr(predicate.ColUsername+" AS username").
		ColumnExpr(predicate.ColAge+" AS age").
		ColumnExpr("CASE WHEN members.age BETWEEN 0 AND 20 THEN ? WHEN members.age BETWEEN 21 AND 30 THEN ? ELSE ? END AS age_band",
			model.AgeBandYouth, model.AgeBandAdult, model.AgeBandOthers)
	query = predicate.ApplyJoins(query, cond)
	query = predicate.ApplyWhere(query, cond)

	var rows []model.MemberAgeBand
	if err := query.OrderExpr(defaultMemberOrder).Scan(ctx, &rows); err != nil {
		return nil, database.TranslateError(err)
	}
	return rows, nil
}

// WithAverageAge returns the matching members with the average age of all
// members as a scalar subquery column.
func (r *MemberRepository) WithAverageAge(ctx context.Context, cond predicate.Condition) ([]model.MemberAgeAvg, error) {
	idb, _, err := session(ctx)
	if err != nil {
		return nil, err
	}
	query := idb.NewSelect().
		TableExpr(model.MemberTable).
		ColumnExpr(predicate.ColMemberID+" AS member_id").
		ColumnExpr(predicate.ColUsername+" AS username").
		ColumnExpr(predicate.ColAge+" AS age").
		ColumnExpr(predicate.AvgAgeSubquery + " AS avg_age")
	query = predicate.ApplyJoins(query, cond)
	query = predicate.ApplyWhere(query, cond)

	var rows []model.MemberAgeAvg
	if err := query.OrderExpr(defaultMemberOrder).Scan(ctx, &rows); err != nil {
		return nil, database.TranslateError(err)
	}
	return rows, nil
}

// Labels computes a constant, "<username>_<age>", the lower case username and
// the username with a replacement applied for each matching member.
func (r *MemberRepository) Labels(ctx context.Context, cond predicate.Condition, format model.LabelFormat) ([]model.MemberLabel, error) {
	idb, _, err := session(ctx)
	if err != nil {
		return nil, err
	}
	// CONCAT drops NULL arguments on postgres and sqlite but not on mysql
	query := idb.NewSelect().
		TableExpr(model.MemberTable).
		ColumnExpr(predicate.ColMemberID+" AS member_id").
		ColumnExpr("? AS constant", format.Constant).
		ColumnExpr("CASE WHEN " + predicate.ColUsername + " IS NULL THEN NULL ELSE CONCAT(" +
			predicate.ColUsername + ", '_', " + predicate.ColAge + ") END AS username_age").
		ColumnExpr("LOWER(" + predicate.ColUsername + ") AS username_lower")
	if format.ReplaceOld != "" {
		query = query.ColumnExpr("REPLACE("+predicate.ColUsername+", ?, ?) AS username_replaced", format.ReplaceOld, format.ReplaceNew)
	} else {
		query = query.ColumnExpr(predicate.ColUsername + " AS username_replaced")
	}
	query = predicate.ApplyJoins(query, cond)
	query = predicate.ApplyWhere(query, cond)

	var rows []model.MemberLabel
	if err := query.OrderExpr(defaultMemberOrder).Scan(ctx, &rows); err != nil {
		return nil, database.TranslateError(err)
	}
	return rows, nil
}
