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
	"github.com/tomoncle/dynaquery/model"
	"github.com/tomoncle/dynaquery/predicate"
	"github.com/uptrace/bun"
)

func ageAggregates(query *bun.SelectQuery) *bun.SelectQuery {
	return query.
		ColumnExpr("COUNT(" + predicate.ColMemberID + ") AS member_count").
		ColumnExpr("COALESCE(SUM(" + predicate.ColAge + "), 0) AS age_sum").
		ColumnExpr("COALESCE(AVG(" + predicate.ColAge + "), 0.0) AS age_avg").
		ColumnExpr("COALESCE(MAX(" + predicate.ColAge + "), 0) AS age_max").
		ColumnExpr("COALESCE(MIN(" + predicate.ColAge + "), 0) AS age_min")
}

// Stats aggregates the ages of the members matching cond.
func (r *MemberRepository) Stats(ctx context.Context, cond predicate.Condition) (*model.AgeStats, error) {
	idb, _, err := session(ctx)
	if err != nil {
		return nil, err
	}
	query := ageAggregates(idb.NewSelect().TableExpr(model.MemberTable))
	query = predicate.ApplyJoins(query, cond)
	query = predicate.ApplyWhere(query, cond)

	stats := new(model.AgeStats)
	if err := query.Scan(ctx, stats); err != nil {
		return nil, database.TranslateError(err)
	}
	return stats, nil
}

// StatsByTeam aggregates ages per team over the matching members, ordered by
// team name. Members without a team are left out.
func (r *MemberRepository) StatsByTeam(ctx context.Context, cond predicate.Condition) ([]model.TeamAgeStats, error) {
	idb, _, err := session(ctx)
	if err != nil {
		return nil, err
	}
	query := idb.NewSelect().
		TableExpr(model.MemberTable).
		ColumnExpr(predicate.ColTeamID + " AS team_id").
		ColumnExpr(predicate.ColTeamName + " AS team_name")
	query = ageAggregates(query).Join(predicate.JoinMemberTeam)
	query = predicate.ApplyJoins(query, cond, predicate.JoinMemberTeam)
	query = predicate.ApplyWhere(query, cond.With(predicate.IsNotNull(predicate.ColTeamID)))

	var rows []model.TeamAgeStats
	err = query.
		GroupExpr(predicate.ColTeamID + ", " + predicate.ColTeamName).
		OrderExpr(predicate.ColTeamName + " ASC").
		Scan(ctx, &rows)
	if err != nil {
		return nil, database.TranslateError(err)
	}
	return rows, nil
}
