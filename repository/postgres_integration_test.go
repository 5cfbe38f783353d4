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

package repository_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomoncle/dynaquery/internal/testdb"
	"github.com/tomoncle/dynaquery/model"
	"github.com/tomoncle/dynaquery/predicate"
	"github.com/tomoncle/dynaquery/repository"
	"github.com/tomoncle/dynaquery/types"
)

func TestPostgresIntegration(t *testing.T) {
	db := testdb.OpenPostgres(t)
	testdb.Seed(t, db)
	testdb.AddMember(t, db, "", 25, nil)
	repo := repository.NewMemberRepository()

	t.Run("Search", func(t *testing.T) {
		inTx(t, db, func(ctx context.Context) {
			rows, err := repo.Search(ctx, model.NewMemberSearchCondition(model.WithTeamName("teamB"), model.WithAgeGoe(35)))
			require.NoError(t, err)
			assert.Equal(t, []string{"member4"}, testdb.Usernames(rows))
		})
	})

	t.Run("NullsLast", func(t *testing.T) {
		inTx(t, db, func(ctx context.Context) {
			rows, err := repo.SearchPaged(ctx, model.NewMemberSearchCondition(), types.NewPageRequest(0, 10, types.OrderAsc("username")))
			require.NoError(t, err)
			assert.Equal(t, []string{"member1", "member2", "member3", "member4", ""}, testdb.Usernames(rows))
		})
	})

	t.Run("StatsByTeam", func(t *testing.T) {
		inTx(t, db, func(ctx context.Context) {
			stats, err := repo.StatsByTeam(ctx, predicate.Condition{})
			require.NoError(t, err)
			require.Len(t, stats, 2)
			assert.InDelta(t, 15.0, stats[0].Avg, 1e-9)
			assert.InDelta(t, 35.0, stats[1].Avg, 1e-9)
		})
	})

	t.Run("BulkUpdateThroughJoin", func(t *testing.T) {
		inTx(t, db, func(ctx context.Context) {
			res, err := repo.UpdateWhere(ctx,
				predicate.ForMember(model.NewMemberSearchCondition(model.WithTeamName("teamA"))),
				predicate.Add("age", 1))
			require.NoError(t, err)
			assert.Equal(t, int64(2), res.RowsAffected)
		})
	})
}
