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
	"slices"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomoncle/dynaquery/database"
	"github.com/tomoncle/dynaquery/internal/testdb"
	"github.com/tomoncle/dynaquery/model"
	"github.com/tomoncle/dynaquery/predicate"
	"github.com/tomoncle/dynaquery/repository"
	"github.com/tomoncle/dynaquery/types"
	"github.com/uptrace/bun"
)

// inTx runs fn in a unit of work that commits when fn returns.
func inTx(t *testing.T, db *bun.DB, fn func(ctx context.Context)) {
	t.Helper()
	err := database.RunInTx(context.Background(), db, func(ctx context.Context) error {
		fn(ctx)
		return nil
	})
	require.NoError(t, err)
}

func seeded(t *testing.T) (*bun.DB, *testdb.Fixture, *repository.MemberRepository) {
	t.Helper()
	db := testdb.Open(t)
	return db, testdb.Seed(t, db), repository.NewMemberRepository()
}

func TestSearchWithoutCriteriaReturnsEveryMember(t *testing.T) {
	db, f, repo := seeded(t)
	inTx(t, db, func(ctx context.Context) {
		rows, err := repo.Search(ctx, model.NewMemberSearchCondition())
		require.NoError(t, err)
		assert.Equal(t, []string{"member1", "member2", "member3", "member4"}, testdb.Usernames(rows))

		first := rows[0]
		assert.Equal(t, f.Members[0].ID, first.MemberID)
		assert.Equal(t, 10, first.Age)
		assert.Equal(t, types.Some(f.TeamA.ID), first.TeamID)
		assert.Equal(t, types.Some("teamA"), first.TeamName)
	})
}

func TestSearchBySingleField(t *testing.T) {
	db, _, repo := seeded(t)
	inTx(t, db, func(ctx context.Context) {
		rows, err := repo.Search(ctx, model.NewMemberSearchCondition(model.WithTeamName("teamB")))
		require.NoError(t, err)
		assert.Equal(t, []string{"member3", "member4"}, testdb.Usernames(rows))

		rows, err = repo.Search(ctx, model.NewMemberSearchCondition(model.WithUsername("member2")))
		require.NoError(t, err)
		assert.Equal(t, []string{"member2"}, testdb.Usernames(rows))

		rows, err = repo.Search(ctx, model.NewMemberSearchCondition(model.WithAgeLoe(20)))
		require.NoError(t, err)
		assert.Equal(t, []string{"member1", "member2"}, testdb.Usernames(rows))
	})
}

func TestSearchByAllFields(t *testing.T) {
	db, _, repo := seeded(t)
	inTx(t, db, func(ctx context.Context) {
		criteria := model.NewMemberSearchCondition(
			model.WithTeamName("teamB"),
			model.WithAgeGoe(35),
			model.WithAgeLoe(40),
		)
		rows, err := repo.Search(ctx, criteria)
		require.NoError(t, err)
		assert.Equal(t, []string{"member4"}, testdb.Usernames(rows))

		rows, err = repo.Search(ctx, model.NewMemberSearchCondition(model.WithTeamName("nobody")))
		require.NoError(t, err)
		assert.Empty(t, rows)
	})
}

func TestSearchIncludesMembersWithoutTeam(t *testing.T) {
	db, _, repo := seeded(t)
	loner := testdb.AddMember(t, db, "loner", 50, nil)
	inTx(t, db, func(ctx context.Context) {
		rows, err := repo.Search(ctx, model.NewMemberSearchCondition(model.WithAgeGoe(50)))
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, loner.ID, rows[0].MemberID)
		assert.False(t, rows[0].TeamID.IsPresent())
		assert.False(t, rows[0].TeamName.IsPresent())
	})
}

func memberIDs(rows []model.MemberTeamDto) []int64 {
	ids := make([]int64, len(rows))
	for i, r := range rows {
		ids[i] = r.MemberID
	}
	return ids
}

func TestTwoCriteriaSelectTheIntersection(t *testing.T) {
	db, f, repo := seeded(t)
	testdb.AddMember(t, db, "", 25, f.TeamA)
	testdb.AddMember(t, db, "member5", 35, nil)
	usernames := []string{"member1", "member3", "member5", "nobody"}
	teams := []string{"teamA", "teamB", "teamC"}

	// one option per search field, picked by field index
	option := func(field, nameIdx, teamIdx, age int) model.SearchOption {
		switch field {
		case 0:
			return model.WithUsername(usernames[nameIdx])
		case 1:
			return model.WithTeamName(teams[teamIdx])
		case 2:
			return model.WithAgeGoe(age)
		default:
			return model.WithAgeLoe(age)
		}
	}
	var pairs [][2]int
	for i := 0; i < 4; i++ {
		for j := i + 1; j < 4; j++ {
			pairs = append(pairs, [2]int{i, j})
		}
	}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 120
	properties := gopter.NewProperties(parameters)

	properties.Property("two criteria select the intersection of each alone", prop.ForAll(
		func(pairIdx, nameIdx, teamIdx, ageA, ageB int) bool {
			pair := pairs[pairIdx]
			first := option(pair[0], nameIdx, teamIdx, ageA)
			second := option(pair[1], nameIdx, teamIdx, ageB)

			ok := true
			err := database.RunInTx(context.Background(), db, func(ctx context.Context) error {
				byFirst, err := repo.Search(ctx, model.NewMemberSearchCondition(first))
				if err != nil {
					return err
				}
				bySecond, err := repo.Search(ctx, model.NewMemberSearchCondition(second))
				if err != nil {
					return err
				}
				both, err := repo.Search(ctx, model.NewMemberSearchCondition(first, second))
				if err != nil {
					return err
				}
				secondIDs := memberIDs(bySecond)
				var want []int64
				for _, id := range memberIDs(byFirst) {
					if slices.Contains(secondIDs, id) {
						want = append(want, id)
					}
				}
				ok = slices.Equal(want, memberIDs(both))
				return nil
			})
			return err == nil && ok
		},
		gen.IntRange(0, len(pairs)-1),
		gen.IntRange(0, len(usernames)-1),
		gen.IntRange(0, len(teams)-1),
		gen.IntRange(0, 50),
		gen.IntRange(0, 50),
	))

	properties.TestingRun(t)
}

func TestSearchPagedReturnsTheRequestedWindow(t *testing.T) {
	db, _, repo := seeded(t)
	inTx(t, db, func(ctx context.Context) {
		page := types.NewPageRequest(1, 2, types.OrderAsc("username"))
		rows, err := repo.SearchPaged(ctx, model.NewMemberSearchCondition(), page)
		require.NoError(t, err)
		assert.Equal(t, []string{"member2", "member3"}, testdb.Usernames(rows))

		page = types.NewPageRequest(0, 3, types.OrderDesc("age"))
		rows, err = repo.SearchPaged(ctx, model.NewMemberSearchCondition(model.WithTeamName("teamA")), page)
		require.NoError(t, err)
		assert.Equal(t, []string{"member2", "member1"}, testdb.Usernames(rows))
	})
}

func TestSearchPagedRequiresAnOrder(t *testing.T) {
	db, _, repo := seeded(t)
	inTx(t, db, func(ctx context.Context) {
		_, err := repo.SearchPaged(ctx, model.NewMemberSearchCondition(), types.NewPageRequest(0, 2))
		assert.ErrorIs(t, err, database.ErrUnorderedPage)

		_, err = repo.SearchPage(ctx, model.NewMemberSearchCondition(), nil)
		assert.ErrorIs(t, err, database.ErrUnorderedPage)
	})
}

func TestSearchPage(t *testing.T) {
	db, _, repo := seeded(t)
	inTx(t, db, func(ctx context.Context) {
		page, err := repo.SearchPage(ctx, model.NewMemberSearchCondition(), types.NewPageRequest(0, 3, types.OrderAsc("member_id")))
		require.NoError(t, err)
		assert.Equal(t, 4, page.Total)
		assert.Len(t, page.Items, 3)
		assert.True(t, page.HasNext())

		page, err = repo.SearchPage(ctx, model.NewMemberSearchCondition(model.WithTeamName("nobody")), types.NewPageRequest(0, 3, types.OrderAsc("age")))
		require.NoError(t, err)
		assert.Zero(t, page.Total)
		assert.Empty(t, page.Items)
	})
}

func TestSortPutsNullsLastByDefault(t *testing.T) {
	db, _, repo := seeded(t)
	testdb.AddMember(t, db, "", 25, nil)
	all := model.NewMemberSearchCondition()
	inTx(t, db, func(ctx context.Context) {
		rows, err := repo.SearchPaged(ctx, all, types.NewPageRequest(0, 10, types.OrderAsc("username")))
		require.NoError(t, err)
		assert.Equal(t, []string{"member1", "member2", "member3", "member4", ""}, testdb.Usernames(rows))

		rows, err = repo.SearchPaged(ctx, all, types.NewPageRequest(0, 10, types.OrderDesc("username")))
		require.NoError(t, err)
		assert.Equal(t, []string{"member4", "member3", "member2", "member1", ""}, testdb.Usernames(rows))

		rows, err = repo.SearchPaged(ctx, all, types.NewPageRequest(0, 10, types.OrderAsc("username").WithNullsFirst()))
		require.NoError(t, err)
		assert.Equal(t, []string{"", "member1", "member2", "member3", "member4"}, testdb.Usernames(rows))

		rows, err = repo.SearchPaged(ctx, all, types.NewPageRequest(0, 10, types.OrderDesc("team_name")))
		require.NoError(t, err)
		assert.Equal(t, []string{"member3", "member4", "member1", "member2", ""}, testdb.Usernames(rows))
	})
}

func TestUnknownSortFieldIsRejected(t *testing.T) {
	db, _, repo := seeded(t)
	inTx(t, db, func(ctx context.Context) {
		_, err := repo.SearchWhere(ctx, predicate.Condition{}, types.OrderAsc("password"))
		assert.ErrorIs(t, err, database.ErrUnknownSortField)

		_, err = repo.FindMembers(ctx, predicate.Condition{}, types.OrderAsc("id; DROP TABLE members"))
		assert.ErrorIs(t, err, database.ErrUnknownSortField)
	})
}

func TestSearchMembers(t *testing.T) {
	db, _, repo := seeded(t)
	inTx(t, db, func(ctx context.Context) {
		rows, err := repo.SearchMembers(ctx, model.NewMemberSearchCondition(model.WithTeamName("teamA")))
		require.NoError(t, err)
		assert.Equal(t, []model.MemberDto{
			{Username: types.Some("member1"), Age: 10},
			{Username: types.Some("member2"), Age: 20},
		}, rows)
	})
}

func TestOperationsRequireAUnitOfWork(t *testing.T) {
	repo := repository.NewMemberRepository()
	ctx := context.Background()

	_, err := repo.Search(ctx, model.NewMemberSearchCondition())
	assert.ErrorIs(t, err, database.ErrNoUnitOfWork)

	_, err = repo.FindByID(ctx, 1)
	assert.ErrorIs(t, err, database.ErrNoUnitOfWork)

	_, err = repo.DeleteWhere(ctx, predicate.Condition{})
	assert.ErrorIs(t, err, database.ErrNoUnitOfWork)
}

func TestFindByIDReturnsTheManagedInstance(t *testing.T) {
	db, f, repo := seeded(t)
	inTx(t, db, func(ctx context.Context) {
		first, err := repo.FindByID(ctx, f.Members[0].ID)
		require.NoError(t, err)
		second, err := repo.FindByID(ctx, f.Members[0].ID)
		require.NoError(t, err)
		assert.Same(t, first, second)

		listed, err := repo.FindMembers(ctx, predicate.Where(predicate.UsernameEq(types.Some("member1"))))
		require.NoError(t, err)
		require.Len(t, listed, 1)
		assert.Same(t, first, listed[0])

		_, err = repo.FindByID(ctx, 999)
		assert.ErrorIs(t, err, database.ErrNotFound)
	})
}

func TestFindMembersWithTeamOrder(t *testing.T) {
	db, _, repo := seeded(t)
	inTx(t, db, func(ctx context.Context) {
		members, err := repo.FindMembers(ctx, predicate.Condition{}, types.OrderDesc("team_name"), types.OrderAsc("age"))
		require.NoError(t, err)
		var names []string
		for _, m := range members {
			names = append(names, m.Username)
		}
		assert.Equal(t, []string{"member3", "member4", "member1", "member2"}, names)
	})
}

func TestFindOne(t *testing.T) {
	db, f, repo := seeded(t)
	inTx(t, db, func(ctx context.Context) {
		m, err := repo.FindOne(ctx, predicate.ForMember(model.NewMemberSearchCondition(model.WithUsername("member3"))))
		require.NoError(t, err)
		assert.Equal(t, f.Members[2].ID, m.ID)
		assert.Equal(t, f.TeamB.ID, m.TeamID)

		_, err = repo.FindOne(ctx, predicate.ForMember(model.NewMemberSearchCondition(model.WithTeamName("teamA"))))
		assert.ErrorIs(t, err, database.ErrNonUniqueResult)

		_, err = repo.FindOne(ctx, predicate.ForMember(model.NewMemberSearchCondition(model.WithUsername("nobody"))))
		assert.ErrorIs(t, err, database.ErrNotFound)
	})
}

func TestFindWithTeamLoadsTheRelation(t *testing.T) {
	db, _, repo := seeded(t)
	loner := testdb.AddMember(t, db, "loner", 60, nil)
	inTx(t, db, func(ctx context.Context) {
		members, err := repo.FindWithTeam(ctx, predicate.Where(predicate.AgeGoe(types.Some(30))))
		require.NoError(t, err)
		require.Len(t, members, 3)
		assert.Equal(t, "teamB", members[0].Team.Name)
		assert.Equal(t, "teamB", members[1].Team.Name)
		assert.Equal(t, loner.ID, members[2].ID)
		assert.Zero(t, members[2].TeamID)
	})
}

func TestSubqueryConditions(t *testing.T) {
	db, _, repo := seeded(t)
	inTx(t, db, func(ctx context.Context) {
		rows, err := repo.SearchWhere(ctx, predicate.WhereAll(predicate.AgeEqMax()))
		require.NoError(t, err)
		assert.Equal(t, []string{"member4"}, testdb.Usernames(rows))

		rows, err = repo.SearchWhere(ctx, predicate.WhereAll(predicate.AgeGoeAvg()))
		require.NoError(t, err)
		assert.Equal(t, []string{"member3", "member4"}, testdb.Usernames(rows))

		rows, err = repo.SearchWhere(ctx, predicate.Where(predicate.AgeInAbove(types.Some(10))))
		require.NoError(t, err)
		assert.Equal(t, []string{"member2", "member3", "member4"}, testdb.Usernames(rows))
	})
}

func TestAgeBands(t *testing.T) {
	db, _, repo := seeded(t)
	inTx(t, db, func(ctx context.Context) {
		rows, err := repo.AgeBands(ctx, predicate.Condition{})
		require.NoError(t, err)
		var bands []string
		for _, r := range rows {
			bands = append(bands, r.Band)
		}
		assert.Equal(t, []string{model.AgeBandYouth, model.AgeBandYouth, model.AgeBandAdult, model.AgeBandOthers}, bands)
	})
}

func TestSearchJoinOnKeepsEveryMember(t *testing.T) {
	db, f, repo := seeded(t)
	inTx(t, db, func(ctx context.Context) {
		rows, err := repo.SearchJoinOn(ctx, predicate.TeamNameEq(types.Some("teamA")), predicate.Condition{})
		require.NoError(t, err)
		assert.Equal(t, []string{"member1", "member2", "member3", "member4"}, testdb.Usernames(rows))
		for _, r := range rows[:2] {
			assert.Equal(t, types.Some("teamA"), r.TeamName)
			assert.Equal(t, types.Some(f.TeamA.ID), r.TeamID)
		}
		for _, r := range rows[2:] {
			assert.False(t, r.TeamName.IsPresent(), r.Username.OrElse(""))
			assert.False(t, r.TeamID.IsPresent(), r.Username.OrElse(""))
		}

		rows, err = repo.SearchJoinOn(ctx, predicate.TeamNameEq(types.Some("teamA")),
			predicate.Where(predicate.AgeGoe(types.Some(20))), types.OrderDesc("age"))
		require.NoError(t, err)
		assert.Equal(t, []string{"member4", "member3", "member2"}, testdb.Usernames(rows))
		assert.Equal(t, types.Some("teamA"), rows[2].TeamName)

		all, err := repo.SearchJoinOn(ctx, types.None[predicate.Fragment](), predicate.Condition{})
		require.NoError(t, err)
		plain, err := repo.Search(ctx, model.NewMemberSearchCondition())
		require.NoError(t, err)
		assert.Equal(t, plain, all)
	})
}

func TestWithAverageAge(t *testing.T) {
	db, _, repo := seeded(t)
	inTx(t, db, func(ctx context.Context) {
		rows, err := repo.WithAverageAge(ctx, predicate.Where(predicate.TeamNameEq(types.Some("teamB"))))
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, types.Some("member3"), rows[0].Username)
		for _, r := range rows {
			assert.InDelta(t, 25.0, r.AvgAge, 1e-9, "the subquery averages every member")
		}
	})
}

func TestLabels(t *testing.T) {
	db, _, repo := seeded(t)
	testdb.AddMember(t, db, "", 7, nil)
	inTx(t, db, func(ctx context.Context) {
		rows, err := repo.Labels(ctx, predicate.Where(predicate.AgeLoe(types.Some(10))),
			model.LabelFormat{Constant: "A", ReplaceOld: "member", ReplaceNew: "M"})
		require.NoError(t, err)
		require.Len(t, rows, 2)

		assert.Equal(t, "A", rows[0].Constant)
		assert.Equal(t, types.Some("member1_10"), rows[0].UsernameAge)
		assert.Equal(t, types.Some("member1"), rows[0].UsernameLower)
		assert.Equal(t, types.Some("M1"), rows[0].Replaced)

		assert.Equal(t, "A", rows[1].Constant)
		assert.False(t, rows[1].UsernameAge.IsPresent())
		assert.False(t, rows[1].UsernameLower.IsPresent())
		assert.False(t, rows[1].Replaced.IsPresent())

		rows, err = repo.Labels(ctx, predicate.Where(predicate.UsernameEq(types.Some("member2"))), model.LabelFormat{})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, types.Some("member2"), rows[0].Replaced)
	})
}

func TestUsernameIsLower(t *testing.T) {
	db, _, repo := seeded(t)
	testdb.AddMember(t, db, "Member9", 9, nil)
	inTx(t, db, func(ctx context.Context) {
		rows, err := repo.SearchWhere(ctx, predicate.WhereAll(predicate.UsernameIsLower()))
		require.NoError(t, err)
		assert.Equal(t, []string{"member1", "member2", "member3", "member4"}, testdb.Usernames(rows))
	})
}
