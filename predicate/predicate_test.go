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

package predicate

import (
	"math/bits"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomoncle/dynaquery/model"
	"github.com/tomoncle/dynaquery/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

// renderDB is only used to format queries; nothing is executed.
func renderDB(t *testing.T) *bun.DB {
	t.Helper()
	sqldb, _, err := sqlmock.New()
	require.NoError(t, err)
	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestAbsentValueBuildsNoFragment(t *testing.T) {
	assert.False(t, UsernameEq(types.None[string]()).IsPresent())
	assert.False(t, TeamNameEq(types.None[string]()).IsPresent())
	assert.False(t, AgeGoe(types.None[int]()).IsPresent())
	assert.False(t, AgeLoe(types.None[int]()).IsPresent())
	assert.False(t, In[int](ColAge, nil).IsPresent())
}

func TestPresentValueBuildsFragment(t *testing.T) {
	f, ok := UsernameEq(types.Some("member1")).Get()
	require.True(t, ok)
	assert.Equal(t, "members.username = ?", f.Query())
	assert.Equal(t, []interface{}{"member1"}, f.Args())
	assert.Empty(t, f.Joins())

	f, ok = TeamNameEq(types.Some("teamA")).Get()
	require.True(t, ok)
	assert.Equal(t, "teams.name = ?", f.Query())
	assert.Equal(t, []string{JoinMemberTeam}, f.Joins())
}

func TestZeroIsAPresentValue(t *testing.T) {
	f, ok := AgeGoe(types.Some(0)).Get()
	require.True(t, ok)
	assert.Equal(t, []interface{}{0}, f.Args())
}

func TestAllOfTreatsAbsentAsIdentity(t *testing.T) {
	assert.False(t, AllOf().IsPresent())
	assert.False(t, AllOf(types.None[Fragment](), types.None[Fragment]()).IsPresent())

	single, ok := AllOf(types.None[Fragment](), AgeGoe(types.Some(10)), types.None[Fragment]()).Get()
	require.True(t, ok)
	assert.Equal(t, "members.age >= ?", single.Query())

	both, ok := AgeBetween(types.Some(10), types.Some(20)).Get()
	require.True(t, ok)
	assert.Equal(t, "(members.age >= ?) AND (members.age <= ?)", both.Query())
	assert.Equal(t, []interface{}{10, 20}, both.Args())
}

func TestAnyOfAndNot(t *testing.T) {
	f, ok := AnyOf(UsernameEq(types.Some("a")), types.None[Fragment](), UsernameEq(types.Some("b"))).Get()
	require.True(t, ok)
	assert.Equal(t, "(members.username = ?) OR (members.username = ?)", f.Query())

	n := Not(f)
	assert.Equal(t, "NOT ((members.username = ?) OR (members.username = ?))", n.Query())
	assert.Equal(t, []interface{}{"a", "b"}, n.Args())
}

func TestComposedFragmentsMergeJoinsOnce(t *testing.T) {
	a, _ := TeamNameEq(types.Some("teamA")).Get()
	b, _ := TeamNameEq(types.Some("teamB")).Get()
	c := a.Or(b).And(Expr("members.age > ?", 1))
	assert.Equal(t, []string{JoinMemberTeam}, c.Joins())
}

func TestAllConditionsMatchesForMember(t *testing.T) {
	fields := []model.SearchOption{
		model.WithUsername("member3"),
		model.WithTeamName("teamB"),
		model.WithAgeGoe(35),
		model.WithAgeLoe(40),
	}
	for mask := 0; mask < 1<<len(fields); mask++ {
		var opts []model.SearchOption
		for i, opt := range fields {
			if mask&(1<<i) != 0 {
				opts = append(opts, opt)
			}
		}
		criteria := model.NewMemberSearchCondition(opts...)

		all := AllConditions(criteria)
		cond := ForMember(criteria)
		folded := cond.Expr()
		require.Equal(t, all.IsPresent(), folded.IsPresent(), "mask %04b", mask)
		assert.Len(t, cond.Fragments(), bits.OnesCount(uint(mask)), "mask %04b", mask)
		if !all.IsPresent() {
			continue
		}
		a, _ := all.Get()
		f, _ := folded.Get()
		assert.Equal(t, a.Query(), f.Query(), "mask %04b", mask)
		assert.Equal(t, a.Args(), f.Args(), "mask %04b", mask)
		assert.Equal(t, a.Joins(), f.Joins(), "mask %04b", mask)
	}
}

func TestForMemberEmptyConditionIsUnconstrained(t *testing.T) {
	c := ForMember(model.NewMemberSearchCondition())
	assert.True(t, c.IsUnconstrained())
	assert.False(t, c.Expr().IsPresent())
	assert.Equal(t, "<all rows>", c.String())
}

func TestConditionIsImmutable(t *testing.T) {
	base := Where(AgeGoe(types.Some(10)))
	extended := base.And(AgeLoe(types.Some(20)))
	assert.Len(t, base.Fragments(), 1)
	assert.Len(t, extended.Fragments(), 2)
}

func TestLikeEscapesWildcards(t *testing.T) {
	f, ok := UsernameLike(types.Some("50%_off!")).Get()
	require.True(t, ok)
	assert.Equal(t, "members.username LIKE ? ESCAPE '!'", f.Query())
	assert.Equal(t, []interface{}{"%50!%!_off!!%"}, f.Args())
}

func TestApplyWhereRendersOneTermPerFragment(t *testing.T) {
	db := renderDB(t)
	cond := ForMember(model.NewMemberSearchCondition(model.WithUsername("member1"), model.WithAgeGoe(10)))

	q := ApplyWhere(db.NewSelect().Model((*model.Member)(nil)), cond)
	assert.Contains(t, q.String(), "WHERE (members.username = 'member1') AND (members.age >= 10)")
}

func TestApplyJoinsSkipsKnownJoins(t *testing.T) {
	db := renderDB(t)
	cond := ForMember(model.NewMemberSearchCondition(model.WithTeamName("teamA")))

	q := ApplyJoins(db.NewSelect().TableExpr("members").ColumnExpr("members.id"), cond)
	assert.Equal(t, 1, strings.Count(q.String(), "LEFT JOIN teams"))

	q = ApplyJoins(db.NewSelect().TableExpr("members").ColumnExpr("members.id"), cond, JoinMemberTeam)
	assert.NotContains(t, q.String(), "LEFT JOIN teams")
}

func TestApplyWhereOnUpdateWithAssignments(t *testing.T) {
	db := renderDB(t)
	q := db.NewUpdate().Model((*model.Member)(nil))
	q = q.Set(Add("age", 1).Query(), Add("age", 1).Args()...)
	q = ApplyWhere(q, Where(AgeLt(types.Some(28))))

	sql := q.String()
	assert.Contains(t, sql, `SET "age" = "age" + 1`)
	assert.Contains(t, sql, "WHERE (members.age < 28)")
}

func TestSubqueryFragments(t *testing.T) {
	db := renderDB(t)
	f, ok := AgeInAbove(types.Some(10)).Get()
	require.True(t, ok)

	q := ApplyWhere(db.NewSelect().Model((*model.Member)(nil)), WhereAll(f, AgeGoeAvg()))
	sql := q.String()
	assert.Contains(t, sql, "members.age IN (SELECT member_sub.age FROM members AS member_sub WHERE member_sub.age > 10)")
	assert.Contains(t, sql, "members.age >= (SELECT AVG(member_sub.age) FROM members AS member_sub)")
	assert.False(t, AgeInAbove(types.None[int]()).IsPresent())
}

func TestOrderExpr(t *testing.T) {
	assert.Equal(t, "(members.username IS NULL) ASC, members.username ASC",
		OrderExpr(ColUsername, types.OrderAsc("username")))
	assert.Equal(t, "(members.age IS NULL) ASC, members.age DESC",
		OrderExpr(ColAge, types.OrderDesc("age")))
	assert.Equal(t, "(teams.name IS NULL) DESC, teams.name ASC",
		OrderExpr(ColTeamName, types.OrderAsc("team_name").WithNullsFirst()))
}

func TestMemberSortable(t *testing.T) {
	c, ok := MemberSortable.Resolve("team_name")
	require.True(t, ok)
	assert.Equal(t, ColTeamName, c.Column)
	assert.Equal(t, JoinMemberTeam, c.Join)

	_, ok = MemberSortable.Resolve("password")
	assert.False(t, ok)
}

func TestWhereKeepsExactlyThePresentFragments(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	optionalOf := func(present bool, v int) types.Optional[int] {
		if present {
			return types.Some(v)
		}
		return types.None[int]()
	}

	properties.Property("fragment count equals present criteria count", prop.ForAll(
		func(hasName, hasTeam, hasGoe, hasLoe bool, goe, loe int) bool {
			var opts []model.SearchOption
			want := 0
			if hasName {
				opts = append(opts, model.WithUsername("member1"))
				want++
			}
			if hasTeam {
				opts = append(opts, model.WithTeamName("teamA"))
				want++
			}
			if hasGoe {
				opts = append(opts, model.WithAgeGoe(goe))
				want++
			}
			if hasLoe {
				opts = append(opts, model.WithAgeLoe(loe))
				want++
			}
			criteria := model.NewMemberSearchCondition(opts...)
			cond := ForMember(criteria)

			folded := AllConditions(criteria)
			if folded.IsPresent() != (want > 0) {
				return false
			}
			if f, ok := folded.Get(); ok && len(f.Args()) != want {
				return false
			}
			if hasTeam != (len(cond.Joins()) == 1) {
				return false
			}
			ageOnly := AgeBetween(optionalOf(hasGoe, goe), optionalOf(hasLoe, loe))
			return len(cond.Fragments()) == want && ageOnly.IsPresent() == (hasGoe || hasLoe)
		},
		gen.Bool(), gen.Bool(), gen.Bool(), gen.Bool(), gen.IntRange(0, 100), gen.IntRange(0, 100),
	))

	properties.TestingRun(t)
}
