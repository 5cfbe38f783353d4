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
	"github.com/tomoncle/dynaquery/model"
	"github.com/tomoncle/dynaquery/types"
)

// Qualified columns of the member/team join.
const (
	ColMemberID     = "members.id"
	ColUsername     = "members.username"
	ColAge          = "members.age"
	ColMemberTeamID = "members.team_id"
	ColTeamID       = "teams.id"
	ColTeamName     = "teams.name"
)

// JoinMemberTeam attaches the team of each member; members without a team
// keep NULL team columns.
const JoinMemberTeam = "LEFT JOIN teams ON teams.id = members.team_id"

func UsernameEq(username types.Optional[string]) types.Optional[Fragment] {
	return Eq(ColUsername, username)
}

func UsernameLike(part types.Optional[string]) types.Optional[Fragment] {
	return Like(ColUsername, part)
}

// TeamNameEq needs the team join, which it declares.
func TeamNameEq(teamName types.Optional[string]) types.Optional[Fragment] {
	return types.Map(Eq(ColTeamName, teamName), func(f Fragment) Fragment {
		return f.Joining(JoinMemberTeam)
	})
}

func TeamIDEq(teamID types.Optional[int64]) types.Optional[Fragment] {
	return Eq(ColMemberTeamID, teamID)
}

func AgeEq(age types.Optional[int]) types.Optional[Fragment] {
	return Eq(ColAge, age)
}

func AgeGoe(age types.Optional[int]) types.Optional[Fragment] {
	return Goe(ColAge, age)
}

func AgeLoe(age types.Optional[int]) types.Optional[Fragment] {
	return Loe(ColAge, age)
}

func AgeLt(age types.Optional[int]) types.Optional[Fragment] {
	return Lt(ColAge, age)
}

func AgeGt(age types.Optional[int]) types.Optional[Fragment] {
	return Gt(ColAge, age)
}

// UsernameIsLower keeps members whose username has no upper case letters.
func UsernameIsLower() Fragment {
	return Expr(ColUsername + " = LOWER(" + ColUsername + ")")
}

// JoinMemberTeamOn is JoinMemberTeam with on as an extra join condition:
// members stay in the result and team columns are NULL unless on holds. It
// returns the join and its arguments; without on it is JoinMemberTeam.
func JoinMemberTeamOn(on types.Optional[Fragment]) (string, []interface{}) {
	f, ok := on.Get()
	if !ok {
		return JoinMemberTeam, nil
	}
	return JoinMemberTeam + " AND (" + f.Query() + ")", f.Args()
}

// AgeBetween is the inclusive range; either bound may be absent.
func AgeBetween(goe, loe types.Optional[int]) types.Optional[Fragment] {
	return AllOf(AgeGoe(goe), AgeLoe(loe))
}

// memberFragments lists one optional fragment per search field.
func memberFragments(c model.MemberSearchCondition) []types.Optional[Fragment] {
	return []types.Optional[Fragment]{
		UsernameEq(c.Username()),
		TeamNameEq(c.TeamName()),
		AgeGoe(c.AgeGoe()),
		AgeLoe(c.AgeLoe()),
	}
}

// AllConditions folds every field of the search condition into one fragment.
func AllConditions(c model.MemberSearchCondition) types.Optional[Fragment] {
	return AllOf(memberFragments(c)...)
}

// ForMember is the condition of a member search. The same condition serves
// both entity queries and the member/team projection; folded with Expr it
// equals AllConditions.
func ForMember(c model.MemberSearchCondition) Condition {
	return Where(memberFragments(c)...)
}
