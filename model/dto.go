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

package model

import "github.com/tomoncle/dynaquery/types"

// Projections are plain value snapshots scanned from result rows. None of
// them holds an entity, so reading one never touches the store.

// MemberTeamDto is one row of the member/team join. Team columns are absent
// for members without a team.
type MemberTeamDto struct {
	MemberID int64                  `bun:"member_id" json:"member_id"`
	Username types.Optional[string] `bun:"username" json:"username"`
	Age      int                    `bun:"age" json:"age"`
	TeamID   types.Optional[int64]  `bun:"team_id" json:"team_id"`
	TeamName types.Optional[string] `bun:"team_name" json:"team_name"`
}

// MemberDto carries the username and age of a member.
type MemberDto struct {
	Username types.Optional[string] `bun:"username" json:"username"`
	Age      int                    `bun:"age" json:"age"`
}

// AgeStats aggregates member ages. Over an empty set the count is zero and
// the other figures are zero as well.
type AgeStats struct {
	Count int64   `bun:"member_count" json:"count"`
	Sum   int64   `bun:"age_sum" json:"sum"`
	Avg   float64 `bun:"age_avg" json:"avg"`
	Max   int     `bun:"age_max" json:"max"`
	Min   int     `bun:"age_min" json:"min"`
}

// TeamAgeStats is AgeStats for the members of one team.
type TeamAgeStats struct {
	TeamID   int64   `bun:"team_id" json:"team_id"`
	TeamName string  `bun:"team_name" json:"team_name"`
	Count    int64   `bun:"member_count" json:"count"`
	Sum      int64   `bun:"age_sum" json:"sum"`
	Avg      float64 `bun:"age_avg" json:"avg"`
	Max      int     `bun:"age_max" json:"max"`
	Min      int     `bun:"age_min" json:"min"`
}

// Age bands produced by the CASE projection.
const (
	AgeBandYouth  = "0-20"
	AgeBandAdult  = "21-30"
	AgeBandOthers = "other"
)

// MemberAgeBand pairs a member with the age band it falls into.
type MemberAgeBand struct {
	MemberID int64                  `bun:"member_id" json:"member_id"`
	Username types.Optional[string] `bun:"username" json:"username"`
	Age      int                    `bun:"age" json:"age"`
	Band     string                 `bun:"age_band" json:"age_band"`
}

// MemberAgeAvg pairs a member with the average age of all members.
type MemberAgeAvg struct {
	MemberID int64                  `bun:"member_id" json:"member_id"`
	Username types.Optional[string] `bun:"username" json:"username"`
	Age      int                    `bun:"age" json:"age"`
	AvgAge   float64                `bun:"avg_age" json:"avg_age"`
}

// LabelFormat selects the computed columns of a MemberLabel. Occurrences of
// ReplaceOld in the username are replaced by ReplaceNew; an empty ReplaceOld
// leaves it unchanged.
type LabelFormat struct {
	Constant   string
	ReplaceOld string
	ReplaceNew string
}

// MemberLabel holds columns computed in SQL from one member. The username
// derived columns are absent when the member has no username.
type MemberLabel struct {
	MemberID      int64                  `bun:"member_id" json:"member_id"`
	Constant      string                 `bun:"constant" json:"constant"`
	UsernameAge   types.Optional[string] `bun:"username_age" json:"username_age"`
	UsernameLower types.Optional[string] `bun:"username_lower" json:"username_lower"`
	Replaced      types.Optional[string] `bun:"username_replaced" json:"username_replaced"`
}
