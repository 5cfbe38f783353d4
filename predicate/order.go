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

import "github.com/tomoncle/dynaquery/types"

// OrderExpr renders an ORDER BY term for column. NULL placement is explicit
// because defaults differ: postgres sorts NULL last ascending, mysql and
// sqlite first. (col IS NULL) is 0/false for values and 1/true for NULL on
// all three.
func OrderExpr(column string, o types.Order) string {
	nulls := "ASC"
	if o.Nulls == types.NullsFirst {
		nulls = "DESC"
	}
	dir := o.Direction
	if !dir.IsValid() {
		dir = types.Asc
	}
	return "(" + column + " IS NULL) " + nulls + ", " + column + " " + dir.String()
}

// Sortable maps public sort field names to columns and the joins they need.
type Sortable map[string]SortColumn

type SortColumn struct {
	Column string
	Join   string
}

// Resolve returns the column of field and whether it is sortable.
func (s Sortable) Resolve(field string) (SortColumn, bool) {
	c, ok := s[field]
	return c, ok
}

// MemberSortable lists the fields a member search can be ordered by.
var MemberSortable = Sortable{
	"member_id": {Column: ColMemberID},
	"username":  {Column: ColUsername},
	"age":       {Column: ColAge},
	"team_id":   {Column: ColTeamID, Join: JoinMemberTeam},
	"team_name": {Column: ColTeamName, Join: JoinMemberTeam},
}
