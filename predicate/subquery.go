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

// Subqueries read members under the member_sub alias so they never clash
// with the outer members reference.
//
// MySQL rejects a subquery on the table being updated or deleted, so these
// fragments are for reads only there. Wrapping one in a derived table does
// not help on its own: with derived_merge on, the optimizer folds the derived
// table back in and the statement still fails with error 1093 unless the
// derived table is forced to materialize (DISTINCT, LIMIT or a NO_MERGE hint).

// AvgAgeSubquery is the average age of all members, usable as a column or
// an operand.
const AvgAgeSubquery = "(SELECT AVG(member_sub.age) FROM members AS member_sub)"

// AgeEqMax keeps the oldest members.
func AgeEqMax() Fragment {
	return Expr("members.age = (SELECT MAX(member_sub.age) FROM members AS member_sub)")
}

// AgeGoeAvg keeps members at least as old as the average.
func AgeGoeAvg() Fragment {
	return Expr(ColAge + " >= " + AvgAgeSubquery)
}

// AgeInAbove keeps members whose age is one of the ages greater than floor.
func AgeInAbove(floor types.Optional[int]) types.Optional[Fragment] {
	return When(floor, func(n int) Fragment {
		return Expr("members.age IN (SELECT member_sub.age FROM members AS member_sub WHERE member_sub.age > ?)", n)
	})
}
