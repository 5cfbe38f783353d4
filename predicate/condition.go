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
	"slices"
	"strings"

	"github.com/tomoncle/dynaquery/types"
)

// Condition is the AND of zero or more fragments. The zero value matches
// every row.
type Condition struct {
	fragments []Fragment
}

// Where collects the present fragments into a condition.
func Where(opts ...types.Optional[Fragment]) Condition {
	return Condition{}.And(opts...)
}

// WhereAll builds a condition from fragments that are always present.
func WhereAll(fragments ...Fragment) Condition {
	return Condition{fragments: slices.Clone(fragments)}
}

// And returns a new condition that also requires the present fragments.
func (c Condition) And(opts ...types.Optional[Fragment]) Condition {
	out := Condition{fragments: slices.Clone(c.fragments)}
	for _, opt := range opts {
		if f, ok := opt.Get(); ok {
			out.fragments = append(out.fragments, f)
		}
	}
	return out
}

// With returns a new condition that also requires f.
func (c Condition) With(f Fragment) Condition {
	return c.And(types.Some(f))
}

// IsUnconstrained reports whether the condition matches every row.
func (c Condition) IsUnconstrained() bool { return len(c.fragments) == 0 }

func (c Condition) Fragments() []Fragment { return slices.Clone(c.fragments) }

// Joins returns the JOIN clauses required by any fragment, each once, in
// first-use order.
func (c Condition) Joins() []string {
	var joins []string
	for _, f := range c.fragments {
		joins = mergeJoins(joins, f.joins)
	}
	return joins
}

// Expr folds the condition into a single fragment, absent when unconstrained.
func (c Condition) Expr() types.Optional[Fragment] {
	opts := make([]types.Optional[Fragment], len(c.fragments))
	for i, f := range c.fragments {
		opts[i] = types.Some(f)
	}
	return AllOf(opts...)
}

func (c Condition) String() string {
	if c.IsUnconstrained() {
		return "<all rows>"
	}
	parts := make([]string, len(c.fragments))
	for i, f := range c.fragments {
		parts[i] = f.String()
	}
	return strings.Join(parts, " AND ")
}

// WhereBuilder is any bun query with a Where method: select, update and
// delete queries all qualify.
type WhereBuilder[Q any] interface {
	Where(query string, args ...interface{}) Q
}

// JoinBuilder is a query that accepts JOIN clauses.
type JoinBuilder[Q any] interface {
	Join(join string, args ...interface{}) Q
}

// ApplyWhere adds one WHERE term per fragment of c to q. Joins are not
// applied; see ApplyJoins.
func ApplyWhere[Q WhereBuilder[Q]](q Q, c Condition) Q {
	for _, f := range c.fragments {
		q = q.Where(f.query, f.args...)
	}
	return q
}

// ApplyJoins adds the JOIN clauses of c that are not in skip.
func ApplyJoins[Q JoinBuilder[Q]](q Q, c Condition, skip ...string) Q {
	for _, j := range c.Joins() {
		if !slices.Contains(skip, j) {
			q = q.Join(j)
		}
	}
	return q
}
