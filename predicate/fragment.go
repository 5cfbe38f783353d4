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
	"fmt"
	"slices"
	"strings"

	"github.com/tomoncle/dynaquery/types"
	"github.com/uptrace/bun"
)

// Fragment is one SQL boolean expression with ? placeholders, its arguments
// and the JOIN clauses its columns depend on. Fragments are immutable.
type Fragment struct {
	query string
	args  []interface{}
	joins []string
}

// Expr builds a fragment from a bun query string and its arguments.
func Expr(query string, args ...interface{}) Fragment {
	return Fragment{query: query, args: args}
}

// Joining returns a copy of f that requires the given JOIN clauses.
func (f Fragment) Joining(joins ...string) Fragment {
	f.joins = mergeJoins(f.joins, joins)
	return f
}

func (f Fragment) Query() string { return f.query }

func (f Fragment) Args() []interface{} { return slices.Clone(f.args) }

func (f Fragment) Joins() []string { return slices.Clone(f.joins) }

func (f Fragment) IsZero() bool { return f.query == "" }

// And combines two fragments; both must hold.
func (f Fragment) And(other Fragment) Fragment { return combine("AND", f, other) }

// Or combines two fragments; either may hold.
func (f Fragment) Or(other Fragment) Fragment { return combine("OR", f, other) }

// Not negates f.
func Not(f Fragment) Fragment {
	return Fragment{query: "NOT (" + f.query + ")", args: f.Args(), joins: f.Joins()}
}

func combine(op string, a, b Fragment) Fragment {
	args := make([]interface{}, 0, len(a.args)+len(b.args))
	args = append(args, a.args...)
	args = append(args, b.args...)
	return Fragment{
		query: "(" + a.query + ") " + op + " (" + b.query + ")",
		args:  args,
		joins: mergeJoins(a.joins, b.joins),
	}
}

func mergeJoins(a, b []string) []string {
	out := slices.Clone(a)
	for _, j := range b {
		if !slices.Contains(out, j) {
			out = append(out, j)
		}
	}
	return out
}

// String renders the fragment with its arguments for logs.
func (f Fragment) String() string {
	if len(f.args) == 0 {
		return f.query
	}
	return fmt.Sprintf("%s %v", f.query, f.args)
}

// AllOf folds the present fragments with AND. Absent fragments are the
// identity of the fold, so the result is absent only when every input is.
func AllOf(opts ...types.Optional[Fragment]) types.Optional[Fragment] {
	return fold("AND", opts)
}

// AnyOf folds the present fragments with OR, ignoring absent ones.
func AnyOf(opts ...types.Optional[Fragment]) types.Optional[Fragment] {
	return fold("OR", opts)
}

func fold(op string, opts []types.Optional[Fragment]) types.Optional[Fragment] {
	var acc types.Optional[Fragment]
	for _, opt := range opts {
		f, ok := opt.Get()
		if !ok {
			continue
		}
		if prev, ok := acc.Get(); ok {
			acc = types.Some(combine(op, prev, f))
		} else {
			acc = types.Some(f)
		}
	}
	return acc
}

// When maps a present value to a fragment and keeps absence.
func When[T any](v types.Optional[T], build func(T) Fragment) types.Optional[Fragment] {
	return types.Map(v, build)
}

// Eq is column = v when v is present.
func Eq[T any](column string, v types.Optional[T]) types.Optional[Fragment] {
	return compare(column, "=", v)
}

// Ne is column <> v when v is present.
func Ne[T any](column string, v types.Optional[T]) types.Optional[Fragment] {
	return compare(column, "<>", v)
}

// Goe is column >= v when v is present.
func Goe[T any](column string, v types.Optional[T]) types.Optional[Fragment] {
	return compare(column, ">=", v)
}

// Loe is column <= v when v is present.
func Loe[T any](column string, v types.Optional[T]) types.Optional[Fragment] {
	return compare(column, "<=", v)
}

// Gt is column > v when v is present.
func Gt[T any](column string, v types.Optional[T]) types.Optional[Fragment] {
	return compare(column, ">", v)
}

// Lt is column < v when v is present.
func Lt[T any](column string, v types.Optional[T]) types.Optional[Fragment] {
	return compare(column, "<", v)
}

func compare[T any](column, op string, v types.Optional[T]) types.Optional[Fragment] {
	return When(v, func(val T) Fragment {
		return Expr(column+" "+op+" ?", val)
	})
}

// Like matches rows whose column contains v, with LIKE wildcards in v escaped.
func Like(column string, v types.Optional[string]) types.Optional[Fragment] {
	return When(v, func(val string) Fragment {
		escaped := strings.NewReplacer("!", "!!", "%", "!%", "_", "!_").Replace(val)
		return Expr(column+" LIKE ? ESCAPE '!'", "%"+escaped+"%")
	})
}

// In is column IN (values); an empty list is absent, not an impossible match.
func In[T any](column string, values []T) types.Optional[Fragment] {
	if len(values) == 0 {
		return types.None[Fragment]()
	}
	return types.Some(Expr(column+" IN (?)", bun.In(values)))
}

// IsNull is column IS NULL.
func IsNull(column string) Fragment {
	return Expr(column + " IS NULL")
}

// IsNotNull is column IS NOT NULL.
func IsNotNull(column string) Fragment {
	return Expr(column + " IS NOT NULL")
}
