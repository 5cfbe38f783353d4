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

	"github.com/uptrace/bun"
)

// Assignment is one SET term of a bulk update. Column is the unqualified
// column name; postgres rejects qualified names on the left of SET.
type Assignment struct {
	column string
	query  string
	args   []interface{}
}

// Set assigns a constant.
func Set(column string, value interface{}) Assignment {
	return Assignment{column: column, query: "? = ?", args: []interface{}{bun.Ident(column), value}}
}

// SetNull clears a nullable column.
func SetNull(column string) Assignment {
	return Assignment{column: column, query: "? = NULL", args: []interface{}{bun.Ident(column)}}
}

// Add increments a numeric column by delta; a negative delta subtracts.
func Add(column string, delta int) Assignment {
	return Assignment{column: column, query: "? = ? + ?", args: []interface{}{bun.Ident(column), bun.Ident(column), delta}}
}

// Multiply scales a numeric column by factor.
func Multiply(column string, factor int) Assignment {
	return Assignment{column: column, query: "? = ? * ?", args: []interface{}{bun.Ident(column), bun.Ident(column), factor}}
}

func (a Assignment) Column() string { return a.column }

func (a Assignment) Query() string { return a.query }

func (a Assignment) Args() []interface{} { return slices.Clone(a.args) }
