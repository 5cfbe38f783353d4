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

package types

import "strings"

// Common illegal/default values used by enums.
const (
	IllegalValue = -1
	IllegalName  = "unknown"
	IllegalDesc  = "unknown"
)

// BaseEnum represents a basic enum contract used by domain types.
type BaseEnum interface {
	IsValid() bool
	Number() int
	String() string
	Desc() string
	Name() string
}

// Direction is the sort direction of an ordering term. The zero value is Asc.
type Direction int

const (
	Asc Direction = iota
	Desc
)

var _ BaseEnum = Asc

func (d Direction) IsValid() bool { return d == Asc || d == Desc }

func (d Direction) Number() int {
	if !d.IsValid() {
		return IllegalValue
	}
	return int(d)
}

// String returns the SQL keyword.
func (d Direction) String() string {
	switch d {
	case Asc:
		return "ASC"
	case Desc:
		return "DESC"
	default:
		return IllegalName
	}
}

func (d Direction) Name() string { return strings.ToLower(d.String()) }

func (d Direction) Desc() string {
	switch d {
	case Asc:
		return "ascending"
	case Desc:
		return "descending"
	default:
		return IllegalDesc
	}
}

// ParseDirection accepts asc/desc in any case; anything else is invalid.
func ParseDirection(s string) (Direction, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "asc":
		return Asc, true
	case "desc":
		return Desc, true
	default:
		return Direction(IllegalValue), false
	}
}

// NullsOrder places NULL values relative to non-null ones. The zero value
// is NullsLast.
type NullsOrder int

const (
	NullsLast NullsOrder = iota
	NullsFirst
)

var _ BaseEnum = NullsLast

func (n NullsOrder) IsValid() bool { return n == NullsLast || n == NullsFirst }

func (n NullsOrder) Number() int {
	if !n.IsValid() {
		return IllegalValue
	}
	return int(n)
}

func (n NullsOrder) String() string {
	switch n {
	case NullsLast:
		return "NULLS LAST"
	case NullsFirst:
		return "NULLS FIRST"
	default:
		return IllegalName
	}
}

func (n NullsOrder) Name() string {
	switch n {
	case NullsLast:
		return "last"
	case NullsFirst:
		return "first"
	default:
		return IllegalName
	}
}

func (n NullsOrder) Desc() string {
	switch n {
	case NullsLast:
		return "null values sort after all others"
	case NullsFirst:
		return "null values sort before all others"
	default:
		return IllegalDesc
	}
}
