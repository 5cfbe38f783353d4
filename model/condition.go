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

import (
	"fmt"
	"strings"

	"github.com/tomoncle/dynaquery/types"
)

// MemberSearchCondition is the set of optional member filters. Every field is
// independently present or absent; an absent field does not constrain the
// search. Values are fixed at construction.
type MemberSearchCondition struct {
	username types.Optional[string]
	teamName types.Optional[string]
	ageGoe   types.Optional[int]
	ageLoe   types.Optional[int]
}

// SearchOption sets one field of a MemberSearchCondition.
type SearchOption func(*MemberSearchCondition)

func WithUsername(username string) SearchOption {
	return func(c *MemberSearchCondition) { c.username = types.Some(username) }
}

func WithTeamName(teamName string) SearchOption {
	return func(c *MemberSearchCondition) { c.teamName = types.Some(teamName) }
}

// WithAgeGoe keeps members at least ageGoe years old.
func WithAgeGoe(ageGoe int) SearchOption {
	return func(c *MemberSearchCondition) { c.ageGoe = types.Some(ageGoe) }
}

// WithAgeLoe keeps members at most ageLoe years old.
func WithAgeLoe(ageLoe int) SearchOption {
	return func(c *MemberSearchCondition) { c.ageLoe = types.Some(ageLoe) }
}

func NewMemberSearchCondition(opts ...SearchOption) MemberSearchCondition {
	var c MemberSearchCondition
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

func (c MemberSearchCondition) Username() types.Optional[string] { return c.username }

func (c MemberSearchCondition) TeamName() types.Optional[string] { return c.teamName }

func (c MemberSearchCondition) AgeGoe() types.Optional[int] { return c.ageGoe }

func (c MemberSearchCondition) AgeLoe() types.Optional[int] { return c.ageLoe }

// IsEmpty reports whether no field is present.
func (c MemberSearchCondition) IsEmpty() bool {
	return !c.username.IsPresent() && !c.teamName.IsPresent() && !c.ageGoe.IsPresent() && !c.ageLoe.IsPresent()
}

func (c MemberSearchCondition) String() string {
	var parts []string
	if v, ok := c.username.Get(); ok {
		parts = append(parts, fmt.Sprintf("username=%s", v))
	}
	if v, ok := c.teamName.Get(); ok {
		parts = append(parts, fmt.Sprintf("teamName=%s", v))
	}
	if v, ok := c.ageGoe.Get(); ok {
		parts = append(parts, fmt.Sprintf("ageGoe=%d", v))
	}
	if v, ok := c.ageLoe.Get(); ok {
		parts = append(parts, fmt.Sprintf("ageLoe=%d", v))
	}
	return "MemberSearchCondition{" + strings.Join(parts, ", ") + "}"
}
