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

	"github.com/tomoncle/dynaquery/database"
	"github.com/uptrace/bun"
)

// Table names double as SQL aliases, so a column reference such as
// members.age is valid in SELECT, UPDATE and DELETE statements alike.
const (
	MemberTable = "members"
	TeamTable   = "teams"
)

func init() {
	database.RegisterModel((*Team)(nil), 10)
	database.RegisterModel((*Member)(nil), 20)
	database.RegisterForeignKey(database.ForeignKeyConstraint{
		Table:           MemberTable,
		Column:          "team_id",
		ReferenceTable:  TeamTable,
		ReferenceColumn: "id",
		OnDelete:        "SET NULL",
	})
}

// Team groups members. Names are unique.
type Team struct {
	bun.BaseModel `bun:"table:teams,alias:teams"`

	ID      int64     `bun:"id,pk,autoincrement" json:"id"`
	Name    string    `bun:"name,notnull,unique" json:"name"`
	Members []*Member `bun:"rel:has-many,join:id=team_id" json:"members,omitempty"`
}

func NewTeam(name string) *Team {
	return &Team{Name: name}
}

func (t *Team) String() string {
	return fmt.Sprintf("Team(id=%d, name=%s)", t.ID, t.Name)
}

// Member optionally belongs to a team. An empty Username is stored as NULL
// and a zero TeamID means no team.
type Member struct {
	bun.BaseModel `bun:"table:members,alias:members"`

	ID       int64  `bun:"id,pk,autoincrement" json:"id"`
	Username string `bun:"username,nullzero" json:"username"`
	Age      int    `bun:"age,notnull" json:"age"`
	TeamID   int64  `bun:"team_id,nullzero" json:"team_id,omitempty"`
	Team     *Team  `bun:"rel:belongs-to,join:team_id=id" json:"team,omitempty"`
}

// NewMember creates a member; team may be nil.
func NewMember(username string, age int, team *Team) *Member {
	m := &Member{Username: username, Age: age}
	m.ChangeTeam(team)
	return m
}

// ChangeTeam moves the member to team, or out of any team when team is nil.
func (m *Member) ChangeTeam(team *Team) {
	m.Team = team
	if team == nil {
		m.TeamID = 0
		return
	}
	m.TeamID = team.ID
}

func (m *Member) String() string {
	return fmt.Sprintf("Member(id=%d, username=%s, age=%d)", m.ID, m.Username, m.Age)
}
