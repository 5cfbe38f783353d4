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

// Package testdb opens throwaway databases with the member schema for tests.
package testdb

import (
	"context"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/tomoncle/dynaquery/database"
	"github.com/tomoncle/dynaquery/model"
	"github.com/uptrace/bun"
)

// Open returns an empty in-memory sqlite database with the member and team
// tables. Each call gets its own database.
func Open(t testing.TB) *bun.DB {
	t.Helper()
	cfg := database.DefaultConnectionConfig()
	cfg.Type = "sqlite"
	cfg.InMemory = true
	cfg.DBName = "dynaquery_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	return connect(t, cfg)
}

// OpenPostgres starts a Postgres container and returns a database with the
// member and team tables. It skips in short mode.
func OpenPostgres(t testing.TB) *bun.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	ctx := context.Background()
	container, err := postgres.Run(ctx,
		"postgres:17-alpine",
		postgres.WithDatabase("dynaquery"),
		postgres.WithUsername("dynaquery"),
		postgres.WithPassword("dynaquery"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)
	portNum, err := strconv.Atoi(port.Port())
	require.NoError(t, err)

	cfg := database.DefaultConnectionConfig()
	cfg.Type = "postgres"
	cfg.Host = host
	cfg.Port = portNum
	cfg.Username = "dynaquery"
	cfg.Password = "dynaquery"
	cfg.DBName = "dynaquery"
	return connect(t, cfg)
}

func connect(t testing.TB, cfg *database.ConnectionConfig) *bun.DB {
	t.Helper()
	cfg.Health.Interval = 0
	cfg.Telemetry.SlowQueryTime = 0

	ctx := context.Background()
	manager := database.NewDatabaseManager(cfg)
	require.NoError(t, manager.Connect(ctx))
	t.Cleanup(func() { _ = manager.Disconnect() })
	require.NoError(t, manager.EnsureSchema(ctx, &database.SchemaConfig{EnableForeignKey: true}))
	return manager.GetDB()
}

// Fixture is the seeded data set: member1 and member2 (ages 10, 20) in
// teamA, member3 and member4 (ages 30, 40) in teamB.
type Fixture struct {
	TeamA   *model.Team
	TeamB   *model.Team
	Members []*model.Member
}

// Seed inserts the fixture outside any unit of work.
func Seed(t testing.TB, db *bun.DB) *Fixture {
	t.Helper()
	ctx := context.Background()
	f := &Fixture{TeamA: model.NewTeam("teamA"), TeamB: model.NewTeam("teamB")}
	teams := []*model.Team{f.TeamA, f.TeamB}
	_, err := db.NewInsert().Model(&teams).Exec(ctx)
	require.NoError(t, err)

	f.Members = []*model.Member{
		model.NewMember("member1", 10, f.TeamA),
		model.NewMember("member2", 20, f.TeamA),
		model.NewMember("member3", 30, f.TeamB),
		model.NewMember("member4", 40, f.TeamB),
	}
	_, err = db.NewInsert().Model(&f.Members).Exec(ctx)
	require.NoError(t, err)
	return f
}

// AddMember inserts one more member. An empty username is stored as NULL and
// a nil team leaves the member without one.
func AddMember(t testing.TB, db *bun.DB, username string, age int, team *model.Team) *model.Member {
	t.Helper()
	m := model.NewMember(username, age, team)
	_, err := db.NewInsert().Model(m).Exec(context.Background())
	require.NoError(t, err)
	return m
}

// Usernames lists the usernames of rows in order; an absent name is "".
func Usernames(rows []model.MemberTeamDto) []string {
	names := make([]string, len(rows))
	for i, r := range rows {
		names[i] = r.Username.OrElse("")
	}
	return names
}
