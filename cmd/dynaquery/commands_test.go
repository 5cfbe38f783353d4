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

package main

import (
	"bytes"
	"encoding/json"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomoncle/dynaquery/database"
)

func execute(t *testing.T, cfgPath string, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(append([]string{"--config", cfgPath}, args...))
	err := root.Execute()
	return out.String(), err
}

type searchPage struct {
	Total int `json:"total"`
	Items []struct {
		Username *string `json:"username"`
		Age      int     `json:"age"`
		TeamName *string `json:"team_name"`
	} `json:"items"`
}

func TestCommands(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "members")
	cfgPath := writeConfig(t, "log:\n  level: error\ndatabase:\n  type: sqlite\n  dbname: "+dbPath+"\n")
	t.Cleanup(func() { _ = database.CloseDB() })

	out, err := execute(t, cfgPath, "init", "--members", "10")
	require.NoError(t, err)
	assert.JSONEq(t, `{"members": 10}`, out)

	out, err = execute(t, cfgPath, "search", "--team", "teamB", "--age-goe", "3", "--sort", "age:desc", "--limit", "2")
	require.NoError(t, err)
	var page searchPage
	require.NoError(t, json.Unmarshal([]byte(out), &page))
	assert.Equal(t, 4, page.Total)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "member9", *page.Items[0].Username)
	assert.Equal(t, "member7", *page.Items[1].Username)
	assert.Equal(t, "teamB", *page.Items[0].TeamName)

	out, err = execute(t, cfgPath, "search", "--username", "member0")
	require.NoError(t, err)
	var rows []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "teamA", rows[0]["team_name"])

	out, err = execute(t, cfgPath, "stats", "--by-team")
	require.NoError(t, err)
	var byTeam []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &byTeam))
	require.Len(t, byTeam, 2)
	assert.Equal(t, "teamA", byTeam[0]["team_name"])
	assert.InDelta(t, 4.0, byTeam[0]["avg"], 1e-9)

	out, err = execute(t, cfgPath, "bump-age", "--age-loe", "1", "--by", "10")
	require.NoError(t, err)
	assert.JSONEq(t, `{"rows_affected": 2}`, out)

	out, err = execute(t, cfgPath, "stats")
	require.NoError(t, err)
	var stats map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.InDelta(t, 65.0, stats["sum"], 1e-9)

	out, err = execute(t, cfgPath, "purge", "--team", "teamA")
	require.NoError(t, err)
	assert.JSONEq(t, `{"rows_affected": 5}`, out)

	_, err = execute(t, cfgPath, "search", "--offset", "1")
	assert.ErrorIs(t, err, database.ErrUnorderedPage)

	_, err = execute(t, cfgPath, "purge")
	assert.ErrorIs(t, err, errPurgeEverything)
}
