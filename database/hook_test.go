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

package database

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type recordedLog struct {
	level  string
	msg    string
	fields []interface{}
}

type recordingLogger struct {
	mu      sync.Mutex
	entries []recordedLog
}

func (l *recordingLogger) record(level, msg string, fields []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, recordedLog{level: level, msg: msg, fields: fields})
}

func (l *recordingLogger) SetLevel(LogLevel)                       {}
func (l *recordingLogger) Debug(msg string, fields ...interface{}) { l.record("debug", msg, fields) }
func (l *recordingLogger) Info(msg string, fields ...interface{})  { l.record("info", msg, fields) }
func (l *recordingLogger) Warn(msg string, fields ...interface{})  { l.record("warn", msg, fields) }
func (l *recordingLogger) Error(msg string, fields ...interface{}) { l.record("error", msg, fields) }

func (l *recordingLogger) count(level string) (n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e.level == level {
			n++
		}
	}
	return n
}

func runHook(hook bun.QueryHook, event *bun.QueryEvent) {
	ctx := hook.BeforeQuery(context.Background(), event)
	hook.AfterQuery(ctx, event)
}

func TestSlowQueryHook(t *testing.T) {
	t.Run("slow statement warns", func(t *testing.T) {
		logger := &recordingLogger{}
		hook := NewSlowQueryHook(10*time.Millisecond, logger)
		runHook(hook, &bun.QueryEvent{Query: "SELECT 1", StartTime: time.Now().Add(-time.Second)})
		assert.Equal(t, 1, logger.count("warn"))
	})

	t.Run("fast statement is quiet", func(t *testing.T) {
		logger := &recordingLogger{}
		hook := NewSlowQueryHook(time.Hour, logger)
		runHook(hook, &bun.QueryEvent{Query: "SELECT 1", StartTime: time.Now()})
		assert.Zero(t, logger.count("warn"))
	})

	t.Run("failed statement is quiet", func(t *testing.T) {
		logger := &recordingLogger{}
		hook := NewSlowQueryHook(10*time.Millisecond, logger)
		runHook(hook, &bun.QueryEvent{Query: "SELECT 1", StartTime: time.Now().Add(-time.Second), Err: errors.New("boom")})
		assert.Zero(t, logger.count("warn"))
	})

	t.Run("disabled from environment", func(t *testing.T) {
		t.Setenv("BUN_SLOW_QUERY", "0")
		logger := &recordingLogger{}
		hook := NewSlowQueryHook(10*time.Millisecond, logger)
		runHook(hook, &bun.QueryEvent{Query: "SELECT 1", StartTime: time.Now().Add(-time.Second)})
		assert.Zero(t, logger.count("warn"))
	})

	t.Run("silent mode", func(t *testing.T) {
		EnableBunSqlSilent(true)
		defer EnableBunSqlSilent(false)
		logger := &recordingLogger{}
		hook := NewSlowQueryHook(10*time.Millisecond, logger)
		runHook(hook, &bun.QueryEvent{Query: "CREATE TABLE t (id int)", StartTime: time.Now().Add(-time.Second)})
		assert.Zero(t, logger.count("warn"))
	})
}

func TestMetricsHook(t *testing.T) {
	reg := prometheus.NewRegistry()
	hook, err := NewMetricsHook(reg, "sqlite")
	require.NoError(t, err)

	runHook(hook, &bun.QueryEvent{Query: "SELECT * FROM members", StartTime: time.Now()})
	runHook(hook, &bun.QueryEvent{Query: "SELECT * FROM members", StartTime: time.Now(), Err: sql.ErrNoRows})
	runHook(hook, &bun.QueryEvent{
		Query:     "INSERT INTO teams (name) VALUES ('teamA')",
		StartTime: time.Now(),
		Err:       errors.New("constraint failed: UNIQUE constraint failed: teams.name (2067)"),
	})

	assert.Equal(t, 1.0, testutil.ToFloat64(hook.failures.WithLabelValues("sqlite", "INSERT", "duplicate key")))
	assert.Equal(t, 1, testutil.CollectAndCount(hook.failures))
	assert.Equal(t, 2, testutil.CollectAndCount(hook.duration), "one series for SELECT ok and one for INSERT error")

	again, err := NewMetricsHook(reg, "sqlite")
	require.NoError(t, err)
	assert.Same(t, hook.duration, again.duration)
	assert.Same(t, hook.failures, again.failures)
}

func TestTracingHook(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	hook := NewTracingHookWithProvider(tp, "sqlite", "members")

	runHook(hook, &bun.QueryEvent{Query: "SELECT * FROM members", StartTime: time.Now()})
	runHook(hook, &bun.QueryEvent{Query: "DELETE FROM members", StartTime: time.Now(), Err: errors.New("boom")})

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	assert.Equal(t, "db.SELECT", spans[0].Name())
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
	attrs := attribute.NewSet(spans[0].Attributes()...)
	system, ok := attrs.Value("db.system")
	require.True(t, ok)
	assert.Equal(t, "sqlite", system.AsString())
	statement, ok := attrs.Value("db.statement")
	require.True(t, ok)
	assert.Equal(t, "SELECT * FROM members", statement.AsString())

	assert.Equal(t, "db.DELETE", spans[1].Name())
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Equal(t, "boom", spans[1].Status().Description)
}
