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
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/uptrace/bun"
)

// MetricsHook records query latency and failures as Prometheus metrics,
// labelled by database system, operation and outcome.
type MetricsHook struct {
	system   string
	duration *prometheus.HistogramVec
	failures *prometheus.CounterVec
}

var _ bun.QueryHook = (*MetricsHook)(nil)

// NewMetricsHook registers the query collectors with reg. Collectors that
// are already registered are reused.
func NewMetricsHook(reg prometheus.Registerer, system string) (*MetricsHook, error) {
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "dynaquery",
		Subsystem: "db",
		Name:      "query_duration_seconds",
		Help:      "Duration of SQL statements executed through bun.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"system", "operation", "status"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dynaquery",
		Subsystem: "db",
		Name:      "query_errors_total",
		Help:      "SQL statements that returned an error.",
	}, []string{"system", "operation", "kind"})

	var err error
	if duration, err = registerOrReuse(reg, duration); err != nil {
		return nil, err
	}
	if failures, err = registerOrReuse(reg, failures); err != nil {
		return nil, err
	}
	return &MetricsHook{system: system, duration: duration, failures: failures}, nil
}

func registerOrReuse[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (h *MetricsHook) BeforeQuery(ctx context.Context, event *bun.QueryEvent) context.Context {
	return ctx
}

func (h *MetricsHook) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	op := event.Operation()
	status := "ok"
	if event.Err != nil && !errors.Is(event.Err, sql.ErrNoRows) {
		status = "error"
		_, kind := IsSqlError(event.Err)
		h.failures.WithLabelValues(h.system, op, kind.String()).Inc()
	}
	h.duration.WithLabelValues(h.system, op, status).Observe(time.Since(event.StartTime).Seconds())
}
