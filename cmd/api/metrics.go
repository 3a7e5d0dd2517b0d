package main

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/davidleathers/commission-protection-backend/internal/service/scheduler"
)

// registerProcessMetrics adds runtime, build and connection-pool collectors
// to the registry served at /metrics
func registerProcessMetrics(reg *prometheus.Registry, version, environment string, pool *pgxpool.Pool) {
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	f := promauto.With(reg)
	f.NewGauge(prometheus.GaugeOpts{
		Namespace:   "cpb",
		Name:        "build_info",
		Help:        "Build information for the running binary.",
		ConstLabels: prometheus.Labels{"version": version, "environment": environment},
	}).Set(1)

	if pool == nil {
		return
	}
	stat := func(fn func(*pgxpool.Stat) float64) func() float64 {
		return func() float64 { return fn(pool.Stat()) }
	}
	f.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "cpb", Subsystem: "db_pool", Name: "acquired_connections",
		Help: "Connections currently checked out of the pool.",
	}, stat(func(s *pgxpool.Stat) float64 { return float64(s.AcquiredConns()) }))
	f.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "cpb", Subsystem: "db_pool", Name: "idle_connections",
		Help: "Idle connections held by the pool.",
	}, stat(func(s *pgxpool.Stat) float64 { return float64(s.IdleConns()) }))
	f.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "cpb", Subsystem: "db_pool", Name: "max_connections",
		Help: "Configured pool ceiling.",
	}, stat(func(s *pgxpool.Stat) float64 { return float64(s.MaxConns()) }))
	f.NewCounterFunc(prometheus.CounterOpts{
		Namespace: "cpb", Subsystem: "db_pool", Name: "acquire_total",
		Help: "Cumulative successful acquires.",
	}, stat(func(s *pgxpool.Stat) float64 { return float64(s.AcquireCount()) }))
}

// registerSchedulerMetrics exposes per-task run and failure counts
func registerSchedulerMetrics(reg *prometheus.Registry, s *scheduler.Scheduler) {
	f := promauto.With(reg)
	for _, st := range s.Status() {
		name := st.Name
		lookup := func(pick func(scheduler.TaskStatus) int) func() float64 {
			return func() float64 {
				for _, cur := range s.Status() {
					if cur.Name == name {
						return float64(pick(cur))
					}
				}
				return 0
			}
		}
		labels := prometheus.Labels{"task": name}
		f.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "cpb", Subsystem: "scheduler", Name: "task_runs_total",
			Help: "Completed runs per maintenance task.", ConstLabels: labels,
		}, lookup(func(t scheduler.TaskStatus) int { return t.Runs }))
		f.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "cpb", Subsystem: "scheduler", Name: "task_failures_total",
			Help: "Failed runs per maintenance task.", ConstLabels: labels,
		}, lookup(func(t scheduler.TaskStatus) int { return t.Failures }))
	}
}
