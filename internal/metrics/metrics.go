// Package metrics exposes the engine's lifecycle counters. They are
// registered on the default prometheus registry and served on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "workflows_jobs_created_total",
		Help: "Number of jobs created.",
	})

	JobsFinished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "workflows_jobs_finished_total",
		Help: "Number of jobs that reached a final state.",
	})

	TasksCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "workflows_tasks_created_total",
		Help: "Number of tasks created, including initial tasks.",
	})

	TasksStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "workflows_tasks_started_total",
		Help: "Number of tasks started.",
	})

	TasksFinished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "workflows_tasks_finished_total",
		Help: "Number of tasks finished normally.",
	})

	TasksCanceled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "workflows_tasks_canceled_total",
		Help: "Number of tasks canceled by terminal-branch termination.",
	})

	GuardViolations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "workflows_guard_violations_total",
		Help: "Number of task transitions rejected by a lifecycle guard.",
	})

	HandlerFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "workflows_event_handler_failures_total",
		Help: "Number of event handler invocations that failed or panicked.",
	})
)
