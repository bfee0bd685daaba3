// Package sched triggers and executes the daemon's background jobs.
//
// Jobs are registered by name with a schedule string (cron spec, @descriptor,
// Go duration or HH:MM shorthand) and run on a small worker pool. A schedule
// firing while the same job is still running (or queued) is skipped, so a slow
// run never piles up behind itself. Failed runs are retried with exponential
// backoff and jitter before the run counts as failed.
//
// Lifecycle events (job.started / job.finished / job.failed) are published on
// the event bus for observers such as the ops alerter.
package sched
