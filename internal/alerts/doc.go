// Package alerts pushes job failures to an ops Telegram chat.
//
// It listens on the event bus for job.failed events, collapses repeats of the
// same job inside a dedup window and rate-limits sends so a flapping job
// cannot flood the chat.
package alerts
