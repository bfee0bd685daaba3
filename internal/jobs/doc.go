// Package jobs implements the daemon's scheduled work: pulling retailer
// feeds, snapshotting daily prices, rebuilding the denormalized price cache,
// firing tracker notifications, building the weekly newsletter, dispatching
// the email outbox, writing the static JSON exports and pruning old data.
//
// Each job is a small struct with a Run(ctx) method the scheduler calls; jobs
// hold no goroutines of their own.
package jobs
