// Package storage is the persistence layer: a single SQLite database holding
// the product catalog, per-retailer offers, consolidated price history, the
// denormalized price cache, price-alert trackers, newsletter subscribers, the
// email outbox and view/comparison counters.
//
// Schema changes are applied as sequential embedded migrations tracked in
// PRAGMA user_version.
package storage
