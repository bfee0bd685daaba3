// Package pricing holds the pure price math: bucketing raw per-country offers
// into the five commercial regions (US/GB/EU/CA/AU), consolidating a region's
// offers into one display price, rolling 3/6/12-month statistics over daily
// samples, and deriving spec-based value metrics.
//
// Everything here is side-effect free; the cache rebuild job feeds it rows
// from storage and writes the results back.
package pricing
