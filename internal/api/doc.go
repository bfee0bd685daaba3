// Package api serves the small public HTTP surface: product reads backed by
// the price cache, price tracker and newsletter signups, and the view and
// comparison beacons the front end fires.
//
// Exports (finder/comparison/search JSON) are static files written by the
// export job and served by the web tier, not by this API.
package api
