package pricing

import (
	"sort"
	"strings"
)

// Offer is one retailer's current price in one country.
type Offer struct {
	Retailer string
	Country  string
	Currency string
	Price    float64
	InStock  bool
	URL      string
}

// RegionPrice is the consolidated display price for one region.
type RegionPrice struct {
	Region   Region
	Price    float64
	Currency string
	Retailer string
	URL      string
	InStock  bool
}

// Consolidate buckets offers by region and picks one display price per region.
//
// Selection rules, in order:
//  1. in-stock offers beat out-of-stock offers
//  2. lower price wins
//  3. retailer name breaks exact price ties (stable output)
//
// When every offer in a region is out of stock, the cheapest out-of-stock
// offer is still reported (with InStock=false) so the front end can show
// "last seen at". Offers with a non-positive price or that map to no region
// are dropped. Prices are never converted: an offer whose currency is not
// the region's native one (a CAD price from a US retailer, SEK inside the
// EU bucket) is dropped rather than compared against unlike amounts.
func Consolidate(offers []Offer) map[Region]RegionPrice {
	buckets := make(map[Region][]Offer)
	for _, o := range offers {
		if o.Price <= 0 {
			continue
		}
		region, ok := BucketCountry(o.Country, o.Currency)
		if !ok {
			continue
		}
		if cur := strings.ToUpper(strings.TrimSpace(o.Currency)); cur != "" && cur != region.Currency() {
			continue
		}
		buckets[region] = append(buckets[region], o)
	}

	out := make(map[Region]RegionPrice, len(buckets))
	for region, list := range buckets {
		sort.SliceStable(list, func(i, j int) bool {
			if list[i].InStock != list[j].InStock {
				return list[i].InStock
			}
			if list[i].Price != list[j].Price {
				return list[i].Price < list[j].Price
			}
			return list[i].Retailer < list[j].Retailer
		})
		best := list[0]
		out[region] = RegionPrice{
			Region:   region,
			Price:    best.Price,
			Currency: best.Currency,
			Retailer: best.Retailer,
			URL:      best.URL,
			InStock:  best.InStock,
		}
	}
	return out
}
