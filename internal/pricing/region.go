package pricing

import "strings"

// Region is one of the five canonical commercial regions prices are
// consolidated into.
type Region string

const (
	RegionUS Region = "US"
	RegionGB Region = "GB"
	RegionEU Region = "EU"
	RegionCA Region = "CA"
	RegionAU Region = "AU"
)

// Regions lists all regions in display order.
func Regions() []Region {
	return []Region{RegionUS, RegionGB, RegionEU, RegionCA, RegionAU}
}

// Currency returns the region's native display currency.
func (r Region) Currency() string {
	switch r {
	case RegionUS:
		return "USD"
	case RegionGB:
		return "GBP"
	case RegionEU:
		return "EUR"
	case RegionCA:
		return "CAD"
	case RegionAU:
		return "AUD"
	}
	return ""
}

// euCountries is the EU member-state set used for bucketing. GB is
// deliberately absent: it maps to its own region.
var euCountries = map[string]bool{
	"AT": true, "BE": true, "BG": true, "HR": true, "CY": true, "CZ": true,
	"DK": true, "EE": true, "FI": true, "FR": true, "DE": true, "GR": true,
	"HU": true, "IE": true, "IT": true, "LV": true, "LT": true, "LU": true,
	"MT": true, "NL": true, "PL": true, "PT": true, "RO": true, "SK": true,
	"SI": true, "ES": true, "SE": true,
}

// BucketCountry maps an offer's country (ISO 3166-1 alpha-2) into a region.
// Unknown countries fall back to the currency; offers that map neither way are
// dropped by the caller.
func BucketCountry(country, currency string) (Region, bool) {
	switch strings.ToUpper(strings.TrimSpace(country)) {
	case "US":
		return RegionUS, true
	case "GB", "UK":
		return RegionGB, true
	case "CA":
		return RegionCA, true
	case "AU":
		return RegionAU, true
	case "":
		// fall through to currency
	default:
		if euCountries[strings.ToUpper(strings.TrimSpace(country))] {
			return RegionEU, true
		}
	}
	switch strings.ToUpper(strings.TrimSpace(currency)) {
	case "USD":
		return RegionUS, true
	case "GBP":
		return RegionGB, true
	case "EUR":
		return RegionEU, true
	case "CAD":
		return RegionCA, true
	case "AUD":
		return RegionAU, true
	}
	return "", false
}
