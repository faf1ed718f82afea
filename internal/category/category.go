package category

// Travel category metadata: verification windows and refund tiers.
//
// These tables are configuration, not business state. They are compiled in
// and keyed by category slug; a booking may carry a per-booking override of
// the refund tiers, which always wins over the table here.

// Tier maps proximity to departure to a refund percentage.
// Tier lists are ordered descending by HoursBeforeDeparture.
type Tier struct {
	HoursBeforeDeparture int `json:"hours_before_departure"`
	RefundPercentage     int `json:"refund_percentage"`
}

const (
	SlugFlights  = "flights"
	SlugHotels   = "hotels"
	SlugTrains   = "trains"
	SlugBus      = "bus"
	SlugCab      = "cab"
	SlugPackages = "packages"
)

// DefaultVerificationDays applies to unknown slugs.
const DefaultVerificationDays = 7

var travelSlugs = map[string]string{
	SlugFlights:  "Flights",
	SlugHotels:   "Hotels",
	SlugTrains:   "Trains",
	SlugBus:      "Bus",
	SlugCab:      "Cab",
	SlugPackages: "Package Tours",
}

// verificationDays is the mandatory delay (days after trip completion)
// before cashback may be credited.
var verificationDays = map[string]int{
	SlugFlights:  3,
	SlugHotels:   2,
	SlugTrains:   2,
	SlugBus:      1,
	SlugCab:      1,
	SlugPackages: 7,
}

var refundTiers = map[string][]Tier{
	SlugFlights: {
		{HoursBeforeDeparture: 72, RefundPercentage: 100},
		{HoursBeforeDeparture: 48, RefundPercentage: 75},
		{HoursBeforeDeparture: 24, RefundPercentage: 50},
		{HoursBeforeDeparture: 0, RefundPercentage: 0},
	},
	SlugHotels: {
		{HoursBeforeDeparture: 72, RefundPercentage: 100},
		{HoursBeforeDeparture: 48, RefundPercentage: 75},
		{HoursBeforeDeparture: 24, RefundPercentage: 50},
		{HoursBeforeDeparture: 0, RefundPercentage: 25},
	},
	SlugTrains: {
		{HoursBeforeDeparture: 48, RefundPercentage: 100},
		{HoursBeforeDeparture: 24, RefundPercentage: 75},
		{HoursBeforeDeparture: 4, RefundPercentage: 50},
		{HoursBeforeDeparture: 0, RefundPercentage: 0},
	},
	SlugBus: {
		{HoursBeforeDeparture: 24, RefundPercentage: 100},
		{HoursBeforeDeparture: 12, RefundPercentage: 75},
		{HoursBeforeDeparture: 4, RefundPercentage: 50},
		{HoursBeforeDeparture: 0, RefundPercentage: 0},
	},
	SlugCab: {
		{HoursBeforeDeparture: 2, RefundPercentage: 100},
		{HoursBeforeDeparture: 1, RefundPercentage: 50},
		{HoursBeforeDeparture: 0, RefundPercentage: 0},
	},
	SlugPackages: {
		{HoursBeforeDeparture: 168, RefundPercentage: 100},
		{HoursBeforeDeparture: 72, RefundPercentage: 75},
		{HoursBeforeDeparture: 24, RefundPercentage: 50},
		{HoursBeforeDeparture: 0, RefundPercentage: 25},
	},
}

// IsTravelCategory reports whether a slug belongs to the travel vertical.
func IsTravelCategory(slug string) bool {
	_, ok := travelSlugs[slug]
	return ok
}

// DisplayName returns a human-readable category name, or "Travel" for
// unknown slugs.
func DisplayName(slug string) string {
	if name, ok := travelSlugs[slug]; ok {
		return name
	}
	return "Travel"
}

// VerificationDays returns the verification window for a category.
func VerificationDays(slug string) int {
	if d, ok := verificationDays[slug]; ok {
		return d
	}
	return DefaultVerificationDays
}

// RefundTiers returns the refund tier table for a category. Unknown slugs
// fall back to the flights table, the strictest of the defaults.
func RefundTiers(slug string) []Tier {
	if tiers, ok := refundTiers[slug]; ok {
		return tiers
	}
	return refundTiers[SlugFlights]
}
