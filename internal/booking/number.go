package booking

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"travel-platform/internal/category"
)

var numberPrefixes = map[string]string{
	category.SlugFlights:  "FLT",
	category.SlugHotels:   "HTL",
	category.SlugTrains:   "TRN",
	category.SlugBus:      "BUS",
	category.SlugCab:      "CAB",
	category.SlugPackages: "PKG",
}

const numberAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// NewBookingNumber generates a human-readable, category-prefixed booking
// number, e.g. "FLT-20260901-7KQ2M". Uniqueness is enforced by the store;
// the random suffix keeps collisions rare enough for a retry loop.
func NewBookingNumber(slug string, at time.Time) string {
	prefix, ok := numberPrefixes[slug]
	if !ok {
		prefix = "TRV"
	}
	return fmt.Sprintf("%s-%s-%s", prefix, at.Format("20060102"), randomSuffix(5))
}

func randomSuffix(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing is unrecoverable for ID generation; fall back
		// to a timestamp-derived suffix rather than panic.
		return strings.ToUpper(fmt.Sprintf("%05x", time.Now().UnixNano()%0xfffff))
	}
	var b strings.Builder
	for _, c := range buf {
		b.WriteByte(numberAlphabet[int(c)%len(numberAlphabet)])
	}
	return b.String()
}
