package category

import "testing"

func TestIsTravelCategory(t *testing.T) {
	for _, slug := range []string{"flights", "hotels", "trains", "bus", "cab", "packages"} {
		if !IsTravelCategory(slug) {
			t.Fatalf("expected %q to be a travel category", slug)
		}
	}
	if IsTravelCategory("electronics") {
		t.Fatalf("expected electronics to not be a travel category")
	}
	if IsTravelCategory("") {
		t.Fatalf("expected empty slug to not be a travel category")
	}
}

func TestVerificationDays(t *testing.T) {
	if got := VerificationDays("flights"); got != 3 {
		t.Fatalf("flights: expected 3, got %d", got)
	}
	if got := VerificationDays("packages"); got != 7 {
		t.Fatalf("packages: expected 7, got %d", got)
	}
	if got := VerificationDays("cab"); got != 1 {
		t.Fatalf("cab: expected 1, got %d", got)
	}
	// unknown slug falls back to the default window
	if got := VerificationDays("spa"); got != DefaultVerificationDays {
		t.Fatalf("unknown: expected %d, got %d", DefaultVerificationDays, got)
	}
}

func TestRefundTiersSortedDescending(t *testing.T) {
	for _, slug := range []string{"flights", "hotels", "trains", "bus", "cab", "packages"} {
		tiers := RefundTiers(slug)
		if len(tiers) == 0 {
			t.Fatalf("%s: no tiers", slug)
		}
		for i := 1; i < len(tiers); i++ {
			if tiers[i].HoursBeforeDeparture >= tiers[i-1].HoursBeforeDeparture {
				t.Fatalf("%s: tiers not sorted descending at index %d", slug, i)
			}
		}
		if tiers[len(tiers)-1].HoursBeforeDeparture != 0 {
			t.Fatalf("%s: last tier must cover 0 hours", slug)
		}
	}
}

func TestRefundTiersUnknownFallsBackToFlights(t *testing.T) {
	got := RefundTiers("spa")
	want := RefundTiers("flights")
	if len(got) != len(want) {
		t.Fatalf("expected flights fallback, got %d tiers", len(got))
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("tier %d mismatch: %+v vs %+v", i, got[i], want[i])
		}
	}
}
