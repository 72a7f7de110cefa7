package domain

import (
	"errors"
	"math"
	"testing"
)

func TestUrgencyOrderingIsTotal(t *testing.T) {
	t.Parallel()

	ordered := []UrgencyLevel{UrgencyMinimal, UrgencyLow, UrgencyMedium, UrgencyHigh, UrgencyCritical}
	for i := range ordered {
		for j := range ordered {
			got := ordered[i].Outranks(ordered[j])
			if got != (i > j) {
				t.Fatalf("%s outranks %s = %v", ordered[i], ordered[j], got)
			}
		}
	}
	if UrgencyLevel("URGENT").Valid() {
		t.Fatalf("expected non-canonical level to be invalid")
	}
	if UrgencyMinimal.Outranks(UrgencyLevel("bogus")) != true {
		t.Fatalf("expected canonical level to outrank unknown")
	}
}

func TestParseUrgencyLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]UrgencyLevel{
		"critical": UrgencyCritical,
		" HIGH ":   UrgencyHigh,
		"[MEDIUM]": UrgencyMedium,
		"**low**":  UrgencyLow,
		"Minimal":  UrgencyMinimal,
	}
	for input, want := range cases {
		got, err := ParseUrgencyLevel(input)
		if err != nil {
			t.Fatalf("parse %q failed: %v", input, err)
		}
		if got != want {
			t.Fatalf("parse %q = %s, want %s", input, got, want)
		}
	}

	if _, err := ParseUrgencyLevel("SEVERE"); !errors.Is(err, ErrUnknownUrgency) {
		t.Fatalf("expected ErrUnknownUrgency, got %v", err)
	}
}

func TestESILevelMapping(t *testing.T) {
	t.Parallel()

	want := map[ESILevel]UrgencyLevel{
		ESILevel1: UrgencyCritical,
		ESILevel2: UrgencyHigh,
		ESILevel3: UrgencyMedium,
		ESILevel4: UrgencyLow,
		ESILevel5: UrgencyMinimal,
	}
	for esi, level := range want {
		if got := esi.Urgency(); got != level {
			t.Fatalf("ESI %d -> %s, want %s", esi, got, level)
		}
		if esi.TimeToResponse() == "TBD" {
			t.Fatalf("expected target time for ESI %d", esi)
		}
	}
	if ESILevel(0).Valid() || ESILevel(6).Valid() {
		t.Fatalf("expected out-of-range ESI levels to be invalid")
	}
}

func TestClampScore(t *testing.T) {
	t.Parallel()

	if ClampScore(-4) != 0 || ClampScore(140) != 100 || ClampScore(42.5) != 42.5 {
		t.Fatalf("unexpected clamp results")
	}
	if ClampScore(math.Inf(1)) != 100 || ClampScore(math.Inf(-1)) != 0 {
		t.Fatalf("expected infinities to clamp to the bounds")
	}
	if got := ClampScore(math.NaN()); got != 50 {
		t.Fatalf("expected NaN to map to 50, got %v", got)
	}
}

func TestParseLocaleAliases(t *testing.T) {
	t.Parallel()

	for _, alias := range []string{"en", "EN", "english", " en-US "} {
		got, err := ParseLocale(alias)
		if err != nil || got != LocaleEnglish {
			t.Fatalf("parse %q = %q, %v", alias, got, err)
		}
	}
	for _, alias := range []string{"ja", "jp", "Japanese"} {
		got, err := ParseLocale(alias)
		if err != nil || got != LocaleJapanese {
			t.Fatalf("parse %q = %q, %v", alias, got, err)
		}
	}
	if _, err := ParseLocale("de"); !errors.Is(err, ErrUnsupportedLocale) {
		t.Fatalf("expected ErrUnsupportedLocale, got %v", err)
	}
}
