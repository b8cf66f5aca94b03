package identity_test

import (
	"errors"
	"path/filepath"
	"testing"

	"towline/internal/faults"
	"towline/internal/identity"
)

func TestNormalizeLocatorInsignificantDecoration(t *testing.T) {
	cases := []struct {
		name string
		a    string
		b    string
	}{
		{"scheme and host case", "HTTP://Example.com/f.zip", "http://example.com/f.zip"},
		{"default http port", "http://example.com:80/f.zip", "http://example.com/f.zip"},
		{"default https port", "https://example.com:443/f.zip", "https://example.com/f.zip"},
		{"fragment", "https://example.com/f.zip#section", "https://example.com/f.zip"},
		{"query ordering", "https://example.com/f.zip?b=2&a=1", "https://example.com/f.zip?a=1&b=2"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			na, err := identity.NormalizeLocator(tc.a)
			if err != nil {
				t.Fatalf("NormalizeLocator(%q): %v", tc.a, err)
			}
			nb, err := identity.NormalizeLocator(tc.b)
			if err != nil {
				t.Fatalf("NormalizeLocator(%q): %v", tc.b, err)
			}
			if na != nb {
				t.Fatalf("expected identical normalization, got %q vs %q", na, nb)
			}
			if identity.Fingerprint(na) != identity.Fingerprint(nb) {
				t.Fatal("expected identical fingerprints")
			}
		})
	}
}

func TestNormalizeLocatorSignificantDifferences(t *testing.T) {
	cases := []struct {
		name string
		a    string
		b    string
	}{
		{"path segment", "http://example.com/f.zip", "http://example.com/g.zip"},
		{"parameter value", "http://example.com/f.zip?v=1", "http://example.com/f.zip?v=2"},
		{"non-default port", "http://example.com:8080/f.zip", "http://example.com/f.zip"},
		{"host", "http://example.com/f.zip", "http://example.org/f.zip"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			na, err := identity.NormalizeLocator(tc.a)
			if err != nil {
				t.Fatalf("NormalizeLocator(%q): %v", tc.a, err)
			}
			nb, err := identity.NormalizeLocator(tc.b)
			if err != nil {
				t.Fatalf("NormalizeLocator(%q): %v", tc.b, err)
			}
			if na == nb {
				t.Fatalf("expected distinct normalization for %q and %q", tc.a, tc.b)
			}
		})
	}
}

func TestNormalizeLocatorRejectsMalformedInput(t *testing.T) {
	for _, raw := range []string{"", "   ", "f.zip", "example.com/f.zip", "://nope", "http c://x"} {
		if _, err := identity.NormalizeLocator(raw); !errors.Is(err, faults.ErrInvalidLocator) {
			t.Fatalf("NormalizeLocator(%q): expected invalid locator, got %v", raw, err)
		}
	}
}

func TestFingerprintShape(t *testing.T) {
	fp := identity.Fingerprint("https://example.com/f.zip")
	if len(fp) != 16 {
		t.Fatalf("expected 16 hex chars, got %d (%q)", len(fp), fp)
	}
	for _, r := range fp {
		if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'f') {
			t.Fatalf("expected lowercase hex, got %q", fp)
		}
	}
	if fp != identity.Fingerprint("https://example.com/f.zip") {
		t.Fatal("fingerprint must be deterministic")
	}
}

func TestCanonicalDestinationResolvesRelativeSegments(t *testing.T) {
	got, err := identity.CanonicalDestination("/data/downloads/../files/./f.zip")
	if err != nil {
		t.Fatalf("CanonicalDestination: %v", err)
	}
	if got != filepath.Join("/data", "files", "f.zip") {
		t.Fatalf("unexpected canonical destination: %q", got)
	}

	if _, err := identity.CanonicalDestination(""); !errors.Is(err, faults.ErrInvalidLocator) {
		t.Fatalf("expected invalid destination error, got %v", err)
	}
}

func TestNewKeyRecomputesFingerprint(t *testing.T) {
	a, err := identity.NewKey("HTTP://Example.com:80/f.zip?b=2&a=1", "/data/f.zip")
	if err != nil {
		t.Fatalf("NewKey: %v", err)
	}
	b, err := identity.NewKey("http://example.com/f.zip?a=1&b=2", "/data/other/../f.zip")
	if err != nil {
		t.Fatalf("NewKey: %v", err)
	}
	if a != b {
		t.Fatalf("expected equal keys, got %+v vs %+v", a, b)
	}
}
