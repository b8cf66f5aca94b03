package identity

import (
	"fmt"
	"net/url"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"

	"towline/internal/faults"
)

// Key uniquely identifies a unit of work: the fingerprint of the normalized
// locator plus the canonical destination path.
type Key struct {
	Fingerprint string
	Destination string
}

var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
	"ftp":   "21",
	"ftps":  "990",
}

// NewKey normalizes a raw locator and destination into an identity key.
// Caller-supplied hashes are never trusted; the fingerprint is always
// recomputed here.
func NewKey(locator, destination string) (Key, error) {
	normalized, err := NormalizeLocator(locator)
	if err != nil {
		return Key{}, err
	}
	dest, err := CanonicalDestination(destination)
	if err != nil {
		return Key{}, err
	}
	return Key{Fingerprint: Fingerprint(normalized), Destination: dest}, nil
}

// NormalizeLocator returns the canonical form of a locator. Two locators that
// name the same resource modulo decoration normalize identically; any
// significant difference survives normalization.
func NormalizeLocator(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", faults.Wrap(faults.ErrInvalidLocator, "identity", "normalize", "empty locator", nil)
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", faults.Wrap(faults.ErrInvalidLocator, "identity", "normalize", fmt.Sprintf("parse %q", raw), err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", faults.Wrap(faults.ErrInvalidLocator, "identity", "normalize", fmt.Sprintf("locator %q lacks scheme or host", raw), nil)
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Fragment = ""
	parsed.RawFragment = ""

	if port := parsed.Port(); port != "" && port == defaultPorts[parsed.Scheme] {
		parsed.Host = parsed.Hostname()
	}

	parsed.RawQuery = sortQuery(parsed.RawQuery)

	return parsed.String(), nil
}

// Fingerprint hashes a normalized locator into a fixed-length hex string.
func Fingerprint(normalized string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(normalized))
}

// CanonicalDestination resolves relative segments in a destination path
// without consulting the filesystem.
func CanonicalDestination(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", faults.Wrap(faults.ErrInvalidLocator, "identity", "canonicalize", "empty destination", nil)
	}
	abs, err := filepath.Abs(filepath.Clean(trimmed))
	if err != nil {
		return "", faults.Wrap(faults.ErrInvalidLocator, "identity", "canonicalize", fmt.Sprintf("destination %q", raw), err)
	}
	return abs, nil
}

// sortQuery orders raw query pairs so parameter ordering is insignificant
// while parameter values stay significant. Pairs are compared verbatim;
// percent-encoding differences are deliberately preserved.
func sortQuery(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}
	parts := strings.Split(rawQuery, "&")
	pairs := parts[:0]
	for _, part := range parts {
		if part != "" {
			pairs = append(pairs, part)
		}
	}
	if len(pairs) == 0 {
		return ""
	}
	sort.Strings(pairs)
	return strings.Join(pairs, "&")
}
