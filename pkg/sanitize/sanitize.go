// Package sanitize validates raw key/value pairs coming out of a
// spreadsheet before they are allowed anywhere near rendering. The
// sheet is editable by whoever holds the link, so every value is
// treated as hostile input.
package sanitize

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/wardtools/wardprogram/internal/utils"
)

// AllowedKeys is the fixed set of program field identifiers a sheet
// row may use. Anything else is dropped, not errored: stray rows in a
// shared spreadsheet are normal.
var AllowedKeys = map[string]bool{
	"unitName":                 true,
	"unitAddress":              true,
	"link":                     true,
	"date":                     true,
	"presiding":                true,
	"conducting":               true,
	"musicDirector":            true,
	"musicOrganist":            true,
	"horizontalLine":           true,
	"openingHymn":              true,
	"openingPrayer":            true,
	"sacramentHymn":            true,
	"intermediateHymn":         true,
	"closingHymn":              true,
	"closingPrayer":            true,
	"hymn":                     true,
	"speaker":                  true,
	"leader":                   true,
	"generalStatementWithLink": true,
	"generalStatement":         true,
	"linkWithSpace":            true,
}

var (
	// Repeatable slots: speaker1, speaker2, intermediateHymn1, ...
	// The number is discarded; ordering comes from row order.
	speakerSlot = regexp.MustCompile(`(?i)^speaker\d+$`)
	hymnSlot    = regexp.MustCompile(`(?i)^intermediatehymn\d+$`)

	scriptTag = regexp.MustCompile(`(?i)<script`)
	anyTag    = regexp.MustCompile(`<[^>]+>`)

	// Permissive: most Unicode letters, digits, punctuation, symbols
	// and spaces, plus the ~ | < > needed by composite values and the
	// placeholder tokens.
	safeValue = regexp.MustCompile(`^[\p{L}\p{N}\p{P}\p{S}\p{Zs}~|<>]+$`)
)

// StripTags removes HTML-like tags but preserves the literal <LINK>
// and <IMG> placeholder tokens (exact match, case-sensitive).
func StripTags(s string) string {
	return anyTag.ReplaceAllStringFunc(s, func(m string) string {
		if m == "<LINK>" || m == "<IMG>" {
			return m
		}
		return ""
	})
}

// IsSafeURL reports whether a string parses as a URL with an http or
// https scheme. javascript:, data: and unparseable strings all fail.
// This gate must pass before any value is used as an href or src.
func IsSafeURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return u.Scheme == "https" || u.Scheme == "http"
}

// Value sanitizes a raw cell value. Blocked values come back as the
// empty string; sanitizing an already-sanitized value is a no-op.
func Value(raw string) string {
	if raw == "" {
		return ""
	}

	if scriptTag.MatchString(raw) {
		utils.Log.Warnf("Blocked script tag in value: %q", raw)
		return ""
	}

	value := strings.TrimSpace(raw)
	value = StripTags(value)

	if value != "" && !safeValue.MatchString(value) {
		utils.Log.Warnf("Blocked unsafe characters in value: %q", raw)
		return ""
	}

	return value
}

// Entry validates a raw key/value pair. It returns the canonical key
// and sanitized value, or ok=false when the row must be dropped.
// Numbered dynamic keys normalize to their base key.
func Entry(rawKey, rawValue string) (key, value string, ok bool) {
	key = strings.TrimSpace(rawKey)
	if key == "" {
		return "", "", false
	}

	switch {
	case speakerSlot.MatchString(key):
		key = "speaker"
	case hymnSlot.MatchString(key):
		key = "intermediateHymn"
	default:
		if !AllowedKeys[key] {
			utils.Log.Warnf("Blocked unknown key: %q", key)
			return "", "", false
		}
	}

	return key, Value(rawValue), true
}
