package sheet

import (
	"net/url"
	"strings"

	"github.com/weppos/publicsuffix-go/publicsuffix"
)

const (
	csvExportSuffix  = "/gviz/tq?tqx=out:csv"
	jsonExportSuffix = "/gviz/tq?tqx=out:json"
)

// CSVEndpoint normalizes a sheet URL to its CSV export endpoint. URLs
// that already point at a CSV export are returned unchanged.
func CSVEndpoint(sheetURL string) string {
	if strings.Contains(sheetURL, "tqx=out:csv") {
		return sheetURL
	}
	sheetURL = strings.TrimSuffix(sheetURL, "/")
	return sheetURL + csvExportSuffix
}

// JSONEndpoint returns the gviz JSON export endpoint for a sheet URL.
func JSONEndpoint(sheetURL string) string {
	if strings.Contains(sheetURL, "tqx=out:json") {
		return sheetURL
	}
	sheetURL = strings.TrimSuffix(sheetURL, "/")
	return sheetURL + jsonExportSuffix
}

// IsSheetURL reports whether a string (typically decoded from a QR
// code, so fully untrusted) looks like a Google Sheets document URL.
// Anything else must not be persisted or fetched.
func IsSheetURL(s string) bool {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return false
	}
	if u.Scheme != "https" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	domain, err := publicsuffix.Domain(host)
	if err != nil || domain != "google.com" {
		return false
	}
	if host != "docs.google.com" {
		return false
	}
	return strings.Contains(u.Path, "/spreadsheets/")
}
