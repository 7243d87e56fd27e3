// SPDX-License-Identifier: MIT

// Package urlutil prepares source URLs for logs and traces.
package urlutil

import (
	"net/url"
)

// SanitizeURL drops credentials, query and fragment, which is where signed
// playlist URLs carry their tokens.
func SanitizeURL(rawURL string) string {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return "invalid-url-redacted"
	}
	parsedURL.User = nil
	parsedURL.RawQuery = ""
	parsedURL.ForceQuery = false
	parsedURL.Fragment = ""
	parsedURL.RawFragment = ""
	return parsedURL.String()
}
