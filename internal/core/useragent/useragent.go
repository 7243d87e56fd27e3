// SPDX-License-Identifier: MIT

// Package useragent holds user agent heuristics for picking a playback path.
package useragent

import "strings"

// IsSafariBrowser detects Safari on macOS/iOS.
// Safari has "Safari/" and "AppleWebKit/", but not "Chrome/".
func IsSafariBrowser(userAgent string) bool {
	ua := userAgent
	hasSafari := strings.Contains(ua, "Safari/")
	hasChrome := strings.Contains(ua, "Chrome/") || strings.Contains(ua, "Chromium/") ||
		strings.Contains(ua, "CriOS/") || strings.Contains(ua, "Edg/")
	hasWebKit := strings.Contains(ua, "AppleWebKit/")
	return hasWebKit && hasSafari && !hasChrome
}

// IsNativeAppleClient detects native Apple clients (AVFoundation/WebKit HLS stack).
func IsNativeAppleClient(userAgent string) bool {
	ua := userAgent
	return strings.Contains(ua, "AppleCoreMedia") ||
		strings.Contains(ua, "CFNetwork") ||
		strings.Contains(ua, "VideoToolbox")
}

// IsIOSLike is a broad check for iOS/iPadOS devices and Apple network stacks.
func IsIOSLike(userAgent string) bool {
	ua := userAgent
	return strings.Contains(ua, "iPhone") ||
		strings.Contains(ua, "iPad") ||
		strings.Contains(ua, "iPod") ||
		strings.Contains(ua, "iOS") ||
		IsNativeAppleClient(ua)
}

// HasNativeOutputPicker reports platforms whose external output routing
// (AirPlay) only works with the platform decoder attached to the element.
func HasNativeOutputPicker(userAgent string) bool {
	return IsSafariBrowser(userAgent) || IsIOSLike(userAgent)
}
