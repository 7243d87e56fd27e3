// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package quality formats renditions for display and picks levels for a
// bandwidth budget. Everything here is pure.
package quality

import (
	"fmt"
	"math"
	"sort"

	"github.com/ManuGH/hlsplay/internal/engine"
)

// DefaultSafetyFactor is the share of measured bandwidth ABR may spend.
const DefaultSafetyFactor = 0.8

// AutoLabel is shown while the bandwidth estimator owns level choice.
const AutoLabel = "Auto"

// heightTolerance is how far (px) a height may sit from a standard bucket.
const heightTolerance = 20

// Level is a display-ready rendition.
type Level struct {
	Index   int    `json:"index"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Bitrate int    `json:"bitrate"`
	Label   string `json:"label"`
	Codec   string `json:"codec,omitempty"`
}

var standardHeights = []struct {
	height int
	label  string
}{
	{2160, "4K"},
	{1440, "1440p"},
	{1080, "1080p"},
	{720, "720p"},
	{480, "480p"},
	{360, "360p"},
	{240, "240p"},
	{144, "144p"},
}

// Label derives a human label: an engine-supplied name wins, then the nearest
// standard height within tolerance, then "{height}p", then the bitrate.
func Label(name string, height, bitrate int) string {
	if name != "" {
		return name
	}
	if height > 0 {
		best, bestDiff := "", math.MaxInt
		for _, s := range standardHeights {
			diff := height - s.height
			if diff < 0 {
				diff = -diff
			}
			if diff <= heightTolerance && diff < bestDiff {
				best, bestDiff = s.label, diff
			}
		}
		if best != "" {
			return best
		}
		return fmt.Sprintf("%dp", height)
	}
	if bitrate > 0 {
		return FormatBitrate(bitrate)
	}
	return "Unknown"
}

// FormatBitrate renders bits per second as "X.Y Mbps", "N Kbps" or "N bps".
func FormatBitrate(bps int) string {
	switch {
	case bps >= 1_000_000:
		return fmt.Sprintf("%.1f Mbps", float64(bps)/1_000_000)
	case bps >= 1_000:
		return fmt.Sprintf("%d Kbps", int(math.Round(float64(bps)/1_000)))
	default:
		return fmt.Sprintf("%d bps", bps)
	}
}

// Format converts one engine level at position index.
func Format(index int, l engine.Level) Level {
	return Level{
		Index:   index,
		Width:   l.Width,
		Height:  l.Height,
		Bitrate: l.Bitrate,
		Label:   Label(l.Name, l.Height, l.Bitrate),
		Codec:   l.Codecs,
	}
}

// FromEngine converts the engine's level list, keeping the reported order.
func FromEngine(levels []engine.Level) []Level {
	out := make([]Level, 0, len(levels))
	for i, l := range levels {
		out = append(out, Format(i, l))
	}
	return out
}

// AutoWithLabel renders the current-quality text while ABR is in charge.
func AutoWithLabel(label string) string {
	if label == "" {
		return AutoLabel
	}
	return AutoLabel + " (" + label + ")"
}

// BestForBandwidth returns the highest-bitrate level whose bitrate fits in
// bandwidth*safety, or the lowest-bitrate level when none fits. ok is false
// for an empty list. A non-positive safety uses DefaultSafetyFactor.
func BestForBandwidth(levels []Level, bandwidth, safety float64) (best Level, ok bool) {
	if len(levels) == 0 {
		return Level{}, false
	}
	if safety <= 0 {
		safety = DefaultSafetyFactor
	}
	sorted := append([]Level(nil), levels...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Bitrate > sorted[j].Bitrate })

	budget := bandwidth * safety
	for _, l := range sorted {
		if float64(l.Bitrate) <= budget {
			return l, true
		}
	}
	return sorted[len(sorted)-1], true
}
