// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package quality

import (
	"strconv"
	"strings"

	"github.com/ManuGH/hlsplay/internal/host"
)

// AutoID identifies the automatic selection in host-facing quality lists.
const AutoID = "auto"

// ToHost converts one level to the host shape. The ID is the level index.
func ToHost(l Level) host.Quality {
	return host.Quality{
		ID:      strconv.Itoa(l.Index),
		Index:   l.Index,
		Label:   l.Label,
		Width:   l.Width,
		Height:  l.Height,
		Bitrate: l.Bitrate,
	}
}

// ListToHost converts a level list, keeping order.
func ListToHost(levels []Level) []host.Quality {
	out := make([]host.Quality, 0, len(levels))
	for _, l := range levels {
		out = append(out, ToHost(l))
	}
	return out
}

// Resolve maps a host quality selector to a level index. "auto" (any case)
// resolves to -1. Otherwise the selector is matched as an index, then as a
// label. ok is false when nothing matches.
func Resolve(levels []Level, selector string) (index int, ok bool) {
	sel := strings.TrimSpace(selector)
	if strings.EqualFold(sel, AutoID) {
		return -1, true
	}
	if n, err := strconv.Atoi(sel); err == nil {
		if n == -1 {
			return -1, true
		}
		for _, l := range levels {
			if l.Index == n {
				return n, true
			}
		}
		return 0, false
	}
	for _, l := range levels {
		if strings.EqualFold(l.Label, sel) {
			return l.Index, true
		}
	}
	return 0, false
}
