// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package playlist

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/ManuGH/hlsplay/internal/engine"
	"github.com/livepeer/m3u8"
)

var (
	errNoVariants  = errors.New("playlist: master playlist has no playable variants")
	errNotMedia    = errors.New("playlist: expected a media playlist")
	errNoSegments  = errors.New("playlist: media playlist has no segments")
	errUnknownType = errors.New("playlist: unrecognised playlist type")
	errNoHeader    = errors.New("playlist: no EXTM3U delimiter")
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func decode(body []byte) (m3u8.Playlist, m3u8.ListType, error) {
	trimmed := bytes.TrimLeft(bytes.TrimPrefix(body, utf8BOM), " \t\r\n")
	if !bytes.HasPrefix(trimmed, []byte("#EXTM3U")) {
		return nil, 0, errNoHeader
	}
	return m3u8.DecodeFrom(bytes.NewReader(trimmed), false)
}

type segment struct {
	sn       uint64
	url      string
	duration float64
}

type mediaPlaylist struct {
	level          int
	url            string
	live           bool
	targetDuration float64
	segments       []segment
}

// duration is the summed length of all listed segments.
func (p *mediaPlaylist) duration() float64 {
	var d float64
	for _, s := range p.segments {
		d += s.duration
	}
	return d
}

// parseManifest turns the document behind src into levels. A media playlist
// is exposed as a single level pointing back at src. Levels are ordered by
// ascending bitrate.
func parseManifest(src string, body []byte) ([]engine.Level, error) {
	pl, typ, err := decode(body)
	if err != nil {
		return nil, fmt.Errorf("playlist: decode manifest: %w", err)
	}

	switch typ {
	case m3u8.MEDIA:
		return []engine.Level{{URL: src}}, nil
	case m3u8.MASTER:
		master, ok := pl.(*m3u8.MasterPlaylist)
		if !ok {
			return nil, errUnknownType
		}
		levels := make([]engine.Level, 0, len(master.Variants))
		for _, v := range master.Variants {
			if v == nil || v.URI == "" {
				continue
			}
			u, err := resolve(src, v.URI)
			if err != nil {
				return nil, err
			}
			w, h := parseResolution(v.Resolution)
			levels = append(levels, engine.Level{
				Width:   w,
				Height:  h,
				Bitrate: int(v.Bandwidth),
				Name:    v.Name,
				Codecs:  v.Codecs,
				URL:     u,
			})
		}
		if len(levels) == 0 {
			return nil, errNoVariants
		}
		sort.SliceStable(levels, func(i, j int) bool { return levels[i].Bitrate < levels[j].Bitrate })
		return levels, nil
	default:
		return nil, errUnknownType
	}
}

// parseMedia decodes a media playlist. Sequence numbers are derived from
// EXT-X-MEDIA-SEQUENCE and the position in the list.
func parseMedia(level int, src string, body []byte) (*mediaPlaylist, error) {
	pl, typ, err := decode(body)
	if err != nil {
		return nil, fmt.Errorf("playlist: decode level %d: %w", level, err)
	}
	if typ != m3u8.MEDIA {
		return nil, errNotMedia
	}
	mp, ok := pl.(*m3u8.MediaPlaylist)
	if !ok {
		return nil, errNotMedia
	}

	out := &mediaPlaylist{
		level:          level,
		url:            src,
		live:           mp.Live,
		targetDuration: float64(mp.TargetDuration),
	}
	for i, s := range mp.Segments {
		if s == nil {
			// the decoder pads the ring buffer with nil entries
			break
		}
		u, err := resolve(src, s.URI)
		if err != nil {
			return nil, err
		}
		out.segments = append(out.segments, segment{
			sn:       mp.SeqNo + uint64(i),
			url:      u,
			duration: s.Duration,
		})
	}
	if len(out.segments) == 0 && !out.live {
		return nil, errNoSegments
	}
	return out, nil
}

func resolve(base, ref string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("playlist: parse base url: %w", err)
	}
	r, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", fmt.Errorf("playlist: parse uri %q: %w", ref, err)
	}
	return b.ResolveReference(r).String(), nil
}

// parseResolution reads "WIDTHxHEIGHT"; malformed values yield zeros.
func parseResolution(s string) (int, int) {
	ws, hs, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return 0, 0
	}
	w, err1 := strconv.Atoi(strings.TrimSpace(ws))
	h, err2 := strconv.Atoi(strings.TrimSpace(hs))
	if err1 != nil || err2 != nil {
		return 0, 0
	}
	return w, h
}
