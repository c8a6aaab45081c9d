// Copyright (c) 2025 vflorio
// SPDX-License-Identifier: MIT

package manifest

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/vflorio/hbbtv-emu-sub005/internal/player/lifecycle"
	"github.com/vflorio/hbbtv-emu-sub005/internal/player/model"
)

const (
	tagHeader    = "#EXTM3U"
	tagStreamInf = "#EXT-X-STREAM-INF:"
)

// ParseMasterPlaylist parses an HLS master playlist. Variants are projected
// into a single video adaptation set so selection works the same for both
// manifest formats; variant ids are derived from the declared bandwidth.
// Rendition groups (#EXT-X-MEDIA) carry no bandwidth and are skipped.
// Master playlists do not declare liveness or duration, both stay zero and
// are backfilled from the adapter.
func ParseMasterPlaylist(url string, data []byte) (*model.Manifest, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	line := 0
	headerSeen := false
	var pending *model.Representation
	pendingLine := 0
	seen := make(map[string]int)
	var variants []model.Representation

	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		if !headerSeen {
			if text != tagHeader {
				return nil, &lifecycle.PlaylistParseError{URL: url, Line: line, Cause: errors.New("missing #EXTM3U header")}
			}
			headerSeen = true
			continue
		}

		if strings.HasPrefix(text, tagStreamInf) {
			if pending != nil {
				return nil, &lifecycle.PlaylistParseError{URL: url, Line: pendingLine, Cause: errors.New("stream-inf without uri")}
			}
			variant, err := parseStreamInf(strings.TrimPrefix(text, tagStreamInf))
			if err != nil {
				return nil, &lifecycle.PlaylistParseError{URL: url, Line: line, Cause: err}
			}
			pending = &variant
			pendingLine = line
			continue
		}

		if strings.HasPrefix(text, "#") {
			// other tags are not needed for variant selection
			continue
		}

		// a bare line is the uri of the preceding stream-inf
		if pending != nil {
			pending.ID = variantID(seen, pending.Bandwidth)
			variants = append(variants, *pending)
			pending = nil
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, &lifecycle.PlaylistParseError{URL: url, Line: line, Cause: err}
	}
	if !headerSeen {
		return nil, &lifecycle.PlaylistParseError{URL: url, Line: 1, Cause: errors.New("missing #EXTM3U header")}
	}
	if pending != nil {
		return nil, &lifecycle.PlaylistParseError{URL: url, Line: pendingLine, Cause: errors.New("stream-inf without uri")}
	}
	if len(variants) == 0 {
		return nil, &lifecycle.PlaylistParseError{URL: url, Cause: errors.New("no variant streams")}
	}

	m := &model.Manifest{
		URL: url,
		AdaptationSets: []model.AdaptationSet{
			{
				ID:              "variants",
				ContentType:     model.ContentVideo,
				MimeType:        "application/vnd.apple.mpegurl",
				Representations: variants,
			},
		},
	}
	m.Normalize()
	if err := m.Validate(); err != nil {
		return nil, &lifecycle.PlaylistParseError{URL: url, Cause: err}
	}
	return m, nil
}

// parseStreamInf parses the attribute list of one #EXT-X-STREAM-INF tag.
// BANDWIDTH is required; the id is assigned later, once duplicates across
// the whole playlist are known.
func parseStreamInf(attrs string) (model.Representation, error) {
	fields, err := parseAttributeList(attrs)
	if err != nil {
		return model.Representation{}, err
	}

	raw, ok := fields["BANDWIDTH"]
	if !ok {
		return model.Representation{}, errors.New("stream-inf missing BANDWIDTH")
	}
	bandwidth, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || bandwidth <= 0 {
		return model.Representation{}, fmt.Errorf("invalid BANDWIDTH %q", raw)
	}

	rep := model.Representation{
		Bandwidth: bandwidth,
		Codecs:    fields["CODECS"],
	}
	if res, ok := fields["RESOLUTION"]; ok {
		w, h, ok := parseResolution(res)
		if !ok {
			return model.Representation{}, fmt.Errorf("invalid RESOLUTION %q", res)
		}
		rep.Resolution = &model.Resolution{Width: w, Height: h}
	}
	return rep, nil
}

func variantID(seen map[string]int, bandwidth int64) string {
	id := "v" + strconv.FormatInt(bandwidth, 10)
	seen[id]++
	if n := seen[id]; n > 1 {
		return fmt.Sprintf("%s-%d", id, n)
	}
	return id
}

// parseAttributeList splits `KEY=value,KEY="quoted,value"` pairs. Commas
// inside quoted values do not terminate a pair.
func parseAttributeList(s string) (map[string]string, error) {
	out := make(map[string]string)
	rest := s
	for rest != "" {
		eq := strings.IndexByte(rest, '=')
		if eq <= 0 {
			return nil, fmt.Errorf("malformed attribute list near %q", rest)
		}
		key := strings.TrimSpace(rest[:eq])
		rest = rest[eq+1:]

		var value string
		if strings.HasPrefix(rest, `"`) {
			end := strings.IndexByte(rest[1:], '"')
			if end < 0 {
				return nil, fmt.Errorf("unterminated quote in attribute %s", key)
			}
			value = rest[1 : end+1]
			rest = rest[end+2:]
			rest = strings.TrimPrefix(rest, ",")
		} else {
			end := strings.IndexByte(rest, ',')
			if end < 0 {
				value = rest
				rest = ""
			} else {
				value = rest[:end]
				rest = rest[end+1:]
			}
		}
		out[key] = strings.TrimSpace(value)
	}
	return out, nil
}

func parseResolution(s string) (width, height int, ok bool) {
	x := strings.IndexByte(s, 'x')
	if x <= 0 {
		return 0, 0, false
	}
	w, err := strconv.Atoi(s[:x])
	if err != nil || w <= 0 {
		return 0, 0, false
	}
	h, err := strconv.Atoi(s[x+1:])
	if err != nil || h <= 0 {
		return 0, 0, false
	}
	return w, h, true
}
