// Copyright (c) 2025 vflorio
// SPDX-License-Identifier: MIT

// Package manifest fetches and parses DASH and HLS manifests into the
// shared adaptation-set model. Parsing is strict: the fixtures an emulator
// points at are controlled, so a malformed document is a bug worth
// surfacing, not something to paper over.
package manifest

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/vflorio/hbbtv-emu-sub005/internal/player/lifecycle"
	"github.com/vflorio/hbbtv-emu-sub005/internal/player/model"
)

type mpdDocument struct {
	XMLName                   xml.Name    `xml:"MPD"`
	Type                      string      `xml:"type,attr"`
	MediaPresentationDuration string      `xml:"mediaPresentationDuration,attr"`
	Periods                   []mpdPeriod `xml:"Period"`
}

type mpdPeriod struct {
	AdaptationSets []mpdAdaptationSet `xml:"AdaptationSet"`
}

type mpdAdaptationSet struct {
	ID              string              `xml:"id,attr"`
	ContentType     string              `xml:"contentType,attr"`
	MimeType        string              `xml:"mimeType,attr"`
	Representations []mpdRepresentation `xml:"Representation"`
}

type mpdRepresentation struct {
	ID        string `xml:"id,attr"`
	Bandwidth int64  `xml:"bandwidth,attr"`
	Codecs    string `xml:"codecs,attr"`
	MimeType  string `xml:"mimeType,attr"`
	Width     int    `xml:"width,attr"`
	Height    int    `xml:"height,attr"`
}

// ParseMPD parses a DASH MPD document. Only the first Period is mapped;
// the session model is flat. Syntax failures carry the decoder's input
// offset, semantic failures an offset of zero.
func ParseMPD(url string, data []byte) (*model.Manifest, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = true
	// no entity expansion from caller-supplied documents
	dec.Entity = make(map[string]string)

	var doc mpdDocument
	if err := dec.Decode(&doc); err != nil {
		return nil, &lifecycle.MPDParseError{URL: url, ByteOffset: dec.InputOffset(), Cause: err}
	}

	m := &model.Manifest{
		URL:       url,
		IsDynamic: doc.Type == "dynamic",
	}
	if doc.MediaPresentationDuration != "" {
		seconds, err := parseISODuration(doc.MediaPresentationDuration)
		if err != nil {
			return nil, &lifecycle.MPDParseError{URL: url, Cause: err}
		}
		m.DurationSeconds = seconds
	}

	if len(doc.Periods) == 0 {
		return nil, &lifecycle.MPDParseError{URL: url, Cause: errors.New("no periods")}
	}
	period := doc.Periods[0]

	for i, set := range period.AdaptationSets {
		mapped, err := mapAdaptationSet(i, set)
		if err != nil {
			return nil, &lifecycle.MPDParseError{URL: url, Cause: err}
		}
		m.AdaptationSets = append(m.AdaptationSets, mapped)
	}

	m.Normalize()
	if err := m.Validate(); err != nil {
		return nil, &lifecycle.MPDParseError{URL: url, Cause: err}
	}
	return m, nil
}

func mapAdaptationSet(index int, set mpdAdaptationSet) (model.AdaptationSet, error) {
	id := set.ID
	if id == "" {
		id = fmt.Sprintf("as-%d", index)
	}

	contentType, err := adaptationContentType(set)
	if err != nil {
		return model.AdaptationSet{}, fmt.Errorf("adaptation set %q: %w", id, err)
	}

	out := model.AdaptationSet{
		ID:          id,
		ContentType: contentType,
		MimeType:    set.MimeType,
	}
	for _, rep := range set.Representations {
		mapped := model.Representation{
			ID:        rep.ID,
			Bandwidth: rep.Bandwidth,
			Codecs:    rep.Codecs,
		}
		if rep.Width > 0 && rep.Height > 0 {
			mapped.Resolution = &model.Resolution{Width: rep.Width, Height: rep.Height}
		}
		out.Representations = append(out.Representations, mapped)
	}
	return out, nil
}

// adaptationContentType resolves the content type, falling back to the
// mime type of the set or its first representation when the attribute is
// absent.
func adaptationContentType(set mpdAdaptationSet) (model.ContentType, error) {
	if set.ContentType != "" {
		ct := model.ContentType(set.ContentType)
		if !ct.Known() {
			return "", fmt.Errorf("unknown content type %q", set.ContentType)
		}
		return ct, nil
	}

	mime := set.MimeType
	if mime == "" && len(set.Representations) > 0 {
		mime = set.Representations[0].MimeType
	}
	switch {
	case strings.HasPrefix(mime, "video/"):
		return model.ContentVideo, nil
	case strings.HasPrefix(mime, "audio/"):
		return model.ContentAudio, nil
	case strings.HasPrefix(mime, "text/"), strings.HasPrefix(mime, "application/ttml"):
		return model.ContentText, nil
	}
	return "", fmt.Errorf("cannot infer content type from mime %q", mime)
}

// isoDuration matches the MPD profile of ISO-8601 durations: an optional
// day component and a time part. Years and months are not meaningful for
// media durations and are rejected.
var isoDuration = regexp.MustCompile(`^P(?:(\d+(?:\.\d+)?)D)?(?:T(?:(\d+(?:\.\d+)?)H)?(?:(\d+(?:\.\d+)?)M)?(?:(\d+(?:\.\d+)?)S)?)?$`)

func parseISODuration(s string) (float64, error) {
	match := isoDuration.FindStringSubmatch(s)
	if match == nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}

	var seconds float64
	any := false
	for i, factor := range []float64{86400, 3600, 60, 1} {
		part := match[i+1]
		if part == "" {
			continue
		}
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", s, err)
		}
		seconds += v * factor
		any = true
	}
	if !any {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return seconds, nil
}
