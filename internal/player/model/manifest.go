// Copyright (c) 2025 vflorio
// SPDX-License-Identifier: MIT

package model

import (
	"fmt"
	"sort"
)

// Resolution is a pixel geometry. Present only for visual representations.
type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Representation is one concrete encoded rendition within an adaptation set.
// IDs are unique within their set; bandwidth is bits per second and must be
// positive.
type Representation struct {
	ID         string      `json:"id"`
	Bandwidth  int64       `json:"bandwidth"`
	Codecs     string      `json:"codecs,omitempty"`
	Resolution *Resolution `json:"resolution,omitempty"`
}

// AdaptationSet groups interchangeable representations for one media
// component. Representations are kept ordered by ascending bandwidth; the
// order matters for external default/initial pickers and is preserved, not
// enforced anywhere else.
type AdaptationSet struct {
	ID              string           `json:"id"`
	ContentType     ContentType      `json:"contentType"`
	MimeType        string           `json:"mimeType,omitempty"`
	Representations []Representation `json:"representations"`
}

// Manifest is the structured form of a parsed MPD or master playlist.
// Parsing happens at the collaborator boundary; the playback core only ever
// sees this model.
type Manifest struct {
	URL             string          `json:"url"`
	AdaptationSets  []AdaptationSet `json:"adaptationSets"`
	DurationSeconds float64         `json:"durationSeconds,omitempty"`
	// IsDynamic marks live presentations; DurationSeconds is advisory then.
	IsDynamic bool `json:"isDynamic,omitempty"`
}

// FindRepresentation scans adaptation sets in declaration order and returns
// the first representation with the given id. Duplicate ids across sets are
// tolerated: the first occurrence is authoritative.
func (m *Manifest) FindRepresentation(id string) (Representation, bool) {
	if m == nil {
		return Representation{}, false
	}
	for _, set := range m.AdaptationSets {
		for _, rep := range set.Representations {
			if rep.ID == id {
				return rep, true
			}
		}
	}
	return Representation{}, false
}

// Normalize orders each adaptation set's representations by ascending
// bandwidth, keeping declaration order for equal bandwidths.
func (m *Manifest) Normalize() {
	if m == nil {
		return
	}
	for i := range m.AdaptationSets {
		reps := m.AdaptationSets[i].Representations
		sort.SliceStable(reps, func(a, b int) bool {
			return reps[a].Bandwidth < reps[b].Bandwidth
		})
	}
}

// Validate checks structural invariants: at least one adaptation set, every
// representation with a positive bandwidth and an id unique within its set.
func (m *Manifest) Validate() error {
	if m == nil {
		return fmt.Errorf("manifest is nil")
	}
	if len(m.AdaptationSets) == 0 {
		return fmt.Errorf("manifest %s: no adaptation sets", m.URL)
	}
	for _, set := range m.AdaptationSets {
		if len(set.Representations) == 0 {
			return fmt.Errorf("adaptation set %q: no representations", set.ID)
		}
		seen := make(map[string]struct{}, len(set.Representations))
		for _, rep := range set.Representations {
			if rep.ID == "" {
				return fmt.Errorf("adaptation set %q: representation with empty id", set.ID)
			}
			if rep.Bandwidth <= 0 {
				return fmt.Errorf("representation %q: bandwidth %d not positive", rep.ID, rep.Bandwidth)
			}
			if _, dup := seen[rep.ID]; dup {
				return fmt.Errorf("adaptation set %q: duplicate representation id %q", set.ID, rep.ID)
			}
			seen[rep.ID] = struct{}{}
		}
	}
	return nil
}

// TimeRange is a half-open buffered interval reported by adapters.
type TimeRange struct {
	StartSeconds float64 `json:"startSeconds"`
	EndSeconds   float64 `json:"endSeconds"`
}

// ReadyInfo is what an adapter reports once a source has loaded far enough
// to be playable.
type ReadyInfo struct {
	DurationSeconds float64 `json:"durationSeconds"`
	IsDynamic       bool    `json:"isDynamic"`
}
