// SPDX-License-Identifier: MIT
package model

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func testManifest() *Manifest {
	return &Manifest{
		URL: "http://origin.test/asset.mpd",
		AdaptationSets: []AdaptationSet{
			{
				ID:          "video",
				ContentType: ContentVideo,
				MimeType:    "video/mp4",
				Representations: []Representation{
					{ID: "v-720p", Bandwidth: 2_500_000, Codecs: "avc1.4d401f", Resolution: &Resolution{Width: 1280, Height: 720}},
					{ID: "v-1080p", Bandwidth: 5_000_000, Codecs: "avc1.640028", Resolution: &Resolution{Width: 1920, Height: 1080}},
				},
			},
			{
				ID:          "audio",
				ContentType: ContentAudio,
				MimeType:    "audio/mp4",
				Representations: []Representation{
					{ID: "a-main", Bandwidth: 128_000, Codecs: "mp4a.40.2"},
				},
			},
		},
		DurationSeconds: 600,
	}
}

func TestFindRepresentation(t *testing.T) {
	m := testManifest()

	tests := []struct {
		name   string
		id     string
		wantOK bool
		wantBW int64
	}{
		{name: "video id", id: "v-1080p", wantOK: true, wantBW: 5_000_000},
		{name: "audio id", id: "a-main", wantOK: true, wantBW: 128_000},
		{name: "unknown id", id: "v-4k", wantOK: false},
		{name: "empty id", id: "", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rep, ok := m.FindRepresentation(tt.id)
			require.Equal(t, tt.wantOK, ok)
			if ok {
				require.Equal(t, tt.id, rep.ID)
				require.Equal(t, tt.wantBW, rep.Bandwidth)
			}
		})
	}
}

func TestFindRepresentationFirstMatchWins(t *testing.T) {
	m := &Manifest{
		URL: "http://origin.test/dup.mpd",
		AdaptationSets: []AdaptationSet{
			{ID: "a", ContentType: ContentVideo, Representations: []Representation{{ID: "r1", Bandwidth: 100}}},
			{ID: "b", ContentType: ContentVideo, Representations: []Representation{{ID: "r1", Bandwidth: 999}}},
		},
	}
	rep, ok := m.FindRepresentation("r1")
	require.True(t, ok)
	require.Equal(t, int64(100), rep.Bandwidth, "first occurrence in set order is authoritative")
}

func TestFindRepresentationNilManifest(t *testing.T) {
	var m *Manifest
	_, ok := m.FindRepresentation("r1")
	require.False(t, ok)
}

func TestNormalizeOrdersByAscendingBandwidth(t *testing.T) {
	m := &Manifest{
		URL: "http://origin.test/unsorted.mpd",
		AdaptationSets: []AdaptationSet{
			{
				ID:          "video",
				ContentType: ContentVideo,
				Representations: []Representation{
					{ID: "hi", Bandwidth: 5_000_000},
					{ID: "lo", Bandwidth: 800_000},
					{ID: "mid", Bandwidth: 2_500_000},
				},
			},
		},
	}
	m.Normalize()

	got := make([]string, 0, 3)
	for _, rep := range m.AdaptationSets[0].Representations {
		got = append(got, rep.ID)
	}
	if diff := cmp.Diff([]string{"lo", "mid", "hi"}, got); diff != "" {
		t.Errorf("representation order mismatch (-want +got):\n%s", diff)
	}
}

func TestManifestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Manifest)
		wantErr string
	}{
		{name: "valid", mutate: func(*Manifest) {}, wantErr: ""},
		{
			name:    "no sets",
			mutate:  func(m *Manifest) { m.AdaptationSets = nil },
			wantErr: "no adaptation sets",
		},
		{
			name:    "empty set",
			mutate:  func(m *Manifest) { m.AdaptationSets[0].Representations = nil },
			wantErr: "no representations",
		},
		{
			name:    "zero bandwidth",
			mutate:  func(m *Manifest) { m.AdaptationSets[0].Representations[0].Bandwidth = 0 },
			wantErr: "not positive",
		},
		{
			name:    "empty rep id",
			mutate:  func(m *Manifest) { m.AdaptationSets[0].Representations[1].ID = "" },
			wantErr: "empty id",
		},
		{
			name: "duplicate id in set",
			mutate: func(m *Manifest) {
				m.AdaptationSets[0].Representations[1].ID = m.AdaptationSets[0].Representations[0].ID
			},
			wantErr: "duplicate representation id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := testManifest()
			tt.mutate(m)
			err := m.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConstraintsAllows(t *testing.T) {
	rep1080 := Representation{ID: "v-1080p", Bandwidth: 5_000_000, Resolution: &Resolution{Width: 1920, Height: 1080}}
	rep720 := Representation{ID: "v-720p", Bandwidth: 2_500_000, Resolution: &Resolution{Width: 1280, Height: 720}}
	audio := Representation{ID: "a-main", Bandwidth: 128_000}

	none := Constraints{}
	require.True(t, none.IsZero())
	require.True(t, none.Allows(rep1080))

	capped := Constraints{MaxHeight: 720, MaxBandwidth: 3_000_000}
	require.False(t, capped.Allows(rep1080))
	require.True(t, capped.Allows(rep720))
	require.True(t, capped.Allows(audio), "resolution-less representations pass height limits")
}

func TestStateConstructorsCarryOnlyTheirPayload(t *testing.T) {
	m := testManifest()

	parsed := ManifestParsed(SourceDash, m)
	require.Equal(t, KindDashMPDParsed, parsed.Kind)
	require.NotNil(t, parsed.Manifest)
	require.Nil(t, parsed.Representation)

	rep, ok := m.FindRepresentation("v-720p")
	require.True(t, ok)
	sel := Selected(SourceDash, rep)
	require.Equal(t, KindDashRepSelected, sel.Kind)
	require.Nil(t, sel.Manifest, "selection snapshots do not drag the manifest along")
	require.Equal(t, "v-720p", sel.Representation.ID)

	playing := Playing()
	require.Equal(t, KindPlaying, playing.Kind)
	require.Nil(t, playing.Manifest)
	require.Nil(t, playing.Representation)
	require.Empty(t, playing.URL)
}

func TestStateKindPredicates(t *testing.T) {
	for _, k := range StateKinds() {
		if k == KindEnded || k == KindError {
			require.True(t, k.IsTerminal(), "kind %s", k)
		} else {
			require.False(t, k.IsTerminal(), "kind %s", k)
		}
	}
	require.True(t, KindDashMPDParsed.IsManifestBearing())
	require.True(t, KindHlsVariantSelected.IsManifestBearing())
	require.False(t, KindPlaying.IsManifestBearing())
	require.True(t, KindDashRepSelected.IsSelected())
	require.False(t, KindDashQualitySwitching.IsSelected())
}
