// Copyright (c) 2025 vflorio
// SPDX-License-Identifier: MIT

package lifecycle

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vflorio/hbbtv-emu-sub005/internal/player/model"
)

func TestBeginLoad_ResetsSessionContext(t *testing.T) {
	sc := dashContext()
	sc.Active = &sc.Manifest.AdaptationSets[0].Representations[0]
	sc.ResumeKind = model.KindPaused

	state := BeginLoad(sc, Load(model.SourceHls, "http://origin.test/master.m3u8"))

	require.Equal(t, model.KindLoading, state.Kind)
	require.Equal(t, model.SourceHls, state.SourceType)
	require.Equal(t, "http://origin.test/master.m3u8", state.URL)

	require.Equal(t, model.SourceHls, sc.SourceType)
	require.Equal(t, "http://origin.test/master.m3u8", sc.SourceURL)
	require.Nil(t, sc.Manifest, "previous manifest does not leak into the new cycle")
	require.Nil(t, sc.Active)
	require.Empty(t, sc.ResumeKind)
}

func TestEnterSource_PerSourceType(t *testing.T) {
	cases := []struct {
		source model.SourceType
		kind   model.StateKind
	}{
		{model.SourceDash, model.KindDashMPDLoading},
		{model.SourceHls, model.KindHlsPlaylistLoading},
		{model.SourceNative, model.KindNativePreparing},
	}
	for _, tc := range cases {
		sc := &model.SessionContext{SourceType: tc.source, SourceURL: "http://origin.test/x"}
		require.Equal(t, tc.kind, EnterSource(sc).Kind, "source %s", tc.source)
	}
}

func TestFinishManifest_RecordsManifest(t *testing.T) {
	sc := &model.SessionContext{SourceType: model.SourceDash, SourceURL: "http://origin.test/a.mpd"}
	m := dashContext().Manifest

	state := FinishManifest(sc, m)

	require.Equal(t, model.KindDashMPDParsed, state.Kind)
	require.Same(t, m, sc.Manifest)
	require.Same(t, m, state.Manifest)
	require.Equal(t, 600.0, state.DurationSeconds)
	require.False(t, state.IsDynamic)
}

func TestFinishNativeReady(t *testing.T) {
	sc := &model.SessionContext{SourceType: model.SourceNative, SourceURL: "http://origin.test/clip.mp4"}
	state := FinishNativeReady(sc, model.ReadyInfo{DurationSeconds: 42.5})
	require.Equal(t, model.KindNativeReady, state.Kind)
	require.Equal(t, "http://origin.test/clip.mp4", state.URL)
	require.Equal(t, 42.5, state.DurationSeconds)
}

func TestSeekResumesPreSeekTransportState(t *testing.T) {
	sc := dashContext()

	ApplyPlay(sc)
	require.Equal(t, model.KindPlaying, FinishSeek(sc).Kind, "seek from playing resumes playing")

	ApplyPause(sc)
	require.Equal(t, model.KindPaused, FinishSeek(sc).Kind, "seek from paused resumes paused")

	state := BeginSeek(Seek(37.25))
	require.Equal(t, model.KindSeeking, state.Kind)
	require.Equal(t, 37.25, state.TargetSeconds)
}

func TestApplyEnded_ClearsResumePoint(t *testing.T) {
	sc := dashContext()
	ApplyPlay(sc)

	state := ApplyEnded(sc)
	require.Equal(t, model.KindEnded, state.Kind)
	require.Empty(t, sc.ResumeKind)
}

func TestApplyFailure_CarriesCodeAndSanitizedMessage(t *testing.T) {
	sc := dashContext()
	err := &LoadError{URL: "http://origin.test/a.mpd", SourceType: model.SourceDash, Cause: errors.New("status\n503")}

	state := ApplyFailure(sc, err)

	require.Equal(t, model.KindError, state.Kind)
	require.Equal(t, CodeLoadFailed, state.ErrCode)
	require.NotContains(t, state.ErrMessage, "\n")
	require.Contains(t, state.ErrMessage, "status 503")
}
