// Copyright (c) 2025 vflorio
// SPDX-License-Identifier: MIT

package adapter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type chanSink chan Event

func (c chanSink) OnAdapterEvent(ev Event) { c <- ev }

func TestSim_LoadReportsConfiguredInfo(t *testing.T) {
	sim := newSim(SimConfig{DurationSeconds: 120, IsDynamic: true}, nil)
	info, err := sim.Load(context.Background(), "http://origin.test/live.mpd")
	require.NoError(t, err)
	require.Equal(t, 120.0, info.DurationSeconds)
	require.True(t, info.IsDynamic)

	sim = newSim(SimConfig{}, nil)
	info, err = sim.Load(context.Background(), "http://origin.test/a.mpd")
	require.NoError(t, err)
	require.Equal(t, simDefaultDuration, info.DurationSeconds)
}

func TestSim_LoadFailure(t *testing.T) {
	boom := errors.New("segment 404")
	sim := newSim(SimConfig{FailLoad: boom}, nil)
	_, err := sim.Load(context.Background(), "http://origin.test/a.mpd")
	require.ErrorIs(t, err, boom)
}

func TestSim_LoadHonoursCancellation(t *testing.T) {
	sim := newSim(SimConfig{LoadDelay: 10 * time.Second}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := sim.Load(ctx, "http://origin.test/a.mpd")
	require.ErrorIs(t, err, context.Canceled)
}

func TestSim_PositionTracksPlayback(t *testing.T) {
	ctx := context.Background()
	sim := newSim(SimConfig{DurationSeconds: 100}, nil)
	_, err := sim.Load(ctx, "http://origin.test/a.mpd")
	require.NoError(t, err)
	require.Zero(t, sim.Position())

	require.NoError(t, sim.Play(ctx))
	time.Sleep(30 * time.Millisecond)
	require.Greater(t, sim.Position(), 0.0)

	require.NoError(t, sim.Pause(ctx))
	frozen := sim.Position()
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, frozen, sim.Position(), "position freezes while paused")

	require.NoError(t, sim.Seek(ctx, 42))
	require.Equal(t, 42.0, sim.Position())
}

func TestSim_SeekClamps(t *testing.T) {
	ctx := context.Background()
	sim := newSim(SimConfig{DurationSeconds: 100}, nil)
	_, err := sim.Load(ctx, "http://origin.test/a.mpd")
	require.NoError(t, err)

	require.NoError(t, sim.Seek(ctx, 500))
	require.Equal(t, 100.0, sim.Position())

	require.NoError(t, sim.Seek(ctx, -3))
	require.Zero(t, sim.Position())
}

func TestSim_BufferedRangesFollowPosition(t *testing.T) {
	ctx := context.Background()
	sim := newSim(SimConfig{DurationSeconds: 100}, nil)
	_, err := sim.Load(ctx, "http://origin.test/a.mpd")
	require.NoError(t, err)

	ranges, err := sim.BufferedRanges(ctx)
	require.NoError(t, err)
	require.Len(t, ranges, 1)
	require.Equal(t, 0.0, ranges[0].StartSeconds)
	require.Equal(t, 30.0, ranges[0].EndSeconds)

	require.NoError(t, sim.Seek(ctx, 95))
	ranges, err = sim.BufferedRanges(ctx)
	require.NoError(t, err)
	require.Equal(t, 85.0, ranges[0].StartSeconds)
	require.Equal(t, 100.0, ranges[0].EndSeconds, "end clamps to duration")
}

func TestSim_EmitsEndedAtDuration(t *testing.T) {
	ctx := context.Background()
	sink := make(chanSink, 4)
	sim := newSim(SimConfig{DurationSeconds: 0.05}, sink)
	_, err := sim.Load(ctx, "http://origin.test/short.mp4")
	require.NoError(t, err)
	require.NoError(t, sim.Play(ctx))

	select {
	case ev := <-sink:
		require.Equal(t, EventEnded, ev.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("no ended event")
	}
	require.Equal(t, 0.05, sim.Position())
}

func TestSim_DynamicSourcesDoNotEnd(t *testing.T) {
	ctx := context.Background()
	sink := make(chanSink, 4)
	sim := newSim(SimConfig{DurationSeconds: 0.05, IsDynamic: true}, sink)
	_, err := sim.Load(ctx, "http://origin.test/live.m3u8")
	require.NoError(t, err)
	require.NoError(t, sim.Play(ctx))

	select {
	case ev := <-sink:
		t.Fatalf("unexpected event %s", ev.Kind)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestSim_DisposeSilencesAndRejects(t *testing.T) {
	ctx := context.Background()
	sink := make(chanSink, 4)
	sim := newSim(SimConfig{DurationSeconds: 0.05}, sink)
	_, err := sim.Load(ctx, "http://origin.test/short.mp4")
	require.NoError(t, err)
	require.NoError(t, sim.Play(ctx))
	require.NoError(t, sim.Dispose(ctx))
	require.NoError(t, sim.Dispose(ctx), "dispose is idempotent")

	require.ErrorIs(t, sim.Play(ctx), errSimDisposed)
	require.ErrorIs(t, sim.Seek(ctx, 1), errSimDisposed)

	select {
	case ev := <-sink:
		t.Fatalf("event after dispose: %s", ev.Kind)
	case <-time.After(150 * time.Millisecond):
	}
}
