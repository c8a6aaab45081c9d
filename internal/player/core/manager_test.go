// Copyright (c) 2025 vflorio
// SPDX-License-Identifier: MIT

package core

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/vflorio/hbbtv-emu-sub005/internal/player/adapter"
	"github.com/vflorio/hbbtv-emu-sub005/internal/player/adapter/adaptertest"
	"github.com/vflorio/hbbtv-emu-sub005/internal/player/lifecycle"
	"github.com/vflorio/hbbtv-emu-sub005/internal/player/model"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	factory := adaptertest.NewFactory()
	reg := adapter.NewRegistry()
	for _, src := range model.SourceTypes() {
		reg.Register(src, factory)
	}
	m := NewManager(ManagerConfig{
		Registry:  reg,
		Manifests: &stubManifests{manifest: fixtureManifest()},
	})
	t.Cleanup(func() { _ = m.Shutdown(context.Background()) })
	return m
}

func TestManagerCreateGetList(t *testing.T) {
	m := newTestManager(t)

	a, err := m.Create()
	require.NoError(t, err)
	b, err := m.Create()
	require.NoError(t, err)
	require.NotEqual(t, a.ID(), b.ID())

	got, ok := m.Get(a.ID())
	require.True(t, ok)
	require.Same(t, a, got)

	_, ok = m.Get("00000000-0000-0000-0000-000000000000")
	require.False(t, ok)

	list := m.List()
	require.Len(t, list, 2)
	ids := []string{list[0].ID(), list[1].ID()}
	require.True(t, sort.StringsAreSorted(ids), "list must be ordered by id: %v", ids)
}

func TestManagerDisposeRemovesSession(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	m := newTestManager(t)

	o, err := m.Create()
	require.NoError(t, err)
	sub := o.Subscribe(SubscribeOptions{})

	require.True(t, m.Dispose(o.ID()))
	select {
	case <-sub.Done:
	case <-time.After(waitTimeout):
		t.Fatal("dispose must finish the session's subscriptions")
	}

	_, ok := m.Get(o.ID())
	require.False(t, ok)
	require.False(t, m.Dispose(o.ID()), "second dispose of the same id finds nothing")
}

func TestManagerShutdownDisposesAllSessions(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	m := newTestManager(t)

	var subs []*Subscription
	for i := 0; i < 3; i++ {
		o, err := m.Create()
		require.NoError(t, err)
		require.NoError(t, o.Dispatch(lifecycle.Load(model.SourceNative, "http://origin.test/clip.mp4")))
		subs = append(subs, o.Subscribe(SubscribeOptions{Buffer: 8}))
	}

	require.NoError(t, m.Shutdown(context.Background()))

	for _, sub := range subs {
		select {
		case <-sub.Done:
		case <-time.After(waitTimeout):
			t.Fatal("shutdown left a session running")
		}
	}
	require.Empty(t, m.List())

	_, err := m.Create()
	require.ErrorIs(t, err, ErrManagerClosed)

	// Shutdown is idempotent.
	require.NoError(t, m.Shutdown(context.Background()))
}

func TestManagerShutdownHonorsContext(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Create()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Already-canceled context: teardown may still win the race, but a
	// ctx error is the only acceptable failure.
	if err := m.Shutdown(ctx); err != nil {
		require.ErrorIs(t, err, context.Canceled)
	}
}
