// Copyright (c) 2025 vflorio
// SPDX-License-Identifier: MIT

package manifest

import (
	"context"
	"fmt"

	"github.com/vflorio/hbbtv-emu-sub005/internal/player/lifecycle"
	"github.com/vflorio/hbbtv-emu-sub005/internal/player/model"
)

// Loader is the one-call surface the orchestrator uses: fetch plus parse,
// with every failure mapped onto the session error taxonomy. An
// unfetchable manifest is indistinguishable from a malformed one as far as
// the session outcome is concerned.
type Loader struct {
	fetcher *Fetcher
}

func NewLoader(fetcher *Fetcher) *Loader {
	return &Loader{fetcher: fetcher}
}

// Load fetches and parses the manifest for source. Only dash and hls carry
// manifests; calling Load for another source is a programming error and
// reports as a parse failure.
func (l *Loader) Load(ctx context.Context, source model.SourceType, rawURL string) (*model.Manifest, error) {
	data, normalized, _, err := l.fetcher.Fetch(ctx, source, rawURL)
	if err != nil {
		return nil, wrapFetchError(source, rawURL, err)
	}

	var m *model.Manifest
	switch source {
	case model.SourceDash:
		m, err = ParseMPD(normalized, data)
	case model.SourceHls:
		m, err = ParseMasterPlaylist(normalized, data)
	default:
		return nil, wrapFetchError(source, rawURL, fmt.Errorf("source %s carries no manifest", source))
	}
	if err != nil {
		parseTotal.WithLabelValues(string(source), outcomeError).Inc()
		return nil, err
	}
	parseTotal.WithLabelValues(string(source), outcomeOK).Inc()
	return m, nil
}

func wrapFetchError(source model.SourceType, url string, cause error) error {
	if source == model.SourceHls {
		return &lifecycle.PlaylistParseError{URL: url, Cause: cause}
	}
	return &lifecycle.MPDParseError{URL: url, Cause: cause}
}
