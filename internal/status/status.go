// Copyright (c) 2025 vflorio
// SPDX-License-Identifier: MIT

// Package status periodically exports a status.json snapshot of the
// daemon and its playback sessions.
package status

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"

	"github.com/vflorio/hbbtv-emu-sub005/internal/log"
	"github.com/vflorio/hbbtv-emu-sub005/internal/metrics"
	"github.com/vflorio/hbbtv-emu-sub005/internal/player/core"
)

// SessionStatus is one session's line in the exported document.
type SessionStatus struct {
	ID             string `json:"id"`
	State          string `json:"state"`
	SourceType     string `json:"sourceType,omitempty"`
	URL            string `json:"url,omitempty"`
	Representation string `json:"representation,omitempty"`
	Seq            uint64 `json:"seq"`
	ErrCode        string `json:"errCode,omitempty"`
}

// Document is the status.json payload.
type Document struct {
	Service        string          `json:"service"`
	Version        string          `json:"version"`
	PID            int             `json:"pid"`
	Hostname       string          `json:"hostname,omitempty"`
	StartedAt      time.Time       `json:"startedAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
	SessionsActive int             `json:"sessionsActive"`
	StateCounts    map[string]int  `json:"stateCounts,omitempty"`
	Sessions       []SessionStatus `json:"sessions"`
}

// Source provides the session summaries rendered into the document.
type Source interface {
	Sessions() []SessionStatus
}

// ManagerSource renders sessions straight off a session manager.
type ManagerSource struct {
	Manager *core.Manager
}

// Sessions maps every live session to its status line.
func (s ManagerSource) Sessions() []SessionStatus {
	live := s.Manager.List()
	out := make([]SessionStatus, 0, len(live))
	for _, o := range live {
		info := o.Info()
		out = append(out, SessionStatus{
			ID:             info.ID,
			State:          info.State.String(),
			SourceType:     string(info.SourceType),
			URL:            info.SourceURL,
			Representation: info.ActiveRepresentation,
			Seq:            info.Seq,
			ErrCode:        info.State.ErrCode,
		})
	}
	return out
}

// Config tunes the writer.
type Config struct {
	// Path is the full status.json location.
	Path string
	// Interval is the unconditional flush period.
	Interval time.Duration
	// Debounce delays the on-change write so notification bursts collapse
	// into one export.
	Debounce time.Duration
	// Version is stamped into the document.
	Version string
}

// Writer exports the document on an interval and, debounced, on demand.
type Writer struct {
	cfg       Config
	src       Source
	startedAt time.Time
	kick      chan struct{}
	logger    zerolog.Logger
}

// NewWriter returns a writer; Run starts the export loop.
func NewWriter(cfg Config, src Source) *Writer {
	return &Writer{
		cfg:       cfg,
		src:       src,
		startedAt: time.Now().UTC(),
		kick:      make(chan struct{}, 1),
		logger:    log.WithComponent("status"),
	}
}

// Notify requests a debounced export. Never blocks; a pending request
// already covers this one.
func (w *Writer) Notify() {
	select {
	case w.kick <- struct{}{}:
	default:
	}
}

// Run writes on the configured interval and after debounced notifications
// until ctx is canceled. A final export runs on the way out so the file
// reflects the shutdown state.
func (w *Writer) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	if err := w.WriteOnce(); err != nil {
		w.logger.Error().Err(err).Msg("initial status export failed")
	}

	var flush <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if err := w.WriteOnce(); err != nil {
				w.logger.Error().Err(err).Msg("final status export failed")
			}
			return nil
		case <-ticker.C:
			if err := w.WriteOnce(); err != nil {
				w.logger.Error().Err(err).Msg("status export failed")
			}
		case <-w.kick:
			if flush == nil {
				flush = time.After(w.cfg.Debounce)
			}
		case <-flush:
			flush = nil
			if err := w.WriteOnce(); err != nil {
				w.logger.Error().Err(err).Msg("status export failed")
			}
		}
	}
}

// WriteOnce renders and atomically replaces the status file.
func (w *Writer) WriteOnce() error {
	doc := w.render()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		metrics.IncStatusExport(false)
		return fmt.Errorf("marshal status: %w", err)
	}

	if err := w.replace(data); err != nil {
		metrics.IncStatusExport(false)
		return err
	}

	metrics.IncStatusExport(true)
	w.logger.Debug().
		Int("sessions", doc.SessionsActive).
		Str("path", w.cfg.Path).
		Msg("status exported")
	return nil
}

func (w *Writer) render() Document {
	sessions := w.src.Sessions()
	counts := make(map[string]int, 4)
	for _, s := range sessions {
		counts[s.State]++
	}

	hostname, _ := os.Hostname()
	return Document{
		Service:        "playerd",
		Version:        w.cfg.Version,
		PID:            os.Getpid(),
		Hostname:       hostname,
		StartedAt:      w.startedAt,
		UpdatedAt:      time.Now().UTC(),
		SessionsActive: len(sessions),
		StateCounts:    counts,
		Sessions:       sessions,
	}
}

// replace writes via a pending file: fsync before rename, never a
// partially visible status.json.
func (w *Writer) replace(data []byte) error {
	pendingFile, err := renameio.NewPendingFile(w.cfg.Path)
	if err != nil {
		return fmt.Errorf("create pending status file: %w", err)
	}
	defer func() {
		if err := pendingFile.Cleanup(); err != nil {
			w.logger.Debug().Err(err).Msg("cleanup pending status file")
		}
	}()

	if _, err := pendingFile.Write(data); err != nil {
		return fmt.Errorf("write status data: %w", err)
	}

	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace status file: %w", err)
	}
	return nil
}
