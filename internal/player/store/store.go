// Copyright (c) 2025 vflorio
// SPDX-License-Identifier: MIT

// Package store persists the per-session transition journal. Every applied
// or rejected transition becomes one append-only Entry; backends trade
// durability for footprint (memory ring, SQLite, Badger).
package store

import (
	"context"
	"errors"
	"time"
)

// Entry is one journal row. Seq mirrors the notification sequence number of
// the session that produced it, so journal rows and live subscriptions can
// be correlated.
type Entry struct {
	SessionID string    `json:"sessionId"`
	Seq       uint64    `json:"seq"`
	At        time.Time `json:"at"`
	FromState string    `json:"fromState"`
	ToState   string    `json:"toState"`
	Action    string    `json:"action"`
	Reason    string    `json:"reason,omitempty"`
	ErrCode   string    `json:"errCode,omitempty"`
}

// Store is the journal backend contract.
//
// List returns entries for one session in ascending Seq order; a positive
// limit keeps only the most recent entries. Purge drops entries recorded
// before the cutoff and reports how many were removed.
type Store interface {
	Append(ctx context.Context, e Entry) error
	List(ctx context.Context, sessionID string, limit int) ([]Entry, error)
	Sessions(ctx context.Context) ([]string, error)
	Purge(ctx context.Context, olderThan time.Time) (int, error)
	Close() error
}

// ErrClosed is returned by operations on a store that has been closed.
var ErrClosed = errors.New("journal store closed")
