// Copyright (c) 2025 vflorio
// SPDX-License-Identifier: MIT

package store

import (
	"fmt"
	"time"
)

// Open creates a journal Store for the configured backend. path is the
// database file (sqlite) or directory (badger) and is ignored by the memory
// backend. ttl only applies to badger, memoryPerSession only to memory.
func Open(backend, path string, ttl time.Duration, memoryPerSession int) (Store, error) {
	if backend == "" {
		backend = "memory"
	}

	switch backend {
	case "memory":
		return NewMemoryStore(memoryPerSession), nil
	case "sqlite":
		return NewSqliteStore(path)
	case "badger":
		return NewBadgerStore(path, ttl)
	default:
		return nil, fmt.Errorf("unknown journal backend: %s", backend)
	}
}
