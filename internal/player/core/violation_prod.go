// Copyright (c) 2025 vflorio
// SPDX-License-Identifier: MIT

//go:build !debug

package core

import "github.com/vflorio/hbbtv-emu-sub005/internal/player/lifecycle"

// Dispatch after dispose is caller misuse. Production degrades to a typed
// error instead of killing the process; the debug build panics.
func dispatchAfterDispose(_ string) error {
	return lifecycle.ErrDisposed
}
