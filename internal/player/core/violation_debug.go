// Copyright (c) 2025 vflorio
// SPDX-License-Identifier: MIT

//go:build debug

package core

import "fmt"

func dispatchAfterDispose(sessionID string) error {
	panic(fmt.Sprintf("dispatch after dispose on session %s", sessionID))
}
