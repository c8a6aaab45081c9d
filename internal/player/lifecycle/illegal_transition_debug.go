// Copyright (c) 2025 vflorio
// SPDX-License-Identifier: MIT

//go:build debug

package lifecycle

import (
	"fmt"

	"github.com/vflorio/hbbtv-emu-sub005/internal/player/model"
)

func illegalPair(from model.StateKind, act ActionKind) Decision {
	panic(fmt.Sprintf("undefined decision: %s + %s", from, act))
}
