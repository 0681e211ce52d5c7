// Copyright (C) 2026 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package backend

import (
	"os"
	"strings"

	"github.com/syncthing/watcher/lib/logger"
)

var (
	l = logger.DefaultLogger.NewFacility("backend", "Native and polling event backends")
)

func init() {
	l.SetDebug("backend", strings.Contains(os.Getenv("STTRACE"), "backend") || os.Getenv("STTRACE") == "all")
}
