// Copyright (C) 2026 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package hub

import (
	"os"
	"strings"

	"github.com/syncthing/watcher/lib/logger"
)

var (
	l = logger.DefaultLogger.NewFacility("hub", "Command routing and event dispatch")
)

func init() {
	l.SetDebug("hub", strings.Contains(os.Getenv("STTRACE"), "hub") || os.Getenv("STTRACE") == "all")
}
