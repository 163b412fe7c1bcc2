// Copyright (c) 2013-2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package orphanage

import "github.com/btcsuite/btclog"

// log is the package-level logger used throughout orphanage. It defaults
// to disabled so importers that never call UseLogger don't pay for or
// see any output.
var log = btclog.Disabled

// DisableLog disables all library log output. Logging is disabled by
// default until UseLogger is called.
func DisableLog() {
	log = btclog.Disabled
}

// UseLogger uses a specified Logger to output package logging info.
func UseLogger(logger btclog.Logger) {
	log = logger
}
