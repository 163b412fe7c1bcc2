// Copyright (c) 2014-2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package spork

// SporkIDInvalid is returned by GetSporkIDByName for an unrecognized name.
const SporkIDInvalid int32 = -1

// Spork ID assignments. New entries are always appended; IDs are never
// reused or renumbered once shipped, since a running network may still
// have historical broadcasts referencing them.
const (
	SporkInstantSendEnabled      int32 = 10001
	SporkNewSigsEnabled          int32 = 10002
	SporkDeterministicMNsEnabled int32 = 10003
	SporkQuorumDKGEnabled        int32 = 10004
)

// sporkDef names a spork and gives the value it takes when no signer has
// ever broadcast one for it.
type sporkDef struct {
	id           int32
	name         string
	defaultValue int64
}

// sporkDefs is the compile-time table of every spork this build knows
// about. A spork ID absent from this table can still be relayed and
// activated (the protocol doesn't require advance registration) but
// GetSporkValue/GetSporkIDByName won't recognize it by name or supply it
// a default.
var sporkDefs = []sporkDef{
	{SporkInstantSendEnabled, "SPORK_INSTANTSEND_ENABLED", 0},
	{SporkNewSigsEnabled, "SPORK_NEW_SIGS_ENABLED", 4070908800},
	{SporkDeterministicMNsEnabled, "SPORK_DETERMINISTIC_MNS_ENABLED", 4070908800},
	{SporkQuorumDKGEnabled, "SPORK_QUORUM_DKG_ENABLED", 4070908800},
}

// GetSporkIDByName returns the ID registered under name, or SporkIDInvalid
// if no such spork is known at compile time.
func GetSporkIDByName(name string) int32 {
	for _, d := range sporkDefs {
		if d.name == name {
			return d.id
		}
	}
	return SporkIDInvalid
}

// GetSporkNameByID returns the name registered for id, or "" if none.
func GetSporkNameByID(id int32) string {
	for _, d := range sporkDefs {
		if d.id == id {
			return d.name
		}
	}
	return ""
}

func defaultSporkValue(id int32) (int64, bool) {
	for _, d := range sporkDefs {
		if d.id == id {
			return d.defaultValue, true
		}
	}
	return 0, false
}
