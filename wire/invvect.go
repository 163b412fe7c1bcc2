// Copyright (c) 2013-2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"fmt"
	"io"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// MaxInvPerMsg is the maximum number of inventory vectors that can be in
// a single inv message.
const MaxInvPerMsg = 50000

// maxInvVectPayload is the maximum payload size for an inventory vector:
// 4 bytes for the type plus the 32-byte hash.
const maxInvVectPayload = 4 + chainhash.HashSize

// InvType represents the allowed types of inventory vectors this package
// knows how to relay.
type InvType uint32

// These constants define the various supported inventory vector types.
const (
	InvTypeTx         InvType = 1
	InvTypeBlock      InvType = 2
	InvTypeFilteredTx InvType = 3
	InvTypeSpork      InvType = 0x6
)

var ivStrings = map[InvType]string{
	InvTypeTx:         "MSG_TX",
	InvTypeBlock:      "MSG_BLOCK",
	InvTypeFilteredTx: "MSG_FILTERED_TX",
	InvTypeSpork:      "MSG_SPORK",
}

// String implements the Stringer interface.
func (invtype InvType) String() string {
	if s, ok := ivStrings[invtype]; ok {
		return s
	}
	return fmt.Sprintf("Unknown InvType (%d)", uint32(invtype))
}

// InvVect defines a bitcoin inventory vector which is used to describe
// data, as specified by the Type field, that a peer wants, has, or is
// relaying.
type InvVect struct {
	Type InvType
	Hash chainhash.Hash
}

// NewInvVect returns a new InvVect using the provided type and hash.
func NewInvVect(typ InvType, hash *chainhash.Hash) *InvVect {
	return &InvVect{Type: typ, Hash: *hash}
}

func readInvVect(r io.Reader, pver uint32, iv *InvVect) error {
	var typ uint32
	if err := readElement(r, &typ); err != nil {
		return err
	}
	iv.Type = InvType(typ)
	_, err := io.ReadFull(r, iv.Hash[:])
	return err
}

func writeInvVect(w io.Writer, pver uint32, iv *InvVect) error {
	if err := writeElement(w, uint32(iv.Type)); err != nil {
		return err
	}
	_, err := w.Write(iv.Hash[:])
	return err
}
