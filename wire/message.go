// Copyright (c) 2013-2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package wire implements the small slice of the peer-to-peer wire protocol
// this module's relay layer needs: the two spork messages and the inventory
// vector type used to announce them. It follows the same encode/decode
// shape as the rest of the btcsuite wire family (BtcEncode/BtcDecode plus a
// Command()/MaxPayloadLength() pair per message) without pulling in the
// full transaction/block message set, which belongs to a different part of
// the node.
package wire

import (
	"fmt"
	"io"
)

// ProtocolVersion is the latest protocol version this package knows how to
// speak. Message implementations receive it so they can reject themselves
// on stale peers the way the rest of the wire family does.
const ProtocolVersion uint32 = 70016

// MaxMessagePayload is the maximum bytes a single message payload may
// occupy, regardless of any tighter limit imposed by the message itself.
const MaxMessagePayload = 1024 * 1024 * 4 // 4MB

// Commands used in message headers to describe the type of message.
const (
	// CmdSpork identifies a single signed SporkMessage broadcast.
	CmdSpork = "spork"

	// CmdGetSporks requests a snapshot of every currently active spork.
	// It carries no payload.
	CmdGetSporks = "getsporks"

	// CmdInv announces a batch of inventory vectors, e.g. a relayed
	// spork broadcast's hash, to a peer.
	CmdInv = "inv"
)

// Message is the interface every wire message on this relay implements.
type Message interface {
	BtcDecode(r io.Reader, pver uint32) error
	BtcEncode(w io.Writer, pver uint32) error
	Command() string
	MaxPayloadLength(pver uint32) uint32
}

// messageError creates an error for the given function and description.
func messageError(f, desc string) error {
	return fmt.Errorf("%s: %s", f, desc)
}
