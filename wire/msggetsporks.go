// Copyright (c) 2013-2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import "io"

// MsgGetSporks implements the Message interface and requests a snapshot of
// every currently active spork. It carries no payload.
type MsgGetSporks struct{}

// NewMsgGetSporks returns a new getsporks message.
func NewMsgGetSporks() *MsgGetSporks {
	return &MsgGetSporks{}
}

// BtcDecode implements the Message interface.
func (msg *MsgGetSporks) BtcDecode(r io.Reader, pver uint32) error {
	return nil
}

// BtcEncode implements the Message interface.
func (msg *MsgGetSporks) BtcEncode(w io.Writer, pver uint32) error {
	return nil
}

// Command implements the Message interface.
func (msg *MsgGetSporks) Command() string {
	return CmdGetSporks
}

// MaxPayloadLength implements the Message interface.
func (msg *MsgGetSporks) MaxPayloadLength(pver uint32) uint32 {
	return 0
}
