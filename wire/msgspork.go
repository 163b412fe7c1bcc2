// Copyright (c) 2013-2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import "io"

// MaxSporkPayload is the maximum size in bytes a single spork message's
// serialized payload may occupy. A spork carries a fixed-width header plus
// one recoverable ECDSA signature, so this is generous headroom rather
// than a tight bound.
const MaxSporkPayload = 256

// MsgSpork implements the Message interface and carries the serialized
// form of a single signed spork broadcast. The payload itself is opaque
// to this package - it is produced and consumed by the spork package's
// own (de)serialization so that wire stays free of a dependency on spork.
type MsgSpork struct {
	Payload []byte
}

// NewMsgSpork returns a new spork message wrapping the given serialized
// payload.
func NewMsgSpork(payload []byte) *MsgSpork {
	return &MsgSpork{Payload: payload}
}

// BtcDecode implements the Message interface.
func (msg *MsgSpork) BtcDecode(r io.Reader, pver uint32) error {
	payload, err := ReadVarBytes(r, pver, MaxSporkPayload, "MsgSpork.Payload")
	if err != nil {
		return err
	}
	msg.Payload = payload
	return nil
}

// BtcEncode implements the Message interface.
func (msg *MsgSpork) BtcEncode(w io.Writer, pver uint32) error {
	return WriteVarBytes(w, pver, msg.Payload)
}

// Command implements the Message interface.
func (msg *MsgSpork) Command() string {
	return CmdSpork
}

// MaxPayloadLength implements the Message interface.
func (msg *MsgSpork) MaxPayloadLength(pver uint32) uint32 {
	return MaxSporkPayload + 9
}
