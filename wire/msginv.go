// Copyright (c) 2013-2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"fmt"
	"io"
)

// defaultInvListAlloc is the default size used for the backing array for
// an inventory list. The array will dynamically grow as needed, but this
// figure is intended to provide enough space for the number of inventory
// vectors in a typical message without needing to grow the backing array
// multiple times. A message may hold up to MaxInvPerMsg entries, far more
// than this figure.
const defaultInvListAlloc = 1000

// MsgInv implements the Message interface and represents a single
// announcement of one or more inventory vectors - most commonly, the
// hash of a spork broadcast this node just accepted and wants its peers
// to pull if they haven't already seen it.
type MsgInv struct {
	InvList []*InvVect
}

// AddInvVect adds an inventory vector to the message. It returns an error
// if the inventory vector would exceed the maximum number of allowed
// entries per message.
func (msg *MsgInv) AddInvVect(iv *InvVect) error {
	if len(msg.InvList)+1 > MaxInvPerMsg {
		return messageError("MsgInv.AddInvVect", fmt.Sprintf(
			"too many invvect in message [max %v]", MaxInvPerMsg))
	}
	msg.InvList = append(msg.InvList, iv)
	return nil
}

// BtcDecode decodes r using the bitcoin protocol encoding into the
// receiver. This is part of the Message interface implementation.
func (msg *MsgInv) BtcDecode(r io.Reader, pver uint32) error {
	count, err := ReadVarInt(r, pver)
	if err != nil {
		return err
	}
	if count > MaxInvPerMsg {
		return messageError("MsgInv.BtcDecode", fmt.Sprintf(
			"too many invvect in message [count %v, max %v]",
			count, MaxInvPerMsg))
	}

	msg.InvList = make([]*InvVect, 0, count)
	for i := uint64(0); i < count; i++ {
		iv := InvVect{}
		if err := readInvVect(r, pver, &iv); err != nil {
			return err
		}
		msg.InvList = append(msg.InvList, &iv)
	}
	return nil
}

// BtcEncode encodes the receiver to w using the bitcoin protocol
// encoding. This is part of the Message interface implementation.
func (msg *MsgInv) BtcEncode(w io.Writer, pver uint32) error {
	count := len(msg.InvList)
	if count > MaxInvPerMsg {
		return messageError("MsgInv.BtcEncode", fmt.Sprintf(
			"too many invvect in message [count %v, max %v]",
			count, MaxInvPerMsg))
	}

	if err := WriteVarInt(w, pver, uint64(count)); err != nil {
		return err
	}
	for _, iv := range msg.InvList {
		if err := writeInvVect(w, pver, iv); err != nil {
			return err
		}
	}
	return nil
}

// Command returns the protocol command string for the message. This is
// part of the Message interface implementation.
func (msg *MsgInv) Command() string {
	return CmdInv
}

// MaxPayloadLength returns the maximum length the message can be when
// encoded. This is part of the Message interface implementation.
func (msg *MsgInv) MaxPayloadLength(pver uint32) uint32 {
	return MaxVarIntPayload + (MaxInvPerMsg * maxInvVectPayload)
}

// NewMsgInv returns a new inv message that conforms to the Message
// interface. See MsgInv for details.
func NewMsgInv() *MsgInv {
	return &MsgInv{
		InvList: make([]*InvVect, 0, defaultInvListAlloc),
	}
}

// NewMsgInvSizeHint returns a new inv message that conforms to the
// Message interface but is pre-allocated to have space for the
// provided number of inventory vector entries, sized down to the
// maximum allowed per message.
func NewMsgInvSizeHint(sizeHint uint) *MsgInv {
	if sizeHint > MaxInvPerMsg {
		sizeHint = MaxInvPerMsg
	}
	return &MsgInv{
		InvList: make([]*InvVect, 0, sizeHint),
	}
}
