// Copyright (c) 2013-2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire_test

import (
	"bytes"
	"testing"

	"github.com/btcsuite/btcd-relay/wire"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/require"
)

func TestMsgSporkEncodeDecode(t *testing.T) {
	payload := []byte{0x01, 0x02, 0x03, 0x04}
	msg := wire.NewMsgSpork(payload)

	var buf bytes.Buffer
	require.NoError(t, msg.BtcEncode(&buf, wire.ProtocolVersion))
	require.Equal(t, wire.CmdSpork, msg.Command())

	var decoded wire.MsgSpork
	require.NoError(t, decoded.BtcDecode(&buf, wire.ProtocolVersion))
	require.Equal(t, payload, decoded.Payload)
}

func TestMsgGetSporksEncodeDecode(t *testing.T) {
	msg := wire.NewMsgGetSporks()

	var buf bytes.Buffer
	require.NoError(t, msg.BtcEncode(&buf, wire.ProtocolVersion))
	require.Equal(t, 0, buf.Len())
	require.Equal(t, wire.CmdGetSporks, msg.Command())

	var decoded wire.MsgGetSporks
	require.NoError(t, decoded.BtcDecode(&buf, wire.ProtocolVersion))
}

func TestOutPointString(t *testing.T) {
	op := wire.OutPoint{Index: 3}
	require.Contains(t, op.String(), ":3")
}

func TestInvVectSporkType(t *testing.T) {
	require.Equal(t, "MSG_SPORK", wire.InvTypeSpork.String())
}

func TestMsgInvEncodeDecode(t *testing.T) {
	hash := chainhash.Hash{0x01}
	msg := wire.NewMsgInv()
	require.NoError(t, msg.AddInvVect(wire.NewInvVect(wire.InvTypeSpork, &hash)))
	require.Equal(t, wire.CmdInv, msg.Command())

	var buf bytes.Buffer
	require.NoError(t, msg.BtcEncode(&buf, wire.ProtocolVersion))

	var decoded wire.MsgInv
	require.NoError(t, decoded.BtcDecode(&buf, wire.ProtocolVersion))
	require.Len(t, decoded.InvList, 1)
	require.Equal(t, wire.InvTypeSpork, decoded.InvList[0].Type)
	require.Equal(t, hash, decoded.InvList[0].Hash)
}

func TestMsgInvRejectsTooManyInvVects(t *testing.T) {
	msg := wire.NewMsgInvSizeHint(0)
	hash := chainhash.Hash{}
	iv := wire.NewInvVect(wire.InvTypeTx, &hash)
	for i := 0; i < wire.MaxInvPerMsg; i++ {
		require.NoError(t, msg.AddInvVect(iv))
	}
	require.Error(t, msg.AddInvVect(iv))
}
