// Copyright (c) 2014-2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package spork

import (
	"bytes"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/stretchr/testify/require"
)

func newTestKey(t *testing.T) *btcec.PrivateKey {
	t.Helper()
	key, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	return key
}

func TestSporkMessageSignAndRecover(t *testing.T) {
	signer := btcecSigner{}
	key := newTestKey(t)

	msg := &SporkMessage{
		SporkID:    SporkInstantSendEnabled,
		Value:      100,
		TimeSigned: 1700000000,
	}
	require.NoError(t, msg.Sign(signer, key))

	id, ok := msg.GetSignerKeyID(signer)
	require.True(t, ok)
	require.Equal(t, signer.KeyID(key), id)
	require.True(t, msg.CheckSignature(signer, id))

	other := newTestKey(t)
	require.False(t, msg.CheckSignature(signer, signer.KeyID(other)))
}

func TestSporkMessageSerializeRoundTrip(t *testing.T) {
	signer := btcecSigner{}
	key := newTestKey(t)

	msg := &SporkMessage{
		SporkID:    SporkNewSigsEnabled,
		Value:      42,
		TimeSigned: 1700000042,
	}
	require.NoError(t, msg.Sign(signer, key))

	var buf bytes.Buffer
	require.NoError(t, msg.Serialize(&buf))

	var decoded SporkMessage
	require.NoError(t, decoded.Deserialize(&buf))

	require.Equal(t, msg.SporkID, decoded.SporkID)
	require.Equal(t, msg.Value, decoded.Value)
	require.Equal(t, msg.TimeSigned, decoded.TimeSigned)
	require.Equal(t, msg.Sig, decoded.Sig)
	require.Equal(t, msg.MessageHash(), decoded.MessageHash())
}

func TestSporkMessageSignatureHashExcludesSig(t *testing.T) {
	signer := btcecSigner{}
	key := newTestKey(t)

	msg := &SporkMessage{SporkID: 1, Value: 2, TimeSigned: 3}
	before := msg.SignatureHash()
	require.NoError(t, msg.Sign(signer, key))
	after := msg.SignatureHash()

	require.Equal(t, before, after)
	require.NotEqual(t, msg.SignatureHash(), msg.MessageHash())
}

func TestSporkMessageTamperedValueFailsSignatureCheck(t *testing.T) {
	signer := btcecSigner{}
	key := newTestKey(t)

	msg := &SporkMessage{SporkID: 1, Value: 2, TimeSigned: 3}
	require.NoError(t, msg.Sign(signer, key))

	id, _ := msg.GetSignerKeyID(signer)
	msg.Value = 999
	require.False(t, msg.CheckSignature(signer, id))
}
