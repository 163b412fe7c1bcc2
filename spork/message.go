// Copyright (c) 2014-2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package spork

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/btcsuite/btcd-relay/wire"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// MaxSignatureLength bounds a single recoverable signature's encoded size.
// 65 bytes is the exact size of a compact-recoverable secp256k1
// signature; the slack is generous since no other shape is ever produced
// by this package.
const MaxSignatureLength = 72

// SignerKeyID is the hash160 of a signer's public key, the identity a
// spork's authorized-signer list is keyed on.
type SignerKeyID [20]byte

// String implements fmt.Stringer.
func (id SignerKeyID) String() string {
	return fmt.Sprintf("%x", id[:])
}

// SigningKey is the private half of a spork signer's keypair.
type SigningKey = btcec.PrivateKey

// SporkMessage is a single signed, timestamped parameter broadcast. Its
// wire format carries sporkID, value, timeSigned, and sig; sig
// authenticates the first three under one of the manager's authorized
// signer keys.
type SporkMessage struct {
	SporkID    int32
	Value      int64
	TimeSigned int64
	Sig        []byte
}

// signedFields serializes just sporkID, value, and timeSigned - the
// portion of the message the signature actually covers. Exported wire
// encoding (Serialize/Deserialize) additionally carries Sig.
func (m *SporkMessage) signedFields(w io.Writer) error {
	if err := binary.Write(w, binary.LittleEndian, m.SporkID); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, m.Value); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, m.TimeSigned)
}

// SignatureHash returns the hash that Sig authenticates: the double
// SHA-256 of sporkID || value || timeSigned, excluding the signature
// itself.
func (m *SporkMessage) SignatureHash() chainhash.Hash {
	var buf bytes.Buffer
	// Writing to a bytes.Buffer never fails.
	_ = m.signedFields(&buf)
	return chainhash.DoubleHashH(buf.Bytes())
}

// MessageHash returns the identifier for the fully-serialized message,
// signature included - the value relayed in a spork inventory vector and
// used as the byHash lookup key.
func (m *SporkMessage) MessageHash() chainhash.Hash {
	var buf bytes.Buffer
	_ = m.Serialize(&buf)
	return chainhash.DoubleHashH(buf.Bytes())
}

// Serialize writes the wire representation of m to w.
func (m *SporkMessage) Serialize(w io.Writer) error {
	if err := m.signedFields(w); err != nil {
		return err
	}
	return wire.WriteVarBytes(w, wire.ProtocolVersion, m.Sig)
}

// Deserialize reads the wire representation of a SporkMessage from r into
// m, replacing its contents.
func (m *SporkMessage) Deserialize(r io.Reader) error {
	if err := binary.Read(r, binary.LittleEndian, &m.SporkID); err != nil {
		return err
	}
	if err := binary.Read(r, binary.LittleEndian, &m.Value); err != nil {
		return err
	}
	if err := binary.Read(r, binary.LittleEndian, &m.TimeSigned); err != nil {
		return err
	}
	sig, err := wire.ReadVarBytes(r, wire.ProtocolVersion, MaxSignatureLength, "SporkMessage.Sig")
	if err != nil {
		return err
	}
	m.Sig = sig
	return nil
}

// Sign computes the signature hash for m and signs it with key using
// signer, storing the result in m.Sig. As a self-test, matching the
// source material's own habit of verifying a signature immediately after
// producing it, Sign recovers the signer back out of the signature it
// just made and confirms it matches key's public key.
func (m *SporkMessage) Sign(signer CryptoSigner, key *SigningKey) error {
	hash := m.SignatureHash()
	sig, err := signer.SignCompact(key, hash)
	if err != nil {
		return err
	}

	gotID, err := signer.RecoverCompact(sig, hash)
	if err != nil || gotID != signer.KeyID(key) {
		return fmt.Errorf("spork: signature self-check failed")
	}

	m.Sig = sig
	return nil
}

// GetSignerKeyID recovers the key ID of whichever key produced m.Sig over
// m's signature hash. It reports false if the signature is malformed.
func (m *SporkMessage) GetSignerKeyID(signer CryptoSigner) (SignerKeyID, bool) {
	id, err := signer.RecoverCompact(m.Sig, m.SignatureHash())
	if err != nil {
		return SignerKeyID{}, false
	}
	return id, true
}

// CheckSignature reports whether m.Sig is a valid signature over m's
// signature hash that recovers to keyID.
func (m *SporkMessage) CheckSignature(signer CryptoSigner, keyID SignerKeyID) bool {
	id, ok := m.GetSignerKeyID(signer)
	return ok && id == keyID
}
