// Copyright (c) 2014-2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package spork

import (
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// btcecSigner is the default CryptoSigner, backed by btcec/v2's
// compact-recoverable ECDSA implementation over secp256k1.
type btcecSigner struct{}

// SignCompact implements CryptoSigner.
func (btcecSigner) SignCompact(key *SigningKey, hash chainhash.Hash) ([]byte, error) {
	return ecdsa.SignCompact(key, hash[:], true), nil
}

// RecoverCompact implements CryptoSigner.
func (btcecSigner) RecoverCompact(sig []byte, hash chainhash.Hash) (SignerKeyID, error) {
	pub, _, err := ecdsa.RecoverCompact(sig, hash[:])
	if err != nil {
		return SignerKeyID{}, err
	}
	return keyIDFromPubKeyBytes(pub.SerializeCompressed()), nil
}

// KeyID implements CryptoSigner.
func (btcecSigner) KeyID(key *SigningKey) SignerKeyID {
	return keyIDFromPubKeyBytes(key.PubKey().SerializeCompressed())
}

func keyIDFromPubKeyBytes(pubKey []byte) SignerKeyID {
	var id SignerKeyID
	copy(id[:], btcutil.Hash160(pubKey))
	return id
}
