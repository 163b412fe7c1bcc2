// Copyright (c) 2014-2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package spork

import (
	"time"

	"github.com/btcsuite/btcd-relay/wire"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// PeerID identifies a connected peer. It mirrors the small integer peer
// identifiers used throughout the connection manager rather than pulling
// in a full peer type, since the manager only ever needs to name a peer,
// not address it directly.
type PeerID int32

// PeerManager is the slice of the node's peer-processing layer the spork
// manager needs: recording what a peer has already seen, scoring
// misbehavior, and broadcasting accepted sporks to the rest of the
// network. A production node satisfies this with its real peer manager;
// tests satisfy it with a small recorder.
type PeerManager interface {
	// GetPeerRef reports whether peer is still a known, connected peer.
	// ProcessSpork uses this before bothering to mark anything as known
	// to it.
	GetPeerRef(peer PeerID) bool

	// AddKnownTx records that peer has announced or relayed hash, so it
	// is not redundantly re-requested or re-relayed to that peer.
	AddKnownTx(peer PeerID, hash chainhash.Hash)

	// ReceivedResponse clears hash from whatever "in flight" bookkeeping
	// the manager keeps for peer, if any.
	ReceivedResponse(peer PeerID, hash chainhash.Hash)

	// ForgetTxHash undoes AddKnownTx/ReceivedResponse bookkeeping for a
	// spork that was ultimately rejected or has finished processing.
	ForgetTxHash(peer PeerID, hash chainhash.Hash)

	// Misbehaving applies a ban-score penalty to peer for the named
	// protocol violation.
	Misbehaving(peer PeerID, score int, reason string)

	// RelayTransactionOther announces inv to every other connected peer.
	RelayTransactionOther(inv wire.InvVect)
}

// Connman is the slice of the connection manager needed to answer a
// GETSPORKS request: pushing messages to one specific peer.
type Connman interface {
	PushMessage(peer PeerID, msg wire.Message)
}

// Clock supplies the network-adjusted time used for skew checks and spork
// activation comparisons. A production node derives it from the median
// time offset of its peers; tests use a fixed or manually advanced clock.
type Clock interface {
	GetAdjustedTime() time.Time
}

// systemClock is the default Clock, backed by the wall clock.
type systemClock struct{}

func (systemClock) GetAdjustedTime() time.Time { return time.Now() }

// CryptoSigner is the recoverable-signature primitive the spork manager
// depends on. The default implementation is backed by btcec/v2's compact
// ECDSA recovery; it is expressed as an interface so tests can substitute
// a deterministic or intentionally-broken signer.
type CryptoSigner interface {
	// SignCompact produces a 65-byte recoverable signature over hash
	// using key.
	SignCompact(key *SigningKey, hash chainhash.Hash) ([]byte, error)

	// RecoverCompact recovers the signer's key ID from sig and hash. A
	// non-nil error means the signature is malformed, not merely
	// unauthorized.
	RecoverCompact(sig []byte, hash chainhash.Hash) (SignerKeyID, error)

	// KeyID returns the key ID a private key's public half would sign
	// as, without touching any signature - used to self-check a freshly
	// produced signature recovers to the key that made it.
	KeyID(key *SigningKey) SignerKeyID
}
