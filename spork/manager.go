// Copyright (c) 2014-2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package spork

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/btcsuite/btcd-relay/wire"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// futureDriftLimit is how far into the future, relative to adjusted time,
// a spork's timeSigned may sit before it is treated as a protocol
// violation rather than ordinary clock skew between signer and relayer.
const futureDriftLimit = 2 * time.Hour

// ManagerConfig bundles SporkManager's dependencies. Use
// DefaultManagerConfig to fill in the ordinary collaborators, overriding
// only what a given deployment or test needs to replace.
type ManagerConfig struct {
	// ChainParams selects the network SetSporkAddress decodes addresses
	// against.
	ChainParams *chaincfg.Params

	// MinSporkKeys is the initial activation threshold: the number of
	// distinct authorized signers that must agree on a value before
	// SporkValueIsActive reports it.
	MinSporkKeys int

	// Clock supplies network-adjusted time.
	Clock Clock

	// Signer backs all signing and signature-recovery operations.
	Signer CryptoSigner
}

// DefaultManagerConfig returns a ManagerConfig wired to the production
// collaborators: the system wall clock and the btcec/v2 compact-ECDSA
// signer.
func DefaultManagerConfig(params *chaincfg.Params) *ManagerConfig {
	return &ManagerConfig{
		ChainParams:  params,
		MinSporkKeys: 1,
		Clock:        systemClock{},
		Signer:       btcecSigner{},
	}
}

// SporkManager tracks every spork broadcast seen from the network's
// authorized signers, computes each spork's currently-active value by
// threshold agreement, and relays newly-accepted broadcasts onward.
//
// SporkManager's own mutex is never held while calling out to PeerManager
// or Connman: every operation that needs to touch a collaborator first
// makes its decision under the lock, releases it, and only then calls
// out. This ordering exists so a slow or misbehaving peer-manager call
// can never be made while blocking every other spork operation.
type SporkManager struct {
	cfg ManagerConfig

	mu                sync.Mutex
	active            map[int32]map[SignerKeyID]*SporkMessage
	byHash            map[chainhash.Hash]*SporkMessage
	authorizedSigners map[SignerKeyID]struct{}
	minSporkKeys      int
	privKey           *SigningKey
	cachedValue       map[int32]int64
	cachedActive      map[int32]bool
}

// NewSporkManager returns an empty SporkManager configured per cfg. A nil
// Clock or Signer is filled in with the production default.
func NewSporkManager(cfg *ManagerConfig) *SporkManager {
	sm := &SporkManager{
		cfg:               *cfg,
		active:            make(map[int32]map[SignerKeyID]*SporkMessage),
		byHash:            make(map[chainhash.Hash]*SporkMessage),
		authorizedSigners: make(map[SignerKeyID]struct{}),
		minSporkKeys:      cfg.MinSporkKeys,
		cachedValue:       make(map[int32]int64),
		cachedActive:      make(map[int32]bool),
	}
	if sm.cfg.Clock == nil {
		sm.cfg.Clock = systemClock{}
	}
	if sm.cfg.Signer == nil {
		sm.cfg.Signer = btcecSigner{}
	}
	return sm
}

// ProcessSporkMessages dispatches a single incoming wire command to
// ProcessSpork or ProcessGetSporks. Any other command is ignored - this
// manager only ever registers for the two it understands.
func (sm *SporkManager) ProcessSporkMessages(peer PeerID, command string, payload []byte, connman Connman, pm PeerManager) {
	switch command {
	case wire.CmdSpork:
		sm.ProcessSpork(peer, payload, pm)
	case wire.CmdGetSporks:
		sm.ProcessGetSporks(peer, connman)
	}
}

// ProcessSpork validates and, if accepted, records and relays a single
// spork broadcast received from peer.
func (sm *SporkManager) ProcessSpork(peer PeerID, payload []byte, pm PeerManager) {
	msg := new(SporkMessage)
	if err := msg.Deserialize(bytes.NewReader(payload)); err != nil {
		log.Debugf("malformed spork from peer %d: %v", peer, err)
		return
	}

	hash := msg.MessageHash()

	if pm.GetPeerRef(peer) {
		pm.AddKnownTx(peer, hash)
	}
	pm.ReceivedResponse(peer, hash)

	maxFuture := sm.cfg.Clock.GetAdjustedTime().Add(futureDriftLimit).Unix()
	if msg.TimeSigned > maxFuture {
		pm.ForgetTxHash(peer, hash)
		pm.Misbehaving(peer, 100, "spork too far into the future")
		return
	}

	signerID, ok := msg.GetSignerKeyID(sm.cfg.Signer)
	if ok {
		sm.mu.Lock()
		ok = sm.isAuthorizedLocked(signerID)
		sm.mu.Unlock()
	}
	if !ok {
		pm.ForgetTxHash(peer, hash)
		pm.Misbehaving(peer, 100, "invalid spork signature")
		return
	}

	accepted := sm.acceptLocked(msg, signerID)
	if !accepted {
		pm.ForgetTxHash(peer, hash)
		return
	}

	pm.RelayTransactionOther(wire.InvVect{Type: wire.InvTypeSpork, Hash: hash})
	pm.ForgetTxHash(peer, hash)
}

// acceptLocked runs the authorization/duplicate/store sequence common to
// ProcessSpork and UpdateSpork under the manager's mutex, releasing it
// before returning. It reports whether msg was newly accepted.
func (sm *SporkManager) acceptLocked(msg *SporkMessage, signerID SignerKeyID) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if !sm.isAuthorizedLocked(signerID) {
		log.Debugf("spork %d rejected: unauthorized signer %s", msg.SporkID, signerID)
		return false
	}

	if existing, ok := sm.active[msg.SporkID][signerID]; ok && existing.TimeSigned >= msg.TimeSigned {
		return false
	}

	if sm.active[msg.SporkID] == nil {
		sm.active[msg.SporkID] = make(map[SignerKeyID]*SporkMessage)
	}
	sm.active[msg.SporkID][signerID] = msg
	sm.byHash[msg.MessageHash()] = msg
	delete(sm.cachedValue, msg.SporkID)
	delete(sm.cachedActive, msg.SporkID)
	return true
}

// ProcessGetSporks answers a GETSPORKS request by pushing every currently
// tracked spork back to peer, one message per broadcast.
func (sm *SporkManager) ProcessGetSporks(peer PeerID, connman Connman) {
	sm.mu.Lock()
	msgs := make([]*SporkMessage, 0, len(sm.byHash))
	for _, m := range sm.byHash {
		msgs = append(msgs, m)
	}
	sm.mu.Unlock()

	for _, m := range msgs {
		var buf bytes.Buffer
		if err := m.Serialize(&buf); err != nil {
			log.Warnf("failed to serialize spork %d for resend: %v", m.SporkID, err)
			continue
		}
		connman.PushMessage(peer, wire.NewMsgSpork(buf.Bytes()))
	}
}

// UpdateSpork signs value for sporkID using this node's configured
// private key and, if accepted, records and relays it. It reports false
// if no private key is set, the node is not an authorized signer, or
// signing fails.
func (sm *SporkManager) UpdateSpork(sporkID int32, value int64, pm PeerManager) bool {
	sm.mu.Lock()
	key := sm.privKey
	sm.mu.Unlock()
	if key == nil {
		return false
	}

	msg := &SporkMessage{
		SporkID:    sporkID,
		Value:      value,
		TimeSigned: sm.cfg.Clock.GetAdjustedTime().Unix(),
	}
	if err := msg.Sign(sm.cfg.Signer, key); err != nil {
		return false
	}

	signerID, ok := msg.GetSignerKeyID(sm.cfg.Signer)
	if !ok {
		return false
	}

	if !sm.acceptLocked(msg, signerID) {
		return false
	}

	pm.RelayTransactionOther(wire.InvVect{Type: wire.InvTypeSpork, Hash: msg.MessageHash()})
	return true
}

// SporkValueIsActive reports the value agreed on by at least the current
// activation threshold of distinct authorized signers for sporkID, if
// any. Because the threshold is always more than half the authorized
// signer set, at most one value can ever reach it, so iteration order
// over the signer set never affects the result.
func (sm *SporkManager) SporkValueIsActive(sporkID int32) (int64, bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.sporkValueIsActiveLocked(sporkID)
}

func (sm *SporkManager) sporkValueIsActiveLocked(sporkID int32) (int64, bool) {
	if v, ok := sm.cachedValue[sporkID]; ok {
		return v, true
	}

	counts := make(map[int64]int)
	for _, m := range sm.active[sporkID] {
		counts[m.Value]++
		if counts[m.Value] >= sm.minSporkKeys {
			sm.cachedValue[sporkID] = m.Value
			return m.Value, true
		}
	}
	return 0, false
}

// GetSporkValue returns the active value for sporkID, falling back to its
// compiled-in default, or -1 if sporkID is neither active nor known.
func (sm *SporkManager) GetSporkValue(sporkID int32) int64 {
	if v, ok := sm.SporkValueIsActive(sporkID); ok {
		return v
	}
	if d, ok := defaultSporkValue(sporkID); ok {
		return d
	}
	return -1
}

// IsSporkActive reports whether sporkID's value names a Unix timestamp
// already in the past, the conventional on/off encoding for boolean
// sporks. A true result is cached per spork ID for the lifetime of its
// current value; a false result is re-evaluated on every call.
func (sm *SporkManager) IsSporkActive(sporkID int32) bool {
	sm.mu.Lock()
	if sm.cachedActive[sporkID] {
		sm.mu.Unlock()
		return true
	}
	sm.mu.Unlock()

	active := sm.GetSporkValue(sporkID) < sm.cfg.Clock.GetAdjustedTime().Unix()
	if active {
		sm.mu.Lock()
		sm.cachedActive[sporkID] = true
		sm.mu.Unlock()
	}
	return active
}

// GetSporkByHash returns the broadcast previously recorded under hash, if
// any is still tracked.
func (sm *SporkManager) GetSporkByHash(hash chainhash.Hash) (*SporkMessage, bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	m, ok := sm.byHash[hash]
	return m, ok
}

// SetSporkAddress authorizes addr's underlying key as a spork signer.
// Only pay-to-pubkey-hash and pay-to-witness-v0-pubkey-hash addresses are
// accepted; any other address type is rejected.
func (sm *SporkManager) SetSporkAddress(addr string) bool {
	dest, err := btcutil.DecodeAddress(addr, sm.cfg.ChainParams)
	if err != nil {
		return false
	}

	var keyID SignerKeyID
	switch a := dest.(type) {
	case *btcutil.AddressPubKeyHash:
		copy(keyID[:], a.Hash160()[:])
	case *btcutil.AddressWitnessPubKeyHash:
		copy(keyID[:], a.Hash160()[:])
	default:
		return false
	}

	sm.mu.Lock()
	sm.authorizedSigners[keyID] = struct{}{}
	sm.mu.Unlock()
	return true
}

// SetMinSporkKeys changes the activation threshold. It rejects a value
// that isn't a strict majority of the authorized signer set: n must
// satisfy len(authorized)/2 < n <= len(authorized).
func (sm *SporkManager) SetMinSporkKeys(n int) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	numAuthorized := len(sm.authorizedSigners)
	if n <= numAuthorized/2 || n > numAuthorized {
		return false
	}
	sm.minSporkKeys = n
	return true
}

// SetPrivKey installs wifKey as this node's own spork signing key, after
// checking it belongs to an authorized signer and can self-sign. It
// reports false on any failure, leaving any previously configured key in
// place.
func (sm *SporkManager) SetPrivKey(wifKey string) bool {
	wif, err := btcutil.DecodeWIF(wifKey)
	if err != nil || !wif.IsForNet(sm.cfg.ChainParams) {
		return false
	}

	keyID := sm.cfg.Signer.KeyID(wif.PrivKey)

	sm.mu.Lock()
	authorized := sm.isAuthorizedLocked(keyID)
	sm.mu.Unlock()
	if !authorized {
		return false
	}

	test := &SporkMessage{}
	if err := test.Sign(sm.cfg.Signer, wif.PrivKey); err != nil {
		return false
	}

	sm.mu.Lock()
	sm.privKey = wif.PrivKey
	sm.mu.Unlock()
	return true
}

func (sm *SporkManager) isAuthorizedLocked(id SignerKeyID) bool {
	_, ok := sm.authorizedSigners[id]
	return ok
}

// CheckAndRemove drops every tracked broadcast whose signer is no longer
// authorized or whose signature no longer checks out, freeing empty spork
// slots, and then clears the threshold and activation caches for every
// spork ID.
func (sm *SporkManager) CheckAndRemove() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	for sporkID, signers := range sm.active {
		for keyID, m := range signers {
			if !sm.isAuthorizedLocked(keyID) || !m.CheckSignature(sm.cfg.Signer, keyID) {
				delete(signers, keyID)
				delete(sm.byHash, m.MessageHash())
			}
		}
		if len(signers) == 0 {
			delete(sm.active, sporkID)
		}
	}

	sm.cachedValue = make(map[int32]int64)
	sm.cachedActive = make(map[int32]bool)
}

// Clear drops every tracked broadcast and cache entry, returning the
// manager to its freshly-constructed state. Authorized signers, the
// threshold, and any configured private key are left untouched.
func (sm *SporkManager) Clear() {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.active = make(map[int32]map[SignerKeyID]*SporkMessage)
	sm.byHash = make(map[chainhash.Hash]*SporkMessage)
	sm.cachedValue = make(map[int32]int64)
	sm.cachedActive = make(map[int32]bool)
}

// String returns a short human-readable summary of every spork currently
// tracked, for debug logging.
func (sm *SporkManager) String() string {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	var sb strings.Builder
	for sporkID, signers := range sm.active {
		name := GetSporkNameByID(sporkID)
		if name == "" {
			name = fmt.Sprintf("%d", sporkID)
		}
		v, active := sm.sporkValueIsActiveLocked(sporkID)
		fmt.Fprintf(&sb, "%s: %d signer(s)", name, len(signers))
		if active {
			fmt.Fprintf(&sb, ", active=%d", v)
		}
		sb.WriteString("; ")
	}
	return sb.String()
}
