// Copyright (c) 2013-2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package orphanage implements a bounded pool of transactions whose
// parents have not yet been seen. It exists to give a transaction a
// second chance once its missing parent arrives, without requiring the
// relay layer to keep asking peers for the same parent over and over.
package orphanage

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/btcsuite/btcd-relay/wire"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

var (
	// ErrOrphanAlreadyExists is returned by AddTx when the pool already
	// holds a transaction with the same wtxid.
	ErrOrphanAlreadyExists = errors.New("orphanage: orphan already exists")

	// ErrOrphanTooLarge is returned by AddTx when tx's serialized weight
	// exceeds Config.MaxOrphanWeight.
	ErrOrphanTooLarge = errors.New("orphanage: orphan exceeds maximum size")
)

// MaxStandardTxWeight is the default ceiling on a single orphan's weight,
// matching the network's standard transaction weight policy.
const MaxStandardTxWeight = 400000

// DefaultOrphanExpiry is how long after AddTx an orphan may sit in the
// pool before a sweep evicts it. Later announcements or reconsideration do
// not extend it.
const DefaultOrphanExpiry = 20 * time.Minute

// DefaultExpiryScanInterval is the minimum spacing between expiry sweeps;
// LimitOrphans only pays the cost of a full sweep this often.
const DefaultExpiryScanInterval = 5 * time.Minute

// PeerID identifies the peer that announced a transaction. It is left as
// a plain integer rather than a full peer handle since the pool never
// needs to address a peer directly, only to name one.
type PeerID int32

// Tx is the minimal transaction surface the pool depends on. A mempool's
// normal transaction wrapper satisfies it directly.
type Tx interface {
	// Txid returns the transaction's non-witness hash.
	Txid() chainhash.Hash

	// Wtxid returns the transaction's witness hash; this is the pool's
	// primary key.
	Wtxid() chainhash.Hash

	// PrevOuts returns every outpoint this transaction spends.
	PrevOuts() []wire.OutPoint

	// NumTxOut returns the number of outputs this transaction creates.
	NumTxOut() int

	// Weight returns the transaction's serialized weight, used against
	// Config.MaxOrphanWeight.
	Weight() int64
}

// RNG is the randomness source LimitOrphans draws its eviction pick from.
// *rand.Rand satisfies it; tests supply a seeded instance for
// determinism.
type RNG interface {
	Intn(n int) int
}

// Config bundles Orphanage's tunable limits. Use DefaultConfig to start
// from the conventional values and override only what a deployment needs
// to change.
type Config struct {
	// MaxOrphanWeight rejects any transaction heavier than this from
	// AddTx.
	MaxOrphanWeight int64

	// Expiry is how long after AddTx an entry stays before a sweep
	// removes it; further announcements do not extend it.
	Expiry time.Duration

	// ExpiryScanInterval bounds how often LimitOrphans runs a full expiry
	// sweep.
	ExpiryScanInterval time.Duration

	// Clock returns the current time; defaults to time.Now. Tests
	// substitute a controllable clock to exercise expiry deterministically.
	Clock func() time.Time
}

// DefaultConfig returns the conventional orphan pool limits.
func DefaultConfig() *Config {
	return &Config{
		MaxOrphanWeight:    MaxStandardTxWeight,
		Expiry:             DefaultOrphanExpiry,
		ExpiryScanInterval: DefaultExpiryScanInterval,
		Clock:              time.Now,
	}
}

// entry is one orphan's bookkeeping record.
type entry struct {
	tx          Tx
	announcers  map[PeerID]struct{}
	expiry      time.Time
	listPos     int
	parentTxids []chainhash.Hash
}

// Orphanage is a bounded, multiply-indexed cache of orphan transactions.
// All state is guarded by a single mutex; callers are expected to be
// peer-processing goroutines calling in concurrently, not a single outer
// critical section the way the original confined this machinery.
type Orphanage struct {
	cfg Config

	mu          sync.Mutex
	byWtxid     map[chainhash.Hash]*entry
	list        []*entry
	byOutpoint  map[wire.OutPoint]map[*entry]struct{}
	peerWorkSet map[PeerID]map[chainhash.Hash]struct{}
	nextSweep   time.Time
}

// New returns an empty Orphanage configured per cfg. A nil cfg uses
// DefaultConfig.
func New(cfg *Config) *Orphanage {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Orphanage{
		cfg:         *cfg,
		byWtxid:     make(map[chainhash.Hash]*entry),
		byOutpoint:  make(map[wire.OutPoint]map[*entry]struct{}),
		peerWorkSet: make(map[PeerID]map[chainhash.Hash]struct{}),
	}
}

// AddTx inserts tx into the pool, announced by peer, if it is not already
// present. parentTxids is the announcer-reported list of txids tx depends
// on; it is stored opaquely and handed back verbatim by GetParentTxids,
// with no further interpretation by the pool. AddTx reports
// ErrOrphanAlreadyExists if the wtxid is already tracked (peer is still
// recorded as an additional announcer in that case) and ErrOrphanTooLarge
// if tx exceeds the configured weight ceiling; either way no new entry is
// created.
func (o *Orphanage) AddTx(tx Tx, peer PeerID, parentTxids []chainhash.Hash) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	wtxid := tx.Wtxid()
	if e, ok := o.byWtxid[wtxid]; ok {
		o.addAnnouncerLocked(e, peer)
		return ErrOrphanAlreadyExists
	}

	if tx.Weight() > o.cfg.MaxOrphanWeight {
		return ErrOrphanTooLarge
	}

	e := &entry{
		tx:          tx,
		announcers:  map[PeerID]struct{}{peer: {}},
		expiry:      o.cfg.Clock().Add(o.cfg.Expiry),
		listPos:     len(o.list),
		parentTxids: parentTxids,
	}

	o.byWtxid[wtxid] = e
	o.list = append(o.list, e)

	for _, op := range tx.PrevOuts() {
		if o.byOutpoint[op] == nil {
			o.byOutpoint[op] = make(map[*entry]struct{})
		}
		o.byOutpoint[op][e] = struct{}{}
	}

	log.Debugf("accepted orphan %v from peer %d (%d outpoints)", wtxid, peer, len(tx.PrevOuts()))
	return nil
}

// AddAnnouncer records peer as an additional announcer of the orphan
// named by wtxid. It reports false if no such orphan is tracked.
func (o *Orphanage) AddAnnouncer(wtxid chainhash.Hash, peer PeerID) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	e, ok := o.byWtxid[wtxid]
	if !ok {
		return false
	}
	o.addAnnouncerLocked(e, peer)
	return true
}

func (o *Orphanage) addAnnouncerLocked(e *entry, peer PeerID) {
	e.announcers[peer] = struct{}{}
}

// EraseTx removes the orphan named by wtxid entirely from byWtxid,
// byOutpoint, and list. It reports false if no such orphan was tracked.
func (o *Orphanage) EraseTx(wtxid chainhash.Hash) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	e, ok := o.byWtxid[wtxid]
	if !ok {
		return false
	}
	o.eraseEntryLocked(e)
	return true
}

// eraseEntryLocked removes e from byWtxid, byOutpoint, and list. It does
// not touch any peerWorkSet: an already-enqueued wtxid is left dangling,
// and GetTxToReconsider discards it lazily on pop rather than paying to
// purge every announcer's work set here. Callers hold o.mu.
func (o *Orphanage) eraseEntryLocked(e *entry) {
	wtxid := e.tx.Wtxid()
	delete(o.byWtxid, wtxid)

	for _, op := range e.tx.PrevOuts() {
		set := o.byOutpoint[op]
		delete(set, e)
		if len(set) == 0 {
			delete(o.byOutpoint, op)
		}
	}

	o.removeFromListLocked(e)
}

// removeFromListLocked implements swap-and-pop removal from the dense
// list: the last element is moved into the removed slot so eviction never
// needs to shift the whole slice. Callers hold o.mu.
func (o *Orphanage) removeFromListLocked(e *entry) {
	last := len(o.list) - 1
	pos := e.listPos
	if pos != last {
		o.list[pos] = o.list[last]
		o.list[pos].listPos = pos
	}
	o.list[last] = nil
	o.list = o.list[:last]
}

// EraseForPeer removes peer's association with every orphan it
// announced, erasing any orphan this leaves with no remaining announcer.
// It returns the number of orphans erased outright.
func (o *Orphanage) EraseForPeer(peer PeerID) int {
	o.mu.Lock()
	defer o.mu.Unlock()

	delete(o.peerWorkSet, peer)

	entries := make([]*entry, 0, len(o.byWtxid))
	for _, e := range o.byWtxid {
		if _, ok := e.announcers[peer]; ok {
			entries = append(entries, e)
		}
	}

	erased := 0
	for _, e := range entries {
		if len(e.announcers) == 1 {
			o.eraseEntryLocked(e)
			erased++
		} else {
			delete(e.announcers, peer)
		}
	}
	return erased
}

// EraseOrphanOfPeer drops a single orphan's association with one peer: it
// is removed from that peer's work set, and erased outright only if peer
// was its last remaining announcer. Unlike EraseForPeer, no other orphan
// announced by peer is touched. It reports false if wtxid is not tracked
// or peer never announced it.
func (o *Orphanage) EraseOrphanOfPeer(wtxid chainhash.Hash, peer PeerID) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	e, ok := o.byWtxid[wtxid]
	if !ok {
		return false
	}
	if _, ok := e.announcers[peer]; !ok {
		return false
	}

	delete(e.announcers, peer)
	if set := o.peerWorkSet[peer]; set != nil {
		delete(set, wtxid)
		if len(set) == 0 {
			delete(o.peerWorkSet, peer)
		}
	}

	if len(e.announcers) == 0 {
		o.eraseEntryLocked(e)
	}
	return true
}

// LimitOrphans evicts uniformly-random entries until the pool holds at
// most maxOrphans, first running an expiry sweep if one is due. It
// returns the wtxid of every entry erased by the call, whether by the
// expiry sweep or by random eviction. rng must never be nil; callers
// owning a deterministic *rand.Rand get deterministic eviction out of
// this contract.
func (o *Orphanage) LimitOrphans(maxOrphans int, rng RNG) []chainhash.Hash {
	o.mu.Lock()
	defer o.mu.Unlock()

	erased := o.sweepExpiredLocked()

	for len(o.list) > maxOrphans {
		idx := rng.Intn(len(o.list))
		e := o.list[idx]
		wtxid := e.tx.Wtxid()
		log.Debugf("evicting orphan %v to enforce pool limit", wtxid)
		o.eraseEntryLocked(e)
		erased = append(erased, wtxid)
	}
	return erased
}

// sweepExpiredLocked removes every entry past its expiry, provided enough
// time has passed since the last sweep to make another one worthwhile.
// The next sweep is scheduled relative to the earliest-expiring surviving
// entry, not a fixed cadence off now, so a pool that goes quiet doesn't
// keep paying for scans against nothing. Callers hold o.mu.
func (o *Orphanage) sweepExpiredLocked() []chainhash.Hash {
	now := o.cfg.Clock()
	if now.Before(o.nextSweep) {
		return nil
	}

	var erased []chainhash.Hash
	var minExpiry time.Time

	for i := 0; i < len(o.list); {
		e := o.list[i]
		if now.After(e.expiry) {
			log.Debugf("expiring orphan %v", e.tx.Wtxid())
			erased = append(erased, e.tx.Wtxid())
			o.eraseEntryLocked(e)
			continue
		}
		if minExpiry.IsZero() || e.expiry.Before(minExpiry) {
			minExpiry = e.expiry
		}
		i++
	}

	if minExpiry.IsZero() {
		o.nextSweep = now.Add(o.cfg.ExpiryScanInterval)
	} else {
		o.nextSweep = minExpiry.Add(o.cfg.ExpiryScanInterval)
	}
	return erased
}

// HaveTx reports whether wtxid is currently tracked.
func (o *Orphanage) HaveTx(wtxid chainhash.Hash) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.byWtxid[wtxid]
	return ok
}

// HaveTxAndPeer reports whether wtxid is tracked and was announced by
// peer specifically.
func (o *Orphanage) HaveTxAndPeer(wtxid chainhash.Hash, peer PeerID) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	e, ok := o.byWtxid[wtxid]
	if !ok {
		return false
	}
	_, ok = e.announcers[peer]
	return ok
}

// AddChildrenToWorkSet finds every currently-tracked orphan that spends
// one of tx's outputs and adds it to each of its announcers' work sets,
// so a peer that's already connected gets a chance to reconsider it
// without waiting on a fresh announcement.
func (o *Orphanage) AddChildrenToWorkSet(tx Tx) {
	o.mu.Lock()
	defer o.mu.Unlock()

	txid := tx.Txid()
	for i := 0; i < tx.NumTxOut(); i++ {
		op := wire.OutPoint{Hash: txid, Index: uint32(i)}
		for e := range o.byOutpoint[op] {
			for peer := range e.announcers {
				if o.peerWorkSet[peer] == nil {
					o.peerWorkSet[peer] = make(map[chainhash.Hash]struct{})
				}
				o.peerWorkSet[peer][e.tx.Wtxid()] = struct{}{}
			}
		}
	}
}

// GetTxToReconsider pops one arbitrary orphan off peer's work set and
// returns it for reprocessing. It reports false once the work set is
// empty.
func (o *Orphanage) GetTxToReconsider(peer PeerID) (Tx, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	work := o.peerWorkSet[peer]
	for wtxid := range work {
		delete(work, wtxid)
		if len(work) == 0 {
			delete(o.peerWorkSet, peer)
		}
		if e, ok := o.byWtxid[wtxid]; ok {
			return e.tx, true
		}
	}
	return nil, false
}

// HaveTxToReconsider reports whether peer's work set still has an entry
// waiting.
func (o *Orphanage) HaveTxToReconsider(peer PeerID) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.peerWorkSet[peer]) > 0
}

// EraseForBlock removes every orphan that spends an output any of txs
// spends, since a block confirming those inputs means those orphans can
// never be valid going forward (or have just been confirmed themselves).
func (o *Orphanage) EraseForBlock(txs []Tx) int {
	o.mu.Lock()
	defer o.mu.Unlock()

	erase := make(map[*entry]struct{})
	for _, tx := range txs {
		for _, op := range tx.PrevOuts() {
			for e := range o.byOutpoint[op] {
				erase[e] = struct{}{}
			}
		}
	}

	for e := range erase {
		o.eraseEntryLocked(e)
	}
	return len(erase)
}

// GetParentTxids returns the parent txids the announcer reported for
// wtxid when it called AddTx. It reports false if wtxid is not tracked.
func (o *Orphanage) GetParentTxids(wtxid chainhash.Hash) ([]chainhash.Hash, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	e, ok := o.byWtxid[wtxid]
	if !ok {
		return nil, false
	}
	return e.parentTxids, true
}

// GetChildrenFromSamePeer returns every orphan, announced by peer, that
// spends one of parent's outputs, ordered by descending expiry with the
// wtxid used as a deterministic tie-break.
func (o *Orphanage) GetChildrenFromSamePeer(parent Tx, peer PeerID) []Tx {
	o.mu.Lock()
	defer o.mu.Unlock()

	txid := parent.Txid()
	matches := make(map[*entry]struct{})
	for i := 0; i < parent.NumTxOut(); i++ {
		op := wire.OutPoint{Hash: txid, Index: uint32(i)}
		for e := range o.byOutpoint[op] {
			if _, ok := e.announcers[peer]; ok {
				matches[e] = struct{}{}
			}
		}
	}

	entries := make([]*entry, 0, len(matches))
	for e := range matches {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].expiry.Equal(entries[j].expiry) {
			return entries[i].expiry.After(entries[j].expiry)
		}
		hi, hj := entries[i].tx.Wtxid(), entries[j].tx.Wtxid()
		return lessHash(hi, hj)
	})

	out := make([]Tx, len(entries))
	for i, e := range entries {
		out[i] = e.tx
	}
	return out
}

func lessHash(a, b chainhash.Hash) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// Count returns the number of orphans currently tracked.
func (o *Orphanage) Count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.list)
}
