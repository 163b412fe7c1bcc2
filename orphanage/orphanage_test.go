// Copyright (c) 2013-2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package orphanage

import (
	"math/rand"
	"testing"
	"time"

	"github.com/btcsuite/btcd-relay/wire"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/require"
)

// fakeTx is a minimal Tx implementation for testing; it carries exactly
// the fields the pool consults.
type fakeTx struct {
	txid     chainhash.Hash
	wtxid    chainhash.Hash
	prevOuts []wire.OutPoint
	numOut   int
	weight   int64
}

func (t *fakeTx) Txid() chainhash.Hash        { return t.txid }
func (t *fakeTx) Wtxid() chainhash.Hash       { return t.wtxid }
func (t *fakeTx) PrevOuts() []wire.OutPoint   { return t.prevOuts }
func (t *fakeTx) NumTxOut() int               { return t.numOut }
func (t *fakeTx) Weight() int64               { return t.weight }

func hashFromByte(b byte) chainhash.Hash {
	var h chainhash.Hash
	h[0] = b
	return h
}

func newTx(id byte, spends ...wire.OutPoint) *fakeTx {
	return &fakeTx{
		txid:     hashFromByte(id),
		wtxid:    hashFromByte(id),
		prevOuts: spends,
		numOut:   1,
		weight:   1000,
	}
}

func outpoint(id byte, index uint32) wire.OutPoint {
	return wire.OutPoint{Hash: hashFromByte(id), Index: index}
}

func TestAddTxAndHaveTx(t *testing.T) {
	o := New(DefaultConfig())
	tx := newTx(1, outpoint(0xaa, 0))

	require.NoError(t, o.AddTx(tx, 7, nil))
	require.True(t, o.HaveTx(tx.Wtxid()))
	require.True(t, o.HaveTxAndPeer(tx.Wtxid(), 7))
	require.False(t, o.HaveTxAndPeer(tx.Wtxid(), 8))
	require.Equal(t, 1, o.Count())
}

func TestAddTxDuplicateRecordsAnnouncer(t *testing.T) {
	o := New(DefaultConfig())
	tx := newTx(1, outpoint(0xaa, 0))

	require.NoError(t, o.AddTx(tx, 1, nil))
	err := o.AddTx(tx, 2, nil)
	require.ErrorIs(t, err, ErrOrphanAlreadyExists)
	require.True(t, o.HaveTxAndPeer(tx.Wtxid(), 2))
	require.Equal(t, 1, o.Count())
}

func TestAddTxTooLarge(t *testing.T) {
	o := New(DefaultConfig())
	tx := newTx(1, outpoint(0xaa, 0))
	tx.weight = MaxStandardTxWeight + 1

	err := o.AddTx(tx, 1, nil)
	require.ErrorIs(t, err, ErrOrphanTooLarge)
	require.False(t, o.HaveTx(tx.Wtxid()))
}

func TestEraseTx(t *testing.T) {
	o := New(DefaultConfig())
	tx := newTx(1, outpoint(0xaa, 0))
	require.NoError(t, o.AddTx(tx, 1, nil))

	require.True(t, o.EraseTx(tx.Wtxid()))
	require.False(t, o.HaveTx(tx.Wtxid()))
	require.False(t, o.EraseTx(tx.Wtxid()))
}

func TestEraseForPeerOnlyErasesOrphansWithNoOtherAnnouncer(t *testing.T) {
	o := New(DefaultConfig())
	tx1 := newTx(1, outpoint(0xaa, 0))
	tx2 := newTx(2, outpoint(0xbb, 0))

	require.NoError(t, o.AddTx(tx1, 1, nil))
	require.NoError(t, o.AddTx(tx2, 1, nil))
	require.True(t, o.AddAnnouncer(tx2.Wtxid(), 2))

	erased := o.EraseForPeer(1)
	require.Equal(t, 1, erased)
	require.False(t, o.HaveTx(tx1.Wtxid()))
	require.True(t, o.HaveTx(tx2.Wtxid()))
	require.False(t, o.HaveTxAndPeer(tx2.Wtxid(), 1))
	require.True(t, o.HaveTxAndPeer(tx2.Wtxid(), 2))
}

func TestEraseOrphanOfPeerLeavesOtherOrphansAlone(t *testing.T) {
	o := New(DefaultConfig())
	tx1 := newTx(1, outpoint(0xaa, 0))
	tx2 := newTx(2, outpoint(0xbb, 0))
	require.NoError(t, o.AddTx(tx1, 1, nil))
	require.NoError(t, o.AddTx(tx2, 1, nil))

	require.True(t, o.EraseOrphanOfPeer(tx1.Wtxid(), 1))
	require.False(t, o.HaveTx(tx1.Wtxid()))
	require.True(t, o.HaveTx(tx2.Wtxid()))

	require.False(t, o.EraseOrphanOfPeer(tx1.Wtxid(), 1))
}

func TestEraseOrphanOfPeerKeepsEntryWithOtherAnnouncer(t *testing.T) {
	o := New(DefaultConfig())
	tx := newTx(1, outpoint(0xaa, 0))
	require.NoError(t, o.AddTx(tx, 1, nil))
	require.True(t, o.AddAnnouncer(tx.Wtxid(), 2))

	require.True(t, o.EraseOrphanOfPeer(tx.Wtxid(), 1))
	require.True(t, o.HaveTx(tx.Wtxid()))
	require.True(t, o.HaveTxAndPeer(tx.Wtxid(), 2))
	require.False(t, o.HaveTxAndPeer(tx.Wtxid(), 1))
}

func TestLimitOrphansEvictsDownToLimitDeterministically(t *testing.T) {
	o := New(DefaultConfig())
	for i := byte(1); i <= 10; i++ {
		require.NoError(t, o.AddTx(newTx(i, outpoint(i, 0)), 1, nil))
	}
	require.Equal(t, 10, o.Count())

	rng := rand.New(rand.NewSource(42))
	evicted := o.LimitOrphans(5, rng)
	require.Len(t, evicted, 5)
	require.Equal(t, 5, o.Count())

	// The same pool state and the same seed evict the same orphans.
	o2 := New(DefaultConfig())
	for i := byte(1); i <= 10; i++ {
		require.NoError(t, o2.AddTx(newTx(i, outpoint(i, 0)), 1, nil))
	}
	require.Equal(t, evicted, o2.LimitOrphans(5, rand.New(rand.NewSource(42))))
}

func TestLimitOrphansSweepsExpiredFirst(t *testing.T) {
	now := time.Now()
	cfg := DefaultConfig()
	cfg.Expiry = time.Minute
	cfg.ExpiryScanInterval = 0
	cfg.Clock = func() time.Time { return now }
	o := New(cfg)

	tx := newTx(1, outpoint(1, 0))
	require.NoError(t, o.AddTx(tx, 1, nil))

	now = now.Add(2 * time.Minute)
	evicted := o.LimitOrphans(100, rand.New(rand.NewSource(1)))
	require.Len(t, evicted, 1)
	require.Equal(t, tx.Wtxid(), evicted[0])
	require.Equal(t, 0, o.Count())
}

func TestAddChildrenToWorkSetAndGetTxToReconsider(t *testing.T) {
	o := New(DefaultConfig())
	parent := newTx(1)
	parent.numOut = 1
	child := newTx(2, wire.OutPoint{Hash: parent.Txid(), Index: 0})

	require.NoError(t, o.AddTx(child, 9, nil))
	require.False(t, o.HaveTxToReconsider(9))

	o.AddChildrenToWorkSet(parent)
	require.True(t, o.HaveTxToReconsider(9))

	tx, ok := o.GetTxToReconsider(9)
	require.True(t, ok)
	require.Equal(t, child.Wtxid(), tx.Wtxid())
	require.False(t, o.HaveTxToReconsider(9))

	_, ok = o.GetTxToReconsider(9)
	require.False(t, ok)
}

func TestEraseForBlockRemovesSpentOrphans(t *testing.T) {
	o := New(DefaultConfig())
	spent := outpoint(0xaa, 0)
	tx := newTx(1, spent)
	require.NoError(t, o.AddTx(tx, 1, nil))

	blockTx := newTx(99, spent)
	erased := o.EraseForBlock([]Tx{blockTx})
	require.Equal(t, 1, erased)
	require.False(t, o.HaveTx(tx.Wtxid()))
}

func TestGetParentTxidsReturnsAnnouncerSuppliedListVerbatim(t *testing.T) {
	o := New(DefaultConfig())
	tx := newTx(1, outpoint(0xaa, 0))
	want := []chainhash.Hash{hashFromByte(0xaa), hashFromByte(0xbb), hashFromByte(0xaa)}
	require.NoError(t, o.AddTx(tx, 1, want))

	parents, ok := o.GetParentTxids(tx.Wtxid())
	require.True(t, ok)
	require.Equal(t, want, parents)
}

func TestGetParentTxidsUnknownWtxid(t *testing.T) {
	o := New(DefaultConfig())
	_, ok := o.GetParentTxids(hashFromByte(0xff))
	require.False(t, ok)
}

func TestGetChildrenFromSamePeerOrdersByExpiryDescending(t *testing.T) {
	now := time.Now()
	cfg := DefaultConfig()
	cfg.Clock = func() time.Time { return now }
	o := New(cfg)

	parent := newTx(1)
	op := wire.OutPoint{Hash: parent.Txid(), Index: 0}

	child1 := newTx(2, op)
	require.NoError(t, o.AddTx(child1, 1, nil))

	now = now.Add(time.Minute)
	child2 := newTx(3, op)
	require.NoError(t, o.AddTx(child2, 1, nil))

	children := o.GetChildrenFromSamePeer(parent, 1)
	require.Len(t, children, 2)
	require.Equal(t, child2.Wtxid(), children[0].Wtxid())
	require.Equal(t, child1.Wtxid(), children[1].Wtxid())
}

func TestGetChildrenFromSamePeerFiltersByPeer(t *testing.T) {
	o := New(DefaultConfig())
	parent := newTx(1)
	op := wire.OutPoint{Hash: parent.Txid(), Index: 0}
	child := newTx(2, op)
	require.NoError(t, o.AddTx(child, 1, nil))

	require.Empty(t, o.GetChildrenFromSamePeer(parent, 2))
	require.Len(t, o.GetChildrenFromSamePeer(parent, 1), 1)
}
