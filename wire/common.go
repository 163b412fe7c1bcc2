// Copyright (c) 2013-2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// MaxVarIntPayload is the maximum payload size for a variable length
// integer.
const MaxVarIntPayload = 9

// binaryFreeList is a channel-backed pool of 8-byte scratch buffers shared
// by the read/write helpers below to avoid an allocation per call. The
// package-level bufPool is shared by every caller; borrowing and returning
// go through the channel, so it is safe for concurrent use.
type binaryFreeList chan []byte

var bufPool binaryFreeList = make(chan []byte, 16)

func (l binaryFreeList) Borrow() []byte {
	var buf []byte
	select {
	case buf = <-l:
	default:
		buf = make([]byte, 8)
	}
	return buf[:8]
}

func (l binaryFreeList) Return(buf []byte) {
	select {
	case l <- buf:
	default:
	}
}

func (l binaryFreeList) Uint32(r io.Reader) (uint32, error) {
	buf := l.Borrow()[:4]
	if _, err := io.ReadFull(r, buf); err != nil {
		l.Return(buf)
		return 0, err
	}
	rv := binary.LittleEndian.Uint32(buf)
	l.Return(buf)
	return rv, nil
}

func (l binaryFreeList) Uint64(r io.Reader) (uint64, error) {
	buf := l.Borrow()
	if _, err := io.ReadFull(r, buf); err != nil {
		l.Return(buf)
		return 0, err
	}
	rv := binary.LittleEndian.Uint64(buf)
	l.Return(buf)
	return rv, nil
}

func (l binaryFreeList) PutUint32(w io.Writer, val uint32) error {
	buf := l.Borrow()[:4]
	binary.LittleEndian.PutUint32(buf, val)
	_, err := w.Write(buf)
	l.Return(buf)
	return err
}

func (l binaryFreeList) PutUint64(w io.Writer, val uint64) error {
	buf := l.Borrow()
	binary.LittleEndian.PutUint64(buf, val)
	_, err := w.Write(buf)
	l.Return(buf)
	return err
}

// readElement reads the next sequence of bytes from r using LittleEndian
// for the passed items, matching the rest of the family's fixed-width
// on-wire encoding.
func readElement(r io.Reader, element interface{}) error {
	switch e := element.(type) {
	case *int32:
		rv, err := bufPool.Uint32(r)
		if err != nil {
			return err
		}
		*e = int32(rv)
		return nil

	case *int64:
		rv, err := bufPool.Uint64(r)
		if err != nil {
			return err
		}
		*e = int64(rv)
		return nil

	case *uint32:
		rv, err := bufPool.Uint32(r)
		if err != nil {
			return err
		}
		*e = rv
		return nil

	case *chainhash.Hash:
		_, err := io.ReadFull(r, e[:])
		return err
	}

	return binary.Read(r, binary.LittleEndian, element)
}

// writeElement writes the little-endian representation of element to w,
// the encode-side counterpart of readElement.
func writeElement(w io.Writer, element interface{}) error {
	switch e := element.(type) {
	case int32:
		return bufPool.PutUint32(w, uint32(e))

	case int64:
		return bufPool.PutUint64(w, uint64(e))

	case uint32:
		return bufPool.PutUint32(w, e)

	case chainhash.Hash:
		_, err := w.Write(e[:])
		return err
	}

	return binary.Write(w, binary.LittleEndian, element)
}

// ReadVarInt reads a variable-length integer from r using the same
// CompactSize encoding used throughout the bitcoin-derived wire formats:
// values below 0xfd encode as a single byte, larger values are prefixed by
// a marker byte naming the width of the following little-endian integer.
func ReadVarInt(r io.Reader, pver uint32) (uint64, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}

	var rv uint64
	switch b[0] {
	case 0xff:
		val, err := bufPool.Uint64(r)
		if err != nil {
			return 0, err
		}
		rv = val

	case 0xfe:
		val, err := bufPool.Uint32(r)
		if err != nil {
			return 0, err
		}
		rv = uint64(val)

	case 0xfd:
		var buf [2]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return 0, err
		}
		rv = uint64(binary.LittleEndian.Uint16(buf[:]))

	default:
		rv = uint64(b[0])
	}

	return rv, nil
}

// WriteVarInt writes val to w using CompactSize encoding.
func WriteVarInt(w io.Writer, pver uint32, val uint64) error {
	if val < 0xfd {
		_, err := w.Write([]byte{byte(val)})
		return err
	}

	if val <= 0xffff {
		if _, err := w.Write([]byte{0xfd}); err != nil {
			return err
		}
		var buf [2]byte
		binary.LittleEndian.PutUint16(buf[:], uint16(val))
		_, err := w.Write(buf[:])
		return err
	}

	if val <= 0xffffffff {
		if _, err := w.Write([]byte{0xfe}); err != nil {
			return err
		}
		return bufPool.PutUint32(w, uint32(val))
	}

	if _, err := w.Write([]byte{0xff}); err != nil {
		return err
	}
	return bufPool.PutUint64(w, val)
}

// ReadVarBytes reads a variable-length byte slice prefixed by its
// CompactSize length, rejecting anything beyond maxAllowed so a malformed
// or hostile peer can't force an oversized allocation.
func ReadVarBytes(r io.Reader, pver uint32, maxAllowed uint32, fieldName string) ([]byte, error) {
	count, err := ReadVarInt(r, pver)
	if err != nil {
		return nil, err
	}
	if count > uint64(maxAllowed) {
		return nil, fmt.Errorf("%s is larger than the max allowed size "+
			"[count %d, max %d]", fieldName, count, maxAllowed)
	}

	b := make([]byte, count)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

// WriteVarBytes writes b to w prefixed by its CompactSize length.
func WriteVarBytes(w io.Writer, pver uint32, b []byte) error {
	if err := WriteVarInt(w, pver, uint64(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}
