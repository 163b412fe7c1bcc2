// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package connmgr

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// Banning constants.
const (
	// Halflife defines the time (in seconds) for the persistent banscore
	// to decay to one half of its original value.
	Halflife = 60

	// lambda is the decaying constant derived from Halflife.
	lambda = math.Ln2 / Halflife

	// Lifetime defines the maximum age (in seconds) of a banscore
	// component before decay trims it to zero.
	Lifetime = 1800

	// BanThreshold is the score at which a peer is banned.
	BanThreshold = 100

	// WarnThreshold is the score at which a warning is logged, but the
	// peer is not yet banned.
	WarnThreshold = BanThreshold / 2
)

// DynamicBanScore provides dynamic ban scores consisting of a persistent
// and a decaying component. The persistent score can be used to account
// for misbehavior which is considered to be always relevant to the
// peer's score, while the decaying score is used for misbehavior which
// depends on the time since the last offense - a burst of small offenses
// in a short time can be as bad as a single large offense, but an
// occasional small offense should be forgiven.
type DynamicBanScore struct {
	lastUnix   int64
	transient  float64
	persistent uint32
	mtx        sync.Mutex
}

// String returns the ban score as a human-readable string.
func (s *DynamicBanScore) String() string {
	s.mtx.Lock()
	r := fmt.Sprintf("%v + %v at %v = %v as of now",
		s.persistent, s.transient, s.lastUnix, s.int(time.Now()))
	s.mtx.Unlock()
	return r
}

// Int returns the current ban score, the sum of the persistent and
// decaying scores.
func (s *DynamicBanScore) Int() uint32 {
	s.mtx.Lock()
	r := s.int(time.Now())
	s.mtx.Unlock()
	return r
}

// Increase increases both the persistent and decaying scores by the
// values passed as parameters, and returns the resulting score.
func (s *DynamicBanScore) Increase(persistent, transient uint32) uint32 {
	s.mtx.Lock()
	r := s.increase(persistent, transient, time.Now())
	s.mtx.Unlock()
	return r
}

// Reset sets both the persistent and decaying scores to zero.
func (s *DynamicBanScore) Reset() {
	s.mtx.Lock()
	s.persistent = 0
	s.transient = 0
	s.lastUnix = 0
	s.mtx.Unlock()
}

// int returns the ban score, the sum of the persistent and decaying
// scores at a given point in time. Must be called with the mutex held.
func (s *DynamicBanScore) int(t time.Time) uint32 {
	dt := t.Unix() - s.lastUnix
	if s.transient < 1 || dt < 0 || dt > Lifetime {
		return s.persistent
	}
	return s.persistent + uint32(s.transient*math.Exp(-1.0*float64(dt)*lambda))
}

// increase is the internal version of Increase which takes a time
// rather than using time.Now(), allowing it to be tested.
func (s *DynamicBanScore) increase(persistent, transient uint32, t time.Time) uint32 {
	s.persistent += persistent

	tu := t.Unix()
	dt := tu - s.lastUnix

	if transient > 0 {
		if dt > Lifetime {
			s.transient = 0
		} else if s.transient > 1 && dt > 0 {
			s.transient *= math.Exp(-1.0 * float64(dt) * lambda)
		}
		s.transient += float64(transient)
		s.lastUnix = tu
	}

	return s.persistent + uint32(s.transient)
}
