// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package reads

import (
	"sort"

	farm "github.com/dgryski/go-farm"
)

func pairKey(pairID string) uint64 {
	return farm.Hash64([]byte(pairID))
}

// Dedup returns reads with repeated PairIDs removed, keeping the first copy,
// and the number of copies dropped. The order of the surviving reads is
// preserved.
func Dedup(in []*Read) ([]*Read, int) {
	seen := make(map[uint64]struct{}, len(in))
	out := in[:0:0]
	for _, r := range in {
		k := r.Key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	return out, len(in) - len(out)
}

// Set is a collection of reads keyed by PairID.
type Set map[string]*Read

// Add inserts r unless a read with the same PairID is already present.
func (s Set) Add(r *Read) {
	if _, ok := s[r.PairID]; !ok {
		s[r.PairID] = r
	}
}

// Sorted returns the reads in s ordered by reference position, then PairID.
func (s Set) Sorted() []*Read {
	out := make([]*Read, 0, len(s))
	for _, r := range s {
		out = append(out, r)
	}
	SortByPosition(out)
	return out
}

// SortByPosition sorts reads by (RefID, Pos, PairID). The order is total, so
// the result does not depend on the input order.
func SortByPosition(rs []*Read) {
	sort.Slice(rs, func(i, j int) bool {
		a, b := rs[i], rs[j]
		if a.RefID != b.RefID {
			return a.RefID < b.RefID
		}
		if a.Pos != b.Pos {
			return a.Pos < b.Pos
		}
		return a.PairID < b.PairID
	})
}
