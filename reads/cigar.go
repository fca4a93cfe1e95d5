// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package reads

import (
	"fmt"
	"sort"

	"github.com/biogo/hts/sam"
)

// CigarMap counts reads per indel signature. A signature is
// "refID:pos:len{I|D}" with pos the 1-based reference position at which the
// indel starts.
type CigarMap map[string]int

// IndelKey returns the signature of an indel.
func IndelKey(refID, pos, length int, typ byte) string {
	return fmt.Sprintf("%d:%d:%d%c", refID, pos, length, typ)
}

// Add records every insertion and deletion carried by r.
func (m CigarMap) Add(r *Read) {
	if !r.Mapped {
		return
	}
	pos := r.Pos
	for _, op := range r.Rec.Cigar {
		switch op.Type() {
		case sam.CigarInsertion:
			m[IndelKey(r.RefID, pos, op.Len(), 'I')]++
		case sam.CigarDeletion:
			m[IndelKey(r.RefID, pos, op.Len(), 'D')]++
		}
		pos += op.Len() * op.Type().Consumes().Reference
	}
}

// Merge adds the counts of o to m.
func (m CigarMap) Merge(o CigarMap) {
	for k, v := range o {
		m[k] += v
	}
}

// Keys returns the signatures in m in sorted order.
func (m CigarMap) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
