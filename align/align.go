// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package align maps assembled contigs to the reference genome and realigns
// reads to contigs.
package align

import (
	"context"
	"sort"

	"github.com/biogo/hts/sam"
)

// Query is one sequence to align.
type Query struct {
	Name string
	Seq  []byte
}

// Aligner maps queries to the reference. The i'th element of the result holds
// the alignment records of queries[i]: the primary record first, followed by
// any supplementary records. A query that does not map yields one unmapped
// record or none.
type Aligner interface {
	Align(ctx context.Context, queries []Query) ([][]*sam.Record, error)
	// Header returns the reference dictionary alignments are reported against.
	Header() *sam.Header
}

// group arranges records by query name, in the order of queries. Secondary
// alignments are discarded. Within a group the primary record comes first.
func group(queries []Query, recs []*sam.Record) [][]*sam.Record {
	index := make(map[string]int, len(queries))
	for i, q := range queries {
		index[q.Name] = i
	}
	out := make([][]*sam.Record, len(queries))
	for _, r := range recs {
		if r.Flags&sam.Secondary != 0 {
			continue
		}
		i, ok := index[r.Name]
		if !ok {
			continue
		}
		out[i] = append(out[i], r)
	}
	for _, g := range out {
		sort.SliceStable(g, func(i, j int) bool {
			return g[i].Flags&sam.Supplementary == 0 && g[j].Flags&sam.Supplementary != 0
		})
	}
	return out
}
