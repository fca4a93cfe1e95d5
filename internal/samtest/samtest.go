// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package samtest builds SAM headers and records for tests.
package samtest

import (
	"fmt"
	"strings"

	"github.com/biogo/hts/sam"
)

// Header returns a header with one reference per name.
func Header(names []string, lengths []int) *sam.Header {
	refs := make([]*sam.Reference, len(names))
	for i, name := range names {
		ref, err := sam.NewReference(name, "", "", lengths[i], nil, nil)
		if err != nil {
			panic(err)
		}
		refs[i] = ref
	}
	h, err := sam.NewHeader(nil, refs)
	if err != nil {
		panic(err)
	}
	return h
}

// Rec describes a record. Pos and MatePos are 1-based; a zero position means
// unplaced.
type Rec struct {
	Name    string
	Ref     string
	Pos     int
	MapQ    byte
	Cigar   string
	Flags   sam.Flags
	MateRef string
	MatePos int
	TempLen int
	Seq     string
}

// Record builds a record against h.
func Record(h *sam.Header, r Rec) *sam.Record {
	ref := lookup(h, r.Ref)
	mref := lookup(h, r.MateRef)
	var cigar sam.Cigar
	if r.Cigar != "" {
		var err error
		if cigar, err = sam.ParseCigar([]byte(r.Cigar)); err != nil {
			panic(err)
		}
	}
	seq := []byte(r.Seq)
	qual := make([]byte, len(seq))
	for i := range qual {
		qual[i] = 30
	}
	rec, err := sam.NewRecord(r.Name, ref, mref, r.Pos-1, r.MatePos-1, r.TempLen, r.MapQ, cigar, seq, qual, nil)
	if err != nil {
		panic(fmt.Sprintf("samtest.Record %+v: %v", r, err))
	}
	rec.Flags = r.Flags
	return rec
}

func lookup(h *sam.Header, name string) *sam.Reference {
	if name == "" || name == "*" {
		return nil
	}
	for _, ref := range h.Refs() {
		if ref.Name() == name {
			return ref
		}
	}
	panic("samtest: unknown reference " + name)
}

// RandomSeq returns a deterministic pseudo-random DNA sequence of length n.
func RandomSeq(n int, seed uint64) string {
	var b strings.Builder
	x := seed*6364136223846793005 + 1442695040888963407
	for i := 0; i < n; i++ {
		x ^= x << 13
		x ^= x >> 7
		x ^= x << 17
		b.WriteByte("ACGT"[x>>62])
	}
	return b.String()
}
