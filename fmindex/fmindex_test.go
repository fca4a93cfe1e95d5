// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package fmindex

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func randomSeq(r *rand.Rand, n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = "ACGT"[r.Intn(4)]
	}
	return b
}

func testTable(r *rand.Rand) *Table {
	t := NewTable(DefaultMinLength)
	for i := 0; i < 30; i++ {
		t.Add(string(rune('a'+i%26)), randomSeq(r, 41+r.Intn(80)))
	}
	return t
}

func naiveCount(t *Table, pattern []byte) int {
	n := 0
	for _, s := range t.Seqs {
		for i := 0; i+len(pattern) <= len(s.Seq); i++ {
			if bytes.Equal(s.Seq[i:i+len(pattern)], pattern) {
				n++
			}
		}
	}
	return n
}

func TestAdd(t *testing.T) {
	tab := NewTable(DefaultMinLength)
	expect.False(t, tab.Add("short", bytes.Repeat([]byte("A"), 40)))
	expect.True(t, tab.Add("ok", []byte("acgtxACGTACGTACGTACGTACGTACGTACGTACGTACGTA")))
	expect.EQ(t, tab.Len(), 1)
	expect.EQ(t, string(tab.Seqs[0].Seq[:6]), "ACGTNA")
}

func TestEmpty(t *testing.T) {
	_, err := Build(NewTable(DefaultMinLength))
	expect.True(t, errors.Is(errors.Invalid, err))
}

func TestFind(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	tab := testTable(r)
	idx, err := Build(tab)
	assert.NoError(t, err)
	for i := 0; i < 200; i++ {
		s := tab.Seqs[r.Intn(tab.Len())].Seq
		off := r.Intn(len(s) - 8)
		pattern := s[off : off+1+r.Intn(8)]
		iv := idx.Fwd.Find(pattern)
		expect.EQ(t, iv.Size(), naiveCount(tab, pattern))
		for row := iv.Lo; row < iv.Hi; row++ {
			p := idx.Fwd.Lookup(row)
			expect.True(t, bytes.HasPrefix(tab.Seqs[p.Seq].Seq[p.Off:], pattern))
		}
	}
}

func TestForwardReverseAgree(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	tab := testTable(r)
	before := make([][]byte, tab.Len())
	for i, s := range tab.Seqs {
		before[i] = append([]byte(nil), s.Seq...)
	}
	idx, err := Build(tab)
	assert.NoError(t, err)
	expect.EQ(t, idx.Fwd.NumStrings(), idx.Rev.NumStrings())
	expect.EQ(t, idx.Fwd.Len(), idx.Rev.Len())
	for i, s := range tab.Seqs {
		expect.EQ(t, s.Seq, before[i])
	}
	// A reversed pattern occurs in the reverse index as often as the pattern
	// occurs in the forward one.
	s := tab.Seqs[3].Seq
	pattern := s[5:17]
	rp := make([]byte, len(pattern))
	for i := range pattern {
		rp[i] = pattern[len(pattern)-1-i]
	}
	expect.EQ(t, idx.Fwd.Find(pattern).Size(), idx.Rev.Find(rp).Size())
}

func TestTerminatorOrder(t *testing.T) {
	tab := NewTable(0)
	tab.Add("x", []byte("ACGT"))
	tab.Add("y", []byte("ACGT"))
	b, err := NewBWT(tab)
	assert.NoError(t, err)
	// Rows 0 and 1 are the terminators of x and y in sequence order.
	expect.EQ(t, b.Lookup(0), Pos{Seq: 0, Off: 4})
	expect.EQ(t, b.Lookup(1), Pos{Seq: 1, Off: 4})
	iv := b.Find([]byte("ACGT"))
	expect.EQ(t, iv.Size(), 2)
	expect.EQ(t, b.StartsInInterval(iv), 2)
	expect.EQ(t, b.StartsInInterval(b.Find([]byte("CGT"))), 0)
}
