// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package fmindex builds suffix arrays and Burrows-Wheeler transforms over a
// small collection of DNA sequences, and answers backward-search queries over
// them.
package fmindex

import (
	"github.com/grailbio/base/simd"
	"github.com/grailbio/sv/biosimd"
)

// DefaultMinLength is the length at or below which Table.Add skips a sequence.
const DefaultMinLength = 40

// Seq is one named sequence.
type Seq struct {
	ID  string
	Seq []byte
}

// Table is an ordered collection of sequences. The position of a sequence in
// the table is its index in every structure built from the table.
type Table struct {
	Seqs []Seq
	// MinLength: sequences of this length or shorter are not added.
	MinLength int
}

// NewTable returns an empty table that skips sequences of length <= minLength.
func NewTable(minLength int) *Table {
	return &Table{MinLength: minLength}
}

// Add normalizes seq to upper-case ACGTN and appends it. It reports whether
// the sequence was added.
func (t *Table) Add(id string, seq []byte) bool {
	if len(seq) <= t.MinLength {
		return false
	}
	norm := append([]byte(nil), seq...)
	biosimd.CleanASCIISeqInplace(norm)
	t.Seqs = append(t.Seqs, Seq{ID: id, Seq: norm})
	return true
}

// Len returns the number of sequences.
func (t *Table) Len() int { return len(t.Seqs) }

// ReverseAll reverses every sequence in place. Calling it twice restores the
// table.
func (t *Table) ReverseAll() {
	for _, s := range t.Seqs {
		simd.Reverse8Inplace(s.Seq)
	}
}
