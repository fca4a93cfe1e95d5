// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package fasta parses FASTA files, optionally using their samtools faidx
// index. See http://www.htslib.org/doc/faidx.html. A FASTA file is a list of
// named sequences that may be interrupted by newlines:
//
// >chr7
// ACGTAC
// GAGGAC
// GCG
// >chr8
// ACGT
//
// A sequence name is the stretch of characters after '>' up to the first
// space, so '>chr1 A viral sequence' names 'chr1'.
package fasta

import (
	"bufio"
	"bytes"
	"io"

	gunsafe "github.com/grailbio/base/unsafe"
	"github.com/grailbio/sv/biosimd"
	"github.com/pkg/errors"
)

const bufferInitSize = 1024 * 1024

// Fasta represents FASTA-formatted data, consisting of a set of named
// sequences.
type Fasta interface {
	// Get returns a substring of the given sequence name at the given
	// coordinates, which are treated as a 0-based half-open interval
	// [start, end). Get is thread-safe.
	Get(seqName string, start, end uint64) (string, error)

	// Len returns the length of the given sequence.
	Len(seqName string) (uint64, error)

	// SeqNames returns the names of all sequences, in the order of appearance in
	// the FASTA file.
	SeqNames() []string
}

// Encoding selects how bases are stored.
type Encoding int

const (
	// Raw keeps the bytes of the file.
	Raw Encoding = iota
	// CleanASCII capitalizes acgt and turns every other non-ACGT byte into N.
	CleanASCII
)

type opts struct {
	Enc Encoding
}

// Opt is an optional argument to New and NewEagerIndexed.
type Opt func(*opts)

// OptClean stores bases in the CleanASCII encoding.
func OptClean(o *opts) { o.Enc = CleanASCII }

func makeOpts(userOpts []Opt) opts {
	var o opts
	for _, opt := range userOpts {
		opt(&o)
	}
	return o
}

func encode(seq []byte, o opts) {
	if o.Enc == CleanASCII {
		biosimd.CleanASCIISeqInplace(seq)
	}
}

type fasta struct {
	seqs     map[string]string
	seqNames []string
}

func (f *fasta) add(name string, seq []byte, o opts) error {
	if _, ok := f.seqs[name]; ok {
		return errors.Errorf("duplicate sequence name %s", name)
	}
	encode(seq, o)
	f.seqs[name] = gunsafe.BytesToString(seq)
	f.seqNames = append(f.seqNames, name)
	return nil
}

// New creates a new Fasta that holds all the FASTA data from the given reader
// in memory.
func New(r io.Reader, userOpts ...Opt) (Fasta, error) {
	o := makeOpts(userOpts)
	f := &fasta{seqs: make(map[string]string)}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), bufferInitSize)
	var (
		seqName string
		seq     []byte
		inSeq   bool
	)
	for scanner.Scan() {
		line := bytes.TrimRight(scanner.Bytes(), "\r")
		if len(line) == 0 {
			continue
		}
		if line[0] == '>' {
			if inSeq {
				if err := f.add(seqName, seq, o); err != nil {
					return nil, err
				}
			}
			seqName = string(bytes.SplitN(line[1:], []byte(" "), 2)[0])
			seq = nil
			inSeq = true
			continue
		}
		if !inSeq {
			return nil, errors.Errorf("malformed FASTA file")
		}
		seq = append(seq, line...)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "couldn't read FASTA data")
	}
	if !inSeq {
		return nil, errors.Errorf("empty FASTA file")
	}
	if err := f.add(seqName, seq, o); err != nil {
		return nil, err
	}
	return f, nil
}

// Get implements Fasta.Get().
func (f *fasta) Get(seqName string, start, end uint64) (string, error) {
	s, ok := f.seqs[seqName]
	if !ok {
		return "", errors.Errorf("sequence not found: %s", seqName)
	}
	if end <= start {
		return "", errors.Errorf("start must be less than end")
	}
	if end > uint64(len(s)) {
		return "", errors.Errorf("invalid query range %d - %d for sequence %s with length %d",
			start, end, seqName, len(s))
	}
	return s[start:end], nil
}

// Len implements Fasta.Len().
func (f *fasta) Len(seqName string) (uint64, error) {
	s, ok := f.seqs[seqName]
	if !ok {
		return 0, errors.Errorf("sequence not found: %s", seqName)
	}
	return uint64(len(s)), nil
}

// SeqNames implements Fasta.SeqNames().
func (f *fasta) SeqNames() []string {
	return f.seqNames
}
