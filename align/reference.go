// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package align

import (
	"context"
	"io"
	"strings"

	"github.com/biogo/hts/sam"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	gunsafe "github.com/grailbio/base/unsafe"
	"github.com/grailbio/sv/encoding/fasta"
)

// Reference is the reference dictionary, plus the sequences themselves when
// loaded from FASTA. It is read-only once loaded and may be shared.
type Reference struct {
	Names   []string
	Lengths []int
	// Seqs is nil unless the reference was loaded by LoadFASTA. Bases are
	// upper-case ACGTN.
	Seqs [][]byte
}

func fromIndex(index []fasta.IndexEntry) *Reference {
	ref := &Reference{}
	for _, e := range index {
		ref.Names = append(ref.Names, e.Name)
		ref.Lengths = append(ref.Lengths, int(e.Length))
	}
	return ref
}

func readIndex(ctx context.Context, path string) ([]fasta.IndexEntry, error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(errors.NotExist, err, "reference index", path)
	}
	defer in.Close(ctx) // nolint: errcheck
	index, err := fasta.ReadIndex(in.Reader(ctx))
	if err != nil {
		return nil, errors.E(err, path)
	}
	return index, nil
}

// ReadFai reads the dictionary of a FASTA file from its .fai index.
func ReadFai(ctx context.Context, path string) (*Reference, error) {
	index, err := readIndex(ctx, path)
	if err != nil {
		return nil, err
	}
	return fromIndex(index), nil
}

// ReadDict reads the dictionary of a FASTA file, from fastaPath.fai when it
// exists and otherwise by indexing the FASTA file in memory.
func ReadDict(ctx context.Context, fastaPath string) (*Reference, error) {
	if _, err := file.Stat(ctx, fastaPath+".fai"); err == nil {
		return ReadFai(ctx, fastaPath+".fai")
	}
	in, err := file.Open(ctx, fastaPath)
	if err != nil {
		return nil, errors.E(errors.NotExist, err, "reference", fastaPath)
	}
	defer in.Close(ctx) // nolint: errcheck
	var buf strings.Builder
	if err := fasta.GenerateIndex(&buf, in.Reader(ctx)); err != nil {
		return nil, errors.E(err, "indexing", fastaPath)
	}
	index, err := fasta.ReadIndex(strings.NewReader(buf.String()))
	if err != nil {
		return nil, errors.E(err, fastaPath)
	}
	return fromIndex(index), nil
}

// LoadFASTA reads every sequence of a FASTA file into memory, using
// path.fai for the layout when it exists. Sequence names end at the first
// space of the description line.
func LoadFASTA(ctx context.Context, path string) (*Reference, error) {
	var index []fasta.IndexEntry
	if _, err := file.Stat(ctx, path+".fai"); err == nil {
		if index, err = readIndex(ctx, path+".fai"); err != nil {
			return nil, err
		}
	}
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(errors.NotExist, err, "reference", path)
	}
	defer in.Close(ctx) // nolint: errcheck
	return readFASTA(in.Reader(ctx), index, path)
}

// readFASTA loads the sequences of r, laid out as index says when index is
// non-nil.
func readFASTA(r io.Reader, index []fasta.IndexEntry, path string) (*Reference, error) {
	var (
		fa  fasta.Fasta
		err error
	)
	if index != nil {
		fa, err = fasta.NewEagerIndexed(r, index, fasta.OptClean)
	} else {
		fa, err = fasta.New(r, fasta.OptClean)
	}
	if err != nil {
		return nil, errors.E(err, "reading", path)
	}
	ref := &Reference{}
	for _, name := range fa.SeqNames() {
		n, err := fa.Len(name)
		if err != nil {
			return nil, errors.E(err, path)
		}
		var seq string
		if n > 0 {
			if seq, err = fa.Get(name, 0, n); err != nil {
				return nil, errors.E(err, path)
			}
		}
		ref.Names = append(ref.Names, name)
		ref.Lengths = append(ref.Lengths, int(n))
		ref.Seqs = append(ref.Seqs, gunsafe.StringToBytes(seq))
	}
	return ref, nil
}

// Header returns a SAM header holding the reference dictionary.
func (r *Reference) Header() (*sam.Header, error) {
	refs := make([]*sam.Reference, len(r.Names))
	for i, name := range r.Names {
		ref, err := sam.NewReference(name, "", "", r.Lengths[i], nil, nil)
		if err != nil {
			return nil, err
		}
		refs[i] = ref
	}
	return sam.NewHeader(nil, refs)
}

// ID returns the index of the named sequence, or -1.
func (r *Reference) ID(name string) int {
	for i, n := range r.Names {
		if n == name {
			return i
		}
	}
	return -1
}
