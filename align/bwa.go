// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package align

import (
	"bytes"
	"context"
	"io"
	"os/exec"
	"strconv"

	"github.com/biogo/biogo/alphabet"
	"github.com/biogo/biogo/io/seqio/fasta"
	"github.com/biogo/biogo/seq/linear"
	"github.com/biogo/hts/sam"
	"github.com/grailbio/base/errors"
	"v.io/x/lib/vlog"
)

// BWA runs "bwa mem" as a subprocess. Path is the bwa executable; Reference
// is the indexed reference FASTA.
type BWA struct {
	Path      string
	Reference string
	Threads   int

	header *sam.Header
}

// NewBWA returns an aligner against the given reference. The dictionary in
// ref is used as the header of every alignment.
func NewBWA(path, reference string, ref *Reference, threads int) (*BWA, error) {
	h, err := ref.Header()
	if err != nil {
		return nil, err
	}
	if path == "" {
		path = "bwa"
	}
	if threads <= 0 {
		threads = 1
	}
	return &BWA{Path: path, Reference: reference, Threads: threads, header: h}, nil
}

// Header implements Aligner.
func (b *BWA) Header() *sam.Header { return b.header }

// writeFASTA writes the queries to w in FASTA format.
func writeFASTA(w io.Writer, queries []Query) error {
	fw := fasta.NewWriter(w, 60)
	for _, q := range queries {
		s := linear.NewSeq(q.Name, alphabet.BytesToLetters(q.Seq), alphabet.DNAredundant)
		if _, err := fw.Write(s); err != nil {
			return err
		}
	}
	return nil
}

// Align implements Aligner.
func (b *BWA) Align(ctx context.Context, queries []Query) ([][]*sam.Record, error) {
	if len(queries) == 0 {
		return nil, nil
	}
	var stdin, stdout, stderr bytes.Buffer
	if err := writeFASTA(&stdin, queries); err != nil {
		return nil, err
	}
	cmd := exec.CommandContext(ctx, b.Path, "mem", "-t", strconv.Itoa(b.Threads), b.Reference, "-")
	cmd.Stdin = &stdin
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, errors.E(errors.Canceled, ctx.Err())
		}
		return nil, errors.E(err, "bwa mem", stderr.String())
	}
	vlog.VI(2).Infof("bwa: aligned %d queries, %d bytes of SAM", len(queries), stdout.Len())
	recs, err := readSAM(&stdout)
	if err != nil {
		return nil, errors.E(err, "parsing bwa output")
	}
	return group(queries, b.rehead(recs)), nil
}

// readSAM parses a SAM stream.
func readSAM(r io.Reader) ([]*sam.Record, error) {
	sr, err := sam.NewReader(r)
	if err != nil {
		return nil, err
	}
	var recs []*sam.Record
	for {
		rec, err := sr.Read()
		if err == io.EOF {
			return recs, nil
		}
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
}

// rehead moves records onto the aligner's header so that reference pointers
// compare equal across batches.
func (b *BWA) rehead(recs []*sam.Record) []*sam.Record {
	byName := make(map[string]*sam.Reference)
	for _, r := range b.header.Refs() {
		byName[r.Name()] = r
	}
	lookup := func(r *sam.Reference) *sam.Reference {
		if r == nil {
			return nil
		}
		return byName[r.Name()]
	}
	for _, rec := range recs {
		rec.Ref = lookup(rec.Ref)
		rec.MateRef = lookup(rec.MateRef)
	}
	return recs
}
