// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package readsource

import (
	"context"
	"io"
	"sync"

	"github.com/biogo/hts/bam"
	"github.com/biogo/hts/bgzf/index"
	"github.com/biogo/hts/sam"
	baseerrors "github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/sv/region"
	"github.com/pkg/errors"
	"v.io/x/lib/vlog"
)

// BAM implements Source for an indexed BAM file. Both paths may name any
// location supported by grailbio/base/file, e.g. S3.
type BAM struct {
	// Path of the *.bam file. Must be nonempty.
	Path string
	// Index is the pathname of *.bam.bai file. If "", Path + ".bai"
	Index string
	err   baseerrors.Once

	mu        sync.Mutex
	nActive   int
	freeIters []*bamIterator
	header    *sam.Header
}

// bamIterator holds an open BAM reader and its index. Iterators are pooled so
// that concurrent region fetches do not reopen the file each time.
type bamIterator struct {
	in     file.File
	reader *bam.Reader
	index  *bam.Index
	err    error
}

func (b *BAM) indexPath() string {
	if b.Index == "" {
		return b.Path + ".bai"
	}
	return b.Index
}

func (b *BAM) loadHeader(ctx context.Context) (*sam.Header, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.header != nil {
		return b.header, nil
	}
	in, err := file.Open(ctx, b.Path)
	if err != nil {
		b.err.Set(err)
		return nil, err
	}
	defer in.Close(ctx) // nolint: errcheck
	r, err := bam.NewReader(in.Reader(ctx), 1)
	if err != nil {
		err = errors.Wrapf(err, "readsource: %s", b.Path)
		b.err.Set(err)
		return nil, err
	}
	defer r.Close() // nolint: errcheck
	b.header = r.Header()
	return b.header, nil
}

// Header implements Source.
func (b *BAM) Header() *sam.Header {
	h, err := b.loadHeader(vcontext.Background())
	if err != nil {
		vlog.Fatalf("readsource: %s: %v", b.Path, err)
	}
	return h
}

// Fetch implements Source.
func (b *BAM) Fetch(ctx context.Context, r region.Region) ([]*sam.Record, error) {
	iter := b.allocateIterator(ctx)
	defer b.freeIterator(iter)
	if iter.err != nil {
		return nil, iter.err
	}
	refs := iter.reader.Header().Refs()
	if r.RefID < 0 || r.RefID >= len(refs) {
		return nil, errors.Errorf("readsource: %s: reference %d out of range", b.Path, r.RefID)
	}
	chunks, err := iter.index.Chunks(refs[r.RefID], r.Pos1-1, r.Pos2)
	if err == index.ErrInvalid || err == index.ErrNoReference || len(chunks) == 0 {
		// No reads for this interval.
		return nil, nil
	}
	if err != nil {
		iter.err = err
		return nil, err
	}
	it, err := bam.NewIterator(iter.reader, chunks)
	if err != nil {
		iter.err = err
		return nil, err
	}
	var recs []*sam.Record
	for it.Next() {
		rec := it.Record()
		if rec.Ref.ID() != r.RefID {
			continue
		}
		end := rec.End()
		if end <= rec.Pos {
			end = rec.Pos + 1
		}
		if rec.Pos < r.Pos2 && end > r.Pos1-1 {
			recs = append(recs, rec)
		}
	}
	if err := it.Close(); err != nil {
		iter.err = err
		return nil, err
	}
	return recs, nil
}

// Head implements Source.
func (b *BAM) Head(ctx context.Context, n int) ([]*sam.Record, error) {
	in, err := file.Open(ctx, b.Path)
	if err != nil {
		return nil, err
	}
	defer in.Close(ctx) // nolint: errcheck
	r, err := bam.NewReader(in.Reader(ctx), 1)
	if err != nil {
		return nil, err
	}
	defer r.Close() // nolint: errcheck
	var recs []*sam.Record
	for len(recs) < n {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// Close implements Source.
func (b *BAM) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.nActive > 0 {
		vlog.Fatalf("%d fetches still active for %s", b.nActive, b.Path)
	}
	for _, iter := range b.freeIters {
		b.internalClose(iter)
	}
	b.freeIters = nil
	return b.err.Err()
}

func (b *BAM) internalClose(iter *bamIterator) {
	if iter.reader != nil {
		if err := iter.reader.Close(); err != nil && iter.err == nil {
			iter.err = err
		}
		iter.reader = nil
	}
	if iter.in != nil {
		if err := iter.in.Close(vcontext.Background()); err != nil && iter.err == nil {
			iter.err = err
		}
		iter.in = nil
	}
	b.err.Set(iter.err)
}

func (b *BAM) freeIterator(iter *bamIterator) {
	if iter.err != nil {
		// The reader may be in a bad state. Don't reuse it.
		b.internalClose(iter)
		iter = nil
	}
	b.mu.Lock()
	if iter != nil {
		b.freeIters = append(b.freeIters, iter)
	}
	b.nActive--
	if b.nActive < 0 {
		vlog.Fatalf("negative active count for %s", b.Path)
	}
	b.mu.Unlock()
}

// allocateIterator returns an idle iterator, or opens the BAM file and its
// index to create a new one. On error the iterator has a non-nil err.
func (b *BAM) allocateIterator(ctx context.Context) *bamIterator {
	b.mu.Lock()
	b.nActive++
	if n := len(b.freeIters); n > 0 {
		iter := b.freeIters[n-1]
		b.freeIters = b.freeIters[:n-1]
		b.mu.Unlock()
		return iter
	}
	b.mu.Unlock()

	iter := &bamIterator{}
	if iter.in, iter.err = file.Open(ctx, b.Path); iter.err != nil {
		return iter
	}
	var indexIn file.File
	if indexIn, iter.err = file.Open(ctx, b.indexPath()); iter.err != nil {
		return iter
	}
	defer indexIn.Close(ctx) // nolint: errcheck
	if iter.index, iter.err = bam.ReadIndex(indexIn.Reader(ctx)); iter.err != nil {
		return iter
	}
	iter.reader, iter.err = bam.NewReader(iter.in.Reader(ctx), 1)
	return iter
}
