// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package readsource

import (
	"context"
	"sort"

	"github.com/biogo/hts/sam"
	"github.com/grailbio/sv/region"
)

// fake serves records from memory. It is meant for tests.
type fake struct {
	header *sam.Header
	recs   []*sam.Record
}

// NewFake creates a Source that returns header and serves recs. recs need not
// be sorted.
func NewFake(header *sam.Header, recs []*sam.Record) Source {
	sorted := make([]*sam.Record, len(recs))
	copy(sorted, recs)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Ref.ID() != b.Ref.ID() {
			return uint(a.Ref.ID()) < uint(b.Ref.ID())
		}
		return a.Pos < b.Pos
	})
	return &fake{header: header, recs: sorted}
}

func (f *fake) Header() *sam.Header { return f.header }

func (f *fake) Fetch(ctx context.Context, r region.Region) ([]*sam.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []*sam.Record
	for _, rec := range f.recs {
		if rec.Ref.ID() != r.RefID {
			continue
		}
		end := rec.End()
		if end <= rec.Pos {
			end = rec.Pos + 1
		}
		if rec.Pos < r.Pos2 && end > r.Pos1-1 {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fake) Head(ctx context.Context, n int) ([]*sam.Record, error) {
	if n > len(f.recs) {
		n = len(f.recs)
	}
	return f.recs[:n], nil
}

func (f *fake) Close() error { return nil }
