// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package readsource provides region-addressable access to aligned reads.
package readsource

import (
	"context"
	"strings"

	"github.com/biogo/hts/sam"
	"github.com/grailbio/sv/reads"
	"github.com/grailbio/sv/region"
)

// Source yields the records overlapping a region. Implementations must be
// safe for concurrent use.
type Source interface {
	// Header returns the SAM header of the source.
	Header() *sam.Header
	// Fetch returns the records overlapping r, in file order.
	Fetch(ctx context.Context, r region.Region) ([]*sam.Record, error)
	// Head returns the first n records of the source.
	Head(ctx context.Context, n int) ([]*sam.Record, error)
	// Close releases resources. It returns the first error seen by any fetch.
	Close() error
}

// Sample is one input of the caller.
type Sample struct {
	// Path is the BAM path, or a descriptive name for in-memory sources.
	Path string
	// Cohort is reads.Tumor or reads.Normal.
	Cohort reads.Cohort
	// Index distinguishes inputs within a cohort.
	Index  int
	Source Source
}

// Open opens an indexed BAM file. The index defaults to path + ".bai".
func Open(ctx context.Context, path string, cohort reads.Cohort, idx int) (*Sample, error) {
	b := &BAM{Path: path}
	if _, err := b.loadHeader(ctx); err != nil {
		return nil, err
	}
	return &Sample{Path: path, Cohort: cohort, Index: idx, Source: b}, nil
}

// SplitPaths splits a comma-separated list of paths, dropping empty entries.
func SplitPaths(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
