// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package region

import (
	"context"
	"fmt"
	"io"

	"github.com/grailbio/sv/interval"
)

func refIndex(names []string) map[string]int {
	m := make(map[string]int, len(names))
	for i, name := range names {
		m[name] = i
	}
	return m
}

// fromEntries converts BED intervals to regions in the same order. names maps
// reference IDs to names; an unknown chromosome is an error.
func fromEntries(entries []interval.Entry, names []string) ([]Region, error) {
	ids := refIndex(names)
	regions := make([]Region, 0, len(entries))
	for _, e := range entries {
		id, ok := ids[e.ChrName]
		if !ok {
			return nil, fmt.Errorf("region: unknown chromosome %q", e.ChrName)
		}
		regions = append(regions, Region{RefID: id, Pos1: int(e.Start0) + 1, Pos2: int(e.End)})
	}
	return regions, nil
}

// Scan reads regions from r, in file order. Each line holds a chromosome, a
// 0-based start and an exclusive end, as in BED; see interval.ScanEntries.
func Scan(r io.Reader, names []string) ([]Region, error) {
	entries, err := interval.ScanEntries(r)
	if err != nil {
		return nil, err
	}
	return fromEntries(entries, names)
}

// ReadFile loads regions from a (possibly gzipped) BED-like file.
func ReadFile(ctx context.Context, path string, names []string) ([]Region, error) {
	entries, err := interval.ReadEntries(ctx, path)
	if err != nil {
		return nil, err
	}
	return fromEntries(entries, names)
}

// Parse parses a region string of one of the forms
//   chr:pos1-pos2
//   chr:pos
//   chr
// with 1-based inclusive coordinates. lengths gives reference lengths by ID and
// bounds a bare chromosome name.
func Parse(s string, names []string, lengths []int) (Region, error) {
	e, err := interval.ParseRegionString(s)
	if err != nil {
		return Region{}, err
	}
	id, ok := refIndex(names)[e.ChrName]
	if !ok {
		return Region{}, fmt.Errorf("region.Parse: unknown chromosome %q", e.ChrName)
	}
	r := Region{RefID: id, Pos1: int(e.Start0) + 1, Pos2: int(e.End)}
	if s == e.ChrName {
		if id >= len(lengths) {
			return Region{}, fmt.Errorf("region.Parse: no length for chromosome %q", e.ChrName)
		}
		r.Pos2 = lengths[id]
	}
	return r, nil
}
