// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package interval loads BED files into per-chromosome unions of intervals
// and answers point and range membership queries against them. The caller's
// blacklist and region list are both read through this package.
package interval

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/fileio"
	"github.com/grailbio/base/log"
	gunsafe "github.com/grailbio/base/unsafe"
	"github.com/klauspost/compress/gzip"
)

// PosType is the coordinate type of a BEDUnion.
type PosType int32

const posTypeMax = math.MaxInt32

// Entry is one BED interval, 0-based and half-open.
type Entry struct {
	ChrName string
	Start0  PosType
	End     PosType
}

// getTokens fills tokens with the first len(tokens) fields of line and returns
// the number found. Any run of bytes <= ' ' or ',' separates fields, so both
// BED and "chr,start,end" lines are accepted.
func getTokens(tokens [][]byte, line []byte) int {
	posEnd := 0
	n := len(line)
	for i := range tokens {
		pos := posEnd
		for ; pos != n; pos++ {
			if line[pos] > ' ' && line[pos] != ',' {
				break
			}
		}
		if pos == n {
			return i
		}
		posEnd = pos
		for ; posEnd != n; posEnd++ {
			if line[posEnd] <= ' ' || line[posEnd] == ',' {
				break
			}
		}
		tokens[i] = line[pos:posEnd]
	}
	return len(tokens)
}

func isHeaderLine(line []byte) bool {
	s := gunsafe.BytesToString(line)
	return len(s) == 0 || s[0] == '#' ||
		(len(s) >= 5 && s[:5] == "track") || (len(s) >= 7 && s[:7] == "browser")
}

// ScanEntries reads BED intervals from r in file order. Comment, "track" and
// "browser" lines are skipped; fields past the third are ignored.
func ScanEntries(r io.Reader) ([]Entry, error) {
	scanner := bufio.NewScanner(r)
	var (
		tokens  [3][]byte
		entries []Entry
		lineIdx int
	)
	for scanner.Scan() {
		lineIdx++
		curLine := scanner.Bytes()
		if isHeaderLine(curLine) {
			continue
		}
		nToken := getTokens(tokens[:], curLine)
		if nToken != 3 {
			if nToken == 0 {
				continue
			}
			return nil, fmt.Errorf("interval.ScanEntries: line %d has fewer tokens than expected", lineIdx)
		}
		start, err := strconv.Atoi(gunsafe.BytesToString(tokens[1]))
		if err != nil {
			return nil, fmt.Errorf("interval.ScanEntries: line %d: %v", lineIdx, err)
		}
		end, err := strconv.Atoi(gunsafe.BytesToString(tokens[2]))
		if err != nil {
			return nil, fmt.Errorf("interval.ScanEntries: line %d: %v", lineIdx, err)
		}
		if start < 0 || end <= start || end >= posTypeMax {
			return nil, fmt.Errorf("interval.ScanEntries: invalid coordinate pair on line %d", lineIdx)
		}
		entries = append(entries, Entry{ChrName: string(tokens[0]), Start0: PosType(start), End: PosType(end)})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// ReadEntries loads the intervals of a (possibly gzipped) BED file.
func ReadEntries(ctx context.Context, path string) (entries []Entry, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := in.Close(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}()
	reader := io.Reader(in.Reader(ctx))
	if fileio.DetermineType(path) == fileio.Gzip {
		if reader, err = gzip.NewReader(reader); err != nil {
			return nil, err
		}
	}
	return ScanEntries(reader)
}

// NewBEDOpts configures the BEDUnion constructors.
type NewBEDOpts struct {
	// Names gives the reference names by ID, enabling ContainsByID and
	// Intersects. Intervals on other chromosomes are kept for ContainsByName.
	Names []string
}

// BEDUnion is the union of a set of intervals. Each chromosome's union is a
// sorted array of endpoints [start0, end, start0, end, ...] with no two
// intervals touching. It is read-only once built and safe for concurrent use.
type BEDUnion struct {
	nameMap map[string][]PosType
	idMap   [][]PosType
	names   []string
}

// NewBEDUnionFromEntries builds a BEDUnion from entries in any order;
// overlapping and adjacent intervals are merged.
func NewBEDUnionFromEntries(entries []Entry, opts NewBEDOpts) *BEDUnion {
	sorted := append([]Entry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].ChrName != sorted[j].ChrName {
			return sorted[i].ChrName < sorted[j].ChrName
		}
		return sorted[i].Start0 < sorted[j].Start0
	})
	u := &BEDUnion{nameMap: make(map[string][]PosType)}
	for _, e := range sorted {
		endpoints := u.nameMap[e.ChrName]
		if n := len(endpoints); n > 0 && e.Start0 <= endpoints[n-1] {
			if e.End > endpoints[n-1] {
				endpoints[n-1] = e.End
			}
			continue
		}
		u.nameMap[e.ChrName] = append(endpoints, e.Start0, e.End)
	}
	u.names = opts.Names
	u.idMap = make([][]PosType, len(opts.Names))
	for id, name := range opts.Names {
		u.idMap[id] = u.nameMap[name]
	}
	return u
}

// NewBEDUnion reads a BED file from r.
func NewBEDUnion(r io.Reader, opts NewBEDOpts) (*BEDUnion, error) {
	entries, err := ScanEntries(r)
	if err != nil {
		return nil, err
	}
	return NewBEDUnionFromEntries(entries, opts), nil
}

// NewBEDUnionFromPath reads a (possibly gzipped) BED file.
func NewBEDUnionFromPath(ctx context.Context, path string, opts NewBEDOpts) (*BEDUnion, error) {
	entries, err := ReadEntries(ctx, path)
	if err != nil {
		return nil, err
	}
	u := NewBEDUnionFromEntries(entries, opts)
	log.Debug.Printf("%s: BED loaded, %d base(s) covered.", path, u.NBases())
	return u, nil
}

// searchPosType returns the index of the first endpoint > pos.
func searchPosType(endpoints []PosType, pos PosType) int {
	return sort.Search(len(endpoints), func(i int) bool { return endpoints[i] > pos })
}

func contains(endpoints []PosType, pos PosType) bool {
	return searchPosType(endpoints, pos)&1 == 1
}

// ContainsByID reports whether the 0-based position pos on reference refID is
// covered. A nil BEDUnion covers nothing.
func (u *BEDUnion) ContainsByID(refID int, pos PosType) bool {
	if u == nil || refID < 0 || refID >= len(u.idMap) {
		return false
	}
	return contains(u.idMap[refID], pos)
}

// ContainsByName reports whether the 0-based position pos on the named
// chromosome is covered.
func (u *BEDUnion) ContainsByName(chrName string, pos PosType) bool {
	if u == nil {
		return false
	}
	return contains(u.nameMap[chrName], pos)
}

// Intersects reports whether any base of [start0, end) on reference refID is
// covered.
func (u *BEDUnion) Intersects(refID int, start0, end PosType) bool {
	if u == nil || refID < 0 || refID >= len(u.idMap) || end <= start0 {
		return false
	}
	endpoints := u.idMap[refID]
	idx := searchPosType(endpoints, start0)
	if idx&1 == 1 {
		return true
	}
	return idx < len(endpoints) && endpoints[idx] < end
}

// Entries returns the merged intervals, ordered by reference ID and then by
// position. Only chromosomes named in NewBEDOpts.Names are returned.
func (u *BEDUnion) Entries() []Entry {
	var entries []Entry
	for id, endpoints := range u.idMap {
		for i := 0; i+1 < len(endpoints); i += 2 {
			entries = append(entries, Entry{ChrName: u.names[id], Start0: endpoints[i], End: endpoints[i+1]})
		}
	}
	return entries
}

// NBases returns the number of bases covered, over every chromosome.
func (u *BEDUnion) NBases() int {
	n := 0
	for _, endpoints := range u.nameMap {
		for i := 0; i+1 < len(endpoints); i += 2 {
			n += int(endpoints[i+1] - endpoints[i])
		}
	}
	return n
}
