// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package assembly

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"

	"github.com/grailbio/base/log"
	"github.com/grailbio/sv/fmindex"
	"github.com/grailbio/sv/overlap"
	"github.com/grailbio/sv/reads"
	"github.com/minio/highwayhash"
	"v.io/x/lib/vlog"
)

// Opts configures Assemble.
type Opts struct {
	MinOverlap int     `mapstructure:"min_overlap"`
	ErrorRate  float64 `mapstructure:"error_rate"`
	// Exact restricts overlaps to error-free ones.
	Exact bool `mapstructure:"exact"`
	// MaxEdges caps the number of overlaps kept per vertex.
	MaxEdges        int     `mapstructure:"max_edges"`
	NumBubbleRounds int     `mapstructure:"bubble_rounds"`
	Divergence      float64 `mapstructure:"divergence"`
	GapDivergence   float64 `mapstructure:"gap_divergence"`
	MaxIndelLength  int     `mapstructure:"max_indel_length"`
	NumTrimRounds   int     `mapstructure:"trim_rounds"`
	// TrimLengthThreshold: dead ends shorter than this are trimmed. Negative
	// disables trimming.
	TrimLengthThreshold int  `mapstructure:"trim_length_threshold"`
	PerformTR           bool `mapstructure:"transitive_reduction"`
	// ResolveSmallRepeatLen enables small repeat resolution when positive.
	ResolveSmallRepeatLen int `mapstructure:"resolve_small_repeat_len"`
	// RepeatPassMinOverlap and RepeatPassErrorRate configure every pass after
	// the first.
	RepeatPassMinOverlap int     `mapstructure:"repeat_pass_min_overlap"`
	RepeatPassErrorRate  float64 `mapstructure:"repeat_pass_error_rate"`
	// Passes is the number of assembly passes; each pass after the first
	// assembles the contigs of the previous one.
	Passes int `mapstructure:"passes"`
	// MinContigLength: contigs of this length or shorter are discarded.
	MinContigLength int `mapstructure:"min_contig_length"`
	// GraphDir, if nonempty, receives a compressed DOT dump of every graph.
	GraphDir string `mapstructure:"graph_dir"`
}

// DefaultOpts are the assembly parameters used by the caller.
var DefaultOpts = Opts{
	MinOverlap:            35,
	ErrorRate:             0.05,
	Exact:                 false,
	MaxEdges:              128,
	NumBubbleRounds:       3,
	Divergence:            0.05,
	GapDivergence:         0.05,
	MaxIndelLength:        20,
	NumTrimRounds:         0,
	TrimLengthThreshold:   -1,
	PerformTR:             true, // irreducible overlaps only
	ResolveSmallRepeatLen: -1,
	RepeatPassMinOverlap:  50,
	RepeatPassErrorRate:   0.05,
	Passes:                2,
	MinContigLength:       101, // read length + 1
}

// contigHashKey keys the sequence hash used to collapse identical contigs.
var contigHashKey = []byte("structural-variant-contig-hash!!")

// seqKey returns a strand-independent hash of seq.
func seqKey(seq []byte) uint64 {
	rc := reads.RevComp(seq)
	if bytes.Compare(rc, seq) < 0 {
		seq = rc
	}
	return highwayhash.Sum64(seq, contigHashKey)
}

// Pass runs one round of overlap, graph simplification and contig walking.
func Pass(ctx context.Context, tab *fmindex.Table, opts Opts, minOverlap int, errorRate float64, prefix string) ([]Contig, error) {
	if tab.Len() == 0 {
		return nil, nil
	}
	idx, err := fmindex.Build(tab)
	if err != nil {
		return nil, err
	}
	eng := overlap.NewEngine(idx, overlap.Opts{MinOverlap: minOverlap, ErrorRate: errorRate, Exact: opts.Exact})
	og := eng.Overlaps()
	g := NewGraph(tab, og, opts.MaxEdges)
	nContained := g.RemoveContainments()
	nTR := 0
	if opts.PerformTR {
		nTR = g.TransitiveReduction()
	}
	nRepeat := g.ResolveSmallRepeats(opts.ResolveSmallRepeatLen)
	nBubble := g.PopBubbles(opts.NumBubbleRounds, BubbleOpts{
		Divergence:     opts.Divergence,
		GapDivergence:  opts.GapDivergence,
		MaxIndelLength: opts.MaxIndelLength,
	})
	nTrim := g.Trim(opts.NumTrimRounds, opts.TrimLengthThreshold)
	if log.At(log.Debug) {
		log.Debug.Printf("assembly %s: %d seqs, %d overlaps, removed %d contained, %d transitive, %d repeat, %d bubble, %d trimmed",
			prefix, tab.Len(), len(og.Edges), nContained, nTR, nRepeat, nBubble, nTrim)
	}
	if opts.GraphDir != "" {
		path := filepath.Join(opts.GraphDir, prefix+"graph.dot.zst")
		if err := WriteDOT(ctx, g, path); err != nil {
			return nil, err
		}
	}
	var out []Contig
	for _, c := range g.Contigs(prefix) {
		if len(c.Seq) > opts.MinContigLength {
			out = append(out, c)
		}
	}
	return out, nil
}

// Assemble assembles seqs. The first pass runs on the sequences themselves,
// using opts.MinOverlap and opts.ErrorRate; each following pass assembles the
// previous pass's contigs with the repeat-pass parameters. Identical contigs
// (on either strand) are reported once. name prefixes contig IDs. Zero
// contigs is a valid result.
func Assemble(ctx context.Context, seqs []fmindex.Seq, opts Opts, name string) ([]Contig, error) {
	tab := fmindex.NewTable(fmindex.DefaultMinLength)
	for _, s := range seqs {
		tab.Add(s.ID, s.Seq)
	}
	passes := opts.Passes
	if passes < 1 {
		passes = 1
	}
	var contigs []Contig
	for pass := 0; pass < passes; pass++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		minOverlap, errorRate := opts.MinOverlap, opts.ErrorRate
		if pass > 0 {
			minOverlap, errorRate = opts.RepeatPassMinOverlap, opts.RepeatPassErrorRate
		}
		prefix := fmt.Sprintf("%s%d_", name, pass)
		if pass == passes-1 {
			prefix = name
		}
		next, err := Pass(ctx, tab, opts, minOverlap, errorRate, prefix)
		if err != nil {
			return nil, err
		}
		vlog.VI(3).Infof("assembly %s pass %d: %d sequences -> %d contigs", name, pass, tab.Len(), len(next))
		if pass > 0 {
			next = carryReads(contigs, next)
		}
		contigs = next
		if len(contigs) == 0 {
			break
		}
		tab = fmindex.NewTable(0)
		for _, c := range contigs {
			tab.Add(c.ID, c.Seq)
		}
	}
	return dedup(contigs), nil
}

// carryReads converts the vertex lists of a later pass, which name contigs of
// the previous pass, back into read counts.
func carryReads(prev, next []Contig) []Contig {
	counts := make(map[string]int, len(prev))
	for _, c := range prev {
		counts[c.ID] = c.Reads
	}
	for i := range next {
		n := 0
		for _, id := range next[i].Vertices {
			n += counts[id]
		}
		if n > 0 {
			next[i].Reads = n
		}
	}
	return next
}

func dedup(contigs []Contig) []Contig {
	seen := make(map[uint64]bool, len(contigs))
	out := contigs[:0:0]
	for _, c := range contigs {
		k := seqKey(c.Seq)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, c)
	}
	return out
}
