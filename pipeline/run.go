// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package pipeline

import (
	"context"
	"fmt"

	"github.com/biogo/hts/sam"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/sv/align"
	"github.com/grailbio/sv/interval"
	"github.com/grailbio/sv/reads"
	"github.com/grailbio/sv/readsource"
	"github.com/grailbio/sv/region"
)

// WholeChromosome is the chunk size that makes every reference one work unit.
const WholeChromosome = 250000000

// OpenSamples opens the tumor and normal BAM files of opts.
func OpenSamples(ctx context.Context, opts Opts) ([]*readsource.Sample, error) {
	var samples []*readsource.Sample
	for i, p := range opts.TumorBAMs {
		s, err := readsource.Open(ctx, p, reads.Tumor, i)
		if err != nil {
			return nil, err
		}
		samples = append(samples, s)
	}
	for i, p := range opts.NormalBAMs {
		s, err := readsource.Open(ctx, p, reads.Normal, i)
		if err != nil {
			return nil, err
		}
		samples = append(samples, s)
	}
	if len(samples) == 0 {
		return nil, errors.E(errors.Invalid, "no BAM input given")
	}
	return samples, nil
}

// NewAligner returns the contig aligner selected by opts: bwa when
// opts.BWAPath is set, the in-process aligner over the loaded reference
// otherwise.
func NewAligner(ctx context.Context, opts Opts) (align.Aligner, error) {
	if opts.Reference == "" {
		return nil, errors.E(errors.Invalid, "no reference given")
	}
	if opts.BWAPath != "" {
		ref, err := align.ReadDict(ctx, opts.Reference)
		if err != nil {
			return nil, err
		}
		return align.NewBWA(opts.BWAPath, opts.Reference, ref, opts.Parallelism)
	}
	ref, err := align.LoadFASTA(ctx, opts.Reference)
	if err != nil {
		return nil, err
	}
	return align.NewLocal(ref, align.DefaultLocalOpts)
}

// checkHeaders verifies that the reads and the contig alignments name the same
// references in the same order.
func checkHeaders(readHeader, contigHeader *sam.Header) error {
	rr, cr := readHeader.Refs(), contigHeader.Refs()
	n := len(rr)
	if len(cr) < n {
		n = len(cr)
	}
	for i := 0; i < n; i++ {
		if rr[i].Name() != cr[i].Name() {
			return errors.E(errors.Invalid, fmt.Sprintf("reference %d is %s in the reads and %s in the reference", i, rr[i].Name(), cr[i].Name()))
		}
	}
	return nil
}

// LearnReadLength sets the read-length dependent assembly parameters from the
// longest of the first opts.LearnReads reads of s: contigs must be longer
// than a read, and the first-pass overlap defaults to 40% of the read length.
func LearnReadLength(ctx context.Context, s readsource.Source, opts *Opts) error {
	if opts.LearnReads <= 0 {
		return nil
	}
	recs, err := s.Head(ctx, opts.LearnReads)
	if err != nil {
		return err
	}
	n := 0
	for _, r := range recs {
		if l := r.Seq.Length; l > n {
			n = l
		}
	}
	if n == 0 {
		return nil
	}
	opts.Assembly.MinContigLength = n + 1
	if opts.Assembly.MinOverlap <= 0 {
		opts.Assembly.MinOverlap = int(0.4 * float64(n))
	}
	log.Printf("learned read length %d: min contig length %d, min overlap %d", n, opts.Assembly.MinContigLength, opts.Assembly.MinOverlap)
	return nil
}

// Regions returns the work units of a run: the regions of opts.RegionFile, or
// the leading references of h, cut into chunks.
func Regions(ctx context.Context, opts Opts, h *sam.Header) ([]region.Region, error) {
	names := region.RefNames(h)
	chunk := opts.ChunkSize
	if chunk <= 0 {
		chunk = WholeChromosome
	}
	if opts.RegionFile != "" {
		rs, err := region.ReadFile(ctx, opts.RegionFile, names)
		if err != nil {
			return nil, err
		}
		return region.Partition(region.MergeOverlapping(rs), chunk, 0), nil
	}
	return region.Partition(region.WholeGenome(h, opts.MaxRefs), chunk, opts.ChunkPad), nil
}

// Run is the top-level entry point: it opens the inputs, loads the reference,
// creates the outputs, processes every work unit and closes the outputs.
// Failures before any work starts are returned; failures of single regions
// are counted in the returned Stats.
func Run(ctx context.Context, opts Opts) (stats Stats, err error) {
	samples, err := OpenSamples(ctx, opts)
	if err != nil {
		return stats, err
	}
	defer func() {
		for _, s := range samples {
			if e := s.Source.Close(); e != nil && err == nil {
				err = e
			}
		}
	}()
	if err = LearnReadLength(ctx, samples[0].Source, &opts); err != nil {
		return stats, err
	}
	aligner, err := NewAligner(ctx, opts)
	if err != nil {
		return stats, err
	}
	header := samples[0].Source.Header()
	if err = checkHeaders(header, aligner.Header()); err != nil {
		return stats, err
	}
	names := region.RefNames(header)
	env := &Env{Opts: opts, Samples: samples, Aligner: aligner, Names: names}
	if opts.Blacklist != "" {
		if env.Blacklist, err = interval.NewBEDUnionFromPath(ctx, opts.Blacklist, interval.NewBEDOpts{Names: names}); err != nil {
			return stats, err
		}
	}
	regions, err := Regions(ctx, opts, header)
	if err != nil {
		return stats, err
	}
	out, err := NewOutputs(ctx, opts.OutDir, opts.AnalysisID, names, aligner.Header(), header)
	if err != nil {
		return stats, err
	}
	log.Printf("running %d regions on %d workers", len(regions), opts.Parallelism)
	sched := &Scheduler{Env: env, Out: out, Parallelism: opts.Parallelism}
	stats, err = sched.Run(ctx, regions)
	if e := out.Close(ctx); e != nil && err == nil {
		err = e
	}
	if stats.Contigs == 0 && stats.Breakpoints == 0 {
		log.Printf("NO VARIANTS DETECTED")
	}
	log.Printf("done: %+v", stats)
	return stats, err
}
