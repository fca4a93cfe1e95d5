// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package pipeline

import (
	"bufio"
	"context"
	"io"
	"sync"
	"time"

	"github.com/biogo/hts/bam"
	"github.com/biogo/hts/sam"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/sv/breakpoint"
	"github.com/grailbio/sv/discordant"
	"github.com/klauspost/compress/gzip"
)

// Output file names, relative to the output directory and prefixed by the
// analysis ID.
const (
	BreakpointsFile = "bps.txt.gz"
	DiscordantFile  = "discordant.txt.gz"
	AlignmentsFile  = "alignments.txt.gz"
	ContigsAllFile  = "contigs_all.sam.gz"
	ContigsFile     = "contigs.sam"
	SupportFile     = "r2c.bam"
)

// Stats are the running totals of a run.
type Stats struct {
	// Regions counts the work units written; FailedRegions those that failed.
	Regions, FailedRegions int
	// TumorReads and NormalReads count the reads selected for analysis.
	TumorReads, NormalReads int
	// Contigs counts the contigs with realigned reads.
	Contigs int
	// SupportReads counts the reads written to the read-support stream.
	SupportReads int
	// Clusters counts the discordant clusters written.
	Clusters    int
	Breakpoints int
}

// Merge adds the field values of the two Stats objects and creates new Stats.
func (s Stats) Merge(o Stats) Stats {
	s.Regions += o.Regions
	s.FailedRegions += o.FailedRegions
	s.TumorReads += o.TumorReads
	s.NormalReads += o.NormalReads
	s.Contigs += o.Contigs
	s.SupportReads += o.SupportReads
	s.Clusters += o.Clusters
	s.Breakpoints += o.Breakpoints
	return s
}

// stream is one output file, optionally gzipped, behind a buffer.
type stream struct {
	path string
	f    file.File
	gz   *gzip.Writer
	buf  *bufio.Writer
}

func createStream(ctx context.Context, path string, compress bool) (*stream, error) {
	f, err := file.Create(ctx, path)
	if err != nil {
		return nil, errors.E(err, "create", path)
	}
	s := &stream{path: path, f: f}
	var w io.Writer = f.Writer(ctx)
	if compress {
		s.gz = gzip.NewWriter(w)
		w = s.gz
	}
	s.buf = bufio.NewWriterSize(w, 1<<20)
	return s, nil
}

func (s *stream) close(ctx context.Context, once *errors.Once) {
	if s == nil {
		return
	}
	once.Set(s.buf.Flush())
	if s.gz != nil {
		once.Set(s.gz.Close())
	}
	once.Set(s.f.Close(ctx))
}

// Outputs is the aggregation state shared by all workers. It is created before
// the workers start and closed after they all finish. Every write goes through
// Append, which holds the lock for the whole region. A breakpoint, cluster or
// supporting read found by more than one region is written once.
type Outputs struct {
	mu    sync.Mutex
	names []string
	stats Stats

	// Keys of what has been written: breakpoint Key, cluster ID, read PairID.
	seenBps, seenClusters, seenReads map[string]bool

	bps, disc, aligns, contigsAll, contigs, r2c *stream

	bpsW, discW           *tsv.Writer
	contigsAllW, contigsW *sam.Writer
	r2cW                  *bam.Writer
}

// NewOutputs creates the output files under dir. contigHeader is the header
// of the contig alignments; readHeader that of the input reads. names maps
// reference IDs to names in both.
func NewOutputs(ctx context.Context, dir, prefix string, names []string, contigHeader, readHeader *sam.Header) (o *Outputs, err error) {
	o = &Outputs{
		names:        names,
		seenBps:      make(map[string]bool),
		seenClusters: make(map[string]bool),
		seenReads:    make(map[string]bool),
	}
	defer func() {
		if err != nil {
			o.Close(ctx) // nolint: errcheck
			o = nil
		}
	}()
	path := func(name string) string {
		if prefix != "" {
			name = prefix + "." + name
		}
		return file.Join(dir, name)
	}
	if o.bps, err = createStream(ctx, path(BreakpointsFile), true); err != nil {
		return
	}
	if _, err = io.WriteString(o.bps.buf, breakpoint.Header+"\n"); err != nil {
		return
	}
	o.bpsW = tsv.NewWriter(o.bps.buf)
	if o.disc, err = createStream(ctx, path(DiscordantFile), true); err != nil {
		return
	}
	if _, err = io.WriteString(o.disc.buf, discordant.Header+"\n"); err != nil {
		return
	}
	o.discW = tsv.NewWriter(o.disc.buf)
	if o.aligns, err = createStream(ctx, path(AlignmentsFile), true); err != nil {
		return
	}
	if o.contigsAll, err = createStream(ctx, path(ContigsAllFile), true); err != nil {
		return
	}
	if o.contigsAllW, err = sam.NewWriter(o.contigsAll.buf, contigHeader, sam.FlagDecimal); err != nil {
		return
	}
	if o.contigs, err = createStream(ctx, path(ContigsFile), false); err != nil {
		return
	}
	if o.contigsW, err = sam.NewWriter(o.contigs.buf, contigHeader, sam.FlagDecimal); err != nil {
		return
	}
	if o.r2c, err = createStream(ctx, path(SupportFile), false); err != nil {
		return
	}
	o.r2cW, err = bam.NewWriter(o.r2c.buf, readHeader, 1)
	return
}

// Append writes the result of one region and updates the running totals.
func (o *Outputs) Append(res *RegionResult) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	once := errors.Once{}
	nBps := 0
	for _, b := range res.Breakpoints {
		if k := b.Key(); !o.seenBps[k] {
			o.seenBps[k] = true
			nBps++
			once.Set(b.Write(o.bpsW, o.names))
		}
	}
	nClusters := 0
	for _, c := range res.Clusters {
		if !o.seenClusters[c.ID] {
			o.seenClusters[c.ID] = true
			nClusters++
			once.Set(c.Write(o.discW, o.names))
		}
	}
	nContigs := 0
	for _, c := range res.Contigs {
		if c.Skip {
			continue
		}
		for _, rec := range c.Records {
			once.Set(o.contigsAllW.Write(rec))
		}
		if !c.Supported() {
			continue
		}
		nContigs++
		for _, rec := range c.Records {
			once.Set(o.contigsW.Write(rec))
		}
		if c.HasVariant() {
			once.Set(c.PrintAlignments(o.aligns.buf, o.names))
		}
	}
	nSupport := 0
	for _, r := range res.Support.Sorted() {
		if !o.seenReads[r.PairID] {
			o.seenReads[r.PairID] = true
			nSupport++
			once.Set(o.r2cW.Write(r.Rec))
		}
	}
	o.stats = o.stats.Merge(Stats{
		Regions:      1,
		TumorReads:   res.TumorReads,
		NormalReads:  res.NormalReads,
		Contigs:      nContigs,
		SupportReads: nSupport,
		Clusters:     nClusters,
		Breakpoints:  nBps,
	})
	s := o.stats
	log.Printf("Ran %s | T: %5d N: %5d C: %5d R: %5d D: %5d | %s",
		res.Region.String(o.names), res.TumorReads, res.NormalReads,
		s.Contigs, s.SupportReads, s.Clusters, res.Elapsed.Round(time.Millisecond))
	return once.Err()
}

// Fail counts a region that could not be processed.
func (o *Outputs) Fail() {
	o.mu.Lock()
	o.stats.FailedRegions++
	o.mu.Unlock()
}

// Stats returns the running totals.
func (o *Outputs) Stats() Stats {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stats
}

// Close flushes and closes every stream. It returns the first error.
func (o *Outputs) Close(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	once := errors.Once{}
	if o.bpsW != nil {
		once.Set(o.bpsW.Flush())
	}
	if o.discW != nil {
		once.Set(o.discW.Flush())
	}
	if o.r2cW != nil {
		once.Set(o.r2cW.Close())
	}
	for _, s := range []*stream{o.bps, o.disc, o.aligns, o.contigsAll, o.contigs, o.r2c} {
		s.close(ctx, &once)
	}
	if err := once.Err(); err != nil {
		return errors.E(err, "close outputs")
	}
	return nil
}
