// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/grailbio/base/log"
	"github.com/grailbio/sv/align"
	"github.com/grailbio/sv/assembly"
	"github.com/grailbio/sv/breakpoint"
	"github.com/grailbio/sv/contig"
	"github.com/grailbio/sv/discordant"
	"github.com/grailbio/sv/fmindex"
	"github.com/grailbio/sv/interval"
	"github.com/grailbio/sv/reads"
	"github.com/grailbio/sv/readsource"
	"github.com/grailbio/sv/reconcile"
	"github.com/grailbio/sv/region"
	"v.io/x/lib/vlog"
)

// Env is the read-only state shared by every worker.
type Env struct {
	Opts    Opts
	Samples []*readsource.Sample
	Aligner align.Aligner
	// Blacklist holds the regions whose reads are ignored. It may be nil.
	Blacklist *interval.BEDUnion
	// Names maps reference IDs to names.
	Names []string
}

// RegionResult is everything one work unit contributes to the outputs.
type RegionResult struct {
	Region                  region.Region
	TumorReads, NormalReads int
	// Duplicates counts reads seen more than once, e.g. through a mate region.
	Duplicates  int
	MateRegions []region.Region
	// Clusters are the discordant clusters passing the mapping-quality filter,
	// in region order.
	Clusters []*discordant.Cluster
	// Contigs holds every aligned contig of every window.
	Contigs     []*contig.AlignedContig
	Breakpoints []*breakpoint.Breakpoint
	Support     reads.Set
	Elapsed     time.Duration
}

// fetch returns the selected reads of every sample overlapping r. If
// fromMate is set the reads are marked as fetched for their mate.
func (env *Env) fetch(ctx context.Context, r region.Region, fromMate bool) ([]*reads.Read, error) {
	var out []*reads.Read
	for _, s := range env.Samples {
		recs, err := s.Source.Fetch(ctx, r)
		if err != nil {
			return nil, err
		}
		for _, rec := range recs {
			rd := env.Opts.Filter.Select(rec, s.Cohort, s.Index)
			if rd == nil {
				continue
			}
			if env.Blacklist.ContainsByID(rd.RefID, interval.PosType(rd.Pos-1)) {
				continue
			}
			rd.FromMateRegion = fromMate
			out = append(out, rd)
		}
	}
	return out, nil
}

// mateRegions returns the regions, away from r, where the mates of at least
// opts.MateRegionMinTumor tumor reads and of no normal read map.
func mateRegions(r region.Region, rs []*reads.Read, opts Opts) []region.Region {
	near := r.Pad(opts.MateRegionPad)
	var cands []region.Region
	for _, rd := range rs {
		if !rd.Discordant(opts.Discordant.MinInsertSize) || near.Contains(rd.MateRefID, rd.MatePos) {
			continue
		}
		m := region.Region{RefID: rd.MateRefID, Pos1: rd.MatePos, Pos2: rd.MatePos}
		cands = append(cands, m.Pad(opts.MateRegionPad))
	}
	var out []region.Region
	for _, m := range region.MergeOverlapping(cands) {
		var t, n int
		for _, rd := range rs {
			if rd.MateMapped && m.Contains(rd.MateRefID, rd.MatePos) {
				if rd.Cohort == reads.Normal {
					n++
				} else {
					t++
				}
			}
		}
		if n == 0 && t >= opts.MateRegionMinTumor {
			out = append(out, m)
		}
	}
	return out
}

// RunRegion runs the whole analysis of one work unit: read selection,
// discordant clustering, windowed assembly, contig alignment and breakpoint
// extraction, and reconciliation of both kinds of evidence.
func RunRegion(ctx context.Context, env *Env, r region.Region) (*RegionResult, error) {
	start := time.Now()
	opts := env.Opts
	res := &RegionResult{Region: r}
	rs, err := env.fetch(ctx, r, false)
	if err != nil {
		return nil, err
	}
	if opts.MateLookup {
		res.MateRegions = mateRegions(r, rs, opts)
		for _, m := range res.MateRegions {
			vlog.VI(2).Infof("%s: mate region %s", r.String(env.Names), m.String(env.Names))
			mrs, err := env.fetch(ctx, m, true)
			if err != nil {
				return nil, err
			}
			rs = append(rs, mrs...)
		}
	}
	rs, res.Duplicates = reads.Dedup(rs)
	if res.Duplicates > 0 && !opts.MateLookup {
		log.Error.Printf("%s: %d unexpected duplicate reads", r.String(env.Names), res.Duplicates)
	}

	tumorCig, normalCig := make(reads.CigarMap), make(reads.CigarMap)
	for _, rd := range rs {
		if rd.Cohort == reads.Normal {
			res.NormalReads++
			normalCig.Add(rd)
		} else {
			res.TumorReads++
			tumorCig.Add(rd)
		}
	}

	clusters := discordant.ClusterReads(rs, opts.Discordant)
	vlog.VI(2).Infof("%s: %d reads, %d clusters", r.String(env.Names), len(rs), len(clusters))

	if !opts.DiscClusterOnly {
		for _, w := range region.DivideWithOverlaps(r, opts.WindowSize, opts.WindowOverlap) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			var wrs []*reads.Read
			for _, rd := range rs {
				if w.Contains(rd.Anchor()) {
					wrs = append(wrs, rd)
				}
			}
			cs, err := env.assembleWindow(ctx, w, wrs, tumorCig, normalCig)
			if err != nil {
				return nil, err
			}
			res.Contigs = append(res.Contigs, cs...)
		}
	}
	contig.Dedup(res.Contigs)

	reconcile.Combine(clusters, res.Contigs, opts.ReconcilePad)
	promoted := reconcile.PromoteClusters(clusters)
	res.Breakpoints = reconcile.Emit(res.Contigs, promoted, opts.Minimal)
	res.Support = reconcile.SupportReads(res.Contigs, clusters, opts.Minimal.MinDiscMapq)
	for _, c := range discordant.Sorted(clusters) {
		if c.ReadsMapq >= opts.Minimal.MinDiscMapq && c.MatesMapq >= opts.Minimal.MinDiscMapq {
			res.Clusters = append(res.Clusters, c)
		}
	}
	res.Elapsed = time.Since(start)
	vlog.VI(1).Infof("%s: %d contigs, %d breakpoints, %d supporting reads in %v",
		r.String(env.Names), len(res.Contigs), len(res.Breakpoints), len(res.Support), res.Elapsed)
	return res, nil
}

// assembleWindow assembles the reads of one window, aligns the contigs and
// interprets every contig that carries a variant.
func (env *Env) assembleWindow(ctx context.Context, w region.Region, rs []*reads.Read, tumorCig, normalCig reads.CigarMap) ([]*contig.AlignedContig, error) {
	opts := env.Opts
	if len(rs) <= 1 || len(rs) >= opts.MaxWindowReads {
		return nil, nil
	}
	seqs := make([]fmindex.Seq, len(rs))
	for i, rd := range rs {
		seqs[i] = fmindex.Seq{ID: rd.PairID, Seq: rd.Seq}
	}
	name := fmt.Sprintf("c_%d_%d_%d_", w.RefID+1, w.Pos1, w.Pos2)
	aopts := opts.Assembly
	if opts.WriteGraph {
		aopts.GraphDir = filepath.Join(opts.OutDir, "graphs")
	}
	vlog.VI(3).Infof("assembling %s with %d reads", name, len(rs))
	contigs, err := assembly.Assemble(ctx, seqs, aopts, name)
	if err != nil || len(contigs) == 0 {
		return nil, err
	}
	queries := make([]align.Query, len(contigs))
	for i, c := range contigs {
		queries[i] = align.Query{Name: c.ID, Seq: c.Seq}
		vlog.VI(4).Infof("%s %s", c.ID, c.Seq)
	}
	recs, err := env.Aligner.Align(ctx, queries)
	if err != nil {
		return nil, err
	}
	out := make([]*contig.AlignedContig, len(contigs))
	for i, c := range contigs {
		ac := contig.New(c.ID, c.Seq, recs[i])
		if ac.Qualifies(opts.Contig) {
			ac.FindBreaks()
			ac.AlignReads(rs)
			ac.CountSupport(opts.Contig)
			ac.MatchCigars(tumorCig, normalCig, opts.Contig)
		}
		out[i] = ac
	}
	return out, nil
}
