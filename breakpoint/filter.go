// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package breakpoint

// MinimalOpts are the emission thresholds.
type MinimalOpts struct {
	// MinSplitReads is the least split-read support of an assembled call.
	MinSplitReads int `mapstructure:"min_split_reads"`
	// MinMapq is the least mapping quality of each contig segment.
	MinMapq int `mapstructure:"min_mapq"`
	// MinDiscMapq is the least mean mapping quality of each side of a
	// discordant cluster.
	MinDiscMapq float64 `mapstructure:"min_disc_mapq"`
}

// DefaultMinimalOpts are the thresholds used by the caller.
var DefaultMinimalOpts = MinimalOpts{MinSplitReads: 2, MinMapq: 10, MinDiscMapq: 10}

// HasMinimal reports whether b carries enough evidence to be emitted. Raising
// any threshold never admits a breakpoint that was rejected.
func (b *Breakpoint) HasMinimal(opts MinimalOpts) bool {
	switch b.Kind {
	case Split:
		if b.Mapq1 < opts.MinMapq || b.Mapq2 < opts.MinMapq {
			return false
		}
		if b.SplitSupport() >= opts.MinSplitReads {
			return true
		}
		return b.Cluster != nil && b.Cluster.Support() > 1 && b.clusterMapq(opts)
	case Indel:
		return !b.Artifact && b.Mapq1 >= opts.MinMapq && b.SplitSupport() >= opts.MinSplitReads
	case Discordant:
		return b.Cluster != nil && b.Cluster.Support() > 1 && b.clusterMapq(opts)
	}
	return false
}

func (b *Breakpoint) clusterMapq(opts MinimalOpts) bool {
	return b.Cluster.ReadsMapq >= opts.MinDiscMapq && b.Cluster.MatesMapq >= opts.MinDiscMapq
}
