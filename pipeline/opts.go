// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package pipeline runs the structural-variant caller: it partitions the
// genome into work units, runs the per-region analysis on a pool of workers
// and aggregates their results into the shared output streams.
package pipeline

import (
	"github.com/grailbio/sv/assembly"
	"github.com/grailbio/sv/breakpoint"
	"github.com/grailbio/sv/contig"
	"github.com/grailbio/sv/discordant"
	"github.com/grailbio/sv/reads"
)

// Opts holds every knob of a run.
type Opts struct {
	// TumorBAMs and NormalBAMs are indexed BAM paths.
	TumorBAMs  []string `mapstructure:"tumor_bams"`
	NormalBAMs []string `mapstructure:"normal_bams"`
	// Reference is the reference FASTA. With BWAPath set it must carry a bwa
	// index and a .fai; otherwise it is loaded into memory.
	Reference string `mapstructure:"reference"`
	// BWAPath is the bwa executable. Empty selects the in-process aligner.
	BWAPath string `mapstructure:"bwa_path"`
	// RegionFile restricts the run to the regions of a BED file.
	RegionFile string `mapstructure:"region_file"`
	// Blacklist names a BED file of regions whose reads are ignored.
	Blacklist string `mapstructure:"blacklist"`
	OutDir    string `mapstructure:"out_dir"`
	// AnalysisID prefixes every output file name.
	AnalysisID  string `mapstructure:"analysis_id"`
	Parallelism int    `mapstructure:"parallelism"`
	// ChunkSize is the width of a work unit.
	ChunkSize int `mapstructure:"chunk_size"`
	// ChunkPad extends every work unit but the first of a reference leftwards.
	// It applies to whole-genome runs only.
	ChunkPad int `mapstructure:"chunk_pad"`
	// MaxRefs limits a whole-genome run to the first references of the header.
	MaxRefs int `mapstructure:"max_refs"`
	// WindowSize and WindowOverlap cut a work unit into assembly windows.
	WindowSize    int `mapstructure:"window_size"`
	WindowOverlap int `mapstructure:"window_overlap"`
	// MaxWindowReads skips assembly of windows with at least this many reads.
	MaxWindowReads int `mapstructure:"max_window_reads"`
	// DiscClusterOnly skips assembly.
	DiscClusterOnly bool `mapstructure:"disc_cluster_only"`
	// MateLookup fetches reads from distant regions where the mates of many
	// tumor reads, and of no normal read, map.
	MateLookup bool `mapstructure:"mate_lookup"`
	// MateRegionPad is the half-width of the region around each distant mate.
	MateRegionPad int `mapstructure:"mate_region_pad"`
	// MateRegionMinTumor is the least tumor read count of a kept mate region.
	MateRegionMinTumor int `mapstructure:"mate_region_min_tumor"`
	// ReconcilePad widens contig breakpoint ends before matching clusters.
	ReconcilePad int `mapstructure:"reconcile_pad"`
	// LearnReads is the number of leading tumor reads used to learn the read
	// length. Zero disables learning.
	LearnReads int `mapstructure:"learn_reads"`
	// WriteGraph dumps every assembly graph under OutDir.
	WriteGraph bool `mapstructure:"write_graph"`

	Filter     reads.FilterOpts       `mapstructure:"filter"`
	Discordant discordant.Opts        `mapstructure:"discordant"`
	Assembly   assembly.Opts          `mapstructure:"assembly"`
	Contig     contig.Opts            `mapstructure:"contig"`
	Minimal    breakpoint.MinimalOpts `mapstructure:"minimal"`
}

// DefaultOpts sets the default values to Opts.
var DefaultOpts = Opts{
	Parallelism:        1,        // -p
	ChunkSize:          10000000, // -c
	ChunkPad:           1000,
	MaxRefs:            25, // chr1..chrY
	WindowSize:         5000,
	WindowOverlap:      500,
	MaxWindowReads:     10000,
	MateLookup:         true,
	MateRegionPad:      1000,
	MateRegionMinTumor: 3, // and no normal read
	ReconcilePad:       400,
	LearnReads:         10000,
	Filter:             reads.DefaultFilterOpts,
	Discordant:         discordant.DefaultOpts,
	Assembly:           assembly.DefaultOpts,
	Contig:             contig.DefaultOpts,
	Minimal:            breakpoint.DefaultMinimalOpts,
}
