// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package main

// bio-sv calls somatic structural variants from a tumor and an optional
// normal BAM by local assembly of clipped, indel and discordant reads, plus
// clustering of discordant read pairs.
//
// Example:
//
//   bio-sv -tumor-bam=t.bam -normal-bam=n.bam -reference=hg19.fa -bwa=bwa \
//     -out-dir=/tmp/sv -parallelism=16 -chunk-size=chr

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/sv/config"
	"github.com/grailbio/sv/pipeline"
	"github.com/grailbio/sv/readsource"
)

// chunkFlag accepts a base count or "chr" for one work unit per reference.
type chunkFlag struct{ n *int }

func (f chunkFlag) String() string {
	if f.n == nil {
		return ""
	}
	return strconv.Itoa(*f.n)
}

func (f chunkFlag) Set(s string) error {
	if s == "chr" {
		*f.n = pipeline.WholeChromosome
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return fmt.Errorf("chunk size must be a positive integer or \"chr\", got %q", s)
	}
	*f.n = n
	return nil
}

// pathsFlag is a comma-separated, repeatable list of paths.
type pathsFlag struct{ paths *[]string }

func (f pathsFlag) String() string {
	if f.paths == nil {
		return ""
	}
	return fmt.Sprint(*f.paths)
}

func (f pathsFlag) Set(s string) error {
	*f.paths = append(*f.paths, readsource.SplitPaths(s)...)
	return nil
}

func bindFlags(opts *pipeline.Opts) {
	d := pipeline.DefaultOpts
	flag.Var(pathsFlag{&opts.TumorBAMs}, "tumor-bam", "Comma-separated list of indexed tumor BAM files. May be repeated.")
	flag.Var(pathsFlag{&opts.NormalBAMs}, "normal-bam", "Comma-separated list of indexed normal BAM files. May be repeated.")
	flag.StringVar(&opts.Reference, "reference", d.Reference, "Reference FASTA. With -bwa it must carry a bwa index and a .fai.")
	flag.StringVar(&opts.BWAPath, "bwa", d.BWAPath, "bwa executable used to align contigs. If empty, contigs are aligned in process against the loaded reference.")
	flag.StringVar(&opts.RegionFile, "region-file", d.RegionFile, "BED file of regions to run on. If empty, the whole genome is processed.")
	flag.StringVar(&opts.Blacklist, "blacklist", d.Blacklist, "BED file of regions whose reads are ignored.")
	flag.StringVar(&opts.OutDir, "out-dir", ".", "Output directory.")
	flag.StringVar(&opts.AnalysisID, "analysis-id", d.AnalysisID, "Prefix of every output file.")
	flag.IntVar(&opts.Parallelism, "parallelism", d.Parallelism, "Number of regions processed at once.")
	flag.Var(chunkFlag{&opts.ChunkSize}, "chunk-size", `Width of a work unit, or "chr" for one unit per reference.`)
	flag.IntVar(&opts.ChunkPad, "chunk-pad", d.ChunkPad, "Leftward overlap of consecutive work units in whole-genome runs.")
	flag.IntVar(&opts.MaxRefs, "max-refs", d.MaxRefs, "Whole-genome runs process only this many leading references; 0 means all.")
	flag.IntVar(&opts.WindowSize, "window-size", d.WindowSize, "Width of an assembly window.")
	flag.IntVar(&opts.WindowOverlap, "window-overlap", d.WindowOverlap, "Overlap of consecutive assembly windows.")
	flag.IntVar(&opts.MaxWindowReads, "max-window-reads", d.MaxWindowReads, "Windows with this many reads or more are not assembled.")
	flag.BoolVar(&opts.DiscClusterOnly, "disc-cluster-only", d.DiscClusterOnly, "Only cluster discordant pairs; skip assembly.")
	flag.BoolVar(&opts.MateLookup, "mate-lookup", d.MateLookup, "Fetch reads from distant regions where tumor-only discordant mates pile up.")
	flag.IntVar(&opts.MateRegionPad, "mate-region-pad", d.MateRegionPad, "Half-width of the region around a distant mate.")
	flag.IntVar(&opts.MateRegionMinTumor, "mate-region-min-tumor", d.MateRegionMinTumor, "Least number of tumor mates in a kept mate region.")
	flag.IntVar(&opts.ReconcilePad, "reconcile-pad", d.ReconcilePad, "Padding of contig breakpoints when matching discordant clusters.")
	flag.IntVar(&opts.LearnReads, "learn-reads", d.LearnReads, "Number of leading tumor reads used to learn the read length; 0 disables.")
	flag.BoolVar(&opts.WriteGraph, "write-graph", d.WriteGraph, "Write every assembly graph as compressed DOT under <out-dir>/graphs.")

	flag.IntVar(&opts.Filter.MinClip, "min-clip", d.Filter.MinClip, "Least number of soft-clipped bases of a split-read candidate.")
	flag.IntVar(&opts.Filter.MinMapQ, "min-read-mapq", d.Filter.MinMapQ, "Least mapping quality of clipped and indel reads.")
	flag.IntVar(&opts.Filter.MinPhred, "min-phred", d.Filter.MinPhred, "Read ends with base quality below this are trimmed.")
	flag.BoolVar(&opts.Filter.KeepUnmapped, "keep-unmapped", d.Filter.KeepUnmapped, "Assemble unmapped reads and reads with unmapped mates.")
	flag.IntVar(&opts.Discordant.Pad, "disc-pad", d.Discordant.Pad, "Largest gap between consecutive reads of one discordant cluster.")
	flag.IntVar(&opts.Discordant.MinPerCluster, "disc-min-per-cluster", d.Discordant.MinPerCluster, "Least number of pairs of a discordant cluster.")
	flag.IntVar(&opts.Discordant.MinInsertSize, "min-insert-size", d.Discordant.MinInsertSize, "Least |insert size| of a discordant pair.")
	flag.IntVar(&opts.Assembly.MinOverlap, "min-overlap", d.Assembly.MinOverlap, "Least overlap of the first assembly pass; 0 learns it from the read length.")
	flag.Float64Var(&opts.Assembly.ErrorRate, "error-rate", d.Assembly.ErrorRate, "Largest error rate of an overlap in the first assembly pass.")
	flag.IntVar(&opts.Assembly.NumBubbleRounds, "bubble-rounds", d.Assembly.NumBubbleRounds, "Rounds of bubble popping.")
	flag.IntVar(&opts.Assembly.NumTrimRounds, "trim-rounds", d.Assembly.NumTrimRounds, "Rounds of dead-end trimming.")
	flag.BoolVar(&opts.Assembly.PerformTR, "transitive-reduction", d.Assembly.PerformTR, "Remove transitive edges of the assembly graph.")
	flag.IntVar(&opts.Assembly.Passes, "assembly-passes", d.Assembly.Passes, "Number of assembly passes.")
	flag.IntVar(&opts.Contig.MinMapq, "contig-min-mapq", d.Contig.MinMapq, "Least mapping quality of every segment of an interpreted contig.")
	flag.IntVar(&opts.Contig.MaxMapq, "contig-max-mapq", d.Contig.MaxMapq, "Least mapping quality of the best segment of an interpreted contig.")
	flag.IntVar(&opts.Contig.MaxCigarRecurrence, "max-cigar-recurrence", d.Contig.MaxCigarRecurrence, "Indels seen this often across reads are artifacts; 0 disables.")
	flag.IntVar(&opts.Minimal.MinSplitReads, "min-split-reads", d.Minimal.MinSplitReads, "Least split-read support of an assembled call.")
	flag.IntVar(&opts.Minimal.MinMapq, "min-mapq", d.Minimal.MinMapq, "Least mapping quality of both sides of an assembled call.")
	flag.Float64Var(&opts.Minimal.MinDiscMapq, "min-disc-mapq", d.Minimal.MinDiscMapq, "Least mean mapping quality of both sides of a discordant call.")
}

// applyConfig loads the settings file, then reapplies the flags given on the
// command line so that they take precedence.
func applyConfig(path string, opts *pipeline.Opts) error {
	set := map[string]string{}
	flag.Visit(func(f *flag.Flag) {
		if f.Name != "config" {
			set[f.Name] = f.Value.String()
		}
	})
	fresh := pipeline.DefaultOpts
	if err := config.Load(path, &fresh); err != nil {
		return err
	}
	cmdline := *opts
	*opts = fresh
	for name := range set {
		switch name {
		case "tumor-bam":
			opts.TumorBAMs = cmdline.TumorBAMs
		case "normal-bam":
			opts.NormalBAMs = cmdline.NormalBAMs
		default:
			if err := flag.Set(name, set[name]); err != nil {
				return err
			}
		}
	}
	return nil
}

// handleSignals cancels the run on the first SIGINT or SIGTERM and exits on the
// third.
func handleSignals(cancel context.CancelFunc) {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		n := 0
		for sig := range ch {
			n++
			if n > 2 {
				log.Error.Printf("%v: exiting", sig)
				os.Exit(1)
			}
			log.Error.Printf("%v: finishing the regions in progress; interrupt %d more times to exit now", sig, 3-n)
			cancel()
		}
	}()
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s -tumor-bam=t.bam [-normal-bam=n.bam] -reference=ref.fa [OPTIONS]\n", os.Args[0])
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	opts := pipeline.DefaultOpts
	configPath := flag.String("config", "", "YAML, JSON or TOML settings file. Flags given on the command line override it.")
	bindFlags(&opts)

	cleanup := grail.Init()
	defer cleanup()
	if flag.NArg() > 0 {
		log.Fatalf("unexpected arguments: %v", flag.Args())
	}
	if *configPath != "" {
		if err := applyConfig(*configPath, &opts); err != nil {
			log.Fatal(err)
		}
	}
	if len(opts.TumorBAMs) == 0 || opts.Reference == "" {
		usage()
		log.Fatal("-tumor-bam and -reference are required")
	}

	ctx, cancel := context.WithCancel(vcontext.Background())
	defer cancel()
	handleSignals(cancel)

	stats, err := pipeline.Run(ctx, opts)
	if err != nil {
		log.Fatal(err)
	}
	if stats.FailedRegions > 0 {
		log.Error.Printf("%d of %d regions failed", stats.FailedRegions, stats.Regions+stats.FailedRegions)
		os.Exit(2)
	}
	log.Printf("All done")
}
