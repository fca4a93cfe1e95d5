// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package pipeline

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/biogo/hts/bam"
	"github.com/biogo/hts/sam"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/sv/align"
	"github.com/grailbio/sv/breakpoint"
	"github.com/grailbio/sv/internal/samtest"
	"github.com/grailbio/sv/interval"
	"github.com/grailbio/sv/reads"
	"github.com/grailbio/sv/readsource"
	"github.com/grailbio/sv/region"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"github.com/klauspost/compress/gzip"
)

const refLen = 6000

var (
	refNames  = []string{"chr1", "chr2"}
	refSeqs   = []string{samtest.RandomSeq(refLen, 1), samtest.RandomSeq(refLen, 2)}
	refHeader = samtest.Header(refNames, []int{refLen, refLen})
)

func testReference() *align.Reference {
	return &align.Reference{
		Names:   refNames,
		Lengths: []int{refLen, refLen},
		Seqs:    [][]byte{[]byte(refSeqs[0]), []byte(refSeqs[1])},
	}
}

// refSeq returns the 100 bases of ref starting at the 1-based pos.
func refSeq(ref, pos int) string {
	return refSeqs[ref][pos-1 : pos+99]
}

// translocation returns n tumor pairs joining chr1:1000+ to chr2:3000-.
func translocation(n int) []*sam.Record {
	var recs []*sam.Record
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("tra%d", i)
		p1, p2 := 1000+20*i, 3000+20*i
		recs = append(recs,
			samtest.Record(refHeader, samtest.Rec{Name: name, Ref: "chr1", Pos: p1, MapQ: 60, Cigar: "100M",
				Flags: sam.Paired | sam.Read1 | sam.MateReverse, MateRef: "chr2", MatePos: p2, Seq: refSeq(0, p1)}),
			samtest.Record(refHeader, samtest.Rec{Name: name, Ref: "chr2", Pos: p2, MapQ: 60, Cigar: "100M",
				Flags: sam.Paired | sam.Read2 | sam.Reverse, MateRef: "chr1", MatePos: p1, Seq: refSeq(1, p2)}))
	}
	return recs
}

// deletion returns clipped tumor reads across a 100-base deletion of
// chr1:1501-1600, as an aligner that does not report long deletions would
// place them.
func deletion() []*sam.Record {
	donor := refSeqs[0][1000:1500] + refSeqs[0][1600:2100]
	var recs []*sam.Record
	for o := 405; o <= 495; o += 5 {
		m := 500 - o
		recs = append(recs, samtest.Record(refHeader, samtest.Rec{
			Name: fmt.Sprintf("del%d", o), Ref: "chr1", Pos: 1001 + o, MapQ: 60,
			Cigar: fmt.Sprintf("%dM%dS", m, 100-m), Seq: donor[o : o+100],
		}))
	}
	return recs
}

// rearrangement returns 20 clipped tumor reads across a junction joining
// chr1:1000 to chr1:5000, all anchored on the left side.
func rearrangement() []*sam.Record {
	donor := refSeqs[0][500:1000] + refSeqs[0][4999:5499]
	var recs []*sam.Record
	for o := 405; o < 485; o += 4 {
		m := 500 - o
		recs = append(recs, samtest.Record(refHeader, samtest.Rec{
			Name: fmt.Sprintf("rea%d", o), Ref: "chr1", Pos: 501 + o, MapQ: 60,
			Cigar: fmt.Sprintf("%dM%dS", m, 100-m), Seq: donor[o : o+100],
		}))
	}
	return recs
}

// concordant returns normal pairs with a regular insert size.
func concordant() []*sam.Record {
	var recs []*sam.Record
	for i := 0; i < 3; i++ {
		name := fmt.Sprintf("conc%d", i)
		p1, p2 := 500+50*i, 800+50*i
		recs = append(recs,
			samtest.Record(refHeader, samtest.Rec{Name: name, Ref: "chr1", Pos: p1, MapQ: 60, Cigar: "100M",
				Flags: sam.Paired | sam.Read1 | sam.MateReverse, MateRef: "chr1", MatePos: p2, TempLen: p2 + 100 - p1, Seq: refSeq(0, p1)}),
			samtest.Record(refHeader, samtest.Rec{Name: name, Ref: "chr1", Pos: p2, MapQ: 60, Cigar: "100M",
				Flags: sam.Paired | sam.Read2 | sam.Reverse, MateRef: "chr1", MatePos: p1, TempLen: -(p2 + 100 - p1), Seq: refSeq(0, p2)}))
	}
	return recs
}

func testEnv(t *testing.T, tumor, normal []*sam.Record, opts Opts) *Env {
	l, err := align.NewLocal(testReference(), align.DefaultLocalOpts)
	assert.NoError(t, err)
	return &Env{
		Opts: opts,
		Samples: []*readsource.Sample{
			{Path: "tumor", Cohort: reads.Tumor, Source: readsource.NewFake(refHeader, tumor)},
			{Path: "normal", Cohort: reads.Normal, Source: readsource.NewFake(refHeader, normal)},
		},
		Aligner: l,
		Names:   refNames,
	}
}

func chr(id int) region.Region {
	return region.Region{RefID: id, Pos1: 1, Pos2: refLen}
}

func TestRunRegionDiscordantOnly(t *testing.T) {
	opts := DefaultOpts
	opts.DiscClusterOnly = true
	env := testEnv(t, translocation(5), concordant(), opts)
	res, err := RunRegion(context.Background(), env, chr(0))
	assert.NoError(t, err)
	expect.EQ(t, len(res.MateRegions), 1)
	expect.EQ(t, res.MateRegions[0].RefID, 1)
	expect.EQ(t, res.TumorReads, 10)
	expect.EQ(t, res.NormalReads, 0)
	expect.EQ(t, len(res.Contigs), 0)
	assert.EQ(t, len(res.Clusters), 1)
	c := res.Clusters[0]
	expect.EQ(t, c.TCount, 5)
	expect.EQ(t, c.NCount, 0)
	assert.EQ(t, len(res.Breakpoints), 1)
	b := res.Breakpoints[0]
	expect.EQ(t, b.Kind, breakpoint.Discordant)
	expect.EQ(t, b.Gr1, breakpoint.Point(0, 1179, '+'))
	expect.EQ(t, b.Gr2, breakpoint.Point(1, 3000, '-'))
	expect.EQ(t, len(res.Support), 10)
}

func TestRunRegionNoMateLookup(t *testing.T) {
	opts := DefaultOpts
	opts.DiscClusterOnly = true
	opts.MateLookup = false
	env := testEnv(t, translocation(5), nil, opts)
	res, err := RunRegion(context.Background(), env, chr(0))
	assert.NoError(t, err)
	expect.EQ(t, len(res.MateRegions), 0)
	expect.EQ(t, res.TumorReads, 5)
	// Clustering needs both reads of a pair.
	expect.EQ(t, len(res.Clusters), 0)
	expect.EQ(t, len(res.Breakpoints), 0)
}

func TestRunRegionBlacklist(t *testing.T) {
	opts := DefaultOpts
	opts.DiscClusterOnly = true
	env := testEnv(t, translocation(5), nil, opts)
	env.Blacklist = interval.NewBEDUnionFromEntries([]interval.Entry{{ChrName: "chr1", Start0: 899, End: 1200}}, interval.NewBEDOpts{Names: refNames})
	res, err := RunRegion(context.Background(), env, chr(0))
	assert.NoError(t, err)
	expect.EQ(t, res.TumorReads, 0)
	expect.EQ(t, len(res.Breakpoints), 0)
}

func TestRunRegionDeletion(t *testing.T) {
	env := testEnv(t, deletion(), nil, DefaultOpts)
	res, err := RunRegion(context.Background(), env, chr(0))
	assert.NoError(t, err)
	expect.EQ(t, res.TumorReads, 19)
	assert.True(t, len(res.Contigs) > 0)
	for _, c := range res.Contigs {
		expect.True(t, strings.HasPrefix(c.ID, "c_1_1_5000_"), c.ID)
	}
	var found *breakpoint.Breakpoint
	for _, b := range res.Breakpoints {
		if b.Kind == breakpoint.Split {
			found = b
		}
	}
	assert.True(t, found != nil, "no assembled breakpoint in %v", res.Breakpoints)
	near := func(got, want int) bool { return got >= want-5 && got <= want+5 }
	expect.EQ(t, found.Gr1.RefID, 0)
	expect.EQ(t, found.Gr2.RefID, 0)
	expect.True(t, near(found.Gr1.Pos1, 1500), found.Gr1)
	expect.True(t, near(found.Gr2.Pos1, 1601), found.Gr2)
	expect.True(t, found.TSplit >= 2)
	expect.EQ(t, found.NSplit, 0)
	expect.True(t, len(res.Support) >= 2)
}

func TestRunRegionRearrangement(t *testing.T) {
	recs := rearrangement()
	assert.EQ(t, len(recs), 20)
	env := testEnv(t, recs, nil, DefaultOpts)
	res, err := RunRegion(context.Background(), env, chr(0))
	assert.NoError(t, err)
	expect.EQ(t, res.TumorReads, 20)
	expect.EQ(t, len(res.Clusters), 0)
	assert.EQ(t, len(res.Breakpoints), 1, "breakpoints: %v", res.Breakpoints)
	b := res.Breakpoints[0]
	expect.EQ(t, b.Kind, breakpoint.Split)
	expect.True(t, b.ContigID != "")
	expect.True(t, b.Cluster == nil)
	near := func(got, want int) bool { return got >= want-5 && got <= want+5 }
	expect.EQ(t, b.Gr1.RefID, 0)
	expect.EQ(t, b.Gr2.RefID, 0)
	expect.True(t, near(b.Gr1.Pos1, 1000), b.Gr1)
	expect.True(t, near(b.Gr2.Pos1, 5000), b.Gr2)
	expect.EQ(t, b.Gr1.Strand, byte('+'))
	expect.EQ(t, b.Gr2.Strand, byte('-'))
	expect.True(t, b.SplitSupport() >= DefaultOpts.Minimal.MinSplitReads, b.SplitSupport())
	expect.EQ(t, b.NSplit, 0)
}

func TestRunRegionDiscordantWithAssembly(t *testing.T) {
	env := testEnv(t, translocation(8), concordant(), DefaultOpts)
	res, err := RunRegion(context.Background(), env, chr(0))
	assert.NoError(t, err)
	expect.EQ(t, res.TumorReads, 16)
	// The pairs assemble into reference contigs that carry no variant.
	for _, c := range res.Contigs {
		expect.EQ(t, len(c.Calls()), 0, c.ID)
	}
	assert.EQ(t, len(res.Clusters), 1)
	expect.EQ(t, res.Clusters[0].TCount, 8)
	expect.EQ(t, res.Clusters[0].NCount, 0)
	assert.EQ(t, len(res.Breakpoints), 1, "breakpoints: %v", res.Breakpoints)
	b := res.Breakpoints[0]
	expect.EQ(t, b.Kind, breakpoint.Discordant)
	expect.EQ(t, b.ContigID, "")
	expect.True(t, b.Cluster == res.Clusters[0])
	expect.EQ(t, b.Gr1.RefID, 0)
	expect.EQ(t, b.Gr2, breakpoint.Point(1, 3000, '-'))
}

func TestRunRegionShuffle(t *testing.T) {
	recs := append(translocation(5), deletion()...)
	var want []string
	for iter := 0; iter < 3; iter++ {
		shuffled := append([]*sam.Record(nil), recs...)
		rand.New(rand.NewSource(int64(iter))).Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})
		env := testEnv(t, shuffled, nil, DefaultOpts)
		res, err := RunRegion(context.Background(), env, chr(0))
		assert.NoError(t, err)
		var got []string
		for _, b := range res.Breakpoints {
			got = append(got, b.Key()+" "+b.ContigID)
		}
		for _, c := range res.Clusters {
			got = append(got, c.ID)
		}
		if iter == 0 {
			want = got
			continue
		}
		expect.EQ(t, got, want)
	}
}

func TestRunRegionEmpty(t *testing.T) {
	env := testEnv(t, nil, nil, DefaultOpts)
	res, err := RunRegion(context.Background(), env, chr(1))
	assert.NoError(t, err)
	expect.EQ(t, res.TumorReads+res.NormalReads, 0)
	expect.EQ(t, len(res.Contigs), 0)
	expect.EQ(t, len(res.Clusters), 0)
	expect.EQ(t, len(res.Breakpoints), 0)
}

func TestRunRegionDuplicates(t *testing.T) {
	summary := func(recs []*sam.Record) ([]string, int) {
		env := testEnv(t, recs, nil, DefaultOpts)
		res, err := RunRegion(context.Background(), env, chr(0))
		assert.NoError(t, err)
		var out []string
		for _, b := range res.Breakpoints {
			out = append(out, fmt.Sprintf("%s %s %d/%d", b.Key(), b.Kind, b.TSplit, b.NSplit))
		}
		for _, c := range res.Clusters {
			out = append(out, fmt.Sprintf("%s %d/%d", c.ID, c.TCount, c.NCount))
		}
		return out, res.Duplicates
	}
	recs := append(translocation(5), deletion()...)
	once, dups := summary(recs)
	expect.EQ(t, dups, 0)
	twice, dups := summary(append(append([]*sam.Record(nil), recs...), recs...))
	expect.EQ(t, dups, len(recs))
	expect.EQ(t, twice, once)
}

func TestRunRegionCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	env := testEnv(t, deletion(), nil, DefaultOpts)
	_, err := RunRegion(ctx, env, chr(0))
	expect.True(t, err != nil)
}

func TestMateRegions(t *testing.T) {
	h := refHeader
	rd := func(cohort reads.Cohort, name string, matePos int) *reads.Read {
		rec := samtest.Record(h, samtest.Rec{Name: name, Ref: "chr1", Pos: 1000, MapQ: 60, Cigar: "100M",
			Flags: sam.Paired | sam.Read1, MateRef: "chr2", MatePos: matePos, Seq: refSeq(0, 1000)})
		return reads.New(rec, cohort, 0)
	}
	r := region.Region{RefID: 0, Pos1: 1, Pos2: 2000}
	opts := DefaultOpts

	rs := []*reads.Read{rd(reads.Tumor, "a", 3000), rd(reads.Tumor, "b", 3100), rd(reads.Tumor, "c", 3200)}
	got := mateRegions(r, rs, opts)
	assert.EQ(t, len(got), 1)
	expect.EQ(t, got[0], region.Region{RefID: 1, Pos1: 2000, Pos2: 4200})

	// Too few tumor reads.
	expect.EQ(t, len(mateRegions(r, rs[:2], opts)), 0)
	// Any normal read vetoes the region.
	expect.EQ(t, len(mateRegions(r, append(rs, rd(reads.Normal, "d", 3050)), opts)), 0)
	// Distant mates form separate regions.
	far := []*reads.Read{rd(reads.Tumor, "e", 5500), rd(reads.Tumor, "f", 5510), rd(reads.Tumor, "g", 5520)}
	expect.EQ(t, len(mateRegions(r, append(rs, far...), opts)), 2)
}

func TestStatsMerge(t *testing.T) {
	a := Stats{Regions: 1, TumorReads: 10, Contigs: 2, Breakpoints: 1}
	b := Stats{Regions: 2, FailedRegions: 1, NormalReads: 3, Clusters: 4, SupportReads: 5}
	expect.EQ(t, a.Merge(b), Stats{Regions: 3, FailedRegions: 1, TumorReads: 10, NormalReads: 3, Contigs: 2, SupportReads: 5, Clusters: 4, Breakpoints: 1})
}

// readLines returns the lines of a file, decompressing it if it ends in .gz.
func readLines(t *testing.T, path string) []string {
	f, err := os.Open(path)
	assert.NoError(t, err)
	defer f.Close() // nolint: errcheck
	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		assert.NoError(t, err)
		r = gz
	}
	var lines []string
	sc := bufio.NewScanner(r)
	sc.Buffer(nil, 1<<20)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	assert.NoError(t, sc.Err())
	return lines
}

func countRecords(t *testing.T, path string) int {
	f, err := os.Open(path)
	assert.NoError(t, err)
	defer f.Close() // nolint: errcheck
	r, err := bam.NewReader(f, 1)
	assert.NoError(t, err)
	n := 0
	for {
		_, err := r.Read()
		if err == io.EOF {
			return n
		}
		assert.NoError(t, err)
		n++
	}
}

func TestOutputs(t *testing.T) {
	ctx := context.Background()
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	opts := DefaultOpts
	opts.DiscClusterOnly = true
	env := testEnv(t, translocation(5), nil, opts)
	res, err := RunRegion(ctx, env, chr(0))
	assert.NoError(t, err)

	out, err := NewOutputs(ctx, dir, "test", refNames, env.Aligner.Header(), refHeader)
	assert.NoError(t, err)
	assert.NoError(t, out.Append(res))
	out.Fail()
	stats := out.Stats()
	assert.NoError(t, out.Close(ctx))
	expect.EQ(t, stats, Stats{Regions: 1, FailedRegions: 1, TumorReads: 10, SupportReads: 10, Clusters: 1, Breakpoints: 1})

	bps := readLines(t, filepath.Join(dir, "test."+BreakpointsFile))
	assert.EQ(t, len(bps), 2)
	expect.EQ(t, bps[0], breakpoint.Header)
	expect.True(t, strings.HasPrefix(bps[1], "chr1\t1179\t+\tchr2\t3000\t-\tDSCRD\t"), bps[1])
	disc := readLines(t, filepath.Join(dir, "test."+DiscordantFile))
	expect.EQ(t, len(disc), 2)
	expect.EQ(t, len(readLines(t, filepath.Join(dir, "test."+AlignmentsFile))), 0)
	for _, name := range []string{ContigsFile, ContigsAllFile} {
		for _, line := range readLines(t, filepath.Join(dir, "test."+name)) {
			expect.True(t, strings.HasPrefix(line, "@"), line)
		}
	}
	expect.EQ(t, countRecords(t, filepath.Join(dir, "test."+SupportFile)), 10)
}

func TestOutputsDuplicateRegions(t *testing.T) {
	ctx := context.Background()
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	opts := DefaultOpts
	opts.DiscClusterOnly = true
	env := testEnv(t, translocation(5), nil, opts)
	res0, err := RunRegion(ctx, env, chr(0))
	assert.NoError(t, err)
	res1, err := RunRegion(ctx, env, chr(1))
	assert.NoError(t, err)
	assert.EQ(t, len(res1.Breakpoints), 1)
	expect.EQ(t, res1.Breakpoints[0].Key(), res0.Breakpoints[0].Key())

	out, err := NewOutputs(ctx, dir, "", refNames, env.Aligner.Header(), refHeader)
	assert.NoError(t, err)
	assert.NoError(t, out.Append(res0))
	assert.NoError(t, out.Append(res1))
	stats := out.Stats()
	assert.NoError(t, out.Close(ctx))
	expect.EQ(t, stats, Stats{Regions: 2, TumorReads: 20, SupportReads: 10, Clusters: 1, Breakpoints: 1})
	expect.EQ(t, len(readLines(t, filepath.Join(dir, BreakpointsFile))), 2)
	expect.EQ(t, len(readLines(t, filepath.Join(dir, DiscordantFile))), 2)
	expect.EQ(t, countRecords(t, filepath.Join(dir, SupportFile)), 10)
}

func TestOutputsBadDir(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	blocker := filepath.Join(dir, "file")
	assert.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))
	_, err := NewOutputs(context.Background(), filepath.Join(blocker, "sub"), "", refNames, refHeader, refHeader)
	expect.True(t, err != nil)
}

func TestScheduler(t *testing.T) {
	ctx := context.Background()
	recs := append(translocation(5), deletion()...)
	var regions []region.Region
	for _, r := range []region.Region{chr(0), chr(1)} {
		regions = append(regions, region.DivideWithOverlaps(r, 2000, 0)...)
	}
	var want Stats
	for _, parallelism := range []int{1, 3} {
		dir, cleanup := testutil.TempDir(t, "", "")
		env := testEnv(t, recs, nil, DefaultOpts)
		out, err := NewOutputs(ctx, dir, "", refNames, env.Aligner.Header(), refHeader)
		assert.NoError(t, err)
		s := &Scheduler{Env: env, Out: out, Parallelism: parallelism}
		stats, err := s.Run(ctx, regions)
		assert.NoError(t, err)
		assert.NoError(t, out.Close(ctx))
		expect.EQ(t, stats.Regions, len(regions))
		expect.EQ(t, stats.FailedRegions, 0)
		lines := readLines(t, filepath.Join(dir, BreakpointsFile))
		expect.EQ(t, len(lines), stats.Breakpoints+1)
		if parallelism == 1 {
			want = stats
		} else {
			expect.EQ(t, stats, want)
		}
		cleanup()
	}
}

func TestSchedulerCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	env := testEnv(t, translocation(5), nil, DefaultOpts)
	out, err := NewOutputs(context.Background(), dir, "", refNames, env.Aligner.Header(), refHeader)
	assert.NoError(t, err)
	s := &Scheduler{Env: env, Out: out, Parallelism: 2}
	stats, err := s.Run(ctx, []region.Region{chr(0), chr(1)})
	expect.True(t, errors.Is(errors.Canceled, err), err)
	expect.EQ(t, stats.Regions, 0)
	assert.NoError(t, out.Close(context.Background()))
}

func TestSchedulerFailedRegion(t *testing.T) {
	ctx := context.Background()
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	env := testEnv(t, translocation(5), nil, DefaultOpts)
	env.Samples = append(env.Samples, &readsource.Sample{Path: "broken", Cohort: reads.Tumor, Index: 1, Source: failing{}})
	out, err := NewOutputs(ctx, dir, "", refNames, env.Aligner.Header(), refHeader)
	assert.NoError(t, err)
	s := &Scheduler{Env: env, Out: out, Parallelism: 2}
	stats, err := s.Run(ctx, []region.Region{chr(0), chr(1)})
	assert.NoError(t, err)
	expect.EQ(t, stats.Regions, 0)
	expect.EQ(t, stats.FailedRegions, 2)
	assert.NoError(t, out.Close(ctx))
}

type failing struct{}

func (failing) Header() *sam.Header { return refHeader }
func (failing) Fetch(context.Context, region.Region) ([]*sam.Record, error) {
	return nil, errors.E(errors.Unavailable, "broken source")
}
func (failing) Head(context.Context, int) ([]*sam.Record, error) { return nil, nil }
func (failing) Close() error                                      { return nil }

func TestCheckHeaders(t *testing.T) {
	expect.NoError(t, checkHeaders(refHeader, refHeader))
	other := samtest.Header([]string{"chr2", "chr1"}, []int{refLen, refLen})
	expect.True(t, checkHeaders(refHeader, other) != nil)
}

func TestLearnReadLength(t *testing.T) {
	opts := DefaultOpts
	opts.Assembly.MinOverlap = 0
	src := readsource.NewFake(refHeader, translocation(2))
	assert.NoError(t, LearnReadLength(context.Background(), src, &opts))
	expect.EQ(t, opts.Assembly.MinContigLength, 101)
	expect.EQ(t, opts.Assembly.MinOverlap, 40)

	opts = DefaultOpts
	assert.NoError(t, LearnReadLength(context.Background(), src, &opts))
	expect.EQ(t, opts.Assembly.MinOverlap, DefaultOpts.Assembly.MinOverlap)
}

func TestRegions(t *testing.T) {
	ctx := context.Background()
	opts := DefaultOpts
	opts.ChunkSize = 2500
	opts.ChunkPad = 100
	rs, err := Regions(ctx, opts, refHeader)
	assert.NoError(t, err)
	expect.EQ(t, len(rs), 6)
	expect.EQ(t, rs[1], region.Region{RefID: 0, Pos1: 2401, Pos2: 5000})

	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	bed := filepath.Join(dir, "regions.bed")
	assert.NoError(t, os.WriteFile(bed, []byte("chr2\t99\t400\nchr1\t0\t1000\n"), 0644))
	opts.RegionFile = bed
	opts.ChunkSize = 0
	rs, err = Regions(ctx, opts, refHeader)
	assert.NoError(t, err)
	assert.EQ(t, len(rs), 2)
	expect.EQ(t, rs[0].RefID, 0)
	expect.EQ(t, rs[1].RefID, 1)
}

// writeBAM writes recs to path along with a .bai index.
func writeBAM(t *testing.T, path string, recs []*sam.Record) {
	recs = append([]*sam.Record(nil), recs...)
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].Ref.ID() != recs[j].Ref.ID() {
			return recs[i].Ref.ID() < recs[j].Ref.ID()
		}
		return recs[i].Pos < recs[j].Pos
	})
	out, err := os.Create(path)
	assert.NoError(t, err)
	w, err := bam.NewWriter(out, refHeader, 1)
	assert.NoError(t, err)
	for _, r := range recs {
		assert.NoError(t, w.Write(r))
	}
	assert.NoError(t, w.Close())
	assert.NoError(t, out.Close())

	in, err := os.Open(path)
	assert.NoError(t, err)
	defer in.Close() // nolint: errcheck
	br, err := bam.NewReader(in, 1)
	assert.NoError(t, err)
	var idx bam.Index
	for {
		rec, err := br.Read()
		if err == io.EOF {
			break
		}
		assert.NoError(t, err)
		assert.NoError(t, idx.Add(rec, br.LastChunk()))
	}
	ixOut, err := os.Create(path + ".bai")
	assert.NoError(t, err)
	assert.NoError(t, bam.WriteIndex(ixOut, &idx))
	assert.NoError(t, ixOut.Close())
}

func writeFASTA(t *testing.T, path string) {
	var b strings.Builder
	for i, name := range refNames {
		fmt.Fprintf(&b, ">%s\n", name)
		for s := refSeqs[i]; len(s) > 0; {
			n := 60
			if n > len(s) {
				n = len(s)
			}
			b.WriteString(s[:n] + "\n")
			s = s[n:]
		}
	}
	assert.NoError(t, os.WriteFile(path, []byte(b.String()), 0644))
}

func TestRun(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	tumor, normal := filepath.Join(dir, "tumor.bam"), filepath.Join(dir, "normal.bam")
	writeBAM(t, tumor, translocation(5))
	writeBAM(t, normal, concordant())
	ref := filepath.Join(dir, "ref.fa")
	writeFASTA(t, ref)

	opts := DefaultOpts
	opts.TumorBAMs = []string{tumor}
	opts.NormalBAMs = []string{normal}
	opts.Reference = ref
	opts.OutDir = dir
	opts.AnalysisID = "run"
	opts.DiscClusterOnly = true
	opts.Parallelism = 2
	stats, err := Run(context.Background(), opts)
	assert.NoError(t, err)
	expect.EQ(t, stats.Regions, 2)
	expect.EQ(t, stats.FailedRegions, 0)
	// Both ends of the translocation see the cluster; it is written once.
	expect.EQ(t, stats.Breakpoints, 1)
	expect.EQ(t, stats.Clusters, 1)
	bps := readLines(t, filepath.Join(dir, "run."+BreakpointsFile))
	assert.EQ(t, len(bps), 2)
	expect.True(t, strings.HasPrefix(bps[1], "chr1\t1179\t+\tchr2\t3000\t-\tDSCRD\t"), bps[1])
	expect.EQ(t, len(readLines(t, filepath.Join(dir, "run."+DiscordantFile))), 2)
	expect.EQ(t, countRecords(t, filepath.Join(dir, "run."+SupportFile)), 10)
}

func TestRunBlacklist(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	tumor, normal := filepath.Join(dir, "tumor.bam"), filepath.Join(dir, "normal.bam")
	writeBAM(t, tumor, translocation(5))
	writeBAM(t, normal, concordant())
	ref := filepath.Join(dir, "ref.fa")
	writeFASTA(t, ref)
	blacklist := filepath.Join(dir, "blacklist.bed")
	assert.NoError(t, os.WriteFile(blacklist, []byte("chr1\t500\t1500\nchr2\t2500\t3500\n"), 0644))

	opts := DefaultOpts
	opts.TumorBAMs = []string{tumor}
	opts.NormalBAMs = []string{normal}
	opts.Reference = ref
	opts.Blacklist = blacklist
	opts.OutDir = dir
	opts.DiscClusterOnly = true
	stats, err := Run(context.Background(), opts)
	assert.NoError(t, err)
	expect.EQ(t, stats.Regions, 2)
	expect.EQ(t, stats.Breakpoints, 0)
	expect.EQ(t, stats.Clusters, 0)

	opts.Blacklist = filepath.Join(dir, "missing.bed")
	_, err = Run(context.Background(), opts)
	expect.True(t, err != nil)
}

func TestRunMissingInput(t *testing.T) {
	opts := DefaultOpts
	_, err := Run(context.Background(), opts)
	expect.True(t, err != nil)

	opts.TumorBAMs = []string{"/nonexistent/tumor.bam"}
	_, err = Run(context.Background(), opts)
	expect.True(t, err != nil)
}
