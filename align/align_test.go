// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package align

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/biogo/hts/sam"
	"github.com/grailbio/sv/internal/samtest"
	"github.com/grailbio/sv/reads"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

const (
	fastaData  = ">seq1\nACGTA\nCGTAC\nGT\n>seq2 A viral sequence\nACGT\nACGT\n"
	fastaIndex = "seq1\t12\t6\t5\t6\nseq2\t8\t44\t4\t5\n"
)

func TestReadFai(t *testing.T) {
	ctx := context.Background()
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	fa := filepath.Join(dir, "test.fa")
	assert.NoError(t, os.WriteFile(fa, []byte(fastaData), 0644))

	// Without an index the dictionary comes from the FASTA file itself.
	dict, err := ReadDict(ctx, fa)
	assert.NoError(t, err)
	expect.EQ(t, dict.Names, []string{"seq1", "seq2"})
	expect.EQ(t, dict.Lengths, []int{12, 8})

	assert.NoError(t, os.WriteFile(fa+".fai", []byte(fastaIndex), 0644))
	for _, load := range []func() (*Reference, error){
		func() (*Reference, error) { return ReadFai(ctx, fa+".fai") },
		func() (*Reference, error) { return ReadDict(ctx, fa) },
	} {
		ref, err := load()
		assert.NoError(t, err)
		expect.EQ(t, ref.Names, []string{"seq1", "seq2"})
		expect.EQ(t, ref.Lengths, []int{12, 8})
		expect.EQ(t, ref.ID("seq2"), 1)
		expect.EQ(t, ref.ID("seq3"), -1)
		h, err := ref.Header()
		assert.NoError(t, err)
		expect.EQ(t, len(h.Refs()), 2)
		expect.EQ(t, h.Refs()[0].Len(), 12)
	}

	empty := filepath.Join(dir, "empty.fai")
	assert.NoError(t, os.WriteFile(empty, nil, 0644))
	_, err = ReadFai(ctx, empty)
	expect.True(t, err != nil)
	_, err = ReadFai(ctx, filepath.Join(dir, "missing.fai"))
	expect.True(t, err != nil)
}

func TestLoadFASTA(t *testing.T) {
	ctx := context.Background()
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	fa := filepath.Join(dir, "test.fa")
	assert.NoError(t, os.WriteFile(fa, []byte(strings.Replace(fastaData, "ACGTA\n", "acgtR\n", 1)), 0644))
	for _, withIndex := range []bool{false, true} {
		if withIndex {
			assert.NoError(t, os.WriteFile(fa+".fai", []byte(fastaIndex), 0644))
		}
		ref, err := LoadFASTA(ctx, fa)
		assert.NoError(t, err)
		expect.EQ(t, ref.Names, []string{"seq1", "seq2"})
		expect.EQ(t, ref.Lengths, []int{12, 8})
		expect.EQ(t, string(ref.Seqs[0]), "ACGTNCGTACGT")
		expect.EQ(t, string(ref.Seqs[1]), "ACGTACGT")
	}
	_, err := LoadFASTA(ctx, filepath.Join(dir, "missing.fa"))
	expect.True(t, err != nil)
}

func TestWriteFASTA(t *testing.T) {
	var buf bytes.Buffer
	assert.NoError(t, writeFASTA(&buf, []Query{{"c1", []byte("ACGT")}, {"c2", []byte("GGCC")}}))
	expect.True(t, strings.Contains(buf.String(), ">c1\nACGT\n"))
	expect.True(t, strings.Contains(buf.String(), ">c2\nGGCC\n"))
}

func TestGroup(t *testing.T) {
	h := samtest.Header([]string{"chr1"}, []int{1000})
	primary := samtest.Record(h, samtest.Rec{Name: "c1", Ref: "chr1", Pos: 10, MapQ: 60, Cigar: "50M50S", Seq: samtest.RandomSeq(100, 1)})
	supp := samtest.Record(h, samtest.Rec{Name: "c1", Ref: "chr1", Pos: 500, MapQ: 60, Cigar: "50S50M", Flags: sam.Supplementary, Seq: samtest.RandomSeq(100, 1)})
	second := samtest.Record(h, samtest.Rec{Name: "c1", Ref: "chr1", Pos: 700, Cigar: "50S50M", Flags: sam.Secondary, Seq: samtest.RandomSeq(100, 1)})
	other := samtest.Record(h, samtest.Rec{Name: "c2", Ref: "chr1", Pos: 20, MapQ: 60, Cigar: "100M", Seq: samtest.RandomSeq(100, 2)})
	stray := samtest.Record(h, samtest.Rec{Name: "zz", Ref: "chr1", Pos: 20, Cigar: "100M", Seq: samtest.RandomSeq(100, 2)})
	g := group([]Query{{Name: "c1"}, {Name: "c2"}, {Name: "c3"}}, []*sam.Record{supp, other, second, primary, stray})
	expect.EQ(t, len(g), 3)
	expect.EQ(t, len(g[0]), 2)
	expect.True(t, g[0][0] == primary)
	expect.True(t, g[0][1] == supp)
	expect.EQ(t, len(g[1]), 1)
	expect.EQ(t, len(g[2]), 0)
}

func testReference() *Reference {
	chr1 := []byte(samtest.RandomSeq(2000, 11))
	chr2 := []byte(samtest.RandomSeq(2000, 12))
	return &Reference{Names: []string{"chr1", "chr2"}, Lengths: []int{2000, 2000}, Seqs: [][]byte{chr1, chr2}}
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// opLens sums the lengths of the cigar operations of each type.
func opLens(c sam.Cigar) map[sam.CigarOpType]int {
	m := make(map[sam.CigarOpType]int)
	for _, op := range c {
		m[op.Type()] += op.Len()
	}
	return m
}

func TestLocalSplit(t *testing.T) {
	ref := testReference()
	l, err := NewLocal(ref, DefaultLocalOpts)
	assert.NoError(t, err)
	q := Query{Name: "c0", Seq: concat(ref.Seqs[0][500:600], ref.Seqs[1][1000:1100])}
	out, err := l.Align(context.Background(), []Query{q})
	assert.NoError(t, err)
	recs := out[0]
	expect.EQ(t, len(recs), 2)
	expect.EQ(t, recs[0].Flags&sam.Supplementary, sam.Flags(0))
	expect.EQ(t, recs[1].Flags&sam.Supplementary, sam.Supplementary)
	byRef := make(map[string]*sam.Record)
	for _, r := range recs {
		byRef[r.Ref.Name()] = r
		expect.EQ(t, r.MapQ, byte(60))
		_, ok := r.Tag([]byte("SA"))
		expect.True(t, ok)
	}
	expect.EQ(t, byRef["chr1"].Pos, 500)
	expect.True(t, byRef["chr2"].Pos >= 996 && byRef["chr2"].Pos <= 1000)
	expect.EQ(t, byRef["chr1"].Cigar[0].Type(), sam.CigarMatch)
	expect.EQ(t, byRef["chr2"].Cigar[0].Type(), sam.CigarSoftClipped)
}

func TestLocalIndels(t *testing.T) {
	ref := testReference()
	l, err := NewLocal(ref, DefaultLocalOpts)
	assert.NoError(t, err)
	chr1 := ref.Seqs[0]
	del := Query{Name: "del", Seq: concat(chr1[100:200], chr1[230:330])}
	ins := Query{Name: "ins", Seq: concat(chr1[1100:1200], []byte("ACGTTGCAAC"), chr1[1200:1300])}
	out, err := l.Align(context.Background(), []Query{del, ins})
	assert.NoError(t, err)

	expect.EQ(t, len(out[0]), 1)
	expect.EQ(t, out[0][0].Pos, 100)
	m := opLens(out[0][0].Cigar)
	expect.EQ(t, m[sam.CigarDeletion], 30)
	expect.EQ(t, m[sam.CigarMatch], 200)

	expect.EQ(t, len(out[1]), 1)
	expect.EQ(t, out[1][0].Pos, 1100)
	m = opLens(out[1][0].Cigar)
	expect.EQ(t, m[sam.CigarInsertion], 10)
	expect.EQ(t, m[sam.CigarMatch], 200)
}

func TestLocalReverseAndUnmapped(t *testing.T) {
	ref := testReference()
	l, err := NewLocal(ref, DefaultLocalOpts)
	assert.NoError(t, err)
	rev := Query{Name: "rev", Seq: reads.RevComp(ref.Seqs[0][400:700])}
	none := Query{Name: "none", Seq: []byte(samtest.RandomSeq(200, 99))}
	out, err := l.Align(context.Background(), []Query{rev, none})
	assert.NoError(t, err)
	expect.EQ(t, len(out[0]), 1)
	expect.EQ(t, out[0][0].Flags&sam.Reverse, sam.Reverse)
	expect.EQ(t, out[0][0].Pos, 400)
	expect.EQ(t, out[0][0].Cigar.String(), "300M")
	expect.EQ(t, len(out[1]), 1)
	expect.EQ(t, out[1][0].Flags&sam.Unmapped, sam.Unmapped)

	_, err = NewLocal(&Reference{Names: []string{"x"}, Lengths: []int{1}}, DefaultLocalOpts)
	expect.True(t, err != nil)
}

func TestLocalCanceled(t *testing.T) {
	l, err := NewLocal(testReference(), DefaultLocalOpts)
	assert.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = l.Align(ctx, []Query{{Name: "q", Seq: []byte("ACGT")}})
	expect.EQ(t, err, context.Canceled)
}

func TestRealign(t *testing.T) {
	contig := []byte(samtest.RandomSeq(300, 21))
	r := NewRealigner(contig)

	h, ok := r.Align(contig[100:200])
	expect.True(t, ok)
	expect.EQ(t, h.Pos, 100)
	expect.EQ(t, h.End, 200)
	expect.False(t, h.RC)
	expect.EQ(t, h.Score, 200)
	expect.EQ(t, h.Cigar.String(), "100M")

	h, ok = r.Align(reads.RevComp(contig[50:150]))
	expect.True(t, ok)
	expect.True(t, h.RC)
	expect.EQ(t, h.Pos, 50)
	expect.EQ(t, h.End, 150)

	mut := append([]byte(nil), contig[120:220]...)
	if mut[50] == 'A' {
		mut[50] = 'C'
	} else {
		mut[50] = 'A'
	}
	h, ok = r.Align(mut)
	expect.True(t, ok)
	expect.EQ(t, h.Score, 2*99-4)

	_, ok = r.Align([]byte(samtest.RandomSeq(100, 77)))
	expect.False(t, ok)
}
