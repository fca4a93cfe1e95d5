// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package fasta

import (
	"bufio"
	"bytes"
	"io"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/tsv"
)

// IndexEntry is one line of a samtools faidx index.
type IndexEntry struct {
	Name string
	// Length is the number of bases.
	Length uint64
	// Offset is the byte offset of the first base.
	Offset uint64
	// LineBase is the number of bases per line, LineWidth the number of bytes
	// per line including the terminator.
	LineBase  uint64
	LineWidth uint64
}

// ReadIndex parses a .fai index.
func ReadIndex(r io.Reader) ([]IndexEntry, error) {
	tr := tsv.NewReader(r)
	var entries []IndexEntry
	for {
		var e IndexEntry
		if err := tr.Read(&e); err != nil {
			if err == io.EOF {
				break
			}
			return nil, errors.E(err, "reading FASTA index")
		}
		if e.Length > 0 && (e.LineBase == 0 || e.LineWidth < e.LineBase) {
			return nil, errors.E(errors.Invalid, "bad line geometry in FASTA index for", e.Name)
		}
		entries = append(entries, e)
	}
	if len(entries) == 0 {
		return nil, errors.E(errors.Invalid, "empty FASTA index")
	}
	return entries, nil
}

// GenerateIndex generates an index (*.fai) from FASTA. The index can be later
// passed to NewEagerIndexed to load the FASTA file quickly.
//
// The index format is defined by "samtools faidx"
// (http://www.htslib.org/doc/faidx.html).
func GenerateIndex(out io.Writer, in io.Reader) (err error) {
	var (
		tsvOut      = tsv.NewWriter(out)
		r           = bufio.NewReader(in)
		seqName     string
		seqStartOff int64
		totalBases  int
		lineBases   int
		lineWidth   int
		cumByte     int64
		inSeq       bool
		eof         bool
	)

	setErr := func(e error) {
		if e != nil && err == nil {
			err = e
		}
	}
	flush := func() {
		tsvOut.WriteString(seqName)
		tsvOut.WriteInt64(int64(totalBases))
		tsvOut.WriteInt64(seqStartOff)
		tsvOut.WriteInt64(int64(lineBases))
		tsvOut.WriteInt64(int64(lineWidth))
		setErr(tsvOut.EndLine())
	}
	for !eof && err == nil {
		fullLine, e := r.ReadBytes('\n')
		if e == io.EOF {
			eof = true
		} else if e != nil {
			setErr(e)
		}
		cumByte += int64(len(fullLine))
		line := bytes.TrimRight(fullLine, "\r\n")
		if len(line) == 0 {
			continue
		}
		if line[0] == '>' {
			if inSeq {
				flush()
			}
			seqName = string(bytes.SplitN(line[1:], []byte(" "), 2)[0])
			seqStartOff = cumByte
			lineWidth = 0
			lineBases = 0
			totalBases = 0
			inSeq = true
			continue
		}
		if !inSeq {
			setErr(errors.E(errors.Invalid, "malformed FASTA file"))
			break
		}
		if lineWidth == 0 {
			lineWidth = len(fullLine)
			lineBases = len(line)
		}
		totalBases += len(line)
	}
	if err != nil {
		return err
	}
	if !inSeq {
		return errors.E(errors.Invalid, "empty FASTA file")
	}
	flush()
	setErr(tsvOut.Flush())
	return
}
