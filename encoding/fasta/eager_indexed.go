// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package fasta

import (
	"bufio"
	"fmt"
	"io"

	gunsafe "github.com/grailbio/base/unsafe"
)

// NewEagerIndexed reads every sequence of the index from fastaR into memory,
// using the line geometry of the index to skip line terminators. All bases are
// stored in one allocation.
func NewEagerIndexed(fastaR io.Reader, index []IndexEntry, userOpts ...Opt) (Fasta, error) {
	o := makeOpts(userOpts)
	var entireLen uint64
	entireSeqStarts := make([]uint64, len(index))
	for e, entry := range index {
		entireSeqStarts[e] = entireLen
		entireLen += entry.Length
	}
	entire := make([]byte, entireLen)

	var fileOffset uint64
	bufR := bufio.NewReaderSize(fastaR, bufferInitSize)
	for e, entry := range index {
		if entry.Offset < fileOffset {
			return nil, fmt.Errorf("fasta.NewEagerIndexed: index is not in file order at %s", entry.Name)
		}
		n, err := bufR.Discard(int(entry.Offset - fileOffset))
		fileOffset += uint64(n)
		if err != nil {
			return nil, fmt.Errorf("fasta.NewEagerIndexed: seeking seq: %v", err)
		}
		var basesRead uint64
		for basesRead < entry.Length {
			nextBasesRead := basesRead + entry.LineBase
			if nextBasesRead > entry.Length {
				nextBasesRead = entry.Length
			}
			lineBases := nextBasesRead - basesRead

			entireLineStart := entireSeqStarts[e] + basesRead
			entireLine := entire[entireLineStart : entireLineStart+lineBases]
			n, err := io.ReadFull(bufR, entireLine)
			fileOffset += uint64(n)
			if err != nil {
				return nil, fmt.Errorf("fasta.NewEagerIndexed: reading: %v", err)
			}
			basesRead += lineBases

			if basesRead < entry.Length {
				n, err := bufR.Discard(int(entry.LineWidth - entry.LineBase))
				fileOffset += uint64(n)
				if err != nil {
					return nil, fmt.Errorf("fasta.NewEagerIndexed: seeking line: %v", err)
				}
			}
		}
	}
	encode(entire, o)

	fa := fasta{
		seqs:     make(map[string]string, len(index)),
		seqNames: make([]string, 0, len(index)),
	}
	for e, entry := range index {
		seqBytes := entire[entireSeqStarts[e] : entireSeqStarts[e]+entry.Length]
		fa.seqs[entry.Name] = gunsafe.BytesToString(seqBytes)
		fa.seqNames = append(fa.seqNames, entry.Name)
	}
	return &fa, nil
}
