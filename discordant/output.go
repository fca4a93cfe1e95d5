// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package discordant

import (
	"sort"
	"strconv"
	"strings"

	"github.com/grailbio/base/tsv"
)

// Header is the column header of the cluster stream.
const Header = "chr1\tpos1\tpos2\tstrand1\tchr2\tpos3\tpos4\tstrand2\ttcount\tncount\treads_mapq\tmates_mapq\tcontig\tid\treads"

func refName(names []string, id int) string {
	if id >= 0 && id < len(names) {
		return names[id]
	}
	return strconv.Itoa(id)
}

// Write appends c as one line of the cluster stream. names maps reference IDs
// to names.
func (c *Cluster) Write(w *tsv.Writer, names []string) error {
	w.WriteString(refName(names, c.Reg1.RefID))
	w.WriteInt64(int64(c.Reg1.Pos1))
	w.WriteInt64(int64(c.Reg1.Pos2))
	w.WriteByte(c.Reg1.Strand)
	w.WriteString(refName(names, c.Reg2.RefID))
	w.WriteInt64(int64(c.Reg2.Pos1))
	w.WriteInt64(int64(c.Reg2.Pos2))
	w.WriteByte(c.Reg2.Strand)
	w.WriteInt64(int64(c.TCount))
	w.WriteInt64(int64(c.NCount))
	w.WriteString(strconv.FormatFloat(c.ReadsMapq, 'f', 1, 64))
	w.WriteString(strconv.FormatFloat(c.MatesMapq, 'f', 1, 64))
	contig := c.Contig
	if contig == "" {
		contig = "x"
	}
	w.WriteString(contig)
	w.WriteString(c.ID)
	ids := make([]string, 0, len(c.Reads))
	for id := range c.Reads {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	w.WriteString(strings.Join(ids, ","))
	return w.EndLine()
}
