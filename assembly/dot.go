// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package assembly

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/awalterschulze/gographviz"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/klauspost/compress/zstd"
)

func quote(s string) string { return strconv.Quote(s) }

// DOT renders the live part of g in Graphviz format. Each edge pair is drawn
// once, from the vertex with the smaller ID, labelled with its ends and
// overlap length.
func DOT(g *Graph) (string, error) {
	dg := gographviz.NewGraph()
	if err := dg.SetName("G"); err != nil {
		return "", err
	}
	if err := dg.SetDir(true); err != nil {
		return "", err
	}
	for _, v := range g.Vertices() {
		attrs := map[string]string{
			"shape": "box",
			"label": quote(fmt.Sprintf("%s len:%d", v.ID, len(v.Seq))),
		}
		if err := dg.AddNode("G", quote(v.ID), attrs); err != nil {
			return "", err
		}
	}
	ends := [2]string{"S", "AS"}
	for _, v := range g.Vertices() {
		for _, e := range v.Edges {
			if e.To.ID < v.ID {
				continue
			}
			attrs := map[string]string{
				"label": quote(fmt.Sprintf("%s/%s %d", ends[e.Dir], ends[e.Twin.Dir], e.Overlap)),
			}
			if e.Comp == Reverse {
				attrs["color"] = "red"
			}
			if err := dg.AddEdge(quote(v.ID), quote(e.To.ID), true, attrs); err != nil {
				return "", err
			}
		}
	}
	return dg.String(), nil
}

// WriteDOT writes the DOT rendering of g, zstd-compressed, to path.
func WriteDOT(ctx context.Context, g *Graph, path string) (err error) {
	text, err := DOT(g)
	if err != nil {
		return err
	}
	out, err := file.Create(ctx, path)
	if err != nil {
		return errors.E(err, "assembly.WriteDOT", path)
	}
	defer func() {
		if cerr := out.Close(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}()
	zw, err := zstd.NewWriter(out.Writer(ctx), zstd.WithEncoderConcurrency(1), zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	if _, err = io.WriteString(zw, text); err != nil {
		zw.Close() // nolint: errcheck
		return err
	}
	return zw.Close()
}
