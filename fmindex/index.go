// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package fmindex

import (
	"github.com/grailbio/base/errors"
	"v.io/x/lib/vlog"
)

// Index holds the forward transform of a table and the transform of the same
// table with every sequence reversed. Both are immutable once built.
type Index struct {
	Table *Table
	Fwd   *BWT
	Rev   *BWT
}

// Build indexes t. The table is reversed in place while the reverse transform
// is built and restored before Build returns.
func Build(t *Table) (*Index, error) {
	if t.Len() == 0 {
		return nil, errors.E(errors.Invalid, "fmindex.Build: no sequences")
	}
	fwd, err := NewBWT(t)
	if err != nil {
		return nil, err
	}
	t.ReverseAll()
	rev, err := NewBWT(t)
	t.ReverseAll()
	if err != nil {
		return nil, err
	}
	vlog.VI(3).Infof("fmindex: %d sequences, %d rows", t.Len(), fwd.Len())
	return &Index{Table: t, Fwd: fwd, Rev: rev}, nil
}
