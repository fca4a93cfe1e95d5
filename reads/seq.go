// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package reads

import (
	"github.com/grailbio/base/simd"
	"github.com/grailbio/sv/biosimd"
)

// RevComp returns the reverse complement of seq. Bases other than ACGT become N.
func RevComp(seq []byte) []byte {
	out := make([]byte, len(seq))
	biosimd.ReverseComp8(out, seq)
	return out
}

// Reverse returns seq reversed.
func Reverse(seq []byte) []byte {
	out := make([]byte, len(seq))
	simd.Reverse8(out, seq)
	return out
}
