// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package biosimd

var (
	cleanASCIISeqTable [256]byte
	isNotACGTNTable    [256]bool
)

func init() {
	for i := range cleanASCIISeqTable {
		cleanASCIISeqTable[i] = 'N'
		isNotACGTNTable[i] = true
	}
	for _, b := range []byte("ACGT") {
		cleanASCIISeqTable[b] = b
		cleanASCIISeqTable[b+'a'-'A'] = b
	}
	for _, b := range []byte("ACGTN") {
		isNotACGTNTable[b] = false
	}
}

// CleanASCIISeqInplace capitalizes 'a'/'c'/'g'/'t', and replaces everything
// non-ACGT with 'N'.
func CleanASCIISeqInplace(ascii8 []byte) {
	for pos, ascii8Byte := range ascii8 {
		ascii8[pos] = cleanASCIISeqTable[ascii8Byte]
	}
}

// IsNonACGTNPresent returns true iff there is a byte other than capital
// 'A'/'C'/'G'/'T'/'N' in the slice.
func IsNonACGTNPresent(ascii8 []byte) bool {
	for _, ascii8Byte := range ascii8 {
		if isNotACGTNTable[ascii8Byte] {
			return true
		}
	}
	return false
}
