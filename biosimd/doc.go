// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package biosimd holds table-driven routines on ASCII nucleotide sequences
// (one base per byte), used on read and reference bases before they are
// indexed or aligned.
//
// See base/simd/doc.go for the conventions shared with base/simd.
package biosimd
