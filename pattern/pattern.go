// obprofiler: a tool for profiling barcoded oligo libraries in
// paired-end sequencing data.
// Copyright (c) 2021-2023 Oligoscience bv.

// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version, and Additional Terms
// (see below).

// This program is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.

// You should have received a copy of the GNU Affero General Public
// License and Additional Terms along with this program. If not, see
// <https://github.com/oligoscience/obprofiler/blob/master/LICENSE.txt>.

// Package pattern implements compilation and approximate matching of
// the five-segment read structure
// [anchor1][barcode][anchor2][context][anchor3].
package pattern

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bits-and-blooms/bitset"
)

// ErrConfiguration is the sentinel error wrapped by all errors that
// report invalid pattern parameters.
var ErrConfiguration = errors.New("invalid pattern configuration")

// validBases marks the byte values that may occur in barcode and
// context segments. Anchor positions are compared against the anchor
// itself within its mismatch budget, so they are not checked against
// this set.
var validBases bitset.BitSet

func init() {
	for _, c := range []byte("ACGT") {
		validBases.Set(uint(c))
	}
}

// A Spec is the compiled form of the five-segment read structure:
// three fixed anchor sequences, each with an independent substitution
// budget, separated by a fixed-length barcode segment and a
// fixed-length context segment. Because only substitutions are
// tolerated, every candidate window in a read has the same length.
// Specs are immutable after compilation and can be shared freely
// between goroutines.
type Spec struct {
	anchor1, anchor2, anchor3 string
	barcodeLength             int
	contextLength             int
	mm1, mm2, mm3             int

	// segment offsets within a candidate window
	barcodeStart, anchor2Start, contextStart, anchor3Start int

	// window is the total length of the five segments
	window int
}

// A Match holds the segments extracted from one read: the full
// matched window plus the barcode and context segments within it.
type Match struct {
	FullSpan string
	Barcode  string
	Context  string
}

func checkAnchor(name, anchor string) error {
	if anchor == "" {
		return fmt.Errorf("%w: %v must be a non-empty string", ErrConfiguration, name)
	}
	for i := 0; i < len(anchor); i++ {
		if !validBases.Test(uint(anchor[i])) {
			return fmt.Errorf("%w: %v contains invalid characters, only A, C, G, T allowed", ErrConfiguration, name)
		}
	}
	return nil
}

// Compile validates the pattern parameters and precomputes the
// segment offsets used during matching. The anchors must be
// non-empty sequences over A, C, G, T, the barcode and context
// lengths must be positive, and the mismatch budgets must be
// non-negative.
func Compile(anchor1, anchor2, anchor3 string, barcodeLength, contextLength, mm1, mm2, mm3 int) (*Spec, error) {
	if err := checkAnchor("anchor1", anchor1); err != nil {
		return nil, err
	}
	if err := checkAnchor("anchor2", anchor2); err != nil {
		return nil, err
	}
	if err := checkAnchor("anchor3", anchor3); err != nil {
		return nil, err
	}
	if barcodeLength < 1 {
		return nil, fmt.Errorf("%w: barcode length must be a positive integer, got %v", ErrConfiguration, barcodeLength)
	}
	if contextLength < 1 {
		return nil, fmt.Errorf("%w: context length must be a positive integer, got %v", ErrConfiguration, contextLength)
	}
	if mm1 < 0 || mm2 < 0 || mm3 < 0 {
		return nil, fmt.Errorf("%w: mismatch budgets must be non-negative integers, got %v, %v, %v", ErrConfiguration, mm1, mm2, mm3)
	}
	s := &Spec{
		anchor1:       anchor1,
		anchor2:       anchor2,
		anchor3:       anchor3,
		barcodeLength: barcodeLength,
		contextLength: contextLength,
		mm1:           mm1,
		mm2:           mm2,
		mm3:           mm3,
	}
	s.barcodeStart = len(anchor1)
	s.anchor2Start = s.barcodeStart + barcodeLength
	s.contextStart = s.anchor2Start + len(anchor2)
	s.anchor3Start = s.contextStart + contextLength
	s.window = s.anchor3Start + len(anchor3)
	return s, nil
}

// String renders the segment layout of the compiled pattern.
func (s *Spec) String() string {
	return fmt.Sprintf("[%v][barcode:%v][%v][context:%v][%v]",
		s.anchor1, s.barcodeLength, s.anchor2, s.contextLength, s.anchor3)
}

// anchorAt determines whether the anchor occurs at the given position
// with at most maxMismatches substitutions.
func anchorAt(seq, anchor string, pos, maxMismatches int) bool {
	mismatches := 0
	for i := 0; i < len(anchor); i++ {
		if seq[pos+i] != anchor[i] {
			if mismatches++; mismatches > maxMismatches {
				return false
			}
		}
	}
	return true
}

// basesAt determines whether length bytes at the given position are
// all A, C, G, or T.
func basesAt(seq string, pos, length int) bool {
	for i := pos; i < pos+length; i++ {
		if !validBases.Test(uint(seq[i])) {
			return false
		}
	}
	return true
}

// Match scans the given sequence left to right for the first window
// that fits all five segments: anchor1 within its mismatch budget,
// immediately followed by exactly barcodeLength bases, anchor2 within
// its budget, exactly contextLength bases, and anchor3 within its
// budget. The segments are contiguous and only substitutions are
// tolerated in the anchors. The sequence is trimmed and upper-cased
// before the scan. The second return value is false when no window
// qualifies; that is the normal no-match outcome, not an error.
func (s *Spec) Match(sequence string) (Match, bool) {
	seq := strings.ToUpper(strings.TrimSpace(sequence))
	for start := 0; start+s.window <= len(seq); start++ {
		if anchorAt(seq, s.anchor1, start, s.mm1) &&
			basesAt(seq, start+s.barcodeStart, s.barcodeLength) &&
			anchorAt(seq, s.anchor2, start+s.anchor2Start, s.mm2) &&
			basesAt(seq, start+s.contextStart, s.contextLength) &&
			anchorAt(seq, s.anchor3, start+s.anchor3Start, s.mm3) {
			return Match{
				FullSpan: seq[start : start+s.window],
				Barcode:  seq[start+s.barcodeStart : start+s.anchor2Start],
				Context:  seq[start+s.contextStart : start+s.anchor3Start],
			}, true
		}
	}
	return Match{}, false
}
