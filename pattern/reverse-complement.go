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

package pattern

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSequence is the sentinel error wrapped by all errors that report
// a sequence that cannot be reverse complemented.
var ErrSequence = errors.New("invalid sequence")

// complements maps every valid base to its complement. A zero entry
// means the byte has no complement.
var complements [256]byte

func init() {
	complements['A'] = 'T'
	complements['T'] = 'A'
	complements['C'] = 'G'
	complements['G'] = 'C'
}

// ReverseComplement returns the reverse complement of a DNA sequence:
// A and T swapped, C and G swapped, order reversed. The sequence is
// trimmed and upper-cased first. It fails when the sequence is empty
// or contains a character other than A, C, G, or T.
// ReverseComplement is an involution on valid input.
func ReverseComplement(sequence string) (string, error) {
	seq := strings.ToUpper(strings.TrimSpace(sequence))
	if seq == "" {
		return "", fmt.Errorf("%w: the sequence cannot be empty", ErrSequence)
	}
	rc := make([]byte, len(seq))
	for i := 0; i < len(seq); i++ {
		c := complements[seq[i]]
		if c == 0 {
			return "", fmt.Errorf("%w: character %q at position %v has no complement", ErrSequence, seq[i], i)
		}
		rc[len(seq)-1-i] = c
	}
	return string(rc), nil
}

// MatchReverseComplement reverse complements the given sequence and
// matches the compiled pattern against the result. Unlike Match, an
// empty sequence or a sequence containing non-ACGT characters is an
// error, not a no-match.
func (s *Spec) MatchReverseComplement(sequence string) (Match, bool, error) {
	rc, err := ReverseComplement(sequence)
	if err != nil {
		return Match{}, false, err
	}
	m, ok := s.Match(rc)
	return m, ok, nil
}
