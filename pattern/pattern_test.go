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
	"math/rand"
	"testing"
)

func mustCompile(t *testing.T, anchor1, anchor2, anchor3 string, barcodeLength, contextLength, mm1, mm2, mm3 int) *Spec {
	t.Helper()
	s, err := Compile(anchor1, anchor2, anchor3, barcodeLength, contextLength, mm1, mm2, mm3)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func matchEqual(m Match, fullSpan, barcode, context string) bool {
	return m.FullSpan == fullSpan && m.Barcode == barcode && m.Context == context
}

func randomSequence(r *rand.Rand, length int) string {
	bases := []byte("ACGT")
	seq := make([]byte, length)
	for i := range seq {
		seq[i] = bases[r.Intn(4)]
	}
	return string(seq)
}

func TestCompile(t *testing.T) {
	if _, err := Compile("AAA", "TTT", "GGG", 5, 3, 1, 1, 1); err != nil {
		t.Error("Compile 1 failed")
	}
	if _, err := Compile("", "TTT", "GGG", 5, 3, 1, 1, 1); !errors.Is(err, ErrConfiguration) {
		t.Error("Compile empty anchor failed")
	}
	if _, err := Compile("AAA", "TNT", "GGG", 5, 3, 1, 1, 1); !errors.Is(err, ErrConfiguration) {
		t.Error("Compile invalid anchor failed")
	}
	if _, err := Compile("AAA", "TTT", "ggg", 5, 3, 1, 1, 1); !errors.Is(err, ErrConfiguration) {
		t.Error("Compile lowercase anchor failed")
	}
	if _, err := Compile("AAA", "TTT", "GGG", 0, 3, 1, 1, 1); !errors.Is(err, ErrConfiguration) {
		t.Error("Compile zero barcode length failed")
	}
	if _, err := Compile("AAA", "TTT", "GGG", 5, 0, 1, 1, 1); !errors.Is(err, ErrConfiguration) {
		t.Error("Compile zero context length failed")
	}
	if _, err := Compile("AAA", "TTT", "GGG", 5, 3, 1, -1, 1); !errors.Is(err, ErrConfiguration) {
		t.Error("Compile negative mismatch budget failed")
	}
}

func TestMatch(t *testing.T) {
	s := mustCompile(t, "AAA", "TTT", "GGG", 5, 3, 1, 1, 1)
	m, ok := s.Match("AAGCCCGTATTACAGCG")
	if !ok || !matchEqual(m, "AAGCCCGTATTACAGCG", "CCCGT", "ACA") {
		t.Error("Match 1 failed")
	}
	// trimming and upper-casing happen before the scan
	m, ok = s.Match("  aagcccgtattacagcg\n")
	if !ok || !matchEqual(m, "AAGCCCGTATTACAGCG", "CCCGT", "ACA") {
		t.Error("Match 2 failed")
	}
	// exact segment concatenation always matches
	m, ok = s.Match("AAA" + "ACGTA" + "TTT" + "CGA" + "GGG")
	if !ok || !matchEqual(m, "AAAACGTATTTCGAGGG", "ACGTA", "CGA") {
		t.Error("Match 3 failed")
	}
	if _, ok = s.Match("AAGCCCGTATTACAGC"); ok {
		t.Error("Match short sequence failed")
	}
	if _, ok = s.Match(""); ok {
		t.Error("Match empty sequence failed")
	}
	// N is tolerated in anchors within the budget but never in the
	// barcode or context segments
	if _, ok = s.Match("AAN" + "ACGTA" + "TTT" + "CGA" + "GGG"); !ok {
		t.Error("Match N in anchor failed")
	}
	if _, ok = s.Match("AAA" + "ACGNA" + "TTT" + "CGA" + "GGG"); ok {
		t.Error("Match N in barcode failed")
	}
	if _, ok = s.Match("AAA" + "ACGTA" + "TTT" + "CNA" + "GGG"); ok {
		t.Error("Match N in context failed")
	}
	// one substitution per anchor is within budget, two are not
	if _, ok = s.Match("ACA" + "ACGTA" + "TCT" + "CGA" + "GCG"); !ok {
		t.Error("Match budget 1 failed")
	}
	if _, ok = s.Match("ACC" + "ACGTA" + "TTT" + "CGA" + "GGG"); ok {
		t.Error("Match budget 2 failed")
	}
	z := mustCompile(t, "AAA", "TTT", "GGG", 5, 3, 0, 0, 0)
	if _, ok = z.Match("AAGCCCGTATTACAGCG"); ok {
		t.Error("Match zero budget failed")
	}
	if m, ok = z.Match("AAAACGTATTTCGAGGG"); !ok || !matchEqual(m, "AAAACGTATTTCGAGGG", "ACGTA", "CGA") {
		t.Error("Match zero budget exact failed")
	}
	// surrounding bases do not disturb the match
	m, ok = z.Match("TTGC" + "AAAACGTATTTCGAGGG" + "CATG")
	if !ok || !matchEqual(m, "AAAACGTATTTCGAGGG", "ACGTA", "CGA") {
		t.Error("Match surrounded failed")
	}
}

func TestMatchLeftmost(t *testing.T) {
	s := mustCompile(t, "AA", "TT", "GG", 2, 2, 0, 0, 0)
	// two qualifying windows; the leftmost must win
	m, ok := s.Match("AACGTTACGG" + "C" + "AATGTTCAGG")
	if !ok || !matchEqual(m, "AACGTTACGG", "CG", "AC") {
		t.Error("Match leftmost 1 failed")
	}
	// the first window is spoiled, the second must be found
	m, ok = s.Match("AACGTTANGG" + "C" + "AATGTTCAGG")
	if !ok || !matchEqual(m, "AATGTTCAGG", "TG", "CA") {
		t.Error("Match leftmost 2 failed")
	}
}

func TestReverseComplement(t *testing.T) {
	rc, err := ReverseComplement("AAGCT")
	if err != nil || rc != "AGCTT" {
		t.Error("ReverseComplement 1 failed")
	}
	rc, err = ReverseComplement("acgt")
	if err != nil || rc != "ACGT" {
		t.Error("ReverseComplement 2 failed")
	}
	rc, err = ReverseComplement(" CCTGA\n")
	if err != nil || rc != "TCAGG" {
		t.Error("ReverseComplement 3 failed")
	}
	if _, err = ReverseComplement(""); !errors.Is(err, ErrSequence) {
		t.Error("ReverseComplement empty failed")
	}
	if _, err = ReverseComplement("   "); !errors.Is(err, ErrSequence) {
		t.Error("ReverseComplement blank failed")
	}
	if _, err = ReverseComplement("ACGTN"); !errors.Is(err, ErrSequence) {
		t.Error("ReverseComplement invalid character failed")
	}
}

func TestReverseComplementInvolution(t *testing.T) {
	r := rand.New(rand.NewSource(38))
	for i := 0; i < 100; i++ {
		seq := randomSequence(r, 20+r.Intn(100))
		rc, err := ReverseComplement(seq)
		if err != nil {
			t.Fatal(err)
		}
		back, err := ReverseComplement(rc)
		if err != nil {
			t.Fatal(err)
		}
		if back != seq {
			t.Error("ReverseComplement involution failed")
		}
	}
}

func TestMatchReverseComplement(t *testing.T) {
	s := mustCompile(t, "CGTAC", "TTCGA", "GGACATT", 9, 3, 2, 1, 2)
	m, ok := s.Match("CGTACGCATCTAAATTCGACCAGGACATT")
	if !ok || m.Barcode != "GCATCTAAA" || m.Context != "CCA" {
		t.Error("MatchReverseComplement forward failed")
	}
	// the reverse read carries the same fragment on the other strand
	m, ok, err := s.MatchReverseComplement("AATGTCCTGGTCGAATTTAGATGCGTACG")
	if err != nil || !ok || m.Barcode != "GCATCTAAA" || m.Context != "CCA" {
		t.Error("MatchReverseComplement reverse failed")
	}
	if _, _, err = s.MatchReverseComplement(""); !errors.Is(err, ErrSequence) {
		t.Error("MatchReverseComplement empty failed")
	}
	if _, _, err = s.MatchReverseComplement("AATGNCCTGG"); !errors.Is(err, ErrSequence) {
		t.Error("MatchReverseComplement invalid character failed")
	}
	if _, ok, err = s.MatchReverseComplement("ACGTACGTACGTACGTACGTACGTACGTA"); err != nil || ok {
		t.Error("MatchReverseComplement no match failed")
	}
}

func BenchmarkMatch(b *testing.B) {
	s, err := Compile("CGTAC", "TTCGA", "GGACATT", 9, 3, 2, 1, 2)
	if err != nil {
		b.Fatal(err)
	}
	r := rand.New(rand.NewSource(38))
	reads := make([]string, 1000)
	for i := range reads {
		prefix := randomSequence(r, r.Intn(40))
		suffix := randomSequence(r, r.Intn(40))
		reads[i] = prefix + "CGTAC" + randomSequence(r, 9) + "TTCGA" + randomSequence(r, 3) + "GGACATT" + suffix
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, read := range reads {
			if _, ok := s.Match(read); !ok {
				b.Fatal("benchmark read does not match")
			}
		}
	}
}
