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

package summary

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/oligoscience/obprofiler/fastq"
)

func pair(id, barcode, context, spanR1, spanR2 string) fastq.ValidatedPair {
	return fastq.ValidatedPair{ID: id, SpanR1: spanR1, SpanR2: spanR2, Barcode: barcode, Context: context}
}

func stringsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestBuild(t *testing.T) {
	reads := map[string][]fastq.ValidatedPair{
		"S2": {
			pair("@r1", "AAACCCGGG", "CTA", "span1", "span2"),
		},
		"S1": {
			pair("@r2", "TTTCCCGGG", "CTA", "span3", "span4"),
			pair("@r3", "AAACCCGGG", "CCA", "span5", "span6"),
			pair("@r4", "TTTCCCGGG", "CTA", "span3", "span7"),
			pair("@r5", "TTTCCCGGG", "CGA", "span8", "span4"),
		},
	}
	rows, err := Build(reads)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatal("Build row count failed")
	}
	row := rows[0]
	if row.Sample != "S1" || row.Barcode != "AAACCCGGG" || row.TotalCount != 1 {
		t.Error("Build 1 failed")
	}
	if !stringsEqual(row.Contexts, []string{"CCA"}) || row.ContextCounts["CCA"] != 1 {
		t.Error("Build 2 failed")
	}
	row = rows[1]
	if row.Sample != "S1" || row.Barcode != "TTTCCCGGG" || row.TotalCount != 3 {
		t.Error("Build 3 failed")
	}
	if !stringsEqual(row.Contexts, []string{"CTA", "CGA"}) {
		t.Error("Build context order failed")
	}
	if len(row.ContextCounts) != 2 || row.ContextCounts["CTA"] != 2 || row.ContextCounts["CGA"] != 1 {
		t.Error("Build context counts failed")
	}
	if !stringsEqual(row.R1Sequences, []string{"span3", "span8"}) {
		t.Error("Build R1 sequences failed")
	}
	if !stringsEqual(row.R2Sequences, []string{"span4", "span7"}) {
		t.Error("Build R2 sequences failed")
	}
	row = rows[2]
	if row.Sample != "S2" || row.Barcode != "AAACCCGGG" || row.TotalCount != 1 {
		t.Error("Build 4 failed")
	}
}

func TestBuildEmpty(t *testing.T) {
	if _, err := Build(nil); !errors.Is(err, ErrNoReads) {
		t.Error("Build nil failed")
	}
	if _, err := Build(map[string][]fastq.ValidatedPair{}); !errors.Is(err, ErrNoReads) {
		t.Error("Build empty failed")
	}
	// a known sample without validated reads is not an error, the
	// caller decides what an empty table means
	rows, err := Build(map[string][]fastq.ValidatedPair{"S1": nil})
	if err != nil || len(rows) != 0 {
		t.Error("Build zero reads failed")
	}
}

func TestBuildCountAdditivity(t *testing.T) {
	base := []fastq.ValidatedPair{
		pair("@r1", "AAACCCGGG", "CTA", "span1", "span2"),
		pair("@r2", "AAACCCGGG", "CCA", "span3", "span4"),
		pair("@r3", "TTTCCCGGG", "CTA", "span5", "span6"),
	}
	single, err := Build(map[string][]fastq.ValidatedPair{"S1": base})
	if err != nil {
		t.Fatal(err)
	}
	doubled, err := Build(map[string][]fastq.ValidatedPair{"S1": append(append([]fastq.ValidatedPair{}, base...), base...)})
	if err != nil {
		t.Fatal(err)
	}
	if len(single) != len(doubled) {
		t.Fatal("count additivity row count failed")
	}
	for i := range single {
		if doubled[i].Barcode != single[i].Barcode {
			t.Error("count additivity order failed")
		}
		if doubled[i].TotalCount != 2*single[i].TotalCount {
			t.Error("count additivity total failed")
		}
		for context, count := range single[i].ContextCounts {
			if doubled[i].ContextCounts[context] != 2*count {
				t.Error("count additivity context failed")
			}
		}
		// duplicated pairs contribute no new distinct spans
		if !stringsEqual(doubled[i].R1Sequences, single[i].R1Sequences) ||
			!stringsEqual(doubled[i].R2Sequences, single[i].R2Sequences) {
			t.Error("count additivity spans failed")
		}
	}
}

func TestParallelSortRows(t *testing.T) {
	r := rand.New(rand.NewSource(17))
	var rows []Row
	for _, i := range r.Perm(1000) {
		rows = append(rows, Row{
			Sample:  fmt.Sprintf("S%v", i%7),
			Barcode: fmt.Sprintf("BC%04d", i),
		})
	}
	sequential := append([]Row{}, rows...)
	SortRows(sequential)
	ParallelSortRows(rows)
	for i := range rows {
		if rows[i].Sample != sequential[i].Sample || rows[i].Barcode != sequential[i].Barcode {
			t.Fatal("ParallelSortRows disagrees at", i)
		}
	}
}
