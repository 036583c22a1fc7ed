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

// Package summary aggregates validated read pairs into one row per
// sample and barcode, counting context occurrences and collecting the
// distinct matched spans that support each barcode.
package summary

import (
	"errors"
	"fmt"
	"sort"

	"github.com/exascience/pargo/parallel"
	psort "github.com/exascience/pargo/sort"

	"github.com/oligoscience/obprofiler/fastq"
)

// ErrNoReads is a sentinel error wrapped by all errors that report an
// aggregation without any input reads.
var ErrNoReads = errors.New("no validated reads")

// A Row summarizes all validated read pairs for one barcode in one
// sample. Contexts holds the context sequences in first-seen order;
// ContextCounts maps each of them to its occurrence count, and
// TotalCount is the sum of those counts. R1Sequences and R2Sequences
// hold the distinct matched spans of the forward and reverse strands,
// in first-seen order, as provenance for the counts.
type Row struct {
	Sample        string
	Barcode       string
	Contexts      []string
	ContextCounts map[string]int
	TotalCount    int
	R1Sequences   []string
	R2Sequences   []string
}

// a rowBuilder accumulates one Row, with seen sets guarding the
// first-seen-ordered slices against duplicates
type rowBuilder struct {
	row    Row
	seenR1 map[string]bool
	seenR2 map[string]bool
}

func buildSampleRows(sample string, pairs []fastq.ValidatedPair) []Row {
	builders := make(map[string]*rowBuilder)
	var order []string
	for _, pair := range pairs {
		builder := builders[pair.Barcode]
		if builder == nil {
			builder = &rowBuilder{
				row: Row{
					Sample:        sample,
					Barcode:       pair.Barcode,
					ContextCounts: make(map[string]int),
				},
				seenR1: make(map[string]bool),
				seenR2: make(map[string]bool),
			}
			builders[pair.Barcode] = builder
			order = append(order, pair.Barcode)
		}
		if builder.row.ContextCounts[pair.Context] == 0 {
			builder.row.Contexts = append(builder.row.Contexts, pair.Context)
		}
		builder.row.ContextCounts[pair.Context]++
		builder.row.TotalCount++
		if !builder.seenR1[pair.SpanR1] {
			builder.seenR1[pair.SpanR1] = true
			builder.row.R1Sequences = append(builder.row.R1Sequences, pair.SpanR1)
		}
		if !builder.seenR2[pair.SpanR2] {
			builder.seenR2[pair.SpanR2] = true
			builder.row.R2Sequences = append(builder.row.R2Sequences, pair.SpanR2)
		}
	}
	rows := make([]Row, 0, len(order))
	for _, barcode := range order {
		rows = append(rows, builders[barcode].row)
	}
	return rows
}

// Build aggregates the validated pairs of every sample into Row
// values, one per distinct (sample, barcode). Samples are folded
// independently and in parallel; the result is sorted by sample and
// barcode so repeated runs produce identical output. An empty mapping
// is an error: it means the pattern matched nothing at all.
func Build(reads map[string][]fastq.ValidatedPair) ([]Row, error) {
	if len(reads) == 0 {
		return nil, fmt.Errorf("%w: no reads were found, check the anchor sequences, barcode length and context length parameters", ErrNoReads)
	}
	samples := make([]string, 0, len(reads))
	for sample := range reads {
		samples = append(samples, sample)
	}
	sort.Strings(samples)
	perSample := make([][]Row, len(samples))
	parallel.Range(0, len(samples), 0, func(low, high int) {
		for i := low; i < high; i++ {
			perSample[i] = buildSampleRows(samples[i], reads[samples[i]])
		}
	})
	var rows []Row
	for _, sampleRows := range perSample {
		rows = append(rows, sampleRows...)
	}
	ParallelSortRows(rows)
	return rows, nil
}

func rowLess(a, b *Row) bool {
	if a.Sample != b.Sample {
		return a.Sample < b.Sample
	}
	return a.Barcode < b.Barcode
}

// SortRows sorts rows by sample and barcode.
func SortRows(rows []Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		return rowLess(&rows[i], &rows[j])
	})
}

type stableRowSorter []Row

func (s stableRowSorter) SequentialSort(i, j int) {
	SortRows(s[i:j])
}

func (s stableRowSorter) NewTemp() psort.StableSorter {
	return stableRowSorter(make([]Row, len(s)))
}

func (s stableRowSorter) Len() int {
	return len(s)
}

func (s stableRowSorter) Less(i, j int) bool {
	return rowLess(&s[i], &s[j])
}

func (s stableRowSorter) Assign(source psort.StableSorter) func(i, j, len int) {
	dst, src := s, source.(stableRowSorter)
	return func(i, j, len int) {
		copy(dst[i:i+len], src[j:j+len])
	}
}

// ParallelSortRows sorts rows by sample and barcode using a parallel
// stable sort.
func ParallelSortRows(rows []Row) {
	psort.StableSort(stableRowSorter(rows))
}
