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

// Package correction filters the context counts of each barcode down
// to the high-confidence subset and classifies barcodes as correction
// or no-correction events against a reference/corrected context pair.
package correction

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// ErrConfiguration is a sentinel error wrapped by all errors that
// report invalid validation or classification parameters.
var ErrConfiguration = errors.New("invalid correction configuration")

// A ValidatedContext is a context that cleared the minimum-percentage
// noise filter for one barcode. Percent is computed against the sum
// of the retained counts, not the barcode's original total, and is
// rounded to two decimals.
type ValidatedContext struct {
	Context string
	Count   int
	Percent float64
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}

// Validate applies the two-pass percentage filter to the context
// counts of one barcode. The first pass retains the contexts whose
// share of the original total is at least minPercent; the second pass
// recomputes every retained context's percentage against the retained
// sum. contextOrder supplies the first-seen order of the counts, which
// the result preserves. An empty input, a zero total, and a filter
// that nothing survives all yield an empty result.
func Validate(contextCounts map[string]int, contextOrder []string, minPercent float64) ([]ValidatedContext, error) {
	if minPercent < 0 || minPercent > 100 {
		return nil, fmt.Errorf("%w: minimum percentage must be between 0 and 100, got %v", ErrConfiguration, minPercent)
	}
	if len(contextCounts) == 0 {
		return nil, nil
	}
	total := 0
	for _, count := range contextCounts {
		total += count
	}
	if total <= 0 {
		return nil, nil
	}
	var retained []ValidatedContext
	retainedTotal := 0
	for _, context := range contextOrder {
		count := contextCounts[context]
		if percent := float64(count) / float64(total) * 100; percent >= minPercent {
			retained = append(retained, ValidatedContext{Context: context, Count: count})
			retainedTotal += count
		}
	}
	if retainedTotal == 0 {
		return nil, nil
	}
	for i := range retained {
		retained[i].Percent = round2(float64(retained[i].Count) / float64(retainedTotal) * 100)
	}
	return retained, nil
}

// A Stat summarizes the correction calls of one sample. Percentages
// are computed over the barcodes that contribute to either event
// class; barcodes classified as neither are excluded from the
// denominator.
type Stat struct {
	Sample              string
	TotalBarcodes       int
	CorrectionEvents    int
	NoCorrectionEvents  int
	CorrectionPercent   float64
	NoCorrectionPercent float64
}

// Classify calls each barcode's validated contexts as a correction or
// no-correction event. A barcode with a single surviving context is a
// no-correction event when that context equals referenceContext, a
// correction event when it equals correctedContext, and contributes to
// neither otherwise. A barcode with several surviving contexts is a
// no-correction event when any of them, scanned in order, equals
// referenceContext with a percentage of at least threshold; otherwise
// it falls back to a correction event, so an ambiguous barcode is
// never left undetermined.
func Classify(sample string, perBarcode [][]ValidatedContext, referenceContext, correctedContext string, threshold float64) (Stat, error) {
	if referenceContext == "" || correctedContext == "" {
		return Stat{}, fmt.Errorf("%w: the reference and corrected contexts must be non-empty strings", ErrConfiguration)
	}
	if threshold < 0 || threshold > 100 {
		return Stat{}, fmt.Errorf("%w: threshold must be between 0 and 100, got %v", ErrConfiguration, threshold)
	}
	correction, noCorrection := 0, 0
	for _, contexts := range perBarcode {
		switch {
		case len(contexts) == 1:
			switch contexts[0].Context {
			case referenceContext:
				noCorrection++
			case correctedContext:
				correction++
			}
		case len(contexts) > 1:
			dominant := false
			for _, context := range contexts {
				if context.Context == referenceContext && context.Percent >= threshold {
					dominant = true
					break
				}
			}
			if dominant {
				noCorrection++
			} else {
				correction++
			}
		}
	}
	total := correction + noCorrection
	stat := Stat{
		Sample:             sample,
		TotalBarcodes:      total,
		CorrectionEvents:   correction,
		NoCorrectionEvents: noCorrection,
	}
	if total > 0 {
		stat.CorrectionPercent = round2(float64(correction) / float64(total) * 100)
		stat.NoCorrectionPercent = round2(float64(noCorrection) / float64(total) * 100)
	}
	return stat, nil
}

// A ContextShare is one context's share of all validated context
// counts across the barcodes of a sample.
type ContextShare struct {
	Context string
	Count   int
	Percent float64
}

// Distribution sums the validated context counts across all barcodes
// and returns each context's share of the grand total, in descending
// order of count with ties in first-seen order. Percentages are
// rounded to two decimals.
func Distribution(perBarcode [][]ValidatedContext) []ContextShare {
	counts := make(map[string]int)
	var order []string
	for _, contexts := range perBarcode {
		for _, context := range contexts {
			if _, seen := counts[context.Context]; !seen {
				order = append(order, context.Context)
			}
			counts[context.Context] += context.Count
		}
	}
	if len(order) == 0 {
		return nil
	}
	shares := make([]ContextShare, 0, len(order))
	countVector := make([]float64, 0, len(order))
	for _, context := range order {
		shares = append(shares, ContextShare{Context: context, Count: counts[context]})
		countVector = append(countVector, float64(counts[context]))
	}
	sort.SliceStable(shares, func(i, j int) bool {
		return shares[i].Count > shares[j].Count
	})
	total := floats.Sum(countVector)
	for i := range shares {
		shares[i].Percent = round2(float64(shares[i].Count) / total * 100)
	}
	return shares
}
