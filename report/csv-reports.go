// obprofiler: a tool for profiling barcoded oligo libraries in
// paired-end sequencing data.
// Copyright (c) 2022-2024 Oligoscience bv.

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

// Package report serializes the analysis results as CSV tables and
// bar charts. All files are written to a unique temporary name first
// and renamed into place, so an interrupted run never leaves a
// truncated artifact behind.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/oligoscience/obprofiler/correction"
	"github.com/oligoscience/obprofiler/summary"
)

// A ValidatedRow pairs a summary row with the contexts that survived
// validation for its barcode.
type ValidatedRow struct {
	summary.Row
	Validated []correction.ValidatedContext
}

// tempPath returns a unique sibling name for path that keeps its
// extension, so format-inferring writers still recognize it.
func tempPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "." + uuid.New().String() + ext
}

func writeFileAtomic(path string, write func(io.Writer) error) error {
	tmp := tempPath(path)
	file, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := write(file); err != nil {
		_ = file.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func writeCSV(path string, header []string, records [][]string) error {
	return writeFileAtomic(path, func(w io.Writer) error {
		out := csv.NewWriter(w)
		if err := out.Write(header); err != nil {
			return err
		}
		for _, record := range records {
			if err := out.Write(record); err != nil {
				return err
			}
		}
		out.Flush()
		return out.Error()
	})
}

// list-valued and map-valued cells are flattened with ; separators so
// the tables stay plain CSV
func joinList(values []string) string {
	return strings.Join(values, ";")
}

func formatContextCounts(contexts []string, counts map[string]int) string {
	parts := make([]string, 0, len(contexts))
	for _, context := range contexts {
		parts = append(parts, fmt.Sprintf("%v:%v", context, counts[context]))
	}
	return strings.Join(parts, ";")
}

func formatValidatedContexts(validated []correction.ValidatedContext) string {
	parts := make([]string, 0, len(validated))
	for _, v := range validated {
		parts = append(parts, fmt.Sprintf("%v:%v:%v", v.Context, v.Count, formatPercent(v.Percent)))
	}
	return strings.Join(parts, ";")
}

func formatPercent(percent float64) string {
	return strconv.FormatFloat(percent, 'f', 2, 64)
}

func summaryRecord(row *summary.Row) []string {
	return []string{
		row.Sample,
		row.Barcode,
		joinList(row.Contexts),
		formatContextCounts(row.Contexts, row.ContextCounts),
		strconv.Itoa(row.TotalCount),
		joinList(row.R1Sequences),
		joinList(row.R2Sequences),
	}
}

// WriteSummary writes the unfiltered barcode count summary, one
// record per (sample, barcode) row.
func WriteSummary(path string, rows []summary.Row) error {
	header := []string{"sample", "barcode", "contexts", "context_counts", "total_count", "R1_sequences", "R2_sequences"}
	records := make([][]string, 0, len(rows))
	for i := range rows {
		records = append(records, summaryRecord(&rows[i]))
	}
	if err := writeCSV(path, header, records); err != nil {
		return fmt.Errorf("%v, while writing barcode summary to %v", err, path)
	}
	return nil
}

// WriteValidatedSummary writes the validated barcode count summary:
// the rows whose barcodes kept at least one context after validation,
// with the surviving contexts in an additional column.
func WriteValidatedSummary(path string, rows []ValidatedRow) error {
	header := []string{"sample", "barcode", "contexts", "context_counts", "total_count", "R1_sequences", "R2_sequences", "validated_contexts"}
	records := make([][]string, 0, len(rows))
	for i := range rows {
		record := append(summaryRecord(&rows[i].Row), formatValidatedContexts(rows[i].Validated))
		records = append(records, record)
	}
	if err := writeCSV(path, header, records); err != nil {
		return fmt.Errorf("%v, while writing validated barcode summary to %v", err, path)
	}
	return nil
}

// WriteContextDistribution writes each context's percentage of all
// validated context counts, in the order of the shares argument.
func WriteContextDistribution(path string, shares []correction.ContextShare) error {
	header := []string{"context", "percent"}
	records := make([][]string, 0, len(shares))
	for _, share := range shares {
		records = append(records, []string{share.Context, formatPercent(share.Percent)})
	}
	if err := writeCSV(path, header, records); err != nil {
		return fmt.Errorf("%v, while writing context distribution to %v", err, path)
	}
	return nil
}

// WriteCorrectionSummary writes the per-sample correction statistics
// as a single-record table.
func WriteCorrectionSummary(path string, stat correction.Stat) error {
	header := []string{"sample", "total_barcodes", "correction_events", "no_correction_events", "correction_%", "no_correction_%"}
	record := []string{
		stat.Sample,
		strconv.Itoa(stat.TotalBarcodes),
		strconv.Itoa(stat.CorrectionEvents),
		strconv.Itoa(stat.NoCorrectionEvents),
		formatPercent(stat.CorrectionPercent),
		formatPercent(stat.NoCorrectionPercent),
	}
	if err := writeCSV(path, header, [][]string{record}); err != nil {
		return fmt.Errorf("%v, while writing correction summary to %v", err, path)
	}
	return nil
}
