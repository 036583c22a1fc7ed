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

package report

import (
	"fmt"
	"log"
	"math"
	"os"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/oligoscience/obprofiler/correction"
	"github.com/oligoscience/obprofiler/summary"
)

// countBinLabels and countBinDividers define the count bins of the
// barcode count distribution chart: 1, 2, and widening right-closed
// ranges up to >1001.
var (
	countBinLabels   = []string{"1", "2", "3-10", "11-21", "22-51", "52-101", "102-501", "502-1001", ">1001"}
	countBinDividers = []float64{0.5, 1.5, 2.5, 10.5, 21.5, 51.5, 101.5, 501.5, 1001.5, math.Inf(1)}
)

// BinTotals counts how many of the given barcode totals fall into
// each count bin. All totals must be positive.
func BinTotals(totals []int) []float64 {
	x := make([]float64, len(totals))
	for i, total := range totals {
		x[i] = float64(total)
	}
	sort.Float64s(x)
	return stat.Histogram(make([]float64, len(countBinLabels)), countBinDividers, x, nil)
}

func savePlot(p *plot.Plot, width, height vg.Length, path string) error {
	tmp := tempPath(path)
	if err := p.Save(width, height, tmp); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// WriteCountDistributionPlot renders the number of barcodes per count
// bin as a bar chart, logging the bin counts along the way.
func WriteCountDistributionPlot(path string, rows []summary.Row) error {
	totals := make([]int, len(rows))
	for i := range rows {
		totals[i] = rows[i].TotalCount
	}
	bins := BinTotals(totals)
	log.Println("Barcode count per bin:")
	for i, label := range countBinLabels {
		log.Printf("%v: %v", label, int(bins[i]))
	}
	p, err := plot.New()
	if err != nil {
		return err
	}
	p.Title.Text = "Barcode Count Distribution"
	p.X.Label.Text = "Read Count Bin"
	p.Y.Label.Text = "Number of Barcodes"
	bars, err := plotter.NewBarChart(plotter.Values(bins), vg.Points(30))
	if err != nil {
		return err
	}
	bars.LineStyle.Width = vg.Length(0)
	bars.Color = plotutil.Color(0)
	p.Add(bars)
	p.NominalX(countBinLabels...)
	if err := savePlot(p, 10*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("%v, while writing barcode count distribution plot to %v", err, path)
	}
	return nil
}

// WriteCorrectionPlot renders the corrected versus not corrected
// barcode percentages as a bar chart with a fixed 0 to 100 scale.
func WriteCorrectionPlot(path string, result correction.Stat, referenceContext, correctedContext string) error {
	p, err := plot.New()
	if err != nil {
		return err
	}
	p.Title.Text = "Context Correction Summary"
	p.X.Label.Text = "Correction Category"
	p.Y.Label.Text = "Percentage of Barcodes"
	p.Y.Min = 0
	p.Y.Max = 100
	bars, err := plotter.NewBarChart(plotter.Values{result.CorrectionPercent, result.NoCorrectionPercent}, vg.Points(60))
	if err != nil {
		return err
	}
	bars.LineStyle.Width = vg.Length(0)
	bars.Color = plotutil.Color(2)
	p.Add(bars)
	p.NominalX("Corrected ("+correctedContext+")", "Not Corrected ("+referenceContext+")")
	if err := savePlot(p, 8*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("%v, while writing correction summary plot to %v", err, path)
	}
	return nil
}
