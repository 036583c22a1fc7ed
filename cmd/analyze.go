// obprofiler: a tool for profiling barcoded oligo libraries in
// paired-end sequencing data.
// Copyright (c) 2021-2024 Oligoscience bv.

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

package cmd

import (
	"bytes"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/oligoscience/obprofiler/correction"
	"github.com/oligoscience/obprofiler/fastq"
	"github.com/oligoscience/obprofiler/internal"
	"github.com/oligoscience/obprofiler/pattern"
	"github.com/oligoscience/obprofiler/report"
	"github.com/oligoscience/obprofiler/summary"
)

// AnalyzeHelp is the help string for this command.
const AnalyzeHelp = "\nanalyze parameters:\n" +
	"obprofiler analyze r1-file r2-file\n" +
	"--anchor1 sequence\n" +
	"--anchor2 sequence\n" +
	"--anchor3 sequence\n" +
	"--context sequence\n" +
	"--corrected-context sequence\n" +
	"[--min-pct percentage]\n" +
	"[--anch1-mm nr]\n" +
	"[--anch2-mm nr]\n" +
	"[--anch3-mm nr]\n" +
	"[--barcode-length nr]\n" +
	"[--context-length nr]\n" +
	"[--output-dir path]\n" +
	"[--nr-of-threads nr]\n" +
	"[--timed]\n" +
	"[--log-path path]\n" +
	"[--verbose]\n"

// AnalyzeExtendedHelp is the extended help string for this command.
const AnalyzeExtendedHelp = AnalyzeHelp +
	"[--profile file]\n"

// Analyze implements the obprofiler analyze command.
func Analyze() error {
	start := time.Now()

	var (
		minPct                    float64
		referenceContext          string
		correctedContext          string
		anchor1, anchor2, anchor3 string
		anch1MM, anch2MM, anch3MM int
		barcodeLength             int
		contextLength             int
		outputDir                 string
		nrOfThreads               int
		timed                     bool
		profile                   string
		logPath                   string
		verbose                   bool
	)

	var flags flag.FlagSet

	flags.Float64Var(&minPct, "min-pct", 40, "minimum percentage for context validation")
	flags.StringVar(&referenceContext, "context", "", "original context sequence (e.g. CTA)")
	flags.StringVar(&correctedContext, "corrected-context", "", "corrected version of the context (e.g. CCA)")
	flags.StringVar(&anchor1, "anchor1", "", "anchor before the barcode")
	flags.StringVar(&anchor2, "anchor2", "", "anchor between barcode and context")
	flags.StringVar(&anchor3, "anchor3", "", "anchor after the context")
	flags.IntVar(&anch1MM, "anch1-mm", 2, "mismatches allowed in anchor1")
	flags.IntVar(&anch2MM, "anch2-mm", 1, "mismatches allowed in anchor2")
	flags.IntVar(&anch3MM, "anch3-mm", 2, "mismatches allowed in anchor3")
	flags.IntVar(&barcodeLength, "barcode-length", 9, "length of the barcode")
	flags.IntVar(&contextLength, "context-length", 3, "length of the context")
	flags.StringVar(&outputDir, "output-dir", "output", "directory to store output files")
	flags.IntVar(&nrOfThreads, "nr-of-threads", 0, "number of worker threads")
	flags.BoolVar(&timed, "timed", false, "measure the runtime")
	flags.StringVar(&profile, "profile", "", "write a runtime profile to the specified file(s)")
	flags.StringVar(&logPath, "log-path", "", "write log files to the specified directory")
	flags.BoolVar(&verbose, "verbose", false, "print additional information about the run")

	parseFlags(flags, 4, AnalyzeHelp)

	r1 := getFilename(os.Args[2], AnalyzeHelp)
	r2 := getFilename(os.Args[3], AnalyzeHelp)

	setLogOutput(logPath)

	// The matcher upper-cases reads before scanning, but the pattern
	// parameters themselves must be handed over in upper case; only
	// stray whitespace is forgiven here.
	anchor1 = strings.TrimSpace(anchor1)
	anchor2 = strings.TrimSpace(anchor2)
	anchor3 = strings.TrimSpace(anchor3)
	referenceContext = strings.TrimSpace(referenceContext)
	correctedContext = strings.TrimSpace(correctedContext)

	// sanity checks

	var sanityChecksFailed bool

	if !checkExist("", r1) {
		sanityChecksFailed = true
	}
	if !checkExist("", r2) {
		sanityChecksFailed = true
	}
	if !fastq.ValidExtension(r1) || !fastq.ValidExtension(r2) {
		sanityChecksFailed = true
		log.Println("Error: Expected FASTQ files with a .fastq or .fq extension, optionally gzipped.")
	}

	if minPct < 0 || minPct > 100 {
		sanityChecksFailed = true
		log.Println("Error: Invalid min-pct, must be between 0 and 100: ", minPct)
	}

	if !checkDNA("--anchor1", anchor1) {
		sanityChecksFailed = true
	}
	if !checkDNA("--anchor2", anchor2) {
		sanityChecksFailed = true
	}
	if !checkDNA("--anchor3", anchor3) {
		sanityChecksFailed = true
	}
	if !checkDNA("--context", referenceContext) {
		sanityChecksFailed = true
	}
	if !checkDNA("--corrected-context", correctedContext) {
		sanityChecksFailed = true
	}

	if barcodeLength < 1 {
		sanityChecksFailed = true
		log.Println("Error: Invalid barcode-length, must be a positive integer: ", barcodeLength)
	}
	if contextLength < 1 {
		sanityChecksFailed = true
		log.Println("Error: Invalid context-length, must be a positive integer: ", contextLength)
	}
	if len(referenceContext) != contextLength {
		sanityChecksFailed = true
		log.Printf("Error: The sequence for --context must have the context-length %v, got %v.\n", contextLength, referenceContext)
	}
	if len(correctedContext) != contextLength {
		sanityChecksFailed = true
		log.Printf("Error: The sequence for --corrected-context must have the context-length %v, got %v.\n", contextLength, correctedContext)
	}

	if anch1MM < 0 || anch2MM < 0 || anch3MM < 0 {
		sanityChecksFailed = true
		log.Println("Error: Invalid mismatch budgets, must be non-negative integers: ", anch1MM, anch2MM, anch3MM)
	}

	if nrOfThreads < 0 {
		sanityChecksFailed = true
		log.Println("Error: Invalid nr-of-threads: ", nrOfThreads)
	}

	if profile != "" && !checkCreate("--profile", profile) {
		sanityChecksFailed = true
	}

	if sanityChecksFailed {
		fmt.Fprint(os.Stderr, AnalyzeHelp)
		os.Exit(1)
	}

	// building output command line

	var command bytes.Buffer
	fmt.Fprint(&command, os.Args[0], " analyze ", r1, " ", r2)
	fmt.Fprint(&command, " --anchor1 ", anchor1)
	fmt.Fprint(&command, " --anchor2 ", anchor2)
	fmt.Fprint(&command, " --anchor3 ", anchor3)
	fmt.Fprint(&command, " --context ", referenceContext)
	fmt.Fprint(&command, " --corrected-context ", correctedContext)
	fmt.Fprint(&command, " --min-pct ", minPct)
	fmt.Fprint(&command, " --anch1-mm ", anch1MM)
	fmt.Fprint(&command, " --anch2-mm ", anch2MM)
	fmt.Fprint(&command, " --anch3-mm ", anch3MM)
	fmt.Fprint(&command, " --barcode-length ", barcodeLength)
	fmt.Fprint(&command, " --context-length ", contextLength)
	fmt.Fprint(&command, " --output-dir ", outputDir)

	if nrOfThreads > 0 {
		runtime.GOMAXPROCS(nrOfThreads)
		fmt.Fprint(&command, " --nr-of-threads ", nrOfThreads)
	}

	if timed {
		fmt.Fprint(&command, " --timed")
	}

	if profile != "" {
		fmt.Fprint(&command, " --profile ", profile)
	}

	if logPath != "" {
		fmt.Fprint(&command, " --log-path ", logPath)
	}

	if verbose {
		fmt.Fprint(&command, " --verbose")
	}

	// executing command

	log.Println("Executing command:\n", command.String())

	spec, err := pattern.Compile(anchor1, anchor2, anchor3, barcodeLength, contextLength, anch1MM, anch2MM, anch3MM)
	if err != nil {
		return err
	}

	sample, err := fastq.SampleName(r1, r2)
	if err != nil {
		return err
	}

	if verbose {
		log.Println("Pattern searched: [anchor1][barcode][anchor2][context][anchor3]")
		log.Println("Compiled pattern:", spec)
		log.Println("Minimum context validation percentage:", minPct)
		log.Println("Context:", referenceContext, "Corrected context:", correctedContext)
		log.Println("Barcode length:", barcodeLength, "Context length:", contextLength)
		log.Println("Output directory:", outputDir)
	}

	internal.MkdirAll(outputDir, 0700)

	log.Println("Processing sample:", sample)

	var pairs []fastq.ValidatedPair
	var tally fastq.Tally
	phase := int64(1)
	err = timedRun(timed, profile, "Processing read pairs.", phase, func() (err error) {
		pairs, tally, err = fastq.ProcessPairs(spec, r1, r2)
		return err
	})
	if err != nil {
		return err
	}

	log.Println("Total paired reads processed:", tally.PairsSeen)
	if tally.PairsSeen > 0 {
		pct := math.Round(float64(tally.PairsAccepted)/float64(tally.PairsSeen)*100*100) / 100
		log.Printf("Validated matched pairs: %v (%v%%)\n", tally.PairsAccepted, pct)
	} else {
		log.Println("Validated matched pairs: 0")
	}

	var rows []summary.Row
	phase++
	err = timedRun(timed, profile, "Building barcode summary.", phase, func() (err error) {
		rows, err = summary.Build(map[string][]fastq.ValidatedPair{sample: pairs})
		return err
	})
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		log.Println("No validated reads were found. Exiting.")
		os.Exit(1)
	}

	phase++
	err = timedRun(timed, profile, "Writing barcode summary.", phase, func() error {
		if err := report.WriteSummary(filepath.Join(outputDir, sample+"_barcode_count_summary_unfiltered.csv"), rows); err != nil {
			return err
		}
		return report.WriteCountDistributionPlot(filepath.Join(outputDir, sample+"_barcode_count_distribution.png"), rows)
	})
	if err != nil {
		return err
	}

	if verbose {
		total := 0
		for i := range rows {
			total += rows[i].TotalCount
		}
		log.Println("Unique barcodes in "+sample+":", len(rows))
		log.Println("Total barcode counts:", total)
	}

	var validated []report.ValidatedRow
	phase++
	err = timedRun(timed, profile, "Validating contexts.", phase, func() error {
		for i := range rows {
			contexts, err := correction.Validate(rows[i].ContextCounts, rows[i].Contexts, minPct)
			if err != nil {
				return err
			}
			if len(contexts) > 0 {
				validated = append(validated, report.ValidatedRow{Row: rows[i], Validated: contexts})
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if len(validated) == 0 {
		log.Println("No validated contexts were found. Exiting.")
		os.Exit(1)
	}

	perBarcode := make([][]correction.ValidatedContext, len(validated))
	for i := range validated {
		perBarcode[i] = validated[i].Validated
	}
	shares := correction.Distribution(perBarcode)

	phase++
	err = timedRun(timed, profile, "Writing validated barcode summary.", phase, func() error {
		if err := report.WriteValidatedSummary(filepath.Join(outputDir, sample+"_barcode_count_summary_validated.csv"), validated); err != nil {
			return err
		}
		return report.WriteContextDistribution(filepath.Join(outputDir, sample+"_context_distribution_percent.csv"), shares)
	})
	if err != nil {
		return err
	}

	if verbose {
		log.Println("Top 10 context distributions across all reads (%):")
		for i, share := range shares {
			if i == 10 {
				break
			}
			log.Printf("%v: %v%%\n", share.Context, share.Percent)
		}
	}

	var result correction.Stat
	phase++
	err = timedRun(timed, profile, "Classifying correction events.", phase, func() (err error) {
		result, err = correction.Classify(sample, perBarcode, referenceContext, correctedContext, minPct)
		return err
	})
	if err != nil {
		return err
	}
	if result.CorrectionEvents+result.NoCorrectionEvents == 0 {
		log.Println("No correction events were classified. Exiting.")
		os.Exit(1)
	}

	phase++
	err = timedRun(timed, profile, "Writing correction summary.", phase, func() error {
		if err := report.WriteCorrectionSummary(filepath.Join(outputDir, sample+"_correction_summary.csv"), result); err != nil {
			return err
		}
		return report.WriteCorrectionPlot(filepath.Join(outputDir, sample+"_correction_summary.png"), result, referenceContext, correctedContext)
	})
	if err != nil {
		return err
	}

	if verbose {
		log.Println("=== Correction Summary ===")
		log.Println("sample:", result.Sample)
		log.Println("total_barcodes:", result.TotalBarcodes)
		log.Println("correction_events:", result.CorrectionEvents)
		log.Println("no_correction_events:", result.NoCorrectionEvents)
		log.Println("correction_%:", result.CorrectionPercent)
		log.Println("no_correction_%:", result.NoCorrectionPercent)
	}

	log.Printf("Total runtime: %.2f seconds.\n", time.Since(start).Seconds())

	return nil
}
