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

// Package fastq implements synchronized reading of paired-end FASTQ
// files and strand reconciliation of pattern matches: a read pair is
// accepted only when its forward read and the reverse complement of
// its reverse read independently match the pattern and agree on
// barcode and context.
package fastq

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/shenwei356/xopen"
)

var (
	// ErrInputFormat is the sentinel error wrapped by all errors that
	// report unusable FASTQ input: a wrong file extension, a malformed
	// 4-line record, or base calls outside the A, C, G, T alphabet on
	// the reverse strand.
	ErrInputFormat = errors.New("invalid FASTQ input")

	// ErrFileAccess is the sentinel error wrapped by all errors that
	// report missing input files.
	ErrFileAccess = errors.New("missing input file")

	// ErrNaming is the sentinel error wrapped by all errors that
	// report file names from which no sample name can be derived.
	ErrNaming = errors.New("cannot infer sample name")

	// ErrSampleMismatch is the sentinel error wrapped by all errors
	// that report R1 and R2 file names naming different samples.
	ErrSampleMismatch = errors.New("sample mismatch")
)

// FASTQ file extensions, accepted as is or with an additional .gz
// suffix for gzip-compressed input.
const (
	FastqExt = ".fastq"
	FqExt    = ".fq"
)

// ValidExtension determines whether the filename carries one of the
// accepted FASTQ extensions: .fastq, .fq, .fastq.gz, or .fq.gz.
func ValidExtension(path string) bool {
	if strings.HasSuffix(path, ".gz") {
		path = strings.TrimSuffix(path, ".gz")
	}
	return strings.HasSuffix(path, FastqExt) || strings.HasSuffix(path, FqExt)
}

func checkExtensions(r1Path, r2Path string) error {
	if !ValidExtension(r1Path) || !ValidExtension(r2Path) {
		return fmt.Errorf("%w: expected FASTQ files with a .fastq or .fq extension, optionally gzipped, got %v and %v", ErrInputFormat, r1Path, r2Path)
	}
	return nil
}

func fileMissing(path string) bool {
	info, err := os.Stat(path)
	return err != nil || info.IsDir()
}

func checkFilesExist(r1Path, r2Path string) error {
	missing1 := fileMissing(r1Path)
	missing2 := fileMissing(r2Path)
	switch {
	case missing1 && missing2:
		return fmt.Errorf("%w: neither R1 nor R2 files found: %v, %v", ErrFileAccess, r1Path, r2Path)
	case missing1:
		return fmt.Errorf("%w: R1 file not found: %v", ErrFileAccess, r1Path)
	case missing2:
		return fmt.Errorf("%w: R2 file not found: %v", ErrFileAccess, r2Path)
	}
	return nil
}

var (
	r1SamplePattern = regexp.MustCompile(`(\w+)_R1`)
	r2SamplePattern = regexp.MustCompile(`(\w+)_R2`)
)

// SampleName derives the shared sample name from the two file names:
// the longest word token immediately preceding an _R1 marker in the
// R1 base name, which must equal the token preceding an _R2 marker in
// the R2 base name. The sample name keys all downstream aggregation.
func SampleName(r1Path, r2Path string) (string, error) {
	m1 := r1SamplePattern.FindStringSubmatch(filepath.Base(r1Path))
	if m1 == nil {
		return "", fmt.Errorf("%w: could not infer sample name from R1 file name %v", ErrNaming, r1Path)
	}
	m2 := r2SamplePattern.FindStringSubmatch(filepath.Base(r2Path))
	if m2 == nil {
		return "", fmt.Errorf("%w: could not infer sample name from R2 file name %v", ErrNaming, r2Path)
	}
	if m1[1] != m2[1] {
		return "", fmt.Errorf("%w: R1 and R2 file names appear to come from different samples: %v versus %v", ErrSampleMismatch, m1[1], m2[1])
	}
	return m1[1], nil
}

// ropen opens a possibly gzipped file for reading. A nil reader with
// a nil error stands for a file without content, which reads as an
// empty record stream.
func ropen(path string) (*xopen.Reader, error) {
	reader, err := xopen.Ropen(path)
	if err == xopen.ErrNoContent {
		return nil, nil
	}
	return reader, err
}

// A recordPair is one synchronized 4-line record from each stream:
// the shared read identifier with any /1-style strand suffix
// stripped, and the two sequence lines. The separator and quality
// lines are checked for presence and dropped.
type recordPair struct {
	id   string
	seq1 string
	seq2 string
}

// A pairSource reads synchronized 4-line records from two FASTQ
// streams. It implements pipeline.Source; every fetched batch is a
// []recordPair. All reading happens in one goroutine so the two
// streams advance in lockstep; only downstream matching stages run in
// parallel.
type pairSource struct {
	r1Path, r2Path string
	r1, r2         *xopen.Reader
	pairsSeen      int
	batch          []recordPair
	err            error
	done           bool
}

func newPairSource(r1Path, r2Path string) (*pairSource, error) {
	r1, err := ropen(r1Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v, while opening R1 file %v", ErrFileAccess, err, r1Path)
	}
	r2, err := ropen(r2Path)
	if err != nil {
		if r1 != nil {
			_ = r1.Close()
		}
		return nil, fmt.Errorf("%w: %v, while opening R2 file %v", ErrFileAccess, err, r2Path)
	}
	return &pairSource{r1Path: r1Path, r2Path: r2Path, r1: r1, r2: r2}, nil
}

func (src *pairSource) Close() (err error) {
	if src.r1 != nil {
		err = src.r1.Close()
	}
	if src.r2 != nil {
		nerr := src.r2.Close()
		if err == nil {
			err = nerr
		}
	}
	return err
}

// readLine returns the next line including its line ending. A nil
// reader and a clean end of file both return the empty string.
func readLine(reader *xopen.Reader) (string, error) {
	if reader == nil {
		return "", nil
	}
	line, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return line, nil
}

// strandlessID trims the line and cuts it at the first '/', so that
// identifiers like read1/1 and read1/2 compare equal.
func strandlessID(line string) string {
	id := strings.TrimSpace(line)
	if i := strings.IndexByte(id, '/'); i >= 0 {
		id = id[:i]
	}
	return id
}

// readBody reads the sequence, separator, and quality lines of one
// 4-line record whose header was already consumed.
func readBody(reader *xopen.Reader, path string) (seq, plus, qual string, err error) {
	if seq, err = readLine(reader); err == nil {
		if plus, err = readLine(reader); err == nil {
			qual, err = readLine(reader)
		}
	}
	if err != nil {
		err = fmt.Errorf("%v, while reading %v", err, path)
	}
	return seq, plus, qual, err
}

// nextPair advances both streams by one 4-line record. It skips pairs
// whose identifiers disagree, counting them as seen. The second
// return value is false at the normal end of input, reached as soon
// as either stream runs out of headers.
func (src *pairSource) nextPair() (recordPair, bool, error) {
	for {
		header1, err := readLine(src.r1)
		if err != nil {
			return recordPair{}, false, fmt.Errorf("%v, while reading %v", err, src.r1Path)
		}
		header2, err := readLine(src.r2)
		if err != nil {
			return recordPair{}, false, fmt.Errorf("%v, while reading %v", err, src.r2Path)
		}
		id1 := strandlessID(header1)
		id2 := strandlessID(header2)
		if id1 == "" || id2 == "" {
			return recordPair{}, false, nil
		}
		rawSeq1, plus1, qual1, err := readBody(src.r1, src.r1Path)
		if err != nil {
			return recordPair{}, false, err
		}
		rawSeq2, plus2, qual2, err := readBody(src.r2, src.r2Path)
		if err != nil {
			return recordPair{}, false, err
		}
		seq1 := strings.TrimSpace(rawSeq1)
		seq2 := strings.TrimSpace(rawSeq2)
		if seq1 == "" || plus1 == "" || qual1 == "" || seq2 == "" || plus2 == "" || qual2 == "" {
			return recordPair{}, false, fmt.Errorf("%w: malformed FASTQ entry detected in file %v or %v, ensure all reads contain 4 lines (header, sequence, +, quality)", ErrInputFormat, src.r1Path, src.r2Path)
		}
		src.pairsSeen++
		if id1 != id2 {
			continue
		}
		return recordPair{id: id1, seq1: seq1, seq2: seq2}, true, nil
	}
}

// Err implements the method of the pipeline.Source interface.
func (src *pairSource) Err() error {
	return src.err
}

// Prepare implements the method of the pipeline.Source interface.
func (src *pairSource) Prepare(_ context.Context) int {
	return -1
}

// Fetch implements the method of the pipeline.Source interface.
func (src *pairSource) Fetch(size int) int {
	if src.err != nil || src.done {
		src.batch = nil
		return 0
	}
	batch := make([]recordPair, 0, size)
	for len(batch) < size {
		rec, ok, err := src.nextPair()
		if err != nil {
			src.err = err
			src.batch = nil
			return 0
		}
		if !ok {
			src.done = true
			break
		}
		batch = append(batch, rec)
	}
	src.batch = batch
	return len(batch)
}

// Data implements the method of the pipeline.Source interface.
func (src *pairSource) Data() interface{} {
	return src.batch
}
