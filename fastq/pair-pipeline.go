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

package fastq

import (
	"fmt"
	"runtime"

	"github.com/exascience/pargo/pipeline"

	"github.com/oligoscience/obprofiler/pattern"
	"github.com/oligoscience/obprofiler/utils"
)

// A ValidatedPair is one read pair whose forward and reverse strands
// independently matched the pattern and agreed on barcode and
// context. The two spans are the full matched windows, with the
// reverse span in reverse-complemented orientation.
type ValidatedPair struct {
	ID      string
	SpanR1  string
	SpanR2  string
	Barcode string
	Context string
}

// A Tally counts the read pairs seen in the input against the pairs
// accepted by strand reconciliation.
type Tally struct {
	PairsSeen     int
	PairsAccepted int
}

// batch sizes for the record-pair pipeline
const (
	minBatchSize = 512
	maxBatchSize = 4096
)

// Reconcile matches the pattern against the forward sequence and
// against the reverse complement of the reverse sequence, and accepts
// the pair only when both strands match and extract identical barcode
// and context segments. The second return value reports acceptance; a
// rejection is a normal skip, not an error. An error is only returned
// when the reverse sequence cannot be reverse complemented.
func Reconcile(spec *pattern.Spec, id, fwdSeq, revSeq string) (ValidatedPair, bool, error) {
	fwd, fwdOK := spec.Match(fwdSeq)
	rev, revOK, err := spec.MatchReverseComplement(revSeq)
	if err != nil {
		return ValidatedPair{}, false, err
	}
	if !fwdOK || !revOK {
		return ValidatedPair{}, false, nil
	}
	if fwd.Barcode != rev.Barcode || fwd.Context != rev.Context {
		return ValidatedPair{}, false, nil
	}
	return ValidatedPair{
		ID:     id,
		SpanR1: fwd.FullSpan,
		SpanR2: rev.FullSpan,
		// barcodes and contexts repeat heavily across pairs, so
		// intern them instead of keeping per-read substrings
		Barcode: *utils.Intern(fwd.Barcode),
		Context: *utils.Intern(fwd.Context),
	}, true, nil
}

// ProcessPairs streams the two FASTQ files in lockstep, reconciles
// every record pair against the pattern, and returns the accepted
// pairs in input order together with the tally of pairs seen and
// accepted. Pairs with disagreeing identifiers and pairs rejected by
// reconciliation are skipped; a malformed record or an invalid
// reverse-strand sequence aborts the whole run.
func ProcessPairs(spec *pattern.Spec, r1Path, r2Path string) (pairs []ValidatedPair, tally Tally, err error) {
	if err := checkExtensions(r1Path, r2Path); err != nil {
		return nil, Tally{}, err
	}
	if err := checkFilesExist(r1Path, r2Path); err != nil {
		return nil, Tally{}, err
	}
	src, err := newPairSource(r1Path, r2Path)
	if err != nil {
		return nil, Tally{}, err
	}
	defer func() {
		nerr := src.Close()
		if err == nil {
			err = nerr
		}
	}()
	if runtime.GOMAXPROCS(0) <= 3 {
		return processPairsSequential(spec, src)
	}
	return processPairsParallel(spec, src)
}

func reconcileError(err error, id string) error {
	return fmt.Errorf("%w: %v, while processing read pair %v", ErrInputFormat, err, id)
}

func processPairsSequential(spec *pattern.Spec, src *pairSource) ([]ValidatedPair, Tally, error) {
	var pairs []ValidatedPair
	for {
		rec, ok, err := src.nextPair()
		if err != nil {
			return nil, Tally{}, err
		}
		if !ok {
			break
		}
		pair, accepted, err := Reconcile(spec, rec.id, rec.seq1, rec.seq2)
		if err != nil {
			return nil, Tally{}, reconcileError(err, rec.id)
		}
		if accepted {
			pairs = append(pairs, pair)
		}
	}
	return pairs, Tally{PairsSeen: src.pairsSeen, PairsAccepted: len(pairs)}, nil
}

func processPairsParallel(spec *pattern.Spec, src *pairSource) ([]ValidatedPair, Tally, error) {
	var pairs []ValidatedPair
	var p pipeline.Pipeline
	p.Source(src)
	p.SetVariableBatchSize(minBatchSize, maxBatchSize)
	p.Add(
		pipeline.LimitedPar(0, pipeline.Receive(func(_ int, data interface{}) interface{} {
			records := data.([]recordPair)
			accepted := make([]ValidatedPair, 0, len(records))
			for _, rec := range records {
				pair, ok, err := Reconcile(spec, rec.id, rec.seq1, rec.seq2)
				if err != nil {
					p.SetErr(reconcileError(err, rec.id))
					return accepted
				}
				if ok {
					accepted = append(accepted, pair)
				}
			}
			return accepted
		})),
		pipeline.StrictOrd(pipeline.Slice(&pairs)),
	)
	p.Run()
	if err := p.Err(); err != nil {
		return nil, Tally{}, err
	}
	return pairs, Tally{PairsSeen: src.pairsSeen, PairsAccepted: len(pairs)}, nil
}
