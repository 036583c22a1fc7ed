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

// obprofiler analyzes barcoded oligonucleotide libraries from
// paired-end sequencing data. It searches every read pair for the
// structural pattern [anchor1][barcode][anchor2][context][anchor3],
// reconciles the forward and reverse strands, and reports per-barcode
// context counts, validated contexts, and correction statistics.
//
// Please see https://github.com/oligoscience/obprofiler for a
// documentation of the tool, and below for the API documentation.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/oligoscience/obprofiler/cmd"
)

func printHelp() {
	fmt.Fprintln(os.Stderr, "Available commands: analyze")
	fmt.Fprint(os.Stderr, "\n", cmd.AnalyzeHelp)
}

func printExtendedHelp() {
	fmt.Fprintln(os.Stderr, "Available commands: analyze")
	fmt.Fprint(os.Stderr, "\n", cmd.AnalyzeExtendedHelp)
}

func main() {
	fmt.Fprintln(os.Stderr, cmd.ProgramMessage)
	if len(os.Args) < 2 {
		log.Println("Incorrect number of parameters.")
		fmt.Fprint(os.Stderr, cmd.HelpMessage, "\n")
		printHelp()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "analyze":
		err = cmd.Analyze()
	case "help", "-help", "--help", "-h", "--h":
		printHelp()
	case "help-extended", "-help-extended", "--help-extended", "-he", "--he":
		printExtendedHelp()
	default:
		log.Println("Unknown command: ", os.Args[1])
		fmt.Fprint(os.Stderr, cmd.HelpMessage, "\n")
		printHelp()
		os.Exit(1)
	}
	if err != nil {
		log.Fatal(err)
	}
}
