// Copyright 2024 BitSort Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// bs-tool is the companion command line tool: generate array files, verify
// sorted files, count words in text files.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/bitsort/bitsort/pkg/array"
	"github.com/bitsort/bitsort/pkg/wordcount"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "datagen":
		err = runDatagen(os.Args[2:])
	case "verify":
		err = runVerify(os.Args[2:])
	case "words":
		err = runWords(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %s\n", os.Args[1], err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: bs-tool <command> [flags]

commands:
  datagen   generate a random array file
  verify    check that an array file is sorted
  words     count words in text files`)
}

func runDatagen(args []string) error {
	fs := flag.NewFlagSet("datagen", flag.ExitOnError)
	size := fs.Int("size", 1024, "number of elements, a power of two")
	seed := fs.Int64("seed", time.Now().UnixNano(), "random seed")
	out := fs.String("o", "array.bin", "output file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	arr, err := array.Random(*size, *seed)
	if err != nil {
		return err
	}
	if err := array.Store(*out, arr); err != nil {
		return err
	}
	fmt.Printf("wrote %d elements to %s\n", len(arr), *out)
	return nil
}

func runVerify(args []string) error {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	descending := fs.Bool("descending", false, "expect descending order")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("verify expects exactly one array file")
	}

	file := fs.Arg(0)
	arr, err := array.Load(file)
	if err != nil {
		return err
	}
	if err := array.Verify(arr, !*descending); err != nil {
		return err
	}
	fmt.Printf("%s: %d elements, sorted\n", file, len(arr))
	return nil
}

func runWords(args []string) error {
	fs := flag.NewFlagSet("words", flag.ExitOnError)
	workers := fs.Int("workers", 4, "consumer pool size")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("words expects at least one text file")
	}

	s, err := wordcount.NewService(*workers)
	if err != nil {
		return err
	}
	results, err := s.Run(context.Background(), fs.Args())
	if err != nil {
		return err
	}

	for _, r := range results {
		fmt.Printf("File name: %s\n", r.File)
		fmt.Printf("Total number of words: %d\n", r.Counts.Words)
		fmt.Printf("Number of words with at least two equal consonants: %d\n",
			r.Counts.WordsWithRepeatedConsonant)
	}
	return nil
}
