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

// Package wordcount counts words in UTF-8 text, and words containing at
// least two occurrences of the same consonant. Files are consumed in chunks
// that never split a multi-byte character or a word, so chunks can be
// processed independently and the per-chunk counts summed.
package wordcount

import (
	"unicode"

	"github.com/fagongzi/util/hack"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const consonants = "bcdfghjklmnpqrstvwxyz"

// delimiters terminate a word. Anything else that cannot start a word
// (apostrophes for example) is carried inside one.
const delimiters = " \t\n\r-\"[]().,:;?!–“”…"

// accent stripper: decompose, drop combining marks, recompose
var normalizer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// normalizeRune lowercases r and strips its accent, so that "À" counts the
// same as "a" and "ç" is the consonant c.
func normalizeRune(r rune) rune {
	r = unicode.ToLower(r)
	normalized, _, err := transform.String(normalizer, string(r))
	if err != nil || normalized == "" {
		return r
	}
	return []rune(normalized)[0]
}

func isDelimiter(r rune) bool {
	for _, d := range delimiters {
		if r == d {
			return true
		}
	}
	return false
}

// isWordStart reports whether the normalized rune can start a word: letters,
// digits and underscore.
func isWordStart(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

func consonantIndex(r rune) int {
	for i, c := range consonants {
		if r == c {
			return i
		}
	}
	return -1
}

// Counts are the tallies of one chunk, one file or one whole run.
type Counts struct {
	// Words is the number of words found
	Words int
	// WordsWithRepeatedConsonant is the number of words containing at least
	// two occurrences of the same consonant
	WordsWithRepeatedConsonant int
}

// Add accumulates other into c.
func (c *Counts) Add(other Counts) {
	c.Words += other.Words
	c.WordsWithRepeatedConsonant += other.WordsWithRepeatedConsonant
}

// CountChunk scans one chunk of text. The chunk must start and end on a word
// boundary; the chunker guarantees that.
func CountChunk(chunk []byte) Counts {
	var counts Counts
	var occurrences [len(consonants)]int
	inWord := false
	detected := false

	// no-copy view, the chunk is never written to
	for _, r := range hack.SliceToString(chunk) {
		r = normalizeRune(r)

		if inWord && isDelimiter(r) {
			inWord = false
			occurrences = [len(consonants)]int{}
		} else if !inWord && isWordStart(r) {
			inWord = true
			detected = false
			counts.Words++
		}

		if i := consonantIndex(r); i >= 0 && inWord {
			occurrences[i]++
			if !detected && occurrences[i] > 1 {
				counts.WordsWithRepeatedConsonant++
				detected = true
			}
		}
	}
	return counts
}
