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

package wordcount

import (
	"bufio"
	"io"
	"os"
	"sync"
	"unicode/utf8"

	"github.com/bitsort/bitsort/pkg/common/bserr"
)

// MaxChunkSize is the nominal chunk size. A chunk may run a little longer so
// that it ends on a word boundary.
const MaxChunkSize = 4096

// Chunk is one unit of work handed to a consumer.
type Chunk struct {
	// FileIndex is the position of the source file in the run's file list
	FileIndex int
	// Data is the chunk text, complete words only
	Data []byte
}

// chunker cuts one reader into chunks that never split a multi-byte UTF-8
// character or a word.
type chunker struct {
	r      *bufio.Reader
	offset int
}

func newChunker(r io.Reader) *chunker {
	return &chunker{r: bufio.NewReaderSize(r, MaxChunkSize)}
}

// next returns the next chunk and false once the reader is exhausted.
func (c *chunker) next() ([]byte, bool, error) {
	chunk := make([]byte, MaxChunkSize, MaxChunkSize+utf8.UTFMax)
	n, err := io.ReadFull(c.r, chunk)
	c.offset += n
	if err == io.EOF {
		return nil, false, nil
	}
	if err == io.ErrUnexpectedEOF {
		// short read is the file's last chunk
		return chunk[:n], true, nil
	}
	if err != nil {
		return nil, false, err
	}

	chunk, err = c.completeTrailingRune(chunk)
	if err != nil {
		return nil, false, err
	}
	return c.extendToWordBoundary(chunk)
}

// completeTrailingRune reads the continuation bytes of a multi-byte
// character cut by the fixed-size read, so the chunk always ends on a
// character boundary.
func (c *chunker) completeTrailingRune(chunk []byte) ([]byte, error) {
	start := len(chunk) - 1
	for ; start >= 0 && len(chunk)-start <= utf8.UTFMax; start-- {
		if !utf8.RuneStart(chunk[start]) {
			continue
		}
		size := runeLength(chunk[start])
		if size == 0 {
			return nil, bserr.NewInvalidUTF8(c.offset - (len(chunk) - start))
		}
		missing := start + size - len(chunk)
		for i := 0; i < missing; i++ {
			b, err := c.r.ReadByte()
			if err != nil {
				return nil, bserr.NewInvalidUTF8(c.offset)
			}
			chunk = append(chunk, b)
			c.offset++
		}
		return chunk, nil
	}
	return nil, bserr.NewInvalidUTF8(c.offset)
}

// extendToWordBoundary appends characters until a delimiter closes the word
// in progress, then stops. The delimiter itself is included. A chunk that
// already ends on a delimiter is returned as is.
func (c *chunker) extendToWordBoundary(chunk []byte) ([]byte, bool, error) {
	if r, _ := utf8.DecodeLastRune(chunk); isDelimiter(r) {
		return chunk, true, nil
	}
	for {
		b, err := c.r.ReadByte()
		if err == io.EOF {
			return chunk, true, nil
		}
		if err != nil {
			return nil, false, err
		}

		size := runeLength(b)
		if size == 0 {
			return nil, false, bserr.NewInvalidUTF8(c.offset)
		}
		encoded := make([]byte, 1, utf8.UTFMax)
		encoded[0] = b
		for i := 1; i < size; i++ {
			cb, err := c.r.ReadByte()
			if err != nil {
				return nil, false, bserr.NewInvalidUTF8(c.offset)
			}
			encoded = append(encoded, cb)
		}
		c.offset += size
		chunk = append(chunk, encoded...)

		r, _ := utf8.DecodeRune(encoded)
		if r == utf8.RuneError {
			return nil, false, bserr.NewInvalidUTF8(c.offset - size)
		}
		if isDelimiter(r) {
			return chunk, true, nil
		}
	}
}

// runeLength mirrors the UTF-8 length table: 0 for a byte that cannot start
// a character.
func runeLength(b byte) int {
	switch {
	case b&0x80 == 0:
		return 1
	case b&0xE0 == 0xC0:
		return 2
	case b&0xF0 == 0xE0:
		return 3
	case b&0xF8 == 0xF0:
		return 4
	default:
		return 0
	}
}

// FileSource hands out chunks from a list of files, one file at a time.
// NextChunk is safe for concurrent use; producers compete for the next
// chunk under the source's lock, as the collaborators contract requires.
type FileSource struct {
	files []string

	mu      sync.Mutex
	current int
	file    *os.File
	chunker *chunker
}

// NewFileSource create a chunk source over the given files.
func NewFileSource(files []string) *FileSource {
	return &FileSource{files: files}
}

// NextChunk returns the next chunk of the current file, opening the next
// file when the current one is exhausted. ok is false when all files have
// been consumed.
func (s *FileSource) NextChunk() (chunk Chunk, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for s.current < len(s.files) {
		if s.file == nil {
			f, err := os.Open(s.files[s.current])
			if err != nil {
				return Chunk{}, false, bserr.NewBadArrayFile(s.files[s.current], err.Error())
			}
			s.file = f
			s.chunker = newChunker(f)
		}

		data, ok, err := s.chunker.next()
		if err != nil {
			return Chunk{}, false, err
		}
		if ok && len(data) > 0 {
			return Chunk{FileIndex: s.current, Data: data}, true, nil
		}

		// current file exhausted
		if cerr := s.file.Close(); cerr != nil {
			return Chunk{}, false, cerr
		}
		s.file = nil
		s.chunker = nil
		s.current++
	}
	return Chunk{}, false, nil
}

// Close releases the currently open file, if any.
func (s *FileSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file != nil {
		err := s.file.Close()
		s.file = nil
		return err
	}
	return nil
}
