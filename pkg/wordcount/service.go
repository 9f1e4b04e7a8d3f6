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
	"context"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bitsort/bitsort/pkg/common/bserr"
	"github.com/bitsort/bitsort/pkg/logutil"
)

// FileResult is the final tally of one input file.
type FileResult struct {
	// File is the input file path
	File string
	// Counts are the file's totals
	Counts Counts
}

// results accumulates partial counts per file under a lock. Consumers call
// record once per processed chunk.
type results struct {
	mu      sync.Mutex
	perFile []Counts
}

func newResults(files int) *results {
	return &results{perFile: make([]Counts, files)}
}

func (r *results) record(fileIndex int, counts Counts) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.perFile[fileIndex].Add(counts)
}

// ServiceOption wordcount service option
type ServiceOption func(*Service)

// WithServiceLogger set the service logger
func WithServiceLogger(logger *zap.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// Service runs the word counting pipeline: one producer cutting files into
// chunks and a pool of consumers counting them.
type Service struct {
	workers int
	logger  *zap.Logger
}

// NewService create a wordcount service with the given consumer pool size.
func NewService(workers int, opts ...ServiceOption) (*Service, error) {
	if workers < 1 {
		return nil, bserr.NewBadConfig("worker count must be >= 1, got %d", workers)
	}
	s := &Service{workers: workers}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logutil.Adjust(s.logger).Named("wordcount")
	return s, nil
}

// Run counts the given files and returns one result per file, in input
// order.
func (s *Service) Run(ctx context.Context, files []string) ([]FileResult, error) {
	if len(files) == 0 {
		return nil, bserr.NewInvalidInput("no input files")
	}

	s.logger.Info("word count started",
		zap.Int("files", len(files)),
		zap.Int("workers", s.workers))
	start := time.Now()

	pool, err := ants.NewPool(s.workers)
	if err != nil {
		return nil, err
	}
	defer pool.Release()

	source := NewFileSource(files)
	defer func() {
		if err := source.Close(); err != nil {
			s.logger.Error("close chunk source failed", zap.Error(err))
		}
	}()
	res := newResults(len(files))

	var wg sync.WaitGroup
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			chunk, ok, err := source.NextChunk()
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}

			wg.Add(1)
			if err := pool.Submit(func() {
				defer wg.Done()
				res.record(chunk.FileIndex, CountChunk(chunk.Data))
			}); err != nil {
				wg.Done()
				return err
			}
		}
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	wg.Wait()

	out := make([]FileResult, len(files))
	for i, file := range files {
		out[i] = FileResult{File: file, Counts: res.perFile[i]}
	}
	s.logger.Info("word count completed",
		zap.Duration("elapsed", time.Since(start)))
	return out, nil
}
