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

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/bitsort/bitsort/pkg/array"
	"github.com/bitsort/bitsort/pkg/clusterservice"
	"github.com/bitsort/bitsort/pkg/logutil"
	"github.com/bitsort/bitsort/pkg/sortservice"
)

var (
	configFile = flag.String("cfg", "./bs.toml", "toml configuration used to start bs-service")
)

func main() {
	flag.Parse()

	cfg, err := parseConfigFromFile(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to parse config from %s: %s\n", *configFile, err)
		os.Exit(1)
	}

	logutil.SetupBSLogger(&cfg.Log)
	logger := logutil.GetGlobalLogger()

	if err := runService(cfg, logger); err != nil {
		logger.Error("service failed", zap.Error(err))
		os.Exit(1)
	}
}

func runService(cfg *Config, logger *zap.Logger) error {
	switch cfg.ServiceType {
	case standaloneServiceType:
		return runStandalone(cfg, logger)
	case coordinatorServiceType:
		return runCoordinator(cfg, logger)
	case workerServiceType:
		return runWorker(cfg, logger)
	default:
		panic("unknown service type")
	}
}

// runStandalone sorts the data file with the shared-memory thread pool and
// writes the result back.
func runStandalone(cfg *Config, logger *zap.Logger) error {
	arr, err := array.Load(cfg.DataFile)
	if err != nil {
		return err
	}

	s, err := sortservice.NewService(cfg.Standalone.Workers,
		sortservice.WithLogger(logger))
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			logger.Error("close sort service failed", zap.Error(err))
		}
	}()

	if err := s.Sort(arr, cfg.Ascending); err != nil {
		return err
	}
	if err := array.Verify(arr, cfg.Ascending); err != nil {
		return err
	}
	return array.Store(outputFile(cfg), arr)
}

// runCoordinator drives the distributed sort over the configured ranks.
func runCoordinator(cfg *Config, logger *zap.Logger) error {
	strategy, err := clusterservice.ParseShrinkStrategy(cfg.Cluster.ShrinkStrategy)
	if err != nil {
		return err
	}

	arr, err := array.Load(cfg.DataFile)
	if err != nil {
		return err
	}

	c, err := clusterservice.NewCoordinator(cfg.Cluster.Ranks,
		clusterservice.WithCoordinatorLogger(logger),
		clusterservice.WithShrinkStrategy(strategy),
		clusterservice.WithRoundTimeout(cfg.Cluster.RoundTimeout.Duration))
	if err != nil {
		return err
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Error("close coordinator failed", zap.Error(err))
		}
	}()

	if err := c.Sort(context.Background(), arr, cfg.Ascending); err != nil {
		return err
	}
	if err := array.Verify(arr, cfg.Ascending); err != nil {
		return err
	}
	return array.Store(outputFile(cfg), arr)
}

// runWorker serves kernel requests until a terminate request or a signal
// arrives.
func runWorker(cfg *Config, logger *zap.Logger) error {
	w, err := clusterservice.NewWorker(cfg.Cluster.ListenAddress,
		clusterservice.WithWorkerLogger(logger))
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		return err
	}

	sigchan := make(chan os.Signal, 1)
	signal.Notify(sigchan, syscall.SIGTERM, syscall.SIGINT)
	select {
	case <-sigchan:
		logger.Info("stop signal received")
	case <-w.Terminated():
	}
	return w.Close()
}

func outputFile(cfg *Config) string {
	if cfg.OutputFile != "" {
		return cfg.OutputFile
	}
	return cfg.DataFile
}
