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
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/bitsort/bitsort/pkg/common/bserr"
	"github.com/bitsort/bitsort/pkg/logutil"
	"github.com/bitsort/bitsort/pkg/sort/bitonic"
)

const (
	standaloneServiceType  = "STANDALONE"
	coordinatorServiceType = "COORDINATOR"
	workerServiceType      = "WORKER"
)

// Duration is a toml-friendly time.Duration.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// Config is the bs-service configuration, loaded from a toml file.
type Config struct {
	// ServiceType selects what this process runs: standalone, coordinator
	// or worker
	ServiceType string `toml:"service-type"`
	// DataFile is the array file to sort (standalone and coordinator)
	DataFile string `toml:"data-file"`
	// OutputFile receives the sorted array; empty re-writes DataFile
	OutputFile string `toml:"output-file"`
	// Ascending is the requested direction
	Ascending bool `toml:"ascending"`

	// Log is the logging configuration
	Log logutil.LogConfig `toml:"log"`

	// Standalone configures the shared-memory thread pool
	Standalone struct {
		// Workers is the pool size, a power of two
		Workers int `toml:"workers"`
	} `toml:"standalone"`

	// Cluster configures the distributed variant
	Cluster struct {
		// ListenAddress is the worker rank's rpc address
		ListenAddress string `toml:"listen-address"`
		// Ranks are the worker addresses, coordinator side, rank order
		Ranks []string `toml:"ranks"`
		// ShrinkStrategy is terminate or wait
		ShrinkStrategy string `toml:"shrink-strategy"`
		// RoundTimeout bounds one scatter-gather round
		RoundTimeout Duration `toml:"round-timeout"`
	} `toml:"cluster"`
}

func parseConfigFromFile(file string) (*Config, error) {
	cfg := &Config{Ascending: true}
	if _, err := toml.DecodeFile(file, cfg); err != nil {
		return nil, bserr.NewBadConfig("cannot decode %s: %v", file, err)
	}
	if err := cfg.adjust(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) adjust() error {
	if c.ServiceType == "" {
		c.ServiceType = standaloneServiceType
	}
	c.ServiceType = strings.ToUpper(c.ServiceType)
	if c.Standalone.Workers == 0 {
		c.Standalone.Workers = 4
	}
	if c.Cluster.ShrinkStrategy == "" {
		c.Cluster.ShrinkStrategy = "terminate"
	}
	if c.Cluster.RoundTimeout.Duration == 0 {
		c.Cluster.RoundTimeout.Duration = time.Second * 60
	}

	switch c.ServiceType {
	case standaloneServiceType:
		if c.DataFile == "" {
			return bserr.NewBadConfig("data-file is required for standalone service")
		}
		if !bitonic.IsPowerOfTwo(c.Standalone.Workers) {
			return bserr.NewNotPowerOfTwo("worker count", c.Standalone.Workers)
		}
	case coordinatorServiceType:
		if c.DataFile == "" {
			return bserr.NewBadConfig("data-file is required for coordinator service")
		}
		if len(c.Cluster.Ranks) == 0 {
			return bserr.NewBadConfig("cluster.ranks is required for coordinator service")
		}
	case workerServiceType:
		if c.Cluster.ListenAddress == "" {
			return bserr.NewBadConfig("cluster.listen-address is required for worker service")
		}
	default:
		return bserr.NewBadConfig("unknown service type %q", c.ServiceType)
	}
	return nil
}
