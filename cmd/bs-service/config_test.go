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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitsort/bitsort/pkg/common/bserr"
)

func TestParseConfigFromFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "bs.toml")
	require.NoError(t, os.WriteFile(file, []byte(`
service-type = "coordinator"
data-file = "array.bin"
ascending = false

[log]
level = "debug"

[cluster]
ranks = ["127.0.0.1:7001", "127.0.0.1:7002"]
shrink-strategy = "wait"
round-timeout = "30s"
`), 0644))

	cfg, err := parseConfigFromFile(file)
	require.NoError(t, err)
	assert.Equal(t, coordinatorServiceType, cfg.ServiceType)
	assert.Equal(t, "array.bin", cfg.DataFile)
	assert.False(t, cfg.Ascending)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, []string{"127.0.0.1:7001", "127.0.0.1:7002"}, cfg.Cluster.Ranks)
	assert.Equal(t, "wait", cfg.Cluster.ShrinkStrategy)
	assert.Equal(t, time.Second*30, cfg.Cluster.RoundTimeout.Duration)
}

func TestConfigAdjustDefaults(t *testing.T) {
	cfg := &Config{DataFile: "array.bin", Ascending: true}
	require.NoError(t, cfg.adjust())
	assert.Equal(t, standaloneServiceType, cfg.ServiceType)
	assert.Equal(t, 4, cfg.Standalone.Workers)
}

func TestConfigAdjustValidation(t *testing.T) {
	cfg := &Config{ServiceType: "standalone"}
	err := cfg.adjust()
	require.Error(t, err)
	assert.True(t, bserr.IsBsErrCode(err, bserr.ErrBadConfig))

	cfg = &Config{ServiceType: "standalone", DataFile: "a.bin"}
	cfg.Standalone.Workers = 3
	err = cfg.adjust()
	require.Error(t, err)
	assert.True(t, bserr.IsBsErrCode(err, bserr.ErrNotPowerOfTwo))

	cfg = &Config{ServiceType: "worker"}
	err = cfg.adjust()
	require.Error(t, err)
	assert.True(t, bserr.IsBsErrCode(err, bserr.ErrBadConfig))

	cfg = &Config{ServiceType: "mystery"}
	err = cfg.adjust()
	require.Error(t, err)
}
