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

package logutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestGetLevel(t *testing.T) {
	cases := []struct {
		level string
		want  zapcore.Level
	}{
		{"", zap.InfoLevel},
		{"debug", zap.DebugLevel},
		{"warn", zap.WarnLevel},
		{"error", zap.ErrorLevel},
	}
	for _, c := range cases {
		cfg := &LogConfig{Level: c.level}
		assert.Equal(t, zap.NewAtomicLevelAt(c.want), cfg.getLevel())
	}
}

func TestGetEncoder(t *testing.T) {
	entry := zapcore.Entry{Level: zapcore.InfoLevel, Message: "msg"}

	consoleMsg, err := (&LogConfig{Format: "console"}).getEncoder().EncodeEntry(entry, nil)
	require.NoError(t, err)
	jsonMsg, err := (&LogConfig{Format: "json"}).getEncoder().EncodeEntry(entry, nil)
	require.NoError(t, err)
	assert.NotEqual(t, consoleMsg.String(), jsonMsg.String())
	assert.Contains(t, jsonMsg.String(), `"msg"`)
}

func TestGetGlobalLogger(t *testing.T) {
	require.NotNil(t, GetGlobalLogger())
	assert.Equal(t, GetGlobalLogger(), Adjust(nil))

	named := GetGlobalLogger().Named("other")
	assert.Equal(t, named, Adjust(named))
}
