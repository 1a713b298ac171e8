// Copyright 2026 Vigil Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromFile(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "heirloom.yaml")
	content := []byte(
		"dataDir: /var/lib/heirloom\napiPort: 4000\ntracing: true\n",
	)
	require.NoError(t, os.WriteFile(configFile, content, 0o644))

	cfg, err := LoadConfig(configFile)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/heirloom", cfg.DataDir)
	assert.Equal(t, uint(4000), cfg.ApiPort)
	assert.True(t, cfg.Tracing)
	// Untouched keys keep their defaults
	assert.Equal(t, "0.0.0.0", cfg.BindAddr)
	assert.Equal(t, DefaultShutdownTimeout, cfg.ShutdownTimeout)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("HEIRLOOM_METRICS_PORT", "9200")
	t.Setenv("HEIRLOOM_DATA_DIR", "/tmp/heirloom-test")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, uint(9200), cfg.MetricsPort)
	assert.Equal(t, "/tmp/heirloom-test", cfg.DataDir)
}

func TestConfigContext(t *testing.T) {
	cfg := &Config{DataDir: "/nowhere"}
	ctx := WithContext(context.Background(), cfg)
	assert.Equal(t, cfg, FromContext(ctx))
	assert.Nil(t, FromContext(context.Background()))
}
