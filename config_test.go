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

package heirloom

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/vigil-labs/heirloom/escrow"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg := NewConfig()
	assert.NotNil(t, cfg.logger)
	assert.Empty(t, cfg.dataDir)
	assert.Empty(t, cfg.apiListenAddress)
	assert.False(t, cfg.tracing)
	assert.Equal(t, time.Duration(0), cfg.shutdownTimeout)
}

func TestNewConfigOptions(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	registry := prometheus.NewRegistry()
	transferrer := escrow.TransferFunc(
		func(escrow.Identity, uint64) error { return nil },
	)
	timeSource := escrow.TimeSource(time.Now)
	cfg := NewConfig(
		WithLogger(logger),
		WithDataDir("/var/lib/heirloom"),
		WithPrometheusRegistry(registry),
		WithApiListenAddress("127.0.0.1:3000"),
		WithTransferrer(transferrer),
		WithTimeSource(timeSource),
		WithTracing(true),
		WithTracingStdout(true),
		WithShutdownTimeout(10*time.Second),
	)
	assert.Equal(t, logger, cfg.logger)
	assert.Equal(t, "/var/lib/heirloom", cfg.dataDir)
	assert.Equal(t, prometheus.Registerer(registry), cfg.promRegistry)
	assert.Equal(t, "127.0.0.1:3000", cfg.apiListenAddress)
	assert.NotNil(t, cfg.transferrer)
	assert.NotNil(t, cfg.timeSource)
	assert.True(t, cfg.tracing)
	assert.True(t, cfg.tracingStdout)
	assert.Equal(t, 10*time.Second, cfg.shutdownTimeout)
}

func TestNewValidatesConfig(t *testing.T) {
	// Stdout tracing requires tracing
	_, err := New(NewConfig(WithTracingStdout(true)))
	require.Error(t, err)

	_, err = New(NewConfig(WithShutdownTimeout(-1 * time.Second)))
	require.Error(t, err)

	n, err := New(NewConfig())
	require.NoError(t, err)
	require.NotNil(t, n)
	require.NoError(t, n.Stop())
}

func TestNewRejectedConfigStartsNoWorkers(t *testing.T) {
	// A rejected config must not leave event bus workers running
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	_, err := New(NewConfig(WithTracingStdout(true)))
	require.Error(t, err)
	_, err = New(NewConfig(WithShutdownTimeout(-1 * time.Second)))
	require.Error(t, err)
}
