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
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/vigil-labs/heirloom/api"
	"github.com/vigil-labs/heirloom/database"
	"github.com/vigil-labs/heirloom/escrow"
	"github.com/vigil-labs/heirloom/event"
)

type Node struct {
	eventBus      *event.EventBus
	db            *database.Database
	ledger        *escrow.Ledger
	api           *api.Api
	apiCancel     context.CancelFunc
	shutdownFuncs []func(context.Context) error
	config        Config
	done          chan struct{}
	shutdownOnce  sync.Once
}

func New(cfg Config) (*Node, error) {
	n := &Node{
		config: cfg,
		done:   make(chan struct{}),
	}
	// Validate before creating the event bus so a rejected config doesn't
	// leave bus workers running
	if err := n.configValidate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	n.eventBus = event.NewEventBus(cfg.promRegistry, cfg.logger)
	return n, nil
}

func (n *Node) Run() error {
	// Configure tracing
	if n.config.tracing {
		if err := n.setupTracing(); err != nil {
			return err
		}
	}
	// Load database
	db, err := database.New(database.Config{
		DataDir:      n.config.dataDir,
		Logger:       n.config.logger,
		PromRegistry: n.config.promRegistry,
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	n.db = db
	// Attach the audit journal to the ledger event stream
	for _, eventType := range escrow.EventTypes() {
		n.eventBus.RegisterSubscriber(eventType, n.db.Journal())
	}
	// Load ledger
	ledger, err := escrow.NewLedger(escrow.LedgerConfig{
		Logger:       n.config.logger,
		EventBus:     n.eventBus,
		PromRegistry: n.config.promRegistry,
		Store:        n.db.PlanStore(),
		Transferrer:  n.config.transferrer,
		TimeSource:   n.config.timeSource,
	})
	if err != nil {
		return fmt.Errorf("failed to load ledger: %w", err)
	}
	n.ledger = ledger
	// Start REST API listener
	if n.config.apiListenAddress != "" {
		n.api = api.New(
			api.Config{
				ListenAddress: n.config.apiListenAddress,
			},
			n.ledger,
			n.config.logger,
		)
		apiCtx, apiCancel := context.WithCancel(context.Background())
		n.apiCancel = apiCancel
		if err := n.api.Start(apiCtx); err != nil {
			apiCancel()
			return err
		}
	}

	// Wait for shutdown signal
	<-n.done
	return nil
}

// Ledger returns the escrow ledger. Not valid until Run() has been called.
func (n *Node) Ledger() *escrow.Ledger {
	return n.ledger
}

func (n *Node) Stop() error {
	var err error
	n.shutdownOnce.Do(func() {
		err = n.shutdown()
	})
	return err
}

func (n *Node) shutdown() error {
	// Create shutdown context with timeout (default 30s if not configured)
	shutdownTimeout := 30 * time.Second
	if n.config.shutdownTimeout > 0 {
		shutdownTimeout = n.config.shutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var err error

	n.config.logger.Debug("starting graceful shutdown")

	// Phase 1: Stop accepting new work
	n.config.logger.Debug("shutdown phase 1: stopping new work")

	if n.api != nil {
		if stopErr := n.api.Stop(ctx); stopErr != nil {
			err = errors.Join(err, fmt.Errorf("api shutdown: %w", stopErr))
		}
	}
	if n.apiCancel != nil {
		n.apiCancel()
	}

	// Phase 2: Drain in-flight events
	n.config.logger.Debug("shutdown phase 2: draining events")

	if n.eventBus != nil {
		n.eventBus.Stop()
	}

	// Phase 3: Flush state and close database
	n.config.logger.Debug("shutdown phase 3: flushing state")

	if n.db != nil {
		if closeErr := n.db.Close(); closeErr != nil {
			err = errors.Join(
				err,
				fmt.Errorf("database close: %w", closeErr),
			)
		}
	}

	// Phase 4: Cleanup resources
	n.config.logger.Debug("shutdown phase 4: cleanup resources")

	// Call registered shutdown functions
	for _, fn := range n.shutdownFuncs {
		if fnErr := fn(ctx); fnErr != nil {
			err = errors.Join(err, fmt.Errorf("shutdown function: %w", fnErr))
		}
	}
	n.shutdownFuncs = nil

	n.config.logger.Debug("graceful shutdown complete")
	close(n.done)
	return err
}
