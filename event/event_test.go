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

package event_test

import (
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigil-labs/heirloom/event"
)

const testEventType = event.EventType("test.event")

type testPayload struct {
	Owner  string
	Amount uint64
}

func TestEventPublishSubscribe(t *testing.T) {
	eb := event.NewEventBus(nil, nil)
	defer eb.Stop()

	_, subCh := eb.Subscribe(testEventType)

	payload := testPayload{Owner: "alice", Amount: 100}
	eb.Publish(
		testEventType,
		event.NewEvent(testEventType, payload),
	)

	select {
	case evt, ok := <-subCh:
		require.True(t, ok, "event channel closed unexpectedly")
		require.Equal(t, testEventType, evt.Type)
		got, ok := evt.Data.(testPayload)
		require.True(t, ok, "event data was not testPayload")
		assert.Equal(t, payload, got)
		assert.False(t, evt.Timestamp.IsZero())
	case <-time.After(1 * time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestEventSubscribeFunc(t *testing.T) {
	eb := event.NewEventBus(nil, nil)
	defer eb.Stop()

	receivedCh := make(chan testPayload, 1)
	eb.SubscribeFunc(testEventType, func(evt event.Event) {
		if payload, ok := evt.Data.(testPayload); ok {
			receivedCh <- payload
		}
	})

	payload := testPayload{Owner: "bob", Amount: 42}
	eb.Publish(
		testEventType,
		event.NewEvent(testEventType, payload),
	)

	select {
	case received := <-receivedCh:
		assert.Equal(t, payload, received)
	case <-time.After(1 * time.Second):
		t.Fatal("timeout waiting for event via SubscribeFunc")
	}
}

func TestEventUnsubscribe(t *testing.T) {
	eb := event.NewEventBus(nil, nil)
	defer eb.Stop()

	subId, subCh := eb.Subscribe(testEventType)
	eb.Unsubscribe(testEventType, subId)

	// Channel should be closed after unsubscribe
	select {
	case _, ok := <-subCh:
		assert.False(t, ok, "expected channel to be closed")
	case <-time.After(1 * time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	// Publishing after unsubscribe must not panic or block
	eb.Publish(
		testEventType,
		event.NewEvent(testEventType, testPayload{}),
	)
}

func TestEventMultipleSubscribers(t *testing.T) {
	eb := event.NewEventBus(nil, nil)
	defer eb.Stop()

	_, subCh1 := eb.Subscribe(testEventType)
	_, subCh2 := eb.Subscribe(testEventType)

	eb.Publish(
		testEventType,
		event.NewEvent(testEventType, testPayload{Owner: "carol"}),
	)

	for _, subCh := range []<-chan event.Event{subCh1, subCh2} {
		select {
		case evt := <-subCh:
			payload, ok := evt.Data.(testPayload)
			require.True(t, ok)
			assert.Equal(t, "carol", payload.Owner)
		case <-time.After(1 * time.Second):
			t.Fatal("timeout waiting for event on subscriber channel")
		}
	}
}

func TestEventPublishAsync(t *testing.T) {
	eb := event.NewEventBus(nil, nil)
	defer eb.Stop()

	receivedCh := make(chan event.Event, 1)
	eb.SubscribeFunc(testEventType, func(evt event.Event) {
		receivedCh <- evt
	})

	ok := eb.PublishAsync(
		testEventType,
		event.NewEvent(testEventType, testPayload{Owner: "dave"}),
	)
	require.True(t, ok)

	select {
	case evt := <-receivedCh:
		payload, ok := evt.Data.(testPayload)
		require.True(t, ok)
		assert.Equal(t, "dave", payload.Owner)
	case <-time.After(1 * time.Second):
		t.Fatal("timeout waiting for async event")
	}
}

func TestEventStopClosesSubscribers(t *testing.T) {
	eb := event.NewEventBus(nil, nil)

	_, subCh := eb.Subscribe(testEventType)
	eb.Stop()

	select {
	case _, ok := <-subCh:
		assert.False(t, ok, "expected channel to be closed after Stop")
	case <-time.After(1 * time.Second):
		t.Fatal("timeout waiting for channel close after Stop")
	}

	// Bus remains usable after Stop
	_, subCh2 := eb.Subscribe(testEventType)
	eb.Publish(
		testEventType,
		event.NewEvent(testEventType, testPayload{Owner: "erin"}),
	)
	select {
	case evt := <-subCh2:
		payload, ok := evt.Data.(testPayload)
		require.True(t, ok)
		assert.Equal(t, "erin", payload.Owner)
	case <-time.After(1 * time.Second):
		t.Fatal("timeout waiting for event after Stop/reuse")
	}
	eb.Stop()
}

func TestEventMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	eb := event.NewEventBus(registry, nil)
	defer eb.Stop()

	_, subCh := eb.Subscribe(testEventType)
	go func() {
		for range subCh { //nolint:revive
		}
	}()

	eb.Publish(
		testEventType,
		event.NewEvent(testEventType, testPayload{}),
	)
	eb.Publish(
		testEventType,
		event.NewEvent(testEventType, testPayload{}),
	)

	count, err := testutil.GatherAndCount(
		registry,
		"heirloom_eventbus_events_total",
	)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	mfs, err := registry.Gather()
	require.NoError(t, err)
	var found bool
	for _, mf := range mfs {
		if mf.GetName() != "heirloom_eventbus_events_total" {
			continue
		}
		found = true
		require.Len(t, mf.GetMetric(), 1)
		assert.Equal(
			t,
			float64(2),
			mf.GetMetric()[0].GetCounter().GetValue(),
		)
	}
	assert.True(t, found, "events_total metric not registered")
}

func TestEventConcurrentPublish(t *testing.T) {
	eb := event.NewEventBus(nil, nil)
	defer eb.Stop()

	var received sync.WaitGroup
	received.Add(100)
	eb.SubscribeFunc(testEventType, func(event.Event) {
		received.Done()
	})

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 10 {
				eb.Publish(
					testEventType,
					event.NewEvent(testEventType, testPayload{}),
				)
			}
		}()
	}
	wg.Wait()

	done := make(chan struct{})
	go func() {
		received.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for all events to be delivered")
	}
}
