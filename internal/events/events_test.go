// Lucyn - Engineering Team Health Analytics
// Copyright 2026 The Lucyn Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lucyn-dev/lucyn

package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/lucyn-dev/lucyn/internal/models"
)

type memoryAuditStore struct {
	mu     sync.Mutex
	events map[string]*models.AuditEvent
	failN  int
	calls  int
}

func newMemoryAuditStore() *memoryAuditStore {
	return &memoryAuditStore{events: make(map[string]*models.AuditEvent)}
}

func (s *memoryAuditStore) InsertAuditEvent(_ context.Context, ev *models.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.failN > 0 {
		s.failN--
		return errors.New("database locked")
	}
	s.events[ev.ID] = ev
	return nil
}

func (s *memoryAuditStore) get(id string) *models.AuditEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events[id]
}

func (s *memoryAuditStore) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *memoryAuditStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met within 5s")
}

func TestEvent_RoundTrip(t *testing.T) {
	e := NewEvent(TopicIntegrationConnected, "org-1", "user-1", "github", map[string]string{"external_id": "42"})
	data, err := e.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	got, err := Unmarshal(data)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != e.ID || got.Provider != "github" || got.Data["external_id"] != "42" || !got.OccurredAt.Equal(e.OccurredAt) {
		t.Errorf("round trip = %+v", got)
	}

	audit := got.AuditEvent()
	if audit.Type != TopicIntegrationConnected || audit.OrganizationID != "org-1" {
		t.Errorf("AuditEvent() = %+v", audit)
	}
}

func TestEvent_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Event)
	}{
		{"missing id", func(e *Event) { e.ID = "" }},
		{"missing type", func(e *Event) { e.Type = "" }},
		{"missing organization", func(e *Event) { e.OrganizationID = "" }},
		{"missing time", func(e *Event) { e.OccurredAt = time.Time{} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEvent(TopicIntegrationDisconnected, "org-1", "", "slack", nil)
			tt.mutate(e)
			if err := e.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}

	if _, err := Unmarshal([]byte("{not json")); err == nil {
		t.Error("expected decode error")
	}
}

func TestPublisher_ClosedAndInvalid(t *testing.T) {
	bus := NewInProcessBus()
	defer bus.Close()
	p := bus.Publisher()

	if err := p.Publish(context.Background(), &Event{}); err == nil {
		t.Error("invalid event published")
	}

	p.Close()
	err := p.Publish(context.Background(), NewEvent(TopicIntegrationConnected, "org-1", "", "github", nil))
	if !errors.Is(err, ErrPublisherClosed) {
		t.Errorf("error = %v, want ErrPublisherClosed", err)
	}
}

func TestAuditConsumer_InProcess(t *testing.T) {
	bus := NewInProcessBus()
	defer bus.Close()

	store := newMemoryAuditStore()
	store.failN = 1 // first insert fails and is redelivered
	consumer := NewAuditConsumer(bus.Subscriber(), store)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- consumer.Run(ctx) }()

	// gochannel drops messages published before a subscription exists.
	time.Sleep(100 * time.Millisecond)

	pub := bus.Publisher()
	connected := NewEvent(TopicIntegrationConnected, "org-1", "user-1", "github", nil)
	disconnected := NewEvent(TopicIntegrationDisconnected, "org-1", "user-1", "discord", nil)
	for _, e := range []*Event{connected, disconnected} {
		if err := pub.Publish(context.Background(), e); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
	}

	waitFor(t, func() bool { return store.count() == 2 })
	if got := store.get(disconnected.ID); got == nil || got.Provider != "discord" {
		t.Errorf("stored = %+v", got)
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not stop")
	}
}

func TestAuditConsumer_StoreDownBacksOffAndGivesUp(t *testing.T) {
	bus := NewInProcessBus()
	defer bus.Close()

	store := newMemoryAuditStore()
	store.failN = 1000
	consumer := NewAuditConsumer(bus.Subscriber(), store)
	consumer.maxAttempts = 3
	consumer.retryDelay = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- consumer.Run(ctx) }()
	time.Sleep(100 * time.Millisecond)

	start := time.Now()
	ev := NewEvent(TopicIntegrationConnected, "org-1", "user-1", "github", nil)
	if err := bus.Publisher().Publish(context.Background(), ev); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	waitFor(t, func() bool { return store.callCount() >= 3 })
	// Two waits of 50ms and 100ms separate the three attempts.
	if elapsed := time.Since(start); elapsed < 150*time.Millisecond {
		t.Errorf("3 attempts took %v, want at least 150ms of backoff", elapsed)
	}

	// The event was dropped after the last attempt; no further redelivery.
	time.Sleep(300 * time.Millisecond)
	if got := store.callCount(); got != 3 {
		t.Errorf("insert attempts = %d, want 3", got)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not stop")
	}
}

func TestAuditConsumer_Backoff(t *testing.T) {
	c := NewAuditConsumer(nil, nil)
	tests := []struct {
		n    int
		want time.Duration
	}{
		{1, DefaultAuditRetryDelay},
		{2, 2 * DefaultAuditRetryDelay},
		{4, 4 * DefaultAuditRetryDelay},
		{100, maxAuditRetryDelay},
	}
	for _, tt := range tests {
		if got := c.backoff(tt.n); got != tt.want {
			t.Errorf("backoff(%d) = %v, want %v", tt.n, got, tt.want)
		}
	}
}

func TestAuditConsumer_HandleMalformed(t *testing.T) {
	c := NewAuditConsumer(nil, newMemoryAuditStore())
	err := c.Handle(context.Background(), message.NewMessage("m1", []byte(`{"id":""}`)))
	if !errors.Is(err, errMalformed) {
		t.Errorf("error = %v, want errMalformed", err)
	}
}

func TestDurableName(t *testing.T) {
	if got := durableName("lucyn_audit", "integration.connected"); got != "lucyn_audit_integration_connected" {
		t.Errorf("durableName = %q", got)
	}
}

func TestHostPort(t *testing.T) {
	host, port, err := hostPort("nats://127.0.0.1:4222")
	if err != nil || host != "127.0.0.1" || port != 4222 {
		t.Errorf("hostPort = %q, %d, %v", host, port, err)
	}
	if _, _, err := hostPort("nats://localhost"); err == nil {
		t.Error("expected error without port")
	}
}

func TestNATSBus_EndToEnd(t *testing.T) {
	srv, err := NewEmbeddedServer("nats://127.0.0.1:0", t.TempDir())
	if err != nil {
		t.Fatalf("NewEmbeddedServer() error = %v", err)
	}
	defer srv.Shutdown()
	if !srv.IsRunning() {
		t.Fatal("server not running")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	bus, err := NewNATSBus(ctx, srv.ClientURL(), "TEST_EVENTS")
	if err != nil {
		t.Fatalf("NewNATSBus() error = %v", err)
	}
	defer bus.Close()
	if bus.Transport() != "nats" {
		t.Errorf("Transport() = %q", bus.Transport())
	}

	// The stream retains messages, so publishing before subscribing is fine.
	e := NewEvent(TopicIntegrationConnected, "org-9", "user-9", "slack", map[string]string{"team": "T1"})
	if err := bus.Publisher().Publish(ctx, e); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	store := newMemoryAuditStore()
	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	go func() { _ = NewAuditConsumer(bus.Subscriber(), store).Run(runCtx) }()

	waitFor(t, func() bool { return store.get(e.ID) != nil })
	if got := store.get(e.ID); got.Data["team"] != "T1" {
		t.Errorf("stored = %+v", got)
	}
}
