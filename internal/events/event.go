// Lucyn - Engineering Team Health Analytics
// Copyright 2026 The Lucyn Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lucyn-dev/lucyn

package events

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/lucyn-dev/lucyn/internal/models"
)

// Topics.
const (
	TopicIntegrationConnected    = "integration.connected"
	TopicIntegrationDisconnected = "integration.disconnected"
)

// Topics lists every topic the audit trail records.
var Topics = []string{TopicIntegrationConnected, TopicIntegrationDisconnected}

// StreamSubjects are the JetStream subjects captured by the events stream.
var StreamSubjects = []string{"integration.>"}

// Event is an integration lifecycle event. Type doubles as the topic.
type Event struct {
	ID             string            `json:"id"`
	Type           string            `json:"type"`
	OrganizationID string            `json:"organization_id"`
	UserID         string            `json:"user_id,omitempty"`
	Provider       string            `json:"provider,omitempty"`
	OccurredAt     time.Time         `json:"occurred_at"`
	Data           map[string]string `json:"data,omitempty"`
}

// NewEvent stamps a new event with an ID and the current time.
func NewEvent(eventType, orgID, userID, provider string, data map[string]string) *Event {
	return &Event{
		ID:             uuid.New().String(),
		Type:           eventType,
		OrganizationID: orgID,
		UserID:         userID,
		Provider:       provider,
		OccurredAt:     time.Now().UTC(),
		Data:           data,
	}
}

// Validate checks the fields consumers rely on.
func (e *Event) Validate() error {
	switch {
	case e.ID == "":
		return fmt.Errorf("event id is required")
	case e.Type == "":
		return fmt.Errorf("event type is required")
	case e.OrganizationID == "":
		return fmt.Errorf("event organization_id is required")
	case e.OccurredAt.IsZero():
		return fmt.Errorf("event occurred_at is required")
	}
	return nil
}

// Marshal encodes the event as JSON.
func (e *Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Unmarshal decodes and validates an event.
func Unmarshal(data []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return &e, nil
}

// AuditEvent converts the event to its persisted form.
func (e *Event) AuditEvent() *models.AuditEvent {
	return &models.AuditEvent{
		ID:             e.ID,
		OrganizationID: e.OrganizationID,
		UserID:         e.UserID,
		Type:           e.Type,
		Provider:       e.Provider,
		Data:           e.Data,
		OccurredAt:     e.OccurredAt,
	}
}
