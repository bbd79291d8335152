/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package eventbus bridges the in-process event bus to Redis or NATS so a
// building simulator in another process can drive the dispatcher.
package eventbus

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/friendsincode/elevatord/internal/events"
)

// DefaultPrefix namespaces channels and subjects.
const DefaultPrefix = "elevatord.events."

// wireMessage is the envelope published on both transports.
type wireMessage struct {
	EventType events.EventType `json:"event_type"`
	Payload   events.Payload   `json:"payload"`
	Timestamp time.Time        `json:"timestamp"`
	NodeID    string           `json:"node_id"`
	MessageID string           `json:"message_id"`
}

func marshalMessage(eventType events.EventType, payload events.Payload, nodeID string) ([]byte, error) {
	msg := wireMessage{
		EventType: eventType,
		Payload:   payload,
		Timestamp: time.Now(),
		NodeID:    nodeID,
		MessageID: uuid.NewString(),
	}
	return json.Marshal(msg)
}

func unmarshalMessage(data []byte) (*wireMessage, error) {
	var msg wireMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal event message: %w", err)
	}
	if msg.EventType == "" {
		return nil, fmt.Errorf("unmarshal event message: missing event_type")
	}
	return &msg, nil
}

// NodeID returns hostname-uuid, used to drop our own echoed messages.
func NodeID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "node"
	}
	return host + "-" + uuid.NewString()
}

// channelName maps an event type to its transport channel or subject.
func channelName(prefix string, eventType events.EventType) string {
	return prefix + string(eventType)
}

// eventTypeFrom recovers the event type from a channel or subject name.
func eventTypeFrom(prefix, channel string) (events.EventType, bool) {
	if !strings.HasPrefix(channel, prefix) {
		return "", false
	}
	return events.EventType(strings.TrimPrefix(channel, prefix)), true
}
