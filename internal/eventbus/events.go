// Fanbeam - Creator Audience Attribution and Engagement Analytics
// Copyright 2026 Fanbeam Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fanbeam/fanbeam

// Package eventbus publishes committed interaction events to NATS JetStream
// so downstream consumers (automations, webhooks, exports) can react without
// coupling to the write path. Publishes happen after the database commit;
// the ledger in DuckDB stays the source of truth and a failed publish never
// rolls back an interaction.
package eventbus

import (
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/fanbeam/fanbeam/internal/models"
)

// InteractionMessage is the wire form of one committed interaction event.
type InteractionMessage struct {
	EventID          uuid.UUID         `json:"event_id"`
	CreatorID        uuid.UUID         `json:"creator_id"`
	AudienceMemberID uuid.UUID         `json:"audience_member_id"`
	ActionType       string            `json:"action_type"`
	ActionLabel      string            `json:"action_label,omitempty"`
	Platform         string            `json:"platform,omitempty"`
	LinkID           string            `json:"link_id,omitempty"`
	EngagementScore  int               `json:"engagement_score"`
	IntentLevel      string            `json:"intent_level"`
	MemberType       string            `json:"member_type"`
	Metadata         map[string]string `json:"metadata,omitempty"`
	OccurredAt       time.Time         `json:"occurred_at"`
}

// NewInteractionMessage builds the wire message from the committed event and
// the member state it resolved to.
func NewInteractionMessage(event *models.InteractionEvent, member *models.AudienceMember) *InteractionMessage {
	msg := &InteractionMessage{
		EventID:          event.ID,
		CreatorID:        event.CreatorID,
		AudienceMemberID: member.ID,
		ActionType:       string(event.ActionType),
		EngagementScore:  member.EngagementScore,
		IntentLevel:      string(member.IntentLevel),
		MemberType:       string(member.MemberType),
		Metadata:         event.Metadata,
		OccurredAt:       event.CreatedAt,
	}
	if event.ActionLabel != nil {
		msg.ActionLabel = *event.ActionLabel
	}
	if event.Platform != nil {
		msg.Platform = *event.Platform
	}
	if event.LinkID != nil {
		msg.LinkID = *event.LinkID
	}
	return msg
}

// Subject returns the JetStream subject for this message under the given
// prefix, e.g. "interactions.<creator_id>.tip".
func (m *InteractionMessage) Subject(prefix string) string {
	return fmt.Sprintf("%s.%s.%s", prefix, m.CreatorID, m.ActionType)
}

// Serialize encodes the message for the wire.
func Serialize(msg *InteractionMessage) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize interaction message: %w", err)
	}
	return data, nil
}

// Deserialize decodes a wire message.
func Deserialize(data []byte) (*InteractionMessage, error) {
	var msg InteractionMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to deserialize interaction message: %w", err)
	}
	return &msg, nil
}
