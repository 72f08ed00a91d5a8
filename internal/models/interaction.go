// Fanbeam - Creator Audience Attribution and Engagement Analytics
// Copyright 2026 Fanbeam Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fanbeam/fanbeam

package models

import (
	"time"

	"github.com/google/uuid"
)

// InteractionEvent is one immutable row in the analytics ledger. Events are
// written once during ingestion and never updated or deleted by this service.
//
// AudienceMemberID back-references the member the event was resolved to. The
// recorder always sets it; it is nullable in the schema only because the
// column exists before resolution completes inside the transaction.
type InteractionEvent struct {
	ID               uuid.UUID         `json:"id"`
	CreatorID        uuid.UUID         `json:"creator_id"`
	AudienceMemberID *uuid.UUID        `json:"audience_member_id,omitempty"`
	LinkID           *string           `json:"link_id,omitempty"`
	ActionType       ActionType        `json:"action_type"`
	ActionLabel      *string           `json:"action_label,omitempty"`
	Platform         *string           `json:"platform,omitempty"`
	IPAddress        *string           `json:"ip_address,omitempty"`
	UserAgent        *string           `json:"user_agent,omitempty"`
	Referrer         *string           `json:"referrer,omitempty"`
	GeoCity          *string           `json:"geo_city,omitempty"`
	GeoCountry       *string           `json:"geo_country,omitempty"`
	DeviceType       *string           `json:"device_type,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
}
