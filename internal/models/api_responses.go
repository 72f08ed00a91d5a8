// Fanbeam - Creator Audience Attribution and Engagement Analytics
// Copyright 2026 Fanbeam Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fanbeam/fanbeam

package models

import (
	"time"

	"github.com/google/uuid"
)

// APIResponse is the standardized response wrapper used by all HTTP endpoints.
//
// Status is "success" or "error". Data carries the payload on success; Error
// is populated only when Status is "error".
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata contains response metadata for observability.
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	QueryTimeMS int64     `json:"query_time_ms,omitempty"`
}

// APIError carries structured error details.
//
// Code is machine-readable (VALIDATION_ERROR, NOT_FOUND, RESOLUTION_CONFLICT,
// DATABASE_ERROR). Retryable tells clients whether re-submitting the same
// request is safe; the whole ingestion sequence is idempotent per fingerprint,
// so everything except validation and not-found failures is retryable.
type APIError struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Retryable bool                   `json:"retryable,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// InteractionResult is the success payload for a recorded interaction.
// Fingerprint is returned so the client can cache it (and the member ID)
// for faster resolution on subsequent calls.
type InteractionResult struct {
	EventID          uuid.UUID   `json:"event_id"`
	AudienceMemberID uuid.UUID   `json:"audience_member_id"`
	Fingerprint      string      `json:"fingerprint"`
	EngagementScore  int         `json:"engagement_score"`
	IntentLevel      IntentLevel `json:"intent_level"`
}

// AudiencePage is a paginated audience listing.
type AudiencePage struct {
	Members    []AudienceMember `json:"members"`
	TotalCount int64            `json:"total_count"`
	Limit      int              `json:"limit"`
	Offset     int              `json:"offset"`
}
