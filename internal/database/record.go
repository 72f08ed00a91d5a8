// Fanbeam - Creator Audience Attribution and Engagement Analytics
// Copyright 2026 Fanbeam Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fanbeam/fanbeam

/*
record.go - Attribution Write Path

RecordInteraction is the single write path for attributed actions. Inside one
transaction it:

 1. validates the creator reference,
 2. resolves the fingerprint to exactly one audience member (resolve.go),
 3. applies the engagement accumulator to compute the member's next state,
 4. persists the member update with an atomic score increment, and
 5. appends one interaction_events ledger row.

A failure at any step rolls the whole transaction back: no event without a
member, no member update without its event. RecordVisit is the lighter
sibling that bumps visit_count without appending to the ledger.
*/

//nolint:staticcheck // File documentation, not package doc
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/fanbeam/fanbeam/internal/engagement"
	"github.com/fanbeam/fanbeam/internal/logging"
	"github.com/fanbeam/fanbeam/internal/metrics"
	"github.com/fanbeam/fanbeam/internal/models"
)

// eventInsertHook runs just before the ledger insert. Tests use it to inject
// faults and verify full rollback.
var eventInsertHook func() error

// RecordInteractionParams carries one inbound interaction through the write
// path. Fingerprint must already be derived from the request signals.
type RecordInteractionParams struct {
	CreatorID        uuid.UUID
	Fingerprint      string
	ExplicitMemberID *uuid.UUID

	Action engagement.Action

	LinkID    *string
	IPAddress *string
	UserAgent *string
	Referrer  *string
	Metadata  map[string]string
}

// RecordInteraction resolves the visitor's identity, accumulates engagement,
// and appends the ledger row, all in one transaction. Returns the updated
// member and the recorded event.
func (db *DB) RecordInteraction(ctx context.Context, params RecordInteractionParams) (*models.AudienceMember, *models.InteractionEvent, error) {
	start := time.Now()
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	mu := db.acquireMemberLock(params.CreatorID.String() + ":" + params.Fingerprint)
	defer db.releaseMemberLock(mu)

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	exists, err := creatorExistsTx(ctx, tx, params.CreatorID)
	if err != nil {
		return nil, nil, err
	}
	if !exists {
		return nil, nil, ErrCreatorNotFound
	}

	member, err := resolveOrCreateMemberTx(ctx, tx, params.CreatorID, params.Fingerprint, params.ExplicitMemberID)
	if err != nil {
		return nil, nil, err
	}

	updated, weight := db.scoring.Apply(*member, params.Action)

	recentJSON, err := encodeRecentActions(updated.RecentActions)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	// Score uses a relative increment so concurrent writers to the same row
	// never lose an update.
	updateQuery := `
		UPDATE audience_members
		SET engagement_score = engagement_score + ?,
			intent_level = ?,
			recent_actions = ?,
			geo_city = ?,
			geo_country = ?,
			device_type = ?,
			spotify_connected = spotify_connected OR ?,
			last_seen_at = ?,
			updated_at = ?
		WHERE id = ?
	`
	if _, err := tx.ExecContext(ctx, updateQuery,
		weight, string(updated.IntentLevel), recentJSON,
		updated.GeoCity, updated.GeoCountry, updated.DeviceType,
		updated.SpotifyConnected, updated.LastSeenAt, now, updated.ID); err != nil {
		return nil, nil, fmt.Errorf("failed to update audience member: %w", err)
	}

	if eventInsertHook != nil {
		if err := eventInsertHook(); err != nil {
			return nil, nil, fmt.Errorf("failed to record event: %w", err)
		}
	}

	event, err := insertEventTx(ctx, tx, params, updated.ID, now)
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit interaction: %w", err)
	}

	metrics.InteractionsRecorded.WithLabelValues(string(params.Action.Type)).Inc()
	metrics.RecordTx("record_interaction", time.Since(start))

	logging.Debug().
		Str("creator_id", params.CreatorID.String()).
		Str("member_id", updated.ID.String()).
		Str("action_type", string(params.Action.Type)).
		Int("score", updated.EngagementScore).
		Msg("Interaction recorded")

	return &updated, event, nil
}

// insertEventTx appends one ledger row inside the open transaction.
func insertEventTx(ctx context.Context, tx *sql.Tx, params RecordInteractionParams, memberID uuid.UUID, now time.Time) (*models.InteractionEvent, error) {
	event := &models.InteractionEvent{
		ID:               uuid.New(),
		CreatorID:        params.CreatorID,
		AudienceMemberID: &memberID,
		LinkID:           params.LinkID,
		ActionType:       params.Action.Type,
		ActionLabel:      nullableString(params.Action.Label),
		Platform:         nullableString(params.Action.Platform),
		IPAddress:        params.IPAddress,
		UserAgent:        params.UserAgent,
		Referrer:         params.Referrer,
		GeoCity:          params.Action.GeoCity,
		GeoCountry:       params.Action.GeoCountry,
		DeviceType:       params.Action.DeviceType,
		Metadata:         params.Metadata,
		CreatedAt:        now,
	}

	var metadataJSON *string
	if len(event.Metadata) > 0 {
		data, err := json.Marshal(event.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to encode event metadata: %w", err)
		}
		s := string(data)
		metadataJSON = &s
	}

	insertQuery := `
		INSERT INTO interaction_events (
			id, creator_id, audience_member_id, link_id,
			action_type, action_label, platform,
			ip_address, user_agent, referrer,
			geo_city, geo_country, device_type,
			metadata, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := tx.ExecContext(ctx, insertQuery,
		event.ID, event.CreatorID, event.AudienceMemberID, event.LinkID,
		string(event.ActionType), event.ActionLabel, event.Platform,
		event.IPAddress, event.UserAgent, event.Referrer,
		event.GeoCity, event.GeoCountry, event.DeviceType,
		metadataJSON, event.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to insert interaction event: %w", err)
	}

	return event, nil
}

// nullableString maps empty strings to NULL columns.
func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// RecordVisitParams carries a profile visit through the write path.
type RecordVisitParams struct {
	CreatorID        uuid.UUID
	Fingerprint      string
	ExplicitMemberID *uuid.UUID

	GeoCity    *string
	GeoCountry *string
	DeviceType *string
}

// RecordVisit increments a member's visit counter, resolving identity the
// same way as RecordInteraction but without touching the event ledger or
// engagement score. Intent level is re-derived because visit count feeds it.
func (db *DB) RecordVisit(ctx context.Context, params RecordVisitParams) (*models.AudienceMember, error) {
	start := time.Now()
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	mu := db.acquireMemberLock(params.CreatorID.String() + ":" + params.Fingerprint)
	defer db.releaseMemberLock(mu)

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	exists, err := creatorExistsTx(ctx, tx, params.CreatorID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrCreatorNotFound
	}

	member, err := resolveOrCreateMemberTx(ctx, tx, params.CreatorID, params.Fingerprint, params.ExplicitMemberID)
	if err != nil {
		return nil, err
	}

	member.VisitCount++
	member.IntentLevel = db.scoring.DeriveIntent(member.VisitCount, len(member.RecentActions))
	if params.GeoCity != nil {
		member.GeoCity = params.GeoCity
	}
	if params.GeoCountry != nil {
		member.GeoCountry = params.GeoCountry
	}
	if params.DeviceType != nil {
		member.DeviceType = params.DeviceType
	}

	now := time.Now().UTC()
	member.LastSeenAt = now

	updateQuery := `
		UPDATE audience_members
		SET visit_count = visit_count + 1,
			intent_level = ?,
			geo_city = ?,
			geo_country = ?,
			device_type = ?,
			last_seen_at = ?,
			updated_at = ?
		WHERE id = ?
	`
	if _, err := tx.ExecContext(ctx, updateQuery,
		string(member.IntentLevel), member.GeoCity, member.GeoCountry,
		member.DeviceType, now, now, member.ID); err != nil {
		return nil, fmt.Errorf("failed to update visit count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit visit: %w", err)
	}

	metrics.VisitsRecorded.Inc()
	metrics.RecordTx("record_visit", time.Since(start))

	return member, nil
}
