// Fanbeam - Creator Audience Attribution and Engagement Analytics
// Copyright 2026 Fanbeam Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fanbeam/fanbeam

package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/fanbeam/fanbeam/internal/models"
)

// EventFilter restricts ListEvents results.
type EventFilter struct {
	CreatorID uuid.UUID
	MemberID  *uuid.UUID
	Type      models.ActionType
	Since     time.Time
	Limit     int
	Offset    int
}

// ListEvents returns a page of the interaction ledger, newest first.
func (db *DB) ListEvents(ctx context.Context, filter EventFilter) ([]models.InteractionEvent, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	limit := filter.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	conditions := []string{"creator_id = ?"}
	args := []interface{}{filter.CreatorID}
	if filter.MemberID != nil {
		conditions = append(conditions, "audience_member_id = ?")
		args = append(args, *filter.MemberID)
	}
	if filter.Type != "" {
		conditions = append(conditions, "action_type = ?")
		args = append(args, string(filter.Type))
	}
	if !filter.Since.IsZero() {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, filter.Since)
	}

	query := `
		SELECT id, creator_id, audience_member_id, link_id,
			action_type, action_label, platform,
			ip_address, user_agent, referrer,
			geo_city, geo_country, device_type,
			metadata, created_at
		FROM interaction_events
		WHERE ` + strings.Join(conditions, " AND ") + `
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`
	rows, err := db.conn.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query interaction events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	events := make([]models.InteractionEvent, 0, limit)
	for rows.Next() {
		var e models.InteractionEvent
		var actionType string
		var metadata *string
		if err := rows.Scan(
			&e.ID, &e.CreatorID, &e.AudienceMemberID, &e.LinkID,
			&actionType, &e.ActionLabel, &e.Platform,
			&e.IPAddress, &e.UserAgent, &e.Referrer,
			&e.GeoCity, &e.GeoCountry, &e.DeviceType,
			&metadata, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		e.ActionType = models.ActionType(actionType)
		if metadata != nil && *metadata != "" {
			if err := json.Unmarshal([]byte(*metadata), &e.Metadata); err != nil {
				return nil, fmt.Errorf("failed to decode event metadata for %s: %w", e.ID, err)
			}
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate event rows: %w", err)
	}

	return events, nil
}

// CountEventsByType aggregates a creator's ledger by action type since the
// given time. A zero since covers the full ledger.
func (db *DB) CountEventsByType(ctx context.Context, creatorID uuid.UUID, since time.Time) (map[string]int64, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `SELECT action_type, COUNT(*) FROM interaction_events WHERE creator_id = ?`
	args := []interface{}{creatorID}
	if !since.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, since)
	}
	query += ` GROUP BY action_type`

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to count events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[string]int64)
	for rows.Next() {
		var actionType string
		var count int64
		if err := rows.Scan(&actionType, &count); err != nil {
			return nil, fmt.Errorf("failed to scan event count row: %w", err)
		}
		counts[actionType] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate event count rows: %w", err)
	}

	return counts, nil
}
