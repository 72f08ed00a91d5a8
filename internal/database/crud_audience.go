// Fanbeam - Creator Audience Attribution and Engagement Analytics
// Copyright 2026 Fanbeam Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fanbeam/fanbeam

/*
crud_audience.go - Audience Member Operations

This file provides the point lookups and dashboard queries over
audience_members:
  - GetMemberByID / GetMemberByCreatorAndFingerprint: resolution lookups
  - ListAudience: filtered, paginated dashboard listing
  - GetAudienceStats: aggregate counts by member type and intent level
  - IdentifyMember: the identification channel that attaches contact info
    and upgrades member type (never downgrades)

The recent_actions window is stored as a JSON string column; DuckDB stores it
opaquely and the application owns (de)serialization.
*/

//nolint:staticcheck // File documentation, not package doc
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/fanbeam/fanbeam/internal/models"
)

// memberColumns is the canonical select list for audience_members.
const memberColumns = `id, creator_id, member_type, fingerprint, email, phone,
	first_seen_at, last_seen_at, visit_count, engagement_score, intent_level,
	recent_actions, geo_city, geo_country, device_type, spotify_connected`

// rowScanner abstracts *sql.Row and *sql.Rows for shared scan helpers.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanMember scans one audience_members row in memberColumns order.
func scanMember(row rowScanner) (*models.AudienceMember, error) {
	var m models.AudienceMember
	var memberType, intentLevel, recentActions string

	err := row.Scan(
		&m.ID, &m.CreatorID, &memberType, &m.Fingerprint, &m.Email, &m.Phone,
		&m.FirstSeenAt, &m.LastSeenAt, &m.VisitCount, &m.EngagementScore, &intentLevel,
		&recentActions, &m.GeoCity, &m.GeoCountry, &m.DeviceType, &m.SpotifyConnected,
	)
	if err != nil {
		return nil, err
	}

	m.MemberType = models.MemberType(memberType)
	m.IntentLevel = models.IntentLevel(intentLevel)

	if recentActions != "" {
		if err := json.Unmarshal([]byte(recentActions), &m.RecentActions); err != nil {
			return nil, fmt.Errorf("failed to decode recent actions for member %s: %w", m.ID, err)
		}
	}

	return &m, nil
}

// encodeRecentActions serializes the bounded history window for storage.
func encodeRecentActions(actions []models.ActionRecord) (string, error) {
	if len(actions) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(actions)
	if err != nil {
		return "", fmt.Errorf("failed to encode recent actions: %w", err)
	}
	return string(data), nil
}

// GetMemberByID looks up an audience member by its explicit ID.
func (db *DB) GetMemberByID(ctx context.Context, id uuid.UUID) (*models.AudienceMember, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `SELECT ` + memberColumns + ` FROM audience_members WHERE id = ?`
	member, err := scanMember(db.conn.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMemberNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get audience member %s: %w", id, err)
	}
	return member, nil
}

// GetMemberByCreatorAndFingerprint looks up an audience member by the
// (creator, fingerprint) identity key.
func (db *DB) GetMemberByCreatorAndFingerprint(ctx context.Context, creatorID uuid.UUID, fingerprint string) (*models.AudienceMember, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	member, err := getMemberByFingerprintTx(ctx, db.conn, creatorID, fingerprint)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMemberNotFound
	}
	return member, err
}

// querier abstracts *sql.DB and *sql.Tx for lookups shared with the
// transactional resolution path.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// getMemberByFingerprintTx performs the fingerprint point lookup on a DB or
// open transaction. Returns sql.ErrNoRows unchanged so callers can branch on
// the miss.
func getMemberByFingerprintTx(ctx context.Context, q querier, creatorID uuid.UUID, fingerprint string) (*models.AudienceMember, error) {
	query := `SELECT ` + memberColumns + ` FROM audience_members WHERE creator_id = ? AND fingerprint = ?`
	member, err := scanMember(q.QueryRowContext(ctx, query, creatorID, fingerprint))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sql.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get audience member by fingerprint: %w", err)
	}
	return member, nil
}

// AudienceFilter restricts ListAudience results. Zero values mean "no
// filter" for that dimension.
type AudienceFilter struct {
	CreatorID   uuid.UUID
	MemberType  models.MemberType
	IntentLevel models.IntentLevel
	SeenAfter   time.Time
	Limit       int
	Offset      int
}

// buildWhereClause builds the WHERE clause and args for an AudienceFilter.
func buildWhereClause(filter AudienceFilter) (string, []interface{}) {
	conditions := []string{"creator_id = ?"}
	args := []interface{}{filter.CreatorID}

	if filter.MemberType != "" {
		conditions = append(conditions, "member_type = ?")
		args = append(args, string(filter.MemberType))
	}
	if filter.IntentLevel != "" {
		conditions = append(conditions, "intent_level = ?")
		args = append(args, string(filter.IntentLevel))
	}
	if !filter.SeenAfter.IsZero() {
		conditions = append(conditions, "last_seen_at >= ?")
		args = append(args, filter.SeenAfter)
	}

	return "WHERE " + strings.Join(conditions, " AND "), args
}

// ListAudience returns a page of a creator's audience, most engaged first.
func (db *DB) ListAudience(ctx context.Context, filter AudienceFilter) (*models.AudiencePage, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	whereClause, args := buildWhereClause(filter)

	var total int64
	countQuery := `SELECT COUNT(*) FROM audience_members ` + whereClause
	if err := db.conn.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count audience members: %w", err)
	}

	query := `SELECT ` + memberColumns + ` FROM audience_members ` + whereClause +
		` ORDER BY engagement_score DESC, last_seen_at DESC LIMIT ? OFFSET ?`
	rows, err := db.conn.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audience members: %w", err)
	}
	defer func() { _ = rows.Close() }()

	members := make([]models.AudienceMember, 0, limit)
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audience member row: %w", err)
		}
		members = append(members, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audience member rows: %w", err)
	}

	return &models.AudiencePage{
		Members:    members,
		TotalCount: total,
		Limit:      limit,
		Offset:     offset,
	}, nil
}

// GetAudienceStats aggregates a creator's audience by member type and intent
// level.
func (db *DB) GetAudienceStats(ctx context.Context, creatorID uuid.UUID) (*models.AudienceStats, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	stats := &models.AudienceStats{
		ByMemberType:  make(map[string]int64),
		ByIntentLevel: make(map[string]int64),
	}

	var lastSeen sql.NullTime
	summaryQuery := `
		SELECT COUNT(*), COALESCE(SUM(engagement_score), 0), MAX(last_seen_at)
		FROM audience_members
		WHERE creator_id = ?
	`
	if err := db.conn.QueryRowContext(ctx, summaryQuery, creatorID).
		Scan(&stats.TotalMembers, &stats.TotalEngagement, &lastSeen); err != nil {
		return nil, fmt.Errorf("failed to query audience summary: %w", err)
	}
	if lastSeen.Valid {
		stats.LastSeenAt = &lastSeen.Time
	}

	groupQueries := []struct {
		query  string
		target map[string]int64
	}{
		{`SELECT member_type, COUNT(*) FROM audience_members WHERE creator_id = ? GROUP BY member_type`, stats.ByMemberType},
		{`SELECT intent_level, COUNT(*) FROM audience_members WHERE creator_id = ? GROUP BY intent_level`, stats.ByIntentLevel},
	}

	for _, gq := range groupQueries {
		rows, err := db.conn.QueryContext(ctx, gq.query, creatorID)
		if err != nil {
			return nil, fmt.Errorf("failed to query audience breakdown: %w", err)
		}
		for rows.Next() {
			var key string
			var count int64
			if err := rows.Scan(&key, &count); err != nil {
				_ = rows.Close()
				return nil, fmt.Errorf("failed to scan breakdown row: %w", err)
			}
			gq.target[key] = count
		}
		if err := rows.Err(); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("failed to iterate breakdown rows: %w", err)
		}
		_ = rows.Close()
	}

	return stats, nil
}

// IdentifyParams carries the identification channel's inputs. Exactly the
// fields the client proved ownership of should be set.
type IdentifyParams struct {
	CreatorID   uuid.UUID
	Fingerprint string
	MemberType  models.MemberType
	Email       *string
	Phone       *string

	// SpotifyLinked marks a completed Spotify account link.
	SpotifyLinked bool
}

// IdentifyMember attaches contact info to the member behind a fingerprint,
// creating the member first if this is the visitor's first contact. Member
// type only ever upgrades; contact fields follow null-coalescing (a nil
// input never clears a stored value).
func (db *DB) IdentifyMember(ctx context.Context, params IdentifyParams) (*models.AudienceMember, error) {
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

	member, err := resolveOrCreateMemberTx(ctx, tx, params.CreatorID, params.Fingerprint, nil)
	if err != nil {
		return nil, err
	}

	member.MemberType = member.MemberType.Upgrade(params.MemberType)
	if params.Email != nil {
		member.Email = params.Email
	}
	if params.Phone != nil {
		member.Phone = params.Phone
	}
	if params.SpotifyLinked {
		member.SpotifyConnected = true
		member.MemberType = member.MemberType.Upgrade(models.MemberSpotifyLinked)
	}

	now := time.Now().UTC()
	updateQuery := `
		UPDATE audience_members
		SET member_type = ?, email = ?, phone = ?,
			spotify_connected = spotify_connected OR ?, updated_at = ?
		WHERE id = ?
	`
	if _, err := tx.ExecContext(ctx, updateQuery,
		string(member.MemberType), member.Email, member.Phone,
		params.SpotifyLinked, now, member.ID); err != nil {
		return nil, fmt.Errorf("failed to update member identity: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit identification: %w", err)
	}

	return member, nil
}
