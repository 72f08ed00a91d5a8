// Fanbeam - Creator Audience Attribution and Engagement Analytics
// Copyright 2026 Fanbeam Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fanbeam/fanbeam

/*
resolve.go - Audience Identity Resolution

This file implements the find-or-create protocol that maps a
(creator, fingerprint) pair to exactly one audience_members row, correct
under concurrent first-visit requests for the same fingerprint:

 1. An explicit member ID from the client short-circuits the lookup.
 2. Otherwise look up by (creator_id, fingerprint).
 3. On a miss, insert a fresh anonymous row with insert-or-skip semantics
    (ON CONFLICT DO NOTHING on the uniqueness constraint), so a concurrent
    winner's row is never an error.
 4. If the insert was skipped, re-read the winner's row. A miss on that
    fallback read is ErrMemberResolution: roll back and let the client
    retry.

The uniqueness constraint on (creator_id, fingerprint) is the concurrency
control primitive; callers run this inside the same transaction as the
subsequent member update and event insert.
*/

//nolint:staticcheck // File documentation, not package doc
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fanbeam/fanbeam/internal/logging"
	"github.com/fanbeam/fanbeam/internal/metrics"
	"github.com/fanbeam/fanbeam/internal/models"
)

// resolveOrCreateMemberTx resolves a fingerprint to exactly one audience
// member row inside an open transaction, creating an anonymous row on first
// contact. A non-nil explicitID is tried first so clients that cached their
// resolved identity skip the fingerprint lookup.
func resolveOrCreateMemberTx(ctx context.Context, tx *sql.Tx, creatorID uuid.UUID, fingerprint string, explicitID *uuid.UUID) (*models.AudienceMember, error) {
	if explicitID != nil {
		query := `SELECT ` + memberColumns + ` FROM audience_members WHERE id = ? AND creator_id = ?`
		member, err := scanMember(tx.QueryRowContext(ctx, query, *explicitID, creatorID))
		if err == nil {
			return member, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("failed to look up explicit member ID: %w", err)
		}
		// Stale client cache. Fall through to fingerprint resolution.
		logging.Debug().
			Str("member_id", explicitID.String()).
			Str("creator_id", creatorID.String()).
			Msg("Explicit member ID not found, resolving by fingerprint")
	}

	member, err := getMemberByFingerprintTx(ctx, tx, creatorID, fingerprint)
	if err == nil {
		return member, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	now := time.Now().UTC()
	fresh := &models.AudienceMember{
		ID:          uuid.New(),
		CreatorID:   creatorID,
		MemberType:  models.MemberAnonymous,
		Fingerprint: &fingerprint,
		FirstSeenAt: now,
		LastSeenAt:  now,
		IntentLevel: models.IntentLow,
	}

	insertQuery := `
		INSERT INTO audience_members (
			id, creator_id, fingerprint, member_type,
			visit_count, engagement_score, intent_level, recent_actions,
			spotify_connected, first_seen_at, last_seen_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, 0, 0, ?, '[]', FALSE, ?, ?, ?, ?)
		ON CONFLICT (creator_id, fingerprint) DO NOTHING
	`

	result, err := tx.ExecContext(ctx, insertQuery,
		fresh.ID, fresh.CreatorID, fingerprint, string(fresh.MemberType),
		string(fresh.IntentLevel), now, now, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to insert audience member: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check insert result: %w", err)
	}
	if rows > 0 {
		metrics.AudienceMembersCreated.Inc()
		return fresh, nil
	}

	// Lost the first-contact race. Re-read the winner's row.
	metrics.ResolutionRaceRereads.Inc()
	member, err = getMemberByFingerprintTx(ctx, tx, creatorID, fingerprint)
	if errors.Is(err, sql.ErrNoRows) {
		metrics.ResolutionFailures.Inc()
		logging.Error().
			Str("creator_id", creatorID.String()).
			Str("fingerprint", fingerprint).
			Msg("Fallback lookup after skipped insert found no row")
		return nil, ErrMemberResolution
	}
	if err != nil {
		return nil, err
	}
	return member, nil
}
