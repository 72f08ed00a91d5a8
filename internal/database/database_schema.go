// Fanbeam - Creator Audience Attribution and Engagement Analytics
// Copyright 2026 Fanbeam Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fanbeam/fanbeam

/*
database_schema.go - Database Schema Management

Tables:
  - creators: registered creator profiles (handle is globally unique)
  - audience_members: one durable row per (creator, fingerprint) or per
    explicitly identified contact; UNIQUE(creator_id, fingerprint) is the
    load-bearing constraint for race-safe identity resolution
  - interaction_events: append-only ledger of attributed actions

Schema Strategy:
All columns are defined in the initial CREATE TABLE statements. Single source
of truth, no migrations to run at startup.
*/

//nolint:staticcheck // File documentation, not package doc
package database

import (
	"context"
	"fmt"
	"time"
)

// schemaContext returns a context with timeout for schema operations
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

// createTables creates the core database tables
func (db *DB) createTables() error {
	ctx, cancel := schemaContext()
	defer cancel()

	for _, query := range tableCreationQueries() {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %s: %w", query, err)
		}
	}

	return nil
}

// tableCreationQueries returns the table creation SQL statements
func tableCreationQueries() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS creators (
			id UUID PRIMARY KEY,
			handle VARCHAR NOT NULL UNIQUE,
			display_name VARCHAR NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS audience_members (
			id UUID PRIMARY KEY,
			creator_id UUID NOT NULL,
			fingerprint VARCHAR,
			member_type VARCHAR NOT NULL DEFAULT 'anonymous',
			email VARCHAR,
			phone VARCHAR,
			geo_city VARCHAR,
			geo_country VARCHAR,
			device_type VARCHAR,
			visit_count INTEGER NOT NULL DEFAULT 0,
			engagement_score INTEGER NOT NULL DEFAULT 0,
			intent_level VARCHAR NOT NULL DEFAULT 'low',
			recent_actions VARCHAR NOT NULL DEFAULT '[]',
			spotify_connected BOOLEAN NOT NULL DEFAULT FALSE,
			first_seen_at TIMESTAMP NOT NULL,
			last_seen_at TIMESTAMP NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			UNIQUE (creator_id, fingerprint)
		)`,
		`CREATE TABLE IF NOT EXISTS interaction_events (
			id UUID PRIMARY KEY,
			creator_id UUID NOT NULL,
			audience_member_id UUID,
			link_id VARCHAR,
			action_type VARCHAR NOT NULL,
			action_label VARCHAR,
			platform VARCHAR,
			ip_address VARCHAR,
			user_agent VARCHAR,
			referrer VARCHAR,
			geo_city VARCHAR,
			geo_country VARCHAR,
			device_type VARCHAR,
			metadata VARCHAR,
			created_at TIMESTAMP NOT NULL
		)`,
	}
}

// createIndexes creates indexes for common query patterns
func (db *DB) createIndexes() error {
	ctx, cancel := schemaContext()
	defer cancel()

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_audience_creator ON audience_members(creator_id)`,
		`CREATE INDEX IF NOT EXISTS idx_audience_creator_seen ON audience_members(creator_id, last_seen_at)`,
		`CREATE INDEX IF NOT EXISTS idx_audience_creator_type ON audience_members(creator_id, member_type)`,
		`CREATE INDEX IF NOT EXISTS idx_events_creator_time ON interaction_events(creator_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_events_member ON interaction_events(audience_member_id)`,
	}

	for _, query := range indexes {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to create index: %s: %w", query, err)
		}
	}

	return nil
}
