// Fanbeam - Creator Audience Attribution and Engagement Analytics
// Copyright 2026 Fanbeam Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fanbeam/fanbeam

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fanbeam/fanbeam/internal/models"
)

// CreateCreator registers a new creator. Handles are stored lowercase so
// lookups are case-insensitive.
func (db *DB) CreateCreator(ctx context.Context, handle, displayName string) (*models.Creator, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	creator := &models.Creator{
		ID:          uuid.New(),
		Handle:      strings.ToLower(handle),
		DisplayName: displayName,
		CreatedAt:   time.Now().UTC(),
	}

	query := `
		INSERT INTO creators (id, handle, display_name, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (handle) DO NOTHING
	`

	result, err := db.conn.ExecContext(ctx, query,
		creator.ID, creator.Handle, creator.DisplayName, creator.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert creator: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check insert result: %w", err)
	}
	if rows == 0 {
		return nil, ErrCreatorHandleTaken
	}

	return creator, nil
}

// GetCreatorByID looks up a creator by its UUID.
func (db *DB) GetCreatorByID(ctx context.Context, id uuid.UUID) (*models.Creator, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `SELECT id, handle, display_name, created_at FROM creators WHERE id = ?`
	return db.scanCreator(db.conn.QueryRowContext(ctx, query, id))
}

// GetCreatorByHandle looks up a creator by handle, case-insensitively.
func (db *DB) GetCreatorByHandle(ctx context.Context, handle string) (*models.Creator, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `SELECT id, handle, display_name, created_at FROM creators WHERE handle = ?`
	return db.scanCreator(db.conn.QueryRowContext(ctx, query, strings.ToLower(handle)))
}

// ListCreators returns all registered creators ordered by handle.
func (db *DB) ListCreators(ctx context.Context) ([]models.Creator, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `SELECT id, handle, display_name, created_at FROM creators ORDER BY handle`
	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query creators: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var creators []models.Creator
	for rows.Next() {
		var c models.Creator
		if err := rows.Scan(&c.ID, &c.Handle, &c.DisplayName, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan creator row: %w", err)
		}
		creators = append(creators, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate creator rows: %w", err)
	}

	return creators, nil
}

// creatorExistsTx checks for the creator inside an open transaction.
func creatorExistsTx(ctx context.Context, tx *sql.Tx, id uuid.UUID) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM creators WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check creator existence: %w", err)
	}
	return true, nil
}

// scanCreator scans a single creator row, mapping sql.ErrNoRows to
// ErrCreatorNotFound.
func (db *DB) scanCreator(row *sql.Row) (*models.Creator, error) {
	var c models.Creator
	err := row.Scan(&c.ID, &c.Handle, &c.DisplayName, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCreatorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan creator: %w", err)
	}
	return &c, nil
}
