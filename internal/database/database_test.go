// Fanbeam - Creator Audience Attribution and Engagement Analytics
// Copyright 2026 Fanbeam Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fanbeam/fanbeam

package database

import (
	"context"
	"testing"
	"time"

	"github.com/fanbeam/fanbeam/internal/config"
	"github.com/fanbeam/fanbeam/internal/engagement"
	"github.com/fanbeam/fanbeam/internal/models"
)

// testDBSemaphore limits concurrent database creation to prevent resource
// exhaustion in CI. Many concurrent DuckDB CGO calls can hang under resource
// pressure, so tests are fully serialized.
var testDBSemaphore = make(chan struct{}, 1)

// setupTestDB creates a new in-memory test database. The semaphore is held
// for the entire test lifecycle, not just creation, so only one test has an
// active DuckDB connection at a time.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	testDBSemaphore <- struct{}{}
	t.Cleanup(func() {
		<-testDBSemaphore
	})

	cfg := &config.DatabaseConfig{
		Path:         ":memory:",
		MaxMemory:    "1GB",
		QueryTimeout: 30 * time.Second,
	}

	db, err := New(cfg, engagement.DefaultConfig())
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Failed to close test database: %v", err)
		}
	})

	return db
}

// createTestCreator registers a creator for use in tests.
func createTestCreator(t *testing.T, db *DB, handle string) *models.Creator {
	t.Helper()

	creator, err := db.CreateCreator(context.Background(), handle, "Test "+handle)
	if err != nil {
		t.Fatalf("Failed to create test creator %s: %v", handle, err)
	}
	return creator
}

func TestNewInitializesSchema(t *testing.T) {
	db := setupTestDB(t)

	// All three tables must exist and be queryable.
	for _, table := range []string{"creators", "audience_members", "interaction_events"} {
		var count int64
		query := "SELECT COUNT(*) FROM " + table
		if err := db.conn.QueryRowContext(context.Background(), query).Scan(&count); err != nil {
			t.Errorf("table %s not queryable: %v", table, err)
		}
		if count != 0 {
			t.Errorf("expected empty table %s, got %d rows", table, count)
		}
	}
}

func TestPing(t *testing.T) {
	db := setupTestDB(t)

	if err := db.Ping(context.Background()); err != nil {
		t.Errorf("Ping returned error: %v", err)
	}
}

func TestEnsureContextAddsDeadline(t *testing.T) {
	db := setupTestDB(t)

	ctx, cancel := db.ensureContext(context.Background())
	defer cancel()

	deadline, ok := ctx.Deadline()
	if !ok {
		t.Fatal("expected ensureContext to add a deadline")
	}
	if time.Until(deadline) > 31*time.Second {
		t.Errorf("deadline too far in the future: %s", time.Until(deadline))
	}
}

func TestEnsureContextKeepsExistingDeadline(t *testing.T) {
	db := setupTestDB(t)

	parent, parentCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer parentCancel()

	ctx, cancel := db.ensureContext(parent)
	defer cancel()

	deadline, ok := ctx.Deadline()
	if !ok {
		t.Fatal("expected deadline to be preserved")
	}
	if time.Until(deadline) > 6*time.Second {
		t.Errorf("expected caller's 5s deadline to win, got %s", time.Until(deadline))
	}
}
