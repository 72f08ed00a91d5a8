// Fanbeam - Creator Audience Attribution and Engagement Analytics
// Copyright 2026 Fanbeam Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fanbeam/fanbeam

package database

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestCreateAndGetCreator(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	created, err := db.CreateCreator(ctx, "LunaWaves", "Luna Waves")
	if err != nil {
		t.Fatalf("CreateCreator returned error: %v", err)
	}
	if created.Handle != "lunawaves" {
		t.Errorf("expected handle stored lowercase, got %s", created.Handle)
	}

	byID, err := db.GetCreatorByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetCreatorByID returned error: %v", err)
	}
	if byID.DisplayName != "Luna Waves" {
		t.Errorf("expected display name Luna Waves, got %s", byID.DisplayName)
	}

	// Handle lookups are case-insensitive.
	byHandle, err := db.GetCreatorByHandle(ctx, "LUNAWAVES")
	if err != nil {
		t.Fatalf("GetCreatorByHandle returned error: %v", err)
	}
	if byHandle.ID != created.ID {
		t.Errorf("expected same creator by handle, got %s want %s", byHandle.ID, created.ID)
	}
}

func TestCreateCreatorDuplicateHandle(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if _, err := db.CreateCreator(ctx, "taken", "First"); err != nil {
		t.Fatalf("CreateCreator returned error: %v", err)
	}

	_, err := db.CreateCreator(ctx, "Taken", "Second")
	if !errors.Is(err, ErrCreatorHandleTaken) {
		t.Fatalf("expected ErrCreatorHandleTaken, got %v", err)
	}
}

func TestGetCreatorNotFound(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if _, err := db.GetCreatorByID(ctx, uuid.New()); !errors.Is(err, ErrCreatorNotFound) {
		t.Errorf("expected ErrCreatorNotFound by ID, got %v", err)
	}
	if _, err := db.GetCreatorByHandle(ctx, "nobody"); !errors.Is(err, ErrCreatorNotFound) {
		t.Errorf("expected ErrCreatorNotFound by handle, got %v", err)
	}
}

func TestListCreatorsOrderedByHandle(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	for _, handle := range []string{"zeta", "alpha", "mid"} {
		if _, err := db.CreateCreator(ctx, handle, handle); err != nil {
			t.Fatalf("CreateCreator(%s) returned error: %v", handle, err)
		}
	}

	creators, err := db.ListCreators(ctx)
	if err != nil {
		t.Fatalf("ListCreators returned error: %v", err)
	}
	if len(creators) != 3 {
		t.Fatalf("expected 3 creators, got %d", len(creators))
	}
	want := []string{"alpha", "mid", "zeta"}
	for i, handle := range want {
		if creators[i].Handle != handle {
			t.Errorf("creators[%d].Handle = %s, want %s", i, creators[i].Handle, handle)
		}
	}
}
