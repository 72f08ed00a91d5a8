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

	"github.com/fanbeam/fanbeam/internal/engagement"
	"github.com/fanbeam/fanbeam/internal/models"
)

func TestGetMemberByIDNotFound(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.GetMemberByID(context.Background(), uuid.New())
	if !errors.Is(err, ErrMemberNotFound) {
		t.Fatalf("expected ErrMemberNotFound, got %v", err)
	}
}

func TestBuildWhereClause(t *testing.T) {
	creatorID := uuid.New()

	tests := []struct {
		name       string
		filter     AudienceFilter
		wantClause string
		wantArgs   int
	}{
		{
			name:       "creator only",
			filter:     AudienceFilter{CreatorID: creatorID},
			wantClause: "WHERE creator_id = ?",
			wantArgs:   1,
		},
		{
			name:       "member type",
			filter:     AudienceFilter{CreatorID: creatorID, MemberType: models.MemberEmail},
			wantClause: "WHERE creator_id = ? AND member_type = ?",
			wantArgs:   2,
		},
		{
			name: "all filters",
			filter: AudienceFilter{
				CreatorID:   creatorID,
				MemberType:  models.MemberEmail,
				IntentLevel: models.IntentHigh,
			},
			wantClause: "WHERE creator_id = ? AND member_type = ? AND intent_level = ?",
			wantArgs:   3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clause, args := buildWhereClause(tt.filter)
			if clause != tt.wantClause {
				t.Errorf("clause = %q, want %q", clause, tt.wantClause)
			}
			if len(args) != tt.wantArgs {
				t.Errorf("len(args) = %d, want %d", len(args), tt.wantArgs)
			}
		})
	}
}

func TestListAudienceOrderingAndPagination(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	creator := createTestCreator(t, db, "listing")

	// Three members with different scores via different action types.
	actions := map[string]models.ActionType{
		"fp-low":  models.ActionOther,  // weight 1
		"fp-mid":  models.ActionSocial, // weight 3
		"fp-high": models.ActionTip,    // weight 10
	}
	for fp, actionType := range actions {
		if _, _, err := db.RecordInteraction(ctx, RecordInteractionParams{
			CreatorID:   creator.ID,
			Fingerprint: fp,
			Action:      engagement.Action{Type: actionType},
		}); err != nil {
			t.Fatalf("RecordInteraction(%s) returned error: %v", fp, err)
		}
	}

	page, err := db.ListAudience(ctx, AudienceFilter{CreatorID: creator.ID})
	if err != nil {
		t.Fatalf("ListAudience returned error: %v", err)
	}
	if page.TotalCount != 3 {
		t.Errorf("expected total 3, got %d", page.TotalCount)
	}
	if len(page.Members) != 3 {
		t.Fatalf("expected 3 members, got %d", len(page.Members))
	}
	// Most engaged first.
	if *page.Members[0].Fingerprint != "fp-high" || *page.Members[2].Fingerprint != "fp-low" {
		t.Errorf("unexpected ordering: %s, %s, %s",
			*page.Members[0].Fingerprint, *page.Members[1].Fingerprint, *page.Members[2].Fingerprint)
	}

	// Pagination keeps the total but trims the page.
	page, err = db.ListAudience(ctx, AudienceFilter{CreatorID: creator.ID, Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("ListAudience with offset returned error: %v", err)
	}
	if page.TotalCount != 3 || len(page.Members) != 1 {
		t.Errorf("expected total 3 with 1 member on page, got total=%d page=%d", page.TotalCount, len(page.Members))
	}
}

func TestGetAudienceStats(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	creator := createTestCreator(t, db, "stats")

	for _, fp := range []string{"fp-a", "fp-b"} {
		if _, _, err := db.RecordInteraction(ctx, RecordInteractionParams{
			CreatorID:   creator.ID,
			Fingerprint: fp,
			Action:      engagement.Action{Type: models.ActionSocial},
		}); err != nil {
			t.Fatalf("RecordInteraction returned error: %v", err)
		}
	}
	email := "fan@example.com"
	if _, err := db.IdentifyMember(ctx, IdentifyParams{
		CreatorID:   creator.ID,
		Fingerprint: "fp-a",
		MemberType:  models.MemberEmail,
		Email:       &email,
	}); err != nil {
		t.Fatalf("IdentifyMember returned error: %v", err)
	}

	stats, err := db.GetAudienceStats(ctx, creator.ID)
	if err != nil {
		t.Fatalf("GetAudienceStats returned error: %v", err)
	}

	if stats.TotalMembers != 2 {
		t.Errorf("expected 2 members, got %d", stats.TotalMembers)
	}
	wantEngagement := int64(2 * engagement.DefaultConfig().Weight(models.ActionSocial))
	if stats.TotalEngagement != wantEngagement {
		t.Errorf("expected total engagement %d, got %d", wantEngagement, stats.TotalEngagement)
	}
	if stats.ByMemberType["email"] != 1 || stats.ByMemberType["anonymous"] != 1 {
		t.Errorf("unexpected member type breakdown: %v", stats.ByMemberType)
	}
	if stats.LastSeenAt == nil {
		t.Error("expected last seen timestamp")
	}
}

func TestIdentifyMemberUpgradesType(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	creator := createTestCreator(t, db, "identify")

	// Identification on a fingerprint with no prior contact creates the row.
	email := "early@example.com"
	member, err := db.IdentifyMember(ctx, IdentifyParams{
		CreatorID:   creator.ID,
		Fingerprint: "fp-id",
		MemberType:  models.MemberEmail,
		Email:       &email,
	})
	if err != nil {
		t.Fatalf("IdentifyMember returned error: %v", err)
	}
	if member.MemberType != models.MemberEmail {
		t.Errorf("expected email member, got %s", member.MemberType)
	}
	if member.Email == nil || *member.Email != email {
		t.Errorf("expected email stored, got %v", member.Email)
	}

	// A Spotify link upgrades further and flips the flag.
	linked, err := db.IdentifyMember(ctx, IdentifyParams{
		CreatorID:     creator.ID,
		Fingerprint:   "fp-id",
		MemberType:    models.MemberSpotifyLinked,
		SpotifyLinked: true,
	})
	if err != nil {
		t.Fatalf("IdentifyMember returned error: %v", err)
	}
	if linked.MemberType != models.MemberSpotifyLinked {
		t.Errorf("expected spotify_linked member, got %s", linked.MemberType)
	}
	if !linked.SpotifyConnected {
		t.Error("expected spotify_connected true after link")
	}
	if linked.Email == nil || *linked.Email != email {
		t.Errorf("expected email retained through upgrade, got %v", linked.Email)
	}

	// A later, weaker signal never downgrades.
	phone := "+15550100"
	after, err := db.IdentifyMember(ctx, IdentifyParams{
		CreatorID:   creator.ID,
		Fingerprint: "fp-id",
		MemberType:  models.MemberSMS,
		Phone:       &phone,
	})
	if err != nil {
		t.Fatalf("IdentifyMember returned error: %v", err)
	}
	if after.MemberType != models.MemberSpotifyLinked {
		t.Errorf("expected type to stay spotify_linked, got %s", after.MemberType)
	}
	if after.Phone == nil || *after.Phone != phone {
		t.Errorf("expected phone attached, got %v", after.Phone)
	}
	if !after.SpotifyConnected {
		t.Error("spotify_connected must survive later identifications")
	}
}

func TestIdentifyMemberUnknownCreator(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.IdentifyMember(context.Background(), IdentifyParams{
		CreatorID:   uuid.New(),
		Fingerprint: "fp-x",
		MemberType:  models.MemberEmail,
	})
	if !errors.Is(err, ErrCreatorNotFound) {
		t.Fatalf("expected ErrCreatorNotFound, got %v", err)
	}
}
