// Fanbeam - Creator Audience Attribution and Engagement Analytics
// Copyright 2026 Fanbeam Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fanbeam/fanbeam

// Package models defines data structures used throughout the Fanbeam application.
// These models represent creators, audience members, interaction events, and
// API responses.
package models

import (
	"time"

	"github.com/google/uuid"
)

// MemberType classifies how an audience member has been identified.
// Types upgrade monotonically as identity signals accrue; a member is never
// silently downgraded.
type MemberType string

const (
	MemberAnonymous     MemberType = "anonymous"
	MemberEmail         MemberType = "email"
	MemberSMS           MemberType = "sms"
	MemberSpotifyLinked MemberType = "spotify_linked"
	MemberCustomer      MemberType = "customer"
)

// memberTypeRank orders member types for monotonic upgrades. Email and SMS
// share a rank: both mean "directly reachable" and neither replaces the other.
var memberTypeRank = map[MemberType]int{
	MemberAnonymous:     0,
	MemberEmail:         1,
	MemberSMS:           1,
	MemberSpotifyLinked: 2,
	MemberCustomer:      3,
}

// Valid reports whether t is a known member type.
func (t MemberType) Valid() bool {
	_, ok := memberTypeRank[t]
	return ok
}

// Upgrade returns the higher-ranked of the current and proposed types.
// Equal ranks keep the current type, so an email member stays an email
// member when an SMS signal arrives.
func (t MemberType) Upgrade(proposed MemberType) MemberType {
	if memberTypeRank[proposed] > memberTypeRank[t] {
		return proposed
	}
	return t
}

// IntentLevel is a coarse classification of how likely a member is to act,
// derived deterministically from visit count and recent activity density.
type IntentLevel string

const (
	IntentLow    IntentLevel = "low"
	IntentMedium IntentLevel = "medium"
	IntentHigh   IntentLevel = "high"
)

// ActionType identifies the kind of interaction a visitor performed.
type ActionType string

const (
	ActionListen ActionType = "listen"
	ActionSocial ActionType = "social"
	ActionTip    ActionType = "tip"
	ActionOther  ActionType = "other"
)

// Valid reports whether t is a known action type.
func (t ActionType) Valid() bool {
	switch t {
	case ActionListen, ActionSocial, ActionTip, ActionOther:
		return true
	}
	return false
}

// ActionRecord is one entry in a member's bounded recent-activity history.
// The history is a sliding window, newest first, not an append-only log;
// the full ledger lives in interaction_events.
type ActionRecord struct {
	Label      string     `json:"label,omitempty"`
	Type       ActionType `json:"type"`
	Platform   string     `json:"platform,omitempty"`
	Marker     string     `json:"marker,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
}

// MaxRecentActions bounds the recent-activity window on an audience member.
const MaxRecentActions = 5

// AudienceMember is the durable record of one visitor's cumulative
// relationship with one creator. Anonymous members are keyed by
// (creator_id, fingerprint); identified members may carry email or phone.
//
// Invariants upheld by the ingestion pipeline:
//   - at most one row per (creator_id, fingerprint) for non-empty fingerprints
//   - FirstSeenAt is set once at creation and never mutated
//   - LastSeenAt and EngagementScore only ever advance
//   - SpotifyConnected never transitions true to false
//   - RecentActions holds at most MaxRecentActions entries, newest first
type AudienceMember struct {
	ID               uuid.UUID      `json:"id"`
	CreatorID        uuid.UUID      `json:"creator_id"`
	MemberType       MemberType     `json:"member_type"`
	Fingerprint      *string        `json:"fingerprint,omitempty"`
	Email            *string        `json:"email,omitempty"`
	Phone            *string        `json:"phone,omitempty"`
	FirstSeenAt      time.Time      `json:"first_seen_at"`
	LastSeenAt       time.Time      `json:"last_seen_at"`
	VisitCount       int            `json:"visit_count"`
	EngagementScore  int            `json:"engagement_score"`
	IntentLevel      IntentLevel    `json:"intent_level"`
	RecentActions    []ActionRecord `json:"recent_actions"`
	GeoCity          *string        `json:"geo_city,omitempty"`
	GeoCountry       *string        `json:"geo_country,omitempty"`
	DeviceType       *string        `json:"device_type,omitempty"`
	SpotifyConnected bool           `json:"spotify_connected"`
}

// Creator is the owning account for an audience. Kept minimal: Fanbeam only
// needs enough to validate that interaction writes reference a real creator.
type Creator struct {
	ID          uuid.UUID `json:"id"`
	Handle      string    `json:"handle"`
	DisplayName string    `json:"display_name,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// AudienceStats aggregates a creator's audience for the dashboard.
type AudienceStats struct {
	TotalMembers    int64            `json:"total_members"`
	TotalEngagement int64            `json:"total_engagement"`
	ByMemberType    map[string]int64 `json:"by_member_type"`
	ByIntentLevel   map[string]int64 `json:"by_intent_level"`
	LastSeenAt      *time.Time       `json:"last_seen_at,omitempty"`
}
