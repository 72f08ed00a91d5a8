// Fanbeam - Creator Audience Attribution and Engagement Analytics
// Copyright 2026 Fanbeam Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fanbeam/fanbeam

// Package engagement computes audience-member state transitions.
//
// Apply is a pure function from (prior member state, new action) to next
// member state. It performs no I/O; persistence is the database package's
// job. Action weights and intent thresholds are business-tunable
// configuration, not code constants.
package engagement

import (
	"time"

	"github.com/fanbeam/fanbeam/internal/models"
)

// Config holds the tunable scoring constants.
type Config struct {
	// Weights maps each action type to the score it contributes.
	// Unmapped types fall back to BaselineWeight.
	Weights map[models.ActionType]int `koanf:"weights"`

	// BaselineWeight is the score for unknown or unmapped action types.
	BaselineWeight int `koanf:"baseline_weight"`

	// Intent holds the intent-level derivation thresholds.
	Intent IntentThresholds `koanf:"intent"`
}

// IntentThresholds derive the intent level from visit count and recent
// activity density. A member is "high" intent when both HighVisits and
// HighRecent are met, "medium" when both MediumVisits and MediumRecent are
// met, otherwise "low".
type IntentThresholds struct {
	HighVisits   int `koanf:"high_visits"`
	HighRecent   int `koanf:"high_recent"`
	MediumVisits int `koanf:"medium_visits"`
	MediumRecent int `koanf:"medium_recent"`
}

// DefaultConfig returns the stock scoring table. A tip is an order of
// magnitude stronger signal than a passive listen click.
func DefaultConfig() Config {
	return Config{
		Weights: map[models.ActionType]int{
			models.ActionListen: 2,
			models.ActionSocial: 3,
			models.ActionTip:    10,
			models.ActionOther:  1,
		},
		BaselineWeight: 1,
		Intent: IntentThresholds{
			HighVisits:   5,
			HighRecent:   3,
			MediumVisits: 2,
			MediumRecent: 2,
		},
	}
}

// Action describes one new interaction to fold into a member's state.
type Action struct {
	Type       models.ActionType
	Label      string
	Platform   string
	Marker     string
	OccurredAt time.Time

	// Optional fresh signals. Nil retains the member's prior value.
	GeoCity    *string
	GeoCountry *string
	DeviceType *string
}

// Weight returns the score contribution for the given action type.
func (cfg Config) Weight(t models.ActionType) int {
	if w, ok := cfg.Weights[t]; ok {
		return w
	}
	return cfg.BaselineWeight
}

// Apply folds one action into a member's state and returns the updated copy
// together with the score delta. The input member is not mutated.
//
// Guarantees:
//   - EngagementScore increases by exactly Weight(action.Type); never decreases
//   - RecentActions gains the new action at the front and is truncated to
//     models.MaxRecentActions entries
//   - IntentLevel is recomputed from VisitCount and the truncated history only
//   - LastSeenAt advances monotonically
//   - geo/device fields: non-nil new signal overwrites, nil retains
//   - SpotifyConnected is one-way: set by listen actions, never cleared
func (cfg Config) Apply(member models.AudienceMember, action Action) (models.AudienceMember, int) {
	weight := cfg.Weight(action.Type)
	member.EngagementScore += weight

	record := models.ActionRecord{
		Label:      action.Label,
		Type:       action.Type,
		Platform:   action.Platform,
		Marker:     action.Marker,
		OccurredAt: action.OccurredAt,
	}
	recent := make([]models.ActionRecord, 0, models.MaxRecentActions)
	recent = append(recent, record)
	for _, prior := range member.RecentActions {
		if len(recent) == models.MaxRecentActions {
			break
		}
		recent = append(recent, prior)
	}
	member.RecentActions = recent

	member.IntentLevel = cfg.DeriveIntent(member.VisitCount, len(recent))

	if action.OccurredAt.After(member.LastSeenAt) {
		member.LastSeenAt = action.OccurredAt
	}

	member.GeoCity = coalesce(action.GeoCity, member.GeoCity)
	member.GeoCountry = coalesce(action.GeoCountry, member.GeoCountry)
	member.DeviceType = coalesce(action.DeviceType, member.DeviceType)

	// One-way flag: listen-type interactions set it, nothing clears it.
	// Member type upgrades stay with the identification channel; a listen
	// click alone does not prove a linked Spotify account.
	if action.Type == models.ActionListen {
		member.SpotifyConnected = true
	}

	return member, weight
}

// DeriveIntent classifies a member from visit count and recent action count.
// Pure function of its two inputs; the thresholds are the only state.
func (cfg Config) DeriveIntent(visitCount, recentActions int) models.IntentLevel {
	th := cfg.Intent
	switch {
	case visitCount >= th.HighVisits && recentActions >= th.HighRecent:
		return models.IntentHigh
	case visitCount >= th.MediumVisits && recentActions >= th.MediumRecent:
		return models.IntentMedium
	default:
		return models.IntentLow
	}
}

// coalesce returns fresh when non-nil, otherwise prior. A field never
// regresses to nil once set.
func coalesce(fresh, prior *string) *string {
	if fresh != nil {
		return fresh
	}
	return prior
}
