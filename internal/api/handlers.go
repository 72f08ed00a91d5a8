// Fanbeam - Creator Audience Attribution and Engagement Analytics
// Copyright 2026 Fanbeam Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fanbeam/fanbeam

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fanbeam/fanbeam/internal/database"
	"github.com/fanbeam/fanbeam/internal/engagement"
	"github.com/fanbeam/fanbeam/internal/fingerprint"
	"github.com/fanbeam/fanbeam/internal/logging"
	"github.com/fanbeam/fanbeam/internal/metrics"
	"github.com/fanbeam/fanbeam/internal/models"
)

// InteractionPublisher fans out committed interactions to downstream
// consumers. A nil publisher disables fan-out.
type InteractionPublisher interface {
	PublishInteraction(ctx context.Context, event *models.InteractionEvent, member *models.AudienceMember) error
}

// Handler serves the Fanbeam API endpoints.
type Handler struct {
	db        *database.DB
	publisher InteractionPublisher
}

// NewHandler creates the API handler. publisher may be nil.
func NewHandler(db *database.DB, publisher InteractionPublisher) *Handler {
	return &Handler{
		db:        db,
		publisher: publisher,
	}
}

// InteractionRequest is the public ingest payload for one visitor action.
type InteractionRequest struct {
	CreatorID        string            `json:"creator_id" validate:"required,uuid4"`
	AudienceMemberID string            `json:"audience_member_id,omitempty" validate:"omitempty,uuid4"`
	ActionType       string            `json:"action_type" validate:"required,oneof=listen social tip other"`
	ActionLabel      string            `json:"action_label,omitempty" validate:"omitempty,max=200"`
	Platform         string            `json:"platform,omitempty" validate:"omitempty,max=100"`
	LinkID           string            `json:"link_id,omitempty" validate:"omitempty,max=100"`
	IPAddress        string            `json:"ip_address,omitempty" validate:"omitempty,max=45"`
	UserAgent        string            `json:"user_agent,omitempty" validate:"omitempty,max=500"`
	Referrer         string            `json:"referrer,omitempty" validate:"omitempty,max=500"`
	GeoCity          string            `json:"geo_city,omitempty" validate:"omitempty,max=100"`
	GeoCountry       string            `json:"geo_country,omitempty" validate:"omitempty,max=100"`
	DeviceType       string            `json:"device_type,omitempty" validate:"omitempty,max=50"`
	Metadata         map[string]string `json:"metadata,omitempty" validate:"omitempty,max=20"`
}

// handleRecordInteraction implements POST /api/v1/interactions: the whole
// resolve-accumulate-record pipeline plus post-commit fan-out. The response
// carries the fingerprint so clients can cache their resolved identity.
func (h *Handler) handleRecordInteraction(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req InteractionRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		metrics.InteractionErrors.WithLabelValues("validation").Inc()
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid JSON body", false, err)
		return
	}
	if !validateRequest(w, &req) {
		metrics.InteractionErrors.WithLabelValues("validation").Inc()
		return
	}

	creatorID, ok := parseUUIDParam(w, "creator_id", req.CreatorID)
	if !ok {
		return
	}
	var explicitID *uuid.UUID
	if req.AudienceMemberID != "" {
		id, ok := parseUUIDParam(w, "audience_member_id", req.AudienceMemberID)
		if !ok {
			return
		}
		explicitID = &id
	}

	ip := req.IPAddress
	if ip == "" {
		ip = clientIP(r)
	}
	ua := req.UserAgent
	if ua == "" {
		ua = r.UserAgent()
	}
	fp := fingerprint.Resolve(ip, ua)

	params := database.RecordInteractionParams{
		CreatorID:        creatorID,
		Fingerprint:      fp,
		ExplicitMemberID: explicitID,
		Action: engagement.Action{
			Type:       models.ActionType(req.ActionType),
			Label:      req.ActionLabel,
			Platform:   req.Platform,
			OccurredAt: time.Now().UTC(),
			GeoCity:    nilIfEmpty(req.GeoCity),
			GeoCountry: nilIfEmpty(req.GeoCountry),
			DeviceType: nilIfEmpty(req.DeviceType),
		},
		LinkID:    nilIfEmpty(req.LinkID),
		IPAddress: nilIfEmpty(ip),
		UserAgent: nilIfEmpty(ua),
		Referrer:  nilIfEmpty(req.Referrer),
		Metadata:  req.Metadata,
	}

	member, event, err := h.db.RecordInteraction(r.Context(), params)
	if err != nil {
		h.respondStoreError(w, err)
		return
	}

	h.publishInteraction(r.Context(), event, member)

	respondSuccess(w, http.StatusCreated, &models.InteractionResult{
		EventID:          event.ID,
		AudienceMemberID: member.ID,
		Fingerprint:      fp,
		EngagementScore:  member.EngagementScore,
		IntentLevel:      member.IntentLevel,
	}, start)
}

// VisitRequest is the ingest payload for a profile page visit.
type VisitRequest struct {
	CreatorID        string `json:"creator_id" validate:"required,uuid4"`
	AudienceMemberID string `json:"audience_member_id,omitempty" validate:"omitempty,uuid4"`
	IPAddress        string `json:"ip_address,omitempty" validate:"omitempty,max=45"`
	UserAgent        string `json:"user_agent,omitempty" validate:"omitempty,max=500"`
	GeoCity          string `json:"geo_city,omitempty" validate:"omitempty,max=100"`
	GeoCountry       string `json:"geo_country,omitempty" validate:"omitempty,max=100"`
	DeviceType       string `json:"device_type,omitempty" validate:"omitempty,max=50"`
}

// handleRecordVisit implements POST /api/v1/visits. Visits feed intent
// derivation but never engagement score or the event ledger.
func (h *Handler) handleRecordVisit(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req VisitRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid JSON body", false, err)
		return
	}
	if !validateRequest(w, &req) {
		return
	}

	creatorID, ok := parseUUIDParam(w, "creator_id", req.CreatorID)
	if !ok {
		return
	}
	var explicitID *uuid.UUID
	if req.AudienceMemberID != "" {
		id, ok := parseUUIDParam(w, "audience_member_id", req.AudienceMemberID)
		if !ok {
			return
		}
		explicitID = &id
	}

	ip := req.IPAddress
	if ip == "" {
		ip = clientIP(r)
	}
	ua := req.UserAgent
	if ua == "" {
		ua = r.UserAgent()
	}
	fp := fingerprint.Resolve(ip, ua)

	member, err := h.db.RecordVisit(r.Context(), database.RecordVisitParams{
		CreatorID:        creatorID,
		Fingerprint:      fp,
		ExplicitMemberID: explicitID,
		GeoCity:          nilIfEmpty(req.GeoCity),
		GeoCountry:       nilIfEmpty(req.GeoCountry),
		DeviceType:       nilIfEmpty(req.DeviceType),
	})
	if err != nil {
		h.respondStoreError(w, err)
		return
	}

	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"audience_member_id": member.ID,
		"fingerprint":        fp,
		"visit_count":        member.VisitCount,
		"intent_level":       member.IntentLevel,
	}, start)
}

// IdentifyRequest is the payload for the identification channel: the client
// proved ownership of a contact (email capture form, SMS opt-in, Spotify
// OAuth) and attaches it to the visitor's identity.
type IdentifyRequest struct {
	CreatorID     string `json:"creator_id" validate:"required,uuid4"`
	MemberType    string `json:"member_type" validate:"required,oneof=email sms spotify_linked customer"`
	Email         string `json:"email,omitempty" validate:"omitempty,email"`
	Phone         string `json:"phone,omitempty" validate:"omitempty,e164"`
	SpotifyLinked bool   `json:"spotify_linked,omitempty"`
	IPAddress     string `json:"ip_address,omitempty" validate:"omitempty,max=45"`
	UserAgent     string `json:"user_agent,omitempty" validate:"omitempty,max=500"`
}

// handleIdentify implements POST /api/v1/audience/identify.
func (h *Handler) handleIdentify(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req IdentifyRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid JSON body", false, err)
		return
	}
	if !validateRequest(w, &req) {
		return
	}

	creatorID, ok := parseUUIDParam(w, "creator_id", req.CreatorID)
	if !ok {
		return
	}

	ip := req.IPAddress
	if ip == "" {
		ip = clientIP(r)
	}
	ua := req.UserAgent
	if ua == "" {
		ua = r.UserAgent()
	}

	member, err := h.db.IdentifyMember(r.Context(), database.IdentifyParams{
		CreatorID:     creatorID,
		Fingerprint:   fingerprint.Resolve(ip, ua),
		MemberType:    models.MemberType(req.MemberType),
		Email:         nilIfEmpty(req.Email),
		Phone:         nilIfEmpty(req.Phone),
		SpotifyLinked: req.SpotifyLinked,
	})
	if err != nil {
		h.respondStoreError(w, err)
		return
	}

	respondSuccess(w, http.StatusOK, member, start)
}

// handleListAudience implements GET /api/v1/creators/{creatorID}/audience.
func (h *Handler) handleListAudience(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	creatorID, ok := parseUUIDParam(w, "creatorID", chi.URLParam(r, "creatorID"))
	if !ok {
		return
	}

	filter := database.AudienceFilter{
		CreatorID:   creatorID,
		MemberType:  models.MemberType(r.URL.Query().Get("member_type")),
		IntentLevel: models.IntentLevel(r.URL.Query().Get("intent_level")),
		Limit:       getIntParam(r, "limit", 50),
		Offset:      getIntParam(r, "offset", 0),
	}
	if filter.MemberType != "" && !filter.MemberType.Valid() {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "member_type is not a known type", false, nil)
		return
	}

	page, err := h.db.ListAudience(r.Context(), filter)
	if err != nil {
		h.respondStoreError(w, err)
		return
	}

	respondSuccess(w, http.StatusOK, page, start)
}

// handleAudienceStats implements GET /api/v1/creators/{creatorID}/audience/stats.
func (h *Handler) handleAudienceStats(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	creatorID, ok := parseUUIDParam(w, "creatorID", chi.URLParam(r, "creatorID"))
	if !ok {
		return
	}

	stats, err := h.db.GetAudienceStats(r.Context(), creatorID)
	if err != nil {
		h.respondStoreError(w, err)
		return
	}

	respondSuccess(w, http.StatusOK, stats, start)
}

// handleListEvents implements GET /api/v1/creators/{creatorID}/events.
func (h *Handler) handleListEvents(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	creatorID, ok := parseUUIDParam(w, "creatorID", chi.URLParam(r, "creatorID"))
	if !ok {
		return
	}

	filter := database.EventFilter{
		CreatorID: creatorID,
		Type:      models.ActionType(r.URL.Query().Get("action_type")),
		Limit:     getIntParam(r, "limit", 100),
		Offset:    getIntParam(r, "offset", 0),
	}
	if memberParam := r.URL.Query().Get("audience_member_id"); memberParam != "" {
		memberID, ok := parseUUIDParam(w, "audience_member_id", memberParam)
		if !ok {
			return
		}
		filter.MemberID = &memberID
	}

	events, err := h.db.ListEvents(r.Context(), filter)
	if err != nil {
		h.respondStoreError(w, err)
		return
	}

	respondSuccess(w, http.StatusOK, events, start)
}

// CreatorRequest is the payload for registering a creator.
type CreatorRequest struct {
	Handle      string `json:"handle" validate:"required,min=3,max=30,alphanum"`
	DisplayName string `json:"display_name" validate:"required,max=100"`
}

// handleCreateCreator implements POST /api/v1/creators.
func (h *Handler) handleCreateCreator(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req CreatorRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid JSON body", false, err)
		return
	}
	if !validateRequest(w, &req) {
		return
	}

	creator, err := h.db.CreateCreator(r.Context(), req.Handle, req.DisplayName)
	if err != nil {
		if errors.Is(err, database.ErrCreatorHandleTaken) {
			respondError(w, http.StatusConflict, "HANDLE_TAKEN", "Handle is already registered", false, nil)
			return
		}
		h.respondStoreError(w, err)
		return
	}

	respondSuccess(w, http.StatusCreated, creator, start)
}

// handleGetCreator implements GET /api/v1/creators/{creatorID}.
func (h *Handler) handleGetCreator(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	creatorID, ok := parseUUIDParam(w, "creatorID", chi.URLParam(r, "creatorID"))
	if !ok {
		return
	}

	creator, err := h.db.GetCreatorByID(r.Context(), creatorID)
	if err != nil {
		h.respondStoreError(w, err)
		return
	}

	respondSuccess(w, http.StatusOK, creator, start)
}

// handleListCreators implements GET /api/v1/creators.
func (h *Handler) handleListCreators(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	creators, err := h.db.ListCreators(r.Context())
	if err != nil {
		h.respondStoreError(w, err)
		return
	}

	respondSuccess(w, http.StatusOK, creators, start)
}

// handleHealth implements GET /health.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if err := h.db.Ping(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, "UNHEALTHY", "Database unreachable", true, err)
		return
	}

	respondSuccess(w, http.StatusOK, map[string]string{"status": "ok"}, start)
}

// respondStoreError maps store errors to the API error taxonomy. Not-found
// outcomes are terminal for the client; resolution conflicts and everything
// else are retryable.
func (h *Handler) respondStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, database.ErrCreatorNotFound):
		metrics.InteractionErrors.WithLabelValues("not_found").Inc()
		respondError(w, http.StatusNotFound, "CREATOR_NOT_FOUND", "Creator does not exist", false, nil)
	case errors.Is(err, database.ErrMemberNotFound):
		respondError(w, http.StatusNotFound, "MEMBER_NOT_FOUND", "Audience member does not exist", false, nil)
	case errors.Is(err, database.ErrMemberResolution):
		metrics.InteractionErrors.WithLabelValues("resolution").Inc()
		respondError(w, http.StatusServiceUnavailable, "RESOLUTION_CONFLICT",
			"Could not resolve audience member, safe to retry", true, err)
	default:
		metrics.InteractionErrors.WithLabelValues("store").Inc()
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"Internal error, safe to retry", true, err)
	}
}

// publishInteraction fans out post-commit. The interaction is already
// durable, so publish failures are logged and absorbed.
func (h *Handler) publishInteraction(ctx context.Context, event *models.InteractionEvent, member *models.AudienceMember) {
	if h.publisher == nil {
		return
	}
	if err := h.publisher.PublishInteraction(ctx, event, member); err != nil {
		logging.Warn().
			Err(err).
			Str("event_id", event.ID.String()).
			Msg("Failed to publish interaction event")
	}
}

// nilIfEmpty maps empty strings to nil pointers for optional fields.
func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
