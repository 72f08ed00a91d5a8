// Fanbeam - Creator Audience Attribution and Engagement Analytics
// Copyright 2026 Fanbeam Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fanbeam/fanbeam

package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	json "github.com/goccy/go-json"

	"github.com/fanbeam/fanbeam/internal/config"
	"github.com/fanbeam/fanbeam/internal/database"
	"github.com/fanbeam/fanbeam/internal/engagement"
	"github.com/fanbeam/fanbeam/internal/models"
)

// testDBSemaphore serializes DuckDB creation across tests, mirroring the
// database package's CI safeguard.
var testDBSemaphore = make(chan struct{}, 1)

// capturingPublisher records fan-out calls for assertions.
type capturingPublisher struct {
	events []*models.InteractionEvent
}

func (p *capturingPublisher) PublishInteraction(_ context.Context, event *models.InteractionEvent, _ *models.AudienceMember) error {
	p.events = append(p.events, event)
	return nil
}

type testServer struct {
	router    http.Handler
	db        *database.DB
	publisher *capturingPublisher
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	testDBSemaphore <- struct{}{}
	t.Cleanup(func() { <-testDBSemaphore })

	db, err := database.New(&config.DatabaseConfig{
		Path:         ":memory:",
		MaxMemory:    "1GB",
		QueryTimeout: 30 * time.Second,
	}, engagement.DefaultConfig())
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	publisher := &capturingPublisher{}
	handler := NewHandler(db, publisher)
	mw := NewMiddleware(&MiddlewareConfig{RateLimitDisabled: true})

	return &testServer{
		router:    NewRouter(handler, mw, 30*time.Second),
		db:        db,
		publisher: publisher,
	}
}

func (ts *testServer) request(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "fanbeam-test/1.0")
	req.RemoteAddr = "198.51.100.7:42831"

	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) createCreator(t *testing.T, handle string) *models.Creator {
	t.Helper()

	creator, err := ts.db.CreateCreator(context.Background(), handle, "Test "+handle)
	if err != nil {
		t.Fatalf("failed to create creator: %v", err)
	}
	return creator
}

// decodeResponse unwraps the APIResponse envelope and re-decodes Data into
// out.
func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) *models.APIResponse {
	t.Helper()

	var envelope models.APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("failed to decode response envelope: %v (body: %s)", err, rec.Body.String())
	}
	if out != nil && envelope.Data != nil {
		data, err := json.Marshal(envelope.Data)
		if err != nil {
			t.Fatalf("failed to re-marshal data: %v", err)
		}
		if err := json.Unmarshal(data, out); err != nil {
			t.Fatalf("failed to decode data: %v", err)
		}
	}
	return &envelope
}

var fingerprintPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

func TestRecordInteractionEndpoint(t *testing.T) {
	ts := newTestServer(t)
	creator := ts.createCreator(t, "ingest")

	rec := ts.request(t, http.MethodPost, "/api/v1/interactions", map[string]interface{}{
		"creator_id":   creator.ID.String(),
		"action_type":  "listen",
		"action_label": "new-single",
		"platform":     "spotify",
	})

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var result models.InteractionResult
	envelope := decodeResponse(t, rec, &result)
	if envelope.Status != "success" {
		t.Errorf("expected success status, got %s", envelope.Status)
	}
	if !fingerprintPattern.MatchString(result.Fingerprint) {
		t.Errorf("expected hex fingerprint, got %q", result.Fingerprint)
	}
	if result.EngagementScore != engagement.DefaultConfig().Weight(models.ActionListen) {
		t.Errorf("unexpected score %d", result.EngagementScore)
	}

	if len(ts.publisher.events) != 1 {
		t.Errorf("expected 1 published event, got %d", len(ts.publisher.events))
	}

	// The same client replaying resolves to the same member and accumulates.
	rec = ts.request(t, http.MethodPost, "/api/v1/interactions", map[string]interface{}{
		"creator_id":  creator.ID.String(),
		"action_type": "tip",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 on repeat, got %d", rec.Code)
	}
	var second models.InteractionResult
	decodeResponse(t, rec, &second)
	if second.AudienceMemberID != result.AudienceMemberID {
		t.Errorf("expected stable member ID, got %s then %s", result.AudienceMemberID, second.AudienceMemberID)
	}
	cfg := engagement.DefaultConfig()
	if want := cfg.Weight(models.ActionListen) + cfg.Weight(models.ActionTip); second.EngagementScore != want {
		t.Errorf("expected accumulated score %d, got %d", want, second.EngagementScore)
	}
}

func TestRecordInteractionValidation(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{"missing creator", map[string]interface{}{"action_type": "listen"}},
		{"bad creator id", map[string]interface{}{"creator_id": "nope", "action_type": "listen"}},
		{"unknown action", map[string]interface{}{"creator_id": "b53cd965-0e8e-44d0-b5f3-4ad2bd4c4e23", "action_type": "dance"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.request(t, http.MethodPost, "/api/v1/interactions", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
			envelope := decodeResponse(t, rec, nil)
			if envelope.Error == nil || envelope.Error.Code != "VALIDATION_ERROR" {
				t.Errorf("expected VALIDATION_ERROR, got %+v", envelope.Error)
			}
		})
	}
}

func TestRecordInteractionUnknownCreator(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(t, http.MethodPost, "/api/v1/interactions", map[string]interface{}{
		"creator_id":  "b53cd965-0e8e-44d0-b5f3-4ad2bd4c4e23",
		"action_type": "listen",
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	envelope := decodeResponse(t, rec, nil)
	if envelope.Error == nil || envelope.Error.Code != "CREATOR_NOT_FOUND" {
		t.Errorf("expected CREATOR_NOT_FOUND, got %+v", envelope.Error)
	}
	if envelope.Error != nil && envelope.Error.Retryable {
		t.Error("not-found must not be marked retryable")
	}
	if len(ts.publisher.events) != 0 {
		t.Errorf("no event may be published on failure, got %d", len(ts.publisher.events))
	}
}

func TestRecordVisitEndpoint(t *testing.T) {
	ts := newTestServer(t)
	creator := ts.createCreator(t, "visits")

	var visitCount int
	for i := 0; i < 2; i++ {
		rec := ts.request(t, http.MethodPost, "/api/v1/visits", map[string]interface{}{
			"creator_id":  creator.ID.String(),
			"device_type": "mobile",
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var data struct {
			VisitCount int `json:"visit_count"`
		}
		decodeResponse(t, rec, &data)
		visitCount = data.VisitCount
	}

	if visitCount != 2 {
		t.Errorf("expected visit count 2, got %d", visitCount)
	}
}

func TestIdentifyEndpoint(t *testing.T) {
	ts := newTestServer(t)
	creator := ts.createCreator(t, "identify")

	rec := ts.request(t, http.MethodPost, "/api/v1/audience/identify", map[string]interface{}{
		"creator_id":  creator.ID.String(),
		"member_type": "email",
		"email":       "fan@example.com",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var member models.AudienceMember
	decodeResponse(t, rec, &member)
	if member.MemberType != models.MemberEmail {
		t.Errorf("expected email member, got %s", member.MemberType)
	}
	if member.Email == nil || *member.Email != "fan@example.com" {
		t.Errorf("expected email stored, got %v", member.Email)
	}
}

func TestAudienceEndpoints(t *testing.T) {
	ts := newTestServer(t)
	creator := ts.createCreator(t, "audience")

	rec := ts.request(t, http.MethodPost, "/api/v1/interactions", map[string]interface{}{
		"creator_id":  creator.ID.String(),
		"action_type": "tip",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("failed to seed interaction: %d", rec.Code)
	}

	rec = ts.request(t, http.MethodGet, "/api/v1/creators/"+creator.ID.String()+"/audience", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for audience list, got %d", rec.Code)
	}
	var page models.AudiencePage
	decodeResponse(t, rec, &page)
	if page.TotalCount != 1 || len(page.Members) != 1 {
		t.Errorf("expected one member, got total=%d page=%d", page.TotalCount, len(page.Members))
	}

	rec = ts.request(t, http.MethodGet, "/api/v1/creators/"+creator.ID.String()+"/audience/stats", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for stats, got %d", rec.Code)
	}
	var stats models.AudienceStats
	decodeResponse(t, rec, &stats)
	if stats.TotalMembers != 1 {
		t.Errorf("expected 1 member in stats, got %d", stats.TotalMembers)
	}

	rec = ts.request(t, http.MethodGet, "/api/v1/creators/"+creator.ID.String()+"/events?action_type=tip", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for events, got %d", rec.Code)
	}
	var events []models.InteractionEvent
	decodeResponse(t, rec, &events)
	if len(events) != 1 {
		t.Errorf("expected 1 event, got %d", len(events))
	}
}

func TestCreatorEndpoints(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(t, http.MethodPost, "/api/v1/creators", map[string]interface{}{
		"handle":       "lunawaves",
		"display_name": "Luna Waves",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var creator models.Creator
	decodeResponse(t, rec, &creator)

	// Duplicate handle conflicts.
	rec = ts.request(t, http.MethodPost, "/api/v1/creators", map[string]interface{}{
		"handle":       "lunawaves",
		"display_name": "Impostor",
	})
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 for duplicate handle, got %d", rec.Code)
	}

	rec = ts.request(t, http.MethodGet, "/api/v1/creators/"+creator.ID.String(), nil)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 for creator get, got %d", rec.Code)
	}

	rec = ts.request(t, http.MethodGet, "/api/v1/creators", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for creator list, got %d", rec.Code)
	}
	var creators []models.Creator
	decodeResponse(t, rec, &creators)
	if len(creators) != 1 {
		t.Errorf("expected 1 creator, got %d", len(creators))
	}
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(t, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
