// Fanbeam - Creator Audience Attribution and Engagement Analytics
// Copyright 2026 Fanbeam Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fanbeam/fanbeam

package validation

import (
	"strings"
	"testing"
)

type interactionRequest struct {
	CreatorID  string `validate:"required,uuid4"`
	ActionType string `validate:"required,oneof=listen social tip other"`
	Email      string `validate:"omitempty,email"`
	Limit      int    `validate:"min=0,max=500"`
}

func TestValidateStructPasses(t *testing.T) {
	req := interactionRequest{
		CreatorID:  "a2f7c8d0-1b2c-4d3e-9f4a-5b6c7d8e9f0a",
		ActionType: "listen",
		Limit:      50,
	}
	if verr := ValidateStruct(&req); verr != nil {
		t.Errorf("expected valid request, got %v", verr)
	}
}

func TestValidateStructSingleError(t *testing.T) {
	req := interactionRequest{
		CreatorID:  "a2f7c8d0-1b2c-4d3e-9f4a-5b6c7d8e9f0a",
		ActionType: "dance",
	}
	verr := ValidateStruct(&req)
	if verr == nil {
		t.Fatal("expected validation error for unknown action type")
	}

	apiErr := verr.ToAPIError()
	if apiErr.Code != "VALIDATION_ERROR" {
		t.Errorf("expected VALIDATION_ERROR code, got %s", apiErr.Code)
	}
	if !strings.Contains(apiErr.Message, "ActionType") {
		t.Errorf("expected message to name the field, got %q", apiErr.Message)
	}
	if apiErr.Details["field"] != "ActionType" {
		t.Errorf("expected field detail ActionType, got %v", apiErr.Details["field"])
	}
}

func TestValidateStructMultipleErrors(t *testing.T) {
	req := interactionRequest{
		CreatorID: "not-a-uuid",
		Email:     "not-an-email",
		Limit:     9999,
	}
	verr := ValidateStruct(&req)
	if verr == nil {
		t.Fatal("expected validation errors")
	}
	if len(verr.Errors()) != 4 {
		t.Errorf("expected 4 field errors, got %d", len(verr.Errors()))
	}

	apiErr := verr.ToAPIError()
	fields, ok := apiErr.Details["fields"].([]map[string]interface{})
	if !ok {
		t.Fatalf("expected fields detail, got %T", apiErr.Details["fields"])
	}
	if len(fields) != 4 {
		t.Errorf("expected 4 field details, got %d", len(fields))
	}
}

func TestTranslateErrorMessages(t *testing.T) {
	req := interactionRequest{ActionType: "listen"}
	verr := ValidateStruct(&req)
	if verr == nil {
		t.Fatal("expected validation error for missing creator ID")
	}

	if got := verr.Errors()[0].Error(); got != "CreatorID is required" {
		t.Errorf("unexpected message: %q", got)
	}
}
