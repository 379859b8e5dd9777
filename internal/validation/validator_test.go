// Biblion - Library Management and Personalized Recommendations
// Copyright 2026 Biblion Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/biblion-app/biblion

package validation

import (
	"strings"
	"testing"
)

type interactionBody struct {
	UserID string `validate:"required"`
	BookID string `validate:"required"`
	Kind   string `validate:"required,oneof=view borrow bookmark"`
	Year   int    `validate:"omitempty,gte=0"`
}

type recommendationsBody struct {
	Limit   int    `validate:"omitempty,min=1,max=20"`
	Context string `validate:"omitempty,oneof=browse book-detail"`
}

func TestValidateStruct(t *testing.T) {
	tests := []struct {
		name      string
		input     interface{}
		wantErr   bool
		wantField string
	}{
		{
			name:    "valid interaction",
			input:   &interactionBody{UserID: "u1", BookID: "b1", Kind: "borrow"},
			wantErr: false,
		},
		{
			name:      "missing user id",
			input:     &interactionBody{BookID: "b1", Kind: "view"},
			wantErr:   true,
			wantField: "UserID",
		},
		{
			name:      "unknown kind",
			input:     &interactionBody{UserID: "u1", BookID: "b1", Kind: "purchase"},
			wantErr:   true,
			wantField: "Kind",
		},
		{
			name:    "valid recommendations request",
			input:   &recommendationsBody{Limit: 10, Context: "browse"},
			wantErr: false,
		},
		{
			name:    "zero limit treated as omitted",
			input:   &recommendationsBody{},
			wantErr: false,
		},
		{
			name:      "limit above max",
			input:     &recommendationsBody{Limit: 50},
			wantErr:   true,
			wantField: "Limit",
		},
		{
			name:      "unknown context",
			input:     &recommendationsBody{Context: "checkout"},
			wantErr:   true,
			wantField: "Context",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(tt.input)
			if !tt.wantErr {
				if err != nil {
					t.Errorf("ValidateStruct() error = %v, want nil", err)
				}
				return
			}

			if err == nil {
				t.Fatal("ValidateStruct() = nil, want error")
			}
			if len(err.Errors()) == 0 {
				t.Fatal("Errors() is empty")
			}
			if got := err.Errors()[0].Field(); got != tt.wantField {
				t.Errorf("first error field = %q, want %q", got, tt.wantField)
			}
		})
	}
}

func TestToAPIError(t *testing.T) {
	err := ValidateStruct(&interactionBody{})
	if err == nil {
		t.Fatal("expected validation error for empty body")
	}

	apiErr := err.ToAPIError()
	if apiErr.Code != "VALIDATION_ERROR" {
		t.Errorf("Code = %q, want VALIDATION_ERROR", apiErr.Code)
	}
	if !strings.Contains(apiErr.Message, "required") {
		t.Errorf("Message = %q, want mention of required fields", apiErr.Message)
	}
	if apiErr.Details == nil {
		t.Error("Details = nil, want populated details")
	}
}
