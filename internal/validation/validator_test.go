// Telemon - Telemetry Monitoring and Control Processing Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemon

package validation

import (
	"strings"
	"testing"
)

func TestGetValidator_Singleton(t *testing.T) {
	t.Parallel()

	if GetValidator() != GetValidator() {
		t.Error("GetValidator() should return the same singleton instance")
	}
}

type sampleRequest struct {
	Path  string  `json:"path" validate:"required,entity_path"`
	Value float64 `json:"value" validate:"gte=-1000,lte=1000"`
}

type batchRequest struct {
	Samples []sampleRequest `json:"samples" validate:"min=1,max=3,dive"`
	Route   string          `json:"route" validate:"omitempty,oneof=tm sim"`
}

func TestValidateStruct(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		input     batchRequest
		wantErr   bool
		wantField string
		wantMsg   string
	}{
		{
			name:  "valid",
			input: batchRequest{Samples: []sampleRequest{{Path: "/sat/a", Value: 1}}, Route: "tm"},
		},
		{
			name:      "bad path",
			input:     batchRequest{Samples: []sampleRequest{{Path: "/sat//a"}}},
			wantErr:   true,
			wantField: "samples[0].path",
			wantMsg:   "must be a valid entity path",
		},
		{
			name:      "empty batch",
			input:     batchRequest{},
			wantErr:   true,
			wantField: "samples",
			wantMsg:   "must contain at least 1 items",
		},
		{
			name:      "out of range",
			input:     batchRequest{Samples: []sampleRequest{{Path: "/sat/a", Value: 5000}}},
			wantErr:   true,
			wantField: "samples[0].value",
			wantMsg:   "less than or equal to 1000",
		},
		{
			name:      "oneof",
			input:     batchRequest{Samples: []sampleRequest{{Path: "/sat/a"}}, Route: "radio"},
			wantErr:   true,
			wantField: "route",
			wantMsg:   "must be one of: tm sim",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := ValidateStruct(&tt.input)
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected validation error")
			}
			first := err.Errors()[0]
			if first.Field() != tt.wantField {
				t.Errorf("Field() = %q, want %q", first.Field(), tt.wantField)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("Error() = %q, want it to contain %q", err.Error(), tt.wantMsg)
			}
			if api := err.ToAPIError(); api.Code != "VALIDATION_ERROR" {
				t.Errorf("ToAPIError().Code = %q", api.Code)
			}
		})
	}
}

func TestRequestValidationError_MultipleFields(t *testing.T) {
	t.Parallel()

	err := ValidateStruct(&batchRequest{
		Samples: []sampleRequest{{Path: ""}, {Path: "/ok", Value: -2000}},
	})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if len(err.Errors()) != 2 {
		t.Fatalf("expected 2 errors, got %d: %v", len(err.Errors()), err)
	}
	api := err.ToAPIError()
	fields, ok := api.Details["fields"].([]map[string]interface{})
	if !ok || len(fields) != 2 {
		t.Errorf("expected 2 field details, got %v", api.Details)
	}
}
