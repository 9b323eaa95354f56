package psa

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestErrorPredicates(t *testing.T) {
	tests := []struct {
		name string
		err  error
		pred func(error) bool
	}{
		{"auth", &AuthError{Status: 401}, IsAuth},
		{"rate limit", &RateLimitError{RetryAfter: 30 * time.Second}, IsRateLimited},
		{"not found", &NotFoundError{Endpoint: "/tickets/9"}, IsNotFound},
		{"validation", NewValidationError("primary_id", "required"), IsValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !tt.pred(tt.err) {
				t.Errorf("predicate rejected %v", tt.err)
			}
			if !tt.pred(fmt.Errorf("fetching ticket: %w", tt.err)) {
				t.Errorf("predicate rejected wrapped %v", tt.err)
			}
		})
	}
}

func TestErrorPredicatesRejectOtherKinds(t *testing.T) {
	plain := errors.New("boom")
	preds := map[string]func(error) bool{
		"IsAuth":        IsAuth,
		"IsRateLimited": IsRateLimited,
		"IsNotFound":    IsNotFound,
		"IsValidation":  IsValidation,
	}
	for name, pred := range preds {
		if pred(plain) {
			t.Errorf("%s accepted a plain error", name)
		}
		if pred(nil) {
			t.Errorf("%s accepted nil", name)
		}
	}
	if IsAuth(&APIError{Status: 500}) {
		t.Error("IsAuth accepted an APIError")
	}
	if IsRateLimited(&APIError{Status: 429}) {
		t.Error("IsRateLimited accepted an APIError carrying 429")
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"auth with body", &AuthError{Status: 401, Body: "bad secret"}, "authentication failed (status 401): bad secret"},
		{"auth bare", &AuthError{Status: 403}, "authentication failed (status 403)"},
		{"rate limit with hint", &RateLimitError{RetryAfter: 30 * time.Second}, "rate limited by remote API, retry after 30s"},
		{"rate limit bare", &RateLimitError{}, "rate limited by remote API"},
		{"not found", &NotFoundError{Endpoint: "/tickets/9"}, "resource not found: /tickets/9"},
		{"api with body", &APIError{Status: 500, Body: "oops"}, "remote API error (status 500): oops"},
		{"api bare", &APIError{Status: 502}, "remote API error (status 502)"},
		{"validation multi field", &ValidationError{Errors: []FieldError{
			{Field: "primary_id", Message: "required"},
			{Field: "secondary_ids", Message: "must not be empty"},
		}}, "validation failed: primary_id: required; secondary_ids: must not be empty"},
		{"validation empty", &ValidationError{}, "validation failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}
