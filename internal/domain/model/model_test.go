package model

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeTenantKey(t *testing.T) {
	id := uuid.MustParse("019bb6d7-8bb8-7a5c-b163-8cf8d362a474")

	tests := []struct {
		name string
		raw  any
		want string
		ok   bool
	}{
		{"string", "42", "42", true},
		{"int", 42, "42", true},
		{"int64", int64(42), "42", true},
		{"float integral", 42.0, "42", true},
		{"float fractional", 4.5, "4.5", true},
		{"json number", json.Number("42"), "42", true},
		{"json number with fraction zero", json.Number("42.0"), "42", true},
		{"json number exponent", json.Number("4.2e1"), "42", true},
		{"stringer", id, id.String(), true},
		{"nil", nil, "", false},
		{"empty", "", "", false},
		{"blank", "   ", "", false},
		{"slice", []string{"a"}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NormalizeTenantKey(tt.raw)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeTenantKey_NumericAndStringCollide(t *testing.T) {
	var decoded []any
	require.NoError(t, json.Unmarshal([]byte(`[42, "42"]`), &decoded))

	a, ok := NormalizeTenantKey(decoded[0])
	require.True(t, ok)
	b, ok := NormalizeTenantKey(decoded[1])
	require.True(t, ok)
	assert.Equal(t, a, b)
}

func TestDispatchRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     DispatchRequest
		wantErr error
	}{
		{"announcement", DispatchRequest{Type: TypeAnnouncement}, nil},
		{"targeted", DispatchRequest{Type: TypeForApproval, TargetKeys: []string{"A"}}, nil},
		{"targeted without keys", DispatchRequest{Type: TypeForApproval}, ErrMissingTargetKeys},
		{"unknown type", DispatchRequest{Type: "bogus"}, ErrUnknownNotificationType},
		{"empty type", DispatchRequest{}, ErrUnknownNotificationType},
		{"negative delay", DispatchRequest{Type: TypeAnnouncement, Delay: -time.Second}, ErrInvalidDelay},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestDispatchRequest_PayloadDefaultsCategory(t *testing.T) {
	now := time.Now()
	req := DispatchRequest{Type: TypeForApproval, Title: "t", Message: "m"}

	p := req.Payload(now)
	assert.Equal(t, DefaultCategory, p.Category)
	assert.Equal(t, now, p.DispatchedAt)
	assert.Equal(t, TypeForApproval, p.Type)

	req.Category = "Billing"
	assert.Equal(t, "Billing", req.Payload(now).Category)
}

func TestBroadcastRequest_Payload(t *testing.T) {
	req := BroadcastRequest{Title: "t", Content: "c"}
	p := req.Payload(time.Now())

	assert.Equal(t, TypeAnnouncement, p.Type)
	assert.Equal(t, "c", p.Message)
	assert.Equal(t, DefaultCategory, p.Category)
}
