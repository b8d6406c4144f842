package validation

import (
	"errors"
	"testing"
)

func TestIsValidAffiliationID(t *testing.T) {
	tests := []struct {
		name  string
		id    string
		valid bool
	}{
		{
			name:  "valid id",
			id:    "AB12CD34",
			valid: true,
		},
		{
			name:  "lowercase",
			id:    "ab12cd34",
			valid: false,
		},
		{
			name:  "too short",
			id:    "AB12CD3",
			valid: false,
		},
		{
			name:  "contains symbol",
			id:    "AB12-D34",
			valid: false,
		},
		{
			name:  "empty string",
			id:    "",
			valid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsValidAffiliationID(tt.id)
			if got != tt.valid {
				t.Fatalf("IsValidAffiliationID(%q) = %v, want %v", tt.id, got, tt.valid)
			}
		})
	}
}

func TestNormalizeAffiliationID(t *testing.T) {
	if got := NormalizeAffiliationID("  ab12cd34 "); got != "AB12CD34" {
		t.Fatalf("NormalizeAffiliationID = %q, want AB12CD34", got)
	}
}

type credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	JoinID   string `json:"joinId" validate:"omitempty,affid"`
}

func TestStruct(t *testing.T) {
	tests := []struct {
		name  string
		in    credentials
		field string
	}{
		{
			name:  "valid",
			in:    credentials{Email: "a@b.id", Password: "secret1"},
			field: "",
		},
		{
			name:  "bad email",
			in:    credentials{Email: "nope", Password: "secret1"},
			field: "email",
		},
		{
			name:  "short password",
			in:    credentials{Email: "a@b.id", Password: "123"},
			field: "password",
		},
		{
			name:  "bad affiliation id",
			in:    credentials{Email: "a@b.id", Password: "secret1", JoinID: "x"},
			field: "joinId",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Struct(tt.in)
			if tt.field == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}

			var fe *FieldError
			if !errors.As(err, &fe) {
				t.Fatalf("expected *FieldError, got %v", err)
			}
			if fe.Field != tt.field {
				t.Fatalf("field = %q, want %q", fe.Field, tt.field)
			}
		})
	}
}
