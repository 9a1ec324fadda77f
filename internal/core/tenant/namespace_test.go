package tenant

import (
	"errors"
	"testing"
)

func TestNamespaceFor(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		want    string
		wantErr bool
	}{
		{name: "plain key", key: "acme", want: "tenant_acme_schema"},
		{name: "digits and underscores", key: "acme_2", want: "tenant_acme_2_schema"},
		{name: "uppercase is folded", key: "ACME", want: "tenant_acme_schema"},
		{name: "surrounding whitespace trimmed", key: "  acme  ", want: "tenant_acme_schema"},
		{name: "empty", key: "", wantErr: true},
		{name: "whitespace only", key: "   ", wantErr: true},
		{name: "hyphen rejected", key: "acme-corp", wantErr: true},
		{name: "dot rejected", key: "acme.corp", wantErr: true},
		{name: "quote rejected", key: `acme"`, wantErr: true},
		{name: "sql injection attempt", key: "x; drop schema public", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NamespaceFor(tt.key)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for key %q, got namespace %q", tt.key, got)
				}
				if !errors.Is(err, ErrInvalidTenantKey) && !errors.Is(err, ErrInvalidNamespace) {
					t.Errorf("unexpected error type: %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("namespace = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValidateNamespace(t *testing.T) {
	valid := []string{
		LegacyNamespace,
		"tenant_acme_schema",
		"tenant_a1_b2_schema",
	}
	for _, ns := range valid {
		if err := ValidateNamespace(ns); err != nil {
			t.Errorf("ValidateNamespace(%q) = %v, want nil", ns, err)
		}
	}

	invalid := []string{
		"",
		"public",
		"pg_catalog",
		"tenant__schema_extra",
		"tenant_ACME_schema",
		`tenant_x_schema"; DROP SCHEMA public CASCADE; --`,
		"tenant_x_schema ",
	}
	for _, ns := range invalid {
		if err := ValidateNamespace(ns); err == nil {
			t.Errorf("ValidateNamespace(%q) = nil, want error", ns)
		}
	}
}
