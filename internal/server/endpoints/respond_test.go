package endpoints

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"testing"

	"github.com/jackzampolin/folio/internal/api"
	"github.com/jackzampolin/folio/internal/generation"
	"github.com/jackzampolin/folio/internal/providers"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantKind   string
	}{
		{"validation", &generation.ValidationError{Err: errors.New("topic is required")}, http.StatusBadRequest, api.KindValidation},
		{"auth wrapped", fmt.Errorf("text backend: %w", &providers.AuthError{Backend: "replicate"}), http.StatusServiceUnavailable, api.KindAuth},
		{"job timeout", &providers.TimeoutError{JobID: "j1"}, http.StatusGatewayTimeout, api.KindTimeout},
		{"deadline", fmt.Errorf("submit: %w", context.DeadlineExceeded), http.StatusGatewayTimeout, api.KindTimeout},
		{"generation", &generation.GenerationError{Stage: generation.StageStyle, Err: errors.New("bad json")}, http.StatusBadGateway, api.KindGeneration},
		{"remote", &providers.RemoteError{Backend: "replicate", StatusCode: 422}, http.StatusBadGateway, api.KindRemote},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, api.KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, kind := classify(tt.err)
			if status != tt.wantStatus || kind != tt.wantKind {
				t.Errorf("classify() = (%d, %q), want (%d, %q)", status, kind, tt.wantStatus, tt.wantKind)
			}
		})
	}
}

func TestSplitPair(t *testing.T) {
	tests := []struct {
		raw     string
		key     string
		value   string
		wantErr bool
	}{
		{"a=a cat on a hill", "a", "a cat on a hill", false},
		{" b =x=y", "b", "x=y", false},
		{"novalue", "", "", true},
		{"=orphan", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			k, v, err := splitPair(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("splitPair(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
			if k != tt.key || v != tt.value {
				t.Errorf("splitPair(%q) = (%q, %q), want (%q, %q)", tt.raw, k, v, tt.key, tt.value)
			}
		})
	}
}

func TestParseCallFilter(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		f, err := parseCallFilter(url.Values{})
		if err != nil {
			t.Fatal(err)
		}
		if f.Limit != 100 || f.Success != nil || f.After != nil {
			t.Errorf("filter = %+v", f)
		}
	})

	t.Run("all fields", func(t *testing.T) {
		q := url.Values{
			"stage":   {"style"},
			"success": {"false"},
			"limit":   {"5"},
			"offset":  {"10"},
			"after":   {"2024-01-15T00:00:00Z"},
		}
		f, err := parseCallFilter(q)
		if err != nil {
			t.Fatal(err)
		}
		if f.Stage != "style" || f.Limit != 5 || f.Offset != 10 {
			t.Errorf("filter = %+v", f)
		}
		if f.Success == nil || *f.Success {
			t.Errorf("Success = %v, want false", f.Success)
		}
		if f.After == nil || f.After.Year() != 2024 {
			t.Errorf("After = %v", f.After)
		}
	})

	for _, bad := range []string{"success=maybe", "limit=ten", "offset=x", "after=yesterday"} {
		t.Run(bad, func(t *testing.T) {
			q, _ := url.ParseQuery(bad)
			if _, err := parseCallFilter(q); err == nil {
				t.Errorf("expected error for %s", bad)
			}
		})
	}
}
