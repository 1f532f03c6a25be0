package brightdata

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/timmy/pokedex/internal/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(&Config{APIToken: "secret", BaseURL: srv.URL, DatasetID: "ds_1"})
}

func TestTrigger(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/datasets/v3/trigger" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.URL.Query().Get("dataset_id"); got != "ds_1" {
			t.Errorf("dataset_id = %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Authorization = %q", got)
		}
		var body []map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body) != 1 || body[0]["url"] != "https://www.linkedin.com/in/ada" {
			t.Errorf("unexpected body %v (%v)", body, err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"snapshot_id":"s_123"}`))
	})

	id, err := c.Trigger(context.Background(), "https://www.linkedin.com/in/ada")
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if id != "s_123" {
		t.Fatalf("id = %q", id)
	}
}

func TestTriggerErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{name: "non-2xx carries body", status: http.StatusUnauthorized, body: `{"error":"bad token"}`, wantMsg: "bad token"},
		{name: "missing snapshot id", status: http.StatusOK, body: `{}`, wantMsg: "no snapshot_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := c.Trigger(context.Background(), "https://www.linkedin.com/in/ada")
			var de *domain.Error
			if !errors.As(err, &de) {
				t.Fatalf("expected *domain.Error, got %v", err)
			}
			if de.Kind != domain.KindTriggerFailed {
				t.Errorf("kind = %s", de.Kind)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not mention %q", err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestPoll(t *testing.T) {
	tests := []struct {
		remote string
		want   domain.JobStatus
	}{
		{"ready", domain.JobStatusReady},
		{"failed", domain.JobStatusFailed},
		{"running", domain.JobStatusRunning},
		{"building", domain.JobStatusRunning},
	}
	for _, tt := range tests {
		t.Run(tt.remote, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/datasets/v3/progress/s_1" {
					t.Errorf("path = %s", r.URL.Path)
				}
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"snapshot_id":"s_1","status":"` + tt.remote + `"}`))
			})
			got, err := c.Poll(context.Background(), "s_1")
			if err != nil {
				t.Fatalf("Poll: %v", err)
			}
			if got != tt.want {
				t.Errorf("status = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestPollServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("maintenance"))
	})
	_, err := c.Poll(context.Background(), "s_1")
	if domain.KindOf(err) != domain.KindPollFailed {
		t.Fatalf("kind = %s (%v)", domain.KindOf(err), err)
	}
}

func TestFetchResult(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantName string
		wantErr  bool
	}{
		{name: "array takes first", body: `[{"name":"Ada Lovelace"},{"name":"Other"}]`, wantName: "Ada Lovelace"},
		{name: "object", body: `{"name":"Grace Hopper"}`, wantName: "Grace Hopper"},
		{name: "empty array", body: `[]`, wantErr: true},
		{name: "not json", body: `<html>`, wantErr: true},
		{name: "scalar record", body: `["x"]`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/datasets/v3/snapshot/s_9" || r.URL.Query().Get("format") != "json" {
					t.Errorf("unexpected request %s", r.URL.String())
				}
				_, _ = w.Write([]byte(tt.body))
			})
			payload, err := c.FetchResult(context.Background(), "s_9")
			if tt.wantErr {
				if domain.KindOf(err) != domain.KindFetchFailed {
					t.Fatalf("expected fetch failure, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("FetchResult: %v", err)
			}
			if payload["name"] != tt.wantName {
				t.Errorf("name = %v", payload["name"])
			}
		})
	}
}
