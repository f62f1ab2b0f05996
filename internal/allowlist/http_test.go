package allowlist

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func testConfig(baseURL string) Config {
	return Config{
		BaseURL:   baseURL,
		AccountID: "acct-1",
		ListID:    "list-1",
		APIToken:  "token-1",
		Tag:       "added by dnilist",
	}
}

func TestNewHTTPClientValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "missing account", mutate: func(c *Config) { c.AccountID = "" }},
		{name: "missing list", mutate: func(c *Config) { c.ListID = "" }},
		{name: "missing token", mutate: func(c *Config) { c.APIToken = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig("http://example.invalid")
			tc.mutate(&cfg)
			if _, err := NewHTTPClient(cfg); err == nil {
				t.Error("expected a config error")
			}
		})
	}
}

func TestHostnames(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s, want GET", r.Method)
		}
		if r.URL.Path != "/accounts/acct-1/gateway/lists/list-1/items" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer token-1" {
			t.Errorf("authorization = %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"result": []map[string]string{
				{"value": "one.example.com"},
				{"value": "two.example.com"},
			},
		})
	}))
	defer srv.Close()

	client, err := NewHTTPClient(testConfig(srv.URL))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	hostnames, err := client.Hostnames(context.Background())
	if err != nil {
		t.Fatalf("hostnames: %v", err)
	}
	if len(hostnames) != 2 || hostnames[0] != "one.example.com" {
		t.Errorf("hostnames = %v", hostnames)
	}
}

func TestHostnamesAPIFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"success": false})
	}))
	defer srv.Close()

	client, err := NewHTTPClient(testConfig(srv.URL))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := client.Hostnames(context.Background()); err == nil {
		t.Error("expected an error on api failure")
	}
}

func TestAppend(t *testing.T) {
	var captured appendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("method = %s, want PATCH", r.Method)
		}
		if r.URL.Path != "/accounts/acct-1/gateway/lists/list-1" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode append body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true})
	}))
	defer srv.Close()

	client, err := NewHTTPClient(testConfig(srv.URL))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if err := client.Append(context.Background(), "example.com"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if len(captured.Append) != 1 || captured.Append[0].Value != "example.com" {
		t.Fatalf("append payload = %+v", captured)
	}
	if captured.Append[0].Description != "added by dnilist" {
		t.Errorf("description = %q, want the configured tag", captured.Append[0].Description)
	}
}

func TestAppendUnexpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client, err := NewHTTPClient(testConfig(srv.URL))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if err := client.Append(context.Background(), "example.com"); err == nil {
		t.Error("expected an error on unexpected status")
	}
}
