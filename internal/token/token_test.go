package token

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestBuildIdentityPriorityOrder(t *testing.T) {
	t.Parallel()

	if got := BuildIdentity("s1", "u1", "p1"); got != "s1-u1-p1" {
		t.Fatalf("unexpected identity %q", got)
	}
	if got := BuildIdentity("s1", "u1", ""); got != "s1-u1" {
		t.Fatalf("unexpected identity %q", got)
	}

	anon := BuildIdentity("s1", "", "p1")
	if !strings.HasPrefix(anon, "s1-anon_") || !strings.HasSuffix(anon, "-p1") {
		t.Fatalf("unexpected anonymous personalized identity %q", anon)
	}

	bare := BuildIdentity("s1", "", "")
	if !strings.HasPrefix(bare, "s1-") || len(bare) <= len("s1-") {
		t.Fatalf("unexpected anonymous identity %q", bare)
	}
}

func TestBuildIdentityAnonymousIdentitiesDiffer(t *testing.T) {
	t.Parallel()

	if BuildIdentity("s1", "", "") == BuildIdentity("s1", "", "") {
		t.Fatalf("two anonymous viewers must not collide")
	}
}

func TestClientMint(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/token" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req map[string]string
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("request body did not decode: %v", err)
		}
		if req["sessionId"] != "s1" {
			t.Errorf("unexpected session id %q", req["sessionId"])
		}
		json.NewEncoder(w).Encode(map[string]string{
			"identity":    "s1-u1",
			"accessToken": "tok",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	identity, accessToken, err := client.Mint(context.Background(), "s1", "u1", "")
	if err != nil {
		t.Fatalf("mint failed: %v", err)
	}
	if identity != "s1-u1" || accessToken != "tok" {
		t.Fatalf("unexpected mint result %q %q", identity, accessToken)
	}
}

func TestClientMintRejectsFailures(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer server.Close()

	if _, _, err := NewClient(server.URL).Mint(context.Background(), "s1", "", ""); err == nil {
		t.Fatalf("expected error on non-200 response")
	}
}
