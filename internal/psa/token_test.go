package psa

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestTokenStateValidity(t *testing.T) {
	issued := time.Date(2026, 1, 2, 9, 0, 0, 0, time.UTC)
	state := tokenState{token: "tok", expiry: issued.Add(3600 * time.Second)}

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"freshly issued", issued, true},
		{"just inside the buffer", issued.Add(3539*time.Second + 999*time.Millisecond), true},
		{"exactly at the buffer", issued.Add(3540 * time.Second), false},
		{"just past the buffer", issued.Add(3540*time.Second + time.Millisecond), false},
		{"long expired", issued.Add(2 * time.Hour), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := state.isValid(tt.now); got != tt.want {
				t.Errorf("isValid at %s = %v, want %v", tt.now.Format(time.RFC3339Nano), got, tt.want)
			}
		})
	}
}

func TestTokenStateEmptyNeverValid(t *testing.T) {
	var state tokenState
	if state.isValid(time.Now()) {
		t.Error("zero state reported valid")
	}
	// A token string alone is not enough either.
	state = tokenState{token: "tok"}
	if state.isValid(time.Now()) {
		t.Error("state with zero expiry reported valid")
	}
}

func TestTokenReusedWhileValid(t *testing.T) {
	srv, tokenHits := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})
	c := clientFor(t, srv)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := c.Get(ctx, "/tickets", nil); err != nil {
			t.Fatalf("Get %d: %v", i, err)
		}
	}
	if *tokenHits != 1 {
		t.Errorf("token exchanges = %d, want 1 across repeated calls", *tokenHits)
	}
}

func TestTokenRefreshedNearExpiry(t *testing.T) {
	srv, tokenHits := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})
	c := clientFor(t, srv)

	base := time.Now()
	c.now = func() time.Time { return base }

	ctx := context.Background()
	if _, err := c.Get(ctx, "/tickets", nil); err != nil {
		t.Fatalf("initial call: %v", err)
	}
	if *tokenHits != 1 {
		t.Fatalf("token exchanges = %d after first call, want 1", *tokenHits)
	}

	// 3600s lifetime minus the 60s buffer: still valid just before the
	// threshold, stale just after it.
	c.now = func() time.Time { return base.Add(3539 * time.Second) }
	if _, err := c.Get(ctx, "/tickets", nil); err != nil {
		t.Fatalf("call inside validity window: %v", err)
	}
	if *tokenHits != 1 {
		t.Fatalf("token exchanges = %d inside validity window, want 1", *tokenHits)
	}

	c.now = func() time.Time { return base.Add(3541 * time.Second) }
	if _, err := c.Get(ctx, "/tickets", nil); err != nil {
		t.Fatalf("call past validity window: %v", err)
	}
	if *tokenHits != 2 {
		t.Errorf("token exchanges = %d past validity window, want 2", *tokenHits)
	}
}

func TestTokenDefaultLifetime(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/token", func(w http.ResponseWriter, r *http.Request) {
		// No expires_in in the response.
		w.Write([]byte(`{"access_token":"tok","token_type":"Bearer"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c := clientFor(t, srv)
	base := time.Now()
	c.now = func() time.Time { return base }

	if _, err := c.authenticate(context.Background()); err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	want := base.Add(3600 * time.Second)
	if !c.token.expiry.Equal(want) {
		t.Errorf("expiry = %s, want %s (default lifetime)", c.token.expiry, want)
	}
}

func TestTokenMissingAccessToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/token", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"token_type":"Bearer","expires_in":3600}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c := clientFor(t, srv)
	_, err := c.authenticate(context.Background())
	if !IsAuth(err) {
		t.Fatalf("got %v, want AuthError for a response without access_token", err)
	}
}

func TestClearTokenForcesFreshExchange(t *testing.T) {
	srv, tokenHits := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"tickets":[]}`))
	})
	c := clientFor(t, srv)

	ctx := context.Background()
	if err := c.TestConnection(ctx); err != nil {
		t.Fatalf("first TestConnection: %v", err)
	}
	if *tokenHits != 1 {
		t.Fatalf("token exchanges = %d after first probe, want 1", *tokenHits)
	}

	c.ClearToken()

	if err := c.TestConnection(ctx); err != nil {
		t.Fatalf("TestConnection after ClearToken: %v", err)
	}
	if *tokenHits != 2 {
		t.Errorf("token exchanges = %d after ClearToken, want 2", *tokenHits)
	}
}
