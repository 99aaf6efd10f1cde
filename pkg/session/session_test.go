package session_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"foodhub/pkg/session"
)

func TestResolveValidSession(t *testing.T) {
	var gotCookie string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/auth/get-session" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		gotCookie = r.Header.Get("Cookie")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"user":{"id":"u1","email":"a@b.c","name":"Ada","role":"CUSTOMER","status":"ACTIVE"},"session":{"id":"s1","userId":"u1","expiresAt":"2026-01-01T00:00:00Z"}}`))
	}))
	defer srv.Close()

	c := session.NewClient(srv.URL)
	s, err := c.Resolve(context.Background(), "better-auth.session_token=abc")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if s == nil || s.User == nil {
		t.Fatal("expected a session")
	}
	if s.User.Role != "CUSTOMER" || s.User.ID != "u1" {
		t.Fatalf("unexpected user: %+v", s.User)
	}
	if gotCookie != "better-auth.session_token=abc" {
		t.Fatalf("cookie not forwarded, got %q", gotCookie)
	}
}

func TestResolveNoCookieSkipsNetwork(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("backend called without a credential")
	}))
	defer srv.Close()

	s, err := session.NewClient(srv.URL).Resolve(context.Background(), "")
	if err != nil || s != nil {
		t.Fatalf("expected (nil, nil), got (%v, %v)", s, err)
	}
}

func TestResolveNoSessionAnswers(t *testing.T) {
	tests := []struct {
		name string
		fn   http.HandlerFunc
	}{
		{"null body", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("null"))
		}},
		{"empty object", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("{}"))
		}},
		{"unauthorized", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}},
		{"garbage body", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("<html>"))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.fn)
			defer srv.Close()

			s, err := session.NewClient(srv.URL).Resolve(context.Background(), "token=abc")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if s != nil {
				t.Fatalf("expected no session, got %+v", s)
			}
		})
	}
}

func TestResolveTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	s, err := session.NewClient(srv.URL).Resolve(context.Background(), "token=abc")
	if err == nil {
		t.Fatal("expected a transport error")
	}
	if s != nil {
		t.Fatalf("expected nil session on error, got %+v", s)
	}
}
