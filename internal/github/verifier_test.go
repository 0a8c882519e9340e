package github

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newStub(t *testing.T, status int, wantAuth string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/owner/repo" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != wantAuth {
			t.Errorf("Authorization = %q, want %q", got, wantAuth)
		}
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestVerifyAccessGranted(t *testing.T) {
	t.Parallel()
	srv := newStub(t, http.StatusOK, "Bearer tok")
	v := NewVerifier(srv.URL, time.Second)

	ok, err := v.VerifyAccess(context.Background(), "tok", "owner/repo")
	if err != nil || !ok {
		t.Fatalf("VerifyAccess = %v, %v; want true", ok, err)
	}
}

func TestVerifyAccessDenied(t *testing.T) {
	t.Parallel()
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound} {
		srv := newStub(t, status, "Bearer tok")
		v := NewVerifier(srv.URL, time.Second)

		ok, err := v.VerifyAccess(context.Background(), "tok", "owner/repo")
		if err != nil {
			t.Fatalf("status %d: unexpected error %v", status, err)
		}
		if ok {
			t.Errorf("status %d granted access", status)
		}
	}
}

func TestVerifyAccessServerError(t *testing.T) {
	t.Parallel()
	srv := newStub(t, http.StatusInternalServerError, "Bearer tok")
	v := NewVerifier(srv.URL, time.Second)

	ok, err := v.VerifyAccess(context.Background(), "tok", "owner/repo")
	if err == nil || ok {
		t.Fatalf("VerifyAccess = %v, %v; want error", ok, err)
	}
}

func TestVerifyAccessTimeout(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	t.Cleanup(srv.Close)
	v := NewVerifier(srv.URL, 20*time.Millisecond)

	if ok, err := v.VerifyAccess(context.Background(), "tok", "owner/repo"); err == nil || ok {
		t.Fatalf("hung verifier returned %v, %v; want error", ok, err)
	}
}
