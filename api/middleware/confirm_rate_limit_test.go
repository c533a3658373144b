package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jdmarin/boxvalet-backend/pkg/logger"
)

type fakeCounterStore struct {
	counts map[string]int64
}

func (f *fakeCounterStore) IncrWithTTL(_ context.Context, key string, _ time.Duration) (int64, error) {
	if f.counts == nil {
		f.counts = map[string]int64{}
	}
	f.counts[key]++
	return f.counts[key], nil
}

func confirmRequest(token, ip string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/public/confirm?token="+token, nil)
	r.Header.Set("X-Forwarded-For", ip)
	return r
}

func TestConfirmRateLimitBlocksTokenAbuse(t *testing.T) {
	store := &fakeCounterStore{}
	policy := NewConfirmRateLimitPolicy(time.Minute, 100, 2)
	handler := ConfirmRateLimit(policy, store, logger.New(logger.Options{ServiceName: "test"}))(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
	)

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, confirmRequest("abc", "1.2.3.4"))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, confirmRequest("abc", "9.9.9.9"))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 for repeated token, got %d", rec.Code)
	}

	// A different token from a fresh IP is unaffected.
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, confirmRequest("other", "5.6.7.8"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for new token, got %d", rec.Code)
	}
}

func TestConfirmRateLimitBlocksIPAbuse(t *testing.T) {
	store := &fakeCounterStore{}
	policy := NewConfirmRateLimitPolicy(time.Minute, 3, 0)
	handler := ConfirmRateLimit(policy, store, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
	)

	var last int
	for i := 0; i < 4; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, confirmRequest("tok", "1.2.3.4"))
		last = rec.Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("expected 429 on fourth request, got %d", last)
	}
}

func TestConfirmRateLimitDisabledPolicyPassesThrough(t *testing.T) {
	handler := ConfirmRateLimit(ConfirmRateLimitPolicy{}, &fakeCounterStore{}, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}),
	)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, confirmRequest("tok", "1.2.3.4"))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected pass-through, got %d", rec.Code)
	}
}
