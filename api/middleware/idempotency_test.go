package middleware

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type fakeIdempotencyStore struct {
	records map[string]string
	setTTLs map[string]time.Duration
}

func newFakeIdempotencyStore() *fakeIdempotencyStore {
	return &fakeIdempotencyStore{
		records: map[string]string{},
		setTTLs: map[string]time.Duration{},
	}
}

func (f *fakeIdempotencyStore) Get(_ context.Context, key string) (string, error) {
	return f.records[key], nil
}

func (f *fakeIdempotencyStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, exists := f.records[key]; exists {
		return false, nil
	}
	f.records[key] = fmt.Sprintf("%v", value)
	f.setTTLs[key] = ttl
	return true, nil
}

func (f *fakeIdempotencyStore) IdempotencyKey(scope, id string) string {
	return "idem:" + scope + ":" + id
}

func (f *fakeIdempotencyStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.records, key)
	}
	return nil
}

func idempotentRequest(method, path, key, body string) *http.Request {
	r := httptest.NewRequest(method, path, strings.NewReader(body))
	if key != "" {
		r.Header.Set("Idempotency-Key", key)
	}
	return r
}

func countingHandler(calls *int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"call":%d}`, *calls)
	})
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	store := newFakeIdempotencyStore()
	var calls int
	handler := Idempotency(store, nil)(countingHandler(&calls))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, idempotentRequest(http.MethodPatch, "/api/v1/appointments/abc", "key-1", `{"unit_count":2}`))
	if first.Code != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", first.Code)
	}

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, idempotentRequest(http.MethodPatch, "/api/v1/appointments/abc", "key-1", `{"unit_count":2}`))
	if calls != 1 {
		t.Fatalf("expected handler to run once, ran %d times", calls)
	}
	if second.Code != http.StatusOK {
		t.Fatalf("replay: expected 200, got %d", second.Code)
	}

	firstBody, _ := io.ReadAll(first.Body)
	secondBody, _ := io.ReadAll(second.Body)
	if string(firstBody) != string(secondBody) {
		t.Fatalf("replay body %q differs from original %q", secondBody, firstBody)
	}
	if ct := second.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("replay lost content type, got %q", ct)
	}
}

func TestIdempotencyRejectsKeyReuseWithDifferentBody(t *testing.T) {
	store := newFakeIdempotencyStore()
	var calls int
	handler := Idempotency(store, nil)(countingHandler(&calls))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, idempotentRequest(http.MethodPatch, "/api/v1/appointments/abc", "key-1", `{"unit_count":2}`))

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, idempotentRequest(http.MethodPatch, "/api/v1/appointments/abc", "key-1", `{"unit_count":3}`))
	if second.Code != http.StatusConflict {
		t.Fatalf("expected 409 for reused key with new body, got %d", second.Code)
	}
	if calls != 1 {
		t.Fatalf("handler should not run for mismatched replay, ran %d times", calls)
	}
}

func TestIdempotencyClaimUsesExtendedTTL(t *testing.T) {
	store := newFakeIdempotencyStore()
	var calls int
	handler := Idempotency(store, nil)(countingHandler(&calls))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, idempotentRequest(http.MethodPost, "/api/v1/routes/r1/claim", "claim-key", `{"worker_id":"w1"}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var ttl time.Duration
	for _, stored := range store.setTTLs {
		ttl = stored
	}
	if ttl != criticalIdempotencyTTL {
		t.Fatalf("expected claim TTL %v, got %v", criticalIdempotencyTTL, ttl)
	}
}

func TestIdempotencySkipsWhenHeaderMissing(t *testing.T) {
	store := newFakeIdempotencyStore()
	var calls int
	handler := Idempotency(store, nil)(countingHandler(&calls))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, idempotentRequest(http.MethodPatch, "/api/v1/appointments/abc", "", `{}`))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rec.Code)
		}
	}
	if calls != 2 {
		t.Fatalf("expected both requests to reach the handler, got %d", calls)
	}
	if len(store.records) != 0 {
		t.Fatalf("expected no stored records, got %d", len(store.records))
	}
}

func TestIdempotencyIgnoresUnmatchedRoutes(t *testing.T) {
	store := newFakeIdempotencyStore()
	var calls int
	handler := Idempotency(store, nil)(countingHandler(&calls))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, idempotentRequest(http.MethodGet, "/api/v1/notifications", "key-1", ""))
	}
	if calls != 2 {
		t.Fatalf("expected GET requests to bypass idempotency, got %d calls", calls)
	}
}
