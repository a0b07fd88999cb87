package activitylog

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hyphaapp/hypha/storage"
)

type memActivityStore struct {
	bySubmission map[string][]*storage.Activity
	failList     error
}

func newMemActivityStore() *memActivityStore {
	return &memActivityStore{bySubmission: make(map[string][]*storage.Activity)}
}

func (m *memActivityStore) RecordActivity(_ context.Context, a *storage.Activity) error {
	cp := *a
	m.bySubmission[a.SubmissionID] = append(m.bySubmission[a.SubmissionID], &cp)
	return nil
}

func (m *memActivityStore) ListActivityBySubmission(_ context.Context, submissionID string) ([]*storage.Activity, error) {
	if m.failList != nil {
		return nil, m.failList
	}
	return m.bySubmission[submissionID], nil
}

func setupTestMux(t *testing.T, store activityStore) *http.ServeMux {
	t.Helper()

	c := &Component{
		name:   "activity-log",
		config: DefaultConfig(),
		logger: slog.Default(),
	}
	c.mu.Lock()
	c.store = store
	c.mu.Unlock()
	c.state.Store(stateRunning)

	mux := http.NewServeMux()
	c.RegisterHTTPHandlers("/activity-log", mux)
	return mux
}

func TestHandleListActivity(t *testing.T) {
	store := newMemActivityStore()
	_ = store.RecordActivity(context.Background(), &storage.Activity{
		ID: "act-1", SubmissionID: "sub-1", Verb: verbSubmitted, Message: "Submission received",
	})
	_ = store.RecordActivity(context.Background(), &storage.Activity{
		ID: "act-2", SubmissionID: "sub-1", Verb: verbTransitioned, Message: "Progressed from draft to in_discussion",
	})
	_ = store.RecordActivity(context.Background(), &storage.Activity{
		ID: "act-3", SubmissionID: "sub-other", Verb: verbSubmitted,
	})
	mux := setupTestMux(t, store)

	req := httptest.NewRequest(http.MethodGet, "/activity-log/submissions/sub-1/activity", nil)
	req.Header.Set(headerUserID, "staff-1")
	req.Header.Set(headerUserRoles, "staff")
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var got struct {
		Activity []*storage.Activity `json:"activity"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(got.Activity) != 2 {
		t.Errorf("got %d entries, want 2", len(got.Activity))
	}
}

func TestHandleListActivity_Access(t *testing.T) {
	mux := setupTestMux(t, newMemActivityStore())

	tests := []struct {
		name     string
		userID   string
		roles    string
		wantCode int
	}{
		{"no identity", "", "", http.StatusUnauthorized},
		{"applicant forbidden", "alice", "applicant", http.StatusForbidden},
		{"reviewer forbidden", "rev-1", "reviewer", http.StatusForbidden},
		{"staff allowed", "staff-1", "staff,reviewer", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/activity-log/submissions/sub-1/activity", nil)
			if tt.userID != "" {
				req.Header.Set(headerUserID, tt.userID)
				req.Header.Set(headerUserRoles, tt.roles)
			}
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)
			if w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", w.Code, tt.wantCode)
			}
		})
	}
}

func TestHandleListActivity_StoreError(t *testing.T) {
	store := newMemActivityStore()
	store.failList = errors.New("bucket unavailable")
	mux := setupTestMux(t, store)

	req := httptest.NewRequest(http.MethodGet, "/activity-log/submissions/sub-1/activity", nil)
	req.Header.Set(headerUserID, "staff-1")
	req.Header.Set(headerUserRoles, "staff")
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
}

func TestHandleListActivity_NotReady(t *testing.T) {
	c := &Component{
		name:   "activity-log",
		config: DefaultConfig(),
		logger: slog.Default(),
	}
	mux := http.NewServeMux()
	c.RegisterHTTPHandlers("/activity-log", mux)

	req := httptest.NewRequest(http.MethodGet, "/activity-log/submissions/sub-1/activity", nil)
	req.Header.Set(headerUserID, "staff-1")
	req.Header.Set(headerUserRoles, "staff")
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}
