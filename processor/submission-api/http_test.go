package submissionapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"

	"github.com/hyphaapp/hypha/storage"
	"github.com/hyphaapp/hypha/workflow"
)

// memStore is an in-memory entityStore for handler tests, standing in
// for the JetStream KV store.
type memStore struct {
	submissions    map[string]*workflow.Submission
	determinations map[string]*workflow.Determination
	reviews        map[string]*workflow.Review
	peeks          map[string]bool
	nextID         int
}

func newMemStore() *memStore {
	return &memStore{
		submissions:    make(map[string]*workflow.Submission),
		determinations: make(map[string]*workflow.Determination),
		reviews:        make(map[string]*workflow.Review),
		peeks:          make(map[string]bool),
	}
}

func (m *memStore) id(prefix string) string {
	m.nextID++
	return fmt.Sprintf("%s-%d", prefix, m.nextID)
}

func (m *memStore) CreateSubmission(_ context.Context, sub *workflow.Submission) error {
	if sub.ID == "" {
		sub.ID = m.id("sub")
	}
	if _, exists := m.submissions[sub.ID]; exists {
		return storage.ErrAlreadyExists
	}
	sub.Revision = 1
	cp := *sub
	m.submissions[sub.ID] = &cp
	return nil
}

func (m *memStore) GetSubmission(_ context.Context, id string) (*workflow.Submission, error) {
	sub, ok := m.submissions[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *sub
	return &cp, nil
}

func (m *memStore) SaveSubmission(_ context.Context, sub *workflow.Submission) error {
	if _, ok := m.submissions[sub.ID]; !ok {
		return storage.ErrNotFound
	}
	sub.Revision++
	cp := *sub
	m.submissions[sub.ID] = &cp
	return nil
}

func (m *memStore) ListSubmissions(_ context.Context) ([]*workflow.Submission, error) {
	ids := make([]string, 0, len(m.submissions))
	for id := range m.submissions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]*workflow.Submission, 0, len(ids))
	for _, id := range ids {
		cp := *m.submissions[id]
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memStore) CreateDetermination(_ context.Context, d *workflow.Determination) (storage.EntityID, error) {
	if d.ID == "" {
		d.ID = m.id("det")
	}
	cp := *d
	m.determinations[d.ID] = &cp
	return storage.EntityID{Type: storage.EntityTypeDetermination, ID: d.ID}, nil
}

func (m *memStore) UpdateDetermination(_ context.Context, d *workflow.Determination) error {
	if _, ok := m.determinations[d.ID]; !ok {
		return storage.ErrNotFound
	}
	cp := *d
	m.determinations[d.ID] = &cp
	return nil
}

func (m *memStore) ListDeterminationsBySubmission(_ context.Context, submissionID string) ([]*workflow.Determination, error) {
	var out []*workflow.Determination
	for _, d := range m.determinations {
		if d.SubmissionID == submissionID {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memStore) CreateReview(_ context.Context, r *workflow.Review) (storage.EntityID, error) {
	if r.ID == "" {
		r.ID = m.id("rev")
	}
	cp := *r
	m.reviews[r.ID] = &cp
	return storage.EntityID{Type: storage.EntityTypeReview, ID: r.ID}, nil
}

func (m *memStore) ListReviewsBySubmission(_ context.Context, submissionID string) ([]*workflow.Review, error) {
	var out []*workflow.Review
	for _, r := range m.reviews {
		if r.SubmissionID == submissionID {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memStore) RecordPeek(_ context.Context, userID, submissionID string) error {
	m.peeks[userID+"."+submissionID] = true
	return nil
}

func (m *memStore) HasPeeked(_ context.Context, userID, submissionID string) (bool, error) {
	return m.peeks[userID+"."+submissionID], nil
}

// setupTestComponent wires a component against the in-memory store,
// as if Start had completed without NATS.
func setupTestComponent(t *testing.T, mutate ...func(*Config)) (*Component, *memStore) {
	t.Helper()

	cfg := DefaultConfig()
	for _, m := range mutate {
		m(&cfg)
	}

	store := newMemStore()
	c := &Component{
		name:   "submission-api",
		config: cfg,
		logger: slog.Default(),
	}

	settings := c.settings()
	workflows := c.workflows()
	engine, err := workflow.NewEngine(store, settings, workflows...)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	perms := workflow.NewPermissions(workflows, settings, store)

	c.mu.Lock()
	c.store = store
	c.engine = engine
	c.permissions = perms
	c.coordinator = workflow.NewCoordinator(engine, store, perms)
	c.mu.Unlock()
	c.state.Store(stateRunning)

	return c, store
}

func setupTestMux(t *testing.T, mutate ...func(*Config)) (*http.ServeMux, *memStore) {
	t.Helper()
	c, store := setupTestComponent(t, mutate...)
	mux := http.NewServeMux()
	c.RegisterHTTPHandlers("/submission-api", mux)
	return mux, store
}

func seedSubmission(t *testing.T, store *memStore, sub *workflow.Submission) {
	t.Helper()
	if sub.Workflow == "" {
		sub.Workflow = workflow.WorkflowRequest
	}
	if sub.Status == "" {
		sub.Status = "in_discussion"
	}
	if sub.Applicant == "" {
		sub.Applicant = "applicant-1"
	}
	if err := store.CreateSubmission(context.Background(), sub); err != nil {
		t.Fatalf("CreateSubmission() error = %v", err)
	}
}

func doJSON(t *testing.T, mux *http.ServeMux, method, path string, headers map[string]string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func asStaff(id string) map[string]string {
	return map[string]string{headerUserID: id, headerUserRoles: "staff"}
}

func asApplicant(id string) map[string]string {
	return map[string]string{headerUserID: id, headerUserRoles: "applicant"}
}

func TestHandleCreateSubmission(t *testing.T) {
	mux, store := setupTestMux(t)

	w := doJSON(t, mux, http.MethodPost, "/submission-api/submissions", asApplicant("alice"), map[string]any{
		"title":    "Community garden",
		"workflow": workflow.WorkflowRequest,
		"answers":  map[string]string{"title": "Community garden"},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusCreated, w.Body.String())
	}

	var got submissionView
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Status != "draft" {
		t.Errorf("Status = %q, want %q", got.Status, "draft")
	}
	if got.Applicant != "alice" {
		t.Errorf("Applicant = %q, want %q", got.Applicant, "alice")
	}
	if len(got.ActiveFields) == 0 {
		t.Error("ActiveFields is empty, want first stage form")
	}
	if _, ok := store.submissions[got.ID]; !ok {
		t.Errorf("submission %q not persisted", got.ID)
	}
}

func TestHandleCreateSubmission_Errors(t *testing.T) {
	mux, _ := setupTestMux(t)

	tests := []struct {
		name     string
		headers  map[string]string
		body     any
		wantCode int
	}{
		{
			name:     "no identity",
			headers:  nil,
			body:     map[string]any{"title": "x", "workflow": workflow.WorkflowRequest},
			wantCode: http.StatusUnauthorized,
		},
		{
			name:     "missing title",
			headers:  asApplicant("alice"),
			body:     map[string]any{"workflow": workflow.WorkflowRequest},
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "unknown workflow",
			headers:  asApplicant("alice"),
			body:     map[string]any{"title": "x", "workflow": "no-such"},
			wantCode: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, mux, http.MethodPost, "/submission-api/submissions", tt.headers, tt.body)
			if w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", w.Code, tt.wantCode)
			}
		})
	}
}

func TestHandleGetSubmission_Visibility(t *testing.T) {
	mux, store := setupTestMux(t)
	seedSubmission(t, store, &workflow.Submission{ID: "sub-a", Title: "Garden", Applicant: "alice"})

	tests := []struct {
		name     string
		headers  map[string]string
		wantCode int
	}{
		{"applicant sees own", asApplicant("alice"), http.StatusOK},
		{"staff sees all", asStaff("s1"), http.StatusOK},
		{"stranger reads as absent", asApplicant("mallory"), http.StatusNotFound},
		{"unknown id", asStaff("s1"), http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := "sub-a"
			if tt.name == "unknown id" {
				id = "sub-zzz"
			}
			w := doJSON(t, mux, http.MethodGet, "/submission-api/submissions/"+id, tt.headers, nil)
			if w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d: %s", w.Code, tt.wantCode, w.Body.String())
			}
		})
	}
}

func TestHandleGetSubmission_IdentityRedaction(t *testing.T) {
	mux, store := setupTestMux(t, func(c *Config) {
		c.HideIdentityFromReviewers = true
	})
	sub := &workflow.Submission{
		ID:        "sub-a",
		Title:     "Garden",
		Applicant: "alice",
		Status:    "internal_review",
		Reviewers: []workflow.AssignedReviewer{
			{Reviewer: workflow.User{ID: "rev-1", Roles: []workflow.Role{workflow.RoleReviewer}}},
		},
	}
	seedSubmission(t, store, sub)

	w := doJSON(t, mux, http.MethodGet, "/submission-api/submissions/sub-a",
		map[string]string{headerUserID: "rev-1", headerUserRoles: "reviewer"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var got submissionView
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Applicant != "" {
		t.Errorf("Applicant = %q, want redacted", got.Applicant)
	}
}

func TestHandleListSubmissions_FiltersByViewer(t *testing.T) {
	mux, store := setupTestMux(t)
	seedSubmission(t, store, &workflow.Submission{ID: "sub-a", Applicant: "alice"})
	seedSubmission(t, store, &workflow.Submission{ID: "sub-b", Applicant: "bob"})

	w := doJSON(t, mux, http.MethodGet, "/submission-api/submissions", asApplicant("alice"), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var got struct {
		Submissions []submissionView `json:"submissions"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(got.Submissions) != 1 || got.Submissions[0].ID != "sub-a" {
		t.Errorf("got %d submissions, want only sub-a", len(got.Submissions))
	}

	w = doJSON(t, mux, http.MethodGet, "/submission-api/submissions", asStaff("s1"), nil)
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(got.Submissions) != 2 {
		t.Errorf("staff sees %d submissions, want 2", len(got.Submissions))
	}
}

func TestHandleListActions(t *testing.T) {
	mux, store := setupTestMux(t)
	seedSubmission(t, store, &workflow.Submission{ID: "sub-a", Applicant: "alice", Lead: "lead-1"})

	w := doJSON(t, mux, http.MethodGet, "/submission-api/submissions/sub-a/actions", asStaff("s1"), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var got struct {
		Actions []workflow.ActionOption `json:"actions"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	names := make([]string, 0, len(got.Actions))
	for _, a := range got.Actions {
		names = append(names, a.Name)
	}
	if len(names) != 1 || names[0] != "open_review" {
		t.Errorf("staff actions = %v, want [open_review]", names)
	}
}

func TestHandleTransition(t *testing.T) {
	mux, store := setupTestMux(t)
	seedSubmission(t, store, &workflow.Submission{ID: "sub-a", Applicant: "alice", Lead: "lead-1"})

	w := doJSON(t, mux, http.MethodPost, "/submission-api/submissions/sub-a/transitions",
		asStaff("s1"), map[string]string{"action": "open_review"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var got transitionResponse
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Submission.Status != "internal_review" {
		t.Errorf("Status = %q, want %q", got.Submission.Status, "internal_review")
	}
	if store.submissions["sub-a"].Status != "internal_review" {
		t.Errorf("persisted status = %q, want %q", store.submissions["sub-a"].Status, "internal_review")
	}
}

func TestHandleTransition_ErrorMapping(t *testing.T) {
	mux, store := setupTestMux(t)
	seedSubmission(t, store, &workflow.Submission{ID: "sub-a", Applicant: "alice", Lead: "lead-1"})

	tests := []struct {
		name     string
		id       string
		headers  map[string]string
		action   string
		wantCode int
	}{
		{"unknown action", "sub-a", asStaff("s1"), "levitate", http.StatusBadRequest},
		{"guard rejects", "sub-a", asStaff("s1"), "determination", http.StatusForbidden},
		{"missing submission", "sub-zzz", asStaff("s1"), "open_review", http.StatusNotFound},
		{"empty action", "sub-a", asStaff("s1"), "", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, mux, http.MethodPost, "/submission-api/submissions/"+tt.id+"/transitions",
				tt.headers, map[string]string{"action": tt.action})
			if w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d: %s", w.Code, tt.wantCode, w.Body.String())
			}
		})
	}
}

func TestHandleTransition_DeterminationRedirect(t *testing.T) {
	mux, store := setupTestMux(t)
	seedSubmission(t, store, &workflow.Submission{
		ID: "sub-a", Applicant: "alice", Lead: "lead-1", Status: "post_review_discussion",
	})

	w := doJSON(t, mux, http.MethodPost, "/submission-api/submissions/sub-a/transitions",
		map[string]string{headerUserID: "lead-1", headerUserRoles: "staff"},
		map[string]string{"action": "determination"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var got transitionResponse
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.RedirectURL == "" {
		t.Error("RedirectURL is empty, want determination form URL")
	}
}

func TestHandleBatchTransition(t *testing.T) {
	mux, store := setupTestMux(t)
	seedSubmission(t, store, &workflow.Submission{ID: "sub-a", Applicant: "alice"})
	seedSubmission(t, store, &workflow.Submission{ID: "sub-b", Applicant: "bob"})

	w := doJSON(t, mux, http.MethodPost, "/submission-api/submissions/transitions",
		asStaff("s1"), map[string]any{
			"submission_ids": []string{"sub-a", "sub-b", "sub-missing"},
			"action":         "open_review",
		})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var got batchTransitionResponse
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(got.Succeeded) != 2 {
		t.Errorf("Succeeded = %v, want 2 entries", got.Succeeded)
	}
	if len(got.Failed) != 1 {
		t.Errorf("Failed = %v, want 1 entry", got.Failed)
	}
	if store.submissions["sub-a"].Status != "internal_review" {
		t.Errorf("sub-a status = %q, want internal_review", store.submissions["sub-a"].Status)
	}
}

func TestHandleAssignReviewer(t *testing.T) {
	mux, store := setupTestMux(t)
	seedSubmission(t, store, &workflow.Submission{ID: "sub-a", Applicant: "alice"})

	w := doJSON(t, mux, http.MethodPost, "/submission-api/submissions/sub-a/reviewers",
		asStaff("s1"), map[string]string{"reviewer_id": "rev-1"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	saved := store.submissions["sub-a"]
	if len(saved.Reviewers) != 1 || saved.Reviewers[0].Reviewer.ID != "rev-1" {
		t.Errorf("Reviewers = %v, want rev-1 assigned", saved.Reviewers)
	}

	// Non-staff actors may not manage assignments.
	w = doJSON(t, mux, http.MethodPost, "/submission-api/submissions/sub-a/reviewers",
		asApplicant("alice"), map[string]string{"reviewer_id": "rev-2"})
	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
}

func TestHandleRemoveReviewer(t *testing.T) {
	mux, store := setupTestMux(t)
	seedSubmission(t, store, &workflow.Submission{
		ID: "sub-a", Applicant: "alice",
		Reviewers: []workflow.AssignedReviewer{
			{Reviewer: workflow.User{ID: "rev-1", Roles: []workflow.Role{workflow.RoleReviewer}}},
		},
	})

	w := doJSON(t, mux, http.MethodDelete, "/submission-api/submissions/sub-a/reviewers/rev-1",
		asStaff("s1"), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if len(store.submissions["sub-a"].Reviewers) != 0 {
		t.Errorf("Reviewers = %v, want empty", store.submissions["sub-a"].Reviewers)
	}
}

func TestHandleCreateReview(t *testing.T) {
	mux, store := setupTestMux(t)
	seedSubmission(t, store, &workflow.Submission{
		ID: "sub-a", Applicant: "alice", Status: "internal_review",
		Reviewers: []workflow.AssignedReviewer{
			{Reviewer: workflow.User{ID: "rev-1", Roles: []workflow.Role{workflow.RoleReviewer}}},
		},
	})

	w := doJSON(t, mux, http.MethodPost, "/submission-api/submissions/sub-a/reviews",
		map[string]string{headerUserID: "rev-1", headerUserRoles: "reviewer"},
		map[string]any{"score": 4, "recommendation": "fund", "body": "solid plan"})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if len(store.reviews) != 1 {
		t.Fatalf("stored %d reviews, want 1", len(store.reviews))
	}

	// The sole assigned reviewer finishing their review closes the
	// round automatically.
	if got := store.submissions["sub-a"].Status; got != "post_review_discussion" {
		t.Errorf("status after lone review = %q, want post_review_discussion", got)
	}
}

func TestHandleCreateReview_NotEligible(t *testing.T) {
	mux, store := setupTestMux(t)
	seedSubmission(t, store, &workflow.Submission{ID: "sub-a", Applicant: "alice", Status: "internal_review"})

	w := doJSON(t, mux, http.MethodPost, "/submission-api/submissions/sub-a/reviews",
		map[string]string{headerUserID: "rev-9", headerUserRoles: "reviewer"},
		map[string]any{"score": 2})
	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
	if len(store.reviews) != 0 {
		t.Errorf("stored %d reviews, want 0", len(store.reviews))
	}
}

func TestHandleCreateDetermination(t *testing.T) {
	mux, store := setupTestMux(t)
	seedSubmission(t, store, &workflow.Submission{
		ID: "sub-a", Applicant: "alice", Lead: "lead-1", Status: "determination",
	})

	w := doJSON(t, mux, http.MethodPost, "/submission-api/submissions/sub-a/determinations",
		map[string]string{headerUserID: "lead-1", headerUserRoles: "staff"},
		map[string]any{"outcome": "accepted", "message": "funded"})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if got := store.submissions["sub-a"].Status; got != "accepted" {
		t.Errorf("status = %q, want accepted", got)
	}
	if len(store.determinations) != 1 {
		t.Errorf("stored %d determinations, want 1", len(store.determinations))
	}
}

func TestHandleCreateDetermination_Draft(t *testing.T) {
	mux, store := setupTestMux(t)
	seedSubmission(t, store, &workflow.Submission{
		ID: "sub-a", Applicant: "alice", Lead: "lead-1", Status: "determination",
	})

	w := doJSON(t, mux, http.MethodPost, "/submission-api/submissions/sub-a/determinations",
		map[string]string{headerUserID: "lead-1", headerUserRoles: "staff"},
		map[string]any{"outcome": "rejected", "is_draft": true})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	// Drafts store the decision without performing it.
	if got := store.submissions["sub-a"].Status; got != "determination" {
		t.Errorf("status = %q, want determination", got)
	}
}

func TestHandleCreateDetermination_Errors(t *testing.T) {
	mux, store := setupTestMux(t)
	seedSubmission(t, store, &workflow.Submission{
		ID: "sub-a", Applicant: "alice", Lead: "lead-1", Status: "determination",
	})

	tests := []struct {
		name     string
		headers  map[string]string
		body     any
		wantCode int
	}{
		{
			name:     "non-staff forbidden",
			headers:  asApplicant("alice"),
			body:     map[string]any{"outcome": "accepted"},
			wantCode: http.StatusForbidden,
		},
		{
			name:     "unknown outcome",
			headers:  map[string]string{headerUserID: "lead-1", headerUserRoles: "staff"},
			body:     map[string]any{"outcome": "maybe"},
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "staff but not lead",
			headers:  asStaff("s1"),
			body:     map[string]any{"outcome": "accepted"},
			wantCode: http.StatusForbidden,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, mux, http.MethodPost, "/submission-api/submissions/sub-a/determinations",
				tt.headers, tt.body)
			if w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d: %s", w.Code, tt.wantCode, w.Body.String())
			}
		})
	}
	if len(store.determinations) != 0 {
		t.Errorf("stored %d determinations, want 0 after failures", len(store.determinations))
	}
}

func TestHandleListDeterminations_HidesOthersDrafts(t *testing.T) {
	mux, store := setupTestMux(t)
	seedSubmission(t, store, &workflow.Submission{ID: "sub-a", Applicant: "alice", Lead: "lead-1"})
	_, _ = store.CreateDetermination(context.Background(), &workflow.Determination{
		SubmissionID: "sub-a", Author: "lead-1", Outcome: workflow.OutcomeAccepted, IsDraft: true,
	})
	_, _ = store.CreateDetermination(context.Background(), &workflow.Determination{
		SubmissionID: "sub-a", Author: "lead-1", Outcome: workflow.OutcomeRejected,
	})

	w := doJSON(t, mux, http.MethodGet, "/submission-api/submissions/sub-a/determinations", asStaff("s1"), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var got struct {
		Determinations []*workflow.Determination `json:"determinations"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(got.Determinations) != 1 {
		t.Errorf("got %d determinations, want 1 (draft hidden)", len(got.Determinations))
	}
}

func TestHandlePeek(t *testing.T) {
	mux, store := setupTestMux(t)
	seedSubmission(t, store, &workflow.Submission{ID: "sub-a", Applicant: "alice", Sealed: true})

	// Sealed submissions read as absent to staff until they unseal.
	w := doJSON(t, mux, http.MethodGet, "/submission-api/submissions/sub-a", asStaff("s1"), nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("pre-peek status = %d, want %d", w.Code, http.StatusNotFound)
	}

	w = doJSON(t, mux, http.MethodPost, "/submission-api/submissions/sub-a/peek", asStaff("s1"), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("peek status = %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, mux, http.MethodGet, "/submission-api/submissions/sub-a", asStaff("s1"), nil)
	if w.Code != http.StatusOK {
		t.Errorf("post-peek status = %d, want %d", w.Code, http.StatusOK)
	}

	w = doJSON(t, mux, http.MethodPost, "/submission-api/submissions/sub-a/peek", asApplicant("alice"), nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("applicant peek status = %d, want %d", w.Code, http.StatusForbidden)
	}
}

func TestHandlers_NotReady(t *testing.T) {
	c := &Component{
		name:   "submission-api",
		config: DefaultConfig(),
		logger: slog.Default(),
	}
	mux := http.NewServeMux()
	c.RegisterHTTPHandlers("/submission-api", mux)

	w := doJSON(t, mux, http.MethodGet, "/submission-api/submissions", asStaff("s1"), nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}
