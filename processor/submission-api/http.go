package submissionapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hyphaapp/hypha/storage"
	"github.com/hyphaapp/hypha/workflow"
)

// Identity headers set by the fronting auth proxy. The API trusts
// them; it performs authorization, not authentication.
const (
	headerUserID    = "X-User-Id"
	headerUserRoles = "X-User-Roles"
)

// RegisterHTTPHandlers registers HTTP handlers for the submission-api
// component. The prefix excludes the trailing slash (e.g.
// "/submission-api").
func (c *Component) RegisterHTTPHandlers(prefix string, mux *http.ServeMux) {
	prefix = strings.TrimSuffix(prefix, "/")

	mux.HandleFunc("POST "+prefix+"/submissions", c.handleCreateSubmission)
	mux.HandleFunc("GET "+prefix+"/submissions", c.handleListSubmissions)
	mux.HandleFunc("GET "+prefix+"/submissions/{id}", c.handleGetSubmission)
	mux.HandleFunc("GET "+prefix+"/submissions/{id}/actions", c.handleListActions)
	mux.HandleFunc("POST "+prefix+"/submissions/{id}/transitions", c.handleTransition)
	mux.HandleFunc("POST "+prefix+"/submissions/transitions", c.handleBatchTransition)
	mux.HandleFunc("POST "+prefix+"/submissions/{id}/reviewers", c.handleAssignReviewer)
	mux.HandleFunc("DELETE "+prefix+"/submissions/{id}/reviewers/{reviewer}", c.handleRemoveReviewer)
	mux.HandleFunc("POST "+prefix+"/submissions/{id}/reviews", c.handleCreateReview)
	mux.HandleFunc("GET "+prefix+"/submissions/{id}/reviews", c.handleListReviews)
	mux.HandleFunc("POST "+prefix+"/submissions/{id}/determinations", c.handleCreateDetermination)
	mux.HandleFunc("GET "+prefix+"/submissions/{id}/determinations", c.handleListDeterminations)
	mux.HandleFunc("POST "+prefix+"/submissions/{id}/peek", c.handlePeek)
}

// collaborators returns the engine wiring, or false before Start has
// completed.
func (c *Component) collaborators() (entityStore, *workflow.Engine, *workflow.Coordinator, *workflow.Permissions, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.engine == nil {
		return nil, nil, nil, nil, false
	}
	return c.store, c.engine, c.coordinator, c.permissions, true
}

func userFromRequest(r *http.Request) (workflow.User, bool) {
	id := r.Header.Get(headerUserID)
	if id == "" {
		return workflow.User{}, false
	}
	user := workflow.User{ID: id}
	for _, raw := range strings.Split(r.Header.Get(headerUserRoles), ",") {
		role := workflow.Role(strings.TrimSpace(raw))
		if role != "" {
			user.Roles = append(user.Roles, role)
		}
	}
	return user, true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// writeDomainError maps workflow and storage errors onto HTTP status
// codes: unknown action 400, guard rejection 403, missing entity 404,
// lost optimistic-lock race 409, configuration fault 500.
func (c *Component) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case workflow.IsKind(err, workflow.KindNoSuchTransition):
		writeError(w, http.StatusBadRequest, err.Error())
	case workflow.IsKind(err, workflow.KindForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case workflow.IsKind(err, workflow.KindStaleState):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "submission not found")
	default:
		c.logger.Error("Request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// submissionView is the wire shape of a submission. Applicant identity
// is cleared for viewers who may not see it.
type submissionView struct {
	ID           string                      `json:"id"`
	Title        string                      `json:"title"`
	Workflow     string                      `json:"workflow"`
	Status       string                      `json:"status"`
	StatusLabel  string                      `json:"status_label,omitempty"`
	Applicant    string                      `json:"applicant,omitempty"`
	Lead         string                      `json:"lead,omitempty"`
	Reviewers    []workflow.AssignedReviewer `json:"reviewers,omitempty"`
	Partners     []string                    `json:"partners,omitempty"`
	ActiveFields []string                    `json:"active_fields,omitempty"`
	Answers      map[string]string           `json:"answers,omitempty"`
	Sealed       bool                        `json:"sealed,omitempty"`
	CreatedAt    time.Time                   `json:"created_at"`
	UpdatedAt    time.Time                   `json:"updated_at"`
}

func (c *Component) viewOf(sub *workflow.Submission, user workflow.User, perms *workflow.Permissions, engine *workflow.Engine) submissionView {
	view := submissionView{
		ID:           sub.ID,
		Title:        sub.Title,
		Workflow:     sub.Workflow,
		Status:       sub.Status,
		Applicant:    sub.Applicant,
		Lead:         sub.Lead,
		Reviewers:    sub.Reviewers,
		Partners:     sub.Partners,
		ActiveFields: sub.ActiveFields,
		Answers:      sub.Answers,
		Sealed:       sub.Sealed,
		CreatedAt:    sub.CreatedAt,
		UpdatedAt:    sub.UpdatedAt,
	}
	if w, err := engine.WorkflowFor(sub); err == nil {
		if phase, err := sub.CurrentPhase(w); err == nil {
			view.StatusLabel = phase.Display
		}
	}
	if !perms.CanViewIdentity(user, sub) {
		view.Applicant = ""
	}
	return view
}

type createSubmissionRequest struct {
	Title    string            `json:"title"`
	Workflow string            `json:"workflow"`
	Lead     string            `json:"lead,omitempty"`
	Answers  map[string]string `json:"answers,omitempty"`
	Sealed   bool              `json:"sealed,omitempty"`
}

func (c *Component) handleCreateSubmission(w http.ResponseWriter, r *http.Request) {
	store, engine, _, perms, ok := c.collaborators()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "not ready")
		return
	}
	user, ok := userFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "user identity required")
		return
	}

	var req createSubmissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	def, err := engine.Workflow(req.Workflow)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown workflow %q", req.Workflow))
		return
	}

	initial := def.InitialPhase()
	sub := &workflow.Submission{
		Title:        req.Title,
		Workflow:     def.Name,
		Status:       initial.Name,
		Applicant:    user.ID,
		Lead:         req.Lead,
		ActiveFields: append([]string(nil), def.Stages[0].Form...),
		Answers:      req.Answers,
		Sealed:       req.Sealed,
	}
	if err := store.CreateSubmission(r.Context(), sub); err != nil {
		c.writeDomainError(w, err)
		return
	}

	submissionsCreated.Inc()
	c.publishEvent(r.Context(), workflow.SubmissionCreated.Pattern, &CreatedPayload{
		SubmissionCreatedEvent: workflow.SubmissionCreatedEvent{
			SubmissionID: sub.ID,
			Workflow:     sub.Workflow,
			Applicant:    sub.Applicant,
			Status:       sub.Status,
		},
	})

	writeJSON(w, http.StatusCreated, c.viewOf(sub, user, perms, engine))
}

func (c *Component) handleListSubmissions(w http.ResponseWriter, r *http.Request) {
	store, engine, _, perms, ok := c.collaborators()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "not ready")
		return
	}
	user, ok := userFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "user identity required")
		return
	}

	subs, err := store.ListSubmissions(r.Context())
	if err != nil {
		c.writeDomainError(w, err)
		return
	}

	views := make([]submissionView, 0, len(subs))
	for _, sub := range subs {
		visible, err := perms.CanView(r.Context(), user, sub)
		if err != nil || !visible {
			continue
		}
		views = append(views, c.viewOf(sub, user, perms, engine))
	}
	writeJSON(w, http.StatusOK, map[string]any{"submissions": views})
}

// loadVisible fetches a submission and enforces CanView. Invisible
// submissions read as absent, so the API does not leak their
// existence.
func (c *Component) loadVisible(ctx context.Context, store entityStore, perms *workflow.Permissions, user workflow.User, id string) (*workflow.Submission, int, error) {
	sub, err := store.GetSubmission(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, http.StatusNotFound, errors.New("submission not found")
		}
		return nil, http.StatusInternalServerError, err
	}
	visible, err := perms.CanView(ctx, user, sub)
	if err != nil {
		return nil, http.StatusInternalServerError, err
	}
	if !visible {
		return nil, http.StatusNotFound, errors.New("submission not found")
	}
	return sub, http.StatusOK, nil
}

func (c *Component) handleGetSubmission(w http.ResponseWriter, r *http.Request) {
	store, engine, _, perms, ok := c.collaborators()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "not ready")
		return
	}
	user, ok := userFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "user identity required")
		return
	}

	sub, code, err := c.loadVisible(r.Context(), store, perms, user, r.PathValue("id"))
	if err != nil {
		if code == http.StatusInternalServerError {
			c.writeDomainError(w, err)
			return
		}
		writeError(w, code, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, c.viewOf(sub, user, perms, engine))
}

func (c *Component) handleListActions(w http.ResponseWriter, r *http.Request) {
	store, engine, _, perms, ok := c.collaborators()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "not ready")
		return
	}
	user, ok := userFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "user identity required")
		return
	}

	sub, code, err := c.loadVisible(r.Context(), store, perms, user, r.PathValue("id"))
	if err != nil {
		writeError(w, code, err.Error())
		return
	}

	actions, err := engine.AvailableActions(sub, user)
	if err != nil {
		c.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"actions": actions})
}

type transitionRequest struct {
	Action string `json:"action"`
}

type transitionResponse struct {
	Submission  submissionView   `json:"submission"`
	Events      []workflow.Event `json:"events,omitempty"`
	RedirectURL string           `json:"redirect_url,omitempty"`
}

func (c *Component) handleTransition(w http.ResponseWriter, r *http.Request) {
	store, engine, _, perms, ok := c.collaborators()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "not ready")
		return
	}
	user, ok := userFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "user identity required")
		return
	}

	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Action == "" {
		writeError(w, http.StatusBadRequest, "action is required")
		return
	}

	sub, err := store.GetSubmission(r.Context(), r.PathValue("id"))
	if err != nil {
		c.writeDomainError(w, err)
		return
	}

	res, err := engine.PerformTransition(r.Context(), sub, req.Action, user)
	if err != nil {
		transitionsTotal.WithLabelValues(sub.Workflow, req.Action, transitionResult(err)).Inc()
		c.writeDomainError(w, err)
		return
	}
	transitionsTotal.WithLabelValues(sub.Workflow, req.Action, resultOK).Inc()
	c.publishTransition(r.Context(), res)

	resp := transitionResponse{
		Submission: c.viewOf(sub, user, perms, engine),
		Events:     res.Events,
	}
	if res.NewPhase.Step.IsDetermination() {
		resp.RedirectURL = determinationURL(c.config.DeterminationFormURL, sub.ID)
	}
	writeJSON(w, http.StatusOK, resp)
}

func determinationURL(format, id string) string {
	return fmt.Sprintf(format, id)
}

func transitionResult(err error) string {
	switch {
	case workflow.IsKind(err, workflow.KindNoSuchTransition):
		return resultNoAction
	case workflow.IsKind(err, workflow.KindForbidden):
		return resultForbidden
	case workflow.IsKind(err, workflow.KindStaleState):
		return resultStale
	default:
		return resultError
	}
}

// publishTransition emits the transitioned event for a completed
// transition, including automatic ones.
func (c *Component) publishTransition(ctx context.Context, res *workflow.TransitionResult) {
	c.publishEvent(ctx, workflow.SubmissionTransitioned.Pattern, &TransitionedPayload{
		SubmissionTransitionedEvent: workflow.SubmissionTransitionedEvent{
			SubmissionID:  res.Submission.ID,
			Workflow:      res.Submission.Workflow,
			Action:        res.Action,
			FromPhase:     res.OldPhase.Name,
			ToPhase:       res.NewPhase.Name,
			ActorID:       res.ActorID,
			IsForward:     res.IsForward,
			StageAdvanced: res.StageAdvanced,
			Events:        res.Events,
		},
	})
}

type batchTransitionRequest struct {
	SubmissionIDs []string `json:"submission_ids"`
	Action        string   `json:"action"`
}

type batchTransitionResponse struct {
	Succeeded map[string]string `json:"succeeded"`
	Failed    map[string]string `json:"failed,omitempty"`
}

func (c *Component) handleBatchTransition(w http.ResponseWriter, r *http.Request) {
	store, engine, _, _, ok := c.collaborators()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "not ready")
		return
	}
	user, ok := userFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "user identity required")
		return
	}

	var req batchTransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Action == "" || len(req.SubmissionIDs) == 0 {
		writeError(w, http.StatusBadRequest, "action and submission_ids are required")
		return
	}

	subs := make([]*workflow.Submission, 0, len(req.SubmissionIDs))
	resp := batchTransitionResponse{
		Succeeded: make(map[string]string),
		Failed:    make(map[string]string),
	}
	for _, id := range req.SubmissionIDs {
		sub, err := store.GetSubmission(r.Context(), id)
		if err != nil {
			resp.Failed[id] = "submission not found"
			continue
		}
		subs = append(subs, sub)
	}

	batch := engine.PerformBatchTransition(r.Context(), subs, req.Action, user)
	for id, res := range batch.Succeeded {
		transitionsTotal.WithLabelValues(res.Submission.Workflow, req.Action, resultOK).Inc()
		c.publishTransition(r.Context(), res)
		resp.Succeeded[id] = res.NewPhase.Name
	}
	for id, err := range batch.Failed {
		transitionsTotal.WithLabelValues("", req.Action, transitionResult(err)).Inc()
		resp.Failed[id] = err.Error()
	}

	// Partial failure is the expected shape of a batch; the response
	// is 200 with per-item outcomes either way.
	writeJSON(w, http.StatusOK, resp)
}

type assignReviewerRequest struct {
	ReviewerID string   `json:"reviewer_id"`
	Roles      []string `json:"reviewer_roles,omitempty"`
	Role       string   `json:"role,omitempty"`
}

func (c *Component) handleAssignReviewer(w http.ResponseWriter, r *http.Request) {
	store, _, coordinator, _, ok := c.collaborators()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "not ready")
		return
	}
	user, ok := userFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "user identity required")
		return
	}

	var req assignReviewerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ReviewerID == "" {
		writeError(w, http.StatusBadRequest, "reviewer_id is required")
		return
	}

	sub, err := store.GetSubmission(r.Context(), r.PathValue("id"))
	if err != nil {
		c.writeDomainError(w, err)
		return
	}

	reviewer := workflow.User{ID: req.ReviewerID, Roles: []workflow.Role{workflow.RoleReviewer}}
	for _, raw := range req.Roles {
		reviewer.Roles = append(reviewer.Roles, workflow.Role(raw))
	}

	res, err := coordinator.AssignReviewer(r.Context(), sub, reviewer, workflow.ReviewerRole(req.Role), user)
	if err != nil {
		c.writeDomainError(w, err)
		return
	}

	if res.Changed {
		c.publishEvent(r.Context(), workflow.ReviewersUpdated.Pattern, &ReviewersUpdatedPayload{
			ReviewersUpdatedEvent: workflow.ReviewersUpdatedEvent{
				SubmissionID: sub.ID,
				ReviewerID:   req.ReviewerID,
				Role:         workflow.ReviewerRole(req.Role),
			},
		})
	}
	if res.AutoTransition != nil {
		transitionsTotal.WithLabelValues(sub.Workflow, res.AutoTransition.Action, resultOK).Inc()
		c.publishTransition(r.Context(), res.AutoTransition)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"reviewers": sub.Reviewers,
		"status":    sub.Status,
	})
}

func (c *Component) handleRemoveReviewer(w http.ResponseWriter, r *http.Request) {
	store, _, coordinator, _, ok := c.collaborators()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "not ready")
		return
	}
	user, ok := userFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "user identity required")
		return
	}

	sub, err := store.GetSubmission(r.Context(), r.PathValue("id"))
	if err != nil {
		c.writeDomainError(w, err)
		return
	}

	reviewerID := r.PathValue("reviewer")
	res, err := coordinator.RemoveReviewer(r.Context(), sub, reviewerID, user)
	if err != nil {
		c.writeDomainError(w, err)
		return
	}
	if res.Changed {
		c.publishEvent(r.Context(), workflow.ReviewersUpdated.Pattern, &ReviewersUpdatedPayload{
			ReviewersUpdatedEvent: workflow.ReviewersUpdatedEvent{
				SubmissionID: sub.ID,
				ReviewerID:   reviewerID,
				Removed:      true,
			},
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"reviewers": sub.Reviewers})
}

type createReviewRequest struct {
	Score          int    `json:"score"`
	Recommendation string `json:"recommendation,omitempty"`
	Body           string `json:"body,omitempty"`
}

func (c *Component) handleCreateReview(w http.ResponseWriter, r *http.Request) {
	store, _, coordinator, perms, ok := c.collaborators()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "not ready")
		return
	}
	user, ok := userFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "user identity required")
		return
	}

	var req createReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sub, err := store.GetSubmission(r.Context(), r.PathValue("id"))
	if err != nil {
		c.writeDomainError(w, err)
		return
	}

	allowed, err := perms.CanReview(r.Context(), user, sub)
	if err != nil {
		c.writeDomainError(w, err)
		return
	}
	if !allowed {
		writeError(w, http.StatusForbidden, "not eligible to review this submission")
		return
	}

	review := &workflow.Review{
		SubmissionID:   sub.ID,
		Author:         user.ID,
		Score:          req.Score,
		Recommendation: req.Recommendation,
		Body:           req.Body,
	}
	if assignment, found := findByReviewer(sub, user.ID); found {
		review.Role = assignment.Role
	}
	if _, err := store.CreateReview(r.Context(), review); err != nil {
		c.writeDomainError(w, err)
		return
	}
	reviewsSubmitted.Inc()

	c.publishEvent(r.Context(), workflow.ReviewSubmitted.Pattern, &ReviewSubmittedPayload{
		ReviewSubmittedEvent: workflow.ReviewSubmittedEvent{
			SubmissionID: sub.ID,
			ReviewID:     review.ID,
			Author:       review.Author,
			Role:         review.Role,
			Score:        review.Score,
		},
	})

	// Staff can review without an assignment; only assigned reviewers
	// participate in the all-reviewed auto-close.
	if sub.IsReviewer(user.ID) {
		res, err := coordinator.MarkReviewed(r.Context(), sub, user.ID)
		if err != nil {
			c.writeDomainError(w, err)
			return
		}
		if res.AutoTransition != nil {
			transitionsTotal.WithLabelValues(sub.Workflow, res.AutoTransition.Action, resultOK).Inc()
			c.publishTransition(r.Context(), res.AutoTransition)
		}
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"review": review,
		"status": sub.Status,
	})
}

func findByReviewer(sub *workflow.Submission, userID string) (workflow.AssignedReviewer, bool) {
	for _, a := range sub.Reviewers {
		if a.Reviewer.ID == userID {
			return a, true
		}
	}
	return workflow.AssignedReviewer{}, false
}

func (c *Component) handleListReviews(w http.ResponseWriter, r *http.Request) {
	store, _, _, perms, ok := c.collaborators()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "not ready")
		return
	}
	user, ok := userFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "user identity required")
		return
	}

	sub, code, err := c.loadVisible(r.Context(), store, perms, user, r.PathValue("id"))
	if err != nil {
		writeError(w, code, err.Error())
		return
	}

	reviews, err := store.ListReviewsBySubmission(r.Context(), sub.ID)
	if err != nil {
		c.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reviews": reviews})
}

type createDeterminationRequest struct {
	Outcome workflow.DeterminationOutcome `json:"outcome"`
	Message string                        `json:"message,omitempty"`
	IsDraft bool                          `json:"is_draft,omitempty"`
}

// handleCreateDetermination records a determination. A draft only
// stores; a submitted determination also performs the transition its
// outcome maps to, so the decision and the phase change commit
// together from the caller's perspective.
func (c *Component) handleCreateDetermination(w http.ResponseWriter, r *http.Request) {
	store, engine, _, perms, ok := c.collaborators()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "not ready")
		return
	}
	user, ok := userFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "user identity required")
		return
	}

	var req createDeterminationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !req.Outcome.IsValid() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown outcome %q", req.Outcome))
		return
	}
	if !user.IsStaff() {
		writeError(w, http.StatusForbidden, "only staff may record determinations")
		return
	}

	sub, err := store.GetSubmission(r.Context(), r.PathValue("id"))
	if err != nil {
		c.writeDomainError(w, err)
		return
	}

	det := &workflow.Determination{
		SubmissionID: sub.ID,
		Author:       user.ID,
		Outcome:      req.Outcome,
		Message:      req.Message,
		IsDraft:      req.IsDraft,
	}

	var res *workflow.TransitionResult
	if !req.IsDraft {
		// Resolve and perform before storing so an ineligible outcome
		// leaves no orphaned determination behind.
		action, err := engine.ResolveOutcomeAction(sub, req.Outcome)
		if err != nil {
			c.writeDomainError(w, err)
			return
		}
		res, err = engine.PerformTransition(r.Context(), sub, action, user)
		if err != nil {
			transitionsTotal.WithLabelValues(sub.Workflow, action, transitionResult(err)).Inc()
			c.writeDomainError(w, err)
			return
		}
		transitionsTotal.WithLabelValues(sub.Workflow, action, resultOK).Inc()
	}

	if _, err := store.CreateDetermination(r.Context(), det); err != nil {
		c.writeDomainError(w, err)
		return
	}

	if !req.IsDraft {
		determinationsSubmitted.WithLabelValues(string(req.Outcome)).Inc()
		c.publishEvent(r.Context(), workflow.DeterminationSubmitted.Pattern, &DeterminationPayload{
			DeterminationSubmittedEvent: workflow.DeterminationSubmittedEvent{
				SubmissionID:    sub.ID,
				DeterminationID: det.ID,
				Author:          det.Author,
				Outcome:         det.Outcome,
			},
		})
		c.publishTransition(r.Context(), res)
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"determination": det,
		"submission":    c.viewOf(sub, user, perms, engine),
	})
}

func (c *Component) handleListDeterminations(w http.ResponseWriter, r *http.Request) {
	store, _, _, perms, ok := c.collaborators()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "not ready")
		return
	}
	user, ok := userFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "user identity required")
		return
	}

	sub, code, err := c.loadVisible(r.Context(), store, perms, user, r.PathValue("id"))
	if err != nil {
		writeError(w, code, err.Error())
		return
	}

	dets, err := store.ListDeterminationsBySubmission(r.Context(), sub.ID)
	if err != nil {
		c.writeDomainError(w, err)
		return
	}

	// Draft determinations stay private to their author.
	visible := make([]*workflow.Determination, 0, len(dets))
	for _, d := range dets {
		if d.IsDraft && d.Author != user.ID {
			continue
		}
		visible = append(visible, d)
	}
	writeJSON(w, http.StatusOK, map[string]any{"determinations": visible})
}

// handlePeek records that a staff user chose to unseal a submission.
// Subsequent CanView checks for that user pass.
func (c *Component) handlePeek(w http.ResponseWriter, r *http.Request) {
	store, _, _, _, ok := c.collaborators()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "not ready")
		return
	}
	user, ok := userFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "user identity required")
		return
	}
	if !user.IsStaff() {
		writeError(w, http.StatusForbidden, "only staff may unseal submissions")
		return
	}

	sub, err := store.GetSubmission(r.Context(), r.PathValue("id"))
	if err != nil {
		c.writeDomainError(w, err)
		return
	}
	if !sub.Sealed {
		writeError(w, http.StatusBadRequest, "submission is not sealed")
		return
	}

	if err := store.RecordPeek(r.Context(), user.ID, sub.ID); err != nil {
		c.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "unsealed"})
}
