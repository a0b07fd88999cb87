// Package storage provides entity storage for hypha using NATS KV.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/hyphaapp/hypha/workflow"
)

// EntityType represents the type of entity stored in KV.
type EntityType string

const (
	EntityTypeSubmission    EntityType = "submission"
	EntityTypeDetermination EntityType = "determination"
	EntityTypeReview        EntityType = "review"
	EntityTypeActivity      EntityType = "activity"
)

// Bucket names for each entity type.
const (
	BucketSubmissions    = "HYPHA_SUBMISSIONS"
	BucketDeterminations = "HYPHA_DETERMINATIONS"
	BucketReviews        = "HYPHA_REVIEWS"
	BucketPeeks          = "HYPHA_PEEKS"
	BucketActivity       = "HYPHA_ACTIVITY"
)

// EntityID represents a typed entity identifier.
type EntityID struct {
	Type EntityType
	ID   string
}

// String returns the string representation of the entity ID.
func (e EntityID) String() string {
	return fmt.Sprintf("%s:%s", e.Type, e.ID)
}

// ParseEntityID parses an entity ID string into its components.
func ParseEntityID(s string) (EntityID, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 || parts[1] == "" {
		return EntityID{}, fmt.Errorf("invalid entity ID format: %s", s)
	}
	entityType := EntityType(parts[0])
	switch entityType {
	case EntityTypeSubmission, EntityTypeDetermination, EntityTypeReview, EntityTypeActivity:
		return EntityID{Type: entityType, ID: parts[1]}, nil
	default:
		return EntityID{}, fmt.Errorf("unknown entity type: %s", parts[0])
	}
}

// NewEntityID generates a new unique entity ID for the given type.
func NewEntityID(t EntityType) EntityID {
	return EntityID{
		Type: t,
		ID:   uuid.New().String(),
	}
}

// Activity is one entry in a submission's audit trail, written by the
// activity-log consumer from the event stream.
type Activity struct {
	ID           string    `json:"id"`
	SubmissionID string    `json:"submission_id"`
	ActorID      string    `json:"actor_id,omitempty"`
	Verb         string    `json:"verb"`
	Message      string    `json:"message,omitempty"`
	Source       string    `json:"source,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Peek records a staff user explicitly unsealing a submission.
type Peek struct {
	UserID       string    `json:"user_id"`
	SubmissionID string    `json:"submission_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// Store provides entity storage operations backed by NATS KV.
//
// Submission writes use the bucket revision as an optimistic lock:
// SaveSubmission compare-and-sets against workflow.Submission.Revision
// and reports a lost race as workflow.ErrStaleState.
type Store struct {
	submissions    jetstream.KeyValue
	determinations jetstream.KeyValue
	reviews        jetstream.KeyValue
	peeks          jetstream.KeyValue
	activity       jetstream.KeyValue
}

// NewStore creates a new Store with the given JetStream context.
// It creates the necessary KV buckets if they don't exist.
func NewStore(ctx context.Context, js jetstream.JetStream) (*Store, error) {
	submissions, err := getOrCreateBucket(ctx, js, BucketSubmissions)
	if err != nil {
		return nil, fmt.Errorf("create submissions bucket: %w", err)
	}

	determinations, err := getOrCreateBucket(ctx, js, BucketDeterminations)
	if err != nil {
		return nil, fmt.Errorf("create determinations bucket: %w", err)
	}

	reviews, err := getOrCreateBucket(ctx, js, BucketReviews)
	if err != nil {
		return nil, fmt.Errorf("create reviews bucket: %w", err)
	}

	peeks, err := getOrCreateBucket(ctx, js, BucketPeeks)
	if err != nil {
		return nil, fmt.Errorf("create peeks bucket: %w", err)
	}

	activity, err := getOrCreateBucket(ctx, js, BucketActivity)
	if err != nil {
		return nil, fmt.Errorf("create activity bucket: %w", err)
	}

	return &Store{
		submissions:    submissions,
		determinations: determinations,
		reviews:        reviews,
		peeks:          peeks,
		activity:       activity,
	}, nil
}

func getOrCreateBucket(ctx context.Context, js jetstream.JetStream, name string) (jetstream.KeyValue, error) {
	kv, err := js.KeyValue(ctx, name)
	if err == nil {
		return kv, nil
	}
	// Bucket doesn't exist, create it
	return js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      name,
		Description: fmt.Sprintf("Hypha %s storage", strings.ToLower(name)),
		History:     5, // Keep last 5 revisions
	})
}

// CreateSubmission stores a new submission. A missing ID is generated;
// timestamps are set; the stored revision is written back so the
// caller can save again without a re-read.
func (s *Store) CreateSubmission(ctx context.Context, sub *workflow.Submission) error {
	if sub.ID == "" {
		sub.ID = uuid.New().String()
	}
	sub.CreatedAt = time.Now()
	sub.UpdatedAt = sub.CreatedAt

	data, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("marshal submission: %w", err)
	}

	rev, err := s.submissions.Create(ctx, sub.ID, data)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyExists) {
			return fmt.Errorf("submission %s: %w", sub.ID, ErrAlreadyExists)
		}
		return fmt.Errorf("store submission: %w", err)
	}
	sub.Revision = rev
	return nil
}

// GetSubmission retrieves a submission by ID. The returned record
// carries the bucket revision for subsequent compare-and-set saves.
func (s *Store) GetSubmission(ctx context.Context, id string) (*workflow.Submission, error) {
	entry, err := s.submissions.Get(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get submission: %w", err)
	}

	var sub workflow.Submission
	if err := json.Unmarshal(entry.Value(), &sub); err != nil {
		return nil, fmt.Errorf("unmarshal submission: %w", err)
	}
	sub.Revision = entry.Revision()
	return &sub, nil
}

// SaveSubmission persists the submission against the revision it was
// read at. A write that lost the race fails with
// workflow.ErrStaleState and leaves the stored record untouched; the
// caller re-reads and retries or surfaces the conflict.
func (s *Store) SaveSubmission(ctx context.Context, sub *workflow.Submission) error {
	sub.UpdatedAt = time.Now()

	data, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("marshal submission: %w", err)
	}

	rev, err := s.submissions.Update(ctx, sub.ID, data, sub.Revision)
	if err != nil {
		if isWrongRevision(err) {
			return fmt.Errorf("submission %s at revision %d: %w", sub.ID, sub.Revision, workflow.ErrStaleState)
		}
		if isNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("update submission: %w", err)
	}
	sub.Revision = rev
	return nil
}

// ListSubmissions returns all submissions.
func (s *Store) ListSubmissions(ctx context.Context) ([]*workflow.Submission, error) {
	keys, err := s.submissions.Keys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("list submission keys: %w", err)
	}

	subs := make([]*workflow.Submission, 0, len(keys))
	for _, key := range keys {
		entry, err := s.submissions.Get(ctx, key)
		if err != nil {
			continue // Skip entries that fail to load
		}
		var sub workflow.Submission
		if err := json.Unmarshal(entry.Value(), &sub); err != nil {
			continue
		}
		sub.Revision = entry.Revision()
		subs = append(subs, &sub)
	}

	return subs, nil
}

// CreateDetermination stores a new determination and returns its ID.
func (s *Store) CreateDetermination(ctx context.Context, d *workflow.Determination) (EntityID, error) {
	id := NewEntityID(EntityTypeDetermination)
	d.ID = id.ID
	d.CreatedAt = time.Now()
	d.UpdatedAt = d.CreatedAt

	data, err := json.Marshal(d)
	if err != nil {
		return EntityID{}, fmt.Errorf("marshal determination: %w", err)
	}

	if _, err := s.determinations.Create(ctx, id.ID, data); err != nil {
		return EntityID{}, fmt.Errorf("store determination: %w", err)
	}
	return id, nil
}

// GetDetermination retrieves a determination by ID.
func (s *Store) GetDetermination(ctx context.Context, id string) (*workflow.Determination, error) {
	entry, err := s.determinations.Get(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get determination: %w", err)
	}

	var d workflow.Determination
	if err := json.Unmarshal(entry.Value(), &d); err != nil {
		return nil, fmt.Errorf("unmarshal determination: %w", err)
	}
	return &d, nil
}

// UpdateDetermination rewrites an existing determination, used when a
// draft is revised or submitted.
func (s *Store) UpdateDetermination(ctx context.Context, d *workflow.Determination) error {
	d.UpdatedAt = time.Now()

	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal determination: %w", err)
	}

	if _, err := s.determinations.Put(ctx, d.ID, data); err != nil {
		return fmt.Errorf("update determination: %w", err)
	}
	return nil
}

// ListDeterminationsBySubmission returns all determinations recorded
// against a submission.
func (s *Store) ListDeterminationsBySubmission(ctx context.Context, submissionID string) ([]*workflow.Determination, error) {
	keys, err := s.determinations.Keys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("list determination keys: %w", err)
	}

	out := make([]*workflow.Determination, 0)
	for _, key := range keys {
		entry, err := s.determinations.Get(ctx, key)
		if err != nil {
			continue
		}
		var d workflow.Determination
		if err := json.Unmarshal(entry.Value(), &d); err != nil {
			continue
		}
		if d.SubmissionID == submissionID {
			out = append(out, &d)
		}
	}
	return out, nil
}

// CreateReview stores a new review and returns its ID.
func (s *Store) CreateReview(ctx context.Context, r *workflow.Review) (EntityID, error) {
	id := NewEntityID(EntityTypeReview)
	r.ID = id.ID
	r.CreatedAt = time.Now()

	data, err := json.Marshal(r)
	if err != nil {
		return EntityID{}, fmt.Errorf("marshal review: %w", err)
	}

	if _, err := s.reviews.Create(ctx, id.ID, data); err != nil {
		return EntityID{}, fmt.Errorf("store review: %w", err)
	}
	return id, nil
}

// GetReview retrieves a review by ID.
func (s *Store) GetReview(ctx context.Context, id string) (*workflow.Review, error) {
	entry, err := s.reviews.Get(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get review: %w", err)
	}

	var r workflow.Review
	if err := json.Unmarshal(entry.Value(), &r); err != nil {
		return nil, fmt.Errorf("unmarshal review: %w", err)
	}
	return &r, nil
}

// ListReviewsBySubmission returns all reviews for a submission.
func (s *Store) ListReviewsBySubmission(ctx context.Context, submissionID string) ([]*workflow.Review, error) {
	keys, err := s.reviews.Keys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("list review keys: %w", err)
	}

	out := make([]*workflow.Review, 0)
	for _, key := range keys {
		entry, err := s.reviews.Get(ctx, key)
		if err != nil {
			continue
		}
		var r workflow.Review
		if err := json.Unmarshal(entry.Value(), &r); err != nil {
			continue
		}
		if r.SubmissionID == submissionID {
			out = append(out, &r)
		}
	}
	return out, nil
}

// RecordPeek stores that the user unsealed the submission. Recording
// twice is harmless.
func (s *Store) RecordPeek(ctx context.Context, userID, submissionID string) error {
	peek := Peek{UserID: userID, SubmissionID: submissionID, CreatedAt: time.Now()}
	data, err := json.Marshal(peek)
	if err != nil {
		return fmt.Errorf("marshal peek: %w", err)
	}
	if _, err := s.peeks.Put(ctx, peekKey(userID, submissionID), data); err != nil {
		return fmt.Errorf("store peek: %w", err)
	}
	return nil
}

// HasPeeked reports whether the user has unsealed the submission. It
// satisfies workflow.PeekStore.
func (s *Store) HasPeeked(ctx context.Context, userID, submissionID string) (bool, error) {
	_, err := s.peeks.Get(ctx, peekKey(userID, submissionID))
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("get peek: %w", err)
	}
	return true, nil
}

func peekKey(userID, submissionID string) string {
	return userID + "." + submissionID
}

// RecordActivity appends an entry to a submission's audit trail.
func (s *Store) RecordActivity(ctx context.Context, a *Activity) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}

	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal activity: %w", err)
	}
	if _, err := s.activity.Create(ctx, activityKey(a.SubmissionID, a.ID), data); err != nil {
		return fmt.Errorf("store activity: %w", err)
	}
	return nil
}

// ListActivityBySubmission returns the audit trail for a submission in
// chronological order.
func (s *Store) ListActivityBySubmission(ctx context.Context, submissionID string) ([]*Activity, error) {
	keys, err := s.activity.Keys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("list activity keys: %w", err)
	}

	prefix := submissionID + "."
	out := make([]*Activity, 0)
	for _, key := range keys {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		entry, err := s.activity.Get(ctx, key)
		if err != nil {
			continue
		}
		var a Activity
		if err := json.Unmarshal(entry.Value(), &a); err != nil {
			continue
		}
		out = append(out, &a)
	}

	sortActivities(out)
	return out, nil
}

func activityKey(submissionID, activityID string) string {
	return submissionID + "." + activityID
}

func sortActivities(entries []*Activity) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
}

// isNotFound checks if an error indicates a key was not found.
func isNotFound(err error) bool {
	return errors.Is(err, jetstream.ErrKeyNotFound) ||
		(err != nil && strings.Contains(err.Error(), "key not found"))
}

// isWrongRevision checks if an error indicates a compare-and-set
// revision mismatch.
func isWrongRevision(err error) bool {
	var apiErr *jetstream.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode == jetstream.JSErrCodeStreamWrongLastSequence {
		return true
	}
	return err != nil && strings.Contains(err.Error(), "wrong last sequence")
}
