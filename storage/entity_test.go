package storage

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

func TestEntityID(t *testing.T) {
	t.Run("NewEntityID generates valid ID", func(t *testing.T) {
		id := NewEntityID(EntityTypeSubmission)
		if id.Type != EntityTypeSubmission {
			t.Errorf("expected type %s, got %s", EntityTypeSubmission, id.Type)
		}
		if id.ID == "" {
			t.Error("expected non-empty ID")
		}
	})

	t.Run("String returns correct format", func(t *testing.T) {
		id := EntityID{Type: EntityTypeReview, ID: "abc123"}
		expected := "review:abc123"
		if id.String() != expected {
			t.Errorf("expected %s, got %s", expected, id.String())
		}
	})

	t.Run("ParseEntityID handles all types", func(t *testing.T) {
		tests := []struct {
			input    string
			expected EntityType
		}{
			{"submission:123", EntityTypeSubmission},
			{"determination:456", EntityTypeDetermination},
			{"review:789", EntityTypeReview},
			{"activity:abc", EntityTypeActivity},
		}

		for _, tc := range tests {
			id, err := ParseEntityID(tc.input)
			if err != nil {
				t.Errorf("unexpected error for %s: %v", tc.input, err)
				continue
			}
			if id.Type != tc.expected {
				t.Errorf("for %s: expected type %s, got %s", tc.input, tc.expected, id.Type)
			}
		}
	})

	t.Run("ParseEntityID rejects invalid format", func(t *testing.T) {
		invalidIDs := []string{
			"invalid",
			"no-colon",
			"",
			"unknown:123",
			"submission:",
		}

		for _, input := range invalidIDs {
			_, err := ParseEntityID(input)
			if err == nil {
				t.Errorf("expected error for %q, got nil", input)
			}
		}
	})

	t.Run("Round trip ID conversion", func(t *testing.T) {
		original := NewEntityID(EntityTypeDetermination)
		str := original.String()
		parsed, err := ParseEntityID(str)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if parsed != original {
			t.Errorf("round trip mismatch: %v != %v", parsed, original)
		}
	})
}

func TestKeyHelpers(t *testing.T) {
	if got := peekKey("staff-1", "sub-1"); got != "staff-1.sub-1" {
		t.Errorf("peekKey = %q", got)
	}
	if got := activityKey("sub-1", "act-1"); got != "sub-1.act-1" {
		t.Errorf("activityKey = %q", got)
	}
}

func TestErrorClassification(t *testing.T) {
	t.Run("not found", func(t *testing.T) {
		if !isNotFound(jetstream.ErrKeyNotFound) {
			t.Error("ErrKeyNotFound not classified as not found")
		}
		if !isNotFound(fmt.Errorf("nats: key not found")) {
			t.Error("wrapped key-not-found message not classified")
		}
		if isNotFound(errors.New("connection refused")) {
			t.Error("unrelated error classified as not found")
		}
		if isNotFound(nil) {
			t.Error("nil classified as not found")
		}
	})

	t.Run("wrong revision", func(t *testing.T) {
		apiErr := &jetstream.APIError{ErrorCode: jetstream.JSErrCodeStreamWrongLastSequence}
		if !isWrongRevision(apiErr) {
			t.Error("wrong-last-sequence API error not classified as stale")
		}
		if !isWrongRevision(fmt.Errorf("update: %w", apiErr)) {
			t.Error("wrapped API error not classified as stale")
		}
		if isWrongRevision(jetstream.ErrKeyNotFound) {
			t.Error("key-not-found classified as stale")
		}
		if isWrongRevision(nil) {
			t.Error("nil classified as stale")
		}
	})
}

func TestSortActivities(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	entries := []*Activity{
		{ID: "c", CreatedAt: base.Add(2 * time.Hour)},
		{ID: "a", CreatedAt: base},
		{ID: "b", CreatedAt: base.Add(time.Hour)},
	}
	sortActivities(entries)
	for i, want := range []string{"a", "b", "c"} {
		if entries[i].ID != want {
			t.Errorf("entries[%d] = %s, want %s", i, entries[i].ID, want)
		}
	}
}

func TestBucketNames(t *testing.T) {
	buckets := []string{
		BucketSubmissions,
		BucketDeterminations,
		BucketReviews,
		BucketPeeks,
		BucketActivity,
	}
	seen := make(map[string]bool, len(buckets))
	for _, b := range buckets {
		if seen[b] {
			t.Errorf("duplicate bucket name %s", b)
		}
		seen[b] = true
	}
}
