package activitylog

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/hyphaapp/hypha/storage"
	"github.com/hyphaapp/hypha/workflow"
)

// Activity verbs. The feed renders from the verb plus the message, so
// verbs stay machine-stable while messages are free text.
const (
	verbSubmitted     = "submitted"
	verbTransitioned  = "transitioned"
	verbReverted      = "reverted"
	verbReviewers     = "reviewers_updated"
	verbReviewed      = "reviewed"
	verbDetermination = "determination"
)

// consumeEvents reads the submission event stream through a durable
// consumer and records one activity entry per event.
func (c *Component) consumeEvents(ctx context.Context, js jetstream.JetStream) {
	stream, err := js.Stream(ctx, c.config.EventStreamName)
	if err != nil {
		c.logger.Error("Failed to get submission event stream, activity feed disabled",
			"stream", c.config.EventStreamName,
			"error", err)
		return
	}

	consumer, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Name:          c.config.ConsumerName,
		FilterSubject: workflow.EventSubjects,
		AckPolicy:     jetstream.AckExplicitPolicy,
		DeliverPolicy: jetstream.DeliverNewPolicy,
	})
	if err != nil {
		c.logger.Error("Failed to create activity consumer, activity feed disabled",
			"error", err)
		return
	}

	c.logger.Info("Activity feed subscriber started")

	for {
		select {
		case <-ctx.Done():
			c.logger.Debug("Activity feed subscriber stopping")
			return
		default:
		}

		// Fetch with a short timeout so we check ctx.Done regularly
		msgs, err := consumer.Fetch(1, jetstream.FetchMaxWait(5*time.Second))
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			// Transient fetch errors are normal (timeouts, etc.)
			continue
		}

		for msg := range msgs.Messages() {
			c.processEvent(ctx, msg)
		}
	}
}

// processEvent records a single event message. Unparseable messages
// are acked and dropped: redelivery cannot fix them.
func (c *Component) processEvent(ctx context.Context, msg jetstream.Msg) {
	defer func() {
		if err := msg.Ack(); err != nil {
			c.logger.Warn("Failed to ACK submission event", "error", err)
		}
	}()

	activity, err := renderActivity(msg.Subject(), msg.Data())
	if err != nil {
		c.logger.Warn("Failed to parse submission event",
			"subject", msg.Subject(),
			"error", err)
		return
	}
	if activity == nil {
		c.logger.Debug("Unhandled submission event", "subject", msg.Subject())
		return
	}

	if err := c.store.RecordActivity(ctx, activity); err != nil {
		c.logger.Error("Failed to record activity",
			"submission_id", activity.SubmissionID,
			"verb", activity.Verb,
			"error", err)
		return
	}
	activitiesRecorded.WithLabelValues(activity.Verb).Inc()
}

// renderActivity turns an event into a feed entry, or nil for
// subjects the feed does not track.
func renderActivity(subject string, data []byte) (*storage.Activity, error) {
	switch subject {
	case workflow.SubmissionCreated.Pattern:
		ev, err := workflow.ParseNATSMessage[workflow.SubmissionCreatedEvent](data)
		if err != nil {
			return nil, err
		}
		return &storage.Activity{
			SubmissionID: ev.SubmissionID,
			ActorID:      ev.Applicant,
			Verb:         verbSubmitted,
			Message:      "Submission received",
			Source:       subject,
		}, nil

	case workflow.SubmissionTransitioned.Pattern:
		ev, err := workflow.ParseNATSMessage[workflow.SubmissionTransitionedEvent](data)
		if err != nil {
			return nil, err
		}
		verb := verbTransitioned
		msg := fmt.Sprintf("Progressed from %s to %s", ev.FromPhase, ev.ToPhase)
		if !ev.IsForward {
			verb = verbReverted
			msg = fmt.Sprintf("Sent back from %s to %s", ev.FromPhase, ev.ToPhase)
		}
		return &storage.Activity{
			SubmissionID: ev.SubmissionID,
			ActorID:      ev.ActorID,
			Verb:         verb,
			Message:      msg,
			Source:       subject,
		}, nil

	case workflow.ReviewersUpdated.Pattern:
		ev, err := workflow.ParseNATSMessage[workflow.ReviewersUpdatedEvent](data)
		if err != nil {
			return nil, err
		}
		msg := fmt.Sprintf("Reviewer %s assigned", ev.ReviewerID)
		if ev.Role != "" {
			msg = fmt.Sprintf("Reviewer %s assigned as %s", ev.ReviewerID, ev.Role)
		}
		if ev.Removed {
			msg = fmt.Sprintf("Reviewer %s removed", ev.ReviewerID)
		}
		return &storage.Activity{
			SubmissionID: ev.SubmissionID,
			Verb:         verbReviewers,
			Message:      msg,
			Source:       subject,
		}, nil

	case workflow.ReviewSubmitted.Pattern:
		ev, err := workflow.ParseNATSMessage[workflow.ReviewSubmittedEvent](data)
		if err != nil {
			return nil, err
		}
		return &storage.Activity{
			SubmissionID: ev.SubmissionID,
			ActorID:      ev.Author,
			Verb:         verbReviewed,
			Message:      fmt.Sprintf("Review submitted with score %d", ev.Score),
			Source:       subject,
		}, nil

	case workflow.DeterminationSubmitted.Pattern:
		ev, err := workflow.ParseNATSMessage[workflow.DeterminationSubmittedEvent](data)
		if err != nil {
			return nil, err
		}
		return &storage.Activity{
			SubmissionID: ev.SubmissionID,
			ActorID:      ev.Author,
			Verb:         verbDetermination,
			Message:      fmt.Sprintf("Determination recorded: %s", ev.Outcome),
			Source:       subject,
		}, nil
	}

	return nil, nil
}
